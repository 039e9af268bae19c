// Package abi shapes Wasm function types into the native calling convention
// used by compiled code.
//
// Every compiled function takes two hidden pointer parameters before its Wasm
// parameters: the callee's vmContext and the caller's vmContext. Wasm results
// are returned directly in registers with no hidden result area. Parameter
// and result registers are assigned per class (general purpose or floating
// point) in declaration order; shapes that would need stack passing are
// rejected as unsupported features.
package abi
