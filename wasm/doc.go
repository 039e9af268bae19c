// Package wasm provides the WebAssembly binary-format primitives the
// compiler consumes.
//
// This is intentionally not a module parser: the module loader lives on the
// host side of the boundary. The compiler only ever sees one function body at
// a time, so this package is limited to:
//
//   - Value type encodings (ValType) and function signatures (FuncType)
//   - Single-byte opcode constants and mnemonics (OpcodeName)
//   - LEB128 readers and writers
//   - Code-section entry parsing (ParseFuncBody: locals + instructions)
//
// Parse a function body:
//
//	body, err := wasm.ParseFuncBody(entry)
//	locals, ok := body.FlatLocals()
//
// Multi-byte opcode spaces (0xFC/0xFD/0xFE prefixed) are recognized only far
// enough to be rejected as unsupported by the translator.
package wasm
