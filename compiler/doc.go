// Package compiler drives the translation of single Wasm function bodies
// into native machine code.
//
// A Compiler is built once per target. Each Compile call works against a
// host.Context describing the enclosing module: the Validator caches the
// module's types for the session, the FuncEnvironment resolves memory and
// call references through the vmContext layout, and the translator walks
// the body's instructions driving an isa.Emitter. The finished code and its
// call-site relocations flow back through Context.ReportCompiled.
//
// The lowered instruction surface is deliberately partial. Anything outside
// it fails with a single well-defined unsupported-feature error naming the
// construct, so embedders can fall back to another execution tier per
// function.
package compiler
