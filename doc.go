// Package wasmcodegen compiles single WebAssembly functions to native
// machine code for ahead-of-time execution tiers.
//
// The compiler works one function at a time and never parses a module
// itself: the embedding host answers metadata queries (types, imports,
// memory shape, vmContext layout) through host.Context, and receives the
// machine code plus call-site relocations back through the same boundary.
// Linking, instantiation, and execution stay on the host side.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct
// responsibilities:
//
//	wasmcodegen/         Root package with the compiler constructor
//	├── compiler/        Per-function translation driver, validator, and
//	│                    function environment
//	├── host/            Boundary contract: Context queries, vmContext
//	│                    layout, compile results
//	├── target/          Supported (architecture, OS) pairs, calling
//	│                    conventions, relocation kinds
//	├── abi/             Native signature shaping and register assignment
//	├── isa/             Emitter contract between translator and backends
//	│   └── arm64/       AArch64 assembler and lowering
//	├── wasm/            Binary format primitives: LEB128, value types,
//	│                    opcodes, function bodies
//	├── cache/           Persistent compiled-code cache
//	└── errors/          Structured error types for debugging
//
// # Quick Start
//
// Build a compiler for a target and compile one function body:
//
//	c, err := wasmcodegen.NewCompiler(target.ArchARM64, target.OSLinux)
//	if err != nil {
//		return err
//	}
//	err = c.Compile(hostCtx, bodyBytes)
//
// The compiled code and its relocations arrive through
// hostCtx.ReportCompiled before Compile returns.
package wasmcodegen
