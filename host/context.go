package host

import (
	"github.com/wippyai/wasm-codegen/wasm"
)

// Context is the read-only query surface the compiler uses to learn about
// the module enclosing the function being compiled, plus the one-way
// terminal operation delivering the compile result.
//
// Every query is a stateless, pure read of already-validated module
// metadata. Queries must not be made outside an active compilation.
// Implementations must panic on out-of-range indices rather than invent an
// answer: an inconsistent Context is a defect in the embedding, never a
// condition the compiler recovers from.
type Context interface {
	// TypeCount returns the number of declared function types.
	TypeCount() uint32

	// TypeSignature returns the parameter/result value types of the
	// declared type at typeIndex.
	TypeSignature(typeIndex uint32) wasm.FuncType

	// CurrentFunctionIndex returns the module-wide index (imports
	// included) of the function being compiled.
	CurrentFunctionIndex() uint32

	// CurrentFunctionTypeIndex returns the type index of the function
	// being compiled.
	CurrentFunctionTypeIndex() uint32

	// IsLocal reports whether funcIndex refers to a function defined in
	// this module, as opposed to an imported one.
	IsLocal(funcIndex uint32) bool

	// FunctionTypeIndex returns the type index of an arbitrary function.
	FunctionTypeIndex(funcIndex uint32) uint32

	// MemoryBounds returns the linear memory's min/max page counts.
	// defined is false when the module has no memory at all.
	MemoryBounds() (minPages, maxPages uint32, defined bool)

	// IsMemoryImported reports whether the linear memory is imported.
	IsMemoryImported() bool

	// Layout returns the vmContext byte layout for this module-compile
	// session. The same layout must be used by the host's later
	// patch/link step.
	Layout() VMContextLayout

	// ReportCompiled delivers a finished compilation to the host. It is
	// one-way: the code and relocation buffers are owned by this
	// invocation and must be copied out before it returns.
	ReportCompiled(fn CompiledFunction)
}

// RelocationEntry describes one direct-call instruction whose target address
// the host linker must patch once final code layout is known. Entries are in
// code order, one per direct call site.
type RelocationEntry struct {
	// TargetFunctionIndex is the module-wide index of the callee.
	TargetFunctionIndex uint32

	// CodeOffset is the byte offset of the call instruction within Code.
	CodeOffset uint32

	// Namespace partitions function indices. It is always zero today; the
	// field stays explicit so the boundary protocol does not need to
	// change if multiple index spaces ever appear.
	Namespace uint32
}

// CompiledFunction is the result of compiling one function: native machine
// code and the call-site relocations the linker must resolve. Ownership
// transfers to the host synchronously inside ReportCompiled.
type CompiledFunction struct {
	Code        []byte
	Relocations []RelocationEntry
}
