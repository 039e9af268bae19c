package host

import (
	"fmt"

	"github.com/wippyai/wasm-codegen/wasm"
)

// ModuleInfo is the already-validated module metadata a StaticContext serves
// queries from. Function indices are module-wide: imported functions first,
// locally defined functions after.
type ModuleInfo struct {
	// Types is the ordered declared type list.
	Types []wasm.FuncType

	// ImportedFunctions holds the type index of each imported function.
	ImportedFunctions []uint32

	// LocalFunctions holds the type index of each locally defined
	// function.
	LocalFunctions []uint32

	// HasMemory and MemoryImported describe the module's linear memory.
	HasMemory      bool
	MemoryImported bool

	// MemoryMinPages and MemoryMaxPages are the memory's declared limits.
	MemoryMinPages, MemoryMaxPages uint32
}

// StaticContext is a deterministic, in-memory Context over ModuleInfo. It is
// the reference implementation used by tests and by hosts that already hold
// parsed metadata in-process; nothing about it crosses a system boundary.
type StaticContext struct {
	info    ModuleInfo
	layout  VMContextLayout
	current uint32

	// Compiled collects everything reported through ReportCompiled, in
	// report order.
	Compiled []CompiledFunction
}

var _ Context = (*StaticContext)(nil)

// NewStaticContext builds a StaticContext and derives the session's
// vmContext layout from the module shape.
func NewStaticContext(info ModuleInfo) *StaticContext {
	return &StaticContext{
		info:   info,
		layout: ComputeLayout(info.HasMemory, info.MemoryImported, uint32(len(info.ImportedFunctions))),
	}
}

// SetCurrentFunction selects the function the next compilation is for.
func (s *StaticContext) SetCurrentFunction(funcIndex uint32) {
	s.mustValidFunction(funcIndex)
	s.current = funcIndex
}

// TypeCount implements Context.
func (s *StaticContext) TypeCount() uint32 { return uint32(len(s.info.Types)) }

// TypeSignature implements Context.
func (s *StaticContext) TypeSignature(typeIndex uint32) wasm.FuncType {
	if typeIndex >= uint32(len(s.info.Types)) {
		panic(fmt.Sprintf("BUG: type index %d out of range (%d types)", typeIndex, len(s.info.Types)))
	}
	return s.info.Types[typeIndex]
}

// CurrentFunctionIndex implements Context.
func (s *StaticContext) CurrentFunctionIndex() uint32 { return s.current }

// CurrentFunctionTypeIndex implements Context.
func (s *StaticContext) CurrentFunctionTypeIndex() uint32 {
	return s.FunctionTypeIndex(s.current)
}

// IsLocal implements Context.
func (s *StaticContext) IsLocal(funcIndex uint32) bool {
	s.mustValidFunction(funcIndex)
	return funcIndex >= uint32(len(s.info.ImportedFunctions))
}

// FunctionTypeIndex implements Context.
func (s *StaticContext) FunctionTypeIndex(funcIndex uint32) uint32 {
	s.mustValidFunction(funcIndex)
	imported := uint32(len(s.info.ImportedFunctions))
	if funcIndex < imported {
		return s.info.ImportedFunctions[funcIndex]
	}
	return s.info.LocalFunctions[funcIndex-imported]
}

// MemoryBounds implements Context.
func (s *StaticContext) MemoryBounds() (minPages, maxPages uint32, defined bool) {
	if !s.info.HasMemory {
		return 0, 0, false
	}
	return s.info.MemoryMinPages, s.info.MemoryMaxPages, true
}

// IsMemoryImported implements Context.
func (s *StaticContext) IsMemoryImported() bool {
	return s.info.HasMemory && s.info.MemoryImported
}

// Layout implements Context.
func (s *StaticContext) Layout() VMContextLayout { return s.layout }

// ReportCompiled implements Context. The buffers are copied: the compiler
// owns them only until this call returns.
func (s *StaticContext) ReportCompiled(fn CompiledFunction) {
	code := make([]byte, len(fn.Code))
	copy(code, fn.Code)
	relocs := make([]RelocationEntry, len(fn.Relocations))
	copy(relocs, fn.Relocations)
	s.Compiled = append(s.Compiled, CompiledFunction{Code: code, Relocations: relocs})
}

func (s *StaticContext) mustValidFunction(funcIndex uint32) {
	total := len(s.info.ImportedFunctions) + len(s.info.LocalFunctions)
	if funcIndex >= uint32(total) {
		panic(fmt.Sprintf("BUG: function index %d out of range (%d functions)", funcIndex, total))
	}
}
