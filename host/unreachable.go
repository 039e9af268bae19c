package host

import (
	"fmt"

	"github.com/wippyai/wasm-codegen/wasm"
)

// UnreachableContext panics on every call. Tests that exercise code which
// must never consult module metadata use it to prove the boundary is not
// touched.
type UnreachableContext struct{}

var _ Context = UnreachableContext{}

// TypeCount implements Context.
func (UnreachableContext) TypeCount() uint32 { panic(touched("TypeCount")) }

// TypeSignature implements Context.
func (UnreachableContext) TypeSignature(uint32) wasm.FuncType { panic(touched("TypeSignature")) }

// CurrentFunctionIndex implements Context.
func (UnreachableContext) CurrentFunctionIndex() uint32 { panic(touched("CurrentFunctionIndex")) }

// CurrentFunctionTypeIndex implements Context.
func (UnreachableContext) CurrentFunctionTypeIndex() uint32 {
	panic(touched("CurrentFunctionTypeIndex"))
}

// IsLocal implements Context.
func (UnreachableContext) IsLocal(uint32) bool { panic(touched("IsLocal")) }

// FunctionTypeIndex implements Context.
func (UnreachableContext) FunctionTypeIndex(uint32) uint32 { panic(touched("FunctionTypeIndex")) }

// MemoryBounds implements Context.
func (UnreachableContext) MemoryBounds() (uint32, uint32, bool) { panic(touched("MemoryBounds")) }

// IsMemoryImported implements Context.
func (UnreachableContext) IsMemoryImported() bool { panic(touched("IsMemoryImported")) }

// Layout implements Context.
func (UnreachableContext) Layout() VMContextLayout { panic(touched("Layout")) }

// ReportCompiled implements Context.
func (UnreachableContext) ReportCompiled(CompiledFunction) { panic(touched("ReportCompiled")) }

func touched(name string) string {
	return fmt.Sprintf("unexpected host context call: %s", name)
}
