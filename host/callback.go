package host

import (
	"fmt"

	"github.com/wippyai/wasm-codegen/wasm"
)

// CallbackContext is the production adapter: each query forwards to a host
// callback across the embedding boundary. Any nil callback is a wiring
// defect and panics on first use, matching the rule that boundary-contract
// violations are fatal.
type CallbackContext struct {
	TypeCountFn                func() uint32
	TypeSignatureFn            func(typeIndex uint32) wasm.FuncType
	CurrentFunctionIndexFn     func() uint32
	CurrentFunctionTypeIndexFn func() uint32
	IsLocalFn                  func(funcIndex uint32) bool
	FunctionTypeIndexFn        func(funcIndex uint32) uint32
	MemoryBoundsFn             func() (minPages, maxPages uint32, defined bool)
	IsMemoryImportedFn         func() bool
	LayoutFn                   func() VMContextLayout
	ReportCompiledFn           func(fn CompiledFunction)
}

var _ Context = (*CallbackContext)(nil)

// TypeCount implements Context.
func (c *CallbackContext) TypeCount() uint32 {
	if c.TypeCountFn == nil {
		panic(unwired("TypeCount"))
	}
	return c.TypeCountFn()
}

// TypeSignature implements Context.
func (c *CallbackContext) TypeSignature(typeIndex uint32) wasm.FuncType {
	if c.TypeSignatureFn == nil {
		panic(unwired("TypeSignature"))
	}
	return c.TypeSignatureFn(typeIndex)
}

// CurrentFunctionIndex implements Context.
func (c *CallbackContext) CurrentFunctionIndex() uint32 {
	if c.CurrentFunctionIndexFn == nil {
		panic(unwired("CurrentFunctionIndex"))
	}
	return c.CurrentFunctionIndexFn()
}

// CurrentFunctionTypeIndex implements Context.
func (c *CallbackContext) CurrentFunctionTypeIndex() uint32 {
	if c.CurrentFunctionTypeIndexFn == nil {
		panic(unwired("CurrentFunctionTypeIndex"))
	}
	return c.CurrentFunctionTypeIndexFn()
}

// IsLocal implements Context.
func (c *CallbackContext) IsLocal(funcIndex uint32) bool {
	if c.IsLocalFn == nil {
		panic(unwired("IsLocal"))
	}
	return c.IsLocalFn(funcIndex)
}

// FunctionTypeIndex implements Context.
func (c *CallbackContext) FunctionTypeIndex(funcIndex uint32) uint32 {
	if c.FunctionTypeIndexFn == nil {
		panic(unwired("FunctionTypeIndex"))
	}
	return c.FunctionTypeIndexFn(funcIndex)
}

// MemoryBounds implements Context.
func (c *CallbackContext) MemoryBounds() (uint32, uint32, bool) {
	if c.MemoryBoundsFn == nil {
		panic(unwired("MemoryBounds"))
	}
	return c.MemoryBoundsFn()
}

// IsMemoryImported implements Context.
func (c *CallbackContext) IsMemoryImported() bool {
	if c.IsMemoryImportedFn == nil {
		panic(unwired("IsMemoryImported"))
	}
	return c.IsMemoryImportedFn()
}

// Layout implements Context.
func (c *CallbackContext) Layout() VMContextLayout {
	if c.LayoutFn == nil {
		panic(unwired("Layout"))
	}
	return c.LayoutFn()
}

// ReportCompiled implements Context.
func (c *CallbackContext) ReportCompiled(fn CompiledFunction) {
	if c.ReportCompiledFn == nil {
		panic(unwired("ReportCompiled"))
	}
	c.ReportCompiledFn(fn)
}

func unwired(name string) string {
	return fmt.Sprintf("BUG: CallbackContext.%sFn is nil", name)
}
