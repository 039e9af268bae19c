package compiler

import (
	"github.com/wippyai/wasm-codegen/abi"
	"github.com/wippyai/wasm-codegen/errors"
	"github.com/wippyai/wasm-codegen/host"
	"github.com/wippyai/wasm-codegen/isa"
	"github.com/wippyai/wasm-codegen/wasm"
)

// FuncEnvironment resolves module-level references while one function is
// translated: how linear memory is reached through the vmContext and how
// each callee is invoked. It is rebuilt per compilation from the host's
// layout and metadata, and cross-checks the two against each other.
type FuncEnvironment struct {
	ctx    host.Context
	types  *Validator
	layout host.VMContextLayout
}

// NewFuncEnvironment builds the environment for one compilation session.
func NewFuncEnvironment(ctx host.Context, types *Validator) *FuncEnvironment {
	return &FuncEnvironment{ctx: ctx, types: types, layout: ctx.Layout()}
}

// MemoryPlan derives where compiled code finds the memory base and byte
// length. The plan is fixed per session; base and bound themselves are not,
// which is why the emitter reloads them on every access.
func (e *FuncEnvironment) MemoryPlan() (isa.MemoryPlan, error) {
	_, _, defined := e.ctx.MemoryBounds()
	if !defined {
		return isa.MemoryPlan{Kind: isa.MemoryNone}, nil
	}

	if e.ctx.IsMemoryImported() {
		if e.layout.ImportedMemoryOffset < 0 {
			return isa.MemoryPlan{}, errors.Contract(errors.PhaseHost,
				"memory is imported but layout has no imported-memory slot")
		}
		return isa.MemoryPlan{
			Kind:            isa.MemoryImported,
			VMContextOffset: e.layout.ImportedMemoryOffset,
			BaseOffset:      e.layout.MemoryInstanceBaseOffset,
			LengthOffset:    e.layout.MemoryInstanceLengthOffset,
		}, nil
	}

	if e.layout.LocalMemoryOffset < 0 {
		return isa.MemoryPlan{}, errors.Contract(errors.PhaseHost,
			"memory is local but layout has no local-memory slot")
	}
	return isa.MemoryPlan{
		Kind:            isa.MemoryLocal,
		VMContextOffset: e.layout.LocalMemoryOffset,
		BaseOffset:      host.LocalMemoryBaseOffset,
		LengthOffset:    host.LocalMemoryLengthOffset,
	}, nil
}

// CallPlan describes how to invoke one callee.
type CallPlan struct {
	Type wasm.FuncType
	Sig  *abi.Signature

	// Local is true for functions defined in this module: a direct,
	// relocatable call passing the caller's own vmContext as both
	// vmContext arguments.
	Local bool

	// Imported holds the vmContext offsets of the entry point and callee
	// vmContext when Local is false.
	Imported isa.ImportedCallPlan
}

// CallPlanFor resolves funcIndex into a call plan. Imported functions
// occupy the front of the function index space, so the function index
// doubles as the import ordinal.
func (e *FuncEnvironment) CallPlanFor(funcIndex uint32) (CallPlan, error) {
	typeIndex := e.ctx.FunctionTypeIndex(funcIndex)
	ft, err := e.types.FuncTypeOf(typeIndex)
	if err != nil {
		return CallPlan{}, err
	}
	sig, err := e.types.SignatureOf(typeIndex)
	if err != nil {
		return CallPlan{}, err
	}

	plan := CallPlan{Type: ft, Sig: sig, Local: e.ctx.IsLocal(funcIndex)}
	if !plan.Local {
		base := e.layout.ImportedFunctionOffset(funcIndex)
		plan.Imported = isa.ImportedCallPlan{
			EntryOffset:     base + host.ImportedFunctionEntryOffset,
			VMContextOffset: base + host.ImportedFunctionVMCtxOffset,
		}
	}
	return plan, nil
}
