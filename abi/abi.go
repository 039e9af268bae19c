package abi

import (
	"github.com/wippyai/wasm-codegen/errors"
	"github.com/wippyai/wasm-codegen/wasm"
)

// Class is the machine register class a value type maps to.
type Class byte

const (
	ClassInt    Class = iota // general purpose registers
	ClassFloat               // floating point registers
	ClassVector              // 128-bit vector registers
)

func (c Class) String() string {
	switch c {
	case ClassInt:
		return "int"
	case ClassFloat:
		return "float"
	case ClassVector:
		return "vector"
	default:
		return "unknown"
	}
}

// ClassOf maps a Wasm value type to its register class. The mapping is total
// over the numeric and vector types; reference types are rejected before any
// code generation can see them.
func ClassOf(t wasm.ValType) (Class, error) {
	switch t {
	case wasm.ValI32, wasm.ValI64:
		return ClassInt, nil
	case wasm.ValF32, wasm.ValF64:
		return ClassFloat, nil
	case wasm.ValV128:
		return ClassVector, nil
	case wasm.ValFuncRef, wasm.ValExtern:
		return 0, errors.Unsupported(errors.PhaseValidate, t.String())
	default:
		return 0, errors.InvalidData(errors.PhaseValidate, "unknown value type "+t.String(), nil)
	}
}

// Width returns the in-memory size in bytes of a numeric value type.
func Width(t wasm.ValType) int {
	switch t {
	case wasm.ValI32, wasm.ValF32:
		return 4
	case wasm.ValI64, wasm.ValF64:
		return 8
	default:
		return 16
	}
}

// Reserved leading native parameters. Native parameter 0 is the callee's
// vmContext, native parameter 1 is the caller's vmContext; Wasm-declared
// parameters start at native index 2.
const (
	CalleeVMContextParam = 0
	CallerVMContextParam = 1
	WasmParamOffset      = 2
)

// RegsPerClass is how many registers of each class carry arguments or
// results. Values beyond that would spill to the stack, which this
// compiler's maturity does not lower yet.
const RegsPerClass = 8

// Reg identifies an argument/result register as (class, index-within-class).
// The ISA backend maps it to a physical register.
type Reg struct {
	Class Class
	Index uint8
}

// Signature is the native shape of one Wasm function type: the two reserved
// vmContext pointer parameters followed by the Wasm parameters, and the Wasm
// results returned directly (no hidden or indirect results).
type Signature struct {
	// Params and Results are the Wasm-declared types.
	Params  []wasm.ValType
	Results []wasm.ValType

	// ParamRegs[i] is the register carrying Wasm parameter i. Integer
	// parameters start at int register 2 because registers 0 and 1 hold
	// the vmContext pointers.
	ParamRegs []Reg

	// ResultRegs[i] is the register carrying result i. Assignment starts
	// at register 0 in each class.
	ResultRegs []Reg
}

// NumNativeParams returns the full native parameter count: the two reserved
// vmContext pointers plus every Wasm parameter.
func (s *Signature) NumNativeParams() int { return len(s.Params) + WasmParamOffset }

// NumResults returns the native return count, identical to the Wasm result
// count.
func (s *Signature) NumResults() int { return len(s.Results) }

// NewSignature shapes a Wasm function type into its native signature,
// assigning argument and result registers. Types that need registers this
// ABI does not pass in (vectors, or more values of one class than
// RegsPerClass) are unsupported-feature faults.
func NewSignature(ft wasm.FuncType) (*Signature, error) {
	s := &Signature{
		Params:  ft.Params,
		Results: ft.Results,
	}

	var err error
	s.ParamRegs, err = assign(ft.Params, WasmParamOffset, "parameter")
	if err != nil {
		return nil, err
	}
	s.ResultRegs, err = assign(ft.Results, 0, "result")
	if err != nil {
		return nil, err
	}
	return s, nil
}

func assign(types []wasm.ValType, intStart int, what string) ([]Reg, error) {
	if len(types) == 0 {
		return nil, nil
	}
	regs := make([]Reg, len(types))
	nextInt, nextFloat := intStart, 0
	for i, t := range types {
		class, err := ClassOf(t)
		if err != nil {
			return nil, err
		}
		switch class {
		case ClassInt:
			if nextInt >= RegsPerClass {
				return nil, errors.New(errors.PhaseValidate, errors.KindUnsupported).
					Op("stack-passed " + what).
					Detail("more than %d integer %ss", RegsPerClass-intStart, what).
					Build()
			}
			regs[i] = Reg{Class: ClassInt, Index: uint8(nextInt)}
			nextInt++
		case ClassFloat:
			if nextFloat >= RegsPerClass {
				return nil, errors.New(errors.PhaseValidate, errors.KindUnsupported).
					Op("stack-passed " + what).
					Detail("more than %d float %ss", RegsPerClass, what).
					Build()
			}
			regs[i] = Reg{Class: ClassFloat, Index: uint8(nextFloat)}
			nextFloat++
		default:
			return nil, errors.Unsupported(errors.PhaseValidate, "v128 "+what+" passing")
		}
	}
	return regs, nil
}
