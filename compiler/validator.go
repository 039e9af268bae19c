package compiler

import (
	"github.com/wippyai/wasm-codegen/abi"
	"github.com/wippyai/wasm-codegen/errors"
	"github.com/wippyai/wasm-codegen/host"
	"github.com/wippyai/wasm-codegen/wasm"
)

// Validator is the per-session type cache. It answers every type query the
// translation needs while consulting the host Context at most once per type
// index, and it checks the host's answers before anything downstream
// depends on them.
//
// A Validator lives for one compilation session and is not safe for
// concurrent use.
type Validator struct {
	ctx   host.Context
	count uint32
	types map[uint32]wasm.FuncType
	sigs  map[uint32]*abi.Signature
}

// NewValidator starts a session against ctx.
func NewValidator(ctx host.Context) *Validator {
	return &Validator{
		ctx:   ctx,
		count: ctx.TypeCount(),
		types: make(map[uint32]wasm.FuncType),
		sigs:  make(map[uint32]*abi.Signature),
	}
}

// TypeCount returns the number of declared function types.
func (v *Validator) TypeCount() uint32 { return v.count }

// FuncTypeOf returns the declared function type at typeIndex, fetching it
// from the host on first use and from the session cache afterwards.
func (v *Validator) FuncTypeOf(typeIndex uint32) (wasm.FuncType, error) {
	if typeIndex >= v.count {
		return wasm.FuncType{}, errors.OutOfBounds(errors.PhaseValidate, "type", int(typeIndex), int(v.count))
	}
	if ft, ok := v.types[typeIndex]; ok {
		return ft, nil
	}

	ft := v.ctx.TypeSignature(typeIndex)
	for _, t := range ft.Params {
		if !t.Valid() {
			return wasm.FuncType{}, errors.Contract(errors.PhaseValidate,
				"type %d declares invalid parameter type 0x%02x", typeIndex, byte(t))
		}
	}
	for _, t := range ft.Results {
		if !t.Valid() {
			return wasm.FuncType{}, errors.Contract(errors.PhaseValidate,
				"type %d declares invalid result type 0x%02x", typeIndex, byte(t))
		}
	}

	v.types[typeIndex] = ft
	return ft, nil
}

// SignatureOf returns the native signature for the declared type at
// typeIndex, memoized alongside the type itself.
func (v *Validator) SignatureOf(typeIndex uint32) (*abi.Signature, error) {
	if sig, ok := v.sigs[typeIndex]; ok {
		return sig, nil
	}
	ft, err := v.FuncTypeOf(typeIndex)
	if err != nil {
		return nil, err
	}
	sig, err := abi.NewSignature(ft)
	if err != nil {
		return nil, err
	}
	v.sigs[typeIndex] = sig
	return sig, nil
}

// The remaining module index spaces have no lowering yet. Each query is a
// single well-defined unsupported-feature fault so hosts can distinguish
// "not built" from "broken".

// TableType reports that table use is not lowered.
func (v *Validator) TableType(uint32) error {
	return errors.Unsupported(errors.PhaseValidate, "table")
}

// GlobalType reports that global use is not lowered.
func (v *Validator) GlobalType(uint32) error {
	return errors.Unsupported(errors.PhaseValidate, "global")
}

// TagType reports that exception tags are not lowered.
func (v *Validator) TagType(uint32) error {
	return errors.Unsupported(errors.PhaseValidate, "exception tag")
}
