package arm64

import (
	"fmt"

	"github.com/wippyai/wasm-codegen/abi"
	"github.com/wippyai/wasm-codegen/errors"
	"github.com/wippyai/wasm-codegen/isa"
	"github.com/wippyai/wasm-codegen/target"
	"github.com/wippyai/wasm-codegen/wasm"
)

// reservedSlots is the frame prefix holding the callee and caller vmContext
// pointers: [sp, #0] and [sp, #8].
const reservedSlots = 2

// Machine lowers translator slot operations to AArch64. Values live in
// 8-byte stack slots addressed off SP; registers are used only transiently
// within one lowered operation, so nothing is live in registers across
// calls or branches.
//
// Frame shape, growing upward from SP after the prologue:
//
//	[sp, #0]  callee vmContext (this function's own)
//	[sp, #8]  caller vmContext
//	[sp, #16] local 0, then remaining locals
//	...       operand stack slots
//
// The prologue is assembled at Finalize, once the high-water slot fixes the
// frame size, and prepended to the body; body-internal branches are
// PC-relative so prepending does not disturb them.
type Machine struct {
	asm    Assembler
	sig    *abi.Signature
	locals []wasm.ValType

	// maxSlot is the highest slot index touched; it sizes the frame.
	maxSlot int

	calls []localCall
}

type localCall struct {
	wordPos int
	target  uint32
}

var _ isa.Emitter = (*Machine)(nil)

// NewMachine returns a fresh emitter for one function. Both supported
// calling conventions assign arguments and results identically for the
// signatures this compiler accepts, so the convention only gates that the
// descriptor really is an arm64 one.
func NewMachine(desc target.Descriptor) (*Machine, error) {
	switch desc.CallConv {
	case target.CallConvAAPCS64, target.CallConvAppleAAPCS64:
	default:
		return nil, errors.Unsupported(errors.PhaseCodegen, string(desc.CallConv))
	}
	return &Machine{maxSlot: -1}, nil
}

// Prepare implements isa.Emitter.
func (m *Machine) Prepare(sig *abi.Signature, locals []wasm.ValType) error {
	for _, t := range locals {
		if t == wasm.ValV128 {
			return errors.Unsupported(errors.PhaseCodegen, "v128 local")
		}
		if t == wasm.ValFuncRef || t == wasm.ValExtern {
			return errors.Unsupported(errors.PhaseCodegen, t.String()+" local")
		}
	}
	m.sig = sig
	m.locals = locals
	if n := len(locals) - 1; n > m.maxSlot {
		m.maxSlot = n
	}
	return nil
}

func (m *Machine) slotOff(slot int) uint32 {
	if slot < 0 {
		panic(fmt.Sprintf("BUG: negative slot %d", slot))
	}
	if slot > m.maxSlot {
		m.maxSlot = slot
	}
	return uint32(8 * (reservedSlots + slot))
}

const maxScaled8 = 8 * 0xFFF

// loadSlotX loads a full slot into xt, routing offsets beyond the scaled
// immediate range through regAdr.
func (m *Machine) loadSlotX(rt uint8, slot int) {
	off := m.slotOff(slot)
	if off <= maxScaled8 {
		m.asm.LdrX(rt, regSP, off)
		return
	}
	m.asm.MovConst(true, regAdr, uint64(off))
	m.asm.AddExt(regAdr, regSP, regAdr)
	m.asm.LdrX(rt, regAdr, 0)
}

func (m *Machine) storeSlotX(rt uint8, slot int) {
	off := m.slotOff(slot)
	if off <= maxScaled8 {
		m.asm.StrX(rt, regSP, off)
		return
	}
	m.asm.MovConst(true, regAdr, uint64(off))
	m.asm.AddExt(regAdr, regSP, regAdr)
	m.asm.StrX(rt, regAdr, 0)
}

// slotBase leaves the address of a slot in regAdr and returns the residual
// immediate offset to use with it.
func (m *Machine) slotBase(slot int) (base uint8, off uint32) {
	off = m.slotOff(slot)
	if off <= maxScaled8 {
		return regSP, off
	}
	m.asm.MovConst(true, regAdr, uint64(off))
	m.asm.AddExt(regAdr, regSP, regAdr)
	return regAdr, 0
}

// loadVMContext loads this function's own vmContext pointer, saved by the
// prologue at [sp, #0]. The two vmContext words sit below the slot area, so
// slot addressing must never be used for them.
func (m *Machine) loadVMContext(rt uint8) {
	m.asm.LdrX(rt, regSP, 0)
}

func (m *Machine) loadSlot(t wasm.ValType, reg uint8, slot int) {
	base, off := m.slotBase(slot)
	switch t {
	case wasm.ValI32:
		m.asm.LdrW(reg, base, off)
	case wasm.ValI64:
		m.asm.LdrX(reg, base, off)
	case wasm.ValF32:
		m.asm.LdrS(reg, base, off)
	case wasm.ValF64:
		m.asm.LdrD(reg, base, off)
	default:
		panic("BUG: unexpected slot type " + t.String())
	}
}

func (m *Machine) storeSlot(t wasm.ValType, reg uint8, slot int) {
	base, off := m.slotBase(slot)
	switch t {
	case wasm.ValI32:
		m.asm.StrW(reg, base, off)
	case wasm.ValI64:
		m.asm.StrX(reg, base, off)
	case wasm.ValF32:
		m.asm.StrS(reg, base, off)
	case wasm.ValF64:
		m.asm.StrD(reg, base, off)
	default:
		panic("BUG: unexpected slot type " + t.String())
	}
}

// Const implements isa.Emitter.
func (m *Machine) Const(slot int, t wasm.ValType, bits uint64) {
	switch t {
	case wasm.ValI32:
		m.asm.MovConst(false, regT0, bits)
		m.storeSlot(t, regT0, slot)
	case wasm.ValI64:
		m.asm.MovConst(true, regT0, bits)
		m.storeSlot(t, regT0, slot)
	case wasm.ValF32:
		m.asm.MovConst(false, regT0, bits)
		m.asm.FmovToFloat(false, vecT0, regT0)
		m.storeSlot(t, vecT0, slot)
	case wasm.ValF64:
		m.asm.MovConst(true, regT0, bits)
		m.asm.FmovToFloat(true, vecT0, regT0)
		m.storeSlot(t, vecT0, slot)
	default:
		panic("BUG: constant of type " + t.String())
	}
}

// Copy implements isa.Emitter.
func (m *Machine) Copy(dst, src int) {
	if dst == src {
		return
	}
	m.loadSlotX(regT0, src)
	m.storeSlotX(regT0, dst)
}

// Binary implements isa.Emitter.
func (m *Machine) Binary(op byte, dst, lhs, rhs int) {
	switch op {
	case wasm.OpF32Add, wasm.OpF32Sub, wasm.OpF32Mul, wasm.OpF32Div,
		wasm.OpF64Add, wasm.OpF64Sub, wasm.OpF64Mul, wasm.OpF64Div:
		m.floatBinary(op, dst, lhs, rhs)
		return
	}

	is64 := op >= wasm.OpI64Add && op <= wasm.OpI64Rotr
	t := wasm.ValI32
	if is64 {
		t = wasm.ValI64
	}
	m.loadSlot(t, regT0, lhs)
	m.loadSlot(t, regT1, rhs)

	switch op {
	case wasm.OpI32Add, wasm.OpI64Add:
		m.asm.AddReg(is64, regT0, regT0, regT1)
	case wasm.OpI32Sub, wasm.OpI64Sub:
		m.asm.SubReg(is64, regT0, regT0, regT1)
	case wasm.OpI32Mul, wasm.OpI64Mul:
		m.asm.Mul(is64, regT0, regT0, regT1)
	case wasm.OpI32And, wasm.OpI64And:
		m.asm.AndReg(is64, regT0, regT0, regT1)
	case wasm.OpI32Or, wasm.OpI64Or:
		m.asm.OrrReg(is64, regT0, regT0, regT1)
	case wasm.OpI32Xor, wasm.OpI64Xor:
		m.asm.EorReg(is64, regT0, regT0, regT1)
	case wasm.OpI32Shl, wasm.OpI64Shl:
		m.asm.Lslv(is64, regT0, regT0, regT1)
	case wasm.OpI32ShrS, wasm.OpI64ShrS:
		m.asm.Asrv(is64, regT0, regT0, regT1)
	case wasm.OpI32ShrU, wasm.OpI64ShrU:
		m.asm.Lsrv(is64, regT0, regT0, regT1)
	case wasm.OpI32DivS, wasm.OpI64DivS:
		m.checkedDiv(is64, true)
	case wasm.OpI32DivU, wasm.OpI64DivU:
		m.checkedDiv(is64, false)
	default:
		panic("BUG: binary lowering of " + wasm.OpcodeName(op))
	}
	m.storeSlot(t, regT0, dst)
}

// checkedDiv divides regT0 by regT1 into regT0, trapping on a zero divisor
// and, for signed division, on MIN / -1.
func (m *Machine) checkedDiv(is64, signed bool) {
	ok := m.asm.NewLabel()
	m.asm.Cbnz(is64, regT1, ok)
	m.asm.Brk(uint16(isa.TrapDivideByZero))
	m.asm.Bind(ok)

	if signed {
		do := m.asm.NewLabel()
		m.asm.AddsImm(is64, regZR, regT1, 1) // CMN rhs, #1
		m.asm.Bcond(CondNE, do)
		if is64 {
			m.asm.MovZ(true, regT2, 0x8000, 48)
		} else {
			m.asm.MovZ(false, regT2, 0x8000, 16)
		}
		m.asm.SubsReg(is64, regZR, regT0, regT2)
		m.asm.Bcond(CondNE, do)
		m.asm.Brk(uint16(isa.TrapIntegerOverflow))
		m.asm.Bind(do)
		m.asm.SDiv(is64, regT0, regT0, regT1)
		return
	}
	m.asm.UDiv(is64, regT0, regT0, regT1)
}

func (m *Machine) floatBinary(op byte, dst, lhs, rhs int) {
	is64 := op >= wasm.OpF64Abs
	t := wasm.ValF32
	if is64 {
		t = wasm.ValF64
	}
	m.loadSlot(t, vecT0, lhs)
	m.loadSlot(t, vecT1, rhs)
	switch op {
	case wasm.OpF32Add, wasm.OpF64Add:
		m.asm.Fadd(is64, vecT0, vecT0, vecT1)
	case wasm.OpF32Sub, wasm.OpF64Sub:
		m.asm.Fsub(is64, vecT0, vecT0, vecT1)
	case wasm.OpF32Mul, wasm.OpF64Mul:
		m.asm.Fmul(is64, vecT0, vecT0, vecT1)
	case wasm.OpF32Div, wasm.OpF64Div:
		m.asm.Fdiv(is64, vecT0, vecT0, vecT1)
	default:
		panic("BUG: float binary lowering of " + wasm.OpcodeName(op))
	}
	m.storeSlot(t, vecT0, dst)
}

// intCmpCond maps an integer comparison opcode to the condition selecting
// its true outcome after CMP lhs, rhs.
func intCmpCond(op byte) Cond {
	switch op {
	case wasm.OpI32Eq, wasm.OpI64Eq:
		return CondEQ
	case wasm.OpI32Ne, wasm.OpI64Ne:
		return CondNE
	case wasm.OpI32LtS, wasm.OpI64LtS:
		return CondLT
	case wasm.OpI32LtU, wasm.OpI64LtU:
		return CondLO
	case wasm.OpI32GtS, wasm.OpI64GtS:
		return CondGT
	case wasm.OpI32GtU, wasm.OpI64GtU:
		return CondHI
	case wasm.OpI32LeS, wasm.OpI64LeS:
		return CondLE
	case wasm.OpI32LeU, wasm.OpI64LeU:
		return CondLS
	case wasm.OpI32GeS, wasm.OpI64GeS:
		return CondGE
	case wasm.OpI32GeU, wasm.OpI64GeU:
		return CondHS
	default:
		panic("BUG: integer comparison " + wasm.OpcodeName(op))
	}
}

// floatCmpCond maps a float comparison opcode to a condition that is false
// on unordered inputs, except ne which must be true for NaN operands.
func floatCmpCond(op byte) Cond {
	switch op {
	case wasm.OpF32Eq, wasm.OpF64Eq:
		return CondEQ
	case wasm.OpF32Ne, wasm.OpF64Ne:
		return CondNE
	case wasm.OpF32Lt, wasm.OpF64Lt:
		return CondMI
	case wasm.OpF32Gt, wasm.OpF64Gt:
		return CondGT
	case wasm.OpF32Le, wasm.OpF64Le:
		return CondLS
	case wasm.OpF32Ge, wasm.OpF64Ge:
		return CondGE
	default:
		panic("BUG: float comparison " + wasm.OpcodeName(op))
	}
}

// Compare implements isa.Emitter.
func (m *Machine) Compare(op byte, dst, lhs, rhs int) {
	switch {
	case op >= wasm.OpI32Eq && op <= wasm.OpI32GeU:
		m.loadSlot(wasm.ValI32, regT0, lhs)
		m.loadSlot(wasm.ValI32, regT1, rhs)
		m.asm.SubsReg(false, regZR, regT0, regT1)
		m.asm.Cset(regT0, intCmpCond(op))
	case op >= wasm.OpI64Eq && op <= wasm.OpI64GeU:
		m.loadSlot(wasm.ValI64, regT0, lhs)
		m.loadSlot(wasm.ValI64, regT1, rhs)
		m.asm.SubsReg(true, regZR, regT0, regT1)
		m.asm.Cset(regT0, intCmpCond(op))
	case op >= wasm.OpF32Eq && op <= wasm.OpF32Ge:
		m.loadSlot(wasm.ValF32, vecT0, lhs)
		m.loadSlot(wasm.ValF32, vecT1, rhs)
		m.asm.Fcmp(false, vecT0, vecT1)
		m.asm.Cset(regT0, floatCmpCond(op))
	case op >= wasm.OpF64Eq && op <= wasm.OpF64Ge:
		m.loadSlot(wasm.ValF64, vecT0, lhs)
		m.loadSlot(wasm.ValF64, vecT1, rhs)
		m.asm.Fcmp(true, vecT0, vecT1)
		m.asm.Cset(regT0, floatCmpCond(op))
	default:
		panic("BUG: comparison lowering of " + wasm.OpcodeName(op))
	}
	m.storeSlot(wasm.ValI32, regT0, dst)
}

// Eqz implements isa.Emitter.
func (m *Machine) Eqz(op byte, dst, src int) {
	is64 := op == wasm.OpI64Eqz
	if is64 {
		m.loadSlot(wasm.ValI64, regT0, src)
	} else {
		m.loadSlot(wasm.ValI32, regT0, src)
	}
	m.asm.SubsImm(is64, regZR, regT0, 0)
	m.asm.Cset(regT0, CondEQ)
	m.storeSlot(wasm.ValI32, regT0, dst)
}

// Convert implements isa.Emitter.
func (m *Machine) Convert(op byte, dst, src int) {
	switch op {
	case wasm.OpI32WrapI64:
		m.loadSlot(wasm.ValI32, regT0, src)
		m.storeSlot(wasm.ValI32, regT0, dst)
	case wasm.OpI64ExtendI32S:
		m.loadSlot(wasm.ValI32, regT0, src)
		m.asm.Sxtw(regT0, regT0)
		m.storeSlot(wasm.ValI64, regT0, dst)
	case wasm.OpI64ExtendI32U:
		// LDR W already zero-extends.
		m.loadSlot(wasm.ValI32, regT0, src)
		m.storeSlot(wasm.ValI64, regT0, dst)
	default:
		panic("BUG: conversion lowering of " + wasm.OpcodeName(op))
	}
}

// memoryDescriptor loads into regVM the address holding the memory's base
// and length fields and returns their offsets relative to it. Base and
// bound are reloaded from here on every access.
func (m *Machine) memoryDescriptor(mem isa.MemoryPlan) (baseOff, lenOff uint32) {
	m.loadVMContext(regVM)
	switch mem.Kind {
	case isa.MemoryLocal:
		return uint32(mem.VMContextOffset + mem.BaseOffset), uint32(mem.VMContextOffset + mem.LengthOffset)
	case isa.MemoryImported:
		m.ldrField(regVM, regVM, mem.VMContextOffset)
		return uint32(mem.BaseOffset), uint32(mem.LengthOffset)
	default:
		panic("BUG: memory access without a memory")
	}
}

// ldrField loads a pointer-sized field at rn+off, tolerating offsets beyond
// the scaled immediate range.
func (m *Machine) ldrField(rt, rn uint8, off int32) {
	if off >= 0 && uint32(off) <= maxScaled8 && off%8 == 0 {
		m.asm.LdrX(rt, rn, uint32(off))
		return
	}
	m.asm.MovConst(true, regAdr, uint64(uint32(off)))
	m.asm.AddReg(true, regAdr, rn, regAdr)
	m.asm.LdrX(rt, regAdr, 0)
}

func accessSize(op byte) uint32 {
	switch op {
	case wasm.OpI32Load, wasm.OpF32Load, wasm.OpI32Store, wasm.OpF32Store:
		return 4
	case wasm.OpI64Load, wasm.OpF64Load, wasm.OpI64Store, wasm.OpF64Store:
		return 8
	default:
		panic("BUG: memory lowering of " + wasm.OpcodeName(op))
	}
}

// memoryAddress bounds-checks index+offset+size against the current byte
// length and leaves the effective address in regT3. The index slot holds an
// i32; loading it as W zero-extends, so the 64-bit end-of-access sum cannot
// wrap.
func (m *Machine) memoryAddress(op byte, addr int, offset uint32, mem isa.MemoryPlan) {
	baseOff, lenOff := m.memoryDescriptor(mem)

	m.loadSlot(wasm.ValI32, regT0, addr)
	m.ldrField(regT1, regVM, int32(lenOff))

	end := uint64(offset) + uint64(accessSize(op))
	if end <= 0xFFF {
		m.asm.AddImm(true, regT2, regT0, uint32(end), false)
	} else {
		m.asm.MovConst(true, regT2, end)
		m.asm.AddReg(true, regT2, regT0, regT2)
	}
	ok := m.asm.NewLabel()
	m.asm.SubsReg(true, regZR, regT2, regT1)
	m.asm.Bcond(CondLS, ok)
	m.asm.Brk(uint16(isa.TrapMemoryOutOfBounds))
	m.asm.Bind(ok)

	m.ldrField(regT3, regVM, int32(baseOff))
	m.asm.AddReg(true, regT3, regT3, regT0)
	if offset != 0 {
		if offset <= 0xFFF {
			m.asm.AddImm(true, regT3, regT3, offset, false)
		} else {
			m.asm.MovConst(true, regAdr, uint64(offset))
			m.asm.AddReg(true, regT3, regT3, regAdr)
		}
	}
}

// Load implements isa.Emitter.
func (m *Machine) Load(op byte, dst, addr int, offset uint32, mem isa.MemoryPlan) {
	m.memoryAddress(op, addr, offset, mem)
	switch op {
	case wasm.OpI32Load:
		m.asm.LdrW(regT0, regT3, 0)
		m.storeSlot(wasm.ValI32, regT0, dst)
	case wasm.OpI64Load:
		m.asm.LdrX(regT0, regT3, 0)
		m.storeSlot(wasm.ValI64, regT0, dst)
	case wasm.OpF32Load:
		m.asm.LdrS(vecT0, regT3, 0)
		m.storeSlot(wasm.ValF32, vecT0, dst)
	case wasm.OpF64Load:
		m.asm.LdrD(vecT0, regT3, 0)
		m.storeSlot(wasm.ValF64, vecT0, dst)
	}
}

// Store implements isa.Emitter.
func (m *Machine) Store(op byte, src, addr int, offset uint32, mem isa.MemoryPlan) {
	m.memoryAddress(op, addr, offset, mem)
	switch op {
	case wasm.OpI32Store:
		m.loadSlot(wasm.ValI32, regT0, src)
		m.asm.StrW(regT0, regT3, 0)
	case wasm.OpI64Store:
		m.loadSlot(wasm.ValI64, regT0, src)
		m.asm.StrX(regT0, regT3, 0)
	case wasm.OpF32Store:
		m.loadSlot(wasm.ValF32, vecT0, src)
		m.asm.StrS(vecT0, regT3, 0)
	case wasm.OpF64Store:
		m.loadSlot(wasm.ValF64, vecT0, src)
		m.asm.StrD(vecT0, regT3, 0)
	}
}

// Trap implements isa.Emitter.
func (m *Machine) Trap(code isa.TrapCode) {
	m.asm.Brk(uint16(code))
}

// NewLabel implements isa.Emitter.
func (m *Machine) NewLabel() isa.Label { return isa.Label(m.asm.NewLabel()) }

// Bind implements isa.Emitter.
func (m *Machine) Bind(l isa.Label) { m.asm.Bind(Label(l)) }

// Br implements isa.Emitter.
func (m *Machine) Br(l isa.Label) { m.asm.B(Label(l)) }

// BrIfZero implements isa.Emitter.
func (m *Machine) BrIfZero(cond int, l isa.Label) {
	m.loadSlot(wasm.ValI32, regT0, cond)
	m.asm.Cbz(false, regT0, Label(l))
}

// BrIfNonZero implements isa.Emitter.
func (m *Machine) BrIfNonZero(cond int, l isa.Label) {
	m.loadSlot(wasm.ValI32, regT0, cond)
	m.asm.Cbnz(false, regT0, Label(l))
}

func physReg(r abi.Reg) uint8 { return r.Index }

// loadArgs moves call arguments from slots into their registers. Argument
// registers (x2.. and v0..) are disjoint from the scratch set, so slot
// loads cannot clobber already-placed arguments.
func (m *Machine) loadArgs(sig *abi.Signature, argsBase int) {
	for i, r := range sig.ParamRegs {
		m.loadSlot(sig.Params[i], physReg(r), argsBase+i)
	}
}

func (m *Machine) storeResults(sig *abi.Signature, retBase int) {
	for i, r := range sig.ResultRegs {
		m.storeSlot(sig.Results[i], physReg(r), retBase+i)
	}
}

// CallLocal implements isa.Emitter. A local callee shares this function's
// instance, so its own vmContext doubles as both vmContext arguments.
func (m *Machine) CallLocal(targetFn uint32, sig *abi.Signature, argsBase, retBase int) {
	m.loadArgs(sig, argsBase)
	m.loadVMContext(0)
	m.asm.MovReg(1, 0)
	pos := m.asm.Bl()
	m.calls = append(m.calls, localCall{wordPos: pos, target: targetFn})
	m.storeResults(sig, retBase)
}

// CallImported implements isa.Emitter. The entry point and callee vmContext
// are reloaded from the caller's vmContext at every call site.
func (m *Machine) CallImported(plan isa.ImportedCallPlan, sig *abi.Signature, argsBase, retBase int) {
	m.loadVMContext(regVM)
	m.loadArgs(sig, argsBase)
	m.ldrField(regBLR, regVM, plan.EntryOffset)
	m.ldrField(0, regVM, plan.VMContextOffset)
	m.asm.MovReg(1, regVM)
	m.asm.Blr(regBLR)
	m.storeResults(sig, retBase)
}

// Return implements isa.Emitter.
func (m *Machine) Return(resultsBase int) {
	for i, r := range m.sig.ResultRegs {
		m.loadSlot(m.sig.Results[i], physReg(r), resultsBase+i)
	}
	m.asm.AddImm(true, regSP, regFP, 0, false) // MOV sp, x29
	m.asm.LdpPost(regFP, regLR, regSP, 16)
	m.asm.Ret()
}

// Finalize implements isa.Emitter.
func (m *Machine) Finalize() ([]byte, []isa.CallSite, error) {
	if m.sig == nil {
		return nil, nil, errors.Contract(errors.PhaseCodegen, "Finalize before Prepare")
	}
	if err := m.asm.Resolve(); err != nil {
		return nil, nil, errors.InvalidData(errors.PhaseCodegen, "branch resolution failed", err)
	}

	frame := uint32(8*(reservedSlots+m.maxSlot+1)+15) &^ 15

	var p Assembler
	p.StpPre(regFP, regLR, regSP, -16)
	p.AddImm(true, regFP, regSP, 0, false) // MOV x29, sp
	if hi := frame >> 12; hi != 0 {
		p.SubImm(true, regSP, regSP, hi, true)
	}
	if lo := frame & 0xFFF; lo != 0 {
		p.SubImm(true, regSP, regSP, lo, false)
	}
	p.StrX(0, regSP, 0)
	p.StrX(1, regSP, 8)

	for i, r := range m.sig.ParamRegs {
		spillToSlot(&p, m.sig.Params[i], physReg(r), i)
	}
	for i := len(m.sig.Params); i < len(m.locals); i++ {
		zeroSlot(&p, i)
	}

	full := Assembler{words: append(p.Words(), m.asm.Words()...)}
	code := full.Bytes()

	sites := make([]isa.CallSite, len(m.calls))
	for i, c := range m.calls {
		sites[i] = isa.CallSite{
			Offset: uint32(4 * (p.Len() + c.wordPos)),
			Target: c.target,
		}
	}
	return code, sites, nil
}

// spillToSlot stores a parameter register into its local slot from the
// prologue assembler. Slot offsets are final here because the frame size is
// fixed before the prologue is built.
func spillToSlot(p *Assembler, t wasm.ValType, reg uint8, slot int) {
	off := uint32(8 * (reservedSlots + slot))
	base := uint8(regSP)
	if off > maxScaled8 {
		p.MovConst(true, regAdr, uint64(off))
		p.AddExt(regAdr, regSP, regAdr)
		base, off = regAdr, 0
	}
	switch t {
	case wasm.ValI32:
		p.StrW(reg, base, off)
	case wasm.ValI64:
		p.StrX(reg, base, off)
	case wasm.ValF32:
		p.StrS(reg, base, off)
	case wasm.ValF64:
		p.StrD(reg, base, off)
	}
}

func zeroSlot(p *Assembler, slot int) {
	off := uint32(8 * (reservedSlots + slot))
	if off > maxScaled8 {
		p.MovConst(true, regAdr, uint64(off))
		p.AddExt(regAdr, regSP, regAdr)
		p.StrX(regZR, regAdr, 0)
		return
	}
	p.StrX(regZR, regSP, off)
}
