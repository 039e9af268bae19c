package arm64

import (
	"encoding/binary"
	"fmt"
)

// Register numbers. 31 encodes XZR/WZR in register operands and SP in
// base-address and add/sub-immediate operands.
const (
	regFP  = 29
	regLR  = 30
	regZR  = 31
	regSP  = 31
	regVM  = 9  // current function's vmContext during memory and call lowering
	regT0  = 10 // primary scratch
	regT1  = 11
	regT2  = 12
	regT3  = 13
	regAdr = 15 // wide-offset address computation
	regBLR = 16 // indirect call target
	vecT0  = 16 // primary FP scratch
	vecT1  = 17
)

// Cond is an AArch64 condition code.
type Cond uint8

const (
	CondEQ Cond = iota
	CondNE
	CondHS
	CondLO
	CondMI
	CondPL
	CondVS
	CondVC
	CondHI
	CondLS
	CondGE
	CondLT
	CondGT
	CondLE
	CondAL
)

// Invert returns the condition testing the opposite outcome.
func (c Cond) Invert() Cond { return c ^ 1 }

type fixupKind byte

const (
	fixupImm26 fixupKind = iota // B, BL: bits [25:0]
	fixupImm19                  // B.cond, CBZ, CBNZ: bits [23:5]
)

type fixup struct {
	pos   int
	label Label
	kind  fixupKind
}

// Label is a branch target inside one assembler's stream.
type Label int

// Assembler builds a sequence of AArch64 instruction words with deferred
// branch resolution. Word positions are instruction indices, not byte
// offsets.
type Assembler struct {
	words  []uint32
	labels []int // word position, or -1 while unbound
	fixups []fixup
}

// Len returns the number of instruction words emitted so far.
func (a *Assembler) Len() int { return len(a.words) }

// Words exposes the raw instruction words for inspection.
func (a *Assembler) Words() []uint32 { return a.words }

func (a *Assembler) word(w uint32) int {
	a.words = append(a.words, w)
	return len(a.words) - 1
}

// NewLabel allocates an unbound label.
func (a *Assembler) NewLabel() Label {
	a.labels = append(a.labels, -1)
	return Label(len(a.labels) - 1)
}

// Bind fixes l to the next emitted instruction. Binding twice is a defect.
func (a *Assembler) Bind(l Label) {
	if a.labels[l] != -1 {
		panic(fmt.Sprintf("BUG: label %d bound twice", l))
	}
	a.labels[l] = len(a.words)
}

// Resolve patches every recorded branch with its label's final position.
func (a *Assembler) Resolve() error {
	for _, f := range a.fixups {
		target := a.labels[f.label]
		if target == -1 {
			return fmt.Errorf("unresolved label %d referenced at word %d", f.label, f.pos)
		}
		delta := target - f.pos
		switch f.kind {
		case fixupImm26:
			a.words[f.pos] |= uint32(delta) & 0x03FF_FFFF
		case fixupImm19:
			a.words[f.pos] |= (uint32(delta) & 0x7_FFFF) << 5
		}
	}
	a.fixups = a.fixups[:0]
	return nil
}

// Bytes serializes the words little-endian.
func (a *Assembler) Bytes() []byte {
	out := make([]byte, 4*len(a.words))
	for i, w := range a.words {
		binary.LittleEndian.PutUint32(out[4*i:], w)
	}
	return out
}

func sf(is64 bool) uint32 {
	if is64 {
		return 1 << 31
	}
	return 0
}

// Move-wide immediates.

// MovZ emits MOVZ rd, #imm16, LSL #shift. shift is 0, 16, 32 or 48.
func (a *Assembler) MovZ(is64 bool, rd uint8, imm16 uint16, shift uint8) {
	a.word(sf(is64) | 0x5280_0000 | uint32(shift/16)<<21 | uint32(imm16)<<5 | uint32(rd))
}

// MovK emits MOVK rd, #imm16, LSL #shift.
func (a *Assembler) MovK(is64 bool, rd uint8, imm16 uint16, shift uint8) {
	a.word(sf(is64) | 0x7280_0000 | uint32(shift/16)<<21 | uint32(imm16)<<5 | uint32(rd))
}

// MovN emits MOVN rd, #imm16, LSL #shift; rd becomes ^(imm16 << shift).
func (a *Assembler) MovN(is64 bool, rd uint8, imm16 uint16, shift uint8) {
	a.word(sf(is64) | 0x1280_0000 | uint32(shift/16)<<21 | uint32(imm16)<<5 | uint32(rd))
}

// MovConst materializes an arbitrary constant with the shortest MOVZ/MOVN
// plus MOVK sequence.
func (a *Assembler) MovConst(is64 bool, rd uint8, v uint64) {
	n := 2
	if is64 {
		n = 4
	} else {
		v = uint64(uint32(v))
	}

	zeros, ones := 0, 0
	for i := 0; i < n; i++ {
		switch uint16(v >> (16 * i)) {
		case 0:
			zeros++
		case 0xFFFF:
			ones++
		}
	}

	if ones > zeros {
		first := -1
		for i := 0; i < n; i++ {
			if uint16(v>>(16*i)) != 0xFFFF {
				first = i
				break
			}
		}
		if first == -1 {
			first = 0
		}
		a.MovN(is64, rd, ^uint16(v>>(16*first)), uint8(16*first))
		for i := 0; i < n; i++ {
			if i == first {
				continue
			}
			if hw := uint16(v >> (16 * i)); hw != 0xFFFF {
				a.MovK(is64, rd, hw, uint8(16*i))
			}
		}
		return
	}

	first := -1
	for i := 0; i < n; i++ {
		if uint16(v>>(16*i)) != 0 {
			first = i
			break
		}
	}
	if first == -1 {
		a.MovZ(is64, rd, 0, 0)
		return
	}
	a.MovZ(is64, rd, uint16(v>>(16*first)), uint8(16*first))
	for i := first + 1; i < n; i++ {
		if hw := uint16(v >> (16 * i)); hw != 0 {
			a.MovK(is64, rd, hw, uint8(16*i))
		}
	}
}

// MovReg emits MOV rd, rm as ORR rd, xzr, rm. Neither register may be SP.
func (a *Assembler) MovReg(rd, rm uint8) {
	a.word(0xAA00_0000 | uint32(rm)<<16 | uint32(regZR)<<5 | uint32(rd))
}

// Arithmetic, register forms.

// AddReg emits ADD rd, rn, rm (shifted register, no shift).
func (a *Assembler) AddReg(is64 bool, rd, rn, rm uint8) {
	a.word(sf(is64) | 0x0B00_0000 | uint32(rm)<<16 | uint32(rn)<<5 | uint32(rd))
}

// AddExt emits ADD rd, rn, rm, UXTX. Unlike AddReg it accepts SP as rd or
// rn, which wide stack-slot addressing needs.
func (a *Assembler) AddExt(rd, rn, rm uint8) {
	a.word(0x8B20_0000 | uint32(rm)<<16 | 0b011<<13 | uint32(rn)<<5 | uint32(rd))
}

// SubReg emits SUB rd, rn, rm.
func (a *Assembler) SubReg(is64 bool, rd, rn, rm uint8) {
	a.word(sf(is64) | 0x4B00_0000 | uint32(rm)<<16 | uint32(rn)<<5 | uint32(rd))
}

// SubsReg emits SUBS rd, rn, rm; with rd == 31 this is CMP rn, rm.
func (a *Assembler) SubsReg(is64 bool, rd, rn, rm uint8) {
	a.word(sf(is64) | 0x6B00_0000 | uint32(rm)<<16 | uint32(rn)<<5 | uint32(rd))
}

// Arithmetic, immediate forms. imm12 must be in [0, 4095]; lsl12 shifts it
// left by 12. Register 31 means SP here.

// AddImm emits ADD rd, rn, #imm12. With imm12 == 0 this is the canonical
// MOV to or from SP.
func (a *Assembler) AddImm(is64 bool, rd, rn uint8, imm12 uint32, lsl12 bool) {
	a.word(sf(is64) | 0x1100_0000 | shiftBit(lsl12) | imm12<<10 | uint32(rn)<<5 | uint32(rd))
}

// SubImm emits SUB rd, rn, #imm12.
func (a *Assembler) SubImm(is64 bool, rd, rn uint8, imm12 uint32, lsl12 bool) {
	a.word(sf(is64) | 0x5100_0000 | shiftBit(lsl12) | imm12<<10 | uint32(rn)<<5 | uint32(rd))
}

// AddsImm emits ADDS rd, rn, #imm12; with rd == 31 this is CMN rn, #imm12.
func (a *Assembler) AddsImm(is64 bool, rd, rn uint8, imm12 uint32) {
	a.word(sf(is64) | 0x3100_0000 | imm12<<10 | uint32(rn)<<5 | uint32(rd))
}

// SubsImm emits SUBS rd, rn, #imm12; with rd == 31 this is CMP rn, #imm12.
func (a *Assembler) SubsImm(is64 bool, rd, rn uint8, imm12 uint32) {
	a.word(sf(is64) | 0x7100_0000 | imm12<<10 | uint32(rn)<<5 | uint32(rd))
}

func shiftBit(lsl12 bool) uint32 {
	if lsl12 {
		return 1 << 22
	}
	return 0
}

// Mul emits MUL rd, rn, rm as MADD with the zero register addend.
func (a *Assembler) Mul(is64 bool, rd, rn, rm uint8) {
	a.word(sf(is64) | 0x1B00_0000 | uint32(rm)<<16 | uint32(regZR)<<10 | uint32(rn)<<5 | uint32(rd))
}

// SDiv emits SDIV rd, rn, rm.
func (a *Assembler) SDiv(is64 bool, rd, rn, rm uint8) {
	a.word(sf(is64) | 0x1AC0_0C00 | uint32(rm)<<16 | uint32(rn)<<5 | uint32(rd))
}

// UDiv emits UDIV rd, rn, rm.
func (a *Assembler) UDiv(is64 bool, rd, rn, rm uint8) {
	a.word(sf(is64) | 0x1AC0_0800 | uint32(rm)<<16 | uint32(rn)<<5 | uint32(rd))
}

// Bitwise and shifts.

// AndReg emits AND rd, rn, rm.
func (a *Assembler) AndReg(is64 bool, rd, rn, rm uint8) {
	a.word(sf(is64) | 0x0A00_0000 | uint32(rm)<<16 | uint32(rn)<<5 | uint32(rd))
}

// OrrReg emits ORR rd, rn, rm.
func (a *Assembler) OrrReg(is64 bool, rd, rn, rm uint8) {
	a.word(sf(is64) | 0x2A00_0000 | uint32(rm)<<16 | uint32(rn)<<5 | uint32(rd))
}

// EorReg emits EOR rd, rn, rm.
func (a *Assembler) EorReg(is64 bool, rd, rn, rm uint8) {
	a.word(sf(is64) | 0x4A00_0000 | uint32(rm)<<16 | uint32(rn)<<5 | uint32(rd))
}

// Lslv emits LSLV rd, rn, rm. The shift amount is taken modulo the register
// width, matching Wasm shift semantics.
func (a *Assembler) Lslv(is64 bool, rd, rn, rm uint8) {
	a.word(sf(is64) | 0x1AC0_2000 | uint32(rm)<<16 | uint32(rn)<<5 | uint32(rd))
}

// Lsrv emits LSRV rd, rn, rm.
func (a *Assembler) Lsrv(is64 bool, rd, rn, rm uint8) {
	a.word(sf(is64) | 0x1AC0_2400 | uint32(rm)<<16 | uint32(rn)<<5 | uint32(rd))
}

// Asrv emits ASRV rd, rn, rm.
func (a *Assembler) Asrv(is64 bool, rd, rn, rm uint8) {
	a.word(sf(is64) | 0x1AC0_2800 | uint32(rm)<<16 | uint32(rn)<<5 | uint32(rd))
}

// Sxtw emits SXTW rd, wn.
func (a *Assembler) Sxtw(rd, rn uint8) {
	a.word(0x9340_7C00 | uint32(rn)<<5 | uint32(rd))
}

// Cset emits CSET wd, cond as CSINC wd, wzr, wzr, inv(cond).
func (a *Assembler) Cset(rd uint8, c Cond) {
	a.word(0x1A80_0400 | uint32(regZR)<<16 | uint32(c.Invert())<<12 | uint32(regZR)<<5 | uint32(rd))
}

// Loads and stores, unsigned scaled offset. off is in bytes and must be a
// non-negative multiple of the access size within the 12-bit scaled range;
// callers route wider offsets through address arithmetic.

// LdrX emits LDR xt, [rn, #off].
func (a *Assembler) LdrX(rt, rn uint8, off uint32) {
	a.word(0xF940_0000 | scaled(off, 8)<<10 | uint32(rn)<<5 | uint32(rt))
}

// StrX emits STR xt, [rn, #off]. rt == 31 stores the zero register.
func (a *Assembler) StrX(rt, rn uint8, off uint32) {
	a.word(0xF900_0000 | scaled(off, 8)<<10 | uint32(rn)<<5 | uint32(rt))
}

// LdrW emits LDR wt, [rn, #off], zero-extending into the full register.
func (a *Assembler) LdrW(rt, rn uint8, off uint32) {
	a.word(0xB940_0000 | scaled(off, 4)<<10 | uint32(rn)<<5 | uint32(rt))
}

// StrW emits STR wt, [rn, #off].
func (a *Assembler) StrW(rt, rn uint8, off uint32) {
	a.word(0xB900_0000 | scaled(off, 4)<<10 | uint32(rn)<<5 | uint32(rt))
}

// LdrS emits LDR st, [rn, #off] (32-bit FP).
func (a *Assembler) LdrS(vt, rn uint8, off uint32) {
	a.word(0xBD40_0000 | scaled(off, 4)<<10 | uint32(rn)<<5 | uint32(vt))
}

// StrS emits STR st, [rn, #off].
func (a *Assembler) StrS(vt, rn uint8, off uint32) {
	a.word(0xBD00_0000 | scaled(off, 4)<<10 | uint32(rn)<<5 | uint32(vt))
}

// LdrD emits LDR dt, [rn, #off] (64-bit FP).
func (a *Assembler) LdrD(vt, rn uint8, off uint32) {
	a.word(0xFD40_0000 | scaled(off, 8)<<10 | uint32(rn)<<5 | uint32(vt))
}

// StrD emits STR dt, [rn, #off].
func (a *Assembler) StrD(vt, rn uint8, off uint32) {
	a.word(0xFD00_0000 | scaled(off, 8)<<10 | uint32(rn)<<5 | uint32(vt))
}

func scaled(off uint32, size uint32) uint32 {
	if off%size != 0 || off/size > 0xFFF {
		panic(fmt.Sprintf("BUG: offset %d not encodable scaled by %d", off, size))
	}
	return off / size
}

// StpPre emits STP rt, rt2, [rn, #off]! with pre-index writeback. off is in
// bytes, a multiple of 8 in [-512, 504].
func (a *Assembler) StpPre(rt, rt2, rn uint8, off int32) {
	a.word(0xA980_0000 | pairImm7(off)<<15 | uint32(rt2)<<10 | uint32(rn)<<5 | uint32(rt))
}

// LdpPost emits LDP rt, rt2, [rn], #off with post-index writeback.
func (a *Assembler) LdpPost(rt, rt2, rn uint8, off int32) {
	a.word(0xA8C0_0000 | pairImm7(off)<<15 | uint32(rt2)<<10 | uint32(rn)<<5 | uint32(rt))
}

func pairImm7(off int32) uint32 {
	if off%8 != 0 || off < -512 || off > 504 {
		panic(fmt.Sprintf("BUG: pair offset %d not encodable", off))
	}
	return uint32(off/8) & 0x7F
}

// Branches.

// B emits an unconditional branch to l.
func (a *Assembler) B(l Label) {
	pos := a.word(0x1400_0000)
	a.fixups = append(a.fixups, fixup{pos: pos, label: l, kind: fixupImm26})
}

// Bcond emits B.cond to l.
func (a *Assembler) Bcond(c Cond, l Label) {
	pos := a.word(0x5400_0000 | uint32(c))
	a.fixups = append(a.fixups, fixup{pos: pos, label: l, kind: fixupImm19})
}

// Cbz emits CBZ rt, l.
func (a *Assembler) Cbz(is64 bool, rt uint8, l Label) {
	pos := a.word(sf(is64) | 0x3400_0000 | uint32(rt))
	a.fixups = append(a.fixups, fixup{pos: pos, label: l, kind: fixupImm19})
}

// Cbnz emits CBNZ rt, l.
func (a *Assembler) Cbnz(is64 bool, rt uint8, l Label) {
	pos := a.word(sf(is64) | 0x3500_0000 | uint32(rt))
	a.fixups = append(a.fixups, fixup{pos: pos, label: l, kind: fixupImm19})
}

// Bl emits BL with a zero displacement and returns the word position, for
// call sites whose target the host links later.
func (a *Assembler) Bl() int {
	return a.word(0x9400_0000)
}

// Blr emits BLR rn.
func (a *Assembler) Blr(rn uint8) {
	a.word(0xD63F_0000 | uint32(rn)<<5)
}

// Ret emits RET (through x30).
func (a *Assembler) Ret() {
	a.word(0xD65F_03C0)
}

// Brk emits BRK #imm16.
func (a *Assembler) Brk(imm16 uint16) {
	a.word(0xD420_0000 | uint32(imm16)<<5)
}

// Floating point.

// FmovToFloat emits FMOV sd, wn or FMOV dd, xn.
func (a *Assembler) FmovToFloat(is64 bool, vd, rn uint8) {
	if is64 {
		a.word(0x9E67_0000 | uint32(rn)<<5 | uint32(vd))
	} else {
		a.word(0x1E27_0000 | uint32(rn)<<5 | uint32(vd))
	}
}

// FmovToInt emits FMOV wd, sn or FMOV xd, dn.
func (a *Assembler) FmovToInt(is64 bool, rd, vn uint8) {
	if is64 {
		a.word(0x9E66_0000 | uint32(vn)<<5 | uint32(rd))
	} else {
		a.word(0x1E26_0000 | uint32(vn)<<5 | uint32(rd))
	}
}

func fpType(is64 bool) uint32 {
	if is64 {
		return 1 << 22
	}
	return 0
}

// Fadd emits FADD vd, vn, vm on S or D registers.
func (a *Assembler) Fadd(is64 bool, vd, vn, vm uint8) {
	a.word(0x1E20_2800 | fpType(is64) | uint32(vm)<<16 | uint32(vn)<<5 | uint32(vd))
}

// Fsub emits FSUB vd, vn, vm.
func (a *Assembler) Fsub(is64 bool, vd, vn, vm uint8) {
	a.word(0x1E20_3800 | fpType(is64) | uint32(vm)<<16 | uint32(vn)<<5 | uint32(vd))
}

// Fmul emits FMUL vd, vn, vm.
func (a *Assembler) Fmul(is64 bool, vd, vn, vm uint8) {
	a.word(0x1E20_0800 | fpType(is64) | uint32(vm)<<16 | uint32(vn)<<5 | uint32(vd))
}

// Fdiv emits FDIV vd, vn, vm.
func (a *Assembler) Fdiv(is64 bool, vd, vn, vm uint8) {
	a.word(0x1E20_1800 | fpType(is64) | uint32(vm)<<16 | uint32(vn)<<5 | uint32(vd))
}

// Fcmp emits FCMP vn, vm.
func (a *Assembler) Fcmp(is64 bool, vn, vm uint8) {
	a.word(0x1E20_2000 | fpType(is64) | uint32(vm)<<16 | uint32(vn)<<5)
}
