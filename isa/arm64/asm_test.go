package arm64

import "testing"

func TestKnownEncodings(t *testing.T) {
	tests := []struct {
		name string
		emit func(a *Assembler)
		want uint32
	}{
		{"stp x29,x30,[sp,#-16]!", func(a *Assembler) { a.StpPre(regFP, regLR, regSP, -16) }, 0xA9BF7BFD},
		{"ldp x29,x30,[sp],#16", func(a *Assembler) { a.LdpPost(regFP, regLR, regSP, 16) }, 0xA8C17BFD},
		{"mov x29,sp", func(a *Assembler) { a.AddImm(true, regFP, regSP, 0, false) }, 0x910003FD},
		{"mov sp,x29", func(a *Assembler) { a.AddImm(true, regSP, regFP, 0, false) }, 0x910003BF},
		{"ret", func(a *Assembler) { a.Ret() }, 0xD65F03C0},
		{"blr x16", func(a *Assembler) { a.Blr(16) }, 0xD63F0200},
		{"brk #1", func(a *Assembler) { a.Brk(1) }, 0xD4200020},
		{"bl #0", func(a *Assembler) { a.Bl() }, 0x94000000},
		{"movz w0,#1", func(a *Assembler) { a.MovZ(false, 0, 1, 0) }, 0x52800020},
		{"movz x12,#0x8000,lsl 48", func(a *Assembler) { a.MovZ(true, 12, 0x8000, 48) }, 0xD2F0000C},
		{"add x0,x1,x2", func(a *Assembler) { a.AddReg(true, 0, 1, 2) }, 0x8B020020},
		{"sub w3,w4,w5", func(a *Assembler) { a.SubReg(false, 3, 4, 5) }, 0x4B050083},
		{"sdiv w0,w1,w2", func(a *Assembler) { a.SDiv(false, 0, 1, 2) }, 0x1AC20C20},
		{"udiv x0,x1,x2", func(a *Assembler) { a.UDiv(true, 0, 1, 2) }, 0x9AC20820},
		{"mul x0,x1,x2", func(a *Assembler) { a.Mul(true, 0, 1, 2) }, 0x9B027C20},
		{"ldr x9,[sp]", func(a *Assembler) { a.LdrX(9, regSP, 0) }, 0xF94003E9},
		{"str x0,[sp,#8]", func(a *Assembler) { a.StrX(0, regSP, 8) }, 0xF90007E0},
		{"ldr w10,[sp,#16]", func(a *Assembler) { a.LdrW(10, regSP, 16) }, 0xB94013EA},
		{"str xzr,[sp,#16]", func(a *Assembler) { a.StrX(regZR, regSP, 16) }, 0xF9000BFF},
		{"cmp x12,x11", func(a *Assembler) { a.SubsReg(true, regZR, 12, 11) }, 0xEB0B019F},
		{"cmn w11,#1", func(a *Assembler) { a.AddsImm(false, regZR, 11, 1) }, 0x3100057F},
		{"sxtw x10,w10", func(a *Assembler) { a.Sxtw(10, 10) }, 0x93407D4A},
		{"fadd s16,s16,s17", func(a *Assembler) { a.Fadd(false, 16, 16, 17) }, 0x1E312A10},
		{"fadd d16,d16,d17", func(a *Assembler) { a.Fadd(true, 16, 16, 17) }, 0x1E712A10},
		{"fcmp d16,d17", func(a *Assembler) { a.Fcmp(true, 16, 17) }, 0x1E712200},
		{"fmov d16,x10", func(a *Assembler) { a.FmovToFloat(true, 16, 10) }, 0x9E670150},
		{"fmov s16,w10", func(a *Assembler) { a.FmovToFloat(false, 16, 10) }, 0x1E270150},
		{"mov x1,x9", func(a *Assembler) { a.MovReg(1, 9) }, 0xAA0903E1},
		{"lslv w0,w1,w2", func(a *Assembler) { a.Lslv(false, 0, 1, 2) }, 0x1AC22020},
		{"asrv x0,x1,x2", func(a *Assembler) { a.Asrv(true, 0, 1, 2) }, 0x9AC22820},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var a Assembler
			tt.emit(&a)
			if got := a.Words()[0]; got != tt.want {
				t.Errorf("got %#08X, want %#08X", got, tt.want)
			}
		})
	}
}

func TestCsetEncoding(t *testing.T) {
	// CSET w10, EQ is CSINC w10, wzr, wzr, NE.
	var a Assembler
	a.Cset(10, CondEQ)
	want := uint32(0x1A800400 | 31<<16 | uint32(CondNE)<<12 | 31<<5 | 10)
	if got := a.Words()[0]; got != want {
		t.Errorf("got %#08X, want %#08X", got, want)
	}
}

func TestBranchResolution(t *testing.T) {
	var a Assembler
	l := a.NewLabel()
	a.B(l)   // word 0: forward by 3
	a.Brk(0) // word 1
	a.Brk(0) // word 2
	a.Bind(l)
	a.Bcond(CondLS, l) // word 3: branches to itself

	if err := a.Resolve(); err != nil {
		t.Fatal(err)
	}

	if got, want := a.Words()[0], uint32(0x14000003); got != want {
		t.Errorf("b: got %#08X, want %#08X", got, want)
	}
	// The conditional branch sits at the bound position itself, so its
	// displacement is zero.
	if got, want := a.Words()[3], uint32(0x54000000|uint32(CondLS)); got != want {
		t.Errorf("b.cond: got %#08X, want %#08X", got, want)
	}
}

func TestBackwardBranch(t *testing.T) {
	var a Assembler
	l := a.NewLabel()
	a.Bind(l)
	a.Brk(0)
	a.Cbnz(false, 10, l) // word 1, back by 1

	if err := a.Resolve(); err != nil {
		t.Fatal(err)
	}
	want := uint32(0x35000000 | (^uint32(0)&0x7FFFF)<<5 | 10)
	if got := a.Words()[1]; got != want {
		t.Errorf("cbnz: got %#08X, want %#08X", got, want)
	}
}

func TestResolveRejectsUnboundLabel(t *testing.T) {
	var a Assembler
	l := a.NewLabel()
	a.B(l)
	if err := a.Resolve(); err == nil {
		t.Error("expected error for unbound label")
	}
}

func TestMovConst(t *testing.T) {
	// Each case lists the expected instruction words.
	tests := []struct {
		name string
		is64 bool
		v    uint64
		want []uint32
	}{
		{"zero", false, 0, []uint32{0x52800000}},
		{"small", false, 1, []uint32{0x52800020}},
		{"two halfwords", false, 0x12345678, []uint32{
			0x52800000 | 0x5678<<5, // movz w0,#0x5678
			0x72800000 | 1<<21 | 0x1234<<5, // movk w0,#0x1234,lsl 16
		}},
		{"negative one 32", false, 0xFFFFFFFF, []uint32{
			0x12800000, // movn w0,#0
		}},
		{"negative one 64", true, ^uint64(0), []uint32{
			0x92800000, // movn x0,#0
		}},
		{"high halfword only", true, 0x8000 << 48, []uint32{
			0xD2800000 | 3<<21 | 0x8000<<5, // movz x0,#0x8000,lsl 48
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var a Assembler
			a.MovConst(tt.is64, 0, tt.v)
			got := a.Words()
			if len(got) != len(tt.want) {
				t.Fatalf("emitted %d words, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("word %d: got %#08X, want %#08X", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestBytesLittleEndian(t *testing.T) {
	var a Assembler
	a.Ret()
	got := a.Bytes()
	want := []byte{0xC0, 0x03, 0x5F, 0xD6}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte %d: got %#02X, want %#02X", i, got[i], want[i])
		}
	}
}
