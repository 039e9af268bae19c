package compiler_test

import (
	"encoding/binary"
	stderrors "errors"
	"testing"

	"github.com/wippyai/wasm-codegen/compiler"
	"github.com/wippyai/wasm-codegen/errors"
	"github.com/wippyai/wasm-codegen/host"
	"github.com/wippyai/wasm-codegen/target"
	"github.com/wippyai/wasm-codegen/wasm"
)

func newCompiler(t *testing.T, opts ...compiler.Option) *compiler.Compiler {
	t.Helper()
	desc, err := target.Select(target.ArchARM64, target.OSLinux)
	if err != nil {
		t.Fatal(err)
	}
	c, err := compiler.New(desc, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func compileBody(t *testing.T, c *compiler.Compiler, info host.ModuleInfo, current uint32, body wasm.FuncBody) (*host.StaticContext, error) {
	t.Helper()
	ctx := host.NewStaticContext(info)
	ctx.SetCurrentFunction(current)
	return ctx, c.Compile(ctx, wasm.EncodeFuncBody(body))
}

func code(op ...byte) wasm.FuncBody { return wasm.FuncBody{Code: op} }

func words(codeBytes []byte) []uint32 {
	out := make([]uint32, len(codeBytes)/4)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(codeBytes[4*i:])
	}
	return out
}

func identityModule() host.ModuleInfo {
	return host.ModuleInfo{
		Types: []wasm.FuncType{
			{Params: []wasm.ValType{wasm.ValI32}, Results: []wasm.ValType{wasm.ValI32}},
		},
		LocalFunctions: []uint32{0},
	}
}

func TestCompileLocalGet(t *testing.T) {
	c := newCompiler(t)
	ctx, err := compileBody(t, c, identityModule(), 0,
		code(wasm.OpLocalGet, 0, wasm.OpEnd))
	if err != nil {
		t.Fatal(err)
	}

	if len(ctx.Compiled) != 1 {
		t.Fatalf("reported %d compilations, want 1", len(ctx.Compiled))
	}
	fn := ctx.Compiled[0]
	if len(fn.Code) == 0 {
		t.Error("empty machine code")
	}
	if len(fn.Code)%4 != 0 {
		t.Errorf("code length %d not instruction-aligned", len(fn.Code))
	}
	if len(fn.Relocations) != 0 {
		t.Errorf("relocations = %d, want 0", len(fn.Relocations))
	}
}

func TestCompileEmptyBody(t *testing.T) {
	c := newCompiler(t)
	info := host.ModuleInfo{
		Types:          []wasm.FuncType{{}},
		LocalFunctions: []uint32{0},
	}
	ctx, err := compileBody(t, c, info, 0, code(wasm.OpEnd))
	if err != nil {
		t.Fatal(err)
	}
	w := words(ctx.Compiled[0].Code)
	if last := w[len(w)-1]; last != 0xD65F03C0 {
		t.Errorf("last word %#08X, want ret", last)
	}
}

func TestDirectCallsProduceRelocations(t *testing.T) {
	c := newCompiler(t)
	info := host.ModuleInfo{
		Types:          []wasm.FuncType{{}},
		LocalFunctions: []uint32{0, 0},
	}
	ctx, err := compileBody(t, c, info, 0,
		code(wasm.OpCall, 1, wasm.OpCall, 1, wasm.OpEnd))
	if err != nil {
		t.Fatal(err)
	}

	fn := ctx.Compiled[0]
	if len(fn.Relocations) != 2 {
		t.Fatalf("relocations = %d, want 2", len(fn.Relocations))
	}
	var prev uint32
	for i, r := range fn.Relocations {
		if r.TargetFunctionIndex != 1 {
			t.Errorf("relocation %d target = %d, want 1", i, r.TargetFunctionIndex)
		}
		if r.Namespace != 0 {
			t.Errorf("relocation %d namespace = %d, want 0", i, r.Namespace)
		}
		if i > 0 && r.CodeOffset <= prev {
			t.Error("relocations not in code order")
		}
		prev = r.CodeOffset

		// Every relocated site is a BL with a zero displacement.
		w := binary.LittleEndian.Uint32(fn.Code[r.CodeOffset:])
		if w != 0x94000000 {
			t.Errorf("relocation %d points at %#08X, want bare bl", i, w)
		}
	}
}

func TestImportedCallUsesIndirection(t *testing.T) {
	c := newCompiler(t)
	info := host.ModuleInfo{
		Types:             []wasm.FuncType{{}},
		ImportedFunctions: []uint32{0},
		LocalFunctions:    []uint32{0},
	}
	// Function 1 (local) calls function 0 (imported).
	ctx, err := compileBody(t, c, info, 1,
		code(wasm.OpCall, 0, wasm.OpEnd))
	if err != nil {
		t.Fatal(err)
	}

	fn := ctx.Compiled[0]
	if len(fn.Relocations) != 0 {
		t.Errorf("imported call produced %d relocations, want 0", len(fn.Relocations))
	}
	foundBLR := false
	for _, w := range words(fn.Code) {
		if w&0xFFFFFC1F == 0xD63F0000 {
			foundBLR = true
		}
	}
	if !foundBLR {
		t.Error("imported call does not go through blr")
	}
}

func TestValidatorQueriesEachTypeOnce(t *testing.T) {
	info := host.ModuleInfo{
		Types:          []wasm.FuncType{{}},
		LocalFunctions: []uint32{0, 0},
	}
	inner := host.NewStaticContext(info)
	inner.SetCurrentFunction(0)

	queries := map[uint32]int{}
	ctx := &host.CallbackContext{
		TypeCountFn: inner.TypeCount,
		TypeSignatureFn: func(i uint32) wasm.FuncType {
			queries[i]++
			return inner.TypeSignature(i)
		},
		CurrentFunctionIndexFn:     inner.CurrentFunctionIndex,
		CurrentFunctionTypeIndexFn: inner.CurrentFunctionTypeIndex,
		IsLocalFn:                  inner.IsLocal,
		FunctionTypeIndexFn:        inner.FunctionTypeIndex,
		MemoryBoundsFn:             inner.MemoryBounds,
		IsMemoryImportedFn:         inner.IsMemoryImported,
		LayoutFn:                   inner.Layout,
		ReportCompiledFn:           inner.ReportCompiled,
	}

	c := newCompiler(t)
	body := wasm.EncodeFuncBody(code(wasm.OpCall, 1, wasm.OpCall, 1, wasm.OpCall, 1, wasm.OpEnd))
	if err := c.Compile(ctx, body); err != nil {
		t.Fatal(err)
	}

	for idx, n := range queries {
		if n > 1 {
			t.Errorf("type %d queried %d times, want at most once", idx, n)
		}
	}
}

func TestUnsupportedOpcodes(t *testing.T) {
	tests := []struct {
		name string
		body wasm.FuncBody
	}{
		{"select", code(wasm.OpI32Const, 0, wasm.OpI32Const, 0, wasm.OpI32Const, 0, wasm.OpSelect, wasm.OpEnd)},
		{"br_table", code(wasm.OpI32Const, 0, wasm.OpBrTable, 0, 0, wasm.OpEnd)},
		{"call_indirect", code(wasm.OpCallIndirect, 0, 0, wasm.OpEnd)},
		{"global.get", code(wasm.OpGlobalGet, 0, wasm.OpEnd)},
		{"memory.grow", code(wasm.OpI32Const, 1, wasm.OpMemoryGrow, 0, wasm.OpEnd)},
		{"i32.rem_s", code(wasm.OpI32Const, 1, wasm.OpI32Const, 1, wasm.OpI32RemS, wasm.OpEnd)},
		{"i32.popcnt", code(wasm.OpI32Const, 1, wasm.OpI32Popcnt, wasm.OpEnd)},
		{"f64.sqrt", code(wasm.OpF64Sqrt, wasm.OpEnd)},
		{"misc prefix", code(wasm.OpPrefixMisc, 0, wasm.OpEnd)},
		{"simd prefix", code(wasm.OpPrefixSIMD, 0, wasm.OpEnd)},
	}

	info := host.ModuleInfo{
		Types:          []wasm.FuncType{{}},
		LocalFunctions: []uint32{0},
		HasMemory:      true,
		MemoryMinPages: 1,
		MemoryMaxPages: 1,
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCompiler(t)
			_, err := compileBody(t, c, info, 0, tt.body)
			var e *errors.Error
			if !stderrors.As(err, &e) || e.Kind != errors.KindUnsupported {
				t.Fatalf("got %v, want unsupported-feature error", err)
			}
			if e.Op == "" {
				t.Error("unsupported error does not name the construct")
			}
		})
	}
}

func TestUnsupportedOpcodeInDeadCode(t *testing.T) {
	// The supported surface does not depend on reachability.
	c := newCompiler(t)
	info := host.ModuleInfo{
		Types:          []wasm.FuncType{{}},
		LocalFunctions: []uint32{0},
	}
	_, err := compileBody(t, c, info, 0,
		code(wasm.OpUnreachable, wasm.OpSelect, wasm.OpEnd))
	var e *errors.Error
	if !stderrors.As(err, &e) || e.Kind != errors.KindUnsupported {
		t.Fatalf("got %v, want unsupported-feature error", err)
	}
}

func TestMemoryAccessWithoutMemory(t *testing.T) {
	c := newCompiler(t)
	info := host.ModuleInfo{
		Types:          []wasm.FuncType{{}},
		LocalFunctions: []uint32{0},
	}
	_, err := compileBody(t, c, info, 0,
		code(wasm.OpI32Const, 0, wasm.OpI32Load, 2, 0, wasm.OpDrop, wasm.OpEnd))
	var e *errors.Error
	if !stderrors.As(err, &e) || e.Kind != errors.KindInvalidData {
		t.Fatalf("got %v, want invalid-data error", err)
	}
}

func TestEveryLoadBoundsChecked(t *testing.T) {
	c := newCompiler(t)
	info := host.ModuleInfo{
		Types: []wasm.FuncType{
			{Params: []wasm.ValType{wasm.ValI32}, Results: []wasm.ValType{wasm.ValI32}},
		},
		LocalFunctions: []uint32{0},
		HasMemory:      true,
		MemoryMinPages: 1,
		MemoryMaxPages: 4,
	}
	ctx, err := compileBody(t, c, info, 0, code(
		wasm.OpLocalGet, 0,
		wasm.OpI32Load, 2, 0,
		wasm.OpDrop,
		wasm.OpLocalGet, 0,
		wasm.OpI32Load, 2, 4,
		wasm.OpEnd,
	))
	if err != nil {
		t.Fatal(err)
	}

	oobTrap := uint32(0xD4200000 | 1<<5)
	traps := 0
	for _, w := range words(ctx.Compiled[0].Code) {
		if w == oobTrap {
			traps++
		}
	}
	if traps != 2 {
		t.Errorf("out-of-bounds traps = %d, want one per access", traps)
	}
}

func TestControlFlowShapes(t *testing.T) {
	info := host.ModuleInfo{
		Types: []wasm.FuncType{
			{Params: []wasm.ValType{wasm.ValI32}, Results: []wasm.ValType{wasm.ValI32}},
		},
		LocalFunctions: []uint32{0},
	}
	tests := []struct {
		name string
		body wasm.FuncBody
	}{
		{"if else value", code(
			wasm.OpLocalGet, 0,
			wasm.OpIf, byte(wasm.ValI32),
			wasm.OpI32Const, 1,
			wasm.OpElse,
			wasm.OpI32Const, 2,
			wasm.OpEnd,
			wasm.OpEnd,
		)},
		{"block br", code(
			wasm.OpBlock, byte(wasm.ValI32),
			wasm.OpLocalGet, 0,
			wasm.OpBr, 0,
			wasm.OpEnd,
			wasm.OpEnd,
		)},
		{"loop countdown", code(
			wasm.OpBlock, wasm.BlockTypeEmpty,
			wasm.OpLoop, wasm.BlockTypeEmpty,
			wasm.OpLocalGet, 0,
			wasm.OpI32Eqz,
			wasm.OpBrIf, 1,
			wasm.OpLocalGet, 0,
			wasm.OpI32Const, 1,
			wasm.OpI32Sub,
			wasm.OpLocalSet, 0,
			wasm.OpBr, 0,
			wasm.OpEnd,
			wasm.OpEnd,
			wasm.OpLocalGet, 0,
			wasm.OpEnd,
		)},
		{"early return", code(
			wasm.OpLocalGet, 0,
			wasm.OpIf, wasm.BlockTypeEmpty,
			wasm.OpI32Const, 42,
			wasm.OpReturn,
			wasm.OpEnd,
			wasm.OpLocalGet, 0,
			wasm.OpEnd,
		)},
		{"dead code after unreachable", code(
			wasm.OpUnreachable,
			wasm.OpI32Const, 5,
			wasm.OpDrop,
			wasm.OpEnd,
		)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCompiler(t)
			ctx, err := compileBody(t, c, info, 0, tt.body)
			if err != nil {
				t.Fatal(err)
			}
			if len(ctx.Compiled[0].Code)%4 != 0 {
				t.Error("code not instruction-aligned")
			}
		})
	}
}

func TestArithmeticAndLocals(t *testing.T) {
	info := host.ModuleInfo{
		Types: []wasm.FuncType{
			{Params: []wasm.ValType{wasm.ValF64, wasm.ValF64}, Results: []wasm.ValType{wasm.ValI32}},
		},
		LocalFunctions: []uint32{0},
	}
	body := wasm.FuncBody{
		Locals: []wasm.LocalEntry{{Count: 1, ValType: wasm.ValI64}},
		Code: []byte{
			wasm.OpLocalGet, 0,
			wasm.OpLocalGet, 1,
			wasm.OpF64Add,
			wasm.OpLocalGet, 0,
			wasm.OpF64Lt,
			wasm.OpI64ExtendI32U,
			wasm.OpLocalTee, 2,
			wasm.OpI32WrapI64,
			wasm.OpEnd,
		},
	}
	c := newCompiler(t)
	ctx, err := compileBody(t, c, info, 0, body)
	if err != nil {
		t.Fatal(err)
	}
	if len(ctx.Compiled[0].Code) == 0 {
		t.Error("empty machine code")
	}
}

func TestLocalIndexOutOfRange(t *testing.T) {
	c := newCompiler(t)
	_, err := compileBody(t, c, identityModule(), 0,
		code(wasm.OpLocalGet, 5, wasm.OpEnd))
	var e *errors.Error
	if !stderrors.As(err, &e) || e.Kind != errors.KindOutOfBounds {
		t.Fatalf("got %v, want out-of-bounds error", err)
	}
}

func TestNewRejectsUnsupportedTarget(t *testing.T) {
	_, err := compiler.New(target.Descriptor{Arch: target.ArchAMD64, OS: target.OSLinux})
	if err == nil {
		t.Fatal("expected error for amd64 descriptor")
	}
}

type fakeCache struct {
	entries map[[32]byte]host.CompiledFunction
	gets    int
	puts    int
}

func (f *fakeCache) Get(key [32]byte) (host.CompiledFunction, bool, error) {
	f.gets++
	fn, ok := f.entries[key]
	return fn, ok, nil
}

func (f *fakeCache) Put(key [32]byte, fn host.CompiledFunction) error {
	f.puts++
	f.entries[key] = fn
	return nil
}

func testKey(desc target.Descriptor, layout host.VMContextLayout, body []byte) [32]byte {
	var k [32]byte
	copy(k[:], desc.String())
	copy(k[8:], layout.Fingerprint())
	for i, b := range body {
		k[(i+16)%32] ^= b
	}
	return k
}

func TestCacheShortCircuitsRecompilation(t *testing.T) {
	fc := &fakeCache{entries: map[[32]byte]host.CompiledFunction{}}
	c := newCompiler(t, compiler.WithCache(fc, testKey))

	ctx1, err := compileBody(t, c, identityModule(), 0,
		code(wasm.OpLocalGet, 0, wasm.OpEnd))
	if err != nil {
		t.Fatal(err)
	}
	if fc.puts != 1 {
		t.Fatalf("puts = %d, want 1", fc.puts)
	}

	ctx2, err := compileBody(t, c, identityModule(), 0,
		code(wasm.OpLocalGet, 0, wasm.OpEnd))
	if err != nil {
		t.Fatal(err)
	}
	if fc.puts != 1 {
		t.Errorf("puts after hit = %d, want still 1", fc.puts)
	}

	a, b := ctx1.Compiled[0], ctx2.Compiled[0]
	if string(a.Code) != string(b.Code) {
		t.Error("cache hit returned different code")
	}
	if len(a.Relocations) != len(b.Relocations) {
		t.Error("cache hit returned different relocations")
	}
}
