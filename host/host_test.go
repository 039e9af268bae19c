package host_test

import (
	"testing"

	"github.com/wippyai/wasm-codegen/host"
	"github.com/wippyai/wasm-codegen/wasm"
)

func testModuleInfo() host.ModuleInfo {
	return host.ModuleInfo{
		Types: []wasm.FuncType{
			{Params: []wasm.ValType{wasm.ValI32}, Results: []wasm.ValType{wasm.ValI32}},
			{},
		},
		ImportedFunctions: []uint32{1},
		LocalFunctions:    []uint32{0, 0},
		HasMemory:         true,
		MemoryMinPages:    1,
		MemoryMaxPages:    4,
	}
}

func TestStaticContextQueries(t *testing.T) {
	ctx := host.NewStaticContext(testModuleInfo())
	ctx.SetCurrentFunction(1)

	if got := ctx.TypeCount(); got != 2 {
		t.Errorf("TypeCount = %d, want 2", got)
	}
	if got := ctx.CurrentFunctionIndex(); got != 1 {
		t.Errorf("CurrentFunctionIndex = %d, want 1", got)
	}
	if got := ctx.CurrentFunctionTypeIndex(); got != 0 {
		t.Errorf("CurrentFunctionTypeIndex = %d, want 0", got)
	}
	if ctx.IsLocal(0) {
		t.Error("function 0 should be imported")
	}
	if !ctx.IsLocal(1) || !ctx.IsLocal(2) {
		t.Error("functions 1 and 2 should be local")
	}
	if got := ctx.FunctionTypeIndex(0); got != 1 {
		t.Errorf("FunctionTypeIndex(0) = %d, want 1", got)
	}
	minPages, maxPages, defined := ctx.MemoryBounds()
	if !defined || minPages != 1 || maxPages != 4 {
		t.Errorf("MemoryBounds = (%d, %d, %v)", minPages, maxPages, defined)
	}
	if ctx.IsMemoryImported() {
		t.Error("memory should be local")
	}
}

func TestStaticContextPanicsOutOfRange(t *testing.T) {
	ctx := host.NewStaticContext(testModuleInfo())

	assertPanics(t, "type index", func() { ctx.TypeSignature(2) })
	assertPanics(t, "function index", func() { ctx.IsLocal(3) })
	assertPanics(t, "set current", func() { ctx.SetCurrentFunction(99) })
}

func TestStaticContextCopiesReportedBuffers(t *testing.T) {
	ctx := host.NewStaticContext(testModuleInfo())

	code := []byte{1, 2, 3, 4}
	relocs := []host.RelocationEntry{{TargetFunctionIndex: 1, CodeOffset: 0}}
	ctx.ReportCompiled(host.CompiledFunction{Code: code, Relocations: relocs})

	// Ownership transfers inside ReportCompiled; mutating the originals
	// afterwards must not affect what the host retained.
	code[0] = 0xFF
	relocs[0].TargetFunctionIndex = 9

	got := ctx.Compiled[0]
	if got.Code[0] != 1 {
		t.Error("reported code was not copied")
	}
	if got.Relocations[0].TargetFunctionIndex != 1 {
		t.Error("reported relocations were not copied")
	}
}

func TestComputeLayout(t *testing.T) {
	tests := []struct {
		name              string
		hasMemory         bool
		imported          bool
		importedFunctions uint32
		wantLocal         int32
		wantImportedMem   int32
		wantFuncs         int32
		wantSize          int32
	}{
		{"no memory no imports", false, false, 0, -1, -1, 0, 0},
		{"local memory", true, false, 0, 0, -1, 16, 16},
		{"imported memory", true, true, 0, -1, 0, 8, 8},
		{"local memory two imports", true, false, 2, 0, -1, 16, 48},
		{"imports only", false, false, 3, -1, -1, 0, 48},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := host.ComputeLayout(tt.hasMemory, tt.imported, tt.importedFunctions)
			if l.LocalMemoryOffset != tt.wantLocal {
				t.Errorf("LocalMemoryOffset = %d, want %d", l.LocalMemoryOffset, tt.wantLocal)
			}
			if l.ImportedMemoryOffset != tt.wantImportedMem {
				t.Errorf("ImportedMemoryOffset = %d, want %d", l.ImportedMemoryOffset, tt.wantImportedMem)
			}
			if l.ImportedFunctionsOffset != tt.wantFuncs {
				t.Errorf("ImportedFunctionsOffset = %d, want %d", l.ImportedFunctionsOffset, tt.wantFuncs)
			}
			if l.Size != tt.wantSize {
				t.Errorf("Size = %d, want %d", l.Size, tt.wantSize)
			}
		})
	}
}

func TestImportedFunctionOffset(t *testing.T) {
	l := host.ComputeLayout(true, false, 4)
	for i := uint32(0); i < 4; i++ {
		want := int32(16 + i*16)
		if got := l.ImportedFunctionOffset(i); got != want {
			t.Errorf("ImportedFunctionOffset(%d) = %d, want %d", i, got, want)
		}
	}
}

func TestLayoutFingerprintDistinguishesLayouts(t *testing.T) {
	a := host.ComputeLayout(true, false, 1)
	b := host.ComputeLayout(true, true, 1)
	c := host.ComputeLayout(true, false, 1)

	if string(a.Fingerprint()) == string(b.Fingerprint()) {
		t.Error("different layouts share a fingerprint")
	}
	if string(a.Fingerprint()) != string(c.Fingerprint()) {
		t.Error("identical layouts disagree on fingerprint")
	}
}

func TestUnreachableContextPanics(t *testing.T) {
	ctx := host.UnreachableContext{}
	assertPanics(t, "TypeCount", func() { ctx.TypeCount() })
	assertPanics(t, "Layout", func() { ctx.Layout() })
	assertPanics(t, "ReportCompiled", func() { ctx.ReportCompiled(host.CompiledFunction{}) })
}

func TestCallbackContextForwards(t *testing.T) {
	var reported *host.CompiledFunction
	ctx := &host.CallbackContext{
		TypeCountFn: func() uint32 { return 7 },
		ReportCompiledFn: func(fn host.CompiledFunction) {
			reported = &fn
		},
	}

	if got := ctx.TypeCount(); got != 7 {
		t.Errorf("TypeCount = %d, want 7", got)
	}
	ctx.ReportCompiled(host.CompiledFunction{Code: []byte{0xAA}})
	if reported == nil || len(reported.Code) != 1 {
		t.Error("ReportCompiled did not forward")
	}

	assertPanics(t, "nil callback", func() { ctx.IsLocal(0) })
}

func assertPanics(t *testing.T, name string, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Errorf("%s: expected panic", name)
		}
	}()
	fn()
}
