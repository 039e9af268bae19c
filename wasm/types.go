package wasm

// ValType represents a WebAssembly value type.
type ValType byte

// Value type encodings as defined in the WebAssembly binary format.
const (
	ValI32     ValType = 0x7F // 32-bit integer
	ValI64     ValType = 0x7E // 64-bit integer
	ValF32     ValType = 0x7D // 32-bit float
	ValF64     ValType = 0x7C // 64-bit float
	ValV128    ValType = 0x7B // 128-bit vector (SIMD)
	ValFuncRef ValType = 0x70 // Function reference
	ValExtern  ValType = 0x6F // External reference
)

func (v ValType) String() string {
	switch v {
	case ValI32:
		return "i32"
	case ValI64:
		return "i64"
	case ValF32:
		return "f32"
	case ValF64:
		return "f64"
	case ValV128:
		return "v128"
	case ValFuncRef:
		return "funcref"
	case ValExtern:
		return "externref"
	default:
		return "unknown"
	}
}

// Valid reports whether v is one of the known value type encodings.
func (v ValType) Valid() bool {
	switch v {
	case ValI32, ValI64, ValF32, ValF64, ValV128, ValFuncRef, ValExtern:
		return true
	}
	return false
}

// FuncType represents a WebAssembly function signature with parameter and
// result types.
type FuncType struct {
	Params  []ValType
	Results []ValType
}

// Equal reports whether two signatures have identical parameter and result
// sequences.
func (f FuncType) Equal(o FuncType) bool {
	if len(f.Params) != len(o.Params) || len(f.Results) != len(o.Results) {
		return false
	}
	for i, p := range f.Params {
		if o.Params[i] != p {
			return false
		}
	}
	for i, r := range f.Results {
		if o.Results[i] != r {
			return false
		}
	}
	return true
}

// LocalEntry represents a group of local variables with the same type.
type LocalEntry struct {
	Count   uint32
	ValType ValType
}

// FuncBody represents a function's local declarations and bytecode, as
// encoded in a code-section entry.
type FuncBody struct {
	Locals []LocalEntry
	Code   []byte
}

// FlatLocals expands the run-length encoded local declarations into one
// ValType per local. The bool result is false if the total local count is
// unreasonably large (engines cap locals far below this).
func (b FuncBody) FlatLocals() ([]ValType, bool) {
	var total uint64
	for _, e := range b.Locals {
		total += uint64(e.Count)
	}
	if total > 1<<16 {
		return nil, false
	}
	out := make([]ValType, 0, total)
	for _, e := range b.Locals {
		for i := uint32(0); i < e.Count; i++ {
			out = append(out, e.ValType)
		}
	}
	return out, true
}
