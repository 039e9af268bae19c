package isa

import (
	"github.com/wippyai/wasm-codegen/abi"
	"github.com/wippyai/wasm-codegen/wasm"
)

// Label identifies a position in the emitted instruction stream. Labels are
// created unbound, used as branch targets, and bound exactly once.
type Label int

// TrapCode identifies why generated code aborts execution. The host decodes
// it from the trap instruction's immediate.
type TrapCode uint16

const (
	TrapUnreachable TrapCode = iota
	TrapMemoryOutOfBounds
	TrapDivideByZero
	TrapIntegerOverflow
)

func (c TrapCode) String() string {
	switch c {
	case TrapUnreachable:
		return "unreachable"
	case TrapMemoryOutOfBounds:
		return "memory out of bounds"
	case TrapDivideByZero:
		return "integer divide by zero"
	case TrapIntegerOverflow:
		return "integer overflow"
	default:
		return "unknown trap"
	}
}

// MemoryKind says how the module's linear memory is reached from the
// vmContext.
type MemoryKind byte

const (
	// MemoryNone: the module declares no memory; memory operations are
	// rejected before reaching the emitter.
	MemoryNone MemoryKind = iota
	// MemoryLocal: base pointer and byte length live directly in the
	// vmContext and must be reloaded on every access because the host may
	// grow the memory between accesses.
	MemoryLocal
	// MemoryImported: the vmContext holds a stable pointer to the owning
	// instance's memory record; base and length are reloaded from that
	// record on every access.
	MemoryImported
)

// MemoryPlan tells the emitter where to find the linear memory's base and
// bound for one compilation.
//
// For MemoryLocal, base lives at vmctx+VMContextOffset+BaseOffset and the
// byte length at vmctx+VMContextOffset+LengthOffset. For MemoryImported,
// vmctx+VMContextOffset holds a pointer to the memory record, and BaseOffset
// and LengthOffset are relative to that record.
type MemoryPlan struct {
	Kind            MemoryKind
	VMContextOffset int32
	BaseOffset      int32
	LengthOffset    int32
}

// ImportedCallPlan tells the emitter where, inside the caller's vmContext,
// the entry point and callee vmContext of one imported function live. Both
// are reloaded at every call site.
type ImportedCallPlan struct {
	EntryOffset     int32
	VMContextOffset int32
}

// CallSite records one direct call to a local function. The displacement in
// the instruction is left zero; the host's linker patches it using the
// matching relocation entry.
type CallSite struct {
	// Offset is the byte offset of the call instruction in the finalized
	// code.
	Offset uint32
	// Target is the module-wide index of the called function.
	Target uint32
}

// Emitter lowers one function body to machine code. The translator drives it
// with explicit operand slots: slot i of the current frame holds local i for
// i < len(locals), and operand-stack position p lives at slot len(locals)+p.
// The emitter owns the frame layout and sizes the frame from the highest
// slot it sees.
//
// Methods other than Prepare and Finalize panic on arguments the translator
// is required to never produce (unknown opcodes, slots for a missing
// memory); those are defects, not input errors.
type Emitter interface {
	// Prepare records the function's native signature and flattened locals
	// and schedules the prologue: saving both vmContext pointers, spilling
	// register parameters to their local slots, and zeroing declared
	// locals.
	Prepare(sig *abi.Signature, locals []wasm.ValType) error

	// Const materializes a constant into a slot. bits carries the raw
	// pattern for all four numeric types.
	Const(slot int, t wasm.ValType, bits uint64)

	// Copy moves one 64-bit slot to another.
	Copy(dst, src int)

	// Binary lowers a two-operand arithmetic opcode into dst.
	Binary(op byte, dst, lhs, rhs int)

	// Compare lowers a comparison opcode, leaving i32 0 or 1 in dst.
	Compare(op byte, dst, lhs, rhs int)

	// Eqz lowers i32.eqz or i64.eqz.
	Eqz(op byte, dst, src int)

	// Convert lowers i32.wrap_i64 and the i64.extend_i32 pair.
	Convert(op byte, dst, src int)

	// Load lowers a full-width memory load: bounds check against the
	// current byte length, then read from base+index+offset.
	Load(op byte, dst, addr int, offset uint32, mem MemoryPlan)

	// Store lowers a full-width memory store with the same bounds check.
	Store(op byte, src, addr int, offset uint32, mem MemoryPlan)

	// Trap emits an unconditional abort carrying code.
	Trap(code TrapCode)

	NewLabel() Label
	Bind(l Label)
	Br(l Label)

	// BrIfZero branches to l when the i32 in the cond slot is zero;
	// BrIfNonZero when it is not.
	BrIfZero(cond int, l Label)
	BrIfNonZero(cond int, l Label)

	// CallLocal emits a direct call to local function target, passing the
	// current function's own vmContext as both vmContext arguments.
	// Arguments are read from slots argsBase.. and results written to
	// slots retBase.. per sig.
	CallLocal(target uint32, sig *abi.Signature, argsBase, retBase int)

	// CallImported emits an indirect call through the vmContext, loading
	// the entry point and callee vmContext per plan at the call site.
	CallImported(plan ImportedCallPlan, sig *abi.Signature, argsBase, retBase int)

	// Return moves results from slots resultsBase.. into result registers
	// and emits the epilogue.
	Return(resultsBase int)

	// Finalize prepends the prologue, resolves labels, and returns the
	// finished machine code with its call sites.
	Finalize() ([]byte, []CallSite, error)
}
