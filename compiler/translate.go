package compiler

import (
	"bytes"
	"io"

	"github.com/wippyai/wasm-codegen/errors"
	"github.com/wippyai/wasm-codegen/isa"
	"github.com/wippyai/wasm-codegen/wasm"
)

// translator walks one function body and drives the emitter. Operand-stack
// position p lives in frame slot len(locals)+p, so values sit exactly where
// block results and fallthrough expect them and most control flow needs no
// value moves at all.
type translator struct {
	em  isa.Emitter
	env *FuncEnvironment

	r       *bytes.Reader
	locals  []wasm.ValType // params followed by declared locals
	results []wasm.ValType // current function's results
	mem     isa.MemoryPlan

	stack  []wasm.ValType
	frames []ctrlFrame

	// While unreachable code is skipped, nested structures are counted
	// instead of getting frames.
	unreachable      bool
	unreachableDepth int
}

type frameKind byte

const (
	frameFunc frameKind = iota
	frameBlock
	frameLoop
	frameIf
)

type ctrlFrame struct {
	kind frameKind

	// base is the operand stack height at frame entry. Branch values and
	// fallthrough results land at slots base.. by construction.
	base int

	results []wasm.ValType

	end  isa.Label
	els  isa.Label // if only
	head isa.Label // loop only

	elseSeen bool
}

// branchArity is how many values a branch to this frame carries: a loop
// branch re-enters the head with the (empty) parameters, everything else
// jumps past the end with the results.
func (f *ctrlFrame) branchArity() int {
	if f.kind == frameLoop {
		return 0
	}
	return len(f.results)
}

func (f *ctrlFrame) target() isa.Label {
	if f.kind == frameLoop {
		return f.head
	}
	return f.end
}

// translate lowers one parsed body through em.
func translate(em isa.Emitter, env *FuncEnvironment, types *Validator, body wasm.FuncBody) error {
	ft, err := types.FuncTypeOf(env.ctx.CurrentFunctionTypeIndex())
	if err != nil {
		return err
	}
	sig, err := types.SignatureOf(env.ctx.CurrentFunctionTypeIndex())
	if err != nil {
		return err
	}

	declared, ok := body.FlatLocals()
	if !ok {
		return errors.InvalidData(errors.PhaseTranslate, "local count exceeds limit", nil)
	}
	locals := make([]wasm.ValType, 0, len(ft.Params)+len(declared))
	locals = append(locals, ft.Params...)
	locals = append(locals, declared...)

	if err := em.Prepare(sig, locals); err != nil {
		return err
	}

	mem, err := env.MemoryPlan()
	if err != nil {
		return err
	}

	t := &translator{
		em:      em,
		env:     env,
		r:       bytes.NewReader(body.Code),
		locals:  locals,
		results: ft.Results,
		mem:     mem,
	}
	t.frames = append(t.frames, ctrlFrame{
		kind:    frameFunc,
		results: ft.Results,
		end:     em.NewLabel(),
	})
	return t.run()
}

func (t *translator) run() error {
	for len(t.frames) > 0 {
		op, err := t.r.ReadByte()
		if err != nil {
			return errors.InvalidData(errors.PhaseTranslate, "truncated instruction sequence", err)
		}

		if t.unreachable {
			if err := t.skipUnreachable(op); err != nil {
				return err
			}
			continue
		}
		if err := t.lower(op); err != nil {
			return err
		}
	}
	if t.r.Len() != 0 {
		return errors.InvalidData(errors.PhaseTranslate, "trailing bytes after function end", nil)
	}
	return nil
}

// slot maps an operand stack position to its frame slot.
func (t *translator) slot(pos int) int { return len(t.locals) + pos }

func (t *translator) push(vt wasm.ValType) int {
	t.stack = append(t.stack, vt)
	return t.slot(len(t.stack) - 1)
}

// pop removes the top operand, checking its type, and returns its slot.
func (t *translator) pop(op byte, want wasm.ValType) (int, error) {
	h := len(t.stack)
	if h == 0 {
		return 0, errors.InvalidData(errors.PhaseTranslate,
			"operand stack underflow at "+wasm.OpcodeName(op), nil)
	}
	if got := t.stack[h-1]; got != want {
		return 0, errors.New(errors.PhaseTranslate, errors.KindInvalidData).
			Op(wasm.OpcodeName(op)).
			Detail("operand type %s, expected %s", got, want).
			Build()
	}
	t.stack = t.stack[:h-1]
	return t.slot(h - 1), nil
}

func (t *translator) popAny(op byte) (int, wasm.ValType, error) {
	h := len(t.stack)
	if h == 0 {
		return 0, 0, errors.InvalidData(errors.PhaseTranslate,
			"operand stack underflow at "+wasm.OpcodeName(op), nil)
	}
	vt := t.stack[h-1]
	t.stack = t.stack[:h-1]
	return t.slot(h - 1), vt, nil
}

func (t *translator) unsupported(op byte) error {
	return errors.Unsupported(errors.PhaseTranslate, wasm.OpcodeName(op))
}

// blockResults parses a block type. Only the empty type and single numeric
// results are lowered; indexed (multi-value) block types are an
// unsupported feature.
func (t *translator) blockResults(op byte) ([]wasm.ValType, error) {
	v, err := wasm.ReadLEB128s33(t.r)
	if err != nil {
		return nil, errors.InvalidData(errors.PhaseTranslate, "read block type", err)
	}
	if v >= 0 {
		return nil, errors.Unsupported(errors.PhaseTranslate, "multi-value "+wasm.OpcodeName(op))
	}
	b := byte(v & 0x7F)
	if b == wasm.BlockTypeEmpty {
		return nil, nil
	}
	switch vt := wasm.ValType(b); vt {
	case wasm.ValI32, wasm.ValI64, wasm.ValF32, wasm.ValF64:
		return []wasm.ValType{vt}, nil
	case wasm.ValV128, wasm.ValFuncRef, wasm.ValExtern:
		return nil, errors.Unsupported(errors.PhaseTranslate, vt.String()+" block result")
	default:
		return nil, errors.InvalidData(errors.PhaseTranslate, "invalid block type", nil)
	}
}

// branchTo moves the branch values into the target frame's landing slots
// and jumps. Values stay on the operand stack: br_if falls through with
// them intact.
func (t *translator) branchTo(op byte, depth uint32) error {
	if int(depth) >= len(t.frames) {
		return errors.OutOfBounds(errors.PhaseTranslate, "branch depth", int(depth), len(t.frames))
	}
	f := &t.frames[len(t.frames)-1-int(depth)]
	arity := f.branchArity()
	if len(t.stack) < f.base+arity {
		return errors.InvalidData(errors.PhaseTranslate,
			"operand stack too short for "+wasm.OpcodeName(op), nil)
	}
	for i := 0; i < arity; i++ {
		t.em.Copy(t.slot(f.base+i), t.slot(len(t.stack)-arity+i))
	}
	t.em.Br(f.target())
	return nil
}

// endFrame closes the innermost frame: binds its labels, resets the operand
// stack to base plus results, and emits the function epilogue for the
// outermost one.
func (t *translator) endFrame() error {
	f := t.frames[len(t.frames)-1]
	t.frames = t.frames[:len(t.frames)-1]

	if f.kind == frameIf && !f.elseSeen {
		if len(f.results) != 0 {
			return errors.InvalidData(errors.PhaseTranslate,
				"if without else cannot yield values", nil)
		}
		t.em.Bind(f.els)
	}
	t.em.Bind(f.end)

	t.stack = t.stack[:f.base]
	t.stack = append(t.stack, f.results...)

	if f.kind == frameFunc {
		t.em.Return(t.slot(f.base))
	}
	return nil
}

// skipUnreachable consumes one instruction inside dead code, tracking
// nesting so the matching else/end re-activates translation at the right
// frame.
func (t *translator) skipUnreachable(op byte) error {
	switch op {
	case wasm.OpBlock, wasm.OpLoop, wasm.OpIf:
		if _, err := t.blockResults(op); err != nil {
			return err
		}
		t.unreachableDepth++
		return nil

	case wasm.OpElse:
		if t.unreachableDepth > 0 {
			return nil
		}
		f := &t.frames[len(t.frames)-1]
		if f.kind != frameIf || f.elseSeen {
			return errors.InvalidData(errors.PhaseTranslate, "misplaced else", nil)
		}
		f.elseSeen = true
		t.em.Bind(f.els)
		t.stack = t.stack[:f.base]
		t.unreachable = false
		return nil

	case wasm.OpEnd:
		if t.unreachableDepth > 0 {
			t.unreachableDepth--
			return nil
		}
		t.unreachable = false
		return t.endFrame()

	default:
		return t.skipImmediates(op)
	}
}

// skipImmediates discards the immediates of a dead instruction without
// emitting anything. Unsupported opcodes stay faults even in dead code, so
// the supported surface does not depend on reachability.
func (t *translator) skipImmediates(op byte) error {
	switch op {
	case wasm.OpUnreachable, wasm.OpNop, wasm.OpReturn, wasm.OpDrop,
		wasm.OpI32Eqz, wasm.OpI64Eqz,
		wasm.OpI32WrapI64, wasm.OpI64ExtendI32S, wasm.OpI64ExtendI32U:
		return nil

	case wasm.OpBr, wasm.OpBrIf, wasm.OpCall,
		wasm.OpLocalGet, wasm.OpLocalSet, wasm.OpLocalTee:
		_, err := wasm.ReadLEB128u(t.r)
		return err

	case wasm.OpI32Load, wasm.OpI64Load, wasm.OpF32Load, wasm.OpF64Load,
		wasm.OpI32Store, wasm.OpI64Store, wasm.OpF32Store, wasm.OpF64Store:
		if _, err := wasm.ReadLEB128u(t.r); err != nil {
			return err
		}
		_, err := wasm.ReadLEB128u(t.r)
		return err

	case wasm.OpI32Const:
		_, err := wasm.ReadLEB128s(t.r)
		return err
	case wasm.OpI64Const:
		_, err := wasm.ReadLEB128s64(t.r)
		return err
	case wasm.OpF32Const:
		_, err := t.r.Seek(4, io.SeekCurrent)
		return err
	case wasm.OpF64Const:
		_, err := t.r.Seek(8, io.SeekCurrent)
		return err
	}

	if isLoweredValueOp(op) {
		return nil
	}
	return t.unsupported(op)
}

// isLoweredValueOp reports whether op is one of the immediate-free value
// operations this compiler lowers.
func isLoweredValueOp(op byte) bool {
	switch {
	case op >= wasm.OpI32Eq && op <= wasm.OpI32GeU:
	case op >= wasm.OpI64Eq && op <= wasm.OpI64GeU:
	case op >= wasm.OpF32Eq && op <= wasm.OpF64Ge:
	case isLoweredBinary(op):
	default:
		return false
	}
	return true
}

func isLoweredBinary(op byte) bool {
	switch op {
	case wasm.OpI32Add, wasm.OpI32Sub, wasm.OpI32Mul, wasm.OpI32DivS, wasm.OpI32DivU,
		wasm.OpI32And, wasm.OpI32Or, wasm.OpI32Xor,
		wasm.OpI32Shl, wasm.OpI32ShrS, wasm.OpI32ShrU,
		wasm.OpI64Add, wasm.OpI64Sub, wasm.OpI64Mul, wasm.OpI64DivS, wasm.OpI64DivU,
		wasm.OpI64And, wasm.OpI64Or, wasm.OpI64Xor,
		wasm.OpI64Shl, wasm.OpI64ShrS, wasm.OpI64ShrU,
		wasm.OpF32Add, wasm.OpF32Sub, wasm.OpF32Mul, wasm.OpF32Div,
		wasm.OpF64Add, wasm.OpF64Sub, wasm.OpF64Mul, wasm.OpF64Div:
		return true
	}
	return false
}

func (t *translator) lower(op byte) error {
	switch op {
	case wasm.OpNop:
		return nil

	case wasm.OpUnreachable:
		t.em.Trap(isa.TrapUnreachable)
		t.unreachable = true
		return nil

	case wasm.OpBlock:
		results, err := t.blockResults(op)
		if err != nil {
			return err
		}
		t.frames = append(t.frames, ctrlFrame{
			kind:    frameBlock,
			base:    len(t.stack),
			results: results,
			end:     t.em.NewLabel(),
		})
		return nil

	case wasm.OpLoop:
		results, err := t.blockResults(op)
		if err != nil {
			return err
		}
		head := t.em.NewLabel()
		t.em.Bind(head)
		t.frames = append(t.frames, ctrlFrame{
			kind:    frameLoop,
			base:    len(t.stack),
			results: results,
			end:     t.em.NewLabel(),
			head:    head,
		})
		return nil

	case wasm.OpIf:
		results, err := t.blockResults(op)
		if err != nil {
			return err
		}
		cond, err := t.pop(op, wasm.ValI32)
		if err != nil {
			return err
		}
		f := ctrlFrame{
			kind:    frameIf,
			base:    len(t.stack),
			results: results,
			end:     t.em.NewLabel(),
			els:     t.em.NewLabel(),
		}
		t.em.BrIfZero(cond, f.els)
		t.frames = append(t.frames, f)
		return nil

	case wasm.OpElse:
		f := &t.frames[len(t.frames)-1]
		if f.kind != frameIf || f.elseSeen {
			return errors.InvalidData(errors.PhaseTranslate, "misplaced else", nil)
		}
		// The then arm's results already sit at slots base.., so the
		// jump to end carries no moves.
		f.elseSeen = true
		t.em.Br(f.end)
		t.em.Bind(f.els)
		t.stack = t.stack[:f.base]
		return nil

	case wasm.OpEnd:
		return t.endFrame()

	case wasm.OpBr:
		depth, err := wasm.ReadLEB128u(t.r)
		if err != nil {
			return errors.InvalidData(errors.PhaseTranslate, "read br depth", err)
		}
		if err := t.branchTo(op, depth); err != nil {
			return err
		}
		t.unreachable = true
		return nil

	case wasm.OpBrIf:
		depth, err := wasm.ReadLEB128u(t.r)
		if err != nil {
			return errors.InvalidData(errors.PhaseTranslate, "read br_if depth", err)
		}
		cond, err := t.pop(op, wasm.ValI32)
		if err != nil {
			return err
		}
		skip := t.em.NewLabel()
		t.em.BrIfZero(cond, skip)
		if err := t.branchTo(op, depth); err != nil {
			return err
		}
		t.em.Bind(skip)
		return nil

	case wasm.OpReturn:
		arity := len(t.results)
		if len(t.stack) < arity {
			return errors.InvalidData(errors.PhaseTranslate,
				"operand stack too short for return", nil)
		}
		t.em.Return(t.slot(len(t.stack) - arity))
		t.unreachable = true
		return nil

	case wasm.OpCall:
		return t.lowerCall()

	case wasm.OpDrop:
		_, _, err := t.popAny(op)
		return err

	case wasm.OpLocalGet, wasm.OpLocalSet, wasm.OpLocalTee:
		return t.lowerLocal(op)

	case wasm.OpI32Const:
		v, err := wasm.ReadLEB128s(t.r)
		if err != nil {
			return errors.InvalidData(errors.PhaseTranslate, "read i32 constant", err)
		}
		t.em.Const(t.push(wasm.ValI32), wasm.ValI32, uint64(uint32(v)))
		return nil

	case wasm.OpI64Const:
		v, err := wasm.ReadLEB128s64(t.r)
		if err != nil {
			return errors.InvalidData(errors.PhaseTranslate, "read i64 constant", err)
		}
		t.em.Const(t.push(wasm.ValI64), wasm.ValI64, uint64(v))
		return nil

	case wasm.OpF32Const:
		var raw [4]byte
		if _, err := io.ReadFull(t.r, raw[:]); err != nil {
			return errors.InvalidData(errors.PhaseTranslate, "read f32 constant", err)
		}
		bits := uint64(raw[0]) | uint64(raw[1])<<8 | uint64(raw[2])<<16 | uint64(raw[3])<<24
		t.em.Const(t.push(wasm.ValF32), wasm.ValF32, bits)
		return nil

	case wasm.OpF64Const:
		var raw [8]byte
		if _, err := io.ReadFull(t.r, raw[:]); err != nil {
			return errors.InvalidData(errors.PhaseTranslate, "read f64 constant", err)
		}
		var bits uint64
		for i, b := range raw {
			bits |= uint64(b) << (8 * i)
		}
		t.em.Const(t.push(wasm.ValF64), wasm.ValF64, bits)
		return nil

	case wasm.OpI32Eqz, wasm.OpI64Eqz:
		from := wasm.ValI32
		if op == wasm.OpI64Eqz {
			from = wasm.ValI64
		}
		src, err := t.pop(op, from)
		if err != nil {
			return err
		}
		t.em.Eqz(op, t.push(wasm.ValI32), src)
		return nil

	case wasm.OpI32WrapI64:
		src, err := t.pop(op, wasm.ValI64)
		if err != nil {
			return err
		}
		t.em.Convert(op, t.push(wasm.ValI32), src)
		return nil

	case wasm.OpI64ExtendI32S, wasm.OpI64ExtendI32U:
		src, err := t.pop(op, wasm.ValI32)
		if err != nil {
			return err
		}
		t.em.Convert(op, t.push(wasm.ValI64), src)
		return nil

	case wasm.OpI32Load, wasm.OpI64Load, wasm.OpF32Load, wasm.OpF64Load:
		return t.lowerLoad(op)

	case wasm.OpI32Store, wasm.OpI64Store, wasm.OpF32Store, wasm.OpF64Store:
		return t.lowerStore(op)

	case wasm.OpPrefixMisc, wasm.OpPrefixSIMD, wasm.OpPrefixAtomic:
		// Consume the sub-opcode so the fault names a stable prefix
		// rather than depending on how far parsing got.
		_, _ = wasm.ReadLEB128u(t.r)
		return t.unsupported(op)
	}

	if isComparison(op) {
		return t.lowerCompare(op)
	}
	if isLoweredBinary(op) {
		return t.lowerBinary(op)
	}
	return t.unsupported(op)
}

func isComparison(op byte) bool {
	switch {
	case op >= wasm.OpI32Eq && op <= wasm.OpI32GeU:
	case op >= wasm.OpI64Eq && op <= wasm.OpI64GeU:
	case op >= wasm.OpF32Eq && op <= wasm.OpF64Ge:
	default:
		return false
	}
	return true
}

func valueTypeOf(op byte) wasm.ValType {
	switch {
	case op >= wasm.OpI32Eq && op <= wasm.OpI32GeU,
		op >= wasm.OpI32Add && op <= wasm.OpI32ShrU:
		return wasm.ValI32
	case op >= wasm.OpI64Eq && op <= wasm.OpI64GeU,
		op >= wasm.OpI64Add && op <= wasm.OpI64ShrU:
		return wasm.ValI64
	case op >= wasm.OpF32Eq && op <= wasm.OpF32Ge,
		op >= wasm.OpF32Add && op <= wasm.OpF32Div:
		return wasm.ValF32
	default:
		return wasm.ValF64
	}
}

func (t *translator) lowerBinary(op byte) error {
	vt := valueTypeOf(op)
	rhs, err := t.pop(op, vt)
	if err != nil {
		return err
	}
	lhs, err := t.pop(op, vt)
	if err != nil {
		return err
	}
	t.em.Binary(op, t.push(vt), lhs, rhs)
	return nil
}

func (t *translator) lowerCompare(op byte) error {
	vt := valueTypeOf(op)
	rhs, err := t.pop(op, vt)
	if err != nil {
		return err
	}
	lhs, err := t.pop(op, vt)
	if err != nil {
		return err
	}
	t.em.Compare(op, t.push(wasm.ValI32), lhs, rhs)
	return nil
}

func (t *translator) lowerLocal(op byte) error {
	index, err := wasm.ReadLEB128u(t.r)
	if err != nil {
		return errors.InvalidData(errors.PhaseTranslate, "read local index", err)
	}
	if int(index) >= len(t.locals) {
		return errors.OutOfBounds(errors.PhaseTranslate, "local", int(index), len(t.locals))
	}
	vt := t.locals[index]

	switch op {
	case wasm.OpLocalGet:
		t.em.Copy(t.push(vt), int(index))
	case wasm.OpLocalSet:
		src, err := t.pop(op, vt)
		if err != nil {
			return err
		}
		t.em.Copy(int(index), src)
	case wasm.OpLocalTee:
		if len(t.stack) == 0 || t.stack[len(t.stack)-1] != vt {
			return errors.InvalidData(errors.PhaseTranslate,
				"operand type mismatch at local.tee", nil)
		}
		t.em.Copy(int(index), t.slot(len(t.stack)-1))
	}
	return nil
}

func loadedType(op byte) wasm.ValType {
	switch op {
	case wasm.OpI32Load, wasm.OpI32Store:
		return wasm.ValI32
	case wasm.OpI64Load, wasm.OpI64Store:
		return wasm.ValI64
	case wasm.OpF32Load, wasm.OpF32Store:
		return wasm.ValF32
	default:
		return wasm.ValF64
	}
}

// memarg reads the alignment hint and static offset. The hint is only a
// hint; bounds checking never depends on it.
func (t *translator) memarg(op byte) (uint32, error) {
	if t.mem.Kind == isa.MemoryNone {
		return 0, errors.InvalidData(errors.PhaseTranslate,
			wasm.OpcodeName(op)+" in a module without memory", nil)
	}
	if _, err := wasm.ReadLEB128u(t.r); err != nil {
		return 0, errors.InvalidData(errors.PhaseTranslate, "read alignment", err)
	}
	offset, err := wasm.ReadLEB128u(t.r)
	if err != nil {
		return 0, errors.InvalidData(errors.PhaseTranslate, "read memory offset", err)
	}
	return offset, nil
}

func (t *translator) lowerLoad(op byte) error {
	offset, err := t.memarg(op)
	if err != nil {
		return err
	}
	addr, err := t.pop(op, wasm.ValI32)
	if err != nil {
		return err
	}
	// The result reuses the address slot; the emitter reads the address
	// before overwriting it.
	t.em.Load(op, t.push(loadedType(op)), addr, offset, t.mem)
	return nil
}

func (t *translator) lowerStore(op byte) error {
	offset, err := t.memarg(op)
	if err != nil {
		return err
	}
	src, err := t.pop(op, loadedType(op))
	if err != nil {
		return err
	}
	addr, err := t.pop(op, wasm.ValI32)
	if err != nil {
		return err
	}
	t.em.Store(op, src, addr, offset, t.mem)
	return nil
}

func (t *translator) lowerCall() error {
	funcIndex, err := wasm.ReadLEB128u(t.r)
	if err != nil {
		return errors.InvalidData(errors.PhaseTranslate, "read call target", err)
	}
	plan, err := t.env.CallPlanFor(funcIndex)
	if err != nil {
		return err
	}

	nargs := len(plan.Type.Params)
	if len(t.stack) < nargs {
		return errors.InvalidData(errors.PhaseTranslate,
			"operand stack too short for call", nil)
	}
	for i := nargs - 1; i >= 0; i-- {
		if _, err := t.pop(wasm.OpCall, plan.Type.Params[i]); err != nil {
			return err
		}
	}
	argsBase := t.slot(len(t.stack))

	if plan.Local {
		t.em.CallLocal(funcIndex, plan.Sig, argsBase, argsBase)
	} else {
		t.em.CallImported(plan.Imported, plan.Sig, argsBase, argsBase)
	}
	for _, rt := range plan.Type.Results {
		t.push(rt)
	}
	return nil
}
