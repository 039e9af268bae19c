// Package arm64 emits AArch64 machine code for translated function bodies.
//
// The backend is deliberately simple: every operand lives in an 8-byte
// stack slot, each lowered operation loads its inputs into scratch
// registers and stores its result back, and no value is live in a register
// across a branch or call. Traps are BRK instructions whose immediate
// carries the trap code. Direct calls to local functions are BL words with
// a zero displacement; the host links them through relocation entries.
package arm64
