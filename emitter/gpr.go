package emitter

import (
	"github.com/twitchyliquid64/golang-asm/obj"
	"github.com/twitchyliquid64/golang-asm/obj/x86"
)

// MovRegToReg emits `mov dst, src` (64-bit).
func (e *Emitter) MovRegToReg(dst, src Reg) {
	prog := e.newProg()
	prog.As = x86.AMOVQ
	prog.From.Type = obj.TYPE_REG
	prog.From.Reg = src
	prog.To.Type = obj.TYPE_REG
	prog.To.Reg = dst
	e.add(prog)
}

// MovMemToReg emits `mov dst, [base+disp]`.
func (e *Emitter) MovMemToReg(dst, base Reg, disp int32) {
	prog := e.newProg()
	prog.As = x86.AMOVQ
	prog.From.Type = obj.TYPE_MEM
	prog.From.Reg = base
	prog.From.Offset = int64(disp)
	prog.To.Type = obj.TYPE_REG
	prog.To.Reg = dst
	e.add(prog)
}

// MovRegToMem emits `mov [base+disp], src`.
func (e *Emitter) MovRegToMem(base Reg, disp int32, src Reg) {
	prog := e.newProg()
	prog.As = x86.AMOVQ
	prog.From.Type = obj.TYPE_REG
	prog.From.Reg = src
	prog.To.Type = obj.TYPE_MEM
	prog.To.Reg = base
	prog.To.Offset = int64(disp)
	e.add(prog)
}

// MovImm64 materialises a 64-bit immediate into dst.
func (e *Emitter) MovImm64(dst Reg, value int64) {
	prog := e.newProg()
	prog.As = x86.AMOVQ
	prog.From.Type = obj.TYPE_CONST
	prog.From.Offset = value
	prog.To.Type = obj.TYPE_REG
	prog.To.Reg = dst
	e.add(prog)
}

// MovImm32 emits `mov dst, imm32` on the 32-bit sub-register (clears the
// upper 32 bits).
func (e *Emitter) MovImm32(dst Reg, value int32) {
	prog := e.newProg()
	prog.As = x86.AMOVL
	prog.From.Type = obj.TYPE_CONST
	prog.From.Offset = int64(value)
	prog.To.Type = obj.TYPE_REG
	prog.To.Reg = dst
	e.add(prog)
}

// AddRegImm32 emits `add dst, imm32` (64-bit, imm32 sign-extended).
func (e *Emitter) AddRegImm32(dst Reg, value int32) {
	prog := e.newProg()
	prog.As = x86.AADDQ
	prog.From.Type = obj.TYPE_CONST
	prog.From.Offset = int64(value)
	prog.To.Type = obj.TYPE_REG
	prog.To.Reg = dst
	e.add(prog)
}

// AddRegReg emits `add dst, src` (64-bit).
func (e *Emitter) AddRegReg(dst, src Reg) {
	prog := e.newProg()
	prog.As = x86.AADDQ
	prog.From.Type = obj.TYPE_REG
	prog.From.Reg = src
	prog.To.Type = obj.TYPE_REG
	prog.To.Reg = dst
	e.add(prog)
}

// SubRegImm32 emits `sub dst, imm32`.
func (e *Emitter) SubRegImm32(dst Reg, value int32) {
	prog := e.newProg()
	prog.As = x86.ASUBQ
	prog.From.Type = obj.TYPE_CONST
	prog.From.Offset = int64(value)
	prog.To.Type = obj.TYPE_REG
	prog.To.Reg = dst
	e.add(prog)
}

// DecRegL decrements the 32-bit sub-register of dst by one.
func (e *Emitter) DecRegL(dst Reg) {
	prog := e.newProg()
	prog.As = x86.ASUBL
	prog.From.Type = obj.TYPE_CONST
	prog.From.Offset = 1
	prog.To.Type = obj.TYPE_REG
	prog.To.Reg = dst
	e.add(prog)
}

// XorRegReg emits `xor dst, src` (64-bit); used to zero a register.
func (e *Emitter) XorRegReg(dst, src Reg) {
	prog := e.newProg()
	prog.As = x86.AXORQ
	prog.From.Type = obj.TYPE_REG
	prog.From.Reg = src
	prog.To.Type = obj.TYPE_REG
	prog.To.Reg = dst
	e.add(prog)
}

// AndRegImm32 emits `and dst, imm32` (32-bit).
func (e *Emitter) AndRegImm32(dst Reg, value int32) {
	prog := e.newProg()
	prog.As = x86.AANDL
	prog.From.Type = obj.TYPE_CONST
	prog.From.Offset = int64(value)
	prog.To.Type = obj.TYPE_REG
	prog.To.Reg = dst
	e.add(prog)
}

// AndRegReg emits `and dst, src` (32-bit).
func (e *Emitter) AndRegReg(dst, src Reg) {
	prog := e.newProg()
	prog.As = x86.AANDL
	prog.From.Type = obj.TYPE_REG
	prog.From.Reg = src
	prog.To.Type = obj.TYPE_REG
	prog.To.Reg = dst
	e.add(prog)
}

// OrRegReg emits `or dst, src` (32-bit).
func (e *Emitter) OrRegReg(dst, src Reg) {
	prog := e.newProg()
	prog.As = x86.AORL
	prog.From.Type = obj.TYPE_REG
	prog.From.Reg = src
	prog.To.Type = obj.TYPE_REG
	prog.To.Reg = dst
	e.add(prog)
}

// XorRegImm32 emits `xor dst, imm32` (32-bit).
func (e *Emitter) XorRegImm32(dst Reg, value int32) {
	prog := e.newProg()
	prog.As = x86.AXORL
	prog.From.Type = obj.TYPE_CONST
	prog.From.Offset = int64(value)
	prog.To.Type = obj.TYPE_REG
	prog.To.Reg = dst
	e.add(prog)
}

// ShiftLeftImm emits `shl dst, imm8` (32-bit sub-register).
func (e *Emitter) ShiftLeftImm(dst Reg, shift uint8) {
	prog := e.newProg()
	prog.As = x86.ASHLL
	prog.From.Type = obj.TYPE_CONST
	prog.From.Offset = int64(shift)
	prog.To.Type = obj.TYPE_REG
	prog.To.Reg = dst
	e.add(prog)
}

// CmpRegImm32 emits `cmp reg, imm32` (32-bit), setting host flags.
func (e *Emitter) CmpRegImm32(reg Reg, value int32) {
	prog := e.newProg()
	prog.As = x86.ACMPL
	prog.From.Type = obj.TYPE_REG
	prog.From.Reg = reg
	prog.To.Type = obj.TYPE_CONST
	prog.To.Offset = int64(value)
	e.add(prog)
}

// CmpRegReg emits `cmp a, b` (64-bit), setting host flags.
func (e *Emitter) CmpRegReg(a, b Reg) {
	prog := e.newProg()
	prog.As = x86.ACMPQ
	prog.From.Type = obj.TYPE_REG
	prog.From.Reg = a
	prog.To.Type = obj.TYPE_REG
	prog.To.Reg = b
	e.add(prog)
}

// CmpMemImm8 emits `cmpb [base+disp], imm8`, used for the host flags test
// against a boolean uniform byte.
func (e *Emitter) CmpMemImm8(base Reg, disp int32, value int8) {
	prog := e.newProg()
	prog.As = x86.ACMPB
	prog.From.Type = obj.TYPE_MEM
	prog.From.Reg = base
	prog.From.Offset = int64(disp)
	prog.To.Type = obj.TYPE_CONST
	prog.To.Offset = int64(value)
	e.add(prog)
}

// PushReg emits `push reg`.
func (e *Emitter) PushReg(reg Reg) {
	prog := e.newProg()
	prog.As = x86.APUSHQ
	prog.To.Type = obj.TYPE_REG
	prog.To.Reg = reg
	e.add(prog)
}

// PopReg emits `pop reg`.
func (e *Emitter) PopReg(reg Reg) {
	prog := e.newProg()
	prog.As = x86.APOPQ
	prog.To.Type = obj.TYPE_REG
	prog.To.Reg = reg
	e.add(prog)
}

// PushImm64 pushes the sentinel return-point value used by CALL lowering:
// an 8-byte immediate materialised through a scratch register, since x86
// PUSH only natively supports a 32-bit sign-extended immediate.
func (e *Emitter) PushImm64(scratch Reg, value int64) {
	e.MovImm64(scratch, value)
	e.PushReg(scratch)
}

// AddRSPImm8 emits `add rsp, imm8`, used to drop the CALL sentinel after a
// native call returns.
func (e *Emitter) AddRSPImm8(value int8) {
	e.AddRegImm32(RSP, int32(value))
}

// SaveCalleeSaved pushes the host ABI's callee-saved registers in a fixed
// order (prologue); RestoreCalleeSaved pops them in reverse (epilogue).
var calleeSaved = []Reg{RBX, RBP, R12, R13, R14, R15}

// SaveCalleeSaved emits the function prologue's register-save sequence.
func (e *Emitter) SaveCalleeSaved() {
	for _, r := range calleeSaved {
		e.PushReg(r)
	}
}

// RestoreCalleeSaved emits the function epilogue's register-restore
// sequence, the exact reverse of SaveCalleeSaved.
func (e *Emitter) RestoreCalleeSaved() {
	for i := len(calleeSaved) - 1; i >= 0; i-- {
		e.PopReg(calleeSaved[i])
	}
}

// CallFar materialises an absolute 64-bit function address into scratch
// and emits an indirect call through it, for invoking runtime helpers
// (exp2f, log2f) whose address isn't known until the Runtime is
// constructed.
func (e *Emitter) CallFar(scratch Reg, addr uintptr) {
	e.MovImm64(scratch, int64(addr))
	prog := e.newProg()
	prog.As = obj.ACALL
	prog.To.Type = obj.TYPE_REG
	prog.To.Reg = scratch
	e.add(prog)
}

// AlignStackBeforeCall adjusts rsp by either 0 or 8 bytes (sub then,
// after the call, the caller should emit the opposite add) to keep the
// stack 16-byte aligned across a foreign call when oddSpills is true
// (i.e. an odd number of 8-byte values were pushed since entry).
func (e *Emitter) AlignStackBeforeCall(oddSpills bool) {
	if oddSpills {
		e.SubRegImm32(RSP, 8)
	}
}

// RestoreStackAfterCall undoes AlignStackBeforeCall.
func (e *Emitter) RestoreStackAfterCall(oddSpills bool) {
	if oddSpills {
		e.AddRegImm32(RSP, 8)
	}
}
