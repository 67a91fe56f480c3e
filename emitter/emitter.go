// Package emitter is a thin x86-64 assembler façade used by the PICA200
// instruction compiler: it emits SSE-based native code into a growing
// buffer, tracks symbolic labels with forward-reference patching, and
// exposes ABI helpers for calling out to foreign helpers. It carries no
// PICA-specific logic.
//
// Encodings are built on top of github.com/twitchyliquid64/golang-asm
// (the importable fork of the Go toolchain's own x86-64 assembler), the
// same approach wazero's original amd64 JIT backend used before it grew a
// hand-written encoder.
package emitter

import (
	"fmt"

	asm "github.com/twitchyliquid64/golang-asm"
	"github.com/twitchyliquid64/golang-asm/obj"
	"github.com/twitchyliquid64/golang-asm/obj/x86"
)

// Reg is a host register, either general-purpose or xmm; it is the
// underlying golang-asm register constant (e.g. x86.REG_AX, x86.REG_X0).
type Reg = int16

// General-purpose registers used by name, to keep compiler code free of
// raw x86 register literals.
const (
	RAX = x86.REG_AX
	RCX = x86.REG_CX
	RDX = x86.REG_DX
	RBX = x86.REG_BX
	RSP = x86.REG_SP
	RBP = x86.REG_BP
	RSI = x86.REG_SI
	RDI = x86.REG_DI
	R8  = x86.REG_R8
	R9  = x86.REG_R9
	R10 = x86.REG_R10
	R11 = x86.REG_R11
	R12 = x86.REG_R12
	R13 = x86.REG_R13
	R14 = x86.REG_R14
	R15 = x86.REG_R15
)

// XMM registers.
const (
	X0  = x86.REG_X0
	X1  = x86.REG_X1
	X2  = x86.REG_X2
	X3  = x86.REG_X3
	X4  = x86.REG_X4
	X5  = x86.REG_X5
	X6  = x86.REG_X6
	X7  = x86.REG_X7
	X8  = x86.REG_X8
	X9  = x86.REG_X9
	X10 = x86.REG_X10
)

// Emitter owns a growing native-code buffer for the duration of a single
// compile call. It is not safe for concurrent use; the instruction
// compiler owns it exclusively and surrenders it (via Assemble) once
// emission is complete.
type Emitter struct {
	b       *asm.Builder
	hasSSE4 bool
}

// New creates an Emitter. hasSSE41 gates the SSE4.1 fast paths (blendps,
// roundps) the compiler uses for destination masking and FLR; callers
// determine this via host CPU-feature detection, which is out of scope
// for this package.
func New(hasSSE41 bool) (*Emitter, error) {
	b, err := asm.NewBuilder("amd64", 256)
	if err != nil {
		return nil, fmt.Errorf("emitter: failed to create assembler builder: %w", err)
	}
	return &Emitter{b: b, hasSSE4: hasSSE41}, nil
}

// HasSSE41 reports whether the SSE4.1 fast paths are available.
func (e *Emitter) HasSSE41() bool { return e.hasSSE4 }

// Assemble finalises emission and returns the raw machine code. The
// returned buffer is not yet executable; making it so (and invalidating
// the icache) is the caller's responsibility, per the module's external
// CodeBuffer interface.
func (e *Emitter) Assemble() []byte {
	return e.b.Assemble()
}

// newProg allocates a fresh instruction node owned by the builder.
func (e *Emitter) newProg() *obj.Prog {
	return e.b.NewProg()
}

// add appends prog to the instruction stream.
func (e *Emitter) add(prog *obj.Prog) *obj.Prog {
	e.b.AddInstruction(prog)
	return prog
}

// Label is a symbolic jump target. The zero value is an unbound forward
// reference; Bind fixes it to the emitter's current cursor. Every program
// offset the control-flow analyser or compiler needs to jump to gets
// exactly one Label, bound exactly once.
type Label struct {
	target  *obj.Prog
	pending []*obj.Prog
}

// NewLabel allocates an unbound label.
func (e *Emitter) NewLabel() *Label { return &Label{} }

// Bind fixes the label to the current emission cursor, emitting a no-op
// marker instruction, and patches every jump that referenced it before it
// was bound.
func (e *Emitter) Bind(l *Label) {
	nop := e.newProg()
	nop.As = obj.ANOP
	e.add(nop)
	l.target = nop
	for _, jmp := range l.pending {
		jmp.To.SetTarget(nop)
	}
	l.pending = nil
}

// resolve points jmp's branch target at l, queuing the patch if l is not
// yet bound (forward reference).
func (l *Label) resolve(jmp *obj.Prog) {
	if l.target != nil {
		jmp.To.SetTarget(l.target)
		return
	}
	l.pending = append(l.pending, jmp)
}

// Jmp emits an unconditional jump to l.
func (e *Emitter) Jmp(l *Label) {
	prog := e.newProg()
	prog.As = obj.AJMP
	prog.To.Type = obj.TYPE_BRANCH
	e.add(prog)
	l.resolve(prog)
}

// JCC is a host conditional-jump mnemonic.
type JCC int

const (
	JE JCC = iota
	JNE
	JL
	JLE
	JG
	JGE
	JB
	JBE
	JA
	JAE
)

// JZ/JNZ are aliases for JE/JNE: the compiler uses whichever name reads
// better at the call site (zero-flag tests vs. equality tests).
const (
	JZ  = JE
	JNZ = JNE
)

var jccAs = map[JCC]obj.As{
	JE: x86.AJEQ, JNE: x86.AJNE,
	JL: x86.AJLT, JLE: x86.AJLE, JG: x86.AJGT, JGE: x86.AJGE,
	JB: x86.AJCS, JBE: x86.AJLS, JA: x86.AJHI, JAE: x86.AJCC,
}

// JmpIf emits a conditional jump to l under the given condition; the
// caller is responsible for having set the host flags beforehand (e.g. via
// Test or Cmp).
func (e *Emitter) JmpIf(cc JCC, l *Label) {
	prog := e.newProg()
	prog.As = jccAs[cc]
	prog.To.Type = obj.TYPE_BRANCH
	e.add(prog)
	l.resolve(prog)
}

// CallLabel emits a near `call` to l, pushing the native return address
// (distinct from any PICA-level sentinel the caller manages separately).
func (e *Emitter) CallLabel(l *Label) {
	prog := e.newProg()
	prog.As = obj.ACALL
	prog.To.Type = obj.TYPE_BRANCH
	e.add(prog)
	l.resolve(prog)
}

// Ret emits a return instruction.
func (e *Emitter) Ret() {
	prog := e.newProg()
	prog.As = obj.ARET
	e.add(prog)
}
