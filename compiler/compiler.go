// Package compiler is the instruction compiler: it walks a decoded PICA200
// vertex-shader program sequentially, binds a native-code label to every
// instruction offset, and dispatches each opcode to a lowering routine that
// emits SSE-based x86-64 machine code implementing PICA semantics.
package compiler

import (
	"fmt"
	"log"
	"os"

	"github.com/n3ds-emu/pica200jit/analysis"
	"github.com/n3ds-emu/pica200jit/emitter"
	"github.com/n3ds-emu/pica200jit/isa"
	"github.com/n3ds-emu/pica200jit/runtimeabi"
)

// Logger receives the non-fatal "unknown opcode, skipped" diagnostic. It
// defaults to the standard logger, matching the teacher's cmd/*/main.go
// tools; callers embedding this module may redirect it.
var Logger = log.New(os.Stderr, "compiler: ", log.LstdFlags)

// Fixed host register assignment (spec.md §4.4.1). These survive every
// opcode lowering; the foreign-call sites (EX2/LG2) spill the subset of
// these that the host C ABI treats as caller-saved.
const (
	regSetup      = emitter.RDI // pointer to shader setup (uniforms)
	regUnit       = emitter.RSI // pointer to unit state (inputs/outputs/temps)
	regAddr0      = emitter.RBX // indexed-address offset 0, from MOVA.x
	regAddr1      = emitter.R12 // indexed-address offset 1, from MOVA.y
	regLoopOffset = emitter.R13 // loop offset accumulator (x16), 32-bit view
	regLoopCount  = emitter.R14 // current loop iteration count, 32-bit view
	regLoopStride = emitter.R15 // loop stride (x16), 32-bit view
	regCond0      = emitter.R8  // cached X-component comparison result
	regCond1      = emitter.R9  // cached Y-component comparison result
	regEntry      = emitter.RDX // entry offset argument, consumed at prologue
	regScratch    = emitter.RAX // general scratch for address materialisation
)

// XMM register assignment.
const (
	xScratch1 = emitter.X0
	xScratch2 = emitter.X1
	xSrc1     = emitter.X2
	xSrc2     = emitter.X3
	xSrc3     = emitter.X4
	xOne      = emitter.X5 // constant [1,1,1,1]
	xNeg      = emitter.X6 // constant [-0,-0,-0,-0] sign-bit mask
)

// Default maximum emitted-buffer size, matching spec.md §4.4.14's "typical
// cap: a few megabytes".
const DefaultMaxCodeSize = 4 << 20

// ErrKind classifies a CompileError.
type ErrKind int

const (
	ErrBackwardsIf ErrKind = iota
	ErrBackwardsLoop
	ErrNestedLoop
	ErrBufferOverflow
	ErrUnreachableDispatch
)

func (k ErrKind) String() string {
	switch k {
	case ErrBackwardsIf:
		return "backwards IF target"
	case ErrBackwardsLoop:
		return "backwards LOOP target"
	case ErrNestedLoop:
		return "nested LOOP"
	case ErrBufferOverflow:
		return "emitted size exceeds buffer cap"
	case ErrUnreachableDispatch:
		return "unreachable opcode dispatch case"
	default:
		return "unknown compile error"
	}
}

// CompileError is a structured fatal compile-time fault, carrying the
// offending program offset, returned from Compile rather than asserted or
// panicked, per REDESIGN FLAGS.
type CompileError struct {
	Kind   ErrKind
	Offset uint32
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compiler: %s at offset %d", e.Kind, e.Offset)
}

// compileState is the transient per-shader compilation state of spec.md
// §3's "Compilation state" data model entry.
type compileState struct {
	e       *emitter.Emitter
	rt      runtimeabi.Runtime
	program []uint32
	insts   []isa.Instruction
	swizzle isa.OperandDescriptorTable

	labels  []*emitter.Label // one per program offset, bound lazily
	returns []uint32         // sorted return offsets from the control-flow pre-pass

	looping bool
	loopEnd *emitter.Label
	maxCode int
}

// Compile lowers program (a sequence of 32-bit PICA200 instruction words)
// into executable x86-64 machine code and returns the raw buffer. swizzle
// is the operand-descriptor table the program's operand_desc_id fields
// index into. hasSSE41 gates the compiler's SSE4.1 fast paths.
func Compile(program []uint32, swizzle isa.OperandDescriptorTable, rt runtimeabi.Runtime, hasSSE41 bool) ([]byte, error) {
	return CompileWithCap(program, swizzle, rt, hasSSE41, DefaultMaxCodeSize)
}

// CompileWithCap is Compile with an explicit buffer-size cap, split out so
// tests can exercise the ErrBufferOverflow path without allocating
// DefaultMaxCodeSize-sized scratch.
func CompileWithCap(program []uint32, swizzle isa.OperandDescriptorTable, rt runtimeabi.Runtime, hasSSE41 bool, maxCode int) ([]byte, error) {
	e, err := emitter.New(hasSSE41)
	if err != nil {
		return nil, fmt.Errorf("compiler: %w", err)
	}

	insts := make([]isa.Instruction, len(program))
	for i, word := range program {
		insts[i] = isa.Decode(word)
	}

	cs := &compileState{
		e:       e,
		rt:      rt,
		program: program,
		insts:   insts,
		swizzle: swizzle,
		labels:  make([]*emitter.Label, len(program)),
		returns: analysis.ReturnOffsets(program),
		maxCode: maxCode,
	}
	for i := range cs.labels {
		cs.labels[i] = e.NewLabel()
	}

	if err := cs.emitPrologue(); err != nil {
		return nil, err
	}

	if err := cs.emitRange(0, uint32(len(insts))); err != nil {
		return nil, err
	}

	code := e.Assemble()
	if len(code) > cs.maxCode {
		return nil, &CompileError{Kind: ErrBufferOverflow, Offset: uint32(len(insts))}
	}
	return code, nil
}

// emitPrologue saves callee-saved registers, populates the fixed role
// registers from the host ABI's argument registers, zeroes the two
// address-offset registers and the loop accumulator, loads the constant
// xmm registers, and jumps to the entry-offset argument.
func (cs *compileState) emitPrologue() error {
	e := cs.e
	e.SaveCalleeSaved()

	// regSetup/regUnit already hold their ABI argument values (RDI, RSI);
	// nothing further to move. regEntry (RDX) holds the entry offset and
	// is consumed immediately below, never again.
	e.XorRegReg(regAddr0, regAddr0)
	e.XorRegReg(regAddr1, regAddr1)
	e.XorRegReg(regLoopOffset, regLoopOffset)

	loadVectorConstants(e)

	// Dispatch to the label for entry_offset. Label addresses are only
	// resolved by the assembler once the whole buffer is emitted, so a
	// runtime-selected entry point can't be reached via a precomputed
	// absolute jump; instead the prologue walks the chain of per-offset
	// labels and jumps to the first one whose offset matches the
	// entry_offset argument still held in regEntry.
	for pc := range cs.labels {
		cs.e.CmpRegImm32(regEntry, int32(pc))
		cs.e.JmpIf(emitter.JE, cs.labels[pc])
	}
	return nil
}

// emitReturnCheck emits the inline return-point check spec.md §4.4.11
// describes: load the sentinel return value pushed by the call site from
// [rsp+8] (below the native return address the `call` instruction itself
// pushed), compare it against the current compile-time PC, and if equal,
// return — leaving the sentinel on the stack for the call site's own
// post-call "add rsp, 8" to drop. The sentinel encodes the program *offset*
// rather than a native address, since label addresses aren't resolvable
// until the whole buffer is assembled.
func (cs *compileState) emitReturnCheck(pc uint32) {
	e := cs.e
	e.MovMemToReg(regScratch, emitter.RSP, 8)
	e.CmpRegImm32(regScratch, int32(pc))
	skip := e.NewLabel()
	e.JmpIf(emitter.JNE, skip)
	e.Ret()
	e.Bind(skip)
}

// loadVectorConstants loads the [1,1,1,1] and [-0,-0,-0,-0] constants used
// throughout arithmetic lowering. Materialised via integer immediates into
// a GPR and broadcast, avoiding a static data section the compiler would
// otherwise need to manage alongside the code buffer.
func loadVectorConstants(e *emitter.Emitter) {
	// xOne: 1.0f in every lane. bit pattern of 1.0f32 is 0x3F800000.
	e.MovImm32(regScratch, 0x3F800000)
	e.MovdRegToXmm(xOne, regScratch)
	e.PshufD(xOne, xOne, 0) // broadcast lane 0 to all four lanes

	// xNeg: sign bit set in every lane (0x80000000).
	e.MovImm32(regScratch, -0x80000000) // 0x80000000 as int32
	e.MovdRegToXmm(xNeg, regScratch)
	e.PshufD(xNeg, xNeg, 0)
}

// emitRange walks instructions [from, to), binding each offset's
// pre-allocated label and dispatching it, honouring return-point checks.
// It is used both for the top-level program walk and for the inlined
// THEN/ELSE bodies structured IF lowering splices into the stream: dispatch
// reports how far it consumed (beyond pc+1 for IF/LOOP, whose bodies it
// emits itself), and emitRange resumes from there.
func (cs *compileState) emitRange(from, to uint32) error {
	pc := from
	for pc < to && int(pc) < len(cs.insts) {
		cs.e.Bind(cs.labels[pc])
		if analysis.IsReturnPoint(cs.returns, pc) {
			cs.emitReturnCheck(pc)
		}
		next, err := cs.dispatch(pc)
		if err != nil {
			return err
		}
		pc = next
	}
	return nil
}

// dispatch lowers the instruction at pc via a tagged-variant match over the
// decoded opcode, per spec.md §9's dispatch-table replacement, and reports
// the program offset emission should resume from.
func (cs *compileState) dispatch(pc uint32) (uint32, error) {
	inst := cs.insts[pc]
	op := inst.Opcode.EffectiveOpcode()

	switch inst.Opcode.Family() {
	case isa.FamilyCommon, isa.FamilyMad:
		cs.dispatchArithmetic(pc, inst, op)
		return pc + 1, nil
	case isa.FamilyCompare:
		cs.emitCmp(inst)
		return pc + 1, nil
	case isa.FamilyFlow:
		return cs.dispatchFlow(pc, inst, op)
	default:
		Logger.Printf("unknown opcode %#x at offset %d, skipped", inst.Raw, pc)
		return pc + 1, nil
	}
}

func (cs *compileState) dispatchArithmetic(pc uint32, inst isa.Instruction, op isa.Opcode) {
	switch op {
	case isa.OpAdd:
		cs.emitAdd(inst)
	case isa.OpMul:
		cs.emitMul(inst)
	case isa.OpMadBase, isa.OpMadiBase:
		cs.emitMad(inst)
	case isa.OpMax:
		cs.emitMaxMin(inst, true)
	case isa.OpMin:
		cs.emitMaxMin(inst, false)
	case isa.OpDp3:
		cs.emitDot(inst, 3, false)
	case isa.OpDp4:
		cs.emitDot(inst, 4, false)
	case isa.OpDph, isa.OpDphi:
		cs.emitDot(inst, 4, true)
	case isa.OpSge, isa.OpSgei:
		cs.emitSgeSlt(inst, true)
	case isa.OpSlt, isa.OpSlti:
		cs.emitSgeSlt(inst, false)
	case isa.OpFlr:
		cs.emitFlr(inst)
	case isa.OpRcp:
		cs.emitRcpRsq(inst, true)
	case isa.OpRsq:
		cs.emitRcpRsq(inst, false)
	case isa.OpMov:
		cs.emitMov(inst)
	case isa.OpMova:
		cs.emitMova(inst)
	case isa.OpDst:
		cs.emitDst(inst)
	case isa.OpEx2:
		cs.emitEx2Lg2(inst, cs.rt.Exp2f)
	case isa.OpLg2:
		cs.emitEx2Lg2(inst, cs.rt.Log2f)
	case isa.OpNop:
		// no-op
	default:
		Logger.Printf("unknown common/mad opcode %#x (effective %v) at offset %d, skipped", inst.Raw, op, pc)
	}
}
