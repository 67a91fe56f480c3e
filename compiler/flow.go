package compiler

import (
	"github.com/n3ds-emu/pica200jit/emitter"
	"github.com/n3ds-emu/pica200jit/isa"
)

// cmpPredicate maps a PICA CompareOp to the SSE CMPPS immediate predicate,
// swapping operands for Gt/Ge since SSE lacks a NaN-respecting GT/GE
// predicate, per spec.md §4.4.7.
func cmpPredicate(op isa.CompareOp) (predicate uint8, swapOperands bool) {
	switch op {
	case isa.CompareEq:
		return 0, false
	case isa.CompareNeq:
		return 4, false
	case isa.CompareLt:
		return 1, false
	case isa.CompareLe:
		return 2, false
	case isa.CompareGt:
		return 1, true // swapped: b < a
	case isa.CompareGe:
		return 2, true // swapped: b <= a
	default:
		return 0, false
	}
}

// emitCmp lowers CMP: compute the X and Y component compares independently
// and cache their truth value (0 or 1) in regCond0/regCond1.
func (cs *compileState) emitCmp(inst isa.Instruction) {
	e := cs.e
	cs.loadOperands(inst, false)

	predX, swapX := cmpPredicate(inst.CompareOpX)
	a, b := xSrc1, xSrc2
	if swapX {
		a, b = xSrc2, xSrc1
	}
	e.MovApsRegReg(xScratch1, a)
	e.CmpPs(xScratch1, b, predX)
	e.MovdXmmToReg(regCond0, xScratch1)
	e.AndRegImm32(regCond0, 1)

	predY, swapY := cmpPredicate(inst.CompareOpY)
	a, b = xSrc1, xSrc2
	if swapY {
		a, b = xSrc2, xSrc1
	}
	e.MovApsRegReg(xScratch1, a)
	e.CmpPs(xScratch1, b, predY)
	e.ShufPs(xScratch1, xScratch1, 1) // bring lane Y into lane 0
	e.MovdXmmToReg(regCond1, xScratch1)
	e.AndRegImm32(regCond1, 1)
}

// emitMova lowers MOVA per spec.md §4.4.6: truncate lanes X/Y to int32,
// sign-extend and scale by 16 into the address-offset registers. Lanes Z/W
// are ignored; if neither X nor Y is enabled in dest_mask, nothing is
// emitted.
func (cs *compileState) emitMova(inst isa.Instruction) {
	e := cs.e
	pat := cs.swizzle.OperandDescriptor(inst.OperandDescID)
	if pat.DestMask&0b0011 == 0 {
		return
	}
	cs.loadSource(inst.Src1, cs.operandOffsetReg(inst, true), pat.SrcSelector[0], pat.Negate[0], xSrc1)
	e.Cvttps2dq(xScratch1, xSrc1)

	if pat.DestMask&0b0001 != 0 {
		e.MovdXmmToReg(regAddr0, xScratch1)
		e.ShiftLeftImm(regAddr0, 4)
	}
	if pat.DestMask&0b0010 != 0 {
		e.MovApsRegReg(xScratch2, xScratch1)
		e.PshufD(xScratch2, xScratch2, 1) // bring lane Y into lane 0
		e.MovdXmmToReg(regAddr1, xScratch2)
		e.ShiftLeftImm(regAddr1, 4)
	}
}

// evaluateCondition lowers spec.md §4.4.8's EvaluateCondition: combine the
// cached COND0/COND1 against refx/refy and the flow instruction's
// combinator, leaving the host zero flag set iff the branch's condition is
// satisfied (jz reachable via emitter.JE after this call).
func (cs *compileState) evaluateCondition(inst isa.Instruction) {
	e := cs.e
	refX := int32(0)
	if inst.RefX {
		refX = 1
	}
	refY := int32(0)
	if inst.RefY {
		refY = 1
	}

	e.MovRegToReg(regScratch, regCond0)
	e.XorRegImm32(regScratch, refX^1)
	e.MovRegToReg(regEntry, regCond1) // regEntry is dead after prologue dispatch; reused as scratch
	e.XorRegImm32(regEntry, refY^1)

	// Each scratch value is now 1 where the component matched its ref, 0
	// otherwise; comparing the combined value against 1 sets ZF iff the
	// condition holds.
	switch inst.Cond {
	case isa.CondJustX:
		e.CmpRegImm32(regScratch, 1)
	case isa.CondJustY:
		e.CmpRegImm32(regEntry, 1)
	case isa.CondAnd:
		e.AndRegReg(regScratch, regEntry)
		e.CmpRegImm32(regScratch, 1)
	default: // CondOr
		e.OrRegReg(regScratch, regEntry)
		e.CmpRegImm32(regScratch, 1)
	}
}

// emitUniformCondition lowers UniformCondition: sets host flags from the
// boolean uniform byte at bool_uniform_id, per spec.md §4.4.8's literal
// "cmp byte[setup + bool-offset], 0" — the zero flag is set when the
// uniform is *false*, the opposite polarity of evaluateCondition.
func (cs *compileState) emitUniformCondition(boolUniformID uint32) {
	cs.e.CmpMemImm8(regSetup, int32(boolUniformBase+boolUniformID), 0)
}

// condSetter pairs a flag-setting emission with the JCC that reaches a
// label when the condition it just set is NOT satisfied. evaluateCondition
// and emitUniformCondition leave the host zero flag in opposite polarities
// (spec.md §4.4.8), so every consumer goes through one of these instead of
// assuming a fixed JE/JNE.
type condSetter struct {
	emit        func()
	jumpIfFalse emitter.JCC
}

func (cs *compileState) flagsCondition(inst isa.Instruction) condSetter {
	return condSetter{emit: func() { cs.evaluateCondition(inst) }, jumpIfFalse: emitter.JNE}
}

func (cs *compileState) uniformCondition(boolUniformID uint32) condSetter {
	return condSetter{emit: func() { cs.emitUniformCondition(boolUniformID) }, jumpIfFalse: emitter.JE}
}

func (c condSetter) jumpIfTrueCC() emitter.JCC {
	if c.jumpIfFalse == emitter.JE {
		return emitter.JNE
	}
	return emitter.JE
}

func (cs *compileState) dispatchFlow(pc uint32, inst isa.Instruction, op isa.Opcode) (uint32, error) {
	switch op {
	case isa.OpIfc:
		return cs.emitIf(pc, inst, cs.flagsCondition(inst))
	case isa.OpIfu:
		return cs.emitIf(pc, inst, cs.uniformCondition(inst.BoolUniformID))
	case isa.OpLoop:
		return cs.emitLoop(pc, inst)
	case isa.OpCall:
		cs.emitCall(inst, nil)
	case isa.OpCallc:
		cond := cs.flagsCondition(inst)
		cs.emitCall(inst, &cond)
	case isa.OpCallu:
		cond := cs.uniformCondition(inst.BoolUniformID)
		cs.emitCall(inst, &cond)
	case isa.OpJmpc:
		cs.emitJmp(inst, cs.flagsCondition(inst), false)
	case isa.OpJmpu:
		invert := inst.NumInstructions%2 != 0 // documented PICA quirk, reproduced bit-exactly
		cs.emitJmp(inst, cs.uniformCondition(inst.BoolUniformID), invert)
	case isa.OpBreak:
		if cs.loopEnd != nil {
			cs.e.Jmp(cs.loopEnd)
		}
	case isa.OpBreakc:
		if cs.loopEnd != nil {
			cond := cs.flagsCondition(inst)
			cond.emit()
			cs.e.JmpIf(cond.jumpIfTrueCC(), cs.loopEnd)
		}
	case isa.OpEnd:
		cs.emitEnd()
	case isa.OpNop:
		// no-op
	default:
		Logger.Printf("unknown flow opcode %#x at offset %d, skipped", inst.Raw, pc)
	}
	return pc + 1, nil
}

// emitIf lowers structured IF/IFU per spec.md §4.4.9. Forward-only: a
// backwards dest_offset is a fatal CompileError. Both branches are spliced
// into the emitted stream inline, at the instruction's natural program
// position; the returned offset tells the caller (the top-level driver or
// an enclosing IF/LOOP) to resume scanning past both branches, since their
// instructions have already been emitted here.
func (cs *compileState) emitIf(pc uint32, inst isa.Instruction, cond condSetter) (uint32, error) {
	if inst.DestOffset < pc {
		return 0, &CompileError{Kind: ErrBackwardsIf, Offset: pc}
	}
	e := cs.e
	cond.emit()
	elseLabel := e.NewLabel()
	e.JmpIf(cond.jumpIfFalse, elseLabel)

	if err := cs.emitRange(pc+1, inst.DestOffset); err != nil {
		return 0, err
	}

	if inst.NumInstructions == 0 {
		e.Bind(elseLabel)
		return inst.DestOffset, nil
	}
	endifLabel := e.NewLabel()
	e.Jmp(endifLabel)
	e.Bind(elseLabel)
	if err := cs.emitRange(inst.DestOffset, inst.DestOffset+inst.NumInstructions); err != nil {
		return 0, err
	}
	e.Bind(endifLabel)
	return inst.DestOffset + inst.NumInstructions, nil
}

// emitLoop lowers LOOP per spec.md §4.4.10. Nested loops and backwards
// targets are fatal CompileErrors. The body [pc+1, dest_offset] (inclusive
// of dest_offset) is spliced inline; the caller resumes at dest_offset+1.
func (cs *compileState) emitLoop(pc uint32, inst isa.Instruction) (uint32, error) {
	if cs.looping {
		return 0, &CompileError{Kind: ErrNestedLoop, Offset: pc}
	}
	if inst.DestOffset < pc {
		return 0, &CompileError{Kind: ErrBackwardsLoop, Offset: pc}
	}
	e := cs.e

	// int_uniform_id byte layout: byte0 = count-1, byte1 = start (x16
	// pre-scaled), byte2 = increment (x16 pre-scaled).
	intBase := int32(intUniformBase + inst.IntUniformID*4)
	e.MovMemToReg(regLoopCount, regSetup, intBase)
	e.AndRegImm32(regLoopCount, 0xFF)
	e.AddRegImm32(regLoopCount, 1)

	e.MovMemToReg(regLoopOffset, regSetup, intBase+1)
	e.AndRegImm32(regLoopOffset, 0xFF)
	e.ShiftLeftImm(regLoopOffset, 4)

	e.MovMemToReg(regLoopStride, regSetup, intBase+2)
	e.AndRegImm32(regLoopStride, 0xFF)
	e.ShiftLeftImm(regLoopStride, 4)

	top := e.NewLabel()
	end := e.NewLabel()
	prevLooping, prevEnd := cs.looping, cs.loopEnd
	cs.looping, cs.loopEnd = true, end

	e.Bind(top)
	bodyEnd := inst.DestOffset + 1
	if err := cs.emitRange(pc+1, bodyEnd); err != nil {
		cs.looping, cs.loopEnd = prevLooping, prevEnd
		return 0, err
	}

	e.AddRegReg(regLoopOffset, regLoopStride)
	e.DecRegL(regLoopCount)
	e.JmpIf(emitter.JNZ, top)
	e.Bind(end)

	cs.looping, cs.loopEnd = prevLooping, prevEnd
	return inst.DestOffset + 1, nil
}

// emitCall lowers CALL/CALLC/CALLU per spec.md §4.4.11: push the sentinel
// return offset, call the target label, drop the sentinel on return. When
// cond is non-nil it is invoked to set flags and the whole sequence is
// skipped if the condition is false.
func (cs *compileState) emitCall(inst isa.Instruction, cond *condSetter) {
	e := cs.e
	var skip *emitter.Label
	if cond != nil {
		cond.emit()
		skip = e.NewLabel()
		e.JmpIf(cond.jumpIfFalse, skip)
	}

	returnPoint := int64(inst.DestOffset + inst.NumInstructions)
	e.PushImm64(regScratch, returnPoint)
	e.CallLabel(cs.labels[inst.DestOffset])
	e.AddRSPImm8(8) // drop the sentinel the callee's return-check didn't consume

	if skip != nil {
		e.Bind(skip)
	}
}

// emitJmp lowers JMP/JMPC/JMPU per spec.md §4.4.12. cond sets host flags;
// invert flips the sense (the JMPU odd-num_instructions quirk).
func (cs *compileState) emitJmp(inst isa.Instruction, cond condSetter, invert bool) {
	cond.emit()
	cc := cond.jumpIfTrueCC()
	if invert {
		cc = cond.jumpIfFalse
	}
	cs.e.JmpIf(cc, cs.labels[inst.DestOffset])
}

// emitEnd lowers END: restore callee-saved registers, return to caller.
func (cs *compileState) emitEnd() {
	cs.e.RestoreCalleeSaved()
	cs.e.Ret()
}
