package compiler

import (
	"github.com/n3ds-emu/pica200jit/isa"
)

// sanitisedMultiply lowers spec.md §4.4.3's NaN-sanitising multiply of a
// and b in place into a, using scratch as a temporary mask register.
func (cs *compileState) sanitisedMultiply(a, b, scratch int16) {
	e := cs.e
	const cmpOrdered = 7   // SSE CMPPS predicate: ordered (neither NaN)
	const cmpUnordered = 3 // SSE CMPPS predicate: unordered (either NaN)

	e.MovApsRegReg(scratch, a)
	e.CmpPs(scratch, b, cmpOrdered) // scratch = mask(ordered(a,b))
	e.MulPs(a, b)                   // a = a*b
	e.MovApsRegReg(xScratch2, a)
	e.CmpPs(xScratch2, a, cmpUnordered) // xScratch2 = mask(isnan(a*b))
	e.XorPs(scratch, xScratch2)         // scratch = ordered XOR isnan(product)
	e.AndPs(a, scratch)
}

func (cs *compileState) emitAdd(inst isa.Instruction) {
	cs.loadOperands(inst, false)
	cs.e.AddPs(xSrc1, xSrc2)
	cs.writeDestWithDescriptor(inst, xSrc1)
}

func (cs *compileState) emitMul(inst isa.Instruction) {
	cs.loadOperands(inst, false)
	cs.sanitisedMultiply(xSrc1, xSrc2, xScratch1)
	cs.writeDestWithDescriptor(inst, xSrc1)
}

func (cs *compileState) emitMad(inst isa.Instruction) {
	cs.loadOperands(inst, true)
	cs.sanitisedMultiply(xSrc1, xSrc2, xScratch1)
	cs.e.AddPs(xSrc1, xSrc3)
	cs.writeDestWithDescriptor(inst, xSrc1)
}

func (cs *compileState) emitMaxMin(inst isa.Instruction, isMax bool) {
	cs.loadOperands(inst, false)
	if isMax {
		cs.e.MaxPs(xSrc1, xSrc2) // host maxps: NaN operand -> second operand wins, matching PICA
	} else {
		cs.e.MinPs(xSrc1, xSrc2)
	}
	cs.writeDestWithDescriptor(inst, xSrc1)
}

// emitDot lowers DP3/DP4/DPH/DPHI: sanitised product, then a tree of
// shuffle+add to sum `lanes` components, broadcast to all four lanes.
// forceW1 implements DPH/DPHI's "force src1's W component to 1.0" step.
func (cs *compileState) emitDot(inst isa.Instruction, lanes int, forceW1 bool) {
	e := cs.e
	cs.loadOperands(inst, false)
	if forceW1 {
		// Blend xOne into lane W (mask 0b1000) of xSrc1.
		if e.HasSSE41() {
			e.BlendPs(xSrc1, xOne, blendMaskOrder(0b1000))
		} else {
			cs.blendPsFallback(xSrc1, xOne, 0b1000)
		}
	}
	cs.sanitisedMultiply(xSrc1, xSrc2, xScratch1)

	if lanes == 3 {
		// Zero lane W before summing so DP3 ignores it.
		if e.HasSSE41() {
			e.XorPs(xScratch2, xScratch2)
			e.BlendPs(xSrc1, xScratch2, blendMaskOrder(0b1000))
		} else {
			// xSrc3 is unused by DP3/DP4/DPH/DPHI; zero it here rather than
			// xScratch1/xScratch2, which blendPsFallback needs as temporaries
			// distinct from its src operand.
			e.XorPs(xSrc3, xSrc3)
			cs.blendPsFallback(xSrc1, xSrc3, 0b1000)
		}
	}

	// Horizontal sum via shuffle+add: sum = x+y+z+w, broadcast to all lanes.
	// 0x4E/0xB1 are the standard x86 SHUFPS immediates for swapping hi/lo
	// pairs and swapping adjacent pairs, respectively (unrelated to the
	// PICA selector bit layout ReverseSelector translates).
	const swapHiLoPairs = 0x4E
	const swapAdjacentPairs = 0xB1
	e.MovApsRegReg(xScratch1, xSrc1)
	e.ShufPs(xScratch1, xScratch1, swapHiLoPairs) // (z,w,x,y)
	e.AddPs(xSrc1, xScratch1)                     // lanes: x+z, y+w, z+x, w+y
	e.MovApsRegReg(xScratch1, xSrc1)
	e.ShufPs(xScratch1, xScratch1, swapAdjacentPairs) // (y,x,w,z)
	e.AddPs(xSrc1, xScratch1)                         // all lanes now x+y+z+w

	cs.writeDestWithDescriptor(inst, xSrc1)
}

// emitSgeSlt lowers SGE/SGEI (isGe=true) and SLT/SLTI (isGe=false):
// per-lane src1 >= src2 (or <) ? 1.0 : 0.0, via a compare mask ANDed with
// the one-constant.
func (cs *compileState) emitSgeSlt(inst isa.Instruction, isGe bool) {
	e := cs.e
	cs.loadOperands(inst, false)
	const cmpLt = 1
	const cmpGe = 5
	predicate := uint8(cmpLt)
	if isGe {
		predicate = cmpGe
	}
	e.CmpPs(xSrc1, xSrc2, predicate)
	e.AndPs(xSrc1, xOne)
	cs.writeDestWithDescriptor(inst, xSrc1)
}

// emitFlr lowers FLR: SSE4.1 roundps (mode 1, toward negative infinity) or
// a truncate-and-reconvert SSE2 fallback with a correction for negative
// non-integral inputs.
func (cs *compileState) emitFlr(inst isa.Instruction) {
	e := cs.e
	cs.loadOperands(inst, false)
	if e.HasSSE41() {
		const roundDown = 1
		e.RoundPs(xSrc1, xSrc1, roundDown)
		cs.writeDestWithDescriptor(inst, xSrc1)
		return
	}
	e.Cvttps2dq(xScratch1, xSrc1) // truncate toward zero
	e.Cvtdq2ps(xScratch1, xScratch1)
	// Correct: where truncated > original (i.e. input was negative and
	// non-integral), subtract 1.
	e.MovApsRegReg(xScratch2, xScratch1)
	const cmpGt = 6 // truncated > original
	e.CmpPs(xScratch2, xSrc1, cmpGt)
	e.AndPs(xScratch2, xOne)
	e.SubPs(xScratch1, xScratch2)
	// writeDest's SSE2 masking path uses xScratch1/xScratch2 as temporaries.
	e.MovApsRegReg(xSrc1, xScratch1)
	cs.writeDestWithDescriptor(inst, xSrc1)
}

// emitRcpRsq lowers RCP (isRcp=true) and RSQ: scalar hardware approximation
// of lane 0, broadcast to all four lanes via shufps selector 0.
func (cs *compileState) emitRcpRsq(inst isa.Instruction, isRcp bool) {
	e := cs.e
	cs.loadOperands(inst, false)
	if isRcp {
		e.Rcpss(xSrc1, xSrc1)
	} else {
		e.Rsqrtss(xSrc1, xSrc1)
	}
	e.ShufPs(xSrc1, xSrc1, 0)
	cs.writeDestWithDescriptor(inst, xSrc1)
}

func (cs *compileState) emitMov(inst isa.Instruction) {
	cs.loadOperands(inst, false)
	cs.writeDestWithDescriptor(inst, xSrc1)
}

// emitDst lowers the supplemental DST opcode: lane-wise
// (1, src1.y, src1.z, src2.w).
func (cs *compileState) emitDst(inst isa.Instruction) {
	e := cs.e
	cs.loadOperands(inst, false)
	// Build (1, src1.y, *, *) then fold in src2.w.
	if e.HasSSE41() {
		e.BlendPs(xSrc1, xOne, blendMaskOrder(0b0001))
		e.BlendPs(xSrc1, xSrc2, blendMaskOrder(0b1000))
	} else {
		cs.blendPsFallback(xSrc1, xOne, 0b0001)
		cs.blendPsFallback(xSrc1, xSrc2, 0b1000)
	}
	cs.writeDestWithDescriptor(inst, xSrc1)
}

// emitEx2Lg2 lowers EX2/LG2 per spec.md §4.4.5: a scalar foreign call to
// exp2f/log2f on lane X, broadcast to all four lanes. The host C ABI
// clobbers caller-saved GPRs and every XMM register, so the persistent
// state living in caller-saved GPRs (regSetup, regUnit, regCond0, regCond1)
// is spilled around the call, and the XMM constants are rematerialised
// afterward rather than saved, since reloading is cheaper than spilling two
// more 16-byte registers.
func (cs *compileState) emitEx2Lg2(inst isa.Instruction, target uintptr) {
	e := cs.e
	cs.loadOperands(inst, false)

	e.PushReg(regSetup)
	e.PushReg(regUnit)
	e.PushReg(regCond0)
	e.PushReg(regCond1)
	// Four 8-byte pushes above preserve 16-byte stack alignment, so no
	// extra AlignStackBeforeCall adjustment is needed here.

	e.MovApsRegReg(xScratch1, xSrc1) // scalar arg in xmm0 per the SysV ABI
	e.CallFar(regScratch, target)
	e.MovApsRegReg(xSrc1, xScratch1)

	e.PopReg(regCond1)
	e.PopReg(regCond0)
	e.PopReg(regUnit)
	e.PopReg(regSetup)

	loadVectorConstants(e) // the call clobbered xOne/xNeg along with every other xmm register

	e.ShufPs(xSrc1, xSrc1, 0) // broadcast lane 0
	cs.writeDestWithDescriptor(inst, xSrc1)
}

// writeDestWithDescriptor resolves inst's operand descriptor for dest_mask
// and calls writeDest.
func (cs *compileState) writeDestWithDescriptor(inst isa.Instruction, src int16) {
	pat := cs.swizzle.OperandDescriptor(inst.OperandDescID)
	cs.writeDest(inst.Dest, pat.DestMask, src)
}
