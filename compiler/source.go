package compiler

import (
	"github.com/n3ds-emu/pica200jit/emitter"
	"github.com/n3ds-emu/pica200jit/isa"
)

// Byte layout of the external setup/unit-state blocks. spec.md §1 and §6
// treat this layout as an external collaborator owned by the surrounding
// emulator; these constants fix a concrete, internally-consistent stride so
// the compiler can emit address arithmetic, following spec.md §4.4.2's
// "address = setup-base + uniform-offset(index)" / "state-base +
// input-or-temp-offset(index)" contract. Vectors are 4×f32, 16 bytes.
const (
	vectorStride = 16

	floatUniformBase = 0 // setup block: 96 float-uniform vectors
	boolUniformBase  = floatUniformBase + 96*vectorStride
	intUniformBase   = boolUniformBase + 16 // 16 bool uniforms, 1 byte each

	inputBase  = 0 // unit-state block: 16 input vectors
	tempBase   = inputBase + 16*vectorStride
	outputBase = tempBase + 16*vectorStride
)

// sourceAddress returns the base register and byte displacement for a
// source register index, per spec.md §4.4.2 step 1.
func sourceAddress(index uint32) (base emitter.Reg, disp int32) {
	rt, idx := isa.SourceRegister(index)
	switch rt {
	case isa.FloatUniform:
		return regSetup, int32(floatUniformBase + idx*vectorStride)
	case isa.Temporary:
		return regUnit, int32(tempBase + idx*vectorStride)
	default: // Input
		return regUnit, int32(inputBase + idx*vectorStride)
	}
}

// addressOffsetReg maps a 2-bit address_register_index to the host
// register holding that offset, or -1 if unindexed (index 0).
func addressOffsetReg(addrRegIdx uint32) emitter.Reg {
	switch addrRegIdx {
	case 1:
		return regAddr0
	case 2:
		return regAddr1
	case 3:
		return regLoopOffset
	default:
		return -1
	}
}

// loadSource loads source register index into dst, applying indexed
// addressing (if offsetReg >= 0), swizzle, and negate, per spec.md §4.4.2.
// offsetReg is the host offset register to add to the base address, or -1
// for unindexed access.
func (cs *compileState) loadSource(index uint32, offsetReg emitter.Reg, selector uint8, negate bool, dst emitter.Reg) {
	e := cs.e
	base, disp := sourceAddress(index)

	if offsetReg >= 0 {
		// Materialise base+disp+offsetReg into regScratch; MovUpsLoad only
		// takes a single base register plus a constant displacement.
		e.MovRegToReg(regScratch, base)
		e.AddRegReg(regScratch, offsetReg)
		e.MovUpsLoad(dst, regScratch, disp)
	} else {
		e.MovUpsLoad(dst, base, disp)
	}

	if selector != isa.IdentitySelector {
		order := isa.ReverseSelector(selector)
		e.ShufPs(dst, dst, order)
	}
	if negate {
		e.XorPs(dst, xNeg)
	}
}

// operandOffsetReg picks the host offset register for the given
// instruction's addressing, honouring that only the non-immediate ("offset
// source") operand may be indexed: for the un-inverted common/MAD variants
// that is src1, for the SrcInversed variants (DPHI/SGEI/SLTI/MADI) it is
// src2.
func (cs *compileState) operandOffsetReg(inst isa.Instruction, isOffsetSource bool) emitter.Reg {
	if !isOffsetSource {
		return -1
	}
	return addressOffsetReg(inst.AddressRegisterIndex)
}

// loadOperands loads src1/src2 (and src3 for MAD) of inst into
// xSrc1/xSrc2/xSrc3, resolving the operand descriptor's swizzle/negate per
// source and honouring the SrcInversed addressing rule above.
func (cs *compileState) loadOperands(inst isa.Instruction, hasSrc3 bool) {
	pat := cs.swizzle.OperandDescriptor(inst.OperandDescID)

	offsetIsSrc2 := inst.SrcInversed
	cs.loadSource(inst.Src1, cs.operandOffsetReg(inst, !offsetIsSrc2), pat.SrcSelector[0], pat.Negate[0], xSrc1)
	cs.loadSource(inst.Src2, cs.operandOffsetReg(inst, offsetIsSrc2), pat.SrcSelector[1], pat.Negate[1], xSrc2)
	if hasSrc3 {
		cs.loadSource(inst.Src3, -1, pat.SrcSelector[2], pat.Negate[2], xSrc3)
	}
}
