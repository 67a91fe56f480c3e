package isa

// CondOp is the combinator used by flow-control instructions to reduce the
// two CMP-cached booleans (COND0/COND1) to a single jump condition.
type CondOp uint32

const (
	CondOr CondOp = iota
	CondAnd
	CondJustX
	CondJustY
)

// CompareOp is the per-component comparison predicate used by CMP.
type CompareOp uint32

const (
	CompareEq CompareOp = iota
	CompareNeq
	CompareLt
	CompareLe
	CompareGt
	CompareGe
)

// Instruction is the decoded form of one 32-bit PICA200 instruction word.
// Only the fields relevant to the opcode's family are meaningful; the rest
// are left zero.
type Instruction struct {
	Raw    uint32
	Opcode Opcode

	// SrcInversed is set for DPHI/SGEI/SLTI/MADI: the operand-swap subtype.
	SrcInversed bool

	// Common / MAD family.
	Src1                 uint32
	Src2                 uint32
	Src3                 uint32 // MAD only.
	Dest                 uint32
	OperandDescID        uint32
	AddressRegisterIndex uint32

	// Compare family (CMP).
	CompareOpX CompareOp
	CompareOpY CompareOp

	// Flow-control family.
	DestOffset      uint32
	NumInstructions uint32
	BoolUniformID   uint32
	IntUniformID    uint32
	RefX            bool
	RefY            bool
	Cond            CondOp
}

// Bit layouts. These are an internally-consistent encoding chosen for this
// implementation (the PICA200 hardware's literal bit positions are not a
// tested invariant of the spec this models); Decode and the Encode* helpers
// below always agree with each other.
//
// Common family (32 bits): opcode(6) dest(5) src1(7) src2(5) addr(2) opdesc(7)
// CMP           (32 bits): opcode(5) cmpx(3) cmpy(3) src1(7) src2(5) addr(2) opdesc(7)
//   (cmpx's top bit is the opcode's low bit, so CMP occupies slots 0x2E-0x2F)
// MAD family    (32 bits): opcode(6) dest(4) src1(7) src2(4) src3(4) addr(2) opdesc(5)
// Flow family   (32 bits): opcode(6) dest_offset(9) num_instructions(9) aux(8)
//   aux is reinterpreted per opcode: CALLC/IFC/JMPC/BREAKC use refx(1) refy(1) cond(2);
//   CALLU/IFU/JMPU use bool_uniform_id(4); LOOP uses int_uniform_id(4).
const (
	opcodeShift = 26
	opcodeMask  = 0x3F

	commonDestShift = 21
	commonDestMask  = 0x1F
	commonSrc1Shift = 14
	commonSrc1Mask  = 0x7F
	commonSrc2Shift = 9
	commonSrc2Mask  = 0x1F
	commonAddrShift = 7
	commonAddrMask  = 0x3
	commonDescMask  = 0x7F

	madDestShift = 22
	madDestMask  = 0xF
	madSrc1Shift = 15
	madSrc1Mask  = 0x7F
	madSrc2Shift = 11
	madSrc2Mask  = 0xF
	madSrc3Shift = 7
	madSrc3Mask  = 0xF
	madAddrShift = 5
	madAddrMask  = 0x3
	madDescMask  = 0x1F

	flowDestOffShift = 17
	flowDestOffMask  = 0x1FF
	flowNumInstShift = 8
	flowNumInstMask  = 0x1FF
	flowAuxMask      = 0xFF
)

// Decode parses a 32-bit instruction word into its structured form,
// dispatching on the opcode's family for the remaining bitfields.
func Decode(word uint32) Instruction {
	op := Opcode((word >> opcodeShift) & opcodeMask)
	if op == OpCmp|1 {
		// CMP's compare-op field reaches into the opcode's low bit, so both
		// 0x2E and 0x2F decode as CMP.
		op = OpCmp
	}
	inst := Instruction{Raw: word, Opcode: op, SrcInversed: op.IsInverted()}

	switch op.Family() {
	case FamilyCommon:
		inst.Dest = (word >> commonDestShift) & commonDestMask
		inst.Src1 = (word >> commonSrc1Shift) & commonSrc1Mask
		inst.Src2 = (word >> commonSrc2Shift) & commonSrc2Mask
		inst.AddressRegisterIndex = (word >> commonAddrShift) & commonAddrMask
		inst.OperandDescID = word & commonDescMask
	case FamilyCompare:
		inst.Src1 = (word >> commonSrc1Shift) & commonSrc1Mask
		inst.Src2 = (word >> commonSrc2Shift) & commonSrc2Mask
		inst.AddressRegisterIndex = (word >> commonAddrShift) & commonAddrMask
		inst.OperandDescID = word & commonDescMask
		raw := (word >> commonDestShift) & 0x3F
		inst.CompareOpX = CompareOp((raw >> 3) & 0x7)
		inst.CompareOpY = CompareOp(raw & 0x7)
	case FamilyMad:
		inst.Dest = (word >> madDestShift) & madDestMask
		inst.Src1 = (word >> madSrc1Shift) & madSrc1Mask
		inst.Src2 = (word >> madSrc2Shift) & madSrc2Mask
		inst.Src3 = (word >> madSrc3Shift) & madSrc3Mask
		inst.AddressRegisterIndex = (word >> madAddrShift) & madAddrMask
		inst.OperandDescID = word & madDescMask
	case FamilyFlow:
		inst.DestOffset = (word >> flowDestOffShift) & flowDestOffMask
		inst.NumInstructions = (word >> flowNumInstShift) & flowNumInstMask
		aux := word & flowAuxMask
		switch op {
		case OpCallc, OpIfc, OpJmpc, OpBreakc:
			inst.RefX = aux&0x8 != 0
			inst.RefY = aux&0x4 != 0
			inst.Cond = CondOp((aux >> 0) & 0x3)
		case OpCallu, OpIfu, OpJmpu:
			inst.BoolUniformID = aux & 0xF
		case OpLoop:
			inst.IntUniformID = aux & 0xF
		}
	}
	return inst
}

// EncodeCommon packs a Common-family instruction word. It is the inverse of
// Decode for FamilyCommon opcodes, used by tests and by the demo tool to
// build PICA200 programs without hand-deriving raw hex.
func EncodeCommon(op Opcode, dest, src1, src2, addrReg, operandDescID uint32) uint32 {
	return uint32(op)<<opcodeShift |
		(dest&commonDestMask)<<commonDestShift |
		(src1&commonSrc1Mask)<<commonSrc1Shift |
		(src2&commonSrc2Mask)<<commonSrc2Shift |
		(addrReg&commonAddrMask)<<commonAddrShift |
		(operandDescID & commonDescMask)
}

// EncodeCompare packs a CMP instruction word.
func EncodeCompare(opX, opY CompareOp, src1, src2, addrReg, operandDescID uint32) uint32 {
	raw := (uint32(opX)&0x7)<<3 | (uint32(opY) & 0x7)
	return uint32(OpCmp)<<opcodeShift |
		raw<<commonDestShift |
		(src1&commonSrc1Mask)<<commonSrc1Shift |
		(src2&commonSrc2Mask)<<commonSrc2Shift |
		(addrReg&commonAddrMask)<<commonAddrShift |
		(operandDescID & commonDescMask)
}

// EncodeMad packs a MAD-family instruction word. slot selects one of the
// eight MAD (or MADI, via base OpMadiBase) aliasing opcode slots; any value in
// [0,8) is equivalent under EffectiveOpcode.
func EncodeMad(base Opcode, slot uint32, dest, src1, src2, src3, addrReg, operandDescID uint32) uint32 {
	op := base + Opcode(slot%madSpan)
	return uint32(op)<<opcodeShift |
		(dest&madDestMask)<<madDestShift |
		(src1&madSrc1Mask)<<madSrc1Shift |
		(src2&madSrc2Mask)<<madSrc2Shift |
		(src3&madSrc3Mask)<<madSrc3Shift |
		(addrReg&madAddrMask)<<madAddrShift |
		(operandDescID & madDescMask)
}

// EncodeFlowC packs a conditional flow-control word (CALLC/IFC/JMPC/BREAKC).
func EncodeFlowC(op Opcode, destOffset, numInstructions uint32, cond CondOp, refx, refy bool) uint32 {
	aux := uint32(cond) & 0x3
	if refx {
		aux |= 0x8
	}
	if refy {
		aux |= 0x4
	}
	return encodeFlow(op, destOffset, numInstructions, aux)
}

// EncodeFlowU packs a uniform-gated flow-control word (CALLU/IFU/JMPU).
func EncodeFlowU(op Opcode, destOffset, numInstructions, boolUniformID uint32) uint32 {
	return encodeFlow(op, destOffset, numInstructions, boolUniformID&0xF)
}

// EncodeLoop packs a LOOP instruction word.
func EncodeLoop(destOffset, numInstructions, intUniformID uint32) uint32 {
	return encodeFlow(OpLoop, destOffset, numInstructions, intUniformID&0xF)
}

// EncodeFlowPlain packs CALL/BREAK/END and other flow words that carry
// no condition/uniform payload in aux.
func EncodeFlowPlain(op Opcode, destOffset, numInstructions uint32) uint32 {
	return encodeFlow(op, destOffset, numInstructions, 0)
}

func encodeFlow(op Opcode, destOffset, numInstructions, aux uint32) uint32 {
	return uint32(op)<<opcodeShift |
		(destOffset&flowDestOffMask)<<flowDestOffShift |
		(numInstructions&flowNumInstMask)<<flowNumInstShift |
		(aux & flowAuxMask)
}
