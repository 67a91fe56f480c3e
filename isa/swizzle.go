package isa

// RegisterType classifies a source register index into the register file
// it addresses.
type RegisterType int

const (
	Input RegisterType = iota
	Temporary
	FloatUniform
)

// Register-file boundaries for the combined index space addressed by Src1
// (and, for MAD, Src2/Src3): inputs occupy [0,16), temporaries [16,32),
// float uniforms [32,inf).
const (
	numInputRegisters = 16
	numTempRegisters  = 16
)

// SourceRegister classifies a combined register-file index as used by the
// "src1" (or MAD's wide) operand field.
func SourceRegister(index uint32) (RegisterType, uint32) {
	switch {
	case index < numInputRegisters:
		return Input, index
	case index < numInputRegisters+numTempRegisters:
		return Temporary, index - numInputRegisters
	default:
		return FloatUniform, index - numInputRegisters - numTempRegisters
	}
}

// IdentitySelector is the raw (unreversed) source-selector value recognised
// as the no-op swizzle X→X, Y→Y, Z→Z, W→W.
const IdentitySelector uint8 = 0x1b

// ReverseSelector swaps a source selector's component-pair order so it can
// be used directly as a host SIMD shuffle/shufps immediate. It is only
// meaningful to call this when the selector is not IdentitySelector.
func ReverseSelector(s uint8) uint8 {
	return ((s >> 6) & 3) | ((s & 3) << 6) | ((s & 0xc) << 2) | ((s & 0x30) >> 2)
}

// SwizzlePattern is the decoded form of an operand descriptor table entry.
type SwizzlePattern struct {
	// DestMask is the 4-bit per-component write-enable mask, bit 0 = X.
	DestMask uint8
	// SrcSelector holds the raw (unreversed) 8-bit selector for each of up
	// to three source operands (src1, src2, src3).
	SrcSelector [3]uint8
	// Negate holds the per-source negate flag.
	Negate [3]bool
}

// OperandDescriptorTable is the swizzle_data table referenced by
// operand_desc_id; it is owned by the caller (part of the shader setup
// block) and merely indexed here.
type OperandDescriptorTable []SwizzlePattern

// OperandDescriptor returns the swizzle pattern for the given descriptor
// id, or a default pattern (identity swizzle, full write mask, no negate) if
// the id is out of range.
func (t OperandDescriptorTable) OperandDescriptor(id uint32) SwizzlePattern {
	if int(id) >= len(t) {
		return SwizzlePattern{DestMask: 0xF, SrcSelector: [3]uint8{IdentitySelector, IdentitySelector, IdentitySelector}}
	}
	return t[id]
}

// PackOperandDescriptor builds a SwizzlePattern from its components; used
// by tests and by program builders to avoid hand-deriving raw table rows.
func PackOperandDescriptor(destMask uint8, sel1, sel2, sel3 uint8, neg1, neg2, neg3 bool) SwizzlePattern {
	return SwizzlePattern{
		DestMask:    destMask & 0xF,
		SrcSelector: [3]uint8{sel1, sel2, sel3},
		Negate:      [3]bool{neg1, neg2, neg3},
	}
}
