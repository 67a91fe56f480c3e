// Package isa models the PICA200 vertex-shader instruction set: opcode
// decoding, operand descriptors, and register classification. It is pure
// data — no code generation happens here.
package isa

// Opcode is the raw 6-bit opcode field of an instruction word.
type Opcode uint32

// Raw opcode values. MAD and MADI each occupy eight consecutive slots;
// EffectiveOpcode collapses each span down to a single representative
// value for dispatch. The inverted Common variants keep their own values.
const (
	OpAdd  Opcode = 0x00
	OpDp3  Opcode = 0x01
	OpDp4  Opcode = 0x02
	OpDph  Opcode = 0x03
	OpDphi Opcode = 0x04
	OpDst  Opcode = 0x05
	OpEx2  Opcode = 0x06
	OpLg2  Opcode = 0x07

	OpMul  Opcode = 0x08
	OpSge  Opcode = 0x09
	OpSgei Opcode = 0x0A
	OpSlt  Opcode = 0x0B
	OpSlti Opcode = 0x0C
	OpFlr  Opcode = 0x0D
	OpMax  Opcode = 0x0E
	OpMin  Opcode = 0x0F
	OpRcp  Opcode = 0x10
	OpRsq  Opcode = 0x11
	OpMova Opcode = 0x12
	OpMov  Opcode = 0x13

	OpBreak  Opcode = 0x20
	OpNop    Opcode = 0x21
	OpEnd    Opcode = 0x22
	OpBreakc Opcode = 0x23
	OpCall   Opcode = 0x24
	OpCallc  Opcode = 0x25
	OpCallu  Opcode = 0x26
	OpIfu    Opcode = 0x27
	OpIfc    Opcode = 0x28
	OpLoop   Opcode = 0x29
	OpJmpc   Opcode = 0x2C
	OpJmpu   Opcode = 0x2D
	OpCmp    Opcode = 0x2E

	// OpMadBase..OpMadBase+7 is the MAD slot range.
	OpMadBase Opcode = 0x30
	// OpMadiBase..OpMadiBase+7 is the MADI slot range.
	OpMadiBase Opcode = 0x38
)

// madSpan is the number of consecutive opcode slots MAD/MADI each occupy.
const madSpan = 8

// Family groups opcodes by instruction-word layout.
type Family int

const (
	FamilyUnknown Family = iota
	FamilyCommon
	FamilyCompare
	FamilyMad
	FamilyFlow
)

// EffectiveOpcode collapses MAD's and MADI's eight-slot spans into
// OpMadBase and OpMadiBase respectively, the values the compiler dispatches
// on. For everything else, including DPHI/SGEI/SLTI, it is the identity.
func (op Opcode) EffectiveOpcode() Opcode {
	if op >= OpMadBase && op < OpMadBase+madSpan {
		return OpMadBase
	}
	if op >= OpMadiBase && op < OpMadiBase+madSpan {
		return OpMadiBase
	}
	return op
}

// Family reports which instruction-word layout this opcode decodes under.
func (op Opcode) Family() Family {
	eff := op.EffectiveOpcode()
	switch {
	case eff == OpMadBase || eff == OpMadiBase:
		return FamilyMad
	case eff == OpCmp:
		return FamilyCompare
	case eff >= OpBreak && eff <= OpJmpu:
		return FamilyFlow
	case eff <= OpMov:
		return FamilyCommon
	default:
		return FamilyUnknown
	}
}

// IsInverted reports whether this is one of the Common-family operand-swap
// variants (DPHI, SGEI, SLTI, MADI) whose SrcInversed subtype flag must be
// set by Decode.
func (op Opcode) IsInverted() bool {
	switch op {
	case OpDphi, OpSgei, OpSlti:
		return true
	}
	return op >= OpMadiBase && op < OpMadiBase+madSpan
}

// String names the opcode for diagnostics; unrecognised values print as
// "UNKNOWN" rather than panicking, matching the "unknown opcode: log and
// skip" non-fatal error policy.
func (op Opcode) String() string {
	if name, ok := opcodeNames[op.EffectiveOpcode()]; ok {
		return name
	}
	return "UNKNOWN"
}

var opcodeNames = map[Opcode]string{
	OpAdd: "ADD", OpDp3: "DP3", OpDp4: "DP4", OpDph: "DPH", OpDphi: "DPHI", OpDst: "DST",
	OpEx2: "EX2", OpLg2: "LG2",
	OpMul: "MUL", OpSge: "SGE", OpSgei: "SGEI", OpSlt: "SLT", OpSlti: "SLTI", OpFlr: "FLR",
	OpMax: "MAX", OpMin: "MIN", OpRcp: "RCP", OpRsq: "RSQ", OpMova: "MOVA", OpMov: "MOV",
	OpBreak: "BREAK", OpNop: "NOP", OpEnd: "END", OpBreakc: "BREAKC",
	OpCall: "CALL", OpCallc: "CALLC", OpCallu: "CALLU",
	OpIfu: "IFU", OpIfc: "IFC", OpLoop: "LOOP",
	OpJmpc: "JMPC", OpJmpu: "JMPU", OpCmp: "CMP",
	OpMadBase: "MAD", OpMadiBase: "MADI",
}
