package isa_test

import (
	"testing"

	"github.com/n3ds-emu/pica200jit/isa"
)

func TestDecodeCommonRoundTrip(t *testing.T) {
	word := isa.EncodeCommon(isa.OpAdd, 5, 40, 3, 2, 17)
	inst := isa.Decode(word)

	if inst.Opcode != isa.OpAdd {
		t.Fatalf("opcode = %v, want ADD", inst.Opcode)
	}
	if inst.Dest != 5 || inst.Src1 != 40 || inst.Src2 != 3 {
		t.Fatalf("unexpected fields: %+v", inst)
	}
	if inst.AddressRegisterIndex != 2 {
		t.Fatalf("address_register_index = %d, want 2", inst.AddressRegisterIndex)
	}
	if inst.OperandDescID != 17 {
		t.Fatalf("operand_desc_id = %d, want 17", inst.OperandDescID)
	}
	if inst.SrcInversed {
		t.Fatalf("ADD must not be marked SrcInversed")
	}
}

func TestEffectiveOpcodeCollapsesMadSpan(t *testing.T) {
	for slot := uint32(0); slot < 8; slot++ {
		word := isa.EncodeMad(isa.OpMadBase, slot, 1, 2, 3, 4, 0, 5)
		inst := isa.Decode(word)
		if inst.Opcode.EffectiveOpcode() != isa.OpMadBase {
			t.Fatalf("slot %d: effective opcode = %v, want MAD", slot, inst.Opcode.EffectiveOpcode())
		}
	}
}

func TestInvertedVariantsSetSrcInversed(t *testing.T) {
	for _, op := range []isa.Opcode{isa.OpDphi, isa.OpSgei, isa.OpSlti} {
		word := isa.EncodeCommon(op, 0, 0, 0, 0, 0)
		inst := isa.Decode(word)
		if !inst.SrcInversed {
			t.Errorf("%v: SrcInversed = false, want true", op)
		}
	}
	word := isa.EncodeCommon(isa.OpDph, 0, 0, 0, 0, 0)
	if isa.Decode(word).SrcInversed {
		t.Errorf("DPH: SrcInversed = true, want false")
	}
}

func TestUnknownOpcodeDoesNotPanic(t *testing.T) {
	word := isa.EncodeCommon(isa.Opcode(0x14), 0, 0, 0, 0, 0)
	inst := isa.Decode(word)
	if inst.Opcode.Family() != isa.FamilyUnknown {
		t.Fatalf("opcode 0x14: family = %v, want FamilyUnknown", inst.Opcode.Family())
	}
	if inst.Opcode.String() != "UNKNOWN" {
		t.Fatalf("opcode 0x14: String() = %q, want UNKNOWN", inst.Opcode.String())
	}
}

func TestSourceRegisterClassification(t *testing.T) {
	tests := []struct {
		index    uint32
		wantType isa.RegisterType
		wantIdx  uint32
	}{
		{0, isa.Input, 0},
		{15, isa.Input, 15},
		{16, isa.Temporary, 0},
		{31, isa.Temporary, 15},
		{32, isa.FloatUniform, 0},
		{95, isa.FloatUniform, 63},
	}
	for _, tc := range tests {
		rt, idx := isa.SourceRegister(tc.index)
		if rt != tc.wantType || idx != tc.wantIdx {
			t.Errorf("SourceRegister(%d) = (%v, %d), want (%v, %d)", tc.index, rt, idx, tc.wantType, tc.wantIdx)
		}
	}
}

func TestReverseSelectorIdentity(t *testing.T) {
	r := isa.ReverseSelector(isa.IdentitySelector)
	for c := uint(0); c < 4; c++ {
		got := (r >> (2 * c)) & 3
		if uint8(got) != uint8(c) {
			t.Errorf("component %d: reversed selector lane = %d, want %d", c, got, c)
		}
	}
}

func TestReverseSelectorMatchesSpecFormula(t *testing.T) {
	// For every selector s, pair c of the reversed selector must equal pair
	// 3-c of the original: ReverseSelector only swaps the pair order.
	for s := 0; s < 256; s++ {
		sel := uint8(s)
		r := isa.ReverseSelector(sel)
		for c := uint(0); c < 4; c++ {
			want := (sel >> (2 * c)) & 3
			got := (r >> (2 * c)) & 3
			// The formula swaps pair order (c <-> 3-c), so the reversed
			// selector's pair c equals the original selector's pair 3-c.
			wantSwapped := (sel >> (2 * (3 - c))) & 3
			if got != wantSwapped {
				t.Fatalf("selector %#02x component %d: reversed pair = %d, want %d", sel, c, got, wantSwapped)
			}
			_ = want
		}
	}
}

func TestOperandDescriptorTableOutOfRangeFallsBackToIdentity(t *testing.T) {
	var tbl isa.OperandDescriptorTable
	pat := tbl.OperandDescriptor(3)
	if pat.DestMask != 0xF {
		t.Fatalf("DestMask = %#x, want 0xF", pat.DestMask)
	}
	for _, sel := range pat.SrcSelector {
		if sel != isa.IdentitySelector {
			t.Fatalf("SrcSelector = %#x, want identity", sel)
		}
	}
}

func TestFlowControlConditionalDecode(t *testing.T) {
	word := isa.EncodeFlowC(isa.OpJmpc, 10, 0, isa.CondAnd, true, false)
	inst := isa.Decode(word)
	if inst.DestOffset != 10 {
		t.Fatalf("dest_offset = %d, want 10", inst.DestOffset)
	}
	if inst.Cond != isa.CondAnd || !inst.RefX || inst.RefY {
		t.Fatalf("unexpected condition fields: %+v", inst)
	}
}

func TestFlowControlLoopDecode(t *testing.T) {
	word := isa.EncodeLoop(4, 2, 9)
	inst := isa.Decode(word)
	if inst.DestOffset != 4 || inst.NumInstructions != 2 || inst.IntUniformID != 9 {
		t.Fatalf("unexpected loop fields: %+v", inst)
	}
}

func TestCompareFamilyDecode(t *testing.T) {
	word := isa.EncodeCompare(isa.CompareGe, isa.CompareLt, 1, 2, 0, 7)
	inst := isa.Decode(word)
	if inst.CompareOpX != isa.CompareGe || inst.CompareOpY != isa.CompareLt {
		t.Fatalf("unexpected compare ops: %+v", inst)
	}
	if inst.OperandDescID != 7 {
		t.Fatalf("operand_desc_id = %d, want 7", inst.OperandDescID)
	}
}
