package analysis_test

import (
	"reflect"
	"testing"

	"github.com/n3ds-emu/pica200jit/analysis"
	"github.com/n3ds-emu/pica200jit/isa"
)

func TestReturnOffsetsSortedAndDeduplicated(t *testing.T) {
	program := []uint32{
		isa.EncodeFlowPlain(isa.OpCall, 10, 2), // returns at 12
		isa.EncodeCommon(isa.OpNop, 0, 0, 0, 0, 0),
		isa.EncodeFlowC(isa.OpCallc, 3, 1, isa.CondOr, false, false), // returns at 4
		isa.EncodeFlowU(isa.OpCallu, 10, 2, 0),                       // duplicate return point: 12
	}

	got := analysis.ReturnOffsets(program)
	want := []uint32{4, 12}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ReturnOffsets = %v, want %v", got, want)
	}
}

func TestReturnOffsetsEmptyForNoCalls(t *testing.T) {
	program := []uint32{
		isa.EncodeCommon(isa.OpMov, 0, 0, 0, 0, 0),
		isa.EncodeFlowPlain(isa.OpEnd, 0, 0),
	}
	got := analysis.ReturnOffsets(program)
	if len(got) != 0 {
		t.Fatalf("ReturnOffsets = %v, want empty", got)
	}
}

func TestIsReturnPointBinarySearch(t *testing.T) {
	offsets := []uint32{4, 12, 100}
	for _, tc := range []struct {
		offset uint32
		want   bool
	}{
		{4, true}, {12, true}, {100, true},
		{0, false}, {5, false}, {101, false},
	} {
		if got := analysis.IsReturnPoint(offsets, tc.offset); got != tc.want {
			t.Errorf("IsReturnPoint(%d) = %v, want %v", tc.offset, got, tc.want)
		}
	}
}
