// Package analysis implements the single linear pre-pass over a PICA200
// vertex-shader program that collects the set of return points induced by
// CALL/CALLC/CALLU instructions, ahead of code generation.
package analysis

import (
	"sort"

	"github.com/n3ds-emu/pica200jit/isa"
)

// ReturnOffsets returns the sorted, deduplicated set of program offsets at
// which a called region's control should return to its caller: for every
// CALL/CALLC/CALLU instruction in program, dest_offset + num_instructions —
// the instruction immediately past the last instruction of the called
// region. Complexity is O(N log N).
func ReturnOffsets(program []uint32) []uint32 {
	seen := make(map[uint32]struct{})
	for _, word := range program {
		inst := isa.Decode(word)
		switch inst.Opcode {
		case isa.OpCall, isa.OpCallc, isa.OpCallu:
			seen[inst.DestOffset+inst.NumInstructions] = struct{}{}
		}
	}

	offsets := make([]uint32, 0, len(seen))
	for off := range seen {
		offsets = append(offsets, off)
	}
	sort.Slice(offsets, func(i, j int) bool { return offsets[i] < offsets[j] })
	return offsets
}

// IsReturnPoint reports whether offset is a member of a sorted return-point
// set produced by ReturnOffsets, via binary search.
func IsReturnPoint(offsets []uint32, offset uint32) bool {
	i := sort.Search(len(offsets), func(i int) bool { return offsets[i] >= offset })
	return i < len(offsets) && offsets[i] == offset
}
