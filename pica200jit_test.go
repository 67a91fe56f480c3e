//go:build amd64 && (linux || darwin)

package pica200jit_test

import (
	"encoding/binary"
	"math"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	"github.com/n3ds-emu/pica200jit"
	"github.com/n3ds-emu/pica200jit/isa"
	"github.com/n3ds-emu/pica200jit/mmapbuf"
	"github.com/n3ds-emu/pica200jit/runtimeabi"
)

// Vector byte-layout constants mirroring compiler/source.go's assumed
// unit-state block, so this test can poke the right offsets directly.
const (
	vectorStride = 16
	inputBase    = 0
	tempBase     = inputBase + 16*vectorStride
	outputBase   = tempBase + 16*vectorStride
	unitStateLen = outputBase + 16*vectorStride
)

// Setup-block byte-layout constants mirroring compiler/source.go.
const (
	floatUniformBase = 0
	boolUniformBase  = floatUniformBase + 96*vectorStride
	intUniformBase   = boolUniformBase + 16
	setupLen         = intUniformBase + 16*4
)

func putVec(buf []byte, base int, v [4]float32) {
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[base+i*4:], math.Float32bits(f))
	}
}

func readVec(buf []byte, base int) [4]float32 {
	var v [4]float32
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[base+i*4:]))
	}
	return v
}

func putFloatUniform(setup []byte, idx int, v [4]float32) {
	putVec(setup, floatUniformBase+idx*vectorStride, v)
}

func putBoolUniform(setup []byte, idx int, value bool) {
	if value {
		setup[boolUniformBase+idx] = 1
	} else {
		setup[boolUniformBase+idx] = 0
	}
}

func putIntUniform(setup []byte, idx int, countMinusOne, start, increment byte) {
	base := intUniformBase + idx*4
	setup[base+0] = countMinusOne
	setup[base+1] = start
	setup[base+2] = increment
}

// requireVecEqual compares two vectors lane-by-lane, treating a NaN lane in
// want as "any NaN accepted" since NaN != NaN under require.Equal.
func requireVecEqual(t *testing.T, want, got [4]float32) {
	t.Helper()
	for i := range want {
		if math.IsNaN(float64(want[i])) {
			require.True(t, math.IsNaN(float64(got[i])), "lane %d: got %v, want NaN", i, got[i])
			continue
		}
		require.Equal(t, want[i], got[i], "lane %d", i)
	}
}

// A MOV from input 0 straight to output 0, invoked against real mmap'd
// pages, is the simplest possible end-to-end proof that the buffer
// Compile emits actually executes under the SysV calling convention
// Invoke assumes.
func TestEndToEndPassThrough(t *testing.T) {
	program := []uint32{
		isa.EncodeCommon(isa.OpMov, 16, 0, 0, 0, 0),
		isa.EncodeFlowPlain(isa.OpEnd, 0, 0),
	}

	buf := &mmapbuf.Buffer{}
	defer buf.Close()
	handle, err := pica200jit.Compile(buf, program, nil, runtimeabi.Runtime{}, true)
	require.NoError(t, err)

	setup := make([]byte, 1)
	unitState := make([]byte, unitStateLen)
	putVec(unitState, inputBase, [4]float32{1, 2, 3, 4})

	handle.Invoke(unsafe.Pointer(&setup[0]), unsafe.Pointer(&unitState[0]), 0)

	require.Equal(t, [4]float32{1, 2, 3, 4}, readVec(unitState, outputBase))
}

// TestEndToEndDp4 exercises the dot-product end-to-end scenario: DP4 o0,
// i0, i1; END.
func TestEndToEndDp4(t *testing.T) {
	program := []uint32{
		isa.EncodeCommon(isa.OpDp4, 16, 0, 1, 0, 0),
		isa.EncodeFlowPlain(isa.OpEnd, 0, 0),
	}

	buf := &mmapbuf.Buffer{}
	defer buf.Close()
	handle, err := pica200jit.Compile(buf, program, nil, runtimeabi.Runtime{}, true)
	require.NoError(t, err)

	setup := make([]byte, 1)
	unitState := make([]byte, unitStateLen)
	putVec(unitState, inputBase+0*vectorStride, [4]float32{1, 2, 3, 4})
	putVec(unitState, inputBase+1*vectorStride, [4]float32{5, 6, 7, 8})

	handle.Invoke(unsafe.Pointer(&setup[0]), unsafe.Pointer(&unitState[0]), 0)

	const want = 1*5 + 2*6 + 3*7 + 4*8
	requireVecEqual(t, [4]float32{want, want, want, want}, readVec(unitState, outputBase))
}

// TestEndToEndNaNSanitisedMul exercises spec.md §4.4.3's NaN-sanitising
// multiply: 0*Inf must come out 0, not NaN, while a lane that's genuinely
// NaN on input stays NaN.
func TestEndToEndNaNSanitisedMul(t *testing.T) {
	program := []uint32{
		isa.EncodeCommon(isa.OpMul, 16, 0, 1, 0, 0),
		isa.EncodeFlowPlain(isa.OpEnd, 0, 0),
	}

	buf := &mmapbuf.Buffer{}
	defer buf.Close()
	handle, err := pica200jit.Compile(buf, program, nil, runtimeabi.Runtime{}, true)
	require.NoError(t, err)

	setup := make([]byte, 1)
	unitState := make([]byte, unitStateLen)
	putVec(unitState, inputBase+0*vectorStride, [4]float32{0, 2, float32(math.Inf(1)), float32(math.NaN())})
	putVec(unitState, inputBase+1*vectorStride, [4]float32{float32(math.Inf(1)), 3, 0, 1})

	handle.Invoke(unsafe.Pointer(&setup[0]), unsafe.Pointer(&unitState[0]), 0)

	requireVecEqual(t, [4]float32{0, 6, 0, float32(math.NaN())}, readVec(unitState, outputBase))
}

// TestEndToEndDestMask exercises a masked destination write: MOV o0.xz, i0;
// END must only touch lanes X and Z, leaving Y and W as they were.
func TestEndToEndDestMask(t *testing.T) {
	const maskXZ = 0b0101
	swizzle := isa.OperandDescriptorTable{
		isa.PackOperandDescriptor(maskXZ, isa.IdentitySelector, isa.IdentitySelector, isa.IdentitySelector, false, false, false),
	}
	program := []uint32{
		isa.EncodeCommon(isa.OpMov, 16, 0, 0, 0, 0),
		isa.EncodeFlowPlain(isa.OpEnd, 0, 0),
	}

	for _, hasSSE41 := range []bool{true, false} {
		t.Run(map[bool]string{true: "sse41", false: "sse2"}[hasSSE41], func(t *testing.T) {
			buf := &mmapbuf.Buffer{}
			defer buf.Close()
			handle, err := pica200jit.Compile(buf, program, swizzle, runtimeabi.Runtime{}, hasSSE41)
			require.NoError(t, err)

			setup := make([]byte, 1)
			unitState := make([]byte, unitStateLen)
			putVec(unitState, inputBase, [4]float32{1, 2, 3, 4})
			putVec(unitState, outputBase, [4]float32{9, 9, 9, 9})

			handle.Invoke(unsafe.Pointer(&setup[0]), unsafe.Pointer(&unitState[0]), 0)

			require.Equal(t, [4]float32{1, 9, 3, 9}, readVec(unitState, outputBase))
		})
	}
}

// TestEndToEndStructuredIfElse exercises structured IFU/ELSE: a false bool
// uniform must take the else branch.
func TestEndToEndStructuredIfElse(t *testing.T) {
	program := []uint32{
		isa.EncodeFlowU(isa.OpIfu, 2, 1, 0), // 0: IFU b0 -> then=[1], else=[2]
		isa.EncodeCommon(isa.OpMov, 16, 0, 0, 0, 0), // 1 (then): o0 <- i0
		isa.EncodeCommon(isa.OpMov, 16, 1, 0, 0, 0), // 2 (else): o0 <- i1
		isa.EncodeFlowPlain(isa.OpEnd, 0, 0),        // 3
	}

	buf := &mmapbuf.Buffer{}
	defer buf.Close()
	handle, err := pica200jit.Compile(buf, program, nil, runtimeabi.Runtime{}, true)
	require.NoError(t, err)

	setup := make([]byte, setupLen)
	putBoolUniform(setup, 0, false)
	unitState := make([]byte, unitStateLen)
	putVec(unitState, inputBase+0*vectorStride, [4]float32{1, 0, 0, 0})
	putVec(unitState, inputBase+1*vectorStride, [4]float32{2, 0, 0, 0})

	handle.Invoke(unsafe.Pointer(&setup[0]), unsafe.Pointer(&unitState[0]), 0)

	require.Equal(t, [4]float32{2, 0, 0, 0}, readVec(unitState, outputBase))
}

// TestEndToEndLoopSum exercises LOOP: an integer uniform with count byte 2
// (3 iterations, per spec.md's "stored count is actual count minus one")
// accumulating a constant into a temp register, then moved out to output.
func TestEndToEndLoopSum(t *testing.T) {
	program := []uint32{
		isa.EncodeLoop(1, 0, 0),                      // 0: LOOP i0 -> body=[1]
		isa.EncodeCommon(isa.OpAdd, 0, 32, 16, 0, 0), // 1: t0 <- c0 + t0 (src2's field is too
		// narrow to address a float uniform, so the uniform goes in src1;
		// ADD is commutative)
		isa.EncodeCommon(isa.OpMov, 16, 16, 0, 0, 0), // 2: o0 <- t0
		isa.EncodeFlowPlain(isa.OpEnd, 0, 0),         // 3
	}

	buf := &mmapbuf.Buffer{}
	defer buf.Close()
	handle, err := pica200jit.Compile(buf, program, nil, runtimeabi.Runtime{}, true)
	require.NoError(t, err)

	setup := make([]byte, setupLen)
	putIntUniform(setup, 0, 2, 0, 0) // count-1=2 -> 3 iterations
	putFloatUniform(setup, 0, [4]float32{1, 1, 1, 1})
	unitState := make([]byte, unitStateLen)

	handle.Invoke(unsafe.Pointer(&setup[0]), unsafe.Pointer(&unitState[0]), 0)

	require.Equal(t, [4]float32{3, 3, 3, 3}, readVec(unitState, outputBase))
}

// TestEndToEndMadAndMadi proves the dispatch fix for isa.OpMadiBase: MAD and
// MADI must compute the identical src1*src2+src3, since SrcInversed only
// changes which operand addressing may index, not the arithmetic.
func TestEndToEndMadAndMadi(t *testing.T) {
	for _, tc := range []struct {
		name string
		base isa.Opcode
	}{
		{"MAD", isa.OpMadBase},
		{"MADI", isa.OpMadiBase},
	} {
		t.Run(tc.name, func(t *testing.T) {
			program := []uint32{
				isa.EncodeMad(tc.base, 0, 0, 0, 1, 2, 0, 0), // t0 <- i0*i1+i2
				isa.EncodeCommon(isa.OpMov, 16, 16, 0, 0, 0), // o0 <- t0
				isa.EncodeFlowPlain(isa.OpEnd, 0, 0),
			}

			buf := &mmapbuf.Buffer{}
			defer buf.Close()
			handle, err := pica200jit.Compile(buf, program, nil, runtimeabi.Runtime{}, true)
			require.NoError(t, err)

			setup := make([]byte, 1)
			unitState := make([]byte, unitStateLen)
			putVec(unitState, inputBase+0*vectorStride, [4]float32{1, 2, 3, 4})
			putVec(unitState, inputBase+1*vectorStride, [4]float32{2, 2, 2, 2})
			putVec(unitState, inputBase+2*vectorStride, [4]float32{1, 1, 1, 1})

			handle.Invoke(unsafe.Pointer(&setup[0]), unsafe.Pointer(&unitState[0]), 0)

			require.Equal(t, [4]float32{3, 5, 7, 9}, readVec(unitState, outputBase))
		})
	}
}

// TestEndToEndDotFallbacks locks down the blendPsFallback fix: DP3's zero-W
// step, DPH's forced-W1 step, and DST's supplemental blend must agree
// between the SSE4.1 fast path and the SSE2 fallback.
func TestEndToEndDotFallbacks(t *testing.T) {
	for _, tc := range []struct {
		name string
		op   isa.Opcode
		src1 [4]float32
		src2 [4]float32
		want [4]float32
	}{
		{"DP3", isa.OpDp3, [4]float32{1, 2, 3, 4}, [4]float32{5, 6, 7, 0}, vecBroadcast(1*5 + 2*6 + 3*7)},
		{"DPH", isa.OpDph, [4]float32{1, 2, 3, 99}, [4]float32{5, 6, 7, 8}, vecBroadcast(1*5 + 2*6 + 3*7 + 1*8)},
		{"DST", isa.OpDst, [4]float32{2, 3, 4, 5}, [4]float32{10, 20, 30, 40}, [4]float32{1, 3, 4, 40}},
	} {
		for _, hasSSE41 := range []bool{true, false} {
			t.Run(tc.name+"/"+map[bool]string{true: "sse41", false: "sse2"}[hasSSE41], func(t *testing.T) {
				program := []uint32{
					isa.EncodeCommon(tc.op, 16, 0, 1, 0, 0),
					isa.EncodeFlowPlain(isa.OpEnd, 0, 0),
				}

				buf := &mmapbuf.Buffer{}
				defer buf.Close()
				handle, err := pica200jit.Compile(buf, program, nil, runtimeabi.Runtime{}, hasSSE41)
				require.NoError(t, err)

				setup := make([]byte, 1)
				unitState := make([]byte, unitStateLen)
				putVec(unitState, inputBase+0*vectorStride, tc.src1)
				putVec(unitState, inputBase+1*vectorStride, tc.src2)

				handle.Invoke(unsafe.Pointer(&setup[0]), unsafe.Pointer(&unitState[0]), 0)

				requireVecEqual(t, tc.want, readVec(unitState, outputBase))
			})
		}
	}
}

func vecBroadcast(f float32) [4]float32 { return [4]float32{f, f, f, f} }
