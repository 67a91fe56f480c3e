// Package runtimeabi supplies the foreign-helper addresses the compiled
// shader's EX2/LG2 lowering calls out to (spec.md §4.4.5, §9): exp2f and
// log2f. Their addresses are opaque uintptr values bound at Runtime
// construction time, matching spec.md §9's note that function addresses
// aren't freely materialisable and must be threaded through a stable
// extern "C"-shaped trampoline rather than a Go function value.
package runtimeabi

import "math"

// Runtime holds the foreign-helper addresses the compiler's EX2/LG2
// lowering emits native calls against. Each must be the address of a
// function following the SysV AMD64 ABI: one float32 argument in XMM0,
// result in XMM0. A zero field still compiles: the call instruction is
// emitted unconditionally, so a program that reaches EX2/LG2 with that
// field unset calls through a null pointer at Invoke time. Callers whose
// programs may use EX2/LG2 must populate both fields.
//
// Go cannot take the address of a Go func value in this shape without
// cgo, so there is no cgo-free way to populate Exp2f/Log2f from inside
// this module alone: a caller embedding the compiler in a cgo-enabled
// binary supplies the address of its own libm-backed `extern "C"` shim
// (exactly the pattern spec.md §9 describes).
type Runtime struct {
	Exp2f uintptr
	Log2f uintptr
}

// Exp2 and Log2 are the scalar reference implementations EX2/LG2 must
// agree with. They back both the cgo trampoline an embedder wires up via
// Runtime, and any interpreter fallback that evaluates EX2/LG2 without
// compiling them at all.
func Exp2(x float32) float32 { return float32(math.Exp2(float64(x))) }
func Log2(x float32) float32 { return float32(math.Log2(float64(x))) }
