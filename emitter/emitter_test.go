package emitter_test

import (
	"testing"

	"github.com/n3ds-emu/pica200jit/emitter"
)

func TestAssembleProducesNonEmptyBuffer(t *testing.T) {
	e, err := emitter.New(true)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	e.MovImm64(emitter.RAX, 42)
	e.Ret()

	code := e.Assemble()
	if len(code) == 0 {
		t.Fatalf("Assemble() returned empty buffer")
	}
}

func TestForwardLabelResolves(t *testing.T) {
	e, err := emitter.New(true)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	end := e.NewLabel()
	e.Jmp(end)      // forward reference: end not yet bound
	e.MovImm64(emitter.RAX, 1)
	e.Bind(end)
	e.Ret()

	code := e.Assemble()
	if len(code) == 0 {
		t.Fatalf("Assemble() returned empty buffer for forward-label program")
	}
}

func TestBackwardLabelResolves(t *testing.T) {
	e, err := emitter.New(true)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	top := e.NewLabel()
	e.Bind(top)
	e.CmpRegImm32(emitter.RCX, 0)
	e.JmpIf(emitter.JNE, top) // backward reference: top already bound
	e.Ret()

	code := e.Assemble()
	if len(code) == 0 {
		t.Fatalf("Assemble() returned empty buffer for backward-label program")
	}
}

func TestJCCAliasesMatchCanonicalNames(t *testing.T) {
	if emitter.JZ != emitter.JE {
		t.Errorf("JZ != JE")
	}
	if emitter.JNZ != emitter.JNE {
		t.Errorf("JNZ != JNE")
	}
}

func TestCalleeSavedSaveRestoreIsBalanced(t *testing.T) {
	e, err := emitter.New(true)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	e.SaveCalleeSaved()
	e.RestoreCalleeSaved()
	e.Ret()

	code := e.Assemble()
	if len(code) == 0 {
		t.Fatalf("Assemble() returned empty buffer for prologue/epilogue program")
	}
}

func TestSSEDestinationMaskPaths(t *testing.T) {
	// Exercises the SSE4.1 blendps encoding and an SSE2-only and/andn/or
	// blend sequence, keyed on HasSSE41.
	for _, hasSSE41 := range []bool{true, false} {
		e, err := emitter.New(hasSSE41)
		if err != nil {
			t.Fatalf("New(%v): %v", hasSSE41, err)
		}
		if e.HasSSE41() != hasSSE41 {
			t.Fatalf("HasSSE41() = %v, want %v", e.HasSSE41(), hasSSE41)
		}
		if hasSSE41 {
			e.BlendPs(emitter.X0, emitter.X1, 0b1010)
		} else {
			e.AndPs(emitter.X0, emitter.X2)
			e.AndnPs(emitter.X2, emitter.X1)
			e.OrPs(emitter.X0, emitter.X2)
		}
		e.Ret()
		if len(e.Assemble()) == 0 {
			t.Fatalf("Assemble() returned empty buffer (hasSSE41=%v)", hasSSE41)
		}
	}
}

func TestGPRLogicalAndShiftHelpers(t *testing.T) {
	e, err := emitter.New(true)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	e.MovImm32(emitter.RAX, 0xFF)
	e.AndRegImm32(emitter.RAX, 0x0F)
	e.XorRegImm32(emitter.RAX, 0x03)
	e.ShiftLeftImm(emitter.RAX, 4)
	e.MovImm32(emitter.RCX, 1)
	e.AndRegReg(emitter.RAX, emitter.RCX)
	e.OrRegReg(emitter.RAX, emitter.RCX)
	e.Ret()
	if len(e.Assemble()) == 0 {
		t.Fatalf("Assemble() returned empty buffer for logical/shift helper program")
	}
}

func TestCallFarEmitsMovAndIndirectCall(t *testing.T) {
	e, err := emitter.New(true)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	e.CallFar(emitter.RAX, 0x1000)
	e.Ret()
	if len(e.Assemble()) == 0 {
		t.Fatalf("Assemble() returned empty buffer for CallFar program")
	}
}
