//go:build amd64 && (linux || darwin)

// Package pica200jit compiles PICA200 vertex-shader programs (spec.md §1)
// into native x86-64 machine code and invokes the result. It is the
// module-root package implementing spec.md §6's compile/invoke contract;
// the instruction lowering itself lives in package compiler.
package pica200jit

import (
	"fmt"
	"unsafe"

	"github.com/n3ds-emu/pica200jit/compiler"
	"github.com/n3ds-emu/pica200jit/isa"
	"github.com/n3ds-emu/pica200jit/runtimeabi"
)

// CodeBuffer allocates and finalises the writable-then-executable memory
// a compiled shader lives in. spec.md §1 explicitly treats buffer
// allocation, page protection, and icache invalidation as an external
// collaborator, so Compile never hard-codes an allocation policy;
// package mmapbuf supplies the concrete default.
type CodeBuffer interface {
	Alloc(size int) ([]byte, error)
	MakeExecutable([]byte) error
}

// Handle is an executable shader: the result of a successful Compile,
// ready to be run via Invoke any number of times against different
// unit_state blocks.
type Handle struct {
	mem []byte // the emitted machine code, starting at its entry point
}

// nativeCall jumps to entry with setup/unitState/entryOffset loaded into the
// SysV AMD64 argument registers (RDI/RSI/RDX) the compiled prologue expects.
// It has no Go body: invoke_amd64.s implements it, since Go's internal
// ABIInternal register order for a call through an ordinary func value does
// not match SysV, and there is no cgo-free way to call raw machine code
// through Go's own calling convention.
func nativeCall(entry uintptr, setup, unitState unsafe.Pointer, entryOffset uint32)

// Compile lowers program (PICA200 instruction words, spec.md §2 says
// ≤512) and its swizzle table into executable machine code using buf for
// allocation, and returns a Handle ready for repeated Invoke calls.
// program and swizzle are read only during Compile (swizzles, negates and
// write masks are baked into the emitted code); the returned Handle does
// not reference them.
func Compile(buf CodeBuffer, program []uint32, swizzle isa.OperandDescriptorTable, rt runtimeabi.Runtime, hasSSE41 bool) (*Handle, error) {
	code, err := compiler.Compile(program, swizzle, rt, hasSSE41)
	if err != nil {
		return nil, fmt.Errorf("pica200jit: compile: %w", err)
	}

	mem, err := buf.Alloc(len(code))
	if err != nil {
		return nil, fmt.Errorf("pica200jit: allocating code buffer: %w", err)
	}
	copy(mem, code)

	if err := buf.MakeExecutable(mem); err != nil {
		return nil, fmt.Errorf("pica200jit: making code buffer executable: %w", err)
	}

	return &Handle{mem: mem}, nil
}

// Invoke runs the compiled shader starting at entry_offset, with setup
// (read-only uniforms/constants) and unitState (the per-vertex
// input/temp/output block) visible at the addresses emitted code expects.
// Synchronous: the call does not return until the shader does. The
// compiled code follows the plain SysV AMD64 calling convention (three
// pointer/integer arguments in RDI/RSI/RDX) rather than Go's internal
// register ABI, so Invoke reaches it through nativeCall's hand-written
// trampoline rather than an ordinary Go func value.
func (h *Handle) Invoke(setup, unitState unsafe.Pointer, entryOffset uint32) {
	nativeCall(uintptr(unsafe.Pointer(&h.mem[0])), setup, unitState, entryOffset)
}

// Code returns the raw machine code backing h, for diagnostics (e.g.
// disassembly) only; callers must not write through it.
func (h *Handle) Code() []byte { return h.mem }
