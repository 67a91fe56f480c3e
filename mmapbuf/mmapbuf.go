// Package mmapbuf is the default CodeBuffer allocator for package
// pica200jit: it reserves anonymous, writable pages via mmap, and later
// flips them read-execute via mprotect once the JIT has finished writing
// machine code into them. This is the standard idiomatic Go way to get a
// writable-then-executable page without cgo; spec.md §1 treats code-buffer
// allocation as an external collaborator, so this package is the concrete
// default rather than something the compiler hard-codes.
//
// Only amd64 targets make sense here: the emitted machine code is x86-64.
package mmapbuf

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Buffer allocates pages via mmap and is the package's CodeBuffer
// implementation. The zero value is ready to use.
type Buffer struct {
	pages [][]byte // tracked so MakeExecutable can find the owning mapping
}

// Alloc reserves size bytes (rounded up to a whole number of pages) as an
// anonymous, private, read-write mapping.
func (b *Buffer) Alloc(size int) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("mmapbuf: invalid size %d", size)
	}
	mem, err := unix.Mmap(-1, 0, pageRound(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("mmapbuf: mmap: %w", err)
	}
	b.pages = append(b.pages, mem)
	return mem[:size], nil
}

// MakeExecutable flips the mapping owning code read-execute. code must be
// a slice previously returned by Alloc on this Buffer (or a sub-slice
// starting at its first byte); the
// caller must not write through code after calling this.
func (b *Buffer) MakeExecutable(code []byte) error {
	mem := b.owning(code)
	if mem == nil {
		return fmt.Errorf("mmapbuf: MakeExecutable: slice not allocated by this Buffer")
	}
	if err := unix.Mprotect(mem, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		return fmt.Errorf("mmapbuf: mprotect: %w", err)
	}
	return nil
}

// Close unmaps every page this Buffer allocated.
func (b *Buffer) Close() error {
	for _, mem := range b.pages {
		if err := unix.Munmap(mem); err != nil {
			return fmt.Errorf("mmapbuf: munmap: %w", err)
		}
	}
	b.pages = nil
	return nil
}

func (b *Buffer) owning(code []byte) []byte {
	if len(code) == 0 {
		return nil
	}
	for _, mem := range b.pages {
		if len(code) <= len(mem) && &code[0] == &mem[0] {
			return mem
		}
	}
	return nil
}

const pageSize = 4096

func pageRound(n int) int {
	return (n + pageSize - 1) &^ (pageSize - 1)
}
