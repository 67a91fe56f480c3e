//go:build amd64 && (linux || darwin)

// Command picajit compiles a PICA200 vertex-shader program into native
// x86-64 machine code and either dumps the result or runs it against a
// zeroed scratch setup/unit-state block, as a demonstration of the
// compile/invoke contract package pica200jit exposes.
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"log"
	"os"
	"unsafe"

	"github.com/n3ds-emu/pica200jit"
	"github.com/n3ds-emu/pica200jit/isa"
	"github.com/n3ds-emu/pica200jit/mmapbuf"
	"github.com/n3ds-emu/pica200jit/runtimeabi"
)

var (
	entryOffset = flag.Uint("entry", 0, "Program offset to start execution at.")
	run         = flag.Bool("run", false, "Invoke the compiled shader against a zeroed scratch state after compiling.")
	sse41       = flag.Bool("sse41", true, "Assume SSE4.1 is available (enables the blendps/roundps fast paths).")
	outFile     = flag.String("o", "", "Write the raw compiled machine code to this file instead of hex-dumping it.")
)

func main() {
	log.SetFlags(0)
	flag.Parse()

	if flag.NArg() != 1 {
		log.Println("Usage: picajit [options] <program.bin>")
		flag.PrintDefaults()
		os.Exit(1)
	}

	program, err := readProgram(flag.Arg(0))
	if err != nil {
		log.Fatalf("Error reading program: %v", err)
	}
	log.Printf("Loaded %d instruction words from %s", len(program), flag.Arg(0))

	// No real swizzle table accompanies this demo input; out-of-range
	// operand_desc_ids fall back to the identity swizzle/full write mask,
	// per isa.OperandDescriptorTable.OperandDescriptor.
	var swizzle isa.OperandDescriptorTable
	rt := runtimeabi.Runtime{}

	buf := &mmapbuf.Buffer{}
	handle, err := pica200jit.Compile(buf, program, swizzle, rt, *sse41)
	if err != nil {
		log.Fatalf("Compile failed: %v", err)
	}
	log.Printf("Compiled %d bytes of native code", len(handle.Code()))

	if *outFile != "" {
		if err := os.WriteFile(*outFile, handle.Code(), 0644); err != nil {
			log.Fatalf("Error writing output file: %v", err)
		}
		log.Printf("Wrote compiled machine code to %s", *outFile)
	} else {
		dumpHex(handle.Code())
	}

	if *run {
		const setupSize = 96*16 + 16 + 16*4 // float uniforms + bool uniforms + int uniforms
		const unitStateSize = 16 * 16 * 3  // inputs + temps + outputs
		setup := make([]byte, setupSize)
		unitState := make([]byte, unitStateSize)
		log.Printf("Invoking compiled shader at entry offset %d...", *entryOffset)
		handle.Invoke(unsafe.Pointer(&setup[0]), unsafe.Pointer(&unitState[0]), uint32(*entryOffset))
		log.Println("Invocation returned.")
	}

	if err := buf.Close(); err != nil {
		log.Fatalf("Error releasing code buffer: %v", err)
	}
}

// readProgram reads a flat binary file of little-endian uint32 PICA200
// instruction words.
func readProgram(path string) ([]uint32, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if len(raw)%4 != 0 {
		return nil, fmt.Errorf("%s: length %d is not a multiple of 4", path, len(raw))
	}
	program := make([]uint32, len(raw)/4)
	for i := range program {
		program[i] = binary.LittleEndian.Uint32(raw[i*4:])
	}
	return program, nil
}

func dumpHex(code []byte) {
	for i, b := range code {
		fmt.Printf("%02X ", b)
		if (i+1)%16 == 0 {
			fmt.Println()
		}
	}
	fmt.Println()
}
