package executor

import (
	"debug/elf"
	"encoding/binary"
	"fmt"
	"io"
)

// LoadELF builds the immutable program image from a 32-bit little-endian
// RISC-V ELF: PT_LOAD segments become the initial memory image, the
// executable segment supplies the instruction words, and the ELF entry point
// becomes the start pc.
func LoadELF(f *elf.File) (*Program, error) {
	if f.Class != elf.ELFCLASS32 {
		return nil, fmt.Errorf("program must be a 32-bit ELF, got %s", f.Class)
	}
	if f.Machine != elf.EM_RISCV {
		return nil, fmt.Errorf("program must be RISC-V, got %s", f.Machine)
	}
	if f.Data != elf.ELFDATA2LSB {
		return nil, fmt.Errorf("program must be little-endian, got %s", f.Data)
	}

	image := make(map[uint32]uint32)
	var instructions []uint32
	var pcBase uint32
	var haveText bool

	for i, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}
		if prog.Filesz > prog.Memsz {
			return nil, fmt.Errorf("invalid PT_LOAD program segment %d, file size (%d) > mem size (%d)", i, prog.Filesz, prog.Memsz)
		}
		if prog.Vaddr&3 != 0 {
			return nil, fmt.Errorf("program segment %d is not word-aligned: vaddr %08x", i, prog.Vaddr)
		}
		if prog.Vaddr+prog.Memsz > uint64(maxByteAddr) {
			return nil, fmt.Errorf("program segment %d exceeds addressable memory: %08x + %d", i, prog.Vaddr, prog.Memsz)
		}
		data := make([]byte, (prog.Memsz+3)&^3) // BSS tail stays zero
		if _, err := io.ReadFull(io.NewSectionReader(prog, 0, int64(prog.Filesz)), data[:prog.Filesz]); err != nil {
			return nil, fmt.Errorf("failed to read program segment %d: %w", i, err)
		}
		words := make([]uint32, len(data)/4)
		for j := range words {
			word := binary.LittleEndian.Uint32(data[j*4:])
			words[j] = word
			image[uint32(prog.Vaddr)+uint32(j*4)] = word
		}
		if prog.Flags&elf.PF_X != 0 {
			if haveText {
				return nil, fmt.Errorf("program segment %d: multiple executable segments are not supported", i)
			}
			haveText = true
			pcBase = uint32(prog.Vaddr)
			instructions = words
		}
	}
	if !haveText {
		return nil, fmt.Errorf("program has no executable segment")
	}
	entry := uint32(f.Entry)
	if entry < pcBase || entry >= pcBase+uint32(4*len(instructions)) {
		return nil, fmt.Errorf("entry point %08x outside the executable segment", entry)
	}
	return NewProgram(instructions, pcBase, entry, image)
}
