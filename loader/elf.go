// Package loader provides ELF binary loading for x86 executables.
package loader

import (
	"debug/elf"
	"errors"
	"fmt"
	"io"

	"github.com/sarchlab/x86emu/emu"
	"github.com/sarchlab/x86emu/insts"
)

// SegmentFlags represents memory protection flags for a segment.
type SegmentFlags uint32

const (
	// SegmentFlagExecute indicates the segment is executable.
	SegmentFlagExecute SegmentFlags = 1 << iota
	// SegmentFlagWrite indicates the segment is writable.
	SegmentFlagWrite
	// SegmentFlagRead indicates the segment is readable.
	SegmentFlagRead
)

// DefaultStackTop is the conventional top of the x86-64 Linux user stack.
const DefaultStackTop = 0x7ffffffff000

// DefaultStackTop32 is the top of the user stack for 32-bit binaries.
const DefaultStackTop32 = 0xbffff000

// DefaultStackSize is the default stack size (8MB).
const DefaultStackSize = 8 * 1024 * 1024

// Segment represents a loadable segment from an ELF binary.
type Segment struct {
	// VirtAddr is the virtual address where this segment should be loaded.
	VirtAddr uint64
	// Data contains the segment contents from the file.
	Data []byte
	// MemSize is the size in memory (may be larger than len(Data) for BSS).
	MemSize uint64
	// Flags contains the segment protection flags.
	Flags SegmentFlags
}

// Program represents a loaded ELF program ready for execution.
type Program struct {
	// EntryPoint is the virtual address where execution should begin.
	EntryPoint uint64
	// Segments contains all loadable segments from the ELF file.
	Segments []Segment
	// InitialSP is the initial stack pointer value.
	InitialSP uint64
	// Mode is the processor mode the binary was built for.
	Mode insts.Mode
	// Symbols maps function and object names to their addresses.
	Symbols map[string]uint64
}

// Symbol returns the address of a named symbol.
func (p *Program) Symbol(name string) (uint64, bool) {
	addr, ok := p.Symbols[name]
	return addr, ok
}

// Load parses an x86-64 (or i386) ELF binary and returns a Program ready
// for loading into the emulator's memory.
func Load(path string) (*Program, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ELF file: %w", err)
	}
	defer func() { _ = f.Close() }()

	prog := &Program{EntryPoint: f.Entry}

	switch {
	case f.Class == elf.ELFCLASS64 && f.Machine == elf.EM_X86_64:
		prog.Mode = insts.Mode64
		prog.InitialSP = DefaultStackTop
	case f.Class == elf.ELFCLASS32 && f.Machine == elf.EM_386:
		prog.Mode = insts.Mode32
		prog.InitialSP = DefaultStackTop32
	default:
		return nil, fmt.Errorf("not an x86 ELF file (class: %v, machine type: %v)", f.Class, f.Machine)
	}

	for _, phdr := range f.Progs {
		if phdr.Type != elf.PT_LOAD {
			continue
		}

		seg, err := readSegment(phdr)
		if err != nil {
			return nil, err
		}
		prog.Segments = append(prog.Segments, seg)
	}

	prog.Symbols, err = readSymbols(f)
	if err != nil {
		return nil, err
	}

	return prog, nil
}

// readSymbols collects defined function and object symbols. A binary
// without a symbol table yields an empty map.
func readSymbols(f *elf.File) (map[string]uint64, error) {
	symbols := make(map[string]uint64)

	syms, err := f.Symbols()
	if errors.Is(err, elf.ErrNoSymbols) {
		return symbols, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read symbol table: %w", err)
	}

	for _, sym := range syms {
		typ := elf.ST_TYPE(sym.Info)
		if sym.Name == "" || sym.Section == elf.SHN_UNDEF {
			continue
		}
		if typ == elf.STT_FUNC || typ == elf.STT_OBJECT || typ == elf.STT_NOTYPE {
			symbols[sym.Name] = sym.Value
		}
	}

	return symbols, nil
}

func readSegment(phdr *elf.Prog) (Segment, error) {
	data := make([]byte, phdr.Filesz)
	if phdr.Filesz > 0 {
		n, err := phdr.ReadAt(data, 0)
		if err != nil && err != io.EOF {
			return Segment{}, fmt.Errorf("failed to read segment at 0x%x: %w", phdr.Vaddr, err)
		}
		if uint64(n) != phdr.Filesz {
			return Segment{}, fmt.Errorf("short read for segment at 0x%x: got %d bytes, expected %d",
				phdr.Vaddr, n, phdr.Filesz)
		}
	}

	var flags SegmentFlags
	if phdr.Flags&elf.PF_X != 0 {
		flags |= SegmentFlagExecute
	}
	if phdr.Flags&elf.PF_W != 0 {
		flags |= SegmentFlagWrite
	}
	if phdr.Flags&elf.PF_R != 0 {
		flags |= SegmentFlagRead
	}

	return Segment{
		VirtAddr: phdr.Vaddr,
		Data:     data,
		MemSize:  phdr.Memsz,
		Flags:    flags,
	}, nil
}

// LoadInto copies every segment into mem. The BSS tail of a segment
// (MemSize beyond its file data) is mapped and zeroed.
func (p *Program) LoadInto(mem *emu.Memory) {
	for _, seg := range p.Segments {
		if seg.MemSize > uint64(len(seg.Data)) {
			mem.Zero(seg.VirtAddr, seg.MemSize)
		}
		mem.LoadProgram(seg.VirtAddr, seg.Data)
	}
}

// ExecutableSource returns a byte source covering only the executable
// segments, so decoding stops at the end of the code.
func (p *Program) ExecutableSource() insts.ByteSource {
	var src segmentSource
	for _, seg := range p.Segments {
		if seg.Flags&SegmentFlagExecute != 0 {
			src = append(src, insts.Bytes{Base: seg.VirtAddr, Data: seg.Data})
		}
	}
	return src
}

// segmentSource is a ByteSource over several disjoint byte ranges.
type segmentSource []insts.Bytes

func (s segmentSource) Fetch(addr uint64) (byte, bool) {
	for _, b := range s {
		if v, ok := b.Fetch(addr); ok {
			return v, true
		}
	}
	return 0, false
}
