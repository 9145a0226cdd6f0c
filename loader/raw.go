package loader

import (
	"fmt"
	"os"

	"github.com/sarchlab/x86emu/insts"
)

// LoadRaw reads a flat binary of machine code and wraps it as a Program
// with a single executable segment at base.
func LoadRaw(path string, base uint64, mode insts.Mode) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read raw binary: %w", err)
	}

	return RawProgram(data, base, mode), nil
}

// RawProgram wraps code as a Program loaded at base.
func RawProgram(code []byte, base uint64, mode insts.Mode) *Program {
	sp := uint64(DefaultStackTop)
	if mode == insts.Mode32 {
		sp = DefaultStackTop32
	}

	return &Program{
		EntryPoint: base,
		Segments: []Segment{{
			VirtAddr: base,
			Data:     code,
			MemSize:  uint64(len(code)),
			Flags:    SegmentFlagRead | SegmentFlagExecute,
		}},
		InitialSP: sp,
		Mode:      mode,
		Symbols:   map[string]uint64{},
	}
}
