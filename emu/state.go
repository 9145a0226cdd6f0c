package emu

import "github.com/sarchlab/x86emu/insts"

// MachineState is the view of the machine that instruction handlers act on.
type MachineState interface {
	insts.FlagReader
	SetFlag(f insts.Flag, set bool)

	ReadRegister(r insts.Register, w insts.Width) uint64
	WriteRegister(r insts.Register, w insts.Width, v uint64)

	InstructionPointer() uint64
	AdvanceInstructionPointer(n uint64)

	ReadMemory(addr uint64, w insts.Width) uint64
	WriteMemory(addr uint64, w insts.Width, v uint64)
}

// State is the MachineState of an emulated CPU: a register file and
// the memory it addresses.
type State struct {
	Regs *RegFile
	Mem  *Memory
}

// NewState creates a state over a fresh register file and memory.
func NewState() *State {
	return &State{Regs: NewRegFile(), Mem: NewMemory()}
}

// Flag reports whether f is set.
func (s *State) Flag(f insts.Flag) bool { return s.Regs.Flag(f) }

// SetFlag sets or clears f.
func (s *State) SetFlag(f insts.Flag, set bool) { s.Regs.SetFlag(f, set) }

// ReadRegister reads r at width w.
func (s *State) ReadRegister(r insts.Register, w insts.Width) uint64 {
	return s.Regs.ReadReg(r, w)
}

// WriteRegister writes r at width w.
func (s *State) WriteRegister(r insts.Register, w insts.Width, v uint64) {
	s.Regs.WriteReg(r, w, v)
}

// InstructionPointer returns RIP.
func (s *State) InstructionPointer() uint64 { return s.Regs.RIP }

// AdvanceInstructionPointer moves RIP forward by n bytes.
func (s *State) AdvanceInstructionPointer(n uint64) { s.Regs.RIP += n }

// ReadMemory reads a little-endian value of width w.
func (s *State) ReadMemory(addr uint64, w insts.Width) uint64 {
	return s.Mem.ReadN(addr, w.Bytes())
}

// WriteMemory writes the low w bits of v.
func (s *State) WriteMemory(addr uint64, w insts.Width, v uint64) {
	s.Mem.WriteN(addr, w.Bytes(), v)
}
