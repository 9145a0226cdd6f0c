package emu

import "github.com/sarchlab/x86emu/insts"

// Dispatcher decodes the instruction at RIP and runs its handler.
type Dispatcher struct {
	decoder  *insts.Decoder
	handlers *Handlers
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(decoder *insts.Decoder, handlers *Handlers) *Dispatcher {
	return &Dispatcher{decoder: decoder, handlers: handlers}
}

// Step executes one instruction read from src at s.InstructionPointer().
// On a decode fault the state is left untouched and the fault is returned
// as-is. Otherwise RIP is advanced by the instruction length before the
// handler runs.
func (d *Dispatcher) Step(src insts.ByteSource, s MachineState) (*insts.Instruction, error) {
	inst, err := d.decoder.Decode(src, s.InstructionPointer())
	if err != nil {
		return nil, err
	}

	handler, ok := d.handlers.Lookup(inst.Op())
	if !ok {
		return nil, &insts.Fault{Err: insts.ErrUnknownOpcode, Addr: inst.Addr, Bytes: inst.Bytes}
	}

	s.AdvanceInstructionPointer(uint64(inst.Length))
	handler(s, inst.Operand)

	return inst, nil
}
