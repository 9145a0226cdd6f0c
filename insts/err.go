package insts

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownOpcode is reported when an opcode byte has no table entry.
	ErrUnknownOpcode = errors.New("unknown opcode")
	// ErrTruncatedStream is reported when the byte stream ends before the
	// descriptor or immediate of the fetch form is complete.
	ErrTruncatedStream = errors.New("truncated instruction stream")
	// ErrInvalidOperandWidth is reported for an operand size the fetch form
	// does not accept.
	ErrInvalidOperandWidth = errors.New("invalid operand width")
	// ErrInstructionTooLong is reported when an instruction would run past
	// MaxInstructionLength bytes, e.g. on a long run of prefixes.
	ErrInstructionTooLong = errors.New("instruction too long")
)

// Fault is a decode fault at a specific instruction address.
type Fault struct {
	// Err is one of ErrUnknownOpcode, ErrTruncatedStream,
	// ErrInvalidOperandWidth or ErrInstructionTooLong.
	Err error
	// Addr is the address of the first byte of the faulting instruction.
	Addr uint64
	// Bytes holds the instruction bytes consumed before the fault.
	Bytes []byte
	// Width is the offending width for ErrInvalidOperandWidth.
	Width Width
}

func (f *Fault) Error() string {
	switch {
	case errors.Is(f.Err, ErrInvalidOperandWidth):
		return fmt.Sprintf("%v %d at 0x%X", f.Err, f.Width.Bits(), f.Addr)
	case len(f.Bytes) > 0:
		return fmt.Sprintf("%v at 0x%X (bytes % x)", f.Err, f.Addr, f.Bytes)
	default:
		return fmt.Sprintf("%v at 0x%X", f.Err, f.Addr)
	}
}

func (f *Fault) Unwrap() error {
	return f.Err
}

// IsEndOfStream reports whether err is a truncated-stream fault raised
// before any byte of the instruction was read, i.e. the stream ended on an
// instruction boundary.
func IsEndOfStream(err error) bool {
	var f *Fault
	if !errors.As(err, &f) {
		return false
	}
	return errors.Is(f.Err, ErrTruncatedStream) && len(f.Bytes) == 0
}
