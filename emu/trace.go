package emu

import (
	"fmt"
	"io"

	"github.com/sarchlab/x86emu/insts"
)

// Tracer receives one record per executed instruction, before the
// instruction's effect is applied.
type Tracer interface {
	Trace(mnemonic string, op insts.Operand)
}

// WriterTracer prints each record as a line of the form
// "add    $0x5,%al".
type WriterTracer struct {
	w io.Writer
}

// NewWriterTracer creates a tracer that writes to w.
func NewWriterTracer(w io.Writer) *WriterTracer {
	return &WriterTracer{w: w}
}

// Trace writes one line.
func (t *WriterTracer) Trace(mnemonic string, op insts.Operand) {
	_, _ = fmt.Fprintf(t.w, "%-6s %s\n", mnemonic, op)
}

// NopTracer discards every record.
type NopTracer struct{}

// Trace does nothing.
func (NopTracer) Trace(string, insts.Operand) {}
