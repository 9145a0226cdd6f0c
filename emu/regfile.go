// Package emu provides functional x86-64 emulation.
package emu

import (
	"fmt"
	"io"

	"github.com/sarchlab/x86emu/insts"
)

// RegFile represents the x86-64 integer register file.
// It contains the sixteen general-purpose registers (RAX-R15),
// the instruction pointer (RIP), and the flags register (RFLAGS).
type RegFile struct {
	// GPR holds RAX..R15 in Intel encoding order.
	GPR [16]uint64

	// RIP is the instruction pointer.
	RIP uint64

	// RFLAGS holds the status and control flags.
	RFLAGS uint64
}

// rflagsReserved is bit 1 of RFLAGS, which always reads as 1.
const rflagsReserved = 1 << 1

// NewRegFile creates a register file in its reset state.
func NewRegFile() *RegFile {
	return &RegFile{RFLAGS: rflagsReserved}
}

// ReadReg reads register reg viewed at width w.
// AH, CH, DH and BH read bits 15:8 of their base register.
func (r *RegFile) ReadReg(reg insts.Register, w insts.Width) uint64 {
	if reg.IsHighByte() {
		return (r.GPR[reg.Base()] >> 8) & 0xFF
	}
	if reg > insts.R15 {
		return 0
	}
	return r.GPR[reg] & w.Mask()
}

// WriteReg writes value to register reg viewed at width w.
// 8- and 16-bit writes keep the untouched upper bits, 32-bit writes
// zero-extend into the full register, and 64-bit writes replace it.
func (r *RegFile) WriteReg(reg insts.Register, w insts.Width, value uint64) {
	if reg.IsHighByte() {
		base := reg.Base()
		r.GPR[base] = r.GPR[base]&^0xFF00 | (value&0xFF)<<8
		return
	}
	if reg > insts.R15 {
		return
	}

	switch w {
	case insts.Width8, insts.Width16:
		m := w.Mask()
		r.GPR[reg] = r.GPR[reg]&^m | value&m
	case insts.Width32:
		r.GPR[reg] = value & 0xFFFFFFFF
	default:
		r.GPR[reg] = value
	}
}

// Flag reports whether flag f is set.
func (r *RegFile) Flag(f insts.Flag) bool {
	return r.RFLAGS&uint64(f) != 0
}

// SetFlag sets or clears flag f.
func (r *RegFile) SetFlag(f insts.Flag, set bool) {
	if set {
		r.RFLAGS |= uint64(f)
	} else {
		r.RFLAGS &^= uint64(f)
	}
}

// Dump prints every register and the arithmetic flags, one register per
// line.
func (r *RegFile) Dump(w io.Writer) {
	for i, v := range r.GPR {
		_, _ = fmt.Fprintf(w, "%-4s 0x%016x\n", insts.Register(i).Name(insts.Width64), v)
	}
	_, _ = fmt.Fprintf(w, "%-4s 0x%016x\n", "rip", r.RIP)
	_, _ = fmt.Fprintf(w, "%-4s 0x%016x [%s]\n", "rfl", r.RFLAGS,
		insts.Flag(r.RFLAGS)&insts.ArithmeticFlags)
}
