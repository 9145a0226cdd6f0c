package emu

import (
	"math/bits"

	"github.com/sarchlab/x86emu/insts"
)

// ALUResult is the outcome of an arithmetic or logic operation: the result
// truncated to the operand width and the status flags it sets.
type ALUResult struct {
	Value uint64
	Flags insts.Flag
}

// ALU implements the x86 arithmetic and logic group. It is stateless;
// carry-in is passed explicitly.
type ALU struct{}

// NewALU creates a new ALU.
func NewALU() *ALU {
	return &ALU{}
}

// Add computes a + b + carry at width w.
func (a *ALU) Add(w insts.Width, x, y uint64, carry bool) ALUResult {
	x, y = x&w.Mask(), y&w.Mask()

	var cin uint64
	if carry {
		cin = 1
	}

	var res, cf uint64
	if w == insts.Width64 {
		var c1, c2 uint64
		res, c1 = bits.Add64(x, y, 0)
		res, c2 = bits.Add64(res, cin, 0)
		cf = c1 | c2
	} else {
		full := x + y + cin
		res = full & w.Mask()
		cf = full >> w.Bits()
	}

	flags := a.commonFlags(w, res) | adjust(x, y, res)
	if cf != 0 {
		flags |= insts.FlagCarry
	}
	if (x^res)&(y^res)&w.SignBit() != 0 {
		flags |= insts.FlagOverflow
	}

	return ALUResult{Value: res, Flags: flags}
}

// Sub computes x - y - borrow at width w.
func (a *ALU) Sub(w insts.Width, x, y uint64, borrow bool) ALUResult {
	x, y = x&w.Mask(), y&w.Mask()

	var bin uint64
	if borrow {
		bin = 1
	}

	res, b1 := bits.Sub64(x, y, 0)
	res, b2 := bits.Sub64(res, bin, 0)
	res &= w.Mask()

	flags := a.commonFlags(w, res) | adjust(x, y, res)
	if b1|b2 != 0 {
		flags |= insts.FlagCarry
	}
	if (x^y)&(x^res)&w.SignBit() != 0 {
		flags |= insts.FlagOverflow
	}

	return ALUResult{Value: res, Flags: flags}
}

// And computes x & y. CF and OF are cleared.
func (a *ALU) And(w insts.Width, x, y uint64) ALUResult {
	res := x & y & w.Mask()
	return ALUResult{Value: res, Flags: a.commonFlags(w, res)}
}

// Or computes x | y. CF and OF are cleared.
func (a *ALU) Or(w insts.Width, x, y uint64) ALUResult {
	res := (x | y) & w.Mask()
	return ALUResult{Value: res, Flags: a.commonFlags(w, res)}
}

// Xor computes x ^ y. CF and OF are cleared.
func (a *ALU) Xor(w insts.Width, x, y uint64) ALUResult {
	res := (x ^ y) & w.Mask()
	return ALUResult{Value: res, Flags: a.commonFlags(w, res)}
}

// commonFlags derives ZF, SF and PF from a result.
func (a *ALU) commonFlags(w insts.Width, res uint64) insts.Flag {
	var flags insts.Flag
	if res == 0 {
		flags |= insts.FlagZero
	}
	if res&w.SignBit() != 0 {
		flags |= insts.FlagSign
	}
	// PF reflects even parity of the low byte only.
	if bits.OnesCount8(uint8(res))%2 == 0 {
		flags |= insts.FlagParity
	}
	return flags
}

func adjust(x, y, res uint64) insts.Flag {
	if (x^y^res)&0x10 != 0 {
		return insts.FlagAdjust
	}
	return 0
}

// Apply writes the arithmetic flags of r into s, leaving other flags alone.
func (r ALUResult) Apply(s MachineState) {
	for f := insts.Flag(1); f <= insts.FlagOverflow; f <<= 1 {
		if insts.ArithmeticFlags&f != 0 {
			s.SetFlag(f, r.Flags&f != 0)
		}
	}
}
