package insts

import "fmt"

// ByteSource provides read access to instruction bytes by address.
// Fetch reports false past the end of the stream.
type ByteSource interface {
	Fetch(addr uint64) (byte, bool)
}

// Bytes is a ByteSource over a byte slice loaded at Base.
type Bytes struct {
	Base uint64
	Data []byte
}

// Fetch returns the byte at addr.
func (b Bytes) Fetch(addr uint64) (byte, bool) {
	if addr < b.Base || addr-b.Base >= uint64(len(b.Data)) {
		return 0, false
	}
	return b.Data[addr-b.Base], true
}

// Window restricts Src to the Size addresses starting at Base, so that a
// stream backed by paged memory ends where the loaded code ends.
type Window struct {
	Src  ByteSource
	Base uint64
	Size uint64
}

// Fetch returns the byte at addr if it lies inside the window.
func (w Window) Fetch(addr uint64) (byte, bool) {
	if addr < w.Base || addr-w.Base >= w.Size {
		return 0, false
	}
	return w.Src.Fetch(addr)
}

// MaxInstructionLength is the architectural limit on the length of one
// instruction, prefixes included.
const MaxInstructionLength = 15

// Cursor reads instruction bytes forward from a start address and counts
// what it consumed. It never writes to the source.
type Cursor struct {
	src   ByteSource
	start uint64
	bytes []byte
}

// NewCursor creates a cursor positioned at addr.
func NewCursor(src ByteSource, addr uint64) *Cursor {
	return &Cursor{src: src, start: addr, bytes: make([]byte, 0, MaxInstructionLength)}
}

// Start returns the address the cursor was created at.
func (c *Cursor) Start() uint64 {
	return c.start
}

// Addr returns the address of the next byte.
func (c *Cursor) Addr() uint64 {
	return c.start + uint64(len(c.bytes))
}

// Consumed returns the number of bytes read so far.
func (c *Cursor) Consumed() int {
	return len(c.bytes)
}

// Bytes returns the bytes read so far.
func (c *Cursor) Bytes() []byte {
	return c.bytes
}

// Next reads one byte.
func (c *Cursor) Next() (byte, error) {
	if len(c.bytes) == MaxInstructionLength {
		return 0, c.fault(ErrInstructionTooLong)
	}
	b, ok := c.src.Fetch(c.Addr())
	if !ok {
		return 0, c.fault(ErrTruncatedStream)
	}
	c.bytes = append(c.bytes, b)
	return b, nil
}

// nextSigned reads an n-byte little-endian value and sign-extends it.
func (c *Cursor) nextSigned(n int) (uint64, error) {
	var v uint64
	for i := 0; i < n; i++ {
		b, err := c.Next()
		if err != nil {
			return 0, err
		}
		v |= uint64(b) << (8 * i)
	}

	shift := uint(64 - 8*n)
	return uint64(int64(v<<shift) >> shift), nil
}

func (c *Cursor) fault(err error) *Fault {
	consumed := make([]byte, len(c.bytes))
	copy(consumed, c.bytes)
	return &Fault{Err: err, Addr: c.start, Bytes: consumed}
}

// DecoderFlags carries the decode context of one instruction: prefix state
// and the register direction selected by the opcode.
type DecoderFlags uint16

// Decoder flags.
const (
	// ReversedRegisterDirection makes the ModRM register/memory side the
	// source instead of the destination.
	ReversedRegisterDirection DecoderFlags = 1 << iota
	// OperandSizeOverride is set by the 0x66 prefix.
	OperandSizeOverride
	// RexPresent is set by any REX prefix.
	RexPresent
	// RexW selects 64-bit operands.
	RexW
	// RexR extends ModRM.reg.
	RexR
	// RexX extends SIB.index.
	RexX
	// RexB extends ModRM.rm or SIB.base.
	RexB

	rexMask = RexPresent | RexW | RexR | RexX | RexB
)

// rexFlags converts a REX prefix byte (0x40-0x4F) into decoder flags.
func rexFlags(b byte) DecoderFlags {
	flags := RexPresent
	if b&0x8 != 0 {
		flags |= RexW
	}
	if b&0x4 != 0 {
		flags |= RexR
	}
	if b&0x2 != 0 {
		flags |= RexX
	}
	if b&0x1 != 0 {
		flags |= RexB
	}
	return flags
}

// OperandSize resolves the register size for the wide operand forms.
// REX.W takes precedence over the operand-size override.
func (f DecoderFlags) OperandSize() Width {
	switch {
	case f&RexW != 0:
		return Width64
	case f&OperandSizeOverride != 0:
		return Width16
	default:
		return Width32
	}
}

func (f DecoderFlags) has(flag DecoderFlags) bool {
	return f&flag != 0
}

func (f DecoderFlags) ext(flag DecoderFlags) uint8 {
	if f&flag != 0 {
		return 8
	}
	return 0
}

// decodeDescriptor reads a ModRM byte and whatever SIB and displacement
// bytes it calls for. It returns the register/memory location at width w
// and the 4-bit ModRM.reg field.
func decodeDescriptor(c *Cursor, w Width, flags DecoderFlags, mode Mode) (Location, uint8, error) {
	modrm, err := c.Next()
	if err != nil {
		return Location{}, 0, err
	}

	mod := modrm >> 6
	reg := (modrm>>3)&7 | flags.ext(RexR)
	rm := modrm & 7

	if mod == 3 {
		r := selectRegister(rm|flags.ext(RexB), w, flags.has(RexPresent))
		return RegisterLocation(r, w), reg, nil
	}

	mem := MemoryRef{Base: RegNone, Index: RegNone, Scale: 1, Addr32: mode == Mode32}
	disp32 := mod == 2

	switch {
	case rm == 4:
		sib, err := c.Next()
		if err != nil {
			return Location{}, 0, err
		}

		index := (sib>>3)&7 | flags.ext(RexX)
		if index != 4 {
			mem.Index = Register(index)
			mem.Scale = 1 << (sib >> 6)
		}

		if sib&7 == 5 && mod == 0 {
			disp32 = true
		} else {
			mem.Base = Register(sib&7 | flags.ext(RexB))
		}
	case rm == 5 && mod == 0:
		mem.RIPRelative = mode == Mode64
		disp32 = true
	default:
		mem.Base = Register(rm | flags.ext(RexB))
	}

	switch {
	case mod == 1:
		d, err := c.nextSigned(1)
		if err != nil {
			return Location{}, 0, err
		}
		mem.Disp = int32(d)
	case disp32:
		d, err := c.nextSigned(4)
		if err != nil {
			return Location{}, 0, err
		}
		mem.Disp = int32(d)
	}

	return MemoryLocation(mem, w), reg, nil
}

// DecodeRM8Immediate8 decodes an 8-bit register/memory descriptor followed
// by one immediate byte. The ModRM.reg field is not used by this form.
// The returned count is the descriptor length plus one.
func DecodeRM8Immediate8(c *Cursor, flags DecoderFlags) (Operand, int, error) {
	return decodeRM8Immediate8(c, flags, Mode64)
}

func decodeRM8Immediate8(c *Cursor, flags DecoderFlags, mode Mode) (Operand, int, error) {
	start := c.Consumed()

	rm, _, err := decodeDescriptor(c, Width8, flags, mode)
	if err != nil {
		return Operand{}, 0, err
	}

	imm, err := c.nextSigned(1)
	if err != nil {
		return Operand{}, 0, err
	}

	op := pair(FormRegImmediate8, Width8, rm, ImmediateLocation(imm, Width8),
		flags.has(ReversedRegisterDirection))

	return op, c.Consumed() - start, nil
}

// DecodeRegReg decodes a register/memory descriptor and the ModRM.reg
// register, both at size. size must be 16, 32 or 64 bits.
func DecodeRegReg(c *Cursor, size Width, flags DecoderFlags) (Operand, int, error) {
	return decodeRegReg(c, size, flags, Mode64)
}

func decodeRegReg(c *Cursor, size Width, flags DecoderFlags, mode Mode) (Operand, int, error) {
	if !wideOperand(size) {
		return Operand{}, 0, widthFault(c, size)
	}

	start := c.Consumed()

	rm, reg, err := decodeDescriptor(c, size, flags, mode)
	if err != nil {
		return Operand{}, 0, err
	}

	r := RegisterLocation(selectRegister(reg, size, flags.has(RexPresent)), size)
	op := pair(FormRegReg, size, rm, r, flags.has(ReversedRegisterDirection))

	return op, c.Consumed() - start, nil
}

// DecodeALImmediate decodes the AL, imm8 form. It always consumes one byte.
func DecodeALImmediate(c *Cursor) (Operand, int, error) {
	imm, err := c.nextSigned(1)
	if err != nil {
		return Operand{}, 0, err
	}

	op := pair(FormAccumulatorImmediate8, Width8,
		RegisterLocation(RAX, Width8), ImmediateLocation(imm, Width8), false)

	return op, 1, nil
}

// DecodeAXImmediate decodes the accumulator at size with an immediate of
// the same width. 64-bit forms carry a 4-byte immediate that is
// sign-extended.
func DecodeAXImmediate(c *Cursor, size Width, flags DecoderFlags) (Operand, int, error) {
	if !wideOperand(size) {
		return Operand{}, 0, widthFault(c, size)
	}

	n := size.Bytes()
	if n > 4 {
		n = 4
	}

	imm, err := c.nextSigned(n)
	if err != nil {
		return Operand{}, 0, err
	}

	op := pair(FormAccumulatorImmediateWide, size,
		RegisterLocation(RAX, size), ImmediateLocation(imm, size),
		flags.has(ReversedRegisterDirection))

	return op, n, nil
}

func wideOperand(w Width) bool {
	return w == Width16 || w == Width32 || w == Width64
}

func widthFault(c *Cursor, w Width) *Fault {
	f := c.fault(ErrInvalidOperandWidth)
	f.Width = w
	return f
}

// Mode is the processor mode the decoder assumes.
type Mode uint8

// Decoder modes.
const (
	// Mode64 is 64-bit long mode: 0x40-0x4F are REX prefixes and
	// ModRM mod=00 rm=101 is RIP-relative.
	Mode64 Mode = iota
	// Mode32 is 32-bit protected mode: no REX, mod=00 rm=101 is an
	// absolute disp32.
	Mode32
)

func (m Mode) String() string {
	switch m {
	case Mode64:
		return "64"
	case Mode32:
		return "32"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// Instruction is a fully decoded instruction.
type Instruction struct {
	Addr    uint64
	Entry   OpcodeEntry
	Operand Operand
	Flags   DecoderFlags
	// Length counts prefixes, opcode bytes, descriptor and immediate.
	Length int
	Bytes  []byte
}

// Op returns the instruction mnemonic.
func (i *Instruction) Op() Op {
	return i.Entry.Op
}

func (i *Instruction) String() string {
	return fmt.Sprintf("%-6s %s", i.Entry.Op, i.Operand)
}

// Decoder decodes x86 machine code into instructions.
type Decoder struct {
	mode Mode
}

// NewDecoder creates a new 64-bit mode decoder.
func NewDecoder() *Decoder {
	return &Decoder{mode: Mode64}
}

// NewDecoderWithMode creates a decoder for the given processor mode.
func NewDecoderWithMode(mode Mode) *Decoder {
	return &Decoder{mode: mode}
}

// Mode returns the decoder's processor mode.
func (d *Decoder) Mode() Mode {
	return d.mode
}

// Decode decodes the instruction starting at addr. It reads src only and
// returns a *Fault for unknown opcodes, truncated streams and invalid
// operand widths.
func (d *Decoder) Decode(src ByteSource, addr uint64) (*Instruction, error) {
	c := NewCursor(src, addr)

	b, err := c.Next()
	if err != nil {
		return nil, err
	}

	var flags DecoderFlags
prefixes:
	for {
		switch {
		case b == 0x66:
			// A REX prefix only counts when it immediately precedes the opcode.
			flags = flags&^rexMask | OperandSizeOverride
		case d.mode == Mode64 && b&0xF0 == 0x40:
			flags = flags&^rexMask | rexFlags(b)
		default:
			break prefixes
		}

		b, err = c.Next()
		if err != nil {
			return nil, err
		}
	}

	entry, ok := Lookup(b)
	if b == EscapeByte {
		b, err = c.Next()
		if err != nil {
			return nil, err
		}
		entry, ok = LookupEscaped(b)
	}
	if !ok {
		return nil, c.fault(ErrUnknownOpcode)
	}

	if entry.Reversed {
		flags |= ReversedRegisterDirection
	}

	operand, err := d.decodeOperand(c, entry.Form, flags)
	if err != nil {
		return nil, err
	}

	return &Instruction{
		Addr:    addr,
		Entry:   entry,
		Operand: operand,
		Flags:   flags,
		Length:  c.Consumed(),
		Bytes:   c.Bytes(),
	}, nil
}

// decodeOperand runs the decoder routine for a fetch form.
func (d *Decoder) decodeOperand(c *Cursor, form FetchForm, flags DecoderFlags) (Operand, error) {
	var (
		op  Operand
		err error
	)

	switch form {
	case FormRegImmediate8:
		op, _, err = decodeRM8Immediate8(c, flags, d.mode)
	case FormRegReg:
		op, _, err = decodeRegReg(c, flags.OperandSize(), flags, d.mode)
	case FormAccumulatorImmediate8:
		op, _, err = DecodeALImmediate(c)
	case FormAccumulatorImmediateWide:
		op, _, err = DecodeAXImmediate(c, flags.OperandSize(), flags)
	default:
		err = c.fault(ErrUnknownOpcode)
	}

	return op, err
}
