package insts

// Width is the size of an operand or register view.
type Width uint8

// Operand widths.
const (
	WidthNone Width = 0
	Width8    Width = 8
	Width16   Width = 16
	Width32   Width = 32
	Width64   Width = 64
)

// Bits returns the width in bits.
func (w Width) Bits() int {
	return int(w)
}

// Bytes returns the width in bytes.
func (w Width) Bytes() int {
	return int(w) / 8
}

// Mask returns a mask covering the low Bits() bits.
func (w Width) Mask() uint64 {
	if w >= Width64 {
		return ^uint64(0)
	}
	return (uint64(1) << w) - 1
}

// SignBit returns the most significant bit of the width.
func (w Width) SignBit() uint64 {
	return uint64(1) << (w - 1)
}

// Valid reports whether w is one of the four operand widths.
func (w Width) Valid() bool {
	switch w {
	case Width8, Width16, Width32, Width64:
		return true
	}
	return false
}

func (w Width) String() string {
	switch w {
	case Width8:
		return "byte"
	case Width16:
		return "word"
	case Width32:
		return "dword"
	case Width64:
		return "qword"
	default:
		return "none"
	}
}

// Register identifies a general-purpose register.
// RAX..R15 follow the Intel register encoding order so that the 4-bit
// register number from ModRM/REX maps directly to the constant.
type Register uint8

// General-purpose registers.
const (
	RAX Register = iota
	RCX
	RDX
	RBX
	RSP
	RBP
	RSI
	RDI
	R8
	R9
	R10
	R11
	R12
	R13
	R14
	R15

	// Legacy high-byte views, reachable only by 8-bit operands without REX.
	AH
	CH
	DH
	BH

	RegNone Register = 0xFF
)

// IsHighByte reports whether r is one of AH, CH, DH or BH.
func (r Register) IsHighByte() bool {
	return r >= AH && r <= BH
}

// Base returns the 64-bit register that holds r.
func (r Register) Base() Register {
	if r.IsHighByte() {
		return r - AH
	}
	return r
}

var (
	names64 = [16]string{
		"rax", "rcx", "rdx", "rbx", "rsp", "rbp", "rsi", "rdi",
		"r8", "r9", "r10", "r11", "r12", "r13", "r14", "r15",
	}
	names32 = [16]string{
		"eax", "ecx", "edx", "ebx", "esp", "ebp", "esi", "edi",
		"r8d", "r9d", "r10d", "r11d", "r12d", "r13d", "r14d", "r15d",
	}
	names16 = [16]string{
		"ax", "cx", "dx", "bx", "sp", "bp", "si", "di",
		"r8w", "r9w", "r10w", "r11w", "r12w", "r13w", "r14w", "r15w",
	}
	names8 = [16]string{
		"al", "cl", "dl", "bl", "spl", "bpl", "sil", "dil",
		"r8b", "r9b", "r10b", "r11b", "r12b", "r13b", "r14b", "r15b",
	}
	namesHigh = [4]string{"ah", "ch", "dh", "bh"}
)

// Name returns the AT&T register name (without the % sigil) for r viewed at
// width w.
func (r Register) Name(w Width) string {
	if r.IsHighByte() {
		return namesHigh[r-AH]
	}
	if r > R15 {
		return "?"
	}

	switch w {
	case Width8:
		return names8[r]
	case Width16:
		return names16[r]
	case Width32:
		return names32[r]
	default:
		return names64[r]
	}
}

func (r Register) String() string {
	return r.Name(Width64)
}

// selectRegister maps a 4-bit register number to a Register for an operand
// of width w. Without a REX prefix, byte registers 4-7 are AH, CH, DH, BH.
func selectRegister(num uint8, w Width, rex bool) Register {
	num &= 0xF
	if w == Width8 && !rex && num >= 4 && num <= 7 {
		return AH + Register(num-4)
	}
	return Register(num)
}
