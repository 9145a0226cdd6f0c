package insts

// Op represents an x86 mnemonic.
type Op uint8

// Supported mnemonics. The arithmetic group is in opcode order; the
// conditional moves are in condition-code order.
const (
	OpUnknown Op = iota
	OpADD
	OpOR
	OpADC
	OpSBB
	OpAND
	OpSUB
	OpXOR
	OpCMP
	OpCMOVO
	OpCMOVNO
	OpCMOVB
	OpCMOVAE
	OpCMOVE
	OpCMOVNE
	OpCMOVBE
	OpCMOVA
	OpCMOVS
	OpCMOVNS
	OpCMOVP
	OpCMOVNP
	OpCMOVL
	OpCMOVGE
	OpCMOVLE
	OpCMOVG

	// OpCount is the number of Op values, OpUnknown included.
	OpCount int = iota
)

// ArithmeticOps lists the arithmetic group in base-opcode order.
var ArithmeticOps = [8]Op{OpADD, OpOR, OpADC, OpSBB, OpAND, OpSUB, OpXOR, OpCMP}

var arithmeticNames = [8]string{"add", "or", "adc", "sbb", "and", "sub", "xor", "cmp"}

// String returns the lower-case mnemonic.
func (o Op) String() string {
	switch {
	case o >= OpADD && o <= OpCMP:
		return arithmeticNames[o-OpADD]
	case o.IsCMov():
		return "cmov" + ConditionCode(o-OpCMOVO).String()
	default:
		return "(bad)"
	}
}

// IsArithmetic reports whether o belongs to the arithmetic/logic group.
func (o Op) IsArithmetic() bool {
	return o >= OpADD && o <= OpCMP
}

// IsCMov reports whether o is a conditional move.
func (o Op) IsCMov() bool {
	return o >= OpCMOVO && o <= OpCMOVG
}

// Condition returns the condition code tested by a conditional move.
func (o Op) Condition() (ConditionCode, bool) {
	if !o.IsCMov() {
		return 0, false
	}
	return ConditionCode(o - OpCMOVO), true
}

// CMovOp returns the conditional-move mnemonic for cc.
func CMovOp(cc ConditionCode) Op {
	return OpCMOVO + Op(cc&0xF)
}

// FetchForm is the operand-fetch recipe associated with an opcode.
type FetchForm uint8

// Fetch forms.
const (
	FormUnknown FetchForm = iota
	// FormRegImmediate8 is an 8-bit ModRM operand with an 8-bit immediate.
	FormRegImmediate8
	// FormRegReg is a ModRM operand and a register at the operand width.
	FormRegReg
	// FormAccumulatorImmediate8 is AL with an 8-bit immediate.
	FormAccumulatorImmediate8
	// FormAccumulatorImmediateWide is eAX with an immediate of the same width.
	FormAccumulatorImmediateWide
)

func (f FetchForm) String() string {
	switch f {
	case FormRegImmediate8:
		return "RegImmediate8"
	case FormRegReg:
		return "RegReg"
	case FormAccumulatorImmediate8:
		return "AccumulatorImmediate8"
	case FormAccumulatorImmediateWide:
		return "AccumulatorImmediateWide"
	default:
		return "Unknown"
	}
}

// OpcodeEntry describes one opcode byte.
type OpcodeEntry struct {
	Opcode   byte
	Escape   bool // true for entries of the 0x0F two-byte map
	Op       Op
	Form     FetchForm
	Reversed bool
}

// Valid reports whether the entry maps to a mnemonic.
func (e OpcodeEntry) Valid() bool {
	return e.Op != OpUnknown
}

// EscapeByte introduces the two-byte opcode map.
const EscapeByte = 0x0F

// cmovBase is the second opcode byte of CMOVO in the two-byte map.
const cmovBase = 0x40

// groupStride is the distance between base opcodes of the arithmetic group.
const groupStride = 8

// groupForms are the six operand forms every arithmetic mnemonic occupies,
// indexed by offset from the mnemonic's base opcode. Offsets 6 and 7 are
// not part of the group.
var groupForms = [6]struct {
	form     FetchForm
	reversed bool
}{
	{FormRegImmediate8, false},
	{FormRegReg, false},
	{FormRegImmediate8, true},
	{FormRegReg, true},
	{FormAccumulatorImmediate8, false},
	{FormAccumulatorImmediateWide, false},
}

var (
	oneByteMap [256]OpcodeEntry
	escapeMap  [256]OpcodeEntry
)

func init() {
	for i, op := range ArithmeticOps {
		base := i * groupStride
		for off, f := range groupForms {
			opcode := byte(base + off)
			oneByteMap[opcode] = OpcodeEntry{
				Opcode:   opcode,
				Op:       op,
				Form:     f.form,
				Reversed: f.reversed,
			}
		}
	}

	for cc := ConditionCode(0); cc < numConditions; cc++ {
		opcode := byte(cmovBase + int(cc))
		escapeMap[opcode] = OpcodeEntry{
			Opcode:   opcode,
			Escape:   true,
			Op:       CMovOp(cc),
			Form:     FormRegReg,
			Reversed: true,
		}
	}
}

// Lookup returns the one-byte map entry for opcode.
func Lookup(opcode byte) (OpcodeEntry, bool) {
	e := oneByteMap[opcode]
	return e, e.Valid()
}

// LookupEscaped returns the entry for opcode in the 0x0F two-byte map.
func LookupEscaped(opcode byte) (OpcodeEntry, bool) {
	e := escapeMap[opcode]
	return e, e.Valid()
}

// Entries returns every valid entry, one-byte map first, in opcode order.
func Entries() []OpcodeEntry {
	var entries []OpcodeEntry
	for _, e := range oneByteMap {
		if e.Valid() {
			entries = append(entries, e)
		}
	}
	for _, e := range escapeMap {
		if e.Valid() {
			entries = append(entries, e)
		}
	}
	return entries
}
