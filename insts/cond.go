package insts

import "fmt"

// ConditionCode represents an x86 condition code (the "cc" of Jcc, SETcc
// and CMOVcc). Codes come in complementary pairs: 2k tests a flag predicate
// and 2k+1 tests its negation.
type ConditionCode uint8

// x86 condition codes in encoding order.
const (
	CondO  ConditionCode = 0x0 // Overflow (OF == 1)
	CondNO ConditionCode = 0x1 // No overflow (OF == 0)
	CondB  ConditionCode = 0x2 // Below / carry (CF == 1)
	CondAE ConditionCode = 0x3 // Above or equal / no carry (CF == 0)
	CondE  ConditionCode = 0x4 // Equal (ZF == 1)
	CondNE ConditionCode = 0x5 // Not equal (ZF == 0)
	CondBE ConditionCode = 0x6 // Below or equal (CF == 1 || ZF == 1)
	CondA  ConditionCode = 0x7 // Above (CF == 0 && ZF == 0)
	CondS  ConditionCode = 0x8 // Sign (SF == 1)
	CondNS ConditionCode = 0x9 // No sign (SF == 0)
	CondP  ConditionCode = 0xA // Parity even (PF == 1)
	CondNP ConditionCode = 0xB // Parity odd (PF == 0)
	CondL  ConditionCode = 0xC // Less (SF != OF)
	CondGE ConditionCode = 0xD // Greater or equal (SF == OF)
	CondLE ConditionCode = 0xE // Less or equal (ZF == 1 || SF != OF)
	CondG  ConditionCode = 0xF // Greater (ZF == 0 && SF == OF)

	numConditions = 16
)

var conditionNames = [numConditions]string{
	"o", "no", "b", "ae", "e", "ne", "be", "a",
	"s", "ns", "p", "np", "l", "ge", "le", "g",
}

func (cc ConditionCode) String() string {
	if cc >= numConditions {
		return fmt.Sprintf("cc(%d)", uint8(cc))
	}
	return conditionNames[cc]
}

// Pair returns the complementary condition.
func (cc ConditionCode) Pair() ConditionCode {
	return cc ^ 1
}

// ConditionEntry binds a condition code to the flags it reads and the
// polarity it requires.
type ConditionEntry struct {
	Code ConditionCode
	// Flags is the set of flag bits the pair predicate reads.
	Flags Flag
	// Polarity is true when the condition holds with the pair predicate
	// set and false when it holds with the predicate clear.
	Polarity bool
}

// pairFlags lists the flags read by each of the eight condition pairs.
var pairFlags = [numConditions / 2]Flag{
	FlagOverflow,
	FlagCarry,
	FlagZero,
	FlagCarry | FlagZero,
	FlagSign,
	FlagParity,
	FlagSign | FlagOverflow,
	FlagZero | FlagSign | FlagOverflow,
}

var conditionTable [numConditions]ConditionEntry

func init() {
	for cc := ConditionCode(0); cc < numConditions; cc++ {
		conditionTable[cc] = ConditionEntry{
			Code:     cc,
			Flags:    pairFlags[cc>>1],
			Polarity: cc&1 == 0,
		}
	}
}

// Conditions returns the condition table in encoding order.
func Conditions() [numConditions]ConditionEntry {
	return conditionTable
}

// Condition returns the table entry for cc.
// It panics if cc is not a valid condition code.
func Condition(cc ConditionCode) ConditionEntry {
	if cc >= numConditions {
		panic(fmt.Sprintf("insts: invalid condition code %d", uint8(cc)))
	}
	return conditionTable[cc]
}

// Holds evaluates the entry against the flags.
func (e ConditionEntry) Holds(flags FlagReader) bool {
	return pairPredicate(e.Code>>1, flags) == e.Polarity
}

// Holds evaluates cc against the flags.
func (cc ConditionCode) Holds(flags FlagReader) bool {
	return Condition(cc).Holds(flags)
}

// pairPredicate evaluates the flag test shared by a condition pair.
func pairPredicate(pair ConditionCode, flags FlagReader) bool {
	switch pair {
	case 0:
		return flags.Flag(FlagOverflow)
	case 1:
		return flags.Flag(FlagCarry)
	case 2:
		return flags.Flag(FlagZero)
	case 3:
		return flags.Flag(FlagCarry) || flags.Flag(FlagZero)
	case 4:
		return flags.Flag(FlagSign)
	case 5:
		return flags.Flag(FlagParity)
	case 6:
		return flags.Flag(FlagSign) != flags.Flag(FlagOverflow)
	case 7:
		return flags.Flag(FlagZero) || flags.Flag(FlagSign) != flags.Flag(FlagOverflow)
	default:
		panic(fmt.Sprintf("insts: invalid condition pair %d", uint8(pair)))
	}
}
