package insts

import "strings"

// Flag is a bit of the RFLAGS register. Several flags may be or-ed together
// to describe the set of bits a condition reads.
type Flag uint64

// RFLAGS bits.
const (
	FlagCarry     Flag = 1 << 0  // CF
	FlagParity    Flag = 1 << 2  // PF
	FlagAdjust    Flag = 1 << 4  // AF
	FlagZero      Flag = 1 << 6  // ZF
	FlagSign      Flag = 1 << 7  // SF
	FlagTrap      Flag = 1 << 8  // TF
	FlagInterrupt Flag = 1 << 9  // IF
	FlagDirection Flag = 1 << 10 // DF
	FlagOverflow  Flag = 1 << 11 // OF
)

// ArithmeticFlags are the status flags written by the arithmetic group.
const ArithmeticFlags = FlagCarry | FlagParity | FlagAdjust | FlagZero | FlagSign | FlagOverflow

var flagNames = []struct {
	flag Flag
	name string
}{
	{FlagCarry, "CF"},
	{FlagParity, "PF"},
	{FlagAdjust, "AF"},
	{FlagZero, "ZF"},
	{FlagSign, "SF"},
	{FlagTrap, "TF"},
	{FlagInterrupt, "IF"},
	{FlagDirection, "DF"},
	{FlagOverflow, "OF"},
}

func (f Flag) String() string {
	var parts []string
	for _, fn := range flagNames {
		if f&fn.flag != 0 {
			parts = append(parts, fn.name)
		}
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, "|")
}

// FlagReader exposes the individual bits of a flags register.
type FlagReader interface {
	Flag(f Flag) bool
}
