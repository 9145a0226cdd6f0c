package insts

import (
	"fmt"
	"strings"
)

// LocationKind tells where an operand value lives.
type LocationKind uint8

// Location kinds.
const (
	LocNone LocationKind = iota
	LocRegister
	LocMemory
	LocImmediate
)

// MemoryRef is a decoded ModRM/SIB memory reference.
type MemoryRef struct {
	Base        Register // RegNone when absent
	Index       Register // RegNone when absent
	Scale       uint8    // 1, 2, 4 or 8
	Disp        int32
	RIPRelative bool
	// Addr32 selects 32-bit address arithmetic and register names, as in
	// 32-bit mode.
	Addr32 bool
}

// EffectiveAddress computes the address named by m. regs reads a 64-bit
// register and nextIP is the address of the following instruction, which is
// the base of RIP-relative references.
func (m MemoryRef) EffectiveAddress(regs func(Register) uint64, nextIP uint64) uint64 {
	var addr uint64
	switch {
	case m.RIPRelative:
		addr = nextIP
	case m.Base != RegNone:
		addr = regs(m.Base)
	}

	if m.Index != RegNone {
		addr += regs(m.Index) * uint64(m.Scale)
	}

	addr += uint64(int64(m.Disp))
	if m.Addr32 {
		addr = uint64(uint32(addr))
	}
	return addr
}

func (m MemoryRef) addrWidth() Width {
	if m.Addr32 {
		return Width32
	}
	return Width64
}

func (m MemoryRef) String() string {
	var sb strings.Builder

	hasRegs := m.RIPRelative || m.Base != RegNone || m.Index != RegNone
	if m.Disp != 0 || !hasRegs {
		sb.WriteString(signedHex(int64(m.Disp)))
	}
	if !hasRegs {
		return sb.String()
	}

	sb.WriteByte('(')
	switch {
	case m.RIPRelative:
		sb.WriteString("%rip")
	case m.Base != RegNone:
		sb.WriteString("%" + m.Base.Name(m.addrWidth()))
	}
	if m.Index != RegNone {
		fmt.Fprintf(&sb, ",%%%s,%d", m.Index.Name(m.addrWidth()), m.Scale)
	}
	sb.WriteByte(')')

	return sb.String()
}

func signedHex(v int64) string {
	if v < 0 {
		return fmt.Sprintf("-0x%x", uint64(-v))
	}
	return fmt.Sprintf("0x%x", v)
}

// Location is one side of a decoded operand pair.
type Location struct {
	Kind  LocationKind
	Width Width
	Reg   Register
	Mem   MemoryRef
	Imm   uint64 // sign-extended to 64 bits
}

// RegisterLocation returns a register location.
func RegisterLocation(r Register, w Width) Location {
	return Location{Kind: LocRegister, Width: w, Reg: r}
}

// ImmediateLocation returns an immediate location.
func ImmediateLocation(v uint64, w Width) Location {
	return Location{Kind: LocImmediate, Width: w, Reg: RegNone, Imm: v}
}

// MemoryLocation returns a memory location.
func MemoryLocation(m MemoryRef, w Width) Location {
	return Location{Kind: LocMemory, Width: w, Reg: RegNone, Mem: m}
}

// Writable reports whether the location can be a destination.
func (l Location) Writable() bool {
	return l.Kind == LocRegister || l.Kind == LocMemory
}

func (l Location) String() string {
	switch l.Kind {
	case LocRegister:
		return "%" + l.Reg.Name(l.Width)
	case LocImmediate:
		return fmt.Sprintf("$0x%x", l.Imm&l.Width.Mask())
	case LocMemory:
		return l.Mem.String()
	default:
		return "?"
	}
}

// Operand is a decoded operand pair in one of the fetch forms.
type Operand struct {
	Form  FetchForm
	Width Width
	Dst   Location
	Src   Location
	// Reversed is set when the ModRM register/memory side is the source
	// rather than the destination.
	Reversed bool
}

// String renders the operand in AT&T order (source first).
func (o Operand) String() string {
	return o.Src.String() + "," + o.Dst.String()
}

// pair builds an operand from the ModRM side and the other side, applying
// the reversed direction.
func pair(form FetchForm, w Width, rm, other Location, reversed bool) Operand {
	op := Operand{Form: form, Width: w, Dst: rm, Src: other, Reversed: reversed}
	if reversed {
		op.Dst, op.Src = other, rm
	}
	return op
}
