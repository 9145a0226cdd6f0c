// Package insts provides x86-64 instruction definitions and decoding.
//
// This package implements decoding of x86-64 machine code into structured
// instruction representations. It supports:
//   - Arithmetic/logic group: ADD, OR, ADC, SBB, AND, SUB, XOR, CMP
//     (opcodes 0x00-0x3D, six operand forms per mnemonic)
//   - Conditional moves: CMOVcc (0x0F 0x40-0x4F)
//   - REX and operand-size override prefixes
//   - ModRM/SIB register and memory operands, including RIP-relative
//
// Usage:
//
//	decoder := insts.NewDecoder()
//	inst, err := decoder.Decode(insts.Bytes{Data: code}, 0)
//	if err != nil {
//		return err
//	}
//	fmt.Println(inst) // add    $0x5,%al
package insts
