package benchmarks

import (
	"bytes"
	"fmt"

	"github.com/sarchlab/x86emu/emu"
	"github.com/sarchlab/x86emu/insts"
)

// GetMicrobenchmarks returns the standard set of microbenchmarks. Each one
// targets a single instruction class of the core.
func GetMicrobenchmarks() []Benchmark {
	return []Benchmark{
		arithmeticSequential(),
		dependencyChain(),
		memoryReadModifyWrite(),
		cmovSelect(),
		carryChain(),
		mixedOperations(),
	}
}

// Repeat concatenates n copies of code.
func Repeat(n int, code ...byte) []byte {
	return bytes.Repeat(code, n)
}

func expectReg(regFile *emu.RegFile, reg insts.Register, want uint64) error {
	if got := regFile.GPR[reg]; got != want {
		return fmt.Errorf("%s = 0x%x, want 0x%x", reg, got, want)
	}
	return nil
}

// 1. Arithmetic Sequential - independent byte adds across four registers
func arithmeticSequential() Benchmark {
	return Benchmark{
		Name:        "arithmetic_sequential",
		Description: "20 independent 8-bit adds to al, cl, dl and bl - measures ALU throughput",
		Program: Repeat(5,
			0x00, 0xC0, 0x01, // add $0x1,%al
			0x00, 0xC1, 0x01, // add $0x1,%cl
			0x00, 0xC2, 0x01, // add $0x1,%dl
			0x00, 0xC3, 0x01, // add $0x1,%bl
		),
		Validate: func(regFile *emu.RegFile, _ *emu.Memory) error {
			return expectReg(regFile, insts.RBX, 5)
		},
	}
}

// 2. Dependency Chain - every add reads the previous result
func dependencyChain() Benchmark {
	return Benchmark{
		Name:        "dependency_chain",
		Description: "20 dependent adds to al - measures back-to-back ALU latency",
		Program:     Repeat(20, 0x04, 0x01), // add $0x1,%al
		Validate: func(regFile *emu.RegFile, _ *emu.Memory) error {
			return expectReg(regFile, insts.RAX, 20)
		},
	}
}

// 3. Memory Read-Modify-Write - arithmetic with a memory destination
func memoryReadModifyWrite() Benchmark {
	return Benchmark{
		Name:        "memory_rmw",
		Description: "10 adds of eax into (rbx) - measures load and store latency",
		Setup: func(regFile *emu.RegFile, _ *emu.Memory) {
			regFile.GPR[insts.RAX] = 3
			regFile.GPR[insts.RBX] = 0x2000
		},
		Program: Repeat(10, 0x01, 0x03), // add %eax,(%rbx)
		Validate: func(_ *emu.RegFile, memory *emu.Memory) error {
			if got := memory.Read32(0x2000); got != 30 {
				return fmt.Errorf("(0x2000) = %d, want 30", got)
			}
			return nil
		},
	}
}

// 4. CMov Select - branch-free maximum of rax and rcx
func cmovSelect() Benchmark {
	return Benchmark{
		Name:        "cmov_select",
		Description: "10 cmp/cmovl pairs computing max(rax, rcx) - measures cmov latency",
		Setup: func(regFile *emu.RegFile, _ *emu.Memory) {
			regFile.GPR[insts.RAX] = 7
			regFile.GPR[insts.RCX] = 9
		},
		Program: Repeat(10,
			0x48, 0x39, 0xC8, // cmp %rcx,%rax
			0x48, 0x0F, 0x4C, 0xC1, // cmovl %rcx,%rax
		),
		Validate: func(regFile *emu.RegFile, _ *emu.Memory) error {
			return expectReg(regFile, insts.RAX, 9)
		},
	}
}

// 5. Carry Chain - 128-bit add through CF
func carryChain() Benchmark {
	return Benchmark{
		Name:        "carry_chain",
		Description: "128-bit add of rdx:rax and rcx:rbx via add/adc - measures carry latency",
		Setup: func(regFile *emu.RegFile, _ *emu.Memory) {
			regFile.GPR[insts.RAX] = ^uint64(0)
			regFile.GPR[insts.RBX] = 1
		},
		Program: []byte{
			0x48, 0x01, 0xD8, // add %rbx,%rax
			0x48, 0x11, 0xCA, // adc %rcx,%rdx
		},
		Validate: func(regFile *emu.RegFile, _ *emu.Memory) error {
			if err := expectReg(regFile, insts.RAX, 0); err != nil {
				return err
			}
			return expectReg(regFile, insts.RDX, 1)
		},
	}
}

// 6. Mixed Operations - one instruction of each logic and arithmetic kind
func mixedOperations() Benchmark {
	return Benchmark{
		Name:        "mixed_operations",
		Description: "xor, add, and, or, sub and xor on the accumulator",
		Program: []byte{
			0x48, 0x31, 0xC0, // xor %rax,%rax
			0x04, 0x0F, // add $0xf,%al
			0x24, 0x07, // and $0x7,%al
			0x0C, 0x30, // or $0x30,%al
			0x2C, 0x07, // sub $0x7,%al
			0x34, 0xFF, // xor $0xff,%al
		},
		Validate: func(regFile *emu.RegFile, _ *emu.Memory) error {
			return expectReg(regFile, insts.RAX, 0xCF)
		},
	}
}
