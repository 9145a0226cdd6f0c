package core_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/x86emu/emu"
	"github.com/sarchlab/x86emu/insts"
	"github.com/sarchlab/x86emu/timing/cache"
	"github.com/sarchlab/x86emu/timing/core"
	"github.com/sarchlab/x86emu/timing/latency"
)

const base = 0x1000

func newEmulator(code ...byte) *emu.Emulator {
	e := emu.NewEmulator(
		emu.WithTracer(emu.NopTracer{}),
		emu.WithInstructionSource(insts.Bytes{Base: base, Data: code}),
	)
	e.RegFile().RIP = base
	return e
}

var _ = Describe("Core", func() {
	It("should not be halted initially", func() {
		c := core.NewCore(newEmulator(0x04, 0x01), nil, nil)
		Expect(c.Halted()).To(BeFalse())
		Expect(c.Stats().CPI()).To(BeZero())
	})

	It("should execute one instruction per tick", func() {
		c := core.NewCore(newEmulator(0x04, 0x01, 0x04, 0x29), nil, nil)

		Expect(c.Tick()).To(BeTrue())
		Expect(c.Emulator().RegFile().GPR[insts.RAX]).To(Equal(uint64(1)))
		Expect(c.Tick()).To(BeTrue())
		Expect(c.Emulator().RegFile().GPR[insts.RAX]).To(Equal(uint64(0x2A)))

		Expect(c.Tick()).To(BeFalse())
		Expect(c.Halted()).To(BeTrue())
	})

	It("should run until the stream ends and return exit code 0", func() {
		c := core.NewCore(newEmulator(0x04, 0x01, 0x04, 0x01), nil, nil)

		Expect(c.Run()).To(Equal(int64(0)))
		Expect(c.Err()).NotTo(HaveOccurred())

		stats := c.Stats()
		Expect(stats.Instructions).To(Equal(uint64(2)))
		Expect(stats.Cycles).To(Equal(uint64(2)))
		Expect(stats.CPI()).To(Equal(1.0))
	})

	It("should halt with -1 on a decode fault", func() {
		c := core.NewCore(newEmulator(0x04, 0x01, 0x0F, 0x0B), nil, nil)

		Expect(c.Run()).To(Equal(int64(-1)))
		Expect(c.ExitCode()).To(Equal(int64(-1)))
		Expect(c.Err()).To(MatchError(insts.ErrUnknownOpcode))
		Expect(c.Stats().Instructions).To(Equal(uint64(1)))
		Expect(c.Tick()).To(BeFalse())
	})

	It("should charge load and store latency for memory operands", func() {
		// add %eax,(%rbx)
		e := newEmulator(0x01, 0x03)
		e.RegFile().GPR[insts.RAX] = 5
		e.RegFile().GPR[insts.RBX] = 0x2000
		e.Memory().Write32(0x2000, 10)

		c := core.NewCore(e, latency.NewTable(), nil)
		Expect(c.Run()).To(Equal(int64(0)))

		Expect(e.Memory().Read32(0x2000)).To(Equal(uint32(15)))
		stats := c.Stats()
		Expect(stats.MemoryOps).To(Equal(uint64(1)))
		Expect(stats.ExecCycles).To(Equal(uint64(6)))
	})

	It("should charge instruction cache cycles", func() {
		code := []byte{0x04, 0x01, 0x04, 0x01}
		memory := emu.NewMemory()
		memory.LoadProgram(base, code)

		ic, fetch := cache.NewInstructionCache(cache.DefaultL1IConfig(), memory)
		e := emu.NewEmulator(
			emu.WithMemory(memory),
			emu.WithTracer(emu.NopTracer{}),
			emu.WithInstructionSource(fetch.WithBounds(insts.Bytes{Base: base, Data: code})),
		)
		e.RegFile().RIP = base

		c := core.NewCore(e, nil, ic)
		Expect(c.Run()).To(Equal(int64(0)))

		// One miss fills the line both instructions sit in, then one
		// execution cycle per instruction.
		stats := c.Stats()
		Expect(stats.FetchCycles).To(Equal(uint64(14)))
		Expect(stats.ExecCycles).To(Equal(uint64(2)))
		Expect(stats.Cycles).To(Equal(uint64(16)))
	})

	Describe("RunCycles", func() {
		It("should run for the given cycles and report running status", func() {
			c := core.NewCore(newEmulator(0x04, 0x01, 0x04, 0x01, 0x04, 0x01, 0x04, 0x01), nil, nil)

			Expect(c.RunCycles(2)).To(BeTrue())
			Expect(c.Stats().Instructions).To(Equal(uint64(2)))

			Expect(c.RunCycles(10)).To(BeFalse())
			Expect(c.Stats().Instructions).To(Equal(uint64(4)))
		})
	})

	It("should reset core state", func() {
		e := newEmulator(0x04, 0x01)
		c := core.NewCore(e, nil, nil)
		c.Run()

		c.Reset()
		Expect(c.Halted()).To(BeFalse())
		Expect(c.Stats()).To(Equal(core.Stats{}))
		Expect(e.RegFile().GPR[insts.RAX]).To(BeZero())

		e.RegFile().RIP = base
		Expect(c.Run()).To(Equal(int64(0)))
		Expect(e.RegFile().GPR[insts.RAX]).To(Equal(uint64(1)))
	})
})
