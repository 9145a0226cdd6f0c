package emu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/x86emu/emu"
	"github.com/sarchlab/x86emu/insts"
)

func regReg(w insts.Width, dst, src insts.Register) insts.Operand {
	return insts.Operand{
		Form:     insts.FormRegReg,
		Width:    w,
		Dst:      insts.RegisterLocation(dst, w),
		Src:      insts.RegisterLocation(src, w),
		Reversed: true,
	}
}

var _ = Describe("Handlers", func() {
	var (
		rec      *traceRecorder
		handlers *emu.Handlers
		state    *emu.State
	)

	BeforeEach(func() {
		rec = &traceRecorder{}
		handlers = emu.NewHandlers(rec)
		state = emu.NewState()
	})

	It("should have a handler for every mnemonic", func() {
		for _, e := range insts.Entries() {
			_, ok := handlers.Lookup(e.Op)
			Expect(ok).To(BeTrue(), "no handler for %s", e.Op)
		}

		_, ok := handlers.Lookup(insts.OpUnknown)
		Expect(ok).To(BeFalse())
	})

	Describe("conditional moves", func() {
		const (
			dstValue = uint64(0x1111111111111111)
			srcValue = uint64(0x2222222222222222)
		)

		BeforeEach(func() {
			state.WriteRegister(insts.RAX, insts.Width64, dstValue)
			state.WriteRegister(insts.RCX, insts.Width64, srcValue)
		})

		It("should move exactly when the condition holds, for every flag state", func() {
			flagBits := []insts.Flag{
				insts.FlagCarry, insts.FlagParity, insts.FlagZero,
				insts.FlagSign, insts.FlagOverflow,
			}

			for cc := insts.ConditionCode(0); cc < 16; cc++ {
				for n := 0; n < 1<<len(flagBits); n++ {
					for i, f := range flagBits {
						state.SetFlag(f, n&(1<<i) != 0)
					}
					state.WriteRegister(insts.RAX, insts.Width64, dstValue)
					before := state.Regs.RFLAGS

					handlers.CMov(cc)(state, regReg(insts.Width64, insts.RAX, insts.RCX))

					expected := dstValue
					if cc.Holds(state) {
						expected = srcValue
					}
					Expect(state.ReadRegister(insts.RAX, insts.Width64)).To(Equal(expected),
						"cmov%s with flags %s", cc, insts.Flag(before))
					Expect(state.Regs.RFLAGS).To(Equal(before))
				}
			}
		})

		It("should move with cmove when ZF is set and not with cmovne", func() {
			state.SetFlag(insts.FlagZero, true)

			handlers.CMov(insts.CondNE)(state, regReg(insts.Width64, insts.RAX, insts.RCX))
			Expect(state.ReadRegister(insts.RAX, insts.Width64)).To(Equal(dstValue))

			handlers.CMov(insts.CondE)(state, regReg(insts.Width64, insts.RAX, insts.RCX))
			Expect(state.ReadRegister(insts.RAX, insts.Width64)).To(Equal(srcValue))
		})

		It("should trace even when the move is not taken", func() {
			state.SetFlag(insts.FlagSign, false)
			op := regReg(insts.Width64, insts.RAX, insts.RCX)

			handlers.CMov(insts.CondS)(state, op)

			Expect(state.ReadRegister(insts.RAX, insts.Width64)).To(Equal(dstValue))
			Expect(rec.mnemonics).To(Equal([]string{"cmovs"}))
			Expect(rec.operands).To(Equal([]insts.Operand{op}))
		})

		It("should zero-extend a taken 32-bit move", func() {
			state.SetFlag(insts.FlagCarry, true)

			handlers.CMov(insts.CondB)(state, regReg(insts.Width32, insts.RAX, insts.RCX))

			Expect(state.ReadRegister(insts.RAX, insts.Width64)).To(Equal(uint64(0x22222222)))
		})
	})

	Describe("arithmetic", func() {
		run := func(op insts.Op, operand insts.Operand) {
			h, ok := handlers.Lookup(op)
			Expect(ok).To(BeTrue())
			h(state, operand)
		}

		It("should write the result and flags", func() {
			state.WriteRegister(insts.RAX, insts.Width32, 7)
			state.WriteRegister(insts.RBX, insts.Width32, 7)

			run(insts.OpSUB, regReg(insts.Width32, insts.RAX, insts.RBX))

			Expect(state.ReadRegister(insts.RAX, insts.Width64)).To(BeZero())
			Expect(state.Flag(insts.FlagZero)).To(BeTrue())
			Expect(rec.mnemonics).To(Equal([]string{"sub"}))
		})

		It("should leave the destination alone for cmp", func() {
			state.WriteRegister(insts.RAX, insts.Width64, 1)
			state.WriteRegister(insts.RBX, insts.Width64, 2)

			run(insts.OpCMP, regReg(insts.Width64, insts.RAX, insts.RBX))

			Expect(state.ReadRegister(insts.RAX, insts.Width64)).To(Equal(uint64(1)))
			Expect(state.Flag(insts.FlagCarry)).To(BeTrue())
			Expect(state.Flag(insts.FlagSign)).To(BeTrue())
		})

		It("should consume the carry in adc and sbb", func() {
			state.WriteRegister(insts.RAX, insts.Width64, 10)
			state.WriteRegister(insts.RBX, insts.Width64, 1)
			state.SetFlag(insts.FlagCarry, true)

			run(insts.OpADC, regReg(insts.Width64, insts.RAX, insts.RBX))
			Expect(state.ReadRegister(insts.RAX, insts.Width64)).To(Equal(uint64(12)))

			state.SetFlag(insts.FlagCarry, true)
			run(insts.OpSBB, regReg(insts.Width64, insts.RAX, insts.RBX))
			Expect(state.ReadRegister(insts.RAX, insts.Width64)).To(Equal(uint64(10)))
		})

		It("should merge byte results into the full register", func() {
			state.WriteRegister(insts.RAX, insts.Width64, 0x1234)

			run(insts.OpXOR, insts.Operand{
				Form:  insts.FormAccumulatorImmediate8,
				Width: insts.Width8,
				Dst:   insts.RegisterLocation(insts.RAX, insts.Width8),
				Src:   insts.ImmediateLocation(0x34, insts.Width8),
			})

			Expect(state.ReadRegister(insts.RAX, insts.Width64)).To(Equal(uint64(0x1200)))
		})

		It("should only update flags when the destination is an immediate", func() {
			state.WriteRegister(insts.RAX, insts.Width8, 0x05)

			run(insts.OpCMP, insts.Operand{
				Form:     insts.FormRegImmediate8,
				Width:    insts.Width8,
				Dst:      insts.ImmediateLocation(0x05, insts.Width8),
				Src:      insts.RegisterLocation(insts.RAX, insts.Width8),
				Reversed: true,
			})
			Expect(state.Flag(insts.FlagZero)).To(BeTrue())

			run(insts.OpADD, insts.Operand{
				Form:     insts.FormRegImmediate8,
				Width:    insts.Width8,
				Dst:      insts.ImmediateLocation(0x01, insts.Width8),
				Src:      insts.RegisterLocation(insts.RAX, insts.Width8),
				Reversed: true,
			})
			Expect(state.ReadRegister(insts.RAX, insts.Width64)).To(Equal(uint64(0x05)))
			Expect(state.Flag(insts.FlagZero)).To(BeFalse())
		})

		It("should read and write memory operands", func() {
			state.WriteRegister(insts.RBP, insts.Width64, 0x8000)
			state.WriteRegister(insts.RAX, insts.Width32, 3)
			state.Mem.Write32(0x7FF8, 40)

			run(insts.OpADD, insts.Operand{
				Form:  insts.FormRegReg,
				Width: insts.Width32,
				Dst: insts.MemoryLocation(insts.MemoryRef{
					Base: insts.RBP, Index: insts.RegNone, Scale: 1, Disp: -8,
				}, insts.Width32),
				Src: insts.RegisterLocation(insts.RAX, insts.Width32),
			})

			Expect(state.Mem.Read32(0x7FF8)).To(Equal(uint32(43)))
		})
	})
})
