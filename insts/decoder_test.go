package insts_test

import (
	"bytes"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/x86emu/insts"
)

func decode(d *insts.Decoder, code ...byte) (*insts.Instruction, error) {
	return d.Decode(insts.Bytes{Base: 0x1000, Data: code}, 0x1000)
}

func cursor(code ...byte) *insts.Cursor {
	return insts.NewCursor(insts.Bytes{Data: code}, 0)
}

var _ = Describe("Decoder", func() {
	var decoder *insts.Decoder

	BeforeEach(func() {
		decoder = insts.NewDecoder()
	})

	DescribeTable("instruction text",
		func(text string, length int, code ...byte) {
			inst, err := decode(decoder, code...)
			Expect(err).NotTo(HaveOccurred())
			Expect(inst.String()).To(Equal(text))
			Expect(inst.Length).To(Equal(length))
			Expect(inst.Bytes).To(Equal(code))
		},
		Entry("rm8, imm8", "add    $0x5,%al", 3, byte(0x00), byte(0xC0), byte(0x05)),
		Entry("AL, imm8", "add    $0xff,%al", 2, byte(0x04), byte(0xFF)),
		Entry("reg, reg", "add    %ebx,%eax", 2, byte(0x01), byte(0xD8)),
		Entry("reg, reg reversed", "add    %eax,%ebx", 2, byte(0x03), byte(0xD8)),
		Entry("REX.W", "sub    %rbx,%rax", 3, byte(0x48), byte(0x29), byte(0xD8)),
		Entry("operand-size override", "xor    %bx,%ax", 3, byte(0x66), byte(0x31), byte(0xD8)),
		Entry("REX.R", "or     %r8,%rax", 3, byte(0x4C), byte(0x09), byte(0xC0)),
		Entry("REX.B byte register", "cmp    $0x1,%r8b", 4, byte(0x41), byte(0x38), byte(0xC0), byte(0x01)),
		Entry("high byte register", "and    $0x1,%ah", 3, byte(0x20), byte(0xC4), byte(0x01)),
		Entry("REX selects spl", "and    $0x1,%spl", 4, byte(0x40), byte(0x20), byte(0xC4), byte(0x01)),
		Entry("eAX, imm32", "add    $0x12345678,%eax", 5,
			byte(0x05), byte(0x78), byte(0x56), byte(0x34), byte(0x12)),
		Entry("rAX, sign-extended imm32", "adc    $0xffffffffffffffff,%rax", 6,
			byte(0x48), byte(0x15), byte(0xFF), byte(0xFF), byte(0xFF), byte(0xFF)),
		Entry("AX, imm16", "sbb    $0x1234,%ax", 4, byte(0x66), byte(0x1D), byte(0x34), byte(0x12)),
		Entry("disp8 memory", "add    %eax,-0x8(%rbp)", 3, byte(0x01), byte(0x45), byte(0xF8)),
		Entry("RIP-relative", "add    %eax,0x10(%rip)", 6,
			byte(0x01), byte(0x05), byte(0x10), byte(0x00), byte(0x00), byte(0x00)),
		Entry("SIB", "add    %eax,(%rax,%rbx,4)", 3, byte(0x01), byte(0x04), byte(0x98)),
		Entry("SIB without base", "add    %eax,0x20(,%rcx,8)", 7,
			byte(0x01), byte(0x04), byte(0xCD), byte(0x20), byte(0x00), byte(0x00), byte(0x00)),
		Entry("cmove", "cmove  %ecx,%eax", 3, byte(0x0F), byte(0x44), byte(0xC1)),
		Entry("cmovg REX.W", "cmovg  %rcx,%rax", 4, byte(0x48), byte(0x0F), byte(0x4F), byte(0xC1)),
	)

	It("should decode the 0x00 form with a ModRM byte and an immediate", func() {
		inst, err := decode(decoder, 0x00, 0xC0, 0x05)
		Expect(err).NotTo(HaveOccurred())

		Expect(inst.Op()).To(Equal(insts.OpADD))
		Expect(inst.Entry.Form).To(Equal(insts.FormRegImmediate8))
		Expect(inst.Operand.Dst).To(Equal(insts.RegisterLocation(insts.RAX, insts.Width8)))
		Expect(inst.Operand.Src.Kind).To(Equal(insts.LocImmediate))
		Expect(inst.Operand.Src.Imm).To(Equal(uint64(5)))
		Expect(inst.Addr).To(Equal(uint64(0x1000)))
	})

	It("should only honour a REX prefix right before the opcode", func() {
		inst, err := decode(decoder, 0x48, 0x66, 0x01, 0xD8)
		Expect(err).NotTo(HaveOccurred())
		Expect(inst.Operand.Width).To(Equal(insts.Width16))
		Expect(inst.Flags & insts.RexPresent).To(BeZero())
		Expect(inst.Length).To(Equal(4))
	})

	It("should set the reversed direction flag from the opcode entry", func() {
		inst, err := decode(decoder, 0x0F, 0x45, 0xC1)
		Expect(err).NotTo(HaveOccurred())
		Expect(inst.Flags & insts.ReversedRegisterDirection).NotTo(BeZero())
		Expect(inst.Operand.Reversed).To(BeTrue())
	})

	Context("in 32-bit mode", func() {
		BeforeEach(func() {
			decoder = insts.NewDecoderWithMode(insts.Mode32)
		})

		It("should treat mod=00 rm=101 as an absolute address", func() {
			inst, err := decode(decoder, 0x01, 0x05, 0x10, 0x00, 0x00, 0x00)
			Expect(err).NotTo(HaveOccurred())
			Expect(inst.Operand.Dst.Mem.RIPRelative).To(BeFalse())
			Expect(inst.String()).To(Equal("add    %eax,0x10"))
		})

		It("should name 32-bit address registers", func() {
			inst, err := decode(decoder, 0x01, 0x43, 0xF0)
			Expect(err).NotTo(HaveOccurred())
			Expect(inst.String()).To(Equal("add    %eax,-0x10(%ebx)"))

			inst, err = decode(decoder, 0x01, 0x04, 0x98)
			Expect(err).NotTo(HaveOccurred())
			Expect(inst.String()).To(Equal("add    %eax,(%eax,%ebx,4)"))
		})

		It("should wrap effective addresses to 32 bits", func() {
			inst, err := decode(decoder, 0x01, 0x43, 0xF0)
			Expect(err).NotTo(HaveOccurred())

			regs := func(insts.Register) uint64 { return 8 }
			Expect(inst.Operand.Dst.Mem.EffectiveAddress(regs, 0)).To(Equal(uint64(0xFFFFFFF8)))
		})

		It("should not recognise REX prefixes", func() {
			_, err := decode(decoder, 0x48, 0x01, 0xD8)
			Expect(errors.Is(err, insts.ErrUnknownOpcode)).To(BeTrue())
		})
	})

	It("should compute 64-bit effective addresses without wrapping", func() {
		inst, err := decode(decoder, 0x01, 0x43, 0xF0)
		Expect(err).NotTo(HaveOccurred())
		Expect(inst.String()).To(Equal("add    %eax,-0x10(%rbx)"))

		regs := func(insts.Register) uint64 { return 8 }
		Expect(inst.Operand.Dst.Mem.EffectiveAddress(regs, 0)).To(Equal(uint64(0xFFFFFFFFFFFFFFF8)))
	})

	It("should stop within a memory window", func() {
		mem := insts.Bytes{Base: 0x1000, Data: []byte{0x04, 0x01, 0x00, 0x00}}
		src := insts.Window{Src: mem, Base: 0x1000, Size: 2}

		inst, err := decoder.Decode(src, 0x1000)
		Expect(err).NotTo(HaveOccurred())
		Expect(inst.Length).To(Equal(2))

		_, err = decoder.Decode(src, 0x1002)
		Expect(insts.IsEndOfStream(err)).To(BeTrue())
	})

	Describe("instruction length limit", func() {
		It("should accept exactly fifteen bytes", func() {
			code := append(bytes.Repeat([]byte{0x66}, 13), 0x01, 0xD8)
			inst, err := decode(decoder, code...)
			Expect(err).NotTo(HaveOccurred())
			Expect(inst.Length).To(Equal(insts.MaxInstructionLength))
		})

		It("should fault past fifteen bytes", func() {
			code := append(bytes.Repeat([]byte{0x66}, 20), 0x01, 0xD8)
			_, err := decode(decoder, code...)
			Expect(errors.Is(err, insts.ErrInstructionTooLong)).To(BeTrue())
			Expect(insts.IsEndOfStream(err)).To(BeFalse())

			var f *insts.Fault
			Expect(errors.As(err, &f)).To(BeTrue())
			Expect(f.Bytes).To(HaveLen(insts.MaxInstructionLength))
		})
	})

	Describe("faults", func() {
		DescribeTable("unknown opcodes",
			func(code ...byte) {
				inst, err := decode(decoder, code...)
				Expect(inst).To(BeNil())
				Expect(errors.Is(err, insts.ErrUnknownOpcode)).To(BeTrue())

				var f *insts.Fault
				Expect(errors.As(err, &f)).To(BeTrue())
				Expect(f.Addr).To(Equal(uint64(0x1000)))
			},
			Entry("offset 6 of the add block", byte(0x06)),
			Entry("offset 6 of the cmp block", byte(0x3E)),
			Entry("offset 7 of the cmp block", byte(0x3F)),
			Entry("past the group", byte(0x90)),
			Entry("unmapped escape", byte(0x0F), byte(0x05)),
			Entry("lock prefix", byte(0xF0), byte(0x01), byte(0xD8)),
		)

		DescribeTable("truncated streams",
			func(consumed int, code ...byte) {
				_, err := decode(decoder, code...)
				Expect(errors.Is(err, insts.ErrTruncatedStream)).To(BeTrue())

				var f *insts.Fault
				Expect(errors.As(err, &f)).To(BeTrue())
				Expect(f.Bytes).To(HaveLen(consumed))
			},
			Entry("empty stream", 0),
			Entry("missing ModRM", 1, byte(0x01)),
			Entry("missing immediate", 2, byte(0x00), byte(0xC0)),
			Entry("short imm32", 3, byte(0x05), byte(0x01), byte(0x02)),
			Entry("missing displacement", 2, byte(0x01), byte(0x45)),
			Entry("missing SIB", 2, byte(0x01), byte(0x04)),
			Entry("prefix only", 1, byte(0x66)),
			Entry("escape only", 1, byte(0x0F)),
		)
	})
})

var _ = Describe("Decoder routines", func() {
	DescribeTable("should count the same bytes for both register directions",
		func(size insts.Width) {
			for _, modrm := range []byte{0xD8, 0x45, 0x04, 0x05, 0x84} {
				code := []byte{modrm, 0x11, 0x22, 0x33, 0x44, 0x55}

				fwd, n1, err := insts.DecodeRegReg(cursor(code...), size, 0)
				Expect(err).NotTo(HaveOccurred())
				rev, n2, err := insts.DecodeRegReg(cursor(code...), size,
					insts.ReversedRegisterDirection)
				Expect(err).NotTo(HaveOccurred())

				Expect(n1).To(Equal(n2))
				Expect(fwd.Width).To(Equal(size))
				Expect(fwd.Dst).To(Equal(rev.Src))
				Expect(fwd.Src).To(Equal(rev.Dst))
				Expect(fwd.Dst).NotTo(Equal(fwd.Src))
			}
		},
		Entry("16-bit", insts.Width16),
		Entry("32-bit", insts.Width32),
		Entry("64-bit", insts.Width64),
	)

	DescribeTable("descriptor lengths",
		func(modrm byte, n int) {
			_, got, err := insts.DecodeRegReg(cursor(modrm, 0x24, 0, 0, 0, 0), insts.Width64, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(n))
		},
		Entry("register", byte(0xC0), 1),
		Entry("indirect", byte(0x00), 1),
		Entry("SIB", byte(0x04), 2),
		Entry("disp8", byte(0x40), 2),
		Entry("SIB disp8", byte(0x44), 3),
		Entry("disp32", byte(0x80), 5),
		Entry("RIP-relative", byte(0x05), 5),
	)

	It("should consume one byte for AL, imm8", func() {
		op, n, err := insts.DecodeALImmediate(cursor(0x7F, 0x00))
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(1))
		Expect(op.Dst).To(Equal(insts.RegisterLocation(insts.RAX, insts.Width8)))
		Expect(op.Src.Imm).To(Equal(uint64(0x7F)))
	})

	It("should consume the descriptor plus one for rm8, imm8", func() {
		_, n, err := insts.DecodeRM8Immediate8(cursor(0xC0, 0x01), 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(2))

		_, n, err = insts.DecodeRM8Immediate8(cursor(0x44, 0x24, 0x08, 0x01), 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(4))
	})

	DescribeTable("accumulator immediate sizes",
		func(size insts.Width, n int, imm uint64) {
			op, got, err := insts.DecodeAXImmediate(cursor(0xFE, 0xFF, 0xFF, 0xFF), size, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(n))
			Expect(op.Src.Imm).To(Equal(imm))
			Expect(op.Dst.Width).To(Equal(size))
		},
		Entry("16-bit", insts.Width16, 2, ^uint64(1)),
		Entry("32-bit", insts.Width32, 4, ^uint64(1)),
		Entry("64-bit", insts.Width64, 4, ^uint64(1)),
	)

	DescribeTable("invalid operand widths",
		func(decodeFn func(*insts.Cursor) error) {
			err := decodeFn(cursor(0xC0, 0, 0, 0))
			Expect(errors.Is(err, insts.ErrInvalidOperandWidth)).To(BeTrue())

			var f *insts.Fault
			Expect(errors.As(err, &f)).To(BeTrue())
			Expect(f.Width).To(Equal(insts.Width8))
		},
		Entry("reg, reg", func(c *insts.Cursor) error {
			_, _, err := insts.DecodeRegReg(c, insts.Width8, 0)
			return err
		}),
		Entry("accumulator", func(c *insts.Cursor) error {
			_, _, err := insts.DecodeAXImmediate(c, insts.Width8, 0)
			return err
		}),
	)

	It("should never read past the end of the form", func() {
		c := cursor(0xC0, 0x01, 0x99)
		_, _, err := insts.DecodeRM8Immediate8(c, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Consumed()).To(Equal(2))
		Expect(c.Addr()).To(Equal(uint64(2)))
	})
})
