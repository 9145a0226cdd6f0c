package insts_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/x86emu/insts"
)

var _ = Describe("Walk", func() {
	var decoder *insts.Decoder

	BeforeEach(func() {
		decoder = insts.NewDecoder()
	})

	It("should visit each instruction until the stream ends", func() {
		src := insts.Bytes{Base: 0x10, Data: []byte{0x04, 0x01, 0x48, 0x31, 0xC0, 0x0F, 0x4C, 0xC1}}

		var lines []string
		var addrs []uint64
		err := decoder.Walk(src, 0x10, func(inst *insts.Instruction) error {
			lines = append(lines, inst.String())
			addrs = append(addrs, inst.Addr)
			return nil
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(lines).To(Equal([]string{
			"add    $0x1,%al",
			"xor    %rax,%rax",
			"cmovl  %ecx,%eax",
		}))
		Expect(addrs).To(Equal([]uint64{0x10, 0x12, 0x15}))
	})

	It("should return a fault in the middle of the stream", func() {
		src := insts.Bytes{Data: []byte{0x04, 0x01, 0x07}}

		count := 0
		err := decoder.Walk(src, 0, func(*insts.Instruction) error {
			count++
			return nil
		})

		Expect(count).To(Equal(1))
		Expect(errors.Is(err, insts.ErrUnknownOpcode)).To(BeTrue())
	})

	It("should return a truncated trailing instruction as a fault", func() {
		src := insts.Bytes{Data: []byte{0x04, 0x01, 0x05, 0x01}}

		err := decoder.Walk(src, 0, func(*insts.Instruction) error { return nil })

		Expect(errors.Is(err, insts.ErrTruncatedStream)).To(BeTrue())
	})

	It("should stop on a callback error", func() {
		stop := errors.New("stop")
		src := insts.Bytes{Data: []byte{0x04, 0x01, 0x04, 0x02}}

		err := decoder.Walk(src, 0, func(*insts.Instruction) error { return stop })

		Expect(err).To(MatchError(stop))
	})
})
