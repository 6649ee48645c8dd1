package guest_test

import (
	"encoding/binary"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/psxrec/guest"
)

var _ = Describe("State", func() {
	var s *guest.State

	BeforeEach(func() {
		s = &guest.State{}
	})

	Describe("register 0", func() {
		It("should ignore writes", func() {
			s.WriteReg(0, 0xdeadbeef)
			Expect(s.ReadReg(0)).To(BeZero())
			Expect(s.GPR[0]).To(BeZero())
		})

		It("should read back other registers", func() {
			for r := uint8(1); r < 32; r++ {
				s.WriteReg(r, uint32(r)*0x01010101)
			}
			for r := uint8(1); r < 32; r++ {
				Expect(s.ReadReg(r)).To(Equal(uint32(r) * 0x01010101))
			}
		})

		It("should expose LO and HI after the general registers", func() {
			s.WriteReg(guest.RegHI, 7)
			Expect(s.GPR[33]).To(Equal(uint32(7)))
		})
	})

	Describe("layout", func() {
		It("should place the register files back to back", func() {
			Expect(guest.OffGPR(1)).To(Equal(int16(4)))
			Expect(guest.OffCP0(0)).To(Equal(int16(136)))
			Expect(guest.OffCP2D(0)).To(Equal(int16(264)))
			Expect(guest.OffCP2C(0)).To(Equal(int16(392)))
			Expect(guest.OffPC).To(Equal(520))
			Expect(guest.Size).To(Equal(536))
		})

		It("should encode fields at their offsets", func() {
			s.GPR[5] = 0x11223344
			s.CP2D[14] = 0x00050006
			s.CP2C[31] = 0x80000000
			s.PC = 0xbfc00000
			buf := s.Encode()

			Expect(buf).To(HaveLen(guest.Size))
			Expect(binary.LittleEndian.Uint32(buf[guest.OffGPR(5):])).To(Equal(uint32(0x11223344)))
			Expect(binary.LittleEndian.Uint32(buf[guest.OffCP2D(14):])).To(Equal(uint32(0x00050006)))
			Expect(binary.LittleEndian.Uint32(buf[guest.OffCP2C(31):])).To(Equal(uint32(0x80000000)))
			Expect(binary.LittleEndian.Uint32(buf[guest.OffPC:])).To(Equal(uint32(0xbfc00000)))
		})

		It("should decode what it encodes", func() {
			s.GPR[31] = 0x80010000
			s.CP0[12] = 0x10000000
			s.Cycle = 99
			var out guest.State
			Expect(out.Decode(s.Encode())).To(Succeed())
			Expect(out).To(Equal(*s))
		})

		It("should force register 0 to zero on decode", func() {
			buf := make([]byte, guest.Size)
			binary.LittleEndian.PutUint32(buf, 0xffffffff)
			Expect(s.Decode(buf)).To(Succeed())
			Expect(s.GPR[0]).To(BeZero())
		})

		It("should reject a short record", func() {
			Expect(s.Decode(make([]byte, 8))).To(MatchError(ContainSubstring("too short")))
		})
	})
})
