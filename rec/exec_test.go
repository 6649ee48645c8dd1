package rec_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/psxrec/core"
	"github.com/sarchlab/psxrec/guest"
	"github.com/sarchlab/psxrec/insts"
	"github.com/sarchlab/psxrec/rec"
)

func newMachine(opts ...core.Option) *core.Machine {
	m, err := core.NewMachine(opts...)
	Expect(err).NotTo(HaveOccurred())
	return m
}

// runProgram loads words at progBase and runs them until the guest raises
// an exception.
func runProgram(m *core.Machine, words ...uint32) core.RunResult {
	m.LoadGuestWords(progBase, words)
	res, err := m.Run(progBase, 10000)
	Expect(err).NotTo(HaveOccurred())
	Expect(res.Reason).To(Equal(core.StopException))
	return res
}

func withState(m *core.Machine, fn func(s *guest.State)) {
	s := m.State()
	fn(s)
	m.SetState(s)
}

var _ = Describe("Translated code", func() {
	var m *core.Machine

	BeforeEach(func() {
		m = newMachine()
	})

	DescribeTable("constant loads",
		func(value uint32) {
			runProgram(m,
				insts.LUI(t0, uint16(value>>16)),
				insts.ORI(t0, t0, uint16(value)),
				insts.ADDU(t1, t0, zero),
				insts.SYSCALL(0),
			)
			Expect(m.State().GPR[t0]).To(Equal(value))
			Expect(m.State().GPR[t1]).To(Equal(value))
		},
		Entry("zero", uint32(0)),
		Entry("largest positive immediate", uint32(0x7fff)),
		Entry("smallest negative immediate bit pattern", uint32(0x8000)),
		Entry("full low half", uint32(0xffff)),
		Entry("upper half only", uint32(0x10000)),
		Entry("small negative", uint32(0xffff8000)),
		Entry("minus one", uint32(0xffffffff)),
		Entry("LUI pattern", uint32(0x12340000)),
		Entry("kseg0 address", uint32(0x80010004)),
	)

	It("should preserve every guest register across spills", func() {
		withState(m, func(s *guest.State) {
			for r := 1; r < 32; r++ {
				s.GPR[r] = uint32(r) * 0x01010101
			}
			s.GPR[guest.RegLO] = 0x1111
			s.GPR[guest.RegHI] = 0x2222
		})

		var words []uint32
		for r := uint8(1); r < 32; r++ {
			words = append(words, insts.ADDIU(r, r, 1))
		}
		for r := uint8(1); r < 31; r++ {
			words = append(words, insts.ADDU(r, r, r+1))
		}
		words = append(words, insts.SYSCALL(0))
		runProgram(m, words...)

		s := m.State()
		for r := 1; r < 31; r++ {
			want := (uint32(r)*0x01010101 + 1) + (uint32(r+1)*0x01010101 + 1)
			Expect(s.GPR[r]).To(Equal(want), "register %d", r)
		}
		Expect(s.GPR[31]).To(Equal(uint32(31)*0x01010101 + 1))
		Expect(s.GPR[guest.RegLO]).To(Equal(uint32(0x1111)))
		Expect(s.GPR[guest.RegHI]).To(Equal(uint32(0x2222)))
	})

	It("should never write guest register zero", func() {
		m.WriteGuest32(dataBase, 0xdeadbeef)
		withState(m, func(s *guest.State) {
			s.GPR[t0] = 7
			s.GPR[t1] = dataBase
		})

		runProgram(m,
			insts.ADDIU(zero, zero, 5),
			insts.LUI(zero, 1),
			insts.ADDU(zero, t0, t0),
			insts.SLL(zero, t0, 2),
			insts.LW(zero, t1, 0),
			insts.ADDU(t2, zero, zero),
			insts.SYSCALL(0),
		)

		Expect(m.State().GPR[zero]).To(BeZero())
		Expect(m.State().GPR[t2]).To(BeZero())
	})

	Describe("MFC2 load delay", func() {
		BeforeEach(func() {
			withState(m, func(s *guest.State) {
				s.GPR[t0] = 0x1111
				s.CP2D[9] = 0x00008001
			})
		})

		It("should let the next instruction read the old value", func() {
			runProgram(m,
				insts.MFC2(t0, 9),
				insts.ADDU(t1, t0, zero),
				insts.SYSCALL(0),
			)

			s := m.State()
			Expect(s.GPR[t1]).To(Equal(uint32(0x1111)))
			Expect(s.GPR[t0]).To(Equal(uint32(0xffff8001)))

			b := m.Cache().Lookup(progBase)
			Expect(b).NotTo(BeNil())
			Expect(b.Order).To(Equal([]uint32{progBase + 4, progBase, progBase + 8}))
		})

		It("should keep program order when the next instruction does not read it", func() {
			runProgram(m,
				insts.MFC2(t0, 9),
				insts.ADDU(t1, t2, zero),
				insts.SYSCALL(0),
			)

			b := m.Cache().Lookup(progBase)
			Expect(b.Order).To(Equal([]uint32{progBase, progBase + 4, progBase + 8}))
			Expect(m.State().GPR[t0]).To(Equal(uint32(0xffff8001)))
		})

		It("should not move a branch that reads it", func() {
			runProgram(m,
				insts.MFC2(t0, 9),
				insts.BEQ(t0, zero, 1),
				insts.NOP,
				insts.SYSCALL(0),
			)

			b := m.Cache().Lookup(progBase)
			Expect(b.Order).To(Equal([]uint32{progBase, progBase + 4, progBase + 8}))
		})

		It("should write the extended value back when configured to", func() {
			cfg := rec.DefaultConfig()
			cfg.SkipMFC2Writeback = false
			m = newMachine(core.WithConfig(cfg))
			withState(m, func(s *guest.State) {
				s.CP2D[9] = 0x00008001
				s.CP2D[16] = 0xffff1234
			})

			runProgram(m,
				insts.MFC2(t0, 9),
				insts.MFC2(t1, 16),
				insts.NOP,
				insts.SYSCALL(0),
			)

			s := m.State()
			Expect(s.CP2D[9]).To(Equal(uint32(0xffff8001)))
			Expect(s.CP2D[16]).To(Equal(uint32(0x1234)))
			Expect(s.GPR[t1]).To(Equal(uint32(0x1234)))
		})
	})

	Describe("branches", func() {
		// The branch at progBase jumps over the instruction at progBase+8.
		// $t2 is set by the delay slot and $t3 only on the fall-through path.
		runBranch := func(branch uint32, a, b uint32) (taken bool) {
			withState(m, func(s *guest.State) {
				s.GPR[t0] = a
				s.GPR[t1] = b
			})
			runProgram(m,
				branch,
				insts.ADDIU(t2, zero, 1),
				insts.ADDIU(t3, zero, 1),
				insts.SYSCALL(0),
			)
			s := m.State()
			Expect(s.GPR[t2]).To(Equal(uint32(1)))
			return s.GPR[t3] == 0
		}

		DescribeTable("conditions",
			func(branch uint32, a, b uint32, taken bool) {
				Expect(runBranch(branch, a, b)).To(Equal(taken))
			},
			Entry("BEQ equal", insts.BEQ(t0, t1, 2), uint32(5), uint32(5), true),
			Entry("BEQ different", insts.BEQ(t0, t1, 2), uint32(5), uint32(6), false),
			Entry("BNE equal", insts.BNE(t0, t1, 2), uint32(5), uint32(5), false),
			Entry("BNE different", insts.BNE(t0, t1, 2), uint32(5), uint32(6), true),
			Entry("BLEZ zero", insts.BLEZ(t0, 2), uint32(0), uint32(0), true),
			Entry("BLEZ negative", insts.BLEZ(t0, 2), uint32(0xffffffff), uint32(0), true),
			Entry("BLEZ positive", insts.BLEZ(t0, 2), uint32(1), uint32(0), false),
			Entry("BGTZ zero", insts.BGTZ(t0, 2), uint32(0), uint32(0), false),
			Entry("BGTZ positive", insts.BGTZ(t0, 2), uint32(1), uint32(0), true),
			Entry("BLTZ negative", insts.BLTZ(t0, 2), uint32(0x80000000), uint32(0), true),
			Entry("BLTZ zero", insts.BLTZ(t0, 2), uint32(0), uint32(0), false),
			Entry("BGEZ zero", insts.BGEZ(t0, 2), uint32(0), uint32(0), true),
			Entry("BGEZ negative", insts.BGEZ(t0, 2), uint32(0xfffffffe), uint32(0), false),
		)

		It("should link for BLTZAL and BGEZAL whether taken or not", func() {
			Expect(runBranch(insts.BGEZAL(t0, 2), 1, 0)).To(BeTrue())
			Expect(m.State().GPR[ra]).To(Equal(uint32(progBase + 8)))

			m = newMachine()
			Expect(runBranch(insts.BLTZAL(t0, 2), 1, 0)).To(BeFalse())
			Expect(m.State().GPR[ra]).To(Equal(uint32(progBase + 8)))
		})

		It("should test operands before the delay slot overwrites them", func() {
			withState(m, func(s *guest.State) {
				s.GPR[t0] = 5
				s.GPR[t1] = 5
			})
			runProgram(m,
				insts.BEQ(t0, t1, 2),
				insts.ADDIU(t0, t0, 1),
				insts.ADDIU(t3, zero, 1),
				insts.SYSCALL(0),
			)

			s := m.State()
			Expect(s.GPR[t0]).To(Equal(uint32(6)))
			Expect(s.GPR[t3]).To(BeZero())
		})

		It("should jump through a register the delay slot overwrites", func() {
			withState(m, func(s *guest.State) {
				s.GPR[t0] = progBase + 12
			})
			runProgram(m,
				insts.JALR(t1, t0),
				insts.ADDIU(t0, zero, 0),
				insts.ADDIU(t3, zero, 1),
				insts.SYSCALL(0),
			)

			s := m.State()
			Expect(s.GPR[t0]).To(BeZero())
			Expect(s.GPR[t1]).To(Equal(uint32(progBase + 8)))
			Expect(s.GPR[t3]).To(BeZero())
			Expect(s.CP0[14]).To(Equal(uint32(progBase + 12)))
		})

		It("should link JAL before its delay slot reads $ra", func() {
			m.LoadGuestWords(progBase+0x40, []uint32{insts.SYSCALL(0)})
			runProgram(m,
				insts.JAL(progBase+0x40),
				insts.ADDU(t0, ra, zero),
			)

			Expect(m.State().GPR[t0]).To(Equal(uint32(progBase + 8)))
		})
	})

	Describe("address segments", func() {
		It("should map KSEG0, KSEG1 and KUSEG onto the same memory", func() {
			withState(m, func(s *guest.State) {
				s.GPR[t0] = 0x00020000
				s.GPR[t1] = 0xa0020000
			})
			runProgram(m,
				insts.ADDIU(t2, zero, 0x77),
				insts.SW(t2, t0, 0x10),
				insts.LW(t3, t1, 0x10),
				insts.SYSCALL(0),
			)

			Expect(m.State().GPR[t3]).To(Equal(uint32(0x77)))
			Expect(m.ReadGuest32(dataBase + 0x10)).To(Equal(uint32(0x77)))
		})
	})
})
