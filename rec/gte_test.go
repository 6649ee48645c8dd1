package rec_test

import (
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/psxrec/asm"
	"github.com/sarchlab/psxrec/core"
	"github.com/sarchlab/psxrec/guest"
	"github.com/sarchlab/psxrec/insts"
	"github.com/sarchlab/psxrec/rec"
)

const (
	inBase  = dataBase
	outBase = dataBase + 0x100
	ptrAddr = dataBase + 0x200
)

// transferPath builds a machine that translates LWC2/SWC2 runs one way.
type transferPath struct {
	name string
	opts func() []core.Option
}

var transferPaths = []transferPath{
	{"call-out", func() []core.Option {
		return []core.Option{core.WithMemMapped(false)}
	}},
	{"simple", func() []core.Option {
		cfg := rec.DefaultConfig()
		cfg.GTEMemPipelining = false
		return []core.Option{core.WithConfig(cfg)}
	}},
	{"pipelined", func() []core.Option {
		return nil
	}},
	{"pipelined MIPS32r2", func() []core.Option {
		cfg := rec.DefaultConfig()
		cfg.HostMIPS32R2 = true
		return []core.Option{core.WithConfig(cfg)}
	}},
}

func inWord(i int) uint32 {
	return 0x12348000 + uint32(i)*0x0101
}

// storedWord is what SWC2 writes for GTE data register reg after it was
// loaded with w.
func storedWord(reg int, w uint32) uint32 {
	switch reg {
	case 1, 3, 5:
		return uint32(int32(int16(w)))
	case 7:
		return w & 0xffff
	}
	return w
}

// transferProgram loads GTE registers 0..n-1 from inBase and stores them to
// outBase through base register rs. $t1 holds dataBase and $t0 is loaded
// from memory so that its value is unknown at translation time.
func transferProgram(n int, rs uint8) []uint32 {
	words := []uint32{insts.LW(t0, t1, 0x200)}
	for i := 0; i < n; i++ {
		words = append(words, insts.LWC2(uint8(i), rs, int16(4*i)))
		if i == 0 {
			words = append(words, insts.NOP)
		}
	}
	for i := 0; i < n; i++ {
		words = append(words, insts.SWC2(uint8(i), rs, int16(0x100+4*i)))
	}
	return append(words, insts.NOP, insts.SYSCALL(0))
}

func runTransfers(opts []core.Option, n int, rs uint8) *core.Machine {
	m := newMachine(opts...)
	for i := 0; i < 8; i++ {
		m.WriteGuest32(inBase+uint32(4*i), inWord(i))
	}
	m.WriteGuest32(ptrAddr, dataBase)
	withState(m, func(s *guest.State) {
		s.GPR[t1] = dataBase
	})
	runProgram(m, transferProgram(n, rs)...)
	return m
}

func packColor(ir1, ir2, ir3 int16) uint32 {
	c := func(v int16) uint32 {
		x := int32(v) >> 7
		if x < 0 {
			x = 0
		}
		if x > 0x1f {
			x = 0x1f
		}
		return uint32(x)
	}
	return c(ir1) | c(ir2)<<5 | c(ir3)<<10
}

var _ = Describe("GTE", func() {
	Describe("LWC2/SWC2 runs", func() {
		for _, path := range transferPaths {
			for _, base := range []uint8{t0, t1} {
				for n := 1; n <= 8; n++ {
					name := fmt.Sprintf("%s, base $%d, %d transfers", path.name, base, n)

					It("should move GTE registers through memory: "+name, func() {
						m := runTransfers(path.opts(), n, base)

						s := m.State()
						for i := 0; i < n; i++ {
							Expect(s.CP2D[i]).To(Equal(inWord(i)), "CP2D[%d]", i)
							Expect(m.ReadGuest32(outBase+uint32(4*i))).
								To(Equal(storedWord(i, inWord(i))), "out[%d]", i)
						}
						Expect(m.ReadGuest32(outBase + uint32(4*n))).To(BeZero())
					})
				}
			}
		}

		It("should leave the same state on every path", func() {
			var states []*guest.State
			for _, path := range transferPaths {
				m := runTransfers(path.opts(), 6, t0)
				states = append(states, m.State())
			}
			for _, s := range states[1:] {
				Expect(s).To(Equal(states[0]))
			}
		})

		It("should translate a run as one stretch of the block", func() {
			m := runTransfers(nil, 3, t0)

			b := m.Cache().Lookup(progBase)
			Expect(b).NotTo(BeNil())
			var want []uint32
			for pc := uint32(progBase); pc < progBase+10*4; pc += 4 {
				want = append(want, pc)
			}
			Expect(b.Order).To(Equal(want))
			Expect(b.Instructions).To(Equal(10))
			Expect(b.Exits).To(ConsistOf(HaveField("Kind", rec.ExitException)))
		})

		It("should go through the memory call-outs when memory is not mapped", func() {
			m := runTransfers([]core.Option{core.WithMemMapped(false)}, 4, t0)
			Expect(m.Stats().MemReads).To(Equal(uint64(1 + 4)))
			Expect(m.Stats().MemWrites).To(Equal(uint64(4)))
		})

		Describe("mixed runs longer than the queue", func() {
			// Loads, then enough stores to wrap the queue, then special
			// registers so the kind flips on every transfer.
			mixedProgram := []uint32{
				insts.LW(t0, t1, 0x200),
				insts.NOP,
				insts.LWC2(0, t0, 0),
				insts.LWC2(1, t0, 4),
				insts.LWC2(2, t0, 8),
				insts.SWC2(0, t0, 0x100),
				insts.SWC2(1, t0, 0x104),
				insts.SWC2(2, t0, 0x108),
				insts.SWC2(0, t0, 0x10c),
				insts.SWC2(2, t0, 0x110),
				insts.LWC2(28, t0, 12),
				insts.NOP,
				insts.SWC2(9, t0, 0x114),
				insts.SWC2(29, t0, 0x118),
				insts.LWC2(30, t0, 16),
				insts.SWC2(31, t0, 0x11c),
				insts.NOP,
				insts.SYSCALL(0),
			}

			runMixed := func(opts []core.Option) *core.Machine {
				m := newMachine(opts...)
				for i := 0; i < 8; i++ {
					m.WriteGuest32(inBase+uint32(4*i), inWord(i))
				}
				m.WriteGuest32(ptrAddr, dataBase)
				withState(m, func(s *guest.State) {
					s.GPR[t1] = dataBase
				})
				runProgram(m, mixedProgram...)
				return m
			}

			outWords := func(m *core.Machine) []uint32 {
				words := make([]uint32, 8)
				for i := range words {
					words[i] = m.ReadGuest32(outBase + uint32(4*i))
				}
				return words
			}

			for _, path := range transferPaths {
				It("should store the expected words: "+path.name, func() {
					m := runMixed(path.opts())

					Expect(outWords(m)).To(Equal([]uint32{
						inWord(0),
						storedWord(1, inWord(1)),
						inWord(2),
						inWord(0),
						inWord(2),
						0x180, // IR1 from IRGB 0x8303
						0x303, // ORGB repacks IR1-IR3
						3,     // LZCR of 0x12348404
					}))
				})
			}

			It("should leave the same state on every path", func() {
				reference := runMixed(transferPaths[0].opts())
				for _, path := range transferPaths[1:] {
					m := runMixed(path.opts())
					Expect(m.State()).To(Equal(reference.State()), path.name)
					Expect(outWords(m)).To(Equal(outWords(reference)), path.name)
				}
			})
		})

		It("should read the old GTE value when a store follows a load", func() {
			m := newMachine()
			m.WriteGuest32(inBase, 0xcafe0001)
			withState(m, func(s *guest.State) {
				s.GPR[t1] = dataBase
				s.CP2D[0] = 0x11112222
			})
			runProgram(m,
				insts.SWC2(0, t1, 0x100),
				insts.LWC2(0, t1, 0),
				insts.SWC2(0, t1, 0x104),
				insts.SYSCALL(0),
			)

			Expect(m.ReadGuest32(outBase)).To(Equal(uint32(0x11112222)))
			Expect(m.ReadGuest32(outBase + 4)).To(Equal(uint32(0xcafe0001)))
		})
	})

	Describe("MFC2 color packing", func() {
		for _, r2 := range []bool{false, true} {
			DescribeTable(fmt.Sprintf("IRGB and ORGB reads, MIPS32r2 %v", r2),
				func(ir1, ir2, ir3 int16) {
					cfg := rec.DefaultConfig()
					cfg.HostMIPS32R2 = r2
					m := newMachine(core.WithConfig(cfg))
					withState(m, func(s *guest.State) {
						s.CP2D[9] = uint32(int32(ir1))
						s.CP2D[10] = uint32(int32(ir2))
						s.CP2D[11] = uint32(int32(ir3))
					})

					runProgram(m,
						insts.MFC2(t0, 29),
						insts.MFC2(t1, 28),
						insts.NOP,
						insts.SYSCALL(0),
					)

					want := packColor(ir1, ir2, ir3)
					Expect(m.State().GPR[t0]).To(Equal(want))
					Expect(m.State().GPR[t1]).To(Equal(want))
				},
				Entry("all zero", int16(0), int16(0), int16(0)),
				Entry("in range", int16(0x0f80), int16(0x0080), int16(0)),
				Entry("clamped both ways", int16(-5), int16(0x7fff), int16(0x1000)),
				Entry("mid values", int16(0x0400), int16(0x0800), int16(0x0c00)),
				Entry("negative", int16(-0x8000), int16(-1), int16(0x0fff)),
			)
		}

		It("should read SXYP as SXY2", func() {
			m := newMachine()
			withState(m, func(s *guest.State) {
				s.CP2D[14] = 0x00200010
				s.CP2D[15] = 0xdeadbeef
			})
			runProgram(m, insts.MFC2(t0, 15), insts.NOP, insts.SYSCALL(0))
			Expect(m.State().GPR[t0]).To(Equal(uint32(0x00200010)))
		})
	})

	Describe("MTC2", func() {
		var m *core.Machine

		BeforeEach(func() {
			m = newMachine()
		})

		mtc2 := func(reg uint8, value uint32) *guest.State {
			withState(m, func(s *guest.State) {
				s.GPR[t0] = value
			})
			runProgram(m, insts.MTC2(t0, reg), insts.SYSCALL(0))
			return m.State()
		}

		It("should expand IRGB into IR1-IR3", func() {
			s := mtc2(28, 0x7fff)
			Expect(s.CP2D[28]).To(Equal(uint32(0x7fff)))
			Expect(s.CP2D[9]).To(Equal(uint32(0xf80)))
			Expect(s.CP2D[10]).To(Equal(uint32(0xf80)))
			Expect(s.CP2D[11]).To(Equal(uint32(0xf80)))

			s = mtc2(28, 1|2<<5|3<<10)
			Expect(s.CP2D[9]).To(Equal(uint32(1 << 7)))
			Expect(s.CP2D[10]).To(Equal(uint32(2 << 7)))
			Expect(s.CP2D[11]).To(Equal(uint32(3 << 7)))
		})

		DescribeTable("LZCS leading sign bit count",
			func(value, count uint32) {
				s := mtc2(30, value)
				Expect(s.CP2D[30]).To(Equal(value))
				Expect(s.CP2D[31]).To(Equal(count))
			},
			Entry("zero", uint32(0), uint32(32)),
			Entry("minus one", uint32(0xffffffff), uint32(32)),
			Entry("positive", uint32(0x00ffffff), uint32(8)),
			Entry("negative", uint32(0xfff00000), uint32(12)),
			Entry("one", uint32(1), uint32(31)),
		)

		It("should ignore writes to LZCR", func() {
			withState(m, func(s *guest.State) {
				s.CP2D[31] = 5
			})
			s := mtc2(31, 0x1234)
			Expect(s.CP2D[31]).To(Equal(uint32(5)))
		})

		It("should push SXYP onto the screen XY FIFO", func() {
			withState(m, func(s *guest.State) {
				s.CP2D[12] = 1
				s.CP2D[13] = 2
				s.CP2D[14] = 3
			})
			s := mtc2(15, 4)
			Expect(s.CP2D[12:16]).To(Equal([]uint32{2, 3, 4, 4}))
		})

		It("should store other registers unchanged", func() {
			s := mtc2(7, 0xabcd1234)
			Expect(s.CP2D[7]).To(Equal(uint32(0xabcd1234)))
		})
	})

	Describe("CTC2 and CFC2", func() {
		var m *core.Machine

		BeforeEach(func() {
			m = newMachine()
		})

		ctc2 := func(reg uint8, value uint32) *guest.State {
			withState(m, func(s *guest.State) {
				s.GPR[t0] = value
			})
			runProgram(m, insts.CTC2(t0, reg), insts.CFC2(t1, reg), insts.SYSCALL(0))
			return m.State()
		}

		DescribeTable("sign-extended control registers",
			func(reg uint8) {
				s := ctc2(reg, 0x00018000)
				Expect(s.CP2C[reg]).To(Equal(uint32(0xffff8000)))
				Expect(s.GPR[t1]).To(Equal(uint32(0xffff8000)))
			},
			Entry("R33", uint8(4)),
			Entry("L33", uint8(12)),
			Entry("LB3", uint8(20)),
			Entry("H", uint8(26)),
			Entry("DQA", uint8(27)),
			Entry("ZSF3", uint8(29)),
			Entry("ZSF4", uint8(30)),
		)

		It("should store other control registers unchanged", func() {
			s := ctc2(5, 0x00018000)
			Expect(s.CP2C[5]).To(Equal(uint32(0x00018000)))
			Expect(s.GPR[t1]).To(Equal(uint32(0x00018000)))
		})

		DescribeTable("FLAG",
			func(value, want uint32) {
				s := ctc2(31, value)
				Expect(s.CP2C[31]).To(Equal(want))
			},
			Entry("low bits are hardwired to zero", uint32(0x00001fff), uint32(0x00001000)),
			Entry("an error bit sets bit 31", uint32(0x00002000), uint32(0x80002000)),
			Entry("a non-error bit leaves bit 31 clear", uint32(0x00080000), uint32(0x00080000)),
			Entry("bit 31 is not writable", uint32(0x80000000), uint32(0)),
			Entry("all bits", uint32(0xffffffff), uint32(0xfffff000)),
		)
	})

	Describe("commands", func() {
		var (
			cfg   *rec.Config
			ext   rec.Externals
			arena *asm.Arena
		)

		BeforeEach(func() {
			cfg = rec.DefaultConfig()
			ext = testExternals(rec.StaticHost(0x100, true))
			arena = asm.NewArena(core.CodeBase, 0x1000)
		})

		translate := func(word uint32) *rec.Block {
			p := newProgram(progBase, word, insts.J(0x80030000), insts.NOP)
			tr, err := rec.NewTranslator(cfg, ext, p, arena)
			Expect(err).NotTo(HaveOccurred())
			b, err := tr.Translate(progBase)
			Expect(err).NotTo(HaveOccurred())
			return b
		}

		// call returns the word index of the JAL to addr.
		call := func(b *rec.Block, addr uint32) int {
			for i := 0; i < b.Code.Len(); i++ {
				if asm.Decode(b.Code.Word(i)).Op == asm.OpJAL && jumpTarget(b.Code, i) == addr {
					return i
				}
			}
			Fail(fmt.Sprintf("no call to 0x%08x", addr))
			return -1
		}

		It("should pass the argument of a one-argument command in the delay slot", func() {
			word := insts.COP2(insts.GTESQR, 1<<9)
			b := translate(word)

			i := call(b, core.GTEAddr(insts.GTESQR))
			li := asm.Decode(b.Code.Word(i + 1))
			Expect(li.Op).To(Equal(asm.OpORI))
			Expect(li.Rt).To(Equal(asm.A0))
			Expect(li.Rs).To(Equal(asm.Zero))
			Expect(li.Imm).To(Equal(insts.GTEArgument(word)))
		})

		It("should fill the delay slot with a NOP for commands without arguments", func() {
			b := translate(insts.COP2(insts.GTERTPS, 0))

			i := call(b, core.GTEAddr(insts.GTERTPS))
			Expect(b.Code.Word(i + 1)).To(BeZero())
		})

		It("should fall back to the interpreter without a handler", func() {
			ext.GTE[insts.GTENCLIP] = 0
			b := translate(insts.COP2(insts.GTENCLIP, 0))

			Expect(callsTo(b.Code, core.InterpreterAddr)).To(Equal(1))
		})

		It("should fall back to the interpreter for unknown commands", func() {
			b := translate(insts.COP2(insts.GTEOp(0x00), 0))
			Expect(callsTo(b.Code, core.InterpreterAddr)).To(Equal(1))
		})
	})
})
