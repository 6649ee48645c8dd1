package latency_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/psxrec/asm"
	"github.com/sarchlab/psxrec/timing/latency"
)

// inst encodes one host instruction and decodes it back.
func inst(emit func(b *asm.Buffer)) asm.Inst {
	b := asm.NewBuffer(0x08000000, 4)
	emit(b)
	return asm.Decode(b.Word(0))
}

var _ = Describe("Latency", func() {
	var (
		table *latency.Table

		addu = inst(func(b *asm.Buffer) { b.ADDU(asm.T0, asm.T1, asm.T2) })
		ori  = inst(func(b *asm.Buffer) { b.ORI(asm.T0, asm.T1, 0x12) })
		sll  = inst(func(b *asm.Buffer) { b.SLL(asm.T0, asm.T1, 3) })
		lw   = inst(func(b *asm.Buffer) { b.LW(asm.T0, asm.S8, 8) })
		lhu  = inst(func(b *asm.Buffer) { b.LHU(asm.T0, asm.S8, 2) })
		lwl  = inst(func(b *asm.Buffer) { b.LWL(asm.T0, asm.A0, 3) })
		sw   = inst(func(b *asm.Buffer) { b.SW(asm.T0, asm.S8, 8) })
		sb   = inst(func(b *asm.Buffer) { b.SB(asm.T0, asm.S8, 1) })
		j    = inst(func(b *asm.Buffer) { b.J(0x0fff0000) })
		jal  = inst(func(b *asm.Buffer) { b.JAL(0x0f000000) })
		jr   = inst(func(b *asm.Buffer) { b.JR(asm.RA) })
		beq  = inst(func(b *asm.Buffer) { b.BEQ(asm.T0, asm.T1, 8) })
		mult = inst(func(b *asm.Buffer) { b.MULT(asm.T0, asm.T1) })
		mul  = inst(func(b *asm.Buffer) { b.MUL(asm.T0, asm.T1, asm.T2) })
		div  = inst(func(b *asm.Buffer) { b.DIV(asm.T0, asm.T1) })
	)

	BeforeEach(func() {
		table = latency.NewTable()
	})

	Describe("Default Timing Values", func() {
		It("should have the single-issue pipeline defaults", func() {
			config := table.Config()
			Expect(config.ALULatency).To(Equal(uint64(1)))
			Expect(config.BranchLatency).To(Equal(uint64(1)))
			Expect(config.LoadLatency).To(Equal(uint64(2)))
			Expect(config.StoreLatency).To(Equal(uint64(1)))
			Expect(config.CallLatency).To(Equal(uint64(20)))
			Expect(config.MultiplyLatency).To(Equal(uint64(4)))
		})
	})

	DescribeTable("instruction latencies",
		func(i asm.Inst, cycles int) {
			Expect(table.GetLatency(i)).To(Equal(uint64(cycles)))
		},
		Entry("ADDU", addu, 1),
		Entry("ORI", ori, 1),
		Entry("SLL", sll, 1),
		Entry("LW", lw, 2),
		Entry("LHU", lhu, 2),
		Entry("LWL", lwl, 2),
		Entry("SW", sw, 1),
		Entry("J", j, 1),
		Entry("JR", jr, 1),
		Entry("BEQ", beq, 1),
		Entry("JAL into native code", jal, 20),
		Entry("MULT", mult, 4),
		Entry("MUL", mul, 4),
		Entry("DIV", div, 23),
	)

	Describe("Variable Latencies", func() {
		It("should report the divide latency range", func() {
			Expect(table.GetMinLatency(div)).To(Equal(uint64(12)))
			Expect(table.GetMaxLatency(div)).To(Equal(uint64(35)))
		})

		It("should report fixed latencies for everything else", func() {
			Expect(table.GetMinLatency(lw)).To(Equal(uint64(2)))
			Expect(table.GetMaxLatency(lw)).To(Equal(uint64(2)))
		})
	})

	Describe("Instruction Type Detection", func() {
		It("should detect memory operations", func() {
			Expect(table.IsMemoryOp(lw)).To(BeTrue())
			Expect(table.IsMemoryOp(sb)).To(BeTrue())
			Expect(table.IsMemoryOp(addu)).To(BeFalse())
		})

		It("should detect load operations", func() {
			Expect(table.IsLoadOp(lw)).To(BeTrue())
			Expect(table.IsLoadOp(lwl)).To(BeTrue())
			Expect(table.IsLoadOp(sw)).To(BeFalse())
		})

		It("should detect store operations", func() {
			Expect(table.IsStoreOp(sw)).To(BeTrue())
			Expect(table.IsStoreOp(lw)).To(BeFalse())
		})

		It("should detect branch operations", func() {
			Expect(table.IsBranchOp(j)).To(BeTrue())
			Expect(table.IsBranchOp(jal)).To(BeTrue())
			Expect(table.IsBranchOp(jr)).To(BeTrue())
			Expect(table.IsBranchOp(beq)).To(BeTrue())
			Expect(table.IsBranchOp(addu)).To(BeFalse())
		})

		It("should treat undecodable words as ALU operations", func() {
			unknown := asm.Decode(0xfc000000)
			Expect(unknown.Op).To(Equal(asm.OpUnknown))
			Expect(table.GetLatency(unknown)).To(Equal(uint64(1)))
			Expect(table.IsMemoryOp(unknown)).To(BeFalse())
		})
	})

	Describe("Custom Configuration", func() {
		It("should use custom config values", func() {
			config := &latency.TimingConfig{
				ALULatency:       2,
				BranchLatency:    3,
				LoadLatency:      8,
				StoreLatency:     2,
				CallLatency:      40,
				MultiplyLatency:  5,
				DivideLatencyMin: 12,
				DivideLatencyMax: 20,
			}
			customTable := latency.NewTableWithConfig(config)

			Expect(customTable.GetLatency(addu)).To(Equal(uint64(2)))
			Expect(customTable.GetLatency(lw)).To(Equal(uint64(8)))
			Expect(customTable.GetLatency(beq)).To(Equal(uint64(3)))
			Expect(customTable.GetLatency(jal)).To(Equal(uint64(40)))
			Expect(customTable.GetLatency(div)).To(Equal(uint64(16)))
		})
	})
})

var _ = Describe("TimingConfig", func() {
	Describe("Default Config", func() {
		It("should create valid default config", func() {
			config := latency.DefaultTimingConfig()
			Expect(config.Validate()).To(Succeed())
		})
	})

	Describe("Validation", func() {
		It("should reject zero ALU latency", func() {
			config := latency.DefaultTimingConfig()
			config.ALULatency = 0
			Expect(config.Validate()).To(MatchError(ContainSubstring("alu_latency")))
		})

		It("should reject zero branch latency", func() {
			config := latency.DefaultTimingConfig()
			config.BranchLatency = 0
			Expect(config.Validate()).To(HaveOccurred())
		})

		It("should reject zero load latency", func() {
			config := latency.DefaultTimingConfig()
			config.LoadLatency = 0
			Expect(config.Validate()).To(HaveOccurred())
		})

		It("should reject zero store latency", func() {
			config := latency.DefaultTimingConfig()
			config.StoreLatency = 0
			Expect(config.Validate()).To(HaveOccurred())
		})

		It("should reject zero call latency", func() {
			config := latency.DefaultTimingConfig()
			config.CallLatency = 0
			Expect(config.Validate()).To(MatchError(ContainSubstring("call_latency")))
		})

		It("should reject inverted divide latency range", func() {
			config := latency.DefaultTimingConfig()
			config.DivideLatencyMin = 20
			config.DivideLatencyMax = 10
			Expect(config.Validate()).To(HaveOccurred())
		})
	})

	Describe("Clone", func() {
		It("should create independent copy", func() {
			original := latency.DefaultTimingConfig()
			clone := original.Clone()

			clone.ALULatency = 100

			Expect(original.ALULatency).To(Equal(uint64(1)))
			Expect(clone.ALULatency).To(Equal(uint64(100)))
		})
	})

	Describe("File Operations", func() {
		var tempDir string

		BeforeEach(func() {
			var err error
			tempDir, err = os.MkdirTemp("", "latency-test")
			Expect(err).NotTo(HaveOccurred())
		})

		AfterEach(func() {
			_ = os.RemoveAll(tempDir)
		})

		It("should save and load config", func() {
			original := latency.DefaultTimingConfig()
			original.ALULatency = 5
			original.LoadLatency = 10

			path := filepath.Join(tempDir, "timing.json")
			Expect(original.SaveConfig(path)).To(Succeed())

			loaded, err := latency.LoadConfig(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(Equal(original))
		})

		It("should return error for non-existent file", func() {
			_, err := latency.LoadConfig("/nonexistent/path/timing.json")
			Expect(err).To(HaveOccurred())
		})

		It("should return error for invalid JSON", func() {
			path := filepath.Join(tempDir, "invalid.json")
			err := os.WriteFile(path, []byte("not valid json"), 0644)
			Expect(err).NotTo(HaveOccurred())

			_, err = latency.LoadConfig(path)
			Expect(err).To(HaveOccurred())
		})
	})
})
