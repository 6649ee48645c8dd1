package benchmarks_test

import (
	"bytes"
	"encoding/json"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/psxrec/benchmarks"
	"github.com/sarchlab/psxrec/insts"
	"github.com/sarchlab/psxrec/rec"
)

var _ = Describe("Harness", func() {
	var (
		out    *bytes.Buffer
		config benchmarks.HarnessConfig
	)

	BeforeEach(func() {
		out = &bytes.Buffer{}
		config = benchmarks.DefaultConfig()
		config.Output = out
	})

	run := func(config benchmarks.HarnessConfig, bs []benchmarks.Benchmark) []benchmarks.BenchmarkResult {
		h := benchmarks.NewHarness(config)
		h.AddBenchmarks(bs)
		return h.RunAll()
	}

	DescribeTable("should produce the expected result for every benchmark",
		func(mode func(c *benchmarks.HarnessConfig)) {
			mode(&config)
			bs := benchmarks.GetMicrobenchmarks()
			results := run(config, bs)

			Expect(results).To(HaveLen(len(bs)))
			for i, r := range results {
				Expect(r.Err).To(BeEmpty(), r.Name)
				Expect(r.Stop).To(Equal("exception"), r.Name)
				Expect(r.Result).To(Equal(bs[i].Expected), r.Name)
				Expect(r.Passed(bs[i])).To(BeTrue(), r.Name)
				Expect(r.GuestCycles).To(BeNumerically(">", 0), r.Name)
				Expect(r.HostInstructions).To(BeNumerically(">", 0), r.Name)
			}
		},
		Entry("inline memory", func(c *benchmarks.HarnessConfig) {}),
		Entry("memory call-outs", func(c *benchmarks.HarnessConfig) { c.MemMapped = false }),
		Entry("no fast path", func(c *benchmarks.HarnessConfig) { c.FastPath = false }),
		Entry("indirect return", func(c *benchmarks.HarnessConfig) { c.IndirectReturn = true }),
		Entry("unpipelined GTE transfers", func(c *benchmarks.HarnessConfig) {
			c.Rec = rec.DefaultConfig()
			c.Rec.GTEMemPipelining = false
		}),
		Entry("MIPS32r2 host", func(c *benchmarks.HarnessConfig) {
			c.Rec = rec.DefaultConfig()
			c.Rec.HostMIPS32R2 = true
		}),
	)

	It("should route memory through call-outs only when unmapped", func() {
		bs := []benchmarks.Benchmark{benchmarks.GetMicrobenchmarks()[2]}
		Expect(bs[0].Name).To(Equal("memory_sequential"))

		inline := run(config, bs)[0]
		Expect(inline.MemReads).To(BeZero())
		Expect(inline.MemWrites).To(BeZero())

		config.MemMapped = false
		callout := run(config, bs)[0]
		Expect(callout.MemReads).To(Equal(uint64(10)))
		Expect(callout.MemWrites).To(Equal(uint64(10)))
		Expect(callout.NativeCalls).To(BeNumerically(">=", 21))
	})

	It("should run the self loop once per iteration", func() {
		bs := benchmarks.GetCoreBenchmarks()[:1]
		Expect(bs[0].Name).To(Equal("countdown_loop"))

		r := run(config, bs)[0]
		// The entry block runs the first iteration.
		Expect(r.BlocksRun).To(Equal(uint64(11)))
		Expect(r.Translations).To(Equal(uint64(3)))
		Expect(r.CyclesPerBlock()).To(BeNumerically(">", 0))
	})

	It("should count translated code and hazards", func() {
		r := run(config, benchmarks.GetCoreBenchmarks()[2:])[0]
		Expect(r.GuestInstructions).To(BeNumerically(">=", 12))
		Expect(r.CodeWords).To(BeNumerically(">", r.GuestInstructions))
		Expect(r.CodeExpansion()).To(BeNumerically(">", 1))
		Expect(r.HostCycles).To(BeNumerically(">", 0))
	})

	It("should not pass a run that never raises SYSCALL", func() {
		bs := []benchmarks.Benchmark{{
			Name:     "no_syscall",
			Program:  []uint32{insts.ADDIU(2, 2, 1), insts.J(benchmarks.ProgramBase), insts.NOP},
			Expected: 1,
		}}
		config.MaxCycles = 100

		r := run(config, bs)[0]
		Expect(r.Stop).To(Equal("cycles"))
		Expect(r.Passed(bs[0])).To(BeFalse())
	})

	Describe("output", func() {
		var results []benchmarks.BenchmarkResult
		var h *benchmarks.Harness

		BeforeEach(func() {
			h = benchmarks.NewHarness(config)
			h.AddBenchmark(benchmarks.GetMicrobenchmarks()[0])
			Expect(h.Benchmarks()).To(HaveLen(1))
			results = h.RunAll()
		})

		It("should print human-readable results", func() {
			h.PrintResults(results)
			Expect(out.String()).To(ContainSubstring("Benchmark: arithmetic_sequential"))
			Expect(out.String()).To(ContainSubstring("$v0 = 0x00000004"))
		})

		It("should print one CSV row per benchmark", func() {
			h.PrintCSV(results)
			lines := strings.Split(strings.TrimSpace(out.String()), "\n")
			Expect(lines).To(HaveLen(2))
			Expect(lines[0]).To(HavePrefix("name,guest_cycles,"))
			Expect(lines[1]).To(HavePrefix("arithmetic_sequential,"))
			Expect(lines[1]).To(HaveSuffix(",0x00000004"))
		})

		It("should print a JSON report", func() {
			Expect(h.PrintJSON(results)).To(Succeed())

			var report benchmarks.BenchmarkReport
			Expect(json.Unmarshal(out.Bytes(), &report)).To(Succeed())
			Expect(report.Summary.TotalBenchmarks).To(Equal(1))
			Expect(report.Results[0].Name).To(Equal("arithmetic_sequential"))
			Expect(report.Metadata.Rec.CycleMultiplier).To(Equal(uint32(0x100)))
			Expect(report.Metadata.MemMapped).To(BeTrue())
		})
	})
})
