// Package benchmarks runs guest microbenchmarks through the recompiler and
// reports how the translated code behaves on the host executor.
package benchmarks

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-logr/logr"

	"github.com/sarchlab/psxrec/core"
	"github.com/sarchlab/psxrec/guest"
	"github.com/sarchlab/psxrec/rec"
	"github.com/sarchlab/psxrec/timing/latency"
	"github.com/sarchlab/psxrec/timing/pipeline"
)

// ProgramBase is the guest address benchmark programs are loaded at.
const ProgramBase = 0x80010000

// DataBase is a guest address benchmarks may use for scratch data.
const DataBase = 0x80020000

// resultReg holds a benchmark's result when it raises SYSCALL.
const resultReg = 2

// BenchmarkResult holds the results for a single benchmark run.
type BenchmarkResult struct {
	// Name identifies the benchmark
	Name string `json:"name"`

	// Description explains what the benchmark measures
	Description string `json:"description"`

	// GuestCycles is the cycle count reported by the translated blocks
	GuestCycles uint64 `json:"guest_cycles"`

	// BlocksRun is the number of block executions
	BlocksRun uint64 `json:"blocks_run"`

	// Translations is the number of blocks translated
	Translations uint64 `json:"translations"`

	// GuestInstructions is the number of guest instructions translated
	GuestInstructions int `json:"guest_instructions"`

	// HostInstructions is the number of host instructions executed,
	// native calls included
	HostInstructions uint64 `json:"host_instructions"`

	// CodeWords is the size of all translated code in words
	CodeWords int `json:"code_words"`

	// HostCycles is the modeled host cycle count of one pass over every
	// translated block
	HostCycles uint64 `json:"host_cycles"`

	// LoadUseHazards is the number of load-use hazards in the translated code
	LoadUseHazards int `json:"load_use_hazards"`

	// StallCycles is the modeled stall cycles in the translated code
	StallCycles uint64 `json:"stall_cycles"`

	// NativeCalls is the number of native functions called
	NativeCalls uint64 `json:"native_calls"`

	MemReads         uint64 `json:"mem_reads"`
	MemWrites        uint64 `json:"mem_writes"`
	InterpreterCalls uint64 `json:"interpreter_calls"`

	// Result is the guest $v0 when the benchmark stopped
	Result uint32 `json:"result"`

	// Stop is why the run ended
	Stop string `json:"stop"`

	// Err is set when translation or execution failed
	Err string `json:"error,omitempty"`

	// WallTime is the actual time taken to run the benchmark
	WallTime time.Duration `json:"wall_time_ns"`
}

// Passed reports whether the benchmark stopped on its SYSCALL with the
// expected result.
func (r BenchmarkResult) Passed(b Benchmark) bool {
	return r.Err == "" && r.Stop == core.StopException.String() && r.Result == b.Expected
}

// Benchmark defines a single benchmark program.
type Benchmark struct {
	// Name identifies the benchmark
	Name string

	// Description explains what the benchmark measures
	Description string

	// Setup prepares guest state or memory before the run
	Setup func(m *core.Machine)

	// Program is the guest code, loaded at ProgramBase. It must end in
	// SYSCALL with its result in $v0.
	Program []uint32

	// Expected is the expected $v0 (for validation)
	Expected uint32
}

// HarnessConfig configures the benchmark harness.
type HarnessConfig struct {
	// Rec holds the translation options. Nil means rec.DefaultConfig.
	Rec *rec.Config

	// Timing is the host latency model used for hazard analysis. Nil means
	// latency.DefaultTimingConfig.
	Timing *latency.TimingConfig

	// MemMapped lets translated code access guest memory inline
	MemMapped bool

	// FastPath enables the self-loop re-entry address
	FastPath bool

	// IndirectReturn makes blocks return through $ra
	IndirectReturn bool

	// MaxCycles bounds each run in guest cycles
	MaxCycles uint64

	// Output is where to write results (default: os.Stdout)
	Output io.Writer

	// Logger is passed to each machine
	Logger logr.Logger
}

// DefaultConfig returns a default harness configuration.
func DefaultConfig() HarnessConfig {
	return HarnessConfig{
		MemMapped: true,
		FastPath:  true,
		MaxCycles: 1000000,
		Output:    os.Stdout,
		Logger:    logr.Discard(),
	}
}

// Harness runs benchmarks and reports results.
type Harness struct {
	config     HarnessConfig
	hazards    *pipeline.HazardUnit
	benchmarks []Benchmark
}

// NewHarness creates a new benchmark harness.
func NewHarness(config HarnessConfig) *Harness {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	if config.Rec == nil {
		config.Rec = rec.DefaultConfig()
	}
	if config.Timing == nil {
		config.Timing = latency.DefaultTimingConfig()
	}
	if config.Logger.GetSink() == nil {
		config.Logger = logr.Discard()
	}
	return &Harness{
		config:     config,
		hazards:    pipeline.NewHazardUnit(latency.NewTableWithConfig(config.Timing)),
		benchmarks: []Benchmark{},
	}
}

// AddBenchmark adds a benchmark to the harness.
func (h *Harness) AddBenchmark(b Benchmark) {
	h.benchmarks = append(h.benchmarks, b)
}

// AddBenchmarks adds multiple benchmarks to the harness.
func (h *Harness) AddBenchmarks(benchmarks []Benchmark) {
	h.benchmarks = append(h.benchmarks, benchmarks...)
}

// Benchmarks returns the benchmarks added so far.
func (h *Harness) Benchmarks() []Benchmark {
	return h.benchmarks
}

// RunAll executes all benchmarks and returns results.
func (h *Harness) RunAll() []BenchmarkResult {
	results := make([]BenchmarkResult, 0, len(h.benchmarks))

	for _, bench := range h.benchmarks {
		results = append(results, h.runBenchmark(bench))
	}

	return results
}

// runBenchmark executes a single benchmark on a fresh machine.
func (h *Harness) runBenchmark(bench Benchmark) BenchmarkResult {
	result := BenchmarkResult{
		Name:        bench.Name,
		Description: bench.Description,
	}

	m, err := core.NewMachine(
		core.WithConfig(h.config.Rec),
		core.WithLogger(h.config.Logger.WithValues("benchmark", bench.Name)),
		core.WithMemMapped(h.config.MemMapped),
		core.WithFastPath(h.config.FastPath),
		core.WithIndirectReturn(h.config.IndirectReturn),
	)
	if err != nil {
		result.Err = err.Error()
		return result
	}

	m.LoadGuestWords(ProgramBase, bench.Program)
	if bench.Setup != nil {
		bench.Setup(m)
	}

	start := time.Now()
	res, err := m.Run(ProgramBase, h.config.MaxCycles)
	result.WallTime = time.Since(start)
	if err != nil {
		result.Err = err.Error()
	}

	stats := m.Stats()
	result.GuestCycles = res.Cycles
	result.BlocksRun = res.Blocks
	result.Translations = stats.Translations
	result.MemReads = stats.MemReads
	result.MemWrites = stats.MemWrites
	result.InterpreterCalls = stats.InterpreterCalls
	result.HostInstructions = m.Emulator().InstructionCount()
	result.NativeCalls = m.Emulator().NativeCalls()
	result.Result = resultOf(m.State())
	result.Stop = res.Reason.String()

	for _, b := range m.Cache().Blocks() {
		report := h.hazards.Analyze(b.Code)
		result.GuestInstructions += b.Instructions
		result.CodeWords += b.Code.Len()
		result.HostCycles += report.Cycles
		result.LoadUseHazards += report.LoadUseHazards
		result.StallCycles += report.StallCycles
	}

	return result
}

// CyclesPerBlock returns the average guest cycles per block execution.
func (r BenchmarkResult) CyclesPerBlock() float64 {
	if r.BlocksRun == 0 {
		return 0
	}
	return float64(r.GuestCycles) / float64(r.BlocksRun)
}

// CodeExpansion returns host code words per translated guest instruction.
func (r BenchmarkResult) CodeExpansion() float64 {
	if r.GuestInstructions == 0 {
		return 0
	}
	return float64(r.CodeWords) / float64(r.GuestInstructions)
}

// PrintResults outputs benchmark results in a human-readable format.
func (h *Harness) PrintResults(results []BenchmarkResult) {
	w := h.config.Output
	_, _ = fmt.Fprintln(w, "=== psxrec Benchmark Results ===")
	_, _ = fmt.Fprintln(w, "")

	for _, r := range results {
		_, _ = fmt.Fprintf(w, "Benchmark: %s\n", r.Name)
		_, _ = fmt.Fprintf(w, "  Description: %s\n", r.Description)
		_, _ = fmt.Fprintf(w, "  Stop: %s, $v0 = 0x%08x\n", r.Stop, r.Result)
		if r.Err != "" {
			_, _ = fmt.Fprintf(w, "  Error: %s\n", r.Err)
		}
		_, _ = fmt.Fprintln(w, "  --- Guest ---")
		_, _ = fmt.Fprintf(w, "  Cycles:            %d\n", r.GuestCycles)
		_, _ = fmt.Fprintf(w, "  Blocks Run:        %d\n", r.BlocksRun)
		_, _ = fmt.Fprintf(w, "  Cycles/Block:      %.2f\n", r.CyclesPerBlock())
		_, _ = fmt.Fprintf(w, "  Translations:      %d\n", r.Translations)
		_, _ = fmt.Fprintln(w, "  --- Host ---")
		_, _ = fmt.Fprintf(w, "  Instructions:      %d\n", r.HostInstructions)
		_, _ = fmt.Fprintf(w, "  Native Calls:      %d\n", r.NativeCalls)
		_, _ = fmt.Fprintf(w, "  Code Words:        %d (%.2f per guest instruction)\n",
			r.CodeWords, r.CodeExpansion())
		_, _ = fmt.Fprintf(w, "  Load-Use Hazards:  %d\n", r.LoadUseHazards)
		_, _ = fmt.Fprintf(w, "  Stall Cycles:      %d\n", r.StallCycles)

		if r.MemReads > 0 || r.MemWrites > 0 || r.InterpreterCalls > 0 {
			_, _ = fmt.Fprintln(w, "  --- Call-outs ---")
			_, _ = fmt.Fprintf(w, "  Memory Reads:      %d\n", r.MemReads)
			_, _ = fmt.Fprintf(w, "  Memory Writes:     %d\n", r.MemWrites)
			_, _ = fmt.Fprintf(w, "  Interpreter:       %d\n", r.InterpreterCalls)
		}

		_, _ = fmt.Fprintf(w, "  Wall Time: %v\n", r.WallTime)
		_, _ = fmt.Fprintln(w, "")
	}
}

// PrintCSV outputs benchmark results in CSV format for easy comparison.
func (h *Harness) PrintCSV(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output,
		"name,guest_cycles,blocks_run,translations,guest_insts,host_insts,code_words,load_use_hazards,stall_cycles,mem_reads,mem_writes,interpreter_calls,result")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "%s,%d,%d,%d,%d,%d,%d,%d,%d,%d,%d,%d,0x%08x\n",
			r.Name,
			r.GuestCycles,
			r.BlocksRun,
			r.Translations,
			r.GuestInstructions,
			r.HostInstructions,
			r.CodeWords,
			r.LoadUseHazards,
			r.StallCycles,
			r.MemReads,
			r.MemWrites,
			r.InterpreterCalls,
			r.Result,
		)
	}
}

// BenchmarkReport is the complete output format for benchmark results.
type BenchmarkReport struct {
	// Metadata about the benchmark run
	Metadata ReportMetadata `json:"metadata"`

	// Results is the list of individual benchmark results
	Results []BenchmarkResult `json:"results"`

	// Summary contains aggregate statistics
	Summary ReportSummary `json:"summary"`
}

// ReportMetadata contains information about the benchmark run.
type ReportMetadata struct {
	// Timestamp when the benchmark was run
	Timestamp string `json:"timestamp"`

	// Rec is the translation configuration
	Rec *rec.Config `json:"rec"`

	// Timing is the host latency model
	Timing *latency.TimingConfig `json:"timing"`

	MemMapped      bool `json:"mem_mapped"`
	FastPath       bool `json:"fast_path"`
	IndirectReturn bool `json:"indirect_return"`
}

// ReportSummary contains aggregate statistics across all benchmarks.
type ReportSummary struct {
	TotalBenchmarks  int    `json:"total_benchmarks"`
	TotalGuestCycles uint64 `json:"total_guest_cycles"`
	TotalHostInsts   uint64 `json:"total_host_instructions"`

	// HostPerGuestCycle is host instructions executed per guest cycle
	HostPerGuestCycle float64 `json:"host_per_guest_cycle"`

	// TotalWallTime is the total wall clock time for all benchmarks
	TotalWallTime time.Duration `json:"total_wall_time_ns"`
}

// PrintJSON outputs benchmark results in JSON format for automated comparison.
func (h *Harness) PrintJSON(results []BenchmarkResult) error {
	var summary ReportSummary
	summary.TotalBenchmarks = len(results)
	for _, r := range results {
		summary.TotalGuestCycles += r.GuestCycles
		summary.TotalHostInsts += r.HostInstructions
		summary.TotalWallTime += r.WallTime
	}
	if summary.TotalGuestCycles > 0 {
		summary.HostPerGuestCycle = float64(summary.TotalHostInsts) / float64(summary.TotalGuestCycles)
	}

	report := BenchmarkReport{
		Metadata: ReportMetadata{
			Timestamp:      time.Now().UTC().Format(time.RFC3339),
			Rec:            h.config.Rec,
			Timing:         h.config.Timing,
			MemMapped:      h.config.MemMapped,
			FastPath:       h.config.FastPath,
			IndirectReturn: h.config.IndirectReturn,
		},
		Results: results,
		Summary: summary,
	}

	encoder := json.NewEncoder(h.config.Output)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}

// resultOf returns the guest result register of s.
func resultOf(s *guest.State) uint32 {
	return s.GPR[resultReg]
}
