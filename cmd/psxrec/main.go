// Package main provides the psxrec command line tool.
//
// psxrec loads a PS-X EXE (or a raw binary with -raw), translates its guest
// code into MIPS32 host blocks and either prints them or runs them on the
// host executor.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"

	"github.com/sarchlab/psxrec/asm"
	"github.com/sarchlab/psxrec/core"
	"github.com/sarchlab/psxrec/insts"
	"github.com/sarchlab/psxrec/loader"
	"github.com/sarchlab/psxrec/rec"
	"github.com/sarchlab/psxrec/timing/latency"
	"github.com/sarchlab/psxrec/timing/pipeline"
)

var (
	configPath   = flag.String("config", "", "Path to recompiler configuration JSON file")
	timingPath   = flag.String("timing-config", "", "Path to host timing configuration JSON file")
	verbosity    = flag.Int("v", 0, "Log verbosity")
	runMode      = flag.Bool("run", false, "Run the program instead of printing translated blocks")
	raw          = flag.Bool("raw", false, "Treat the input as a headerless binary")
	baseAddr     = flag.String("base", "0x80010000", "Load address for -raw")
	startPC      = flag.String("pc", "", "Override the entry point")
	maxCycles    = flag.Uint64("cycles", 1000000, "Cycle budget for -run")
	maxBlocks    = flag.Int("blocks", 16, "Maximum number of blocks to print")
	indirect     = flag.Bool("indirect", false, "Return from blocks through $ra")
	noFastPath   = flag.Bool("no-fast-path", false, "Disable the self-loop fast path")
	callOutMemIO = flag.Bool("callout", false, "Route guest memory accesses through call-outs")
)

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: psxrec [options] <program.exe>\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	stdr.SetVerbosity(*verbosity)
	logger := stdr.New(log.New(os.Stderr, "", log.LstdFlags)).WithName("psxrec")

	programPath := flag.Arg(0)
	prog, err := loadProgram(programPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading program: %v\n", err)
		os.Exit(1)
	}

	m, err := newMachine(logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating machine: %v\n", err)
		os.Exit(1)
	}

	entry := m.Boot(prog)
	if *startPC != "" {
		entry, err = parseAddr(*startPC)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing -pc: %v\n", err)
			os.Exit(1)
		}
	}

	logger.V(1).Info("loaded program",
		"path", programPath,
		"entry", fmt.Sprintf("0x%08x", entry),
		"segments", len(prog.Segments))

	if *runMode {
		os.Exit(runProgram(os.Stdout, m, entry))
	}

	unit, err := newHazardUnit()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading timing config: %v\n", err)
		os.Exit(1)
	}

	blocks, err := translateBlocks(m, entry, *maxBlocks)
	for _, b := range blocks {
		printBlock(os.Stdout, m, b, unit)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error translating: %v\n", err)
		os.Exit(1)
	}
}

func loadProgram(path string) (*loader.Program, error) {
	if !*raw {
		return loader.Load(path)
	}

	base, err := parseAddr(*baseAddr)
	if err != nil {
		return nil, fmt.Errorf("invalid -base: %w", err)
	}
	return loader.LoadRaw(path, base)
}

func newMachine(logger logr.Logger) (*core.Machine, error) {
	cfg := rec.DefaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = rec.LoadConfig(*configPath)
		if err != nil {
			return nil, err
		}
	}

	return core.NewMachine(
		core.WithConfig(cfg),
		core.WithLogger(logger),
		core.WithIndirectReturn(*indirect),
		core.WithFastPath(!*noFastPath),
		core.WithMemMapped(!*callOutMemIO),
	)
}

func newHazardUnit() (*pipeline.HazardUnit, error) {
	config := latency.DefaultTimingConfig()
	if *timingPath != "" {
		var err error
		config, err = latency.LoadConfig(*timingPath)
		if err != nil {
			return nil, err
		}
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid timing config: %w", err)
	}
	return pipeline.NewHazardUnit(latency.NewTableWithConfig(config)), nil
}

// parseAddr accepts decimal or 0x-prefixed hexadecimal addresses.
func parseAddr(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}

// translateBlocks translates up to limit blocks reachable from entry through
// exits with known targets, in breadth-first order. Blocks translated before
// an error are returned with it.
func translateBlocks(m *core.Machine, entry uint32, limit int) ([]*rec.Block, error) {
	var blocks []*rec.Block
	seen := map[uint32]bool{entry: true}
	queue := []uint32{entry}

	for len(queue) > 0 && len(blocks) < limit {
		pc := queue[0]
		queue = queue[1:]

		b, err := m.Block(pc)
		if err != nil {
			return blocks, err
		}
		blocks = append(blocks, b)

		for _, exit := range b.Exits {
			if exit.Kind != rec.ExitKnown || seen[exit.Target] {
				continue
			}
			seen[exit.Target] = true
			queue = append(queue, exit.Target)
		}
	}

	return blocks, nil
}

// printBlock prints the guest instructions of b, its host code and the
// hazard analysis of the host code.
func printBlock(w io.Writer, m *core.Machine, b *rec.Block, unit *pipeline.HazardUnit) {
	report := unit.Analyze(b.Code)

	fmt.Fprintf(w, "block 0x%08x-0x%08x: %d guest instructions, %d cycles\n",
		b.StartPC, b.EndPC, b.Instructions, b.Cycles)

	decoder := insts.NewDecoder()
	fmt.Fprintf(w, "  guest:\n")
	for _, pc := range b.Order {
		word, err := m.ReadCode(pc)
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "    %08x: %08x  %s\n", pc, word, decoder.Decode(word).Op)
	}

	exits := make(map[int]rec.Exit, len(b.Exits))
	for _, e := range b.Exits {
		exits[e.Offset] = e
	}

	fmt.Fprintf(w, "  host:\n")
	for i, line := range asm.Disassemble(b.Code) {
		e, ok := exits[i]
		switch {
		case ok && (e.Kind == rec.ExitKnown || e.Kind == rec.ExitFast):
			fmt.Fprintf(w, "    %s  # exit %s 0x%08x\n", line, e.Kind, e.Target)
			continue
		case ok:
			fmt.Fprintf(w, "    %s  # exit %s\n", line, e.Kind)
			continue
		}
		fmt.Fprintf(w, "    %s\n", line)
	}

	fmt.Fprintf(w, "  timing: %d host instructions, %d cycles, %d load-use hazards, %d stall cycles\n\n",
		report.Instructions, report.Cycles, report.LoadUseHazards, report.StallCycles)
}

// runProgram runs the booted program and prints a summary. It returns the
// process exit code.
func runProgram(w io.Writer, m *core.Machine, entry uint32) int {
	res, err := m.Run(entry, *maxCycles)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		return 1
	}

	stats := m.Stats()
	cacheStats := m.Cache().Stats()

	fmt.Fprintf(w, "Stopped: %s at 0x%08x\n", res.Reason, res.PC)
	fmt.Fprintf(w, "Cycles: %d\n", res.Cycles)
	fmt.Fprintf(w, "Blocks run: %d\n", res.Blocks)
	fmt.Fprintf(w, "Translations: %d (%d retranslations, %d arena flushes)\n",
		stats.Translations, stats.Retranslations, stats.ArenaFlushes)
	fmt.Fprintf(w, "Block cache: %d hits, %d misses, %d evictions\n",
		cacheStats.Hits, cacheStats.Misses, cacheStats.Evictions)
	fmt.Fprintf(w, "Interpreter calls: %d\n", stats.InterpreterCalls)
	fmt.Fprintf(w, "Memory call-outs: %d reads, %d writes\n", stats.MemReads, stats.MemWrites)

	s := m.State()
	for r := 0; r < 32; r += 4 {
		fmt.Fprintf(w, "  r%-2d %08x  r%-2d %08x  r%-2d %08x  r%-2d %08x\n",
			r, s.GPR[r], r+1, s.GPR[r+1], r+2, s.GPR[r+2], r+3, s.GPR[r+3])
	}

	return 0
}
