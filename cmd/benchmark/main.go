// Command benchmark runs the psxrec microbenchmark harness.
//
// Usage:
//
//	go run ./cmd/benchmark [flags]
//
// Flags:
//
//	-csv          Output results in CSV format (default: human-readable)
//	-json         Output results in JSON format
//	-core         Run only the core benchmarks
//	-callout      Route guest memory accesses through call-outs
//	-no-fast-path Disable the self-loop re-entry address
//	-indirect     Return from blocks through $ra
//	-config       Recompiler configuration JSON file
//	-timing-config Host latency configuration JSON file
//	-cpuprofile   Write a CPU profile to file
//	-memprofile   Write a heap profile to file
//
// Example:
//
//	# Compare inline memory access against call-outs
//	go run ./cmd/benchmark -csv > inline.csv
//	go run ./cmd/benchmark -csv -callout > callout.csv
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"runtime/pprof"

	"github.com/go-logr/stdr"

	"github.com/sarchlab/psxrec/benchmarks"
	"github.com/sarchlab/psxrec/rec"
	"github.com/sarchlab/psxrec/timing/latency"
)

func main() {
	csvOutput := flag.Bool("csv", false, "Output results in CSV format")
	jsonOutput := flag.Bool("json", false, "Output results in JSON format")
	coreOnly := flag.Bool("core", false, "Run only the core benchmarks")
	callout := flag.Bool("callout", false, "Route guest memory accesses through call-outs")
	noFastPath := flag.Bool("no-fast-path", false, "Disable the self-loop re-entry address")
	indirect := flag.Bool("indirect", false, "Return from blocks through $ra")
	configPath := flag.String("config", "", "Recompiler configuration JSON file")
	timingPath := flag.String("timing-config", "", "Host latency configuration JSON file")
	cpuProfile := flag.String("cpuprofile", "", "write cpu profile to file")
	memProfile := flag.String("memprofile", "", "write memory profile to file")
	verbosity := flag.Int("v", 0, "Log verbosity")
	flag.Parse()

	config := benchmarks.DefaultConfig()
	config.MemMapped = !*callout
	config.FastPath = !*noFastPath
	config.IndirectReturn = *indirect
	config.Output = os.Stdout

	if *verbosity > 0 {
		stdr.SetVerbosity(*verbosity)
		config.Logger = stdr.New(log.New(os.Stderr, "", log.LstdFlags))
	}

	if *configPath != "" {
		cfg, err := rec.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
		config.Rec = cfg
	}
	if *timingPath != "" {
		cfg, err := latency.LoadConfig(*timingPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading timing config: %v\n", err)
			os.Exit(1)
		}
		config.Timing = cfg
	}

	harness := benchmarks.NewHarness(config)
	if *coreOnly {
		harness.AddBenchmarks(benchmarks.GetCoreBenchmarks())
	} else {
		harness.AddBenchmarks(benchmarks.GetMicrobenchmarks())
	}

	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = f.Close() }()

		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Error starting CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer pprof.StopCPUProfile()
	}

	results := harness.RunAll()

	if *memProfile != "" {
		writeHeapProfile(*memProfile)
	}

	switch {
	case *jsonOutput:
		if err := harness.PrintJSON(results); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing JSON: %v\n", err)
		}
	case *csvOutput:
		harness.PrintCSV(results)
	default:
		fmt.Println("psxrec Benchmark Harness")
		fmt.Println("========================")
		fmt.Printf("Inline memory: %v\n", config.MemMapped)
		fmt.Printf("Fast path:     %v\n", config.FastPath)
		fmt.Printf("Indirect:      %v\n", config.IndirectReturn)
		fmt.Println("")
		harness.PrintResults(results)
	}

	failed := 0
	for i, r := range results {
		if !r.Passed(harness.Benchmarks()[i]) {
			fmt.Fprintf(os.Stderr, "FAIL %s: stop=%s result=0x%08x %s\n", r.Name, r.Stop, r.Result, r.Err)
			failed++
		}
	}
	if failed > 0 {
		pprof.StopCPUProfile()
		os.Exit(1)
	}
}

func writeHeapProfile(path string) {
	f, err := os.Create(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating memory profile: %v\n", err)
		return
	}
	defer func() { _ = f.Close() }()

	if err := pprof.WriteHeapProfile(f); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing memory profile: %v\n", err)
	}
}
