// Package pipeline models the issue timing of emitted host code on an
// in-order MIPS32 pipeline.
//
// The HazardUnit walks a sealed block in address order and charges a stall
// whenever an instruction reads a register before its producer's result is
// available. Load-use hazards are reported individually.
package pipeline

import (
	"github.com/sarchlab/psxrec/asm"
	"github.com/sarchlab/psxrec/timing/latency"
)

// numTracked covers the 32 general-purpose registers plus HI and LO.
const numTracked = 34

// Hazard is one load-use stall.
type Hazard struct {
	// Producer and Consumer are word indexes in the block's code.
	Producer int
	Consumer int
	Reg      asm.Reg
	Stall    uint64
}

// Report summarizes the timing of one block.
type Report struct {
	Instructions   int
	LoadUseHazards int
	// StallCycles counts every stall, including waits on the multiply unit.
	StallCycles uint64
	// Cycles is the issue cycle after the last instruction.
	Cycles  uint64
	Hazards []Hazard
}

// HazardUnit detects data hazards in straight-line host code.
type HazardUnit struct {
	table *latency.Table
}

// NewHazardUnit creates a new hazard detection unit. A nil table selects the
// default latencies.
func NewHazardUnit(table *latency.Table) *HazardUnit {
	if table == nil {
		table = latency.NewTable()
	}
	return &HazardUnit{table: table}
}

// DetectLoadUseHazard reports whether consumer reads the register loaded by
// producer. $zero never causes hazards.
func (h *HazardUnit) DetectLoadUseHazard(producer, consumer asm.Inst) (asm.Reg, bool) {
	if !h.table.IsLoadOp(producer) {
		return asm.Zero, false
	}

	written := producer.Writes() & consumer.Reads()
	for r := asm.Reg(1); r < 32; r++ {
		if written&(1<<r) != 0 {
			return r, true
		}
	}
	return asm.Zero, false
}

// Analyze computes the issue timing of code, treating it as straight-line.
// Branches are not followed and a call resets all dependencies.
func (h *HazardUnit) Analyze(code *asm.Code) Report {
	var (
		report   Report
		ready    [numTracked]uint64
		producer [numTracked]int
		cycle    uint64
	)
	for i := range producer {
		producer[i] = -1
	}

	for i := 0; i < code.Len(); i++ {
		inst := asm.Decode(code.Word(i))
		report.Instructions++

		issue := cycle
		stallReg := -1
		reads := inst.Reads()
		for r := 1; r < numTracked; r++ {
			if reads&(1<<r) != 0 && ready[r] > issue {
				issue = ready[r]
				stallReg = r
			}
		}

		if stall := issue - cycle; stall > 0 {
			report.StallCycles += stall
			p := producer[stallReg]
			if p >= 0 && stallReg < 32 {
				report.LoadUseHazards++
				report.Hazards = append(report.Hazards, Hazard{
					Producer: p,
					Consumer: i,
					Reg:      asm.Reg(stallReg),
					Stall:    stall,
				})
			}
		}

		lat := h.table.GetLatency(inst)
		if inst.Op == asm.OpJAL {
			// Native code runs to completion before the delay slot's
			// successor issues.
			cycle = issue + lat
			ready = [numTracked]uint64{}
			for r := range producer {
				producer[r] = -1
			}
			continue
		}

		writes := inst.Writes()
		isLoad := h.table.IsLoadOp(inst)
		for r := 1; r < numTracked; r++ {
			if writes&(1<<r) == 0 {
				continue
			}
			ready[r] = issue + lat
			producer[r] = -1
			if isLoad {
				producer[r] = i
			}
		}
		cycle = issue + 1
	}

	report.Cycles = cycle
	return report
}
