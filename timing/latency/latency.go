// Package latency provides instruction timing for emitted host code.
//
// The latency values describe a single-issue MIPS32 pipeline and can be
// configured via TimingConfig.
package latency

import (
	"github.com/sarchlab/psxrec/asm"
)

// Table provides instruction latency lookups.
type Table struct {
	config *TimingConfig
}

// NewTable creates a new latency table with the default timing values.
func NewTable() *Table {
	return &Table{
		config: DefaultTimingConfig(),
	}
}

// NewTableWithConfig creates a new latency table with custom timing configuration.
func NewTableWithConfig(config *TimingConfig) *Table {
	return &Table{
		config: config,
	}
}

// GetLatency returns the execution latency in cycles for the given instruction.
// For variable-latency operations, returns the typical/expected latency.
func (t *Table) GetLatency(inst asm.Inst) uint64 {
	switch {
	case inst.Op == asm.OpJAL:
		return t.config.CallLatency
	case t.IsBranchOp(inst):
		return t.config.BranchLatency
	case t.IsLoadOp(inst):
		return t.config.LoadLatency
	case t.IsStoreOp(inst):
		return t.config.StoreLatency
	}

	switch inst.Op {
	case asm.OpMUL, asm.OpMULT, asm.OpMULTU:
		return t.config.MultiplyLatency
	case asm.OpDIV, asm.OpDIVU:
		return (t.config.DivideLatencyMin + t.config.DivideLatencyMax) / 2
	default:
		return t.config.ALULatency
	}
}

// GetMinLatency returns the minimum execution latency for variable-latency operations.
func (t *Table) GetMinLatency(inst asm.Inst) uint64 {
	if inst.Op == asm.OpDIV || inst.Op == asm.OpDIVU {
		return t.config.DivideLatencyMin
	}
	return t.GetLatency(inst)
}

// GetMaxLatency returns the maximum execution latency for variable-latency operations.
func (t *Table) GetMaxLatency(inst asm.Inst) uint64 {
	if inst.Op == asm.OpDIV || inst.Op == asm.OpDIVU {
		return t.config.DivideLatencyMax
	}
	return t.GetLatency(inst)
}

// IsMemoryOp returns true if the instruction accesses memory.
func (t *Table) IsMemoryOp(inst asm.Inst) bool {
	return t.IsLoadOp(inst) || t.IsStoreOp(inst)
}

// IsLoadOp returns true if the instruction is a load operation.
func (t *Table) IsLoadOp(inst asm.Inst) bool {
	switch inst.Op {
	case asm.OpLB, asm.OpLBU, asm.OpLH, asm.OpLHU, asm.OpLW, asm.OpLWL, asm.OpLWR:
		return true
	default:
		return false
	}
}

// IsStoreOp returns true if the instruction is a store operation.
func (t *Table) IsStoreOp(inst asm.Inst) bool {
	switch inst.Op {
	case asm.OpSB, asm.OpSH, asm.OpSW, asm.OpSWL, asm.OpSWR:
		return true
	default:
		return false
	}
}

// IsBranchOp returns true if the instruction is a branch or jump.
func (t *Table) IsBranchOp(inst asm.Inst) bool {
	switch inst.Op {
	case asm.OpJ, asm.OpJAL, asm.OpJR, asm.OpJALR, asm.OpBEQ, asm.OpBNE,
		asm.OpBLEZ, asm.OpBGTZ, asm.OpBLTZ, asm.OpBGEZ:
		return true
	default:
		return false
	}
}

// Config returns the current timing configuration.
func (t *Table) Config() *TimingConfig {
	return t.config
}
