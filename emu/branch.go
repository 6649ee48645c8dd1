package emu

import "github.com/sarchlab/psxrec/asm"

// BranchUnit resolves branches and jumps. The transfer takes effect after
// the delay slot.
type BranchUnit struct {
	regFile *RegFile
}

// NewBranchUnit creates a new BranchUnit connected to the given register file.
func NewBranchUnit(regFile *RegFile) *BranchUnit {
	return &BranchUnit{regFile: regFile}
}

// Execute resolves a branch or jump at pc. It returns the transfer target
// and whether the transfer is taken, and writes the link register for JAL
// and JALR.
func (b *BranchUnit) Execute(inst asm.Inst, pc uint32) (uint32, bool) {
	r := b.regFile
	rs := r.ReadReg(inst.Rs)
	rt := r.ReadReg(inst.Rt)
	branchTarget := pc + 4 + uint32(inst.BranchOffset())

	switch inst.Op {
	case asm.OpJ:
		return inst.JumpAddr(pc), true
	case asm.OpJAL:
		r.WriteReg(asm.RA, pc+8)
		return inst.JumpAddr(pc), true
	case asm.OpJR:
		return rs, true
	case asm.OpJALR:
		r.WriteReg(inst.Rd, pc+8)
		return rs, true
	case asm.OpBEQ:
		return branchTarget, rs == rt
	case asm.OpBNE:
		return branchTarget, rs != rt
	case asm.OpBLEZ:
		return branchTarget, int32(rs) <= 0
	case asm.OpBGTZ:
		return branchTarget, int32(rs) > 0
	case asm.OpBLTZ:
		return branchTarget, int32(rs) < 0
	case asm.OpBGEZ:
		return branchTarget, int32(rs) >= 0
	}
	return 0, false
}
