package emu

import "github.com/sarchlab/psxrec/asm"

// RegFile represents the MIPS32 host register file.
type RegFile struct {
	// R holds the general-purpose registers. R[0] always reads as 0.
	R [asm.NumRegs]uint32

	// HI and LO hold multiply/divide results.
	HI uint32
	LO uint32

	// PC is the address of the instruction about to execute and NPC the
	// address after it, which differs from PC+4 in a branch delay slot.
	PC  uint32
	NPC uint32
}

// ReadReg reads a register value. $zero returns 0.
func (r *RegFile) ReadReg(reg asm.Reg) uint32 {
	if reg == asm.Zero || !reg.Valid() {
		return 0
	}
	return r.R[reg]
}

// WriteReg writes a value to a register. Writes to $zero are ignored.
func (r *RegFile) WriteReg(reg asm.Reg, value uint32) {
	if reg == asm.Zero || !reg.Valid() {
		return
	}
	r.R[reg] = value
}

// Jump sets the PC and NPC for execution starting at addr.
func (r *RegFile) Jump(addr uint32) {
	r.PC = addr
	r.NPC = addr + 4
}
