package emu

import (
	"fmt"

	"github.com/sarchlab/psxrec/asm"
)

// LoadStoreUnit implements the memory access instructions.
type LoadStoreUnit struct {
	regFile *RegFile
	memory  *Memory
}

// NewLoadStoreUnit creates a new LoadStoreUnit connected to the given
// register file and memory.
func NewLoadStoreUnit(regFile *RegFile, memory *Memory) *LoadStoreUnit {
	return &LoadStoreUnit{
		regFile: regFile,
		memory:  memory,
	}
}

// Execute runs a load or store. Misaligned halfword and word accesses are
// reported as errors.
func (lsu *LoadStoreUnit) Execute(inst asm.Inst) error {
	r := lsu.regFile
	m := lsu.memory
	addr := r.ReadReg(inst.Rs) + uint32(inst.SImm())

	align := uint32(0)
	switch inst.Op {
	case asm.OpLH, asm.OpLHU, asm.OpSH:
		align = 1
	case asm.OpLW, asm.OpSW:
		align = 3
	}
	if addr&align != 0 {
		return fmt.Errorf("misaligned %s at 0x%08x", inst.Op, addr)
	}

	switch inst.Op {
	case asm.OpLB:
		r.WriteReg(inst.Rt, uint32(int32(int8(m.Read8(addr)))))
	case asm.OpLBU:
		r.WriteReg(inst.Rt, uint32(m.Read8(addr)))
	case asm.OpLH:
		r.WriteReg(inst.Rt, uint32(int32(int16(m.Read16(addr)))))
	case asm.OpLHU:
		r.WriteReg(inst.Rt, uint32(m.Read16(addr)))
	case asm.OpLW:
		r.WriteReg(inst.Rt, m.Read32(addr))
	case asm.OpLWL:
		r.WriteReg(inst.Rt, LWL(r.ReadReg(inst.Rt), m.Read32(addr&^3), addr&3))
	case asm.OpLWR:
		r.WriteReg(inst.Rt, LWR(r.ReadReg(inst.Rt), m.Read32(addr&^3), addr&3))
	case asm.OpSB:
		m.Write8(addr, uint8(r.ReadReg(inst.Rt)))
	case asm.OpSH:
		m.Write16(addr, uint16(r.ReadReg(inst.Rt)))
	case asm.OpSW:
		m.Write32(addr, r.ReadReg(inst.Rt))
	case asm.OpSWL:
		m.Write32(addr&^3, SWL(m.Read32(addr&^3), r.ReadReg(inst.Rt), addr&3))
	case asm.OpSWR:
		m.Write32(addr&^3, SWR(m.Read32(addr&^3), r.ReadReg(inst.Rt), addr&3))
	default:
		return fmt.Errorf("%s is not a memory access", inst.Op)
	}
	return nil
}

// LWL merges the aligned word mem into old the way a little-endian LWL at
// byte offset shift does.
func LWL(old, mem, shift uint32) uint32 {
	s := (3 - shift) * 8
	return old&(0x00ffffff>>(shift*8)) | mem<<s
}

// LWR is the right-hand counterpart of LWL.
func LWR(old, mem, shift uint32) uint32 {
	s := shift * 8
	return old&^(0xffffffff>>s) | mem>>s
}

// SWL returns the aligned word mem after a little-endian SWL of reg at byte
// offset shift.
func SWL(mem, reg, shift uint32) uint32 {
	s := (3 - shift) * 8
	return mem&^(0xffffffff>>s) | reg>>s
}

// SWR is the right-hand counterpart of SWL.
func SWR(mem, reg, shift uint32) uint32 {
	s := shift * 8
	return mem&^(0xffffffff<<s) | reg<<s
}
