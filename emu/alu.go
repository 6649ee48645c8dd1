package emu

import (
	"math/bits"

	"github.com/sarchlab/psxrec/asm"
)

// ALU implements the arithmetic, logic, shift, multiply and bit-field
// instructions.
type ALU struct {
	regFile *RegFile
}

// NewALU creates a new ALU connected to the given register file.
func NewALU(regFile *RegFile) *ALU {
	return &ALU{regFile: regFile}
}

// Execute runs inst and reports whether it was an ALU instruction.
func (a *ALU) Execute(inst asm.Inst) bool {
	r := a.regFile
	rs := r.ReadReg(inst.Rs)
	rt := r.ReadReg(inst.Rt)
	simm := uint32(inst.SImm())
	imm := uint32(inst.Imm)

	switch inst.Op {
	case asm.OpADDIU:
		r.WriteReg(inst.Rt, rs+simm)
	case asm.OpSLTI:
		r.WriteReg(inst.Rt, b2u(int32(rs) < int32(simm)))
	case asm.OpSLTIU:
		r.WriteReg(inst.Rt, b2u(rs < simm))
	case asm.OpANDI:
		r.WriteReg(inst.Rt, rs&imm)
	case asm.OpORI:
		r.WriteReg(inst.Rt, rs|imm)
	case asm.OpXORI:
		r.WriteReg(inst.Rt, rs^imm)
	case asm.OpLUI:
		r.WriteReg(inst.Rt, imm<<16)

	case asm.OpADDU:
		r.WriteReg(inst.Rd, rs+rt)
	case asm.OpSUBU:
		r.WriteReg(inst.Rd, rs-rt)
	case asm.OpAND:
		r.WriteReg(inst.Rd, rs&rt)
	case asm.OpOR:
		r.WriteReg(inst.Rd, rs|rt)
	case asm.OpXOR:
		r.WriteReg(inst.Rd, rs^rt)
	case asm.OpNOR:
		r.WriteReg(inst.Rd, ^(rs | rt))
	case asm.OpSLT:
		r.WriteReg(inst.Rd, b2u(int32(rs) < int32(rt)))
	case asm.OpSLTU:
		r.WriteReg(inst.Rd, b2u(rs < rt))
	case asm.OpMOVN:
		if rt != 0 {
			r.WriteReg(inst.Rd, rs)
		}
	case asm.OpMOVZ:
		if rt == 0 {
			r.WriteReg(inst.Rd, rs)
		}

	case asm.OpSLL:
		r.WriteReg(inst.Rd, rt<<inst.Sa)
	case asm.OpSRL:
		r.WriteReg(inst.Rd, rt>>inst.Sa)
	case asm.OpSRA:
		r.WriteReg(inst.Rd, uint32(int32(rt)>>inst.Sa))
	case asm.OpSLLV:
		r.WriteReg(inst.Rd, rt<<(rs&31))
	case asm.OpSRLV:
		r.WriteReg(inst.Rd, rt>>(rs&31))
	case asm.OpSRAV:
		r.WriteReg(inst.Rd, uint32(int32(rt)>>(rs&31)))

	case asm.OpMUL:
		r.WriteReg(inst.Rd, uint32(int32(rs)*int32(rt)))
	case asm.OpMULT:
		p := int64(int32(rs)) * int64(int32(rt))
		r.LO, r.HI = uint32(p), uint32(uint64(p)>>32)
	case asm.OpMULTU:
		p := uint64(rs) * uint64(rt)
		r.LO, r.HI = uint32(p), uint32(p>>32)
	case asm.OpDIV:
		a.div(int32(rs), int32(rt))
	case asm.OpDIVU:
		if rt == 0 {
			r.LO, r.HI = 0xffffffff, rs
		} else {
			r.LO, r.HI = rs/rt, rs%rt
		}
	case asm.OpMFHI:
		r.WriteReg(inst.Rd, r.HI)
	case asm.OpMFLO:
		r.WriteReg(inst.Rd, r.LO)

	case asm.OpCLZ:
		r.WriteReg(inst.Rd, uint32(bits.LeadingZeros32(rs)))
	case asm.OpSEB:
		r.WriteReg(inst.Rd, uint32(int32(int8(rt))))
	case asm.OpSEH:
		r.WriteReg(inst.Rd, uint32(int32(int16(rt))))
	case asm.OpEXT:
		size := inst.ExtSize()
		r.WriteReg(inst.Rt, (rs>>inst.Sa)&fieldMask(size))
	case asm.OpINS:
		size := inst.ExtSize()
		mask := fieldMask(size) << inst.Sa
		r.WriteReg(inst.Rt, (rt&^mask)|((rs<<inst.Sa)&mask))

	default:
		return false
	}
	return true
}

// div follows the R3000 results for division by zero and overflow.
func (a *ALU) div(n, d int32) {
	r := a.regFile
	switch {
	case d == 0:
		if n >= 0 {
			r.LO = 0xffffffff
		} else {
			r.LO = 1
		}
		r.HI = uint32(n)
	case n == -0x80000000 && d == -1:
		r.LO, r.HI = 0x80000000, 0
	default:
		r.LO, r.HI = uint32(n/d), uint32(n%d)
	}
}

func fieldMask(size uint32) uint32 {
	if size >= 32 {
		return 0xffffffff
	}
	return 1<<size - 1
}

func b2u(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
