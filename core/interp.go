package core

import (
	"github.com/sarchlab/psxrec/emu"
	"github.com/sarchlab/psxrec/guest"
	"github.com/sarchlab/psxrec/insts"
)

// COP0 registers the interpreter touches.
const (
	cop0SR    = 12
	cop0Cause = 13
	cop0EPC   = 14

	srBEV = 1 << 22
)

// Exception codes.
const (
	excSyscall = 8
	excBreak   = 9
)

// interpret executes one guest instruction the translator handed over. Only
// the instruction classes translated code calls out for are implemented:
// the multiply unit, unaligned loads and stores, COP0 moves and exceptions.
func (m *Machine) interpret(word, pc uint32) {
	s := m.State()
	s.Code = word

	inst := m.decoder.Decode(word)
	rs := s.ReadReg(inst.Rs)
	rt := s.ReadReg(inst.Rt)

	switch inst.Op {
	case insts.OpMULT:
		p := int64(int32(rs)) * int64(int32(rt))
		s.GPR[guest.RegLO], s.GPR[guest.RegHI] = uint32(p), uint32(uint64(p)>>32)
	case insts.OpMULTU:
		p := uint64(rs) * uint64(rt)
		s.GPR[guest.RegLO], s.GPR[guest.RegHI] = uint32(p), uint32(p>>32)
	case insts.OpDIV:
		s.GPR[guest.RegLO], s.GPR[guest.RegHI] = divide(int32(rs), int32(rt))
	case insts.OpDIVU:
		if rt == 0 {
			s.GPR[guest.RegLO], s.GPR[guest.RegHI] = 0xffffffff, rs
		} else {
			s.GPR[guest.RegLO], s.GPR[guest.RegHI] = rs/rt, rs%rt
		}
	case insts.OpMFHI:
		s.WriteReg(inst.Rd, s.GPR[guest.RegHI])
	case insts.OpMFLO:
		s.WriteReg(inst.Rd, s.GPR[guest.RegLO])
	case insts.OpMTHI:
		s.GPR[guest.RegHI] = rs
	case insts.OpMTLO:
		s.GPR[guest.RegLO] = rs

	case insts.OpLWL, insts.OpLWR, insts.OpSWL, insts.OpSWR:
		m.unaligned(s, inst)

	case insts.OpMFC0:
		s.WriteReg(inst.Rt, s.CP0[inst.Rd])
	case insts.OpMTC0:
		s.CP0[inst.Rd] = rt
	case insts.OpRFE:
		sr := s.CP0[cop0SR]
		s.CP0[cop0SR] = sr&^0xf | (sr>>2)&0xf

	case insts.OpSYSCALL:
		m.raise(s, excSyscall, pc)
	case insts.OpBREAK:
		m.raise(s, excBreak, pc)

	default:
		m.log.V(0).Info("interpreter: unsupported instruction",
			"pc", hex32(pc), "word", hex32(word), "op", inst.Op.String())
	}

	m.SetState(s)
}

func (m *Machine) unaligned(s *guest.State, inst *insts.Instruction) {
	addr := s.ReadReg(inst.Rs) + uint32(int32(int16(inst.Imm)))
	aligned := addr &^ 3
	shift := addr & 3
	mem := m.ReadGuest32(aligned)

	switch inst.Op {
	case insts.OpLWL:
		s.WriteReg(inst.Rt, emu.LWL(s.ReadReg(inst.Rt), mem, shift))
	case insts.OpLWR:
		s.WriteReg(inst.Rt, emu.LWR(s.ReadReg(inst.Rt), mem, shift))
	case insts.OpSWL:
		m.WriteGuest32(aligned, emu.SWL(mem, s.ReadReg(inst.Rt), shift))
	case insts.OpSWR:
		m.WriteGuest32(aligned, emu.SWR(mem, s.ReadReg(inst.Rt), shift))
	}
}

// raise enters the exception handler and asks Run to stop after the
// current block.
func (m *Machine) raise(s *guest.State, code, pc uint32) {
	m.stats.Exceptions++
	m.stopped = true

	s.CP0[cop0Cause] = s.CP0[cop0Cause]&^0x7c | code<<2
	s.CP0[cop0EPC] = pc

	sr := s.CP0[cop0SR]
	s.CP0[cop0SR] = sr&^0x3f | (sr<<2)&0x3f

	if sr&srBEV != 0 {
		s.PC = bevVector
	} else {
		s.PC = exception
	}
}

// divide follows the R3000 results for division by zero and overflow.
func divide(n, d int32) (lo, hi uint32) {
	switch {
	case d == 0:
		if n >= 0 {
			return 0xffffffff, uint32(n)
		}
		return 1, uint32(n)
	case n == -0x80000000 && d == -1:
		return 0x80000000, 0
	}
	return uint32(n / d), uint32(n % d)
}
