package rec

import (
	"github.com/sarchlab/psxrec/insts"
	"github.com/sarchlab/psxrec/regalloc"
)

// ALU emitters. ADD, ADDI and SUB are emitted without overflow traps.
// Operations on known constants are folded into a constant load.

func (t *Translator) emitALUImm(inst *insts.Instruction) {
	if inst.Rt == 0 {
		t.ra.MarkUndefined(0)
		return
	}

	if c, ok := t.ra.Const(inst.Rs); ok {
		t.setConst(inst.Rt, evalImm(inst.Op, c, inst.Imm))
		return
	}

	src := t.ra.Bind(inst.Rs, regalloc.IntentLoad)
	dst := t.ra.Bind(inst.Rt, regalloc.IntentStore)

	switch inst.Op {
	case insts.OpADDI, insts.OpADDIU:
		t.buf.ADDIU(dst, src, int16(inst.Imm))
	case insts.OpSLTI:
		t.buf.SLTI(dst, src, int16(inst.Imm))
	case insts.OpSLTIU:
		t.buf.SLTIU(dst, src, int16(inst.Imm))
	case insts.OpANDI:
		t.buf.ANDI(dst, src, inst.Imm)
	case insts.OpORI:
		t.buf.ORI(dst, src, inst.Imm)
	case insts.OpXORI:
		t.buf.XORI(dst, src, inst.Imm)
	}

	t.ra.MarkChanged(inst.Rt)
	t.ra.Release(dst)
	t.ra.Release(src)
}

func (t *Translator) emitLUI(inst *insts.Instruction) {
	t.setConst(inst.Rt, uint32(inst.Imm)<<16)
}

func (t *Translator) emitALUReg(inst *insts.Instruction) {
	if inst.Rd == 0 {
		t.ra.MarkUndefined(0)
		return
	}

	a, aok := t.ra.Const(inst.Rs)
	b, bok := t.ra.Const(inst.Rt)
	if aok && bok {
		t.setConst(inst.Rd, evalReg(inst.Op, a, b))
		return
	}

	rs := t.use(inst.Rs)
	rt := t.use(inst.Rt)
	rd := t.ra.Bind(inst.Rd, regalloc.IntentStore)

	switch inst.Op {
	case insts.OpADD, insts.OpADDU:
		t.buf.ADDU(rd, rs, rt)
	case insts.OpSUB, insts.OpSUBU:
		t.buf.SUBU(rd, rs, rt)
	case insts.OpAND:
		t.buf.AND(rd, rs, rt)
	case insts.OpOR:
		t.buf.OR(rd, rs, rt)
	case insts.OpXOR:
		t.buf.XOR(rd, rs, rt)
	case insts.OpNOR:
		t.buf.NOR(rd, rs, rt)
	case insts.OpSLT:
		t.buf.SLT(rd, rs, rt)
	case insts.OpSLTU:
		t.buf.SLTU(rd, rs, rt)
	case insts.OpSLLV:
		t.buf.SLLV(rd, rt, rs)
	case insts.OpSRLV:
		t.buf.SRLV(rd, rt, rs)
	case insts.OpSRAV:
		t.buf.SRAV(rd, rt, rs)
	}

	t.ra.MarkChanged(inst.Rd)
	t.ra.Release(rd)
	t.release(rt)
	t.release(rs)
}

func (t *Translator) emitShift(inst *insts.Instruction) {
	if inst.Rd == 0 {
		t.ra.MarkUndefined(0)
		return
	}

	sa := uint32(inst.Shamt)
	if c, ok := t.ra.Const(inst.Rt); ok {
		t.setConst(inst.Rd, evalReg(inst.Op, sa, c))
		return
	}

	rt := t.ra.Bind(inst.Rt, regalloc.IntentLoad)
	rd := t.ra.Bind(inst.Rd, regalloc.IntentStore)

	switch inst.Op {
	case insts.OpSLL:
		t.buf.SLL(rd, rt, sa)
	case insts.OpSRL:
		t.buf.SRL(rd, rt, sa)
	case insts.OpSRA:
		t.buf.SRA(rd, rt, sa)
	}

	t.ra.MarkChanged(inst.Rd)
	t.ra.Release(rd)
	t.ra.Release(rt)
}

func evalImm(op insts.Op, rs uint32, imm uint16) uint32 {
	simm := uint32(int32(int16(imm)))
	switch op {
	case insts.OpADDI, insts.OpADDIU:
		return rs + simm
	case insts.OpSLTI:
		return boolWord(int32(rs) < int32(simm))
	case insts.OpSLTIU:
		return boolWord(rs < simm)
	case insts.OpANDI:
		return rs & uint32(imm)
	case insts.OpORI:
		return rs | uint32(imm)
	case insts.OpXORI:
		return rs ^ uint32(imm)
	}
	return 0
}

// evalReg folds a register operation. For shifts a is the shift amount
// (the rs value for the variable forms) and b the shifted value.
func evalReg(op insts.Op, a, b uint32) uint32 {
	switch op {
	case insts.OpADD, insts.OpADDU:
		return a + b
	case insts.OpSUB, insts.OpSUBU:
		return a - b
	case insts.OpAND:
		return a & b
	case insts.OpOR:
		return a | b
	case insts.OpXOR:
		return a ^ b
	case insts.OpNOR:
		return ^(a | b)
	case insts.OpSLT:
		return boolWord(int32(a) < int32(b))
	case insts.OpSLTU:
		return boolWord(a < b)
	case insts.OpSLL, insts.OpSLLV:
		return b << (a & 31)
	case insts.OpSRL, insts.OpSRLV:
		return b >> (a & 31)
	case insts.OpSRA, insts.OpSRAV:
		return uint32(int32(b) >> (a & 31))
	}
	return 0
}

func boolWord(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
