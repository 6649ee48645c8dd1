package rec

import (
	"github.com/sarchlab/psxrec/asm"
	"github.com/sarchlab/psxrec/insts"
	"github.com/sarchlab/psxrec/regalloc"
)

// physMask keeps the physical part of a guest address, dropping the
// KUSEG/KSEG0/KSEG1 segment bits.
const physMask = 0x1fffffff

func (t *Translator) emitLoad(inst *insts.Instruction) {
	if t.ctx.direct {
		t.emitLoadDirect(inst)
		return
	}

	var fn uint32
	switch inst.Op {
	case insts.OpLB, insts.OpLBU:
		fn = t.ext.MemRead8
	case insts.OpLH, insts.OpLHU:
		fn = t.ext.MemRead16
	default:
		fn = t.ext.MemRead32
	}

	base := t.use(inst.Rs)
	t.ra.PrepareCall(regalloc.CallerSaved)
	t.buf.JAL(fn)
	t.buf.ADDIU(asm.A0, base, int16(inst.Imm))
	t.release(base)
	t.ra.InvalidateAfterCall()

	if inst.Rt == 0 {
		return
	}

	dst := t.ra.Bind(inst.Rt, regalloc.IntentStore)
	switch inst.Op {
	case insts.OpLB:
		t.signExtend8(dst, asm.V0)
	case insts.OpLH:
		t.signExtend16(dst, asm.V0)
	default:
		t.buf.MOV(dst, asm.V0)
	}
	t.ra.MarkChanged(inst.Rt)
	t.ra.Release(dst)
}

func (t *Translator) emitLoadDirect(inst *insts.Instruction) {
	if inst.Rt == 0 {
		t.ra.MarkUndefined(0)
		return
	}

	base, off := t.lsuAddress(inst.Rs, int16(inst.Imm))
	dst := t.ra.Bind(inst.Rt, regalloc.IntentStore)

	switch inst.Op {
	case insts.OpLB:
		t.buf.LB(dst, base, off)
	case insts.OpLBU:
		t.buf.LBU(dst, base, off)
	case insts.OpLH:
		t.buf.LH(dst, base, off)
	case insts.OpLHU:
		t.buf.LHU(dst, base, off)
	default:
		t.buf.LW(dst, base, off)
	}

	t.ra.MarkChanged(inst.Rt)
	t.ra.Release(dst)
}

func (t *Translator) emitStore(inst *insts.Instruction) {
	if t.ctx.direct {
		t.emitStoreDirect(inst)
		return
	}

	var fn uint32
	switch inst.Op {
	case insts.OpSB:
		fn = t.ext.MemWrite8
	case insts.OpSH:
		fn = t.ext.MemWrite16
	default:
		fn = t.ext.MemWrite32
	}

	base := t.use(inst.Rs)
	val := t.use(inst.Rt)
	t.ra.PrepareCall(regalloc.CallerSaved)
	t.buf.MOV(asm.A1, val)
	t.buf.JAL(fn)
	t.buf.ADDIU(asm.A0, base, int16(inst.Imm))
	t.release(val)
	t.release(base)
	t.ra.InvalidateAfterCall()
}

func (t *Translator) emitStoreDirect(inst *insts.Instruction) {
	base, off := t.lsuAddress(inst.Rs, int16(inst.Imm))
	val := t.use(inst.Rt)

	switch inst.Op {
	case insts.OpSB:
		t.buf.SB(val, base, off)
	case insts.OpSH:
		t.buf.SH(val, base, off)
	default:
		t.buf.SW(val, base, off)
	}

	t.release(val)
}

// lsuAddress leaves the host address of guest register rs in $at and
// returns the base register and offset to use with imm. A known constant base
// is folded completely; otherwise the conversion is cached until rs changes.
func (t *Translator) lsuAddress(rs uint8, imm int16) (asm.Reg, int16) {
	if c, ok := t.ra.Const(rs); ok {
		host := t.cfg.MappedMemBase | ((c + uint32(int32(imm))) & physMask)
		hi, lo := asm.HiLo(host)
		t.buf.LUI(asm.AT, hi)
		t.ra.DropLSUBase()
		return asm.AT, int16(lo)
	}

	if !t.ra.LSUBase(rs) {
		src := t.ra.Bind(rs, regalloc.IntentLoad)
		t.emitAddressConversion(asm.AT, src, asm.V1)
		t.ra.Release(src)
		t.ra.SetLSUBase(rs)
	}
	return asm.AT, imm
}

// emitAddressConversion maps the guest address in src to its host address in
// the mapped window, using tmp as scratch.
func (t *Translator) emitAddressConversion(dst, src, tmp asm.Reg) {
	if t.cfg.HostMIPS32R2 {
		t.buf.EXT(dst, src, 0, 29)
	} else {
		t.buf.SLL(dst, src, 3)
		t.buf.SRL(dst, dst, 3)
	}
	t.buf.LUI(tmp, uint16(t.cfg.MappedMemBase>>16))
	t.buf.OR(dst, dst, tmp)
}

func (t *Translator) signExtend8(dst, src asm.Reg) {
	if t.cfg.HostMIPS32R2 {
		t.buf.SEB(dst, src)
		return
	}
	t.buf.SLL(dst, src, 24)
	t.buf.SRA(dst, dst, 24)
}

func (t *Translator) signExtend16(dst, src asm.Reg) {
	if t.cfg.HostMIPS32R2 {
		t.buf.SEH(dst, src)
		return
	}
	t.buf.SLL(dst, src, 16)
	t.buf.SRA(dst, dst, 16)
}
