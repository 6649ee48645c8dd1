package rec

import (
	"github.com/sarchlab/psxrec/asm"
	"github.com/sarchlab/psxrec/guest"
	"github.com/sarchlab/psxrec/insts"
	"github.com/sarchlab/psxrec/regalloc"
)

// GTE (coprocessor 2) emitters.
//
// emitMFC2 and emitMTC2 only use $t1-$t3 as scratch. $t0 and $a0-$a3 belong
// to the LWC2/SWC2 emitter, which calls them with its queue registers.

// GTE data registers with special read or write behaviour.
const (
	gteSXY0 = 12
	gteSXY1 = 13
	gteSXY2 = 14
	gteSXYP = 15
	gteIR1  = 9
	gteIR2  = 10
	gteIR3  = 11
	gteIRGB = 28
	gteORGB = 29
	gteLZCS = 30
	gteLZCR = 31
)

func cp2d(r int) int16 { return guest.OffCP2D(r) }
func cp2c(r int) int16 { return guest.OffCP2C(r) }

// emitGTECommand calls the registered handler for a GTE command, or the
// interpreter when there is none.
func (t *Translator) emitGTECommand(inst *insts.Instruction, pc uint32) {
	cmd, ok := insts.LookupGTE(inst.Word)
	addr := t.ext.GTE[insts.Funct(inst.Word)]
	if !ok || addr == 0 {
		t.emitInterpreterCall(inst.Word, pc)
		return
	}

	t.ra.PrepareCall(regalloc.CallerSaved)
	t.buf.JAL(addr)
	if cmd.Args == insts.GTEOneArg {
		t.buf.LI16(asm.A0, insts.GTEArgument(inst.Word))
	} else {
		t.buf.NOP()
	}
	t.ra.InvalidateAfterCall()
}

func (t *Translator) emitCFC2Op(inst *insts.Instruction) {
	if inst.Rt == 0 {
		return
	}

	t.ra.MarkUndefined(inst.Rt)
	rt := t.ra.Bind(inst.Rt, regalloc.IntentStore)
	t.buf.LW(rt, regalloc.StateBase, cp2c(int(inst.Rd)))
	t.ra.MarkChanged(inst.Rt)
	t.ra.Release(rt)
}

func (t *Translator) emitCTC2Op(inst *insts.Instruction) {
	rt := t.use(inst.Rt)
	t.emitCTC2(rt, int(inst.Rd))
	t.release(rt)
}

func (t *Translator) emitMTC2Op(inst *insts.Instruction) {
	rt := t.use(inst.Rt)
	t.emitMTC2(rt, int(inst.Rd))
	t.release(rt)
}

// emitMFC2Op translates MFC2. The GTE result arrives one instruction late,
// so when the next instruction reads the destination it must see the old
// value: that instruction is emitted first.
func (t *Translator) emitMFC2Op(inst *insts.Instruction, pc uint32) {
	if inst.Rt == 0 {
		return
	}

	if !t.ctx.inDelaySlot {
		npc := t.ctx.pc
		next, ok := t.peek(npc)
		if ok && insts.Reads(next)&regMask(inst.Rt) != 0 {
			if insts.IsBranchOrJump(next) {
				t.log.V(0).Info("unhandled MFC2 load delay read by branch", "pc", hex32(npc))
			} else {
				t.log.V(1).Info("emitting MFC2 after its load-delay consumer", "pc", hex32(npc))
				t.ctx.order = t.ctx.order[:len(t.ctx.order)-1]
				t.ctx.pc += 4
				t.emit(next, npc)
				t.ctx.order = append(t.ctx.order, pc)
			}
		}
	}

	t.ra.MarkUndefined(inst.Rt)
	rt := t.ra.Bind(inst.Rt, regalloc.IntentStore)
	t.emitMFC2(rt, int(inst.Rd))
	t.ra.MarkChanged(inst.Rt)
	t.ra.Release(rt)
}

// emitMFC2 reads GTE data register reg into host register rt.
func (t *Translator) emitMFC2(rt asm.Reg, reg int) {
	b := t.buf
	base := regalloc.StateBase

	switch reg {
	case 1, 3, 5, 8, gteIR1, gteIR2, gteIR3:
		b.LH(rt, base, cp2d(reg))
		t.writeBackMFC2(rt, reg)

	case 7, 16, 17, 18, 19:
		b.LHU(rt, base, cp2d(reg))
		t.writeBackMFC2(rt, reg)

	case gteSXYP:
		b.LW(rt, base, cp2d(gteSXY2))
		t.writeBackMFC2(rt, reg)

	case gteIRGB, gteORGB:
		// Pack IR1-IR3, each shifted right by 7 and clamped to 0..0x1f, into
		// 5:5:5 color.
		limTmp, limMax := asm.T2, asm.T3

		b.LH(rt, base, cp2d(gteIR1))
		b.LH(asm.T1, base, cp2d(gteIR2))
		b.LI16(limMax, 0x1f)

		b.SRA(rt, rt, 7)
		t.emitLIM(rt, asm.Zero, limMax, limTmp)

		b.SRA(asm.T1, asm.T1, 7)
		t.emitLIM(asm.T1, asm.Zero, limMax, limTmp)
		// IR3 goes into the free temp now to hide the load latency.
		b.LH(limTmp, base, cp2d(gteIR3))
		t.emitInsert(rt, asm.T1, 5)

		b.SRA(asm.T1, limTmp, 7)
		t.emitLIM(asm.T1, asm.Zero, limMax, limTmp)
		t.emitInsert(rt, asm.T1, 10)

		t.writeBackMFC2(rt, gteORGB)

	default:
		b.LW(rt, base, cp2d(reg))
	}
}

func (t *Translator) writeBackMFC2(rt asm.Reg, reg int) {
	if !t.cfg.SkipMFC2Writeback {
		t.buf.SW(rt, regalloc.StateBase, cp2d(reg))
	}
}

// emitInsert ORs the 5-bit field in src into rt at bit pos. src is
// clobbered without MIPS32r2.
func (t *Translator) emitInsert(rt, src asm.Reg, pos uint32) {
	if t.cfg.HostMIPS32R2 {
		t.buf.INS(rt, src, pos, 5)
		return
	}
	t.buf.SLL(src, src, pos)
	t.buf.OR(rt, rt, src)
}

// emitLIM clamps rt to [min, max]. tmp is overwritten.
func (t *Translator) emitLIM(rt, min, max, tmp asm.Reg) {
	t.buf.SLT(tmp, rt, min)
	t.buf.MOVN(rt, min, tmp)
	t.buf.SLT(tmp, max, rt)
	t.buf.MOVN(rt, max, tmp)
}

// emitMTC2 writes host register rt into GTE data register reg.
func (t *Translator) emitMTC2(rt asm.Reg, reg int) {
	b := t.buf
	base := regalloc.StateBase

	switch reg {
	case gteSXYP:
		// Push onto the screen XY FIFO.
		b.LW(asm.T1, base, cp2d(gteSXY1))
		b.LW(asm.T2, base, cp2d(gteSXY2))
		b.SW(rt, base, cp2d(gteSXY2))
		b.SW(rt, base, cp2d(gteSXYP))
		b.SW(asm.T1, base, cp2d(gteSXY0))
		b.SW(asm.T2, base, cp2d(gteSXY1))

	case gteIRGB:
		b.SW(rt, base, cp2d(gteIRGB))

		b.ANDI(asm.T1, rt, 0x1f)
		b.SLL(asm.T1, asm.T1, 7)
		b.SW(asm.T1, base, cp2d(gteIR1))

		b.ANDI(asm.T1, rt, 0x1f<<5)
		b.SLL(asm.T1, asm.T1, 2)
		b.SW(asm.T1, base, cp2d(gteIR2))

		b.ANDI(asm.T1, rt, 0x1f<<10)
		b.SRL(asm.T1, asm.T1, 3)
		b.SW(asm.T1, base, cp2d(gteIR3))

	case gteLZCS:
		// LZCR counts leading sign bits: leading zeros of the value, or of
		// its complement when negative.
		b.SW(rt, base, cp2d(gteLZCS))
		b.SLT(asm.T2, rt, asm.Zero)
		b.NOR(asm.T1, asm.Zero, rt)
		b.MOVZ(asm.T1, rt, asm.T2)
		b.CLZ(asm.T1, asm.T1)
		b.SW(asm.T1, base, cp2d(gteLZCR))

	case gteLZCR:
		// Read-only.

	default:
		b.SW(rt, base, cp2d(reg))
	}
}

// emitCTC2 writes host register rt into GTE control register reg.
func (t *Translator) emitCTC2(rt asm.Reg, reg int) {
	b := t.buf
	base := regalloc.StateBase

	switch reg {
	case 4, 12, 20, 26, 27, 29, 30:
		t.signExtend16(asm.T1, rt)
		b.SW(asm.T1, base, cp2c(reg))

	case 31:
		// FLAG: bits 0-11 are hardwired to zero and bit 31 summarizes the
		// error bits in 0x7f87e000.
		b.LI32(asm.T1, 0x7ffff000)
		b.AND(asm.T1, rt, asm.T1)
		b.LI32(asm.T2, 0x7f87e000)
		b.AND(asm.T2, asm.T1, asm.T2)
		b.LUI(asm.T3, 0x8000)
		b.OR(asm.T3, asm.T1, asm.T3)
		b.MOVN(asm.T1, asm.T3, asm.T2)
		b.SW(asm.T1, base, cp2c(reg))

	default:
		b.SW(rt, base, cp2c(reg))
	}
}
