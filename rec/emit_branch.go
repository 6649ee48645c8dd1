package rec

import (
	"github.com/sarchlab/psxrec/asm"
	"github.com/sarchlab/psxrec/insts"
	"github.com/sarchlab/psxrec/regalloc"
)

// branchOutcome is the statically known result of a branch condition.
type branchOutcome uint8

const (
	outcomeDynamic branchOutcome = iota
	outcomeTaken
	outcomeNotTaken
)

func staticOutcome(inst *insts.Instruction) branchOutcome {
	switch inst.Op {
	case insts.OpBEQ:
		if inst.Rs == inst.Rt {
			return outcomeTaken
		}
	case insts.OpBNE:
		if inst.Rs == inst.Rt {
			return outcomeNotTaken
		}
	case insts.OpBLEZ, insts.OpBGEZ, insts.OpBGEZAL:
		if inst.Rs == 0 {
			return outcomeTaken
		}
	case insts.OpBGTZ, insts.OpBLTZ, insts.OpBLTZAL:
		if inst.Rs == 0 {
			return outcomeNotTaken
		}
	}
	return outcomeDynamic
}

func regMask(g uint8) uint64 {
	if g == 0 {
		return 0
	}
	return 1 << g
}

// emitBranch translates a conditional branch and its delay slot and ends the
// block with a taken exit and a not-taken exit.
func (t *Translator) emitBranch(inst *insts.Instruction, pc uint32) {
	ds := pc + 4
	target := insts.BranchTarget(inst.Word, ds)
	next := pc + 8
	link := inst.Op == insts.OpBLTZAL || inst.Op == insts.OpBGEZAL
	twoRegs := inst.Op == insts.OpBEQ || inst.Op == insts.OpBNE

	if outcome := staticOutcome(inst); outcome != outcomeDynamic {
		if link {
			t.setConst(31, next)
		}
		t.emitDelaySlot()
		t.ra.Flush()
		if outcome == outcomeTaken {
			t.exitTo(target)
		} else {
			t.exitTo(next)
		}
		t.ctx.done = true
		return
	}

	operands := regMask(inst.Rs)
	if twoRegs {
		operands |= regMask(inst.Rt)
	}
	clobbers := uint64(0)
	if word, ok := t.peek(ds); ok {
		clobbers = insts.Writes(word)
	}
	if link {
		clobbers |= regMask(31)
	}

	// The delay slot may overwrite an operand, so the condition is captured
	// first. For BEQ/BNE the XOR of both operands stands in for the pair.
	captured := asm.Zero
	if operands&clobbers != 0 {
		captured = t.ra.AllocTemp()
		rs := t.use(inst.Rs)
		if twoRegs {
			rt := t.use(inst.Rt)
			t.buf.XOR(captured, rs, rt)
			t.release(rt)
		} else {
			t.buf.MOV(captured, rs)
		}
		t.release(rs)
	}

	if link {
		t.setConst(31, next)
	}
	t.emitDelaySlot()
	t.ra.Flush()

	// Branch on the inverted condition to the not-taken exit.
	var fix asm.Fixup
	if captured != asm.Zero {
		fix = t.emitSkip(inst.Op, captured, asm.Zero, true)
		t.ra.FreeTemp(captured)
	} else {
		rs := t.use(inst.Rs)
		rt := asm.Zero
		if twoRegs {
			rt = t.use(inst.Rt)
		}
		fix = t.emitSkip(inst.Op, rs, rt, false)
		t.release(rt)
		t.release(rs)
	}
	t.buf.NOP()

	snap := t.ra.Snapshot()
	t.exitTo(target)
	t.ra.Restore(snap)

	t.buf.Backpatch(fix)
	t.exitTo(next)
	t.ctx.done = true
}

// emitSkip emits a forward branch taken when the guest branch is not.
// With xored set, rs holds rs^rt for BEQ/BNE.
func (t *Translator) emitSkip(op insts.Op, rs, rt asm.Reg, xored bool) asm.Fixup {
	switch op {
	case insts.OpBEQ:
		if xored {
			return t.buf.BNEFwd(rs, asm.Zero)
		}
		return t.buf.BNEFwd(rs, rt)
	case insts.OpBNE:
		if xored {
			return t.buf.BEQFwd(rs, asm.Zero)
		}
		return t.buf.BEQFwd(rs, rt)
	case insts.OpBLEZ:
		return t.buf.BGTZFwd(rs)
	case insts.OpBGTZ:
		return t.buf.BLEZFwd(rs)
	case insts.OpBLTZ, insts.OpBLTZAL:
		return t.buf.BGEZFwd(rs)
	default:
		return t.buf.BLTZFwd(rs)
	}
}

// emitJump translates J and JAL.
func (t *Translator) emitJump(inst *insts.Instruction, pc uint32) {
	ds := pc + 4
	target := insts.JumpTarget(inst.Word, ds)

	if inst.Op == insts.OpJAL {
		t.setConst(31, pc+8)
	}
	t.emitDelaySlot()
	t.ra.Flush()
	t.exitTo(target)
	t.ctx.done = true
}

// emitJumpRegister translates JR and JALR. The target leaves in $v0.
func (t *Translator) emitJumpRegister(inst *insts.Instruction, pc uint32) {
	ds := pc + 4
	linkReg := uint8(0)
	if inst.Op == insts.OpJALR {
		linkReg = inst.Rd
	}

	clobbers := regMask(linkReg)
	if word, ok := t.peek(ds); ok {
		clobbers |= insts.Writes(word)
	}

	captured := asm.Zero
	if clobbers&regMask(inst.Rs) != 0 {
		captured = t.ra.AllocTemp()
		rs := t.ra.Bind(inst.Rs, regalloc.IntentLoad)
		t.buf.MOV(captured, rs)
		t.ra.Release(rs)
	}

	t.setConst(linkReg, pc+8)
	t.emitDelaySlot()
	t.ra.Flush()

	t.emitExitPrologue()
	if captured != asm.Zero {
		t.buf.MOV(asm.V0, captured)
		t.ra.FreeTemp(captured)
	} else {
		rs := t.use(inst.Rs)
		t.buf.MOV(asm.V0, rs)
		t.release(rs)
	}
	t.ra.ForgetPC()
	t.emitExitJump(ExitRegister, 0)
	t.ctx.done = true
}
