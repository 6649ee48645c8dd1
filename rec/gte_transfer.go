package rec

import (
	"github.com/sarchlab/psxrec/asm"
	"github.com/sarchlab/psxrec/insts"
	"github.com/sarchlab/psxrec/regalloc"
)

// LWC2/SWC2 translation.
//
// Consecutive LWC2/SWC2 instructions sharing a base register are translated
// as one run. NOPs inside the run are skipped. Each transfer has two halves:
// a memory load then a GTE register write for LWC2, a GTE register read then
// a memory store for SWC2. The pipelined path keeps up to four first halves
// in flight in $a0-$a3 so the second halves do not stall on them.

const transferQueueSize = 4

var transferQueueRegs = [transferQueueSize]asm.Reg{asm.A0, asm.A1, asm.A2, asm.A3}

// gteTransfer is one LWC2 or SWC2 of a run.
type gteTransfer struct {
	store bool
	reg   int   // GTE data register
	imm   int16 // memory offset from the base
}

// countGTETransfers returns how many words, starting with first, belong to
// the run. NOPs between transfers are counted, NOPs after the last are not.
func (t *Translator) countGTETransfers(first uint32) int {
	if t.ctx.inDelaySlot {
		return 1
	}

	rs := insts.Rs(first)
	count, nops := 0, 0
	word := first
	pc := t.ctx.pc
	for {
		switch {
		case word == 0:
			nops++
		case insts.IsGTETransfer(word) && insts.Rs(word) == rs:
			nops = 0
		default:
			return count - nops
		}
		count++

		next, ok := t.peek(pc)
		if !ok {
			return count - nops
		}
		word = next
		pc += 4
	}
}

// emitGTETransfers translates the run starting with word at pc.
func (t *Translator) emitGTETransfers(word, pc uint32) {
	count := t.countGTETransfers(word)
	rs := insts.Rs(word)

	var run []gteTransfer
	for i := 0; i < count; i++ {
		addr := pc + uint32(i)*4
		w := word
		if i > 0 {
			w, _ = t.fetch(addr)
			t.ctx.count++
		}
		if i > 0 {
			t.ctx.order = append(t.ctx.order, addr)
		}
		if w == 0 {
			continue
		}
		run = append(run, gteTransfer{
			store: insts.Opcode(w) == 0x3a,
			reg:   int(insts.Rt(w)),
			imm:   insts.SImm16(w),
		})
	}
	t.ctx.pc = pc + uint32(count)*4

	switch {
	case !t.ctx.direct:
		t.emitTransfersCallOut(rs, run)
	case t.cfg.GTEMemPipelining:
		t.emitTransfersPipelined(rs, run)
	default:
		t.emitTransfersSimple(rs, run)
	}
}

// emitTransfersCallOut goes through the memory call-outs, one transfer at a
// time. The base must survive the calls.
func (t *Translator) emitTransfersCallOut(rs uint8, run []gteTransfer) {
	base := asm.Zero
	if rs != 0 {
		base = t.ra.BindSaved(rs, regalloc.IntentLoad)
	}

	for _, tr := range run {
		if tr.store {
			t.emitMFC2(asm.A1, tr.reg)
			t.ra.PrepareCall(regalloc.CallerSaved)
			t.buf.JAL(t.ext.MemWrite32)
			t.buf.ADDIU(asm.A0, base, tr.imm)
			t.ra.InvalidateAfterCall()
		} else {
			t.ra.PrepareCall(regalloc.CallerSaved)
			t.buf.JAL(t.ext.MemRead32)
			t.buf.ADDIU(asm.A0, base, tr.imm)
			t.ra.InvalidateAfterCall()
			t.emitMTC2(asm.V0, tr.reg)
		}
	}

	t.release(base)
}

// gteBase converts guest register rs into a host address once per run.
// $at is reused when the load/store emitters already converted rs.
func (t *Translator) gteBase(rs uint8) asm.Reg {
	if rs != 0 && t.ra.LSUBase(rs) {
		return asm.AT
	}
	src := t.use(rs)
	t.emitAddressConversion(asm.T0, src, asm.T1)
	t.release(src)
	return asm.T0
}

// emitTransfersSimple emits each transfer's two halves back to back.
func (t *Translator) emitTransfersSimple(rs uint8, run []gteTransfer) {
	base := t.gteBase(rs)
	for _, tr := range run {
		if tr.store {
			t.emitMFC2(asm.A1, tr.reg)
			t.buf.SW(asm.A1, base, tr.imm)
		} else {
			t.buf.LW(asm.A1, base, tr.imm)
			t.emitMTC2(asm.A1, tr.reg)
		}
	}
}

// transferQueue tracks the in-flight first halves of the pipelined path.
type transferQueue struct {
	entries [transferQueueSize]gteTransfer
	head    int
	n       int
}

func (q *transferQueue) full() bool {
	return q.n == transferQueueSize
}

func (q *transferQueue) push(tr gteTransfer) asm.Reg {
	slot := (q.head + q.n) % transferQueueSize
	q.entries[slot] = tr
	q.n++
	return transferQueueRegs[slot]
}

func (q *transferQueue) pop() (gteTransfer, asm.Reg) {
	slot := q.head
	q.head = (q.head + 1) % transferQueueSize
	q.n--
	return q.entries[slot], transferQueueRegs[slot]
}

// emitTransfersPipelined holds up to four first halves in $a0-$a3. The
// queue holds one kind at a time and is drained in order when the kind
// changes, when it is full and at the end of the run. The base is converted
// the first time a memory access needs it.
func (t *Translator) emitTransfersPipelined(rs uint8, run []gteTransfer) {
	var q transferQueue
	base := asm.Zero
	converted := false

	needBase := func() asm.Reg {
		if !converted {
			base = t.gteBase(rs)
			converted = true
		}
		return base
	}

	complete := func() {
		tr, reg := q.pop()
		if tr.store {
			t.buf.SW(reg, needBase(), tr.imm)
		} else {
			t.emitMTC2(reg, tr.reg)
		}
	}

	for _, tr := range run {
		if q.n > 0 && q.entries[q.head].store != tr.store {
			for q.n > 0 {
				complete()
			}
		}
		if q.full() {
			complete()
		}

		if tr.store {
			reg := q.push(tr)
			t.emitMFC2(reg, tr.reg)
		} else {
			b := needBase()
			reg := q.push(tr)
			t.buf.LW(reg, b, tr.imm)
		}
	}

	for q.n > 0 {
		complete()
	}
}
