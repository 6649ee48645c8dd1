// Package rec translates R3000A guest code into MIPS32 host blocks.
//
// A Translator turns the guest instructions starting at a PC into one
// sealed block of host code. The block runs with the guest-state pointer in
// $s8 and its start PC in $v0, and it returns to the dispatcher with the next
// guest PC in $v0 and the elapsed cycles in $v1. Guest registers are cached
// in host registers by a regalloc.Allocator and written back before every
// exit.
//
// Instructions the translator does not emit inline are handed to the
// interpreter call-out, one at a time.
package rec

import (
	"errors"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/sarchlab/psxrec/asm"
	"github.com/sarchlab/psxrec/guest"
	"github.com/sarchlab/psxrec/insts"
	"github.com/sarchlab/psxrec/regalloc"
)

// ErrUnalignedPC is returned when a block start is not word aligned.
var ErrUnalignedPC = errors.New("rec: unaligned guest PC")

// blockContext is the per-block translation state.
type blockContext struct {
	start uint32
	// pc is the address of the next guest word to translate.
	pc uint32

	inDelaySlot bool
	done        bool
	count       int

	mult   uint32
	direct bool

	words map[uint32]uint32
	order []uint32
	exits []Exit
	err   error
}

// Translator compiles guest blocks into an arena.
type Translator struct {
	cfg     *Config
	ext     Externals
	code    CodeReader
	arena   *asm.Arena
	decoder *insts.Decoder
	ra      *regalloc.Allocator
	log     logr.Logger

	buf *asm.Buffer
	ctx blockContext
}

// Option configures a Translator.
type Option func(*Translator)

// WithLogger sets the logger for translation events.
func WithLogger(log logr.Logger) Option {
	return func(t *Translator) {
		t.log = log
	}
}

// NewTranslator creates a translator that reads guest code from code and
// places host code in arena.
func NewTranslator(
	cfg *Config,
	ext Externals,
	code CodeReader,
	arena *asm.Arena,
	opts ...Option,
) (*Translator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid recompiler config: %w", err)
	}
	if err := ext.Validate(); err != nil {
		return nil, fmt.Errorf("invalid externals: %w", err)
	}

	t := &Translator{
		cfg:     cfg.Clone(),
		ext:     ext,
		code:    code,
		arena:   arena,
		decoder: insts.NewDecoder(),
		log:     logr.Discard(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.ra = regalloc.New(regalloc.WithLogger(t.log.WithName("regalloc")))

	return t, nil
}

// Config returns a copy of the translation options.
func (t *Translator) Config() *Config {
	return t.cfg.Clone()
}

// Translate compiles the block starting at pc.
func (t *Translator) Translate(pc uint32) (*Block, error) {
	if pc&3 != 0 {
		return nil, fmt.Errorf("translate 0x%08x: %w", pc, ErrUnalignedPC)
	}

	t.buf = t.arena.Buffer(256)
	t.ctx = blockContext{
		start:  pc,
		pc:     pc,
		mult:   t.ext.Host.CycleMultiplier(),
		direct: t.cfg.DirectMemAccess && t.ext.Host.MemMapped(),
		words:  make(map[uint32]uint32),
	}
	t.ra.Reset(t.buf, pc, t.ext.ReturnAddr == 0)

	for !t.ctx.done {
		if t.ctx.count >= t.cfg.MaxBlockInstructions {
			t.emitContinuation()
			break
		}

		cur := t.ctx.pc
		word, err := t.fetch(cur)
		if err != nil {
			if cur == t.ctx.start {
				return nil, fmt.Errorf("translate 0x%08x: %w", pc, err)
			}
			t.emitContinuation()
			break
		}
		t.ctx.pc += 4
		t.emit(word, cur)
	}

	if t.ctx.err != nil {
		return nil, fmt.Errorf("translate 0x%08x: %w", pc, t.ctx.err)
	}

	code := t.buf.Seal()
	if err := t.arena.Commit(code); err != nil {
		return nil, fmt.Errorf("translate 0x%08x: %w", pc, err)
	}

	fp, err := Fingerprint(wordCache(t.ctx.words), t.ctx.start, t.ctx.pc)
	if err != nil {
		return nil, fmt.Errorf("translate 0x%08x: %w", pc, err)
	}

	block := &Block{
		StartPC:      t.ctx.start,
		EndPC:        t.ctx.pc,
		Code:         code,
		Instructions: int(t.ctx.pc-t.ctx.start) / 4,
		Cycles:       t.cycles(),
		Exits:        t.ctx.exits,
		Order:        t.ctx.order,
		Fingerprint:  fp,
	}

	t.log.V(1).Info("translated block",
		"pc", hex32(block.StartPC),
		"end", hex32(block.EndPC),
		"host", hex32(code.Base()),
		"words", code.Len(),
		"exits", len(block.Exits))

	return block, nil
}

// wordCache serves the guest words fetched during one translation.
type wordCache map[uint32]uint32

func (w wordCache) ReadCode(pc uint32) (uint32, error) {
	word, ok := w[pc]
	if !ok {
		return 0, fmt.Errorf("guest word at 0x%08x was not fetched", pc)
	}
	return word, nil
}

func (t *Translator) fetch(pc uint32) (uint32, error) {
	if word, ok := t.ctx.words[pc]; ok {
		return word, nil
	}
	word, err := t.code.ReadCode(pc)
	if err != nil {
		return 0, err
	}
	t.ctx.words[pc] = word
	return word, nil
}

// peek reads a guest word without consuming it.
func (t *Translator) peek(pc uint32) (uint32, bool) {
	word, err := t.fetch(pc)
	return word, err == nil
}

// emit translates one guest instruction at pc. The cursor already points
// past it.
func (t *Translator) emit(word, pc uint32) {
	t.ctx.order = append(t.ctx.order, pc)
	t.ctx.count++

	if word == 0 {
		return
	}

	inst := t.decoder.Decode(word)
	switch inst.Op {
	case insts.OpADDI, insts.OpADDIU, insts.OpSLTI, insts.OpSLTIU,
		insts.OpANDI, insts.OpORI, insts.OpXORI:
		t.emitALUImm(inst)
	case insts.OpLUI:
		t.emitLUI(inst)
	case insts.OpADD, insts.OpADDU, insts.OpSUB, insts.OpSUBU,
		insts.OpAND, insts.OpOR, insts.OpXOR, insts.OpNOR,
		insts.OpSLT, insts.OpSLTU, insts.OpSLLV, insts.OpSRLV, insts.OpSRAV:
		t.emitALUReg(inst)
	case insts.OpSLL, insts.OpSRL, insts.OpSRA:
		t.emitShift(inst)

	case insts.OpLB, insts.OpLBU, insts.OpLH, insts.OpLHU, insts.OpLW:
		t.emitLoad(inst)
	case insts.OpSB, insts.OpSH, insts.OpSW:
		t.emitStore(inst)

	case insts.OpBEQ, insts.OpBNE, insts.OpBLEZ, insts.OpBGTZ,
		insts.OpBLTZ, insts.OpBGEZ, insts.OpBLTZAL, insts.OpBGEZAL:
		t.emitBranch(inst, pc)
	case insts.OpJ, insts.OpJAL:
		t.emitJump(inst, pc)
	case insts.OpJR, insts.OpJALR:
		t.emitJumpRegister(inst, pc)

	case insts.OpSYSCALL, insts.OpBREAK:
		t.emitException(word, pc)

	case insts.OpMFC2:
		t.emitMFC2Op(inst, pc)
	case insts.OpCFC2:
		t.emitCFC2Op(inst)
	case insts.OpMTC2:
		t.emitMTC2Op(inst)
	case insts.OpCTC2:
		t.emitCTC2Op(inst)
	case insts.OpCOP2:
		t.emitGTECommand(inst, pc)
	case insts.OpLWC2, insts.OpSWC2:
		t.emitGTETransfers(word, pc)

	default:
		// Multiply unit, unaligned accesses, COP0 and reserved words.
		t.emitInterpreterCall(word, pc)
	}
}

// emitDelaySlot translates the instruction at the cursor as a delay slot.
func (t *Translator) emitDelaySlot() {
	pc := t.ctx.pc
	word, err := t.fetch(pc)
	t.ctx.pc += 4
	if err != nil {
		t.ctx.err = fmt.Errorf("delay slot at 0x%08x: %w", pc, err)
		return
	}

	if insts.IsBranchOrJump(word) {
		t.log.V(0).Info("branch in delay slot ignored", "pc", hex32(pc))
		t.ctx.order = append(t.ctx.order, pc)
		t.ctx.count++
		return
	}

	t.ctx.inDelaySlot = true
	t.emit(word, pc)
	t.ctx.inDelaySlot = false
}

// emitInterpreterCall hands one guest instruction to the interpreter, with
// the opcode in $a0 and its PC in $a1. The interpreter may change any guest
// register, so every binding is written back and dropped.
func (t *Translator) emitInterpreterCall(word, pc uint32) {
	t.ra.PrepareCall(regalloc.All)
	t.buf.LI32(asm.A0, word)
	if asm.LI32Len(pc) == 1 {
		t.buf.JAL(t.ext.Interpreter)
		t.buf.LI32(asm.A1, pc)
	} else {
		t.buf.LI32(asm.A1, pc)
		t.buf.JAL(t.ext.Interpreter)
		t.buf.NOP()
	}
	t.ra.ForgetGuests()
	t.ra.InvalidateAfterCall()
}

// emitException runs SYSCALL or BREAK in the interpreter and leaves the
// block with the PC it stored in the guest state.
func (t *Translator) emitException(word, pc uint32) {
	t.emitInterpreterCall(word, pc)
	if t.ctx.inDelaySlot {
		return
	}

	t.ra.Flush()
	t.emitExitPrologue()
	t.buf.LW(asm.V0, regalloc.StateBase, guest.OffPC)
	t.ra.ForgetPC()
	t.emitExitJump(ExitException, 0)
	t.ctx.done = true
}

// emitContinuation ends the block before the instruction at the cursor.
func (t *Translator) emitContinuation() {
	t.ra.Flush()
	t.exitTo(t.ctx.pc)
	t.ctx.done = true
}

// Exit protocol.

// cycles converts the instructions consumed so far into cycles.
func (t *Translator) cycles() uint32 {
	n := uint64(t.ctx.pc-t.ctx.start) / 4
	return uint32((n * uint64(t.ctx.mult)) >> 8)
}

// emitExitPrologue reloads $ra in indirect-return mode when a call has
// clobbered it.
func (t *Translator) emitExitPrologue() {
	if t.ext.ReturnAddr == 0 && !t.ra.RAValid() {
		t.buf.LW(asm.RA, asm.SP, 16)
		t.ra.SetRAValid(true)
	}
}

func (t *Translator) useFastPath(target uint32) bool {
	return t.ext.ReturnAddr != 0 && t.ext.FastReturnAddr != 0 && target == t.ctx.start
}

// exitTo leaves the block for a known guest PC.
func (t *Translator) exitTo(target uint32) {
	t.emitExitPrologue()
	if t.useFastPath(target) {
		t.emitExitJump(ExitFast, target)
		return
	}
	t.ra.LoadPC(target)
	t.emitExitJump(ExitKnown, target)
}

// emitExitJump emits the jump back to the dispatcher with the cycle count
// loaded into $v1 by the jump's delay slot.
func (t *Translator) emitExitJump(kind ExitKind, target uint32) {
	cycles := t.cycles()
	if cycles > 0xffff {
		t.buf.LUI(asm.V1, uint16(cycles>>16))
	}

	offset := t.buf.Len()
	switch {
	case kind == ExitFast:
		t.buf.J(t.ext.FastReturnAddr)
	case t.ext.ReturnAddr != 0:
		t.buf.J(t.ext.ReturnAddr)
	default:
		t.buf.JR(asm.RA)
	}

	if cycles > 0xffff {
		t.buf.ORI(asm.V1, asm.V1, uint16(cycles))
	} else {
		t.buf.LI16(asm.V1, uint16(cycles))
	}

	t.ctx.exits = append(t.ctx.exits, Exit{Kind: kind, Target: target, Offset: offset})
}

// Register helpers.

// use binds g for reading. Register 0 maps to $zero.
func (t *Translator) use(g uint8) asm.Reg {
	if g == 0 {
		return asm.Zero
	}
	return t.ra.Bind(g, regalloc.IntentLoad)
}

func (t *Translator) release(r asm.Reg) {
	if r != asm.Zero {
		t.ra.Release(r)
	}
}

// setConst writes a compile-time value into guest register g.
func (t *Translator) setConst(g uint8, value uint32) {
	if g == 0 {
		return
	}
	r := t.ra.Bind(g, regalloc.IntentStore)
	t.buf.LI32(r, value)
	t.ra.MarkChanged(g)
	t.ra.SetConst(g, value)
	t.ra.Release(r)
}

func hex32(v uint32) string {
	return fmt.Sprintf("0x%08x", v)
}
