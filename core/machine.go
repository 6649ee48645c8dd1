// Package core runs translated blocks.
//
// A Machine owns the pieces a dispatcher needs: a translator, a block cache,
// a code arena and a host executor. Guest memory and the guest-state record
// live in the executor's address space, so translated code reaches them with
// ordinary loads and stores. Memory call-outs, GTE handlers and the
// interpreter are Go natives registered at fixed host addresses.
package core

import (
	"errors"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/sarchlab/psxrec/asm"
	"github.com/sarchlab/psxrec/cache"
	"github.com/sarchlab/psxrec/emu"
	"github.com/sarchlab/psxrec/guest"
	"github.com/sarchlab/psxrec/insts"
	"github.com/sarchlab/psxrec/loader"
	"github.com/sarchlab/psxrec/rec"
)

// ErrNoCode is returned when a guest PC lies outside RAM and BIOS.
var ErrNoCode = errors.New("core: no guest code at address")

// GTEHandler implements one GTE command on the guest state. arg is the
// command argument for one-argument commands and 0 otherwise.
type GTEHandler func(s *guest.State, arg uint32)

// Stats holds dispatcher statistics.
type Stats struct {
	// Cycles is the total number of guest cycles reported by blocks.
	Cycles uint64
	// BlocksRun is the number of block executions.
	BlocksRun uint64
	// Translations is the number of blocks translated.
	Translations uint64
	// Retranslations counts blocks dropped because their guest code
	// changed.
	Retranslations uint64
	// ArenaFlushes counts code arena exhaustions.
	ArenaFlushes uint64
	// FingerprintChecks counts cached blocks rehashed because guest memory
	// under them was written since they were last checked.
	FingerprintChecks uint64

	MemReads         uint64
	MemWrites        uint64
	InterpreterCalls uint64
	GTECalls         [64]uint64
	Exceptions       uint64
}

// StopReason tells why Run returned.
type StopReason uint8

// Stop reasons.
const (
	// StopCycles means the cycle budget was used up.
	StopCycles StopReason = iota
	// StopException means a SYSCALL or BREAK was executed.
	StopException
)

func (r StopReason) String() string {
	switch r {
	case StopCycles:
		return "cycles"
	case StopException:
		return "exception"
	}
	return fmt.Sprintf("StopReason(%d)", uint8(r))
}

// RunResult describes a Run.
type RunResult struct {
	// PC is the guest PC execution would continue at.
	PC     uint32
	Cycles uint64
	Blocks uint64
	Reason StopReason
}

// Machine is a block dispatcher running on the host executor.
type Machine struct {
	cfg      *rec.Config
	cacheCfg cache.Config
	codeSize uint32
	log      logr.Logger

	indirect bool
	fastPath bool
	mapped   bool
	clobber  bool

	emu    *emu.Emulator
	arena  *asm.Arena
	blocks *cache.Cache
	tr     *rec.Translator

	decoder *insts.Decoder
	gte     map[insts.GTEOp]GTEHandler
	stopped bool
	stats   Stats

	// verified maps a block start PC to the memory write generation its
	// guest code was last known to match.
	verified map[uint32]uint64
}

// Option configures a Machine.
type Option func(*Machine)

// WithConfig sets the translation options.
func WithConfig(cfg *rec.Config) Option {
	return func(m *Machine) {
		m.cfg = cfg.Clone()
	}
}

// WithCacheConfig sets the block cache geometry.
func WithCacheConfig(cfg cache.Config) Option {
	return func(m *Machine) {
		m.cacheCfg = cfg
	}
}

// WithCodeSize sets the size of the code arena in bytes.
func WithCodeSize(size uint32) Option {
	return func(m *Machine) {
		m.codeSize = size
	}
}

// WithLogger sets the logger.
func WithLogger(log logr.Logger) Option {
	return func(m *Machine) {
		m.log = log
	}
}

// WithIndirectReturn makes blocks return through $ra instead of jumping to
// the dispatcher's return address.
func WithIndirectReturn(enable bool) Option {
	return func(m *Machine) {
		m.indirect = enable
	}
}

// WithFastPath enables the fast re-entry address for blocks that branch
// back to their own start. It has no effect in indirect-return mode.
func WithFastPath(enable bool) Option {
	return func(m *Machine) {
		m.fastPath = enable
	}
}

// WithMemMapped sets whether the mapped guest window is reported as usable.
// When false every guest load and store goes through a call-out.
func WithMemMapped(enable bool) Option {
	return func(m *Machine) {
		m.mapped = enable
	}
}

// WithCallClobber makes every native call trash the caller-saved host
// registers. Default: true.
func WithCallClobber(enable bool) Option {
	return func(m *Machine) {
		m.clobber = enable
	}
}

// WithGTEHandler installs fn for GTE command op.
func WithGTEHandler(op insts.GTEOp, fn GTEHandler) Option {
	return func(m *Machine) {
		m.gte[op] = fn
	}
}

// NewMachine creates a dispatcher with empty guest memory and a zeroed guest
// state.
func NewMachine(opts ...Option) (*Machine, error) {
	m := &Machine{
		cfg:      rec.DefaultConfig(),
		cacheCfg: cache.DefaultConfig(),
		codeSize: CodeSize,
		log:      logr.Discard(),
		fastPath: true,
		mapped:   true,
		clobber:  true,
		decoder:  insts.NewDecoder(),
		gte:      make(map[insts.GTEOp]GTEHandler),
		verified: make(map[uint32]uint64),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.emu = emu.NewEmulator(
		emu.WithStackPointer(StackTop),
		emu.WithCallClobber(m.clobber),
	)
	m.emu.AddExit(ReturnAddr)
	m.emu.AddExit(FastReturnAddr)
	m.emu.Memory().Watch(m.cfg.MappedMemBase, physMask+1)
	m.arena = asm.NewArena(CodeBase, m.codeSize)
	m.blocks = cache.New(m.cacheCfg)
	m.registerNatives()

	tr, err := rec.NewTranslator(m.cfg, m.externals(), m, m.arena,
		rec.WithLogger(m.log.WithName("rec")))
	if err != nil {
		return nil, fmt.Errorf("failed to create translator: %w", err)
	}
	m.tr = tr

	m.SetState(&guest.State{})

	return m, nil
}

func (m *Machine) externals() rec.Externals {
	ext := rec.Externals{
		ReturnAddr:  ReturnAddr,
		MemRead8:    MemRead8Addr,
		MemRead16:   MemRead16Addr,
		MemRead32:   MemRead32Addr,
		MemWrite8:   MemWrite8Addr,
		MemWrite16:  MemWrite16Addr,
		MemWrite32:  MemWrite32Addr,
		Interpreter: InterpreterAddr,
		Host:        m,
	}
	if m.indirect {
		ext.ReturnAddr = 0
	}
	if m.fastPath {
		ext.FastReturnAddr = FastReturnAddr
	}
	for _, cmd := range insts.GTECommands() {
		ext.GTE[cmd.Op] = GTEAddr(cmd.Op)
	}
	return ext
}

// CycleMultiplier implements rec.HostState.
func (m *Machine) CycleMultiplier() uint32 {
	return m.cfg.CycleMultiplier
}

// MemMapped implements rec.HostState.
func (m *Machine) MemMapped() bool {
	return m.mapped
}

// ReadCode implements rec.CodeReader over guest RAM and BIOS.
func (m *Machine) ReadCode(pc uint32) (uint32, error) {
	if !isCode(pc) {
		return 0, fmt.Errorf("read code 0x%08x: %w", pc, ErrNoCode)
	}
	return m.ReadGuest32(pc), nil
}

// Emulator returns the host executor.
func (m *Machine) Emulator() *emu.Emulator {
	return m.emu
}

// Cache returns the block cache.
func (m *Machine) Cache() *cache.Cache {
	return m.blocks
}

// Config returns a copy of the translation options.
func (m *Machine) Config() *rec.Config {
	return m.cfg.Clone()
}

// Stats returns dispatcher statistics.
func (m *Machine) Stats() Stats {
	return m.stats
}

// Guest memory.

func (m *Machine) hostAddr(addr uint32) uint32 {
	return m.cfg.MappedMemBase + addr&physMask
}

// ReadGuest8 reads a guest byte.
func (m *Machine) ReadGuest8(addr uint32) uint8 {
	return m.emu.Memory().Read8(m.hostAddr(addr))
}

// ReadGuest16 reads a guest halfword.
func (m *Machine) ReadGuest16(addr uint32) uint16 {
	return m.emu.Memory().Read16(m.hostAddr(addr))
}

// ReadGuest32 reads a guest word.
func (m *Machine) ReadGuest32(addr uint32) uint32 {
	return m.emu.Memory().Read32(m.hostAddr(addr))
}

// WriteGuest8 writes a guest byte and drops blocks translated from it.
func (m *Machine) WriteGuest8(addr uint32, value uint8) {
	m.emu.Memory().Write8(m.hostAddr(addr), value)
	m.invalidate(addr, 1)
}

// WriteGuest16 writes a guest halfword and drops blocks translated from it.
func (m *Machine) WriteGuest16(addr uint32, value uint16) {
	m.emu.Memory().Write16(m.hostAddr(addr), value)
	m.invalidate(addr, 2)
}

// WriteGuest32 writes a guest word and drops blocks translated from it.
func (m *Machine) WriteGuest32(addr uint32, value uint32) {
	m.emu.Memory().Write32(m.hostAddr(addr), value)
	m.invalidate(addr, 4)
}

// LoadGuest copies data into guest memory at addr.
func (m *Machine) LoadGuest(addr uint32, data []byte) {
	m.emu.Memory().LoadBytes(m.hostAddr(addr), data)
	m.invalidate(addr, uint32(len(data)))
}

// LoadGuestWords copies instruction words into guest memory at addr.
func (m *Machine) LoadGuestWords(addr uint32, words []uint32) {
	m.emu.Memory().LoadWords(m.hostAddr(addr), words)
	m.invalidate(addr, uint32(4*len(words)))
}

// Boot loads prog into guest memory and sets up the registers its entry
// expects. It returns the entry point.
func (m *Machine) Boot(prog *loader.Program) uint32 {
	prog.LoadInto(m)

	s := m.State()
	s.PC = prog.EntryPoint
	s.GPR[regGP] = prog.GP
	s.GPR[regSP] = prog.InitialSP
	s.GPR[regFP] = prog.InitialSP
	m.SetState(s)

	m.log.V(1).Info("booted program",
		"entry", hex32(prog.EntryPoint),
		"sp", hex32(prog.InitialSP),
		"segments", len(prog.Segments))

	return prog.EntryPoint
}

func (m *Machine) invalidate(addr, size uint32) {
	phys := addr & physMask
	for _, seg := range segments {
		m.blocks.InvalidateRange(seg|phys, size)
	}
}

// Guest state.

// State returns a copy of the guest state.
func (m *Machine) State() *guest.State {
	s := &guest.State{}
	// The record is always guest.Size bytes, so Decode cannot fail.
	_ = s.Decode(m.emu.Memory().ReadBytes(StateBase, guest.Size))
	return s
}

// SetState replaces the guest state.
func (m *Machine) SetState(s *guest.State) {
	m.emu.Memory().LoadBytes(StateBase, s.Encode())
}

// Blocks.

// Block returns the translated block for pc, translating it if needed. A
// cached block whose guest code has changed is translated again. Guest code
// is only rehashed when memory under the block was written since the last
// check; host-side writes drop blocks eagerly, so this catches stores made
// by translated code.
func (m *Machine) Block(pc uint32) (*rec.Block, error) {
	if b := m.blocks.Lookup(pc); b != nil {
		gen := m.codeGeneration(b)
		if gen <= m.verified[b.StartPC] {
			return b, nil
		}

		m.stats.FingerprintChecks++
		fp, err := rec.Fingerprint(m, b.StartPC, b.EndPC)
		if err == nil && fp == b.Fingerprint {
			m.verified[b.StartPC] = gen
			return b, nil
		}
		m.log.V(1).Info("guest code changed, retranslating", "pc", hex32(pc))
		m.blocks.Invalidate(pc)
		m.stats.Retranslations++
	}

	b, err := m.translate(pc)
	if err != nil {
		return nil, err
	}
	m.blocks.Insert(b)
	m.verified[b.StartPC] = m.codeGeneration(b)
	return b, nil
}

// codeGeneration returns the write generation of the memory holding b's
// guest code.
func (m *Machine) codeGeneration(b *rec.Block) uint64 {
	return m.emu.Memory().RangeGeneration(m.hostAddr(b.StartPC), b.EndPC-b.StartPC)
}

func (m *Machine) translate(pc uint32) (*rec.Block, error) {
	b, err := m.tr.Translate(pc)
	if errors.Is(err, asm.ErrArenaFull) {
		m.log.V(1).Info("code arena full, flushing", "used", m.arena.Used())
		m.stats.ArenaFlushes++
		m.blocks.Flush()
		m.arena.Reset()
		b, err = m.tr.Translate(pc)
	}
	if err != nil {
		return nil, err
	}

	m.stats.Translations++
	m.emu.Memory().LoadWords(b.Code.Base(), b.Code.Words())
	return b, nil
}

// RunBlock executes b once. It returns the guest PC the block exited to and
// the cycles it reported.
func (m *Machine) RunBlock(b *rec.Block) (next uint32, cycles uint32, err error) {
	r := m.emu.RegFile()
	r.WriteReg(asm.SP, StackTop)
	m.emu.Memory().Write32(StackTop+16, ReturnAddr)
	r.WriteReg(asm.S8, StateBase)
	r.WriteReg(asm.V0, b.StartPC)
	r.WriteReg(asm.RA, ReturnAddr)

	m.emu.Start(b.Code.Base())

	res := m.emu.Run()
	if res.Err != nil {
		return 0, 0, fmt.Errorf("block 0x%08x: %w", b.StartPC, res.Err)
	}

	switch res.ExitAddr {
	case FastReturnAddr:
		next = b.StartPC
	default:
		next = r.ReadReg(asm.V0)
	}
	cycles = r.ReadReg(asm.V1)

	m.stats.BlocksRun++
	m.stats.Cycles += uint64(cycles)

	return next, cycles, nil
}

// Run executes blocks from pc until maxCycles guest cycles have elapsed or
// the guest raises an exception. The final PC is stored in the guest state.
func (m *Machine) Run(pc uint32, maxCycles uint64) (RunResult, error) {
	res := RunResult{PC: pc, Reason: StopCycles}
	m.stopped = false

	for res.Cycles < maxCycles {
		b, err := m.Block(res.PC)
		if err != nil {
			return res, err
		}

		next, cycles, err := m.RunBlock(b)
		if err != nil {
			return res, err
		}
		res.PC = next
		res.Cycles += uint64(cycles)
		res.Blocks++

		if m.stopped {
			res.Reason = StopException
			break
		}
	}

	m.emu.Memory().Write32(StateBase+guest.OffPC, res.PC)
	m.log.V(1).Info("run finished",
		"pc", hex32(res.PC),
		"cycles", res.Cycles,
		"blocks", res.Blocks,
		"reason", res.Reason.String())

	return res, nil
}

func hex32(v uint32) string {
	return fmt.Sprintf("0x%08x", v)
}
