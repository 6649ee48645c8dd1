// Package emu provides functional MIPS32 emulation of translated host code.
//
// The emulator runs little-endian MIPS32 code with branch delay slots.
// Native functions written in Go can be registered at host addresses: when
// execution reaches one, the function runs and control returns to $ra.
// Exit addresses stop execution, which is how translated blocks hand control
// back to the dispatcher.
package emu

import (
	"fmt"

	"github.com/sarchlab/psxrec/asm"
)

// StepResult represents the result of executing a single instruction.
type StepResult struct {
	// Exited is true if execution reached an exit address.
	Exited bool

	// ExitAddr is the exit address reached if Exited is true.
	ExitAddr uint32

	// Err is set if an error occurred during execution.
	Err error
}

// NativeFunc implements a function called from emulated code. args holds
// $a0-$a3 at the time of the call; results are written to the register
// file.
type NativeFunc func(e *Emulator, args [4]uint32)

// Emulator executes MIPS32 instructions functionally.
type Emulator struct {
	regFile *RegFile
	memory  *Memory

	// Execution units
	alu        *ALU
	lsu        *LoadStoreUnit
	branchUnit *BranchUnit

	natives map[uint32]NativeFunc
	exits   map[uint32]bool
	clobber bool

	// Execution state
	instructionCount uint64
	maxInstructions  uint64 // 0 means no limit
	nativeCalls      uint64
}

// EmulatorOption is a functional option for configuring the Emulator.
type EmulatorOption func(*Emulator)

// WithMemory uses m as the address space.
func WithMemory(m *Memory) EmulatorOption {
	return func(e *Emulator) {
		e.memory = m
	}
}

// WithStackPointer sets the initial stack pointer value.
func WithStackPointer(sp uint32) EmulatorOption {
	return func(e *Emulator) {
		e.regFile.WriteReg(asm.SP, sp)
	}
}

// WithMaxInstructions sets the maximum number of instructions to execute.
// A value of 0 means no limit.
func WithMaxInstructions(max uint64) EmulatorOption {
	return func(e *Emulator) {
		e.maxInstructions = max
	}
}

// WithCallClobber makes every native call overwrite the caller-saved
// registers and HI/LO with garbage before the native runs, so code relying
// on values surviving a call fails visibly.
func WithCallClobber(enable bool) EmulatorOption {
	return func(e *Emulator) {
		e.clobber = enable
	}
}

// NewEmulator creates a new MIPS32 emulator.
func NewEmulator(opts ...EmulatorOption) *Emulator {
	e := &Emulator{
		regFile: &RegFile{},
		natives: make(map[uint32]NativeFunc),
		exits:   make(map[uint32]bool),
	}

	for _, opt := range opts {
		opt(e)
	}
	if e.memory == nil {
		e.memory = NewMemory()
	}

	e.alu = NewALU(e.regFile)
	e.lsu = NewLoadStoreUnit(e.regFile, e.memory)
	e.branchUnit = NewBranchUnit(e.regFile)

	return e
}

// RegFile returns the emulator's register file.
func (e *Emulator) RegFile() *RegFile {
	return e.regFile
}

// Memory returns the emulator's memory.
func (e *Emulator) Memory() *Memory {
	return e.memory
}

// InstructionCount returns the number of instructions executed, native
// calls included.
func (e *Emulator) InstructionCount() uint64 {
	return e.instructionCount
}

// NativeCalls returns the number of native functions called.
func (e *Emulator) NativeCalls() uint64 {
	return e.nativeCalls
}

// RegisterNative installs fn at host address addr.
func (e *Emulator) RegisterNative(addr uint32, fn NativeFunc) {
	e.natives[addr] = fn
}

// AddExit marks addr as an exit address.
func (e *Emulator) AddExit(addr uint32) {
	e.exits[addr] = true
}

// Start sets the PC for the next Step.
func (e *Emulator) Start(pc uint32) {
	e.regFile.Jump(pc)
}

// Step executes a single instruction.
// Returns a StepResult indicating whether execution should continue.
func (e *Emulator) Step() StepResult {
	if e.maxInstructions > 0 && e.instructionCount >= e.maxInstructions {
		return StepResult{
			Err: fmt.Errorf("max instructions reached"),
		}
	}

	r := e.regFile
	pc := r.PC

	if e.exits[pc] {
		return StepResult{Exited: true, ExitAddr: pc}
	}

	if fn, ok := e.natives[pc]; ok {
		e.callNative(fn)
		return StepResult{}
	}

	if pc&3 != 0 {
		return StepResult{
			Err: fmt.Errorf("misaligned PC=0x%08x", pc),
		}
	}

	// 1. Fetch
	word := e.memory.Read32(pc)

	// 2. Decode
	inst := asm.Decode(word)

	// 3. Execute. The instruction at NPC runs next; a taken transfer
	// replaces the address after it.
	next := r.NPC
	r.NPC = next + 4

	switch {
	case inst.IsBranch() || inst.IsJump():
		if target, taken := e.branchUnit.Execute(inst, pc); taken {
			r.NPC = target
		}
	case inst.IsLoad() || inst.IsStore():
		if err := e.lsu.Execute(inst); err != nil {
			return StepResult{Err: fmt.Errorf("PC=0x%08x: %w", pc, err)}
		}
	default:
		if !e.alu.Execute(inst) {
			return StepResult{
				Err: fmt.Errorf("unknown instruction 0x%08x at PC=0x%08x", word, pc),
			}
		}
	}

	r.PC = next
	e.instructionCount++

	return StepResult{}
}

func (e *Emulator) callNative(fn NativeFunc) {
	r := e.regFile
	args := [4]uint32{
		r.ReadReg(asm.A0), r.ReadReg(asm.A1),
		r.ReadReg(asm.A2), r.ReadReg(asm.A3),
	}
	if e.clobber {
		e.clobberCallerSaved()
	}

	fn(e, args)

	e.nativeCalls++
	e.instructionCount++
	r.Jump(r.ReadReg(asm.RA))
}

func (e *Emulator) clobberCallerSaved() {
	r := e.regFile
	for reg := asm.AT; reg <= asm.T7; reg++ {
		r.WriteReg(reg, 0xdead0000|uint32(reg))
	}
	r.WriteReg(asm.T8, 0xdead0000|uint32(asm.T8))
	r.WriteReg(asm.T9, 0xdead0000|uint32(asm.T9))
	r.HI, r.LO = 0xdeadbeef, 0xdeadbeef
}

// Run executes instructions until an exit address is reached or an error
// occurs.
func (e *Emulator) Run() StepResult {
	for {
		result := e.Step()
		if result.Exited || result.Err != nil {
			return result
		}
	}
}
