package rec

import (
	"errors"
	"fmt"
)

// CodeReader supplies guest instruction words.
type CodeReader interface {
	ReadCode(pc uint32) (uint32, error)
}

// HostState is the dispatcher state the translator consults once per block.
type HostState interface {
	// CycleMultiplier returns the 8.8 fixed-point cycle scale.
	CycleMultiplier() uint32
	// MemMapped reports whether guest RAM is reachable through the mapped
	// window at Config.MappedMemBase.
	MemMapped() bool
}

// Externals are the host addresses emitted code calls or jumps to.
//
// Memory read call-outs take the guest address in $a0 and return the
// zero-extended value in $v0. Write call-outs take the address in $a0 and
// the value in $a1. The interpreter takes the opcode in $a0 and its guest PC
// in $a1. GTE handlers are indexed by the command's funct field; one-argument
// handlers receive the argument in $a0.
type Externals struct {
	// ReturnAddr is the dispatcher's generic return address. Zero selects
	// indirect-return mode, where blocks return through $ra.
	ReturnAddr uint32
	// FastReturnAddr re-enters the block that just finished without a
	// lookup. Zero disables the fast path.
	FastReturnAddr uint32

	MemRead8   uint32
	MemRead16  uint32
	MemRead32  uint32
	MemWrite8  uint32
	MemWrite16 uint32
	MemWrite32 uint32

	Interpreter uint32
	GTE         [64]uint32

	Host HostState
}

// Validate checks that every mandatory call target is set.
func (e *Externals) Validate() error {
	required := []struct {
		name string
		addr uint32
	}{
		{"MemRead8", e.MemRead8},
		{"MemRead16", e.MemRead16},
		{"MemRead32", e.MemRead32},
		{"MemWrite8", e.MemWrite8},
		{"MemWrite16", e.MemWrite16},
		{"MemWrite32", e.MemWrite32},
		{"Interpreter", e.Interpreter},
	}
	for _, r := range required {
		if r.addr == 0 {
			return fmt.Errorf("external %s is not set", r.name)
		}
		if r.addr&3 != 0 {
			return fmt.Errorf("external %s at 0x%08x is not word aligned", r.name, r.addr)
		}
	}
	if e.Host == nil {
		return errors.New("external host state is not set")
	}
	return nil
}

// fixedHost is a HostState with constant answers.
type fixedHost struct {
	mult   uint32
	mapped bool
}

func (h fixedHost) CycleMultiplier() uint32 { return h.mult }
func (h fixedHost) MemMapped() bool         { return h.mapped }

// StaticHost returns a HostState that always reports the given values.
func StaticHost(mult uint32, mapped bool) HostState {
	return fixedHost{mult: mult, mapped: mapped}
}
