package regalloc

import "github.com/sarchlab/psxrec/asm"

// Capability flags describe what a host register may be used for.
type Capability uint8

// Host register capabilities.
const (
	// CapAllocatable registers may cache guest registers.
	CapAllocatable Capability = 1 << iota
	// CapCalleeSaved registers survive calls into native code.
	CapCalleeSaved
	// CapReserved registers are owned by fixed emitter roles.
	CapReserved
)

// Has reports whether all flags in f are set.
func (c Capability) Has(f Capability) bool {
	return c&f == f
}

// StateBase is the host register holding the guest-state pointer.
const StateBase = asm.S8

var capabilities = func() [asm.NumRegs]Capability {
	var caps [asm.NumRegs]Capability
	for r := range caps {
		caps[r] = CapReserved
	}
	// s0-s7 survive calls, t4-t9 do not.
	for r := asm.S0; r <= asm.S7; r++ {
		caps[r] = CapAllocatable | CapCalleeSaved
	}
	for _, r := range []asm.Reg{asm.T4, asm.T5, asm.T6, asm.T7, asm.T8, asm.T9} {
		caps[r] = CapAllocatable
	}
	caps[StateBase] = CapReserved | CapCalleeSaved
	caps[asm.SP] = CapReserved | CapCalleeSaved
	return caps
}()

// CapabilityOf returns the capability flags of host register r.
func CapabilityOf(r asm.Reg) Capability {
	if !r.Valid() {
		return 0
	}
	return capabilities[r]
}

// Allocatable returns the allocation order: callee-saved registers first,
// so values are more likely to survive memory call-outs.
func Allocatable() []asm.Reg {
	regs := make([]asm.Reg, 0, 14)
	for _, want := range []Capability{CapAllocatable | CapCalleeSaved, CapAllocatable} {
		for r := asm.Reg(0); r < asm.NumRegs; r++ {
			c := capabilities[r]
			if c.Has(want) && c.Has(CapCalleeSaved) == want.Has(CapCalleeSaved) {
				regs = append(regs, r)
			}
		}
	}
	return regs
}
