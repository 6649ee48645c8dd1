// Package asm provides MIPS32 host instruction encoding for the recompiler.
//
// Encoders are methods on a Buffer, which owns the write cursor for one
// translated block. Every encoder appends exactly one 32-bit word, except the
// composite LI32 which emits the shortest sequence that loads its constant.
// Immediate fields are truncated to their encoded width without error, the
// same way the hardware encoding packs them.
//
// Usage:
//
//	buf := asm.NewBuffer(0x08000000, 64)
//	buf.LI32(asm.V1, 0x12345678) // lui v1, 0x1234; ori v1, v1, 0x5678
//	buf.JR(asm.RA)
//	buf.NOP()
//	code := buf.Seal()
package asm

import "fmt"

// Reg is a host MIPS32 general-purpose register.
type Reg uint8

// Host registers, using the o32 ABI names.
const (
	Zero Reg = iota
	AT
	V0
	V1
	A0
	A1
	A2
	A3
	T0
	T1
	T2
	T3
	T4
	T5
	T6
	T7
	S0
	S1
	S2
	S3
	S4
	S5
	S6
	S7
	T8
	T9
	K0
	K1
	GP
	SP
	S8
	RA
)

// NumRegs is the number of host general-purpose registers.
const NumRegs = 32

var regNames = [NumRegs]string{
	"zero", "at", "v0", "v1", "a0", "a1", "a2", "a3",
	"t0", "t1", "t2", "t3", "t4", "t5", "t6", "t7",
	"s0", "s1", "s2", "s3", "s4", "s5", "s6", "s7",
	"t8", "t9", "k0", "k1", "gp", "sp", "s8", "ra",
}

// String returns the ABI name of the register.
func (r Reg) String() string {
	if int(r) < NumRegs {
		return regNames[r]
	}
	return fmt.Sprintf("r%d", uint8(r))
}

// Valid reports whether r names one of the 32 host registers.
func (r Reg) Valid() bool {
	return r < NumRegs
}

// HiLo splits an address into the upper/lower halves used by a LUI plus a
// signed 16-bit offset. The upper half is adjusted when the lower half would
// be read as negative.
func HiLo(addr uint32) (hi, lo uint16) {
	hi = uint16(addr >> 16)
	if addr&0x8000 != 0 {
		hi++
	}
	return hi, uint16(addr)
}
