package core

import "github.com/sarchlab/psxrec/insts"

// Host memory layout. Everything lives in the executor's 32-bit address
// space; the mapped guest window is placed by rec.Config.MappedMemBase.
const (
	// CodeBase and CodeSize delimit the code arena.
	CodeBase = 0x08000000
	CodeSize = 0x01000000

	// StackTop is the initial host $sp. The dispatcher's return address
	// is kept at 16($sp) for blocks running in indirect-return mode.
	StackTop = 0x0d000000

	// StateBase is the host address of the guest-state record.
	StateBase = 0x0e000000

	// NativeBase is the first native call target.
	NativeBase = 0x0f000000

	// ReturnAddr and FastReturnAddr are the dispatcher re-entry points.
	ReturnAddr     = 0x0fff0000
	FastReturnAddr = 0x0fff0010
)

// Native call targets.
const (
	MemRead8Addr    = NativeBase + 0x00
	MemRead16Addr   = NativeBase + 0x04
	MemRead32Addr   = NativeBase + 0x08
	MemWrite8Addr   = NativeBase + 0x0c
	MemWrite16Addr  = NativeBase + 0x10
	MemWrite32Addr  = NativeBase + 0x14
	InterpreterAddr = NativeBase + 0x18

	gteBase = NativeBase + 0x100
)

// GTEAddr returns the native call target of GTE command op.
func GTEAddr(op insts.GTEOp) uint32 {
	return gteBase + 4*uint32(op)
}

// Guest physical regions that may hold code.
const (
	physMask = 0x1fffffff

	RAMSize   = 0x00200000
	BIOSBase  = 0x1fc00000
	BIOSSize  = 0x00080000
	ResetPC   = 0xbfc00000
	exception = 0x80000080
	bevVector = 0xbfc00180
)

// segments are the guest address bases whose physical part maps to the same
// memory.
var segments = [...]uint32{0x00000000, 0x80000000, 0xa0000000}

func isCode(addr uint32) bool {
	phys := addr & physMask
	return phys < RAMSize || (phys >= BIOSBase && phys < BIOSBase+BIOSSize)
}

// Guest registers Boot initializes.
const (
	regGP = 28
	regSP = 29
	regFP = 30
)
