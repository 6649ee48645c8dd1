// Package guest defines the R3000A register state shared by translated code,
// the interpreter and the GTE handlers.
//
// The record has a fixed little-endian layout. Translated code addresses it
// through a base pointer plus the byte offsets exported here, so the offsets
// are part of the contract with every emitted block.
package guest

import (
	"encoding/binary"
	"fmt"
)

// Register file sizes.
const (
	NumGPR  = 32
	NumCP0  = 32
	NumCP2D = 32
	NumCP2C = 32
)

// Indices of LO and HI in State.GPR, after the 32 architectural registers.
const (
	RegLO = 32
	RegHI = 33
)

// Byte offsets of the fields inside the encoded record.
const (
	OffGPRBase   = 0
	OffCP0Base   = OffGPRBase + 4*(NumGPR+2)
	OffCP2DBase  = OffCP0Base + 4*NumCP0
	OffCP2CBase  = OffCP2DBase + 4*NumCP2D
	OffPC        = OffCP2CBase + 4*NumCP2C
	OffCode      = OffPC + 4
	OffCycle     = OffCode + 4
	OffInterrupt = OffCycle + 4

	// Size is the encoded size of State in bytes.
	Size = OffInterrupt + 4
)

// State is the guest CPU register state.
type State struct {
	// GPR holds r0-r31 followed by LO and HI. GPR[0] always reads zero
	// through ReadReg.
	GPR [NumGPR + 2]uint32

	CP0  [NumCP0]uint32
	CP2D [NumCP2D]uint32 // GTE data registers
	CP2C [NumCP2C]uint32 // GTE control registers

	PC        uint32
	Code      uint32 // opcode currently being executed
	Cycle     uint32
	Interrupt uint32
}

// OffGPR returns the byte offset of general register r (0-33).
func OffGPR(r int) int16 {
	return int16(OffGPRBase + 4*r)
}

// OffCP0 returns the byte offset of COP0 register r.
func OffCP0(r int) int16 {
	return int16(OffCP0Base + 4*r)
}

// OffCP2D returns the byte offset of GTE data register r.
func OffCP2D(r int) int16 {
	return int16(OffCP2DBase + 4*r)
}

// OffCP2C returns the byte offset of GTE control register r.
func OffCP2C(r int) int16 {
	return int16(OffCP2CBase + 4*r)
}

// ReadReg reads a general register. Register 0 always returns 0.
func (s *State) ReadReg(r uint8) uint32 {
	if r == 0 || int(r) >= len(s.GPR) {
		return 0
	}
	return s.GPR[r]
}

// WriteReg writes a general register. Writes to register 0 are ignored.
func (s *State) WriteReg(r uint8, value uint32) {
	if r == 0 || int(r) >= len(s.GPR) {
		return
	}
	s.GPR[r] = value
}

// Encode serializes the state into its fixed little-endian layout.
func (s *State) Encode() []byte {
	buf := make([]byte, Size)
	put := func(off int, v uint32) {
		binary.LittleEndian.PutUint32(buf[off:], v)
	}

	for i, v := range s.GPR {
		put(OffGPRBase+4*i, v)
	}
	for i, v := range s.CP0 {
		put(OffCP0Base+4*i, v)
	}
	for i, v := range s.CP2D {
		put(OffCP2DBase+4*i, v)
	}
	for i, v := range s.CP2C {
		put(OffCP2CBase+4*i, v)
	}
	put(OffPC, s.PC)
	put(OffCode, s.Code)
	put(OffCycle, s.Cycle)
	put(OffInterrupt, s.Interrupt)

	return buf
}

// Decode loads the state from its encoded form. Register 0 is forced to zero
// whatever the record holds.
func (s *State) Decode(buf []byte) error {
	if len(buf) < Size {
		return fmt.Errorf("guest state record too short: %d bytes, need %d", len(buf), Size)
	}
	get := func(off int) uint32 {
		return binary.LittleEndian.Uint32(buf[off:])
	}

	for i := range s.GPR {
		s.GPR[i] = get(OffGPRBase + 4*i)
	}
	s.GPR[0] = 0
	for i := range s.CP0 {
		s.CP0[i] = get(OffCP0Base + 4*i)
	}
	for i := range s.CP2D {
		s.CP2D[i] = get(OffCP2DBase + 4*i)
	}
	for i := range s.CP2C {
		s.CP2C[i] = get(OffCP2CBase + 4*i)
	}
	s.PC = get(OffPC)
	s.Code = get(OffCode)
	s.Cycle = get(OffCycle)
	s.Interrupt = get(OffInterrupt)

	return nil
}
