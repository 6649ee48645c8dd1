// Package insts provides R3000A guest instruction definitions, decoding and
// classification.
//
// This package decodes PlayStation CPU words into structured instructions and
// answers the questions the recompiler asks while walking a block:
//   - category predicates: load, store, branch, direct/indirect jump,
//     unaligned load/store
//   - ALU operand usage (destination field, which sources are read)
//   - register liveness masks for load-delay hazard checks
//   - branch and jump target computation
//   - the GTE (COP2) command table
//
// Every function here is pure bit-field extraction; nothing allocates except
// Decoder.Decode.
//
// Usage:
//
//	decoder := insts.NewDecoder()
//	inst := decoder.Decode(0x24420004) // ADDIU v0, v0, 4
//	fmt.Printf("Op: %v, Rt: %d, Rs: %d, Imm: %d\n", inst.Op, inst.Rt, inst.Rs, inst.SImm())
package insts

// Field extractors for a raw instruction word.

// Opcode returns the primary opcode, bits [31:26].
func Opcode(word uint32) uint32 { return word >> 26 }

// Rs returns bits [25:21].
func Rs(word uint32) uint8 { return uint8((word >> 21) & 0x1f) }

// Rt returns bits [20:16].
func Rt(word uint32) uint8 { return uint8((word >> 16) & 0x1f) }

// Rd returns bits [15:11].
func Rd(word uint32) uint8 { return uint8((word >> 11) & 0x1f) }

// Shamt returns bits [10:6].
func Shamt(word uint32) uint8 { return uint8((word >> 6) & 0x1f) }

// Funct returns bits [5:0].
func Funct(word uint32) uint32 { return word & 0x3f }

// Imm16 returns the raw 16-bit immediate.
func Imm16(word uint32) uint16 { return uint16(word) }

// SImm16 returns the sign-extended 16-bit immediate.
func SImm16(word uint32) int16 { return int16(word) }

// Target returns the 26-bit jump index, bits [25:0].
func Target(word uint32) uint32 { return word & 0x03ffffff }
