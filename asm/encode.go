package asm

// Primary opcode field values (bits [31:26]).
const (
	opSpecial  = 0x00
	opRegImm   = 0x01
	opJ        = 0x02
	opJAL      = 0x03
	opBEQ      = 0x04
	opBNE      = 0x05
	opBLEZ     = 0x06
	opBGTZ     = 0x07
	opADDIU    = 0x09
	opSLTI     = 0x0a
	opSLTIU    = 0x0b
	opANDI     = 0x0c
	opORI      = 0x0d
	opXORI     = 0x0e
	opLUI      = 0x0f
	opSpecial2 = 0x1c
	opSpecial3 = 0x1f
	opLB       = 0x20
	opLH       = 0x21
	opLWL      = 0x22
	opLW       = 0x23
	opLBU      = 0x24
	opLHU      = 0x25
	opLWR      = 0x26
	opSB       = 0x28
	opSH       = 0x29
	opSWL      = 0x2a
	opSW       = 0x2b
	opSWR      = 0x2e
)

// SPECIAL function field values (bits [5:0]).
const (
	fnSLL   = 0x00
	fnSRL   = 0x02
	fnSRA   = 0x03
	fnSLLV  = 0x04
	fnSRLV  = 0x06
	fnSRAV  = 0x07
	fnJR    = 0x08
	fnJALR  = 0x09
	fnMOVZ  = 0x0a
	fnMOVN  = 0x0b
	fnMFHI  = 0x10
	fnMFLO  = 0x12
	fnMULT  = 0x18
	fnMULTU = 0x19
	fnDIV   = 0x1a
	fnDIVU  = 0x1b
	fnADDU  = 0x21
	fnSUBU  = 0x23
	fnAND   = 0x24
	fnOR    = 0x25
	fnXOR   = 0x26
	fnNOR   = 0x27
	fnSLT   = 0x2a
	fnSLTU  = 0x2b
)

// SPECIAL2 / SPECIAL3 / REGIMM selectors.
const (
	fn2MUL   = 0x02
	fn2CLZ   = 0x20
	fn3EXT   = 0x00
	fn3INS   = 0x04
	fn3BSHFL = 0x20
	bshflSEB = 0x10
	bshflSEH = 0x18
	riBLTZ   = 0x00
	riBGEZ   = 0x01
)

// encodeI packs an I-type instruction: op | rs | rt | imm16.
func encodeI(op uint32, rs, rt Reg, imm uint16) uint32 {
	return op<<26 | uint32(rs&0x1f)<<21 | uint32(rt&0x1f)<<16 | uint32(imm)
}

// encodeR packs an R-type instruction: op | rs | rt | rd | sa | funct.
func encodeR(op uint32, rs, rt, rd Reg, sa, funct uint32) uint32 {
	return op<<26 | uint32(rs&0x1f)<<21 | uint32(rt&0x1f)<<16 |
		uint32(rd&0x1f)<<11 | (sa&0x1f)<<6 | funct&0x3f
}

// encodeJ packs a J-type instruction from an absolute byte address. Only the
// low 28 bits survive; the region comes from the delay slot address.
func encodeJ(op uint32, addr uint32) uint32 {
	return op<<26 | (addr&0x0fffffff)>>2
}

// branchImm converts a byte offset relative to the delay slot into the
// 16-bit word offset field.
func branchImm(offset int32) uint16 {
	return uint16((offset >> 2) & 0xffff)
}

func (b *Buffer) emitI(op uint32, rs, rt Reg, imm uint16) {
	b.Emit(encodeI(op, rs, rt, imm))
}

func (b *Buffer) emitSpecial(rs, rt, rd Reg, sa, funct uint32) {
	b.Emit(encodeR(opSpecial, rs, rt, rd, sa, funct))
}

// Loads and stores: rt, imm16(rs).

func (b *Buffer) LB(rt, rs Reg, imm int16)  { b.emitI(opLB, rs, rt, uint16(imm)) }
func (b *Buffer) LBU(rt, rs Reg, imm int16) { b.emitI(opLBU, rs, rt, uint16(imm)) }
func (b *Buffer) LH(rt, rs Reg, imm int16)  { b.emitI(opLH, rs, rt, uint16(imm)) }
func (b *Buffer) LHU(rt, rs Reg, imm int16) { b.emitI(opLHU, rs, rt, uint16(imm)) }
func (b *Buffer) LW(rt, rs Reg, imm int16)  { b.emitI(opLW, rs, rt, uint16(imm)) }
func (b *Buffer) LWL(rt, rs Reg, imm int16) { b.emitI(opLWL, rs, rt, uint16(imm)) }
func (b *Buffer) LWR(rt, rs Reg, imm int16) { b.emitI(opLWR, rs, rt, uint16(imm)) }
func (b *Buffer) SB(rt, rs Reg, imm int16)  { b.emitI(opSB, rs, rt, uint16(imm)) }
func (b *Buffer) SH(rt, rs Reg, imm int16)  { b.emitI(opSH, rs, rt, uint16(imm)) }
func (b *Buffer) SW(rt, rs Reg, imm int16)  { b.emitI(opSW, rs, rt, uint16(imm)) }
func (b *Buffer) SWL(rt, rs Reg, imm int16) { b.emitI(opSWL, rs, rt, uint16(imm)) }
func (b *Buffer) SWR(rt, rs Reg, imm int16) { b.emitI(opSWR, rs, rt, uint16(imm)) }

// Immediate ALU operations.

func (b *Buffer) ADDIU(rt, rs Reg, imm int16) { b.emitI(opADDIU, rs, rt, uint16(imm)) }
func (b *Buffer) SLTI(rt, rs Reg, imm int16)  { b.emitI(opSLTI, rs, rt, uint16(imm)) }
func (b *Buffer) SLTIU(rt, rs Reg, imm int16) { b.emitI(opSLTIU, rs, rt, uint16(imm)) }
func (b *Buffer) ANDI(rt, rs Reg, imm uint16) { b.emitI(opANDI, rs, rt, imm) }
func (b *Buffer) ORI(rt, rs Reg, imm uint16)  { b.emitI(opORI, rs, rt, imm) }
func (b *Buffer) XORI(rt, rs Reg, imm uint16) { b.emitI(opXORI, rs, rt, imm) }
func (b *Buffer) LUI(rt Reg, imm uint16)      { b.emitI(opLUI, Zero, rt, imm) }

// LI16 loads a zero-extended 16-bit constant (ori rt, zero, imm).
func (b *Buffer) LI16(rt Reg, imm uint16) {
	b.ORI(rt, Zero, imm)
}

// LI32 loads a 32-bit constant with the fewest instructions: one ORI for
// values up to 0xffff, one ADDIU for small negative values, otherwise LUI
// followed by ORI, with the ORI dropped when the low half is zero.
func (b *Buffer) LI32(rt Reg, imm uint32) {
	switch {
	case imm <= 0xffff:
		b.LI16(rt, uint16(imm))
	case int32(imm) < 0 && int32(imm) >= -0x8000:
		b.ADDIU(rt, Zero, int16(imm))
	default:
		b.LUI(rt, uint16(imm>>16))
		if imm&0xffff != 0 {
			b.ORI(rt, rt, uint16(imm))
		}
	}
}

// LI32Len returns the number of words LI32 emits for imm.
func LI32Len(imm uint32) int {
	switch {
	case imm <= 0xffff:
		return 1
	case int32(imm) < 0 && int32(imm) >= -0x8000:
		return 1
	case imm&0xffff == 0:
		return 1
	default:
		return 2
	}
}

// Register ALU operations.

func (b *Buffer) MOV(rd, rs Reg)      { b.emitSpecial(rs, Zero, rd, 0, fnADDU) }
func (b *Buffer) MOVN(rd, rs, rt Reg) { b.emitSpecial(rs, rt, rd, 0, fnMOVN) }
func (b *Buffer) MOVZ(rd, rs, rt Reg) { b.emitSpecial(rs, rt, rd, 0, fnMOVZ) }
func (b *Buffer) ADDU(rd, rs, rt Reg) { b.emitSpecial(rs, rt, rd, 0, fnADDU) }
func (b *Buffer) SUBU(rd, rs, rt Reg) { b.emitSpecial(rs, rt, rd, 0, fnSUBU) }
func (b *Buffer) AND(rd, rs, rt Reg)  { b.emitSpecial(rs, rt, rd, 0, fnAND) }
func (b *Buffer) OR(rd, rs, rt Reg)   { b.emitSpecial(rs, rt, rd, 0, fnOR) }
func (b *Buffer) XOR(rd, rs, rt Reg)  { b.emitSpecial(rs, rt, rd, 0, fnXOR) }
func (b *Buffer) NOR(rd, rs, rt Reg)  { b.emitSpecial(rs, rt, rd, 0, fnNOR) }
func (b *Buffer) SLT(rd, rs, rt Reg)  { b.emitSpecial(rs, rt, rd, 0, fnSLT) }
func (b *Buffer) SLTU(rd, rs, rt Reg) { b.emitSpecial(rs, rt, rd, 0, fnSLTU) }
func (b *Buffer) SLLV(rd, rt, rs Reg) { b.emitSpecial(rs, rt, rd, 0, fnSLLV) }
func (b *Buffer) SRLV(rd, rt, rs Reg) { b.emitSpecial(rs, rt, rd, 0, fnSRLV) }
func (b *Buffer) SRAV(rd, rt, rs Reg) { b.emitSpecial(rs, rt, rd, 0, fnSRAV) }

func (b *Buffer) SLL(rd, rt Reg, sa uint32) { b.emitSpecial(Zero, rt, rd, sa, fnSLL) }
func (b *Buffer) SRL(rd, rt Reg, sa uint32) { b.emitSpecial(Zero, rt, rd, sa, fnSRL) }
func (b *Buffer) SRA(rd, rt Reg, sa uint32) { b.emitSpecial(Zero, rt, rd, sa, fnSRA) }

// Multiply and divide.

func (b *Buffer) MULT(rs, rt Reg)  { b.emitSpecial(rs, rt, Zero, 0, fnMULT) }
func (b *Buffer) MULTU(rs, rt Reg) { b.emitSpecial(rs, rt, Zero, 0, fnMULTU) }
func (b *Buffer) DIV(rs, rt Reg)   { b.emitSpecial(rs, rt, Zero, 0, fnDIV) }
func (b *Buffer) DIVU(rs, rt Reg)  { b.emitSpecial(rs, rt, Zero, 0, fnDIVU) }
func (b *Buffer) MFHI(rd Reg)      { b.emitSpecial(Zero, Zero, rd, 0, fnMFHI) }
func (b *Buffer) MFLO(rd Reg)      { b.emitSpecial(Zero, Zero, rd, 0, fnMFLO) }

// MUL is the MIPS32 three-operand multiply (SPECIAL2).
func (b *Buffer) MUL(rd, rs, rt Reg) {
	b.Emit(encodeR(opSpecial2, rs, rt, rd, 0, fn2MUL))
}

// CLZ counts leading zeros of rs into rd.
func (b *Buffer) CLZ(rd, rs Reg) {
	// rt must equal rd in the MIPS32 encoding.
	b.Emit(encodeR(opSpecial2, rs, rd, rd, 0, fn2CLZ))
}

// Jumps and branches. Branch offsets are byte offsets from the delay slot.

// J jumps to an absolute host address in the current 256MB region.
func (b *Buffer) J(addr uint32) { b.Emit(encodeJ(opJ, addr)) }

// JAL calls an absolute host address. Callers that track cached host
// registers must invalidate them after emitting a call.
func (b *Buffer) JAL(addr uint32) { b.Emit(encodeJ(opJAL, addr)) }

func (b *Buffer) JR(rs Reg)       { b.emitSpecial(rs, Zero, Zero, 0, fnJR) }
func (b *Buffer) JALR(rd, rs Reg) { b.emitSpecial(rs, Zero, rd, 0, fnJALR) }

func (b *Buffer) BEQ(rs, rt Reg, offset int32) { b.emitI(opBEQ, rs, rt, branchImm(offset)) }
func (b *Buffer) BNE(rs, rt Reg, offset int32) { b.emitI(opBNE, rs, rt, branchImm(offset)) }
func (b *Buffer) BEQZ(rs Reg, offset int32)    { b.BEQ(rs, Zero, offset) }
func (b *Buffer) BNEZ(rs Reg, offset int32)    { b.BNE(rs, Zero, offset) }
func (b *Buffer) B(offset int32)               { b.BEQ(Zero, Zero, offset) }
func (b *Buffer) BLEZ(rs Reg, offset int32)    { b.emitI(opBLEZ, rs, Zero, branchImm(offset)) }
func (b *Buffer) BGTZ(rs Reg, offset int32)    { b.emitI(opBGTZ, rs, Zero, branchImm(offset)) }
func (b *Buffer) BLTZ(rs Reg, offset int32)    { b.emitI(opRegImm, rs, riBLTZ, branchImm(offset)) }
func (b *Buffer) BGEZ(rs Reg, offset int32)    { b.emitI(opRegImm, rs, riBGEZ, branchImm(offset)) }

// Forward branches. The returned fixup is resolved with Backpatch once the
// target is emitted.

// BEQFwd emits a BEQ with an unresolved target.
func (b *Buffer) BEQFwd(rs, rt Reg) Fixup {
	f := Fixup{Offset: b.Len(), Kind: FixupBranch16}
	b.BEQ(rs, rt, 0)
	return f
}

// BNEFwd emits a BNE with an unresolved target.
func (b *Buffer) BNEFwd(rs, rt Reg) Fixup {
	f := Fixup{Offset: b.Len(), Kind: FixupBranch16}
	b.BNE(rs, rt, 0)
	return f
}

// BLEZFwd emits a BLEZ with an unresolved target.
func (b *Buffer) BLEZFwd(rs Reg) Fixup {
	f := Fixup{Offset: b.Len(), Kind: FixupBranch16}
	b.BLEZ(rs, 0)
	return f
}

// BGTZFwd emits a BGTZ with an unresolved target.
func (b *Buffer) BGTZFwd(rs Reg) Fixup {
	f := Fixup{Offset: b.Len(), Kind: FixupBranch16}
	b.BGTZ(rs, 0)
	return f
}

// BLTZFwd emits a BLTZ with an unresolved target.
func (b *Buffer) BLTZFwd(rs Reg) Fixup {
	f := Fixup{Offset: b.Len(), Kind: FixupBranch16}
	b.BLTZ(rs, 0)
	return f
}

// BGEZFwd emits a BGEZ with an unresolved target.
func (b *Buffer) BGEZFwd(rs Reg) Fixup {
	f := Fixup{Offset: b.Len(), Kind: FixupBranch16}
	b.BGEZ(rs, 0)
	return f
}

// NOP emits sll zero, zero, 0.
func (b *Buffer) NOP() { b.Emit(0) }

// MIPS32r2 bit-field and sign-extension instructions.

// EXT extracts size bits of rs starting at pos into rt.
func (b *Buffer) EXT(rt, rs Reg, pos, size uint32) {
	b.Emit(encodeR(opSpecial3, rs, rt, Reg((size-1)&0x1f), pos, fn3EXT))
}

// INS inserts the low size bits of rs into rt at pos.
func (b *Buffer) INS(rt, rs Reg, pos, size uint32) {
	b.Emit(encodeR(opSpecial3, rs, rt, Reg((pos+size-1)&0x1f), pos, fn3INS))
}

// SEB sign-extends the low byte of rt into rd.
func (b *Buffer) SEB(rd, rt Reg) {
	b.Emit(encodeR(opSpecial3, Zero, rt, rd, bshflSEB, fn3BSHFL))
}

// SEH sign-extends the low halfword of rt into rd.
func (b *Buffer) SEH(rd, rt Reg) {
	b.Emit(encodeR(opSpecial3, Zero, rt, rd, bshflSEH, fn3BSHFL))
}
