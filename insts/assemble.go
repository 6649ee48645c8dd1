package insts

// Guest instruction encoders. They build R3000A words for test programs,
// boot stubs and the CLI. Branch offsets count instructions relative to the
// delay slot, as in the encoded immediate.

func encodeI(op uint32, rs, rt uint8, imm uint16) uint32 {
	return op<<26 | uint32(rs&0x1f)<<21 | uint32(rt&0x1f)<<16 | uint32(imm)
}

func encodeR(rs, rt, rd, sa uint8, funct uint32) uint32 {
	return uint32(rs&0x1f)<<21 | uint32(rt&0x1f)<<16 | uint32(rd&0x1f)<<11 |
		uint32(sa&0x1f)<<6 | funct&0x3f
}

func encodeCop(op, sel uint32, rt, rd uint8) uint32 {
	return op<<26 | sel<<21 | uint32(rt&0x1f)<<16 | uint32(rd&0x1f)<<11
}

// NOP is the canonical no-op.
const NOP uint32 = 0

// Immediate ALU operations.

func ADDI(rt, rs uint8, imm int16) uint32  { return encodeI(opADDI, rs, rt, uint16(imm)) }
func ADDIU(rt, rs uint8, imm int16) uint32 { return encodeI(opADDIU, rs, rt, uint16(imm)) }
func SLTI(rt, rs uint8, imm int16) uint32  { return encodeI(opSLTI, rs, rt, uint16(imm)) }
func SLTIU(rt, rs uint8, imm int16) uint32 { return encodeI(opSLTIU, rs, rt, uint16(imm)) }
func ANDI(rt, rs uint8, imm uint16) uint32 { return encodeI(opANDI, rs, rt, imm) }
func ORI(rt, rs uint8, imm uint16) uint32  { return encodeI(opORI, rs, rt, imm) }
func XORI(rt, rs uint8, imm uint16) uint32 { return encodeI(opXORI, rs, rt, imm) }
func LUI(rt uint8, imm uint16) uint32      { return encodeI(opLUI, 0, rt, imm) }

// Register ALU operations.

func ADD(rd, rs, rt uint8) uint32  { return encodeR(rs, rt, rd, 0, 0x20) }
func ADDU(rd, rs, rt uint8) uint32 { return encodeR(rs, rt, rd, 0, 0x21) }
func SUB(rd, rs, rt uint8) uint32  { return encodeR(rs, rt, rd, 0, 0x22) }
func SUBU(rd, rs, rt uint8) uint32 { return encodeR(rs, rt, rd, 0, 0x23) }
func AND(rd, rs, rt uint8) uint32  { return encodeR(rs, rt, rd, 0, 0x24) }
func OR(rd, rs, rt uint8) uint32   { return encodeR(rs, rt, rd, 0, 0x25) }
func XOR(rd, rs, rt uint8) uint32  { return encodeR(rs, rt, rd, 0, 0x26) }
func NOR(rd, rs, rt uint8) uint32  { return encodeR(rs, rt, rd, 0, 0x27) }
func SLT(rd, rs, rt uint8) uint32  { return encodeR(rs, rt, rd, 0, 0x2a) }
func SLTU(rd, rs, rt uint8) uint32 { return encodeR(rs, rt, rd, 0, 0x2b) }

func SLL(rd, rt, sa uint8) uint32  { return encodeR(0, rt, rd, sa, 0x00) }
func SRL(rd, rt, sa uint8) uint32  { return encodeR(0, rt, rd, sa, 0x02) }
func SRA(rd, rt, sa uint8) uint32  { return encodeR(0, rt, rd, sa, 0x03) }
func SLLV(rd, rt, rs uint8) uint32 { return encodeR(rs, rt, rd, 0, 0x04) }
func SRLV(rd, rt, rs uint8) uint32 { return encodeR(rs, rt, rd, 0, 0x06) }
func SRAV(rd, rt, rs uint8) uint32 { return encodeR(rs, rt, rd, 0, 0x07) }

// Multiply unit.

func MULT(rs, rt uint8) uint32  { return encodeR(rs, rt, 0, 0, 0x18) }
func MULTU(rs, rt uint8) uint32 { return encodeR(rs, rt, 0, 0, 0x19) }
func DIV(rs, rt uint8) uint32   { return encodeR(rs, rt, 0, 0, 0x1a) }
func DIVU(rs, rt uint8) uint32  { return encodeR(rs, rt, 0, 0, 0x1b) }
func MFHI(rd uint8) uint32      { return encodeR(0, 0, rd, 0, 0x10) }
func MTHI(rs uint8) uint32      { return encodeR(rs, 0, 0, 0, 0x11) }
func MFLO(rd uint8) uint32      { return encodeR(0, 0, rd, 0, 0x12) }
func MTLO(rs uint8) uint32      { return encodeR(rs, 0, 0, 0, 0x13) }

// Loads and stores: rt, imm(rs).

func LB(rt, rs uint8, imm int16) uint32   { return encodeI(opLB, rs, rt, uint16(imm)) }
func LBU(rt, rs uint8, imm int16) uint32  { return encodeI(opLBU, rs, rt, uint16(imm)) }
func LH(rt, rs uint8, imm int16) uint32   { return encodeI(opLH, rs, rt, uint16(imm)) }
func LHU(rt, rs uint8, imm int16) uint32  { return encodeI(opLHU, rs, rt, uint16(imm)) }
func LW(rt, rs uint8, imm int16) uint32   { return encodeI(opLW, rs, rt, uint16(imm)) }
func LWL(rt, rs uint8, imm int16) uint32  { return encodeI(opLWL, rs, rt, uint16(imm)) }
func LWR(rt, rs uint8, imm int16) uint32  { return encodeI(opLWR, rs, rt, uint16(imm)) }
func SB(rt, rs uint8, imm int16) uint32   { return encodeI(opSB, rs, rt, uint16(imm)) }
func SH(rt, rs uint8, imm int16) uint32   { return encodeI(opSH, rs, rt, uint16(imm)) }
func SW(rt, rs uint8, imm int16) uint32   { return encodeI(opSW, rs, rt, uint16(imm)) }
func SWL(rt, rs uint8, imm int16) uint32  { return encodeI(opSWL, rs, rt, uint16(imm)) }
func SWR(rt, rs uint8, imm int16) uint32  { return encodeI(opSWR, rs, rt, uint16(imm)) }
func LWC2(rt, rs uint8, imm int16) uint32 { return encodeI(opLWC2, rs, rt, uint16(imm)) }
func SWC2(rt, rs uint8, imm int16) uint32 { return encodeI(opSWC2, rs, rt, uint16(imm)) }

// Branches and jumps.

func BEQ(rs, rt uint8, off int16) uint32 { return encodeI(opBEQ, rs, rt, uint16(off)) }
func BNE(rs, rt uint8, off int16) uint32 { return encodeI(opBNE, rs, rt, uint16(off)) }
func BLEZ(rs uint8, off int16) uint32    { return encodeI(opBLEZ, rs, 0, uint16(off)) }
func BGTZ(rs uint8, off int16) uint32    { return encodeI(opBGTZ, rs, 0, uint16(off)) }
func BLTZ(rs uint8, off int16) uint32    { return encodeI(opREGIMM, rs, 0x00, uint16(off)) }
func BGEZ(rs uint8, off int16) uint32    { return encodeI(opREGIMM, rs, 0x01, uint16(off)) }
func BLTZAL(rs uint8, off int16) uint32  { return encodeI(opREGIMM, rs, 0x10, uint16(off)) }
func BGEZAL(rs uint8, off int16) uint32  { return encodeI(opREGIMM, rs, 0x11, uint16(off)) }

// J and JAL take the absolute target address; only its low 28 bits are
// encoded.
func J(target uint32) uint32   { return opJ<<26 | (target&0x0fffffff)>>2 }
func JAL(target uint32) uint32 { return opJAL<<26 | (target&0x0fffffff)>>2 }

func JR(rs uint8) uint32         { return encodeR(rs, 0, 0, 0, fnJR) }
func JALR(rd, rs uint8) uint32   { return encodeR(rs, 0, rd, 0, fnJALR) }
func SYSCALL(code uint32) uint32 { return (code&0xfffff)<<6 | 0x0c }
func BREAK(code uint32) uint32   { return (code&0xfffff)<<6 | 0x0d }

// Coprocessors.

func MFC0(rt, rd uint8) uint32 { return encodeCop(opCOP0, 0x00, rt, rd) }
func MTC0(rt, rd uint8) uint32 { return encodeCop(opCOP0, 0x04, rt, rd) }

// RFE is the COP0 return-from-exception word.
const RFE uint32 = opCOP0<<26 | 1<<25 | 0x10

func MFC2(rt, rd uint8) uint32 { return encodeCop(opCOP2, 0x00, rt, rd) }
func CFC2(rt, rd uint8) uint32 { return encodeCop(opCOP2, 0x02, rt, rd) }
func MTC2(rt, rd uint8) uint32 { return encodeCop(opCOP2, 0x04, rt, rd) }
func CTC2(rt, rd uint8) uint32 { return encodeCop(opCOP2, 0x06, rt, rd) }

// COP2 returns a GTE command word for op. arg fills bits [24:10].
func COP2(op GTEOp, arg uint32) uint32 {
	return opCOP2<<26 | 1<<25 | (arg<<10)&0x01fffc00 | uint32(op)&0x3f
}
