package asm

import "fmt"

// Op identifies a decoded host instruction.
type Op uint8

// Host opcodes known to the decoder. These are exactly the forms the
// encoder can produce.
const (
	OpUnknown Op = iota
	OpLB
	OpLBU
	OpLH
	OpLHU
	OpLW
	OpLWL
	OpLWR
	OpSB
	OpSH
	OpSW
	OpSWL
	OpSWR
	OpADDIU
	OpSLTI
	OpSLTIU
	OpANDI
	OpORI
	OpXORI
	OpLUI
	OpADDU
	OpSUBU
	OpAND
	OpOR
	OpXOR
	OpNOR
	OpSLT
	OpSLTU
	OpMOVN
	OpMOVZ
	OpSLL
	OpSRL
	OpSRA
	OpSLLV
	OpSRLV
	OpSRAV
	OpMUL
	OpMULT
	OpMULTU
	OpDIV
	OpDIVU
	OpMFHI
	OpMFLO
	OpJ
	OpJAL
	OpJR
	OpJALR
	OpBEQ
	OpBNE
	OpBLEZ
	OpBGTZ
	OpBLTZ
	OpBGEZ
	OpEXT
	OpINS
	OpSEB
	OpSEH
	OpCLZ
)

var opNames = map[Op]string{
	OpLB: "lb", OpLBU: "lbu", OpLH: "lh", OpLHU: "lhu", OpLW: "lw",
	OpLWL: "lwl", OpLWR: "lwr", OpSB: "sb", OpSH: "sh", OpSW: "sw",
	OpSWL: "swl", OpSWR: "swr", OpADDIU: "addiu", OpSLTI: "slti",
	OpSLTIU: "sltiu", OpANDI: "andi", OpORI: "ori", OpXORI: "xori",
	OpLUI: "lui", OpADDU: "addu", OpSUBU: "subu", OpAND: "and", OpOR: "or",
	OpXOR: "xor", OpNOR: "nor", OpSLT: "slt", OpSLTU: "sltu", OpMOVN: "movn",
	OpMOVZ: "movz", OpSLL: "sll", OpSRL: "srl", OpSRA: "sra", OpSLLV: "sllv",
	OpSRLV: "srlv", OpSRAV: "srav", OpMUL: "mul", OpMULT: "mult",
	OpMULTU: "multu", OpDIV: "div", OpDIVU: "divu", OpMFHI: "mfhi",
	OpMFLO: "mflo", OpJ: "j", OpJAL: "jal", OpJR: "jr", OpJALR: "jalr",
	OpBEQ: "beq", OpBNE: "bne", OpBLEZ: "blez", OpBGTZ: "bgtz",
	OpBLTZ: "bltz", OpBGEZ: "bgez", OpEXT: "ext", OpINS: "ins",
	OpSEB: "seb", OpSEH: "seh", OpCLZ: "clz",
}

// String returns the assembler mnemonic.
func (o Op) String() string {
	if name, ok := opNames[o]; ok {
		return name
	}
	return "unknown"
}

// Liveness mask bits beyond the 32 general-purpose registers.
const (
	MaskLO uint64 = 1 << 32
	MaskHI uint64 = 1 << 33
)

// Inst is a decoded host instruction word.
type Inst struct {
	Op   Op
	Word uint32

	Rs Reg
	Rt Reg
	Rd Reg
	Sa uint32 // shift amount, or bit position for EXT/INS

	Imm    uint16 // raw 16-bit immediate
	Target uint32 // 26-bit jump index
}

// Decode decodes one host instruction word. Words the encoder never
// produces decode as OpUnknown.
func Decode(word uint32) Inst {
	inst := Inst{
		Word: word,
		Rs:   Reg((word >> 21) & 0x1f), // bits [25:21]
		Rt:   Reg((word >> 16) & 0x1f), // bits [20:16]
		Rd:   Reg((word >> 11) & 0x1f), // bits [15:11]
		Sa:   (word >> 6) & 0x1f,       // bits [10:6]
		Imm:  uint16(word),             // bits [15:0]
	}
	op := word >> 26

	switch op {
	case opSpecial:
		inst.Op = decodeSpecial(word & 0x3f)
	case opRegImm:
		switch inst.Rt {
		case riBLTZ:
			inst.Op = OpBLTZ
		case riBGEZ:
			inst.Op = OpBGEZ
		}
	case opJ, opJAL:
		inst.Target = word & 0x03ffffff
		inst.Op = OpJ
		if op == opJAL {
			inst.Op = OpJAL
		}
	case opSpecial2:
		switch word & 0x3f {
		case fn2MUL:
			inst.Op = OpMUL
		case fn2CLZ:
			inst.Op = OpCLZ
		}
	case opSpecial3:
		inst.Op = decodeSpecial3(word)
	default:
		inst.Op = immOps[op]
	}

	return inst
}

var immOps = map[uint32]Op{
	opBEQ: OpBEQ, opBNE: OpBNE, opBLEZ: OpBLEZ, opBGTZ: OpBGTZ,
	opADDIU: OpADDIU, opSLTI: OpSLTI, opSLTIU: OpSLTIU, opANDI: OpANDI,
	opORI: OpORI, opXORI: OpXORI, opLUI: OpLUI,
	opLB: OpLB, opLH: OpLH, opLWL: OpLWL, opLW: OpLW, opLBU: OpLBU,
	opLHU: OpLHU, opLWR: OpLWR, opSB: OpSB, opSH: OpSH, opSWL: OpSWL,
	opSW: OpSW, opSWR: OpSWR,
}

var specialOps = map[uint32]Op{
	fnSLL: OpSLL, fnSRL: OpSRL, fnSRA: OpSRA, fnSLLV: OpSLLV,
	fnSRLV: OpSRLV, fnSRAV: OpSRAV, fnJR: OpJR, fnJALR: OpJALR,
	fnMOVZ: OpMOVZ, fnMOVN: OpMOVN, fnMFHI: OpMFHI, fnMFLO: OpMFLO,
	fnMULT: OpMULT, fnMULTU: OpMULTU, fnDIV: OpDIV, fnDIVU: OpDIVU,
	fnADDU: OpADDU, fnSUBU: OpSUBU, fnAND: OpAND, fnOR: OpOR,
	fnXOR: OpXOR, fnNOR: OpNOR, fnSLT: OpSLT, fnSLTU: OpSLTU,
}

func decodeSpecial(funct uint32) Op {
	return specialOps[funct]
}

func decodeSpecial3(word uint32) Op {
	switch word & 0x3f {
	case fn3EXT:
		return OpEXT
	case fn3INS:
		return OpINS
	case fn3BSHFL:
		switch (word >> 6) & 0x1f {
		case bshflSEB:
			return OpSEB
		case bshflSEH:
			return OpSEH
		}
	}
	return OpUnknown
}

// SImm returns the sign-extended immediate.
func (i Inst) SImm() int32 {
	return int32(int16(i.Imm))
}

// BranchOffset returns the byte offset of a branch target from its delay slot.
func (i Inst) BranchOffset() int32 {
	return i.SImm() << 2
}

// JumpAddr returns the absolute target of J/JAL executed at pc.
func (i Inst) JumpAddr(pc uint32) uint32 {
	return ((pc + 4) & 0xf0000000) | i.Target<<2
}

// ExtSize returns the field width of an EXT or INS.
func (i Inst) ExtSize() uint32 {
	if i.Op == OpINS {
		return uint32(i.Rd) - i.Sa + 1
	}
	return uint32(i.Rd) + 1
}

// IsLoad reports whether the instruction reads memory.
func (i Inst) IsLoad() bool {
	return i.Op >= OpLB && i.Op <= OpLWR
}

// IsStore reports whether the instruction writes memory.
func (i Inst) IsStore() bool {
	return i.Op >= OpSB && i.Op <= OpSWR
}

// IsBranch reports whether the instruction is a conditional branch.
func (i Inst) IsBranch() bool {
	return i.Op >= OpBEQ && i.Op <= OpBGEZ
}

// IsJump reports whether the instruction is J, JAL, JR or JALR.
func (i Inst) IsJump() bool {
	return i.Op >= OpJ && i.Op <= OpJALR
}

// HasDelaySlot reports whether the next word executes before the transfer.
func (i Inst) HasDelaySlot() bool {
	return i.IsBranch() || i.IsJump()
}

func bit(r Reg) uint64 {
	if r == Zero {
		return 0
	}
	return 1 << r
}

// Reads returns the liveness mask of registers read. Bit n is host register
// n; MaskLO/MaskHI cover the multiply unit. $zero never appears.
func (i Inst) Reads() uint64 {
	switch i.Op {
	case OpLB, OpLBU, OpLH, OpLHU, OpLW, OpADDIU, OpSLTI, OpSLTIU,
		OpANDI, OpORI, OpXORI, OpJR, OpJALR, OpBLEZ, OpBGTZ, OpBLTZ,
		OpBGEZ, OpCLZ, OpEXT:
		return bit(i.Rs)
	case OpLWL, OpLWR, OpINS:
		// Partial loads and inserts merge into the old rt.
		return bit(i.Rs) | bit(i.Rt)
	case OpSB, OpSH, OpSW, OpSWL, OpSWR, OpADDU, OpSUBU, OpAND, OpOR,
		OpXOR, OpNOR, OpSLT, OpSLTU, OpSLLV, OpSRLV, OpSRAV, OpMUL,
		OpMULT, OpMULTU, OpDIV, OpDIVU, OpBEQ, OpBNE:
		return bit(i.Rs) | bit(i.Rt)
	case OpMOVN, OpMOVZ:
		// The old rd survives when the condition fails.
		return bit(i.Rs) | bit(i.Rt) | bit(i.Rd)
	case OpSLL, OpSRL, OpSRA, OpSEB, OpSEH:
		return bit(i.Rt)
	case OpMFHI:
		return MaskHI
	case OpMFLO:
		return MaskLO
	}
	return 0
}

// Writes returns the liveness mask of registers written.
func (i Inst) Writes() uint64 {
	switch i.Op {
	case OpLB, OpLBU, OpLH, OpLHU, OpLW, OpLWL, OpLWR, OpADDIU, OpSLTI,
		OpSLTIU, OpANDI, OpORI, OpXORI, OpLUI, OpEXT, OpINS, OpCLZ:
		return bit(i.Rt)
	case OpADDU, OpSUBU, OpAND, OpOR, OpXOR, OpNOR, OpSLT, OpSLTU,
		OpMOVN, OpMOVZ, OpSLL, OpSRL, OpSRA, OpSLLV, OpSRLV, OpSRAV,
		OpMUL, OpMFHI, OpMFLO, OpSEB, OpSEH, OpJALR:
		return bit(i.Rd)
	case OpMULT, OpMULTU, OpDIV, OpDIVU:
		return MaskLO | MaskHI
	case OpJAL:
		return bit(RA)
	}
	return 0
}

// String disassembles the instruction. Branch targets are printed as byte
// offsets from the delay slot, jump targets as region-relative addresses.
func (i Inst) String() string {
	if i.Word == 0 {
		return "nop"
	}
	name := i.Op.String()

	switch i.Op {
	case OpUnknown:
		return fmt.Sprintf(".word 0x%08x", i.Word)
	case OpLB, OpLBU, OpLH, OpLHU, OpLW, OpLWL, OpLWR,
		OpSB, OpSH, OpSW, OpSWL, OpSWR:
		return fmt.Sprintf("%s %s, %d(%s)", name, i.Rt, i.SImm(), i.Rs)
	case OpADDIU, OpSLTI, OpSLTIU:
		return fmt.Sprintf("%s %s, %s, %d", name, i.Rt, i.Rs, i.SImm())
	case OpANDI, OpORI, OpXORI:
		return fmt.Sprintf("%s %s, %s, 0x%x", name, i.Rt, i.Rs, i.Imm)
	case OpLUI:
		return fmt.Sprintf("lui %s, 0x%x", i.Rt, i.Imm)
	case OpSLL, OpSRL, OpSRA:
		return fmt.Sprintf("%s %s, %s, %d", name, i.Rd, i.Rt, i.Sa)
	case OpSLLV, OpSRLV, OpSRAV:
		return fmt.Sprintf("%s %s, %s, %s", name, i.Rd, i.Rt, i.Rs)
	case OpADDU:
		if i.Rt == Zero {
			return fmt.Sprintf("move %s, %s", i.Rd, i.Rs)
		}
		return fmt.Sprintf("addu %s, %s, %s", i.Rd, i.Rs, i.Rt)
	case OpMULT, OpMULTU, OpDIV, OpDIVU:
		return fmt.Sprintf("%s %s, %s", name, i.Rs, i.Rt)
	case OpMFHI, OpMFLO:
		return fmt.Sprintf("%s %s", name, i.Rd)
	case OpJ, OpJAL:
		return fmt.Sprintf("%s 0x%07x", name, i.Target<<2)
	case OpJR:
		return fmt.Sprintf("jr %s", i.Rs)
	case OpJALR:
		return fmt.Sprintf("jalr %s, %s", i.Rd, i.Rs)
	case OpBEQ, OpBNE:
		return fmt.Sprintf("%s %s, %s, %d", name, i.Rs, i.Rt, i.BranchOffset())
	case OpBLEZ, OpBGTZ, OpBLTZ, OpBGEZ:
		return fmt.Sprintf("%s %s, %d", name, i.Rs, i.BranchOffset())
	case OpEXT, OpINS:
		return fmt.Sprintf("%s %s, %s, %d, %d", name, i.Rt, i.Rs, i.Sa, i.ExtSize())
	case OpSEB, OpSEH:
		return fmt.Sprintf("%s %s, %s", name, i.Rd, i.Rt)
	case OpCLZ:
		return fmt.Sprintf("clz %s, %s", i.Rd, i.Rs)
	}
	return fmt.Sprintf("%s %s, %s, %s", name, i.Rd, i.Rs, i.Rt)
}

// Disassemble renders sealed code one instruction per line, prefixed with
// the host address.
func Disassemble(code *Code) []string {
	lines := make([]string, code.Len())
	for n := range lines {
		lines[n] = fmt.Sprintf("%08x: %08x  %s", code.Addr(n), code.Word(n), Decode(code.Word(n)))
	}
	return lines
}
