package insts

// Classifier predicates over raw guest words. They mirror the subsets the
// recompiler needs and are deliberately narrower than Decode: REGIMM only
// counts the four architected selectors as branches.

// IsLoad reports whether word is LB, LH, LWL, LW, LBU, LHU or LWR.
func IsLoad(word uint32) bool {
	op := Opcode(word)
	return op >= opLB && op <= opLWR
}

// IsStore reports whether word is SB, SH, SWL, SW or SWR.
func IsStore(word uint32) bool {
	op := Opcode(word)
	return (op >= opSB && op <= opSW) || op == opSWR
}

// IsLoadUnaligned reports whether word is LWL or LWR.
func IsLoadUnaligned(word uint32) bool {
	op := Opcode(word)
	return op == opLWL || op == opLWR
}

// IsStoreUnaligned reports whether word is SWL or SWR.
func IsStoreUnaligned(word uint32) bool {
	op := Opcode(word)
	return op == opSWL || op == opSWR
}

// IsGTETransfer reports whether word is LWC2 or SWC2.
func IsGTETransfer(word uint32) bool {
	op := Opcode(word)
	return op == opLWC2 || op == opSWC2
}

// IsBranch reports whether word is a conditional branch, including the
// linking REGIMM forms.
func IsBranch(word uint32) bool {
	op := Opcode(word)
	if op == opREGIMM {
		switch Rt(word) {
		case 0x00, 0x01, 0x10, 0x11:
			return true
		}
		return false
	}
	return op >= opBEQ && op <= opBGTZ
}

// IsIndirectJump reports whether word is JR or JALR.
func IsIndirectJump(word uint32) bool {
	return Opcode(word) == opSPECIAL && (Funct(word) == fnJR || Funct(word) == fnJALR)
}

// IsDirectJump reports whether word is J or JAL.
func IsDirectJump(word uint32) bool {
	op := Opcode(word)
	return op == opJ || op == opJAL
}

// IsJump reports whether word is any jump.
func IsJump(word uint32) bool {
	return IsIndirectJump(word) || IsDirectJump(word)
}

// IsBranchOrJump reports whether word has a delay slot.
func IsBranchOrJump(word uint32) bool {
	return IsBranch(word) || IsJump(word)
}

// JumpTarget returns the absolute target of J/JAL. The upper four bits come
// from the address of the delay slot, as the R3000A computes them.
func JumpTarget(word, delaySlotPC uint32) uint32 {
	return (delaySlotPC & 0xf0000000) | Target(word)<<2
}

// BranchTarget returns the absolute target of a branch whose delay slot sits
// at delaySlotPC.
func BranchTarget(word, delaySlotPC uint32) uint32 {
	return delaySlotPC + uint32(int32(SImm16(word))*4)
}

// ALUInfo describes the operand usage of an ALU instruction.
type ALUInfo struct {
	// Dest is the destination register index (rt for immediate forms,
	// rd for register forms).
	Dest uint8
	// WritesRt is true when the destination is the rt field.
	WritesRt bool
	ReadsRs  bool
	ReadsRt  bool
}

// IsALU reports whether word is a single-cycle ALU instruction and, if so,
// which fields it reads and writes. Multiply/divide and HI/LO moves are not
// ALU instructions here.
func IsALU(word uint32) (ALUInfo, bool) {
	switch op := Opcode(word); op {
	case opADDI, opADDIU, opSLTI, opSLTIU, opANDI, opORI, opXORI:
		return ALUInfo{Dest: Rt(word), WritesRt: true, ReadsRs: true}, true
	case opLUI:
		return ALUInfo{Dest: Rt(word), WritesRt: true}, true
	case opSPECIAL:
		switch Funct(word) {
		case 0x00, 0x02, 0x03: // SLL, SRL, SRA
			if word == 0 {
				return ALUInfo{}, false
			}
			return ALUInfo{Dest: Rd(word), ReadsRt: true}, true
		// SLLV SRLV SRAV, ADD ADDU SUB SUBU, AND OR XOR NOR, SLT SLTU
		case 0x04, 0x06, 0x07, 0x20, 0x21, 0x22, 0x23, 0x24, 0x25, 0x26, 0x27, 0x2a, 0x2b:
			return ALUInfo{Dest: Rd(word), ReadsRs: true, ReadsRt: true}, true
		}
	}
	return ALUInfo{}, false
}

// Liveness mask bits for the multiply unit.
const (
	MaskLO uint64 = 1 << 32
	MaskHI uint64 = 1 << 33
)

func regBit(r uint8) uint64 {
	if r == 0 {
		return 0
	}
	return 1 << r
}

// Reads returns the mask of guest registers read by word. Bit n is guest
// register n, MaskLO/MaskHI the multiply unit. Register 0 never appears.
func Reads(word uint32) uint64 {
	rs, rt := regBit(Rs(word)), regBit(Rt(word))

	switch op := Opcode(word); op {
	case opSPECIAL:
		switch Funct(word) {
		case 0x00, 0x02, 0x03:
			return rt
		case 0x08, 0x09, 0x11, 0x13: // JR, JALR, MTHI, MTLO
			return rs
		case 0x10:
			return MaskHI
		case 0x12:
			return MaskLO
		case 0x0c, 0x0d:
			return 0
		}
		return rs | rt
	case opREGIMM, opBLEZ, opBGTZ, opADDI, opADDIU, opSLTI, opSLTIU,
		opANDI, opORI, opXORI, opLB, opLH, opLW, opLBU, opLHU,
		opLWC2, opSWC2:
		return rs
	case opBEQ, opBNE, opSB, opSH, opSWL, opSW, opSWR, opLWL, opLWR:
		return rs | rt
	case opCOP0, opCOP2:
		switch Rs(word) {
		case 0x04, 0x06: // MTCz, CTCz
			return rt
		}
	}
	return 0
}

// Writes returns the mask of guest registers written by word.
func Writes(word uint32) uint64 {
	rt, rd := regBit(Rt(word)), regBit(Rd(word))

	switch op := Opcode(word); op {
	case opSPECIAL:
		switch Funct(word) {
		case 0x08, 0x0c, 0x0d: // JR, SYSCALL, BREAK
			return 0
		case 0x11:
			return MaskHI
		case 0x13:
			return MaskLO
		case 0x18, 0x19, 0x1a, 0x1b:
			return MaskLO | MaskHI
		}
		return rd
	case opREGIMM:
		if Rt(word)&0x10 != 0 {
			return regBit(31)
		}
	case opJAL:
		return regBit(31)
	case opADDI, opADDIU, opSLTI, opSLTIU, opANDI, opORI, opXORI, opLUI,
		opLB, opLH, opLWL, opLW, opLBU, opLHU, opLWR:
		return rt
	case opCOP0, opCOP2:
		switch Rs(word) {
		case 0x00, 0x02: // MFCz, CFCz
			return rt
		}
	}
	return 0
}
