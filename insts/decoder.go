package insts

// Op represents an R3000A opcode.
type Op uint8

// R3000A opcodes.
const (
	OpUnknown Op = iota

	// SPECIAL
	OpSLL
	OpSRL
	OpSRA
	OpSLLV
	OpSRLV
	OpSRAV
	OpJR
	OpJALR
	OpSYSCALL
	OpBREAK
	OpMFHI
	OpMTHI
	OpMFLO
	OpMTLO
	OpMULT
	OpMULTU
	OpDIV
	OpDIVU
	OpADD
	OpADDU
	OpSUB
	OpSUBU
	OpAND
	OpOR
	OpXOR
	OpNOR
	OpSLT
	OpSLTU

	// REGIMM
	OpBLTZ
	OpBGEZ
	OpBLTZAL
	OpBGEZAL

	// Jumps, branches and immediates
	OpJ
	OpJAL
	OpBEQ
	OpBNE
	OpBLEZ
	OpBGTZ
	OpADDI
	OpADDIU
	OpSLTI
	OpSLTIU
	OpANDI
	OpORI
	OpXORI
	OpLUI

	// Coprocessors
	OpMFC0
	OpMTC0
	OpRFE
	OpMFC2
	OpCFC2
	OpMTC2
	OpCTC2
	OpCOP2 // GTE command

	// Memory
	OpLB
	OpLH
	OpLWL
	OpLW
	OpLBU
	OpLHU
	OpLWR
	OpSB
	OpSH
	OpSWL
	OpSW
	OpSWR
	OpLWC2
	OpSWC2
)

// Format represents an instruction encoding format.
type Format uint8

// Instruction formats.
const (
	FormatUnknown Format = iota // unrecognised word
	FormatR                     // register: op | rs | rt | rd | shamt | funct
	FormatI                     // immediate: op | rs | rt | imm16
	FormatJ                     // jump: op | target26
	FormatCop                   // coprocessor move or command
)

// Primary opcode values.
const (
	opSPECIAL = 0x00
	opREGIMM  = 0x01
	opJ       = 0x02
	opJAL     = 0x03
	opBEQ     = 0x04
	opBNE     = 0x05
	opBLEZ    = 0x06
	opBGTZ    = 0x07
	opADDI    = 0x08
	opADDIU   = 0x09
	opSLTI    = 0x0a
	opSLTIU   = 0x0b
	opANDI    = 0x0c
	opORI     = 0x0d
	opXORI    = 0x0e
	opLUI     = 0x0f
	opCOP0    = 0x10
	opCOP2    = 0x12
	opLB      = 0x20
	opLH      = 0x21
	opLWL     = 0x22
	opLW      = 0x23
	opLBU     = 0x24
	opLHU     = 0x25
	opLWR     = 0x26
	opSB      = 0x28
	opSH      = 0x29
	opSWL     = 0x2a
	opSW      = 0x2b
	opSWR     = 0x2e
	opLWC2    = 0x32
	opSWC2    = 0x3a
)

// SPECIAL funct values used by the classifier.
const (
	fnJR   = 0x08
	fnJALR = 0x09
)

var specialOps = map[uint32]Op{
	0x00: OpSLL, 0x02: OpSRL, 0x03: OpSRA, 0x04: OpSLLV, 0x06: OpSRLV,
	0x07: OpSRAV, 0x08: OpJR, 0x09: OpJALR, 0x0c: OpSYSCALL, 0x0d: OpBREAK,
	0x10: OpMFHI, 0x11: OpMTHI, 0x12: OpMFLO, 0x13: OpMTLO, 0x18: OpMULT,
	0x19: OpMULTU, 0x1a: OpDIV, 0x1b: OpDIVU, 0x20: OpADD, 0x21: OpADDU,
	0x22: OpSUB, 0x23: OpSUBU, 0x24: OpAND, 0x25: OpOR, 0x26: OpXOR,
	0x27: OpNOR, 0x2a: OpSLT, 0x2b: OpSLTU,
}

var primaryOps = map[uint32]Op{
	opJ: OpJ, opJAL: OpJAL, opBEQ: OpBEQ, opBNE: OpBNE, opBLEZ: OpBLEZ,
	opBGTZ: OpBGTZ, opADDI: OpADDI, opADDIU: OpADDIU, opSLTI: OpSLTI,
	opSLTIU: OpSLTIU, opANDI: OpANDI, opORI: OpORI, opXORI: OpXORI,
	opLUI: OpLUI, opLB: OpLB, opLH: OpLH, opLWL: OpLWL, opLW: OpLW,
	opLBU: OpLBU, opLHU: OpLHU, opLWR: OpLWR, opSB: OpSB, opSH: OpSH,
	opSWL: OpSWL, opSW: OpSW, opSWR: OpSWR, opLWC2: OpLWC2, opSWC2: OpSWC2,
}

var opNames = map[Op]string{
	OpSLL: "SLL", OpSRL: "SRL", OpSRA: "SRA", OpSLLV: "SLLV", OpSRLV: "SRLV",
	OpSRAV: "SRAV", OpJR: "JR", OpJALR: "JALR", OpSYSCALL: "SYSCALL",
	OpBREAK: "BREAK", OpMFHI: "MFHI", OpMTHI: "MTHI", OpMFLO: "MFLO",
	OpMTLO: "MTLO", OpMULT: "MULT", OpMULTU: "MULTU", OpDIV: "DIV",
	OpDIVU: "DIVU", OpADD: "ADD", OpADDU: "ADDU", OpSUB: "SUB",
	OpSUBU: "SUBU", OpAND: "AND", OpOR: "OR", OpXOR: "XOR", OpNOR: "NOR",
	OpSLT: "SLT", OpSLTU: "SLTU", OpBLTZ: "BLTZ", OpBGEZ: "BGEZ",
	OpBLTZAL: "BLTZAL", OpBGEZAL: "BGEZAL", OpJ: "J", OpJAL: "JAL",
	OpBEQ: "BEQ", OpBNE: "BNE", OpBLEZ: "BLEZ", OpBGTZ: "BGTZ",
	OpADDI: "ADDI", OpADDIU: "ADDIU", OpSLTI: "SLTI", OpSLTIU: "SLTIU",
	OpANDI: "ANDI", OpORI: "ORI", OpXORI: "XORI", OpLUI: "LUI",
	OpMFC0: "MFC0", OpMTC0: "MTC0", OpRFE: "RFE", OpMFC2: "MFC2",
	OpCFC2: "CFC2", OpMTC2: "MTC2", OpCTC2: "CTC2", OpCOP2: "COP2",
	OpLB: "LB", OpLH: "LH", OpLWL: "LWL", OpLW: "LW", OpLBU: "LBU",
	OpLHU: "LHU", OpLWR: "LWR", OpSB: "SB", OpSH: "SH", OpSWL: "SWL",
	OpSW: "SW", OpSWR: "SWR", OpLWC2: "LWC2", OpSWC2: "SWC2",
}

// String returns the mnemonic.
func (o Op) String() string {
	if name, ok := opNames[o]; ok {
		return name
	}
	return "UNKNOWN"
}

// Instruction represents a decoded R3000A instruction.
type Instruction struct {
	Op     Op     // Operation code
	Format Format // Encoding format
	Word   uint32 // Raw instruction word

	Rs    uint8 // bits [25:21]
	Rt    uint8 // bits [20:16]
	Rd    uint8 // bits [15:11]
	Shamt uint8 // bits [10:6]

	Imm    uint16 // bits [15:0]
	Target uint32 // bits [25:0] for J/JAL
}

// SImm returns the sign-extended immediate.
func (i *Instruction) SImm() int32 {
	return int32(int16(i.Imm))
}

// IsNOP reports whether the word is the canonical NOP (all zero).
func (i *Instruction) IsNOP() bool {
	return i.Word == 0
}

// Decoder decodes R3000A machine code into instructions.
type Decoder struct{}

// NewDecoder creates a new R3000A instruction decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode decodes a 32-bit R3000A instruction word.
func (d *Decoder) Decode(word uint32) *Instruction {
	inst := &Instruction{
		Op:    OpUnknown,
		Word:  word,
		Rs:    Rs(word),
		Rt:    Rt(word),
		Rd:    Rd(word),
		Shamt: Shamt(word),
		Imm:   Imm16(word),
	}

	switch op := Opcode(word); op {
	case opSPECIAL:
		inst.Format = FormatR
		inst.Op = specialOps[Funct(word)]
	case opREGIMM:
		inst.Format = FormatI
		inst.Op = d.decodeRegImm(inst.Rt)
	case opJ, opJAL:
		inst.Format = FormatJ
		inst.Op = primaryOps[op]
		inst.Target = Target(word)
	case opCOP0:
		inst.Format = FormatCop
		inst.Op = d.decodeCop0(word)
	case opCOP2:
		inst.Format = FormatCop
		inst.Op = d.decodeCop2(word)
	default:
		if o, ok := primaryOps[op]; ok {
			inst.Format = FormatI
			inst.Op = o
		}
	}

	return inst
}

// decodeRegImm decodes the REGIMM branches from the rt selector.
func (d *Decoder) decodeRegImm(rt uint8) Op {
	switch rt {
	case 0x00:
		return OpBLTZ
	case 0x01:
		return OpBGEZ
	case 0x10:
		return OpBLTZAL
	case 0x11:
		return OpBGEZAL
	}
	return OpUnknown
}

// decodeCop0 decodes the system control coprocessor moves.
// The rs field selects the move direction; bit 25 marks a command.
func (d *Decoder) decodeCop0(word uint32) Op {
	if word&(1<<25) != 0 {
		if Funct(word) == 0x10 {
			return OpRFE
		}
		return OpUnknown
	}
	switch Rs(word) {
	case 0x00:
		return OpMFC0
	case 0x04:
		return OpMTC0
	}
	return OpUnknown
}

// decodeCop2 decodes the GTE moves and commands.
func (d *Decoder) decodeCop2(word uint32) Op {
	if word&(1<<25) != 0 {
		return OpCOP2
	}
	switch Rs(word) {
	case 0x00:
		return OpMFC2
	case 0x02:
		return OpCFC2
	case 0x04:
		return OpMTC2
	case 0x06:
		return OpCTC2
	}
	return OpUnknown
}
