package insts

// GTEOp is a GTE command number, the funct field of a COP2 command word.
type GTEOp uint8

// GTE commands.
const (
	GTERTPS  GTEOp = 0x01
	GTENCLIP GTEOp = 0x06
	GTEOP    GTEOp = 0x0c
	GTEDPCS  GTEOp = 0x10
	GTEINTPL GTEOp = 0x11
	GTEMVMVA GTEOp = 0x12
	GTENCDS  GTEOp = 0x13
	GTECDP   GTEOp = 0x14
	GTENCDT  GTEOp = 0x16
	GTENCCS  GTEOp = 0x1b
	GTECC    GTEOp = 0x1c
	GTENCS   GTEOp = 0x1e
	GTENCT   GTEOp = 0x20
	GTESQR   GTEOp = 0x28
	GTEDCPL  GTEOp = 0x29
	GTEDPCT  GTEOp = 0x2a
	GTEAVSZ3 GTEOp = 0x2d
	GTEAVSZ4 GTEOp = 0x2e
	GTERTPT  GTEOp = 0x30
	GTEGPF   GTEOp = 0x3d
	GTEGPL   GTEOp = 0x3e
	GTENCCT  GTEOp = 0x3f
)

// GTEArgs is the calling convention of a GTE handler.
type GTEArgs uint8

// GTE handler conventions.
const (
	// GTENoArgs handlers take no arguments.
	GTENoArgs GTEArgs = iota
	// GTEOneArg handlers take the command word shifted right by 10 in $a0.
	// At most 16 bits of it are meaningful.
	GTEOneArg
)

// GTECommand describes one entry of the GTE command table.
type GTECommand struct {
	Op   GTEOp
	Name string
	Args GTEArgs
}

var gteCommands = map[GTEOp]GTECommand{
	GTERTPS:  {GTERTPS, "RTPS", GTENoArgs},
	GTENCLIP: {GTENCLIP, "NCLIP", GTENoArgs},
	GTEOP:    {GTEOP, "OP", GTEOneArg},
	GTEDPCS:  {GTEDPCS, "DPCS", GTEOneArg},
	GTEINTPL: {GTEINTPL, "INTPL", GTEOneArg},
	GTEMVMVA: {GTEMVMVA, "MVMVA", GTEOneArg},
	GTENCDS:  {GTENCDS, "NCDS", GTENoArgs},
	GTECDP:   {GTECDP, "CDP", GTENoArgs},
	GTENCDT:  {GTENCDT, "NCDT", GTENoArgs},
	GTENCCS:  {GTENCCS, "NCCS", GTENoArgs},
	GTECC:    {GTECC, "CC", GTENoArgs},
	GTENCS:   {GTENCS, "NCS", GTENoArgs},
	GTENCT:   {GTENCT, "NCT", GTENoArgs},
	GTESQR:   {GTESQR, "SQR", GTEOneArg},
	GTEDCPL:  {GTEDCPL, "DCPL", GTEOneArg},
	GTEDPCT:  {GTEDPCT, "DPCT", GTENoArgs},
	GTEAVSZ3: {GTEAVSZ3, "AVSZ3", GTENoArgs},
	GTEAVSZ4: {GTEAVSZ4, "AVSZ4", GTENoArgs},
	GTERTPT:  {GTERTPT, "RTPT", GTENoArgs},
	GTEGPF:   {GTEGPF, "GPF", GTEOneArg},
	GTEGPL:   {GTEGPL, "GPL", GTEOneArg},
	GTENCCT:  {GTENCCT, "NCCT", GTENoArgs},
}

// LookupGTE returns the table entry for the command in a COP2 command word.
// Unassigned command numbers report false.
func LookupGTE(word uint32) (GTECommand, bool) {
	cmd, ok := gteCommands[GTEOp(Funct(word))]
	return cmd, ok
}

// GTECommands returns the whole table, ordered by command number.
func GTECommands() []GTECommand {
	out := make([]GTECommand, 0, len(gteCommands))
	for op := 0; op < 64; op++ {
		if cmd, ok := gteCommands[GTEOp(op)]; ok {
			out = append(out, cmd)
		}
	}
	return out
}

// GTEArgument returns the one-argument handler parameter: the command word
// shifted right by 10, truncated to 16 bits.
func GTEArgument(word uint32) uint16 {
	return uint16(word >> 10)
}

// String returns the command mnemonic.
func (o GTEOp) String() string {
	if cmd, ok := gteCommands[o]; ok {
		return cmd.Name
	}
	return "GTE?"
}
