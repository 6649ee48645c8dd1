package rec

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/sarchlab/psxrec/asm"
)

// ExitKind classifies how a block hands control back to the dispatcher.
type ExitKind uint8

// Exit kinds.
const (
	// ExitKnown leaves with a compile-time guest PC in $v0.
	ExitKnown ExitKind = iota + 1
	// ExitFast re-enters the same block through the fast-path address
	// without writing $v0.
	ExitFast
	// ExitRegister leaves with a guest PC taken from a guest register.
	ExitRegister
	// ExitException leaves with the PC the interpreter stored in the guest
	// state after a SYSCALL or BREAK.
	ExitException
)

func (k ExitKind) String() string {
	switch k {
	case ExitKnown:
		return "known"
	case ExitFast:
		return "fast"
	case ExitRegister:
		return "register"
	case ExitException:
		return "exception"
	}
	return fmt.Sprintf("ExitKind(%d)", uint8(k))
}

// Exit records one block exit.
type Exit struct {
	Kind ExitKind
	// Target is the guest PC for ExitKnown and ExitFast exits.
	Target uint32
	// Offset is the word index of the exit jump in the block's code.
	Offset int
}

// Block is a translated basic block.
type Block struct {
	StartPC uint32
	// EndPC is the guest address following the last translated instruction.
	EndPC uint32
	Code  *asm.Code

	// Instructions is the number of guest instructions covered.
	Instructions int
	// Cycles is the cycle count reported in $v1 on exit.
	Cycles uint32
	Exits  []Exit

	// Order lists guest PCs in the order their code was emitted. It differs
	// from address order when an MFC2 was moved past its consumer.
	Order []uint32

	// Fingerprint hashes the guest words in [StartPC, EndPC).
	Fingerprint uint64
}

// Contains reports whether guest address addr lies in the block's source.
func (b *Block) Contains(addr uint32) bool {
	return addr >= b.StartPC && addr < b.EndPC
}

// Fingerprint hashes the guest words in [start, end).
func Fingerprint(code CodeReader, start, end uint32) (uint64, error) {
	d := xxhash.New()
	var buf [4]byte
	for pc := start; pc < end; pc += 4 {
		word, err := code.ReadCode(pc)
		if err != nil {
			return 0, fmt.Errorf("fingerprint at 0x%08x: %w", pc, err)
		}
		binary.LittleEndian.PutUint32(buf[:], word)
		_, _ = d.Write(buf[:])
	}
	return d.Sum64(), nil
}
