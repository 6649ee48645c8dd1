package asm

import (
	"errors"
	"fmt"
)

// ErrSealed is the panic value raised when code is emitted into a buffer
// that has already been sealed.
var ErrSealed = errors.New("asm: emit into sealed buffer")

// FixupKind identifies how a fixup rewrites its instruction word.
type FixupKind uint8

// Fixup kinds.
const (
	// FixupBranch16 patches the 16-bit word offset of a conditional branch.
	FixupBranch16 FixupKind = iota + 1
)

// Fixup records an emitted instruction whose target is not known yet.
type Fixup struct {
	// Offset is the word index of the instruction inside its buffer.
	Offset int
	// Kind selects the rewrite applied by Backpatch.
	Kind FixupKind
}

// Buffer is the append-only translation buffer for one block.
// It is exclusively owned by the translator until Seal is called.
type Buffer struct {
	base   uint32
	words  []uint32
	sealed bool

	// resolved holds the word indices already rewritten by BackpatchTo.
	resolved map[int]bool
}

// NewBuffer creates a buffer whose first word will live at host address base.
func NewBuffer(base uint32, capacity int) *Buffer {
	return &Buffer{
		base:  base,
		words: make([]uint32, 0, capacity),
	}
}

// Emit appends one instruction word.
func (b *Buffer) Emit(word uint32) {
	if b.sealed {
		panic(ErrSealed)
	}
	b.words = append(b.words, word)
}

// Len returns the number of words emitted so far.
func (b *Buffer) Len() int {
	return len(b.words)
}

// Base returns the host address of the first word.
func (b *Buffer) Base() uint32 {
	return b.base
}

// PC returns the host address of the next word to be emitted.
func (b *Buffer) PC() uint32 {
	return b.base + uint32(len(b.words))*4
}

// Word returns the word at index i.
func (b *Buffer) Word(i int) uint32 {
	return b.words[i]
}

// Sealed reports whether Seal has been called.
func (b *Buffer) Sealed() bool {
	return b.sealed
}

// Backpatch resolves a fixup so that its branch lands on the current cursor.
func (b *Buffer) Backpatch(f Fixup) {
	b.BackpatchTo(f, len(b.words))
}

// BackpatchTo resolves a fixup so that its branch lands on word index target.
// Rewriting a sealed buffer, an out-of-range offset or a fixup that was
// already resolved are programming errors and panic.
func (b *Buffer) BackpatchTo(f Fixup, target int) {
	if b.sealed {
		panic(ErrSealed)
	}
	if f.Offset < 0 || f.Offset >= len(b.words) {
		panic(fmt.Sprintf("asm: fixup offset %d outside buffer of %d words", f.Offset, len(b.words)))
	}

	switch f.Kind {
	case FixupBranch16:
		word := b.words[f.Offset]
		if b.resolved[f.Offset] {
			panic(fmt.Sprintf("asm: fixup at %d already resolved (word %08x)", f.Offset, word))
		}
		// Branch offsets count words from the delay slot.
		delta := target - (f.Offset + 1)
		if delta < -0x8000 || delta > 0x7fff {
			panic(fmt.Sprintf("asm: branch from %d to %d out of range", f.Offset, target))
		}
		b.words[f.Offset] = word&^0xffff | uint32(delta)&0xffff
		if b.resolved == nil {
			b.resolved = make(map[int]bool)
		}
		b.resolved[f.Offset] = true
	default:
		panic(fmt.Sprintf("asm: unknown fixup kind %d", f.Kind))
	}
}

// Seal ends emission and returns the finished, read-only code.
func (b *Buffer) Seal() *Code {
	if b.sealed {
		panic(ErrSealed)
	}
	b.sealed = true
	words := make([]uint32, len(b.words))
	copy(words, b.words)
	return &Code{base: b.base, words: words}
}

// Code is sealed, immutable host code ready to be placed at Base.
type Code struct {
	base  uint32
	words []uint32
}

// Base returns the host address the code was emitted for.
func (c *Code) Base() uint32 {
	return c.base
}

// Len returns the number of instruction words.
func (c *Code) Len() int {
	return len(c.words)
}

// Size returns the code size in bytes.
func (c *Code) Size() uint32 {
	return uint32(len(c.words)) * 4
}

// Word returns the instruction word at index i.
func (c *Code) Word(i int) uint32 {
	return c.words[i]
}

// Words returns a copy of the instruction words.
func (c *Code) Words() []uint32 {
	out := make([]uint32, len(c.words))
	copy(out, c.words)
	return out
}

// Addr returns the host address of word index i.
func (c *Code) Addr(i int) uint32 {
	return c.base + uint32(i)*4
}
