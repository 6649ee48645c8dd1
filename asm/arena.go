package asm

import (
	"errors"
	"fmt"
)

// ErrArenaFull is returned when a sealed block does not fit in the code region.
var ErrArenaFull = errors.New("asm: code arena full")

// Arena hands out translation buffers at increasing host addresses inside a
// fixed code region. Only one buffer may be open at a time.
type Arena struct {
	base uint32
	size uint32
	next uint32
}

// NewArena creates an arena covering [base, base+size).
func NewArena(base, size uint32) *Arena {
	return &Arena{base: base, size: size, next: base}
}

// Buffer opens a buffer at the arena cursor.
func (a *Arena) Buffer(capacity int) *Buffer {
	return NewBuffer(a.next, capacity)
}

// Commit claims the space used by code, which must have been emitted from the
// buffer most recently opened by this arena.
func (a *Arena) Commit(code *Code) error {
	if code.Base() != a.next {
		return fmt.Errorf("commit code at 0x%08x, arena cursor at 0x%08x", code.Base(), a.next)
	}
	if a.next+code.Size() > a.base+a.size {
		return ErrArenaFull
	}
	a.next += code.Size()
	return nil
}

// Reset discards all committed code.
func (a *Arena) Reset() {
	a.next = a.base
}

// Used returns the number of bytes committed.
func (a *Arena) Used() uint32 {
	return a.next - a.base
}

// Contains reports whether addr lies inside the arena region.
func (a *Arena) Contains(addr uint32) bool {
	return addr >= a.base && addr < a.base+a.size
}
