// Package regalloc binds guest registers to host registers while a block is
// translated.
//
// The Allocator emits the loads, write-backs and moves its bookkeeping needs
// straight into the block's translation buffer. Guest values live in the
// guest-state record addressed by StateBase; a binding caches one of them in
// an allocatable host register until it is evicted, flushed or invalidated
// by a call into native code.
//
// Besides guest bindings the allocator tracks three cached facts about
// reserved host registers:
//   - $v0 holds a known guest PC (set at block entry)
//   - $ra holds the block return address (indirect-return mode)
//   - $at holds the host-converted address of one guest base register
//
// All three are dropped by InvalidateAfterCall, since native code clobbers
// the registers.
package regalloc

import (
	"fmt"

	"github.com/go-logr/logr"

	"github.com/sarchlab/psxrec/asm"
	"github.com/sarchlab/psxrec/guest"
)

// Intent says whether the caller needs the current guest value.
type Intent uint8

// Binding intents.
const (
	// IntentLoad returns a host register holding the guest value.
	IntentLoad Intent = iota + 1
	// IntentStore returns a host register about to receive a new value.
	IntentStore
)

// CallScope selects which dirty bindings PrepareCall writes back.
type CallScope uint8

// Call scopes.
const (
	// CallerSaved writes back bindings the callee may clobber. Use it for
	// native helpers that do not touch guest registers.
	CallerSaved CallScope = iota + 1
	// All writes back every dirty binding. Use it before calling code that
	// reads or writes the guest-state record.
	All
)

const (
	ownerFree  = -1
	ownerTemp  = -2
	numGuest   = guest.NumGPR
	noLSUGuest = 0xff
)

type binding struct {
	host  asm.Reg
	bound bool
	dirty bool
}

type state struct {
	bindings [numGuest]binding
	owner    [asm.NumRegs]int8
	locks    [asm.NumRegs]int
	lastUse  [asm.NumRegs]uint64
	tick     uint64

	constKnown [numGuest]bool
	constValue [numGuest]uint32

	v0Valid  bool
	v0Value  uint32
	raValid  bool
	lsuGuest uint8
}

// Snapshot is an opaque copy of the allocator state.
type Snapshot struct {
	s state
}

// Allocator maps guest registers onto host registers for one block at a time.
type Allocator struct {
	buf *asm.Buffer
	log logr.Logger
	state
}

// Option configures an Allocator.
type Option func(*Allocator)

// WithLogger sets the logger used for eviction traces.
func WithLogger(log logr.Logger) Option {
	return func(a *Allocator) {
		a.log = log
	}
}

// New creates an allocator. Call Reset before each block.
func New(opts ...Option) *Allocator {
	a := &Allocator{log: logr.Discard()}
	for _, opt := range opts {
		opt(a)
	}
	a.clear()
	return a
}

func (a *Allocator) clear() {
	a.state = state{lsuGuest: noLSUGuest}
	for r := range a.owner {
		a.owner[r] = ownerFree
	}
}

// Reset starts a new block emitting into buf. startPC is the value the
// dispatcher leaves in $v0; raValid says whether $ra holds the block return
// address on entry.
func (a *Allocator) Reset(buf *asm.Buffer, startPC uint32, raValid bool) {
	a.buf = buf
	a.clear()
	a.v0Valid = true
	a.v0Value = startPC
	a.raValid = raValid
}

func (a *Allocator) touch(r asm.Reg) {
	a.tick++
	a.lastUse[r] = a.tick
}

// Bind returns a host register for guest register g and locks it until
// Release. Binding register 0 is a programming error and panics.
func (a *Allocator) Bind(g uint8, intent Intent) asm.Reg {
	return a.bind(g, intent, false)
}

// BindSaved is Bind restricted to callee-saved host registers, for values
// that must stay live across a call into native code.
func (a *Allocator) BindSaved(g uint8, intent Intent) asm.Reg {
	return a.bind(g, intent, true)
}

func (a *Allocator) bind(g uint8, intent Intent, saved bool) asm.Reg {
	if g == 0 || int(g) >= numGuest {
		panic(fmt.Sprintf("regalloc: cannot bind guest register %d", g))
	}

	b := &a.bindings[g]
	if b.bound {
		if saved && !CapabilityOf(b.host).Has(CapCalleeSaved) {
			a.moveToSaved(g)
		}
		a.locks[b.host]++
		a.touch(b.host)
		return b.host
	}

	r := a.pick(saved)
	a.owner[r] = int8(g)
	a.locks[r]++
	a.touch(r)
	*b = binding{host: r, bound: true}

	if intent == IntentLoad {
		a.buf.LW(r, StateBase, guest.OffGPR(int(g)))
	}
	return r
}

// moveToSaved relocates a caller-saved binding into a callee-saved register.
func (a *Allocator) moveToSaved(g uint8) {
	b := &a.bindings[g]
	if a.locks[b.host] > 0 {
		panic(fmt.Sprintf("regalloc: guest register %d is locked in caller-saved %s", g, b.host))
	}
	r := a.pick(true)
	a.buf.MOV(r, b.host)
	a.owner[b.host] = ownerFree
	a.owner[r] = int8(g)
	b.host = r
}

// pick finds a free register, evicting the least recently used unlocked
// binding when none is free.
func (a *Allocator) pick(saved bool) asm.Reg {
	candidates := Allocatable()

	for _, r := range candidates {
		if saved && !CapabilityOf(r).Has(CapCalleeSaved) {
			continue
		}
		if a.owner[r] == ownerFree {
			return r
		}
	}

	victim := asm.Zero
	for _, r := range candidates {
		if saved && !CapabilityOf(r).Has(CapCalleeSaved) {
			continue
		}
		if a.owner[r] < 0 || a.locks[r] > 0 {
			continue
		}
		if victim == asm.Zero || a.lastUse[r] < a.lastUse[victim] {
			victim = r
		}
	}
	if victim == asm.Zero {
		panic("regalloc: all host registers are locked")
	}

	a.evict(uint8(a.owner[victim]))
	return victim
}

// evict writes back a dirty binding and frees its register.
func (a *Allocator) evict(g uint8) {
	b := &a.bindings[g]
	if b.dirty {
		a.buf.SW(b.host, StateBase, guest.OffGPR(int(g)))
	}
	a.log.V(2).Info("evict", "guest", g, "host", b.host.String(), "dirty", b.dirty)
	a.owner[b.host] = ownerFree
	a.locks[b.host] = 0
	*b = binding{}
}

// Release unlocks a host register returned by Bind.
func (a *Allocator) Release(r asm.Reg) {
	if a.locks[r] > 0 {
		a.locks[r]--
	}
}

// MarkChanged records that the host register bound to g now holds a new
// value that must eventually be written back.
func (a *Allocator) MarkChanged(g uint8) {
	if g == 0 {
		return
	}
	a.bindings[g].dirty = true
	a.constKnown[g] = false
	if a.lsuGuest == g {
		a.lsuGuest = noLSUGuest
	}
}

// MarkUndefined forgets any constant known for g. Register 0 is accepted and
// ignored so emitters can call it for suppressed writes.
func (a *Allocator) MarkUndefined(g uint8) {
	if g == 0 || int(g) >= numGuest {
		return
	}
	a.constKnown[g] = false
}

// SetConst records that guest register g holds value.
func (a *Allocator) SetConst(g uint8, value uint32) {
	if g == 0 {
		return
	}
	a.constKnown[g] = true
	a.constValue[g] = value
}

// Const returns the known constant value of g. Register 0 is always 0.
func (a *Allocator) Const(g uint8) (uint32, bool) {
	if g == 0 {
		return 0, true
	}
	return a.constValue[g], a.constKnown[g]
}

// Bound returns the host register currently bound to g.
func (a *Allocator) Bound(g uint8) (asm.Reg, bool) {
	b := a.bindings[g]
	return b.host, b.bound
}

// Dirty reports whether g's binding has unwritten changes.
func (a *Allocator) Dirty(g uint8) bool {
	return a.bindings[g].dirty
}

// AllocTemp reserves a callee-saved scratch register, for values that must
// survive a delay slot or a call. Free it with FreeTemp.
func (a *Allocator) AllocTemp() asm.Reg {
	r := a.pick(true)
	a.owner[r] = ownerTemp
	a.locks[r] = 1
	a.touch(r)
	return r
}

// FreeTemp returns a scratch register from AllocTemp.
func (a *Allocator) FreeTemp(r asm.Reg) {
	if a.owner[r] != ownerTemp {
		panic(fmt.Sprintf("regalloc: %s is not a temporary", r))
	}
	a.owner[r] = ownerFree
	a.locks[r] = 0
}

// PrepareCall writes back the dirty bindings a call could lose.
func (a *Allocator) PrepareCall(scope CallScope) {
	for g := 1; g < numGuest; g++ {
		b := &a.bindings[g]
		if !b.bound || !b.dirty {
			continue
		}
		if scope == All || !CapabilityOf(b.host).Has(CapCalleeSaved) {
			a.buf.SW(b.host, StateBase, guest.OffGPR(g))
			b.dirty = false
		}
	}
}

// InvalidateAfterCall must follow every emitted call into native code. It
// drops bindings in caller-saved registers and the cached $v0, $ra and $at
// facts. Dirty caller-saved bindings must have been written back by
// PrepareCall.
func (a *Allocator) InvalidateAfterCall() {
	for g := 1; g < numGuest; g++ {
		b := &a.bindings[g]
		if b.bound && !CapabilityOf(b.host).Has(CapCalleeSaved) {
			if b.dirty {
				panic(fmt.Sprintf("regalloc: guest register %d lost across call in %s", g, b.host))
			}
			a.owner[b.host] = ownerFree
			a.locks[b.host] = 0
			*b = binding{}
		}
	}
	a.v0Valid = false
	a.raValid = false
	a.lsuGuest = noLSUGuest
}

// ForgetGuests drops every binding and constant, after calling code that may
// have changed any guest register. Dirty bindings must have been written
// back with PrepareCall(All).
func (a *Allocator) ForgetGuests() {
	for g := 1; g < numGuest; g++ {
		b := &a.bindings[g]
		if b.bound {
			a.owner[b.host] = ownerFree
			a.locks[b.host] = 0
		}
		*b = binding{}
		a.constKnown[g] = false
	}
	a.lsuGuest = noLSUGuest
}

// Flush writes back every dirty binding and keeps the bindings.
func (a *Allocator) Flush() {
	for g := 1; g < numGuest; g++ {
		b := &a.bindings[g]
		if b.bound && b.dirty {
			a.buf.SW(b.host, StateBase, guest.OffGPR(g))
			b.dirty = false
		}
	}
}

// Snapshot captures the allocator state so an alternative code path can be
// emitted from the same starting point.
func (a *Allocator) Snapshot() Snapshot {
	return Snapshot{s: a.state}
}

// Restore rewinds to a snapshot. Only bookkeeping is restored; the emitted
// code is untouched.
func (a *Allocator) Restore(s Snapshot) {
	a.state = s.s
}

// LoadPC places value in $v0, reusing the PC already cached there when the
// difference fits a signed 16-bit immediate.
func (a *Allocator) LoadPC(value uint32) {
	if a.v0Valid {
		delta := int64(int32(value - a.v0Value))
		if delta == 0 {
			return
		}
		if delta >= -0x8000 && delta <= 0x7fff {
			a.buf.ADDIU(asm.V0, asm.V0, int16(delta))
			a.v0Value = value
			return
		}
	}
	a.buf.LI32(asm.V0, value)
	a.v0Valid = true
	a.v0Value = value
}

// PC returns the guest PC cached in $v0.
func (a *Allocator) PC() (uint32, bool) {
	return a.v0Value, a.v0Valid
}

// ForgetPC marks $v0 as holding an unknown value.
func (a *Allocator) ForgetPC() {
	a.v0Valid = false
}

// RAValid reports whether $ra still holds the block return address.
func (a *Allocator) RAValid() bool {
	return a.raValid
}

// SetRAValid records whether $ra holds the block return address.
func (a *Allocator) SetRAValid(valid bool) {
	a.raValid = valid
}

// LSUBase reports whether $at holds the converted host address of guest
// register g.
func (a *Allocator) LSUBase(g uint8) bool {
	return a.lsuGuest == g
}

// SetLSUBase records that $at holds the converted address of g.
func (a *Allocator) SetLSUBase(g uint8) {
	a.lsuGuest = g
}

// DropLSUBase forgets the $at base cache.
func (a *Allocator) DropLSUBase() {
	a.lsuGuest = noLSUGuest
}
