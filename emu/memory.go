package emu

import "encoding/binary"

const (
	pageBits = 12
	pageSize = 1 << pageBits
	pageMask = pageSize - 1
)

// Memory is a sparse, paged, little-endian 32-bit address space. Unwritten
// bytes read as zero.
//
// Writes inside the watched range stamp the page they touch with a new write
// generation, so a client can tell whether a range changed since it last
// looked without reading it.
type Memory struct {
	pages map[uint32]*[pageSize]byte

	watchLo, watchHi uint64
	generation       uint64
	pageGenerations  map[uint32]uint64
}

// NewMemory creates an empty address space.
func NewMemory() *Memory {
	return &Memory{
		pages:           make(map[uint32]*[pageSize]byte),
		pageGenerations: make(map[uint32]uint64),
	}
}

// Watch sets the range [base, base+size) whose writes are tracked. It
// replaces any earlier range.
func (m *Memory) Watch(base, size uint32) {
	m.watchLo = uint64(base)
	m.watchHi = uint64(base) + uint64(size)
}

// Generation returns the number of tracked writes so far.
func (m *Memory) Generation() uint64 {
	return m.generation
}

// RangeGeneration returns the generation of the latest tracked write to any
// page overlapping [addr, addr+size), or 0 if there was none.
func (m *Memory) RangeGeneration(addr, size uint32) uint64 {
	if size == 0 {
		return 0
	}
	var gen uint64
	first := addr >> pageBits
	last := uint32((uint64(addr) + uint64(size) - 1) >> pageBits)
	for n := first; ; n++ {
		if g := m.pageGenerations[n]; g > gen {
			gen = g
		}
		if n == last {
			break
		}
	}
	return gen
}

func (m *Memory) touch(addr uint32) {
	a := uint64(addr)
	if a < m.watchLo || a >= m.watchHi {
		return
	}
	m.generation++
	m.pageGenerations[addr>>pageBits] = m.generation
}

func (m *Memory) page(addr uint32, create bool) *[pageSize]byte {
	n := addr >> pageBits
	p, ok := m.pages[n]
	if !ok && create {
		p = new([pageSize]byte)
		m.pages[n] = p
	}
	return p
}

// Read8 reads one byte.
func (m *Memory) Read8(addr uint32) uint8 {
	p := m.page(addr, false)
	if p == nil {
		return 0
	}
	return p[addr&pageMask]
}

// Write8 writes one byte.
func (m *Memory) Write8(addr uint32, value uint8) {
	m.page(addr, true)[addr&pageMask] = value
	m.touch(addr)
}

// Read16 reads a halfword. addr must be halfword aligned.
func (m *Memory) Read16(addr uint32) uint16 {
	p := m.page(addr, false)
	if p == nil {
		return 0
	}
	off := addr & pageMask
	return binary.LittleEndian.Uint16(p[off : off+2])
}

// Write16 writes a halfword. addr must be halfword aligned.
func (m *Memory) Write16(addr uint32, value uint16) {
	off := addr & pageMask
	binary.LittleEndian.PutUint16(m.page(addr, true)[off:off+2], value)
	m.touch(addr)
}

// Read32 reads a word. addr must be word aligned.
func (m *Memory) Read32(addr uint32) uint32 {
	p := m.page(addr, false)
	if p == nil {
		return 0
	}
	off := addr & pageMask
	return binary.LittleEndian.Uint32(p[off : off+4])
}

// Write32 writes a word. addr must be word aligned.
func (m *Memory) Write32(addr uint32, value uint32) {
	off := addr & pageMask
	binary.LittleEndian.PutUint32(m.page(addr, true)[off:off+4], value)
	m.touch(addr)
}

// LoadBytes copies data into memory starting at addr.
func (m *Memory) LoadBytes(addr uint32, data []byte) {
	for i, b := range data {
		m.Write8(addr+uint32(i), b)
	}
}

// ReadBytes copies n bytes starting at addr.
func (m *Memory) ReadBytes(addr uint32, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = m.Read8(addr + uint32(i))
	}
	return out
}

// LoadWords stores consecutive words starting at addr.
func (m *Memory) LoadWords(addr uint32, words []uint32) {
	for i, w := range words {
		m.Write32(addr+uint32(i)*4, w)
	}
}
