// Package loader provides PS-X EXE and raw binary loading for the guest.
package loader

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
)

// Magic is the signature at the start of every PS-X EXE file.
const Magic = "PS-X EXE"

// HeaderSize is the size of the PS-X EXE header. The text section follows it.
const HeaderSize = 0x800

// DefaultStackTop is the stack pointer used when the header leaves the stack
// base unset, the top of the 2 MiB main RAM in KSEG0.
const DefaultStackTop = 0x801ffff0

const ramSize = 0x00200000

// Header field offsets.
const (
	offPC     = 0x10
	offGP     = 0x14
	offTAddr  = 0x18
	offTSize  = 0x1c
	offBAddr  = 0x28
	offBSize  = 0x2c
	offSAddr  = 0x30
	offSSize  = 0x34
	minHeader = 0x38
)

// ErrNotPSXEXE is returned for files without the PS-X EXE signature.
var ErrNotPSXEXE = errors.New("not a PS-X EXE file")

// Segment is a region of guest memory to initialize.
type Segment struct {
	// Addr is the guest address where the segment is loaded.
	Addr uint32
	// Data contains the segment contents from the file.
	Data []byte
	// MemSize is the size in memory. Bytes past len(Data) are zeroed.
	MemSize uint32
}

// Program is a loaded guest program ready to be placed in memory.
type Program struct {
	// EntryPoint is the guest address where execution should begin.
	EntryPoint uint32
	// GP is the initial $gp value.
	GP uint32
	// InitialSP is the initial stack pointer value.
	InitialSP uint32
	// Segments lists the memory regions to load, text first.
	Segments []Segment
}

// Memory receives program segments.
type Memory interface {
	LoadGuest(addr uint32, data []byte)
}

// Load reads a PS-X EXE file.
func Load(path string) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read executable: %w", err)
	}

	prog, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return prog, nil
}

// Parse decodes a PS-X EXE image.
func Parse(data []byte) (*Program, error) {
	if len(data) < minHeader || string(data[:len(Magic)]) != Magic {
		return nil, ErrNotPSXEXE
	}
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("truncated header: %d bytes", len(data))
	}

	field := func(off int) uint32 {
		return binary.LittleEndian.Uint32(data[off:])
	}

	tAddr, tSize := field(offTAddr), field(offTSize)
	if tAddr&3 != 0 {
		return nil, fmt.Errorf("text address 0x%08x is not word aligned", tAddr)
	}
	if uint64(HeaderSize)+uint64(tSize) > uint64(len(data)) {
		return nil, fmt.Errorf("text size 0x%x exceeds file size 0x%x", tSize, len(data)-HeaderSize)
	}
	if !inRAM(tAddr, tSize) {
		return nil, fmt.Errorf("text 0x%08x+0x%x lies outside main RAM", tAddr, tSize)
	}

	text := make([]byte, tSize)
	copy(text, data[HeaderSize:])

	prog := &Program{
		EntryPoint: field(offPC),
		GP:         field(offGP),
		InitialSP:  DefaultStackTop,
		Segments: []Segment{{
			Addr:    tAddr,
			Data:    text,
			MemSize: tSize,
		}},
	}

	if bAddr, bSize := field(offBAddr), field(offBSize); bSize != 0 {
		if !inRAM(bAddr, bSize) {
			return nil, fmt.Errorf("bss 0x%08x+0x%x lies outside main RAM", bAddr, bSize)
		}
		prog.Segments = append(prog.Segments, Segment{Addr: bAddr, MemSize: bSize})
	}

	if sAddr := field(offSAddr); sAddr != 0 {
		prog.InitialSP = sAddr + field(offSSize)
	}

	return prog, nil
}

// LoadRaw reads a headerless binary to be placed and entered at base.
func LoadRaw(path string, base uint32) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read binary: %w", err)
	}
	if base&3 != 0 {
		return nil, fmt.Errorf("load address 0x%08x is not word aligned", base)
	}
	if !inRAM(base, uint32(len(data))) {
		return nil, fmt.Errorf("binary 0x%08x+0x%x lies outside main RAM", base, len(data))
	}

	return &Program{
		EntryPoint: base,
		InitialSP:  DefaultStackTop,
		Segments: []Segment{{
			Addr:    base,
			Data:    data,
			MemSize: uint32(len(data)),
		}},
	}, nil
}

// LoadInto copies every segment into mem, zero-filling past the file data.
func (p *Program) LoadInto(mem Memory) {
	for _, seg := range p.Segments {
		buf := seg.Data
		if uint32(len(buf)) < seg.MemSize {
			buf = make([]byte, seg.MemSize)
			copy(buf, seg.Data)
		}
		mem.LoadGuest(seg.Addr, buf)
	}
}

// inRAM reports whether [addr, addr+size) lies in main RAM under any of the
// KUSEG, KSEG0 and KSEG1 mirrors.
func inRAM(addr, size uint32) bool {
	phys := uint64(addr & 0x1fffffff)
	return phys+uint64(size) <= ramSize
}
