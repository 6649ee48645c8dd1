package loader_test

import (
	"encoding/binary"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/psxrec/loader"
)

type exeHeader struct {
	pc, gp       uint32
	tAddr        uint32
	bAddr, bSize uint32
	sAddr, sSize uint32
}

// buildEXE returns a PS-X EXE image with text padded to 2 KiB.
func buildEXE(h exeHeader, text []byte) []byte {
	size := (len(text) + 0x7ff) &^ 0x7ff
	data := make([]byte, loader.HeaderSize+size)
	copy(data, loader.Magic)

	put := func(off int, v uint32) {
		binary.LittleEndian.PutUint32(data[off:], v)
	}
	put(0x10, h.pc)
	put(0x14, h.gp)
	put(0x18, h.tAddr)
	put(0x1c, uint32(size))
	put(0x28, h.bAddr)
	put(0x2c, h.bSize)
	put(0x30, h.sAddr)
	put(0x34, h.sSize)
	copy(data[loader.HeaderSize:], text)
	return data
}

// recordingMemory captures LoadGuest calls.
type recordingMemory map[uint32][]byte

func (m recordingMemory) LoadGuest(addr uint32, data []byte) {
	m[addr] = append([]byte(nil), data...)
}

var _ = Describe("PS-X EXE Loader", func() {
	var tempDir string

	BeforeEach(func() {
		tempDir = GinkgoT().TempDir()
	})

	write := func(name string, data []byte) string {
		path := filepath.Join(tempDir, name)
		Expect(os.WriteFile(path, data, 0644)).To(Succeed())
		return path
	}

	Describe("Load", func() {
		Context("with a valid executable", func() {
			var path string
			text := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}

			BeforeEach(func() {
				path = write("game.exe", buildEXE(exeHeader{
					pc:    0x80010010,
					gp:    0x80020000,
					tAddr: 0x80010000,
					sAddr: 0x801f0000,
					sSize: 0xff00,
				}, text))
			})

			It("should extract the entry point and registers", func() {
				prog, err := loader.Load(path)
				Expect(err).NotTo(HaveOccurred())
				Expect(prog.EntryPoint).To(Equal(uint32(0x80010010)))
				Expect(prog.GP).To(Equal(uint32(0x80020000)))
				Expect(prog.InitialSP).To(Equal(uint32(0x801fff00)))
			})

			It("should load the text section", func() {
				prog, err := loader.Load(path)
				Expect(err).NotTo(HaveOccurred())
				Expect(prog.Segments).To(HaveLen(1))

				seg := prog.Segments[0]
				Expect(seg.Addr).To(Equal(uint32(0x80010000)))
				Expect(seg.MemSize).To(Equal(uint32(0x800)))
				Expect(seg.Data[:len(text)]).To(Equal(text))
			})
		})

		It("should default the stack when the header leaves it unset", func() {
			prog, err := loader.Parse(buildEXE(exeHeader{pc: 0x80010000, tAddr: 0x80010000}, nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(prog.InitialSP).To(Equal(uint32(loader.DefaultStackTop)))
		})

		It("should add a zero-filled BSS segment", func() {
			prog, err := loader.Parse(buildEXE(exeHeader{
				pc:    0x80010000,
				tAddr: 0x80010000,
				bAddr: 0x80018000,
				bSize: 0x100,
			}, []byte{1, 2, 3, 4}))
			Expect(err).NotTo(HaveOccurred())
			Expect(prog.Segments).To(HaveLen(2))

			mem := recordingMemory{}
			prog.LoadInto(mem)
			Expect(mem[0x80018000]).To(Equal(make([]byte, 0x100)))
			Expect(mem[0x80010000][:4]).To(Equal([]byte{1, 2, 3, 4}))
		})

		It("should return an error for a missing file", func() {
			_, err := loader.Load(filepath.Join(tempDir, "missing.exe"))
			Expect(err).To(MatchError(ContainSubstring("failed to read")))
		})

		It("should reject files without the signature", func() {
			data := buildEXE(exeHeader{tAddr: 0x80010000}, nil)
			copy(data, "NOT EXE!")

			_, err := loader.Load(write("bad.exe", data))
			Expect(err).To(MatchError(loader.ErrNotPSXEXE))
		})

		It("should reject a truncated header", func() {
			data := buildEXE(exeHeader{tAddr: 0x80010000}, nil)[:0x100]

			_, err := loader.Parse(data)
			Expect(err).To(MatchError(ContainSubstring("truncated header")))
		})

		It("should reject text running past the end of the file", func() {
			data := buildEXE(exeHeader{tAddr: 0x80010000}, []byte{1})
			binary.LittleEndian.PutUint32(data[0x1c:], 0x1000)

			_, err := loader.Parse(data)
			Expect(err).To(MatchError(ContainSubstring("exceeds file size")))
		})

		It("should reject text outside main RAM", func() {
			_, err := loader.Parse(buildEXE(exeHeader{tAddr: 0x801ffc00}, make([]byte, 0x800)))
			Expect(err).To(MatchError(ContainSubstring("outside main RAM")))
		})

		It("should reject unaligned text", func() {
			_, err := loader.Parse(buildEXE(exeHeader{tAddr: 0x80010002}, nil))
			Expect(err).To(MatchError(ContainSubstring("not word aligned")))
		})
	})

	Describe("LoadRaw", func() {
		It("should place the binary at the base address and enter there", func() {
			path := write("code.bin", []byte{0xaa, 0xbb, 0xcc, 0xdd})

			prog, err := loader.LoadRaw(path, 0x80010000)
			Expect(err).NotTo(HaveOccurred())
			Expect(prog.EntryPoint).To(Equal(uint32(0x80010000)))
			Expect(prog.InitialSP).To(Equal(uint32(loader.DefaultStackTop)))

			mem := recordingMemory{}
			prog.LoadInto(mem)
			Expect(mem).To(HaveKeyWithValue(uint32(0x80010000), []byte{0xaa, 0xbb, 0xcc, 0xdd}))
		})

		It("should reject an unaligned base", func() {
			path := write("code.bin", []byte{0, 0, 0, 0})

			_, err := loader.LoadRaw(path, 0x80010001)
			Expect(err).To(MatchError(ContainSubstring("not word aligned")))
		})
	})
})
