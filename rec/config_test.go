package rec_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/psxrec/rec"
)

var _ = Describe("Config", func() {
	Describe("DefaultConfig", func() {
		It("should return the default options", func() {
			cfg := rec.DefaultConfig()

			Expect(cfg.CycleMultiplier).To(Equal(uint32(0x100)))
			Expect(cfg.MaxBlockInstructions).To(Equal(128))
			Expect(cfg.DirectMemAccess).To(BeTrue())
			Expect(cfg.GTEMemPipelining).To(BeTrue())
			Expect(cfg.SkipMFC2Writeback).To(BeTrue())
			Expect(cfg.HostMIPS32R2).To(BeFalse())
			Expect(cfg.MappedMemBase).To(Equal(uint32(0x20000000)))
			Expect(cfg.Validate()).To(Succeed())
		})
	})

	Describe("Validate", func() {
		It("should reject a zero cycle multiplier", func() {
			cfg := rec.DefaultConfig()
			cfg.CycleMultiplier = 0
			Expect(cfg.Validate()).To(MatchError(ContainSubstring("cycle_multiplier")))
		})

		It("should reject blocks shorter than a branch and its delay slot", func() {
			cfg := rec.DefaultConfig()
			cfg.MaxBlockInstructions = 1
			Expect(cfg.Validate()).To(MatchError(ContainSubstring("max_block_instructions")))
		})

		It("should reject a mapped window with low address bits set", func() {
			cfg := rec.DefaultConfig()
			cfg.MappedMemBase = 0x20010000
			Expect(cfg.Validate()).To(MatchError(ContainSubstring("mapped_mem_base")))
		})
	})

	Describe("LoadConfig and SaveConfig", func() {
		var dir string

		BeforeEach(func() {
			dir = GinkgoT().TempDir()
		})

		It("should round-trip through a file", func() {
			cfg := rec.DefaultConfig()
			cfg.CycleMultiplier = 0x180
			cfg.GTEMemPipelining = false
			cfg.HostMIPS32R2 = true

			path := filepath.Join(dir, "rec.json")
			Expect(cfg.SaveConfig(path)).To(Succeed())

			loaded, err := rec.LoadConfig(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(Equal(cfg))
		})

		It("should keep defaults for missing fields", func() {
			path := filepath.Join(dir, "partial.json")
			Expect(os.WriteFile(path, []byte(`{"max_block_instructions": 32}`), 0644)).To(Succeed())

			loaded, err := rec.LoadConfig(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.MaxBlockInstructions).To(Equal(32))
			Expect(loaded.CycleMultiplier).To(Equal(uint32(0x100)))
			Expect(loaded.SkipMFC2Writeback).To(BeTrue())
		})

		It("should fail on a missing file", func() {
			_, err := rec.LoadConfig(filepath.Join(dir, "missing.json"))
			Expect(err).To(MatchError(ContainSubstring("failed to read")))
		})

		It("should fail on malformed JSON", func() {
			path := filepath.Join(dir, "bad.json")
			Expect(os.WriteFile(path, []byte(`{"cycle_multiplier":`), 0644)).To(Succeed())

			_, err := rec.LoadConfig(path)
			Expect(err).To(MatchError(ContainSubstring("failed to parse")))
		})
	})

	Describe("Clone", func() {
		It("should return an independent copy", func() {
			cfg := rec.DefaultConfig()
			clone := cfg.Clone()
			clone.MaxBlockInstructions = 16

			Expect(cfg.MaxBlockInstructions).To(Equal(128))
			Expect(clone).NotTo(BeIdenticalTo(cfg))
		})
	})
})
