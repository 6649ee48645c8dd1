package cache_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/psxrec/cache"
	"github.com/sarchlab/psxrec/rec"
)

func block(start, end uint32) *rec.Block {
	return &rec.Block{StartPC: start, EndPC: end}
}

var _ = Describe("Cache", func() {
	var c *cache.Cache

	BeforeEach(func() {
		c = cache.New(cache.Config{Sets: 4, Ways: 2})
	})

	Describe("Lookup", func() {
		It("should miss on a cold cache", func() {
			Expect(c.Lookup(0x80010000)).To(BeNil())

			stats := c.Stats()
			Expect(stats.Lookups).To(Equal(uint64(1)))
			Expect(stats.Misses).To(Equal(uint64(1)))
		})

		It("should hit after insert", func() {
			b := block(0x80010000, 0x80010010)
			Expect(c.Insert(b)).To(BeNil())

			Expect(c.Lookup(0x80010000)).To(BeIdenticalTo(b))
			Expect(c.Lookup(0x80010004)).To(BeNil())
			Expect(c.Stats().Hits).To(Equal(uint64(1)))
		})

		It("should replace a block for the same PC without eviction", func() {
			c.Insert(block(0x80010000, 0x80010010))
			b := block(0x80010000, 0x80010020)

			Expect(c.Insert(b)).To(BeNil())
			Expect(c.Lookup(0x80010000)).To(BeIdenticalTo(b))
			Expect(c.Len()).To(Equal(1))
		})
	})

	Describe("eviction", func() {
		// Sets are chosen by (pc/4) % 4, so these all land in set 0.
		const stride = 16

		It("should evict the least recently used block", func() {
			a := block(0x1000, 0x1004)
			b := block(0x1000+stride, 0x1004+stride)
			c.Insert(a)
			c.Insert(b)

			Expect(c.Lookup(a.StartPC)).To(BeIdenticalTo(a))

			n := block(0x1000+2*stride, 0x1004+2*stride)
			Expect(c.Insert(n)).To(BeIdenticalTo(b))
			Expect(c.Lookup(b.StartPC)).To(BeNil())
			Expect(c.Lookup(a.StartPC)).To(BeIdenticalTo(a))
			Expect(c.Stats().Evictions).To(Equal(uint64(1)))
		})

		It("should not evict across sets", func() {
			c.Insert(block(0x1000, 0x1004))
			c.Insert(block(0x1000+stride, 0x1004+stride))

			Expect(c.Insert(block(0x1004, 0x1008))).To(BeNil())
			Expect(c.Len()).To(Equal(3))
		})
	})

	Describe("invalidation", func() {
		BeforeEach(func() {
			c.Insert(block(0x1000, 0x1010))
			c.Insert(block(0x1010, 0x1020))
			c.Insert(block(0x2004, 0x200c))
		})

		It("should drop a single block", func() {
			Expect(c.Invalidate(0x1010)).To(BeTrue())
			Expect(c.Invalidate(0x1010)).To(BeFalse())
			Expect(c.Lookup(0x1010)).To(BeNil())
			Expect(c.Len()).To(Equal(2))
		})

		It("should drop every block overlapping a range", func() {
			Expect(c.InvalidateRange(0x100c, 8)).To(Equal(2))
			Expect(c.Lookup(0x2004)).NotTo(BeNil())
		})

		It("should treat the block end as exclusive", func() {
			Expect(c.InvalidateRange(0x200c, 4)).To(Equal(0))
			Expect(c.InvalidateRange(0x2008, 1)).To(Equal(1))
		})

		It("should ignore empty ranges", func() {
			Expect(c.InvalidateRange(0x1000, 0)).To(Equal(0))
		})

		It("should flush everything", func() {
			c.Flush()
			Expect(c.Len()).To(BeZero())
			Expect(c.Blocks()).To(BeEmpty())
			Expect(c.Stats().Flushes).To(Equal(uint64(1)))
		})
	})

	It("should use the default geometry", func() {
		cfg := cache.DefaultConfig()
		Expect(cfg.Capacity()).To(Equal(4096))
		Expect(cache.New(cfg).Config()).To(Equal(cfg))
	})
})
