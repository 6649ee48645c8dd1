// Package cache holds translated blocks keyed by guest PC.
//
// The cache is set-associative. Tags and LRU state live in an Akita cache
// directory with one "line" per guest instruction word, so the set of a block
// is chosen by its start PC. The translated blocks themselves are kept in a
// side table indexed by set and way, the way a data cache keeps its line
// storage next to the directory.
package cache

import (
	akitacache "github.com/sarchlab/akita/v4/mem/cache"

	"github.com/sarchlab/psxrec/rec"
)

// wordSize is the directory line size: one guest instruction.
const wordSize = 4

// Config holds block cache geometry.
type Config struct {
	// Sets is the number of sets.
	Sets int
	// Ways is the associativity.
	Ways int
}

// DefaultConfig returns a 1024-set, 4-way cache.
func DefaultConfig() Config {
	return Config{
		Sets: 1024,
		Ways: 4,
	}
}

// Capacity returns the number of blocks the cache can hold.
func (c Config) Capacity() int {
	return c.Sets * c.Ways
}

// Statistics holds block cache statistics.
type Statistics struct {
	Lookups       uint64
	Hits          uint64
	Misses        uint64
	Inserts       uint64
	Evictions     uint64
	Invalidations uint64
	Flushes       uint64
}

// Cache maps guest PCs to translated blocks.
type Cache struct {
	config    Config
	directory *akitacache.DirectoryImpl

	// blocks is indexed by (setID * ways + wayID).
	blocks []*rec.Block

	stats Statistics
}

// New creates a block cache with the given geometry.
func New(config Config) *Cache {
	if config.Sets <= 0 || config.Ways <= 0 {
		panic("cache: sets and ways must be positive")
	}

	return &Cache{
		config: config,
		directory: akitacache.NewDirectory(
			config.Sets,
			config.Ways,
			wordSize,
			akitacache.NewLRUVictimFinder(),
		),
		blocks: make([]*rec.Block, config.Capacity()),
	}
}

// Config returns the cache geometry.
func (c *Cache) Config() Config {
	return c.config
}

// Stats returns cache statistics.
func (c *Cache) Stats() Statistics {
	return c.stats
}

// ResetStats clears cache statistics.
func (c *Cache) ResetStats() {
	c.stats = Statistics{}
}

func (c *Cache) index(b *akitacache.Block) int {
	return b.SetID*c.config.Ways + b.WayID
}

// Lookup returns the block starting at pc, or nil.
func (c *Cache) Lookup(pc uint32) *rec.Block {
	c.stats.Lookups++

	line := c.directory.Lookup(0, uint64(pc))
	if line == nil || !line.IsValid {
		c.stats.Misses++
		return nil
	}

	c.stats.Hits++
	c.directory.Visit(line)
	return c.blocks[c.index(line)]
}

// Insert stores b under its start PC. A block already cached for the same
// PC is replaced. If a different block had to make room, it is returned.
func (c *Cache) Insert(b *rec.Block) (evicted *rec.Block) {
	c.stats.Inserts++
	addr := uint64(b.StartPC)

	line := c.directory.Lookup(0, addr)
	if line == nil || !line.IsValid {
		line = c.directory.FindVictim(addr)
		if line.IsValid {
			c.stats.Evictions++
			evicted = c.blocks[c.index(line)]
		}
	}

	line.Tag = addr
	line.IsValid = true
	line.IsDirty = false
	c.blocks[c.index(line)] = b
	c.directory.Visit(line)

	return evicted
}

// Invalidate drops the block starting at pc. It reports whether a block was
// dropped.
func (c *Cache) Invalidate(pc uint32) bool {
	line := c.directory.Lookup(0, uint64(pc))
	if line == nil || !line.IsValid {
		return false
	}
	c.drop(line)
	return true
}

// InvalidateRange drops every block whose guest code overlaps
// [addr, addr+size). It returns the number of blocks dropped.
func (c *Cache) InvalidateRange(addr, size uint32) int {
	if size == 0 {
		return 0
	}
	end := uint64(addr) + uint64(size)

	n := 0
	for _, set := range c.directory.GetSets() {
		for _, line := range set.Blocks {
			if !line.IsValid {
				continue
			}
			b := c.blocks[c.index(line)]
			if uint64(b.StartPC) < end && uint64(addr) < uint64(b.EndPC) {
				c.drop(line)
				n++
			}
		}
	}
	return n
}

func (c *Cache) drop(line *akitacache.Block) {
	c.stats.Invalidations++
	line.IsValid = false
	c.blocks[c.index(line)] = nil
}

// Flush drops every block.
func (c *Cache) Flush() {
	c.stats.Flushes++
	c.directory.Reset()
	for i := range c.blocks {
		c.blocks[i] = nil
	}
}

// Len returns the number of cached blocks.
func (c *Cache) Len() int {
	n := 0
	for _, b := range c.blocks {
		if b != nil {
			n++
		}
	}
	return n
}

// Blocks returns the cached blocks in set and way order.
func (c *Cache) Blocks() []*rec.Block {
	out := make([]*rec.Block, 0, c.Len())
	for _, b := range c.blocks {
		if b != nil {
			out = append(out, b)
		}
	}
	return out
}
