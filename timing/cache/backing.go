package cache

import (
	"github.com/sarchlab/x86emu/emu"
	"github.com/sarchlab/x86emu/insts"
)

// MemoryBacking wraps emu.Memory as a BackingStore.
type MemoryBacking struct {
	memory *emu.Memory
}

// NewMemoryBacking creates a new MemoryBacking adapter.
func NewMemoryBacking(memory *emu.Memory) *MemoryBacking {
	return &MemoryBacking{memory: memory}
}

// Read fetches data from the backing memory.
func (m *MemoryBacking) Read(addr uint64, size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = m.memory.Read8(addr + uint64(i))
	}
	return data
}

// Mapped reports whether the page holding addr is mapped.
func (m *MemoryBacking) Mapped(addr uint64) bool {
	return m.memory.Mapped(addr)
}

// FetchSource serves instruction bytes through a Cache. It implements
// insts.ByteSource and ends the stream where the backing store is unmapped.
//
// The line of the last access is held in a fetch buffer: sequential bytes
// from that line are served without another cache access, so a run of code
// is charged one access per line it enters rather than one per byte.
type FetchSource struct {
	cache  *Cache
	bounds insts.ByteSource

	buffered bool
	line     uint64
	next     uint64
}

// NewFetchSource creates a fetch source over c.
func NewFetchSource(c *Cache) *FetchSource {
	return &FetchSource{cache: c}
}

// NewInstructionCache builds an instruction cache in front of mem and
// returns it with the fetch source reading through it.
func NewInstructionCache(config Config, mem *emu.Memory) (*Cache, *FetchSource) {
	c := New(config, NewMemoryBacking(mem))
	return c, NewFetchSource(c)
}

// WithBounds returns a fetch source that only serves addresses bounds also
// has, so that fetching through the cache stops at the end of the code
// rather than running on into zeroed memory.
func (f *FetchSource) WithBounds(bounds insts.ByteSource) *FetchSource {
	return &FetchSource{cache: f.cache, bounds: bounds}
}

// Fetch returns the byte at addr.
func (f *FetchSource) Fetch(addr uint64) (byte, bool) {
	if f.bounds != nil {
		if _, ok := f.bounds.Fetch(addr); !ok {
			return 0, false
		}
	}
	if f.cache.backing == nil || !f.cache.backing.Mapped(addr) {
		return 0, false
	}

	line := f.cache.blockAddr(addr)
	if f.buffered && addr == f.next && line == f.line {
		if b, ok := f.cache.peek(addr); ok {
			f.next = addr + 1
			return b, true
		}
	}

	result := f.cache.Read(addr)
	f.buffered, f.line, f.next = true, line, addr+1
	return result.Data, true
}
