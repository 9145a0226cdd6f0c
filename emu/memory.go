package emu

// PageSize is the granularity at which memory is allocated.
const PageSize = 4096

// Memory is a sparse, little-endian, byte-addressable memory.
// Pages are allocated on first write; reads of unallocated pages return 0.
type Memory struct {
	pages map[uint64]*[PageSize]byte
}

// NewMemory creates an empty memory.
func NewMemory() *Memory {
	return &Memory{pages: make(map[uint64]*[PageSize]byte)}
}

func (m *Memory) page(addr uint64, alloc bool) *[PageSize]byte {
	num := addr / PageSize
	p, ok := m.pages[num]
	if !ok && alloc {
		p = new([PageSize]byte)
		m.pages[num] = p
	}
	return p
}

// Mapped reports whether the page holding addr has been allocated.
func (m *Memory) Mapped(addr uint64) bool {
	_, ok := m.pages[addr/PageSize]
	return ok
}

// Fetch returns the byte at addr. It reports false when the page is not
// mapped, which ends the instruction stream.
func (m *Memory) Fetch(addr uint64) (byte, bool) {
	p := m.page(addr, false)
	if p == nil {
		return 0, false
	}
	return p[addr%PageSize], true
}

// Read8 reads a byte.
func (m *Memory) Read8(addr uint64) byte {
	b, _ := m.Fetch(addr)
	return b
}

// Write8 writes a byte.
func (m *Memory) Write8(addr uint64, value byte) {
	m.page(addr, true)[addr%PageSize] = value
}

// ReadN reads an n-byte little-endian value.
func (m *Memory) ReadN(addr uint64, n int) uint64 {
	var v uint64
	for i := 0; i < n; i++ {
		v |= uint64(m.Read8(addr+uint64(i))) << (8 * i)
	}
	return v
}

// WriteN writes the low n bytes of value in little-endian order.
func (m *Memory) WriteN(addr uint64, n int, value uint64) {
	for i := 0; i < n; i++ {
		m.Write8(addr+uint64(i), byte(value>>(8*i)))
	}
}

// Read16 reads a 16-bit value.
func (m *Memory) Read16(addr uint64) uint16 {
	return uint16(m.ReadN(addr, 2))
}

// Read32 reads a 32-bit value.
func (m *Memory) Read32(addr uint64) uint32 {
	return uint32(m.ReadN(addr, 4))
}

// Read64 reads a 64-bit value.
func (m *Memory) Read64(addr uint64) uint64 {
	return m.ReadN(addr, 8)
}

// Write16 writes a 16-bit value.
func (m *Memory) Write16(addr uint64, value uint16) {
	m.WriteN(addr, 2, uint64(value))
}

// Write32 writes a 32-bit value.
func (m *Memory) Write32(addr uint64, value uint32) {
	m.WriteN(addr, 4, uint64(value))
}

// Write64 writes a 64-bit value.
func (m *Memory) Write64(addr uint64, value uint64) {
	m.WriteN(addr, 8, value)
}

// LoadProgram copies program into memory at addr.
func (m *Memory) LoadProgram(addr uint64, program []byte) {
	for i, b := range program {
		m.Write8(addr+uint64(i), b)
	}
}

// Zero maps size bytes at addr and clears them.
func (m *Memory) Zero(addr, size uint64) {
	for i := uint64(0); i < size; i++ {
		m.Write8(addr+i, 0)
	}
}
