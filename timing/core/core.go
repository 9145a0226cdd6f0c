// Package core provides an in-order timing core that executes instructions
// with the functional emulator and charges each one fetch and execution
// cycles.
package core

import (
	"github.com/sarchlab/x86emu/emu"
	"github.com/sarchlab/x86emu/timing/cache"
	"github.com/sarchlab/x86emu/timing/latency"
)

// Stats holds performance statistics for the core.
type Stats struct {
	Cycles       uint64
	Instructions uint64
	// FetchCycles are the instruction cache cycles spent fetching.
	FetchCycles uint64
	// ExecCycles are the latency table cycles spent executing.
	ExecCycles uint64
	MemoryOps  uint64
}

// CPI returns cycles per instruction, or 0 before any instruction retired.
func (s Stats) CPI() float64 {
	if s.Instructions == 0 {
		return 0
	}
	return float64(s.Cycles) / float64(s.Instructions)
}

// Core retires one instruction per Tick.
type Core struct {
	emulator *emu.Emulator
	table    *latency.Table
	icache   *cache.Cache

	stats    Stats
	halted   bool
	exitCode int64
	err      error
}

// NewCore creates a core around e. icache may be nil, in which case
// fetches cost nothing; it must be the cache e fetches through.
func NewCore(e *emu.Emulator, table *latency.Table, icache *cache.Cache) *Core {
	if table == nil {
		table = latency.NewTable()
	}
	return &Core{
		emulator: e,
		table:    table,
		icache:   icache,
	}
}

// Emulator returns the functional emulator the core drives.
func (c *Core) Emulator() *emu.Emulator {
	return c.emulator
}

// Tick executes one instruction. Returns false once the core has halted.
func (c *Core) Tick() bool {
	if c.halted {
		return false
	}

	var fetchBefore uint64
	if c.icache != nil {
		fetchBefore = c.icache.Stats().Cycles
	}

	result := c.emulator.Step()

	if c.icache != nil {
		fetch := c.icache.Stats().Cycles - fetchBefore
		c.stats.FetchCycles += fetch
		c.stats.Cycles += fetch
	}

	switch {
	case result.Exited:
		c.halt(0, nil)
		return false
	case result.Err != nil:
		c.halt(-1, result.Err)
		return false
	}

	exec := c.table.GetLatency(result.Inst)
	c.stats.ExecCycles += exec
	c.stats.Cycles += exec
	c.stats.Instructions++
	if c.table.IsMemoryOp(result.Inst) {
		c.stats.MemoryOps++
	}

	return true
}

func (c *Core) halt(code int64, err error) {
	c.halted = true
	c.exitCode = code
	c.err = err
}

// Halted returns true once the instruction stream ended or faulted.
func (c *Core) Halted() bool {
	return c.halted
}

// ExitCode returns 0 for a clean end of stream and -1 for a fault.
func (c *Core) ExitCode() int64 {
	return c.exitCode
}

// Err returns the fault that halted the core, if any.
func (c *Core) Err() error {
	return c.err
}

// Stats returns performance statistics for the core.
func (c *Core) Stats() Stats {
	return c.stats
}

// Run executes the core until it halts.
// Returns the exit code.
func (c *Core) Run() int64 {
	for c.Tick() {
	}
	return c.exitCode
}

// RunCycles executes instructions until at least cycles more cycles have
// elapsed. Returns true if still running, false if halted.
func (c *Core) RunCycles(cycles uint64) bool {
	target := c.stats.Cycles + cycles
	for c.stats.Cycles < target {
		if !c.Tick() {
			return false
		}
	}
	return true
}

// Reset clears the registers, statistics and cache contents. Memory is kept.
func (c *Core) Reset() {
	c.emulator.Reset()
	if c.icache != nil {
		c.icache.Reset()
	}
	c.stats = Stats{}
	c.halted = false
	c.exitCode = 0
	c.err = nil
}
