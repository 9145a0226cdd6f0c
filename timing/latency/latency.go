// Package latency provides per-instruction latency estimates for the
// timing core.
package latency

import (
	"github.com/sarchlab/x86emu/insts"
)

// Table provides instruction latency lookups.
type Table struct {
	config *TimingConfig
}

// NewTable creates a new latency table with default timing values.
func NewTable() *Table {
	return &Table{
		config: DefaultTimingConfig(),
	}
}

// NewTableWithConfig creates a new latency table with custom timing configuration.
func NewTableWithConfig(config *TimingConfig) *Table {
	return &Table{
		config: config,
	}
}

// GetLatency returns the execution latency in cycles for the given
// instruction, including the memory access it performs.
func (t *Table) GetLatency(inst *insts.Instruction) uint64 {
	if inst == nil {
		return 1
	}

	var cycles uint64
	op := inst.Op()
	switch {
	case op == insts.OpADC || op == insts.OpSBB:
		cycles = t.config.CarryLatency
	case op.IsArithmetic():
		cycles = t.config.ALULatency
	case op.IsCMov():
		cycles = t.config.CMovLatency
	default:
		cycles = 1
	}

	if t.IsLoadOp(inst) {
		cycles += t.config.LoadLatency
	}
	if t.IsStoreOp(inst) {
		cycles += t.config.StoreLatency
	}

	return cycles
}

// IsMemoryOp returns true if the instruction accesses memory.
func (t *Table) IsMemoryOp(inst *insts.Instruction) bool {
	if inst == nil {
		return false
	}
	return inst.Operand.Dst.Kind == insts.LocMemory ||
		inst.Operand.Src.Kind == insts.LocMemory
}

// IsLoadOp returns true if the instruction reads an operand from memory.
// Arithmetic reads its destination; cmov only reads its source.
func (t *Table) IsLoadOp(inst *insts.Instruction) bool {
	if inst == nil {
		return false
	}
	if inst.Operand.Src.Kind == insts.LocMemory {
		return true
	}
	return inst.Op().IsArithmetic() && inst.Operand.Dst.Kind == insts.LocMemory
}

// IsStoreOp returns true if the instruction writes its result to memory.
func (t *Table) IsStoreOp(inst *insts.Instruction) bool {
	if inst == nil {
		return false
	}
	return inst.Operand.Dst.Kind == insts.LocMemory && inst.Op() != insts.OpCMP
}

// Config returns the current timing configuration.
func (t *Table) Config() *TimingConfig {
	return t.config
}
