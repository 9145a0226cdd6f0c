package latency

import (
	"encoding/json"
	"fmt"
	"os"
)

// TimingConfig holds latency values for the instruction classes the core
// executes.
type TimingConfig struct {
	// ALULatency is the execution latency of add, or, adc, sbb, and, sub,
	// xor and cmp with register or immediate operands. Default: 1 cycle.
	ALULatency uint64 `json:"alu_latency"`

	// CarryLatency is the latency of adc and sbb, which also wait on CF.
	// Default: 1 cycle.
	CarryLatency uint64 `json:"carry_latency"`

	// CMovLatency is the latency of a conditional move, taken or not.
	// Default: 1 cycle.
	CMovLatency uint64 `json:"cmov_latency"`

	// LoadLatency is added when an operand is read from memory, assuming an
	// L1 hit. Default: 4 cycles.
	LoadLatency uint64 `json:"load_latency"`

	// StoreLatency is added when the result is written to memory.
	// Default: 1 cycle.
	StoreLatency uint64 `json:"store_latency"`
}

// DefaultTimingConfig returns a TimingConfig with default values.
func DefaultTimingConfig() *TimingConfig {
	return &TimingConfig{
		ALULatency:   1,
		CarryLatency: 1,
		CMovLatency:  1,
		LoadLatency:  4,
		StoreLatency: 1,
	}
}

// LoadConfig loads a TimingConfig from a JSON file. Fields missing from the
// file keep their defaults.
func LoadConfig(path string) (*TimingConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read timing config file: %w", err)
	}

	config := DefaultTimingConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse timing config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// SaveConfig writes a TimingConfig to a JSON file.
func (c *TimingConfig) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize timing config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write timing config file: %w", err)
	}

	return nil
}

// Validate checks that every execution latency is non-zero. Memory
// latencies may be zero to model a perfect data path.
func (c *TimingConfig) Validate() error {
	if c.ALULatency == 0 {
		return fmt.Errorf("alu_latency must be > 0")
	}
	if c.CarryLatency == 0 {
		return fmt.Errorf("carry_latency must be > 0")
	}
	if c.CMovLatency == 0 {
		return fmt.Errorf("cmov_latency must be > 0")
	}
	return nil
}

// Clone returns a copy of the config.
func (c *TimingConfig) Clone() *TimingConfig {
	clone := *c
	return &clone
}
