// Package benchmarks provides timing benchmark infrastructure for the
// in-order timing core.
package benchmarks

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sarchlab/x86emu/emu"
	"github.com/sarchlab/x86emu/insts"
	"github.com/sarchlab/x86emu/timing/cache"
	"github.com/sarchlab/x86emu/timing/core"
	"github.com/sarchlab/x86emu/timing/latency"
)

// ProgramAddr is where every benchmark program is loaded.
const ProgramAddr = 0x1000

// BenchmarkResult holds the timing results for a single benchmark run.
type BenchmarkResult struct {
	// Name identifies the benchmark
	Name string `json:"name"`

	// Description explains what the benchmark measures
	Description string `json:"description"`

	// SimulatedCycles is the total cycle count from the timing core
	SimulatedCycles uint64 `json:"simulated_cycles"`

	// InstructionsRetired is the number of completed instructions
	InstructionsRetired uint64 `json:"instructions_retired"`

	// CPI is cycles per instruction
	CPI float64 `json:"cpi"`

	FetchCycles uint64 `json:"fetch_cycles"`
	ExecCycles  uint64 `json:"exec_cycles"`
	MemoryOps   uint64 `json:"memory_ops"`

	// ICacheHits/Misses (if cache enabled)
	ICacheHits   uint64 `json:"icache_hits,omitempty"`
	ICacheMisses uint64 `json:"icache_misses,omitempty"`

	// ExitCode is 0 when the program ran off its end and -1 on a fault
	ExitCode int64 `json:"exit_code"`

	// Error is the fault or validation failure, if any
	Error string `json:"error,omitempty"`

	// WallTime is the actual time taken to run the simulation
	WallTime time.Duration `json:"wall_time_ns"`
}

// Benchmark defines a single benchmark program.
type Benchmark struct {
	// Name identifies the benchmark
	Name string

	// Description explains what the benchmark measures
	Description string

	// Setup prepares the emulator state (e.g., initialize registers, memory)
	Setup func(regFile *emu.RegFile, memory *emu.Memory)

	// Program is the x86-64 machine code to execute. It ends where the
	// bytes end.
	Program []byte

	// Validate checks the final architectural state.
	Validate func(regFile *emu.RegFile, memory *emu.Memory) error
}

// HarnessConfig configures the benchmark harness.
type HarnessConfig struct {
	// EnableICache fetches instructions through an L1 instruction cache
	EnableICache bool

	// ICache is the instruction cache geometry used when EnableICache is set
	ICache cache.Config

	// Timing holds the instruction latencies; nil means the defaults
	Timing *latency.TimingConfig

	// Output is where to write results (default: os.Stdout)
	Output io.Writer
}

// DefaultConfig returns a default harness configuration.
func DefaultConfig() HarnessConfig {
	return HarnessConfig{
		EnableICache: true,
		ICache:       cache.DefaultL1IConfig(),
		Output:       os.Stdout,
	}
}

// Harness runs timing benchmarks and reports results.
type Harness struct {
	config     HarnessConfig
	benchmarks []Benchmark
}

// NewHarness creates a new benchmark harness.
func NewHarness(config HarnessConfig) *Harness {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	return &Harness{
		config:     config,
		benchmarks: []Benchmark{},
	}
}

// AddBenchmark adds a benchmark to the harness.
func (h *Harness) AddBenchmark(b Benchmark) {
	h.benchmarks = append(h.benchmarks, b)
}

// AddBenchmarks adds multiple benchmarks to the harness.
func (h *Harness) AddBenchmarks(benchmarks []Benchmark) {
	h.benchmarks = append(h.benchmarks, benchmarks...)
}

// RunAll executes all benchmarks and returns results.
func (h *Harness) RunAll() []BenchmarkResult {
	results := make([]BenchmarkResult, 0, len(h.benchmarks))

	for _, bench := range h.benchmarks {
		results = append(results, h.runBenchmark(bench))
	}

	return results
}

// runBenchmark executes a single benchmark on a fresh core.
func (h *Harness) runBenchmark(bench Benchmark) BenchmarkResult {
	memory := emu.NewMemory()

	var (
		src insts.ByteSource = insts.Bytes{Base: ProgramAddr, Data: bench.Program}
		ic  *cache.Cache
	)
	if h.config.EnableICache {
		var fetch *cache.FetchSource
		ic, fetch = cache.NewInstructionCache(h.config.ICache, memory)
		src = fetch.WithBounds(src)
	}

	emulator := emu.NewEmulator(
		emu.WithMemory(memory),
		emu.WithInstructionSource(src),
		emu.WithTracer(emu.NopTracer{}),
		emu.WithStackPointer(0x10000),
	)
	if bench.Setup != nil {
		bench.Setup(emulator.RegFile(), memory)
	}
	emulator.LoadProgram(ProgramAddr, bench.Program)

	table := latency.NewTable()
	if h.config.Timing != nil {
		table = latency.NewTableWithConfig(h.config.Timing)
	}
	c := core.NewCore(emulator, table, ic)

	start := time.Now()
	exitCode := c.Run()
	wallTime := time.Since(start)

	stats := c.Stats()
	result := BenchmarkResult{
		Name:                bench.Name,
		Description:         bench.Description,
		SimulatedCycles:     stats.Cycles,
		InstructionsRetired: stats.Instructions,
		CPI:                 stats.CPI(),
		FetchCycles:         stats.FetchCycles,
		ExecCycles:          stats.ExecCycles,
		MemoryOps:           stats.MemoryOps,
		ExitCode:            exitCode,
		WallTime:            wallTime,
	}

	if ic != nil {
		icStats := ic.Stats()
		result.ICacheHits = icStats.Hits
		result.ICacheMisses = icStats.Misses
	}

	switch {
	case c.Err() != nil:
		result.Error = c.Err().Error()
	case bench.Validate != nil:
		if err := bench.Validate(emulator.RegFile(), memory); err != nil {
			result.Error = err.Error()
		}
	}

	return result
}

// PrintResults outputs benchmark results in a human-readable format.
func (h *Harness) PrintResults(results []BenchmarkResult) {
	out := h.config.Output
	_, _ = fmt.Fprintln(out, "=== x86emu Timing Benchmark Results ===")
	_, _ = fmt.Fprintln(out, "")

	for _, r := range results {
		_, _ = fmt.Fprintf(out, "Benchmark: %s\n", r.Name)
		_, _ = fmt.Fprintf(out, "  Description: %s\n", r.Description)
		_, _ = fmt.Fprintf(out, "  Exit Code: %d\n", r.ExitCode)
		if r.Error != "" {
			_, _ = fmt.Fprintf(out, "  Error: %s\n", r.Error)
		}
		_, _ = fmt.Fprintln(out, "  --- Timing ---")
		_, _ = fmt.Fprintf(out, "  Simulated Cycles:     %d\n", r.SimulatedCycles)
		_, _ = fmt.Fprintf(out, "  Instructions Retired: %d\n", r.InstructionsRetired)
		_, _ = fmt.Fprintf(out, "  CPI:                  %.3f\n", r.CPI)
		_, _ = fmt.Fprintf(out, "  Fetch Cycles:         %d\n", r.FetchCycles)
		_, _ = fmt.Fprintf(out, "  Exec Cycles:          %d\n", r.ExecCycles)
		_, _ = fmt.Fprintf(out, "  Memory Ops:           %d\n", r.MemoryOps)

		if r.ICacheHits > 0 || r.ICacheMisses > 0 {
			_, _ = fmt.Fprintln(out, "  --- I-Cache ---")
			_, _ = fmt.Fprintf(out, "  Hits:   %d\n", r.ICacheHits)
			_, _ = fmt.Fprintf(out, "  Misses: %d\n", r.ICacheMisses)
		}

		_, _ = fmt.Fprintf(out, "  Wall Time: %v\n", r.WallTime)
		_, _ = fmt.Fprintln(out, "")
	}
}

// PrintCSV outputs benchmark results in CSV format for easy comparison.
func (h *Harness) PrintCSV(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output,
		"name,cycles,instructions,cpi,fetch_cycles,exec_cycles,memory_ops,icache_hits,icache_misses,exit_code")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "%s,%d,%d,%.3f,%d,%d,%d,%d,%d,%d\n",
			r.Name,
			r.SimulatedCycles,
			r.InstructionsRetired,
			r.CPI,
			r.FetchCycles,
			r.ExecCycles,
			r.MemoryOps,
			r.ICacheHits,
			r.ICacheMisses,
			r.ExitCode,
		)
	}
}

// BenchmarkReport is the complete output format for benchmark results.
type BenchmarkReport struct {
	Metadata ReportMetadata    `json:"metadata"`
	Results  []BenchmarkResult `json:"results"`
	Summary  ReportSummary     `json:"summary"`
}

// ReportMetadata contains information about the benchmark run.
type ReportMetadata struct {
	Timestamp     string                `json:"timestamp"`
	ICacheEnabled bool                  `json:"icache_enabled"`
	Timing        *latency.TimingConfig `json:"timing"`
}

// ReportSummary contains aggregate statistics across all benchmarks.
type ReportSummary struct {
	TotalBenchmarks   int           `json:"total_benchmarks"`
	Failed            int           `json:"failed"`
	TotalCycles       uint64        `json:"total_cycles"`
	TotalInstructions uint64        `json:"total_instructions"`
	AverageCPI        float64       `json:"average_cpi"`
	TotalWallTime     time.Duration `json:"total_wall_time_ns"`
}

// PrintJSON outputs benchmark results in JSON format for automated comparison.
func (h *Harness) PrintJSON(results []BenchmarkResult) error {
	summary := ReportSummary{TotalBenchmarks: len(results)}
	for _, r := range results {
		summary.TotalCycles += r.SimulatedCycles
		summary.TotalInstructions += r.InstructionsRetired
		summary.TotalWallTime += r.WallTime
		if r.Error != "" {
			summary.Failed++
		}
	}
	if summary.TotalInstructions > 0 {
		summary.AverageCPI = float64(summary.TotalCycles) / float64(summary.TotalInstructions)
	}

	timing := h.config.Timing
	if timing == nil {
		timing = latency.DefaultTimingConfig()
	}

	report := BenchmarkReport{
		Metadata: ReportMetadata{
			Timestamp:     time.Now().UTC().Format(time.RFC3339),
			ICacheEnabled: h.config.EnableICache,
			Timing:        timing,
		},
		Results: results,
		Summary: summary,
	}

	encoder := json.NewEncoder(h.config.Output)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}
