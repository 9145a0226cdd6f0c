// Package main provides the x86emu command: it loads an x86 program and
// executes it with the functional emulator, printing one trace line per
// instruction.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/x86emu/emu"
	"github.com/sarchlab/x86emu/insts"
	"github.com/sarchlab/x86emu/loader"
	"github.com/sarchlab/x86emu/timing/cache"
	"github.com/sarchlab/x86emu/timing/core"
	"github.com/sarchlab/x86emu/timing/latency"
)

var (
	cpu          = flag.String("cpu", "emu", "CPU to run: emu (execute) or print (decode only)")
	symbol       = flag.String("symbol", "", "Symbol to start execution at (default: ELF entry point)")
	raw          = flag.Bool("raw", false, "Treat the input as raw machine code instead of ELF")
	baseAddr     = flag.String("base", "0x1000", "Load address for raw machine code")
	modeFlag     = flag.Int("mode", 64, "Processor mode for raw machine code (64 or 32)")
	maxInsts     = flag.Uint64("max", 0, "Maximum number of instructions to execute (0 = no limit)")
	debug        = flag.Bool("debug", false, "Dump registers after every instruction")
	icache       = flag.Bool("icache", false, "Fetch instructions through an L1 instruction cache")
	icacheConfig = flag.String("icache-config", "", "Path to instruction cache configuration JSON file")
	timing       = flag.Bool("timing", false, "Estimate cycles with the in-order timing core")
	timingConfig = flag.String("timing-config", "", "Path to timing configuration JSON file")
	verbose      = flag.Bool("v", false, "Verbose output")
)

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: x86emu [options] <program>\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	logger := newLogger()
	programPath := flag.Arg(0)

	prog, err := loadProgram(programPath)
	if err != nil {
		logger.WithError(err).Error("loading program")
		os.Exit(1)
	}

	entry, err := startAddress(prog)
	if err != nil {
		logger.WithError(err).Error("resolving start address")
		os.Exit(1)
	}

	logger.WithFields(logrus.Fields{
		"program":  programPath,
		"entry":    fmt.Sprintf("0x%X", entry),
		"segments": len(prog.Segments),
		"mode":     prog.Mode,
	}).Info("loaded")

	switch *cpu {
	case "print":
		os.Exit(runPrint(prog, entry, logger))
	case "emu":
		os.Exit(int(runEmulation(prog, entry, logger)))
	default:
		fmt.Fprintf(os.Stderr, "unknown cpu %q (want emu or print)\n", *cpu)
		os.Exit(1)
	}
}

func newLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	logger.SetLevel(logrus.WarnLevel)
	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	return logger
}

func loadProgram(path string) (*loader.Program, error) {
	if !*raw {
		return loader.Load(path)
	}

	base, err := strconv.ParseUint(*baseAddr, 0, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid -base %q: %w", *baseAddr, err)
	}

	var mode insts.Mode
	switch *modeFlag {
	case 64:
		mode = insts.Mode64
	case 32:
		mode = insts.Mode32
	default:
		return nil, fmt.Errorf("invalid -mode %d (want 64 or 32)", *modeFlag)
	}

	return loader.LoadRaw(path, base, mode)
}

func startAddress(prog *loader.Program) (uint64, error) {
	if *symbol == "" {
		return prog.EntryPoint, nil
	}

	addr, ok := prog.Symbol(*symbol)
	if !ok {
		return 0, fmt.Errorf("symbol %q not found", *symbol)
	}
	return addr, nil
}

// runPrint decodes the code from entry onwards without executing it.
func runPrint(prog *loader.Program, entry uint64, logger *logrus.Logger) int {
	decoder := insts.NewDecoderWithMode(prog.Mode)
	tracer := emu.NewWriterTracer(os.Stdout)

	err := decoder.Walk(prog.ExecutableSource(), entry, func(inst *insts.Instruction) error {
		tracer.Trace(inst.Op().String(), inst.Operand)
		return nil
	})
	if err != nil {
		logger.WithError(err).Error("decode stopped")
		return 1
	}
	return 0
}

// runEmulation runs the program in functional emulation mode.
func runEmulation(prog *loader.Program, entry uint64, logger *logrus.Logger) int64 {
	memory := emu.NewMemory()
	prog.LoadInto(memory)

	var (
		src = prog.ExecutableSource()
		ic  *cache.Cache
	)
	if *icache {
		config := cache.DefaultL1IConfig()
		if *icacheConfig != "" {
			var err error
			config, err = cache.LoadConfig(*icacheConfig)
			if err != nil {
				logger.WithError(err).Error("loading instruction cache config")
				return -1
			}
		}

		var fetch *cache.FetchSource
		ic, fetch = cache.NewInstructionCache(config, memory)
		src = fetch.WithBounds(src)
	}

	emulator := emu.NewEmulator(
		emu.WithMemory(memory),
		emu.WithInstructionSource(src),
		emu.WithDecoderMode(prog.Mode),
		emu.WithStackPointer(prog.InitialSP),
		emu.WithMaxInstructions(*maxInsts),
		emu.WithLogger(logger),
	)
	emulator.RegFile().RIP = entry

	var (
		exitCode int64
		fields   = logrus.Fields{}
	)
	if *timing {
		table, err := timingTable()
		if err != nil {
			logger.WithError(err).Error("loading timing config")
			return -1
		}

		c := core.NewCore(emulator, table, ic)
		exitCode = runTiming(c)

		stats := c.Stats()
		fields["cycles"] = stats.Cycles
		fields["cpi"] = fmt.Sprintf("%.3f", stats.CPI())
		fields["memory_ops"] = stats.MemoryOps
	} else {
		exitCode = run(emulator)
	}

	fields["exit"] = exitCode
	fields["instructions"] = emulator.InstructionCount()
	if ic != nil {
		stats := ic.Stats()
		fields["icache_hits"] = stats.Hits
		fields["icache_misses"] = stats.Misses
		fields["icache_cycles"] = stats.Cycles
	}
	logger.WithFields(fields).Info("done")

	return exitCode
}

func run(emulator *emu.Emulator) int64 {
	if !*debug {
		return emulator.Run()
	}

	for {
		result := emulator.Step()
		if result.Exited {
			return 0
		}
		if result.Err != nil {
			fmt.Fprintf(os.Stderr, "Emulation error: %v\n", result.Err)
			return -1
		}
		emulator.RegFile().Dump(os.Stdout)
	}
}

func timingTable() (*latency.Table, error) {
	if *timingConfig == "" {
		return latency.NewTable(), nil
	}
	config, err := latency.LoadConfig(*timingConfig)
	if err != nil {
		return nil, err
	}
	return latency.NewTableWithConfig(config), nil
}

func runTiming(c *core.Core) int64 {
	for c.Tick() {
		if *debug {
			c.Emulator().RegFile().Dump(os.Stdout)
		}
	}
	if err := c.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Emulation error: %v\n", err)
	}
	return c.ExitCode()
}
