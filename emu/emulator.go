package emu

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/x86emu/insts"
)

// ErrMaxInstructions is returned once the instruction limit is reached.
var ErrMaxInstructions = errors.New("max instructions reached")

// StepResult represents the result of executing a single instruction.
type StepResult struct {
	// Inst is the executed instruction. It is nil on a fault.
	Inst *insts.Instruction

	// Exited is true when the instruction stream ended cleanly: the fetch
	// at RIP found no byte at all.
	Exited bool

	// Err is the decode fault, returned unmodified, or ErrMaxInstructions.
	Err error
}

// Emulator executes x86-64 instructions functionally.
type Emulator struct {
	state      *State
	source     insts.ByteSource
	program    *insts.Window
	decoder    *insts.Decoder
	tracer     Tracer
	dispatcher *Dispatcher
	logger     *logrus.Logger

	// I/O
	stdout io.Writer
	stderr io.Writer

	// Execution state
	instructionCount uint64
	maxInstructions  uint64 // 0 means no limit
	lastErr          error
}

// EmulatorOption is a functional option for configuring the Emulator.
type EmulatorOption func(*Emulator)

// WithStdout sets the writer the default tracer prints to.
func WithStdout(w io.Writer) EmulatorOption {
	return func(e *Emulator) {
		e.stdout = w
	}
}

// WithStderr sets a custom stderr writer.
func WithStderr(w io.Writer) EmulatorOption {
	return func(e *Emulator) {
		e.stderr = w
	}
}

// WithTracer sets the instruction tracer.
func WithTracer(t Tracer) EmulatorOption {
	return func(e *Emulator) {
		e.tracer = t
	}
}

// WithLogger sets the diagnostics logger.
func WithLogger(l *logrus.Logger) EmulatorOption {
	return func(e *Emulator) {
		e.logger = l
	}
}

// WithMemory makes the emulator operate on an existing memory.
func WithMemory(m *Memory) EmulatorOption {
	return func(e *Emulator) {
		e.state.Mem = m
	}
}

// WithInstructionSource fetches instruction bytes from src instead of
// directly from memory, e.g. through an instruction cache.
func WithInstructionSource(src insts.ByteSource) EmulatorOption {
	return func(e *Emulator) {
		e.source = src
	}
}

// WithDecoderMode selects the processor mode of the decoder.
func WithDecoderMode(mode insts.Mode) EmulatorOption {
	return func(e *Emulator) {
		e.decoder = insts.NewDecoderWithMode(mode)
	}
}

// WithStackPointer sets the initial stack pointer value.
func WithStackPointer(sp uint64) EmulatorOption {
	return func(e *Emulator) {
		e.state.Regs.GPR[insts.RSP] = sp
	}
}

// WithMaxInstructions sets the maximum number of instructions to execute.
// A value of 0 means no limit.
func WithMaxInstructions(max uint64) EmulatorOption {
	return func(e *Emulator) {
		e.maxInstructions = max
	}
}

// NewEmulator creates a new x86-64 emulator.
func NewEmulator(opts ...EmulatorOption) *Emulator {
	e := &Emulator{
		state:   NewState(),
		decoder: insts.NewDecoder(),
		stdout:  os.Stdout,
		stderr:  os.Stderr,
	}

	// Apply options first (may set stdout or the tracer)
	for _, opt := range opts {
		opt(e)
	}

	if e.tracer == nil {
		e.tracer = NewWriterTracer(e.stdout)
	}
	if e.logger == nil {
		e.logger = logrus.New()
		e.logger.SetOutput(e.stderr)
		e.logger.SetLevel(logrus.WarnLevel)
	}

	e.dispatcher = NewDispatcher(e.decoder, NewHandlers(e.tracer))

	return e
}

// State returns the emulator's machine state.
func (e *Emulator) State() *State {
	return e.state
}

// RegFile returns the emulator's register file.
func (e *Emulator) RegFile() *RegFile {
	return e.state.Regs
}

// Memory returns the emulator's memory.
func (e *Emulator) Memory() *Memory {
	return e.state.Mem
}

// InstructionCount returns the number of instructions executed.
func (e *Emulator) InstructionCount() uint64 {
	return e.instructionCount
}

// Err returns the fault that stopped the last Run, if any.
func (e *Emulator) Err() error {
	return e.lastErr
}

// LoadProgram copies program into memory at entry and points RIP at it.
// Unless an instruction source was given, instructions are then fetched
// from memory only within the loaded bytes, so the stream ends after the
// last one.
func (e *Emulator) LoadProgram(entry uint64, program []byte) {
	e.state.Mem.LoadProgram(entry, program)
	e.state.Regs.RIP = entry
	e.program = &insts.Window{
		Src:  e.state.Mem,
		Base: entry,
		Size: uint64(len(program)),
	}
}

// Reset clears the registers and the instruction count. Memory is kept.
func (e *Emulator) Reset() {
	e.state.Regs = NewRegFile()
	e.instructionCount = 0
	e.lastErr = nil
}

func (e *Emulator) fetchSource() insts.ByteSource {
	switch {
	case e.source != nil:
		return e.source
	case e.program != nil:
		return *e.program
	default:
		return e.state.Mem
	}
}

// Step executes a single instruction.
// Returns a StepResult indicating whether execution should continue.
func (e *Emulator) Step() StepResult {
	if e.maxInstructions > 0 && e.instructionCount >= e.maxInstructions {
		return StepResult{Err: ErrMaxInstructions}
	}

	rip := e.state.Regs.RIP
	inst, err := e.dispatcher.Step(e.fetchSource(), e.state)
	if err != nil {
		if insts.IsEndOfStream(err) {
			return StepResult{Exited: true, Err: err}
		}

		e.logger.WithFields(logrus.Fields{
			"rip": fmt.Sprintf("0x%x", rip),
			"ic":  e.instructionCount,
		}).WithError(err).Error("decode fault")

		return StepResult{Err: err}
	}

	e.logger.WithFields(logrus.Fields{
		"rip":  fmt.Sprintf("0x%x", rip),
		"len":  inst.Length,
		"inst": inst.String(),
	}).Debug("step")

	e.instructionCount++

	return StepResult{Inst: inst}
}

// Run executes instructions until the instruction stream ends, a fault
// occurs or the instruction limit is hit.
// Returns 0 when the stream ended cleanly and -1 otherwise.
func (e *Emulator) Run() int64 {
	for {
		result := e.Step()
		if result.Exited {
			e.logger.WithField("instructions", e.instructionCount).Info("end of instruction stream")
			return 0
		}
		if result.Err != nil {
			e.lastErr = result.Err
			_, _ = fmt.Fprintf(e.stderr, "Emulation error: %v\n", result.Err)
			return -1
		}
	}
}
