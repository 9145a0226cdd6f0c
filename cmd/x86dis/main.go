// Package main provides the x86dis command, which lists the instructions
// of an x86 program in objdump style without executing them.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/x86emu/insts"
	"github.com/sarchlab/x86emu/loader"
)

var (
	raw      = flag.Bool("raw", false, "Treat the input as raw machine code instead of ELF")
	baseAddr = flag.String("base", "0x0", "Load address for raw machine code")
	mode32   = flag.Bool("m32", false, "Decode raw machine code in 32-bit mode")
	start    = flag.String("start", "", "Symbol or address to start listing at (default: entry point)")
)

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: x86dis [options] <program>\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	prog, err := load(flag.Arg(0))
	if err != nil {
		logrus.WithError(err).Fatal("loading program")
	}

	addr, err := startAddress(prog)
	if err != nil {
		logrus.WithError(err).Fatal("resolving start address")
	}

	if err := list(os.Stdout, prog, addr); err != nil {
		logrus.WithError(err).Error("decode stopped")
		os.Exit(1)
	}
}

func load(path string) (*loader.Program, error) {
	if !*raw {
		return loader.Load(path)
	}

	base, err := strconv.ParseUint(*baseAddr, 0, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid -base %q: %w", *baseAddr, err)
	}

	mode := insts.Mode64
	if *mode32 {
		mode = insts.Mode32
	}
	return loader.LoadRaw(path, base, mode)
}

func startAddress(prog *loader.Program) (uint64, error) {
	if *start == "" {
		return prog.EntryPoint, nil
	}
	if addr, ok := prog.Symbol(*start); ok {
		return addr, nil
	}
	addr, err := strconv.ParseUint(*start, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("%q is neither a symbol nor an address", *start)
	}
	return addr, nil
}

// list writes one line per instruction: address, bytes and text.
func list(w io.Writer, prog *loader.Program, addr uint64) error {
	decoder := insts.NewDecoderWithMode(prog.Mode)

	return decoder.Walk(prog.ExecutableSource(), addr, func(inst *insts.Instruction) error {
		hex := make([]string, len(inst.Bytes))
		for i, b := range inst.Bytes {
			hex[i] = fmt.Sprintf("%02x", b)
		}
		_, err := fmt.Fprintf(w, "%8x:\t%-20s\t%s\n", inst.Addr, strings.Join(hex, " "), inst)
		return err
	})
}
