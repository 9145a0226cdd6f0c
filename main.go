// Package main provides the entry point for x86emu, an x86 decode and
// dispatch emulator.
//
// For the full CLI, use: go run ./cmd/x86emu
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("x86emu - x86 Decode and Dispatch Emulator")
	fmt.Println("")
	fmt.Println("Usage: x86emu [options] <program>")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -cpu       emu (execute) or print (decode only)")
	fmt.Println("  -symbol    Symbol to start execution at")
	fmt.Println("  -raw       Treat the input as raw machine code")
	fmt.Println("  -timing    Estimate cycles with the timing core")
	fmt.Println("  -icache    Fetch through an L1 instruction cache")
	fmt.Println("  -v         Verbose output")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/x86emu' for the full CLI, or")
	fmt.Println("'go run ./cmd/x86dis' to list a program's instructions.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/x86emu' instead.")
	}
}
