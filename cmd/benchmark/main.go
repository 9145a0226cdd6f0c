// Command benchmark runs the timing benchmark harness.
//
// Usage:
//
//	go run ./cmd/benchmark [flags]
//
// Flags:
//
//	-format         Output format: text, csv or json (default: text)
//	-no-icache      Disable instruction cache simulation
//	-timing-config  Path to a timing configuration JSON file
//
// Example:
//
//	# Output CSV for spreadsheet comparison
//	go run ./cmd/benchmark -format csv > results.csv
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/x86emu/benchmarks"
	"github.com/sarchlab/x86emu/timing/latency"
)

func main() {
	format := flag.String("format", "text", "Output format: text, csv or json")
	noICache := flag.Bool("no-icache", false, "Disable instruction cache simulation")
	timingConfig := flag.String("timing-config", "", "Path to timing configuration JSON file")
	flag.Parse()

	config := benchmarks.DefaultConfig()
	config.EnableICache = !*noICache
	config.Output = os.Stdout

	if *timingConfig != "" {
		timing, err := latency.LoadConfig(*timingConfig)
		if err != nil {
			logrus.WithError(err).Fatal("loading timing config")
		}
		config.Timing = timing
	}

	harness := benchmarks.NewHarness(config)
	harness.AddBenchmarks(benchmarks.GetMicrobenchmarks())

	results := harness.RunAll()

	switch *format {
	case "csv":
		harness.PrintCSV(results)
	case "json":
		if err := harness.PrintJSON(results); err != nil {
			logrus.WithError(err).Fatal("writing JSON report")
		}
	case "text":
		fmt.Println("x86emu Timing Benchmark Harness")
		fmt.Println("===============================")
		fmt.Printf("I-Cache: %v\n", config.EnableICache)
		fmt.Println("")
		harness.PrintResults(results)
	default:
		fmt.Fprintf(os.Stderr, "unknown format %q (want text, csv or json)\n", *format)
		os.Exit(1)
	}

	for _, r := range results {
		if r.Error != "" {
			os.Exit(1)
		}
	}
}
