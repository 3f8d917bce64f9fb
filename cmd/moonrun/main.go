// Command moonrun assembles a Moon assembly file and runs it.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"moonc/pkg/compiler"
	"moonc/pkg/config"
	"moonc/pkg/moon"
	"moonc/pkg/utils"
)

func main() {
	configPath := flag.String("config", "", "YAML configuration file")
	steps := flag.Int("steps", 0, "step limit (0 keeps the configured limit)")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: moonrun [flags] program.m")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *steps > 0 {
		cfg.Runtime.MaxSteps = *steps
	}
	logger := utils.NewLogger(*verbose)

	fullPath, _, err := utils.GetPathInfo(flag.Arg(0))
	if err != nil {
		log.Fatalf("bad path: %v", err)
	}
	source, err := os.ReadFile(fullPath)
	if err != nil {
		log.Fatalf("Failed to read assembly file: %v", err)
	}

	prog, err := compiler.Assemble(string(source), cfg)
	if err != nil {
		log.Fatal(err)
	}
	vm, err := moon.New(prog, cfg.Runtime, logger)
	if err != nil {
		log.Fatal(err)
	}
	if err := vm.Run(); err != nil {
		if line, ok := prog.Lines[vm.PC]; ok {
			log.Fatalf("%v (line %d)", err, line)
		}
		log.Fatal(err)
	}
	logger.Info("halted", "steps", vm.Steps, "bytes", prog.Size())
}
