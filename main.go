package main

import (
	"flag"
	"fmt"
	"os"

	"moonc/pkg/compiler"
	"moonc/pkg/config"
	"moonc/pkg/utils"
)

func main() {
	inPath := flag.String("in", "", "input AST file (YAML)")
	outPath := flag.String("out", "", "output assembly file (default: input with .m extension, - for stdout)")
	runProgram := flag.Bool("run", false, "run the generated assembly on the Moon machine")
	configPath := flag.String("config", "", "YAML configuration file")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	if *inPath == "" {
		fmt.Fprintln(os.Stderr, "nothing to do: provide -in <ast.yaml>")
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	opts := compiler.Options{Config: cfg, Logger: utils.NewLogger(*verbose)}

	fullPath, _, err := utils.GetPathInfo(*inPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bad input path %q: %v\n", *inPath, err)
		os.Exit(1)
	}
	res, err := compiler.CompileFile(fullPath, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "compilation failed: %v\n", err)
		os.Exit(1)
	}

	output := *outPath
	if output == "" {
		output = utils.ReplaceExt(fullPath, ".m")
	}
	if err := utils.WriteText(output, res.Assembly); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write assembly %q: %v\n", output, err)
		os.Exit(1)
	}
	if output != "-" {
		fmt.Fprintf(os.Stderr, "compiled %s -> %s\n", *inPath, output)
	}

	if !*runProgram {
		return
	}
	if err := compiler.Run(res.Assembly, os.Stdin, os.Stdout, opts); err != nil {
		fmt.Fprintf(os.Stderr, "run failed: %v\n", err)
		os.Exit(1)
	}
}
