// Command moondump prints the laid-out symbol table of an AST file and,
// optionally, the assembly generated for it.
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
	showAsm := flag.Bool("show-asm", false, "also print the generated assembly")
	configPath := flag.String("config", "", "YAML configuration file")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: moondump [flags] program.yaml")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}
	opts := compiler.Options{Config: cfg, Logger: utils.NewLogger(*verbose)}

	res, err := compiler.CompileFile(flag.Arg(0), opts)
	if err != nil {
		fmt.Fprintln(os.Stderr, "compile error:", err)
		os.Exit(1)
	}

	fmt.Printf("Layout (%d passes, %d class layouts)\n", res.Layout.Passes(), res.Layout.ClassLayouts())
	fmt.Print(res.Table)
	if *showAsm {
		fmt.Println()
		fmt.Println("Generated Assembly")
		fmt.Print(res.Assembly)
	}
}
