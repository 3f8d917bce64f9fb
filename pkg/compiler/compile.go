package compiler

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"

	"moonc/pkg/asm"
	"moonc/pkg/ast"
	"moonc/pkg/codegen"
	"moonc/pkg/config"
	"moonc/pkg/diag"
	"moonc/pkg/layout"
	"moonc/pkg/moon"
	"moonc/pkg/symtab"
)

// Options configure one compilation.
type Options struct {
	Config config.Config
	Logger *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return o.Logger
}

// Result is everything a compilation produced.
type Result struct {
	Assembly string
	Table    *symtab.Table
	Layout   *layout.Resolver
}

// Compile lays out prog and emits its assembly. Back-end faults come back
// as errors wrapping *diag.Fault.
func Compile(prog *ast.Program, opts Options) (res *Result, err error) {
	log := opts.logger()
	tab, err := symtab.Build(prog)
	if err != nil {
		return nil, fmt.Errorf("symbols: %w", err)
	}
	lay, err := Resolve(tab, opts)
	if err != nil {
		return nil, err
	}

	defer diag.Catch(&err)
	assembly := codegen.Generate(lay, opts.Config, log)
	log.Info("compiled", "functions", len(tab.Funcs), "classes", len(tab.Classes), "passes", lay.Passes())
	return &Result{Assembly: assembly, Table: tab, Layout: lay}, nil
}

// Resolve computes sizes and offsets for every scope of tab.
func Resolve(tab *symtab.Table, opts Options) (lay *layout.Resolver, err error) {
	defer diag.Catch(&err)
	lay = layout.New(tab, opts.Config, opts.logger())
	lay.Resolve()
	return lay, nil
}

// CompileSource decodes a YAML AST and compiles it.
func CompileSource(src []byte, opts Options) (*Result, error) {
	prog, err := ast.Decode(src)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return Compile(prog, opts)
}

// CompileFile reads a YAML AST from path and compiles it.
func CompileFile(path string, opts Options) (*Result, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return CompileSource(src, opts)
}

// Assemble turns assembly text into a program for the configured machine.
func Assemble(assembly string, cfg config.Config) (*moon.Program, error) {
	prog, err := asm.Assemble(assembly, moon.Symbols(cfg.Runtime))
	if err != nil {
		return nil, fmt.Errorf("assembly error: %w", err)
	}
	return prog, nil
}

// Run assembles and executes assembly text with the given standard input
// and output.
func Run(assembly string, in io.Reader, out io.Writer, opts Options) error {
	prog, err := Assemble(assembly, opts.Config)
	if err != nil {
		return err
	}
	vm, err := moon.New(prog, opts.Config.Runtime, opts.logger())
	if err != nil {
		return err
	}
	vm.Input = bufio.NewReader(in)
	vm.Output = out
	if err := vm.Run(); err != nil {
		return fmt.Errorf("run: %w", err)
	}
	return nil
}
