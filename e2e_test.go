package main

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"moonc/pkg/compiler"
	"moonc/pkg/config"
	"moonc/pkg/moon"
	"moonc/pkg/utils"
)

// TestPrograms compiles every testdata/*.yaml program, runs it with the
// matching .in file as input and compares the output with the .out file.
func TestPrograms(t *testing.T) {
	paths, err := filepath.Glob("testdata/*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) == 0 {
		t.Fatal("no programs in testdata")
	}
	cfg := config.Default()

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			want, err := os.ReadFile(utils.ReplaceExt(path, ".out"))
			if err != nil {
				t.Fatalf("Failed to read expected output: %v", err)
			}
			input, _ := os.ReadFile(utils.ReplaceExt(path, ".in"))

			res, err := compiler.CompileFile(path, compiler.Options{Config: cfg})
			if err != nil {
				t.Fatalf("Compile failed: %v", err)
			}
			prog, err := compiler.Assemble(res.Assembly, cfg)
			if err != nil {
				t.Fatalf("Assemble failed: %v\n%s", err, res.Assembly)
			}
			vm, err := moon.New(prog, cfg.Runtime, nil)
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}
			var out bytes.Buffer
			vm.Output = &out
			vm.Input = bufio.NewReader(bytes.NewReader(input))
			if err := vm.Run(); err != nil {
				t.Fatalf("Run failed: %v\n%s", err, res.Assembly)
			}

			if out.String() != string(want) {
				t.Errorf("output = %q; want %q", out.String(), want)
			}
			// every call must give back the stack it took
			if top := moon.Symbols(cfg.Runtime)[cfg.Runtime.TopOfMemory]; vm.Regs[moon.RegSP] != top {
				t.Errorf("sp = %d after halt; want %d", vm.Regs[moon.RegSP], top)
			}
		})
	}
}

func TestAssemblyIsWritten(t *testing.T) {
	out := filepath.Join(t.TempDir(), "fib.m")
	res, err := compiler.CompileFile("testdata/fib.yaml", compiler.Options{Config: config.Default()})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if err := utils.WriteText(out, res.Assembly); err != nil {
		t.Fatalf("WriteText failed: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "entry") || !strings.Contains(string(data), "fn_fib") {
		t.Errorf("written assembly is missing entry or fn_fib:\n%s", data)
	}
}
