package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if len(cfg.Registers.General) != 12 {
		t.Errorf("general registers = %d; want 12", len(cfg.Registers.General))
	}
	if cfg.Sizes.Float != 2*cfg.Sizes.Word {
		t.Errorf("float size %d is not two words", cfg.Sizes.Float)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "target.yaml")
	data := []byte(`
emit:
  entry_function: program
  float_separator: "E"
runtime:
  buffer_size: 32
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Emit.EntryFunction != "program" {
		t.Errorf("entry = %q; want program", cfg.Emit.EntryFunction)
	}
	if cfg.Emit.FloatSeparator != "E" {
		t.Errorf("separator = %q; want E", cfg.Emit.FloatSeparator)
	}
	if cfg.Runtime.BufferSize != 32 {
		t.Errorf("buffer size = %d; want 32", cfg.Runtime.BufferSize)
	}
	// untouched keys keep their defaults
	if cfg.Runtime.IntToString != "intstr" {
		t.Errorf("int_to_string = %q; want intstr", cfg.Runtime.IntToString)
	}
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("MOONC_ENTRY", "start")
	t.Setenv("MOONC_BUFFER_SIZE", "40")
	t.Setenv("MOONC_COMMENTS", "false")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Emit.EntryFunction != "start" {
		t.Errorf("entry = %q; want start", cfg.Emit.EntryFunction)
	}
	if cfg.Runtime.BufferSize != 40 {
		t.Errorf("buffer size = %d; want 40", cfg.Runtime.BufferSize)
	}
	if cfg.Emit.Comments {
		t.Error("comments should be disabled")
	}
}

func TestLoadSeesLaterEnvironment(t *testing.T) {
	if _, err := Load(""); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	t.Setenv("MOONC_ENTRY", "begin")
	t.Setenv("MOONC_SEPARATOR", "x")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Emit.EntryFunction != "begin" {
		t.Errorf("entry = %q; want begin", cfg.Emit.EntryFunction)
	}
	if cfg.Emit.FloatSeparator != "x" {
		t.Errorf("separator = %q; want x", cfg.Emit.FloatSeparator)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"float not two words", func(c *Config) { c.Sizes.Float = 6 }},
		{"reserved in general", func(c *Config) { c.Registers.General = append(c.Registers.General, 14) }},
		{"duplicate general", func(c *Config) { c.Registers.General = []int{1, 1} }},
		{"reserved collide", func(c *Config) { c.Registers.Link = c.Registers.StackPointer }},
		{"no buffer", func(c *Config) { c.Runtime.BufferSize = 0 }},
		{"no entry", func(c *Config) { c.Emit.EntryFunction = "" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected an error for a missing file")
	}
}
