// Package config describes the Moon target the back end emits for and the
// runtime library it links against. Defaults match the stock Moon machine;
// a YAML file and MOONC_* environment variables can override them.
package config

import (
	"fmt"
	"os"

	"github.com/xyproto/env/v2"
	"gopkg.in/yaml.v3"
)

// Sizes are the fixed primitive sizes in bytes.
type Sizes struct {
	Word    int `yaml:"word"`
	Float   int `yaml:"float"`
	Boolean int `yaml:"boolean"`
}

// Registers holds the register conventions. General registers form the
// scratch pool; the other four are reserved.
type Registers struct {
	General      []int `yaml:"general"`
	Zero         int   `yaml:"zero"`
	StackPointer int   `yaml:"stack_pointer"`
	ReturnValue  int   `yaml:"return_value"`
	Link         int   `yaml:"link"`
}

// Runtime names the external library entry tags and their calling
// convention.
type Runtime struct {
	IntToString string `yaml:"int_to_string"`
	PrintString string `yaml:"print_string"`
	ReadString  string `yaml:"read_string"`
	StringToInt string `yaml:"string_to_int"`
	ValueParam  int    `yaml:"value_param"`
	BufferParam int    `yaml:"buffer_param"`
	BufferLabel string `yaml:"buffer_label"`
	BufferSize  int    `yaml:"buffer_size"`
	TopOfMemory string `yaml:"top_of_memory"`
	MemorySize  int    `yaml:"memory_size"`
	MaxSteps    int    `yaml:"max_steps"`
}

// Emit controls the shape of the generated text.
type Emit struct {
	EntryFunction  string `yaml:"entry_function"`
	FloatSeparator string `yaml:"float_separator"`
	Comments       bool   `yaml:"comments"`
	Newline        bool   `yaml:"newline"`
}

// Config is the complete back-end configuration.
type Config struct {
	Sizes     Sizes     `yaml:"sizes"`
	Registers Registers `yaml:"registers"`
	Runtime   Runtime   `yaml:"runtime"`
	Emit      Emit      `yaml:"emit"`
}

// Default returns the stock Moon configuration.
func Default() Config {
	return Config{
		Sizes: Sizes{Word: 4, Float: 8, Boolean: 1},
		Registers: Registers{
			General:      []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12},
			Zero:         0,
			StackPointer: 14,
			ReturnValue:  13,
			Link:         15,
		},
		Runtime: Runtime{
			IntToString: "intstr",
			PrintString: "putstr",
			ReadString:  "getstr",
			StringToInt: "strint",
			ValueParam:  -8,
			BufferParam: -12,
			BufferLabel: "buf",
			BufferSize:  20,
			TopOfMemory: "topaddr",
			MemorySize:  64 * 1024,
			MaxSteps:    5_000_000,
		},
		Emit: Emit{
			EntryFunction:  "main",
			FloatSeparator: "e",
			Comments:       true,
			Newline:        true,
		},
	}
}

// Load reads a YAML file on top of the defaults. An empty path yields the
// defaults. Environment overrides are applied last.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	env.Load()
	c.Emit.EntryFunction = env.Str("MOONC_ENTRY", c.Emit.EntryFunction)
	c.Emit.FloatSeparator = env.Str("MOONC_SEPARATOR", c.Emit.FloatSeparator)
	if env.Has("MOONC_COMMENTS") {
		c.Emit.Comments = env.Bool("MOONC_COMMENTS")
	}
	c.Runtime.BufferSize = env.Int("MOONC_BUFFER_SIZE", c.Runtime.BufferSize)
	c.Runtime.MemorySize = env.Int("MOONC_MEMORY", c.Runtime.MemorySize)
}

// Validate checks the invariants the back end relies on.
func (c Config) Validate() error {
	if c.Sizes.Word <= 0 || c.Sizes.Float != 2*c.Sizes.Word {
		return fmt.Errorf("config: float size must be two words (word %d, float %d)", c.Sizes.Word, c.Sizes.Float)
	}
	if c.Sizes.Boolean <= 0 {
		return fmt.Errorf("config: boolean size must be positive")
	}
	if len(c.Registers.General) == 0 {
		return fmt.Errorf("config: no general registers")
	}
	reserved := map[int]string{
		c.Registers.Zero:         "zero",
		c.Registers.StackPointer: "stack pointer",
		c.Registers.ReturnValue:  "return value",
		c.Registers.Link:         "link",
	}
	if len(reserved) != 4 {
		return fmt.Errorf("config: reserved registers must be distinct")
	}
	seen := make(map[int]bool)
	for _, r := range c.Registers.General {
		if r < 0 || r > 15 {
			return fmt.Errorf("config: register r%d out of range", r)
		}
		if role, ok := reserved[r]; ok {
			return fmt.Errorf("config: general register r%d is reserved as %s", r, role)
		}
		if seen[r] {
			return fmt.Errorf("config: general register r%d listed twice", r)
		}
		seen[r] = true
	}
	if c.Runtime.BufferSize <= 0 {
		return fmt.Errorf("config: buffer size must be positive")
	}
	if c.Emit.EntryFunction == "" {
		return fmt.Errorf("config: entry function name is empty")
	}
	return nil
}
