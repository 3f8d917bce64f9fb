package moon

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"moonc/pkg/config"
)

const (
	// RegLink receives the return address of jl and jlr.
	RegLink = 15
	// RegSP is the stack pointer by convention.
	RegSP = 14
	// RegResult carries library results.
	RegResult = 13
)

var (
	ErrStepLimit = errors.New("step limit reached")
	ErrBadPC     = errors.New("no instruction at pc")
	ErrMemory    = errors.New("memory access out of range")
	ErrDivide    = errors.New("division by zero")
)

// VM executes one Program.
type VM struct {
	Regs   [16]int32
	PC     int32
	Memory []byte
	Halted bool
	Steps  int

	// Output receives putc and putstr text. If nil, os.Stdout is used.
	Output io.Writer
	// Input feeds getc and getstr.
	Input *bufio.Reader

	prog     *Program
	rt       config.Runtime
	lib      map[int32]intrinsic
	maxSteps int
	log      *slog.Logger
}

// New loads prog into a fresh machine sized by rt.
func New(prog *Program, rt config.Runtime, log *slog.Logger) (*VM, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if prog.Size() > int32(rt.MemorySize) {
		return nil, fmt.Errorf("program of %d bytes does not fit in %d bytes of memory", prog.Size(), rt.MemorySize)
	}
	vm := &VM{
		PC:       prog.Entry,
		Memory:   make([]byte, rt.MemorySize),
		Input:    bufio.NewReader(os.Stdin),
		prog:     prog,
		rt:       rt,
		maxSteps: rt.MaxSteps,
		log:      log.With("component", "moon"),
	}
	copy(vm.Memory, prog.Data)
	vm.lib = vm.library()
	return vm, nil
}

func (vm *VM) outputSink() io.Writer {
	if vm.Output != nil {
		return vm.Output
	}
	return os.Stdout
}

func (vm *VM) check(addr int32, n int32) error {
	if addr < 0 || addr+n > int32(len(vm.Memory)) {
		return fmt.Errorf("%w: %d at pc %d", ErrMemory, addr, vm.PC)
	}
	return nil
}

// LoadWord reads the big-endian word at addr.
func (vm *VM) LoadWord(addr int32) (int32, error) {
	if err := vm.check(addr, 4); err != nil {
		return 0, err
	}
	m := vm.Memory[addr:]
	return int32(uint32(m[0])<<24 | uint32(m[1])<<16 | uint32(m[2])<<8 | uint32(m[3])), nil
}

// StoreWord stores v big-endian at addr.
func (vm *VM) StoreWord(addr, v int32) error {
	if err := vm.check(addr, 4); err != nil {
		return err
	}
	m := vm.Memory[addr:]
	m[0], m[1], m[2], m[3] = byte(v>>24), byte(v>>16), byte(v>>8), byte(v)
	return nil
}

// LoadByte reads the byte at addr.
func (vm *VM) LoadByte(addr int32) (byte, error) {
	if err := vm.check(addr, 1); err != nil {
		return 0, err
	}
	return vm.Memory[addr], nil
}

// StoreByte stores the low byte of v at addr.
func (vm *VM) StoreByte(addr, v int32) error {
	if err := vm.check(addr, 1); err != nil {
		return err
	}
	vm.Memory[addr] = byte(v)
	return nil
}

func (vm *VM) set(r uint8, v int32) {
	if r != 0 {
		vm.Regs[r] = v
	}
}

func b2i(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

// Step executes one instruction, or one library routine when pc is at a
// library entry.
func (vm *VM) Step() error {
	if vm.Halted {
		return nil
	}
	vm.Steps++

	if fn, ok := vm.lib[vm.PC]; ok {
		if err := fn(vm); err != nil {
			return err
		}
		vm.PC = vm.Regs[RegLink]
		return nil
	}

	in, ok := vm.prog.Code[vm.PC]
	if !ok {
		return fmt.Errorf("%w %d", ErrBadPC, vm.PC)
	}
	next := vm.PC + 4
	ri, rj, rk := vm.Regs[in.Ri], vm.Regs[in.Rj], vm.Regs[in.Rk]

	switch in.Op {
	case OpNOP:
	case OpHLT:
		vm.Halted = true

	case OpLW:
		v, err := vm.LoadWord(rj + in.K)
		if err != nil {
			return err
		}
		vm.set(in.Ri, v)
	case OpLB:
		v, err := vm.LoadByte(rj + in.K)
		if err != nil {
			return err
		}
		vm.set(in.Ri, int32(v))
	case OpSW:
		if err := vm.StoreWord(rj+in.K, ri); err != nil {
			return err
		}
	case OpSB:
		if err := vm.StoreByte(rj+in.K, ri); err != nil {
			return err
		}

	case OpADD:
		vm.set(in.Ri, rj+rk)
	case OpSUB:
		vm.set(in.Ri, rj-rk)
	case OpMUL:
		vm.set(in.Ri, rj*rk)
	case OpDIV, OpMOD:
		if rk == 0 {
			return fmt.Errorf("%w at pc %d", ErrDivide, vm.PC)
		}
		if in.Op == OpDIV {
			vm.set(in.Ri, rj/rk)
		} else {
			vm.set(in.Ri, rj%rk)
		}
	case OpAND:
		vm.set(in.Ri, rj&rk)
	case OpOR:
		vm.set(in.Ri, rj|rk)
	case OpNOT:
		vm.set(in.Ri, ^rj)
	case OpCEQ:
		vm.set(in.Ri, b2i(rj == rk))
	case OpCNE:
		vm.set(in.Ri, b2i(rj != rk))
	case OpCLT:
		vm.set(in.Ri, b2i(rj < rk))
	case OpCLE:
		vm.set(in.Ri, b2i(rj <= rk))
	case OpCGT:
		vm.set(in.Ri, b2i(rj > rk))
	case OpCGE:
		vm.set(in.Ri, b2i(rj >= rk))

	case OpADDI:
		vm.set(in.Ri, rj+in.K)
	case OpSUBI:
		vm.set(in.Ri, rj-in.K)
	case OpMULI:
		vm.set(in.Ri, rj*in.K)
	case OpDIVI, OpMODI:
		if in.K == 0 {
			return fmt.Errorf("%w at pc %d", ErrDivide, vm.PC)
		}
		if in.Op == OpDIVI {
			vm.set(in.Ri, rj/in.K)
		} else {
			vm.set(in.Ri, rj%in.K)
		}
	case OpANDI:
		vm.set(in.Ri, rj&in.K)
	case OpORI:
		vm.set(in.Ri, rj|in.K)
	case OpCEQI:
		vm.set(in.Ri, b2i(rj == in.K))
	case OpCNEI:
		vm.set(in.Ri, b2i(rj != in.K))
	case OpCLTI:
		vm.set(in.Ri, b2i(rj < in.K))
	case OpCLEI:
		vm.set(in.Ri, b2i(rj <= in.K))
	case OpCGTI:
		vm.set(in.Ri, b2i(rj > in.K))
	case OpCGEI:
		vm.set(in.Ri, b2i(rj >= in.K))
	case OpSL:
		vm.set(in.Ri, ri<<uint(in.K))
	case OpSR:
		vm.set(in.Ri, int32(uint32(ri)>>uint(in.K)))

	case OpGETC:
		c, err := vm.Input.ReadByte()
		if err != nil {
			c = 0
		}
		vm.set(in.Ri, int32(c))
	case OpPUTC:
		fmt.Fprintf(vm.outputSink(), "%c", byte(ri))

	case OpBZ:
		if ri == 0 {
			next = in.K
		}
	case OpBNZ:
		if ri != 0 {
			next = in.K
		}
	case OpJ:
		next = in.K
	case OpJR:
		next = ri
	case OpJL:
		vm.set(in.Ri, next)
		next = in.K
	case OpJLR:
		vm.set(in.Ri, next)
		next = rj

	default:
		return fmt.Errorf("unknown opcode %s at pc %d", in.Op, vm.PC)
	}
	vm.PC = next
	return nil
}

// Run steps until hlt, an error or the configured step limit.
func (vm *VM) Run() error {
	for !vm.Halted {
		if vm.maxSteps > 0 && vm.Steps >= vm.maxSteps {
			return fmt.Errorf("%w (%d)", ErrStepLimit, vm.maxSteps)
		}
		if err := vm.Step(); err != nil {
			vm.log.Debug("fault", "pc", vm.PC, "line", vm.prog.Lines[vm.PC], "err", err)
			return err
		}
	}
	vm.log.Debug("halted", "steps", vm.Steps, "sp", vm.Regs[RegSP])
	return nil
}
