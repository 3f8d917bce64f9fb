package moon

import (
	"io"
	"strconv"
	"strings"

	"moonc/pkg/config"
)

// intrinsic is a library routine implemented by the machine itself. It
// reads its parameters below the caller's stack pointer, leaves any result
// in r13 and returns through r15.
type intrinsic func(vm *VM) error

// libraryBase is the address of the first library entry: one word past
// the end of memory, so no program can place code or data there.
func libraryBase(rt config.Runtime) int32 { return int32(rt.MemorySize) + 4 }

// Symbols returns the names the assembler resolves without a definition:
// the top of memory and the entry tag of every library routine.
func Symbols(rt config.Runtime) map[string]int32 {
	base := libraryBase(rt)
	return map[string]int32{
		rt.TopOfMemory: int32(rt.MemorySize) - 4,
		rt.IntToString: base,
		rt.PrintString: base + 4,
		rt.ReadString:  base + 8,
		rt.StringToInt: base + 12,
	}
}

func (vm *VM) library() map[int32]intrinsic {
	base := libraryBase(vm.rt)
	return map[int32]intrinsic{
		base:      (*VM).intstr,
		base + 4:  (*VM).putstr,
		base + 8:  (*VM).getstr,
		base + 12: (*VM).strint,
	}
}

func (vm *VM) param(off int) (int32, error) {
	return vm.LoadWord(vm.Regs[RegSP] + int32(off))
}

// intstr formats the value parameter into the buffer parameter and leaves
// the address of the text in r13.
func (vm *VM) intstr() error {
	v, err := vm.param(vm.rt.ValueParam)
	if err != nil {
		return err
	}
	buf, err := vm.param(vm.rt.BufferParam)
	if err != nil {
		return err
	}
	text := strconv.FormatInt(int64(v), 10)
	if err := vm.storeString(buf, text); err != nil {
		return err
	}
	vm.Regs[RegResult] = buf
	return nil
}

// putstr prints the NUL-terminated string at the value parameter.
func (vm *VM) putstr() error {
	addr, err := vm.param(vm.rt.ValueParam)
	if err != nil {
		return err
	}
	s, err := vm.loadString(addr)
	if err != nil {
		return err
	}
	_, err = io.WriteString(vm.outputSink(), s)
	return err
}

// getstr reads one input line into the buffer at the value parameter.
func (vm *VM) getstr() error {
	addr, err := vm.param(vm.rt.ValueParam)
	if err != nil {
		return err
	}
	line, err := vm.Input.ReadString('\n')
	if err != nil && err != io.EOF {
		return err
	}
	line = strings.TrimRight(line, "\r\n")
	if limit := vm.rt.BufferSize - 1; len(line) > limit {
		line = line[:limit]
	}
	return vm.storeString(addr, line)
}

// strint parses the string at the value parameter into r13. Text that is
// not a number yields 0.
func (vm *VM) strint() error {
	addr, err := vm.param(vm.rt.ValueParam)
	if err != nil {
		return err
	}
	s, err := vm.loadString(addr)
	if err != nil {
		return err
	}
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 32)
	if err != nil {
		n = 0
	}
	vm.Regs[RegResult] = int32(n)
	return nil
}

func (vm *VM) storeString(addr int32, s string) error {
	for i := 0; i < len(s); i++ {
		if err := vm.StoreByte(addr+int32(i), int32(s[i])); err != nil {
			return err
		}
	}
	return vm.StoreByte(addr+int32(len(s)), 0)
}

func (vm *VM) loadString(addr int32) (string, error) {
	var sb strings.Builder
	for {
		b, err := vm.LoadByte(addr)
		if err != nil {
			return "", err
		}
		if b == 0 {
			return sb.String(), nil
		}
		sb.WriteByte(b)
		addr++
	}
}
