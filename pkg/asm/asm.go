// Package asm is a two-pass assembler for Moon assembly text.
//
// A line is an optional label starting in column one, an optional
// instruction or directive and an optional comment introduced by '%'.
// Every instruction and every dw occupies one word; db occupies one byte
// per operand and res reserves the given number of bytes.
package asm

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"moonc/pkg/moon"
)

type Assembler struct {
	labels  map[string]int32
	symbols map[string]int32
}

type parsedLine struct {
	lineNo   int
	label    string
	mnemonic string
	operands []string
}

// NewAssembler returns an assembler that resolves the given external
// symbols when a name has no label.
func NewAssembler(symbols map[string]int32) *Assembler {
	return &Assembler{
		labels:  make(map[string]int32),
		symbols: symbols,
	}
}

// Assemble assembles code against the given external symbols.
func Assemble(code string, symbols map[string]int32) (*moon.Program, error) {
	return NewAssembler(symbols).Assemble(code)
}

func (a *Assembler) Assemble(code string) (*moon.Program, error) {
	lines, err := parseLines(code)
	if err != nil {
		return nil, err
	}
	if err := a.pass1(lines); err != nil {
		return nil, err
	}
	return a.pass2(lines)
}

func parseLines(code string) ([]parsedLine, error) {
	var out []parsedLine
	for i, raw := range strings.Split(code, "\n") {
		p, err := parseLine(raw, i+1)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// size returns how many bytes p occupies starting at address.
func (a *Assembler) size(p parsedLine, address int32) (int32, error) {
	switch p.mnemonic {
	case "", "entry":
		return 0, nil
	case "align":
		return (4 - address%4) % 4, nil
	case "dw":
		return int32(4 * len(p.operands)), nil
	case "db":
		return int32(len(p.operands)), nil
	case "res":
		if len(p.operands) != 1 {
			return 0, fmt.Errorf("res expects 1 operand on line %d", p.lineNo)
		}
		n, err := parseNumber(p.operands[0])
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid res size on line %d: %s", p.lineNo, p.operands[0])
		}
		return n, nil
	}
	if _, ok := moon.LookupOpcode(p.mnemonic); !ok {
		return 0, fmt.Errorf("unknown instruction on line %d: %s", p.lineNo, p.mnemonic)
	}
	return 4, nil
}

func (a *Assembler) pass1(lines []parsedLine) error {
	var address int32
	for _, p := range lines {
		if p.mnemonic == "org" {
			target, err := a.org(p, address)
			if err != nil {
				return err
			}
			address = target
		}
		if p.mnemonic == "align" {
			address += (4 - address%4) % 4
		}
		if p.label != "" {
			if _, exists := a.labels[p.label]; exists {
				return fmt.Errorf("duplicate label '%s' on line %d", p.label, p.lineNo)
			}
			a.labels[p.label] = address
		}
		if p.mnemonic == "org" || p.mnemonic == "align" {
			continue
		}
		n, err := a.size(p, address)
		if err != nil {
			return err
		}
		address += n
	}
	return nil
}

func (a *Assembler) org(p parsedLine, address int32) (int32, error) {
	if len(p.operands) != 1 {
		return 0, fmt.Errorf("org expects exactly one operand on line %d", p.lineNo)
	}
	target, err := parseNumber(p.operands[0])
	if err != nil {
		return 0, fmt.Errorf("invalid org value on line %d: %s", p.lineNo, p.operands[0])
	}
	if target < address {
		return 0, fmt.Errorf("cannot move origin backward on line %d", p.lineNo)
	}
	return target, nil
}

func (a *Assembler) pass2(lines []parsedLine) (*moon.Program, error) {
	prog := &moon.Program{
		Code:   make(map[int32]moon.Instruction),
		Labels: a.labels,
		Lines:  make(map[int32]int),
	}
	var address int32
	entrySeen := false
	data := func(addr int32, b byte) {
		for int32(len(prog.Data)) <= addr {
			prog.Data = append(prog.Data, 0)
		}
		prog.Data[addr] = b
	}

	for _, p := range lines {
		switch p.mnemonic {
		case "":
			continue
		case "entry":
			if entrySeen {
				return nil, fmt.Errorf("second entry on line %d", p.lineNo)
			}
			entrySeen = true
			prog.Entry = address
			continue
		case "org":
			address, _ = a.org(p, address)
			continue
		case "align":
			address += (4 - address%4) % 4
			continue
		case "res":
			n, _ := a.size(p, address)
			if n > 0 {
				data(address+n-1, 0)
			}
			address += n
			continue
		case "dw":
			for _, op := range p.operands {
				v, err := a.parseImmediate(op, p.lineNo)
				if err != nil {
					return nil, err
				}
				data(address, byte(v>>24))
				data(address+1, byte(v>>16))
				data(address+2, byte(v>>8))
				data(address+3, byte(v))
				address += 4
			}
			continue
		case "db":
			for _, op := range p.operands {
				v, err := a.parseImmediate(op, p.lineNo)
				if err != nil {
					return nil, err
				}
				if v < -128 || v > 255 {
					return nil, fmt.Errorf("byte out of range on line %d: %s", p.lineNo, op)
				}
				data(address, byte(v))
				address++
			}
			continue
		}

		in, err := a.instruction(p)
		if err != nil {
			return nil, err
		}
		if address%4 != 0 {
			return nil, fmt.Errorf("instruction on line %d is not word aligned", p.lineNo)
		}
		prog.Code[address] = in
		prog.Lines[address] = p.lineNo
		address += 4
	}
	return prog, nil
}

func (a *Assembler) instruction(p parsedLine) (moon.Instruction, error) {
	op, _ := moon.LookupOpcode(p.mnemonic)
	in := moon.Instruction{Op: op}
	ops := p.operands
	want := func(n int) error {
		if len(ops) != n {
			return fmt.Errorf("%s expects %d operands on line %d", p.mnemonic, n, p.lineNo)
		}
		return nil
	}

	var err error
	switch moon.FormOf(op) {
	case moon.FormNone:
		err = want(0)
	case moon.FormLoad:
		if err = want(2); err == nil {
			if in.Ri, err = parseRegister(ops[0], p.lineNo); err == nil {
				in.K, in.Rj, err = a.parseIndexed(ops[1], p.lineNo)
			}
		}
	case moon.FormStore:
		if err = want(2); err == nil {
			if in.K, in.Rj, err = a.parseIndexed(ops[0], p.lineNo); err == nil {
				in.Ri, err = parseRegister(ops[1], p.lineNo)
			}
		}
	case moon.FormReg3:
		if err = want(3); err == nil {
			in.Ri, in.Rj, in.Rk, err = parseRegisters3(ops, p.lineNo)
		}
	case moon.FormReg2:
		if err = want(2); err == nil {
			if in.Ri, err = parseRegister(ops[0], p.lineNo); err == nil {
				in.Rj, err = parseRegister(ops[1], p.lineNo)
			}
		}
	case moon.FormImm:
		if err = want(3); err == nil {
			if in.Ri, err = parseRegister(ops[0], p.lineNo); err == nil {
				if in.Rj, err = parseRegister(ops[1], p.lineNo); err == nil {
					in.K, err = a.parseImmediate(ops[2], p.lineNo)
				}
			}
		}
	case moon.FormRegImm:
		if err = want(2); err == nil {
			if in.Ri, err = parseRegister(ops[0], p.lineNo); err == nil {
				in.K, err = a.parseImmediate(ops[1], p.lineNo)
			}
		}
	case moon.FormReg1:
		if err = want(1); err == nil {
			in.Ri, err = parseRegister(ops[0], p.lineNo)
		}
	case moon.FormImmOnly:
		if err = want(1); err == nil {
			in.K, err = a.parseImmediate(ops[0], p.lineNo)
		}
	}
	return in, err
}

func parseLine(raw string, lineNo int) (parsedLine, error) {
	p := parsedLine{lineNo: lineNo}

	if i := strings.IndexByte(raw, '%'); i >= 0 {
		raw = raw[:i]
	}
	if strings.TrimSpace(raw) == "" {
		return p, nil
	}

	fields := strings.Fields(raw)
	if raw[0] != ' ' && raw[0] != '\t' {
		if !isIdentifier(fields[0]) {
			return p, fmt.Errorf("invalid label '%s' on line %d", fields[0], lineNo)
		}
		p.label = fields[0]
		fields = fields[1:]
	}
	if len(fields) == 0 {
		return p, nil
	}

	p.mnemonic = strings.ToLower(fields[0])
	rest := strings.Join(fields[1:], "")
	if rest != "" {
		for _, op := range strings.Split(rest, ",") {
			if op == "" {
				return p, fmt.Errorf("empty operand on line %d", lineNo)
			}
			p.operands = append(p.operands, op)
		}
	}
	return p, nil
}

func parseRegister(token string, lineNo int) (uint8, error) {
	t := strings.ToLower(token)
	if strings.HasPrefix(t, "r") {
		if n, err := strconv.Atoi(t[1:]); err == nil && n >= 0 && n < 16 {
			return uint8(n), nil
		}
	}
	return 0, fmt.Errorf("invalid register '%s' on line %d", token, lineNo)
}

func parseRegisters3(ops []string, lineNo int) (ri, rj, rk uint8, err error) {
	if ri, err = parseRegister(ops[0], lineNo); err != nil {
		return
	}
	if rj, err = parseRegister(ops[1], lineNo); err != nil {
		return
	}
	rk, err = parseRegister(ops[2], lineNo)
	return
}

// parseIndexed parses K(Rj).
func (a *Assembler) parseIndexed(token string, lineNo int) (int32, uint8, error) {
	open := strings.IndexByte(token, '(')
	if open < 0 || !strings.HasSuffix(token, ")") {
		return 0, 0, fmt.Errorf("expected K(Rj) on line %d: %s", lineNo, token)
	}
	k, err := a.parseImmediate(token[:open], lineNo)
	if err != nil {
		return 0, 0, err
	}
	r, err := parseRegister(token[open+1:len(token)-1], lineNo)
	return k, r, err
}

// parseImmediate accepts a 16-bit literal (signed or unsigned), a label
// or an external symbol.
func (a *Assembler) parseImmediate(token string, lineNo int) (int32, error) {
	if value, err := parseNumber(token); err == nil {
		if value < -1<<15 || value > 1<<16-1 {
			return 0, fmt.Errorf("immediate out of range on line %d: %s", lineNo, token)
		}
		return value, nil
	}
	if addr, ok := a.labels[token]; ok {
		return addr, nil
	}
	if addr, ok := a.symbols[token]; ok {
		return addr, nil
	}
	if isIdentifier(token) {
		return 0, fmt.Errorf("undefined label '%s' on line %d", token, lineNo)
	}
	return 0, fmt.Errorf("invalid immediate '%s' on line %d", token, lineNo)
}

func parseNumber(token string) (int32, error) {
	v, err := strconv.ParseInt(token, 0, 32)
	return int32(v), err
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if i == 0 {
			if !unicode.IsLetter(r) && r != '_' {
				return false
			}
			continue
		}
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return false
		}
	}
	return true
}
