// Package moon implements the Moon virtual machine: sixteen 32-bit
// registers, byte-addressed memory and the small runtime library the
// generated code links against.
package moon

import "fmt"

// Opcode identifies a Moon instruction.
type Opcode uint8

const (
	OpNOP Opcode = iota
	OpHLT

	// memory
	OpLW
	OpLB
	OpSW
	OpSB

	// register arithmetic and comparison
	OpADD
	OpSUB
	OpMUL
	OpDIV
	OpMOD
	OpAND
	OpOR
	OpNOT
	OpCEQ
	OpCNE
	OpCLT
	OpCLE
	OpCGT
	OpCGE

	// immediate forms
	OpADDI
	OpSUBI
	OpMULI
	OpDIVI
	OpMODI
	OpANDI
	OpORI
	OpCEQI
	OpCNEI
	OpCLTI
	OpCLEI
	OpCGTI
	OpCGEI
	OpSL
	OpSR

	// input and output
	OpGETC
	OpPUTC

	// control
	OpBZ
	OpBNZ
	OpJ
	OpJR
	OpJL
	OpJLR
)

var opNames = map[Opcode]string{
	OpNOP: "nop", OpHLT: "hlt",
	OpLW: "lw", OpLB: "lb", OpSW: "sw", OpSB: "sb",
	OpADD: "add", OpSUB: "sub", OpMUL: "mul", OpDIV: "div", OpMOD: "mod",
	OpAND: "and", OpOR: "or", OpNOT: "not",
	OpCEQ: "ceq", OpCNE: "cne", OpCLT: "clt", OpCLE: "cle", OpCGT: "cgt", OpCGE: "cge",
	OpADDI: "addi", OpSUBI: "subi", OpMULI: "muli", OpDIVI: "divi", OpMODI: "modi",
	OpANDI: "andi", OpORI: "ori",
	OpCEQI: "ceqi", OpCNEI: "cnei", OpCLTI: "clti", OpCLEI: "clei", OpCGTI: "cgti", OpCGEI: "cgei",
	OpSL: "sl", OpSR: "sr",
	OpGETC: "getc", OpPUTC: "putc",
	OpBZ: "bz", OpBNZ: "bnz", OpJ: "j", OpJR: "jr", OpJL: "jl", OpJLR: "jlr",
}

var opByName = func() map[string]Opcode {
	m := make(map[string]Opcode, len(opNames))
	for op, name := range opNames {
		m[name] = op
	}
	return m
}()

func (op Opcode) String() string {
	if name, ok := opNames[op]; ok {
		return name
	}
	return fmt.Sprintf("Opcode(%d)", uint8(op))
}

// LookupOpcode maps a mnemonic to its opcode.
func LookupOpcode(mnemonic string) (Opcode, bool) {
	op, ok := opByName[mnemonic]
	return op, ok
}

// Form is the operand shape of an instruction.
type Form int

const (
	FormNone      Form = iota // hlt
	FormLoad                  // lw Ri,K(Rj)
	FormStore                 // sw K(Rj),Ri
	FormReg3                  // add Ri,Rj,Rk
	FormReg2                  // not Ri,Rj ; jlr Ri,Rj
	FormImm                   // addi Ri,Rj,K
	FormRegImm                // sl Ri,K ; bz Ri,K ; jl Ri,K
	FormReg1                  // putc Ri ; jr Ri
	FormImmOnly               // j K
)

// FormOf returns the operand shape of op.
func FormOf(op Opcode) Form {
	switch op {
	case OpLW, OpLB:
		return FormLoad
	case OpSW, OpSB:
		return FormStore
	case OpADD, OpSUB, OpMUL, OpDIV, OpMOD, OpAND, OpOR,
		OpCEQ, OpCNE, OpCLT, OpCLE, OpCGT, OpCGE:
		return FormReg3
	case OpNOT, OpJLR:
		return FormReg2
	case OpADDI, OpSUBI, OpMULI, OpDIVI, OpMODI, OpANDI, OpORI,
		OpCEQI, OpCNEI, OpCLTI, OpCLEI, OpCGTI, OpCGEI:
		return FormImm
	case OpSL, OpSR, OpBZ, OpBNZ, OpJL:
		return FormRegImm
	case OpGETC, OpPUTC, OpJR:
		return FormReg1
	case OpJ:
		return FormImmOnly
	}
	return FormNone
}

// Instruction is one decoded Moon instruction. Every instruction occupies
// one word of the address space.
type Instruction struct {
	Op         Opcode
	Ri, Rj, Rk uint8
	K          int32
}

func (in Instruction) String() string {
	switch FormOf(in.Op) {
	case FormLoad:
		return fmt.Sprintf("%s r%d,%d(r%d)", in.Op, in.Ri, in.K, in.Rj)
	case FormStore:
		return fmt.Sprintf("%s %d(r%d),r%d", in.Op, in.K, in.Rj, in.Ri)
	case FormReg3:
		return fmt.Sprintf("%s r%d,r%d,r%d", in.Op, in.Ri, in.Rj, in.Rk)
	case FormReg2:
		return fmt.Sprintf("%s r%d,r%d", in.Op, in.Ri, in.Rj)
	case FormImm:
		return fmt.Sprintf("%s r%d,r%d,%d", in.Op, in.Ri, in.Rj, in.K)
	case FormRegImm:
		return fmt.Sprintf("%s r%d,%d", in.Op, in.Ri, in.K)
	case FormReg1:
		return fmt.Sprintf("%s r%d", in.Op, in.Ri)
	case FormImmOnly:
		return fmt.Sprintf("%s %d", in.Op, in.K)
	}
	return in.Op.String()
}

// Program is an assembled program image: decoded instructions keyed by
// address plus the initial contents of data memory.
type Program struct {
	Code   map[int32]Instruction
	Data   []byte
	Entry  int32
	Labels map[string]int32
	// Lines maps an instruction address to its source line.
	Lines map[int32]int
}

// Size is the number of bytes the image spans.
func (p *Program) Size() int32 {
	n := int32(len(p.Data))
	for addr := range p.Code {
		if addr+4 > n {
			n = addr + 4
		}
	}
	return n
}
