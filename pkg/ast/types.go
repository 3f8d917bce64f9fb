package ast

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind is the primitive shape of a type.
type Kind int

const (
	Void Kind = iota
	Integer
	Float
	Boolean
	Class
)

func (k Kind) String() string {
	switch k {
	case Void:
		return "void"
	case Integer:
		return "integer"
	case Float:
		return "float"
	case Boolean:
		return "boolean"
	case Class:
		return "class"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Type is an evaluated or declared type. Dims lists the declared array
// dimensions outermost first; a scalar has none.
type Type struct {
	Kind  Kind
	Class string
	Dims  []int
}

var (
	VoidType    = Type{Kind: Void}
	IntegerType = Type{Kind: Integer}
	FloatType   = Type{Kind: Float}
	BooleanType = Type{Kind: Boolean}
)

// ClassType returns the scalar type of class name.
func ClassType(name string) Type { return Type{Kind: Class, Class: name} }

// IsArray reports whether t has declared dimensions.
func (t Type) IsArray() bool { return len(t.Dims) > 0 }

// Elem strips every dimension.
func (t Type) Elem() Type { return Type{Kind: t.Kind, Class: t.Class} }

// IsZero reports whether t was never set. The zero Type is Void, which
// is only ever meaningful as a function return type.
func (t Type) IsZero() bool { return t.Kind == Void && t.Class == "" && len(t.Dims) == 0 }

// Equal compares kind, class and dimensions.
func (t Type) Equal(o Type) bool {
	if t.Kind != o.Kind || t.Class != o.Class || len(t.Dims) != len(o.Dims) {
		return false
	}
	for i := range t.Dims {
		if t.Dims[i] != o.Dims[i] {
			return false
		}
	}
	return true
}

func (t Type) String() string {
	var sb strings.Builder
	if t.Kind == Class {
		sb.WriteString(t.Class)
	} else {
		sb.WriteString(t.Kind.String())
	}
	for _, d := range t.Dims {
		fmt.Fprintf(&sb, "[%d]", d)
	}
	return sb.String()
}

// ParseType reads the textual form produced by String: a primitive name or
// class name followed by zero or more [N] suffixes.
func ParseType(s string) (Type, error) {
	s = strings.TrimSpace(s)
	name := s
	var dims []int
	if i := strings.IndexByte(s, '['); i >= 0 {
		name = s[:i]
		rest := s[i:]
		for rest != "" {
			if rest[0] != '[' {
				return Type{}, fmt.Errorf("type %q: expected '['", s)
			}
			end := strings.IndexByte(rest, ']')
			if end < 0 {
				return Type{}, fmt.Errorf("type %q: unterminated dimension", s)
			}
			n, err := strconv.Atoi(strings.TrimSpace(rest[1:end]))
			if err != nil {
				return Type{}, fmt.Errorf("type %q: dimension must be an integer literal", s)
			}
			dims = append(dims, n)
			rest = rest[end+1:]
		}
	}
	var t Type
	switch name {
	case "void":
		t = VoidType
	case "integer", "int":
		t = IntegerType
	case "float":
		t = FloatType
	case "boolean", "bool":
		t = BooleanType
	case "":
		return Type{}, fmt.Errorf("empty type name")
	default:
		t = ClassType(name)
	}
	t.Dims = dims
	return t, nil
}

// UnaryOp is a prefix operator.
type UnaryOp int

const (
	Plus UnaryOp = iota
	Minus
	Not
)

func (op UnaryOp) String() string {
	switch op {
	case Plus:
		return "+"
	case Minus:
		return "-"
	case Not:
		return "not"
	}
	return fmt.Sprintf("UnaryOp(%d)", int(op))
}

// BinaryOp is an infix operator.
type BinaryOp int

const (
	Add BinaryOp = iota
	Sub
	Mul
	Div
	And
	Or
	Eq
	Ne
	Lt
	Le
	Gt
	Ge
)

var binaryOpText = [...]string{
	Add: "+", Sub: "-", Mul: "*", Div: "/",
	And: "and", Or: "or",
	Eq: "==", Ne: "<>", Lt: "<", Le: "<=", Gt: ">", Ge: ">=",
}

func (op BinaryOp) String() string {
	if int(op) >= 0 && int(op) < len(binaryOpText) {
		return binaryOpText[op]
	}
	return fmt.Sprintf("BinaryOp(%d)", int(op))
}

// IsRelational reports whether op compares its operands.
func (op BinaryOp) IsRelational() bool { return op >= Eq && op <= Ge }

// ParseUnaryOp maps source text to an operator.
func ParseUnaryOp(s string) (UnaryOp, bool) {
	switch s {
	case "+":
		return Plus, true
	case "-":
		return Minus, true
	case "not", "!":
		return Not, true
	}
	return 0, false
}

// ParseBinaryOp maps source text to an operator.
func ParseBinaryOp(s string) (BinaryOp, bool) {
	for op, text := range binaryOpText {
		if text == s {
			return BinaryOp(op), true
		}
	}
	switch s {
	case "&&", "&":
		return And, true
	case "||", "|":
		return Or, true
	case "!=":
		return Ne, true
	}
	return 0, false
}
