// Package ast is the typed syntax tree the back end consumes.
//
// The tree is produced by the front end after semantic validation, so every
// expression already carries its evaluated type and every call names the
// definition it resolved to. Node kinds form a closed set: Expr and Stmt
// are sealed by unexported marker methods and consumers dispatch with
// exhaustive type switches.
package ast

import (
	"fmt"
	"strings"
)

// Node is implemented by every tree node.
type Node interface {
	node()
	String() string
}

//  Expression nodes

// Expr is implemented by every node that produces a value.
type Expr interface {
	Node
	exprNode()
	ExprType() Type
}

// IntLit is an integer constant.
type IntLit struct {
	Value int64
}

// FloatLit is a decimal float constant kept as source text, e.g. "12.345".
type FloatLit struct {
	Text string
}

// VarRef reads a parameter, local variable or (inside a member function)
// a member of the receiver.
//
//	x + 1
//	^  VarRef{Name: "x"}
type VarRef struct {
	Name string
	Type Type
}

// DotExpr selects a member: Left.Member. Chains nest to the left:
//
//	a.b.c  =>  DotExpr{Left: DotExpr{Left: VarRef{a}, Member: b}, Member: c}
type DotExpr struct {
	Left   Expr
	Member string
	Type   Type
}

// IndexExpr is Base[i][j]...
type IndexExpr struct {
	Base    Expr
	Indices []Expr
	Type    Type
}

// CallExpr is a free function call, a method call on Receiver, or (with
// New set) a constructor invocation producing a fresh object of class Name.
type CallExpr struct {
	Receiver Expr // nil for free functions and implicit-receiver calls
	Name     string
	Args     []Expr
	New      bool
	Type     Type

	// Func is the definition the front end resolved this call to.
	Func *FuncDef
}

// UnaryExpr is Op Operand.
type UnaryExpr struct {
	Op      UnaryOp
	Operand Expr
	Type    Type
}

// BinaryExpr is Left Op Right.
type BinaryExpr struct {
	Op    BinaryOp
	Left  Expr
	Right Expr
	Type  Type
}

func (*IntLit) node()     {}
func (*FloatLit) node()   {}
func (*VarRef) node()     {}
func (*DotExpr) node()    {}
func (*IndexExpr) node()  {}
func (*CallExpr) node()   {}
func (*UnaryExpr) node()  {}
func (*BinaryExpr) node() {}

func (*IntLit) exprNode()     {}
func (*FloatLit) exprNode()   {}
func (*VarRef) exprNode()     {}
func (*DotExpr) exprNode()    {}
func (*IndexExpr) exprNode()  {}
func (*CallExpr) exprNode()   {}
func (*UnaryExpr) exprNode()  {}
func (*BinaryExpr) exprNode() {}

func (*IntLit) ExprType() Type       { return IntegerType }
func (*FloatLit) ExprType() Type     { return FloatType }
func (v *VarRef) ExprType() Type     { return v.Type }
func (d *DotExpr) ExprType() Type    { return d.Type }
func (i *IndexExpr) ExprType() Type  { return i.Type }
func (c *CallExpr) ExprType() Type   { return c.Type }
func (u *UnaryExpr) ExprType() Type  { return u.Type }
func (b *BinaryExpr) ExprType() Type { return b.Type }

func (l *IntLit) String() string   { return fmt.Sprintf("%d", l.Value) }
func (l *FloatLit) String() string { return l.Text }
func (v *VarRef) String() string   { return v.Name }
func (d *DotExpr) String() string  { return fmt.Sprintf("%s.%s", d.Left, d.Member) }

func (i *IndexExpr) String() string {
	var sb strings.Builder
	sb.WriteString(i.Base.String())
	for _, idx := range i.Indices {
		fmt.Fprintf(&sb, "[%s]", idx)
	}
	return sb.String()
}

func (c *CallExpr) String() string {
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = a.String()
	}
	name := c.Name
	if c.Receiver != nil {
		name = c.Receiver.String() + "." + name
	}
	return fmt.Sprintf("%s(%s)", name, strings.Join(args, ", "))
}

func (u *UnaryExpr) String() string {
	if u.Op == Not {
		return fmt.Sprintf("(not %s)", u.Operand)
	}
	return fmt.Sprintf("(%s%s)", u.Op, u.Operand)
}

func (b *BinaryExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", b.Left, b.Op, b.Right)
}

//  Statement nodes

// Stmt is implemented by every node that does not produce a value.
type Stmt interface {
	Node
	stmtNode()
}

// VarDecl declares a parameter, attribute or local variable.
type VarDecl struct {
	Name string
	Type Type
}

// LocalStmt is  localvar name: type;  with an optional initializer.
type LocalStmt struct {
	Decl *VarDecl
	Init Expr // may be nil
}

// AssignStmt is  Target := Value;
type AssignStmt struct {
	Target Expr
	Value  Expr
}

// IfStmt is  if (Cond) then Then else Else;
type IfStmt struct {
	Cond Expr
	Then *Block
	Else *Block // may be nil
}

// WhileStmt is  while (Cond) Body;
type WhileStmt struct {
	Cond Expr
	Body *Block
}

// WriteStmt is  write(Value);
type WriteStmt struct {
	Value Expr
}

// ReadStmt is  read(Target);
type ReadStmt struct {
	Target Expr
}

// ReturnStmt is  return(Value);  Value is nil in void functions.
type ReturnStmt struct {
	Value Expr
}

// CallStmt is a call evaluated for its side effects.
type CallStmt struct {
	Call *CallExpr
}

func (*VarDecl) node()    {}
func (*LocalStmt) node()  {}
func (*AssignStmt) node() {}
func (*IfStmt) node()     {}
func (*WhileStmt) node()  {}
func (*WriteStmt) node()  {}
func (*ReadStmt) node()   {}
func (*ReturnStmt) node() {}
func (*CallStmt) node()   {}

func (*LocalStmt) stmtNode()  {}
func (*AssignStmt) stmtNode() {}
func (*IfStmt) stmtNode()     {}
func (*WhileStmt) stmtNode()  {}
func (*WriteStmt) stmtNode()  {}
func (*ReadStmt) stmtNode()   {}
func (*ReturnStmt) stmtNode() {}
func (*CallStmt) stmtNode()   {}

func (d *VarDecl) String() string { return fmt.Sprintf("%s: %s", d.Name, d.Type) }

func (s *LocalStmt) String() string {
	if s.Init != nil {
		return fmt.Sprintf("localvar %s := %s", s.Decl, s.Init)
	}
	return fmt.Sprintf("localvar %s", s.Decl)
}

func (s *AssignStmt) String() string { return fmt.Sprintf("%s := %s", s.Target, s.Value) }

func (s *IfStmt) String() string {
	if s.Else != nil {
		return fmt.Sprintf("if %s then %s else %s", s.Cond, s.Then, s.Else)
	}
	return fmt.Sprintf("if %s then %s", s.Cond, s.Then)
}

func (s *WhileStmt) String() string { return fmt.Sprintf("while %s do %s", s.Cond, s.Body) }
func (s *WriteStmt) String() string { return fmt.Sprintf("write(%s)", s.Value) }
func (s *ReadStmt) String() string  { return fmt.Sprintf("read(%s)", s.Target) }

func (s *ReturnStmt) String() string {
	if s.Value == nil {
		return "return()"
	}
	return fmt.Sprintf("return(%s)", s.Value)
}

func (s *CallStmt) String() string { return s.Call.String() }

// Block is a brace-delimited statement list. Emission keys its instruction
// buffer by the *Block pointer, so two blocks never share a buffer.
type Block struct {
	Stmts []Stmt
}

func (*Block) node() {}
func (b *Block) String() string {
	return fmt.Sprintf("{%d stmts}", len(b.Stmts))
}

//  Declarations

// ClassDecl declares a class, its ordered base classes and its attributes.
type ClassDecl struct {
	Name       string
	Bases      []string
	Attributes []*VarDecl
}

func (*ClassDecl) node() {}
func (c *ClassDecl) String() string {
	if len(c.Bases) == 0 {
		return fmt.Sprintf("class %s", c.Name)
	}
	return fmt.Sprintf("class %s isa %s", c.Name, strings.Join(c.Bases, ", "))
}

// FuncDef is a function, member function (Class set) or constructor.
type FuncDef struct {
	Name        string
	Class       string
	Constructor bool
	Params      []*VarDecl
	Return      Type
	Body        *Block
}

func (*FuncDef) node() {}

// QualifiedName is Class::Name for members and Name otherwise.
func (f *FuncDef) QualifiedName() string {
	if f.Class == "" {
		return f.Name
	}
	return f.Class + "::" + f.Name
}

// IsMember reports whether the function runs with a receiver.
func (f *FuncDef) IsMember() bool { return f.Class != "" }

func (f *FuncDef) String() string {
	params := make([]string, len(f.Params))
	for i, p := range f.Params {
		params[i] = p.String()
	}
	return fmt.Sprintf("function %s(%s) => %s", f.QualifiedName(), strings.Join(params, ", "), f.Return)
}

// Program is the whole compilation unit.
type Program struct {
	Classes []*ClassDecl
	Funcs   []*FuncDef
}

func (*Program) node() {}
func (p *Program) String() string {
	return fmt.Sprintf("Program(classes=%d, functions=%d)", len(p.Classes), len(p.Funcs))
}

// Class returns the class declaration with the given name.
func (p *Program) Class(name string) (*ClassDecl, bool) {
	for _, c := range p.Classes {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// Func returns the first free function with the given name.
func (p *Program) Func(name string) (*FuncDef, bool) {
	for _, f := range p.Funcs {
		if f.Class == "" && f.Name == name {
			return f, true
		}
	}
	return nil, false
}
