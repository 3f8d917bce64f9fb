package ast

import (
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// The front end hands the back end its validated tree as YAML:
//
//	classes:
//	  - name: LINEAR
//	    isa: [POLYNOMIAL]
//	    attributes:
//	      - {name: a, type: float}
//	functions:
//	  - name: evaluate
//	    class: LINEAR
//	    params: [{name: x, type: float}]
//	    returns: float
//	    body:
//	      - local: {name: r, type: float}
//	      - assign: {target: {var: r}, value: {binary: {op: "+", left: {var: a}, right: {var: x}}}}
//	      - return: {var: r}
//
// Each expression and statement is a mapping with exactly one
// discriminating key. Expressions may carry a `type` key next to it.

// LoadFile reads and decodes a YAML program.
func LoadFile(path string) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read program: %w", err)
	}
	prog, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return prog, nil
}

// Decode parses a YAML program.
func Decode(data []byte) (*Program, error) {
	var doc programYAML
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	prog := &Program{}
	for _, c := range doc.Classes {
		cd := &ClassDecl{Name: c.Name, Bases: c.Isa}
		for _, a := range c.Attributes {
			cd.Attributes = append(cd.Attributes, a.decl)
		}
		prog.Classes = append(prog.Classes, cd)
	}
	for _, f := range doc.Functions {
		fd := &FuncDef{
			Name:        f.Name,
			Class:       f.Class,
			Constructor: f.Constructor,
			Return:      VoidType,
		}
		if f.Constructor && fd.Name == "" {
			fd.Name = "constructor"
		}
		if f.Returns != "" {
			t, err := ParseType(f.Returns)
			if err != nil {
				return nil, fmt.Errorf("function %s: %w", fd.QualifiedName(), err)
			}
			fd.Return = t
		}
		for _, p := range f.Params {
			fd.Params = append(fd.Params, p.decl)
		}
		fd.Body = f.Body.orEmpty()
		prog.Funcs = append(prog.Funcs, fd)
	}
	return prog, nil
}

type programYAML struct {
	Classes   []classYAML `yaml:"classes"`
	Functions []funcYAML  `yaml:"functions"`
}

type classYAML struct {
	Name       string     `yaml:"name"`
	Isa        []string   `yaml:"isa"`
	Attributes []declYAML `yaml:"attributes"`
}

type funcYAML struct {
	Name        string     `yaml:"name"`
	Class       string     `yaml:"class"`
	Constructor bool       `yaml:"constructor"`
	Params      []declYAML `yaml:"params"`
	Returns     string     `yaml:"returns"`
	Body        blockYAML  `yaml:"body"`
}

type declYAML struct {
	decl *VarDecl
}

func (d *declYAML) UnmarshalYAML(n *yaml.Node) error {
	var raw struct {
		Name string `yaml:"name"`
		Type string `yaml:"type"`
	}
	if err := n.Decode(&raw); err != nil {
		return err
	}
	if raw.Name == "" {
		return fmt.Errorf("line %d: declaration without a name", n.Line)
	}
	t, err := ParseType(raw.Type)
	if err != nil {
		return fmt.Errorf("line %d: %w", n.Line, err)
	}
	d.decl = &VarDecl{Name: raw.Name, Type: t}
	return nil
}

type blockYAML struct {
	block *Block
}

func (b *blockYAML) UnmarshalYAML(n *yaml.Node) error {
	var stmts []stmtYAML
	if err := n.Decode(&stmts); err != nil {
		return err
	}
	b.block = &Block{}
	for _, s := range stmts {
		b.block.Stmts = append(b.block.Stmts, s.stmt)
	}
	return nil
}

// orEmpty returns an empty block for an absent body.
func (b blockYAML) orEmpty() *Block {
	if b.block == nil {
		return &Block{}
	}
	return b.block
}

type stmtYAML struct {
	stmt Stmt
}

func (s *stmtYAML) UnmarshalYAML(n *yaml.Node) error {
	var raw struct {
		Local *struct {
			Name string    `yaml:"name"`
			Type string    `yaml:"type"`
			Init *exprYAML `yaml:"init"`
		} `yaml:"local"`
		Assign *struct {
			Target exprYAML `yaml:"target"`
			Value  exprYAML `yaml:"value"`
		} `yaml:"assign"`
		If *struct {
			Cond exprYAML  `yaml:"cond"`
			Then blockYAML `yaml:"then"`
			Else blockYAML `yaml:"else"`
		} `yaml:"if"`
		While *struct {
			Cond exprYAML  `yaml:"cond"`
			Body blockYAML `yaml:"body"`
		} `yaml:"while"`
		Write  *exprYAML `yaml:"write"`
		Read   *exprYAML `yaml:"read"`
		Return *exprYAML `yaml:"return"`
		Call   *callYAML `yaml:"call"`
	}
	if err := n.Decode(&raw); err != nil {
		return err
	}
	key, err := kindKey(n, "statement")
	if err != nil {
		return err
	}

	switch key {
	case "local":
		t, err := ParseType(raw.Local.Type)
		if err != nil {
			return fmt.Errorf("line %d: %w", n.Line, err)
		}
		ls := &LocalStmt{Decl: &VarDecl{Name: raw.Local.Name, Type: t}}
		if raw.Local.Init != nil {
			ls.Init = raw.Local.Init.expr
		}
		s.stmt = ls
	case "assign":
		s.stmt = &AssignStmt{Target: raw.Assign.Target.expr, Value: raw.Assign.Value.expr}
	case "if":
		is := &IfStmt{Cond: raw.If.Cond.expr, Then: raw.If.Then.orEmpty()}
		if raw.If.Else.block != nil {
			is.Else = raw.If.Else.block
		}
		s.stmt = is
	case "while":
		s.stmt = &WhileStmt{Cond: raw.While.Cond.expr, Body: raw.While.Body.orEmpty()}
	case "write":
		s.stmt = &WriteStmt{Value: raw.Write.expr}
	case "read":
		s.stmt = &ReadStmt{Target: raw.Read.expr}
	case "return":
		rs := &ReturnStmt{}
		if raw.Return != nil {
			rs.Value = raw.Return.expr
		}
		s.stmt = rs
	case "call":
		s.stmt = &CallStmt{Call: raw.Call.call(false)}
	default:
		return fmt.Errorf("line %d: unknown statement %q", n.Line, key)
	}
	return nil
}

type callYAML struct {
	Receiver *exprYAML  `yaml:"receiver"`
	Name     string     `yaml:"name"`
	Class    string     `yaml:"class"`
	Args     []exprYAML `yaml:"args"`
}

func (c *callYAML) call(isNew bool) *CallExpr {
	ce := &CallExpr{Name: c.Name, New: isNew}
	if isNew {
		ce.Name = c.Class
		ce.Type = ClassType(c.Class)
	}
	if c.Receiver != nil {
		ce.Receiver = c.Receiver.expr
	}
	for _, a := range c.Args {
		ce.Args = append(ce.Args, a.expr)
	}
	return ce
}

type exprYAML struct {
	expr Expr
}

func (e *exprYAML) UnmarshalYAML(n *yaml.Node) error {
	var raw struct {
		Int   *int64  `yaml:"int"`
		Float *string `yaml:"float"`
		Var   *string `yaml:"var"`
		Dot   *struct {
			Left   exprYAML `yaml:"left"`
			Member string   `yaml:"member"`
		} `yaml:"dot"`
		Index *struct {
			Base exprYAML   `yaml:"base"`
			At   []exprYAML `yaml:"at"`
		} `yaml:"index"`
		Call  *callYAML `yaml:"call"`
		New   *callYAML `yaml:"new"`
		Unary *struct {
			Op      string   `yaml:"op"`
			Operand exprYAML `yaml:"operand"`
		} `yaml:"unary"`
		Binary *struct {
			Op    string   `yaml:"op"`
			Left  exprYAML `yaml:"left"`
			Right exprYAML `yaml:"right"`
		} `yaml:"binary"`
		Type string `yaml:"type"`
	}
	if err := n.Decode(&raw); err != nil {
		return err
	}
	key, err := kindKey(n, "expression", "type")
	if err != nil {
		return err
	}

	var typ Type
	if raw.Type != "" {
		t, err := ParseType(raw.Type)
		if err != nil {
			return fmt.Errorf("line %d: %w", n.Line, err)
		}
		typ = t
	}

	switch key {
	case "int":
		e.expr = &IntLit{Value: *raw.Int}
	case "float":
		e.expr = &FloatLit{Text: *raw.Float}
	case "var":
		e.expr = &VarRef{Name: *raw.Var, Type: typ}
	case "dot":
		e.expr = &DotExpr{Left: raw.Dot.Left.expr, Member: raw.Dot.Member, Type: typ}
	case "index":
		ix := &IndexExpr{Base: raw.Index.Base.expr, Type: typ}
		for _, a := range raw.Index.At {
			ix.Indices = append(ix.Indices, a.expr)
		}
		e.expr = ix
	case "call":
		c := raw.Call.call(false)
		c.Type = typ
		e.expr = c
	case "new":
		e.expr = raw.New.call(true)
	case "unary":
		op, ok := ParseUnaryOp(raw.Unary.Op)
		if !ok {
			return fmt.Errorf("line %d: unknown unary operator %q", n.Line, raw.Unary.Op)
		}
		e.expr = &UnaryExpr{Op: op, Operand: raw.Unary.Operand.expr, Type: typ}
	case "binary":
		op, ok := ParseBinaryOp(raw.Binary.Op)
		if !ok {
			return fmt.Errorf("line %d: unknown binary operator %q", n.Line, raw.Binary.Op)
		}
		e.expr = &BinaryExpr{Op: op, Left: raw.Binary.Left.expr, Right: raw.Binary.Right.expr, Type: typ}
	default:
		return fmt.Errorf("line %d: unknown expression %q", n.Line, key)
	}
	return nil
}

// kindKey returns the single discriminating key of a mapping node,
// ignoring the listed side keys.
func kindKey(n *yaml.Node, what string, side ...string) (string, error) {
	if n.Kind != yaml.MappingNode {
		return "", fmt.Errorf("line %d: %s must be a mapping", n.Line, what)
	}
	var keys []string
	var value *yaml.Node
	for i := 0; i+1 < len(n.Content); i += 2 {
		key := n.Content[i].Value
		if !slices.Contains(side, key) {
			keys = append(keys, key)
			value = n.Content[i+1]
		}
	}
	if len(keys) != 1 {
		return "", fmt.Errorf("line %d: %s must have exactly one kind key, found %v", n.Line, what, keys)
	}
	// only a void return may omit its value
	if value.ShortTag() == "!!null" && keys[0] != "return" {
		return "", fmt.Errorf("line %d: %s %q has no value", n.Line, what, keys[0])
	}
	return keys[0], nil
}
