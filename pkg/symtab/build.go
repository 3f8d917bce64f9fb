package symtab

import (
	"fmt"

	"github.com/samber/lo"

	"moonc/pkg/ast"
)

// Build assembles the scope tree for prog and completes the front end's
// annotations: every expression gets its evaluated type and every call
// its resolved definition. Annotations already present are kept.
//
// The returned errors describe inputs a validating front end would have
// rejected; they are not back-end faults.
func Build(prog *ast.Program) (*Table, error) {
	t := &Table{
		Program:     prog,
		Global:      newScope("global", GlobalOwner, nil),
		classByName: make(map[string]*Scope),
		funcByDef:   make(map[*ast.FuncDef]*Scope),
	}

	for _, c := range prog.Classes {
		if _, dup := t.classByName[c.Name]; dup {
			return nil, fmt.Errorf("class %s declared twice", c.Name)
		}
		t.Global.Add(newEntry(Class, c.Name, ast.ClassType(c.Name), c))
		cs := newScope(c.Name, ClassOwner, t.Global)
		cs.Class = c
		for _, a := range c.Attributes {
			if _, dup := cs.Lookup(a.Name); dup {
				return nil, fmt.Errorf("class %s: member %s declared twice", c.Name, a.Name)
			}
			cs.Add(newEntry(MemberVar, a.Name, a.Type, a))
		}
		t.classByName[c.Name] = cs
		t.Classes = append(t.Classes, cs)
	}
	for _, c := range prog.Classes {
		for _, b := range c.Bases {
			if _, ok := t.classByName[b]; !ok {
				return nil, fmt.Errorf("class %s: unknown base %s", c.Name, b)
			}
		}
	}

	for _, f := range prog.Funcs {
		parent := t.Global
		owner := FunctionOwner
		if f.IsMember() {
			cs, ok := t.classByName[f.Class]
			if !ok {
				return nil, fmt.Errorf("function %s: unknown class %s", f.QualifiedName(), f.Class)
			}
			parent = cs
			if f.Constructor {
				owner = ConstructorOwner
			}
		}
		parent.Add(newEntry(Function, "", f.Return, f))

		fs := newScope(f.QualifiedName(), owner, parent)
		fs.Func = f
		for _, p := range f.Params {
			if _, dup := fs.Lookup(p.Name); dup {
				return nil, fmt.Errorf("function %s: parameter %s declared twice", f.QualifiedName(), p.Name)
			}
			fs.Add(newEntry(Parameter, p.Name, p.Type, p))
		}
		if err := declareLocals(fs, f.Body); err != nil {
			return nil, fmt.Errorf("function %s: %w", f.QualifiedName(), err)
		}
		t.funcByDef[f] = fs
		t.Funcs = append(t.Funcs, fs)
	}

	for _, fs := range t.Funcs {
		r := &resolver{t: t, scope: fs}
		if err := r.block(fs.Func.Body); err != nil {
			return nil, fmt.Errorf("function %s: %w", fs.Func.QualifiedName(), err)
		}
	}
	return t, nil
}

func declareLocals(fs *Scope, b *ast.Block) error {
	if b == nil {
		return nil
	}
	for _, s := range b.Stmts {
		switch n := s.(type) {
		case *ast.LocalStmt:
			if _, dup := fs.Lookup(n.Decl.Name); dup {
				return fmt.Errorf("%s declared twice", n.Decl.Name)
			}
			fs.Add(newEntry(Local, n.Decl.Name, n.Decl.Type, n.Decl))
		case *ast.IfStmt:
			if err := declareLocals(fs, n.Then); err != nil {
				return err
			}
			if err := declareLocals(fs, n.Else); err != nil {
				return err
			}
		case *ast.WhileStmt:
			if err := declareLocals(fs, n.Body); err != nil {
				return err
			}
		}
	}
	return nil
}

// resolver fills evaluated types and call targets inside one function.
type resolver struct {
	t     *Table
	scope *Scope
}

func (r *resolver) block(b *ast.Block) error {
	if b == nil {
		return nil
	}
	for _, s := range b.Stmts {
		if err := r.stmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (r *resolver) stmt(s ast.Stmt) error {
	switch n := s.(type) {
	case *ast.LocalStmt:
		if n.Init == nil {
			return nil
		}
		return r.expr(n.Init)
	case *ast.AssignStmt:
		if err := r.expr(n.Target); err != nil {
			return err
		}
		return r.expr(n.Value)
	case *ast.IfStmt:
		if err := r.expr(n.Cond); err != nil {
			return err
		}
		if err := r.block(n.Then); err != nil {
			return err
		}
		return r.block(n.Else)
	case *ast.WhileStmt:
		if err := r.expr(n.Cond); err != nil {
			return err
		}
		return r.block(n.Body)
	case *ast.WriteStmt:
		return r.expr(n.Value)
	case *ast.ReadStmt:
		return r.expr(n.Target)
	case *ast.ReturnStmt:
		if n.Value == nil {
			return nil
		}
		return r.expr(n.Value)
	case *ast.CallStmt:
		return r.expr(n.Call)
	}
	return fmt.Errorf("unexpected statement %T", s)
}

func (r *resolver) expr(e ast.Expr) error {
	switch n := e.(type) {
	case *ast.IntLit, *ast.FloatLit:
		return nil

	case *ast.VarRef:
		v, _, ok := r.t.LookupVar(r.scope, n.Name)
		if !ok {
			return fmt.Errorf("undeclared name %s", n.Name)
		}
		fill(&n.Type, v.Type)
		return nil

	case *ast.DotExpr:
		if err := r.expr(n.Left); err != nil {
			return err
		}
		lt := n.Left.ExprType()
		if lt.Kind != ast.Class || lt.IsArray() {
			return fmt.Errorf("%s: member access on %s", n, lt)
		}
		m, ok := r.t.LookupMember(lt.Class, n.Member)
		if !ok {
			return fmt.Errorf("%s: class %s has no member %s", n, lt.Class, n.Member)
		}
		fill(&n.Type, m.Type)
		return nil

	case *ast.IndexExpr:
		if err := r.expr(n.Base); err != nil {
			return err
		}
		for _, idx := range n.Indices {
			if err := r.expr(idx); err != nil {
				return err
			}
		}
		bt := n.Base.ExprType()
		if len(n.Indices) == 0 || len(n.Indices) > len(bt.Dims) {
			return fmt.Errorf("%s: %d indices for %s", n, len(n.Indices), bt)
		}
		et := bt.Elem()
		et.Dims = bt.Dims[len(n.Indices):]
		if len(et.Dims) == 0 {
			et.Dims = nil
		}
		fill(&n.Type, et)
		return nil

	case *ast.CallExpr:
		return r.call(n)

	case *ast.UnaryExpr:
		if err := r.expr(n.Operand); err != nil {
			return err
		}
		if n.Op == ast.Not {
			fill(&n.Type, ast.IntegerType)
		} else {
			fill(&n.Type, n.Operand.ExprType())
		}
		return nil

	case *ast.BinaryExpr:
		if err := r.expr(n.Left); err != nil {
			return err
		}
		if err := r.expr(n.Right); err != nil {
			return err
		}
		// comparisons and logical operators evaluate to 0 or 1
		if n.Op.IsRelational() || n.Op == ast.And || n.Op == ast.Or {
			fill(&n.Type, ast.IntegerType)
		} else {
			fill(&n.Type, n.Left.ExprType())
		}
		return nil
	}
	return fmt.Errorf("unexpected expression %T", e)
}

func (r *resolver) call(c *ast.CallExpr) error {
	if c.Receiver != nil {
		if err := r.expr(c.Receiver); err != nil {
			return err
		}
	}
	for _, a := range c.Args {
		if err := r.expr(a); err != nil {
			return err
		}
	}

	if c.Func == nil {
		var candidates []*ast.FuncDef
		switch {
		case c.New:
			candidates = lo.Filter(r.t.Program.Funcs, func(f *ast.FuncDef, _ int) bool {
				return f.Constructor && f.Class == c.Name
			})
			if len(candidates) == 0 {
				return fmt.Errorf("%s: class %s has no constructor", c, c.Name)
			}
		case c.Receiver != nil:
			rt := c.Receiver.ExprType()
			if rt.Kind != ast.Class || rt.IsArray() {
				return fmt.Errorf("%s: method call on %s", c, rt)
			}
			candidates = r.t.Methods(rt.Class, c.Name)
		default:
			candidates = lo.Filter(r.t.Program.Funcs, func(f *ast.FuncDef, _ int) bool {
				return !f.IsMember() && f.Name == c.Name
			})
			if len(candidates) == 0 && r.scope.Func.IsMember() {
				candidates = r.t.Methods(r.scope.Func.Class, c.Name)
			}
		}
		f, err := pickOverload(c, candidates)
		if err != nil {
			return err
		}
		c.Func = f
	}

	if c.New {
		fill(&c.Type, ast.ClassType(c.Name))
	} else {
		fill(&c.Type, c.Func.Return)
	}
	return nil
}

// pickOverload chooses among same-named definitions by exact argument
// types, falling back to arity when only one definition fits it.
func pickOverload(c *ast.CallExpr, candidates []*ast.FuncDef) (*ast.FuncDef, error) {
	byArity := lo.Filter(candidates, func(f *ast.FuncDef, _ int) bool {
		return len(f.Params) == len(c.Args)
	})
	exact := lo.Filter(byArity, func(f *ast.FuncDef, _ int) bool {
		for i, p := range f.Params {
			if !p.Type.Equal(c.Args[i].ExprType()) {
				return false
			}
		}
		return true
	})
	switch {
	case len(exact) == 1:
		return exact[0], nil
	case len(exact) == 0 && len(byArity) == 1:
		return byArity[0], nil
	case len(candidates) == 0:
		return nil, fmt.Errorf("%s: no function named %s", c, c.Name)
	}
	return nil, fmt.Errorf("%s: cannot resolve among %d definitions", c, len(candidates))
}

func fill(dst *ast.Type, t ast.Type) {
	if dst.IsZero() {
		*dst = t
	}
}
