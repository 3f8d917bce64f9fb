package layout

import (
	"moonc/pkg/ast"
	"moonc/pkg/diag"
	"moonc/pkg/symtab"
)

// synthesize appends the unnamed entries of one function scope:
// return address, return value, receiver, then the temporaries and
// receiver references of the body in bottom-up order.
func (r *Resolver) synthesize(fs *symtab.Scope) {
	f := fs.Func
	if f.IsMember() || f.Name != r.entry {
		fs.Synthesize(symtab.ReturnAddress, ast.IntegerType, f)
	}
	if f.Return.Kind != ast.Void {
		fs.Synthesize(symtab.ReturnValue, f.Return, f)
	}
	if f.IsMember() {
		fs.Synthesize(symtab.Reference, ast.ClassType(f.Class), f)
	}
	s := &synth{r: r, fs: fs}
	s.block(f.Body)
}

type synth struct {
	r  *Resolver
	fs *symtab.Scope
}

func (s *synth) temp(e ast.Expr) {
	s.fs.Synthesize(symtab.Temporary, e.ExprType(), e)
}

func (s *synth) block(b *ast.Block) {
	if b == nil {
		return
	}
	for _, st := range b.Stmts {
		s.stmt(st)
	}
}

func (s *synth) stmt(st ast.Stmt) {
	switch n := st.(type) {
	case *ast.LocalStmt:
		if n.Init != nil {
			s.value(n.Init)
		}
	case *ast.AssignStmt:
		s.address(n.Target)
		s.value(n.Value)
	case *ast.IfStmt:
		s.value(n.Cond)
		s.block(n.Then)
		s.block(n.Else)
	case *ast.WhileStmt:
		s.value(n.Cond)
		s.block(n.Body)
	case *ast.WriteStmt:
		s.value(n.Value)
	case *ast.ReadStmt:
		s.address(n.Target)
	case *ast.ReturnStmt:
		if n.Value != nil {
			s.value(n.Value)
		}
	case *ast.CallStmt:
		s.value(n.Call)
	default:
		diag.Abortf(diag.Layout, "unexpected statement %T", st)
	}
}

// value visits an expression whose result is read.
func (s *synth) value(e ast.Expr) {
	switch n := e.(type) {
	case *ast.IntLit:
		// immediate operand
	case *ast.FloatLit:
		s.temp(n)
	case *ast.VarRef:
		if _, member, ok := s.r.tab.LookupVar(s.fs, n.Name); ok && member {
			s.temp(n)
		}
	case *ast.DotExpr:
		s.address(n.Left)
		s.temp(n)
	case *ast.IndexExpr:
		s.address(n)
		s.temp(n)
	case *ast.UnaryExpr:
		s.value(n.Operand)
		s.temp(n)
	case *ast.BinaryExpr:
		s.value(n.Left)
		s.value(n.Right)
		s.temp(n)
	case *ast.CallExpr:
		if n.Receiver != nil {
			s.address(n.Receiver)
			s.fs.Synthesize(symtab.Reference, n.Receiver.ExprType(), n.Receiver)
		}
		for _, a := range n.Args {
			s.value(a)
		}
		if n.New || n.ExprType().Kind != ast.Void {
			s.temp(n)
		}
	default:
		diag.Abortf(diag.Layout, "unexpected expression %T", e)
	}
}

// address visits an expression whose location is used: assignment and
// read targets, dot-chain bases and receivers. Only index operands and
// non-addressable roots are evaluated as values.
func (s *synth) address(e ast.Expr) {
	switch n := e.(type) {
	case *ast.VarRef:
	case *ast.DotExpr:
		s.address(n.Left)
	case *ast.IndexExpr:
		s.address(n.Base)
		for _, idx := range n.Indices {
			s.value(idx)
		}
	default:
		s.value(e)
	}
}
