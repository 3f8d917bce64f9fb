package codegen

import (
	"moonc/pkg/ast"
	"moonc/pkg/diag"
	"moonc/pkg/symtab"
)

func (g *Generator) stmt(s ast.Stmt) {
	switch n := s.(type) {
	case *ast.LocalStmt:
		if n.Init == nil {
			return
		}
		g.comment("%s := %s", n.Decl.Name, n.Init)
		v := g.expr(n.Init)
		local, ok := g.fn.Lookup(n.Decl.Name)
		diag.Assert(ok, diag.Emit, "local %s was never declared", n.Decl.Name)
		g.store(g.frame(local.Offset()), v, g.words(local.Type))

	case *ast.AssignStmt:
		g.comment("%s = %s", n.Target, n.Value)
		g.operands(n.Target)
		v := g.expr(n.Value)
		dst := g.address(n.Target)
		g.store(dst, v, g.words(n.Target.ExprType()))
		g.release(dst)

	case *ast.IfStmt:
		g.ifStmt(n)

	case *ast.WhileStmt:
		g.whileStmt(n)

	case *ast.WriteStmt:
		g.comment("write(%s)", n.Value)
		g.write(n.Value)

	case *ast.ReadStmt:
		g.comment("read(%s)", n.Target)
		g.read(n.Target)

	case *ast.ReturnStmt:
		g.returnStmt(n)

	case *ast.CallStmt:
		g.call(n.Call)

	default:
		diag.Abortf(diag.Emit, "unexpected statement %T", s)
	}
}

// cond evaluates e and branches to label when it is zero.
func (g *Generator) cond(e ast.Expr, label string) {
	p := g.expr(e)
	g.regs.With(1, func(r []Register) {
		g.load(r[0], p, 0)
		g.line("bz %s,%s", r[0], label)
	})
}

func (g *Generator) ifStmt(n *ast.IfStmt) {
	elseLabel := g.newLabel("else")
	endLabel := g.newLabel("endif")

	g.comment("if %s", n.Cond)
	g.cond(n.Cond, elseLabel)
	then := g.block(n.Then)
	els := g.block(n.Else)

	g.out.WriteString(then)
	g.line("j %s", endLabel)
	g.labeled(elseLabel, "nop")
	g.out.WriteString(els)
	g.labeled(endLabel, "nop")
}

func (g *Generator) whileStmt(n *ast.WhileStmt) {
	top := g.newLabel("top")
	end := g.newLabel("endwhile")

	g.comment("while %s", n.Cond)
	g.labeled(top, "nop")
	g.cond(n.Cond, end)
	g.out.WriteString(g.block(n.Body))
	g.line("j %s", top)
	g.labeled(end, "nop")
}

func (g *Generator) returnStmt(n *ast.ReturnStmt) {
	f := g.fn.Func
	if n.Value != nil {
		g.comment("return %s", n.Value)
		diag.Assert(f.Return.Kind != ast.Void, diag.Emit, "%s returns a value from a void function", f.QualifiedName())
		v := g.expr(n.Value)
		rv := g.lay.Slot(g.fn, f, symtab.ReturnValue)
		g.store(g.frame(rv.Offset()), v, g.words(f.Return))
	}
	g.line("j %s", g.exit)
}
