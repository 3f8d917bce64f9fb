package codegen

import (
	"moonc/pkg/ast"
	"moonc/pkg/decfloat"
	"moonc/pkg/diag"
	"moonc/pkg/symtab"
)

// place is where an evaluated expression's value lives: an immediate
// integer or a frame slot.
type place struct {
	imm   bool
	value int64
	off   int
}

// ref is a memory location off(base). base is the stack pointer for
// static frame addresses or a held scratch register otherwise.
type ref struct {
	base Register
	off  int
	held bool
}

func (g *Generator) frame(off int) ref { return ref{base: g.sp, off: off} }

func (g *Generator) release(r ref) {
	if r.held {
		g.regs.Release(r.base)
	}
}

// words returns the number of words a value of type t occupies.
func (g *Generator) words(t ast.Type) int {
	diag.Assert(t.Kind != ast.Boolean, diag.Emit, "no rule for boolean storage")
	diag.Assert(t.Kind != ast.Void, diag.Emit, "void value used")
	n := g.lay.ComputeSize(t)
	diag.Assert(n > 0 && n%g.cfg.Sizes.Word == 0, diag.Emit, "size %d of %s is not whole words", n, t)
	return n / g.cfg.Sizes.Word
}

func (g *Generator) temp(e ast.Expr) *symtab.Entry {
	return g.lay.Slot(g.fn, e, symtab.Temporary)
}

// placeOf returns where an already evaluated expression lives.
func (g *Generator) placeOf(e ast.Expr) place {
	switch n := e.(type) {
	case *ast.IntLit:
		return place{imm: true, value: n.Value}
	case *ast.VarRef:
		if v, member, ok := g.tab.LookupVar(g.fn, n.Name); ok && !member {
			return place{off: v.Offset()}
		}
	}
	return place{off: g.temp(e).Offset()}
}

// expr emits e and its operands bottom-up and returns where the result
// lives.
func (g *Generator) expr(e ast.Expr) place {
	switch n := e.(type) {
	case *ast.IntLit:
	case *ast.FloatLit:
		g.floatLit(n)
	case *ast.VarRef:
		if _, member, ok := g.tab.LookupVar(g.fn, n.Name); !ok {
			diag.Abortf(diag.Emit, "unresolved name %s", n.Name)
		} else if member {
			g.materialize(n)
		}
	case *ast.DotExpr:
		g.operands(n.Left)
		g.materialize(n)
	case *ast.IndexExpr:
		g.operands(n)
		g.materialize(n)
	case *ast.UnaryExpr:
		g.unary(n)
	case *ast.BinaryExpr:
		g.binary(n)
	case *ast.CallExpr:
		g.call(n)
	default:
		diag.Abortf(diag.Emit, "unexpected expression %T", e)
	}
	return g.placeOf(e)
}

// operands evaluates the value parts of an addressable expression: index
// operands and non-addressable roots.
func (g *Generator) operands(e ast.Expr) {
	switch n := e.(type) {
	case *ast.VarRef:
	case *ast.DotExpr:
		g.operands(n.Left)
	case *ast.IndexExpr:
		g.operands(n.Base)
		for _, idx := range n.Indices {
			g.expr(idx)
		}
	default:
		g.expr(e)
	}
}

// address computes the location of an addressable expression whose
// operands were already evaluated. Dot segments fold into the offset at
// compile time; only a receiver slot or an index needs a register.
func (g *Generator) address(e ast.Expr) ref {
	switch n := e.(type) {
	case *ast.VarRef:
		v, member, ok := g.tab.LookupVar(g.fn, n.Name)
		diag.Assert(ok, diag.Emit, "unresolved name %s", n.Name)
		if !member {
			return g.frame(v.Offset())
		}
		r := g.self()
		off, _ := g.lay.MemberOffset(g.fn.Func.Class, n.Name)
		r.off += off
		return r

	case *ast.DotExpr:
		r := g.address(n.Left)
		off, _ := g.lay.MemberOffset(n.Left.ExprType().Class, n.Member)
		r.off += off
		return r

	case *ast.IndexExpr:
		return g.index(n)
	}
	return g.frame(g.placeOf(e).off)
}

// self loads the receiver address of the current member function.
func (g *Generator) self() ref {
	f := g.fn.Func
	diag.Assert(f.IsMember(), diag.Emit, "receiver used outside a member function")
	slot := g.lay.Slot(g.fn, f, symtab.Reference)
	r := g.regs.Acquire()
	g.line("lw %s,%d(%s)", r, slot.Offset(), g.sp)
	return ref{base: r, held: true}
}

// index computes the row-major linear index at run time, scales it by
// the element size and subtracts it from the base address.
func (g *Generator) index(n *ast.IndexExpr) ref {
	bt := n.Base.ExprType()
	elem := n.ExprType()
	elemSize := g.lay.ComputeSize(elem)

	base := g.address(n.Base)
	idx := g.regs.Acquire()
	for i, e := range n.Indices {
		if i == 0 {
			g.load(idx, g.placeOf(e), 0)
			continue
		}
		g.line("muli %s,%s,%d", idx, idx, bt.Dims[i])
		g.regs.With(1, func(r []Register) {
			g.load(r[0], g.placeOf(e), 0)
			g.line("add %s,%s,%s", idx, idx, r[0])
		})
	}
	g.line("muli %s,%s,%d", idx, idx, elemSize)
	g.line("sub %s,%s,%s", idx, base.base, idx)
	g.release(base)
	return ref{base: idx, off: base.off, held: true}
}

// materialize copies the value at e's address into e's temporary.
func (g *Generator) materialize(e ast.Expr) {
	src := g.address(e)
	dst := g.frame(g.temp(e).Offset())
	g.copy(dst, src, g.words(e.ExprType()))
	g.release(src)
}

// copy moves n words from src to dst through one scratch register.
func (g *Generator) copy(dst, src ref, n int) {
	w := g.cfg.Sizes.Word
	g.regs.With(1, func(r []Register) {
		for i := 0; i < n; i++ {
			g.line("lw %s,%d(%s)", r[0], src.off-i*w, src.base)
			g.line("sw %d(%s),%s", dst.off-i*w, dst.base, r[0])
		}
	})
}

// store writes the value at p into dst.
func (g *Generator) store(dst ref, p place, n int) {
	if !p.imm {
		g.copy(dst, g.frame(p.off), n)
		return
	}
	diag.Assert(n == 1, diag.Emit, "immediate stored into %d words", n)
	g.regs.With(1, func(r []Register) {
		g.constant(r[0], p.value)
		g.line("sw %d(%s),%s", dst.off, dst.base, r[0])
	})
}

// load puts word i of the value at p into r.
func (g *Generator) load(r Register, p place, i int) {
	if p.imm {
		diag.Assert(i == 0, diag.Emit, "word %d of an immediate", i)
		g.constant(r, p.value)
		return
	}
	g.line("lw %s,%d(%s)", r, p.off-i*g.cfg.Sizes.Word, g.sp)
}

// constant loads v into r. Values outside the signed 16-bit immediate
// range are built as the high half shifted left 16 bits, or'ed with the
// low half.
func (g *Generator) constant(r Register, v int64) {
	if v >= -1<<15 && v < 1<<15 {
		g.line("addi %s,%s,%d", r, g.zero, v)
		return
	}
	diag.Assert(v >= -1<<31 && v < 1<<31, diag.Emit, "constant %d exceeds a word", v)
	g.line("addi %s,%s,%d", r, g.zero, v>>16)
	g.line("sl %s,16", r)
	g.line("ori %s,%s,%d", r, r, v&0xFFFF)
}

func (g *Generator) floatLit(n *ast.FloatLit) {
	v, err := decfloat.Parse(n.Text)
	if err != nil {
		diag.Abortf(diag.Float, "%v", err)
	}
	off := g.temp(n).Offset()
	g.regs.With(1, func(r []Register) {
		g.constant(r[0], v.Mantissa)
		g.line("sw %d(%s),%s", off, g.sp, r[0])
		g.constant(r[0], v.Exponent)
		g.line("sw %d(%s),%s", off-g.cfg.Sizes.Word, g.sp, r[0])
	})
}

func (g *Generator) unary(n *ast.UnaryExpr) {
	src := g.expr(n.Operand)
	off := g.temp(n).Offset()
	t := n.Operand.ExprType()

	switch {
	case t.Kind == ast.Float && !t.IsArray() && n.Op != ast.Not:
		g.regs.With(1, func(r []Register) {
			g.load(r[0], src, 0)
			if n.Op == ast.Minus {
				g.line("sub %s,%s,%s", r[0], g.zero, r[0])
			}
			g.line("sw %d(%s),%s", off, g.sp, r[0])
			g.load(r[0], src, 1)
			g.line("sw %d(%s),%s", off-g.cfg.Sizes.Word, g.sp, r[0])
		})
	case t.Kind == ast.Integer && !t.IsArray():
		g.regs.With(1, func(r []Register) {
			g.load(r[0], src, 0)
			switch n.Op {
			case ast.Minus:
				g.line("sub %s,%s,%s", r[0], g.zero, r[0])
			case ast.Not:
				g.line("ceq %s,%s,%s", r[0], r[0], g.zero)
			}
			g.line("sw %d(%s),%s", off, g.sp, r[0])
		})
	default:
		diag.Abortf(diag.Emit, "no rule for %s on %s", n.Op, t)
	}
}

var integerOps = map[ast.BinaryOp]string{
	ast.Add: "add", ast.Sub: "sub", ast.Mul: "mul", ast.Div: "div",
	ast.Eq: "ceq", ast.Ne: "cne", ast.Lt: "clt", ast.Le: "cle", ast.Gt: "cgt", ast.Ge: "cge",
}

func (g *Generator) binary(n *ast.BinaryExpr) {
	l := g.expr(n.Left)
	r := g.expr(n.Right)
	lt := n.Left.ExprType()

	if lt.Kind == ast.Float {
		switch n.Op {
		case ast.Add, ast.Sub:
			g.floatAddSub(n, l, r)
			return
		}
		diag.Abortf(diag.Float, "no rule for float %s", n.Op)
	}
	diag.Assert(lt.Kind == ast.Integer && !lt.IsArray(), diag.Emit, "no rule for %s on %s", n.Op, lt)

	off := g.temp(n).Offset()
	g.regs.With(2, func(rs []Register) {
		a, b := rs[0], rs[1]
		g.load(a, l, 0)
		g.load(b, r, 0)
		switch n.Op {
		case ast.And, ast.Or:
			g.line("cne %s,%s,%s", a, a, g.zero)
			g.line("cne %s,%s,%s", b, b, g.zero)
			op := "and"
			if n.Op == ast.Or {
				op = "or"
			}
			g.line("%s %s,%s,%s", op, a, a, b)
		default:
			op, ok := integerOps[n.Op]
			diag.Assert(ok, diag.Emit, "no rule for integer %s", n.Op)
			g.line("%s %s,%s,%s", op, a, a, b)
		}
		g.line("sw %d(%s),%s", off, g.sp, a)
	})
}
