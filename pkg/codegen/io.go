package codegen

import (
	"moonc/pkg/ast"
	"moonc/pkg/diag"
)

// write prints an integer, or a float as mantissa, separator, exponent.
func (g *Generator) write(e ast.Expr) {
	t := e.ExprType()
	p := g.expr(e)
	switch {
	case t.Kind == ast.Integer && !t.IsArray():
		g.putInt(p, 0)
	case t.Kind == ast.Float && !t.IsArray():
		g.putInt(p, 0)
		g.regs.With(1, func(r []Register) {
			for _, c := range []byte(g.cfg.Emit.FloatSeparator) {
				g.line("addi %s,%s,%d", r[0], g.zero, c)
				g.line("putc %s", r[0])
			}
		})
		g.putInt(p, 1)
	default:
		diag.Abortf(diag.Emit, "no rule for writing %s", t)
	}
	if g.cfg.Emit.Newline {
		g.regs.With(1, func(r []Register) {
			g.line("addi %s,%s,10", r[0], g.zero)
			g.line("putc %s", r[0])
		})
	}
}

// putInt prints word i of p through intstr and putstr. Both library
// routines take their parameters below the caller's frame.
func (g *Generator) putInt(p place, i int) {
	rt := g.cfg.Runtime
	frame := g.lay.FrameSize(g.fn)
	g.regs.With(1, func(r []Register) {
		g.load(r[0], p, i)
		g.line("addi %s,%s,%d", g.sp, g.sp, -frame)
		g.line("sw %d(%s),%s", rt.ValueParam, g.sp, r[0])
		g.line("addi %s,%s,%s", r[0], g.zero, rt.BufferLabel)
		g.line("sw %d(%s),%s", rt.BufferParam, g.sp, r[0])
		g.line("jl %s,%s", g.link, rt.IntToString)
		g.line("sw %d(%s),%s", rt.ValueParam, g.sp, g.rv)
		g.line("jl %s,%s", g.link, rt.PrintString)
		g.line("addi %s,%s,%d", g.sp, g.sp, frame)
	})
}

// read parses a line of input into an integer target through getstr and
// strint.
func (g *Generator) read(target ast.Expr) {
	t := target.ExprType()
	diag.Assert(t.Kind == ast.Integer && !t.IsArray(), diag.Emit, "no rule for reading %s", t)

	g.operands(target)
	rt := g.cfg.Runtime
	frame := g.lay.FrameSize(g.fn)
	g.regs.With(1, func(r []Register) {
		g.line("addi %s,%s,%d", g.sp, g.sp, -frame)
		g.line("addi %s,%s,%s", r[0], g.zero, rt.BufferLabel)
		g.line("sw %d(%s),%s", rt.ValueParam, g.sp, r[0])
		g.line("jl %s,%s", g.link, rt.ReadString)
		g.line("addi %s,%s,%s", r[0], g.zero, rt.BufferLabel)
		g.line("sw %d(%s),%s", rt.ValueParam, g.sp, r[0])
		g.line("jl %s,%s", g.link, rt.StringToInt)
		g.line("addi %s,%s,%d", g.sp, g.sp, frame)
	})

	dst := g.address(target)
	g.line("sw %d(%s),%s", dst.off, dst.base, g.rv)
	g.release(dst)
}
