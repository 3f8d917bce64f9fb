package codegen

import (
	"moonc/pkg/ast"
	"moonc/pkg/decfloat"
)

// floatAddSub emits decimal float addition or subtraction of l and r into
// the temporary of n. The operand with the larger exponent is "big" (the
// right one on ties); the narrower mantissa is widened until both have
// the same digit width, both are scaled by decfloat.Headroom and summed,
// and the sum is normalized by trimming trailing zeros. The result always
// matches decfloat.Add and decfloat.Sub.
func (g *Generator) floatAddSub(n *ast.BinaryExpr, l, r place) {
	dst := g.temp(n).Offset()
	w := g.cfg.Sizes.Word
	align := g.newLabel("falign")
	nonZero := g.newLabel("fnz")
	done := g.newLabel("fdone")

	g.comment("float %s", n)
	g.regs.With(8, func(rs []Register) {
		bm, be, sm, se := rs[0], rs[1], rs[2], rs[3]
		bw, sw, a, t := rs[4], rs[5], rs[6], rs[7]

		g.load(sm, l, 0)
		g.load(se, l, 1)
		g.load(bm, r, 0)
		g.load(be, r, 1)
		if n.Op == ast.Sub {
			g.line("sub %s,%s,%s", bm, g.zero, bm)
		}

		g.line("cgt %s,%s,%s", t, se, be)
		g.line("bz %s,%s", t, align)
		g.swap(bm, sm, t)
		g.swap(be, se, t)
		g.labeled(align, "nop")

		g.digits(bw, bm, a, t)
		g.digits(sw, sm, a, t)
		g.line("sub %s,%s,%s", t, be, se)
		g.line("add %s,%s,%s", sw, sw, t)
		g.widen(bm, bw, sw, t)
		g.widen(sm, sw, bw, t)

		g.line("muli %s,%s,%d", bm, bm, decfloat.Headroom)
		g.line("muli %s,%s,%d", sm, sm, decfloat.Headroom)
		g.line("add %s,%s,%s", bm, bm, sm)

		// A zero sum keeps the negated exponent already in the destination.
		g.line("bnz %s,%s", bm, nonZero)
		g.line("lw %s,%d(%s)", t, dst-w, g.sp)
		g.line("sub %s,%s,%s", t, g.zero, t)
		g.line("sw %d(%s),%s", dst, g.sp, g.zero)
		g.line("sw %d(%s),%s", dst-w, g.sp, t)
		g.line("j %s", done)

		g.labeled(nonZero, "addi %s,%s,2", sw, g.zero)
		trim := g.newLabel("ftrim")
		trimmed := g.newLabel("ftrimmed")
		g.labeled(trim, "modi %s,%s,10", t, bm)
		g.line("bnz %s,%s", t, trimmed)
		g.line("divi %s,%s,10", bm, bm)
		g.line("subi %s,%s,1", sw, sw)
		g.line("j %s", trim)
		g.labeled(trimmed, "nop")

		g.digits(sm, bm, a, t)
		g.line("add %s,%s,%s", t, be, sm)
		g.line("sub %s,%s,%s", t, t, bw)
		g.line("sub %s,%s,%s", t, t, sw)
		g.line("sw %d(%s),%s", dst, g.sp, bm)
		g.line("sw %d(%s),%s", dst-w, g.sp, t)
		g.labeled(done, "nop")
	})
}

func (g *Generator) swap(x, y, t Register) {
	g.line("add %s,%s,%s", t, x, g.zero)
	g.line("add %s,%s,%s", x, y, g.zero)
	g.line("add %s,%s,%s", y, t, g.zero)
}

// digits counts the decimal digits of |src| into dst using a and t as
// scratch. Zero has one digit.
func (g *Generator) digits(dst, src, a, t Register) {
	abs := g.newLabel("fabs")
	loop := g.newLabel("fdig")
	end := g.newLabel("fdigend")

	g.line("add %s,%s,%s", a, src, g.zero)
	g.line("cge %s,%s,%s", t, a, g.zero)
	g.line("bnz %s,%s", t, abs)
	g.line("sub %s,%s,%s", a, g.zero, a)
	g.labeled(abs, "addi %s,%s,1", dst, g.zero)
	g.labeled(loop, "clti %s,%s,10", t, a)
	g.line("bnz %s,%s", t, end)
	g.line("divi %s,%s,10", a, a)
	g.line("addi %s,%s,1", dst, dst)
	g.line("j %s", loop)
	g.labeled(end, "nop")
}

// widen multiplies m by 10 until its width w reaches other.
func (g *Generator) widen(m, w, other, t Register) {
	loop := g.newLabel("fwiden")
	end := g.newLabel("fwidened")

	g.labeled(loop, "cge %s,%s,%s", t, w, other)
	g.line("bnz %s,%s", t, end)
	g.line("muli %s,%s,10", m, m)
	g.line("addi %s,%s,1", w, w)
	g.line("j %s", loop)
	g.labeled(end, "nop")
}
