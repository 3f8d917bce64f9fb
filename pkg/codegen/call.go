package codegen

import (
	"moonc/pkg/ast"
	"moonc/pkg/diag"
	"moonc/pkg/symtab"
)

// call emits the calling sequence for c:
//
//	evaluate the receiver operands and the arguments into their slots
//	copy each argument to the callee's parameter slot at -S+p(r14)
//	store the receiver address into the callee's receiver slot
//	addi r14,r14,-S ; jl r15,tag ; addi r14,r14,S
//	copy the result from 0(r13) into the call's temporary
//
// where S is the caller's frame size, so the callee frame lies entirely
// below the caller's.
func (g *Generator) call(c *ast.CallExpr) {
	f := c.Func
	diag.Assert(f != nil, diag.Emit, "call %s was never resolved", c)
	cs, ok := g.tab.Func(f)
	diag.Assert(ok, diag.Emit, "no scope for %s", f.QualifiedName())

	if c.Receiver != nil {
		g.operands(c.Receiver)
	}
	args := make([]place, len(c.Args))
	for i, a := range c.Args {
		args[i] = g.expr(a)
	}

	g.comment("call %s", c)
	if c.Receiver != nil {
		ref := g.lay.Slot(g.fn, c.Receiver, symtab.Reference)
		r := g.addressInto(g.address(c.Receiver))
		g.line("sw %d(%s),%s", ref.Offset(), g.sp, r)
		g.regs.Release(r)
	}

	frame := g.lay.FrameSize(g.fn)
	params := cs.Params()
	diag.Assert(len(params) == len(args), diag.Emit, "%s: %d arguments for %d parameters", c, len(args), len(params))
	for i, p := range params {
		g.store(g.frame(p.Offset()-frame), args[i], g.words(p.Type))
	}

	if f.IsMember() {
		self := g.lay.Slot(cs, f, symtab.Reference)
		g.regs.With(1, func(r []Register) {
			g.receiver(r[0], c)
			g.line("sw %d(%s),%s", self.Offset()-frame, g.sp, r[0])
		})
	}

	g.line("addi %s,%s,%d", g.sp, g.sp, -frame)
	g.line("jl %s,%s", g.link, g.Tag(f))
	g.line("addi %s,%s,%d", g.sp, g.sp, frame)

	if !c.New && f.Return.Kind != ast.Void {
		dst := g.frame(g.temp(c).Offset())
		g.copy(dst, ref{base: g.rv}, g.words(f.Return))
	}
}

// addressInto turns a ref into an absolute address held in a register the
// caller must release.
func (g *Generator) addressInto(a ref) Register {
	if a.held {
		if a.off != 0 {
			g.line("addi %s,%s,%d", a.base, a.base, a.off)
		}
		return a.base
	}
	r := g.regs.Acquire()
	g.line("addi %s,%s,%d", r, a.base, a.off)
	return r
}

// receiver loads into r the address the callee sees as its receiver,
// adjusted to the position of the callee's class inside the object.
func (g *Generator) receiver(r Register, c *ast.CallExpr) {
	f := c.Func
	switch {
	case c.New:
		g.line("addi %s,%s,%d", r, g.sp, g.temp(c).Offset())
	case c.Receiver != nil:
		ref := g.lay.Slot(g.fn, c.Receiver, symtab.Reference)
		g.line("lw %s,%d(%s)", r, ref.Offset(), g.sp)
		if adj := g.lay.BaseOffset(c.Receiver.ExprType().Class, f.Class); adj != 0 {
			g.line("addi %s,%s,%d", r, r, adj)
		}
	default:
		// implicit receiver: forward our own
		cur := g.fn.Func
		diag.Assert(cur.IsMember(), diag.Emit, "method %s called without a receiver", f.QualifiedName())
		slot := g.lay.Slot(g.fn, cur, symtab.Reference)
		g.line("lw %s,%d(%s)", r, slot.Offset(), g.sp)
		if adj := g.lay.BaseOffset(cur.Class, f.Class); adj != 0 {
			g.line("addi %s,%s,%d", r, r, adj)
		}
	}
}
