// Package layout sizes every type and storage entry of a program and
// assigns frame-relative offsets.
//
// Memory grows downward: an entry at offset o of size s occupies the words
// o, o-4, ..., o-s+4. Resolution runs in three steps, in order:
//
//  1. synthesize unnamed entries (return slots, temporaries, references)
//  2. size classes and frames on a worklist until nothing is pending
//  3. walk each scope once, assigning the running offset
//
// Offsets are final before any instruction is emitted.
package layout

import (
	"log/slog"

	"github.com/samber/lo"

	"moonc/pkg/ast"
	"moonc/pkg/config"
	"moonc/pkg/diag"
	"moonc/pkg/symtab"
)

// Resolver owns the layout of one program.
type Resolver struct {
	tab   *symtab.Table
	sizes config.Sizes
	entry string
	log   *slog.Logger

	resolved bool
	passes   int
	layouts  int
}

// New returns a resolver for tab. A nil logger discards output.
func New(tab *symtab.Table, cfg config.Config, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Resolver{
		tab:   tab,
		sizes: cfg.Sizes,
		entry: cfg.Emit.EntryFunction,
		log:   log.With("component", "layout"),
	}
}

// Table returns the scope tree being laid out.
func (r *Resolver) Table() *symtab.Table { return r.tab }

// Resolve runs synthesis, the sizing fixed point and offset assignment.
// It aborts with a *diag.Fault when a size never resolves.
func (r *Resolver) Resolve() {
	diag.Assert(!r.resolved, diag.Layout, "layout resolved twice")
	for _, fs := range r.tab.Funcs {
		r.synthesize(fs)
	}
	r.fixedPoint()
	for _, cs := range r.tab.Classes {
		r.layoutClass(cs)
	}
	for _, fs := range r.tab.Funcs {
		place(fs, 0)
		r.log.Debug("frame", "function", fs.Name, "size", fs.Size(), "entries", len(fs.Storage()))
	}
	r.resolved = true
}

// Passes is the number of worklist passes the fixed point needed.
func (r *Resolver) Passes() int { return r.passes }

// ClassLayouts counts how many class layouts were computed. Each class is
// laid out exactly once however many classes derive from it.
func (r *Resolver) ClassLayouts() int { return r.layouts }

// ComputeSize returns the size in bytes of t, or symtab.Unknown when t
// names a class whose size is not resolved yet.
func (r *Resolver) ComputeSize(t ast.Type) int {
	var base int
	switch t.Kind {
	case ast.Integer:
		base = r.sizes.Word
	case ast.Float:
		base = r.sizes.Float
	case ast.Boolean:
		base = r.sizes.Boolean
	case ast.Class:
		cs, ok := r.tab.Class(t.Class)
		diag.Assert(ok, diag.Layout, "unknown class %s", t.Class)
		if !cs.Sized() {
			return symtab.Unknown
		}
		base = cs.Size()
	default:
		diag.Abortf(diag.Layout, "type %s has no size", t)
	}
	for _, d := range t.Dims {
		diag.Assert(d > 0, diag.Layout, "dimension %d of %s is not a positive literal", d, t)
		base *= d
	}
	return base
}

func (r *Resolver) fixedPoint() {
	pending := make([]*symtab.Scope, 0, len(r.tab.Classes)+len(r.tab.Funcs))
	pending = append(pending, r.tab.Classes...)
	pending = append(pending, r.tab.Funcs...)

	for len(pending) > 0 {
		r.passes++
		next := lo.Filter(pending, func(s *symtab.Scope, _ int) bool { return !r.trySize(s) })
		r.log.Debug("layout pass", "pass", r.passes, "pending", len(pending), "resolved", len(pending)-len(next))
		if len(next) == len(pending) {
			names := lo.Map(next, func(s *symtab.Scope, _ int) string { return s.Name })
			diag.Abortf(diag.Layout, "sizes never resolved for %v", names)
		}
		pending = next
	}
}

// trySize sizes every entry of s it can and, when all are known, the
// scope itself. Entries sized in a failed attempt keep their size.
func (r *Resolver) trySize(s *symtab.Scope) bool {
	total := 0
	if s.Owner == symtab.ClassOwner {
		for _, b := range r.tab.Bases(s) {
			if !b.Sized() {
				return false
			}
			total += b.Size()
		}
	}
	done := true
	for _, e := range s.Storage() {
		if !e.Sized() {
			n := r.entrySize(e)
			if n == symtab.Unknown {
				done = false
				continue
			}
			e.SetSize(n)
		}
		total += e.Size()
	}
	if !done {
		return false
	}
	s.SetSize(total)
	return true
}

func (r *Resolver) entrySize(e *symtab.Entry) int {
	switch e.Kind {
	case symtab.ReturnAddress, symtab.Reference:
		return r.sizes.Word
	}
	return r.ComputeSize(e.Type)
}

// layoutClass places the bases of cs first, each exactly once, then its
// own members below them.
func (r *Resolver) layoutClass(cs *symtab.Scope) {
	if cs.Placed() {
		return
	}
	base := 0
	for _, b := range r.tab.Bases(cs) {
		r.layoutClass(b)
		base -= b.Size()
	}
	place(cs, base)
	r.layouts++
	r.log.Debug("class layout", "class", cs.Name, "size", cs.Size(), "base", base)
}

// place walks the storage entries of s in creation order, assigning the
// running offset and subtracting each size.
func place(s *symtab.Scope, base int) {
	s.Place(base)
	off := base
	for _, e := range s.Storage() {
		e.SetOffset(off)
		off -= e.Size()
	}
}

//  Queries used by the emitter.

// FrameSize is the total size of a function scope.
func (r *Resolver) FrameSize(fs *symtab.Scope) int {
	diag.Assert(fs.Sized(), diag.Layout, "frame of %s not resolved", fs.Name)
	return fs.Size()
}

// MemberOffset returns the offset of member name inside an object of
// class: own members first, then bases in declaration order.
func (r *Resolver) MemberOffset(class, name string) (int, *symtab.Entry) {
	off, e, ok := r.memberOffset(class, name)
	diag.Assert(ok, diag.Layout, "class %s has no member %s", class, name)
	return off, e
}

func (r *Resolver) memberOffset(class, name string) (int, *symtab.Entry, bool) {
	cs, ok := r.tab.Class(class)
	diag.Assert(ok, diag.Layout, "unknown class %s", class)
	if e, ok := cs.Lookup(name); ok && e.Kind == symtab.MemberVar {
		return e.Offset(), e, true
	}
	pos := 0
	for _, b := range r.tab.Bases(cs) {
		if off, e, ok := r.memberOffset(b.Name, name); ok {
			return pos + off, e, true
		}
		pos -= b.Size()
	}
	return 0, nil, false
}

// BaseOffset returns where the base subobject starts inside an object of
// class derived. A class is its own base at offset 0.
func (r *Resolver) BaseOffset(derived, base string) int {
	off, ok := r.baseOffset(derived, base)
	diag.Assert(ok, diag.Layout, "%s does not derive from %s", derived, base)
	return off
}

func (r *Resolver) baseOffset(derived, base string) (int, bool) {
	if derived == base {
		return 0, true
	}
	cs, ok := r.tab.Class(derived)
	if !ok {
		return 0, false
	}
	pos := 0
	for _, b := range r.tab.Bases(cs) {
		if off, ok := r.baseOffset(b.Name, base); ok {
			return pos + off, true
		}
		pos -= b.Size()
	}
	return 0, false
}

// Slot returns the synthesized entry of kind backing node in fs.
func (r *Resolver) Slot(fs *symtab.Scope, node ast.Node, kind symtab.Kind) *symtab.Entry {
	e, ok := fs.Slot(node, kind)
	diag.Assert(ok, diag.Layout, "no %s slot for %s in %s", kind, node, fs.Name)
	return e
}
