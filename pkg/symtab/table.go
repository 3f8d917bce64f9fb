package symtab

import (
	"fmt"
	"strings"

	"github.com/samber/lo"

	"moonc/pkg/ast"
)

// Table is the scope tree of one program.
type Table struct {
	Program *ast.Program
	Global  *Scope

	// Classes and Funcs are in source order.
	Classes []*Scope
	Funcs   []*Scope

	classByName map[string]*Scope
	funcByDef   map[*ast.FuncDef]*Scope
}

// Class returns the scope of the named class.
func (t *Table) Class(name string) (*Scope, bool) {
	s, ok := t.classByName[name]
	return s, ok
}

// Func returns the scope of a function definition.
func (t *Table) Func(f *ast.FuncDef) (*Scope, bool) {
	s, ok := t.funcByDef[f]
	return s, ok
}

// Bases returns the scopes of a class's direct bases in declaration order.
func (t *Table) Bases(class *Scope) []*Scope {
	return lo.FilterMap(class.Class.Bases, func(name string, _ int) (*Scope, bool) {
		return t.Class(name)
	})
}

// LookupMember finds a member variable of class by name: own members
// first, then each base in declaration order, depth first.
func (t *Table) LookupMember(class, name string) (*Entry, bool) {
	cs, ok := t.Class(class)
	if !ok {
		return nil, false
	}
	if e, ok := cs.Lookup(name); ok && e.Kind == MemberVar {
		return e, true
	}
	for _, b := range t.Bases(cs) {
		if e, ok := t.LookupMember(b.Name, name); ok {
			return e, true
		}
	}
	return nil, false
}

// LookupVar resolves a bare name used inside function scope fs:
// parameters and locals first, then members of the receiver's class.
// member reports the second case.
func (t *Table) LookupVar(fs *Scope, name string) (e *Entry, member bool, ok bool) {
	if e, ok := fs.Lookup(name); ok {
		return e, false, true
	}
	if f := fs.Func; f != nil && f.IsMember() {
		if e, ok := t.LookupMember(f.Class, name); ok {
			return e, true, true
		}
	}
	return nil, false, false
}

// Methods returns the member functions named name visible from class,
// taken from the nearest class (own, then bases in order) that declares
// any.
func (t *Table) Methods(class, name string) []*ast.FuncDef {
	cs, ok := t.Class(class)
	if !ok {
		return nil
	}
	own := lo.Filter(t.Program.Funcs, func(f *ast.FuncDef, _ int) bool {
		return f.Class == class && f.Name == name && !f.Constructor
	})
	if len(own) > 0 {
		return own
	}
	for _, b := range t.Bases(cs) {
		if found := t.Methods(b.Name, name); len(found) > 0 {
			return found
		}
	}
	return nil
}

// IsDerivedFrom reports whether class has base among its ancestors
// (or is base itself).
func (t *Table) IsDerivedFrom(class, base string) bool {
	if class == base {
		return true
	}
	cs, ok := t.Class(class)
	if !ok {
		return false
	}
	return lo.SomeBy(cs.Class.Bases, func(b string) bool { return t.IsDerivedFrom(b, base) })
}

// String returns a deterministically ordered dump of the table.
func (t *Table) String() string {
	var sb strings.Builder
	for _, s := range t.Classes {
		t.dumpScope(&sb, s)
	}
	for _, s := range t.Funcs {
		t.dumpScope(&sb, s)
	}
	return sb.String()
}

func (t *Table) dumpScope(sb *strings.Builder, s *Scope) {
	size := "?"
	if s.Sized() {
		size = fmt.Sprint(s.Size())
	}
	fmt.Fprintf(sb, "%s %s (Size: %s, Base: %d)\n", s.Owner, s.Name, size, s.Base())
	for _, e := range s.Entries {
		off := "?"
		if e.Placed() {
			off = fmt.Sprint(e.Offset())
		}
		sz := "?"
		if e.Sized() {
			sz = fmt.Sprint(e.Size())
		}
		fmt.Fprintf(sb, "  %-8s %-28s Offset: %4s (Size: %s, Type: %s)\n", e.Kind, e.Label(), off, sz, e.Type)
	}
}
