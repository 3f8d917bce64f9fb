// Package symtab holds the scope tree shared by layout and emission.
//
// Every class and every function owns one Scope. Named entries
// (parameters, locals, members) are created when the table is built;
// unnamed entries (temporaries, return slots, references) are synthesized
// later by the layout resolver and are keyed by the AST node they back.
package symtab

import (
	"fmt"

	"github.com/samber/lo"

	"moonc/pkg/ast"
	"moonc/pkg/diag"
)

// Kind classifies an entry.
type Kind int

const (
	Parameter Kind = iota
	Local
	Temporary
	MemberVar
	ReturnAddress
	ReturnValue
	Reference

	// Non-storage markers. Offset assignment skips them.
	Function
	Class
)

var kindNames = [...]string{
	Parameter:     "param",
	Local:         "local",
	Temporary:     "temp",
	MemberVar:     "member",
	ReturnAddress: "retaddr",
	ReturnValue:   "retval",
	Reference:     "ref",
	Function:      "function",
	Class:         "class",
}

func (k Kind) String() string {
	if int(k) >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// IsStorage reports whether entries of this kind occupy frame space.
func (k Kind) IsStorage() bool { return k <= Reference }

// Unknown is the size of an entry whose size has not been resolved yet.
const Unknown = -1

// Entry is one row of a scope.
type Entry struct {
	Kind Kind
	Name string // empty for synthesized entries
	Type ast.Type

	// Node is the declaration for named entries and the backed
	// expression (or function) for synthesized ones.
	Node  ast.Node
	Scope *Scope

	size   int
	offset int
	placed bool
}

func newEntry(kind Kind, name string, t ast.Type, node ast.Node) *Entry {
	return &Entry{Kind: kind, Name: name, Type: t, Node: node, size: Unknown}
}

// Size is the resolved size in bytes, or Unknown.
func (e *Entry) Size() int { return e.size }

// Sized reports whether the size has been set.
func (e *Entry) Sized() bool { return e.size != Unknown }

// SetSize records the size. Sizes are write-once.
func (e *Entry) SetSize(n int) {
	diag.Assert(!e.Sized(), diag.Symbols, "size of %s set twice", e)
	diag.Assert(n >= 0, diag.Symbols, "negative size %d for %s", n, e)
	e.size = n
}

// Placed reports whether the offset has been assigned.
func (e *Entry) Placed() bool { return e.placed }

// Offset returns the assigned frame offset.
func (e *Entry) Offset() int {
	diag.Assert(e.placed, diag.Symbols, "offset of %s read before layout", e)
	return e.offset
}

// SetOffset records the offset. Offsets are write-once and require a
// known size.
func (e *Entry) SetOffset(o int) {
	diag.Assert(!e.placed, diag.Symbols, "offset of %s set twice", e)
	diag.Assert(e.Sized(), diag.Symbols, "offset of %s set before its size", e)
	e.offset = o
	e.placed = true
}

// Label is a short human name used in dumps and emitted comments.
func (e *Entry) Label() string {
	if e.Name != "" {
		return e.Name
	}
	switch e.Kind {
	case Temporary, Reference:
		return fmt.Sprintf("<%s %s>", e.Kind, e.Node)
	case Function:
		if f, ok := e.Node.(*ast.FuncDef); ok {
			return f.QualifiedName()
		}
	}
	return "<" + e.Kind.String() + ">"
}

func (e *Entry) String() string {
	return fmt.Sprintf("%s %s: %s", e.Kind, e.Label(), e.Type)
}

// Owner is the kind of declaration a scope belongs to.
type Owner int

const (
	GlobalOwner Owner = iota
	ClassOwner
	FunctionOwner
	ConstructorOwner
)

func (o Owner) String() string {
	switch o {
	case GlobalOwner:
		return "global"
	case ClassOwner:
		return "class"
	case FunctionOwner:
		return "function"
	case ConstructorOwner:
		return "constructor"
	}
	return fmt.Sprintf("Owner(%d)", int(o))
}

// slotKey identifies a synthesized entry. One function definition backs
// its return address, return value and receiver slots.
type slotKey struct {
	node ast.Node
	kind Kind
}

// Scope is an ordered list of entries owned by a class or function.
type Scope struct {
	Name   string
	Owner  Owner
	Parent *Scope
	Class  *ast.ClassDecl // class scopes
	Func   *ast.FuncDef   // function and constructor scopes

	Entries []*Entry

	byName map[string]*Entry
	byNode map[slotKey]*Entry

	base   int
	size   int
	placed bool
}

func newScope(name string, owner Owner, parent *Scope) *Scope {
	return &Scope{
		Name:   name,
		Owner:  owner,
		Parent: parent,
		byName: make(map[string]*Entry),
		byNode: make(map[slotKey]*Entry),
		size:   Unknown,
	}
}

// Add appends an entry in creation order.
func (s *Scope) Add(e *Entry) *Entry {
	e.Scope = s
	if e.Name != "" {
		diag.Assert(s.byName[e.Name] == nil, diag.Symbols, "%s declared twice in %s", e.Name, s.Name)
		s.byName[e.Name] = e
	} else {
		diag.Assert(e.Node != nil, diag.Symbols, "synthesized %s without a backing node", e.Kind)
		key := slotKey{e.Node, e.Kind}
		diag.Assert(s.byNode[key] == nil, diag.Symbols, "%s for %s synthesized twice in %s", e.Kind, e.Node, s.Name)
		s.byNode[key] = e
	}
	s.Entries = append(s.Entries, e)
	return e
}

// Synthesize appends an unnamed entry backing node.
func (s *Scope) Synthesize(kind Kind, t ast.Type, node ast.Node) *Entry {
	return s.Add(newEntry(kind, "", t, node))
}

// Lookup finds a named entry in this scope only.
func (s *Scope) Lookup(name string) (*Entry, bool) {
	e, ok := s.byName[name]
	return e, ok
}

// Slot finds the synthesized entry of the given kind backing node.
func (s *Scope) Slot(node ast.Node, kind Kind) (*Entry, bool) {
	e, ok := s.byNode[slotKey{node, kind}]
	return e, ok
}

// First returns the first entry of the given kind.
func (s *Scope) First(kind Kind) (*Entry, bool) {
	return lo.Find(s.Entries, func(e *Entry) bool { return e.Kind == kind })
}

// Storage returns the entries that occupy space, in creation order.
func (s *Scope) Storage() []*Entry {
	return lo.Filter(s.Entries, func(e *Entry, _ int) bool { return e.Kind.IsStorage() })
}

// Params returns the parameter entries in declaration order.
func (s *Scope) Params() []*Entry {
	return lo.Filter(s.Entries, func(e *Entry, _ int) bool { return e.Kind == Parameter })
}

// Size is the total size of the scope (for classes, including bases),
// or Unknown.
func (s *Scope) Size() int { return s.size }

// Sized reports whether the total size is known.
func (s *Scope) Sized() bool { return s.size != Unknown }

// SetSize records the total size once.
func (s *Scope) SetSize(n int) {
	diag.Assert(!s.Sized(), diag.Symbols, "size of scope %s set twice", s.Name)
	s.size = n
}

// Base is the offset of the first own entry.
func (s *Scope) Base() int { return s.base }

// Placed reports whether offsets have been assigned.
func (s *Scope) Placed() bool { return s.placed }

// Place records the base offset and marks the scope as laid out.
func (s *Scope) Place(base int) {
	diag.Assert(!s.placed, diag.Symbols, "scope %s laid out twice", s.Name)
	s.base = base
	s.placed = true
}
