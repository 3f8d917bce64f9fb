package layout

import (
	"testing"

	"moonc/pkg/ast"
	"moonc/pkg/config"
	"moonc/pkg/diag"
	"moonc/pkg/symtab"
)

func resolve(t *testing.T, src string) *Resolver {
	t.Helper()
	prog, err := ast.Decode([]byte(src))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	tab, err := symtab.Build(prog)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	r := New(tab, config.Default(), nil)
	r.Resolve()
	return r
}

func funcScope(t *testing.T, r *Resolver, name string) *symtab.Scope {
	t.Helper()
	for _, fs := range r.Table().Funcs {
		if fs.Name == name {
			return fs
		}
	}
	t.Fatalf("no function %s", name)
	return nil
}

func TestComputeSizePrimitives(t *testing.T) {
	r := resolve(t, "classes: [{name: PAIR, attributes: [{name: a, type: integer}, {name: b, type: float}]}]")
	tests := []struct {
		typ  string
		want int
	}{
		{"integer", 4},
		{"float", 8},
		{"boolean", 1},
		{"integer[5]", 20},
		{"float[2][3]", 48},
		{"PAIR", 12},
		{"PAIR[2]", 24},
	}
	for _, tc := range tests {
		typ, err := ast.ParseType(tc.typ)
		if err != nil {
			t.Fatal(err)
		}
		if got := r.ComputeSize(typ); got != tc.want {
			t.Errorf("ComputeSize(%s) = %d; want %d", tc.typ, got, tc.want)
		}
	}
}

func TestComputeSizeRejectsBadDimension(t *testing.T) {
	r := resolve(t, "")
	err := func() (err error) {
		defer diag.Catch(&err)
		r.ComputeSize(ast.Type{Kind: ast.Integer, Dims: []int{0}})
		return nil
	}()
	if !diag.IsFault(err) {
		t.Errorf("expected a layout fault, got %v", err)
	}
}

const hierarchyYAML = `
classes:
  - name: LEFT
    attributes: [{name: l, type: integer}]
  - name: RIGHT
    attributes: [{name: r, type: integer}]
  - name: BOTH
    isa: [LEFT, RIGHT]
    attributes: [{name: v, type: float}]
  - name: MORE
    isa: [LEFT]
    attributes: [{name: m, type: integer}]
`

func TestClassLayout(t *testing.T) {
	r := resolve(t, hierarchyYAML)

	for _, tc := range []struct {
		member string
		want   int
	}{
		{"l", 0},
		{"r", -4},
		{"v", -8},
	} {
		if got, _ := r.MemberOffset("BOTH", tc.member); got != tc.want {
			t.Errorf("MemberOffset(BOTH, %s) = %d; want %d", tc.member, got, tc.want)
		}
	}
	both, _ := r.Table().Class("BOTH")
	if both.Size() != 16 || both.Base() != -8 {
		t.Errorf("BOTH size %d base %d; want 16 and -8", both.Size(), both.Base())
	}
	if got := r.BaseOffset("BOTH", "RIGHT"); got != -4 {
		t.Errorf("BaseOffset(BOTH, RIGHT) = %d; want -4", got)
	}
	if got := r.BaseOffset("MORE", "MORE"); got != 0 {
		t.Errorf("BaseOffset(MORE, MORE) = %d; want 0", got)
	}
	if got, _ := r.MemberOffset("MORE", "m"); got != -4 {
		t.Errorf("MemberOffset(MORE, m) = %d; want -4", got)
	}
	// LEFT is shared by two derived classes but laid out once
	if r.ClassLayouts() != 4 {
		t.Errorf("ClassLayouts() = %d; want 4", r.ClassLayouts())
	}
}

func TestForwardReferenceNeedsTwoPasses(t *testing.T) {
	r := resolve(t, `
classes:
  - name: OUTER
    attributes: [{name: in, type: INNER}, {name: n, type: integer}]
  - name: INNER
    attributes: [{name: x, type: float}]
`)
	outer, _ := r.Table().Class("OUTER")
	if outer.Size() != 12 {
		t.Errorf("OUTER size = %d; want 12", outer.Size())
	}
	if r.Passes() != 2 {
		t.Errorf("Passes() = %d; want 2", r.Passes())
	}
}

func TestCycleAborts(t *testing.T) {
	prog, err := ast.Decode([]byte(`
classes:
  - name: P
    attributes: [{name: q, type: Q}]
  - name: Q
    attributes: [{name: p, type: P}]
`))
	if err != nil {
		t.Fatal(err)
	}
	tab, err := symtab.Build(prog)
	if err != nil {
		t.Fatal(err)
	}
	err = func() (err error) {
		defer diag.Catch(&err)
		New(tab, config.Default(), nil).Resolve()
		return nil
	}()
	if !diag.IsFault(err) {
		t.Fatalf("expected a layout fault, got %v", err)
	}
}

const callsYAML = `
classes:
  - name: COUNTER
    attributes: [{name: n, type: integer}, {name: rate, type: float}]
functions:
  - name: f
    params: [{name: x, type: integer}]
    returns: integer
    body:
      - return: {binary: {op: "+", left: {var: x}, right: {int: 1}}}
  - name: bump
    class: COUNTER
    params: [{name: by, type: integer}]
    returns: integer
    body:
      - assign: {target: {var: n}, value: {binary: {op: "+", left: {var: n}, right: {var: by}}}}
      - return: {var: n}
  - name: main
    body:
      - local: {name: c, type: COUNTER}
      - local: {name: y, type: integer}
      - assign: {target: {var: y}, value: {call: {name: f, args: [{int: 3}]}}}
      - assign: {target: {dot: {left: {var: c}, member: rate}}, value: {float: 2.5}}
      - write: {call: {receiver: {var: c}, name: bump, args: [{var: y}]}}
`

func TestSynthesizedEntries(t *testing.T) {
	r := resolve(t, callsYAML)

	f := funcScope(t, r, "f")
	kinds := []symtab.Kind{symtab.Parameter, symtab.ReturnAddress, symtab.ReturnValue, symtab.Temporary}
	if len(f.Entries) != len(kinds) {
		t.Fatalf("f has %d entries; want %d", len(f.Entries), len(kinds))
	}
	for i, k := range kinds {
		if f.Entries[i].Kind != k {
			t.Errorf("f entry %d is %s; want %s", i, f.Entries[i].Kind, k)
		}
		if f.Entries[i].Offset() != -4*i {
			t.Errorf("f entry %d at %d; want %d", i, f.Entries[i].Offset(), -4*i)
		}
	}
	if r.FrameSize(f) != 16 {
		t.Errorf("FrameSize(f) = %d; want 16", r.FrameSize(f))
	}

	main := funcScope(t, r, "main")
	if _, ok := main.First(symtab.ReturnAddress); ok {
		t.Error("entry function must not get a return address")
	}
	if _, ok := main.First(symtab.ReturnValue); ok {
		t.Error("void function must not get a return value")
	}
	var temps, refs int
	for _, e := range main.Entries {
		switch e.Kind {
		case symtab.Temporary:
			temps++
		case symtab.Reference:
			refs++
		}
	}
	// f(3), 2.5, c.bump(y); the assignment targets get nothing
	if temps != 3 || refs != 1 {
		t.Errorf("main has %d temporaries and %d references; want 3 and 1", temps, refs)
	}

	bump := funcScope(t, r, "COUNTER::bump")
	self, ok := bump.First(symtab.Reference)
	if !ok || self.Node != bump.Func {
		t.Fatal("member function has no receiver slot")
	}
	// the read of n through the receiver is materialized, the target is not
	var memberTemps int
	for _, e := range bump.Entries {
		if v, ok := e.Node.(*ast.VarRef); ok && v.Name == "n" && e.Kind == symtab.Temporary {
			memberTemps++
		}
	}
	if memberTemps != 2 {
		t.Errorf("bump has %d temporaries for n; want 2", memberTemps)
	}
}

func TestOffsetsStrictlyDecrease(t *testing.T) {
	r := resolve(t, callsYAML)
	scopes := append(append([]*symtab.Scope{}, r.Table().Classes...), r.Table().Funcs...)
	for _, s := range scopes {
		prev := s.Base() + 1
		for i, e := range s.Storage() {
			if i == 0 && e.Offset() != s.Base() {
				t.Errorf("%s: first entry at %d; want base %d", s.Name, e.Offset(), s.Base())
			}
			if e.Offset() >= prev {
				t.Errorf("%s: %s at %d does not lie below %d", s.Name, e.Label(), e.Offset(), prev)
			}
			if i > 0 && e.Offset() > prev-s.Storage()[i-1].Size() {
				t.Errorf("%s: %s overlaps its predecessor", s.Name, e.Label())
			}
			prev = e.Offset()
		}
	}
}
