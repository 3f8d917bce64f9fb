package symtab

import (
	"strings"
	"testing"

	"moonc/pkg/ast"
	"moonc/pkg/diag"
)

const shapesYAML = `
classes:
  - name: SHAPE
    attributes:
      - {name: id, type: integer}
  - name: POINT
    isa: [SHAPE]
    attributes:
      - {name: x, type: float}
      - {name: y, type: float}
functions:
  - name: area
    class: SHAPE
    returns: integer
    body:
      - return: {var: id}
  - name: constructor
    class: POINT
    constructor: true
    params: [{name: px, type: float}]
    body:
      - assign: {target: {var: x}, value: {var: px}}
  - name: scale
    params: [{name: v, type: integer}]
    returns: integer
    body:
      - return: {binary: {op: "*", left: {var: v}, right: {int: 2}}}
  - name: scale
    params: [{name: v, type: float}]
    returns: float
    body:
      - return: {var: v}
  - name: main
    body:
      - local: {name: p, type: POINT}
      - local: {name: grid, type: "integer[3][4]"}
      - assign: {target: {var: p}, value: {new: {class: POINT, args: [{float: 1.5}]}}}
      - write: {call: {receiver: {var: p}, name: area}}
      - write: {call: {name: scale, args: [{float: 2.5}]}}
      - write: {index: {base: {var: grid}, at: [{int: 1}, {int: 2}]}}
      - if:
          cond: {binary: {op: "<", left: {dot: {left: {var: p}, member: id}}, right: {int: 1}}}
          then:
            - local: {name: k, type: integer}
`

func buildShapes(t *testing.T) (*ast.Program, *Table) {
	t.Helper()
	prog, err := ast.Decode([]byte(shapesYAML))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	tab, err := Build(prog)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return prog, tab
}

func TestBuildScopes(t *testing.T) {
	prog, tab := buildShapes(t)

	point, ok := tab.Class("POINT")
	if !ok {
		t.Fatal("POINT scope missing")
	}
	if len(point.Storage()) != 2 {
		t.Errorf("POINT storage = %d entries; want 2", len(point.Storage()))
	}
	if bases := tab.Bases(point); len(bases) != 1 || bases[0].Name != "SHAPE" {
		t.Errorf("bases = %v", bases)
	}
	if m, ok := tab.LookupMember("POINT", "id"); !ok || m.Scope.Name != "SHAPE" {
		t.Error("inherited member id not found through SHAPE")
	}

	main, _ := prog.Func("main")
	ms, _ := tab.Func(main)
	names := []string{}
	for _, e := range ms.Entries {
		names = append(names, e.Name)
	}
	if got := strings.Join(names, ","); got != "p,grid,k" {
		t.Errorf("main locals = %s; want p,grid,k", got)
	}
	if ms.Parent != tab.Global || ms.Owner != FunctionOwner {
		t.Errorf("main scope parent/owner wrong: %s", ms.Owner)
	}

	ctor := prog.Funcs[1]
	cs, _ := tab.Func(ctor)
	if cs.Owner != ConstructorOwner || cs.Parent != point {
		t.Errorf("constructor scope = %s under %s", cs.Owner, cs.Parent.Name)
	}
}

func TestBuildResolvesCalls(t *testing.T) {
	prog, _ := buildShapes(t)
	main, _ := prog.Func("main")
	stmts := main.Body.Stmts

	newCall := stmts[2].(*ast.AssignStmt).Value.(*ast.CallExpr)
	if newCall.Func != prog.Funcs[1] {
		t.Errorf("constructor resolved to %v", newCall.Func)
	}

	area := stmts[3].(*ast.WriteStmt).Value.(*ast.CallExpr)
	if area.Func != prog.Funcs[0] || !area.Type.Equal(ast.IntegerType) {
		t.Errorf("inherited method resolved to %v typed %s", area.Func, area.Type)
	}

	scale := stmts[4].(*ast.WriteStmt).Value.(*ast.CallExpr)
	if scale.Func != prog.Funcs[3] || !scale.Type.Equal(ast.FloatType) {
		t.Errorf("overload resolved to %v typed %s", scale.Func, scale.Type)
	}

	ix := stmts[5].(*ast.WriteStmt).Value.(*ast.IndexExpr)
	if !ix.Type.Equal(ast.IntegerType) {
		t.Errorf("grid[1][2] typed %s", ix.Type)
	}

	cond := stmts[6].(*ast.IfStmt).Cond.(*ast.BinaryExpr)
	if !cond.Type.Equal(ast.IntegerType) {
		t.Errorf("comparison typed %s", cond.Type)
	}
	if dot := cond.Left.(*ast.DotExpr); !dot.Type.Equal(ast.IntegerType) {
		t.Errorf("p.id typed %s", dot.Type)
	}
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"undeclared", "functions: [{name: main, body: [{write: {var: q}}]}]", "undeclared name q"},
		{"unknown base", "classes: [{name: A, isa: [B]}]", "unknown base B"},
		{"no member", "classes: [{name: A}]\nfunctions: [{name: main, body: [{local: {name: a, type: A}}, {write: {dot: {left: {var: a}, member: z}}}]}]", "has no member z"},
		{"no function", "functions: [{name: main, body: [{call: {name: nope}}]}]", "no function named nope"},
		{"duplicate local", "functions: [{name: main, body: [{local: {name: a, type: integer}}, {local: {name: a, type: float}}]}]", "declared twice"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			prog, err := ast.Decode([]byte(tc.src))
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			_, err = Build(prog)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestEntryWriteOnce(t *testing.T) {
	tests := []struct {
		name string
		fn   func(e *Entry)
	}{
		{"size twice", func(e *Entry) { e.SetSize(4); e.SetSize(4) }},
		{"offset before size", func(e *Entry) { e.SetOffset(0) }},
		{"offset twice", func(e *Entry) { e.SetSize(4); e.SetOffset(0); e.SetOffset(-4) }},
		{"offset read early", func(e *Entry) { _ = e.Offset() }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := newEntry(Local, "x", ast.IntegerType, nil)
			err := func() (err error) {
				defer diag.Catch(&err)
				tc.fn(e)
				return nil
			}()
			if !diag.IsFault(err) {
				t.Errorf("expected a fault, got %v", err)
			}
		})
	}
}

func TestTableString(t *testing.T) {
	_, tab := buildShapes(t)
	out := tab.String()
	for _, want := range []string{"class POINT (Size: ?", "member   x", "function main", "local    grid"} {
		if !strings.Contains(out, want) {
			t.Errorf("dump missing %q:\n%s", want, out)
		}
	}
}
