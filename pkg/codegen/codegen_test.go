package codegen

import (
	"strings"
	"testing"

	"moonc/pkg/ast"
	"moonc/pkg/config"
	"moonc/pkg/diag"
	"moonc/pkg/layout"
	"moonc/pkg/symtab"
)

func assertContains(t *testing.T, code, expected string) {
	t.Helper()
	if !strings.Contains(code, expected) {
		t.Errorf("Expected code to contain %q, but it didn't.\nCode:\n%s", expected, code)
	}
}

// assertInOrder checks that each instruction appears after the previous one.
func assertInOrder(t *testing.T, code string, expected ...string) {
	t.Helper()
	rest := code
	for _, e := range expected {
		i := strings.Index(rest, e)
		if i < 0 {
			t.Errorf("Expected %q in order, but it didn't follow.\nCode:\n%s", e, code)
			return
		}
		rest = rest[i+len(e):]
	}
}

func generate(t *testing.T, src string) string {
	t.Helper()
	code, err := tryGenerate(src)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	return code
}

func tryGenerate(src string) (code string, err error) {
	prog, err := ast.Decode([]byte(src))
	if err != nil {
		return "", err
	}
	tab, err := symtab.Build(prog)
	if err != nil {
		return "", err
	}
	defer diag.Catch(&err)
	lay := layout.New(tab, config.Default(), nil)
	lay.Resolve()
	return Generate(lay, config.Default(), nil), nil
}

func TestGenerate_ProgramShape(t *testing.T) {
	code := generate(t, `
functions:
  - name: helper
    body: []
  - name: main
    body:
      - write: {int: 7}
`)
	assertInOrder(t, code,
		"entry",
		"addi r14,r0,topaddr",
		"addi r1,r0,7",
		"hlt",
		"fn_helper       sw 0(r14),r15",
		"jr r15",
		"buf             res 20",
	)
	if strings.Contains(code, "fn_main") {
		t.Error("entry function must be emitted inline without a tag")
	}
}

func TestGenerate_CallSequence(t *testing.T) {
	code := generate(t, `
functions:
  - name: f
    params: [{name: x, type: integer}]
    returns: integer
    body:
      - return: {var: x}
  - name: main
    body:
      - local: {name: y, type: integer}
      - assign: {target: {var: y}, value: {call: {name: f, args: [{int: 3}]}}}
`)
	// main: y at 0, call temporary at -4, frame 8
	assertInOrder(t, code,
		"addi r1,r0,3",
		"sw -8(r14),r1",
		"addi r14,r14,-8",
		"jl r15,fn_f",
		"addi r14,r14,8",
		"lw r1,0(r13)",
		"sw -4(r14),r1",
		"lw r1,-4(r14)",
		"sw 0(r14),r1",
	)
	// f: x at 0, return address at -4, return value at -8
	assertInOrder(t, code,
		"fn_f            sw -4(r14),r15",
		"lw r1,0(r14)",
		"sw -8(r14),r1",
		"j end_f2",
		"end_f2          nop",
		"addi r13,r14,-8",
		"lw r15,-4(r14)",
		"jr r15",
	)
}

func TestGenerate_While(t *testing.T) {
	code := generate(t, `
functions:
  - name: main
    body:
      - local: {name: i, type: integer, init: {int: 0}}
      - while:
          cond: {binary: {op: "<", left: {var: i}, right: {int: 3}}}
          body:
            - assign: {target: {var: i}, value: {binary: {op: "+", left: {var: i}, right: {int: 1}}}}
`)
	assertInOrder(t, code,
		"top2            nop",
		"lw r1,0(r14)",
		"addi r2,r0,3",
		"clt r1,r1,r2",
		"sw -4(r14),r1",
		"lw r1,-4(r14)",
		"bz r1,endwhile3",
		"add r1,r1,r2",
		"sw -8(r14),r1",
		"j top2",
		"endwhile3       nop",
	)
}

func TestGenerate_If(t *testing.T) {
	code := generate(t, `
functions:
  - name: main
    body:
      - if:
          cond: {int: 1}
          then: [{write: {int: 1}}]
          else: [{write: {int: 2}}]
`)
	assertInOrder(t, code,
		"bz r1,else2",
		"addi r1,r0,1",
		"jl r15,putstr",
		"j endif3",
		"else2           nop",
		"addi r1,r0,2",
		"endif3          nop",
	)
}

func TestGenerate_FloatLiteral(t *testing.T) {
	code := generate(t, `
functions:
  - name: main
    body:
      - write: {float: 1.5}
`)
	assertInOrder(t, code,
		"addi r1,r0,15",
		"sw 0(r14),r1",
		"addi r1,r0,1",
		"sw -4(r14),r1",
		"jl r15,intstr",
		"addi r1,r0,101",
		"putc r1",
		"lw r1,-4(r14)",
		"jl r15,intstr",
	)
}

func TestGenerate_LargeConstant(t *testing.T) {
	code := generate(t, `
functions:
  - name: main
    body:
      - write: {int: 100000}
`)
	assertInOrder(t, code, "addi r1,r0,1", "sl r1,16", "ori r1,r1,34464")
}

func TestGenerate_Operators(t *testing.T) {
	tests := []struct {
		op   string
		want string
	}{
		{"+", "add r1,r1,r2"},
		{"-", "sub r1,r1,r2"},
		{"*", "mul r1,r1,r2"},
		{"/", "div r1,r1,r2"},
		{"==", "ceq r1,r1,r2"},
		{"<>", "cne r1,r1,r2"},
		{">=", "cge r1,r1,r2"},
		{"and", "and r1,r1,r2"},
		{"or", "or r1,r1,r2"},
	}
	for _, tc := range tests {
		t.Run(tc.op, func(t *testing.T) {
			code := generate(t, `
functions:
  - name: main
    body:
      - write: {binary: {op: "`+tc.op+`", left: {int: 6}, right: {int: 3}}}
`)
			assertContains(t, code, tc.want)
		})
	}
}

func TestGenerate_MemberAccess(t *testing.T) {
	code := generate(t, `
classes:
  - name: A
    attributes: [{name: a, type: integer}]
  - name: B
    attributes: [{name: b, type: integer}]
  - name: C
    isa: [A, B]
    attributes: [{name: c, type: integer}]
functions:
  - name: get
    class: B
    returns: integer
    body:
      - return: {var: b}
  - name: main
    body:
      - local: {name: x, type: C}
      - assign: {target: {dot: {left: {var: x}, member: c}}, value: {int: 5}}
      - write: {call: {receiver: {var: x}, name: get}}
`)
	// x spans 0..-8: A at 0, B at -4, own c at -8
	assertContains(t, code, "sw -8(r14),r1")
	// the receiver is adjusted to the B subobject
	assertContains(t, code, "addi r1,r1,-4")
	// B::get reads b through its receiver slot
	assertInOrder(t, code, "fn_B_get", "lw r1,-8(r14)", "lw r2,0(r1)")
}

func TestGenerate_IndexedAccess(t *testing.T) {
	code := generate(t, `
functions:
  - name: main
    body:
      - local: {name: m, type: "integer[2][3]"}
      - assign:
          target: {index: {base: {var: m}, at: [{int: 1}, {int: 2}]}}
          value: {int: 9}
`)
	// (1*3 + 2) * 4 bytes below the base of m
	assertInOrder(t, code,
		"addi r1,r0,1",
		"muli r1,r1,3",
		"addi r2,r0,2",
		"add r1,r1,r2",
		"muli r1,r1,4",
		"sub r1,r14,r1",
		"addi r2,r0,9",
		"sw 0(r1),r2",
	)
}

func TestGenerate_VoidCallStatements(t *testing.T) {
	const classes = `
classes:
  - name: C
    attributes: [{name: n, type: integer}]
functions:
  - name: hello
    body: []
  - name: bump
    class: C
    body:
      - assign: {target: {var: n}, value: {int: 1}}
  - name: twice
    class: C
    body:
      - call: {name: bump}
      - call: {name: bump}
`
	tests := []struct {
		name string
		main string
		want []string
	}{
		{"free function", "      - call: {name: hello}\n",
			[]string{"addi r14,r14,0", "jl r15,fn_hello", "hlt"}},
		{"method on a local", "      - local: {name: c, type: C}\n      - call: {receiver: {var: c}, name: bump}\n",
			[]string{"addi r1,r14,0", "jl r15,fn_C_bump", "hlt"}},
		{"implicit receiver", "      - local: {name: c, type: C}\n      - call: {receiver: {var: c}, name: twice}\n",
			[]string{"jl r15,fn_C_twice", "hlt", "fn_C_twice", "jl r15,fn_C_bump", "jl r15,fn_C_bump", "jr r15"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			code, err := tryGenerate(classes + "  - name: main\n    body:\n" + tc.main)
			if err != nil {
				t.Fatalf("Generate failed: %v", err)
			}
			assertInOrder(t, code, tc.want...)
			if strings.Contains(code, "0(r13)") {
				t.Errorf("void call copied a result from r13:\n%s", code)
			}
		})
	}
}

func TestGenerate_LabelsAreUnique(t *testing.T) {
	code := generate(t, `
functions:
  - name: f
    body:
      - if: {cond: {int: 1}, then: [], else: []}
  - name: main
    body:
      - while: {cond: {int: 0}, body: [{if: {cond: {int: 1}, then: [], else: []}}]}
      - write: {binary: {op: "+", left: {float: 1.5}, right: {float: 2.25}}}
      - write: {binary: {op: "-", left: {float: 1.5}, right: {float: 2.25}}}
`)
	seen := make(map[string]bool)
	for _, line := range strings.Split(code, "\n") {
		if line == "" || line[0] == ' ' || line[0] == '%' {
			continue
		}
		label := strings.Fields(line)[0]
		if seen[label] {
			t.Errorf("label %s defined twice", label)
		}
		seen[label] = true
	}
}

func TestGenerate_Faults(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"float multiply", `
functions:
  - name: main
    body:
      - write: {binary: {op: "*", left: {float: 1.5}, right: {float: 2.5}}}
`},
		{"boolean storage", `
functions:
  - name: main
    body:
      - local: {name: b, type: boolean, init: {int: 1}}
`},
		{"float not", `
functions:
  - name: main
    body:
      - write: {unary: {op: not, operand: {float: 1.5}}}
`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tryGenerate(tc.src)
			if !diag.IsFault(err) {
				t.Errorf("expected a fault, got %v", err)
			}
		})
	}
}
