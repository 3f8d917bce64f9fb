// Package codegen walks the laid-out tree and emits Moon assembly text.
//
// Every expression leaves its result in its own frame slot: operands are
// loaded into scratch registers, combined, stored and released before the
// next node is visited. No register survives a statement or a call.
package codegen

import (
	"fmt"
	"log/slog"
	"strings"

	"moonc/pkg/ast"
	"moonc/pkg/config"
	"moonc/pkg/diag"
	"moonc/pkg/layout"
	"moonc/pkg/symtab"
)

// Generator emits one program. It is not reusable.
type Generator struct {
	cfg  config.Config
	lay  *layout.Resolver
	tab  *symtab.Table
	log  *slog.Logger
	regs *RegisterPool

	sp, zero, rv, link Register

	nextLabel int
	tags      map[*ast.FuncDef]string
	buffers   map[*ast.Block]*strings.Builder

	// per function
	fn   *symtab.Scope
	exit string
	out  *strings.Builder
}

// New returns a generator for a resolved layout.
func New(lay *layout.Resolver, cfg config.Config, log *slog.Logger) *Generator {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	g := &Generator{
		cfg:     cfg,
		lay:     lay,
		tab:     lay.Table(),
		log:     log.With("component", "codegen"),
		regs:    NewRegisterPool(cfg.Registers.General),
		sp:      Register(cfg.Registers.StackPointer),
		zero:    Register(cfg.Registers.Zero),
		rv:      Register(cfg.Registers.ReturnValue),
		link:    Register(cfg.Registers.Link),
		tags:    make(map[*ast.FuncDef]string),
		buffers: make(map[*ast.Block]*strings.Builder),
	}
	g.assignTags()
	return g
}

// Generate emits a whole program for a resolved layout.
func Generate(lay *layout.Resolver, cfg config.Config, log *slog.Logger) string {
	return New(lay, cfg, log).Program()
}

// assignTags names every function: fn_name for free functions,
// fn_Class_name for members, with _2, _3, ... on later overloads.
func (g *Generator) assignTags() {
	used := make(map[string]int)
	for _, f := range g.tab.Program.Funcs {
		tag := "fn_" + f.Name
		if f.IsMember() {
			tag = "fn_" + f.Class + "_" + f.Name
		}
		used[tag]++
		if n := used[tag]; n > 1 {
			tag = fmt.Sprintf("%s_%d", tag, n)
		}
		g.tags[f] = tag
	}
}

// Tag returns the entry label of f.
func (g *Generator) Tag(f *ast.FuncDef) string {
	tag, ok := g.tags[f]
	diag.Assert(ok, diag.Emit, "function %s has no tag", f.QualifiedName())
	return tag
}

func (g *Generator) isEntry(f *ast.FuncDef) bool {
	return !f.IsMember() && f.Name == g.cfg.Emit.EntryFunction
}

// Program emits the whole program: the entry function inline between the
// stack pointer setup and hlt, every other function after it, then data.
func (g *Generator) Program() string {
	var sb strings.Builder
	g.out = &sb
	g.comment("generated by moonc")
	g.line("entry")
	g.line("addi %s,%s,%s", g.sp, g.zero, g.cfg.Runtime.TopOfMemory)

	var rest []*symtab.Scope
	for _, fs := range g.tab.Funcs {
		if g.isEntry(fs.Func) {
			g.function(fs)
			g.out = &sb
		} else {
			rest = append(rest, fs)
		}
	}
	g.line("hlt")

	for _, fs := range rest {
		sb.WriteByte('\n')
		g.function(fs)
		g.out = &sb
	}

	sb.WriteByte('\n')
	g.comment("data")
	g.labeled(g.cfg.Runtime.BufferLabel, "res %d", g.cfg.Runtime.BufferSize)

	out := sb.String()
	g.log.Debug("emitted program", "lines", strings.Count(out, "\n"), "labels", g.nextLabel, "blocks", len(g.buffers))
	return out
}

// function emits prologue, body and epilogue into the current buffer.
func (g *Generator) function(fs *symtab.Scope) {
	f := fs.Func
	g.fn = fs
	g.exit = g.newLabel("end_" + strings.TrimPrefix(g.Tag(f), "fn_"))
	entry := g.isEntry(f)

	g.comment("%s", f)
	if entry {
		g.comment("frame %d", g.lay.FrameSize(fs))
	} else {
		ra := g.lay.Slot(fs, f, symtab.ReturnAddress)
		g.labeled(g.Tag(f), "sw %d(%s),%s", ra.Offset(), g.sp, g.link)
	}

	body := g.block(f.Body)
	g.out.WriteString(body)

	g.labeled(g.exit, "nop")
	if !entry {
		if f.Return.Kind != ast.Void {
			rv := g.lay.Slot(fs, f, symtab.ReturnValue)
			g.line("addi %s,%s,%d", g.rv, g.sp, rv.Offset())
		}
		ra := g.lay.Slot(fs, f, symtab.ReturnAddress)
		g.line("lw %s,%d(%s)", g.link, ra.Offset(), g.sp)
		g.line("jr %s", g.link)
	}
	g.log.Debug("function", "function", fs.Name, "tag", g.tags[f], "frame", g.lay.FrameSize(fs))
	g.fn = nil
}

// block emits b into its own buffer and returns the text.
func (g *Generator) block(b *ast.Block) string {
	if b == nil {
		return ""
	}
	_, seen := g.buffers[b]
	diag.Assert(!seen, diag.Emit, "block emitted twice")
	buf := &strings.Builder{}
	g.buffers[b] = buf

	prev := g.out
	g.out = buf
	for _, s := range b.Stmts {
		g.stmt(s)
		diag.Assert(g.regs.Live() == 0, diag.Registers, "%d registers live after %s", g.regs.Live(), s)
	}
	g.out = prev
	return buf.String()
}

func (g *Generator) newLabel(prefix string) string {
	g.nextLabel++
	return fmt.Sprintf("%s%d", prefix, g.nextLabel)
}

const labelWidth = 16

func (g *Generator) line(format string, args ...any) {
	fmt.Fprintf(g.out, "%*s%s\n", labelWidth, "", fmt.Sprintf(format, args...))
}

func (g *Generator) labeled(label, format string, args ...any) {
	fmt.Fprintf(g.out, "%-*s %s\n", labelWidth-1, label, fmt.Sprintf(format, args...))
}

func (g *Generator) comment(format string, args ...any) {
	if !g.cfg.Emit.Comments {
		return
	}
	g.line("%% "+format, args...)
}
