// Package compiler drives the back end.
//
// Pipeline: YAML AST → symtab.Build → layout.Resolve → codegen → Moon
// assembly text, optionally assembled and run on the Moon machine.
package compiler
