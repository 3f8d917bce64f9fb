// Package diag holds the back end's fault model.
//
// The back end assumes its input passed semantic validation, so anything
// that goes wrong inside it is an internal invariant violation rather than
// a user error. Such faults abort the whole compilation with a *Fault panic;
// Catch turns that panic back into an error at the API boundary.
package diag

import (
	"errors"
	"fmt"
)

// Component names the part of the back end that detected a fault.
type Component string

const (
	Layout    Component = "layout"
	Registers Component = "registers"
	Float     Component = "float"
	Emit      Component = "emit"
	Symbols   Component = "symbols"
)

// Fault is an unconditional internal abort.
type Fault struct {
	Component Component
	Msg       string
}

func (f *Fault) Error() string {
	return fmt.Sprintf("internal %s fault: %s", f.Component, f.Msg)
}

// Abortf panics with a *Fault. It never returns.
func Abortf(c Component, format string, args ...any) {
	panic(&Fault{Component: c, Msg: fmt.Sprintf(format, args...)})
}

// Assert aborts with the given message when cond is false.
func Assert(cond bool, c Component, format string, args ...any) {
	if !cond {
		Abortf(c, format, args...)
	}
}

// Catch recovers a *Fault into *err. It must be deferred directly.
// Panics that are not faults are re-raised untouched.
func Catch(err *error) {
	r := recover()
	if r == nil {
		return
	}
	f, ok := r.(*Fault)
	if !ok {
		panic(r)
	}
	*err = f
}

// IsFault reports whether err carries an internal fault.
func IsFault(err error) bool {
	var f *Fault
	return errors.As(err, &f)
}
