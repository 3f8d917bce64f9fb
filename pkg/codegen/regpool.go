package codegen

import (
	"fmt"

	"moonc/pkg/diag"
)

// Register is a Moon register id.
type Register int

func (r Register) String() string { return fmt.Sprintf("r%d", int(r)) }

// RegisterPool is a LIFO free list of scratch registers. Ownership is
// exclusive: an acquired register must be released exactly once and is
// never held across a statement boundary or a call.
type RegisterPool struct {
	free    []Register
	held    map[Register]bool
	general map[Register]bool
}

// NewRegisterPool returns a pool over the given general registers. The
// first listed register is handed out first.
func NewRegisterPool(general []int) *RegisterPool {
	p := &RegisterPool{
		held:    make(map[Register]bool),
		general: make(map[Register]bool),
	}
	for i := len(general) - 1; i >= 0; i-- {
		r := Register(general[i])
		p.free = append(p.free, r)
		p.general[r] = true
	}
	return p
}

// Acquire pops a free register. Exhaustion is a back-end fault.
func (p *RegisterPool) Acquire() Register {
	diag.Assert(len(p.free) > 0, diag.Registers, "register pool exhausted (%d held)", len(p.held))
	r := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]
	p.held[r] = true
	return r
}

// Release returns r to the pool.
func (p *RegisterPool) Release(r Register) {
	diag.Assert(p.general[r], diag.Registers, "release of foreign register %s", r)
	diag.Assert(p.held[r], diag.Registers, "double release of %s", r)
	delete(p.held, r)
	p.free = append(p.free, r)
}

// With acquires n registers for the duration of fn.
func (p *RegisterPool) With(n int, fn func(r []Register)) {
	rs := make([]Register, n)
	for i := range rs {
		rs[i] = p.Acquire()
	}
	defer func() {
		for i := len(rs) - 1; i >= 0; i-- {
			p.Release(rs[i])
		}
	}()
	fn(rs)
}

// Live is the number of registers currently held.
func (p *RegisterPool) Live() int { return len(p.held) }

// Cap is the number of registers the pool manages.
func (p *RegisterPool) Cap() int { return len(p.general) }
