package codegen

import (
	"testing"

	"moonc/pkg/config"
	"moonc/pkg/diag"
)

func newPool() *RegisterPool {
	return NewRegisterPool(config.Default().Registers.General)
}

func expectFault(t *testing.T, fn func()) {
	t.Helper()
	err := func() (err error) {
		defer diag.Catch(&err)
		fn()
		return nil
	}()
	if !diag.IsFault(err) {
		t.Errorf("expected a fault, got %v", err)
	}
}

func TestPoolExhaustion(t *testing.T) {
	p := newPool()
	seen := make(map[Register]bool)
	for i := 0; i < p.Cap(); i++ {
		r := p.Acquire()
		if seen[r] {
			t.Fatalf("%s handed out twice", r)
		}
		if r == 0 || r >= 13 {
			t.Fatalf("reserved register %s handed out", r)
		}
		seen[r] = true
	}
	if p.Live() != 12 {
		t.Errorf("Live() = %d; want 12", p.Live())
	}
	expectFault(t, func() { p.Acquire() })
}

func TestPoolReleaseMakesRegisterAvailable(t *testing.T) {
	p := newPool()
	var held []Register
	for i := 0; i < p.Cap(); i++ {
		held = append(held, p.Acquire())
	}
	p.Release(held[4])
	if r := p.Acquire(); r != held[4] {
		t.Errorf("re-acquired %s; want %s", r, held[4])
	}
}

func TestPoolOrder(t *testing.T) {
	p := newPool()
	if r := p.Acquire(); r != 1 {
		t.Errorf("first register = %s; want r1", r)
	}
	if r := p.Acquire(); r != 2 {
		t.Errorf("second register = %s; want r2", r)
	}
}

func TestPoolMisuse(t *testing.T) {
	t.Run("double release", func(t *testing.T) {
		p := newPool()
		r := p.Acquire()
		p.Release(r)
		expectFault(t, func() { p.Release(r) })
	})
	t.Run("foreign register", func(t *testing.T) {
		p := newPool()
		expectFault(t, func() { p.Release(14) })
	})
}

func TestPoolWith(t *testing.T) {
	p := newPool()
	p.With(3, func(r []Register) {
		if len(r) != 3 || p.Live() != 3 {
			t.Errorf("got %v with %d live", r, p.Live())
		}
	})
	if p.Live() != 0 {
		t.Errorf("Live() = %d after With; want 0", p.Live())
	}
}
