package diag

import (
	"fmt"
	"strings"
	"testing"
)

func TestCatchTurnsFaultIntoError(t *testing.T) {
	run := func() (err error) {
		defer Catch(&err)
		Abortf(Layout, "size of %s never resolved", "LINEAR")
		return nil
	}

	err := run()
	if err == nil {
		t.Fatal("expected an error")
	}
	if !IsFault(err) {
		t.Errorf("expected a fault, got %T", err)
	}
	if !strings.Contains(err.Error(), "internal layout fault: size of LINEAR never resolved") {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestCatchRepanicsForeignValues(t *testing.T) {
	defer func() {
		if r := recover(); r != "boom" {
			t.Errorf("expected the original panic value, got %v", r)
		}
	}()

	func() (err error) {
		defer Catch(&err)
		panic("boom")
	}()
}

func TestAssert(t *testing.T) {
	defer func() {
		f, ok := recover().(*Fault)
		if !ok {
			t.Fatal("expected a fault panic")
		}
		if f.Component != Registers {
			t.Errorf("component = %s; want %s", f.Component, Registers)
		}
	}()
	Assert(true, Emit, "never")
	Assert(false, Registers, "pool exhausted")
}

func TestIsFaultWrapped(t *testing.T) {
	err := fmt.Errorf("compile: %w", &Fault{Component: Float, Msg: "multiply"})
	if !IsFault(err) {
		t.Error("wrapped fault not detected")
	}
	if IsFault(fmt.Errorf("plain")) {
		t.Error("plain error reported as a fault")
	}
}
