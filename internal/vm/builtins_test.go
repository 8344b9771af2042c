package vm

import (
	"bytes"
	"testing"

	"github.com/alekratz/sbl/internal/runtime"
	"github.com/alekratz/sbl/internal/value"
)

func runHook(t *testing.T, hook runtime.BuiltinHook, in ...value.Value) (*runtime.Stack, error) {
	t.Helper()
	s := runtime.NewStack()
	for _, v := range in {
		s.Push(v)
	}
	err := hook(s)
	return s, err
}

func TestArithBuiltins(t *testing.T) {
	out := &bytes.Buffer{}
	b := Builtins(out, out)
	cases := []struct {
		name string
		a, c int64
		want int64
	}{
		{"+", 2, 3, 5},
		{"-", 5, 3, 2},
		{"*", 4, 3, 12},
		{"/", 10, 3, 3},
		{"|", 10, 3, 1},
	}
	for _, c := range cases {
		s, err := runHook(t, b[c.name], value.NewInt(c.a), value.NewInt(c.c))
		if err != nil {
			t.Fatalf("%s: unexpected error: %s", c.name, err)
		}
		top, _ := s.Peek()
		if top.I != c.want {
			t.Errorf("%s(%d,%d) = %d, want %d", c.name, c.a, c.c, top.I, c.want)
		}
	}
}

func TestDivisionByZeroIsError(t *testing.T) {
	out := &bytes.Buffer{}
	b := Builtins(out, out)
	if _, err := runHook(t, b["/"], value.NewInt(1), value.NewInt(0)); err == nil {
		t.Error("expected division by zero to be an error")
	}
	if _, err := runHook(t, b["|"], value.NewInt(1), value.NewInt(0)); err == nil {
		t.Error("expected modulo by zero to be an error")
	}
}

func TestArithTypeMismatchIsError(t *testing.T) {
	out := &bytes.Buffer{}
	b := Builtins(out, out)
	if _, err := runHook(t, b["+"], value.NewString("a"), value.NewInt(1)); err == nil {
		t.Error("expected a type mismatch error adding a string to an int")
	}
}

func TestEqualityBuiltins(t *testing.T) {
	out := &bytes.Buffer{}
	b := Builtins(out, out)
	s, err := runHook(t, b["=="], value.NewInt(1), value.NewInt(1))
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	top, _ := s.Peek()
	if !top.B {
		t.Error("expected 1 == 1 to be true")
	}

	s, err = runHook(t, b["!="], value.NewInt(1), value.NewString("1"))
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	top, _ = s.Peek()
	if !top.B {
		t.Error("expected Int(1) != String(\"1\") to be true (kind mismatch is never equal)")
	}
}

func TestOrderedComparisonOnChars(t *testing.T) {
	out := &bytes.Buffer{}
	b := Builtins(out, out)
	s, err := runHook(t, b["<"], value.NewChar('a'), value.NewChar('b'))
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	top, _ := s.Peek()
	if !top.B {
		t.Error("expected 'a' < 'b' to be true")
	}
}

func TestDupAndLenBuiltins(t *testing.T) {
	out := &bytes.Buffer{}
	b := Builtins(out, out)

	s, err := runHook(t, b["^"], value.NewInt(4))
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if s.Len() != 2 {
		t.Fatalf("^ should duplicate the top, len = %d", s.Len())
	}

	s, err = runHook(t, b["^len"], value.NewStack([]value.Value{value.NewInt(1), value.NewInt(2)}))
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if s.Len() != 2 {
		t.Fatalf("^len should push without consuming the stack, len = %d", s.Len())
	}
	top, _ := s.Peek()
	if top.I != 2 {
		t.Errorf("^len = %d, want 2", top.I)
	}
}

func TestStackPushPopBuiltins(t *testing.T) {
	out := &bytes.Buffer{}
	b := Builtins(out, out)

	s, err := runHook(t, b["^push"], value.NewStack(nil), value.NewInt(9))
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	top, _ := s.Peek()
	if len(top.Elts) != 1 || top.Elts[0].I != 9 {
		t.Fatalf("^push should append to the underlying stack, got %+v", top)
	}

	s, err = runHook(t, b["^pop"], value.NewStack([]value.Value{value.NewInt(1), value.NewInt(2)}))
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if s.Len() != 2 {
		t.Fatalf("^pop should leave the shortened stack plus the popped element, len = %d", s.Len())
	}
}

func TestPrintlnWritesToOut(t *testing.T) {
	out := &bytes.Buffer{}
	b := Builtins(out, out)
	if _, err := runHook(t, b["!println"], value.NewInt(3)); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if out.String() != "3\n" {
		t.Errorf("!println wrote %q, want %q", out.String(), "3\n")
	}
}

func TestRegisterBuiltinsInsertsEveryBuiltinName(t *testing.T) {
	table := runtime.NewFunTable()
	RegisterBuiltins(table, &bytes.Buffer{}, &bytes.Buffer{})
	fn, ok := table.Get("+")
	if !ok || fn.Kind != runtime.BuiltinFunc {
		t.Fatal("expected `+` to be registered as a BuiltinFunc")
	}
}
