package runtime

import (
	"testing"

	"github.com/alekratz/sbl/internal/value"
)

func TestStackPushPopOrder(t *testing.T) {
	s := NewStack()
	s.Push(value.NewInt(1))
	s.Push(value.NewInt(2))
	top, ok := s.Pop()
	if !ok || top.I != 2 {
		t.Fatalf("Pop() = %+v, %v; want Int(2), true", top, ok)
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}

func TestStackPopEmptyIsNotOK(t *testing.T) {
	s := NewStack()
	if _, ok := s.Pop(); ok {
		t.Error("Pop() on an empty stack should report ok = false")
	}
}

func TestStackPeekDoesNotRemove(t *testing.T) {
	s := NewStack()
	s.Push(value.NewInt(5))
	v, ok := s.Peek()
	if !ok || v.I != 5 {
		t.Fatalf("Peek() = %+v, %v", v, ok)
	}
	if s.Len() != 1 {
		t.Error("Peek() must not remove the value")
	}
}

func TestStackPeekAtDepth(t *testing.T) {
	s := NewStack()
	s.Push(value.NewInt(1))
	s.Push(value.NewInt(2))
	s.Push(value.NewInt(3))
	v, ok := s.PeekAt(1)
	if !ok || v.I != 2 {
		t.Fatalf("PeekAt(1) = %+v, %v; want Int(2), true", v, ok)
	}
	if _, ok := s.PeekAt(5); ok {
		t.Error("PeekAt beyond the stack depth should report ok = false")
	}
}

func TestStackAppendToTopRequiresStackValue(t *testing.T) {
	s := NewStack()
	s.Push(value.NewStack(nil))
	if !s.AppendToTop(value.NewInt(1)) {
		t.Fatal("AppendToTop should succeed when the top is a Stack value")
	}
	top, _ := s.Peek()
	if len(top.Elts) != 1 || top.Elts[0].I != 1 {
		t.Errorf("unexpected top after AppendToTop: %+v", top)
	}

	s2 := NewStack()
	s2.Push(value.NewInt(9))
	if s2.AppendToTop(value.NewInt(1)) {
		t.Error("AppendToTop should fail when the top is not a Stack value")
	}
}

func TestStackDropN(t *testing.T) {
	s := NewStack()
	s.Push(value.NewInt(1))
	s.Push(value.NewInt(2))
	s.Push(value.NewInt(3))
	if !s.DropN(2) {
		t.Fatal("DropN(2) should succeed on a 3-deep stack")
	}
	if s.Len() != 1 {
		t.Errorf("Len() after DropN(2) = %d, want 1", s.Len())
	}
	if s.DropN(-1) {
		t.Error("DropN(-1) should fail")
	}
	if s.DropN(5) {
		t.Error("DropN beyond stack depth should fail")
	}
}

func TestStackSnapshotIsBottomToTopCopy(t *testing.T) {
	s := NewStack()
	s.Push(value.NewInt(1))
	s.Push(value.NewInt(2))
	snap := s.Snapshot()
	if len(snap) != 2 || snap[0].I != 1 || snap[1].I != 2 {
		t.Fatalf("Snapshot() = %+v", snap)
	}
	snap[0] = value.NewInt(99)
	if v, _ := s.PeekAt(1); v.I == 99 {
		t.Error("Snapshot() must return a copy, not a view into the live stack")
	}
}

func TestFunTablePreservesInsertionOrderAndReinsertKeepsPosition(t *testing.T) {
	table := NewFunTable()
	table.Insert(&Function{Name: "c"})
	table.Insert(&Function{Name: "a"})
	table.Insert(&Function{Name: "c"})

	got := table.Names()
	want := []string{"c", "a"}
	if len(got) != len(want) {
		t.Fatalf("Names() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Names()[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	fn, ok := table.Get("c")
	if !ok || fn.Name != "c" {
		t.Fatalf("Get(c) = %+v, %v", fn, ok)
	}
}
