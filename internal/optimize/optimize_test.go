package optimize

import (
	"testing"

	"github.com/alekratz/sbl/internal/bytecode"
	"github.com/alekratz/sbl/internal/runtime"
	"github.com/alekratz/sbl/internal/value"
)

func TestRunNoneLeavesBodyUntouched(t *testing.T) {
	table := runtime.NewFunTable()
	body := []bytecode.Instr{
		{Kind: bytecode.Push, Bundle: []value.Value{value.NewInt(1)}},
		{Kind: bytecode.Pop, Val: value.NewAddress(0)},
		{Kind: bytecode.Ret},
	}
	table.Insert(&runtime.Function{Kind: runtime.UserFunc, Name: "main", Body: body})

	if err := Run(table, None()); err != nil {
		t.Fatalf("Run failed: %s", err)
	}
	fn, _ := table.Get("main")
	if len(fn.Body) != 3 || fn.Body[0].Kind != bytecode.Push {
		t.Errorf("None() should disable every pass, got %+v", fn.Body)
	}
}

func TestRunDefaultAppliesStoreThenPushCompressThenAbsoluteJumps(t *testing.T) {
	table := runtime.NewFunTable()
	body := []bytecode.Instr{
		{Kind: bytecode.Push, Bundle: []value.Value{value.NewInt(1)}},
		{Kind: bytecode.Pop, Val: value.NewAddress(0)},
		{Kind: bytecode.SymJmp, Val: value.NewInt(0)},
		{Kind: bytecode.Label, Val: value.NewInt(0)},
		{Kind: bytecode.Ret},
	}
	table.Insert(&runtime.Function{Kind: runtime.UserFunc, Name: "main", Body: body})

	if err := Run(table, Default()); err != nil {
		t.Fatalf("Run failed: %s", err)
	}
	fn, _ := table.Get("main")
	for _, in := range fn.Body {
		if in.Kind == bytecode.Label {
			t.Fatalf("ABSOLUTE_JUMPS should have removed every Label, got %+v", fn.Body)
		}
		if in.Kind == bytecode.SymJmp {
			t.Fatalf("ABSOLUTE_JUMPS should have resolved every SymJmp, got %+v", fn.Body)
		}
	}
	if fn.Body[0].Kind != bytecode.Store {
		t.Errorf("STORE should fuse the leading Push+Pop, got %+v", fn.Body[0])
	}
}

func TestRunSkipsNonUserFunctions(t *testing.T) {
	table := runtime.NewFunTable()
	called := false
	table.Insert(&runtime.Function{
		Kind: runtime.BuiltinFunc, Name: "+",
		Hook: func(s *runtime.Stack) error { called = true; return nil },
	})
	if err := Run(table, Default()); err != nil {
		t.Fatalf("Run failed: %s", err)
	}
	if called {
		t.Error("Run must never invoke a built-in's hook")
	}
}
