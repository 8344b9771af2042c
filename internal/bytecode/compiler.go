package bytecode

import (
	"fmt"
	"sort"

	"github.com/alekratz/sbl/internal/ir"
	"github.com/alekratz/sbl/internal/value"
)

// Error is a bytecode-compilation error.
type Error struct {
	Msg string
}

func (e *Error) Error() string { return e.Msg }

// CompileFunction lowers one IR function body to BC, returning the body and
// its sorted locals vector (the name -> slot-index mapping).
// body must contain no ir.Bake instruction: bake resolution (C5) must have
// already rewritten every Bake node to literal pushes.
func CompileFunction(body ir.Body) ([]Instr, []string, error) {
	locals := collectLocals(body)
	slot := make(map[string]int64, len(locals))
	for i, name := range locals {
		slot[name] = int64(i)
	}

	out := make([]Instr, 0, len(body))
	for _, in := range body {
		instr, err := lowerInstr(in, slot)
		if err != nil {
			return nil, nil, err
		}
		out = append(out, instr)
	}
	return out, locals, nil
}

// collectLocals gathers every distinct name appearing as an ir.Pop target
// (Val.Kind == Ident), sorted lexically: this is the locals vector.
func collectLocals(body ir.Body) []string {
	seen := make(map[string]bool)
	var names []string
	for _, in := range body {
		if in.Kind == ir.Pop && in.Val.Kind == value.Ident {
			if !seen[in.Val.S] {
				seen[in.Val.S] = true
				names = append(names, in.Val.S)
			}
		}
	}
	sort.Strings(names)
	return names
}

func lowerInstr(in ir.Instr, slot map[string]int64) (Instr, error) {
	switch in.Kind {
	case ir.Push:
		return Instr{Kind: Push, Bundle: []value.Value{in.Val}, Range: in.Range}, nil
	case ir.PushL:
		return Instr{Kind: PushL, Range: in.Range}, nil
	case ir.Pop:
		switch in.Val.Kind {
		case value.Ident:
			i, ok := slot[in.Val.S]
			if !ok {
				return Instr{}, &Error{Msg: fmt.Sprintf("undefined local `%s`", in.Val.S)}
			}
			return Instr{Kind: Pop, Val: value.NewAddress(i), Range: in.Range}, nil
		case value.Int:
			return Instr{Kind: PopN, Val: in.Val, Range: in.Range}, nil
		case value.Nil:
			return Instr{Kind: PopDiscard, Range: in.Range}, nil
		default:
			return Instr{}, &Error{Msg: "invalid pop target"}
		}
	case ir.Load:
		i, ok := slot[in.Val.S]
		if !ok {
			return Instr{}, &Error{Msg: fmt.Sprintf("undefined local `%s`", in.Val.S)}
		}
		return Instr{Kind: Load, Val: value.NewAddress(i), Range: in.Range}, nil
	case ir.Jmp:
		return Instr{Kind: SymJmp, Val: in.Val, Range: in.Range}, nil
	case ir.JmpZ:
		return Instr{Kind: SymJmpZ, Val: in.Val, Range: in.Range}, nil
	case ir.Label:
		return Instr{Kind: Label, Val: in.Val, Range: in.Range}, nil
	case ir.Call:
		return Instr{Kind: Call, Val: in.Val, Range: in.Range}, nil
	case ir.Ret:
		return Instr{Kind: Ret, Range: in.Range}, nil
	case ir.Nop:
		return Instr{Kind: Nop, Range: in.Range}, nil
	case ir.Bake:
		return Instr{}, &Error{Msg: "internal error: unresolved bake block reached the bytecode compiler"}
	default:
		return Instr{}, &Error{Msg: "unknown IR instruction kind"}
	}
}
