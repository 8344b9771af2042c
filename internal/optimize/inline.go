package optimize

import (
	"github.com/alekratz/sbl/internal/bytecode"
	"github.com/alekratz/sbl/internal/runtime"
	"github.com/alekratz/sbl/internal/value"
)

// Inline identifies inlinable user functions — every user function other
// than `main` whose body contains no Call — and replaces every Call
// targeting one with that callee's body (minus its trailing Ret), spliced
// in place. Labels are renumbered on inline so no two labels collide in the
// combined body.
func Inline(table *runtime.FunTable) {
	inlinable := make(map[string][]bytecode.Instr)
	for _, name := range table.Names() {
		fn, _ := table.Get(name)
		if fn.Kind != runtime.UserFunc || name == "main" {
			continue
		}
		if !containsCall(fn.Body) {
			inlinable[name] = fn.Body
		}
	}
	if len(inlinable) == 0 {
		return
	}

	next := maxLabelID(table) + 1
	for _, name := range table.Names() {
		fn, _ := table.Get(name)
		if fn.Kind != runtime.UserFunc {
			continue
		}
		fn.Body = inlineBody(fn.Body, inlinable, &next)
	}
}

func containsCall(body []bytecode.Instr) bool {
	for _, in := range body {
		if in.Kind == bytecode.Call {
			return true
		}
	}
	return false
}

func isLabelKind(k bytecode.Kind) bool {
	return k == bytecode.Label || k == bytecode.SymJmp || k == bytecode.SymJmpZ
}

func maxLabelID(table *runtime.FunTable) int64 {
	var max int64 = -1
	for _, name := range table.Names() {
		fn, _ := table.Get(name)
		if fn.Kind != runtime.UserFunc {
			continue
		}
		for _, in := range fn.Body {
			if isLabelKind(in.Kind) && in.Val.I > max {
				max = in.Val.I
			}
		}
	}
	return max
}

func inlineBody(body []bytecode.Instr, inlinable map[string][]bytecode.Instr, next *int64) []bytecode.Instr {
	out := make([]bytecode.Instr, 0, len(body))
	for _, in := range body {
		callee, ok := inlinable[in.Val.S]
		if in.Kind != bytecode.Call || !ok {
			out = append(out, in)
			continue
		}
		out = append(out, spliceCallee(callee, next)...)
	}
	return out
}

// spliceCallee returns callee's body minus its trailing Ret, with every
// label id remapped to a fresh, globally-unique id.
func spliceCallee(callee []bytecode.Instr, next *int64) []bytecode.Instr {
	body := callee
	if len(body) > 0 && body[len(body)-1].Kind == bytecode.Ret {
		body = body[:len(body)-1]
	}

	remap := make(map[int64]int64)
	for _, in := range body {
		if isLabelKind(in.Kind) {
			if _, seen := remap[in.Val.I]; !seen {
				remap[in.Val.I] = *next
				*next++
			}
		}
	}

	out := make([]bytecode.Instr, len(body))
	for i, in := range body {
		if isLabelKind(in.Kind) {
			in.Val = value.NewInt(remap[in.Val.I])
		}
		out[i] = in
	}
	return out
}
