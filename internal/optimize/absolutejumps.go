package optimize

import (
	"fmt"

	"github.com/alekratz/sbl/internal/bytecode"
	"github.com/alekratz/sbl/internal/value"
)

// Error reports an unresolvable symbolic jump target.
type Error struct {
	Msg string
}

func (e *Error) Error() string { return e.Msg }

// ResolveJumps drops every Label instruction and rewrites SymJmp/SymJmpZ into
// Jmp/JmpZ carrying the resolved instruction-address Address payload (spec
// §4.7, ABSOLUTE_JUMPS — the final pass, since it depends on PUSH_COMPRESS
// having already settled instruction addresses).
func ResolveJumps(body []bytecode.Instr) ([]bytecode.Instr, error) {
	labelAddr := make(map[int64]int64)
	removed := 0
	for i, in := range body {
		if in.Kind == bytecode.Label {
			labelAddr[in.Val.I] = int64(i - removed)
			removed++
		}
	}

	out := make([]bytecode.Instr, 0, len(body)-removed)
	for _, in := range body {
		switch in.Kind {
		case bytecode.Label:
			continue
		case bytecode.SymJmp, bytecode.SymJmpZ:
			addr, ok := labelAddr[in.Val.I]
			if !ok {
				return nil, &Error{Msg: fmt.Sprintf("unresolved label %d at %s", in.Val.I, in.Range.String())}
			}
			kind := bytecode.Jmp
			if in.Kind == bytecode.SymJmpZ {
				kind = bytecode.JmpZ
			}
			out = append(out, bytecode.Instr{Kind: kind, Val: value.NewAddress(addr), Range: in.Range})
		default:
			out = append(out, in)
		}
	}
	return out, nil
}
