package optimize

import "github.com/alekratz/sbl/internal/bytecode"

// FuseStores fuses a single-element Push immediately followed by a plain
// Pop (local-slot write) into one Store instruction. Must run before
// CompressPushes, since a fused Push bundle of size 1 is exactly what this
// pass looks for.
func FuseStores(body []bytecode.Instr) []bytecode.Instr {
	out := make([]bytecode.Instr, 0, len(body))
	for i := 0; i < len(body); i++ {
		in := body[i]
		if in.Kind == bytecode.Push && len(in.Bundle) == 1 && i+1 < len(body) && body[i+1].Kind == bytecode.Pop {
			next := body[i+1]
			out = append(out, bytecode.Instr{
				Kind:   bytecode.Store,
				Target: next.Val,
				Val:    in.Bundle[0],
				Range:  in.Range.Join(next.Range),
			})
			i++
			continue
		}
		out = append(out, in)
	}
	return out
}
