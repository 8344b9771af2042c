package optimize

import (
	"github.com/alekratz/sbl/internal/bytecode"
	"github.com/alekratz/sbl/internal/value"
)

// CompressPushes merges every run of adjacent Push instructions into one,
// concatenating their PushAll bundles. After this pass no two adjacent
// instructions are both Push.
func CompressPushes(body []bytecode.Instr) []bytecode.Instr {
	out := make([]bytecode.Instr, 0, len(body))
	for i := 0; i < len(body); {
		in := body[i]
		if in.Kind != bytecode.Push {
			out = append(out, in)
			i++
			continue
		}

		j := i
		rng := in.Range
		bundle := make([]value.Value, 0, len(in.Bundle))
		for j < len(body) && body[j].Kind == bytecode.Push {
			bundle = append(bundle, body[j].Bundle...)
			rng = rng.Join(body[j].Range)
			j++
		}
		out = append(out, bytecode.Instr{Kind: bytecode.Push, Bundle: bundle, Range: rng})
		i = j
	}
	return out
}
