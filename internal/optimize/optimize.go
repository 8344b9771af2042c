// Package optimize implements the optimizer pipeline (C7): a fixed-order
// sequence of passes over already-bytecode-compiled user functions. Order
// is load-bearing: INLINE, then STORE, then PUSH_COMPRESS, then
// ABSOLUTE_JUMPS, and must not change.
package optimize

import "github.com/alekratz/sbl/internal/runtime"

// Flags independently enables or disables each pass.
type Flags struct {
	Inline        bool
	Store         bool
	PushCompress  bool
	AbsoluteJumps bool
}

// Default enables every pass, matching the CLI's `-O` default.
func Default() Flags {
	return Flags{Inline: true, Store: true, PushCompress: true, AbsoluteJumps: true}
}

// None disables every pass (the `-O false` CLI setting).
func None() Flags {
	return Flags{}
}

// Run applies every enabled pass to table, in the pipeline's fixed order.
func Run(table *runtime.FunTable, flags Flags) error {
	if flags.Inline {
		Inline(table)
	}
	for _, name := range table.Names() {
		fn, _ := table.Get(name)
		if fn.Kind != runtime.UserFunc {
			continue
		}
		if flags.Store {
			fn.Body = FuseStores(fn.Body)
		}
		if flags.PushCompress {
			fn.Body = CompressPushes(fn.Body)
		}
		if flags.AbsoluteJumps {
			body, err := ResolveJumps(fn.Body)
			if err != nil {
				return err
			}
			fn.Body = body
		}
	}
	return nil
}
