// Package bake implements the bake resolver (C5): it finds every `bake`
// block reachable from the program's functions, runs each one to completion
// on an ephemeral VM, and splices its resulting stack back into the
// enclosing function as literal Push instructions. By the time Resolve
// returns, the IR contains no ir.Bake instruction anywhere.
package bake

import (
	"fmt"
	"io"
	"sort"

	"github.com/alekratz/sbl/internal/ast"
	"github.com/alekratz/sbl/internal/bytecode"
	"github.com/alekratz/sbl/internal/cache"
	"github.com/alekratz/sbl/internal/ir"
	"github.com/alekratz/sbl/internal/runtime"
	"github.com/alekratz/sbl/internal/token"
	"github.com/alekratz/sbl/internal/value"
	"github.com/alekratz/sbl/internal/vm"
)

// Error is a bake-resolution error reporting a cycle in the bake call graph.
// Failures while running a bake block's body are returned as wrapped errors
// instead.
type Error struct {
	Msg string
}

func (e *Error) Error() string { return e.Msg }

// Resolve rewrites every Bake instruction in table, in an order that
// guarantees any user function a bake block calls is already fully resolved
// (and therefore safely callable from the ephemeral VM) by the time that
// call happens. prog supplies the program's `foreign` declarations, which
// must be loaded into the ephemeral function table for bake blocks that call
// foreign functions; resolveLib maps each declaration's raw `lib` name
// through the project's `.sblrc.yaml` alias table before it is registered
// (pass a no-op identity func when there is no alias table to apply).
// bakeCache may be nil, in which case every bake block runs fresh; when
// non-nil, a block whose exact source text was resolved before is served
// from the cache without running the ephemeral VM again: the same bake
// source always yields the same literal sequence.
func Resolve(prog *ast.Program, table *ir.FunTable, out, errOut io.Writer, bakeCache *cache.Cache, resolveLib func(string) string) (*ir.FunTable, error) {
	names := table.Names()
	containsBake := make(map[string]bool, len(names))
	for _, name := range names {
		fn, _ := table.Get(name)
		if hasBake(fn.Body) {
			containsBake[name] = true
		}
	}

	calls := make(map[string][]string, len(names))
	for _, name := range names {
		fn, _ := table.Get(name)
		calls[name] = collectCalls(fn.Body)
	}

	order, err := topoSort(names, containsBake, calls)
	if err != nil {
		return nil, err
	}

	resolved := runtime.NewFunTable()
	vm.RegisterBuiltins(resolved, out, errOut)
	for _, top := range prog.TopLevels {
		if f, ok := top.(*ast.Foreign); ok {
			vm.LoadForeign(resolved, resolveLib(f.Lib), f.Fns)
		}
	}

	newBodies := make(map[string]ir.Body, len(names))

	// Bake-free functions can be bytecode-compiled and registered right
	// away: nothing needs to happen before them.
	for _, name := range names {
		if containsBake[name] {
			continue
		}
		fn, _ := table.Get(name)
		bc, locals, err := bytecode.CompileFunction(fn.Body)
		if err != nil {
			return nil, err
		}
		resolved.Insert(&runtime.Function{Kind: runtime.UserFunc, Name: name, Body: bc, Locals: locals, Range: fn.Range})
		newBodies[name] = fn.Body
	}

	// Bake-containing functions resolve in dependency order, each one
	// registered into resolved as soon as its own body is bake-free, so
	// later functions in order can safely call it.
	for _, name := range order {
		fn, _ := table.Get(name)
		newBody, err := resolveBody(fn.Body, resolved, out, errOut, bakeCache)
		if err != nil {
			return nil, fmt.Errorf("in function `%s`: %w", name, err)
		}
		bc, locals, err := bytecode.CompileFunction(newBody)
		if err != nil {
			return nil, err
		}
		resolved.Insert(&runtime.Function{Kind: runtime.UserFunc, Name: name, Body: bc, Locals: locals, Range: fn.Range})
		newBodies[name] = newBody
	}

	// The returned table keeps the program's original declaration order,
	// independent of the order bake blocks were actually resolved in.
	out2 := ir.NewFunTable()
	for _, name := range names {
		fn, _ := table.Get(name)
		out2.Insert(&ir.Function{Name: name, Body: newBodies[name], Range: fn.Range})
	}

	return out2, nil
}

func hasBake(body ir.Body) bool {
	for _, in := range body {
		if in.Kind == ir.Bake {
			return true
		}
	}
	return false
}

// collectCalls gathers every function name body calls, including calls made
// from inside nested bake blocks (a bake block's dependencies are its
// enclosing function's dependencies too, for ordering purposes).
func collectCalls(body ir.Body) []string {
	var out []string
	for _, in := range body {
		switch in.Kind {
		case ir.Call:
			out = append(out, in.Val.S)
		case ir.Bake:
			out = append(out, collectCalls(in.Body)...)
		}
	}
	return out
}

// topoSort orders the bake-containing functions so that every function
// appears after every other bake-containing function reachable from it via
// calls (possibly through intermediate bake-free functions). It returns an
// error naming the function at which a cycle was detected ("bake call cycle
// detected in function `N`").
func topoSort(names []string, containsBake map[string]bool, calls map[string][]string) ([]string, error) {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(names))
	var order []string

	var visit func(name string) error
	visit = func(name string) error {
		color[name] = gray
		for _, dep := range reachableBakeDeps(name, containsBake, calls) {
			switch color[dep] {
			case white:
				if err := visit(dep); err != nil {
					return err
				}
			case gray:
				return &Error{Msg: fmt.Sprintf("bake call cycle detected in function `%s`", name)}
			}
		}
		color[name] = black
		order = append(order, name)
		return nil
	}

	for _, name := range names {
		if !containsBake[name] {
			continue
		}
		if color[name] == white {
			if err := visit(name); err != nil {
				return nil, err
			}
		}
	}
	return order, nil
}

// reachableBakeDeps returns the bake-containing functions reachable from
// name's direct callees, walking through bake-free intermediaries (which
// need no ordering of their own).
func reachableBakeDeps(name string, containsBake map[string]bool, calls map[string][]string) []string {
	seen := map[string]bool{name: true}
	var deps []string
	var walk func(n string)
	walk = func(n string) {
		for _, callee := range calls[n] {
			if seen[callee] {
				continue
			}
			seen[callee] = true
			if containsBake[callee] {
				deps = append(deps, callee)
			} else {
				walk(callee)
			}
		}
	}
	walk(name)
	sort.Strings(deps)
	return deps
}

// resolveBody replaces every Bake instruction directly in body with the
// literal Push instructions reproducing its result stack, resolving any
// bake block nested inside another bake block first.
func resolveBody(body ir.Body, funcs *runtime.FunTable, out, errOut io.Writer, bakeCache *cache.Cache) (ir.Body, error) {
	result := make(ir.Body, 0, len(body))
	for _, in := range body {
		if in.Kind != ir.Bake {
			result = append(result, in)
			continue
		}
		pushes, err := runBake(in, funcs, out, errOut, bakeCache)
		if err != nil {
			return nil, err
		}
		result = append(result, pushes...)
	}
	return result, nil
}

// runBake resolves one bake block: its own body (with any nested bakes
// resolved first), bytecode-compiled and run to completion as an anonymous
// zero-argument function on a fresh ephemeral VM, starting from an empty
// value stack. Its final stack contents are spliced back as Push
// instructions, bottom to top, so that popping them in order reproduces the
// same stack the bake block left behind.
func runBake(in ir.Instr, funcs *runtime.FunTable, out, errOut io.Writer, bakeCache *cache.Cache) (ir.Body, error) {
	var key string
	if bakeCache != nil {
		key = cache.Key(sourceText(in.Range))
		if cached, ok, err := bakeCache.Lookup(key); err == nil && ok {
			return literalPushes(cached, in.Range), nil
		}
	}

	innerBody, err := resolveBody(in.Body, funcs, out, errOut, bakeCache)
	if err != nil {
		return nil, err
	}

	bc, locals, err := bytecode.CompileFunction(innerBody)
	if err != nil {
		return nil, err
	}
	bc = append(bc, bytecode.Instr{Kind: bytecode.Ret, Range: in.Range})

	anon := fmt.Sprintf("<bake block at %s>", in.Range)
	fn := &runtime.Function{Kind: runtime.UserFunc, Name: anon, Body: bc, Locals: locals, Range: in.Range}

	scratch := runtime.NewFunTable()
	for _, name := range funcs.Names() {
		f, _ := funcs.Get(name)
		scratch.Insert(f)
	}
	scratch.Insert(fn)

	m := vm.New(scratch)
	m.Out = out
	m.Err = errOut
	if err := m.Run(anon); err != nil {
		return nil, fmt.Errorf("running bake block at %s: %w", in.Range, err)
	}

	snapshot := m.Stack().Snapshot()
	if bakeCache != nil {
		if err := bakeCache.Store(key, snapshot); err != nil {
			return nil, fmt.Errorf("caching bake block at %s: %w", in.Range, err)
		}
	}
	return literalPushes(snapshot, in.Range), nil
}

// sourceText extracts the literal source text r spans, used as the bake
// cache's content-addressing input.
func sourceText(r token.Range) string {
	if r.Source == nil || r.Start.Offset < 0 || r.End.Offset > len(r.Source.Text) || r.Start.Offset > r.End.Offset {
		return ""
	}
	return r.Source.Text[r.Start.Offset:r.End.Offset]
}

// literalPushes turns a snapshot of stack values into Push instructions
// that reproduce the same stack, bottom to top, when spliced in place of
// the Bake instruction that produced them.
func literalPushes(vals []value.Value, r token.Range) ir.Body {
	pushes := make(ir.Body, len(vals))
	for i, v := range vals {
		pushes[i] = ir.Instr{Kind: ir.Push, Val: v, Range: r}
	}
	return pushes
}
