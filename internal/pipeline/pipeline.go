// Package pipeline wires the nine compilation/execution stages (C1-C9) into
// the single entry point the CLI (cmd/sbl) drives: lex and parse, resolve
// imports, compile to IR, resolve bake blocks, compile to bytecode, run the
// optimizer pipeline, and execute on the VM.
package pipeline

import (
	"fmt"
	"io"

	"github.com/alekratz/sbl/internal/ast"
	"github.com/alekratz/sbl/internal/bake"
	"github.com/alekratz/sbl/internal/bytecode"
	"github.com/alekratz/sbl/internal/cache"
	"github.com/alekratz/sbl/internal/config"
	"github.com/alekratz/sbl/internal/ir"
	"github.com/alekratz/sbl/internal/optimize"
	"github.com/alekratz/sbl/internal/resolve"
	"github.com/alekratz/sbl/internal/runtime"
	"github.com/alekratz/sbl/internal/vm"
)

// Options holds the import search paths, the optimizer passes to apply
// (the CLI's `-O` flag), the output writers, and the optional bake cache and
// project config.
type Options struct {
	SearchPaths []string
	Optimize    optimize.Flags
	Out         io.Writer
	Err         io.Writer

	// BakeCache, if non-nil, lets Compile skip re-running bake blocks whose
	// source text was already resolved in a previous process.
	BakeCache *cache.Cache

	// Config, if non-nil, supplies the project's `.sblrc.yaml` settings;
	// currently only its `ffi.libs` alias table is consulted, to resolve a
	// `foreign` block's declared library name before it is loaded.
	Config *config.Config
}

// resolveLib returns opts.Config's library-alias resolver, or the identity
// function when no Config was supplied.
func (opts Options) resolveLib() func(string) string {
	if opts.Config == nil {
		return func(name string) string { return name }
	}
	return opts.Config.ResolveLib
}

// Result holds every intermediate artifact a caller might want (the CLI's
// `--dump`/`--compile` flags inspect Table; `Run` only needs it to build a
// VM).
type Result struct {
	Table *runtime.FunTable
}

// Compile runs C1 through C7 over the program rooted at mainPath, returning
// a fully bytecode-compiled, optimized function table ready to execute.
func Compile(mainPath string, opts Options) (*Result, error) {
	resolver := resolve.New(opts.SearchPaths)
	prog, err := resolver.Resolve(mainPath)
	if err != nil {
		return nil, fmt.Errorf("resolving imports: %w", err)
	}

	irTable, err := ir.Compile(prog)
	if err != nil {
		return nil, fmt.Errorf("compiling to IR: %w", err)
	}

	resolveLib := opts.resolveLib()
	bakedTable, err := bake.Resolve(prog, irTable, opts.Out, opts.Err, opts.BakeCache, resolveLib)
	if err != nil {
		return nil, fmt.Errorf("resolving bake blocks: %w", err)
	}

	table := runtime.NewFunTable()
	vm.RegisterBuiltins(table, opts.Out, opts.Err)
	for _, top := range prog.TopLevels {
		if f, ok := top.(*ast.Foreign); ok {
			vm.LoadForeign(table, resolveLib(f.Lib), f.Fns)
		}
	}

	for _, name := range bakedTable.Names() {
		fn, _ := bakedTable.Get(name)
		bc, locals, err := bytecode.CompileFunction(fn.Body)
		if err != nil {
			return nil, fmt.Errorf("compiling `%s` to bytecode: %w", name, err)
		}
		table.Insert(&runtime.Function{Kind: runtime.UserFunc, Name: name, Body: bc, Locals: locals, Range: fn.Range})
	}

	if err := optimize.Run(table, opts.Optimize); err != nil {
		return nil, fmt.Errorf("optimizing: %w", err)
	}

	return &Result{Table: table}, nil
}

// Run compiles mainPath and executes its `main` function to completion.
func Run(mainPath string, opts Options) error {
	result, err := Compile(mainPath, opts)
	if err != nil {
		return err
	}
	m := vm.New(result.Table)
	if opts.Out != nil {
		m.Out = opts.Out
	}
	if opts.Err != nil {
		m.Err = opts.Err
	}
	return m.Run("main")
}
