// Package resolve implements the import resolver (C3): it inlines every
// `import` top-level into a single merged ast.Program.
package resolve

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/alekratz/sbl/internal/ast"
	"github.com/alekratz/sbl/internal/parser"
	"github.com/alekratz/sbl/internal/token"
)

// Error wraps an import-resolution failure with the importing Range.
type Error struct {
	Msg   string
	Range token.Range
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s", e.Msg, e.Cause)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Cause }

// SourceRange satisfies internal/diag's range-carrying error interface.
func (e *Error) SourceRange() token.Range { return e.Range }

// Resolver inlines imports, searching the importing file's own directory
// first and then each entry of SearchPaths in order.
type Resolver struct {
	SearchPaths []string
	ReadFile    func(path string) (string, error) // overridable for tests
	Exists      func(path string) bool            // overridable for tests

	visited map[string]bool // absolute paths already inlined (import is idempotent)
}

// New builds a Resolver with the given additional search paths (e.g. from
// SBL_PATH).
func New(searchPaths []string) *Resolver {
	return &Resolver{
		SearchPaths: searchPaths,
		ReadFile: func(path string) (string, error) {
			b, err := os.ReadFile(path)
			return string(b), err
		},
		Exists: func(path string) bool {
			_, err := os.Stat(path)
			return err == nil
		},
		visited: make(map[string]bool),
	}
}

// Resolve parses mainPath and recursively inlines its imports, returning one
// merged Program.
func (r *Resolver) Resolve(mainPath string) (*ast.Program, error) {
	abs, err := filepath.Abs(mainPath)
	if err != nil {
		return nil, err
	}
	prog, err := r.parseFile(abs)
	if err != nil {
		return nil, err
	}
	r.visited[abs] = true
	return r.resolveProgram(prog, filepath.Dir(abs))
}

func (r *Resolver) parseFile(path string) (*ast.Program, error) {
	text, err := r.ReadFile(path)
	if err != nil {
		return nil, &Error{Msg: fmt.Sprintf("could not read `%s`", path), Cause: err}
	}
	src := &token.Source{Path: path, Text: text}
	prog, err := parser.Parse(src)
	if err != nil {
		return nil, &Error{Msg: fmt.Sprintf("could not parse `%s`", path), Cause: err}
	}
	return prog, nil
}

func (r *Resolver) resolveProgram(prog *ast.Program, baseDir string) (*ast.Program, error) {
	out := &ast.Program{}
	for _, top := range prog.TopLevels {
		imp, ok := top.(*ast.Import)
		if !ok {
			out.TopLevels = append(out.TopLevels, top)
			continue
		}
		resolved, err := r.resolveImport(imp, baseDir)
		if err != nil {
			return nil, err
		}
		out.TopLevels = append(out.TopLevels, resolved...)
	}
	return out, nil
}

// resolveImport locates imp.Path, parses it if not already visited, and
// recursively inlines its own imports. Re-importing an already-visited path
// is treated as a no-op: it contributes no further top-levels (import is
// idempotent), so duplicate-definition checks later in the IR compiler
// never see spurious duplicates from the same file.
func (r *Resolver) resolveImport(imp *ast.Import, baseDir string) ([]ast.TopLevel, error) {
	path, err := r.find(imp.Path, baseDir)
	if err != nil {
		return nil, &Error{Msg: fmt.Sprintf("could not resolve import `%s`", imp.Path), Range: imp.Range, Cause: err}
	}
	if r.visited[path] {
		return nil, nil
	}
	r.visited[path] = true

	prog, err := r.parseFile(path)
	if err != nil {
		return nil, err
	}
	resolved, err := r.resolveProgram(prog, filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	return resolved.TopLevels, nil
}

// find looks for name first in baseDir, then in each SearchPaths entry, in
// order; the first hit wins.
func (r *Resolver) find(name, baseDir string) (string, error) {
	candidates := append([]string{baseDir}, r.SearchPaths...)
	for _, dir := range candidates {
		full := filepath.Join(dir, name)
		if r.Exists(full) {
			abs, err := filepath.Abs(full)
			if err != nil {
				return "", err
			}
			return abs, nil
		}
	}
	return "", fmt.Errorf("file not found on any search path: %s", name)
}
