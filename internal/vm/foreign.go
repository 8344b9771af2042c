package vm

import (
	"fmt"

	"github.com/alekratz/sbl/internal/ast"
	"github.com/alekratz/sbl/internal/runtime"
	"github.com/alekratz/sbl/internal/value"
)

// callForeign implements C9: pop one argument per declared parameter
// (in declaration order), type-check each, marshal into the FFI bridge,
// invoke the foreign function, and push its return value unless it is void.
func (m *VM) callForeign(fn *runtime.Function) error {
	if err := m.ffi.Ensure(fn.Lib, fn.Name); err != nil {
		return err
	}

	args := make([]value.Value, len(fn.Params))
	// Pop in declaration order: the first declared parameter is the
	// deepest on the stack, so pop from the end of Params backward.
	for i := len(fn.Params) - 1; i >= 0; i-- {
		v, ok := m.stack.Pop()
		if !ok {
			return errUnderflow
		}
		if !typeMatches(fn.Params[i], v) {
			return fmt.Errorf("argument %d of `%s`: expected %s, got %s", i, fn.Name, fn.Params[i], v.Kind)
		}
		args[i] = v
	}

	result, err := m.ffi.Call(fn.Lib, fn.Name, fn.Return, args)
	if err != nil {
		return err
	}
	if fn.Return != ast.TypeVoid {
		m.stack.Push(result)
	}
	return nil
}

func typeMatches(t ast.TypeTag, v value.Value) bool {
	switch t {
	case ast.TypeInt:
		return v.Kind == value.Int
	case ast.TypeChar:
		return v.Kind == value.Char
	case ast.TypeString:
		return v.Kind == value.String
	case ast.TypeBool:
		return v.Kind == value.Bool
	case ast.TypeVoid:
		return v.Kind == value.Nil
	default:
		return false
	}
}

// LoadForeign registers every foreign declaration so later Call dispatch
// can find its Function entry. This does not itself open the library or
// resolve the symbol; VM.Run's call to LoadForeignLibraries does that
// eagerly for every entry here before the program's entry point executes.
func LoadForeign(table *runtime.FunTable, lib string, fns []ast.ForeignFn) {
	for _, fn := range fns {
		table.Insert(&runtime.Function{
			Kind:   runtime.ForeignFunc,
			Name:   fn.Name,
			Lib:    lib,
			Params: fn.Params,
			Return: fn.Return,
		})
	}
}
