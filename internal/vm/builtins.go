package vm

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/alekratz/sbl/internal/ir"
	"github.com/alekratz/sbl/internal/runtime"
	"github.com/alekratz/sbl/internal/value"
)

// builtinError formats a typed built-in error ("type mismatch in
// built-in").
func builtinError(name string, format string, args ...interface{}) error {
	return &Error{Msg: fmt.Sprintf("`%s`: %s", name, fmt.Sprintf(format, args...))}
}

func pop2Int(name string, s *runtime.Stack) (int64, int64, error) {
	b, ok := s.Pop()
	if !ok {
		return 0, 0, errUnderflow
	}
	a, ok := s.Pop()
	if !ok {
		return 0, 0, errUnderflow
	}
	if a.Kind != value.Int || b.Kind != value.Int {
		return 0, 0, builtinError(name, "expected two ints, got %s and %s", a.Kind, b.Kind)
	}
	return a.I, b.I, nil
}

func arith(name string, f func(a, b int64) (int64, error)) runtime.BuiltinHook {
	return func(s *runtime.Stack) error {
		a, b, err := pop2Int(name, s)
		if err != nil {
			return err
		}
		r, err := f(a, b)
		if err != nil {
			return builtinError(name, "%s", err)
		}
		s.Push(value.NewInt(r))
		return nil
	}
}

func ordered(name string, f func(a, b int64) bool) runtime.BuiltinHook {
	return func(s *runtime.Stack) error {
		b, ok := s.Pop()
		if !ok {
			return errUnderflow
		}
		a, ok := s.Pop()
		if !ok {
			return errUnderflow
		}
		var ai, bi int64
		switch {
		case a.Kind == value.Int && b.Kind == value.Int:
			ai, bi = a.I, b.I
		case a.Kind == value.Char && b.Kind == value.Char:
			ai, bi = int64(a.C), int64(b.C)
		default:
			return builtinError(name, "ordering applies only to int and char, got %s and %s", a.Kind, b.Kind)
		}
		s.Push(value.NewBool(f(ai, bi)))
		return nil
	}
}

func lenOf(name string, v value.Value) (int64, error) {
	switch v.Kind {
	case value.Stack:
		return int64(len(v.Elts)), nil
	case value.String:
		return int64(len([]rune(v.S))), nil
	default:
		return 0, builtinError(name, "expected a stack or string, got %s", v.Kind)
	}
}

func printVal(w io.Writer, v value.Value, newline bool) {
	fmt.Fprint(w, v.String())
	if newline {
		fmt.Fprintln(w)
	}
}

// Builtins returns the built-in function table, bound to out for print
// built-ins and errOut for debug helpers.
func Builtins(out, errOut io.Writer) map[string]runtime.BuiltinHook {
	return map[string]runtime.BuiltinHook{
		"+": arith("+", func(a, b int64) (int64, error) { return a + b, nil }),
		"-": arith("-", func(a, b int64) (int64, error) { return a - b, nil }),
		"*": arith("*", func(a, b int64) (int64, error) { return a * b, nil }),
		"/": arith("/", func(a, b int64) (int64, error) {
			if b == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			return a / b, nil
		}),
		"|": arith("|", func(a, b int64) (int64, error) {
			if b == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			return a % b, nil
		}),

		"==": func(s *runtime.Stack) error {
			b, ok := s.Pop()
			if !ok {
				return errUnderflow
			}
			a, ok := s.Pop()
			if !ok {
				return errUnderflow
			}
			s.Push(value.NewBool(value.Equal(a, b)))
			return nil
		},
		"!=": func(s *runtime.Stack) error {
			b, ok := s.Pop()
			if !ok {
				return errUnderflow
			}
			a, ok := s.Pop()
			if !ok {
				return errUnderflow
			}
			s.Push(value.NewBool(!value.Equal(a, b)))
			return nil
		},
		"<":  ordered("<", func(a, b int64) bool { return a < b }),
		">":  ordered(">", func(a, b int64) bool { return a > b }),
		"<=": ordered("<=", func(a, b int64) bool { return a <= b }),
		">=": ordered(">=", func(a, b int64) bool { return a >= b }),

		"^": func(s *runtime.Stack) error {
			top, ok := s.Peek()
			if !ok {
				return errUnderflow
			}
			s.Push(top)
			return nil
		},
		"#": func(s *runtime.Stack) error {
			s.Push(value.NewInt(int64(s.Len())))
			return nil
		},

		"^push": func(s *runtime.Stack) error {
			x, ok := s.Pop()
			if !ok {
				return errUnderflow
			}
			if !s.AppendToTop(x) {
				return builtinError("^push", "second-from-top must be a stack")
			}
			return nil
		},
		"^pop": func(s *runtime.Stack) error {
			top, ok := s.Pop()
			if !ok {
				return errUnderflow
			}
			if top.Kind != value.Stack {
				return builtinError("^pop", "expected a stack, got %s", top.Kind)
			}
			if len(top.Elts) == 0 {
				return builtinError("^pop", "cannot pop from an empty stack")
			}
			last := top.Elts[len(top.Elts)-1]
			top.Elts = top.Elts[:len(top.Elts)-1]
			s.Push(top)
			s.Push(last)
			return nil
		},
		"^len": func(s *runtime.Stack) error {
			top, ok := s.Peek()
			if !ok {
				return errUnderflow
			}
			n, err := lenOf("^len", top)
			if err != nil {
				return err
			}
			s.Push(value.NewInt(n))
			return nil
		},
		"!len": func(s *runtime.Stack) error {
			top, ok := s.Pop()
			if !ok {
				return errUnderflow
			}
			n, err := lenOf("!len", top)
			if err != nil {
				return err
			}
			s.Push(value.NewInt(n))
			return nil
		},

		"^print": func(s *runtime.Stack) error {
			top, ok := s.Peek()
			if !ok {
				return errUnderflow
			}
			printVal(out, top, false)
			return nil
		},
		"!print": func(s *runtime.Stack) error {
			top, ok := s.Pop()
			if !ok {
				return errUnderflow
			}
			printVal(out, top, false)
			return nil
		},
		"^println": func(s *runtime.Stack) error {
			top, ok := s.Peek()
			if !ok {
				return errUnderflow
			}
			printVal(out, top, true)
			return nil
		},
		"!println": func(s *runtime.Stack) error {
			top, ok := s.Pop()
			if !ok {
				return errUnderflow
			}
			printVal(out, top, true)
			return nil
		},

		"^dump_stack": func(s *runtime.Stack) error {
			fmt.Fprintln(errOut, "-- stack dump --")
			snap := s.Snapshot()
			for i := len(snap) - 1; i >= 0; i-- {
				fmt.Fprintf(errOut, "  %d: %s\n", i, snap[i].String())
			}
			return nil
		},
		"pause": func(s *runtime.Stack) error {
			fmt.Fprint(errOut, "-- paused, press enter to continue --")
			bufio.NewReader(os.Stdin).ReadString('\n')
			return nil
		},
	}
}

// RegisterBuiltins installs every built-in named in ir.BuiltinNames into
// table as a BuiltinFunc entry.
func RegisterBuiltins(table *runtime.FunTable, out, errOut io.Writer) {
	hooks := Builtins(out, errOut)
	for _, name := range ir.BuiltinNames {
		table.Insert(&runtime.Function{Kind: runtime.BuiltinFunc, Name: name, Hook: hooks[name]})
	}
}
