// Package vm implements the stack virtual machine (C8): it executes BC over
// a value stack with a call stack of activation records, dispatching
// built-ins and foreign calls.
package vm

import (
	"fmt"
	"io"
	"os"

	"github.com/alekratz/sbl/internal/bytecode"
	"github.com/alekratz/sbl/internal/ffi"
	"github.com/alekratz/sbl/internal/runtime"
	"github.com/alekratz/sbl/internal/value"
)

// Error is a runtime error: a message and an optional wrapped Cause. It has
// no Range field; where an instruction's location is known it is part of Msg.
type Error struct {
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s", e.Msg, e.Cause)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Cause }

// frame is one activation record: the running function, its program
// counter, and its local-slot vector. A false entry in set means the
// matching slot in locals has not yet been written (Load of it is a runtime
// error).
type frame struct {
	fn     *runtime.Function
	pc     int
	locals []value.Value
	set    []bool
	labels map[int64]int // label id -> instruction index, built lazily
}

func newFrame(fn *runtime.Function) *frame {
	return &frame{
		fn:     fn,
		locals: make([]value.Value, len(fn.Locals)),
		set:    make([]bool, len(fn.Locals)),
	}
}

func (f *frame) labelIndex(id int64) (int, bool) {
	if f.labels == nil {
		f.labels = make(map[int64]int)
		for i, in := range f.fn.Body {
			if in.Kind == bytecode.Label {
				f.labels[in.Val.I] = i
			}
		}
	}
	i, ok := f.labels[id]
	return i, ok
}

// VM holds everything needed to execute a compiled program: the function
// table, the value stack, the call stack, and the FFI bridge's state.
type VM struct {
	Funcs *runtime.FunTable
	Out   io.Writer
	Err   io.Writer

	stack *runtime.Stack
	calls []*frame

	ffi *ffi.Bridge
}

// New builds a VM over a fully-compiled function table.
func New(funcs *runtime.FunTable) *VM {
	return &VM{
		Funcs: funcs,
		Out:   os.Stdout,
		Err:   os.Stderr,
		stack: runtime.NewStack(),
		ffi:   ffi.NewBridge(),
	}
}

// Stack exposes the VM's value stack, e.g. so the bake resolver can read
// back a baked block's results once Run returns.
func (m *VM) Stack() *runtime.Stack { return m.stack }

// Run executes funcName starting from the VM's current value stack, which
// it leaves as-is on success. It terminates when that function's Ret
// unwinds the call stack it pushed: the process terminates when the entry
// function returns.
//
// Before funcName ever runs, Run eagerly loads every foreign function in
// the table: a program that declares a `foreign` block naming a missing
// library or symbol fails here, at startup, rather than the first time
// something happens to call it.
func (m *VM) Run(funcName string) error {
	if err := m.LoadForeignLibraries(); err != nil {
		return err
	}

	fn, ok := m.Funcs.Get(funcName)
	if !ok {
		return &Error{Msg: fmt.Sprintf("unknown function `%s`", funcName)}
	}
	if fn.Kind != runtime.UserFunc {
		return &Error{Msg: fmt.Sprintf("`%s` is not callable as an entry point", funcName)}
	}
	base := len(m.calls)
	m.calls = append(m.calls, newFrame(fn))
	return m.loop(base)
}

// LoadForeignLibraries opens every distinct library named by a ForeignFunc
// entry in the table and resolves every one of its declared symbols,
// caching both in the FFI bridge. Safe to call more than once: Ensure is a
// no-op after a (lib, name) pair's first successful resolution.
func (m *VM) LoadForeignLibraries() error {
	for _, name := range m.Funcs.Names() {
		fn, _ := m.Funcs.Get(name)
		if fn.Kind != runtime.ForeignFunc {
			continue
		}
		if err := m.ffi.Ensure(fn.Lib, fn.Name); err != nil {
			return &Error{Msg: fmt.Sprintf("loading foreign function `%s` from `%s`", fn.Name, fn.Lib), Cause: err}
		}
	}
	return nil
}

// loop executes instructions until the call stack is unwound back down to
// base frames deep: a single loop over an explicit call stack, where Call
// pushes a frame and Ret pops one, so nested calls do not recurse on the
// host stack.
func (m *VM) loop(base int) error {
	for len(m.calls) > base {
		f := m.calls[len(m.calls)-1]
		if f.pc >= len(f.fn.Body) {
			return &Error{Msg: fmt.Sprintf("function `%s` fell off the end of its body without Ret", f.fn.Name)}
		}
		in := f.fn.Body[f.pc]
		if err := m.step(f, in); err != nil {
			return &Error{Msg: fmt.Sprintf("in `%s` at %s", f.fn.Name, in.Range), Cause: err}
		}
	}
	return nil
}

func (m *VM) step(f *frame, in bytecode.Instr) error {
	switch in.Kind {
	case bytecode.Push:
		for _, v := range in.Bundle {
			m.stack.Push(v)
		}
		f.pc++
	case bytecode.PushL:
		x, ok := m.stack.Pop()
		if !ok {
			return errUnderflow
		}
		if !m.stack.AppendToTop(x) {
			return &Error{Msg: "PushL requires a stack on top of the value stack"}
		}
		f.pc++
	case bytecode.Pop:
		v, ok := m.stack.Pop()
		if !ok {
			return errUnderflow
		}
		f.locals[in.Val.I] = v
		f.set[in.Val.I] = true
		f.pc++
	case bytecode.PopN:
		n := int(in.Val.I)
		if !m.stack.DropN(n) {
			return &Error{Msg: fmt.Sprintf("cannot pop %d items: stack underflow", n)}
		}
		f.pc++
	case bytecode.PopDiscard:
		if _, ok := m.stack.Pop(); !ok {
			return errUnderflow
		}
		f.pc++
	case bytecode.Store:
		f.locals[in.Target.I] = in.Val
		f.set[in.Target.I] = true
		f.pc++
	case bytecode.Load:
		if !f.set[in.Val.I] {
			return &Error{Msg: fmt.Sprintf("load of unset local `%s`", f.fn.Locals[in.Val.I])}
		}
		m.stack.Push(f.locals[in.Val.I])
		f.pc++
	case bytecode.Jmp:
		f.pc = int(in.Val.I)
	case bytecode.JmpZ:
		top, ok := m.stack.Peek()
		if !ok {
			return errUnderflow
		}
		if !top.Truthy() {
			f.pc = int(in.Val.I)
		} else {
			f.pc++
		}
	case bytecode.SymJmp:
		idx, ok := f.labelIndex(in.Val.I)
		if !ok {
			return &Error{Msg: "jump targets an unknown label"}
		}
		f.pc = idx
	case bytecode.SymJmpZ:
		top, ok := m.stack.Peek()
		if !ok {
			return errUnderflow
		}
		if !top.Truthy() {
			idx, ok := f.labelIndex(in.Val.I)
			if !ok {
				return &Error{Msg: "jump targets an unknown label"}
			}
			f.pc = idx
		} else {
			f.pc++
		}
	case bytecode.Label, bytecode.Nop:
		f.pc++
	case bytecode.Call:
		f.pc++ // advance now: on return, execution resumes after the call
		return m.call(in.Val.S)
	case bytecode.Ret:
		m.calls = m.calls[:len(m.calls)-1]
	default:
		return &Error{Msg: "unknown opcode"}
	}
	return nil
}

var errUnderflow = &Error{Msg: "stack underflow"}

func (m *VM) call(name string) error {
	fn, ok := m.Funcs.Get(name)
	if !ok {
		return &Error{Msg: fmt.Sprintf("unknown function `%s`", name)}
	}
	switch fn.Kind {
	case runtime.UserFunc:
		m.calls = append(m.calls, newFrame(fn))
		return nil
	case runtime.BuiltinFunc:
		return fn.Hook(m.stack)
	case runtime.ForeignFunc:
		return m.callForeign(fn)
	default:
		return &Error{Msg: "unknown function kind"}
	}
}
