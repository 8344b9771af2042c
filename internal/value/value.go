// Package value defines SBL's runtime Value type: the tagged union carried
// on the VM's value stack, embedded in bytecode operands, and produced by
// bake-block evaluation.
package value

import (
	"fmt"
	"strings"
)

// Kind tags the variant a Value holds.
type Kind int

const (
	Nil Kind = iota
	Int
	Char
	String
	Bool
	Ident
	Stack
	Address
)

func (k Kind) String() string {
	switch k {
	case Nil:
		return "void"
	case Int:
		return "int"
	case Char:
		return "char"
	case String:
		return "string"
	case Bool:
		return "bool"
	case Ident:
		return "ident"
	case Stack:
		return "stack"
	case Address:
		return "address"
	default:
		return "?"
	}
}

// Value is SBL's tagged runtime value. Exactly one of the typed fields is
// meaningful, selected by Kind. A zero Value is Nil.
//
// Ident only ever appears as an intermediate compile-time tag (an unresolved
// name waiting to become a Call or Load); it must never reach the VM's value
// stack. Address is likewise a compiler-internal variant: a resolved code
// offset or local-slot index, distinct from Int so the two can never be
// confused by an arithmetic built-in.
type Value struct {
	Kind Kind

	I    int64   // Int, Address
	C    rune    // Char
	S    string  // String, Ident
	B    bool    // Bool
	Elts []Value // Stack
}

func NewInt(i int64) Value      { return Value{Kind: Int, I: i} }
func NewChar(c rune) Value      { return Value{Kind: Char, C: c} }
func NewString(s string) Value  { return Value{Kind: String, S: s} }
func NewBool(b bool) Value      { return Value{Kind: Bool, B: b} }
func NewIdent(name string) Value { return Value{Kind: Ident, S: name} }
func NewAddress(i int64) Value  { return Value{Kind: Address, I: i} }
func NewStack(elts []Value) Value {
	if elts == nil {
		elts = []Value{}
	}
	return Value{Kind: Stack, Elts: elts}
}

var NilValue = Value{Kind: Nil}

// Truthy reports whether v counts as "true" for JmpZ: only Bool(false) and
// Nil are falsy; every other value, including Int(0), is truthy.
func (v Value) Truthy() bool {
	switch v.Kind {
	case Bool:
		return v.B
	case Nil:
		return false
	default:
		return true
	}
}

// Equal implements SBL's `==`/`!=` built-ins: equality is defined only
// between values of the same Kind (mismatched kinds are never equal, never
// an error).
func Equal(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case Nil:
		return true
	case Int, Address:
		return a.I == b.I
	case Char:
		return a.C == b.C
	case String, Ident:
		return a.S == b.S
	case Bool:
		return a.B == b.B
	case Stack:
		if len(a.Elts) != len(b.Elts) {
			return false
		}
		for i := range a.Elts {
			if !Equal(a.Elts[i], b.Elts[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func (v Value) String() string {
	switch v.Kind {
	case Nil:
		return "@"
	case Int:
		return fmt.Sprintf("%d", v.I)
	case Address:
		return fmt.Sprintf("&%d", v.I)
	case Char:
		return fmt.Sprintf("'%c'", v.C)
	case String:
		return fmt.Sprintf("%q", v.S)
	case Bool:
		if v.B {
			return "T"
		}
		return "F"
	case Ident:
		return v.S
	case Stack:
		parts := make([]string, len(v.Elts))
		for i, e := range v.Elts {
			parts[i] = e.String()
		}
		return "[" + strings.Join(parts, " ") + "]"
	default:
		return "<?>"
	}
}
