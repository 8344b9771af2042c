// Package ast defines SBL's abstract syntax tree, as produced by the parser
// (internal/parser) and consumed by the import resolver (internal/resolve)
// and the IR compiler (internal/ir).
package ast

import "github.com/alekratz/sbl/internal/token"

// TopLevel is one of Import, Foreign, or FunDef.
type TopLevel interface {
	topLevel()
}

// Import is `import STRING`.
type Import struct {
	Path  string
	Range token.Range
}

func (*Import) topLevel() {}

// TypeTag names a foreign function parameter or return type.
type TypeTag int

const (
	TypeInt TypeTag = iota
	TypeChar
	TypeString
	TypeBool
	TypeVoid
)

func (t TypeTag) String() string {
	switch t {
	case TypeInt:
		return "int"
	case TypeChar:
		return "char"
	case TypeString:
		return "string"
	case TypeBool:
		return "bool"
	case TypeVoid:
		return "void"
	default:
		return "?"
	}
}

// ForeignFn is one `TYPE IDENT [ TYPE* ]` declaration inside a `foreign` block.
type ForeignFn struct {
	Return TypeTag
	Name   string
	Params []TypeTag
	Range  token.Range
}

// Foreign is `foreign STRING { ForeignFn* }`.
type Foreign struct {
	Lib   string
	Fns   []ForeignFn
	Range token.Range
}

func (*Foreign) topLevel() {}

// FunDef is `IDENT Block`.
type FunDef struct {
	Name  string
	Body  Block
	Range token.Range
}

func (*FunDef) topLevel() {}

// Block is `{ Stmt* }`.
type Block []Stmt

// Stmt is one of Stack, Br, Loop, Bake.
type Stmt interface {
	stmt()
}

// Stack is a run of stack actions (pushes/pops) with no control flow.
type Stack struct {
	Actions []StackAction
	Range   token.Range
}

func (*Stack) stmt() {}

// ElBr is one `elbr action* Block` clause of a Br.
type ElBr struct {
	Actions []StackAction
	Body    Block
	Range   token.Range
}

// El is the trailing `el Block` clause of a Br, if present.
type El struct {
	Body  Block
	Range token.Range
}

// Br is `br action* Block ElBr* El?`.
type Br struct {
	Actions []StackAction
	Body    Block
	ElBrs   []ElBr
	El      *El
	Range   token.Range
}

func (*Br) stmt() {}

// Loop is `loop action* Block`.
type Loop struct {
	Actions []StackAction
	Body    Block
	Range   token.Range
}

func (*Loop) stmt() {}

// Bake is `bake Block`: the block executes at compile time.
type Bake struct {
	Body  Block
	Range token.Range
}

func (*Bake) stmt() {}

// StackAction is either a Push or a Pop of an Item.
type StackAction struct {
	Pop   bool
	Item  Item
	Range token.Range
}

// ItemKind tags the syntactic category of an Item.
type ItemKind int

const (
	ItemInt ItemKind = iota
	ItemChar
	ItemString
	ItemBool
	ItemNil // @
	ItemIdent
	ItemStackLit // [ Item* ]
)

// Item is an atomic syntactic value: a literal, an identifier, the nil
// sigil, or a nested stack literal.
type Item struct {
	Kind   ItemKind
	Int    int64
	Char   rune
	String string
	Bool   bool
	Ident  string
	Elts   []Item // ItemStackLit
	Range  token.Range
}

// Program is a fully-parsed (but not yet import-resolved) compilation unit.
type Program struct {
	TopLevels []TopLevel
}
