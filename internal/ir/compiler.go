package ir

import (
	"fmt"

	"github.com/alekratz/sbl/internal/ast"
	"github.com/alekratz/sbl/internal/value"
)

// Error is an IR-compilation error (duplicate definitions, invalid pop
// targets and other malformed statements; unresolved identifiers are
// deferred to runtime).
type Error struct {
	Msg string
}

func (e *Error) Error() string { return e.Msg }

// DeclKind tags what a declared name resolves to, for Push(ident) lowering:
// known names become Call, unknown names become Load.
type DeclKind int

const (
	DeclUser DeclKind = iota
	DeclForeign
	DeclBuiltin
)

// BuiltinNames is the pre-declared set of built-in operator/function names.
// The bytecode compiler and VM own their semantics; the IR compiler only
// needs to know they exist so Push(name) lowers to Call.
var BuiltinNames = []string{
	"+", "-", "*", "/", "|",
	"==", "!=", "<", ">", "<=", ">=",
	"^", "#",
	"^push", "^pop", "^len", "!len",
	"^print", "!print", "^println", "!println",
	"^dump_stack", "pause",
}

// Compile runs C4 over a fully import-resolved ast.Program, producing an IR
// FunTable. Every user function body ends with Ret (invariant 5); Bake
// blocks remain as opaque Bake instructions for C5 to resolve.
func Compile(prog *ast.Program) (*FunTable, error) {
	decls := make(map[string]DeclKind, len(BuiltinNames))
	for _, name := range BuiltinNames {
		decls[name] = DeclBuiltin
	}

	var fundefs []*ast.FunDef
	for _, top := range prog.TopLevels {
		switch t := top.(type) {
		case *ast.FunDef:
			if _, exists := decls[t.Name]; exists {
				return nil, &Error{Msg: fmt.Sprintf("function `%s` has already been defined", t.Name)}
			}
			decls[t.Name] = DeclUser
			fundefs = append(fundefs, t)
		case *ast.Foreign:
			for _, fn := range t.Fns {
				if _, exists := decls[fn.Name]; exists {
					return nil, &Error{Msg: fmt.Sprintf("function `%s` has already been defined", fn.Name)}
				}
				decls[fn.Name] = DeclForeign
			}
		case *ast.Import:
			// import resolution (C3) has already inlined every import by
			// the time C4 runs; any remaining Import node is unreachable.
		}
	}

	table := NewFunTable()
	for _, fd := range fundefs {
		fc := &funCompiler{decls: decls}
		body, err := fc.lowerBlock(fd.Body)
		if err != nil {
			return nil, err
		}
		body = append(body, Instr{Kind: Ret, Range: fd.Range})
		table.Insert(&Function{Name: fd.Name, Body: body, Range: fd.Range})
	}
	return table, nil
}

// funCompiler lowers one function body. labelCounter is local to a single
// (function or bake-block) label namespace.
type funCompiler struct {
	decls        map[string]DeclKind
	labelCounter int
}

func (fc *funCompiler) newLabel() int64 {
	id := int64(fc.labelCounter)
	fc.labelCounter++
	return id
}

func (fc *funCompiler) lowerBlock(block ast.Block) (Body, error) {
	var out Body
	for _, stmt := range block {
		body, err := fc.lowerStmt(stmt)
		if err != nil {
			return nil, err
		}
		out = append(out, body...)
	}
	return out, nil
}

func (fc *funCompiler) lowerStmt(stmt ast.Stmt) (Body, error) {
	switch s := stmt.(type) {
	case *ast.Stack:
		return fc.lowerActions(s.Actions)
	case *ast.Br:
		return fc.lowerBr(s)
	case *ast.Loop:
		return fc.lowerLoop(s)
	case *ast.Bake:
		return fc.lowerBake(s)
	default:
		return nil, &Error{Msg: "unknown statement kind"}
	}
}

func (fc *funCompiler) lowerActions(actions []ast.StackAction) (Body, error) {
	var out Body
	for _, a := range actions {
		if a.Pop {
			instr, err := fc.lowerPop(a.Item)
			if err != nil {
				return nil, err
			}
			out = append(out, instr)
		} else {
			body, err := fc.lowerPush(a.Item)
			if err != nil {
				return nil, err
			}
			out = append(out, body...)
		}
	}
	return out, nil
}

func (fc *funCompiler) lowerPop(item ast.Item) (Instr, error) {
	switch item.Kind {
	case ast.ItemIdent:
		return Instr{Kind: Pop, Val: value.NewIdent(item.Ident), Range: item.Range}, nil
	case ast.ItemInt:
		return Instr{Kind: Pop, Val: value.NewInt(item.Int), Range: item.Range}, nil
	case ast.ItemNil:
		return Instr{Kind: Pop, Val: value.NilValue, Range: item.Range}, nil
	default:
		return Instr{}, &Error{Msg: "invalid pop target: must be a name, an integer, or `@`"}
	}
}

func (fc *funCompiler) lowerPush(item ast.Item) (Body, error) {
	switch item.Kind {
	case ast.ItemIdent:
		if kind, ok := fc.decls[item.Ident]; ok && (kind == DeclUser || kind == DeclForeign || kind == DeclBuiltin) {
			return Body{{Kind: Call, Val: value.NewIdent(item.Ident), Range: item.Range}}, nil
		}
		return Body{{Kind: Load, Val: value.NewIdent(item.Ident), Range: item.Range}}, nil
	case ast.ItemStackLit:
		if isConstItem(item) {
			v, err := constValue(item)
			if err != nil {
				return nil, err
			}
			return Body{{Kind: Push, Val: v, Range: item.Range}}, nil
		}
		out := Body{{Kind: Push, Val: value.NewStack(nil), Range: item.Range}}
		for _, elt := range item.Elts {
			sub, err := fc.lowerPush(elt)
			if err != nil {
				return nil, err
			}
			out = append(out, sub...)
			out = append(out, Instr{Kind: PushL, Range: elt.Range})
		}
		return out, nil
	default:
		v, err := itemLiteral(item)
		if err != nil {
			return nil, err
		}
		return Body{{Kind: Push, Val: v, Range: item.Range}}, nil
	}
}

// isConstItem reports whether item contains no identifiers anywhere, so it
// can be folded to a single literal Value at compile time.
func isConstItem(item ast.Item) bool {
	switch item.Kind {
	case ast.ItemIdent:
		return false
	case ast.ItemStackLit:
		for _, e := range item.Elts {
			if !isConstItem(e) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

func itemLiteral(item ast.Item) (value.Value, error) {
	switch item.Kind {
	case ast.ItemInt:
		return value.NewInt(item.Int), nil
	case ast.ItemChar:
		return value.NewChar(item.Char), nil
	case ast.ItemString:
		return value.NewString(item.String), nil
	case ast.ItemBool:
		return value.NewBool(item.Bool), nil
	case ast.ItemNil:
		return value.NilValue, nil
	default:
		return value.Value{}, &Error{Msg: "item is not a literal"}
	}
}

func constValue(item ast.Item) (value.Value, error) {
	if item.Kind != ast.ItemStackLit {
		return itemLiteral(item)
	}
	elts := make([]value.Value, len(item.Elts))
	for i, e := range item.Elts {
		v, err := constValue(e)
		if err != nil {
			return value.Value{}, err
		}
		elts[i] = v
	}
	return value.NewStack(elts), nil
}

func (fc *funCompiler) lowerBr(br *ast.Br) (Body, error) {
	type clause struct {
		actions []ast.StackAction
		body    ast.Block
	}
	clauses := []clause{{br.Actions, br.Body}}
	for _, e := range br.ElBrs {
		clauses = append(clauses, clause{e.Actions, e.Body})
	}

	end := fc.newLabel()
	var out Body
	for i, c := range clauses {
		isLastOverall := i == len(clauses)-1 && br.El == nil

		actionsBody, err := fc.lowerActions(c.actions)
		if err != nil {
			return nil, err
		}
		out = append(out, actionsBody...)

		var next int64
		if isLastOverall {
			out = append(out, Instr{Kind: JmpZ, Val: value.NewInt(end)})
		} else {
			next = fc.newLabel()
			out = append(out, Instr{Kind: JmpZ, Val: value.NewInt(next)})
		}

		bodyInstrs, err := fc.lowerBlock(c.body)
		if err != nil {
			return nil, err
		}
		out = append(out, bodyInstrs...)

		if !isLastOverall {
			out = append(out, Instr{Kind: Jmp, Val: value.NewInt(end)})
			out = append(out, Instr{Kind: Label, Val: value.NewInt(next)})
		}
	}
	if br.El != nil {
		elBody, err := fc.lowerBlock(br.El.Body)
		if err != nil {
			return nil, err
		}
		out = append(out, elBody...)
	}
	out = append(out, Instr{Kind: Label, Val: value.NewInt(end)})
	return out, nil
}

func (fc *funCompiler) lowerLoop(loop *ast.Loop) (Body, error) {
	head := fc.newLabel()
	exit := fc.newLabel()
	out := Body{{Kind: Label, Val: value.NewInt(head)}}
	actionsBody, err := fc.lowerActions(loop.Actions)
	if err != nil {
		return nil, err
	}
	out = append(out, actionsBody...)
	out = append(out, Instr{Kind: JmpZ, Val: value.NewInt(exit)})
	bodyInstrs, err := fc.lowerBlock(loop.Body)
	if err != nil {
		return nil, err
	}
	out = append(out, bodyInstrs...)
	out = append(out, Instr{Kind: Jmp, Val: value.NewInt(head)})
	out = append(out, Instr{Kind: Label, Val: value.NewInt(exit)})
	return out, nil
}

// lowerBake lowers the bake block's contents in a fresh label namespace
// (its own funCompiler), since it will be installed as an independent
// anonymous function once C5 processes it.
func (fc *funCompiler) lowerBake(bake *ast.Bake) (Body, error) {
	inner := &funCompiler{decls: fc.decls}
	body, err := inner.lowerBlock(bake.Body)
	if err != nil {
		return nil, err
	}
	return Body{{Kind: Bake, Body: body, Range: bake.Range}}, nil
}
