// Package parser implements SBL's recursive-descent parser (C2): tokens to
// AST, with one token of lookahead.
package parser

import (
	"fmt"

	"github.com/alekratz/sbl/internal/ast"
	"github.com/alekratz/sbl/internal/lexer"
	"github.com/alekratz/sbl/internal/token"
)

// Error is a parse error anchored at the token that triggered it.
type Error struct {
	Msg   string
	Range token.Range
}

func (e *Error) Error() string { return e.Msg }

// SourceRange satisfies internal/diag's range-carrying error interface.
func (e *Error) SourceRange() token.Range { return e.Range }

// Parser consumes a token stream and builds an ast.Program.
type Parser struct {
	toks []token.Token
	pos  int
}

// Parse lexes and parses src in one step.
func Parse(src *token.Source) (*ast.Program, error) {
	toks, err := lexer.Lex(src)
	if err != nil {
		return nil, err
	}
	return New(toks).ParseProgram()
}

// New builds a Parser over an already-lexed token stream.
func New(toks []token.Token) *Parser {
	return &Parser{toks: toks}
}

func (p *Parser) cur() token.Token  { return p.toks[p.pos] }
func (p *Parser) atEOF() bool       { return p.cur().Kind == token.EOF }

func (p *Parser) advance() token.Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) check(k token.Kind) bool { return p.cur().Kind == k }

func (p *Parser) expect(k token.Kind) (token.Token, error) {
	if !p.check(k) {
		return token.Token{}, &Error{
			Msg:   fmt.Sprintf("expected %s, found %s", k, p.cur().Kind),
			Range: p.cur().Range,
		}
	}
	return p.advance(), nil
}

// ParseProgram parses every top-level item until EOF.
func (p *Parser) ParseProgram() (*ast.Program, error) {
	prog := &ast.Program{}
	for !p.atEOF() {
		top, err := p.parseTopLevel()
		if err != nil {
			return nil, err
		}
		prog.TopLevels = append(prog.TopLevels, top)
	}
	return prog, nil
}

func (p *Parser) parseTopLevel() (ast.TopLevel, error) {
	switch p.cur().Kind {
	case token.KwImport:
		return p.parseImport()
	case token.KwForeign:
		return p.parseForeign()
	case token.IDENT:
		return p.parseFunDef()
	default:
		return nil, &Error{
			Msg:   fmt.Sprintf("expected import, foreign, or function definition, found %s", p.cur().Kind),
			Range: p.cur().Range,
		}
	}
}

func (p *Parser) parseImport() (ast.TopLevel, error) {
	start := p.advance() // 'import'
	str, err := p.expect(token.STRING)
	if err != nil {
		return nil, err
	}
	return &ast.Import{Path: str.Literal, Range: start.Range.Join(str.Range)}, nil
}

var typeTags = map[string]ast.TypeTag{
	"int":    ast.TypeInt,
	"char":   ast.TypeChar,
	"string": ast.TypeString,
	"bool":   ast.TypeBool,
	"void":   ast.TypeVoid,
}

func (p *Parser) parseTypeTag() (ast.TypeTag, error) {
	t, err := p.expect(token.IDENT)
	if err != nil {
		return 0, err
	}
	tag, ok := typeTags[t.Literal]
	if !ok {
		return 0, &Error{Msg: fmt.Sprintf("unknown type `%s`", t.Literal), Range: t.Range}
	}
	return tag, nil
}

func (p *Parser) parseForeign() (ast.TopLevel, error) {
	start := p.advance() // 'foreign'
	libTok, err := p.expect(token.STRING)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LBRACE); err != nil {
		return nil, err
	}
	var fns []ast.ForeignFn
	for !p.check(token.RBRACE) {
		fnStart := p.cur()
		ret, err := p.parseTypeTag()
		if err != nil {
			return nil, err
		}
		name, err := p.expect(token.IDENT)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.LBRACKET); err != nil {
			return nil, err
		}
		var params []ast.TypeTag
		for !p.check(token.RBRACKET) {
			tag, err := p.parseTypeTag()
			if err != nil {
				return nil, err
			}
			params = append(params, tag)
		}
		end, err := p.expect(token.RBRACKET)
		if err != nil {
			return nil, err
		}
		fns = append(fns, ast.ForeignFn{
			Return: ret,
			Name:   name.Literal,
			Params: params,
			Range:  fnStart.Range.Join(end.Range),
		})
	}
	end, err := p.expect(token.RBRACE)
	if err != nil {
		return nil, err
	}
	return &ast.Foreign{Lib: libTok.Literal, Fns: fns, Range: start.Range.Join(end.Range)}, nil
}

func (p *Parser) parseFunDef() (ast.TopLevel, error) {
	name, err := p.expect(token.IDENT)
	if err != nil {
		return nil, err
	}
	body, bodyRange, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ast.FunDef{Name: name.Literal, Body: body, Range: name.Range.Join(bodyRange)}, nil
}

func (p *Parser) parseBlock() (ast.Block, token.Range, error) {
	start, err := p.expect(token.LBRACE)
	if err != nil {
		return nil, token.Range{}, err
	}
	var stmts ast.Block
	for !p.check(token.RBRACE) {
		if p.atEOF() {
			return nil, token.Range{}, &Error{Msg: "unexpected end of file inside block", Range: p.cur().Range}
		}
		stmt, err := p.parseStmt()
		if err != nil {
			return nil, token.Range{}, err
		}
		stmts = append(stmts, stmt)
	}
	end, err := p.expect(token.RBRACE)
	if err != nil {
		return nil, token.Range{}, err
	}
	return stmts, start.Range.Join(end.Range), nil
}

func (p *Parser) parseStmt() (ast.Stmt, error) {
	switch p.cur().Kind {
	case token.KwBr:
		return p.parseBr()
	case token.KwLoop:
		return p.parseLoop()
	case token.KwBake:
		return p.parseBake()
	default:
		return p.parseStackStmt()
	}
}

// isStmtTerminator reports whether k is a token kind that ends a bare
// stack-action run.
func isStmtTerminator(k token.Kind) bool {
	switch k {
	case token.RBRACE, token.KwBr, token.KwElbr, token.KwEl, token.KwLoop, token.KwBake, token.EOF:
		return true
	default:
		return false
	}
}

func (p *Parser) parseStackStmt() (ast.Stmt, error) {
	start := p.cur()
	var actions []ast.StackAction
	for !isStmtTerminator(p.cur().Kind) {
		action, err := p.parseStackAction()
		if err != nil {
			return nil, err
		}
		actions = append(actions, action)
	}
	if len(actions) == 0 {
		return nil, &Error{Msg: fmt.Sprintf("expected a stack action, found %s", p.cur().Kind), Range: p.cur().Range}
	}
	return &ast.Stack{Actions: actions, Range: start.Range.Join(actions[len(actions)-1].Range)}, nil
}

func (p *Parser) parseStackAction() (ast.StackAction, error) {
	start := p.cur()
	if p.check(token.DOT) {
		p.advance()
		item, err := p.parseItem()
		if err != nil {
			return ast.StackAction{}, err
		}
		return ast.StackAction{Pop: true, Item: item, Range: start.Range.Join(item.Range)}, nil
	}
	item, err := p.parseItem()
	if err != nil {
		return ast.StackAction{}, err
	}
	return ast.StackAction{Pop: false, Item: item, Range: item.Range}, nil
}

func (p *Parser) parseActionsUntilBlock() ([]ast.StackAction, error) {
	var actions []ast.StackAction
	for !p.check(token.LBRACE) {
		if p.atEOF() {
			return nil, &Error{Msg: "unexpected end of file, expected `{`", Range: p.cur().Range}
		}
		action, err := p.parseStackAction()
		if err != nil {
			return nil, err
		}
		actions = append(actions, action)
	}
	return actions, nil
}

func (p *Parser) parseItem() (ast.Item, error) {
	t := p.cur()
	switch t.Kind {
	case token.INT:
		p.advance()
		n, err := parseIntLiteral(t.Literal)
		if err != nil {
			return ast.Item{}, &Error{Msg: err.Error(), Range: t.Range}
		}
		return ast.Item{Kind: ast.ItemInt, Int: n, Range: t.Range}, nil
	case token.CHAR:
		p.advance()
		r := []rune(t.Literal)[0]
		return ast.Item{Kind: ast.ItemChar, Char: r, Range: t.Range}, nil
	case token.STRING:
		p.advance()
		return ast.Item{Kind: ast.ItemString, String: t.Literal, Range: t.Range}, nil
	case token.TRUE:
		p.advance()
		return ast.Item{Kind: ast.ItemBool, Bool: true, Range: t.Range}, nil
	case token.FALSE:
		p.advance()
		return ast.Item{Kind: ast.ItemBool, Bool: false, Range: t.Range}, nil
	case token.AT:
		p.advance()
		return ast.Item{Kind: ast.ItemNil, Range: t.Range}, nil
	case token.IDENT:
		p.advance()
		return ast.Item{Kind: ast.ItemIdent, Ident: t.Literal, Range: t.Range}, nil
	case token.LBRACKET:
		return p.parseStackLit()
	default:
		return ast.Item{}, &Error{Msg: fmt.Sprintf("expected an item, found %s", t.Kind), Range: t.Range}
	}
}

func (p *Parser) parseStackLit() (ast.Item, error) {
	start, err := p.expect(token.LBRACKET)
	if err != nil {
		return ast.Item{}, err
	}
	var elts []ast.Item
	for !p.check(token.RBRACKET) {
		if p.atEOF() {
			return ast.Item{}, &Error{Msg: "unexpected end of file, expected `]`", Range: p.cur().Range}
		}
		item, err := p.parseItem()
		if err != nil {
			return ast.Item{}, err
		}
		elts = append(elts, item)
	}
	end, err := p.expect(token.RBRACKET)
	if err != nil {
		return ast.Item{}, err
	}
	return ast.Item{Kind: ast.ItemStackLit, Elts: elts, Range: start.Range.Join(end.Range)}, nil
}

func (p *Parser) parseBr() (ast.Stmt, error) {
	start := p.advance() // 'br'
	actions, err := p.parseActionsUntilBlock()
	if err != nil {
		return nil, err
	}
	body, bodyRange, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	last := bodyRange
	var elbrs []ast.ElBr
	for p.check(token.KwElbr) {
		p.advance()
		eActions, err := p.parseActionsUntilBlock()
		if err != nil {
			return nil, err
		}
		eBody, eRange, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		elbrs = append(elbrs, ast.ElBr{Actions: eActions, Body: eBody, Range: eRange})
		last = eRange
	}
	var el *ast.El
	if p.check(token.KwEl) {
		elStart := p.advance()
		elBody, elRange, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		el = &ast.El{Body: elBody, Range: elStart.Range.Join(elRange)}
		last = el.Range
	}
	return &ast.Br{Actions: actions, Body: body, ElBrs: elbrs, El: el, Range: start.Range.Join(last)}, nil
}

func (p *Parser) parseLoop() (ast.Stmt, error) {
	start := p.advance() // 'loop'
	actions, err := p.parseActionsUntilBlock()
	if err != nil {
		return nil, err
	}
	body, bodyRange, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ast.Loop{Actions: actions, Body: body, Range: start.Range.Join(bodyRange)}, nil
}

func (p *Parser) parseBake() (ast.Stmt, error) {
	start := p.advance() // 'bake'
	body, bodyRange, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ast.Bake{Body: body, Range: start.Range.Join(bodyRange)}, nil
}
