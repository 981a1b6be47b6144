package engine

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ---------------------------------------------------------------------------
// Parser: recursive descent with operator precedence
// ---------------------------------------------------------------------------

// ParseError describes malformed source. Incomplete is set when the input
// ended before the expression did, so more lines may complete it.
type ParseError struct {
	Pos        Position
	Msg        string
	Incomplete bool
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Pos.Line, e.Pos.Column, e.Msg)
}

// IsIncomplete reports whether err is a parse error caused by truncated input.
func IsIncomplete(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe) && pe.Incomplete
}

// Operator binding powers, lowest first.
const (
	precLowest = iota
	precEqAssign
	precLeftAssign
	precRightAssign
	precTilde
	precOr
	precAnd
	precNot
	precCompare
	precSum
	precProduct
	precSpecial
	precRange
	precUnary
	precPower
	precPostfix
	precNamespace
)

type opInfo struct {
	prec  int
	right bool
}

var binaryOps = map[string]opInfo{
	"=":   {precEqAssign, true},
	"<-":  {precLeftAssign, true},
	"<<-": {precLeftAssign, true},
	"->":  {precRightAssign, false},
	"->>": {precRightAssign, false},
	"~":   {precTilde, false},
	"||":  {precOr, false},
	"|":   {precOr, false},
	"&&":  {precAnd, false},
	"&":   {precAnd, false},
	"==":  {precCompare, false},
	"!=":  {precCompare, false},
	"<":   {precCompare, false},
	">":   {precCompare, false},
	"<=":  {precCompare, false},
	">=":  {precCompare, false},
	"+":   {precSum, false},
	"-":   {precSum, false},
	"*":   {precProduct, false},
	"/":   {precProduct, false},
	"|>":  {precSpecial, false},
	":":   {precRange, false},
	"^":   {precPower, true},
	"$":   {precPostfix, false},
	"@":   {precPostfix, false},
	"::":  {precNamespace, false},
}

func infixInfo(op string) (opInfo, bool) {
	if strings.HasPrefix(op, "%") {
		return opInfo{precSpecial, false}, true
	}
	info, ok := binaryOps[op]
	return info, ok
}

// Parser parses source text into language values.
type Parser struct {
	lexer     *Lexer
	curToken  Token
	peekToken Token
	input     string
	// braces counts enclosing { } blocks; else may follow a newline there.
	braces         int
	skippedNewline bool
}

// NewParser creates a new parser for the given input.
func NewParser(input string) *Parser {
	p := &Parser{lexer: NewLexer(input), input: input}
	p.nextToken()
	p.nextToken()
	return p
}

// Parse parses a whole program into an expression vector.
func Parse(input string) (*Value, error) {
	return NewParser(input).ParseProgram()
}

// ParseOne parses input that must hold exactly one expression.
func ParseOne(input string) (*Value, error) {
	exprs, err := Parse(input)
	if err != nil {
		return nil, err
	}
	if len(exprs.Items) != 1 {
		return nil, &ParseError{Msg: fmt.Sprintf("expected one expression, found %d", len(exprs.Items))}
	}
	return exprs.Items[0], nil
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.lexer.NextToken()
}

func (p *Parser) curTokenIs(t TokenType) bool { return p.curToken.Type == t }

func (p *Parser) curOpIs(op string) bool {
	return p.curToken.Type == TokenOperator && p.curToken.Literal == op
}

func (p *Parser) fail(format string, args ...any) {
	panic(&ParseError{Pos: p.curToken.Pos, Msg: fmt.Sprintf(format, args...)})
}

// unexpected reports the current token; running into the end of input (or
// an unclosed delimiter) marks the error incomplete.
func (p *Parser) unexpected() {
	tok := p.curToken
	switch tok.Type {
	case TokenEOF:
		panic(&ParseError{Pos: tok.Pos, Msg: "unexpected end of input", Incomplete: true})
	case TokenError:
		panic(&ParseError{Pos: tok.Pos, Msg: tok.Literal, Incomplete: tok.Incomplete})
	case TokenString:
		p.fail("unexpected string constant")
	case TokenOperator:
		p.fail("unexpected '%s'", tok.Literal)
	}
	p.fail("unexpected %s", tok.Type)
}

func (p *Parser) expect(t TokenType) {
	if !p.curTokenIs(t) {
		p.unexpected()
	}
	p.nextToken()
}

func (p *Parser) skipNewlines() {
	for p.curTokenIs(TokenNewline) {
		p.nextToken()
	}
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// ParseProgram parses statements until end of input.
func (p *Parser) ParseProgram() (prog *Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			pe, ok := r.(*ParseError)
			if !ok {
				panic(r)
			}
			prog, err = nil, pe
		}
	}()
	prog = &Value{Kind: ExprKind}
	for {
		for p.curTokenIs(TokenNewline) || p.curTokenIs(TokenSemicolon) {
			p.nextToken()
		}
		if p.curTokenIs(TokenEOF) {
			return prog, nil
		}
		prog.Items = append(prog.Items, p.parseExpr(precLowest))
		p.endStatement(TokenEOF)
	}
}

func (p *Parser) endStatement(closer TokenType) {
	switch {
	case p.curTokenIs(TokenNewline), p.curTokenIs(TokenSemicolon):
		p.nextToken()
	case p.curTokenIs(closer):
	case p.skippedNewline:
	default:
		p.unexpected()
	}
	p.skippedNewline = false
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func (p *Parser) parseExpr(minPrec int) *Value {
	left := p.parsePrefix()
	for {
		tok := p.curToken
		switch tok.Type {
		case TokenLParen:
			p.nextToken()
			fn := left
			if fn.Kind == StrKind {
				fn = Sym(fn.Str[0])
			}
			left = p.parseArgs(fn, TokenRParen)
			continue
		case TokenLBracket:
			p.nextToken()
			left = p.parseIndex("[", left, TokenRBracket)
			continue
		case TokenLBB:
			p.nextToken()
			left = p.parseIndex("[[", left, TokenRBB)
			continue
		case TokenOperator:
		default:
			return left
		}
		info, ok := infixInfo(tok.Literal)
		if !ok || info.prec < minPrec || info.prec == precLowest {
			return left
		}
		p.nextToken()
		p.skipNewlines()

		switch tok.Literal {
		case "$", "@":
			left = Call(Sym(tok.Literal), left, p.parseMember())
			continue
		case "::":
			left = Call(Sym("::"), left, p.parseMember())
			continue
		}

		next := info.prec + 1
		if info.right {
			next = info.prec
		}
		right := p.parseExpr(next)
		switch tok.Literal {
		case "->":
			left = Call(Sym("<-"), right, left)
		case "->>":
			left = Call(Sym("<<-"), right, left)
		case "|>":
			if right.Kind != LangKind {
				panic(&ParseError{Pos: tok.Pos, Msg: "the pipe operator requires a function call as RHS"})
			}
			piped := right.Copy()
			piped.Items = append([]*Value{left}, right.Items...)
			piped.Tags = append([]string{""}, right.Tags...)
			left = piped
		default:
			left = Call(Sym(tok.Literal), left, right)
		}
	}
}

func (p *Parser) parseMember() *Value {
	tok := p.curToken
	switch tok.Type {
	case TokenIdentifier, TokenString, TokenConstant:
		p.nextToken()
		return Sym(tok.Literal)
	case TokenLParen:
		return p.parsePrefix()
	}
	p.unexpected()
	return nil
}

func (p *Parser) parsePrefix() *Value {
	tok := p.curToken
	switch tok.Type {
	case TokenNumber:
		p.nextToken()
		return Real(p.parseNumber(tok))
	case TokenInteger:
		p.nextToken()
		f := p.parseNumber(tok)
		if f != math.Trunc(f) || f > math.MaxInt32 || f < -math.MaxInt32 {
			return Real(f)
		}
		return Int(int32(f))
	case TokenImaginary:
		p.nextToken()
		return Cplx(complex(0, p.parseNumber(tok)))
	case TokenString:
		p.nextToken()
		return Str(tok.Literal)
	case TokenIdentifier:
		p.nextToken()
		return Sym(tok.Literal)
	case TokenConstant:
		p.nextToken()
		return constantValue(tok.Literal)
	case TokenLParen:
		p.nextToken()
		inner := p.parseExpr(precLowest)
		p.expect(TokenRParen)
		return Call(Sym("("), inner)
	case TokenLBrace:
		return p.parseBlock()
	case TokenIf:
		return p.parseIf()
	case TokenFor:
		return p.parseFor()
	case TokenWhile:
		p.nextToken()
		cond := p.parseCondition()
		return Call(Sym("while"), cond, p.parseBody())
	case TokenRepeat:
		p.nextToken()
		return Call(Sym("repeat"), p.parseBody())
	case TokenBreak, TokenNext:
		p.nextToken()
		return Call(Sym(tok.Literal))
	case TokenFunction, TokenLambda:
		return p.parseFunction()
	case TokenOperator:
		switch tok.Literal {
		case "-", "+":
			p.nextToken()
			return Call(Sym(tok.Literal), p.parseExpr(precUnary))
		case "!":
			p.nextToken()
			return Call(Sym("!"), p.parseExpr(precNot))
		case "~":
			p.nextToken()
			return Call(Sym("~"), p.parseExpr(precTilde+1))
		}
	}
	p.unexpected()
	return nil
}

func (p *Parser) parseNumber(tok Token) float64 {
	lit := tok.Literal
	if strings.HasPrefix(lit, "0x") || strings.HasPrefix(lit, "0X") {
		u, err := strconv.ParseUint(lit[2:], 16, 64)
		if err != nil {
			p.fail("malformed hex constant %s", lit)
		}
		return float64(u)
	}
	f, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		var ne *strconv.NumError
		if errors.As(err, &ne) && errors.Is(ne.Err, strconv.ErrRange) {
			return f
		}
		p.fail("malformed number %s", lit)
	}
	return f
}

func constantValue(lit string) *Value {
	switch lit {
	case "TRUE":
		return Lgl(1)
	case "FALSE":
		return Lgl(0)
	case "NULL":
		return Null
	case "NA":
		return Lgl(NALogical)
	case "Inf":
		return Real(math.Inf(1))
	case "NaN":
		return Real(math.NaN())
	case "NA_integer_":
		return Int(NAInt)
	case "NA_real_":
		return Real(NAReal())
	case "NA_character_":
		return Str(NAString)
	}
	panic("unknown constant " + lit)
}

func (p *Parser) parseBlock() *Value {
	p.expect(TokenLBrace)
	p.braces++
	defer func() { p.braces-- }()

	block := Call(Sym("{"))
	for {
		for p.curTokenIs(TokenNewline) || p.curTokenIs(TokenSemicolon) {
			p.nextToken()
		}
		if p.curTokenIs(TokenRBrace) {
			p.nextToken()
			return block
		}
		block.Items = append(block.Items, p.parseExpr(precLowest))
		block.Tags = append(block.Tags, "")
		p.endStatement(TokenRBrace)
	}
}

func (p *Parser) parseCondition() *Value {
	p.expect(TokenLParen)
	cond := p.parseExpr(precLowest)
	p.expect(TokenRParen)
	return cond
}

func (p *Parser) parseBody() *Value {
	p.skipNewlines()
	return p.parseExpr(precLowest)
}

func (p *Parser) parseIf() *Value {
	p.expect(TokenIf)
	cond := p.parseCondition()
	then := p.parseBody()
	if p.braces > 0 && p.curTokenIs(TokenNewline) {
		p.skipNewlines()
		p.skippedNewline = true
	}
	if !p.curTokenIs(TokenElse) {
		return Call(Sym("if"), cond, then)
	}
	p.skippedNewline = false
	p.nextToken()
	return Call(Sym("if"), cond, then, p.parseBody())
}

func (p *Parser) parseFor() *Value {
	p.expect(TokenFor)
	p.expect(TokenLParen)
	if !p.curTokenIs(TokenIdentifier) {
		p.unexpected()
	}
	v := Sym(p.curToken.Literal)
	p.nextToken()
	p.expect(TokenIn)
	seq := p.parseExpr(precLowest)
	p.expect(TokenRParen)
	return Call(Sym("for"), v, seq, p.parseBody())
}

// parseFunction parses function(formals) body. The formals travel as a
// named list whose elements are the defaults (MissingArg when absent).
func (p *Parser) parseFunction() *Value {
	p.nextToken()
	p.expect(TokenLParen)
	var names []string
	var defaults []*Value
	for !p.curTokenIs(TokenRParen) {
		if !p.curTokenIs(TokenIdentifier) {
			p.unexpected()
		}
		name := p.curToken.Literal
		for _, n := range names {
			if n == name {
				p.fail("repeated formal argument '%s'", name)
			}
		}
		p.nextToken()
		def := MissingArg
		if p.curOpIs("=") {
			p.nextToken()
			def = p.parseExpr(precLeftAssign)
		}
		names = append(names, name)
		defaults = append(defaults, def)
		if p.curTokenIs(TokenComma) {
			p.nextToken()
			continue
		}
		if !p.curTokenIs(TokenRParen) {
			p.unexpected()
		}
	}
	p.nextToken()
	formals := NamedList(names, defaults)
	return Call(Sym("function"), formals, p.parseBody())
}

// parseArgs parses a call's argument list after the opening delimiter.
func (p *Parser) parseArgs(fn *Value, closer TokenType) *Value {
	call := &Value{Kind: LangKind, Fn: fn}
	p.collectArgs(call, closer)
	return call
}

func (p *Parser) parseIndex(op string, obj *Value, closer TokenType) *Value {
	call := Call(Sym(op), obj)
	p.collectArgs(call, closer)
	return call
}

func (p *Parser) collectArgs(call *Value, closer TokenType) {
	if p.curTokenIs(closer) {
		p.nextToken()
		return
	}
	for {
		name, arg := "", MissingArg
		switch {
		case p.curTokenIs(TokenComma), p.curTokenIs(closer):
		case (p.curTokenIs(TokenIdentifier) || p.curTokenIs(TokenString) || p.curTokenIs(TokenConstant)) &&
			p.peekToken.Type == TokenOperator && p.peekToken.Literal == "=":
			name = p.curToken.Literal
			p.nextToken()
			p.nextToken()
			if !p.curTokenIs(TokenComma) && !p.curTokenIs(closer) {
				arg = p.parseExpr(precLeftAssign)
			}
		default:
			arg = p.parseExpr(precLeftAssign)
		}
		call.Items = append(call.Items, arg)
		call.Tags = append(call.Tags, name)
		if p.curTokenIs(TokenComma) {
			p.nextToken()
			continue
		}
		p.expect(closer)
		return
	}
}
