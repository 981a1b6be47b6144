package engine

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Lexer
// ---------------------------------------------------------------------------

// Lexer tokenizes script source. Newlines are significant only at top level
// and directly inside braces; inside parentheses and brackets they are
// skipped.
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      rune // current character
	line    int
	col     int
	// contexts holds the open delimiters: '(', '[', 'B' for "[[" and '{'.
	contexts []byte
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{input: input, line: 1}
	l.readChar()
	return l
}

func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0
		l.pos = l.readPos
		return
	}
	r, size := utf8.DecodeRuneInString(l.input[l.readPos:])
	if l.ch == '\n' {
		l.line++
		l.col = 0
	}
	l.ch = r
	l.pos = l.readPos
	l.readPos += size
	l.col++
}

func (l *Lexer) peekChar() rune {
	if l.readPos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPos:])
	return r
}

func (l *Lexer) position() Position {
	return Position{Offset: l.pos, Line: l.line, Column: l.col}
}

func (l *Lexer) newlineSignificant() bool {
	return len(l.contexts) == 0 || l.contexts[len(l.contexts)-1] == '{'
}

func (l *Lexer) push(c byte) { l.contexts = append(l.contexts, c) }

func (l *Lexer) pop() byte {
	if len(l.contexts) == 0 {
		return 0
	}
	c := l.contexts[len(l.contexts)-1]
	l.contexts = l.contexts[:len(l.contexts)-1]
	return c
}

func (l *Lexer) top() byte {
	if len(l.contexts) == 0 {
		return 0
	}
	return l.contexts[len(l.contexts)-1]
}

func (l *Lexer) single(t TokenType, pos Position) Token {
	lit := string(l.ch)
	l.readChar()
	return Token{Type: t, Literal: lit, Pos: pos}
}

// NextToken returns the next token.
func (l *Lexer) NextToken() Token {
	l.skipWhitespaceAndComments()
	pos := l.position()

	switch ch := l.ch; {
	case ch == 0:
		return Token{Type: TokenEOF, Pos: pos}
	case ch == '\n':
		l.readChar()
		return Token{Type: TokenNewline, Literal: "\n", Pos: pos}
	case ch == '(':
		l.push('(')
		return l.single(TokenLParen, pos)
	case ch == ')':
		l.pop()
		return l.single(TokenRParen, pos)
	case ch == '{':
		l.push('{')
		return l.single(TokenLBrace, pos)
	case ch == '}':
		l.pop()
		return l.single(TokenRBrace, pos)
	case ch == '[':
		if l.peekChar() == '[' {
			l.readChar()
			l.readChar()
			l.push('B')
			return Token{Type: TokenLBB, Literal: "[[", Pos: pos}
		}
		l.push('[')
		return l.single(TokenLBracket, pos)
	case ch == ']':
		if l.top() == 'B' && l.peekChar() == ']' {
			l.pop()
			l.readChar()
			l.readChar()
			return Token{Type: TokenRBB, Literal: "]]", Pos: pos}
		}
		l.pop()
		return l.single(TokenRBracket, pos)
	case ch == ',':
		return l.single(TokenComma, pos)
	case ch == ';':
		return l.single(TokenSemicolon, pos)
	case ch == '"' || ch == '\'':
		return l.readString(pos)
	case ch == '`':
		return l.readBackquoted(pos)
	case isDigit(ch) || (ch == '.' && isDigit(l.peekChar())):
		return l.readNumber(pos)
	case isLetter(ch) || ch == '.':
		return l.readIdentifier(pos)
	case ch == '\\':
		return l.single(TokenLambda, pos)
	case ch == '%':
		return l.readSpecialOperator(pos)
	default:
		return l.readOperator(pos)
	}
}

// skipWhitespaceAndComments skips blanks, comments and, where they are not
// significant, newlines.
func (l *Lexer) skipWhitespaceAndComments() {
	for {
		switch {
		case l.ch == ' ' || l.ch == '\t' || l.ch == '\r' || l.ch == '\f':
			l.readChar()
		case l.ch == '\n' && !l.newlineSignificant():
			l.readChar()
		case l.ch == '#':
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
		default:
			return
		}
	}
}

func (l *Lexer) readString(pos Position) Token {
	quote := l.ch
	l.readChar()

	var sb strings.Builder
	for l.ch != quote {
		if l.ch == 0 {
			return Token{Type: TokenError, Literal: "unterminated string", Pos: pos, Incomplete: true}
		}
		if l.ch != '\\' {
			sb.WriteRune(l.ch)
			l.readChar()
			continue
		}
		l.readChar()
		switch l.ch {
		case 'n':
			sb.WriteByte('\n')
		case 't':
			sb.WriteByte('\t')
		case 'r':
			sb.WriteByte('\r')
		case '0':
			return Token{Type: TokenError, Literal: "nul character not allowed", Pos: pos}
		case '\\', '"', '\'', '`', ' ':
			sb.WriteRune(l.ch)
		case 'x', 'u', 'U':
			r, ok := l.readHexEscape()
			if !ok {
				return Token{Type: TokenError, Literal: "malformed escape in string", Pos: pos}
			}
			sb.WriteRune(r)
			continue
		case 0:
			return Token{Type: TokenError, Literal: "unterminated string", Pos: pos, Incomplete: true}
		default:
			return Token{Type: TokenError, Literal: fmt.Sprintf("'\\%c' is an unrecognized escape", l.ch), Pos: pos}
		}
		l.readChar()
	}
	l.readChar()
	return Token{Type: TokenString, Literal: sb.String(), Pos: pos}
}

// readHexEscape reads the digits of \x, \u or \U; l.ch is the letter.
func (l *Lexer) readHexEscape() (rune, bool) {
	max := 2
	switch l.ch {
	case 'u':
		max = 4
	case 'U':
		max = 8
	}
	l.readChar()
	braced := l.ch == '{' && max > 2
	if braced {
		l.readChar()
	}
	start := l.pos
	for n := 0; n < max && isHexDigit(l.ch); n++ {
		l.readChar()
	}
	digits := l.input[start:l.pos]
	if braced {
		if l.ch != '}' {
			return 0, false
		}
		l.readChar()
	}
	v, err := strconv.ParseUint(digits, 16, 32)
	if err != nil || v == 0 {
		return 0, false
	}
	return rune(v), true
}

func (l *Lexer) readBackquoted(pos Position) Token {
	l.readChar()
	start := l.pos
	for l.ch != '`' {
		if l.ch == 0 {
			return Token{Type: TokenError, Literal: "unterminated backquote", Pos: pos, Incomplete: true}
		}
		l.readChar()
	}
	name := l.input[start:l.pos]
	l.readChar()
	return Token{Type: TokenIdentifier, Literal: name, Pos: pos}
}

func (l *Lexer) readNumber(pos Position) Token {
	start := l.pos
	if l.ch == '0' && (l.peekChar() == 'x' || l.peekChar() == 'X') {
		l.readChar()
		l.readChar()
		for isHexDigit(l.ch) {
			l.readChar()
		}
	} else {
		for isDigit(l.ch) {
			l.readChar()
		}
		if l.ch == '.' {
			l.readChar()
			for isDigit(l.ch) {
				l.readChar()
			}
		}
		if l.ch == 'e' || l.ch == 'E' {
			l.readChar()
			if l.ch == '+' || l.ch == '-' {
				l.readChar()
			}
			if !isDigit(l.ch) {
				return Token{Type: TokenError, Literal: "malformed exponent", Pos: pos}
			}
			for isDigit(l.ch) {
				l.readChar()
			}
		}
	}
	lit := l.input[start:l.pos]
	switch l.ch {
	case 'L':
		l.readChar()
		return Token{Type: TokenInteger, Literal: lit, Pos: pos}
	case 'i':
		l.readChar()
		return Token{Type: TokenImaginary, Literal: lit, Pos: pos}
	}
	return Token{Type: TokenNumber, Literal: lit, Pos: pos}
}

func (l *Lexer) readIdentifier(pos Position) Token {
	start := l.pos
	for isLetter(l.ch) || isDigit(l.ch) || l.ch == '.' || l.ch == '_' {
		l.readChar()
	}
	lit := l.input[start:l.pos]
	if t, ok := reservedWords[lit]; ok {
		return Token{Type: t, Literal: lit, Pos: pos}
	}
	if constants[lit] {
		return Token{Type: TokenConstant, Literal: lit, Pos: pos}
	}
	return Token{Type: TokenIdentifier, Literal: lit, Pos: pos}
}

func (l *Lexer) readSpecialOperator(pos Position) Token {
	start := l.pos
	l.readChar()
	for l.ch != '%' {
		if l.ch == 0 || l.ch == '\n' {
			return Token{Type: TokenError, Literal: "unterminated %operator%", Pos: pos}
		}
		l.readChar()
	}
	l.readChar()
	return Token{Type: TokenOperator, Literal: l.input[start:l.pos], Pos: pos}
}

// operators lists multi-character operators longest first.
var operators = []string{
	"<<-", "->>", "|>", "<-", "->", "<=", ">=", "==", "!=", "&&", "||", "::",
	"+", "-", "*", "/", "^", "<", ">", "!", "&", "|", "~", "?", ":", "$", "@", "=",
}

func (l *Lexer) readOperator(pos Position) Token {
	rest := l.input[l.pos:]
	for _, op := range operators {
		if strings.HasPrefix(rest, op) {
			for range op {
				l.readChar()
			}
			return Token{Type: TokenOperator, Literal: op, Pos: pos}
		}
	}
	ch := l.ch
	l.readChar()
	return Token{Type: TokenError, Literal: fmt.Sprintf("unexpected input %q", ch), Pos: pos}
}

func isLetter(r rune) bool {
	return unicode.IsLetter(r)
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isHexDigit(r rune) bool {
	return isDigit(r) || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

// Tokenize returns all tokens from the input.
func Tokenize(input string) []Token {
	l := NewLexer(input)
	var tokens []Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF || tok.Type == TokenError {
			return tokens
		}
	}
}
