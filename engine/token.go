package engine

import "fmt"

// ---------------------------------------------------------------------------
// Tokens
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenError
	TokenNewline

	// Literals
	TokenNumber     // 42, 3.14, 1e5, 0xFF
	TokenInteger    // 42L
	TokenImaginary  // 2i
	TokenString     // "hello", 'hello'
	TokenIdentifier // foo, .bar, `odd name`
	TokenConstant   // TRUE, FALSE, NULL, NA, Inf, NaN, NA_integer_ ...

	// Operators
	TokenOperator // + - * / ^ < > <= >= == != ! & && | || ~ ? : :: $ @ <- <<- -> ->> = |> %op%

	// Delimiters
	TokenLParen   // (
	TokenRParen   // )
	TokenLBrace   // {
	TokenRBrace   // }
	TokenLBracket // [
	TokenLBB      // [[
	TokenRBracket // ]
	TokenRBB      // ]] closing a [[
	TokenComma    // ,
	TokenSemicolon

	// Reserved words
	TokenFunction
	TokenLambda // \(x)
	TokenIf
	TokenElse
	TokenFor
	TokenIn
	TokenWhile
	TokenRepeat
	TokenBreak
	TokenNext
)

var tokenNames = map[TokenType]string{
	TokenEOF:        "end of input",
	TokenError:      "ERROR",
	TokenNewline:    "newline",
	TokenNumber:     "numeric constant",
	TokenInteger:    "integer constant",
	TokenImaginary:  "imaginary constant",
	TokenString:     "string constant",
	TokenIdentifier: "symbol",
	TokenConstant:   "constant",
	TokenOperator:   "operator",
	TokenLParen:     "'('",
	TokenRParen:     "')'",
	TokenLBrace:     "'{'",
	TokenRBrace:     "'}'",
	TokenLBracket:   "'['",
	TokenLBB:        "'[['",
	TokenRBracket:   "']'",
	TokenRBB:        "']]'",
	TokenComma:      "','",
	TokenSemicolon:  "';'",
	TokenFunction:   "function",
	TokenLambda:     "'\\'",
	TokenIf:         "if",
	TokenElse:       "else",
	TokenFor:        "for",
	TokenIn:         "in",
	TokenWhile:      "while",
	TokenRepeat:     "repeat",
	TokenBreak:      "break",
	TokenNext:       "next",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", t)
}

// Position is a location in source text.
type Position struct {
	Offset int
	Line   int
	Column int
}

// Token represents a lexical token.
type Token struct {
	Type    TokenType
	Literal string   // decoded text for strings and backquoted names
	Pos     Position // start position
	// Incomplete marks an error caused by input ending early.
	Incomplete bool
}

func (t Token) String() string {
	switch t.Type {
	case TokenEOF:
		return "EOF"
	case TokenError:
		return fmt.Sprintf("ERROR(%s)", t.Literal)
	}
	return fmt.Sprintf("%s(%q)", t.Type, t.Literal)
}

var reservedWords = map[string]TokenType{
	"function": TokenFunction,
	"if":       TokenIf,
	"else":     TokenElse,
	"for":      TokenFor,
	"in":       TokenIn,
	"while":    TokenWhile,
	"repeat":   TokenRepeat,
	"break":    TokenBreak,
	"next":     TokenNext,
}

var constants = map[string]bool{
	"TRUE": true, "FALSE": true, "NULL": true, "NA": true, "Inf": true, "NaN": true,
	"NA_integer_": true, "NA_real_": true, "NA_character_": true,
}
