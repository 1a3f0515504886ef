// Package formula implements the spreadsheet formula lexer, parser,
// dependency extractor and evaluator. It handles A1-style references,
// sheet-qualified references, ranges, function calls and array literals.
package formula

// TokenType represents the type of a lexical token.
type TokenType int

const (
	// Literals
	TokenNumber     TokenType = iota // number literal, optional exponent and % suffix
	TokenString                      // "double quoted", "" escapes a quote
	TokenBool                        // TRUE / FALSE
	TokenErrorValue                  // #DIV/0!, #N/A, ...

	// References and names
	TokenCell     // [Sheet!]A1, $ markers allowed
	TokenRange    // [Sheet!]A1:B2
	TokenFunction // identifier immediately followed by (
	TokenName     // bare identifier, resolved as a named range

	// Operators
	TokenPlus    // +
	TokenMinus   // -
	TokenStar    // *
	TokenSlash   // /
	TokenCaret   // ^
	TokenAmp     // &
	TokenPercent // postfix %
	TokenEq      // =
	TokenNeq     // <>
	TokenLt      // <
	TokenGt      // >
	TokenLte     // <=
	TokenGte     // >=

	// Delimiters
	TokenLParen    // (
	TokenRParen    // )
	TokenLBrace    // {
	TokenRBrace    // }
	TokenComma     // ,
	TokenSemicolon // ;

	// Special
	TokenLexError // unrecognized input; Image holds the offending text
	TokenEOF      // end of formula
)

// Token represents a single lexical token. Start and End are byte offsets
// into the formula text; Line and Col are 1-based.
type Token struct {
	Type    TokenType
	Image   string  // raw source text
	Num     float64 // parsed value for TokenNumber
	Str     string  // unescaped value for TokenString
	Message string  // reason for TokenLexError
	Start   int
	End     int
	Line    int
	Col     int
}

// String returns a debug-friendly representation of the token type.
func (t TokenType) String() string {
	switch t {
	case TokenNumber:
		return "NUMBER"
	case TokenString:
		return "STRING"
	case TokenBool:
		return "BOOL"
	case TokenErrorValue:
		return "ERROR_VALUE"
	case TokenCell:
		return "CELL"
	case TokenRange:
		return "RANGE"
	case TokenFunction:
		return "FUNCTION"
	case TokenName:
		return "NAME"
	case TokenPlus:
		return "PLUS"
	case TokenMinus:
		return "MINUS"
	case TokenStar:
		return "STAR"
	case TokenSlash:
		return "SLASH"
	case TokenCaret:
		return "CARET"
	case TokenAmp:
		return "AMP"
	case TokenPercent:
		return "PERCENT"
	case TokenEq:
		return "EQ"
	case TokenNeq:
		return "NEQ"
	case TokenLt:
		return "LT"
	case TokenGt:
		return "GT"
	case TokenLte:
		return "LTE"
	case TokenGte:
		return "GTE"
	case TokenLParen:
		return "LPAREN"
	case TokenRParen:
		return "RPAREN"
	case TokenLBrace:
		return "LBRACE"
	case TokenRBrace:
		return "RBRACE"
	case TokenComma:
		return "COMMA"
	case TokenSemicolon:
		return "SEMICOLON"
	case TokenLexError:
		return "LEX_ERROR"
	case TokenEOF:
		return "EOF"
	default:
		return "UNKNOWN"
	}
}
