package formula

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// errorLiterals are the error values a formula may spell out directly.
var errorLiterals = []string{"#NULL!", "#DIV/0!", "#VALUE!", "#REF!", "#NAME?", "#NUM!", "#N/A", "#ERROR!", "#CIRCULAR!"}

// Lexer tokenizes a formula string.
type Lexer struct {
	input  string
	pos    int
	tokens []Token
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	return &Lexer{input: input}
}

// Tokenize returns the token stream for text. It never fails: unrecognized
// input becomes TokenLexError tokens and the stream always ends in TokenEOF.
func Tokenize(text string) []Token {
	return NewLexer(text).Tokenize()
}

// Tokenize scans the entire input and returns all tokens.
func (l *Lexer) Tokenize() []Token {
	for {
		tok := l.next()
		tok.Line, tok.Col = l.lineCol(tok.Start)
		l.tokens = append(l.tokens, tok)
		if tok.Type == TokenEOF {
			return l.tokens
		}
	}
}

// next returns the next token from the input.
func (l *Lexer) next() Token {
	l.skipWhitespace()

	if l.pos >= len(l.input) {
		return Token{Type: TokenEOF, Start: l.pos, End: l.pos}
	}

	ch := l.input[l.pos]

	switch {
	case ch == '"':
		return l.readString()
	case isDigit(ch) && l.sheetPrefixAhead():
		return l.readIdentifier()
	case isDigit(ch) || ch == '.' && l.pos+1 < len(l.input) && isDigit(l.input[l.pos+1]):
		return l.readNumber()
	case ch == '\'':
		return l.readQuotedSheetRef()
	case ch == '#':
		return l.readErrorLiteral()
	case isIdentStart(ch):
		return l.readIdentifier()
	}

	// Two-character operators
	if l.pos+1 < len(l.input) {
		switch l.input[l.pos : l.pos+2] {
		case "<=":
			return l.emit(TokenLte, 2)
		case ">=":
			return l.emit(TokenGte, 2)
		case "<>":
			return l.emit(TokenNeq, 2)
		}
	}

	// Single-character operators
	switch ch {
	case '+':
		return l.emit(TokenPlus, 1)
	case '-':
		return l.emit(TokenMinus, 1)
	case '*':
		return l.emit(TokenStar, 1)
	case '/':
		return l.emit(TokenSlash, 1)
	case '^':
		return l.emit(TokenCaret, 1)
	case '&':
		return l.emit(TokenAmp, 1)
	case '%':
		return l.emit(TokenPercent, 1)
	case '=':
		return l.emit(TokenEq, 1)
	case '<':
		return l.emit(TokenLt, 1)
	case '>':
		return l.emit(TokenGt, 1)
	case '(':
		return l.emit(TokenLParen, 1)
	case ')':
		return l.emit(TokenRParen, 1)
	case '{':
		return l.emit(TokenLBrace, 1)
	case '}':
		return l.emit(TokenRBrace, 1)
	case ',':
		return l.emit(TokenComma, 1)
	case ';':
		return l.emit(TokenSemicolon, 1)
	}

	_, size := utf8.DecodeRuneInString(l.input[l.pos:])
	return l.fail(l.pos, l.pos+size, "unexpected character "+strconv.Quote(l.input[l.pos:l.pos+size]))
}

func (l *Lexer) emit(tt TokenType, width int) Token {
	start := l.pos
	l.pos += width
	return Token{Type: tt, Image: l.input[start:l.pos], Start: start, End: l.pos}
}

// fail produces a lex error token covering input[start:end] and resumes
// scanning after it.
func (l *Lexer) fail(start, end int, msg string) Token {
	l.pos = end
	return Token{Type: TokenLexError, Image: l.input[start:end], Message: msg, Start: start, End: end}
}

// readString reads a double-quoted literal; a doubled quote escapes itself.
func (l *Lexer) readString() Token {
	start := l.pos
	l.pos++ // skip opening quote

	var sb strings.Builder
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if ch == '"' {
			if l.pos+1 < len(l.input) && l.input[l.pos+1] == '"' {
				sb.WriteByte('"')
				l.pos += 2
				continue
			}
			l.pos++ // skip closing quote
			return Token{Type: TokenString, Image: l.input[start:l.pos], Str: sb.String(), Start: start, End: l.pos}
		}
		sb.WriteByte(ch)
		l.pos++
	}

	return l.fail(start, len(l.input), "unterminated string")
}

// readNumber reads a decimal literal with optional exponent and % suffix.
func (l *Lexer) readNumber() Token {
	start := l.pos
	for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
		l.pos++
	}
	if l.pos < len(l.input) && l.input[l.pos] == '.' {
		l.pos++
		for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
			l.pos++
		}
	}
	if l.pos < len(l.input) && (l.input[l.pos] == 'e' || l.input[l.pos] == 'E') {
		save := l.pos
		l.pos++
		if l.pos < len(l.input) && (l.input[l.pos] == '+' || l.input[l.pos] == '-') {
			l.pos++
		}
		if l.pos >= len(l.input) || !isDigit(l.input[l.pos]) {
			l.pos = save
		} else {
			for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
				l.pos++
			}
		}
	}

	raw := l.input[start:l.pos]
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return l.fail(start, l.pos, "invalid number "+strconv.Quote(raw))
	}
	if l.pos < len(l.input) && l.input[l.pos] == '%' {
		l.pos++
		f /= 100
	}
	return Token{Type: TokenNumber, Image: l.input[start:l.pos], Num: f, Start: start, End: l.pos}
}

// readIdentifier reads a word and classifies it as a sheet-qualified
// reference, boolean, function, cell, range or name.
func (l *Lexer) readIdentifier() Token {
	start := l.pos
	for l.pos < len(l.input) && isIdentPart(l.input[l.pos]) {
		l.pos++
	}
	word := l.input[start:l.pos]

	if l.peekByte() == '!' {
		if strings.Contains(word, "$") {
			return l.fail(start, l.pos, "invalid sheet name "+strconv.Quote(word))
		}
		l.pos++ // consume !
		return l.readReference(start)
	}

	if l.peekByte() == '(' {
		if strings.Contains(word, "$") {
			return l.fail(start, l.pos, "invalid function name "+strconv.Quote(word))
		}
		return Token{Type: TokenFunction, Image: word, Start: start, End: l.pos}
	}

	switch strings.ToUpper(word) {
	case "TRUE", "FALSE":
		return Token{Type: TokenBool, Image: word, Start: start, End: l.pos}
	}

	if isCellRef(word) {
		l.pos = start
		return l.readReference(start)
	}
	if strings.Contains(word, "$") {
		return l.fail(start, l.pos, "invalid reference "+strconv.Quote(word))
	}
	return Token{Type: TokenName, Image: word, Start: start, End: l.pos}
}

// sheetPrefixAhead reports whether the input at l.pos is an unquoted sheet
// name made of letters, digits and underscores followed by '!', as in 2024!A1.
func (l *Lexer) sheetPrefixAhead() bool {
	i := l.pos
	for i < len(l.input) && (isLetter(l.input[i]) || isDigit(l.input[i]) || l.input[i] == '_') {
		i++
	}
	return i > l.pos && i < len(l.input) && l.input[i] == '!'
}

// readQuotedSheetRef reads 'Sheet Name'!A1 or 'Sheet Name'!A1:B2.
func (l *Lexer) readQuotedSheetRef() Token {
	start := l.pos
	l.pos++ // skip opening quote
	for l.pos < len(l.input) {
		if l.input[l.pos] == '\'' {
			if l.pos+1 < len(l.input) && l.input[l.pos+1] == '\'' {
				l.pos += 2
				continue
			}
			break
		}
		l.pos++
	}
	if l.pos >= len(l.input) {
		return l.fail(start, len(l.input), "unterminated sheet name")
	}
	l.pos++ // skip closing quote
	if l.peekByte() != '!' {
		return l.fail(start, l.pos, "expected '!' after sheet name")
	}
	l.pos++ // consume !
	return l.readReference(start)
}

// readReference reads a cell or range address at l.pos. The token starts at
// start so a sheet prefix already consumed is part of the image.
func (l *Lexer) readReference(start int) Token {
	first := l.readAddress()
	if !isCellRef(first) {
		return l.fail(start, l.pos, "invalid cell reference "+strconv.Quote(l.input[start:l.pos]))
	}
	if l.peekByte() == ':' {
		save := l.pos
		l.pos++ // consume :
		second := l.readAddress()
		if isCellRef(second) {
			return Token{Type: TokenRange, Image: l.input[start:l.pos], Start: start, End: l.pos}
		}
		l.pos = save
	}
	return Token{Type: TokenCell, Image: l.input[start:l.pos], Start: start, End: l.pos}
}

func (l *Lexer) readAddress() string {
	begin := l.pos
	for l.pos < len(l.input) && (isLetter(l.input[l.pos]) || isDigit(l.input[l.pos]) || l.input[l.pos] == '$') {
		l.pos++
	}
	return l.input[begin:l.pos]
}

// readErrorLiteral reads one of the spreadsheet error values.
func (l *Lexer) readErrorLiteral() Token {
	rest := strings.ToUpper(l.input[l.pos:])
	for _, lit := range errorLiterals {
		if strings.HasPrefix(rest, lit) {
			start := l.pos
			l.pos += len(lit)
			return Token{Type: TokenErrorValue, Image: l.input[start:l.pos], Start: start, End: l.pos}
		}
	}
	return l.fail(l.pos, l.pos+1, "unknown error literal")
}

func (l *Lexer) peekByte() byte {
	if l.pos < len(l.input) {
		return l.input[l.pos]
	}
	return 0
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.input) {
		switch l.input[l.pos] {
		case ' ', '\t', '\n', '\r':
			l.pos++
		default:
			return
		}
	}
}

func (l *Lexer) lineCol(offset int) (int, int) {
	line, lineStart := 1, 0
	for i := 0; i < offset && i < len(l.input); i++ {
		if l.input[i] == '\n' {
			line++
			lineStart = i + 1
		}
	}
	return line, offset - lineStart + 1
}

// isCellRef reports whether s is an A1 address with optional $ markers:
// one to three column letters followed by a row number without leading zero.
func isCellRef(s string) bool {
	i := 0
	if i < len(s) && s[i] == '$' {
		i++
	}
	letters := 0
	for i < len(s) && isLetter(s[i]) {
		i++
		letters++
	}
	if letters == 0 || letters > 3 {
		return false
	}
	if i < len(s) && s[i] == '$' {
		i++
	}
	if i >= len(s) || s[i] == '0' {
		return false
	}
	for ; i < len(s); i++ {
		if !isDigit(s[i]) {
			return false
		}
	}
	return true
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isLetter(ch byte) bool {
	return ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z'
}

func isIdentStart(ch byte) bool {
	return isLetter(ch) || ch == '_' || ch == '$'
}

func isIdentPart(ch byte) bool {
	return isIdentStart(ch) || isDigit(ch) || ch == '.'
}
