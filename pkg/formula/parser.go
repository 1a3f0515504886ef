package formula

import (
	"fmt"
	"strings"

	"github.com/onlyadaydreamer/grid/pkg/sheet"
	"github.com/onlyadaydreamer/grid/pkg/types"
)

// MaxFormulaLength is the maximum accepted length of formula text.
const MaxFormulaLength = 8192

// Parser is a recursive descent parser over a formula token stream.
type Parser struct {
	tokens []Token
	pos    int
	anchor sheet.CellPosition
}

// ParseFormula tokenizes and parses text. A leading "=" is optional.
// Unqualified references take the anchor's sheet.
func ParseFormula(text string, anchor sheet.CellPosition) (Node, error) {
	if len(text) > MaxFormulaLength {
		return nil, types.NewParseError(fmt.Sprintf("formula exceeds maximum length of %d characters", MaxFormulaLength), MaxFormulaLength)
	}
	return Parse(Tokenize(text), anchor)
}

// Parse builds an AST from tokens. The returned error is always a
// *types.FormulaError: SyntaxError for a lex failure, ParseError for a
// grammar failure, each carrying the offending token's offset.
func Parse(tokens []Token, anchor sheet.CellPosition) (Node, error) {
	for _, tok := range tokens {
		if tok.Type == TokenLexError {
			return nil, types.NewSyntaxError(tok.Message, tok.Start)
		}
	}

	p := &Parser{tokens: tokens, anchor: anchor}
	if p.current().Type == TokenEq {
		p.advance()
	}

	node, err := p.parseExpression()
	if err != nil {
		return nil, err
	}

	if tok := p.current(); tok.Type != TokenEOF {
		return nil, types.NewParseError(fmt.Sprintf("unexpected %s %q", tok.Type, tok.Image), tok.Start)
	}
	return node, nil
}

// current returns the current token.
func (p *Parser) current() Token {
	if p.pos >= len(p.tokens) {
		end := 0
		if n := len(p.tokens); n > 0 {
			end = p.tokens[n-1].End
		}
		return Token{Type: TokenEOF, Start: end, End: end}
	}
	return p.tokens[p.pos]
}

// advance consumes the current token and returns it.
func (p *Parser) advance() Token {
	tok := p.current()
	p.pos++
	return tok
}

// expect consumes a token of the expected type or returns a ParseError.
func (p *Parser) expect(tt TokenType, what string) (Token, error) {
	tok := p.current()
	if tok.Type != tt {
		return tok, p.unexpected(tok, what)
	}
	p.advance()
	return tok, nil
}

func (p *Parser) unexpected(tok Token, what string) error {
	if tok.Type == TokenEOF {
		return types.NewParseError("unexpected end of formula, expected "+what, tok.Start)
	}
	return types.NewParseError(fmt.Sprintf("expected %s, got %q", what, tok.Image), tok.Start)
}

// parseExpression is the entry point: handles the lowest precedence operators.
// Precedence (low to high):
//
//	=, <>, <, >, <=, >=
//	&
//	+, -
//	*, /
//	unary +, -
//	^ (right associative)
//	postfix %
//	literals, references, calls, parentheses, arrays
func (p *Parser) parseExpression() (Node, error) {
	return p.parseComparison()
}

func (p *Parser) parseComparison() (Node, error) {
	left, err := p.parseConcat()
	if err != nil {
		return nil, err
	}

	for {
		switch p.current().Type {
		case TokenEq, TokenNeq, TokenLt, TokenGt, TokenLte, TokenGte:
			op := p.advance().Type
			right, err := p.parseConcat()
			if err != nil {
				return nil, err
			}
			left = &BinaryNode{Op: op, Left: left, Right: right}
		default:
			return left, nil
		}
	}
}

func (p *Parser) parseConcat() (Node, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}

	for p.current().Type == TokenAmp {
		p.advance()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = &BinaryNode{Op: TokenAmp, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseAdditive() (Node, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}

	for p.current().Type == TokenPlus || p.current().Type == TokenMinus {
		op := p.advance().Type
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &BinaryNode{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseMultiplicative() (Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	for p.current().Type == TokenStar || p.current().Type == TokenSlash {
		op := p.advance().Type
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &BinaryNode{Op: op, Left: left, Right: right}
	}
	return left, nil
}

// parseUnary handles prefix signs. They bind looser than ^, so -2^2 is -(2^2).
func (p *Parser) parseUnary() (Node, error) {
	if p.current().Type == TokenMinus || p.current().Type == TokenPlus {
		op := p.advance().Type
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryNode{Op: op, Operand: operand}, nil
	}
	return p.parsePower()
}

func (p *Parser) parsePower() (Node, error) {
	base, err := p.parsePostfix()
	if err != nil {
		return nil, err
	}
	if p.current().Type != TokenCaret {
		return base, nil
	}
	p.advance()
	exponent, err := p.parseExponent()
	if err != nil {
		return nil, err
	}
	return &BinaryNode{Op: TokenCaret, Left: base, Right: exponent}, nil
}

// parseExponent parses the right operand of ^, which may carry its own sign
// (2^-1) and chains to the right (2^3^2 is 2^(3^2)).
func (p *Parser) parseExponent() (Node, error) {
	if p.current().Type == TokenMinus || p.current().Type == TokenPlus {
		op := p.advance().Type
		operand, err := p.parseExponent()
		if err != nil {
			return nil, err
		}
		return &UnaryNode{Op: op, Operand: operand}, nil
	}
	return p.parsePower()
}

func (p *Parser) parsePostfix() (Node, error) {
	node, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for p.current().Type == TokenPercent {
		p.advance()
		node = &UnaryNode{Op: TokenPercent, Operand: node}
	}
	return node, nil
}

func (p *Parser) parsePrimary() (Node, error) {
	tok := p.current()

	switch tok.Type {
	case TokenNumber:
		p.advance()
		return &LiteralNode{Value: types.NewNumber(tok.Num)}, nil
	case TokenString:
		p.advance()
		return &LiteralNode{Value: types.NewString(tok.Str)}, nil
	case TokenBool:
		p.advance()
		return &LiteralNode{Value: types.NewBool(strings.EqualFold(tok.Image, "TRUE"))}, nil
	case TokenErrorValue:
		p.advance()
		return &LiteralNode{Value: errorLiteral(tok.Image)}, nil
	case TokenCell, TokenRange:
		p.advance()
		return p.reference(tok)
	case TokenName:
		p.advance()
		return &NameNode{Name: tok.Image}, nil
	case TokenFunction:
		return p.parseCall()
	case TokenLParen:
		p.advance()
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokenRParen, "')'"); err != nil {
			return nil, err
		}
		return expr, nil
	case TokenLBrace:
		return p.parseArray()
	default:
		return nil, p.unexpected(tok, "a value")
	}
}

// reference resolves a cell or range token against the anchor sheet.
func (p *Parser) reference(tok Token) (Node, error) {
	ref, err := sheet.ParseReference(tok.Image, p.anchor.Sheet)
	if err != nil {
		return nil, types.NewParseError(fmt.Sprintf("invalid reference %q", tok.Image), tok.Start)
	}
	switch r := ref.(type) {
	case sheet.CellPosition:
		return &ReferenceNode{Position: r, Image: tok.Image}, nil
	case sheet.CellRange:
		return &RangeNode{Range: r, Image: tok.Image}, nil
	}
	return nil, types.NewParseError(fmt.Sprintf("invalid reference %q", tok.Image), tok.Start)
}

// parseCall parses NAME(arg, ...). Argument counts are checked by the
// function itself at evaluation time. An omitted argument is empty.
func (p *Parser) parseCall() (Node, error) {
	name := p.advance()
	if _, err := p.expect(TokenLParen, "'('"); err != nil {
		return nil, err
	}

	call := &CallNode{Name: strings.ToUpper(name.Image)}
	if p.current().Type == TokenRParen {
		p.advance()
		return call, nil
	}

	for {
		if t := p.current().Type; t == TokenComma || t == TokenRParen {
			call.Args = append(call.Args, &LiteralNode{Value: types.Empty})
		} else {
			arg, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			call.Args = append(call.Args, arg)
		}

		switch p.current().Type {
		case TokenComma:
			p.advance()
		case TokenRParen:
			p.advance()
			return call, nil
		default:
			return nil, p.unexpected(p.current(), "',' or ')'")
		}
	}
}

// parseArray parses {a, b; c, d}. Commas separate columns, semicolons rows.
func (p *Parser) parseArray() (Node, error) {
	open := p.advance()

	arr := &ArrayNode{}
	row := []Node{}
	for {
		elem, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		row = append(row, elem)

		switch tok := p.advance(); tok.Type {
		case TokenComma:
			continue
		case TokenSemicolon, TokenRBrace:
			if len(arr.Rows) > 0 && len(row) != len(arr.Rows[0]) {
				return nil, types.NewParseError("array literal rows must have the same length", open.Start)
			}
			arr.Rows = append(arr.Rows, row)
			row = []Node{}
			if tok.Type == TokenRBrace {
				return arr, nil
			}
		default:
			return nil, p.unexpected(tok, "',', ';' or '}'")
		}
	}
}

func errorLiteral(image string) types.Value {
	display := strings.ToUpper(image)
	code, ok := types.CodeFromDisplay(display)
	if !ok {
		code = types.CodeGeneric
	}
	return types.NewError(types.NewFormulaError(code, display))
}
