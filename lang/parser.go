package lang

import "strconv"

// Parser is a single-pass recursive-descent parser over a token list
// produced by Lexer.Tokenize. It fails fast: the first structural error
// aborts parsing and is returned to the caller.
type Parser struct {
	tokens []Token
	idx    int
}

// NewParser returns a Parser over tokens.
func NewParser(tokens []Token) *Parser {
	return &Parser{tokens: tokens}
}

// ParseFile lexes and parses source into a *File.
func ParseFile(source string) (*File, error) {
	tokens, err := NewLexer(source).Tokenize()
	if err != nil {
		return nil, err
	}
	return NewParser(tokens).Parse()
}

// Parse consumes the whole token stream and returns the parsed file, or
// the first syntax/duplicate-id error encountered.
func (p *Parser) Parse() (*File, error) {
	start := p.current().Span.Start
	var decls []*Decl
	seen := make(map[string]bool, len(p.tokens)/8+1)
	for !p.at(TokenEOF) {
		decl, err := p.parseDecl()
		if err != nil {
			return nil, err
		}
		if seen[decl.ID] {
			return nil, &LangError{
				Level:   LevelError,
				Code:    CodeDuplicateID,
				Message: "duplicate declaration id '" + decl.ID + "'",
				Span:    decl.Span,
				Node:    decl.ID,
			}
		}
		seen[decl.ID] = true
		decls = append(decls, decl)
	}
	end := p.current().Span.End
	return &File{Decls: decls, Span: Span{Start: start, End: end}}, nil
}

func (p *Parser) parseDecl() (*Decl, error) {
	start := p.current().Span.Start
	var kind DeclKind
	switch {
	case p.matches(TokenSolid):
		kind = DeclSolid
	case p.matches(TokenFeature):
		kind = DeclFeature
	default:
		return nil, p.expected("'solid' or 'feature'")
	}

	id, err := p.expectIdent("declaration id")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenAssign, "'='"); err != nil {
		return nil, err
	}
	op, err := p.expectIdent("op name")
	if err != nil {
		return nil, err
	}
	entries, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	p.matches(TokenSemicolon)
	end := p.previous().Span.End

	return &Decl{Kind: kind, ID: id, Op: op, Entries: entries, Span: Span{Start: start, End: end}}, nil
}

func (p *Parser) parseBlock() ([]Entry, error) {
	if _, err := p.expect(TokenLBrace, "'{'"); err != nil {
		return nil, err
	}
	var entries []Entry
	for !p.at(TokenRBrace) {
		if p.at(TokenEOF) {
			return nil, p.expected("'}'")
		}
		entry, err := p.parseEntry()
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if _, err := p.expect(TokenRBrace, "'}'"); err != nil {
		return nil, err
	}
	return entries, nil
}

func (p *Parser) parseEntry() (Entry, error) {
	if p.matches(TokenLet) {
		start := p.previous().Span.Start
		name, err := p.expectIdent("let name")
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokenAssign, "'='"); err != nil {
			return nil, err
		}
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		semi, err := p.expect(TokenSemicolon, "';'")
		if err != nil {
			return nil, err
		}
		return &LetEntry{Name: name, Expr: expr, Span: Span{Start: start, End: semi.Span.End}}, nil
	}

	start := p.current().Span.Start
	name, err := p.expectIdent("field name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenColon, "':'"); err != nil {
		return nil, err
	}
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	semi, err := p.expect(TokenSemicolon, "';'")
	if err != nil {
		return nil, err
	}
	return &FieldEntry{Name: name, Expr: expr, Span: Span{Start: start, End: semi.Span.End}}, nil
}

func (p *Parser) parseExpr() (*Expr, error) { return p.parseLogicOr() }

func (p *Parser) parseLogicOr() (*Expr, error) {
	expr, err := p.parseLogicAnd()
	if err != nil {
		return nil, err
	}
	for p.matches(TokenOrOr) {
		right, err := p.parseLogicAnd()
		if err != nil {
			return nil, err
		}
		expr = &Expr{Kind: ExprBinary, BinOp: BinOr, Left: expr, Right: right, Span: MergeSpan(expr.Span, right.Span)}
	}
	return expr, nil
}

func (p *Parser) parseLogicAnd() (*Expr, error) {
	expr, err := p.parseEquality()
	if err != nil {
		return nil, err
	}
	for p.matches(TokenAndAnd) {
		right, err := p.parseEquality()
		if err != nil {
			return nil, err
		}
		expr = &Expr{Kind: ExprBinary, BinOp: BinAnd, Left: expr, Right: right, Span: MergeSpan(expr.Span, right.Span)}
	}
	return expr, nil
}

func (p *Parser) parseEquality() (*Expr, error) {
	expr, err := p.parseCompare()
	if err != nil {
		return nil, err
	}
	for {
		var op BinaryOp
		switch {
		case p.matches(TokenEqEq):
			op = BinEq
		case p.matches(TokenNotEq):
			op = BinNe
		default:
			return expr, nil
		}
		right, err := p.parseCompare()
		if err != nil {
			return nil, err
		}
		expr = &Expr{Kind: ExprBinary, BinOp: op, Left: expr, Right: right, Span: MergeSpan(expr.Span, right.Span)}
	}
}

func (p *Parser) parseCompare() (*Expr, error) {
	expr, err := p.parseAdd()
	if err != nil {
		return nil, err
	}
	for {
		var op BinaryOp
		switch {
		case p.matches(TokenLt):
			op = BinLt
		case p.matches(TokenLte):
			op = BinLe
		case p.matches(TokenGt):
			op = BinGt
		case p.matches(TokenGte):
			op = BinGe
		default:
			return expr, nil
		}
		right, err := p.parseAdd()
		if err != nil {
			return nil, err
		}
		expr = &Expr{Kind: ExprBinary, BinOp: op, Left: expr, Right: right, Span: MergeSpan(expr.Span, right.Span)}
	}
}

func (p *Parser) parseAdd() (*Expr, error) {
	expr, err := p.parseMul()
	if err != nil {
		return nil, err
	}
	for {
		var op BinaryOp
		switch {
		case p.matches(TokenPlus):
			op = BinAdd
		case p.matches(TokenMinus):
			op = BinSub
		default:
			return expr, nil
		}
		right, err := p.parseMul()
		if err != nil {
			return nil, err
		}
		expr = &Expr{Kind: ExprBinary, BinOp: op, Left: expr, Right: right, Span: MergeSpan(expr.Span, right.Span)}
	}
}

func (p *Parser) parseMul() (*Expr, error) {
	expr, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		var op BinaryOp
		switch {
		case p.matches(TokenStar):
			op = BinMul
		case p.matches(TokenSlash):
			op = BinDiv
		case p.matches(TokenPercent):
			op = BinMod
		default:
			return expr, nil
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		expr = &Expr{Kind: ExprBinary, BinOp: op, Left: expr, Right: right, Span: MergeSpan(expr.Span, right.Span)}
	}
}

func (p *Parser) parseUnary() (*Expr, error) {
	if p.matches(TokenMinus) {
		start := p.previous().Span.Start
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Expr{Kind: ExprUnary, UnaryOp: UnaryNeg, Operand: operand, Span: Span{Start: start, End: operand.Span.End}}, nil
	}
	if p.matches(TokenBang) {
		start := p.previous().Span.Start
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Expr{Kind: ExprUnary, UnaryOp: UnaryNot, Operand: operand, Span: Span{Start: start, End: operand.Span.End}}, nil
	}
	return p.parsePrimary()
}

func (p *Parser) parsePrimary() (*Expr, error) {
	switch {
	case p.matches(TokenNumber):
		tok := p.previous()
		value, err := strconv.ParseFloat(tok.Lexeme, 64)
		if err != nil {
			return nil, Syntaxf(tok.Span, "invalid numeric literal '%s'", tok.Lexeme)
		}
		return &Expr{Kind: ExprNumber, Number: value, Span: tok.Span}, nil

	case p.matches(TokenString):
		tok := p.previous()
		value, err := Unescape(tok.Lexeme, tok.Span)
		if err != nil {
			return nil, err
		}
		return &Expr{Kind: ExprString, String: value, Span: tok.Span}, nil

	case p.matches(TokenTrue):
		return &Expr{Kind: ExprBool, Bool: true, Span: p.previous().Span}, nil

	case p.matches(TokenFalse):
		return &Expr{Kind: ExprBool, Bool: false, Span: p.previous().Span}, nil

	case p.matches(TokenNull):
		return &Expr{Kind: ExprNull, Span: p.previous().Span}, nil

	case p.matches(TokenLBracket):
		return p.finishVector()

	case p.matches(TokenLBrace):
		return p.finishObject()

	case p.matches(TokenIdent):
		first := p.previous()

		if p.matches(TokenLParen) {
			args, err := p.parseArgs()
			if err != nil {
				return nil, err
			}
			end, err := p.expect(TokenRParen, "')'")
			if err != nil {
				return nil, err
			}
			return &Expr{Kind: ExprCall, CallName: first.Lexeme, Args: args, Span: Span{Start: first.Span.Start, End: end.Span.End}}, nil
		}

		if p.matches(TokenDot) {
			segments := []string{first.Lexeme}
			seg, err := p.expectIdent("reference segment")
			if err != nil {
				return nil, err
			}
			segments = append(segments, seg)
			for p.matches(TokenDot) {
				seg, err := p.expectIdent("reference segment")
				if err != nil {
					return nil, err
				}
				segments = append(segments, seg)
			}
			return &Expr{Kind: ExprReference, Segments: segments, Span: Span{Start: first.Span.Start, End: p.previous().Span.End}}, nil
		}

		return &Expr{Kind: ExprIdent, Segments: []string{first.Lexeme}, Span: first.Span}, nil

	case p.matches(TokenLParen):
		start := p.previous().Span.Start
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		end, err := p.expect(TokenRParen, "')'")
		if err != nil {
			return nil, err
		}
		expr.Span = Span{Start: start, End: end.Span.End}
		return expr, nil
	}

	return nil, p.expected("expression")
}

func (p *Parser) parseArgs() ([]*Expr, error) {
	var args []*Expr
	if p.at(TokenRParen) {
		return args, nil
	}
	for {
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if !p.matches(TokenComma) {
			break
		}
	}
	return args, nil
}

func (p *Parser) finishVector() (*Expr, error) {
	start := p.previous().Span.Start
	x, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenComma, "','"); err != nil {
		return nil, err
	}
	y, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenComma, "','"); err != nil {
		return nil, err
	}
	z, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	end, err := p.expect(TokenRBracket, "']'")
	if err != nil {
		return nil, err
	}
	return &Expr{Kind: ExprVector, Vector: [3]*Expr{x, y, z}, Span: Span{Start: start, End: end.Span.End}}, nil
}

func (p *Parser) finishObject() (*Expr, error) {
	start := p.previous().Span.Start
	var fields []ObjectField

	for !p.at(TokenRBrace) {
		if p.at(TokenEOF) {
			return nil, p.expected("'}'")
		}
		fieldStart := p.current().Span.Start
		name, err := p.expectIdent("object field name")
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokenColon, "':'"); err != nil {
			return nil, err
		}
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		semi, err := p.expect(TokenSemicolon, "';'")
		if err != nil {
			return nil, err
		}
		fields = append(fields, ObjectField{Name: name, Expr: expr, Span: Span{Start: fieldStart, End: semi.Span.End}})
	}

	end, err := p.expect(TokenRBrace, "'}'")
	if err != nil {
		return nil, err
	}
	return &Expr{Kind: ExprObject, Fields: fields, Span: Span{Start: start, End: end.Span.End}}, nil
}

func (p *Parser) current() Token  { return p.tokens[p.idx] }
func (p *Parser) previous() Token { return p.tokens[p.idx-1] }

func (p *Parser) at(kind TokenKind) bool { return p.current().Kind == kind }

func (p *Parser) matches(kind TokenKind) bool {
	if p.at(kind) {
		p.idx++
		return true
	}
	return false
}

func (p *Parser) expect(kind TokenKind, expected string) (Token, error) {
	if p.at(kind) {
		p.idx++
		return p.previous(), nil
	}
	return Token{}, p.expected(expected)
}

func (p *Parser) expectIdent(expected string) (string, error) {
	if p.matches(TokenIdent) {
		return p.previous().Lexeme, nil
	}
	return "", p.expected(expected)
}

func (p *Parser) expected(expected string) error {
	tok := p.current()
	return Syntaxf(tok.Span, "expected %s, found '%s'", expected, tok.Display())
}
