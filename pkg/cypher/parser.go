package cypher

import (
	"strconv"
	"strings"
)

// Parser consumes a token stream produced by Tokenize and builds a
// Query AST, raising *SyntaxError for anything outside the supported
// whitelist (UNION, OPTIONAL MATCH, FOREACH, CALL) or a malformed
// clause.
type Parser struct {
	toks []Token
	pos  int
}

// Parse tokenizes and parses one Cypher statement.
func Parse(src string) (*Query, error) {
	toks, err := Tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &Parser{toks: toks}
	return p.parseQuery()
}

func (p *Parser) cur() Token  { return p.toks[p.pos] }
func (p *Parser) advance() Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) isKeyword(kw string) bool {
	return p.cur().Kind == TokKeyword && p.cur().Text == kw
}

func (p *Parser) expectKeyword(kw string) (Token, error) {
	if !p.isKeyword(kw) {
		return Token{}, &SyntaxError{Clause: p.cur().Text, Message: "expected " + kw, Pos: p.cur().Pos}
	}
	return p.advance(), nil
}

func (p *Parser) expect(kind TokenKind, what string) (Token, error) {
	if p.cur().Kind != kind {
		return Token{}, &SyntaxError{Clause: p.cur().Text, Message: "expected " + what, Pos: p.cur().Pos}
	}
	return p.advance(), nil
}

func (p *Parser) parseQuery() (*Query, error) {
	q := &Query{}

	for {
		switch {
		case p.isKeyword("match"):
			pattern, err := p.parseMatchClause()
			if err != nil {
				return nil, err
			}
			q.Match = append(q.Match, pattern...)
		case p.isKeyword("optional"):
			return nil, &SyntaxError{Clause: "optional match", Message: "OPTIONAL MATCH is not in the supported whitelist", Pos: p.cur().Pos}
		case p.isKeyword("where"):
			p.advance()
			expr, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			q.Where = expr
		case p.isKeyword("create"):
			clause, err := p.parseCreateClause()
			if err != nil {
				return nil, err
			}
			q.Updates = append(q.Updates, clause)
		case p.isKeyword("merge"):
			clause, err := p.parseMergeClause()
			if err != nil {
				return nil, err
			}
			q.Updates = append(q.Updates, clause)
		case p.isKeyword("set"):
			clause, err := p.parseSetClause()
			if err != nil {
				return nil, err
			}
			q.Updates = append(q.Updates, clause)
		case p.isKeyword("remove"):
			clause, err := p.parseRemoveClause()
			if err != nil {
				return nil, err
			}
			q.Updates = append(q.Updates, clause)
		case p.isKeyword("delete") || p.isKeyword("detach"):
			clause, err := p.parseDeleteClause()
			if err != nil {
				return nil, err
			}
			q.Updates = append(q.Updates, clause)
		case p.isKeyword("unwind"):
			p.advance()
			expr, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expectKeyword("as"); err != nil {
				return nil, err
			}
			name, err := p.expect(TokIdent, "variable name")
			if err != nil {
				return nil, err
			}
			q.Unwind = &UnwindClause{Source: expr, Var: name.Text}
		case p.isKeyword("with"):
			p.advance()
			items, err := p.parseReturnItems()
			if err != nil {
				return nil, err
			}
			q.With = items
		case p.isKeyword("foreach"):
			return nil, &SyntaxError{Clause: "foreach", Message: "FOREACH is not in the supported whitelist", Pos: p.cur().Pos}
		case p.isKeyword("call"):
			return nil, &SyntaxError{Clause: "call", Message: "CALL is not in the supported whitelist", Pos: p.cur().Pos}
		case p.isKeyword("union"):
			return nil, &SyntaxError{Clause: "union", Message: "UNION is not in the supported whitelist", Pos: p.cur().Pos}
		case p.isKeyword("return"):
			p.advance()
			if p.isKeyword("distinct") {
				p.advance()
				q.Distinct = true
			}
			items, err := p.parseReturnItems()
			if err != nil {
				return nil, err
			}
			q.Return = items
		case p.isKeyword("order"):
			p.advance()
			if _, err := p.expectKeyword("by"); err != nil {
				return nil, err
			}
			items, err := p.parseOrderItems()
			if err != nil {
				return nil, err
			}
			q.OrderBy = items
		case p.isKeyword("skip"):
			p.advance()
			n, err := p.parseIntLiteral()
			if err != nil {
				return nil, err
			}
			q.Skip, q.HasSkip = n, true
		case p.isKeyword("limit"):
			p.advance()
			n, err := p.parseIntLiteral()
			if err != nil {
				return nil, err
			}
			q.Limit, q.HasLimit = n, true
		case p.cur().Kind == TokEOF:
			return q, nil
		default:
			return nil, &SyntaxError{Clause: p.cur().Text, Message: "unexpected token", Pos: p.cur().Pos}
		}
	}
}

func (p *Parser) parseIntLiteral() (int, error) {
	tok, err := p.expect(TokInt, "integer")
	if err != nil {
		return 0, err
	}
	n, _ := strconv.Atoi(tok.Text)
	return n, nil
}

// parseMatchClause parses `MATCH pattern (, pattern)*`.
func (p *Parser) parseMatchClause() ([]PatternElementAST, error) {
	p.advance()
	var out []PatternElementAST
	for {
		elem, err := p.parsePatternElement()
		if err != nil {
			return nil, err
		}
		out = append(out, elem)
		if p.cur().Kind == TokComma {
			p.advance()
			continue
		}
		break
	}
	return out, nil
}

// parsePatternElement parses `(a)-[:TYPE]->(b)-[:TYPE2]->(c)...`.
func (p *Parser) parsePatternElement() (PatternElementAST, error) {
	var elem PatternElementAST
	first, err := p.parseNodePattern()
	if err != nil {
		return elem, err
	}
	elem.Nodes = append(elem.Nodes, first)

	for p.cur().Kind == TokDash || p.cur().Kind == TokArrowR || p.cur().Kind == TokLT {
		rel, err := p.parseRelPattern()
		if err != nil {
			return elem, err
		}
		elem.Rels = append(elem.Rels, rel)
		node, err := p.parseNodePattern()
		if err != nil {
			return elem, err
		}
		elem.Nodes = append(elem.Nodes, node)
	}
	return elem, nil
}

func (p *Parser) parseNodePattern() (NodePatternAST, error) {
	var np NodePatternAST
	if _, err := p.expect(TokLParen, "("); err != nil {
		return np, err
	}
	if p.cur().Kind == TokIdent {
		np.Var = p.advance().Text
	}
	for p.cur().Kind == TokColon {
		p.advance()
		label, err := p.expect(TokIdent, "label")
		if err != nil {
			return np, err
		}
		np.Labels = append(np.Labels, label.Text)
	}
	if p.cur().Kind == TokLBrace {
		if err := p.skipMapLiteral(); err != nil {
			return np, err
		}
	}
	if _, err := p.expect(TokRParen, ")"); err != nil {
		return np, err
	}
	return np, nil
}

// skipMapLiteral consumes a {k: v, ...} literal without retaining it;
// inline node-pattern property maps are not part of this pass's
// whitelist (use WHERE instead).
func (p *Parser) skipMapLiteral() error {
	depth := 0
	for {
		switch p.cur().Kind {
		case TokLBrace:
			depth++
			p.advance()
		case TokRBrace:
			depth--
			p.advance()
			if depth == 0 {
				return nil
			}
		case TokEOF:
			return &SyntaxError{Clause: "{", Message: "unterminated map literal", Pos: p.cur().Pos}
		default:
			p.advance()
		}
	}
}

func (p *Parser) parseRelPattern() (RelPatternAST, error) {
	var rel RelPatternAST
	backward := false
	if p.cur().Kind == TokDash {
		p.advance()
	}
	if p.cur().Kind == TokLT {
		backward = true
		p.advance()
		if _, err := p.expect(TokDash, "-"); err != nil {
			return rel, err
		}
	}
	if p.cur().Kind == TokLBrack {
		p.advance()
		if p.cur().Kind == TokIdent {
			rel.Var = p.advance().Text
		}
		for p.cur().Kind == TokColon {
			p.advance()
			typ, err := p.expect(TokIdent, "relationship type")
			if err != nil {
				return rel, err
			}
			rel.Types = append(rel.Types, typ.Text)
			for p.cur().Kind == TokPipe {
				p.advance()
				typ, err := p.expect(TokIdent, "relationship type")
				if err != nil {
					return rel, err
				}
				rel.Types = append(rel.Types, typ.Text)
			}
		}
		if p.cur().Kind == TokStar {
			rel.VarLength = true
			p.advance()
			rel.MinHops, rel.MaxHops = 1, 1
			if p.cur().Kind == TokInt {
				n, _ := strconv.Atoi(p.advance().Text)
				rel.MinHops = n
				rel.MaxHops = n
			}
			if p.cur().Kind == TokDot {
				p.advance()
				if _, err := p.expect(TokDot, "."); err != nil {
					return rel, err
				}
				if p.cur().Kind == TokInt {
					n, _ := strconv.Atoi(p.advance().Text)
					rel.MaxHops = n
				} else {
					rel.MaxHops = 64
				}
			}
		}
		if _, err := p.expect(TokRBrack, "]"); err != nil {
			return rel, err
		}
	}
	if p.cur().Kind == TokArrowR {
		p.advance()
		rel.Forward = true
	} else if p.cur().Kind == TokDash {
		p.advance()
		if backward {
			rel.Backward = true
		}
	}
	if !rel.Forward && backward {
		rel.Backward = true
	}
	if !rel.MinHops1() {
		rel.MinHops, rel.MaxHops = 1, 1
	}
	return rel, nil
}

// MinHops1 reports whether hop bounds have already been set by a
// variable-length relationship (*min..max).
func (r RelPatternAST) MinHops1() bool { return r.VarLength }

func (p *Parser) parseReturnItems() ([]ReturnItem, error) {
	var out []ReturnItem
	for {
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		item := ReturnItem{Expr: expr}
		if p.isKeyword("as") {
			p.advance()
			name, err := p.expect(TokIdent, "alias")
			if err != nil {
				return nil, err
			}
			item.Alias = name.Text
		}
		out = append(out, item)
		if p.cur().Kind == TokComma {
			p.advance()
			continue
		}
		break
	}
	return out, nil
}

func (p *Parser) parseOrderItems() ([]OrderItem, error) {
	var out []OrderItem
	for {
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		item := OrderItem{Expr: expr}
		if p.isKeyword("asc") {
			p.advance()
		} else if p.isKeyword("desc") {
			p.advance()
			item.Desc = true
		}
		out = append(out, item)
		if p.cur().Kind == TokComma {
			p.advance()
			continue
		}
		break
	}
	return out, nil
}

func (p *Parser) parseCreateClause() (UpdateClause, error) {
	p.advance()
	elem, err := p.parsePatternElement()
	if err != nil {
		return UpdateClause{}, err
	}
	return UpdateClause{Kind: UpdateCreate, Pattern: &elem}, nil
}

func (p *Parser) parseMergeClause() (UpdateClause, error) {
	p.advance()
	elem, err := p.parsePatternElement()
	if err != nil {
		return UpdateClause{}, err
	}
	return UpdateClause{Kind: UpdateMerge, Pattern: &elem}, nil
}

func (p *Parser) parseSetClause() (UpdateClause, error) {
	p.advance()
	var items []SetItem
	for {
		name, err := p.expect(TokIdent, "variable")
		if err != nil {
			return UpdateClause{}, err
		}
		if p.cur().Kind == TokColon {
			p.advance()
			label, err := p.expect(TokIdent, "label")
			if err != nil {
				return UpdateClause{}, err
			}
			items = append(items, SetItem{Var: name.Text, Label: label.Text})
		} else {
			if _, err := p.expect(TokDot, "."); err != nil {
				return UpdateClause{}, err
			}
			key, err := p.expect(TokIdent, "property key")
			if err != nil {
				return UpdateClause{}, err
			}
			if _, err := p.expect(TokEq, "="); err != nil {
				return UpdateClause{}, err
			}
			val, err := p.parseExpr()
			if err != nil {
				return UpdateClause{}, err
			}
			items = append(items, SetItem{Var: name.Text, Key: key.Text, Value: val})
		}
		if p.cur().Kind == TokComma {
			p.advance()
			continue
		}
		break
	}
	return UpdateClause{Kind: UpdateSet, SetProps: items}, nil
}

func (p *Parser) parseRemoveClause() (UpdateClause, error) {
	p.advance()
	var items []RemoveItem
	for {
		name, err := p.expect(TokIdent, "variable")
		if err != nil {
			return UpdateClause{}, err
		}
		if p.cur().Kind == TokColon {
			p.advance()
			label, err := p.expect(TokIdent, "label")
			if err != nil {
				return UpdateClause{}, err
			}
			items = append(items, RemoveItem{Var: name.Text, Label: label.Text})
		} else {
			if _, err := p.expect(TokDot, "."); err != nil {
				return UpdateClause{}, err
			}
			key, err := p.expect(TokIdent, "property key")
			if err != nil {
				return UpdateClause{}, err
			}
			items = append(items, RemoveItem{Var: name.Text, Key: key.Text})
		}
		if p.cur().Kind == TokComma {
			p.advance()
			continue
		}
		break
	}
	return UpdateClause{Kind: UpdateRemove, Removals: items}, nil
}

func (p *Parser) parseDeleteClause() (UpdateClause, error) {
	detach := false
	if p.isKeyword("detach") {
		detach = true
		p.advance()
	}
	p.advance() // consume DELETE
	var targets []string
	for {
		name, err := p.expect(TokIdent, "variable")
		if err != nil {
			return UpdateClause{}, err
		}
		targets = append(targets, name.Text)
		if p.cur().Kind == TokComma {
			p.advance()
			continue
		}
		break
	}
	return UpdateClause{Kind: UpdateDelete, Detach: detach, Targets: targets}, nil
}

// --- expression parsing, precedence climbing ---

func (p *Parser) parseExpr() (Expr, error) { return p.parseOr() }

func (p *Parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("or") {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = BinOpExpr{Op: "or", Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseAnd() (Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("and") {
		p.advance()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = BinOpExpr{Op: "and", Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseNot() (Expr, error) {
	if p.isKeyword("not") {
		p.advance()
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return NotExpr{Operand: operand}, nil
	}
	return p.parseComparison()
}

var comparisonOps = map[TokenKind]string{
	TokEq: "=", TokNeq: "<>", TokLT: "<", TokLte: "<=", TokGT: ">", TokGte: ">=",
}

func (p *Parser) parseComparison() (Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	if op, ok := comparisonOps[p.cur().Kind]; ok {
		p.advance()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return BinOpExpr{Op: op, Left: left, Right: right}, nil
	}
	return left, nil
}

func (p *Parser) parseAdditive() (Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.cur().Kind == TokPlus || p.cur().Kind == TokDash {
		op := "+"
		if p.cur().Kind == TokDash {
			op = "-"
		}
		p.advance()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = BinOpExpr{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseMultiplicative() (Expr, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for p.cur().Kind == TokStar || p.cur().Kind == TokSlash {
		op := "*"
		if p.cur().Kind == TokSlash {
			op = "/"
		}
		p.advance()
		right, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		left = BinOpExpr{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parsePrimary() (Expr, error) {
	tok := p.cur()
	switch tok.Kind {
	case TokInt:
		p.advance()
		n, _ := strconv.ParseInt(tok.Text, 10, 64)
		return LitExpr{Kind: "int", Int: n}, nil
	case TokFloat:
		p.advance()
		f, _ := strconv.ParseFloat(tok.Text, 64)
		return LitExpr{Kind: "float", Float: f}, nil
	case TokString:
		p.advance()
		return LitExpr{Kind: "string", Str: tok.Text}, nil
	case TokParam:
		p.advance()
		return ParamExpr{Name: tok.Text}, nil
	case TokLParen:
		p.advance()
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokRParen, ")"); err != nil {
			return nil, err
		}
		return expr, nil
	case TokKeyword:
		switch tok.Text {
		case "true":
			p.advance()
			return LitExpr{Kind: "bool", Bool: true}, nil
		case "false":
			p.advance()
			return LitExpr{Kind: "bool", Bool: false}, nil
		case "null":
			p.advance()
			return LitExpr{Kind: "null"}, nil
		}
		return nil, &SyntaxError{Clause: tok.Text, Message: "unexpected keyword in expression", Pos: tok.Pos}
	case TokIdent:
		p.advance()
		if p.cur().Kind == TokLParen {
			return p.parseCallArgs(tok.Text)
		}
		if p.cur().Kind == TokDot {
			p.advance()
			key, err := p.expect(TokIdent, "property key")
			if err != nil {
				return nil, err
			}
			return PropertyExpr{Var: tok.Text, Key: key.Text}, nil
		}
		return VarExpr{Name: tok.Text}, nil
	default:
		return nil, &SyntaxError{Clause: tok.Text, Message: "expected an expression", Pos: tok.Pos}
	}
}

func (p *Parser) parseCallArgs(name string) (Expr, error) {
	p.advance() // consume (
	call := CallExpr{Func: strings.ToLower(name)}
	if p.cur().Kind != TokRParen {
		for {
			arg, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			call.Args = append(call.Args, arg)
			if p.cur().Kind == TokComma {
				p.advance()
				continue
			}
			break
		}
	}
	if _, err := p.expect(TokRParen, ")"); err != nil {
		return nil, err
	}
	return call, nil
}
