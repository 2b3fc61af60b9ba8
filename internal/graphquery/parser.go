package graphquery

import (
	"fmt"

	"github.com/fctr-id/okta-ai-agent/internal/graphsnapshot"
)

type parser struct {
	toks []token
	pos  int
}

// Parse lexes and parses query text into a Query. Safety filtering must
// have already passed; Parse only reports syntax errors.
func Parse(text string) (*Query, error) {
	toks, err := newLexer(text).tokens()
	if err != nil {
		return nil, fmt.Errorf("lex query: %w", err)
	}
	p := &parser{toks: toks}
	return p.parseQuery()
}

func (p *parser) cur() token  { return p.toks[p.pos] }
func (p *parser) advance() token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) expectKeyword(kw string) error {
	t := p.cur()
	if t.kind != tokKeyword || t.text != kw {
		return fmt.Errorf("expected %s at position %d, found %q", kw, t.pos, t.text)
	}
	p.advance()
	return nil
}

func (p *parser) expectKind(k tokenKind, what string) (token, error) {
	t := p.cur()
	if t.kind != k {
		return token{}, fmt.Errorf("expected %s at position %d, found %q", what, t.pos, t.text)
	}
	p.advance()
	return t, nil
}

func (p *parser) parseQuery() (*Query, error) {
	if err := p.expectKeyword("MATCH"); err != nil {
		return nil, err
	}
	match, err := p.parseMatch()
	if err != nil {
		return nil, err
	}
	q := &Query{Match: match}
	if p.cur().kind == tokKeyword && p.cur().text == "WHERE" {
		p.advance()
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		q.Where = expr
	}
	if err := p.expectKeyword("RETURN"); err != nil {
		return nil, err
	}
	items, err := p.parseReturnList()
	if err != nil {
		return nil, err
	}
	q.Return = items
	if p.cur().kind != tokEOF {
		return nil, fmt.Errorf("unexpected trailing token %q at position %d", p.cur().text, p.cur().pos)
	}
	return q, nil
}

func (p *parser) parseNodePattern() (NodePattern, error) {
	if _, err := p.expectKind(tokLParen, "'('"); err != nil {
		return NodePattern{}, err
	}
	v, err := p.expectKind(tokIdent, "variable name")
	if err != nil {
		return NodePattern{}, err
	}
	if _, err := p.expectKind(tokColon, "':'"); err != nil {
		return NodePattern{}, err
	}
	label, err := p.expectKind(tokIdent, "node label")
	if err != nil {
		return NodePattern{}, err
	}
	if _, err := p.expectKind(tokRParen, "')'"); err != nil {
		return NodePattern{}, err
	}
	return NodePattern{Var: v.text, Label: graphsnapshot.NodeLabel(label.text)}, nil
}

func (p *parser) parseMatch() (MatchClause, error) {
	start, err := p.parseNodePattern()
	if err != nil {
		return MatchClause{}, err
	}
	m := MatchClause{Start: start}
	for p.cur().kind == tokDash {
		p.advance()
		if _, err := p.expectKind(tokLBracket, "'['"); err != nil {
			return MatchClause{}, err
		}
		if _, err := p.expectKind(tokColon, "':'"); err != nil {
			return MatchClause{}, err
		}
		rel, err := p.expectKind(tokIdent, "relationship type")
		if err != nil {
			return MatchClause{}, err
		}
		if _, err := p.expectKind(tokRBracket, "']'"); err != nil {
			return MatchClause{}, err
		}
		if _, err := p.expectKind(tokArrow, "'->'"); err != nil {
			return MatchClause{}, err
		}
		to, err := p.parseNodePattern()
		if err != nil {
			return MatchClause{}, err
		}
		m.Hops = append(m.Hops, RelPattern{Type: graphsnapshot.RelType(rel.text), To: to})
	}
	return m, nil
}

func (p *parser) parseExpr() (*Expr, error) {
	return p.parseOr()
}

func (p *parser) parseOr() (*Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.cur().kind == tokKeyword && p.cur().text == "OR" {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &Expr{Op: BoolOr, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (*Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.cur().kind == tokKeyword && p.cur().text == "AND" {
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &Expr{Op: BoolAnd, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (*Expr, error) {
	if p.cur().kind == tokKeyword && p.cur().text == "NOT" {
		p.advance()
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		inner.Not = !inner.Not
		return inner, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (*Expr, error) {
	if p.cur().kind == tokLParen {
		p.advance()
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectKind(tokRParen, "')'"); err != nil {
			return nil, err
		}
		return inner, nil
	}
	if p.cur().kind == tokKeyword && p.cur().text == "ANY" {
		ex, err := p.parseExists()
		if err != nil {
			return nil, err
		}
		return &Expr{Exists: ex}, nil
	}
	pred, err := p.parsePredicate()
	if err != nil {
		return nil, err
	}
	return &Expr{Leaf: pred}, nil
}

// parseExists parses `ANY(x IN var.attr WHERE x CONTAINS value)`.
func (p *parser) parseExists() (*ExistsPredicate, error) {
	p.advance() // ANY
	if _, err := p.expectKind(tokLParen, "'('"); err != nil {
		return nil, err
	}
	if _, err := p.expectKind(tokIdent, "bound variable"); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("IN"); err != nil {
		return nil, err
	}
	v, err := p.expectKind(tokIdent, "variable name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expectKind(tokDot, "'.'"); err != nil {
		return nil, err
	}
	attr, err := p.expectKind(tokIdent, "attribute name")
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("WHERE"); err != nil {
		return nil, err
	}
	if _, err := p.expectKind(tokIdent, "bound variable reference"); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("CONTAINS"); err != nil {
		return nil, err
	}
	val, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectKind(tokRParen, "')'"); err != nil {
		return nil, err
	}
	return &ExistsPredicate{Var: v.text, Attr: attr.text, Value: val}, nil
}

func (p *parser) parsePredicate() (*Predicate, error) {
	v, err := p.expectKind(tokIdent, "variable name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expectKind(tokDot, "'.'"); err != nil {
		return nil, err
	}
	attr, err := p.expectKind(tokIdent, "attribute name")
	if err != nil {
		return nil, err
	}
	var op CompareOp
	switch {
	case p.cur().kind == tokOp:
		op = CompareOp(p.advance().text)
	case p.cur().kind == tokKeyword && p.cur().text == "CONTAINS":
		p.advance()
		op = OpContains
	default:
		return nil, fmt.Errorf("expected comparison operator at position %d, found %q", p.cur().pos, p.cur().text)
	}
	val, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	return &Predicate{Var: v.text, Attr: attr.text, Op: op, Value: val}, nil
}

func (p *parser) parseValue() (Value, error) {
	t := p.cur()
	switch {
	case t.kind == tokString:
		p.advance()
		s := t.text
		return Value{Str: &s}, nil
	case t.kind == tokNumber:
		p.advance()
		var n float64
		if _, err := fmt.Sscanf(t.text, "%g", &n); err != nil {
			return Value{}, fmt.Errorf("invalid numeric literal %q", t.text)
		}
		return Value{Num: &n}, nil
	case t.kind == tokKeyword && t.text == "TRUE":
		p.advance()
		b := true
		return Value{Bool: &b}, nil
	case t.kind == tokKeyword && t.text == "FALSE":
		p.advance()
		b := false
		return Value{Bool: &b}, nil
	case t.kind == tokKeyword && t.text == "NULL":
		p.advance()
		return Value{IsNull: true}, nil
	}
	return Value{}, fmt.Errorf("expected literal value at position %d, found %q", t.pos, t.text)
}

func (p *parser) parseReturnList() ([]ReturnItem, error) {
	var items []ReturnItem
	for {
		v, err := p.expectKind(tokIdent, "variable name")
		if err != nil {
			return nil, err
		}
		if _, err := p.expectKind(tokDot, "'.'"); err != nil {
			return nil, err
		}
		attr, err := p.expectKind(tokIdent, "attribute name")
		if err != nil {
			return nil, err
		}
		item := ReturnItem{Var: v.text, Attr: attr.text}
		if p.cur().kind == tokKeyword && p.cur().text == "AS" {
			p.advance()
			alias, err := p.expectKind(tokIdent, "alias")
			if err != nil {
				return nil, err
			}
			item.Alias = alias.text
		}
		items = append(items, item)
		if p.cur().kind == tokComma {
			p.advance()
			continue
		}
		break
	}
	return items, nil
}
