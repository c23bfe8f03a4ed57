package parse

import (
	"strconv"
	"strings"

	"github.com/rangeql/rangeql/rql"
	"github.com/rangeql/rangeql/rql/ast"
)

// Parse compiles query text into an unbound query tree. Identifier
// binding, validation and optimization happen later in the analyzer.
func Parse(ctx *rql.Context, query string) (*ast.Query, error) {
	span, _ := ctx.Span("parse")
	defer span.Finish()

	lex, err := NewLexer(query)
	if err != nil {
		return nil, err
	}
	p := &parser{lex: lex}
	q, err := p.parseScript()
	if err != nil {
		return nil, err
	}
	if err := p.expectType(EOFToken); err != nil {
		return nil, err
	}
	return q, nil
}

type parser struct {
	lex *Lexer
}

func (p *parser) cur() *Token  { return p.lex.Current() }
func (p *parser) peek() *Token { return p.lex.Peek() }

func (p *parser) advance() error {
	_, err := p.lex.Next()
	return err
}

func (p *parser) errUnexpected() error {
	tk := p.cur()
	return rql.ErrUnexpectedToken.New(tk.Value, tk.Line)
}

func (p *parser) expectType(typ TokenType) error {
	if p.cur().Type != typ {
		return p.errUnexpected()
	}
	return nil
}

func (p *parser) consumeType(typ TokenType) (*Token, error) {
	if err := p.expectType(typ); err != nil {
		return nil, err
	}
	tk := p.cur()
	return tk, p.advance()
}

func (p *parser) consumeKeyword(kw string) error {
	if !p.cur().Is(kw) {
		return p.errUnexpected()
	}
	return p.advance()
}

func (p *parser) acceptKeyword(kw string) (bool, error) {
	if !p.cur().Is(kw) {
		return false, nil
	}
	return true, p.advance()
}

// acceptKeywordPair speculatively consumes two adjacent keywords, restoring
// the cursor when the pair does not match.
func (p *parser) acceptKeywordPair(first, second string) (bool, error) {
	if !p.cur().Is(first) {
		return false, nil
	}
	state := p.lex.SaveState()
	if err := p.advance(); err != nil {
		return false, err
	}
	if !p.cur().Is(second) {
		p.lex.RestoreState(state)
		return false, nil
	}
	return true, p.advance()
}

func (p *parser) acceptOp(ops ...string) (string, error) {
	tk := p.cur()
	if tk.Type != OpToken {
		return "", nil
	}
	for _, op := range ops {
		if tk.Value == op {
			return op, p.advance()
		}
	}
	return "", nil
}

// parseScript parses zero or more range declarations followed by one
// retrieve statement.
func (p *parser) parseScript() (*ast.Query, error) {
	q := ast.NewQuery()

	for p.cur().Is("range") {
		if err := p.parseRangeDecl(q); err != nil {
			return nil, err
		}
		if _, err := p.consumeType(SemiColonToken); err != nil {
			return nil, err
		}
	}

	for p.cur().Type == DirectiveToken {
		q.Directives = append(q.Directives, strings.ToLower(p.cur().Value))
		if err := p.advance(); err != nil {
			return nil, err
		}
	}

	if err := p.parseRetrieve(q); err != nil {
		return nil, err
	}

	if p.cur().Type == SemiColonToken {
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	return q, nil
}

func (p *parser) parseRangeDecl(q *ast.Query) error {
	if err := p.consumeKeyword("range"); err != nil {
		return err
	}
	if err := p.consumeKeyword("of"); err != nil {
		return err
	}
	name, err := p.consumeType(IdentifierToken)
	if err != nil {
		return err
	}
	if err := p.consumeKeyword("is"); err != nil {
		return err
	}

	var r *ast.Range
	switch {
	case p.cur().Type == LeftParenToken:
		if err := p.advance(); err != nil {
			return err
		}
		inner, err := p.parseScript()
		if err != nil {
			return err
		}
		if _, err := p.consumeType(RightParenToken); err != nil {
			return err
		}
		r = ast.NewQueryRange(name.Value, inner)
	case p.cur().Is("json"):
		if err := p.advance(); err != nil {
			return err
		}
		src := p.cur()
		if src.Type != IdentifierToken && src.Type != StringToken {
			return p.errUnexpected()
		}
		if err := p.advance(); err != nil {
			return err
		}
		r = ast.NewJSONRange(name.Value, src.Value)
	default:
		entity, err := p.parseDottedName()
		if err != nil {
			return err
		}
		r = ast.NewEntityRange(name.Value, entity)
	}

	via, err := p.acceptKeyword("via")
	if err != nil {
		return err
	}
	if via {
		join, err := p.parseExpr()
		if err != nil {
			return err
		}
		r.WithJoin(join)
	}

	return q.AddRange(r)
}

func (p *parser) parseDottedName() (string, error) {
	tk, err := p.consumeType(IdentifierToken)
	if err != nil {
		return "", err
	}
	name := tk.Value
	for p.cur().Type == DotToken {
		if err := p.advance(); err != nil {
			return "", err
		}
		part, err := p.consumeType(IdentifierToken)
		if err != nil {
			return "", err
		}
		name += "." + part.Value
	}
	return name, nil
}

func (p *parser) parseRetrieve(q *ast.Query) error {
	if err := p.consumeKeyword("retrieve"); err != nil {
		return err
	}
	if _, err := p.consumeType(LeftParenToken); err != nil {
		return err
	}
	for {
		proj, err := p.parseExpr()
		if err != nil {
			return err
		}
		q.AddProjection(proj)
		if p.cur().Type != CommaToken {
			break
		}
		if err := p.advance(); err != nil {
			return err
		}
	}
	if _, err := p.consumeType(RightParenToken); err != nil {
		return err
	}

	unique, err := p.acceptKeyword("unique")
	if err != nil {
		return err
	}
	q.Unique = unique

	where, err := p.acceptKeyword("where")
	if err != nil {
		return err
	}
	if where {
		cond, err := p.parseExpr()
		if err != nil {
			return err
		}
		q.SetWhere(cond)
	}

	sortBy, err := p.acceptKeywordPair("sort", "by")
	if err != nil {
		return err
	}
	if sortBy {
		for {
			expr, err := p.parseExpr()
			if err != nil {
				return err
			}
			desc := false
			if asc, err := p.acceptKeyword("asc"); err != nil {
				return err
			} else if !asc {
				if desc, err = p.acceptKeyword("desc"); err != nil {
					return err
				}
			}
			q.AddSort(expr, desc)
			if p.cur().Type != CommaToken {
				break
			}
			if err := p.advance(); err != nil {
				return err
			}
		}
	}

	window, err := p.acceptKeyword("window")
	if err != nil {
		return err
	}
	if window {
		w, err := p.parsePrimary()
		if err != nil {
			return err
		}
		if err := p.consumeKeyword("using"); err != nil {
			return err
		}
		if err := p.consumeKeyword("window_size"); err != nil {
			return err
		}
		s, err := p.parsePrimary()
		if err != nil {
			return err
		}
		q.SetWindow(w, s)
	}

	return nil
}

// Expression grammar, loosest to tightest: or, and, not, comparison,
// additive (including shifts), multiplicative, unary, primary.

func (p *parser) parseExpr() (rql.Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for {
		or, err := p.acceptKeyword("or")
		if err != nil {
			return nil, err
		}
		if !or {
			return left, nil
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = ast.NewOr(left, right)
	}
}

func (p *parser) parseAnd() (rql.Node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for {
		and, err := p.acceptKeyword("and")
		if err != nil {
			return nil, err
		}
		if !and {
			return left, nil
		}
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = ast.NewAnd(left, right)
	}
}

func (p *parser) parseNot() (rql.Node, error) {
	not, err := p.acceptKeyword("not")
	if err != nil {
		return nil, err
	}
	if not {
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return ast.NewUnary(ast.OpNot, operand), nil
	}
	return p.parseComparison()
}

var comparisonOps = map[string]ast.BinaryOp{
	"==": ast.OpEquals,
	"=":  ast.OpEquals,
	"!=": ast.OpNotEquals,
	"<":  ast.OpLess,
	"<=": ast.OpLessEquals,
	">":  ast.OpGreater,
	">=": ast.OpGreaterEquals,
}

func (p *parser) parseComparison() (rql.Node, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}

	op, err := p.acceptOp("==", "=", "!=", "<=", ">=", "<", ">")
	if err != nil {
		return nil, err
	}
	if op != "" {
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return ast.NewBinary(comparisonOps[op], left, right), nil
	}

	if in, err := p.acceptKeyword("in"); err != nil {
		return nil, err
	} else if in {
		if _, err := p.consumeType(LeftParenToken); err != nil {
			return nil, err
		}
		var values []rql.Node
		for {
			v, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			values = append(values, v)
			if p.cur().Type != CommaToken {
				break
			}
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
		if _, err := p.consumeType(RightParenToken); err != nil {
			return nil, err
		}
		return ast.NewBinary(ast.OpIn, left, ast.NewValueList(values...)), nil
	}

	if like, err := p.acceptKeyword("like"); err != nil {
		return nil, err
	} else if like {
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return ast.NewBinary(ast.OpLike, left, right), nil
	}

	return left, nil
}

var additiveOps = map[string]ast.BinaryOp{
	"+":  ast.OpAdd,
	"-":  ast.OpSub,
	"<<": ast.OpShiftLeft,
	">>": ast.OpShiftRight,
}

func (p *parser) parseAdditive() (rql.Node, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		op, err := p.acceptOp("+", "-", "<<", ">>")
		if err != nil {
			return nil, err
		}
		if op == "" {
			return left, nil
		}
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = ast.NewBinary(additiveOps[op], left, right)
	}
}

var multiplicativeOps = map[string]ast.BinaryOp{
	"*": ast.OpMul,
	"/": ast.OpDiv,
	"%": ast.OpMod,
}

func (p *parser) parseMultiplicative() (rql.Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		op, err := p.acceptOp("*", "/", "%")
		if err != nil {
			return nil, err
		}
		if op == "" {
			return left, nil
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = ast.NewBinary(multiplicativeOps[op], left, right)
	}
}

func (p *parser) parseUnary() (rql.Node, error) {
	op, err := p.acceptOp("-")
	if err != nil {
		return nil, err
	}
	if op == "-" {
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return ast.NewUnary(ast.OpNeg, operand), nil
	}

	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	arrow, err := p.acceptOp("->")
	if err != nil {
		return nil, err
	}
	if arrow != "" {
		right, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		return ast.NewBinary(ast.OpArrow, left, right), nil
	}
	return left, nil
}

var aggregateFns = map[string]ast.AggregateFn{
	"sum":   ast.AggSum,
	"avg":   ast.AggAvg,
	"count": ast.AggCount,
	"min":   ast.AggMin,
	"max":   ast.AggMax,
	"any":   ast.AggAny,
}

func (p *parser) parsePrimary() (rql.Node, error) {
	tk := p.cur()
	switch tk.Type {
	case IntToken:
		v, err := strconv.ParseInt(tk.Value, 10, 64)
		if err != nil {
			return nil, rql.ErrMalformedNumber.New(tk.Value, tk.Line)
		}
		return ast.NewLiteral(v, ast.LiteralInt), p.advance()
	case FloatToken:
		v, err := strconv.ParseFloat(tk.Value, 64)
		if err != nil {
			return nil, rql.ErrMalformedNumber.New(tk.Value, tk.Line)
		}
		return ast.NewLiteral(v, ast.LiteralFloat), p.advance()
	case StringToken:
		return ast.NewLiteral(tk.Value, ast.LiteralString), p.advance()
	case BoolToken:
		return ast.NewLiteral(tk.Value == "true", ast.LiteralBool), p.advance()
	case NullToken:
		return ast.NewNull(), p.advance()
	case ParamToken:
		return ast.NewParam(tk.Value), p.advance()
	case LeftParenToken:
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.consumeType(RightParenToken); err != nil {
			return nil, err
		}
		return inner, nil
	case KeywordToken:
		if fn, ok := aggregateFns[tk.Value]; ok {
			return p.parseAggregate(fn)
		}
		if tk.Value == "exists" {
			return p.parseExists()
		}
		return nil, p.errUnexpected()
	case IdentifierToken:
		return p.parseIdentifier()
	}
	return nil, p.errUnexpected()
}

func (p *parser) parseAggregate(fn ast.AggregateFn) (rql.Node, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	unique, err := p.acceptKeyword("unique")
	if err != nil {
		return nil, err
	}
	if _, err := p.consumeType(LeftParenToken); err != nil {
		return nil, err
	}
	target, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	agg := ast.NewAggregate(fn, target)
	if unique {
		agg.WithUnique()
	}
	hasFilter, err := p.acceptKeyword("if")
	if err != nil {
		return nil, err
	}
	if hasFilter {
		filter, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		agg.WithFilter(filter)
	}
	if _, err := p.consumeType(RightParenToken); err != nil {
		return nil, err
	}
	return agg, nil
}

// parseExists parses `exists(<range>)`, an existence test on a declared
// range. The binder resolves the identifier, EXISTS lifting consumes it.
func (p *parser) parseExists() (rql.Node, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	if _, err := p.consumeType(LeftParenToken); err != nil {
		return nil, err
	}
	target, err := p.parseIdentifier()
	if err != nil {
		return nil, err
	}
	if _, err := p.consumeType(RightParenToken); err != nil {
		return nil, err
	}
	s := &ast.Subquery{SubKind: ast.SubExists, Projection: target}
	target.SetParent(s)
	return s, nil
}

func (p *parser) parseIdentifier() (*ast.Identifier, error) {
	tk, err := p.consumeType(IdentifierToken)
	if err != nil {
		return nil, err
	}
	parts := []string{tk.Value}
	for p.cur().Type == DotToken {
		if err := p.advance(); err != nil {
			return nil, err
		}
		part, err := p.consumeType(IdentifierToken)
		if err != nil {
			return nil, err
		}
		parts = append(parts, part.Value)
	}
	return ast.NewIdentifier(parts...), nil
}
