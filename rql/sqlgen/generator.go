// Package sqlgen renders analyzed queries as parameterized SQL. Every
// literal and bound parameter becomes a `?` placeholder, values travel in
// the argument slice. The generator also hosts the pagination transformer
// that rewrites windowed queries into key-list filters.
package sqlgen

import (
	"sort"
	"strings"

	errors "gopkg.in/src-d/go-errors.v1"

	"github.com/rangeql/rangeql/rql"
	"github.com/rangeql/rangeql/rql/ast"
)

var (
	// ErrNotRenderable is returned when a node reaches the generator that
	// has no SQL form, such as a JSON-backed range the decomposer should
	// have split out.
	ErrNotRenderable = errors.NewKind("cannot render %s as SQL")

	// ErrUnboundParam is returned when the query references a parameter
	// the caller did not supply.
	ErrUnboundParam = errors.NewKind("parameter %q is not bound")
)

// Generator renders queries for one backend dialect.
type Generator struct {
	Metadata rql.Metadata
	// WindowFunctions enables the `agg OVER ()` rendering of window-form
	// aggregates. When false they fall back to a repeated scalar subquery
	// over an alias-suffixed copy of the row set.
	WindowFunctions bool
}

// NewGenerator returns a generator assuming window-function support.
func NewGenerator(md rql.Metadata) *Generator {
	return &Generator{Metadata: md, WindowFunctions: true}
}

// Generate renders the query and returns the statement with its ordered
// argument list.
func (g *Generator) Generate(q *ast.Query, params map[string]interface{}) (string, []interface{}, error) {
	b := &builder{g: g, params: params, outer: q}
	sql, err := b.query(q)
	if err != nil {
		return "", nil, err
	}
	return sql, b.args, nil
}

type builder struct {
	g      *Generator
	params map[string]interface{}
	args   []interface{}
	outer  *ast.Query
	// aliasSuffix is appended to every range alias while rendering the
	// window-function fallback subquery.
	aliasSuffix string
}

func (b *builder) query(q *ast.Query) (string, error) {
	var sb strings.Builder
	sb.WriteString("SELECT ")
	if q.Unique {
		sb.WriteString("DISTINCT ")
	}

	projections := append(append([]rql.Node(nil), q.Projections...), q.Hidden...)
	var items []string
	for i, p := range projections {
		if id, ok := p.(*ast.Identifier); ok && id.IsLeaf() {
			expanded, err := b.wholeRange(id)
			if err != nil {
				return "", err
			}
			items = append(items, expanded...)
			continue
		}
		expr, err := b.expr(p)
		if err != nil {
			return "", err
		}
		items = append(items, expr+" AS "+quote(ast.AliasOf(p, i)))
	}
	sb.WriteString(strings.Join(items, ", "))

	from, err := b.from(q)
	if err != nil {
		return "", err
	}
	sb.WriteString(from)

	if q.Where != nil {
		where, err := b.expr(q.Where)
		if err != nil {
			return "", err
		}
		sb.WriteString(" WHERE ")
		sb.WriteString(where)
	}

	for i, s := range q.Sort {
		if i == 0 {
			sb.WriteString(" ORDER BY ")
		} else {
			sb.WriteString(", ")
		}
		sb.WriteString(b.orderKey(q, s.Expr))
		if s.Desc {
			sb.WriteString(" DESC")
		}
	}
	return sb.String(), nil
}

// from renders the join tree. The first joined range is the FROM root,
// every other one joins INNER or LEFT depending on whether the optimizer
// proved its rows required.
func (b *builder) from(q *ast.Query) (string, error) {
	var sb strings.Builder
	first := true
	for _, r := range q.Ranges {
		if !r.IncludeAsJoin {
			continue
		}
		table, err := b.table(r)
		if err != nil {
			return "", err
		}
		if first {
			sb.WriteString(" FROM ")
			sb.WriteString(table)
			sb.WriteString(" ")
			sb.WriteString(quote(r.RangeName + b.aliasSuffix))
			first = false
			continue
		}
		if r.Required {
			sb.WriteString(" INNER JOIN ")
		} else {
			sb.WriteString(" LEFT JOIN ")
		}
		sb.WriteString(table)
		sb.WriteString(" ")
		sb.WriteString(quote(r.RangeName + b.aliasSuffix))
		if r.Join != nil {
			on, err := b.expr(r.Join)
			if err != nil {
				return "", err
			}
			sb.WriteString(" ON ")
			sb.WriteString(on)
		} else {
			sb.WriteString(" ON 1 = 1")
		}
	}
	if first {
		return "", ErrNotRenderable.New("a query with no joined ranges")
	}
	return sb.String(), nil
}

func (b *builder) table(r *ast.Range) (string, error) {
	switch r.Source {
	case ast.SourceEntity:
		table, err := b.g.Metadata.TableName(r.Entity)
		if err != nil {
			return "", err
		}
		return quote(table), nil
	case ast.SourceQuery:
		if r.TempTable == "" {
			return "", ErrNotRenderable.New("an unmaterialized temporary range")
		}
		return quote(r.TempTable), nil
	default:
		return "", ErrNotRenderable.New("a JSON range")
	}
}

// orderKey renders an ORDER BY entry. Expressions that appear in the
// projection list sort by their output alias so DISTINCT stays valid.
func (b *builder) orderKey(q *ast.Query, expr rql.Node) string {
	target := ast.AliasOf(expr, -1)
	for i, p := range q.Projections {
		if ast.AliasOf(p, i) == target {
			return quote(target)
		}
	}
	s, err := b.expr(expr)
	if err != nil {
		return quote(target)
	}
	return s
}

func (b *builder) expr(n rql.Node) (string, error) {
	switch n := n.(type) {
	case *ast.Identifier:
		return b.identifier(n)
	case *ast.Literal:
		if n.IsNull() {
			return "NULL", nil
		}
		b.args = append(b.args, n.Value)
		return "?", nil
	case *ast.Param:
		v, ok := b.params[n.ParamName]
		if !ok {
			return "", ErrUnboundParam.New(n.ParamName)
		}
		if v == nil {
			return "NULL", nil
		}
		b.args = append(b.args, v)
		return "?", nil
	case *ast.ValueList:
		return b.valueList(n)
	case *ast.UnaryExpr:
		return b.unary(n)
	case *ast.BinaryExpr:
		return b.binary(n)
	case *ast.Aggregate:
		return b.aggregate(n)
	case *ast.Subquery:
		return b.subquery(n)
	default:
		return "", ErrNotRenderable.New(n.String())
	}
}

// wholeRange expands a bare range projection to the full column list of
// its source, one aliased item per column.
func (b *builder) wholeRange(id *ast.Identifier) ([]string, error) {
	r := id.Range
	alias := quote(r.RangeName + b.aliasSuffix)
	prefix := r.RangeName + "_"

	switch r.Source {
	case ast.SourceEntity:
		columns, err := b.g.Metadata.ColumnMap(r.Entity)
		if err != nil {
			return nil, err
		}
		props := make([]string, 0, len(columns))
		for prop := range columns {
			props = append(props, prop)
		}
		sortStrings(props)
		items := make([]string, 0, len(props))
		for _, prop := range props {
			items = append(items, alias+"."+quote(columns[prop].Name)+" AS "+quote(prefix+prop))
		}
		return items, nil
	case ast.SourceQuery:
		items := make([]string, 0, len(r.Shape))
		for _, col := range r.Shape {
			items = append(items, alias+"."+quote(col.Name)+" AS "+quote(prefix+col.Name))
		}
		return items, nil
	default:
		return nil, ErrNotRenderable.New("a whole JSON range")
	}
}

func (b *builder) identifier(id *ast.Identifier) (string, error) {
	r := id.Range
	if r == nil {
		return "", ErrNotRenderable.New("the unbound identifier " + id.String())
	}
	col := strings.ReplaceAll(id.Property(), ".", "_")
	if r.Source == ast.SourceEntity {
		columns, err := b.g.Metadata.ColumnMap(r.Entity)
		if err != nil {
			return "", err
		}
		if c, ok := columns[id.Property()]; ok {
			col = c.Name
		}
	}
	return quote(r.RangeName+b.aliasSuffix) + "." + quote(col), nil
}

func (b *builder) valueList(v *ast.ValueList) (string, error) {
	if len(v.Values) == 0 {
		return "(NULL)", nil
	}
	parts := make([]string, len(v.Values))
	for i, val := range v.Values {
		s, err := b.expr(val)
		if err != nil {
			return "", err
		}
		parts[i] = s
	}
	return "(" + strings.Join(parts, ", ") + ")", nil
}

func (b *builder) unary(u *ast.UnaryExpr) (string, error) {
	operand, err := b.expr(u.Operand)
	if err != nil {
		return "", err
	}
	switch u.Op {
	case ast.OpNot:
		return "NOT (" + operand + ")", nil
	case ast.OpNeg:
		return "-(" + operand + ")", nil
	case ast.OpIsNull:
		return operand + " IS NULL", nil
	case ast.OpIsNotNull:
		return operand + " IS NOT NULL", nil
	}
	return "", ErrNotRenderable.New(u.String())
}

var binarySQL = map[ast.BinaryOp]string{
	ast.OpOr:            "OR",
	ast.OpAnd:           "AND",
	ast.OpEquals:        "=",
	ast.OpNotEquals:     "<>",
	ast.OpLess:          "<",
	ast.OpLessEquals:    "<=",
	ast.OpGreater:       ">",
	ast.OpGreaterEquals: ">=",
	ast.OpIn:            "IN",
	ast.OpLike:          "LIKE",
	ast.OpAdd:           "+",
	ast.OpSub:           "-",
	ast.OpMul:           "*",
	ast.OpDiv:           "/",
	ast.OpMod:           "%",
	ast.OpShiftLeft:     "<<",
	ast.OpShiftRight:    ">>",
	ast.OpArrow:         "->",
}

func (b *builder) binary(e *ast.BinaryExpr) (string, error) {
	// Comparisons against the NULL literal render as IS NULL checks, SQL
	// three-valued equality would never match.
	if lit, ok := e.Right.(*ast.Literal); ok && lit.IsNull() {
		if e.Op == ast.OpEquals || e.Op == ast.OpNotEquals {
			operand, err := b.expr(e.Left)
			if err != nil {
				return "", err
			}
			if e.Op == ast.OpEquals {
				return operand + " IS NULL", nil
			}
			return operand + " IS NOT NULL", nil
		}
	}

	left, err := b.expr(e.Left)
	if err != nil {
		return "", err
	}
	right, err := b.expr(e.Right)
	if err != nil {
		return "", err
	}
	op, ok := binarySQL[e.Op]
	if !ok {
		return "", ErrNotRenderable.New(e.String())
	}
	return "(" + left + " " + op + " " + right + ")", nil
}

func (b *builder) aggregate(a *ast.Aggregate) (string, error) {
	if a.Fn == ast.AggAny {
		target, err := b.expr(a.Target)
		if err != nil {
			return "", err
		}
		return "MAX(CASE WHEN " + target + " THEN 1 ELSE 0 END)", nil
	}

	inner := a.Target
	if _, ok := inner.(*ast.Literal); ok && a.Fn == ast.AggCount {
		return "COUNT(*)", nil
	}
	target, err := b.expr(inner)
	if err != nil {
		return "", err
	}
	if a.Filter != nil {
		filter, err := b.expr(a.Filter)
		if err != nil {
			return "", err
		}
		target = "CASE WHEN " + filter + " THEN " + target + " END"
	}

	fn := strings.ToUpper(a.Fn.String())
	if a.Unique {
		return fn + "(DISTINCT " + target + ")", nil
	}
	return fn + "(" + target + ")", nil
}

func (b *builder) subquery(s *ast.Subquery) (string, error) {
	switch s.SubKind {
	case ast.SubWindow:
		if b.g.WindowFunctions {
			agg, err := b.expr(s.Projection)
			if err != nil {
				return "", err
			}
			return agg + " OVER ()", nil
		}
		return b.windowFallback(s)
	case ast.SubScalar:
		inner, err := b.correlated(s.Projection, s)
		if err != nil {
			return "", err
		}
		return "(" + inner + ")", nil
	case ast.SubExists:
		inner, err := b.correlated(nil, s)
		if err != nil {
			return "", err
		}
		return "EXISTS (" + inner + ")", nil
	}
	return "", ErrNotRenderable.New(s.String())
}

// correlated renders the body of an EXISTS or scalar subquery. A nil
// projection selects a constant 1.
func (b *builder) correlated(projection rql.Node, s *ast.Subquery) (string, error) {
	var sb strings.Builder
	sb.WriteString("SELECT ")
	if projection == nil {
		sb.WriteString("1")
	} else {
		p, err := b.expr(projection)
		if err != nil {
			return "", err
		}
		sb.WriteString(p)
	}

	first := true
	for _, r := range s.Ranges {
		table, err := b.table(r)
		if err != nil {
			return "", err
		}
		if first {
			sb.WriteString(" FROM ")
			first = false
		} else {
			sb.WriteString(", ")
		}
		sb.WriteString(table)
		sb.WriteString(" ")
		sb.WriteString(quote(r.RangeName + b.aliasSuffix))
	}
	if first {
		return "", ErrNotRenderable.New("a subquery with no ranges")
	}

	if s.Condition != nil {
		cond, err := b.expr(s.Condition)
		if err != nil {
			return "", err
		}
		sb.WriteString(" WHERE ")
		sb.WriteString(cond)
	}
	return sb.String(), nil
}

// windowFallback renders a window-form aggregate on backends without
// window functions. The whole outer row set is repeated as a correlation
// free scalar subquery, with every alias suffixed so the copy does not
// collide with the outer statement.
func (b *builder) windowFallback(s *ast.Subquery) (string, error) {
	inner := &builder{g: b.g, params: b.params, outer: b.outer, aliasSuffix: "_w"}

	var sb strings.Builder
	sb.WriteString("(SELECT ")
	agg, err := inner.expr(s.Projection)
	if err != nil {
		return "", err
	}
	sb.WriteString(agg)

	from, err := inner.from(b.outer)
	if err != nil {
		return "", err
	}
	sb.WriteString(from)

	if where := pruneWindowForms(b.outer.Where); where != nil {
		rendered, err := inner.expr(where)
		if err != nil {
			return "", err
		}
		sb.WriteString(" WHERE ")
		sb.WriteString(rendered)
	}
	sb.WriteString(")")

	b.args = append(b.args, inner.args...)
	return sb.String(), nil
}

// pruneWindowForms drops WHERE conjuncts containing a window-form
// subquery. The fallback re-renders the outer WHERE inside the very
// subquery it expands, keeping such a conjunct would never terminate.
func pruneWindowForms(where rql.Node) rql.Node {
	if where == nil {
		return nil
	}
	var kept []rql.Node
	for _, cond := range ast.SplitConjunction(where) {
		if containsWindowForm(cond) {
			continue
		}
		// Clones keep the outer tree's parent links intact.
		kept = append(kept, ast.CloneExpr(cond))
	}
	return ast.JoinAnd(kept...)
}

func containsWindowForm(n rql.Node) bool {
	found := false
	rql.Inspect(n, func(n rql.Node) bool {
		if s, ok := n.(*ast.Subquery); ok && s.SubKind == ast.SubWindow {
			found = true
		}
		return !found
	})
	return found
}

// sortStrings keeps whole-range expansion deterministic, map iteration
// order is not.
func sortStrings(s []string) { sort.Strings(s) }

func quote(s string) string {
	return "`" + strings.ReplaceAll(s, "`", "``") + "`"
}
