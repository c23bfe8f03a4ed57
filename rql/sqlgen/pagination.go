package sqlgen

import (
	"github.com/mitchellh/hashstructure"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
	errors "gopkg.in/src-d/go-errors.v1"

	"github.com/rangeql/rangeql/rql"
	"github.com/rangeql/rangeql/rql/ast"
)

var (
	// ErrBadWindow is returned when the window or window size does not
	// evaluate to a non-negative integer.
	ErrBadWindow = errors.NewKind("invalid window clause value: %v")

	// ErrNoPageKey is returned when the paged query's root range has no
	// single-column identifier to page on.
	ErrNoPageKey = errors.NewKind("entity %q has no single identifier key to page on")
)

// FinalKeysDirective marks a query whose key list was already validated
// by a previous page fetch. The paginator then slices the IN list in
// place instead of re-running the key query.
const FinalKeysDirective = "final_keys"

// Paginator rewrites windowed queries into identifier-list filters. A page
// is computed by running a keys-only variant of the query, slicing the
// deduplicated key list and constraining the original query to the slice.
// Key lists are memoized per statement so that fetching page N+1 of the
// same query through the same paginator skips the key query. A paginator
// serves one plan execution, the memo must not outlive the data it was
// fetched from.
type Paginator struct {
	Backend rql.Backend
	Gen     *Generator
	keys    map[uint64][]interface{}
}

// NewPaginator returns a paginator over the given backend.
func NewPaginator(backend rql.Backend, gen *Generator) *Paginator {
	return &Paginator{Backend: backend, Gen: gen, keys: map[uint64][]interface{}{}}
}

// Paginate transforms a paged query in place. After a successful call the
// query carries no window clause and its WHERE constrains the root range
// to the requested page's identifiers. An out-of-range page degrades to a
// constant-false predicate.
func (p *Paginator) Paginate(ctx *rql.Context, q *ast.Query, params map[string]interface{}) error {
	span, ctx := ctx.Span("sqlgen.Paginate")
	defer span.Finish()

	window, err := p.intValue(q.Window, params)
	if err != nil {
		return err
	}
	size, err := p.intValue(q.WindowSize, params)
	if err != nil {
		return err
	}
	q.SetWindow(nil, nil)

	root := rootRange(q)
	if root == nil {
		return ErrNoPageKey.New("")
	}
	key, err := p.pageKey(root)
	if err != nil {
		return err
	}

	if q.HasDirective(FinalKeysDirective) {
		if list := finalKeyList(q, root, key); list != nil {
			sliceValueList(list, window, size)
			return nil
		}
	}

	keys, err := p.pageKeys(ctx, q, root, key, params)
	if err != nil {
		return err
	}

	lo := window * size
	hi := lo + size
	if lo >= len(keys) {
		// Out of range, the query must still run and yield zero rows.
		q.SetWhere(ast.JoinAnd(q.Where, falsePredicate()))
		return nil
	}
	if hi > len(keys) {
		hi = len(keys)
	}

	values := make([]rql.Node, 0, hi-lo)
	for _, k := range keys[lo:hi] {
		values = append(values, literalFor(k))
	}
	id := ast.NewIdentifier(root.RangeName, key)
	id.Range = root
	q.SetWhere(ast.JoinAnd(q.Where, ast.NewBinary(ast.OpIn, id, ast.NewValueList(values...))))
	return nil
}

// pageKeys runs the keys-only variant of the query, or returns the
// memoized list when the same statement was paged before.
func (p *Paginator) pageKeys(ctx *rql.Context, q *ast.Query, root *ast.Range, key string, params map[string]interface{}) ([]interface{}, error) {
	kq := ast.CloneQuery(q)
	kroot := kq.Range(root.RangeName)

	id := ast.NewIdentifier(kroot.RangeName, key)
	id.Range = kroot
	kq.Projections = nil
	kq.Hidden = nil
	kq.AddProjection(id)
	kq.Unique = true
	// Sort keys must be selected for DISTINCT to hold.
	for _, s := range kq.Sort {
		kq.AddHidden(ast.CloneExpr(s.Expr))
	}

	sql, args, err := p.Gen.Generate(kq, params)
	if err != nil {
		return nil, err
	}

	hash, hashErr := hashstructure.Hash([]interface{}{sql, args}, nil)
	if hashErr == nil {
		if keys, ok := p.keys[hash]; ok {
			logrus.WithField("sql", sql).Debug("page key list served from memo")
			return keys, nil
		}
	}

	rows, err := p.Backend.Execute(ctx, sql, args)
	if err != nil {
		return nil, err
	}

	alias := ast.AliasOf(id, 0)
	seen := map[interface{}]bool{}
	var keys []interface{}
	for _, row := range rows {
		v := row[alias]
		if v == nil || seen[v] {
			continue
		}
		seen[v] = true
		keys = append(keys, v)
	}
	if hashErr == nil {
		p.keys[hash] = keys
	}
	return keys, nil
}

// pageKey resolves the single identifier column pages are keyed on.
func (p *Paginator) pageKey(root *ast.Range) (string, error) {
	if root.Source != ast.SourceEntity {
		return "", ErrNoPageKey.New(root.RangeName)
	}
	keys, err := p.Gen.Metadata.IdentifierKeys(root.Entity)
	if err != nil {
		return "", err
	}
	if len(keys) != 1 {
		return "", ErrNoPageKey.New(root.Entity)
	}
	return keys[0], nil
}

func (p *Paginator) intValue(n rql.Node, params map[string]interface{}) (int, error) {
	var raw interface{}
	switch n := n.(type) {
	case *ast.Literal:
		raw = n.Value
	case *ast.Param:
		raw = params[n.ParamName]
	default:
		return 0, ErrBadWindow.New(n)
	}
	v, err := cast.ToIntE(raw)
	if err != nil || v < 0 {
		return 0, ErrBadWindow.New(raw)
	}
	return v, nil
}

// finalKeyList finds a `key IN (...)` conjunct over the root range's
// identifier in the WHERE clause.
func finalKeyList(q *ast.Query, root *ast.Range, key string) *ast.ValueList {
	for _, cond := range ast.SplitConjunction(q.Where) {
		in, ok := cond.(*ast.BinaryExpr)
		if !ok || in.Op != ast.OpIn {
			continue
		}
		id, ok := in.Left.(*ast.Identifier)
		if !ok || id.Range != root || id.Property() != key {
			continue
		}
		if list, ok := in.Right.(*ast.ValueList); ok {
			return list
		}
	}
	return nil
}

func sliceValueList(list *ast.ValueList, window, size int) {
	lo := window * size
	hi := lo + size
	if lo >= len(list.Values) {
		list.Values = nil
		return
	}
	if hi > len(list.Values) {
		hi = len(list.Values)
	}
	list.Values = list.Values[lo:hi]
}

// falsePredicate is a constant-false WHERE conjunct for empty pages.
func falsePredicate() rql.Node {
	return ast.NewEquals(
		ast.NewLiteral(int64(1), ast.LiteralInt),
		ast.NewLiteral(int64(0), ast.LiteralInt),
	)
}

func literalFor(v interface{}) *ast.Literal {
	switch v := v.(type) {
	case nil:
		return ast.NewNull()
	case string:
		return ast.NewLiteral(v, ast.LiteralString)
	case bool:
		return ast.NewLiteral(v, ast.LiteralBool)
	case float32, float64:
		return ast.NewLiteral(cast.ToFloat64(v), ast.LiteralFloat)
	default:
		return ast.NewLiteral(cast.ToInt64(v), ast.LiteralInt)
	}
}

// rootRange is the FROM root: the first range still in the join set.
func rootRange(q *ast.Query) *ast.Range {
	for _, r := range q.Ranges {
		if r.IncludeAsJoin {
			return r
		}
	}
	return nil
}
