package analyzer

import (
	"github.com/rangeql/rangeql/rql"
	"github.com/rangeql/rangeql/rql/ast"
)

// rewriteFilterJoins removes ranges that act purely as row filters from
// the join set and reintroduces each as an EXISTS predicate ANDed into
// WHERE. A filter-only range is one reachable only through its own join
// predicate: it is not projected, not referenced in WHERE, feeds no
// aggregate and no other range joins through it. The rewrite preserves
// filtering semantics while avoiding the join's row multiplication.
func rewriteFilterJoins(ctx *rql.Context, a *Analyzer, q *ast.Query) (*ast.Query, error) {
	if len(q.Ranges) < 2 {
		return q, nil
	}

	ast.RecordRefs(q)
	var candidates []*ast.Range
	for _, r := range q.Ranges {
		if r.Join == nil || !r.IncludeAsJoin {
			continue
		}
		if !filterOnly(q, r) {
			continue
		}
		candidates = append(candidates, r)
	}

	for _, r := range candidates {
		a.Log("range %s is filter-only, rewritten as exists", r.RangeName)
		q.RemoveRange(r)

		cond := r.Join
		r.Join = nil
		exists := ast.NewExists([]*ast.Range{r}, cond)
		for _, outer := range ast.RangesOf(cond, true) {
			if outer != r {
				exists.Correlated = append(exists.Correlated, outer)
			}
		}
		q.SetWhere(ast.JoinAnd(q.Where, exists))
	}
	return q, nil
}

func filterOnly(q *ast.Query, r *ast.Range) bool {
	for _, ref := range r.Refs {
		if ref.Kind != ast.RefJoin {
			return false
		}
	}
	// Another range joining through r makes it structural.
	for _, other := range q.Ranges {
		if other == r || other.Join == nil {
			continue
		}
		if ast.References(other.Join, r) {
			return false
		}
	}
	return true
}
