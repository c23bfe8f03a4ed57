package analyzer

import (
	"github.com/rangeql/rangeql/rql"
	"github.com/rangeql/rangeql/rql/ast"
)

// completeJoinColumns adds every identifier referenced only inside a join
// predicate to the hidden projection list. The executor joins partial
// result sets in memory, so the values a join predicate reads must be
// fetched even when no visible projection wants them.
func completeJoinColumns(ctx *rql.Context, a *Analyzer, q *ast.Query) (*ast.Query, error) {
	selected := map[string]bool{}
	for _, p := range q.Projections {
		for _, id := range ast.BaseIdentifiers(p) {
			selected[id.String()] = true
		}
	}
	for _, p := range q.Hidden {
		for _, id := range ast.BaseIdentifiers(p) {
			selected[id.String()] = true
		}
	}

	for _, r := range q.Ranges {
		if r.Join == nil || !r.IncludeAsJoin {
			continue
		}
		for _, id := range ast.BaseIdentifiers(r.Join) {
			if id.Range == nil || !id.Range.IncludeAsJoin {
				continue
			}
			key := id.String()
			if selected[key] {
				continue
			}
			selected[key] = true
			a.Log("join column %s added as hidden projection", key)
			q.AddHidden(ast.CloneExpr(id))
		}
	}
	return q, nil
}
