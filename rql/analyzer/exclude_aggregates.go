package analyzer

import (
	"github.com/rangeql/rangeql/rql"
	"github.com/rangeql/rangeql/rql/ast"
)

// excludeAggregateRanges clears the include-as-join flag on every range
// whose recorded references are all aggregate flavored. Nothing in the
// query needs such a range's row-level presence, so it is later realized
// as a correlated subquery or window function instead of a physical join.
func excludeAggregateRanges(ctx *rql.Context, a *Analyzer, q *ast.Query) (*ast.Query, error) {
	ast.RecordRefs(q)
	for _, r := range q.Ranges {
		// The FROM root stays a join even when only aggregates read it.
		if r.Join == nil {
			continue
		}
		if r.AggregateOnly() {
			a.Log("range %s is aggregate-only, excluded from join set", r.RangeName)
			r.IncludeAsJoin = false
		}
	}
	return q, nil
}
