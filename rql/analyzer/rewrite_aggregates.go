package analyzer

import (
	"github.com/rangeql/rangeql/rql"
	"github.com/rangeql/rangeql/rql/ast"
)

// rewriteAggregates replaces every aggregate outside a subquery with one
// of two structural forms. An unfiltered aggregate over the query's full
// range set becomes a window-function form, computed over the full row set
// with no WHERE of its own. An aggregate with its own filter, or depending
// on a subset of the ranges, becomes a correlated scalar subquery over the
// minimal set of ranges reachable from the aggregate's own ranges through
// join-predicate closure.
func rewriteAggregates(ctx *rql.Context, a *Analyzer, q *ast.Query) (*ast.Query, error) {
	var roots []rql.Node
	roots = append(roots, q.Projections...)
	roots = append(roots, q.Hidden...)
	if q.Where != nil {
		roots = append(roots, q.Where)
	}
	for _, s := range q.Sort {
		roots = append(roots, s.Expr)
	}

	var aggs []*ast.Aggregate
	for _, root := range roots {
		aggs = append(aggs, ast.Aggregates(root, false)...)
	}

	for _, agg := range aggs {
		aggRanges := ast.RangesOf(agg, true)
		if len(aggRanges) == 0 || (agg.Filter == nil && coversAll(q.Ranges, aggRanges)) {
			a.Log("aggregate %s rewritten as window function", agg)
			if err := replaceWithWindow(agg); err != nil {
				return nil, err
			}
			continue
		}
		a.Log("aggregate %s rewritten as correlated scalar subquery", agg)
		if err := replaceWithScalar(a, q, agg, aggRanges); err != nil {
			return nil, err
		}
	}
	return q, nil
}

func coversAll(all, subset []*ast.Range) bool {
	have := map[*ast.Range]bool{}
	for _, r := range subset {
		have[r] = true
	}
	for _, r := range all {
		if !have[r] {
			return false
		}
	}
	return true
}

func replaceWithWindow(agg *ast.Aggregate) error {
	parent := agg.Parent()
	win := &ast.Subquery{SubKind: ast.SubWindow}
	if err := parent.ReplaceChild(agg, win); err != nil {
		return err
	}
	win.Projection = agg
	agg.SetParent(win)
	return nil
}

func replaceWithScalar(a *Analyzer, q *ast.Query, agg *ast.Aggregate, aggRanges []*ast.Range) error {
	parent := agg.Parent()

	// Join-predicate closure over the excluded ranges: every range the
	// aggregate's own ranges pull in through their join predicates, as
	// long as it is itself excluded from the join set. Included ranges
	// stay outside and become correlation targets.
	owned := map[*ast.Range]bool{}
	var work []*ast.Range
	for _, r := range aggRanges {
		if !r.IncludeAsJoin {
			owned[r] = true
			work = append(work, r)
		}
	}
	for len(work) > 0 {
		r := work[0]
		work = work[1:]
		if r.Join == nil {
			continue
		}
		for _, next := range ast.RangesOf(r.Join, true) {
			if !next.IncludeAsJoin && !owned[next] {
				owned[next] = true
				work = append(work, next)
			}
		}
	}

	if len(owned) == 0 {
		return replaceWithClonedScalar(a, q, agg, aggRanges)
	}

	var ownedList []*ast.Range
	for _, r := range q.Ranges {
		if owned[r] {
			ownedList = append(ownedList, r)
		}
	}

	// The subquery's condition is the aggregate's own filter plus the
	// owned ranges' join predicates, which correlate it to the outer
	// query.
	cond := agg.Filter
	agg.Filter = nil
	for _, r := range ownedList {
		if r.Join != nil {
			cond = ast.JoinAnd(cond, r.Join)
			r.Join = nil
		}
		r.IncludeAsJoin = true
		q.RemoveRange(r)
	}

	sub := ast.NewScalar(agg, ownedList, cond)
	for _, outer := range ast.RangesOf(cond, true) {
		if !containsRange(ownedList, outer) {
			sub.Correlated = append(sub.Correlated, outer)
		}
	}
	return parent.ReplaceChild(agg, sub)
}

// replaceWithClonedScalar handles aggregates over ranges that stay in the
// outer join set: the ranges are cloned into the subquery and correlated
// back on the first range's identifier keys.
func replaceWithClonedScalar(a *Analyzer, q *ast.Query, agg *ast.Aggregate, aggRanges []*ast.Range) error {
	parent := agg.Parent()

	clones := map[*ast.Range]*ast.Range{}
	var ownedList []*ast.Range
	for _, r := range aggRanges {
		c := ast.CloneExpr(r).(*ast.Range)
		c.Join = nil
		// The clone lives in the same SQL statement as the original, it
		// needs its own alias.
		c.RangeName = r.RangeName + "_s"
		clones[r] = c
		ownedList = append(ownedList, c)
	}

	var cond rql.Node
	anchor := aggRanges[0]
	if anchor.Source == ast.SourceEntity {
		keys, err := a.Metadata.IdentifierKeys(anchor.Entity)
		if err != nil {
			return err
		}
		for _, key := range keys {
			outerID := ast.NewIdentifier(anchor.RangeName, key)
			outerID.Range = anchor
			innerID := ast.NewIdentifier(anchor.RangeName, key)
			innerID.Range = clones[anchor]
			cond = ast.JoinAnd(cond, ast.NewEquals(innerID, outerID))
		}
	}
	for _, r := range aggRanges[1:] {
		if r.Join != nil {
			cond = ast.JoinAnd(cond, rebindExpr(ast.CloneExpr(r.Join), clones))
		}
	}
	if agg.Filter != nil {
		filter := agg.Filter
		agg.Filter = nil
		cond = ast.JoinAnd(cond, rebindExpr(filter, clones))
	}

	projection := rebindExpr(ast.CloneExpr(agg), clones)
	sub := ast.NewScalar(projection, ownedList, cond)
	sub.Correlated = append(sub.Correlated, anchor)
	return parent.ReplaceChild(agg, sub)
}

func rebindExpr(n rql.Node, clones map[*ast.Range]*ast.Range) rql.Node {
	rql.Inspect(n, func(n rql.Node) bool {
		if id, ok := n.(*ast.Identifier); ok {
			if c, ok := clones[id.Range]; ok {
				id.Range = c
			}
			return false
		}
		return true
	})
	return n
}

func containsRange(ranges []*ast.Range, r *ast.Range) bool {
	for _, candidate := range ranges {
		if candidate == r {
			return true
		}
	}
	return false
}
