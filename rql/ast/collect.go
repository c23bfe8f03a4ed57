package ast

import "github.com/rangeql/rangeql/rql"

// BaseIdentifiers collects every identifier chain head bound to a range
// within the subtree, in document order.
func BaseIdentifiers(n rql.Node) []*Identifier {
	var out []*Identifier
	rql.Inspect(n, func(n rql.Node) bool {
		if id, ok := n.(*Identifier); ok {
			if id.Range != nil {
				out = append(out, id)
			}
			// Chain tails carry no bindings of their own.
			return false
		}
		return true
	})
	return out
}

// RangesOf collects the distinct ranges referenced by the subtree, in
// first-use order. When descendSubqueries is false, ranges used only
// inside nested subqueries are not reported.
func RangesOf(n rql.Node, descendSubqueries bool) []*Range {
	var out []*Range
	seen := map[*Range]bool{}
	rql.Inspect(n, func(n rql.Node) bool {
		switch n := n.(type) {
		case *Subquery:
			return descendSubqueries
		case *Identifier:
			if n.Range != nil && !seen[n.Range] {
				seen[n.Range] = true
				out = append(out, n.Range)
			}
			return false
		}
		return true
	})
	return out
}

// References reports whether the subtree contains an identifier bound to
// the given range.
func References(n rql.Node, r *Range) bool {
	for _, used := range RangesOf(n, true) {
		if used == r {
			return true
		}
	}
	return false
}

// Aggregates collects every aggregate node of the subtree. When
// descendSubqueries is false, aggregates owned by nested subqueries are
// not reported.
func Aggregates(n rql.Node, descendSubqueries bool) []*Aggregate {
	var out []*Aggregate
	rql.Inspect(n, func(n rql.Node) bool {
		switch n := n.(type) {
		case *Subquery:
			return descendSubqueries
		case *Aggregate:
			out = append(out, n)
		}
		return true
	})
	return out
}

// UsedOutsideAggregate reports whether target is referenced anywhere in
// the subtree outside of an aggregate or EXISTS ancestor. It backs the
// scoping rule for ranges meant only to feed an aggregate.
func UsedOutsideAggregate(n rql.Node, target *Range) bool {
	var found bool
	rql.Inspect(n, func(n rql.Node) bool {
		if found {
			return false
		}
		switch n := n.(type) {
		case *Aggregate:
			return false
		case *Subquery:
			if n.SubKind == SubExists {
				return false
			}
		case *Identifier:
			if n.Range == target {
				found = true
			}
			return false
		}
		return true
	})
	return found
}

// RecordRefs recomputes the reference records of every range declared on
// the query. Earlier records are discarded.
func RecordRefs(q *Query) {
	for _, r := range q.Ranges {
		r.Refs = nil
	}

	record := func(n rql.Node, kind RefKind) {
		for _, id := range BaseIdentifiers(n) {
			if id.Range != nil {
				id.Range.Refs = append(id.Range.Refs, RangeRef{Kind: kind, Node: id})
			}
		}
	}

	recordExpr := func(n rql.Node, outer RefKind, filterKind RefKind) {
		rql.Inspect(n, func(n rql.Node) bool {
			switch n := n.(type) {
			case *Aggregate:
				record(n.Target, RefAggregate)
				if n.Filter != nil {
					record(n.Filter, filterKind)
				}
				return false
			case *Identifier:
				if n.Range != nil {
					n.Range.Refs = append(n.Range.Refs, RangeRef{Kind: outer, Node: n})
				}
				return false
			case *Subquery:
				return false
			}
			return true
		})
	}

	for _, p := range q.Projections {
		recordExpr(p, RefSelect, RefAggregateFilter)
	}
	for _, p := range q.Hidden {
		recordExpr(p, RefSelect, RefAggregateFilter)
	}
	if q.Where != nil {
		recordExpr(q.Where, RefWhere, RefAggregateFilterWhere)
	}
	for _, s := range q.Sort {
		recordExpr(s.Expr, RefSelect, RefAggregateFilter)
	}
	for _, r := range q.Ranges {
		if r.Join == nil {
			continue
		}
		// A range's own columns in its own join predicate are correlation,
		// not use. Only other ranges joining through it count.
		for _, id := range BaseIdentifiers(r.Join) {
			if id.Range != nil && id.Range != r {
				id.Range.Refs = append(id.Range.Refs, RangeRef{Kind: RefJoin, Node: id})
			}
		}
	}
}
