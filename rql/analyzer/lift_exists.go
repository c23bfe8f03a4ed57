package analyzer

import (
	"github.com/rangeql/rangeql/rql"
	"github.com/rangeql/rangeql/rql/ast"
)

// liftExists extracts EXISTS predicates over declared ranges out of the
// WHERE clause and turns each into a required mark on its target range:
// an INNER join filters exactly the rows the EXISTS kept. Handled shapes
// are an EXISTS alone, AND/OR trees made only of EXISTS, and an EXISTS on
// one side of an AND. An EXISTS ORed with a non-EXISTS predicate is left
// untouched, extracting it would change semantics.
func liftExists(ctx *rql.Context, a *Analyzer, q *ast.Query) (*ast.Query, error) {
	if q.Where == nil {
		return q, nil
	}

	remaining, lifted := lift(a, q.Where)
	if lifted {
		q.SetWhere(remaining)
	}
	return q, nil
}

func lift(a *Analyzer, n rql.Node) (rql.Node, bool) {
	if target := existsTarget(n); target != nil {
		a.Log("lifted exists, range %s marked required", target.RangeName)
		target.Required = true
		return nil, true
	}

	b, ok := n.(*ast.BinaryExpr)
	if !ok {
		return n, false
	}

	switch b.Op {
	case ast.OpAnd:
		left, llifted := lift(a, b.Left)
		right, rlifted := lift(a, b.Right)
		if !llifted && !rlifted {
			return n, false
		}
		return ast.JoinAnd(left, right), true
	case ast.OpOr:
		// Only a disjunction made entirely of EXISTS can be lifted: each
		// branch keeps at least the rows its EXISTS kept, so requiring
		// every target preserves the union.
		if allExists(b) {
			markAllExists(a, b)
			return nil, true
		}
	}
	return n, false
}

// existsTarget returns the declared range an EXISTS node tests, or nil
// when the node is not that shape. Optimizer-built EXISTS subqueries own
// their ranges and are never lifted.
func existsTarget(n rql.Node) *ast.Range {
	s, ok := n.(*ast.Subquery)
	if !ok || s.SubKind != ast.SubExists || len(s.Ranges) > 0 {
		return nil
	}
	id, ok := s.Projection.(*ast.Identifier)
	if !ok {
		return nil
	}
	return id.Range
}

func allExists(n rql.Node) bool {
	if existsTarget(n) != nil {
		return true
	}
	b, ok := n.(*ast.BinaryExpr)
	if !ok || (b.Op != ast.OpAnd && b.Op != ast.OpOr) {
		return false
	}
	return allExists(b.Left) && allExists(b.Right)
}

func markAllExists(a *Analyzer, n rql.Node) {
	if target := existsTarget(n); target != nil {
		a.Log("lifted exists, range %s marked required", target.RangeName)
		target.Required = true
		return
	}
	if b, ok := n.(*ast.BinaryExpr); ok {
		markAllExists(a, b.Left)
		markAllExists(a, b.Right)
	}
}
