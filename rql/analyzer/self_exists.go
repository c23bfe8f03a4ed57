package analyzer

import (
	"github.com/rangeql/rangeql/rql"
	"github.com/rangeql/rangeql/rql/ast"
)

// simplifySelfExists recognizes EXISTS subqueries correlated purely
// through equalities on the same (entity, property) pairs on both sides:
// a self-join that is trivially satisfied by any outer row whose join
// columns are non-null. The subquery is replaced by NOT NULL checks on
// the outer columns, or by a constant-true predicate under null-inclusive
// semantics. Rows with non-null join keys behave identically before and
// after.
func simplifySelfExists(ctx *rql.Context, a *Analyzer, q *ast.Query) (*ast.Query, error) {
	if q.Where == nil {
		return q, nil
	}

	var candidates []*ast.Subquery
	rql.Inspect(q.Where, func(n rql.Node) bool {
		if s, ok := n.(*ast.Subquery); ok {
			if s.SubKind == ast.SubExists && len(s.Ranges) > 0 {
				candidates = append(candidates, s)
			}
			return false
		}
		return true
	})

	for _, s := range candidates {
		outerCols, ok := selfJoinColumns(s)
		if !ok {
			continue
		}
		var repl rql.Node
		if a.NullInclusive {
			repl = ast.True()
		} else {
			var checks []rql.Node
			for _, col := range outerCols {
				checks = append(checks, ast.NewIsNotNull(ast.CloneExpr(col)))
			}
			repl = ast.JoinAnd(checks...)
		}
		a.Log("self-join exists over %d columns simplified", len(outerCols))
		if err := ast.Replace(s, repl); err != nil {
			return nil, err
		}
	}
	return q, nil
}

// selfJoinColumns returns the outer-side identifiers when every conjunct
// of the EXISTS condition compares the same entity and property across
// the correlation boundary.
func selfJoinColumns(s *ast.Subquery) ([]*ast.Identifier, bool) {
	if s.Condition == nil {
		return nil, false
	}
	owned := map[*ast.Range]bool{}
	for _, r := range s.Ranges {
		owned[r] = true
	}

	var outerCols []*ast.Identifier
	for _, conjunct := range ast.SplitConjunction(s.Condition) {
		eq, ok := conjunct.(*ast.BinaryExpr)
		if !ok || eq.Op != ast.OpEquals {
			return nil, false
		}
		left, lok := eq.Left.(*ast.Identifier)
		right, rok := eq.Right.(*ast.Identifier)
		if !lok || !rok || left.Range == nil || right.Range == nil {
			return nil, false
		}

		outer, inner := left, right
		if owned[outer.Range] {
			outer, inner = inner, outer
		}
		if owned[outer.Range] || !owned[inner.Range] {
			return nil, false
		}
		if outer.Range.Source != ast.SourceEntity || inner.Range.Source != ast.SourceEntity {
			return nil, false
		}
		if outer.Range.Entity != inner.Range.Entity || outer.Property() != inner.Property() {
			return nil, false
		}
		outerCols = append(outerCols, outer)
	}
	return outerCols, len(outerCols) > 0
}
