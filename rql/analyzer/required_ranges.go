package analyzer

import (
	"github.com/rangeql/rangeql/rql"
	"github.com/rangeql/rangeql/rql/ast"
)

// requireSingleRange marks the only range of a single-range query
// required, collapsing an unnecessary LEFT JOIN to INNER.
func requireSingleRange(ctx *rql.Context, a *Analyzer, q *ast.Query) (*ast.Query, error) {
	if len(q.Ranges) == 1 {
		q.Ranges[0].Required = true
	}
	return q, nil
}

// requireAnnotatedRelationships inspects each range whose join predicate
// is a plain `own.prop == other.prop` equality. The operand order is
// normalized so the own side comes first, then the relationship metadata
// between the two entities is consulted: a mandatory relationship makes
// the range required. A relationship whose declared target does not match
// the joined entity is a hard compile error.
func requireAnnotatedRelationships(ctx *rql.Context, a *Analyzer, q *ast.Query) (*ast.Query, error) {
	for _, r := range q.Ranges {
		own, other, ok := simpleJoin(r)
		if !ok {
			continue
		}
		if r.Source != ast.SourceEntity || other.Range.Source != ast.SourceEntity {
			continue
		}

		rel, found, err := relationship(a.Metadata, r.Entity, own.Property())
		if err != nil {
			return nil, err
		}
		if found {
			if rel.Target != other.Range.Entity {
				return nil, rql.ErrInvalidRelationshipPath.New(
					own.Property(), r.Entity, rel.Target, other.Range.Entity)
			}
			if rel.Required {
				a.Log("range %s required by relationship %s.%s", r.RangeName, r.Entity, own.Property())
				r.Required = true
			}
			continue
		}

		// Column-level joins name the foreign key column rather than the
		// relationship property. Fall back to scanning for a mandatory
		// relationship targeting the joined entity.
		required, err := anyRequiredRelationship(a.Metadata, r.Entity, other.Range.Entity)
		if err != nil {
			return nil, err
		}
		if required {
			a.Log("range %s required by relationship to %s", r.RangeName, other.Range.Entity)
			r.Required = true
		}
	}
	return q, nil
}

// simpleJoin recognizes a `left.prop == right.prop` join predicate and
// returns it normalized so the first identifier belongs to r. The
// predicate's operands are swapped in place when reversed.
func simpleJoin(r *ast.Range) (own, other *ast.Identifier, ok bool) {
	eq, isEq := r.Join.(*ast.BinaryExpr)
	if !isEq || eq.Op != ast.OpEquals {
		return nil, nil, false
	}
	left, lok := eq.Left.(*ast.Identifier)
	right, rok := eq.Right.(*ast.Identifier)
	if !lok || !rok || left.Range == nil || right.Range == nil {
		return nil, nil, false
	}
	if left.Range != r && right.Range == r {
		eq.Left, eq.Right = eq.Right, eq.Left
		left, right = right, left
	}
	if left.Range != r || right.Range == r {
		return nil, nil, false
	}
	return left, right, true
}

func anyRequiredRelationship(md rql.Metadata, entity, target string) (bool, error) {
	for _, deps := range []func(string) (map[string]rql.Relationship, error){
		md.OneToOneDependencies,
		md.ManyToOneDependencies,
	} {
		m, err := deps(entity)
		if err != nil {
			return false, err
		}
		for _, rel := range m {
			if rel.Target == target && rel.Required {
				return true, nil
			}
		}
	}
	return false, nil
}

// strengthenWhereJoins adjusts join requirements from the WHERE clause.
// A NULL check on any column of a joined range pins the join LEFT, even
// demoting a previously required range: the query is asking about absent
// rows. Without a NULL check, referencing the range through a non-nullable
// column proves the row must exist, so the join is promoted to INNER.
func strengthenWhereJoins(ctx *rql.Context, a *Analyzer, q *ast.Query) (*ast.Query, error) {
	if q.Where == nil {
		return q, nil
	}
	for _, r := range q.Ranges {
		if r.Join == nil {
			continue
		}
		hasNullCheck, err := rangeNullChecked(q.Where, r)
		if err != nil {
			return nil, err
		}
		if hasNullCheck {
			// NULL-check presence always wins over field-reference
			// promotion.
			if r.Required {
				a.Log("range %s demoted to optional by NULL check", r.RangeName)
			}
			r.Required = false
			continue
		}
		promoted, err := referencesNonNullable(a.Metadata, q.Where, r)
		if err != nil {
			return nil, err
		}
		if promoted {
			a.Log("range %s promoted to required by WHERE reference", r.RangeName)
			r.Required = true
		}
	}
	return q, nil
}

// rangeNullChecked reports whether the WHERE clause contains an IS NULL
// shaped check on any column of the range.
func rangeNullChecked(where rql.Node, r *ast.Range) (bool, error) {
	found := false
	rql.Inspect(where, func(n rql.Node) bool {
		if found {
			return false
		}
		switch n := n.(type) {
		case *ast.UnaryExpr:
			if n.Op == ast.OpIsNull {
				if id, ok := n.Operand.(*ast.Identifier); ok && id.Range == r {
					found = true
				}
			}
		case *ast.BinaryExpr:
			if n.Op != ast.OpEquals && n.Op != ast.OpNotEquals {
				return true
			}
			id, lit := nullComparison(n)
			if id != nil && lit != nil && id.Range == r {
				found = true
			}
		case *ast.Subquery:
			return false
		}
		return true
	})
	return found, nil
}

// nullComparison matches `x == null` / `x != null` in either operand
// order.
func nullComparison(b *ast.BinaryExpr) (*ast.Identifier, *ast.Literal) {
	if id, ok := b.Left.(*ast.Identifier); ok {
		if lit, ok := b.Right.(*ast.Literal); ok && lit.IsNull() {
			return id, lit
		}
	}
	if id, ok := b.Right.(*ast.Identifier); ok {
		if lit, ok := b.Left.(*ast.Literal); ok && lit.IsNull() {
			return id, lit
		}
	}
	return nil, nil
}

// referencesNonNullable reports whether the WHERE clause references the
// range through a column declared NOT NULL.
func referencesNonNullable(md rql.Metadata, where rql.Node, r *ast.Range) (bool, error) {
	if r.Source != ast.SourceEntity {
		return false, nil
	}
	cols, err := md.ColumnMap(r.Entity)
	if err != nil {
		return false, err
	}
	for _, id := range ast.BaseIdentifiers(where) {
		if id.Range != r || id.Next == nil {
			continue
		}
		if col, ok := cols[id.Next.Part]; ok && !col.Nullable {
			return true, nil
		}
	}
	return false, nil
}
