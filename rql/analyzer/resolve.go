package analyzer

import (
	"strings"

	"github.com/rangeql/rangeql/rql"
	"github.com/rangeql/rangeql/rql/ast"
)

// resolveNamespace prefixes the configured namespace onto bare entity
// names that do not resolve on their own. Names that already carry a
// namespace, resolve as-is, or belong to non-entity ranges are left alone.
func resolveNamespace(ctx *rql.Context, a *Analyzer, q *ast.Query) (*ast.Query, error) {
	if a.Namespace == "" {
		return q, nil
	}
	var apply func(q *ast.Query)
	apply = func(q *ast.Query) {
		for _, r := range q.Ranges {
			if r.Source == ast.SourceQuery {
				apply(r.Query)
				continue
			}
			if r.Source != ast.SourceEntity || strings.Contains(r.Entity, ".") {
				continue
			}
			if !a.Metadata.Exists(r.Entity) {
				qualified := a.Namespace + "." + r.Entity
				if a.Metadata.Exists(qualified) {
					a.Log("qualified entity %s as %s", r.Entity, qualified)
					r.Entity = qualified
				}
			}
		}
	}
	apply(q)
	return q, nil
}

// bindIdentifiers binds every free identifier chain head to the range
// whose name matches its first segment. Subqueries see their own ranges
// first, then the enclosing scopes.
func bindIdentifiers(ctx *rql.Context, a *Analyzer, q *ast.Query) (*ast.Query, error) {
	bindScope(q, nil)
	return q, nil
}

func bindScope(q *ast.Query, outer []*ast.Range) {
	scope := append(append([]*ast.Range(nil), q.Ranges...), outer...)
	for _, r := range q.Ranges {
		if r.Source == ast.SourceQuery {
			bindScope(r.Query, scope)
		}
		if r.Join != nil {
			bindExpr(r.Join, scope)
		}
	}
	for _, p := range q.Projections {
		bindExpr(p, scope)
	}
	for _, p := range q.Hidden {
		bindExpr(p, scope)
	}
	if q.Where != nil {
		bindExpr(q.Where, scope)
	}
	for _, s := range q.Sort {
		bindExpr(s.Expr, scope)
	}
}

func bindExpr(n rql.Node, scope []*ast.Range) {
	rql.Inspect(n, func(n rql.Node) bool {
		switch n := n.(type) {
		case *ast.Identifier:
			if n.Range == nil {
				for _, r := range scope {
					if r.RangeName == n.Part {
						n.Range = r
						break
					}
				}
			}
			return false
		case *ast.Subquery:
			inner := append(append([]*ast.Range(nil), n.Ranges...), scope...)
			for _, r := range n.Ranges {
				if r.Join != nil {
					bindExpr(r.Join, inner)
				}
			}
			if n.Projection != nil {
				bindExpr(n.Projection, inner)
			}
			if n.Condition != nil {
				bindExpr(n.Condition, inner)
			}
			return false
		}
		return true
	})
}

// validateReferences checks that every entity range names a mapped entity,
// every identifier head is bound, and every property path names existing
// properties, following relationships across entities.
func validateReferences(ctx *rql.Context, a *Analyzer, q *ast.Query) (*ast.Query, error) {
	var validate func(q *ast.Query) error
	validate = func(q *ast.Query) error {
		for _, r := range q.Ranges {
			switch r.Source {
			case ast.SourceEntity:
				if !a.Metadata.Exists(r.Entity) {
					return rql.ErrEntityNotFound.New(r.Entity)
				}
			case ast.SourceQuery:
				if err := validate(r.Query); err != nil {
					return err
				}
			}
		}

		var err error
		rql.Inspect(q, func(n rql.Node) bool {
			if err != nil {
				return false
			}
			id, ok := n.(*ast.Identifier)
			if !ok {
				return true
			}
			if id.Range == nil {
				err = rql.ErrUnresolvedIdentifier.New(id.String())
				return false
			}
			err = validatePath(a.Metadata, id)
			return false
		})
		return err
	}
	return q, validate(q)
}

// validatePath walks the property path of a bound identifier, hopping
// entities through declared relationships.
func validatePath(md rql.Metadata, id *ast.Identifier) error {
	r := id.Range
	if r.Source != ast.SourceEntity {
		// JSON and temporary ranges have no declared shape to check.
		return nil
	}

	entity := r.Entity
	for seg := id.Next; seg != nil; seg = seg.Next {
		cols, err := md.ColumnMap(entity)
		if err != nil {
			return err
		}
		if _, ok := cols[seg.Part]; ok {
			if seg.Next != nil {
				return rql.ErrPropertyNotFound.New(entity, seg.Next.Part)
			}
			return nil
		}
		rel, ok, err := relationship(md, entity, seg.Part)
		if err != nil {
			return err
		}
		if !ok {
			return rql.ErrPropertyNotFound.New(entity, seg.Part)
		}
		entity = rel.Target
	}
	return nil
}

// relationship looks up a relationship of any cardinality by property
// name.
func relationship(md rql.Metadata, entity, property string) (rql.Relationship, bool, error) {
	for _, deps := range []func(string) (map[string]rql.Relationship, error){
		md.OneToOneDependencies,
		md.ManyToOneDependencies,
		md.OneToManyDependencies,
	} {
		m, err := deps(entity)
		if err != nil {
			return rql.Relationship{}, false, err
		}
		if rel, ok := m[property]; ok {
			return rel, true, nil
		}
	}
	return rql.Relationship{}, false, nil
}

// validateAggregateScope enforces that ranges excluded from the join set
// are only reachable through aggregates or EXISTS.
func validateAggregateScope(ctx *rql.Context, a *Analyzer, q *ast.Query) (*ast.Query, error) {
	for _, r := range q.Ranges {
		if r.IncludeAsJoin {
			continue
		}
		// The range's own join predicate is the correlation of its future
		// subquery form, only result-shaping clauses are checked.
		nodes := append(append([]rql.Node(nil), q.Projections...), q.Hidden...)
		if q.Where != nil {
			nodes = append(nodes, q.Where)
		}
		for _, s := range q.Sort {
			nodes = append(nodes, s.Expr)
		}
		for _, n := range nodes {
			if ast.UsedOutsideAggregate(n, r) {
				return nil, rql.ErrRangeOutsideAggregate.New(r.RangeName)
			}
		}
	}
	return q, nil
}
