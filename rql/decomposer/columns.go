package decomposer

import (
	"fmt"
	"strings"

	"github.com/rangeql/rangeql/rql"
	"github.com/rangeql/rangeql/rql/ast"
)

// inferShape derives the column definitions of a materialized temporary
// range from its sub-query's visible projections, along with the mapping
// from the sub-plan's output aliases to those columns. Whole-range leaf
// projections expand to the full column list of their source.
func (d *Decomposer) inferShape(q *ast.Query) ([]rql.ColumnDef, map[string]string, error) {
	var shape []rql.ColumnDef
	columns := map[string]string{}

	for i, p := range q.Projections {
		if id, ok := p.(*ast.Identifier); ok && id.IsLeaf() {
			expanded, err := d.expandLeaf(id)
			if err != nil {
				return nil, nil, err
			}
			for _, col := range expanded {
				shape = append(shape, col)
				columns[id.Range.RangeName+"_"+col.Name] = col.Name
			}
			continue
		}
		col := rql.ColumnDef{
			Name: exposedName(p, i),
			Type: d.columnType(p),
		}
		shape = append(shape, col)
		columns[ast.AliasOf(p, i)] = col.Name
	}
	return shape, columns, nil
}

func (d *Decomposer) expandLeaf(id *ast.Identifier) ([]rql.ColumnDef, error) {
	r := id.Range
	switch r.Source {
	case ast.SourceEntity:
		cm, err := d.Metadata.ColumnMap(r.Entity)
		if err != nil {
			return nil, err
		}
		props := make([]string, 0, len(cm))
		for prop := range cm {
			props = append(props, prop)
		}
		sortStrings(props)
		cols := make([]rql.ColumnDef, 0, len(props))
		for _, prop := range props {
			cols = append(cols, rql.ColumnDef{Name: prop, Type: cm[prop].Type})
		}
		return cols, nil
	case ast.SourceQuery:
		return append([]rql.ColumnDef(nil), r.Shape...), nil
	default:
		// JSON documents have no declared shape to expand.
		return nil, rql.ErrPropertyNotFound.New(r.RangeName, "*")
	}
}

// exposedName is the column name a projection materializes under, the
// output alias with the owning range prefix stripped. The outer query
// addresses the column through its own range alias instead.
func exposedName(n rql.Node, pos int) string {
	switch n := n.(type) {
	case *ast.Identifier:
		return strings.ReplaceAll(n.Property(), ".", "_")
	case *ast.Aggregate:
		return n.Fn.String() + "_" + exposedName(n.Target, pos)
	case *ast.Subquery:
		if n.Projection != nil {
			return exposedName(n.Projection, pos)
		}
	}
	return fmt.Sprintf("col_%d", pos)
}

// columnType infers a materialized column's type. Aggregates are numeric
// apart from the existential one, identifiers take their mapped type and
// everything else degrades to text.
func (d *Decomposer) columnType(n rql.Node) rql.ColumnType {
	switch n := n.(type) {
	case *ast.Aggregate:
		if n.Fn == ast.AggCount {
			return rql.Int64
		}
		if n.Fn.Numeric() {
			return rql.Float64
		}
		return rql.Boolean
	case *ast.Subquery:
		if n.Projection != nil {
			return d.columnType(n.Projection)
		}
	case *ast.Identifier:
		if n.Range != nil && n.Range.Source == ast.SourceEntity {
			cm, err := d.Metadata.ColumnMap(n.Range.Entity)
			if err == nil {
				if c, ok := cm[n.Property()]; ok {
					return c.Type
				}
			}
		}
	}
	return rql.Text
}
