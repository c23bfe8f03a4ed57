package ast

import "github.com/rangeql/rangeql/rql"

// CloneExpr deep-copies an expression subtree. Range bindings on
// identifiers keep pointing at the original ranges, so a cloned predicate
// can be attached elsewhere in the same query without the two copies
// sharing mutable nodes.
func CloneExpr(n rql.Node) rql.Node {
	return cloneNode(n, nil)
}

// CloneQuery deep-copies a whole query. Declared ranges are copied too and
// every identifier binding is remapped onto the copy, so the clone shares
// no mutable state with the original.
func CloneQuery(q *Query) *Query {
	ranges := make(map[*Range]*Range, len(q.Ranges))
	return cloneQuery(q, ranges)
}

func cloneQuery(q *Query, ranges map[*Range]*Range) *Query {
	nq := NewQuery()
	nq.Unique = q.Unique
	nq.Directives = append([]string(nil), q.Directives...)
	for _, r := range q.Ranges {
		nr := cloneRange(r, ranges)
		nq.Ranges = append(nq.Ranges, nr)
		attach(nq, nr)
	}
	// Join predicates are cloned after every range exists so bindings that
	// point forward in the declaration order remap correctly.
	for i, r := range q.Ranges {
		if r.Join != nil {
			nq.Ranges[i].Join = cloneNode(r.Join, ranges)
			attach(nq.Ranges[i], nq.Ranges[i].Join)
		}
	}
	for _, p := range q.Projections {
		nq.AddProjection(cloneNode(p, ranges))
	}
	for _, p := range q.Hidden {
		nq.AddHidden(cloneNode(p, ranges))
	}
	if q.Where != nil {
		nq.SetWhere(cloneNode(q.Where, ranges))
	}
	for _, s := range q.Sort {
		nq.AddSort(cloneNode(s.Expr, ranges), s.Desc)
	}
	if q.Window != nil || q.WindowSize != nil {
		nq.SetWindow(cloneNode(q.Window, ranges), cloneNode(q.WindowSize, ranges))
	}
	return nq
}

func cloneRange(r *Range, ranges map[*Range]*Range) *Range {
	if nr, ok := ranges[r]; ok {
		return nr
	}
	nr := &Range{
		RangeName:     r.RangeName,
		Source:        r.Source,
		Entity:        r.Entity,
		JSONName:      r.JSONName,
		Required:      r.Required,
		IncludeAsJoin: r.IncludeAsJoin,
		TempTable:     r.TempTable,
		Shape:         append([]rql.ColumnDef(nil), r.Shape...),
	}
	ranges[r] = nr
	if r.Query != nil {
		nr.Query = cloneQuery(r.Query, ranges)
		attach(nr, nr.Query)
	}
	// Join is cloned by the owner once all sibling ranges are mapped.
	return nr
}

func cloneNode(n rql.Node, ranges map[*Range]*Range) rql.Node {
	if n == nil {
		return nil
	}
	switch n := n.(type) {
	case *Identifier:
		head := &Identifier{Part: n.Part}
		if n.Range != nil {
			if ranges != nil && ranges[n.Range] != nil {
				head.Range = ranges[n.Range]
			} else {
				head.Range = n.Range
			}
		}
		if n.Next != nil {
			next := cloneNode(n.Next, ranges).(*Identifier)
			head.Next = next
			attach(head, next)
		}
		return head
	case *Literal:
		return NewLiteral(n.Value, n.Typ)
	case *Param:
		return NewParam(n.ParamName)
	case *ValueList:
		values := make([]rql.Node, len(n.Values))
		for i, v := range n.Values {
			values[i] = cloneNode(v, ranges)
		}
		return NewValueList(values...)
	case *BinaryExpr:
		return NewBinary(n.Op, cloneNode(n.Left, ranges), cloneNode(n.Right, ranges))
	case *UnaryExpr:
		return NewUnary(n.Op, cloneNode(n.Operand, ranges))
	case *Aggregate:
		a := NewAggregate(n.Fn, cloneNode(n.Target, ranges))
		a.Unique = n.Unique
		if n.Filter != nil {
			a.WithFilter(cloneNode(n.Filter, ranges))
		}
		return a
	case *Subquery:
		s := &Subquery{SubKind: n.SubKind}
		if ranges == nil {
			ranges = map[*Range]*Range{}
			// Owned ranges are always copied, only outer bindings are
			// preserved.
		}
		for _, r := range n.Ranges {
			nr := cloneRange(r, ranges)
			s.Ranges = append(s.Ranges, nr)
			attach(s, nr)
		}
		for i, r := range n.Ranges {
			if r.Join != nil {
				s.Ranges[i].Join = cloneNode(r.Join, ranges)
				attach(s.Ranges[i], s.Ranges[i].Join)
			}
		}
		if n.Projection != nil {
			s.Projection = cloneNode(n.Projection, ranges)
			attach(s, s.Projection)
		}
		if n.Condition != nil {
			s.Condition = cloneNode(n.Condition, ranges)
			attach(s, s.Condition)
		}
		for _, r := range n.Correlated {
			if nr, ok := ranges[r]; ok {
				s.Correlated = append(s.Correlated, nr)
			} else {
				s.Correlated = append(s.Correlated, r)
			}
		}
		return s
	case *Range:
		if ranges == nil {
			ranges = map[*Range]*Range{}
		}
		nr := cloneRange(n, ranges)
		if n.Join != nil {
			nr.Join = cloneNode(n.Join, ranges)
			attach(nr, nr.Join)
		}
		return nr
	case *Query:
		if ranges == nil {
			ranges = map[*Range]*Range{}
		}
		return cloneQuery(n, ranges)
	default:
		panic("ast: cannot clone unknown node type")
	}
}
