package ast

import (
	"fmt"
	"strings"

	"github.com/rangeql/rangeql/rql"
)

// SortField is one ORDER BY entry.
type SortField struct {
	Expr rql.Node
	Desc bool
}

// Query is the root of one retrieve statement: declared ranges, the
// projection list, the WHERE predicate and the paging/sorting clauses.
type Query struct {
	baseNode
	Ranges      []*Range
	Projections []rql.Node
	// Hidden are projections added by join-condition completion. They are
	// fetched so the executor can join in memory but are not part of the
	// visible result shape.
	Hidden []rql.Node
	Where  rql.Node
	Unique bool
	Sort   []SortField
	// Window and WindowSize are the page index and page size expressions,
	// both nil when the query is unpaged.
	Window     rql.Node
	WindowSize rql.Node
	// Directives are the `@name` compiler directives seen in the query.
	Directives []string
}

// NewQuery builds an empty query root.
func NewQuery() *Query { return &Query{} }

// AddRange declares a range on the query. It fails on duplicate names.
func (q *Query) AddRange(r *Range) error {
	for _, existing := range q.Ranges {
		if existing.RangeName == r.RangeName {
			return rql.ErrDuplicateRange.New(r.RangeName)
		}
	}
	q.Ranges = append(q.Ranges, r)
	attach(q, r)
	return nil
}

// RemoveRange detaches a range from the query's join set.
func (q *Query) RemoveRange(r *Range) {
	for i, existing := range q.Ranges {
		if existing == r {
			q.Ranges = append(q.Ranges[:i], q.Ranges[i+1:]...)
			return
		}
	}
}

// Range returns the declared range with the given name, or nil.
func (q *Query) Range(name string) *Range {
	for _, r := range q.Ranges {
		if r.RangeName == name {
			return r
		}
	}
	return nil
}

// AddProjection appends an expression to the projection list.
func (q *Query) AddProjection(n rql.Node) {
	q.Projections = append(q.Projections, n)
	attach(q, n)
}

// AddHidden appends a non-result-visible projection.
func (q *Query) AddHidden(n rql.Node) {
	q.Hidden = append(q.Hidden, n)
	attach(q, n)
}

// SetWhere replaces the WHERE predicate. nil clears it.
func (q *Query) SetWhere(n rql.Node) {
	q.Where = n
	attach(q, n)
}

// AddSort appends an ORDER BY entry.
func (q *Query) AddSort(expr rql.Node, desc bool) {
	q.Sort = append(q.Sort, SortField{Expr: expr, Desc: desc})
	attach(q, expr)
}

// SetWindow sets the page index and size expressions.
func (q *Query) SetWindow(window, size rql.Node) {
	q.Window = window
	q.WindowSize = size
	attach(q, window, size)
}

// HasDirective reports whether the query carries the named directive.
func (q *Query) HasDirective(name string) bool {
	for _, d := range q.Directives {
		if strings.EqualFold(d, name) {
			return true
		}
	}
	return false
}

// Paged reports whether the query declares both a window and a window
// size.
func (q *Query) Paged() bool { return q.Window != nil && q.WindowSize != nil }

func (q *Query) Children() []rql.Node {
	var children []rql.Node
	for _, r := range q.Ranges {
		children = append(children, r)
	}
	children = append(children, q.Projections...)
	children = append(children, q.Hidden...)
	if q.Where != nil {
		children = append(children, q.Where)
	}
	for _, s := range q.Sort {
		children = append(children, s.Expr)
	}
	if q.Window != nil {
		children = append(children, q.Window)
	}
	if q.WindowSize != nil {
		children = append(children, q.WindowSize)
	}
	return children
}

func (q *Query) ReplaceChild(old, new rql.Node) error {
	for i, r := range q.Ranges {
		if rql.Node(r) == old {
			nr, ok := new.(*Range)
			if !ok {
				return rql.ErrChildNotFound.New(q, old.String())
			}
			q.Ranges[i] = nr
			attach(q, nr)
			return nil
		}
	}
	for i := range q.Projections {
		if replace(q, &q.Projections[i], old, new) {
			return nil
		}
	}
	for i := range q.Hidden {
		if replace(q, &q.Hidden[i], old, new) {
			return nil
		}
	}
	if q.Where != nil {
		if replace(q, &q.Where, old, new) {
			return nil
		}
	}
	for i := range q.Sort {
		if replace(q, &q.Sort[i].Expr, old, new) {
			return nil
		}
	}
	if q.Window != nil {
		if replace(q, &q.Window, old, new) {
			return nil
		}
	}
	if q.WindowSize != nil {
		if replace(q, &q.WindowSize, old, new) {
			return nil
		}
	}
	return rql.ErrChildNotFound.New(q, old.String())
}

func (q *Query) String() string {
	var sb strings.Builder
	for _, r := range q.Ranges {
		sb.WriteString(r.String())
		sb.WriteString("; ")
	}
	sb.WriteString("retrieve(")
	for i, p := range q.Projections {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(p.String())
	}
	sb.WriteString(")")
	if q.Unique {
		sb.WriteString(" unique")
	}
	if q.Where != nil {
		fmt.Fprintf(&sb, " where %s", q.Where)
	}
	for i, s := range q.Sort {
		if i == 0 {
			sb.WriteString(" sort by ")
		} else {
			sb.WriteString(", ")
		}
		sb.WriteString(s.Expr.String())
		if s.Desc {
			sb.WriteString(" desc")
		}
	}
	if q.Paged() {
		fmt.Fprintf(&sb, " window %s using window_size %s", q.Window, q.WindowSize)
	}
	return sb.String()
}
