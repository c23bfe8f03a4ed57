package ast

import (
	"fmt"

	"github.com/rangeql/rangeql/rql"
)

// SubqueryKind tags the structural shape of a subquery node.
type SubqueryKind int

const (
	// SubExists is an existence check: true when the subquery yields at
	// least one row.
	SubExists SubqueryKind = iota
	// SubScalar is a correlated scalar subquery yielding one value per
	// outer row.
	SubScalar
	// SubWindow is an aggregate computed over the full row set without
	// collapsing rows. It owns no ranges of its own.
	SubWindow
)

func (k SubqueryKind) String() string {
	switch k {
	case SubScalar:
		return "scalar"
	case SubWindow:
		return "window"
	default:
		return "exists"
	}
}

// Subquery is a nested query expression. EXISTS and SCALAR subqueries own
// ranges and track which of them are correlated, bound to a range of the
// enclosing query. WINDOW subqueries reuse the outer row set directly.
type Subquery struct {
	baseNode
	SubKind SubqueryKind
	// Projection is the projected or aggregated expression.
	Projection rql.Node
	// Ranges are the ranges owned by the subquery.
	Ranges []*Range
	// Condition is the subquery's own predicate, nil when absent.
	Condition rql.Node
	// Correlated lists which owned ranges are bound to an outer range.
	Correlated []*Range
}

// NewExists builds an EXISTS subquery over the given ranges.
func NewExists(ranges []*Range, condition rql.Node) *Subquery {
	s := &Subquery{SubKind: SubExists, Ranges: ranges, Condition: condition}
	for _, r := range ranges {
		attach(s, r)
	}
	attach(s, condition)
	return s
}

// NewScalar builds a correlated scalar subquery.
func NewScalar(projection rql.Node, ranges []*Range, condition rql.Node) *Subquery {
	s := &Subquery{SubKind: SubScalar, Projection: projection, Ranges: ranges, Condition: condition}
	attach(s, projection, condition)
	for _, r := range ranges {
		attach(s, r)
	}
	return s
}

// NewWindow builds a window-function form of the given aggregate.
func NewWindow(projection rql.Node) *Subquery {
	s := &Subquery{SubKind: SubWindow, Projection: projection}
	attach(s, projection)
	return s
}

func (s *Subquery) Children() []rql.Node {
	var children []rql.Node
	if s.Projection != nil {
		children = append(children, s.Projection)
	}
	for _, r := range s.Ranges {
		children = append(children, r)
	}
	if s.Condition != nil {
		children = append(children, s.Condition)
	}
	return children
}

func (s *Subquery) ReplaceChild(old, new rql.Node) error {
	if s.Projection != nil {
		if replace(s, &s.Projection, old, new) {
			return nil
		}
	}
	for i, r := range s.Ranges {
		if rql.Node(r) == old {
			nr, ok := new.(*Range)
			if !ok {
				return rql.ErrChildNotFound.New(s, old.String())
			}
			s.Ranges[i] = nr
			attach(s, nr)
			return nil
		}
	}
	if s.Condition != nil {
		if replace(s, &s.Condition, old, new) {
			return nil
		}
	}
	return rql.ErrChildNotFound.New(s, old.String())
}

func (s *Subquery) String() string {
	switch s.SubKind {
	case SubWindow:
		return fmt.Sprintf("window(%s)", s.Projection)
	case SubScalar:
		return fmt.Sprintf("scalar(%s where %v)", s.Projection, s.Condition)
	default:
		return fmt.Sprintf("exists(%d ranges where %v)", len(s.Ranges), s.Condition)
	}
}
