package ast

import (
	"fmt"
	"strings"

	"github.com/rangeql/rangeql/rql"
)

// AggregateFn is one of the supported aggregate functions.
type AggregateFn int

const (
	AggSum AggregateFn = iota
	AggAvg
	AggCount
	AggMin
	AggMax
	// AggAny is the existential aggregate: true when any row of the target
	// satisfies the filter.
	AggAny
)

func (f AggregateFn) String() string {
	switch f {
	case AggSum:
		return "sum"
	case AggAvg:
		return "avg"
	case AggCount:
		return "count"
	case AggMin:
		return "min"
	case AggMax:
		return "max"
	default:
		return "any"
	}
}

// Numeric reports whether the aggregate produces a numeric value, used to
// infer temporary table column types.
func (f AggregateFn) Numeric() bool { return f != AggAny }

// Aggregate applies an aggregate function to a target expression, with an
// optional inner filter restricting the aggregated rows.
type Aggregate struct {
	baseNode
	Fn AggregateFn
	// Unique marks the distinct variants (`sum unique`, `count unique`...).
	Unique bool
	Target rql.Node
	Filter rql.Node
}

// NewAggregate builds an aggregate node over target.
func NewAggregate(fn AggregateFn, target rql.Node) *Aggregate {
	a := &Aggregate{Fn: fn, Target: target}
	attach(a, target)
	return a
}

// WithFilter sets the aggregate's inner filter and returns it.
func (a *Aggregate) WithFilter(filter rql.Node) *Aggregate {
	a.Filter = filter
	attach(a, filter)
	return a
}

// WithUnique marks the aggregate distinct and returns it.
func (a *Aggregate) WithUnique() *Aggregate {
	a.Unique = true
	return a
}

func (a *Aggregate) Children() []rql.Node {
	children := []rql.Node{a.Target}
	if a.Filter != nil {
		children = append(children, a.Filter)
	}
	return children
}

func (a *Aggregate) ReplaceChild(old, new rql.Node) error {
	if replace(a, &a.Target, old, new) {
		return nil
	}
	if a.Filter != nil {
		if replace(a, &a.Filter, old, new) {
			return nil
		}
	}
	return rql.ErrChildNotFound.New(a, old.String())
}

func (a *Aggregate) String() string {
	var sb strings.Builder
	sb.WriteString(a.Fn.String())
	if a.Unique {
		sb.WriteString(" unique")
	}
	fmt.Fprintf(&sb, "(%s", a.Target)
	if a.Filter != nil {
		fmt.Fprintf(&sb, " if %s", a.Filter)
	}
	sb.WriteString(")")
	return sb.String()
}
