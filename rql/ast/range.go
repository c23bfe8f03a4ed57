package ast

import (
	"fmt"

	"github.com/rangeql/rangeql/rql"
)

// SourceKind is the kind of data source a range is bound to.
type SourceKind int

const (
	// SourceEntity is a range over a mapped relational entity.
	SourceEntity SourceKind = iota
	// SourceJSON is a range over a named JSON document source.
	SourceJSON
	// SourceQuery is a temporary range over a derived sub-result. It is
	// materialized into a backend-side temporary table before the outer
	// query runs.
	SourceQuery
)

func (k SourceKind) String() string {
	switch k {
	case SourceJSON:
		return "json"
	case SourceQuery:
		return "query"
	default:
		return "entity"
	}
}

// RefKind classifies where a range is referenced from. The optimizer uses
// the reference records to decide whether a range is aggregate-only.
type RefKind int

const (
	// RefSelect marks a use in the projection list.
	RefSelect RefKind = iota
	// RefWhere marks a use in the WHERE predicate.
	RefWhere
	// RefAggregate marks a use as an aggregate target.
	RefAggregate
	// RefAggregateFilter marks a use inside an aggregate's own filter.
	RefAggregateFilter
	// RefAggregateFilterWhere marks a use inside a WHERE condition that
	// only exists to feed an aggregate filter.
	RefAggregateFilterWhere
	// RefJoin marks a use inside another range's join predicate.
	RefJoin
)

// IsAggregate reports whether the reference kind is one of the aggregate
// flavors.
func (k RefKind) IsAggregate() bool {
	return k == RefAggregate || k == RefAggregateFilter || k == RefAggregateFilterWhere
}

// RangeRef records one place a range is used.
type RangeRef struct {
	Kind RefKind
	Node rql.Node
}

// Range is a named binding of a data source within one query's scope.
type Range struct {
	baseNode
	// RangeName is the scope key, unique within the query.
	RangeName string
	// Source tells which backend realizes the range.
	Source SourceKind
	// Entity is the mapped entity name for SourceEntity ranges. The
	// namespace resolver may prefix it.
	Entity string
	// JSONName is the registered document source name for SourceJSON.
	JSONName string
	// Query is the derived sub-query for SourceQuery ranges.
	Query *Query
	// Join is the `via` predicate tying the range to the rest of the
	// query, nil for the FROM root.
	Join rql.Node
	// Required drives INNER versus LEFT join rendering.
	Required bool
	// IncludeAsJoin is cleared when the optimizer realizes the range as a
	// correlated form instead of a physical join.
	IncludeAsJoin bool
	// Refs are the places the range is used, recomputed by RecordRefs.
	Refs []RangeRef
	// TempTable is the backend-side table a SourceQuery range is
	// materialized into, set by the decomposer.
	TempTable string
	// Shape is the inferred column set of a materialized range.
	Shape []rql.ColumnDef
}

// NewEntityRange declares a range over a mapped entity.
func NewEntityRange(name, entity string) *Range {
	return &Range{RangeName: name, Source: SourceEntity, Entity: entity, IncludeAsJoin: true}
}

// NewJSONRange declares a range over a named JSON source.
func NewJSONRange(name, source string) *Range {
	return &Range{RangeName: name, Source: SourceJSON, JSONName: source, IncludeAsJoin: true}
}

// NewQueryRange declares a temporary range over a derived sub-query.
func NewQueryRange(name string, q *Query) *Range {
	r := &Range{RangeName: name, Source: SourceQuery, Query: q, IncludeAsJoin: true}
	attach(r, q)
	return r
}

// WithJoin sets the join predicate and returns the range.
func (r *Range) WithJoin(join rql.Node) *Range {
	r.Join = join
	attach(r, join)
	return r
}

// Name implements rql.Nameable.
func (r *Range) Name() string { return r.RangeName }

// AggregateOnly reports whether every recorded reference of the range is
// one of the aggregate kinds. A range with no references is not
// aggregate-only.
func (r *Range) AggregateOnly() bool {
	if len(r.Refs) == 0 {
		return false
	}
	for _, ref := range r.Refs {
		if !ref.Kind.IsAggregate() {
			return false
		}
	}
	return true
}

func (r *Range) Children() []rql.Node {
	var children []rql.Node
	if r.Query != nil {
		children = append(children, r.Query)
	}
	if r.Join != nil {
		children = append(children, r.Join)
	}
	return children
}

func (r *Range) ReplaceChild(old, new rql.Node) error {
	if r.Query != nil && rql.Node(r.Query) == old {
		q, ok := new.(*Query)
		if !ok {
			return rql.ErrChildNotFound.New(r, old.String())
		}
		r.Query = q
		attach(r, q)
		return nil
	}
	if r.Join != nil {
		var slot rql.Node = r.Join
		if replace(r, &slot, old, new) {
			r.Join = slot
			return nil
		}
	}
	return rql.ErrChildNotFound.New(r, old.String())
}

func (r *Range) String() string {
	switch r.Source {
	case SourceJSON:
		return fmt.Sprintf("range of %s is json %s", r.RangeName, r.JSONName)
	case SourceQuery:
		return fmt.Sprintf("range of %s is (%s)", r.RangeName, r.Query)
	default:
		return fmt.Sprintf("range of %s is %s", r.RangeName, r.Entity)
	}
}
