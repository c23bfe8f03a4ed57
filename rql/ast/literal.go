package ast

import (
	"fmt"

	"github.com/rangeql/rangeql/rql"
)

// LiteralType tags the static type of a literal value.
type LiteralType int

const (
	LiteralNull LiteralType = iota
	LiteralInt
	LiteralFloat
	LiteralString
	LiteralBool
)

// Literal is a constant value node. Literals are never inlined into
// generated SQL, they are bound as parameters.
type Literal struct {
	baseNode
	Value interface{}
	Typ   LiteralType
}

// NewLiteral builds a literal node.
func NewLiteral(value interface{}, typ LiteralType) *Literal {
	return &Literal{Value: value, Typ: typ}
}

// NewNull returns the NULL literal.
func NewNull() *Literal { return &Literal{Typ: LiteralNull} }

// True returns a constant-true predicate.
func True() *Literal { return &Literal{Value: true, Typ: LiteralBool} }

// IsNull reports whether the literal is NULL.
func (l *Literal) IsNull() bool { return l.Typ == LiteralNull }

func (l *Literal) Children() []rql.Node { return nil }

func (l *Literal) ReplaceChild(old, new rql.Node) error {
	return rql.ErrChildNotFound.New(l, old.String())
}

func (l *Literal) String() string {
	if l.IsNull() {
		return "null"
	}
	if l.Typ == LiteralString {
		return fmt.Sprintf("%q", l.Value)
	}
	return fmt.Sprintf("%v", l.Value)
}

// Param is a bound parameter reference (`:name`). Its value is supplied at
// decomposition time through the static parameter set.
type Param struct {
	baseNode
	ParamName string
}

// NewParam builds a bound parameter node.
func NewParam(name string) *Param { return &Param{ParamName: name} }

// Name implements rql.Nameable.
func (p *Param) Name() string { return p.ParamName }

func (p *Param) Children() []rql.Node { return nil }

func (p *Param) ReplaceChild(old, new rql.Node) error {
	return rql.ErrChildNotFound.New(p, old.String())
}

func (p *Param) String() string { return ":" + p.ParamName }

// ValueList is an ordered list of scalar expressions, the right-hand side
// of IN. The pagination transformer rewrites these in place.
type ValueList struct {
	baseNode
	Values []rql.Node
}

// NewValueList builds a value list and adopts its elements.
func NewValueList(values ...rql.Node) *ValueList {
	v := &ValueList{Values: values}
	attach(v, values...)
	return v
}

func (v *ValueList) Children() []rql.Node { return append([]rql.Node(nil), v.Values...) }

func (v *ValueList) ReplaceChild(old, new rql.Node) error {
	for i := range v.Values {
		if replace(v, &v.Values[i], old, new) {
			return nil
		}
	}
	return rql.ErrChildNotFound.New(v, old.String())
}

func (v *ValueList) String() string {
	s := "("
	for i, val := range v.Values {
		if i > 0 {
			s += ", "
		}
		s += val.String()
	}
	return s + ")"
}
