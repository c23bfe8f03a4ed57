package ast

import (
	"fmt"

	"github.com/rangeql/rangeql/rql"
)

// BinaryOp is the operator vocabulary of BinaryExpr. Expression, term and
// factor tiers share the node shape and differ only in which operators the
// parser admits at each precedence level.
type BinaryOp int

const (
	OpOr BinaryOp = iota
	OpAnd
	OpEquals
	OpNotEquals
	OpLess
	OpLessEquals
	OpGreater
	OpGreaterEquals
	OpIn
	OpLike
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpShiftLeft
	OpShiftRight
	OpArrow
)

var binaryOpNames = map[BinaryOp]string{
	OpOr:            "or",
	OpAnd:           "and",
	OpEquals:        "==",
	OpNotEquals:     "!=",
	OpLess:          "<",
	OpLessEquals:    "<=",
	OpGreater:       ">",
	OpGreaterEquals: ">=",
	OpIn:            "in",
	OpLike:          "like",
	OpAdd:           "+",
	OpSub:           "-",
	OpMul:           "*",
	OpDiv:           "/",
	OpMod:           "%",
	OpShiftLeft:     "<<",
	OpShiftRight:    ">>",
	OpArrow:         "->",
}

func (o BinaryOp) String() string { return binaryOpNames[o] }

// IsComparison reports whether the operator yields a boolean from two
// scalar operands.
func (o BinaryOp) IsComparison() bool {
	switch o {
	case OpEquals, OpNotEquals, OpLess, OpLessEquals, OpGreater, OpGreaterEquals, OpIn, OpLike:
		return true
	}
	return false
}

// BinaryExpr is any two-operand operator node.
type BinaryExpr struct {
	baseNode
	Op    BinaryOp
	Left  rql.Node
	Right rql.Node
}

// NewBinary builds a binary operator node and adopts both operands.
func NewBinary(op BinaryOp, left, right rql.Node) *BinaryExpr {
	b := &BinaryExpr{Op: op, Left: left, Right: right}
	attach(b, left, right)
	return b
}

// NewAnd is shorthand for an AND conjunction.
func NewAnd(left, right rql.Node) *BinaryExpr { return NewBinary(OpAnd, left, right) }

// NewOr is shorthand for an OR disjunction.
func NewOr(left, right rql.Node) *BinaryExpr { return NewBinary(OpOr, left, right) }

// NewEquals is shorthand for an equality comparison.
func NewEquals(left, right rql.Node) *BinaryExpr { return NewBinary(OpEquals, left, right) }

func (b *BinaryExpr) Children() []rql.Node {
	return []rql.Node{b.Left, b.Right}
}

func (b *BinaryExpr) ReplaceChild(old, new rql.Node) error {
	if replace(b, &b.Left, old, new) {
		return nil
	}
	if replace(b, &b.Right, old, new) {
		return nil
	}
	return rql.ErrChildNotFound.New(b, old.String())
}

func (b *BinaryExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", b.Left, b.Op, b.Right)
}

// UnaryOp is the operator vocabulary of UnaryExpr.
type UnaryOp int

const (
	OpNot UnaryOp = iota
	OpNeg
	OpIsNull
	OpIsNotNull
)

func (o UnaryOp) String() string {
	switch o {
	case OpNeg:
		return "-"
	case OpIsNull:
		return "is null"
	case OpIsNotNull:
		return "is not null"
	default:
		return "not"
	}
}

// UnaryExpr is any single-operand operator node.
type UnaryExpr struct {
	baseNode
	Op      UnaryOp
	Operand rql.Node
}

// NewUnary builds a unary operator node and adopts the operand.
func NewUnary(op UnaryOp, operand rql.Node) *UnaryExpr {
	u := &UnaryExpr{Op: op, Operand: operand}
	attach(u, operand)
	return u
}

// NewIsNotNull is shorthand for a NOT NULL check on the operand.
func NewIsNotNull(operand rql.Node) *UnaryExpr { return NewUnary(OpIsNotNull, operand) }

func (u *UnaryExpr) Children() []rql.Node {
	return []rql.Node{u.Operand}
}

func (u *UnaryExpr) ReplaceChild(old, new rql.Node) error {
	if replace(u, &u.Operand, old, new) {
		return nil
	}
	return rql.ErrChildNotFound.New(u, old.String())
}

func (u *UnaryExpr) String() string {
	if u.Op == OpIsNull || u.Op == OpIsNotNull {
		return fmt.Sprintf("(%s %s)", u.Operand, u.Op)
	}
	return fmt.Sprintf("(%s %s)", u.Op, u.Operand)
}

// SplitConjunction breaks an AND tree into its leaf predicates, in
// left-to-right order. A non-AND node yields itself.
func SplitConjunction(n rql.Node) []rql.Node {
	and, ok := n.(*BinaryExpr)
	if !ok || and.Op != OpAnd {
		if n == nil {
			return nil
		}
		return []rql.Node{n}
	}
	return append(
		SplitConjunction(and.Left),
		SplitConjunction(and.Right)...,
	)
}

// JoinAnd rebuilds a left-deep AND tree from predicates, skipping nils.
// Returns nil when nothing remains.
func JoinAnd(preds ...rql.Node) rql.Node {
	var out rql.Node
	for _, p := range preds {
		if p == nil {
			continue
		}
		if out == nil {
			out = p
		} else {
			out = NewAnd(out, p)
		}
	}
	return out
}
