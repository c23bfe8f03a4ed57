// Package ast holds the query tree the engine compiles and executes. The
// node set is closed: every node is one of the types of this package and
// all dispatch happens through exhaustive type switches. Nodes carry a
// non-owning parent back-reference that is kept consistent by the
// constructors and by ReplaceChild.
package ast

import (
	"github.com/rangeql/rangeql/rql"
)

type baseNode struct {
	parent rql.Node
}

func (b *baseNode) Parent() rql.Node     { return b.parent }
func (b *baseNode) SetParent(p rql.Node) { b.parent = p }

// attach points child's parent at parent. nil children are tolerated so
// constructors can take optional operands.
func attach(parent rql.Node, children ...rql.Node) {
	for _, c := range children {
		if c != nil {
			c.SetParent(parent)
		}
	}
}

// replace swaps old for new inside slot, keeping both parent pointers
// consistent. It is the single primitive every ReplaceChild builds on.
func replace(parent rql.Node, slot *rql.Node, old, new rql.Node) bool {
	if *slot != old {
		return false
	}
	*slot = new
	if new != nil {
		new.SetParent(parent)
	}
	return true
}

// Replace substitutes old with new in old's parent. The root cannot be
// replaced this way.
func Replace(old, new rql.Node) error {
	parent := old.Parent()
	if parent == nil {
		return rql.ErrChildNotFound.New(old, old.String())
	}
	return parent.ReplaceChild(old, new)
}
