package ast

import (
	"strings"

	"github.com/rangeql/rangeql/rql"
)

// Identifier is one segment of a dotted identifier chain. `a.b.c` is three
// Identifier nodes linked through Next. Only the chain head carries a range
// binding; a head with no Next is a whole-range leaf that expands to the
// full column list of its entity.
type Identifier struct {
	baseNode
	Part string
	Next *Identifier
	// Range is the binding of the chain head, nil until the binder rule
	// has run or for non-head segments.
	Range *Range
}

// NewIdentifier builds an identifier chain from its dotted parts.
func NewIdentifier(parts ...string) *Identifier {
	if len(parts) == 0 {
		return nil
	}
	head := &Identifier{Part: parts[0]}
	cur := head
	for _, p := range parts[1:] {
		next := &Identifier{Part: p}
		attach(cur, next)
		cur.Next = next
		cur = next
	}
	return head
}

// Parts returns the chain segments in order.
func (i *Identifier) Parts() []string {
	var parts []string
	for n := i; n != nil; n = n.Next {
		parts = append(parts, n.Part)
	}
	return parts
}

// Last returns the final segment of the chain.
func (i *Identifier) Last() *Identifier {
	n := i
	for n.Next != nil {
		n = n.Next
	}
	return n
}

// IsLeaf reports whether the identifier is a whole-range reference: bound
// to a range and with no trailing segments.
func (i *Identifier) IsLeaf() bool {
	return i.Next == nil && i.Range != nil
}

// Property returns the property path below the range binding, empty for a
// whole-range leaf.
func (i *Identifier) Property() string {
	if i.Next == nil {
		return ""
	}
	return strings.Join(i.Next.Parts(), ".")
}

func (i *Identifier) Children() []rql.Node {
	if i.Next == nil {
		return nil
	}
	return []rql.Node{i.Next}
}

func (i *Identifier) ReplaceChild(old, new rql.Node) error {
	if i.Next != nil && rql.Node(i.Next) == old {
		next, ok := new.(*Identifier)
		if !ok {
			return rql.ErrChildNotFound.New(i, old.String())
		}
		i.Next = next
		attach(i, next)
		return nil
	}
	return rql.ErrChildNotFound.New(i, old.String())
}

func (i *Identifier) String() string {
	return strings.Join(i.Parts(), ".")
}
