package rql

// Nameable is anything with a name.
type Nameable interface {
	Name() string
}

// Node is a node of a query tree. Every node except the root has exactly
// one parent. Nodes are mutated in place by the optimizer, so a single tree
// must never be shared between goroutines.
type Node interface {
	// Parent returns the node this node is attached to, or nil for the root.
	Parent() Node
	// SetParent attaches the node to a parent. It is called by constructors
	// and by ReplaceChild, user code should rarely need it.
	SetParent(Node)
	// Children returns the direct children of the node in document order.
	Children() []Node
	// ReplaceChild swaps old for new in this node's child slots and points
	// new's parent at this node. Both sides are updated or neither is.
	ReplaceChild(old, new Node) error
	String() string
}

// Visitor is applied to every node of a pre-order walk. Returning false
// stops the walk from descending into the node's children. Returning an
// error aborts the walk and surfaces the error to the Walk caller.
type Visitor interface {
	Visit(node Node) (descend bool, err error)
}

// Walk traverses the tree rooted at node in pre-order, applying v to every
// node it reaches.
func Walk(v Visitor, node Node) error {
	if node == nil {
		return nil
	}

	descend, err := v.Visit(node)
	if err != nil {
		return err
	}
	if !descend {
		return nil
	}

	for _, c := range node.Children() {
		if err := Walk(v, c); err != nil {
			return err
		}
	}

	return nil
}

type inspector func(Node) bool

func (f inspector) Visit(node Node) (bool, error) {
	return f(node), nil
}

// Inspect traverses the tree rooted at node, calling f for every node.
// If f returns false, the children of that node are skipped.
func Inspect(node Node, f func(Node) bool) {
	_ = Walk(inspector(f), node)
}

// Row is one result row: output column or alias name to scalar value.
// A missing match in a left join contributes nil values.
type Row map[string]interface{}

// Copy returns a shallow copy of the row.
func (r Row) Copy() Row {
	nr := make(Row, len(r))
	for k, v := range r {
		nr[k] = v
	}
	return nr
}
