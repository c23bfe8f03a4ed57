package ast

import (
	"fmt"
	"strings"

	"github.com/rangeql/rangeql/rql"
)

// AliasOf derives the output column name of a projection. Identifier
// chains become underscore-joined paths (`u.name` -> `u_name`), aggregates
// prefix their function name, and anything else falls back to a positional
// name. The same derivation keys the rows every stage produces, so join
// predicates evaluated in memory see the same names SQL stages emit.
func AliasOf(n rql.Node, pos int) string {
	switch n := n.(type) {
	case *Identifier:
		parts := n.Parts()
		if n.Range != nil {
			parts = append([]string{n.Range.RangeName}, parts[1:]...)
		}
		return strings.Join(parts, "_")
	case *Aggregate:
		return n.Fn.String() + "_" + AliasOf(n.Target, pos)
	case *Subquery:
		if n.Projection != nil {
			return AliasOf(n.Projection, pos)
		}
	}
	return fmt.Sprintf("col_%d", pos)
}
