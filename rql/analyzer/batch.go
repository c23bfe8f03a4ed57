package analyzer

import (
	"github.com/rangeql/rangeql/rql"
	"github.com/rangeql/rangeql/rql/ast"
)

// RuleFunc is the function to be applied in a rule. Rules mutate the query
// in place and return it, or a replacement.
type RuleFunc func(*rql.Context, *Analyzer, *ast.Query) (*ast.Query, error)

// Rule to transform queries.
type Rule struct {
	// Name of the rule.
	Name string
	// Apply transforms a query.
	Apply RuleFunc
}

// Batch executes a set of rules in order, once each. Passes are
// independent, a batch never loops to a fixpoint.
type Batch struct {
	Desc  string
	Rules []Rule
}

// Eval applies the batch rules in order.
func (b *Batch) Eval(ctx *rql.Context, a *Analyzer, q *ast.Query) (*ast.Query, error) {
	result := q
	for _, rule := range b.Rules {
		a.Log("applying rule %s", rule.Name)
		var err error
		result, err = rule.Apply(ctx, a, result)
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}
