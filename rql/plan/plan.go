// Package plan holds the executable form a decomposed query compiles to
// and the executor that runs it. A plan is an ordered list of stages:
// temporary-range materializations first, then exactly one relational
// stage, then the JSON stages combined in memory.
package plan

import (
	"github.com/rangeql/rangeql/rql"
)

// ExecutionPlan is an ordered list of stages plus the aliases the caller
// asked for. Stage order is significant, temporary stages come before the
// relational stage that reads their tables.
type ExecutionPlan struct {
	Stages []*Stage
	// Output restricts the final rows to these column aliases. Empty means
	// every column the stages produced.
	Output []string
}

// Main returns the relational stage of the plan or, when every range was
// served by another stage kind, the first stage overall.
func (p *ExecutionPlan) Main() (*Stage, error) {
	for _, s := range p.Stages {
		if s.Kind == StageSQL {
			return s, nil
		}
	}
	if len(p.Stages) > 0 {
		return p.Stages[0], nil
	}
	return nil, rql.ErrEmptyPlan.New()
}

// Temps returns the temporary materialization stages in execution order.
func (p *ExecutionPlan) Temps() []*Stage {
	var out []*Stage
	for _, s := range p.Stages {
		if s.Kind == StageTemp {
			out = append(out, s)
		}
	}
	return out
}

// JSONStages returns the JSON stages in combination order.
func (p *ExecutionPlan) JSONStages() []*Stage {
	var out []*Stage
	for _, s := range p.Stages {
		if s.Kind == StageJSON {
			out = append(out, s)
		}
	}
	return out
}
