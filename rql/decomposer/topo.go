package decomposer

import (
	"github.com/rangeql/rangeql/rql"
	"github.com/rangeql/rangeql/rql/ast"
)

// topoSortTemps orders the query's temporary ranges so every range is
// materialized before the ranges whose sub-queries reference it. Kahn's
// algorithm, a remainder after the queue drains means a reference cycle.
func topoSortTemps(q *ast.Query) ([]*ast.Range, error) {
	var temps []*ast.Range
	for _, r := range q.Ranges {
		if r.Source == ast.SourceQuery {
			temps = append(temps, r)
		}
	}
	if len(temps) == 0 {
		return nil, nil
	}

	// dependents[a] lists the temps whose sub-query references a.
	dependents := map[*ast.Range][]*ast.Range{}
	indegree := map[*ast.Range]int{}
	for _, r := range temps {
		indegree[r] = 0
	}
	for _, r := range temps {
		for _, dep := range temps {
			if dep == r {
				continue
			}
			if ast.References(r.Query, dep) {
				dependents[dep] = append(dependents[dep], r)
				indegree[r]++
			}
		}
	}

	var queue []*ast.Range
	for _, r := range temps {
		if indegree[r] == 0 {
			queue = append(queue, r)
		}
	}

	var sorted []*ast.Range
	for len(queue) > 0 {
		r := queue[0]
		queue = queue[1:]
		sorted = append(sorted, r)
		for _, next := range dependents[r] {
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if len(sorted) < len(temps) {
		var stuck []string
		for _, r := range temps {
			if indegree[r] > 0 {
				stuck = append(stuck, r.RangeName)
			}
		}
		return nil, rql.ErrCircularDependency.New(stuck)
	}
	return sorted, nil
}
