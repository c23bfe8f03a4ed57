package plan

import (
	"github.com/rangeql/rangeql/rql"
	"github.com/rangeql/rangeql/rql/eval"
)

// crossJoin pairs every left row with every right row. An empty side
// yields an empty result.
func crossJoin(left, right []rql.Row) []rql.Row {
	out := make([]rql.Row, 0, len(left)*len(right))
	for _, l := range left {
		for _, r := range right {
			out = append(out, merge(l, r))
		}
	}
	return out
}

// leftJoin pairs rows matching the predicate and keeps unmatched left
// rows as-is, so their right-side columns read as absent. The predicate
// is compiled once per stage combination.
func leftJoin(left, right []rql.Row, cond rql.Node, params map[string]interface{}) ([]rql.Row, error) {
	prog, err := eval.Compile(cond, params)
	if err != nil {
		return nil, err
	}
	var out []rql.Row
	for _, l := range left {
		matched := false
		for _, r := range right {
			m := merge(l, r)
			ok, err := prog.Bool(m)
			if err != nil {
				return nil, err
			}
			if ok {
				out = append(out, m)
				matched = true
			}
		}
		if !matched {
			out = append(out, l.Copy())
		}
	}
	return out, nil
}

func merge(l, r rql.Row) rql.Row {
	m := make(rql.Row, len(l)+len(r))
	for k, v := range l {
		m[k] = v
	}
	for k, v := range r {
		m[k] = v
	}
	return m
}
