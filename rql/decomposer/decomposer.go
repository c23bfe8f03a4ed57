// Package decomposer splits an analyzed query into an execution plan.
// Temporary ranges become materialization stages ordered by their
// dependencies, JSON-backed ranges become in-memory combination stages,
// and what remains runs as one relational statement.
package decomposer

import (
	"sort"
	"strings"

	uuid "github.com/satori/go.uuid"
	"github.com/sirupsen/logrus"

	"github.com/rangeql/rangeql/rql"
	"github.com/rangeql/rangeql/rql/ast"
	"github.com/rangeql/rangeql/rql/plan"
)

// Decomposer builds execution plans from analyzed queries. It carries no
// per-query state, one instance serves concurrent compilations.
type Decomposer struct {
	Metadata rql.Metadata
}

type involvementKey struct {
	cond rql.Node
	r    *ast.Range
}

// involvement caches condition-range involvement checks for the duration
// of one top-level decomposition.
type involvement map[involvementKey]bool

func (m involvement) involves(cond rql.Node, r *ast.Range) bool {
	key := involvementKey{cond: cond, r: r}
	if v, ok := m[key]; ok {
		return v
	}
	v := ast.References(cond, r)
	m[key] = v
	return v
}

// New returns a decomposer over the given metadata.
func New(md rql.Metadata) *Decomposer {
	return &Decomposer{Metadata: md}
}

// Decompose turns the query into an execution plan. The query is consumed,
// its WHERE conjuncts and range set are redistributed across the stages.
func (d *Decomposer) Decompose(ctx *rql.Context, q *ast.Query) (*plan.ExecutionPlan, error) {
	span, ctx := ctx.Span("decomposer.Decompose")
	defer span.Finish()

	return d.decompose(ctx, q, "main", involvement{})
}

func (d *Decomposer) decompose(ctx *rql.Context, q *ast.Query, name string, memo involvement) (*plan.ExecutionPlan, error) {
	p := &plan.ExecutionPlan{}

	temps, err := topoSortTemps(q)
	if err != nil {
		return nil, err
	}
	for _, r := range temps {
		stage, err := d.tempStage(ctx, r, memo)
		if err != nil {
			return nil, err
		}
		p.Stages = append(p.Stages, stage)
	}

	output, trimmable := outputAliases(q)

	var jsonStages []*plan.Stage
	if jsonRanges := splitJSONRanges(q); len(jsonRanges) > 0 {
		jsonStages, err = d.jsonStages(q, jsonRanges, memo)
		if err != nil {
			return nil, err
		}
	}
	// A query whose every range was served by another stage kind has no
	// relational statement to run.
	if hasJoinedRanges(q) || len(jsonStages) == 0 {
		p.Stages = append(p.Stages, &plan.Stage{
			StageName: name,
			Kind:      plan.StageSQL,
			Query:     q,
		})
	}
	p.Stages = append(p.Stages, jsonStages...)

	if trimmable {
		p.Output = output
	}

	logrus.WithFields(logrus.Fields{
		"plan":   name,
		"stages": len(p.Stages),
	}).Debug("query decomposed")
	return p, nil
}

// tempStage builds the materialization stage of one temporary range. The
// sub-query is decomposed recursively, its output is loaded into a
// uniquely named table the outer statement then reads.
func (d *Decomposer) tempStage(ctx *rql.Context, r *ast.Range, memo involvement) (*plan.Stage, error) {
	shape, columns, err := d.inferShape(r.Query)
	if err != nil {
		return nil, err
	}
	r.TempTable = tempTableName(r.RangeName)
	r.Shape = shape

	inner, err := d.decompose(ctx, r.Query, "temp:"+r.RangeName, memo)
	if err != nil {
		return nil, err
	}
	// The materializer needs every sub-plan column, renaming happens on
	// insert instead.
	inner.Output = nil

	stage := &plan.Stage{
		StageName: "temp:" + r.RangeName,
		Kind:      plan.StageTemp,
		Range:     r,
		Inner:     inner,
		Columns:   columns,
	}
	if len(columns) > 0 {
		stage.Post = plan.RenameColumns(columns)
	}
	return stage, nil
}

// hasJoinedRanges reports whether any range still renders into the
// relational FROM clause.
func hasJoinedRanges(q *ast.Query) bool {
	for _, r := range q.Ranges {
		if r.IncludeAsJoin {
			return true
		}
	}
	return false
}

// splitJSONRanges removes JSON ranges from the query's join set and
// returns them in declaration order.
func splitJSONRanges(q *ast.Query) []*ast.Range {
	var out []*ast.Range
	for _, r := range q.Ranges {
		if r.Source == ast.SourceJSON && r.IncludeAsJoin {
			out = append(out, r)
		}
	}
	for _, r := range out {
		q.RemoveRange(r)
	}
	return out
}

// jsonStages builds one combination stage per JSON range and rebalances
// the query around them: WHERE conjuncts touching a JSON range move to
// that range's stage, projections over JSON ranges leave the relational
// statement, and relational columns the moved predicates need are added
// as hidden projections so the in-memory join can see them.
func (d *Decomposer) jsonStages(q *ast.Query, jsonRanges []*ast.Range, memo involvement) ([]*plan.Stage, error) {
	stages := make([]*plan.Stage, 0, len(jsonRanges))
	byRange := map[*ast.Range]*plan.Stage{}
	for _, r := range jsonRanges {
		s := &plan.Stage{
			StageName: "json:" + r.RangeName,
			Kind:      plan.StageJSON,
			Range:     r,
			Join:      r.Join,
		}
		r.Join = nil
		stages = append(stages, s)
		byRange[r] = s
	}

	var mainConds []rql.Node
	for _, cond := range ast.SplitConjunction(q.Where) {
		touched := ast.RangesOf(cond, true)
		var jsonTouched []*ast.Range
		for _, r := range jsonRanges {
			if memo.involves(cond, r) {
				jsonTouched = append(jsonTouched, r)
			}
		}
		switch {
		case len(jsonTouched) == 0:
			mainConds = append(mainConds, cond)
		case len(touched) == len(jsonTouched) && len(jsonTouched) == 1:
			// The predicate sees one JSON range and nothing else, it
			// filters that range's rows before combining.
			s := byRange[jsonTouched[0]]
			s.Filter = ast.JoinAnd(s.Filter, cond)
		default:
			// The predicate spans the JSON range and other stages, it
			// joins the last involved stage with everything before it.
			s := byRange[jsonTouched[len(jsonTouched)-1]]
			s.Join = ast.JoinAnd(s.Join, cond)
		}
	}
	q.SetWhere(ast.JoinAnd(mainConds...))

	// Projections over JSON ranges are served by the JSON rows directly.
	keepProjections(q, jsonRanges)

	// The moved predicates still reference relational columns, fetch them.
	if err := d.completeHidden(q, stages); err != nil {
		return nil, err
	}
	return stages, nil
}

func keepProjections(q *ast.Query, jsonRanges []*ast.Range) {
	touchesJSON := func(n rql.Node) bool {
		for _, r := range jsonRanges {
			if ast.References(n, r) {
				return true
			}
		}
		return false
	}

	var kept []rql.Node
	for _, p := range q.Projections {
		if !touchesJSON(p) {
			kept = append(kept, p)
		}
	}
	q.Projections = kept

	var keptHidden []rql.Node
	for _, p := range q.Hidden {
		if !touchesJSON(p) {
			keptHidden = append(keptHidden, p)
		}
	}
	q.Hidden = keptHidden

	var keptSort []ast.SortField
	for _, s := range q.Sort {
		if !touchesJSON(s.Expr) {
			keptSort = append(keptSort, s)
		}
	}
	q.Sort = keptSort
}

// completeHidden adds the relational identifiers the JSON stages' join
// predicates reference as hidden projections of the relational statement.
func (d *Decomposer) completeHidden(q *ast.Query, stages []*plan.Stage) error {
	selected := map[string]bool{}
	for i, p := range q.Projections {
		selected[ast.AliasOf(p, i)] = true
	}
	for i, p := range q.Hidden {
		selected[ast.AliasOf(p, i)] = true
	}

	inJoinSet := map[*ast.Range]bool{}
	for _, r := range q.Ranges {
		if r.IncludeAsJoin {
			inJoinSet[r] = true
		}
	}

	for _, s := range stages {
		if s.Join == nil {
			continue
		}
		for _, id := range ast.BaseIdentifiers(s.Join) {
			if !inJoinSet[id.Range] {
				continue
			}
			alias := ast.AliasOf(id, 0)
			if selected[alias] {
				continue
			}
			selected[alias] = true
			q.AddHidden(ast.CloneExpr(id))
		}
	}
	return nil
}

// outputAliases lists the aliases of the query's visible projections.
// Whole-range leaves over JSON sources have no enumerable shape, those
// plans return their rows untrimmed.
func outputAliases(q *ast.Query) ([]string, bool) {
	var out []string
	for i, p := range q.Projections {
		if id, ok := p.(*ast.Identifier); ok && id.IsLeaf() {
			if id.Range.Source == ast.SourceJSON {
				return nil, false
			}
			if id.Range.Source == ast.SourceQuery {
				for _, col := range id.Range.Shape {
					out = append(out, id.Range.RangeName+"_"+col.Name)
				}
				continue
			}
			// Entity leaves expand at generation time, trimming them here
			// would need the same expansion. Return the rows whole.
			return nil, false
		}
		out = append(out, ast.AliasOf(p, i))
	}
	return out, true
}

func tempTableName(rangeName string) string {
	id := strings.ReplaceAll(uuid.NewV4().String(), "-", "")
	return "rql_tmp_" + rangeName + "_" + id[:12]
}

func sortStrings(s []string) { sort.Strings(s) }
