package plan

import (
	opentracing "github.com/opentracing/opentracing-go"
	"github.com/sirupsen/logrus"

	"github.com/rangeql/rangeql/rql"
	"github.com/rangeql/rangeql/rql/eval"
	"github.com/rangeql/rangeql/rql/sqlgen"
)

// Executor runs execution plans. Temporary stages are materialized inside
// one transaction scope so the relational stage sees their tables, JSON
// stages are fetched and combined in memory afterwards. A failing stage
// aborts the whole plan and rolls the scope back.
type Executor struct {
	Backend rql.Backend
	Source  rql.JSONSource
	Gen     *sqlgen.Generator
}

// NewExecutor returns an executor over the given backend and JSON source.
func NewExecutor(backend rql.Backend, source rql.JSONSource, gen *sqlgen.Generator) *Executor {
	return &Executor{
		Backend: backend,
		Source:  source,
		Gen:     gen,
	}
}

// Execute runs the plan and returns its rows, keyed by output alias.
func (e *Executor) Execute(ctx *rql.Context, p *ExecutionPlan, params map[string]interface{}) (rows []rql.Row, err error) {
	span, ctx := ctx.Span("plan.Execute", opentracing.Tag{Key: "stages", Value: len(p.Stages)})
	defer span.Finish()

	main, err := p.Main()
	if err != nil {
		return nil, err
	}

	temps := p.Temps()
	if len(temps) > 0 {
		tx := rql.NewTxScope(e.Backend)
		if err := tx.Begin(); err != nil {
			return nil, err
		}
		defer func() {
			if err != nil {
				_ = tx.Rollback()
				return
			}
			err = tx.Commit()
		}()
		for _, s := range temps {
			if err := e.materialize(ctx, s, params); err != nil {
				return nil, rql.ErrStageFailed.New(s.StageName, err)
			}
		}
	}

	if main.Kind == StageSQL {
		rows, err = e.runSQL(ctx, main, params)
		if err == nil {
			rows, err = main.postProcess(ctx, rows)
		}
		if err != nil {
			return nil, rql.ErrStageFailed.New(main.StageName, err)
		}
	} else {
		// No relational stage. Combination starts from a single empty row
		// so the first cross combine yields the stage's own rows.
		rows = []rql.Row{{}}
	}

	for _, s := range p.JSONStages() {
		rows, err = e.combine(ctx, rows, s, params)
		if err != nil {
			return nil, rql.ErrStageFailed.New(s.StageName, err)
		}
	}

	if len(p.Output) > 0 {
		rows = project(rows, p.Output)
	}
	return rows, nil
}

// materialize runs a temp stage's inner plan and loads the result into
// the stage's temporary table.
func (e *Executor) materialize(ctx *rql.Context, s *Stage, params map[string]interface{}) error {
	span, ctx := ctx.Span("plan.materialize", opentracing.Tag{Key: "table", Value: s.Range.TempTable})
	defer span.Finish()

	rows, err := e.Execute(ctx, s.Inner, params)
	if err != nil {
		return err
	}
	rows, err = s.postProcess(ctx, rows)
	if err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"stage": s.StageName,
		"table": s.Range.TempTable,
		"rows":  len(rows),
	}).Debug("materializing temporary range")

	if err := e.Backend.CreateTemporaryTable(ctx, s.Range.TempTable, s.Range.Shape); err != nil {
		return err
	}
	return e.Backend.InsertRows(ctx, s.Range.TempTable, rows)
}

func (e *Executor) runSQL(ctx *rql.Context, s *Stage, params map[string]interface{}) ([]rql.Row, error) {
	span, ctx := ctx.Span("plan.sql", opentracing.Tag{Key: "stage", Value: s.StageName})
	defer span.Finish()

	if s.Query.Paged() {
		// A fresh paginator per run keeps the key-list memo from outliving
		// this execution and serving stale pages.
		pager := sqlgen.NewPaginator(e.Backend, e.Gen)
		if err := pager.Paginate(ctx, s.Query, params); err != nil {
			return nil, err
		}
	}

	query, args, err := e.Gen.Generate(s.Query, params)
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"stage": s.StageName,
		"sql":   query,
	}).Debug("executing relational stage")
	return e.Backend.Execute(ctx, query, args)
}

// combine fetches a JSON stage's rows and joins them into the result.
func (e *Executor) combine(ctx *rql.Context, left []rql.Row, s *Stage, params map[string]interface{}) ([]rql.Row, error) {
	span, ctx := ctx.Span("plan.combine", opentracing.Tag{Key: "stage", Value: s.StageName})
	defer span.Finish()

	right, err := e.jsonRows(ctx, s, params)
	if err != nil {
		return nil, err
	}
	right, err = s.postProcess(ctx, right)
	if err != nil {
		return nil, err
	}

	strategy := s.JoinStrategy()
	logrus.WithFields(logrus.Fields{
		"stage":    s.StageName,
		"strategy": strategy.String(),
		"rows":     len(right),
	}).Debug("combining stage results")

	switch strategy {
	case JoinCross:
		return crossJoin(left, right), nil
	case JoinLeft:
		return leftJoin(left, right, s.Join, params)
	default:
		return nil, rql.ErrUnsupportedJoinType.New(strategy)
	}
}

// jsonRows fetches the stage's documents, keys every field by the range
// alias convention and applies the stage-local filter.
func (e *Executor) jsonRows(ctx *rql.Context, s *Stage, params map[string]interface{}) ([]rql.Row, error) {
	docs, err := e.Source.JSONRows(ctx, s.Range.JSONName)
	if err != nil {
		return nil, err
	}

	rows := make([]rql.Row, 0, len(docs))
	for _, doc := range docs {
		row := make(rql.Row, len(doc))
		for k, v := range doc {
			row[s.Range.RangeName+"_"+k] = v
		}
		rows = append(rows, row)
	}

	if s.Filter == nil {
		return rows, nil
	}
	prog, err := eval.Compile(s.Filter, params)
	if err != nil {
		return nil, err
	}
	filtered := rows[:0]
	for _, row := range rows {
		ok, err := prog.Bool(row)
		if err != nil {
			return nil, err
		}
		if ok {
			filtered = append(filtered, row)
		}
	}
	return filtered, nil
}

func project(rows []rql.Row, cols []string) []rql.Row {
	out := make([]rql.Row, len(rows))
	for i, row := range rows {
		trimmed := make(rql.Row, len(cols))
		for _, c := range cols {
			if v, ok := row[c]; ok {
				trimmed[c] = v
			}
		}
		out[i] = trimmed
	}
	return out
}
