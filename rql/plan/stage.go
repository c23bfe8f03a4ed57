package plan

import (
	"fmt"

	"github.com/rangeql/rangeql/rql"
	"github.com/rangeql/rangeql/rql/ast"
)

// StageKind tells the executor how to realize a stage.
type StageKind byte

const (
	// StageSQL runs a generated statement on the relational backend.
	StageSQL StageKind = iota
	// StageTemp executes an inner plan and materializes its rows into a
	// temporary table before any StageSQL stage that reads it.
	StageTemp
	// StageJSON fetches rows from a registered JSON source and combines
	// them with the relational result in memory.
	StageJSON
)

func (k StageKind) String() string {
	switch k {
	case StageTemp:
		return "temp"
	case StageJSON:
		return "json"
	default:
		return "sql"
	}
}

// JoinType is the strategy used to combine a stage's rows with the rows
// accumulated so far.
type JoinType byte

const (
	// JoinCross pairs every accumulated row with every stage row.
	JoinCross JoinType = iota
	// JoinLeft keeps accumulated rows that match no stage row.
	JoinLeft
	// JoinInner is reserved. No decomposition produces it today and the
	// executor rejects it.
	JoinInner
)

func (t JoinType) String() string {
	switch t {
	case JoinLeft:
		return "left"
	case JoinInner:
		return "inner"
	default:
		return "cross"
	}
}

// Stage is one unit of plan execution.
type Stage struct {
	// StageName identifies the stage in errors and logs.
	StageName string
	// Kind selects the execution strategy.
	Kind StageKind
	// Query is the statement source for StageSQL stages.
	Query *ast.Query
	// Range is the range a StageTemp or StageJSON stage realizes.
	Range *ast.Range
	// Filter is a predicate over the stage's own rows only, applied before
	// combining. Only StageJSON stages carry one.
	Filter rql.Node
	// Join is the predicate combining the stage's rows with the rows of
	// the stages before it, nil for a cross combination.
	Join rql.Node
	// Inner is the sub-plan a StageTemp stage materializes.
	Inner *ExecutionPlan
	// Columns maps the inner plan's output aliases to the materialized
	// table's column names.
	Columns map[string]string
	// Post optionally reshapes the stage's rows right after they are
	// produced, before any combination or materialization.
	Post PostProcessor
}

// PostProcessor reshapes a stage's rows before they feed the rest of the
// plan.
type PostProcessor func(*rql.Context, []rql.Row) ([]rql.Row, error)

// postProcess applies the stage's post-processor. A nil processor passes
// the rows through.
func (s *Stage) postProcess(ctx *rql.Context, rows []rql.Row) ([]rql.Row, error) {
	if s.Post == nil {
		return rows, nil
	}
	return s.Post(ctx, rows)
}

// RenameColumns returns a post-processor mapping every row key through an
// alias-to-column table. Keys absent from the table are dropped.
func RenameColumns(columns map[string]string) PostProcessor {
	return func(_ *rql.Context, rows []rql.Row) ([]rql.Row, error) {
		out := make([]rql.Row, len(rows))
		for i, row := range rows {
			renamed := make(rql.Row, len(columns))
			for alias, col := range columns {
				renamed[col] = row[alias]
			}
			out[i] = renamed
		}
		return out, nil
	}
}

// Name implements rql.Nameable.
func (s *Stage) Name() string { return s.StageName }

// JoinStrategy derives the combination strategy from the stage's join
// predicate.
func (s *Stage) JoinStrategy() JoinType {
	if s.Join == nil {
		return JoinCross
	}
	return JoinLeft
}

func (s *Stage) String() string {
	return fmt.Sprintf("%s(%s)", s.Kind, s.StageName)
}
