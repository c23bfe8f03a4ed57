// Package rangeql is a query engine for an object query language over
// mapped entities, JSON document sources and derived temporary ranges.
// Queries compile to parameterized SQL executed on a pluggable backend,
// with JSON-backed parts combined in memory.
package rangeql

import (
	opentracing "github.com/opentracing/opentracing-go"

	"github.com/rangeql/rangeql/rql"
	"github.com/rangeql/rangeql/rql/analyzer"
	"github.com/rangeql/rangeql/rql/ast"
	"github.com/rangeql/rangeql/rql/decomposer"
	"github.com/rangeql/rangeql/rql/parse"
	"github.com/rangeql/rangeql/rql/plan"
	"github.com/rangeql/rangeql/rql/sqlgen"
)

// Config holds the tunable behavior of an engine.
type Config struct {
	// Namespace is prefixed onto bare entity names that do not resolve on
	// their own.
	Namespace string
	// NullInclusive switches self-join simplification to constant-true
	// predicates, keeping rows whose join columns are NULL.
	NullInclusive bool
	// WindowFunctions tells the generator the backend can render
	// aggregates as window functions. Disable it for backends where the
	// capability probe fails.
	WindowFunctions bool
}

// Engine ties the pipeline together: parse, analyze, decompose, execute.
type Engine struct {
	Metadata   rql.Metadata
	Analyzer   *analyzer.Analyzer
	Decomposer *decomposer.Decomposer
	Executor   *plan.Executor
}

// New creates an engine from a metadata store, a SQL backend, an optional
// JSON source and a config.
func New(md rql.Metadata, backend rql.Backend, source rql.JSONSource, cfg *Config) *Engine {
	if cfg == nil {
		cfg = &Config{WindowFunctions: true}
	}

	b := analyzer.NewBuilder(md).WithNamespace(cfg.Namespace)
	if cfg.NullInclusive {
		b = b.WithNullInclusive()
	}

	gen := sqlgen.NewGenerator(md)
	gen.WindowFunctions = cfg.WindowFunctions

	return &Engine{
		Metadata:   md,
		Analyzer:   b.Build(),
		Decomposer: decomposer.New(md),
		Executor:   plan.NewExecutor(backend, source, gen),
	}
}

// NewDefault creates an engine with the default configuration.
func NewDefault(md rql.Metadata, backend rql.Backend, source rql.JSONSource) *Engine {
	return New(md, backend, source, nil)
}

// Query compiles and runs a query, returning rows keyed by the
// underscore-joined projection paths.
func (e *Engine) Query(ctx *rql.Context, query string, params map[string]interface{}) ([]rql.Row, error) {
	span, ctx := ctx.Span("query", opentracing.Tag{Key: "query", Value: query})
	defer span.Finish()

	p, err := e.Plan(ctx, query)
	if err != nil {
		return nil, err
	}
	return e.Executor.Execute(ctx, p, params)
}

// Plan compiles a query into its execution plan without running it.
func (e *Engine) Plan(ctx *rql.Context, query string) (*plan.ExecutionPlan, error) {
	parsed, err := parse.Parse(ctx, query)
	if err != nil {
		return nil, err
	}
	analyzed, err := e.Analyzer.Analyze(ctx, parsed)
	if err != nil {
		return nil, err
	}
	return e.Decomposer.Decompose(ctx, analyzed)
}

// Analyze parses and analyzes a query, returning the rewritten tree. It
// is mainly useful for inspecting what the optimizer did.
func (e *Engine) Analyze(ctx *rql.Context, query string) (*ast.Query, error) {
	parsed, err := parse.Parse(ctx, query)
	if err != nil {
		return nil, err
	}
	return e.Analyzer.Analyze(ctx, parsed)
}
