// Package analyzer binds, validates and optimizes query trees. The
// optimizer is a fixed, ordered sequence of semantics-preserving rewrite
// passes, each implemented as a Rule and grouped into Batches.
package analyzer

import (
	"os"
	"strings"

	opentracing "github.com/opentracing/opentracing-go"
	"github.com/sirupsen/logrus"

	"github.com/rangeql/rangeql/rql"
	"github.com/rangeql/rangeql/rql/ast"
)

const debugAnalyzerKey = "DEBUG_ANALYZER"

// Analyzer applies rules and validations to query trees. Trees are
// mutated in place, so one tree must never be analyzed from two
// goroutines.
type Analyzer struct {
	// Debug enables rule-by-rule logging.
	Debug    bool
	debugCtx []string
	// Batches of rules to apply, in order.
	Batches []*Batch
	// Metadata is the entity metadata store rules consult. Rules only
	// ever read it.
	Metadata rql.Metadata
	// Namespace is prefixed onto bare entity names that do not resolve on
	// their own.
	Namespace string
	// NullInclusive switches the self-join EXISTS simplification to a
	// constant-true predicate instead of NOT NULL checks.
	NullInclusive bool
}

// Builder provides an easy way to generate an Analyzer with custom rules
// and options.
type Builder struct {
	preOptimizeRules  []Rule
	postOptimizeRules []Rule
	metadata          rql.Metadata
	namespace         string
	nullInclusive     bool
	debug             bool
}

// NewBuilder creates a new Builder over a metadata store.
func NewBuilder(md rql.Metadata) *Builder {
	return &Builder{metadata: md}
}

// WithDebug activates debug logging on the Analyzer.
func (b *Builder) WithDebug() *Builder {
	b.debug = true
	return b
}

// WithNamespace sets the namespace injected onto bare entity names.
func (b *Builder) WithNamespace(ns string) *Builder {
	b.namespace = ns
	return b
}

// WithNullInclusive enables null-inclusive self-join simplification.
func (b *Builder) WithNullInclusive() *Builder {
	b.nullInclusive = true
	return b
}

// AddPreOptimizeRule adds a rule to run after resolution but before the
// optimizer passes.
func (b *Builder) AddPreOptimizeRule(name string, fn RuleFunc) *Builder {
	b.preOptimizeRules = append(b.preOptimizeRules, Rule{name, fn})
	return b
}

// AddPostOptimizeRule adds a rule to run after the optimizer passes.
func (b *Builder) AddPostOptimizeRule(name string, fn RuleFunc) *Builder {
	b.postOptimizeRules = append(b.postOptimizeRules, Rule{name, fn})
	return b
}

// Build creates a new Analyzer from the builder.
func (b *Builder) Build() *Analyzer {
	_, debug := os.LookupEnv(debugAnalyzerKey)
	batches := []*Batch{
		{
			Desc:  "resolution",
			Rules: ResolutionRules,
		},
		{
			Desc:  "pre-optimize",
			Rules: b.preOptimizeRules,
		},
		{
			Desc:  "optimize",
			Rules: OptimizeRules,
		},
		{
			Desc:  "post-optimize",
			Rules: b.postOptimizeRules,
		},
		{
			Desc:  "validation",
			Rules: ValidationRules,
		},
	}

	return &Analyzer{
		Debug:         debug || b.debug,
		debugCtx:      make([]string, 0),
		Batches:       batches,
		Metadata:      b.metadata,
		Namespace:     b.namespace,
		NullInclusive: b.nullInclusive,
	}
}

// NewDefault creates an Analyzer with the default rules and configuration.
func NewDefault(md rql.Metadata) *Analyzer {
	return NewBuilder(md).Build()
}

// Log prints an INFO message if the analyzer is in debug mode.
func (a *Analyzer) Log(msg string, args ...interface{}) {
	if a != nil && a.Debug {
		if len(a.debugCtx) > 0 {
			ctx := strings.Join(a.debugCtx, "/")
			logrus.Infof("%s: "+msg, append([]interface{}{ctx}, args...)...)
		} else {
			logrus.Infof(msg, args...)
		}
	}
}

// PushDebugContext pushes a context string onto the debug logging stack.
func (a *Analyzer) PushDebugContext(msg string) {
	if a != nil {
		a.debugCtx = append(a.debugCtx, msg)
	}
}

// PopDebugContext pops a context message off the debug logging stack.
func (a *Analyzer) PopDebugContext() {
	if a != nil && len(a.debugCtx) > 0 {
		a.debugCtx = a.debugCtx[:len(a.debugCtx)-1]
	}
}

// Analyze binds, optimizes and validates the query in place and returns
// it.
func (a *Analyzer) Analyze(ctx *rql.Context, q *ast.Query) (*ast.Query, error) {
	span, ctx := ctx.Span("analyze", opentracing.Tags{
		"query": q.String(),
	})
	defer span.Finish()

	var err error
	for _, batch := range a.Batches {
		a.PushDebugContext(batch.Desc)
		q, err = batch.Eval(ctx, a, q)
		a.PopDebugContext()
		if err != nil {
			return nil, err
		}
	}

	return q, nil
}
