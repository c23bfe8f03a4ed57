package rql

import "gopkg.in/src-d/go-errors.v1"

var (
	// ErrUnexpectedToken is a lexical error produced when the lexer cannot
	// classify the character under the cursor.
	ErrUnexpectedToken = errors.NewKind("unexpected token %q at line %d")

	// ErrMalformedNumber is a lexical error produced by a numeric literal
	// with more than one decimal point.
	ErrMalformedNumber = errors.NewKind("malformed number %q at line %d")

	// ErrUnterminatedString is a lexical error produced when EOF or a line
	// break is found before the closing quote of a string literal.
	ErrUnterminatedString = errors.NewKind("unterminated string at line %d")

	// ErrInvalidEscape is a lexical error produced by an escape sequence
	// the active quote style does not support.
	ErrInvalidEscape = errors.NewKind("invalid escape sequence %q at line %d")

	// ErrEntityNotFound is returned when a query names an entity the
	// metadata store does not know about.
	ErrEntityNotFound = errors.NewKind("entity not found: %s")

	// ErrPropertyNotFound is returned when an identifier names a property
	// that does not exist on its entity.
	ErrPropertyNotFound = errors.NewKind("entity %q does not have property %q")

	// ErrUnresolvedIdentifier is returned when no declared range matches an
	// identifier's head segment.
	ErrUnresolvedIdentifier = errors.NewKind("identifier %q could not be bound to any range in scope")

	// ErrInvalidRelationshipPath is returned when a relationship path names
	// a relation whose declared target entity does not match the entity the
	// query expects.
	ErrInvalidRelationshipPath = errors.NewKind("relationship %q of entity %q targets %q, not %q")

	// ErrDuplicateRange is returned when two ranges are declared with the
	// same name in one query scope.
	ErrDuplicateRange = errors.NewKind("range %q is already declared in this scope")

	// ErrCircularDependency is returned when temporary ranges reference
	// each other in a cycle.
	ErrCircularDependency = errors.NewKind("circular dependency detected between ranges: %v")

	// ErrEmptyPlan is returned when an execution plan with no stages is
	// executed. This is a programming error, plans are never built empty.
	ErrEmptyPlan = errors.NewKind("cannot execute an empty plan")

	// ErrChildNotFound is returned by ReplaceChild when old is not a child
	// of the receiver.
	ErrChildNotFound = errors.NewKind("%T: node %s is not a child, cannot replace it")

	// ErrUnsupportedJoinType is returned when a stage derives a join type
	// the executor has no strategy for.
	ErrUnsupportedJoinType = errors.NewKind("unsupported join type: %s")

	// ErrStageFailed wraps any backend failure with the name of the owning
	// stage. Plan execution is atomic, the first failing stage aborts it.
	ErrStageFailed = errors.NewKind("stage %q failed: %s")

	// ErrRangeOutsideAggregate is returned when a range meant only to feed
	// an aggregate is referenced outside of any aggregate or EXISTS.
	ErrRangeOutsideAggregate = errors.NewKind("range %q may only be used inside an aggregate")
)
