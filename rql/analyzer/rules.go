package analyzer

// ResolutionRules run before any optimization: they give every identifier
// a binding and reject queries that reference unknown entities or
// properties.
var ResolutionRules = []Rule{
	{"resolve_namespace", resolveNamespace},
	{"bind_identifiers", bindIdentifiers},
	{"validate_references", validateReferences},
}

// OptimizeRules are the ordered, independent, semantics-preserving rewrite
// passes. The order is load-bearing: each pass assumes the ones before it
// have run. Passes never descend into subqueries owned by ranges unless
// they recurse explicitly.
var OptimizeRules = []Rule{
	{"require_single_range", requireSingleRange},
	{"require_annotated_relationships", requireAnnotatedRelationships},
	{"strengthen_where_joins", strengthenWhereJoins},
	{"lift_exists", liftExists},
	{"exclude_aggregate_ranges", excludeAggregateRanges},
	{"rewrite_filter_joins", rewriteFilterJoins},
	{"simplify_self_exists", simplifySelfExists},
	{"rewrite_aggregates", rewriteAggregates},
	{"complete_join_columns", completeJoinColumns},
}

// ValidationRules run last and enforce structural invariants the
// optimizer must have preserved.
var ValidationRules = []Rule{
	{"validate_aggregate_scope", validateAggregateScope},
}
