package datastore

// SyncExpression is an opaque per-model filter predicate constraining which
// records participate in synchronization. Implementations are supplied by the
// caller (see the syncexpr package for an expression-language-backed one) and
// must be safe for concurrent evaluation.
type SyncExpression interface {
	// ModelName returns the model the expression applies to.
	ModelName() string

	// Evaluate reports whether the record should participate in sync.
	Evaluate(r Record) (bool, error)
}
