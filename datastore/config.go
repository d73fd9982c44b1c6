package datastore

import "time"

// Documented defaults for the numeric scheduling parameters.
const (
	// DefaultSyncInterval is the longest the engine may rely on delta sync
	// before falling back to a base (full) sync.
	DefaultSyncInterval = 24 * time.Hour

	// DefaultSyncMaxRecords caps the records processed per sync run.
	DefaultSyncMaxRecords = 10_000

	// DefaultSyncPageSize is the page size for remote queries.
	DefaultSyncPageSize = 1_000
)

// Configuration is the immutable aggregate of sync behavior parameters. Once
// constructed it is never mutated; reconfiguration means constructing a new
// instance. It is safe for unsynchronized concurrent reads, and it performs
// no I/O of its own.
type Configuration struct {
	errorHandler    ErrorHandler
	conflictHandler ConflictHandler
	syncInterval    time.Duration
	syncMaxRecords  int
	syncPageSize    int
	syncExpressions []SyncExpression
}

// Option configures a Configuration during construction.
type Option interface {
	apply(*Configuration)
}

type optionFn func(*Configuration)

func (f optionFn) apply(c *Configuration) { f(c) }

// WithErrorHandler sets the sink for unhandled engine errors.
func WithErrorHandler(h ErrorHandler) Option {
	return optionFn(func(c *Configuration) {
		if h != nil {
			c.errorHandler = h
		}
	})
}

// WithErrorHandlerFunc is shorthand for WithErrorHandler(ErrorHandlerFunc(fn)).
func WithErrorHandlerFunc(fn func(error)) Option {
	return WithErrorHandler(ErrorHandlerFunc(fn))
}

// WithConflictHandler sets the conflict decision strategy.
func WithConflictHandler(h ConflictHandler) Option {
	return optionFn(func(c *Configuration) {
		if h != nil {
			c.conflictHandler = h
		}
	})
}

// WithConflictHandlerFunc is shorthand for WithConflictHandler(ConflictHandlerFunc(fn)).
func WithConflictHandlerFunc(fn func(ConflictSnapshot, ResolutionReceiver)) Option {
	return WithConflictHandler(ConflictHandlerFunc(fn))
}

// WithSyncInterval sets the maximum duration the engine may rely on delta
// sync before it must fall back to a base sync.
func WithSyncInterval(d time.Duration) Option {
	return optionFn(func(c *Configuration) { c.syncInterval = d })
}

// WithSyncMaxRecords sets the upper bound on records processed per sync run.
func WithSyncMaxRecords(n int) Option {
	return optionFn(func(c *Configuration) { c.syncMaxRecords = n })
}

// WithSyncPageSize sets the page size for remote queries. Callers are
// responsible for keeping it at or below the max records bound; construction
// does not enforce the relationship.
func WithSyncPageSize(n int) Option {
	return optionFn(func(c *Configuration) { c.syncPageSize = n })
}

// WithSyncExpressions sets the per-model filter predicates. The slice is
// copied; order is preserved.
func WithSyncExpressions(exprs ...SyncExpression) Option {
	return optionFn(func(c *Configuration) {
		c.syncExpressions = append([]SyncExpression(nil), exprs...)
	})
}

// New constructs a Configuration. Every option is independently optional and
// falls back to a documented default when omitted, so construction cannot
// fail.
func New(opts ...Option) *Configuration {
	c := &Configuration{
		errorHandler:    DefaultErrorHandler(),
		conflictHandler: DefaultConflictHandler(),
		syncInterval:    DefaultSyncInterval,
		syncMaxRecords:  DefaultSyncMaxRecords,
		syncPageSize:    DefaultSyncPageSize,
	}
	for _, opt := range opts {
		opt.apply(c)
	}
	return c
}

// Default returns a Configuration with every parameter at its default.
// Equivalent to New() with no options.
func Default() *Configuration {
	return New()
}

// ErrorHandler returns the configured error sink.
func (c *Configuration) ErrorHandler() ErrorHandler {
	return c.errorHandler
}

// ConflictHandler returns the configured conflict decision strategy.
func (c *Configuration) ConflictHandler() ConflictHandler {
	return c.conflictHandler
}

// SyncInterval returns how long delta sync stays trustworthy before a base
// sync is required.
func (c *Configuration) SyncInterval() time.Duration {
	return c.syncInterval
}

// SyncMaxRecords returns the per-run record processing bound.
func (c *Configuration) SyncMaxRecords() int {
	return c.syncMaxRecords
}

// SyncPageSize returns the remote query page size.
func (c *Configuration) SyncPageSize() int {
	return c.syncPageSize
}

// SyncExpressions returns a copy of the configured filter predicates in
// their configured order.
func (c *Configuration) SyncExpressions() []SyncExpression {
	return append([]SyncExpression(nil), c.syncExpressions...)
}
