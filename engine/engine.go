// Package engine implements the synchronization engine that reconciles a
// local record store with a remote backend, parameterized by a
// datastore.Configuration. It owns scheduling (delta vs base sync, paging,
// retry) and conflict dispatch; all policy decisions live in the configured
// handlers.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alvintu/swift-ui-aws-amplify/cursor"
	"github.com/alvintu/swift-ui-aws-amplify/datastore"
	syncErrors "github.com/alvintu/swift-ui-aws-amplify/errors"
	"github.com/alvintu/swift-ui-aws-amplify/logging"
)

// ChangeOp is the kind of local mutation queued for upload.
type ChangeOp string

const (
	ChangeCreate ChangeOp = "create"
	ChangeUpdate ChangeOp = "update"
	ChangeDelete ChangeOp = "delete"
)

// Change is a locally queued mutation awaiting upload.
type Change struct {
	Record datastore.Record
	Op     ChangeOp

	// Seq identifies this change in the local outbox. The store assigns it
	// on Enqueue; it is local bookkeeping and never reaches the remote. A
	// record can have several queued changes, each with its own Seq, so
	// acking is keyed by Seq rather than record ID.
	Seq int64
}

// RemoteConflict is a per-record push rejection: the remote holds a version
// that diverged from the local change.
type RemoteConflict struct {
	Local  Change
	Remote datastore.Record
}

// PushResult reports the outcome of one push batch.
type PushResult struct {
	// Accepted holds the record IDs the remote accepted.
	Accepted []string

	// Conflicts holds the per-record rejections requiring resolution.
	Conflicts []RemoteConflict
}

// Page is one page of remote records.
type Page struct {
	Records []datastore.Record
	Next    cursor.Cursor
	HasMore bool
}

// LocalStore provides persistence for records, the outbox of pending local
// changes, and sync progress state.
type LocalStore interface {
	// ApplyRemote writes remote record versions into the local store.
	ApplyRemote(ctx context.Context, records []datastore.Record) error

	// Pending returns up to limit queued local changes in enqueue order.
	Pending(ctx context.Context, limit int) ([]Change, error)

	// Ack removes the changes with the given outbox sequence numbers.
	Ack(ctx context.Context, seqs []int64) error

	// Enqueue appends a change to the outbox, assigning it a fresh Seq.
	Enqueue(ctx context.Context, change Change) error

	// Checkpoint returns the saved delta cursor, or nil if none is saved.
	Checkpoint(ctx context.Context) (cursor.Cursor, error)

	// SaveCheckpoint persists the delta cursor.
	SaveCheckpoint(ctx context.Context, c cursor.Cursor) error

	// LastBaseSync returns when the last base (full) sync completed, or the
	// zero time if none has.
	LastBaseSync(ctx context.Context) (time.Time, error)

	// MarkBaseSync records the completion time of a base sync.
	MarkBaseSync(ctx context.Context, at time.Time) error

	// Close releases store resources.
	Close() error
}

// RemoteClient handles communication with the remote backend.
type RemoteClient interface {
	// Push uploads local changes. Per-record conflicts come back in the
	// result rather than as an error.
	Push(ctx context.Context, changes []Change) (*PushResult, error)

	// Pull fetches up to limit records after the given cursor. A nil cursor
	// requests a base (full) query from the beginning.
	Pull(ctx context.Context, since cursor.Cursor, limit int) (*Page, error)

	// Close releases client resources.
	Close() error
}

// Mode distinguishes incremental from full synchronization runs.
type Mode string

const (
	ModeDelta Mode = "delta"
	ModeBase  Mode = "base"
)

// Result reports a completed sync run.
type Result struct {
	Mode          Mode
	ChangesPushed int

	// RecordsPulled counts records fetched from the remote, before sync
	// expressions are applied; it is what the per-run record bound limits.
	RecordsPulled int

	// RecordsFiltered counts pulled records dropped by sync expressions.
	RecordsFiltered int

	ConflictsDetected int
	Errors            []error
	StartTime         time.Time
	Duration          time.Duration
}

// Engine coordinates synchronization between a LocalStore and a RemoteClient.
type Engine struct {
	store   LocalStore
	remote  RemoteClient
	cfg     *datastore.Configuration
	logger  *logging.Logger
	metrics MetricsCollector
	retry   RetryConfig
	now     func() time.Time

	autoInterval time.Duration

	mu          sync.RWMutex
	autoStop    chan struct{}
	subscribers []func(*Result)
	closed      bool
}

// EngineOption configures an Engine at construction.
type EngineOption func(*Engine)

// WithLogger sets the engine's logger.
func WithLogger(l *logging.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(mc MetricsCollector) EngineOption {
	return func(e *Engine) {
		if mc != nil {
			e.metrics = mc
		}
	}
}

// WithRetryConfig overrides the retry behavior for push and pull calls.
func WithRetryConfig(rc RetryConfig) EngineOption {
	return func(e *Engine) { e.retry = rc }
}

// WithAutoSyncInterval sets the period for automatic sync runs started by
// Start. Zero disables automatic sync.
func WithAutoSyncInterval(d time.Duration) EngineOption {
	return func(e *Engine) { e.autoInterval = d }
}

// withClock overrides the time source. Test hook.
func withClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// New constructs an Engine. The configuration is required; its handlers and
// scheduling parameters govern the engine for its whole lifetime.
func New(store LocalStore, remote RemoteClient, cfg *datastore.Configuration, opts ...EngineOption) (*Engine, error) {
	if store == nil {
		return nil, syncErrors.E(syncErrors.OpSync, syncErrors.Component("engine"), syncErrors.KindInvalid, errors.New("local store is required"))
	}
	if remote == nil {
		return nil, syncErrors.E(syncErrors.OpSync, syncErrors.Component("engine"), syncErrors.KindInvalid, errors.New("remote client is required"))
	}
	if cfg == nil {
		return nil, syncErrors.E(syncErrors.OpSync, syncErrors.Component("engine"), syncErrors.KindInvalid, errors.New("configuration is required"))
	}

	e := &Engine{
		store:   store,
		remote:  remote,
		cfg:     cfg,
		logger:  logging.Default().WithComponent(logging.Component("engine")),
		metrics: &NoOpMetricsCollector{},
		retry:   DefaultRetryConfig(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Sync performs one synchronization run: push pending local changes, then
// pull remote records, choosing delta or base mode by how stale the last
// base sync is. Operational failures are funneled to the configured error
// handler and collected in the result; the returned error is non-nil only
// when the run could not start at all.
func (e *Engine) Sync(ctx context.Context) (*Result, error) {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil, syncErrors.New(syncErrors.OpSync, errEngineClosed)
	}
	e.mu.RUnlock()

	result := &Result{StartTime: e.now()}
	defer func() {
		result.Duration = e.now().Sub(result.StartTime)
		e.metrics.RecordSyncDuration(string(result.Mode), result.Duration)
		e.metrics.RecordSyncRecords(result.ChangesPushed, result.RecordsPulled)
		if result.ConflictsDetected > 0 {
			e.metrics.RecordConflicts(result.ConflictsDetected)
		}
		e.notifySubscribers(result)
	}()

	mode, err := e.chooseMode(ctx)
	if err != nil {
		e.report(result, syncErrors.WrapOpComponentKind(err, syncErrors.OpSync, "engine", syncErrors.KindStorage))
		return result, nil
	}
	result.Mode = mode

	e.push(ctx, result)
	e.pull(ctx, result)

	if mode == ModeBase && len(result.Errors) == 0 {
		if err := e.store.MarkBaseSync(ctx, e.now()); err != nil {
			e.report(result, syncErrors.NewStorageError(syncErrors.OpCheckpoint, err))
		}
	}

	return result, nil
}

// chooseMode decides between delta and base sync. Delta sync is trusted only
// within the configured sync interval of the last base sync.
func (e *Engine) chooseMode(ctx context.Context) (Mode, error) {
	lastBase, err := e.store.LastBaseSync(ctx)
	if err != nil {
		return ModeDelta, err
	}
	if lastBase.IsZero() || e.now().Sub(lastBase) >= e.cfg.SyncInterval() {
		return ModeBase, nil
	}
	return ModeDelta, nil
}

// push uploads pending local changes in pages. Accepted changes are acked;
// conflicted changes are removed from the outbox and handed to the conflict
// handler, which requeues them if its resolution retries.
func (e *Engine) push(ctx context.Context, result *Result) {
	pageSize := e.cfg.SyncPageSize()
	maxRecords := e.cfg.SyncMaxRecords()

	for result.ChangesPushed < maxRecords {
		limit := pageSize
		if remaining := maxRecords - result.ChangesPushed; remaining < limit {
			limit = remaining
		}

		pending, err := e.store.Pending(ctx, limit)
		if err != nil {
			e.report(result, syncErrors.NewStorageError(syncErrors.OpPush, err))
			return
		}
		if len(pending) == 0 {
			return
		}

		var pr *PushResult
		err = e.withRetry(ctx, func() error {
			var pushErr error
			pr, pushErr = e.remote.Push(ctx, pending)
			return pushErr
		})
		if err != nil {
			e.report(result, syncErrors.WrapOpComponentKind(err, syncErrors.OpPush, "transport", syncErrors.KindNetwork))
			return
		}

		// Ack by outbox seq, not record ID: the outbox may hold several
		// changes for one record, and only the ones in this page were
		// actually pushed.
		processed := make(map[string]bool, len(pending))
		for _, id := range pr.Accepted {
			processed[id] = true
		}
		for _, rc := range pr.Conflicts {
			processed[rc.Local.Record.ID()] = true
		}
		seqs := make([]int64, 0, len(pending))
		for _, ch := range pending {
			if processed[ch.Record.ID()] {
				seqs = append(seqs, ch.Seq)
			}
		}
		if len(seqs) == 0 {
			e.report(result, syncErrors.NewContractError(syncErrors.OpPush,
				fmt.Errorf("remote processed none of %d pushed changes", len(pending))))
			return
		}
		if err := e.store.Ack(ctx, seqs); err != nil {
			e.report(result, syncErrors.NewStorageError(syncErrors.OpPush, err))
			return
		}

		result.ChangesPushed += len(pr.Accepted)
		result.ConflictsDetected += len(pr.Conflicts)
		for _, rc := range pr.Conflicts {
			e.dispatchConflict(rc)
		}

		if len(pending) < limit {
			return
		}
	}
}

// pull downloads remote records in pages, applying the configured sync
// expressions, until the page stream ends or the per-run record bound is hit.
func (e *Engine) pull(ctx context.Context, result *Result) {
	pageSize := e.cfg.SyncPageSize()
	maxRecords := e.cfg.SyncMaxRecords()

	var since cursor.Cursor
	if result.Mode == ModeDelta {
		var err error
		since, err = e.store.Checkpoint(ctx)
		if err != nil {
			e.report(result, syncErrors.NewStorageError(syncErrors.OpCheckpoint, err))
			return
		}
	}

	for result.RecordsPulled < maxRecords {
		limit := pageSize
		if remaining := maxRecords - result.RecordsPulled; remaining < limit {
			limit = remaining
		}

		var page *Page
		err := e.withRetry(ctx, func() error {
			var pullErr error
			page, pullErr = e.remote.Pull(ctx, since, limit)
			return pullErr
		})
		if err != nil {
			e.report(result, syncErrors.WrapOpComponentKind(err, syncErrors.OpPull, "transport", syncErrors.KindNetwork))
			return
		}

		kept := e.filter(page.Records, result)
		if len(kept) > 0 {
			if err := e.store.ApplyRemote(ctx, kept); err != nil {
				e.report(result, syncErrors.NewStorageError(syncErrors.OpApply, err))
				return
			}
		}
		result.RecordsPulled += len(page.Records)

		if page.Next != nil {
			since = page.Next
			if err := e.store.SaveCheckpoint(ctx, since); err != nil {
				e.report(result, syncErrors.NewStorageError(syncErrors.OpCheckpoint, err))
				return
			}
		}

		if !page.HasMore {
			return
		}
	}
}

// filter applies the configured sync expressions. The first expression whose
// model matches the record decides; records of models with no expression
// always participate. Evaluation failures are reported and the record is
// kept, so a broken filter never silently drops data.
func (e *Engine) filter(records []datastore.Record, result *Result) []datastore.Record {
	exprs := e.cfg.SyncExpressions()
	if len(exprs) == 0 {
		return records
	}

	kept := records[:0]
	for _, r := range records {
		matched := true
		for _, expr := range exprs {
			if expr.ModelName() != r.Model() {
				continue
			}
			ok, err := expr.Evaluate(r)
			if err != nil {
				e.report(result, syncErrors.E(syncErrors.OpPull, syncErrors.Component("engine"), syncErrors.KindInvalid, err, "sync expression failed"))
				ok = true
			}
			matched = ok
			break
		}
		if matched {
			kept = append(kept, r)
		} else {
			result.RecordsFiltered++
		}
	}
	return kept
}

// report funnels an operational error to the configured handler and records
// it in the run result.
func (e *Engine) report(result *Result, err error) {
	result.Errors = append(result.Errors, err)
	e.metrics.RecordSyncErrors(errorOperation(err), errorKind(err))
	e.logger.LogError(context.Background(), err, "sync error")
	e.cfg.ErrorHandler().HandleError(err)
}

func errorOperation(err error) string {
	var syncErr *syncErrors.SyncError
	if errors.As(err, &syncErr) {
		return string(syncErr.Op)
	}
	return "unknown"
}

func errorKind(err error) string {
	var syncErr *syncErrors.SyncError
	if errors.As(err, &syncErr) {
		return string(syncErr.Kind)
	}
	return "unknown"
}

// Start begins automatic synchronization at the configured auto-sync
// interval. It returns an error if no interval was configured or auto sync
// is already running.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return syncErrors.New(syncErrors.OpSync, errEngineClosed)
	}
	if e.autoInterval <= 0 {
		return syncErrors.E(syncErrors.OpSync, syncErrors.KindInvalid, errors.New("auto sync interval must be positive"))
	}
	if e.autoStop != nil {
		return syncErrors.New(syncErrors.OpSync, errors.New("auto sync is already running"))
	}

	e.autoStop = make(chan struct{})
	stop := e.autoStop

	go func() {
		ticker := time.NewTicker(e.autoInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-ticker.C:
				if _, err := e.Sync(ctx); err != nil {
					e.logger.LogError(ctx, err, "automatic sync failed to start")
				}
			}
		}
	}()

	return nil
}

// Stop halts automatic synchronization.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.autoStop == nil {
		return syncErrors.New(syncErrors.OpSync, errors.New("auto sync is not running"))
	}
	close(e.autoStop)
	e.autoStop = nil
	return nil
}

// Subscribe registers a callback invoked after each sync run.
func (e *Engine) Subscribe(handler func(*Result)) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return syncErrors.New(syncErrors.OpSync, errEngineClosed)
	}
	e.subscribers = append(e.subscribers, handler)
	return nil
}

// Close shuts down the engine. Conflict resolutions still outstanding at
// close time become no-ops: their receiver invocations are never observed.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true

	if e.autoStop != nil {
		close(e.autoStop)
		e.autoStop = nil
	}

	var errs []error
	if err := e.remote.Close(); err != nil {
		errs = append(errs, syncErrors.NewWithComponent(syncErrors.OpClose, "transport", err))
	}
	if err := e.store.Close(); err != nil {
		errs = append(errs, syncErrors.NewWithComponent(syncErrors.OpClose, "store", err))
	}
	return errors.Join(errs...)
}

func (e *Engine) isClosed() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.closed
}

func (e *Engine) notifySubscribers(result *Result) {
	e.mu.RLock()
	subscribers := make([]func(*Result), len(e.subscribers))
	copy(subscribers, e.subscribers)
	e.mu.RUnlock()

	for _, handler := range subscribers {
		go func(h func(*Result)) {
			defer func() {
				if r := recover(); r != nil {
					e.logger.Error("subscriber panicked", "panic", r)
				}
			}()
			h(result)
		}(handler)
	}
}
