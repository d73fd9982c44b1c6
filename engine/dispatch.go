package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/alvintu/swift-ui-aws-amplify/datastore"
	syncErrors "github.com/alvintu/swift-ui-aws-amplify/errors"
)

// dispatchConflict hands one remote conflict to the configured handler on its
// own goroutine. The engine never blocks on the decision; any number of
// conflicts may be outstanding concurrently, each with its own one-shot
// receiver, and no ordering holds between their resolutions. There is no
// deadline on a decision: a handler that never resolves leaves the conflicted
// change acknowledged but unresolved, and nothing requeues it.
func (e *Engine) dispatchConflict(rc RemoteConflict) {
	snapshot := datastore.ConflictSnapshot{
		Local:  rc.Local.Record,
		Remote: rc.Remote,
	}
	receiver := e.newOnceReceiver(rc)
	handler := e.cfg.ConflictHandler()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				e.funnel(syncErrors.NewContractError(syncErrors.OpResolve,
					fmt.Errorf("conflict handler panicked for record %s: %v", rc.Local.Record.ID(), r)))
			}
		}()
		handler.ResolveConflict(snapshot, receiver)
	}()
}

// newOnceReceiver wraps resolution delivery so only the first invocation is
// observed. Later invocations are a contract violation: they are logged and
// dropped.
func (e *Engine) newOnceReceiver(rc RemoteConflict) datastore.ResolutionReceiver {
	var once sync.Once
	return func(result datastore.ResolutionResult) {
		applied := false
		once.Do(func() {
			applied = true
			e.applyResolution(rc, result)
		})
		if !applied {
			e.logger.Warn("conflict resolver invoked more than once; ignoring",
				"record_id", rc.Local.Record.ID(),
				"result", result.String(),
			)
		}
	}
}

// applyResolution carries out a handler's decision. Resolutions arriving
// after Close are no-ops. An unrecognized result is a contract error, fatal
// to this record's sync unit: the change stays dropped from the outbox.
func (e *Engine) applyResolution(rc RemoteConflict, result datastore.ResolutionResult) {
	if e.isClosed() {
		return
	}

	// Resolution is detached from the sync run that detected the conflict,
	// so it runs under its own context.
	ctx := context.Background()

	switch {
	case result.IsApplyRemote():
		e.metrics.RecordResolution("apply_remote")
		if err := e.store.ApplyRemote(ctx, []datastore.Record{rc.Remote}); err != nil {
			e.funnel(syncErrors.NewStorageError(syncErrors.OpApply, err))
		}

	case result.IsRetryLocal():
		e.metrics.RecordResolution("retry_local")
		if err := e.store.Enqueue(ctx, rc.Local); err != nil {
			e.funnel(syncErrors.NewStorageError(syncErrors.OpEnqueue, err))
		}

	case result.IsRetry():
		merged := result.Record()
		if merged == nil {
			e.funnel(syncErrors.NewContractError(syncErrors.OpResolve,
				fmt.Errorf("retry resolution for record %s carries no record", rc.Local.Record.ID())))
			return
		}
		e.metrics.RecordResolution("retry")
		if err := e.store.Enqueue(ctx, Change{Record: merged, Op: rc.Local.Op}); err != nil {
			e.funnel(syncErrors.NewStorageError(syncErrors.OpEnqueue, err))
		}

	default:
		e.funnel(syncErrors.NewContractError(syncErrors.OpResolve,
			fmt.Errorf("unrecognized resolution result for record %s", rc.Local.Record.ID())))
	}
}

// funnel routes an error raised outside a sync run to the configured handler.
func (e *Engine) funnel(err error) {
	e.metrics.RecordSyncErrors(errorOperation(err), errorKind(err))
	e.logger.LogError(context.Background(), err, "sync error")

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("error handler panicked", "panic", r)
		}
	}()
	e.cfg.ErrorHandler().HandleError(err)
}

var errEngineClosed = errors.New("engine is closed")
