package datastore

import (
	"context"
	"fmt"

	"github.com/alvintu/swift-ui-aws-amplify/logging"
)

// ConflictSnapshot pairs the local and remote versions of one logical record
// at conflict-detection time. Both sides carry the same record identity and
// neither is ever nil. Snapshots are built by the engine and discarded once
// the conflict is resolved.
type ConflictSnapshot struct {
	Local  Record
	Remote Record
}

type resolutionKind uint8

const (
	resolutionUnknown resolutionKind = iota
	resolutionApplyRemote
	resolutionRetryLocal
	resolutionRetry
)

// ResolutionResult is the closed set of outcomes a conflict handler may
// report. Construct values only through ApplyRemote, RetryLocal, or Retry;
// the zero value is invalid and the engine treats it as a contract error.
type ResolutionResult struct {
	kind   resolutionKind
	record Record
}

// ApplyRemote discards the local change and accepts the remote version.
func ApplyRemote() ResolutionResult {
	return ResolutionResult{kind: resolutionApplyRemote}
}

// RetryLocal keeps the local change and resubmits it. Semantically equivalent
// to Retry with the snapshot's local record.
func RetryLocal() ResolutionResult {
	return ResolutionResult{kind: resolutionRetryLocal}
}

// Retry replaces both versions with a caller-supplied merged record and
// resubmits it.
func Retry(merged Record) ResolutionResult {
	return ResolutionResult{kind: resolutionRetry, record: merged}
}

// IsValid reports whether the result carries a recognized outcome. A Retry
// result with a nil record is invalid.
func (r ResolutionResult) IsValid() bool {
	switch r.kind {
	case resolutionApplyRemote, resolutionRetryLocal:
		return true
	case resolutionRetry:
		return r.record != nil
	default:
		return false
	}
}

// IsApplyRemote reports whether the outcome accepts the remote version.
func (r ResolutionResult) IsApplyRemote() bool {
	return r.kind == resolutionApplyRemote
}

// IsRetryLocal reports whether the outcome resubmits the unchanged local record.
func (r ResolutionResult) IsRetryLocal() bool {
	return r.kind == resolutionRetryLocal
}

// IsRetry reports whether the outcome resubmits a merged record.
func (r ResolutionResult) IsRetry() bool {
	return r.kind == resolutionRetry
}

// Record returns the merged record of a Retry outcome, or nil for every
// other outcome.
func (r ResolutionResult) Record() Record {
	return r.record
}

func (r ResolutionResult) String() string {
	switch r.kind {
	case resolutionApplyRemote:
		return "applyRemote"
	case resolutionRetryLocal:
		return "retryLocal"
	case resolutionRetry:
		return fmt.Sprintf("retry(%s)", r.record.ID())
	default:
		return "unknown"
	}
}

// ResolutionReceiver is the one-shot resolver callback the engine hands to a
// conflict handler. The handler must invoke it exactly once; the engine
// observes only the first invocation and logs any later ones.
type ResolutionReceiver func(ResolutionResult)

// ConflictHandler decides the outcome of a detected conflict.
//
// The engine invokes ResolveConflict asynchronously and does not block on it:
// multiple snapshots may be outstanding concurrently, each awaiting its own
// receiver invocation, so implementations must be safe for concurrent calls.
// The receiver may be invoked synchronously before ResolveConflict returns or
// deferred to any later point and any goroutine. No timeout is applied; a
// handler that never calls the receiver stalls synchronization of that record
// indefinitely.
type ConflictHandler interface {
	ResolveConflict(snapshot ConflictSnapshot, resolve ResolutionReceiver)
}

// ConflictHandlerFunc adapts a function to the ConflictHandler interface.
type ConflictHandlerFunc func(snapshot ConflictSnapshot, resolve ResolutionReceiver)

func (f ConflictHandlerFunc) ResolveConflict(snapshot ConflictSnapshot, resolve ResolutionReceiver) {
	f(snapshot, resolve)
}

// ErrorHandler is the terminal sink for errors the engine cannot resolve
// internally. It is one-way: the engine does not wait on or act on anything
// the handler does. Implementations must be safe for concurrent calls and
// should never panic.
type ErrorHandler interface {
	HandleError(err error)
}

// ErrorHandlerFunc adapts a function to the ErrorHandler interface.
type ErrorHandlerFunc func(err error)

func (f ErrorHandlerFunc) HandleError(err error) {
	f(err)
}

// applyRemoteHandler is the default conflict handler: trust the remote.
type applyRemoteHandler struct{}

func (applyRemoteHandler) ResolveConflict(_ ConflictSnapshot, resolve ResolutionReceiver) {
	resolve(ApplyRemote())
}

// DefaultConflictHandler returns the default handler, which always resolves
// with ApplyRemote.
func DefaultConflictHandler() ConflictHandler {
	return applyRemoteHandler{}
}

// logErrorHandler is the default error handler: log at error severity and
// carry on.
type logErrorHandler struct{}

func (logErrorHandler) HandleError(err error) {
	logging.LogError(context.Background(), err, "unhandled sync error")
}

// DefaultErrorHandler returns the default handler, which logs the error and
// otherwise ignores it.
func DefaultErrorHandler() ErrorHandler {
	return logErrorHandler{}
}
