// Package errors provides structured error types for the datastore sync packages.
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies an error for retry and reporting decisions.
type Kind string

const (
	KindTransient Kind = "TRANSIENT" // temporary failure, retry may succeed
	KindNetwork   Kind = "NETWORK"   // remote endpoint unreachable or misbehaving
	KindStorage   Kind = "STORAGE"   // local store read/write failure
	KindConflict  Kind = "CONFLICT"  // divergent local/remote writes
	KindInvalid   Kind = "INVALID"   // invalid input or configuration misuse
	KindContract  Kind = "CONTRACT"  // a handler violated its invocation contract
	KindInternal  Kind = "INTERNAL"  // unexpected internal state
)

// Operation identifies the sync operation during which an error occurred.
type Operation string

const (
	OpSync       Operation = "sync"
	OpPush       Operation = "push"
	OpPull       Operation = "pull"
	OpApply      Operation = "apply"
	OpResolve    Operation = "resolve"
	OpEnqueue    Operation = "enqueue"
	OpCheckpoint Operation = "checkpoint"
	OpClose      Operation = "close"
)

// Op is the builder argument form of Operation, accepted by E.
type Op = Operation

// Component is the builder argument naming the component that produced the error.
type Component string

// SyncError is the structured error type used across the sync packages.
type SyncError struct {
	// Op is the operation during which the error occurred.
	Op Operation

	// Component that generated the error (e.g. "store", "transport", "engine").
	Component string

	// Kind classifies the error.
	Kind Kind

	// Err is the underlying cause.
	Err error

	// Retryable reports whether the failed operation may be retried.
	Retryable bool

	// Metadata carries additional context for logging.
	Metadata map[string]interface{}
}

func (e *SyncError) Error() string {
	var msg string
	if e.Component != "" {
		msg = fmt.Sprintf("%s operation failed in %s component", e.Op, e.Component)
	} else {
		msg = fmt.Sprintf("%s operation failed", e.Op)
	}
	if e.Kind != "" {
		msg += fmt.Sprintf(" [%s]", e.Kind)
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// retryableKind reports whether errors of the given kind default to retryable.
func retryableKind(k Kind) bool {
	switch k {
	case KindTransient, KindNetwork, KindStorage:
		return true
	default:
		return false
	}
}

// E builds a SyncError from its arguments. Accepted argument types:
// Op/Operation, Component, Kind, error, and string (appended as a note
// to the underlying error message). Later arguments of the same type win.
func E(args ...interface{}) *SyncError {
	e := &SyncError{}
	var notes []string
	for _, arg := range args {
		switch a := arg.(type) {
		case Operation:
			e.Op = a
		case Component:
			e.Component = string(a)
		case Kind:
			e.Kind = a
			e.Retryable = retryableKind(a)
		case error:
			e.Err = a
		case string:
			notes = append(notes, a)
		}
	}
	if len(notes) > 0 {
		note := notes[0]
		for _, n := range notes[1:] {
			note += "; " + n
		}
		if e.Err != nil {
			e.Err = fmt.Errorf("%s: %w", note, e.Err)
		} else {
			e.Err = errors.New(note)
		}
	}
	return e
}

// New creates a SyncError for the given operation and cause.
func New(op Operation, err error) *SyncError {
	return &SyncError{Op: op, Err: err}
}

// NewWithComponent creates a SyncError with component information.
func NewWithComponent(op Operation, component string, err error) *SyncError {
	return &SyncError{Op: op, Component: component, Err: err}
}

// NewNetworkError creates a retryable network-kind SyncError.
func NewNetworkError(op Operation, cause error) *SyncError {
	return &SyncError{Op: op, Component: "transport", Kind: KindNetwork, Err: cause, Retryable: true}
}

// NewStorageError creates a retryable storage-kind SyncError.
func NewStorageError(op Operation, cause error) *SyncError {
	return &SyncError{Op: op, Component: "store", Kind: KindStorage, Err: cause, Retryable: true}
}

// NewConflictError creates a conflict-kind SyncError. Conflicts are not
// retryable; they require an explicit resolution decision.
func NewConflictError(op Operation, cause error) *SyncError {
	return &SyncError{Op: op, Component: "engine", Kind: KindConflict, Err: cause, Retryable: false}
}

// NewContractError creates a contract-violation SyncError. Contract errors
// are programming errors and fatal to the affected sync unit.
func NewContractError(op Operation, cause error) *SyncError {
	return &SyncError{Op: op, Component: "engine", Kind: KindContract, Err: cause, Retryable: false}
}

// IsRetryable reports whether err is a retryable SyncError.
func IsRetryable(err error) bool {
	var syncErr *SyncError
	if errors.As(err, &syncErr) {
		return syncErr.Retryable
	}
	return false
}

// IsKind reports whether err is a SyncError of the given kind.
func IsKind(err error, kind Kind) bool {
	var syncErr *SyncError
	if errors.As(err, &syncErr) {
		return syncErr.Kind == kind
	}
	return false
}
