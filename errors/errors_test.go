package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestSyncErrorMessage(t *testing.T) {
	t.Run("with component and kind", func(t *testing.T) {
		err := &SyncError{
			Op:        OpPull,
			Component: "transport",
			Kind:      KindNetwork,
			Err:       errors.New("connection refused"),
		}

		want := "pull operation failed in transport component [NETWORK]: connection refused"
		if err.Error() != want {
			t.Errorf("got %q, want %q", err.Error(), want)
		}
	})

	t.Run("without component", func(t *testing.T) {
		err := &SyncError{
			Op:  OpSync,
			Err: errors.New("boom"),
		}

		want := "sync operation failed: boom"
		if err.Error() != want {
			t.Errorf("got %q, want %q", err.Error(), want)
		}
	})
}

func TestE(t *testing.T) {
	t.Run("assembles all argument types", func(t *testing.T) {
		cause := errors.New("disk full")
		err := E(OpApply, Component("store"), KindStorage, cause)

		if err.Op != OpApply {
			t.Errorf("Op = %q, want %q", err.Op, OpApply)
		}
		if err.Component != "store" {
			t.Errorf("Component = %q, want store", err.Component)
		}
		if err.Kind != KindStorage {
			t.Errorf("Kind = %q, want %q", err.Kind, KindStorage)
		}
		if !err.Retryable {
			t.Error("storage errors should default to retryable")
		}
		if !errors.Is(err, cause) {
			t.Error("expected cause to be preserved in the chain")
		}
	})

	t.Run("string notes wrap the cause", func(t *testing.T) {
		cause := errors.New("bad token")
		err := E(OpPull, KindInvalid, cause, "decode cursor")

		if !errors.Is(err, cause) {
			t.Error("expected cause to survive note wrapping")
		}
		if got := err.Err.Error(); got != "decode cursor: bad token" {
			t.Errorf("wrapped message = %q", got)
		}
	})

	t.Run("string note without cause becomes the error", func(t *testing.T) {
		err := E(OpResolve, KindContract, "resolver invoked twice")
		if err.Err == nil || err.Err.Error() != "resolver invoked twice" {
			t.Errorf("unexpected Err: %v", err.Err)
		}
	})
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := NewStorageError(OpApply, cause)
	wrapped := fmt.Errorf("outer: %w", err)

	if !errors.Is(wrapped, cause) {
		t.Error("errors.Is should find the root cause through SyncError")
	}

	var syncErr *SyncError
	if !errors.As(wrapped, &syncErr) {
		t.Fatal("errors.As should find the SyncError")
	}
	if syncErr.Kind != KindStorage {
		t.Errorf("Kind = %q, want %q", syncErr.Kind, KindStorage)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"network error", NewNetworkError(OpPush, errors.New("timeout")), true},
		{"storage error", NewStorageError(OpApply, errors.New("locked")), true},
		{"conflict error", NewConflictError(OpPull, errors.New("diverged")), false},
		{"contract error", NewContractError(OpResolve, errors.New("double resolve")), false},
		{"plain error", errors.New("plain"), false},
		{"wrapped retryable", fmt.Errorf("outer: %w", NewNetworkError(OpPush, errors.New("x"))), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsKind(t *testing.T) {
	err := NewContractError(OpResolve, errors.New("unknown resolution tag"))

	if !IsKind(err, KindContract) {
		t.Error("expected KindContract")
	}
	if IsKind(err, KindNetwork) {
		t.Error("did not expect KindNetwork")
	}
	if IsKind(errors.New("plain"), KindContract) {
		t.Error("plain errors have no kind")
	}
}

func TestWrapOpComponent(t *testing.T) {
	if WrapOpComponent(nil, OpSync, "engine") != nil {
		t.Error("nil error should wrap to nil")
	}

	err := WrapOpComponentKind(errors.New("bad page size"), OpSync, "engine", KindInvalid)
	var syncErr *SyncError
	if !errors.As(err, &syncErr) {
		t.Fatal("expected SyncError")
	}
	if syncErr.Component != "engine" || syncErr.Kind != KindInvalid {
		t.Errorf("unexpected wrap: %+v", syncErr)
	}
}
