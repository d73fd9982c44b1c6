package datastore

import (
	"errors"
	"testing"
)

func TestResolutionResultVariants(t *testing.T) {
	merged := NewRecord("Post", map[string]any{"title": "merged"})

	tests := []struct {
		name   string
		result ResolutionResult
		valid  bool
		check  func(t *testing.T, r ResolutionResult)
	}{
		{
			name:   "apply remote",
			result: ApplyRemote(),
			valid:  true,
			check: func(t *testing.T, r ResolutionResult) {
				if !r.IsApplyRemote() || r.IsRetry() || r.IsRetryLocal() {
					t.Error("tag mismatch")
				}
				if r.Record() != nil {
					t.Error("apply remote carries no record")
				}
			},
		},
		{
			name:   "retry local",
			result: RetryLocal(),
			valid:  true,
			check: func(t *testing.T, r ResolutionResult) {
				if !r.IsRetryLocal() || r.IsApplyRemote() || r.IsRetry() {
					t.Error("tag mismatch")
				}
			},
		},
		{
			name:   "retry with merged record",
			result: Retry(merged),
			valid:  true,
			check: func(t *testing.T, r ResolutionResult) {
				if !r.IsRetry() {
					t.Error("tag mismatch")
				}
				if r.Record().ID() != merged.ID() {
					t.Error("retry should carry exactly the supplied record")
				}
			},
		},
		{
			name:   "zero value is invalid",
			result: ResolutionResult{},
			valid:  false,
			check:  func(t *testing.T, r ResolutionResult) {},
		},
		{
			name:   "retry with nil record is invalid",
			result: Retry(nil),
			valid:  false,
			check:  func(t *testing.T, r ResolutionResult) {},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.result.IsValid(); got != tt.valid {
				t.Errorf("IsValid() = %v, want %v", got, tt.valid)
			}
			tt.check(t, tt.result)
		})
	}
}

func TestDefaultConflictHandlerAppliesRemote(t *testing.T) {
	local := NewRecordWithID("Post", "p1", map[string]any{"title": "local"})
	remote := NewRecordWithID("Post", "p1", map[string]any{"title": "remote"})

	handler := DefaultConflictHandler()

	calls := 0
	var result ResolutionResult
	handler.ResolveConflict(ConflictSnapshot{Local: local, Remote: remote}, func(r ResolutionResult) {
		calls++
		result = r
	})

	if calls != 1 {
		t.Fatalf("receiver invoked %d times, want 1", calls)
	}
	if !result.IsApplyRemote() {
		t.Errorf("default resolution = %v, want applyRemote", result)
	}
}

func TestConflictHandlerFuncAdapter(t *testing.T) {
	merged := NewRecord("Post", map[string]any{"title": "merged"})

	var handler ConflictHandler = ConflictHandlerFunc(func(s ConflictSnapshot, resolve ResolutionReceiver) {
		resolve(Retry(merged))
	})

	var result ResolutionResult
	handler.ResolveConflict(ConflictSnapshot{}, func(r ResolutionResult) { result = r })

	if !result.IsRetry() || result.Record().ID() != merged.ID() {
		t.Errorf("adapter result = %v, want retry with merged record", result)
	}
}

func TestErrorHandlerInvokedOncePerError(t *testing.T) {
	var seen []error
	var handler ErrorHandler = ErrorHandlerFunc(func(err error) {
		seen = append(seen, err)
	})

	first := errors.New("first")
	second := errors.New("second")
	handler.HandleError(first)
	handler.HandleError(second)

	if len(seen) != 2 || seen[0] != first || seen[1] != second {
		t.Errorf("seen = %v, want [first second]", seen)
	}
}

func TestDefaultErrorHandlerDoesNotPanic(t *testing.T) {
	DefaultErrorHandler().HandleError(errors.New("ignored"))
}

func TestResolutionResultString(t *testing.T) {
	if ApplyRemote().String() != "applyRemote" {
		t.Errorf("String() = %q", ApplyRemote().String())
	}
	if RetryLocal().String() != "retryLocal" {
		t.Errorf("String() = %q", RetryLocal().String())
	}
	if (ResolutionResult{}).String() != "unknown" {
		t.Errorf("String() = %q", ResolutionResult{}.String())
	}
}
