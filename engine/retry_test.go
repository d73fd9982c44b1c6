package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alvintu/swift-ui-aws-amplify/datastore"
	syncErrors "github.com/alvintu/swift-ui-aws-amplify/errors"
)

func TestNextDelay(t *testing.T) {
	rc := RetryConfig{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
	}

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, time.Second},
		{10, time.Second},
	}
	for _, tc := range cases {
		if got := rc.nextDelay(tc.attempt); got != tc.want {
			t.Errorf("nextDelay(%d) = %v, want %v", tc.attempt, got, tc.want)
		}
	}
}

func TestWithRetry(t *testing.T) {
	newEngine := func(t *testing.T, rc RetryConfig) *Engine {
		t.Helper()
		e, err := New(newMockStore(), &mockRemote{}, datastore.New(), WithRetryConfig(rc))
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		return e
	}
	fast := RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1.0}

	t.Run("success needs one attempt", func(t *testing.T) {
		e := newEngine(t, fast)
		calls := 0
		err := e.withRetry(context.Background(), func() error {
			calls++
			return nil
		})
		if err != nil || calls != 1 {
			t.Errorf("err = %v, calls = %d; want nil, 1", err, calls)
		}
	})

	t.Run("retryable errors exhaust attempts", func(t *testing.T) {
		e := newEngine(t, fast)
		calls := 0
		cause := syncErrors.NewNetworkError(syncErrors.OpPull, errors.New("unreachable"))
		err := e.withRetry(context.Background(), func() error {
			calls++
			return cause
		})
		if !errors.Is(err, cause) {
			t.Errorf("err = %v, want the last failure", err)
		}
		if calls != 3 {
			t.Errorf("calls = %d, want 3", calls)
		}
	})

	t.Run("non-retryable error stops immediately", func(t *testing.T) {
		e := newEngine(t, fast)
		calls := 0
		err := e.withRetry(context.Background(), func() error {
			calls++
			return errors.New("plain failure")
		})
		if err == nil || calls != 1 {
			t.Errorf("err = %v, calls = %d; want error, 1", err, calls)
		}
	})

	t.Run("cancellation ends the wait", func(t *testing.T) {
		e := newEngine(t, RetryConfig{MaxAttempts: 5, InitialDelay: time.Hour, MaxDelay: time.Hour, Multiplier: 1.0})
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() {
			done <- e.withRetry(ctx, func() error {
				return syncErrors.NewNetworkError(syncErrors.OpPull, errors.New("unreachable"))
			})
		}()
		cancel()
		select {
		case err := <-done:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("err = %v, want context.Canceled", err)
			}
		case <-time.After(time.Second):
			t.Fatal("withRetry did not observe cancellation")
		}
	})
}
