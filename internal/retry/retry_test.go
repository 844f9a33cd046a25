package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fastPolicy keeps test runs short.
func fastPolicy() Policy {
	return Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 4 * time.Millisecond}
}

func TestDoSucceedsFirstTry(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(), "op", func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("Do() = %v, want nil", err)
	}
	if calls != 1 {
		t.Errorf("fn called %d times, want 1", calls)
	}
}

func TestDoRetriesTransient(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(), "op", func() error {
		calls++
		if calls < 3 {
			return Transient(errors.New("rate limited"))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do() = %v, want nil after recovery", err)
	}
	if calls != 3 {
		t.Errorf("fn called %d times, want 3", calls)
	}
}

func TestDoStopsOnNonTransient(t *testing.T) {
	authErr := errors.New("401 unauthorized")
	calls := 0
	err := Do(context.Background(), fastPolicy(), "op", func() error {
		calls++
		return authErr
	})
	if !errors.Is(err, authErr) {
		t.Fatalf("Do() = %v, want the auth error", err)
	}
	if calls != 1 {
		t.Errorf("fn called %d times, want 1 (no retry on non-transient)", calls)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	inner := errors.New("503 service unavailable")
	calls := 0
	err := Do(context.Background(), fastPolicy(), "tracker fetch", func() error {
		calls++
		return Transient(inner)
	})
	if calls != 3 {
		t.Errorf("fn called %d times, want 3", calls)
	}
	if err == nil {
		t.Fatal("Do() = nil, want exhaustion error")
	}
	if !errors.Is(err, inner) {
		t.Errorf("exhaustion error %v should wrap the last failure", err)
	}
}

func TestDoHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, Policy{MaxAttempts: 5, BaseDelay: time.Minute, MaxDelay: time.Minute}, "op", func() error {
		calls++
		cancel()
		return Transient(errors.New("flaky"))
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Do() = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("fn called %d times, want 1 (cancelled during backoff)", calls)
	}
}

func TestIsTransient(t *testing.T) {
	if IsTransient(errors.New("plain")) {
		t.Error("plain error reported transient")
	}
	if !IsTransient(Transient(errors.New("flaky"))) {
		t.Error("marked error not reported transient")
	}
	wrapped := errors.Join(errors.New("outer"), Transient(errors.New("inner")))
	if !IsTransient(wrapped) {
		t.Error("transient marker lost through wrapping")
	}
	if Transient(nil) != nil {
		t.Error("Transient(nil) should be nil")
	}
}

func TestBackoffDelayCapped(t *testing.T) {
	p := Policy{MaxAttempts: 10, BaseDelay: time.Second, MaxDelay: 4 * time.Second}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 4 * time.Second},
		{8, 4 * time.Second},
	}
	for _, tt := range tests {
		if got := backoffDelay(p, tt.attempt); got != tt.want {
			t.Errorf("backoffDelay(attempt=%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}
