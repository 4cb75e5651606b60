package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastRetryConfig() RetryConfig {
	return RetryConfig{MaxRetries: 3, InitialBackoff: 0.001, MaxBackoff: 0.01, Multiplier: 2}
}

func TestRetry_SucceedsWithoutRetryingOnFirstSuccess(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetryConfig(), func(context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("Retry returned error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestRetry_RetriesTransientUntilSuccess(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetryConfig(), func(context.Context) error {
		calls++
		if calls < 3 {
			return NewTransient("op", errors.New("temporary"))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Retry returned error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestRetry_AbortsImmediatelyOnPermanentError(t *testing.T) {
	calls := 0
	sentinel := errors.New("bad request")
	err := Retry(context.Background(), fastRetryConfig(), func(context.Context) error {
		calls++
		return NewPermanent("op", sentinel)
	})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1 (permanent errors must not retry)", calls)
	}
}

func TestRetry_ExhaustsAfterMaxRetries(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetryConfig(), func(context.Context) error {
		calls++
		return NewTransient("op", errors.New("always fails"))
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries, got nil")
	}
	if calls != fastRetryConfig().MaxRetries+1 {
		t.Fatalf("calls = %d, want %d (1 initial + MaxRetries retries)", calls, fastRetryConfig().MaxRetries+1)
	}
}

func TestRetry_RespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Retry(ctx, fastRetryConfig(), func(context.Context) error {
		calls++
		return NewTransient("op", errors.New("fails"))
	})
	if err == nil {
		t.Fatal("expected error for canceled context")
	}
	if calls > 1 {
		t.Fatalf("calls = %d, want at most 1 for an already-canceled context", calls)
	}
}

func TestDefaultRetryConfig(t *testing.T) {
	cfg := DefaultRetryConfig()
	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", cfg.MaxRetries)
	}
	if cfg.InitialBackoff != 0.5 {
		t.Errorf("InitialBackoff = %v, want 0.5", cfg.InitialBackoff)
	}
	if cfg.MaxBackoff != 30 {
		t.Errorf("MaxBackoff = %v, want 30", cfg.MaxBackoff)
	}
	if cfg.Multiplier != 2 {
		t.Errorf("Multiplier = %v, want 2", cfg.Multiplier)
	}
}

func TestRetry_NeverBlocksBeyondGenerousDeadline(t *testing.T) {
	done := make(chan struct{})
	go func() {
		_ = Retry(context.Background(), fastRetryConfig(), func(context.Context) error {
			return NewTransient("op", errors.New("fails"))
		})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Retry did not return within 2s")
	}
}
