package backoff

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetry_FirstAttemptSucceeds(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), Policy{MaxAttempts: 3, InitialDelay: time.Millisecond}, func(ctx context.Context) error {
		attempts++
		return nil
	})
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
}

func TestRetry_EventualSuccess(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), Policy{MaxAttempts: 5, InitialDelay: time.Millisecond}, func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestRetry_Exhausted(t *testing.T) {
	wantErr := errors.New("still broken")
	attempts := 0
	err := Retry(context.Background(), Policy{MaxAttempts: 3, InitialDelay: time.Millisecond}, func(ctx context.Context) error {
		attempts++
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Errorf("expected %v, got %v", wantErr, err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestRetry_NonRetryableStopsImmediately(t *testing.T) {
	fatal := errors.New("bad config")
	attempts := 0
	p := Policy{
		MaxAttempts:  5,
		InitialDelay: time.Millisecond,
		Retryable:    func(err error) bool { return !errors.Is(err, fatal) },
	}
	err := Retry(context.Background(), p, func(ctx context.Context) error {
		attempts++
		return fatal
	})
	if !errors.Is(err, fatal) {
		t.Errorf("expected %v, got %v", fatal, err)
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
}

func TestRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := Retry(ctx, Policy{MaxAttempts: 0, InitialDelay: 50 * time.Millisecond}, func(ctx context.Context) error {
		return errors.New("no capacity")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled in chain, got %v", err)
	}
}

func TestRetryValue(t *testing.T) {
	attempts := 0
	got, err := RetryValue(context.Background(), Policy{MaxAttempts: 3, InitialDelay: time.Millisecond}, func(ctx context.Context) (string, error) {
		attempts++
		if attempts < 2 {
			return "", errors.New("transient")
		}
		return "cluster-1", nil
	})
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if got != "cluster-1" {
		t.Errorf("expected cluster-1, got %q", got)
	}
}

func TestInfrastructure_Bounded(t *testing.T) {
	p := Infrastructure()
	if p.MaxAttempts == 0 {
		t.Error("infrastructure policy must be bounded")
	}
}

func TestCapacity_Unbounded(t *testing.T) {
	p := Capacity()
	if p.MaxAttempts != 0 {
		t.Error("capacity policy must rely on the context deadline, not attempt count")
	}
}
