package executor

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"
)

func TestRetrySucceedsEventually(t *testing.T) {
	attempts := 0
	policy := RetryPolicy{MaxAttempts: 5, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond, Jitter: 0, Rand: rand.New(rand.NewSource(1))}

	err := Retry(context.Background(), policy, func(ctx context.Context) (bool, error) {
		attempts++
		return attempts == 3, nil
	})
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestRetryExhaustsAttempts(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Jitter: 0}
	wantErr := errors.New("not ready")

	err := Retry(context.Background(), policy, func(ctx context.Context) (bool, error) {
		return false, wantErr
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, ErrRetriesExhausted) {
		t.Errorf("err = %v, want wrapped ErrRetriesExhausted", err)
	}
	if !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want wrapped %v", err, wantErr)
	}
}

func TestRetryStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	policy := RetryPolicy{MaxAttempts: 5, BaseDelay: time.Second, MaxDelay: time.Second}

	err := Retry(ctx, policy, func(ctx context.Context) (bool, error) {
		return false, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
