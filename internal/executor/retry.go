package executor

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// ErrRetriesExhausted is returned when a retried operation never
// succeeds within the configured attempt budget.
var ErrRetriesExhausted = errors.New("executor: retries exhausted")

// RetryPolicy is an exponential-backoff-with-jitter schedule, the same
// shape the provider-call retry in the teacher's request layer used,
// generalized here from "retry an LLM call" to "ask an external process
// if it's ready yet, and don't hammer it". The Runner performs no
// readiness poll and does not call Retry.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Jitter is a fraction in [0,1) of the computed delay to randomize,
	// to keep concurrently-polled tasks from waking in lockstep.
	Jitter float64
	// Rand, when non-nil, supplies jitter randomness; nil uses the
	// package-level default source. Tests inject a fixed source for
	// determinism.
	Rand *rand.Rand
}

// DefaultRetryPolicy mirrors the conservative backoff the teacher's
// provider-call retry used: eight attempts with roughly 18 seconds of
// total backoff (250ms doubling, capped at 5s), generous enough that a slow-starting provider CLI isn't mistaken for
// a dead one.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 8,
		BaseDelay:   250 * time.Millisecond,
		MaxDelay:    5 * time.Second,
		Jitter:      0.2,
	}
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	d := p.BaseDelay << attempt
	if d <= 0 || d > p.MaxDelay {
		d = p.MaxDelay
	}
	if p.Jitter <= 0 {
		return d
	}
	r := p.Rand
	if r == nil {
		r = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	jitterRange := float64(d) * p.Jitter
	offset := time.Duration(r.Float64()*2*jitterRange - jitterRange)
	out := d + offset
	if out < 0 {
		out = 0
	}
	return out
}

// Retry calls fn until it returns true, ctx is cancelled, or the
// attempt budget is exhausted. fn's error, if non-nil on the final
// attempt, is wrapped into the returned error; otherwise
// ErrRetriesExhausted is returned.
func Retry(ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) (bool, error)) error {
	var lastErr error
	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		ok, err := fn(ctx)
		if ok {
			return nil
		}
		lastErr = err

		if attempt == policy.MaxAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(policy.delay(attempt)):
		}
	}
	if lastErr != nil {
		return errors.Join(ErrRetriesExhausted, lastErr)
	}
	return ErrRetriesExhausted
}
