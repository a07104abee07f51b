package retry

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Policy defines retry behavior for one operation.
type Policy struct {
	// Retries is the number of re-attempts after the first failure.
	Retries int
	// InitialDelay precedes the first re-attempt.
	InitialDelay time.Duration
	// Multiplier scales the delay between successive re-attempts.
	Multiplier float64
	// MaxDelay caps the delay when > 0.
	MaxDelay time.Duration
	// Jitter randomizes each delay by a factor in [0.5, 1.5).
	Jitter bool
	// RetryIf limits which failures are retried. Nil retries everything.
	RetryIf func(error) bool
}

// DefaultPolicy matches the dispatch-path defaults: three re-attempts,
// one second initial delay, 1.5x growth, no jitter.
func DefaultPolicy() Policy {
	return Policy{
		Retries:      3,
		InitialDelay: time.Second,
		Multiplier:   1.5,
	}
}

// NextDelay returns the wait before re-attempt N (1-based).
func NextDelay(p Policy, attempt int, rng *rand.Rand) time.Duration {
	if p.InitialDelay <= 0 {
		return 0
	}
	if p.Multiplier < 1.0 {
		p.Multiplier = 1.0
	}
	delay := float64(p.InitialDelay)
	if attempt > 1 {
		delay = delay * math.Pow(p.Multiplier, float64(attempt-1))
	}
	if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	if p.Jitter {
		f := 0.5
		if rng != nil {
			f = 0.5 + rng.Float64()
		}
		delay = delay * f
	}
	return time.Duration(delay)
}

// Do invokes op until it succeeds or the retry budget is spent. The loop
// is explicit: the accumulated delay grows by Multiplier each attempt
// and call-stack depth stays constant. Waits respect ctx; cancellation
// surfaces ctx.Err() without a further attempt.
func Do[T any](ctx context.Context, p Policy, op func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 1; ; attempt++ {
		out, err := op(ctx)
		if err == nil {
			return out, nil
		}
		lastErr = err

		if attempt > p.Retries {
			return zero, lastErr
		}
		if p.RetryIf != nil && !p.RetryIf(err) {
			return zero, lastErr
		}

		timer := time.NewTimer(NextDelay(p, attempt, nil))
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		}
	}
}
