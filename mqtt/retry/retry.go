// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package retry

import (
	"context"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"github.com/edgebench/sigbench/errors"
	"github.com/edgebench/sigbench/internal/log"
	"github.com/edgebench/sigbench/internal/wallclock"
)

type (
	// Task is a single attempt of a retried operation. It reports whether a
	// failure may be retried.
	Task func(context.Context) (retry bool, err error)

	// Policy runs a task until it succeeds or the policy gives up.
	Policy interface {
		Start(ctx context.Context, name string, task Task) error
	}

	// ExponentialBackoff implements a retry policy with exponential backoff
	// and jitter.
	ExponentialBackoff struct {
		// MaxAttempts sets the maximum number of attempts. The default value
		// of 0 indicates unlimited attempts; setting this to 1 will disable
		// retries.
		MaxAttempts uint64

		// MinInterval is the interval before the first retry (before jitter).
		// Defaults to 1/8s.
		MinInterval time.Duration

		// MaxInterval caps the interval between retries (before jitter).
		// Defaults to 30s.
		MaxInterval time.Duration

		// Timeout is the total timeout for all attempts.
		Timeout time.Duration

		// NoJitter removes the default jitter.
		NoJitter bool

		// Logger is used to log retry attempts and results.
		Logger *slog.Logger
	}
)

// Start runs the task until it succeeds, returns a non-retryable error, or
// the attempts or timeout are exhausted.
func (e *ExponentialBackoff) Start(
	ctx context.Context,
	name string,
	task Task,
) error {
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = wallclock.Instance.WithTimeoutCause(
			ctx,
			e.Timeout,
			&errors.Error{
				Message:      name + " retries timed out",
				Kind:         errors.Timeout,
				TimeoutName:  "retry",
				TimeoutValue: e.Timeout,
			},
		)
		defer cancel()
	}

	l := log.Wrap(e.Logger)
	for attempt := uint64(1); ; attempt++ {
		l.Debug(ctx, "retry attempt",
			slog.String("task", name),
			slog.Uint64("attempt", attempt),
		)

		retry, err := task(ctx)
		if err == nil {
			return nil
		}

		interval := e.Interval(attempt)
		if !retry || attempt == e.MaxAttempts || ctx.Err() != nil {
			l.Warn(ctx, "retry abandoned",
				slog.String("task", name),
				slog.Uint64("attempt", attempt),
				slog.String("error", err.Error()),
			)
			return err
		}

		l.Info(ctx, "retry scheduled",
			slog.String("task", name),
			slog.Uint64("attempt", attempt),
			slog.Duration("interval", interval),
			slog.String("error", err.Error()),
		)

		select {
		case <-wallclock.Instance.After(interval):
		case <-ctx.Done():
			return errors.Context(ctx, name)
		}
	}
}

// Interval returns the backoff before the retry following the given attempt.
func (e *ExponentialBackoff) Interval(attempt uint64) time.Duration {
	minInterval := e.MinInterval
	if minInterval == 0 {
		minInterval = time.Second / 8
	}

	maxInterval := e.MaxInterval
	if maxInterval == 0 {
		maxInterval = 30 * time.Second
	}
	maxInterval = max(maxInterval, minInterval)

	factor := math.Pow(2, min(
		float64(attempt-1),
		math.Log2(float64(maxInterval)/float64(minInterval)),
	))
	if !e.NoJitter {
		// Between 95% and 105% of the base interval.
		// #nosec G404
		factor *= .95 + .1*rand.Float64()
	}

	return time.Duration(factor * float64(minInterval))
}
