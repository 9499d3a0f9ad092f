// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package wallclock

import (
	"context"
	"time"
)

type (
	// WallClock abstracts the time and deadline functionality used for
	// latency measurement and timeouts.
	WallClock interface {
		WithTimeoutCause(
			parent context.Context,
			timeout time.Duration,
			cause error,
		) (context.Context, context.CancelFunc)
		After(d time.Duration) <-chan time.Time
		Now() time.Time
		Since(t time.Time) time.Duration
	}

	wallClock struct{}
)

func (wallClock) WithTimeoutCause(
	parent context.Context,
	timeout time.Duration,
	cause error,
) (context.Context, context.CancelFunc) {
	return context.WithTimeoutCause(parent, timeout, cause)
}

func (wallClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

// Now returns the current time, including its monotonic reading.
func (wallClock) Now() time.Time {
	return time.Now()
}

// Since measures against the monotonic reading when t carries one.
func (wallClock) Since(t time.Time) time.Duration {
	return time.Since(t)
}

// Instance is the WallClock used by every package in this module. Test code
// can replace it to control apparent time.
var Instance WallClock = wallClock{}
