// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package internal_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/edgebench/sigbench/protocol/internal"
	"github.com/stretchr/testify/require"
)

func TestConcurrentBounded(t *testing.T) {
	var active, peak, total atomic.Int32
	release := make(chan struct{})

	dispatch, done := internal.Concurrent(2, func(_ context.Context, _ int) {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		<-release
		active.Add(-1)
		total.Add(1)
	})

	ctx := context.Background()
	go func() {
		for i := range 6 {
			dispatch(ctx, i)
		}
	}()

	require.Eventually(t, func() bool { return active.Load() == 2 },
		5*time.Second, 10*time.Millisecond)
	close(release)

	require.Eventually(t, func() bool { return total.Load() == 6 },
		5*time.Second, 10*time.Millisecond)
	done()
	require.Equal(t, int32(2), peak.Load())
}

func TestConcurrentUnboundedWaits(t *testing.T) {
	var total atomic.Int32
	dispatch, done := internal.Concurrent(0, func(_ context.Context, _ int) {
		time.Sleep(20 * time.Millisecond)
		total.Add(1)
	})

	for i := range 5 {
		dispatch(context.Background(), i)
	}
	done()
	require.Equal(t, int32(5), total.Load())

	// Dispatch after done is ignored.
	dispatch(context.Background(), 6)
	require.Equal(t, int32(5), total.Load())
}
