// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Package bench drives the cloud and edge paths with generated signals and
// collects their round-trip latencies.
package bench

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/edgebench/sigbench/errors"
	"github.com/edgebench/sigbench/internal/log"
	"github.com/edgebench/sigbench/internal/wallclock"
	"github.com/edgebench/sigbench/iso"
	"github.com/edgebench/sigbench/metrics"
	"github.com/edgebench/sigbench/signal"
	"golang.org/x/sync/errgroup"
)

type (
	// Invoker sends a raw signal down one path and waits for its processed
	// result.
	Invoker interface {
		Invoke(
			ctx context.Context,
			raw []float64,
			timeout time.Duration,
		) (*signal.ProcessedMessage, error)
	}

	// Harness runs benchmark trials against both paths.
	Harness struct {
		cloud         Invoker
		edge          Invoker
		generator     Generator
		length        int
		timeout       time.Duration
		concurrency   int
		parallelPaths bool
		collectors    *metrics.Collectors
		onTrial       func(TrialResult)
		logger        log.Logger
	}
)

// NewHarness creates a harness over the two invokers.
func NewHarness(cloud, edge Invoker, opt ...HarnessOption) (*Harness, error) {
	opts := HarnessOptions{
		Generator:    Normal{Mean: 0, StdDev: 1},
		SignalLength: DefaultSignalLength,
		Timeout:      DefaultTimeout,
		Concurrency:  1,
	}
	opts.Apply(opt)

	switch {
	case cloud == nil || edge == nil:
		return nil, &errors.Error{
			Message:      "both invokers are required",
			Kind:         errors.ArgumentInvalid,
			PropertyName: "invoker",
		}
	case opts.Generator == nil:
		return nil, &errors.Error{
			Message:      "generator must not be nil",
			Kind:         errors.ArgumentInvalid,
			PropertyName: "generator",
		}
	case opts.SignalLength < 1:
		return nil, harnessConfigError("bench.signal_length", opts.SignalLength)
	case opts.Timeout <= 0:
		return nil, harnessConfigError("bench.timeout", opts.Timeout)
	case opts.Concurrency < 1:
		return nil, harnessConfigError("bench.concurrency", opts.Concurrency)
	}

	return &Harness{
		cloud:         cloud,
		edge:          edge,
		generator:     opts.Generator,
		length:        opts.SignalLength,
		timeout:       opts.Timeout,
		concurrency:   opts.Concurrency,
		parallelPaths: opts.ParallelPaths,
		collectors:    opts.Collectors,
		onTrial:       opts.OnTrial,
		logger:        log.Wrap(opts.Logger).With("harness"),
	}, nil
}

// Run executes the trials and returns one result per trial, ordered by trial
// number. A failing path never stops the run; once ctx is done the remaining
// trials are recorded as cancelled.
func (h *Harness) Run(ctx context.Context, trials int) ([]TrialResult, error) {
	if trials < 0 {
		return nil, harnessConfigError("bench.trials", trials)
	}

	results := make([]TrialResult, trials)
	var g errgroup.Group
	g.SetLimit(h.concurrency)

	for i := range trials {
		if ctx.Err() != nil {
			results[i] = h.cancelled(ctx, i+1)
			continue
		}
		g.Go(func() error {
			// The context may have ended while waiting for a slot.
			if ctx.Err() != nil {
				results[i] = h.cancelled(ctx, i+1)
			} else {
				results[i] = h.trial(ctx, i+1)
			}
			return nil
		})
	}
	_ = g.Wait()
	return results, nil
}

func (h *Harness) trial(ctx context.Context, n int) TrialResult {
	raw := h.generator.Generate(h.length)
	tr := TrialResult{
		TrialNumber: n,
		Timestamp:   iso.UTC(wallclock.Instance.Now()),
	}

	if h.parallelPaths {
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			tr.Cloud = h.invoke(ctx, metrics.PathCloud, h.cloud, raw)
		}()
		go func() {
			defer wg.Done()
			tr.Edge = h.invoke(ctx, metrics.PathEdge, h.edge, raw)
		}()
		wg.Wait()
	} else {
		tr.Cloud = h.invoke(ctx, metrics.PathCloud, h.cloud, raw)
		tr.Edge = h.invoke(ctx, metrics.PathEdge, h.edge, raw)
	}

	h.logger.Info(ctx, "trial completed",
		slog.Int("trial", n),
		slog.String("cloud", tr.Cloud.Outcome()),
		slog.Float64("cloud_time", tr.Cloud.ProcessingTime),
		slog.String("edge", tr.Edge.Outcome()),
		slog.Float64("edge_time", tr.Edge.ProcessingTime),
	)
	if h.onTrial != nil {
		h.onTrial(tr)
	}
	return tr
}

func (h *Harness) invoke(
	ctx context.Context,
	path string,
	inv Invoker,
	raw []float64,
) PathResult {
	start := wallclock.Instance.Now()
	res, err := inv.Invoke(ctx, slices.Clone(raw), h.timeout)
	elapsed := wallclock.Instance.Since(start)

	pr := PathResult{Approach: path, ProcessingTime: elapsed.Seconds()}
	if err != nil {
		pr.Error = newFailure(err, elapsed)
	} else {
		pr.Result = res
	}
	h.collectors.Trial(path, pr.Outcome(), elapsed)
	return pr
}

func (h *Harness) cancelled(ctx context.Context, n int) TrialResult {
	err := errors.Context(ctx, "trial")
	tr := TrialResult{
		TrialNumber: n,
		Timestamp:   iso.UTC(wallclock.Instance.Now()),
		Cloud:       PathResult{Approach: metrics.PathCloud, Error: newFailure(err, 0)},
		Edge:        PathResult{Approach: metrics.PathEdge, Error: newFailure(err, 0)},
	}
	if h.onTrial != nil {
		h.onTrial(tr)
	}
	return tr
}

func harnessConfigError(name string, value any) error {
	return &errors.Error{
		Message:       "invalid " + name,
		Kind:          errors.ConfigurationInvalid,
		PropertyName:  name,
		PropertyValue: value,
	}
}
