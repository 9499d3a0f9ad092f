// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package bench

import (
	"log/slog"
	"time"

	"github.com/edgebench/sigbench/internal/options"
	"github.com/edgebench/sigbench/metrics"
)

type (
	// HarnessOption represents a single harness option.
	HarnessOption interface{ harness(*HarnessOptions) }

	// HarnessOptions are the resolved harness options.
	HarnessOptions struct {
		Generator     Generator
		SignalLength  int
		Timeout       time.Duration
		Concurrency   int
		ParallelPaths bool
		Collectors    *metrics.Collectors
		OnTrial       func(TrialResult)
		Logger        *slog.Logger
	}

	// WithGenerator sets the signal generator.
	WithGenerator struct{ Generator }

	// WithSignalLength sets the number of samples per signal.
	WithSignalLength int

	// WithTimeout bounds each path invocation.
	WithTimeout time.Duration

	// WithConcurrency runs up to this many trials at once.
	WithConcurrency int

	// WithParallelPaths invokes the cloud and edge paths of a trial at the
	// same time instead of one after the other.
	WithParallelPaths bool

	// WithCollectors counts trial outcomes and round trips.
	WithCollectors struct{ *metrics.Collectors }

	// WithTrialHandler is called with each completed trial. It must be safe
	// for concurrent use when trials run concurrently.
	WithTrialHandler func(TrialResult)

	withLogger struct{ *slog.Logger }
)

// Harness defaults.
const (
	DefaultSignalLength = 1000
	DefaultTimeout      = 5 * time.Second
)

func (o WithGenerator) harness(opt *HarnessOptions) {
	opt.Generator = o.Generator
}

func (o WithSignalLength) harness(opt *HarnessOptions) {
	opt.SignalLength = int(o)
}

func (o WithTimeout) harness(opt *HarnessOptions) {
	opt.Timeout = time.Duration(o)
}

func (o WithConcurrency) harness(opt *HarnessOptions) {
	opt.Concurrency = int(o)
}

func (o WithParallelPaths) harness(opt *HarnessOptions) {
	opt.ParallelPaths = bool(o)
}

func (o WithCollectors) harness(opt *HarnessOptions) {
	opt.Collectors = o.Collectors
}

func (o WithTrialHandler) harness(opt *HarnessOptions) {
	opt.OnTrial = o
}

// WithLogger enables logging with the provided slog logger.
func WithLogger(l *slog.Logger) HarnessOption {
	return withLogger{l}
}

func (o withLogger) harness(opt *HarnessOptions) {
	opt.Logger = o.Logger
}

// Apply resolves the provided list of options.
func (o *HarnessOptions) Apply(
	opts []HarnessOption,
	rest ...HarnessOption,
) {
	for opt := range options.Apply[HarnessOption](opts, rest...) {
		opt.harness(o)
	}
}
