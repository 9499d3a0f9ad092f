// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package edge

import (
	"log/slog"

	"github.com/edgebench/sigbench/internal/options"
	"github.com/edgebench/sigbench/metrics"
)

type (
	// ResponderOption represents a single responder option.
	ResponderOption interface{ responder(*ResponderOptions) }

	// ResponderOptions are the resolved responder options.
	ResponderOptions struct {
		Concurrency uint
		Retain      int
		Recorder    *metrics.Recorder
		Collectors  *metrics.Collectors
		Logger      *slog.Logger
	}

	// InvokerOption represents a single invoker option.
	InvokerOption interface{ invoker(*InvokerOptions) }

	// InvokerOptions are the resolved invoker options.
	InvokerOptions struct {
		Logger *slog.Logger
	}

	// WithConcurrency bounds how many raw messages are processed in
	// parallel. 0 starts one goroutine per message.
	WithConcurrency uint

	// WithRetain sets how many recent processed messages the responder
	// keeps. 0 disables retention.
	WithRetain int

	// WithRecorder writes a metrics record per processed signal.
	WithRecorder struct{ *metrics.Recorder }

	// WithCollectors counts processed and dropped messages.
	WithCollectors struct{ *metrics.Collectors }

	withLogger struct{ *slog.Logger }
)

// DefaultRetain is the default capacity of the recent-message buffer.
const DefaultRetain = 128

func (o WithConcurrency) responder(opt *ResponderOptions) {
	opt.Concurrency = uint(o)
}

func (o WithRetain) responder(opt *ResponderOptions) {
	opt.Retain = int(o)
}

func (o WithRecorder) responder(opt *ResponderOptions) {
	opt.Recorder = o.Recorder
}

func (o WithCollectors) responder(opt *ResponderOptions) {
	opt.Collectors = o.Collectors
}

// WithLogger enables logging with the provided slog logger.
func WithLogger(l *slog.Logger) interface {
	ResponderOption
	InvokerOption
} {
	return withLogger{l}
}

func (o withLogger) responder(opt *ResponderOptions) {
	opt.Logger = o.Logger
}

func (o withLogger) invoker(opt *InvokerOptions) {
	opt.Logger = o.Logger
}

// Apply resolves the provided list of options.
func (o *ResponderOptions) Apply(
	opts []ResponderOption,
	rest ...ResponderOption,
) {
	for opt := range options.Apply[ResponderOption](opts, rest...) {
		opt.responder(o)
	}
}

// Apply resolves the provided list of options.
func (o *InvokerOptions) Apply(
	opts []InvokerOption,
	rest ...InvokerOption,
) {
	for opt := range options.Apply[InvokerOption](opts, rest...) {
		opt.invoker(o)
	}
}
