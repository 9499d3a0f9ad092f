// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package cloud

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/edgebench/sigbench/internal/options"
	"github.com/edgebench/sigbench/metrics"
	"github.com/edgebench/sigbench/protocol"
	"github.com/edgebench/sigbench/signal"
)

type (
	// FunctionOption represents a single function option.
	FunctionOption interface{ function(*FunctionOptions) }

	// FunctionOptions are the resolved function options.
	FunctionOptions struct {
		MemoryLimitMB int
		Timeout       time.Duration
		Recorder      *metrics.Recorder
		Collectors    *metrics.Collectors
		Mirror        *protocol.Sender[signal.ProcessedMessage]
		Logger        *slog.Logger
	}

	// InvokerOption represents a single invoker option.
	InvokerOption interface{ invoker(*InvokerOptions) }

	// InvokerOptions are the resolved invoker options.
	InvokerOptions struct {
		Client *http.Client
		Logger *slog.Logger
	}

	// WithMemoryLimit is the memory limit, in MB, reported in each metrics
	// record.
	WithMemoryLimit int

	// WithTimeout bounds each invocation. The remaining time is reported in
	// each metrics record.
	WithTimeout time.Duration

	// WithRecorder writes a metrics record per invocation.
	WithRecorder struct{ *metrics.Recorder }

	// WithCollectors counts processed and rejected invocations.
	WithCollectors struct{ *metrics.Collectors }

	// WithMirror also publishes each processed message over MQTT.
	WithMirror struct {
		*protocol.Sender[signal.ProcessedMessage]
	}

	// WithHTTPClient sets the client used to reach the endpoint.
	WithHTTPClient struct{ *http.Client }

	withLogger struct{ *slog.Logger }
)

func (o WithMemoryLimit) function(opt *FunctionOptions) {
	opt.MemoryLimitMB = int(o)
}

func (o WithTimeout) function(opt *FunctionOptions) {
	opt.Timeout = time.Duration(o)
}

func (o WithRecorder) function(opt *FunctionOptions) {
	opt.Recorder = o.Recorder
}

func (o WithCollectors) function(opt *FunctionOptions) {
	opt.Collectors = o.Collectors
}

func (o WithMirror) function(opt *FunctionOptions) {
	opt.Mirror = o.Sender
}

func (o WithHTTPClient) invoker(opt *InvokerOptions) {
	opt.Client = o.Client
}

// WithLogger enables logging with the provided slog logger.
func WithLogger(l *slog.Logger) interface {
	FunctionOption
	InvokerOption
} {
	return withLogger{l}
}

func (o withLogger) function(opt *FunctionOptions) {
	opt.Logger = o.Logger
}

func (o withLogger) invoker(opt *InvokerOptions) {
	opt.Logger = o.Logger
}

// Apply resolves the provided list of options.
func (o *FunctionOptions) Apply(
	opts []FunctionOption,
	rest ...FunctionOption,
) {
	for opt := range options.Apply[FunctionOption](opts, rest...) {
		opt.function(o)
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
