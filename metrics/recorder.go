// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Package metrics records per-invocation timing metrics to durable sinks and
// exposes the process's Prometheus series.
package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/edgebench/sigbench/errors"
	"github.com/edgebench/sigbench/internal/log"
	"github.com/edgebench/sigbench/internal/options"
	"github.com/edgebench/sigbench/iso"
)

type (
	// InvocationMetrics is the record written once per processed signal.
	InvocationMetrics struct {
		Timestamp      iso.DateTime `json:"timestamp"`
		ProcessingTime float64      `json:"processing_time"`
		SignalLength   int          `json:"signal_length"`

		// Resource fields reported by the cloud function only.
		MemoryLimitMB   *int   `json:"memory_used,omitempty"`
		RemainingTimeMS *int64 `json:"execution_time,omitempty"`
	}

	// Key identifies a metrics record by date partition and invocation.
	Key struct {
		Date string
		ID   string
	}

	// Sink durably stores encoded metrics records. It must support concurrent
	// calls.
	Sink interface {
		Put(ctx context.Context, key Key, record []byte) error
	}

	// Recorder encodes invocation metrics and writes them to a sink.
	Recorder struct {
		sink       Sink
		logger     log.Logger
		collectors *Collectors
	}

	// RecorderOption represents a single recorder option.
	RecorderOption interface{ recorder(*RecorderOptions) }

	// RecorderOptions are the resolved recorder options.
	RecorderOptions struct {
		Collectors *Collectors
		Logger     *slog.Logger
	}

	// WithCollectors counts record failures in the given collectors.
	WithCollectors struct{ *Collectors }

	withLogger struct{ *slog.Logger }
)

// NewInvocationMetrics builds a record for a signal processed in the given
// duration.
func NewInvocationMetrics(
	ts iso.DateTime,
	processing time.Duration,
	length int,
) InvocationMetrics {
	return InvocationMetrics{
		Timestamp:      ts,
		ProcessingTime: processing.Seconds(),
		SignalLength:   length,
	}
}

// Object returns the object-store key of the record.
func (k Key) Object() string {
	return fmt.Sprintf("metrics/%s/%s.json", k.Date, k.ID)
}

// NewRecorder creates a recorder writing to the sink.
func NewRecorder(sink Sink, opt ...RecorderOption) *Recorder {
	var opts RecorderOptions
	opts.Apply(opt)
	return &Recorder{
		sink:       sink,
		logger:     log.Wrap(opts.Logger).With("metrics"),
		collectors: opts.Collectors,
	}
}

// Record writes the metrics under the invocation identifier, partitioned by
// the record's UTC date.
func (r *Recorder) Record(
	ctx context.Context,
	id string,
	m InvocationMetrics,
) error {
	if r == nil || r.sink == nil {
		return nil
	}
	if id == "" {
		return &errors.Error{
			Message:      "invocation identifier must not be empty",
			Kind:         errors.Record,
			PropertyName: "id",
		}
	}

	data, err := json.Marshal(m)
	if err != nil {
		return &errors.Error{
			Message:     "cannot encode metrics record",
			Kind:        errors.Record,
			NestedError: err,
		}
	}

	key := Key{Date: m.Timestamp.Date(), ID: id}
	if err := r.sink.Put(ctx, key, data); err != nil {
		if e, ok := errors.As(err); ok && e.Kind == errors.Record {
			return e
		}
		return &errors.Error{
			Message:     fmt.Sprintf("cannot write metrics record %s", key.Object()),
			Kind:        errors.Record,
			NestedError: err,
		}
	}

	r.logger.Debug(ctx, "metrics recorded",
		slog.String("key", key.Object()),
		slog.Float64("processing_time", m.ProcessingTime),
	)
	return nil
}

// Observe records the metrics best-effort: failures are logged and counted,
// never returned.
func (r *Recorder) Observe(ctx context.Context, id string, m InvocationMetrics) {
	if err := r.Record(ctx, id, m); err != nil {
		r.logger.Err(ctx, err, slog.String("id", id))
		r.collectors.RecordFailed()
	}
}

// WithLogger enables logging with the provided slog logger.
func WithLogger(l *slog.Logger) RecorderOption {
	return withLogger{l}
}

func (o withLogger) recorder(opt *RecorderOptions) {
	opt.Logger = o.Logger
}

func (o WithCollectors) recorder(opt *RecorderOptions) {
	opt.Collectors = o.Collectors
}

// Apply resolves the provided list of options.
func (o *RecorderOptions) Apply(
	opts []RecorderOption,
	rest ...RecorderOption,
) {
	for opt := range options.Apply[RecorderOption](opts, rest...) {
		opt.recorder(o)
	}
}
