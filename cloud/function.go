// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package cloud

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/edgebench/sigbench/errors"
	"github.com/edgebench/sigbench/internal/httpx"
	"github.com/edgebench/sigbench/internal/log"
	"github.com/edgebench/sigbench/internal/wallclock"
	"github.com/edgebench/sigbench/metrics"
	"github.com/edgebench/sigbench/protocol"
	"github.com/edgebench/sigbench/signal"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

// Function is the cloud processing endpoint. Each POST to /invoke carries a
// raw message and returns the processed one.
type Function struct {
	memoryLimitMB int
	timeout       time.Duration
	recorder      *metrics.Recorder
	collectors    *metrics.Collectors
	mirror        *protocol.Sender[signal.ProcessedMessage]
	logger        log.Logger
}

// Drop reasons reported to the collectors.
const (
	RejectDecode  = "cloud_decode"
	RejectProcess = "cloud_process"
)

// NewFunction creates the endpoint.
func NewFunction(opt ...FunctionOption) (*Function, error) {
	var opts FunctionOptions
	opts.Apply(opt)

	if opts.Timeout < 0 {
		return nil, &errors.Error{
			Message:       "timeout cannot be negative",
			Kind:          errors.ConfigurationInvalid,
			PropertyName:  "cloud.timeout",
			PropertyValue: opts.Timeout,
		}
	}
	if opts.MemoryLimitMB < 0 {
		return nil, &errors.Error{
			Message:       "memory limit cannot be negative",
			Kind:          errors.ConfigurationInvalid,
			PropertyName:  "cloud.memory_limit_mb",
			PropertyValue: opts.MemoryLimitMB,
		}
	}

	return &Function{
		memoryLimitMB: opts.MemoryLimitMB,
		timeout:       opts.Timeout,
		recorder:      opts.Recorder,
		collectors:    opts.Collectors,
		mirror:        opts.Mirror,
		logger:        log.Wrap(opts.Logger).With("function"),
	}, nil
}

// Handler routes the endpoint:
//
//	POST /invoke   process a raw message
//	GET  /healthz  liveness
//	GET  /metrics  Prometheus exposition, when g is not nil
func (f *Function) Handler(g prometheus.Gatherer) http.Handler {
	r := httpx.NewRouter(g)
	r.Post("/invoke", f.invoke)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return r
}

func (f *Function) invoke(w http.ResponseWriter, req *http.Request) {
	start := wallclock.Instance.Now()
	ctx := req.Context()

	var deadline time.Time
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = wallclock.Instance.WithTimeoutCause(
			ctx,
			f.timeout,
			&errors.Error{
				Message:      "invocation timed out",
				Kind:         errors.Timeout,
				TimeoutName:  "cloud.timeout",
				TimeoutValue: f.timeout,
			},
		)
		defer cancel()
		deadline = start.Add(f.timeout)
	}

	id, err := uuid.NewV7()
	if err != nil {
		f.fail(ctx, w, http.StatusInternalServerError, start, err)
		return
	}
	invocationID := id.String()
	w.Header().Set(InvocationIDHeader, invocationID)

	var raw signal.RawMessage
	dec := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxBodyBytes))
	if err := dec.Decode(&raw); err != nil {
		f.collectors.Dropped(RejectDecode)
		f.fail(ctx, w, http.StatusBadRequest, start, &errors.Error{
			Message:     "malformed request body: " + err.Error(),
			Kind:        errors.Decode,
			NestedError: err,
		})
		return
	}

	p, err := signal.Process(raw.Signal)
	if err != nil {
		f.collectors.Dropped(RejectProcess)
		f.fail(ctx, w, http.StatusInternalServerError, start, err)
		return
	}
	processing := wallclock.Instance.Since(start)
	out := p.Message(raw.RequestID)

	m := metrics.NewInvocationMetrics(p.Timestamp, processing, len(p.Signal))
	memory := f.memoryLimitMB
	m.MemoryLimitMB = &memory
	if !deadline.IsZero() {
		remaining := max(deadline.Sub(wallclock.Instance.Now()), 0).Milliseconds()
		m.RemainingTimeMS = &remaining
	}
	f.recorder.Observe(ctx, invocationID, m)
	f.collectors.Processed(metrics.PathCloud, processing)

	if f.mirror != nil {
		if err := f.mirror.Send(ctx, out); err != nil {
			f.logger.Warn(ctx, "mirror publish failed",
				slog.String("invocation_id", invocationID),
				slog.String("error", err.Error()),
			)
		}
	}

	f.logger.Debug(ctx, "signal processed",
		slog.String("invocation_id", invocationID),
		slog.String("request_id", raw.RequestID),
		slog.Duration("processing_time", processing),
	)
	httpx.WriteJSON(w, http.StatusOK, SuccessBody{
		Message:         SuccessMessage,
		ProcessingTime:  processing.Seconds(),
		ProcessedSignal: &out,
	})
}

func (f *Function) fail(
	ctx context.Context,
	w http.ResponseWriter,
	status int,
	start time.Time,
	err error,
) {
	f.logger.Warn(ctx, "invocation failed",
		slog.Int("status", status),
		slog.String("error", err.Error()),
	)
	httpx.WriteJSON(w, status, ErrorBody{
		Error:          err.Error(),
		ProcessingTime: wallclock.Instance.Since(start).Seconds(),
	})
}
