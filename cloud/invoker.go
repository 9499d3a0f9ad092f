// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/edgebench/sigbench/errors"
	"github.com/edgebench/sigbench/internal/log"
	"github.com/edgebench/sigbench/internal/wallclock"
	"github.com/edgebench/sigbench/signal"
	"github.com/google/uuid"
)

// Invoker calls the cloud function over HTTP.
type Invoker struct {
	endpoint string
	client   *http.Client
	logger   log.Logger
}

const invokerErrStr = "cloud invocation"

// NewInvoker creates an invoker for the function's /invoke URL.
func NewInvoker(endpoint string, opt ...InvokerOption) (*Invoker, error) {
	var opts InvokerOptions
	opts.Apply(opt)

	u, err := url.Parse(endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, &errors.Error{
			Message:       "cloud endpoint must be an absolute http(s) URL",
			Kind:          errors.ConfigurationInvalid,
			NestedError:   err,
			PropertyName:  "cloud.endpoint",
			PropertyValue: endpoint,
		}
	}

	client := opts.Client
	if client == nil {
		client = http.DefaultClient
	}
	return &Invoker{
		endpoint: endpoint,
		client:   client,
		logger:   log.Wrap(opts.Logger).With("cloud_invoker"),
	}, nil
}

// Invoke posts the signal and blocks until the function responds, ctx is
// done, or the timeout elapses. A timeout of 0 waits on ctx alone.
func (i *Invoker) Invoke(
	ctx context.Context,
	raw []float64,
	timeout time.Duration,
) (*signal.ProcessedMessage, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, &errors.Error{
			Message:     "cannot generate request identifier",
			Kind:        errors.Unknown,
			NestedError: err,
		}
	}
	requestID := id.String()

	body, err := json.Marshal(signal.RawMessage{
		RequestID: requestID,
		Signal:    slices.Clone(raw),
	})
	if err != nil {
		return nil, &errors.Error{
			Message:     "cannot encode raw signal",
			Kind:        errors.ArgumentInvalid,
			NestedError: err,
		}
	}

	start := wallclock.Instance.Now()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = wallclock.Instance.WithTimeoutCause(
			ctx,
			timeout,
			&errors.Error{
				Message:      "no response before the timeout",
				Kind:         errors.Timeout,
				TimeoutName:  "timeout",
				TimeoutValue: timeout,
			},
		)
		defer cancel()
	}

	res, err := i.post(ctx, body)
	elapsed := wallclock.Instance.Since(start)
	if err != nil {
		if ctx.Err() != nil {
			err = errors.Context(ctx, invokerErrStr)
		}
		return nil, errors.WithElapsed(err, elapsed)
	}

	return i.decode(ctx, res, requestID, elapsed)
}

type response struct {
	status int
	body   []byte
}

func (i *Invoker) post(ctx context.Context, body []byte) (*response, error) {
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		i.endpoint,
		bytes.NewReader(body),
	)
	if err != nil {
		return nil, &errors.Error{
			Message:     "cannot build request",
			Kind:        errors.ArgumentInvalid,
			NestedError: err,
		}
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := i.client.Do(req)
	if err != nil {
		return nil, &errors.Error{
			Message:     "cannot reach cloud endpoint",
			Kind:        errors.Connection,
			NestedError: err,
		}
	}
	defer res.Body.Close()

	data, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return nil, &errors.Error{
			Message:     "cannot read cloud response",
			Kind:        errors.Connection,
			NestedError: err,
		}
	}
	return &response{status: res.StatusCode, body: data}, nil
}

func (i *Invoker) decode(
	ctx context.Context,
	res *response,
	requestID string,
	elapsed time.Duration,
) (*signal.ProcessedMessage, error) {
	if res.status < 200 || res.status > 299 {
		var eb ErrorBody
		if err := json.Unmarshal(res.body, &eb); err != nil || eb.Error == "" {
			eb.Error = http.StatusText(res.status)
		}
		return nil, &errors.Error{
			Message:       eb.Error,
			Kind:          errors.Remote,
			Elapsed:       elapsed,
			RemoteElapsed: seconds(eb.ProcessingTime),
			StatusCode:    res.status,
		}
	}

	var ok SuccessBody
	if err := json.Unmarshal(res.body, &ok); err != nil {
		return nil, &errors.Error{
			Message:     "cannot decode cloud response",
			Kind:        errors.Decode,
			NestedError: err,
			Elapsed:     elapsed,
		}
	}
	if ok.ProcessedSignal == nil {
		return nil, &errors.Error{
			Message:      "cloud response has no processed signal",
			Kind:         errors.Decode,
			Elapsed:      elapsed,
			PropertyName: "processed_signal",
		}
	}
	if got := ok.ProcessedSignal.RequestID; got != requestID {
		return nil, &errors.Error{
			Message:       fmt.Sprintf("response is for request %q", got),
			Kind:          errors.Decode,
			Elapsed:       elapsed,
			PropertyName:  "request_id",
			PropertyValue: got,
		}
	}

	i.logger.Debug(ctx, "invoked",
		slog.String("request_id", requestID),
		slog.Duration("elapsed", elapsed),
		slog.Float64("remote_processing_time", ok.ProcessingTime),
	)
	return ok.ProcessedSignal, nil
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
