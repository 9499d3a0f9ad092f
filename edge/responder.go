// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Package edge implements the publish/subscribe processing path: a responder
// that turns raw signals into processed ones next to the broker, and an
// invoker that correlates those responses with the requests that caused them.
package edge

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/edgebench/sigbench/errors"
	"github.com/edgebench/sigbench/internal/container"
	"github.com/edgebench/sigbench/internal/log"
	"github.com/edgebench/sigbench/internal/wallclock"
	"github.com/edgebench/sigbench/metrics"
	"github.com/edgebench/sigbench/mqtt"
	"github.com/edgebench/sigbench/protocol"
	"github.com/edgebench/sigbench/signal"
)

type (
	// Transport is the MQTT session a responder drives.
	Transport interface {
		mqtt.Client
		Start(context.Context) error
		Stop() error
		RegisterFatalErrorHandler(func(error)) func()
	}

	// Responder processes raw signals from one topic and publishes the
	// results to another.
	Responder struct {
		client     Transport
		machine    Machine
		receiver   *protocol.Receiver[signal.RawMessage]
		sender     *protocol.Sender[signal.ProcessedMessage]
		recorder   *metrics.Recorder
		collectors *metrics.Collectors
		recent     *container.Ring[signal.ProcessedMessage]
		logger     log.Logger

		mu          sync.Mutex
		stopListen  func()
		removeFatal func()
		lost        chan error
	}
)

// Drop reasons reported to the collectors.
const (
	DropDecode  = "decode"
	DropProcess = "process"
	DropState   = "state"
	DropPublish = "publish"
	DropUnknown = "unknown"
)

// NewResponder creates a responder consuming rawTopic and producing to
// processedTopic. It does not connect until Start.
func NewResponder(
	client Transport,
	rawTopic, processedTopic string,
	opt ...ResponderOption,
) (*Responder, error) {
	opts := ResponderOptions{Retain: DefaultRetain}
	opts.Apply(opt)

	if client == nil {
		return nil, &errors.Error{
			Message:      "client must not be nil",
			Kind:         errors.ArgumentInvalid,
			PropertyName: "client",
		}
	}
	if opts.Retain < 0 {
		return nil, &errors.Error{
			Message:       "retain cannot be negative",
			Kind:          errors.ConfigurationInvalid,
			PropertyName:  "retain",
			PropertyValue: opts.Retain,
		}
	}

	r := &Responder{
		client:     client,
		recorder:   opts.Recorder,
		collectors: opts.Collectors,
		recent:     container.NewRing[signal.ProcessedMessage](opts.Retain),
		logger:     log.Wrap(opts.Logger).With("responder"),
		lost:       make(chan error, 1),
	}

	var err error
	r.sender, err = protocol.NewSender(
		client,
		protocol.JSON[signal.ProcessedMessage]{},
		processedTopic,
		protocol.WithLogger(opts.Logger),
	)
	if err != nil {
		return nil, err
	}
	r.receiver, err = protocol.NewReceiver(
		client,
		protocol.JSON[signal.RawMessage]{},
		rawTopic,
		r.handle,
		protocol.WithConcurrency(opts.Concurrency),
		protocol.WithErrorHandler(r.dropped),
		protocol.WithLogger(opts.Logger),
	)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// State returns the responder's current state.
func (r *Responder) State() State {
	return r.machine.State()
}

// Observe registers a state transition observer. Returns a function to
// remove it.
func (r *Responder) Observe(fn func(Transition)) func() {
	return r.machine.Observe(fn)
}

// Start connects to the broker and subscribes to the raw topic, leaving the
// responder Subscribed. Messages are dropped until Serve is called.
func (r *Responder) Start(ctx context.Context) error {
	if _, err := r.machine.Fire(EventStart); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.client.Start(ctx); err != nil {
		r.fail(EventStop)
		return err
	}
	r.removeFatal = r.client.RegisterFatalErrorHandler(r.onFatal)

	stop, err := r.receiver.Listen(ctx)
	if err != nil {
		r.removeFatal()
		_ = r.client.Stop()
		r.fail(EventStop)
		return err
	}
	r.stopListen = stop

	if _, err := r.machine.Fire(EventSubscribed); err != nil {
		// A fatal loss raced the subscription.
		r.teardown()
		return err
	}
	r.logger.Info(ctx, "subscribed")
	return nil
}

// Serve begins processing inbound messages.
func (r *Responder) Serve(ctx context.Context) error {
	if _, err := r.machine.Fire(EventServe); err != nil {
		return err
	}
	r.logger.Info(ctx, "running")
	return nil
}

// Stop unsubscribes, waits for in-flight messages and disconnects.
func (r *Responder) Stop() error {
	if _, err := r.machine.Fire(EventStop); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.teardown()
}

// Run starts and serves the responder, blocking until ctx is done or the
// connection is lost for good.
func (r *Responder) Run(ctx context.Context) error {
	if err := r.Start(ctx); err != nil {
		return err
	}
	if err := r.Serve(ctx); err != nil {
		_ = r.Stop()
		return err
	}

	select {
	case <-ctx.Done():
		if err := r.Stop(); err != nil {
			r.logger.Err(ctx, err)
		}
		return nil
	case err := <-r.lost:
		return err
	}
}

// Recent returns the most recently published messages, oldest first.
func (r *Responder) Recent() []signal.ProcessedMessage {
	return r.recent.Snapshot()
}

func (r *Responder) handle(
	ctx context.Context,
	msg *protocol.Message[signal.RawMessage],
) error {
	if st := r.machine.State(); st != Running {
		return &errors.Error{
			Message:       fmt.Sprintf("responder is %s", st),
			Kind:          errors.StateInvalid,
			PropertyName:  "state",
			PropertyValue: st.String(),
		}
	}

	raw := msg.Payload
	if raw.RequestID == "" {
		return &errors.Error{
			Message:      "raw message has no request identifier",
			Kind:         errors.Decode,
			PropertyName: "request_id",
		}
	}

	p, err := signal.Process(raw.Signal)
	if err != nil {
		return err
	}

	out := p.Message(raw.RequestID)
	if err := r.sender.Send(ctx, out); err != nil {
		return err
	}
	elapsed := wallclock.Instance.Since(msg.ReceivedAt)

	r.recent.Push(out)
	r.collectors.Processed(metrics.PathEdge, elapsed)
	r.recorder.Observe(
		ctx,
		raw.RequestID,
		metrics.NewInvocationMetrics(p.Timestamp, elapsed, len(p.Signal)),
	)
	r.logger.Debug(ctx, "signal processed",
		slog.String("request_id", raw.RequestID),
		slog.Int("signal_length", len(p.Signal)),
		slog.Duration("processing_time", elapsed),
	)
	return nil
}

func (r *Responder) dropped(_ context.Context, _ string, err error) {
	r.collectors.Dropped(dropReason(err))
}

func dropReason(err error) string {
	switch errors.KindOf(err) {
	case errors.Decode:
		return DropDecode
	case errors.EmptyInput, errors.ArgumentInvalid:
		return DropProcess
	case errors.StateInvalid:
		return DropState
	case errors.Connection, errors.Timeout, errors.Cancellation:
		return DropPublish
	default:
		return DropUnknown
	}
}

func (r *Responder) onFatal(err error) {
	if _, e := r.machine.Fire(EventLost); e != nil {
		return
	}
	r.logger.Err(context.Background(), err)

	// The session is gone; release the subscription without blocking the
	// client's callback.
	go func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		_ = r.teardown()
	}()

	select {
	case r.lost <- err:
	default:
	}
}

// Must hold r.mu.
func (r *Responder) teardown() error {
	if r.stopListen != nil {
		r.stopListen()
		r.stopListen = nil
	}
	if r.removeFatal != nil {
		r.removeFatal()
		r.removeFatal = nil
	}
	return r.client.Stop()
}

func (r *Responder) fail(e Event) {
	if _, err := r.machine.Fire(e); err != nil {
		r.logger.Err(context.Background(), err)
	}
}
