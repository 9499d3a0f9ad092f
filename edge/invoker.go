// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package edge

import (
	"context"
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	"github.com/edgebench/sigbench/errors"
	"github.com/edgebench/sigbench/internal/container"
	"github.com/edgebench/sigbench/internal/log"
	"github.com/edgebench/sigbench/internal/wallclock"
	"github.com/edgebench/sigbench/mqtt"
	"github.com/edgebench/sigbench/protocol"
	"github.com/edgebench/sigbench/signal"
	"github.com/google/uuid"
)

type (
	// Invoker publishes raw signals and waits for the matching processed
	// message. All invocations share one subscription to the processed topic
	// and are told apart by request identifier.
	//
	// The responder must run on a different MQTT session, since the
	// subscription does not receive the session's own publishes.
	Invoker struct {
		sender    *protocol.Sender[signal.RawMessage]
		receiver  *protocol.Receiver[signal.ProcessedMessage]
		pending   container.SyncMap[string, invokerPending]
		listening atomic.Bool
		logger    log.Logger
	}

	invokerPending struct {
		ret  chan *signal.ProcessedMessage
		done chan struct{}
	}
)

const invokerErrStr = "edge invocation"

// NewInvoker creates an invoker publishing to rawTopic and correlating
// responses from processedTopic.
func NewInvoker(
	client mqtt.Client,
	rawTopic, processedTopic string,
	opt ...InvokerOption,
) (*Invoker, error) {
	var opts InvokerOptions
	opts.Apply(opt)

	i := &Invoker{
		pending: container.NewSyncMap[string, invokerPending](),
		logger:  log.Wrap(opts.Logger).With("edge_invoker"),
	}

	var err error
	i.sender, err = protocol.NewSender(
		client,
		protocol.JSON[signal.RawMessage]{},
		rawTopic,
		protocol.WithLogger(opts.Logger),
	)
	if err != nil {
		return nil, err
	}
	i.receiver, err = protocol.NewReceiver(
		client,
		protocol.JSON[signal.ProcessedMessage]{},
		processedTopic,
		i.handle,
		protocol.WithLogger(opts.Logger),
	)
	if err != nil {
		return nil, err
	}
	return i, nil
}

// Listen subscribes to the processed topic. Returns a function to stop
// listening.
func (i *Invoker) Listen(ctx context.Context) (func(), error) {
	stop, err := i.receiver.Listen(ctx)
	if err != nil {
		return nil, err
	}
	i.listening.Store(true)
	return func() {
		i.listening.Store(false)
		stop()
	}, nil
}

// Invoke publishes the signal and blocks until its processed message arrives,
// ctx is done, or the timeout elapses. A timeout of 0 waits on ctx alone.
func (i *Invoker) Invoke(
	ctx context.Context,
	raw []float64,
	timeout time.Duration,
) (*signal.ProcessedMessage, error) {
	if !i.listening.Load() {
		return nil, &errors.Error{
			Message: "invoker is not listening for responses",
			Kind:    errors.StateInvalid,
		}
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, &errors.Error{
			Message:     "cannot generate request identifier",
			Kind:        errors.Unknown,
			NestedError: err,
		}
	}
	requestID := id.String()

	start := wallclock.Instance.Now()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = wallclock.Instance.WithTimeoutCause(
			ctx,
			timeout,
			&errors.Error{
				Message:      "no processed message before the timeout",
				Kind:         errors.Timeout,
				TimeoutName:  "timeout",
				TimeoutValue: timeout,
			},
		)
		defer cancel()
	}

	listen, done := i.initPending(requestID)
	defer done()

	msg := signal.RawMessage{RequestID: requestID, Signal: slices.Clone(raw)}
	if err := i.sender.Send(ctx, msg); err != nil {
		switch {
		case ctx.Err() != nil:
			err = errors.Context(ctx, invokerErrStr)
		case !errors.IsKind(err, errors.ArgumentInvalid):
			err = &errors.Error{
				Message:     "cannot publish raw signal",
				Kind:        errors.Connection,
				NestedError: err,
			}
		}
		return nil, errors.WithElapsed(err, wallclock.Instance.Since(start))
	}

	select {
	case res := <-listen:
		return res, nil
	case <-ctx.Done():
		err := errors.Context(ctx, invokerErrStr)
		return nil, errors.WithElapsed(err, wallclock.Instance.Since(start))
	}
}

// Initialize channels for a pending response.
func (i *Invoker) initPending(
	requestID string,
) (<-chan *signal.ProcessedMessage, func()) {
	ret := make(chan *signal.ProcessedMessage)
	done := make(chan struct{})
	i.pending.Insert(requestID, invokerPending{ret, done})
	return ret, func() {
		i.pending.Delete(requestID)
		close(done)
	}
}

// Hand a response to its pending invocation, if there is one.
func (i *Invoker) handle(
	ctx context.Context,
	msg *protocol.Message[signal.ProcessedMessage],
) error {
	res := msg.Payload
	pending, ok := i.pending.Load(res.RequestID)
	if !ok {
		i.logger.Debug(ctx, "response discarded",
			slog.String("request_id", res.RequestID),
		)
		return nil
	}

	select {
	case pending.ret <- &res:
	case <-pending.done:
	case <-ctx.Done():
	}
	return nil
}

// Pending returns the number of invocations awaiting a response.
func (i *Invoker) Pending() int {
	return i.pending.Len()
}
