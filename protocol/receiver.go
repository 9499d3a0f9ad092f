// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package protocol

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/edgebench/sigbench/errors"
	"github.com/edgebench/sigbench/internal/log"
	"github.com/edgebench/sigbench/internal/options"
	"github.com/edgebench/sigbench/internal/wallclock"
	"github.com/edgebench/sigbench/mqtt"
)

type (
	// Receiver decodes messages from a topic and hands them to a handler.
	// Messages that fail to decode or whose handler fails are logged and
	// dropped; they never stop the receiver.
	Receiver[T any] struct {
		listener *listener[T]
		handler  Handler[T]
		timeout  time.Duration
		onError  ErrorHandler
	}

	// ReceiverOption represents a single receiver option.
	ReceiverOption interface{ receiver(*ReceiverOptions) }

	// ReceiverOptions are the resolved receiver options.
	ReceiverOptions struct {
		Concurrency      uint
		ExecutionTimeout time.Duration
		ShareName        string
		OnError          ErrorHandler
		Logger           *slog.Logger
	}

	// Handler is the user-provided implementation of a message handler. It is
	// treated as blocking; all parallelism is handled by the receiver. This
	// *must* be thread-safe.
	Handler[T any] func(context.Context, *Message[T]) error
)

const receiverErrStr = "message handler"

// NewReceiver creates a new receiver for the topic.
func NewReceiver[T any](
	client mqtt.Client,
	encoding Encoding[T],
	topic string,
	handler Handler[T],
	opt ...ReceiverOption,
) (*Receiver[T], error) {
	var opts ReceiverOptions
	opts.Apply(opt)

	if client == nil || encoding == nil || handler == nil {
		return nil, &errors.Error{
			Message:      "client, encoding and handler must not be nil",
			Kind:         errors.ArgumentInvalid,
			PropertyName: "NewReceiver",
		}
	}
	if opts.ExecutionTimeout < 0 {
		return nil, &errors.Error{
			Message:       "timeout cannot be negative",
			Kind:          errors.ArgumentInvalid,
			PropertyName:  "ExecutionTimeout",
			PropertyValue: opts.ExecutionTimeout,
		}
	}
	if topic == "" {
		return nil, &errors.Error{
			Message:      "topic must not be empty",
			Kind:         errors.ConfigurationInvalid,
			PropertyName: "topic",
		}
	}

	r := &Receiver[T]{
		handler: handler,
		timeout: opts.ExecutionTimeout,
		onError: opts.OnError,
	}
	r.listener = &listener[T]{
		client:      client,
		encoding:    encoding,
		topic:       topic,
		shareName:   opts.ShareName,
		concurrency: opts.Concurrency,
		logger:      log.Wrap(opts.Logger),
		handler:     r,
	}
	return r, nil
}

// Listen to the MQTT topic. Returns a function to stop listening, which waits
// for in-flight handlers to return.
func (r *Receiver[T]) Listen(ctx context.Context) (func(), error) {
	return r.listener.listen(ctx)
}

func (r *Receiver[T]) onMsg(ctx context.Context, msg *Message[T]) error {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = wallclock.Instance.WithTimeoutCause(
			ctx,
			r.timeout,
			&errors.Error{
				Message:      "message handler timed out",
				Kind:         errors.Timeout,
				TimeoutName:  "ExecutionTimeout",
				TimeoutValue: r.timeout,
			},
		)
		defer cancel()
	}
	return r.handle(ctx, msg)
}

func (r *Receiver[T]) onErr(ctx context.Context, pub *mqtt.Message, err error) {
	r.listener.logger.Warn(ctx, "message dropped",
		append([]slog.Attr{slog.String("topic", pub.Topic)}, attrsOf(err)...)...,
	)
	if r.onError != nil {
		r.onError(ctx, pub.Topic, err)
	}
}

// Call handler with panic catch.
func (r *Receiver[T]) handle(ctx context.Context, msg *Message[T]) (err error) {
	defer func() {
		if ePanic := recover(); ePanic != nil {
			err = &errors.Error{
				Message: fmt.Sprintf("message handler panicked: %v", ePanic),
				Kind:    errors.Unknown,
			}
		}
	}()

	err = r.handler(ctx, msg)
	if e := ctx.Err(); e != nil && err != nil {
		// A context error overrides the error the handler returned.
		return errors.Context(ctx, receiverErrStr)
	}
	return err
}

func attrsOf(err error) []slog.Attr {
	if e, ok := errors.As(err); ok {
		return append([]slog.Attr{slog.String("error", e.Message)}, e.Attrs()...)
	}
	return []slog.Attr{slog.String("error", err.Error())}
}

// Apply resolves the provided list of options.
func (o *ReceiverOptions) Apply(
	opts []ReceiverOption,
	rest ...ReceiverOption,
) {
	for opt := range options.Apply[ReceiverOption](opts, rest...) {
		opt.receiver(o)
	}
}

func (o *ReceiverOptions) receiver(opt *ReceiverOptions) {
	if o != nil {
		*opt = *o
	}
}
