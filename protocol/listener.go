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
	"github.com/edgebench/sigbench/internal/wallclock"
	"github.com/edgebench/sigbench/mqtt"
	"github.com/edgebench/sigbench/protocol/internal"
)

type (
	// Listener represents an object which will listen to a MQTT topic.
	Listener interface {
		Listen(context.Context) (func(), error)
	}

	// Message is a decoded inbound message.
	Message[T any] struct {
		Payload T
		Topic   string

		// ReceivedAt is taken when the message arrives from the broker, before
		// it is queued for a handler, and carries a monotonic reading.
		ReceivedAt time.Time

		UserProperties map[string]string
	}

	// Provide the shared implementation details for the MQTT listeners.
	listener[T any] struct {
		client      mqtt.Client
		encoding    Encoding[T]
		topic       string
		shareName   string
		concurrency uint
		logger      log.Logger
		handler     interface {
			onMsg(context.Context, *Message[T]) error
			onErr(context.Context, *mqtt.Message, error)
		}
	}

	inbound struct {
		pub *mqtt.Message
		at  time.Time
	}
)

func (l *listener[T]) listen(ctx context.Context) (func(), error) {
	handle, done := internal.Concurrent(l.concurrency, l.handle)

	filter := l.topic
	if l.shareName != "" {
		filter = "$share/" + l.shareName + "/" + filter
	}

	sub, err := l.client.Subscribe(
		ctx,
		filter,
		func(ctx context.Context, pub *mqtt.Message) error {
			handle(ctx, inbound{pub, wallclock.Instance.Now()})
			return nil
		},
		mqtt.WithQoS(1),
		mqtt.WithNoLocal(l.shareName == ""),
	)
	if err != nil {
		done()
		return nil, err
	}

	l.logger.Info(ctx, "listening", slog.String("topic", filter))
	return func() {
		if err := sub.Unsubscribe(context.WithoutCancel(ctx)); err != nil {
			// Returning an error from a close function that is most likely to
			// be deferred is rarely useful, so just log it.
			l.logger.Err(ctx, err)
		}
		done()
	}, nil
}

func (l *listener[T]) handle(ctx context.Context, in inbound) {
	payload, err := l.payload(in.pub)
	if err != nil {
		l.handler.onErr(ctx, in.pub, err)
		return
	}

	msg := &Message[T]{
		Payload:        payload,
		Topic:          in.pub.Topic,
		ReceivedAt:     in.at,
		UserProperties: in.pub.UserProperties,
	}
	if err := l.handler.onMsg(ctx, msg); err != nil {
		l.handler.onErr(ctx, in.pub, err)
	}
}

// Validate the payload headers before decoding.
func (l *listener[T]) payload(pub *mqtt.Message) (T, error) {
	var zero T

	if pub.PayloadFormat > 1 {
		return zero, &errors.Error{
			Message:       "payload format indicator invalid",
			Kind:          errors.Decode,
			PropertyName:  "PayloadFormat",
			PropertyValue: fmt.Sprint(pub.PayloadFormat),
		}
	}

	return deserialize(l.encoding, &Data{
		Payload:       pub.Payload,
		ContentType:   pub.ContentType,
		PayloadFormat: pub.PayloadFormat,
	})
}

// Listen starts all of the provided listeners.
func Listen(ctx context.Context, listeners ...Listener) (func(), error) {
	done := make([]func(), 0, len(listeners))
	for _, l := range listeners {
		c, err := l.Listen(ctx)
		if err != nil {
			for _, fn := range done {
				fn()
			}
			return nil, err
		}
		done = append(done, c)
	}
	return func() {
		for _, fn := range done {
			fn()
		}
	}, nil
}
