// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package protocol

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/edgebench/sigbench/errors"
	"github.com/edgebench/sigbench/internal/log"
	"github.com/edgebench/sigbench/internal/options"
	"github.com/edgebench/sigbench/internal/wallclock"
	"github.com/edgebench/sigbench/mqtt"
)

type (
	// Sender encodes values and publishes them to a fixed topic with QoS 1.
	Sender[T any] struct {
		client   mqtt.Client
		encoding Encoding[T]
		topic    string
		logger   log.Logger
	}

	// SenderOption represents a single sender option.
	SenderOption interface{ sender(*SenderOptions) }

	// SenderOptions are the resolved sender options.
	SenderOptions struct {
		Logger *slog.Logger
	}

	// SendOption represents a single per-send option.
	SendOption interface{ send(*SendOptions) }

	// SendOptions are the resolved per-send options.
	SendOptions struct {
		Timeout       time.Duration
		MessageExpiry time.Duration
	}
)

const senderErrStr = "publish"

// NewSender creates a new sender for the topic.
func NewSender[T any](
	client mqtt.Client,
	encoding Encoding[T],
	topic string,
	opt ...SenderOption,
) (*Sender[T], error) {
	var opts SenderOptions
	for o := range options.Apply[SenderOption](opt) {
		o.sender(&opts)
	}

	if client == nil || encoding == nil {
		return nil, &errors.Error{
			Message:      "client and encoding must not be nil",
			Kind:         errors.ArgumentInvalid,
			PropertyName: "NewSender",
		}
	}
	if err := mqtt.ValidateTopicName(topic); err != nil {
		return nil, err
	}

	return &Sender[T]{
		client:   client,
		encoding: encoding,
		topic:    topic,
		logger:   log.Wrap(opts.Logger),
	}, nil
}

// Topic returns the topic the sender publishes to.
func (s *Sender[T]) Topic() string {
	return s.topic
}

// Send encodes and publishes the value, returning once the broker has
// acknowledged it.
func (s *Sender[T]) Send(ctx context.Context, val T, opt ...SendOption) error {
	var opts SendOptions
	for o := range options.Apply[SendOption](opt) {
		o.send(&opts)
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = wallclock.Instance.WithTimeoutCause(
			ctx,
			opts.Timeout,
			&errors.Error{
				Message:      "publish timed out",
				Kind:         errors.Timeout,
				TimeoutName:  "Timeout",
				TimeoutValue: opts.Timeout,
			},
		)
		defer cancel()
	}

	data, err := serialize(s.encoding, val)
	if err != nil {
		return err
	}

	pubOpts := []mqtt.PublishOption{
		mqtt.WithQoS(mqtt.QoS1),
		mqtt.WithContentType(data.ContentType),
		mqtt.WithPayloadFormat(data.PayloadFormat),
	}
	if opts.MessageExpiry > 0 {
		pubOpts = append(pubOpts, mqtt.WithMessageExpiry(
			uint32(min(math.Ceil(opts.MessageExpiry.Seconds()), math.MaxUint32)),
		))
	}

	if err := s.client.Publish(ctx, s.topic, data.Payload, pubOpts...); err != nil {
		if ctx.Err() != nil {
			return errors.Context(ctx, senderErrStr)
		}
		return err
	}
	s.logger.Debug(ctx, "sent", slog.String("topic", s.topic))
	return nil
}
