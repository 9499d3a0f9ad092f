// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package protocol

import (
	"context"
	"log/slog"
	"time"
)

type (
	// ErrorHandler observes messages that a receiver dropped.
	ErrorHandler func(ctx context.Context, topic string, err error)

	// WithConcurrency indicates how many handlers can execute in parallel.
	WithConcurrency uint

	// WithTimeout applies a context timeout to the send or handler
	// execution, as appropriate.
	WithTimeout time.Duration

	// WithShareName connects this receiver to a shared MQTT subscription.
	WithShareName string

	// WithMessageExpiry sets how long the broker holds an undelivered
	// message.
	WithMessageExpiry time.Duration

	// WithErrorHandler observes dropped messages in addition to logging them.
	WithErrorHandler ErrorHandler

	// This option is not used directly; see WithLogger below.
	withLogger struct{ *slog.Logger }
)

func (o WithConcurrency) receiver(opt *ReceiverOptions) {
	opt.Concurrency = uint(o)
}

func (o WithTimeout) receiver(opt *ReceiverOptions) {
	opt.ExecutionTimeout = time.Duration(o)
}

func (o WithTimeout) send(opt *SendOptions) {
	opt.Timeout = time.Duration(o)
}

func (o WithShareName) receiver(opt *ReceiverOptions) {
	opt.ShareName = string(o)
}

func (o WithMessageExpiry) send(opt *SendOptions) {
	opt.MessageExpiry = time.Duration(o)
}

func (o WithErrorHandler) receiver(opt *ReceiverOptions) {
	opt.OnError = ErrorHandler(o)
}

// WithLogger enables logging with the provided slog logger.
func WithLogger(logger *slog.Logger) interface {
	ReceiverOption
	SenderOption
} {
	return withLogger{logger}
}

func (o withLogger) receiver(opt *ReceiverOptions) {
	opt.Logger = o.Logger
}

func (o withLogger) sender(opt *SenderOptions) {
	opt.Logger = o.Logger
}
