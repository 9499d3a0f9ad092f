// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package mqtt

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/eclipse/paho.golang/paho"
	"github.com/edgebench/sigbench/errors"
	"github.com/edgebench/sigbench/internal/container"
	"github.com/edgebench/sigbench/internal/log"
	"github.com/edgebench/sigbench/internal/options"
	"github.com/edgebench/sigbench/mqtt/retry"
)

type (
	// SessionClient implements an MQTT session client that keeps one broker
	// connection alive for the lifetime of the process. Lost connections are
	// re-established with exponential backoff and the registered
	// subscriptions are restored.
	SessionClient struct {
		connectionProvider ConnectionProvider
		options            SessionClientOptions
		log                logger

		// Lifecycle of the maintenance loop and of handler contexts.
		ctx    context.Context
		cancel context.CancelFunc
		done   chan struct{}
		lost   chan error

		mu      sync.RWMutex
		conn    *paho.Client
		started bool
		stopped bool

		subsMu sync.RWMutex
		subs   map[string]*subscription

		connectHandlers    container.Handlers[func()]
		disconnectHandlers container.Handlers[func(error)]
		fatalHandlers      container.Handlers[func(error)]
	}

	// SessionClientOptions are the resolved session client options.
	SessionClientOptions struct {
		ClientID          string
		KeepAlive         time.Duration
		SessionExpiry     time.Duration
		ConnectTimeout    time.Duration
		ConnectAttempts   uint64
		ReconnectAttempts uint64
		Logger            *slog.Logger
	}

	// SessionClientOption represents a single session client option.
	SessionClientOption interface{ sessionClient(*SessionClientOptions) }

	// WithClientID sets the MQTT client identifier; a random one is
	// generated if unset.
	WithClientID string

	// WithKeepAlive sets the MQTT keep-alive interval.
	WithKeepAlive time.Duration

	// WithSessionExpiry sets how long the broker retains the session after a
	// disconnect.
	WithSessionExpiry time.Duration

	// WithConnectTimeout bounds each individual connection attempt.
	WithConnectTimeout time.Duration

	// WithConnectAttempts bounds the attempts made by Start; 0 is unlimited.
	WithConnectAttempts uint64

	// WithReconnectAttempts bounds the attempts made to restore a lost
	// connection before the fatal error handlers run; 0 is unlimited.
	WithReconnectAttempts uint64

	withLogger struct{ *slog.Logger }
)

// NewSessionClient creates a session client that connects using the given
// connection provider. It does not connect until Start is called.
func NewSessionClient(
	connectionProvider ConnectionProvider,
	opt ...SessionClientOption,
) (*SessionClient, error) {
	opts := SessionClientOptions{
		KeepAlive:       60 * time.Second,
		SessionExpiry:   time.Hour,
		ConnectTimeout:  10 * time.Second,
		ConnectAttempts: 5,
	}
	opts.Apply(opt)

	if connectionProvider == nil {
		return nil, &errors.Error{
			Message:      "connection provider must not be nil",
			Kind:         errors.ArgumentInvalid,
			PropertyName: "connectionProvider",
		}
	}
	if opts.ClientID == "" {
		opts.ClientID = randomClientID()
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &SessionClient{
		connectionProvider: connectionProvider,
		options:            opts,
		log:                logger{log.Wrap(opts.Logger).With("mqtt")},
		ctx:                ctx,
		cancel:             cancel,
		done:               make(chan struct{}),
		lost:               make(chan error, 1),
		subs:               map[string]*subscription{},
	}
	return c, nil
}

// ID returns the MQTT client identifier.
func (c *SessionClient) ID() string {
	return c.options.ClientID
}

// Connected reports whether the client currently holds a broker connection.
func (c *SessionClient) Connected() bool {
	return c.current() != nil
}

// RegisterConnectEventHandler registers a handler that runs after every
// successful connection. It returns a function to remove the handler.
func (c *SessionClient) RegisterConnectEventHandler(fn func()) func() {
	return c.connectHandlers.Add(fn)
}

// RegisterDisconnectEventHandler registers a handler that runs when the
// connection is lost unexpectedly.
func (c *SessionClient) RegisterDisconnectEventHandler(
	fn func(error),
) func() {
	return c.disconnectHandlers.Add(fn)
}

// RegisterFatalErrorHandler registers a handler that runs when the client
// gives up on restoring a lost connection.
func (c *SessionClient) RegisterFatalErrorHandler(fn func(error)) func() {
	return c.fatalHandlers.Add(fn)
}

func (c *SessionClient) current() *paho.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn
}

func (c *SessionClient) notConnected() error {
	return &errors.Error{
		Message: "not connected to the MQTT broker",
		Kind:    errors.Connection,
	}
}

// Apply resolves the provided list of options.
func (o *SessionClientOptions) Apply(
	opts []SessionClientOption,
	rest ...SessionClientOption,
) {
	for opt := range options.Apply[SessionClientOption](opts, rest...) {
		opt.sessionClient(o)
	}
}

func (o *SessionClientOptions) sessionClient(opt *SessionClientOptions) {
	if o != nil {
		*opt = *o
	}
}

func (o WithClientID) sessionClient(opt *SessionClientOptions) {
	opt.ClientID = string(o)
}

func (o WithKeepAlive) sessionClient(opt *SessionClientOptions) {
	opt.KeepAlive = time.Duration(o)
}

func (o WithSessionExpiry) sessionClient(opt *SessionClientOptions) {
	opt.SessionExpiry = time.Duration(o)
}

func (o WithConnectTimeout) sessionClient(opt *SessionClientOptions) {
	opt.ConnectTimeout = time.Duration(o)
}

func (o WithConnectAttempts) sessionClient(opt *SessionClientOptions) {
	opt.ConnectAttempts = uint64(o)
}

func (o WithReconnectAttempts) sessionClient(opt *SessionClientOptions) {
	opt.ReconnectAttempts = uint64(o)
}

// WithLogger enables logging with the provided slog logger.
func WithLogger(l *slog.Logger) SessionClientOption {
	return withLogger{l}
}

func (o withLogger) sessionClient(opt *SessionClientOptions) {
	opt.Logger = o.Logger
}

// ClientIDs must be between 1 and 23 bytes and only contain alphanumeric
// characters.
const maxClientIDLength = 23

var clientIDCharacters = []byte(
	"0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ",
)

func randomClientID() string {
	id := make([]byte, maxClientIDLength)
	for i := range id {
		// #nosec G404
		id[i] = clientIDCharacters[rand.IntN(len(clientIDCharacters))]
	}
	return string(id)
}

func (c *SessionClient) backoff(attempts uint64) *retry.ExponentialBackoff {
	return &retry.ExponentialBackoff{
		MaxAttempts: attempts,
		MaxInterval: 10 * time.Second,
		Logger:      c.options.Logger,
	}
}
