// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Package broker embeds an in-process MQTT v5 broker, used for local runs of
// the edge path and for tests.
package broker

import (
	"io"
	"log/slog"
	"net"
	"strconv"

	"github.com/edgebench/sigbench/errors"
	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
)

// Broker is a running embedded broker.
type Broker struct {
	server *mochi.Server
	host   string
	port   int
}

// Start serves an MQTT broker on the given TCP address. Every client is
// allowed to connect, as transport security is out of scope.
func Start(addr string, logger *slog.Logger) (*Broker, error) {
	host, p, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, invalidAddr(addr, err)
	}
	port, err := strconv.Atoi(p)
	if err != nil {
		return nil, invalidAddr(addr, err)
	}
	if host == "" {
		host = "localhost"
	}

	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	server := mochi.New(&mochi.Options{
		Logger: logger.With(slog.String("component", "broker")),
	})

	if err := server.AddHook(&auth.AllowHook{}, nil); err != nil {
		return nil, brokerError("cannot add broker auth hook", err)
	}

	tcp := listeners.NewTCP(listeners.Config{
		ID:      "tcp",
		Type:    "tcp",
		Address: addr,
	})
	if err := server.AddListener(tcp); err != nil {
		return nil, brokerError("cannot add broker listener", err)
	}

	if err := server.Serve(); err != nil {
		return nil, brokerError("cannot serve broker", err)
	}
	return &Broker{server: server, host: host, port: port}, nil
}

// Local starts a broker on a free loopback port.
func Local(logger *slog.Logger) (*Broker, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, brokerError("cannot reserve a local port", err)
	}
	addr := l.Addr().String()
	if err := l.Close(); err != nil {
		return nil, brokerError("cannot release a local port", err)
	}
	return Start(addr, logger)
}

// Host returns the host clients should dial.
func (b *Broker) Host() string {
	return b.host
}

// Port returns the TCP port the broker listens on.
func (b *Broker) Port() int {
	return b.port
}

// Close stops the broker and disconnects every client.
func (b *Broker) Close() error {
	if err := b.server.Close(); err != nil {
		return brokerError("cannot close broker", err)
	}
	return nil
}

func invalidAddr(addr string, err error) error {
	return &errors.Error{
		Message:       "invalid broker address",
		Kind:          errors.ConfigurationInvalid,
		NestedError:   err,
		PropertyName:  "addr",
		PropertyValue: addr,
	}
}

func brokerError(msg string, err error) error {
	return &errors.Error{
		Message:     msg,
		Kind:        errors.Connection,
		NestedError: err,
	}
}
