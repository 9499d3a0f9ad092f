// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package mqtt

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/eclipse/paho.golang/paho"
	"github.com/edgebench/sigbench/errors"
)

// Connack reason codes that indicate a transient broker condition.
var retryableConnack = map[byte]bool{
	0x88: true, // Server unavailable
	0x89: true, // Server busy
	0x97: true, // Quota exceeded
	0x9F: true, // Connection rate exceeded
}

// Start connects to the broker, retrying transient failures, and begins
// maintaining the connection in the background.
func (c *SessionClient) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started || c.stopped {
		c.mu.Unlock()
		return &errors.Error{
			Message:      "session client already started",
			Kind:         errors.StateInvalid,
			PropertyName: "SessionClient",
		}
	}
	c.started = true
	c.mu.Unlock()

	err := c.backoff(c.options.ConnectAttempts).Start(
		ctx,
		"connect",
		func(ctx context.Context) (bool, error) {
			return c.connect(ctx, true)
		},
	)
	if err != nil {
		close(c.done)
		return err
	}

	go c.maintain()
	return nil
}

// Stop disconnects from the broker and ends the maintenance loop. It is safe
// to call more than once.
func (c *SessionClient) Stop() error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	started := c.started
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	c.cancel()

	var err error
	if conn != nil {
		pkt := &paho.Disconnect{ReasonCode: 0}
		c.log.Packet(context.Background(), "disconnect", pkt)
		if e := conn.Disconnect(pkt); e != nil {
			err = &errors.Error{
				Message:     "MQTT disconnect failed",
				Kind:        errors.Connection,
				NestedError: e,
			}
		}
	}
	if started {
		<-c.done
	}
	return err
}

// Attempt a single connection, reporting whether a failure is retryable.
func (c *SessionClient) connect(
	ctx context.Context,
	cleanStart bool,
) (bool, error) {
	if c.options.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.options.ConnectTimeout)
		defer cancel()
	}

	netConn, err := c.connectionProvider(ctx)
	if err != nil {
		return true, err
	}

	var pc *paho.Client
	pc = paho.NewClient(paho.ClientConfig{
		ClientID: c.options.ClientID,
		Conn:     netConn,
		OnPublishReceived: []func(paho.PublishReceived) (bool, error){
			c.onPublishReceived,
		},
		OnClientError: func(err error) {
			c.onConnectionLost(pc, err)
		},
		OnServerDisconnect: func(d *paho.Disconnect) {
			c.log.Packet(c.ctx, "disconnect received", d)
			c.onConnectionLost(pc, &errors.Error{
				Message: fmt.Sprintf(
					"broker disconnected with reason code 0x%02X",
					d.ReasonCode,
				),
				Kind: errors.Connection,
			})
		},
	})

	expiry := uint32(min(c.options.SessionExpiry.Seconds(), math.MaxUint32))
	pkt := &paho.Connect{
		ClientID:   c.options.ClientID,
		CleanStart: cleanStart,
		KeepAlive:  uint16(min(c.options.KeepAlive.Seconds(), math.MaxUint16)),
		Properties: &paho.ConnectProperties{
			SessionExpiryInterval: &expiry,
			// Brokers strip user properties unless problem info is requested.
			RequestProblemInfo: true,
		},
	}
	c.log.Packet(ctx, "connect", pkt)

	connack, err := pc.Connect(ctx, pkt)
	if connack != nil {
		c.log.Packet(ctx, "connack", connack)
	}
	if err != nil {
		_ = netConn.Close()
		retry := connack == nil || retryableConnack[connack.ReasonCode]
		return retry, &errors.Error{
			Message:     "MQTT connect failed",
			Kind:        errors.Connection,
			NestedError: err,
		}
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		_ = pc.Disconnect(&paho.Disconnect{ReasonCode: 0})
		return false, &errors.Error{
			Message:      "session client stopped while connecting",
			Kind:         errors.StateInvalid,
			PropertyName: "SessionClient",
		}
	}
	c.conn = pc
	c.mu.Unlock()

	c.log.Info(ctx, "connected to MQTT broker",
		slog.String("client_id", c.options.ClientID),
		slog.Bool("session_present", connack.SessionPresent),
	)
	for fn := range c.connectHandlers.All() {
		fn()
	}
	return false, nil
}

// Called by paho from its own goroutines; events from a connection that is
// no longer current are ignored.
func (c *SessionClient) onConnectionLost(pc *paho.Client, err error) {
	c.mu.Lock()
	if pc == nil || c.conn != pc {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.mu.Unlock()

	c.log.Warn(c.ctx, "MQTT connection lost", slog.String("error", err.Error()))
	for fn := range c.disconnectHandlers.All() {
		fn(err)
	}
	select {
	case c.lost <- err:
	default:
	}
}

// Restore lost connections until stopped or the reconnect budget runs out.
func (c *SessionClient) maintain() {
	defer close(c.done)
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-c.lost:
		}

		err := c.backoff(c.options.ReconnectAttempts).Start(
			c.ctx,
			"reconnect",
			func(ctx context.Context) (bool, error) {
				return c.connect(ctx, false)
			},
		)
		if c.ctx.Err() != nil {
			return
		}
		if err != nil {
			c.log.Err(c.ctx, err)
			for fn := range c.fatalHandlers.All() {
				fn(err)
			}
			return
		}
		c.resubscribe(c.ctx)
	}
}
