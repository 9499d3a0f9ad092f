// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package mqtt

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/eclipse/paho.golang/paho"
	"github.com/edgebench/sigbench/errors"
)

type subscription struct {
	client  *SessionClient
	filter  string
	handler MessageHandler
	opts    SubscribeOptions
}

// Subscribe registers a handler for a topic filter and subscribes to it. The
// subscription is restored automatically after a reconnect.
func (c *SessionClient) Subscribe(
	ctx context.Context,
	topic string,
	handler MessageHandler,
	opts ...SubscribeOption,
) (Subscription, error) {
	if handler == nil {
		return nil, &errors.Error{
			Message:      "subscription handler must not be nil",
			Kind:         errors.ArgumentInvalid,
			PropertyName: "handler",
		}
	}

	sub := &subscription{client: c, filter: topic, handler: handler}
	sub.opts.Apply(opts)

	// Register before subscribing so messages delivered immediately after the
	// SUBACK are not lost.
	c.subsMu.Lock()
	if _, ok := c.subs[topic]; ok {
		c.subsMu.Unlock()
		return nil, &errors.Error{
			Message:       "duplicate subscription",
			Kind:          errors.ConfigurationInvalid,
			PropertyName:  "topic",
			PropertyValue: topic,
		}
	}
	c.subs[topic] = sub
	c.subsMu.Unlock()

	if err := c.subscribe(ctx, sub); err != nil {
		c.removeSubscription(topic)
		return nil, err
	}
	return sub, nil
}

// Unsubscribe removes the handler and unsubscribes from the topic filter.
func (s *subscription) Unsubscribe(ctx context.Context) error {
	c := s.client
	c.removeSubscription(s.filter)

	pc := c.current()
	if pc == nil {
		// The broker session will not be resumed with this subscription.
		return nil
	}

	pkt := &paho.Unsubscribe{Topics: []string{s.filter}}
	c.log.Packet(ctx, "unsubscribe", pkt)
	unsuback, err := pc.Unsubscribe(ctx, pkt)
	if err != nil {
		return c.packetError(ctx, "unsubscribe", err)
	}
	c.log.Packet(ctx, "unsuback", unsuback)
	return nil
}

func (c *SessionClient) subscribe(ctx context.Context, sub *subscription) error {
	pc := c.current()
	if pc == nil {
		return c.notConnected()
	}

	pkt := &paho.Subscribe{
		Subscriptions: []paho.SubscribeOptions{{
			Topic:   sub.filter,
			QoS:     byte(sub.opts.QoS),
			NoLocal: sub.opts.NoLocal,
		}},
	}
	c.log.Packet(ctx, "subscribe", pkt)

	suback, err := pc.Subscribe(ctx, pkt)
	if err != nil {
		return c.packetError(ctx, "subscribe", err)
	}
	c.log.Packet(ctx, "suback", suback)

	if len(suback.Reasons) > 0 && suback.Reasons[0] >= 0x80 {
		return &errors.Error{
			Message: fmt.Sprintf(
				"subscription to %q rejected with reason code 0x%02X",
				sub.filter,
				suback.Reasons[0],
			),
			Kind: errors.Connection,
		}
	}
	return nil
}

func (c *SessionClient) removeSubscription(topic string) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	delete(c.subs, topic)
}

func (c *SessionClient) subscriptions() []*subscription {
	c.subsMu.RLock()
	defer c.subsMu.RUnlock()
	subs := make([]*subscription, 0, len(c.subs))
	for _, sub := range c.subs {
		subs = append(subs, sub)
	}
	return subs
}

func (c *SessionClient) resubscribe(ctx context.Context) {
	for _, sub := range c.subscriptions() {
		if err := c.subscribe(ctx, sub); err != nil {
			c.log.Err(ctx, err, slog.String("topic", sub.filter))
		}
	}
}

// Route an inbound publish to every matching subscription. Runs on paho's
// receive goroutine.
func (c *SessionClient) onPublishReceived(
	pr paho.PublishReceived,
) (bool, error) {
	c.log.Packet(c.ctx, "publish received", pr.Packet)
	msg := buildMessage(pr.Packet)

	var handled bool
	for _, sub := range c.subscriptions() {
		if !IsTopicFilterMatch(sub.filter, msg.Topic) {
			continue
		}
		handled = true
		if err := sub.handler(c.ctx, msg); err != nil {
			c.log.Err(c.ctx, err, slog.String("topic", msg.Topic))
		}
	}
	return handled, nil
}

func (c *SessionClient) packetError(
	ctx context.Context,
	op string,
	err error,
) error {
	if ctx.Err() != nil {
		return errors.Context(ctx, op)
	}
	return &errors.Error{
		Message:     fmt.Sprintf("MQTT %s failed", op),
		Kind:        errors.Connection,
		NestedError: err,
	}
}
