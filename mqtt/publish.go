// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package mqtt

import (
	"context"
	"fmt"

	"github.com/eclipse/paho.golang/paho"
	"github.com/edgebench/sigbench/errors"
)

// Publish sends a message on the current connection. It fails with a
// Connection error if the client is between connections.
func (c *SessionClient) Publish(
	ctx context.Context,
	topic string,
	payload []byte,
	opts ...PublishOption,
) error {
	if err := ValidateTopicName(topic); err != nil {
		return err
	}

	var opt PublishOptions
	opt.Apply(opts)

	pc := c.current()
	if pc == nil {
		return c.notConnected()
	}

	pkt := buildPublish(topic, payload, &opt)
	c.log.Packet(ctx, "publish", pkt)

	res, err := pc.Publish(ctx, pkt)
	if err != nil {
		return c.packetError(ctx, "publish", err)
	}
	if res != nil {
		c.log.Packet(ctx, "puback", res)
		if res.ReasonCode >= 0x80 {
			return &errors.Error{
				Message: fmt.Sprintf(
					"publish to %q rejected with reason code 0x%02X",
					topic,
					res.ReasonCode,
				),
				Kind: errors.Connection,
			}
		}
	}
	return nil
}

func buildPublish(
	topic string,
	payload []byte,
	opt *PublishOptions,
) *paho.Publish {
	props := &paho.PublishProperties{
		ContentType: opt.ContentType,
		User:        mapToUserProperties(opt.UserProperties),
	}
	if opt.PayloadFormat != 0 {
		pf := opt.PayloadFormat
		props.PayloadFormat = &pf
	}
	if opt.MessageExpiry != 0 {
		me := opt.MessageExpiry
		props.MessageExpiry = &me
	}
	return &paho.Publish{
		QoS:        byte(opt.QoS),
		Retain:     opt.Retain,
		Topic:      topic,
		Payload:    payload,
		Properties: props,
	}
}

func buildMessage(p *paho.Publish) *Message {
	msg := &Message{
		Topic:   p.Topic,
		Payload: p.Payload,
		PublishOptions: PublishOptions{
			QoS:    QoS(p.QoS),
			Retain: p.Retain,
		},
	}
	if p.Properties != nil {
		msg.ContentType = p.Properties.ContentType
		msg.UserProperties = userPropertiesToMap(p.Properties.User)
		if p.Properties.PayloadFormat != nil {
			msg.PayloadFormat = *p.Properties.PayloadFormat
		}
		if p.Properties.MessageExpiry != nil {
			msg.MessageExpiry = *p.Properties.MessageExpiry
		}
	}
	return msg
}

func userPropertiesToMap(ups paho.UserProperties) map[string]string {
	if len(ups) == 0 {
		return nil
	}
	m := make(map[string]string, len(ups))
	for _, prop := range ups {
		m[prop.Key] = prop.Value
	}
	return m
}

func mapToUserProperties(m map[string]string) paho.UserProperties {
	ups := make(paho.UserProperties, 0, len(m))
	for key, value := range m {
		ups = append(ups, paho.UserProperty{Key: key, Value: value})
	}
	return ups
}
