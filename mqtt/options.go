// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package mqtt

import "github.com/edgebench/sigbench/internal/options"

type (
	// QoS is the MQTT quality of service level.
	QoS byte

	// PublishOptions are the resolved publish options.
	PublishOptions struct {
		ContentType    string
		MessageExpiry  uint32
		PayloadFormat  byte
		QoS            QoS
		Retain         bool
		UserProperties map[string]string
	}

	// PublishOption represents a single publish option.
	PublishOption interface{ publish(*PublishOptions) }

	// SubscribeOptions are the resolved subscribe options.
	SubscribeOptions struct {
		NoLocal bool
		QoS     QoS
	}

	// SubscribeOption represents a single subscribe option.
	SubscribeOption interface{ subscribe(*SubscribeOptions) }

	// WithContentType sets the content type for the publish.
	WithContentType string

	// WithMessageExpiry sets the message expiry interval for the publish.
	WithMessageExpiry uint32

	// WithNoLocal sets the no local flag for the subscription.
	WithNoLocal bool

	// WithPayloadFormat sets the payload format indicator for the publish.
	WithPayloadFormat byte

	// WithQoS sets the QoS level for the publish or subscribe.
	WithQoS QoS

	// WithRetain sets the retain flag for the publish.
	WithRetain bool

	// WithUserProperties sets the user properties for the publish.
	WithUserProperties map[string]string
)

// Quality of Service levels.
const (
	QoS0 QoS = iota
	QoS1
)

func (o WithContentType) publish(opt *PublishOptions) {
	opt.ContentType = string(o)
}

func (o WithMessageExpiry) publish(opt *PublishOptions) {
	opt.MessageExpiry = uint32(o)
}

func (o WithNoLocal) subscribe(opt *SubscribeOptions) {
	opt.NoLocal = bool(o)
}

func (o WithPayloadFormat) publish(opt *PublishOptions) {
	opt.PayloadFormat = byte(o)
}

func (o WithQoS) publish(opt *PublishOptions) {
	opt.QoS = QoS(o)
}

func (o WithQoS) subscribe(opt *SubscribeOptions) {
	opt.QoS = QoS(o)
}

func (o WithRetain) publish(opt *PublishOptions) {
	opt.Retain = bool(o)
}

func (o WithUserProperties) publish(opt *PublishOptions) {
	if opt.UserProperties == nil {
		opt.UserProperties = make(map[string]string, len(o))
	}
	for key, val := range o {
		opt.UserProperties[key] = val
	}
}

// Apply resolves the provided list of options.
func (o *PublishOptions) Apply(opts []PublishOption, rest ...PublishOption) {
	for opt := range options.Apply[PublishOption](opts, rest...) {
		opt.publish(o)
	}
}

// Apply resolves the provided list of options.
func (o *SubscribeOptions) Apply(
	opts []SubscribeOption,
	rest ...SubscribeOption,
) {
	for opt := range options.Apply[SubscribeOption](opts, rest...) {
		opt.subscribe(o)
	}
}
