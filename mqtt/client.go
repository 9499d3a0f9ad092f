// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package mqtt

import "context"

type (
	// Message represents a received MQTT publish.
	Message struct {
		Topic   string
		Payload []byte
		PublishOptions
	}

	// MessageHandler is a user-defined callback function used to handle
	// messages received on a subscription. It is invoked on the client's
	// receive loop and must not block.
	MessageHandler func(context.Context, *Message) error

	// Subscription represents an active subscription that can be removed.
	Subscription interface {
		Unsubscribe(context.Context) error
	}

	// Client is the subset of the session client used by the typed
	// messaging layer.
	Client interface {
		ID() string
		Subscribe(
			ctx context.Context,
			topic string,
			handler MessageHandler,
			opts ...SubscribeOption,
		) (Subscription, error)
		Publish(
			ctx context.Context,
			topic string,
			payload []byte,
			opts ...PublishOption,
		) error
	}
)
