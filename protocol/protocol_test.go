// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package protocol_test

import (
	"context"
	"testing"
	"time"

	"github.com/edgebench/sigbench/errors"
	"github.com/edgebench/sigbench/internal/broker"
	"github.com/edgebench/sigbench/mqtt"
	"github.com/edgebench/sigbench/protocol"
	"github.com/stretchr/testify/require"
)

type reading struct {
	ID    string  `json:"id"`
	Value float64 `json:"value"`
}

func setupMqtt(ctx context.Context, t *testing.T) (client, server *mqtt.SessionClient) {
	b, err := broker.Local(nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	start := func() *mqtt.SessionClient {
		c, err := mqtt.NewSessionClient(mqtt.TCPConnection(b.Host(), b.Port()))
		require.NoError(t, err)
		require.NoError(t, c.Start(ctx))
		t.Cleanup(func() { _ = c.Stop() })
		return c
	}
	return start(), start()
}

func TestSendReceive(t *testing.T) {
	ctx := context.Background()
	client, server := setupMqtt(ctx, t)

	received := make(chan *protocol.Message[reading], 1)
	receiver, err := protocol.NewReceiver(
		server,
		protocol.JSON[reading]{},
		"readings",
		func(_ context.Context, msg *protocol.Message[reading]) error {
			received <- msg
			return nil
		},
	)
	require.NoError(t, err)

	done, err := protocol.Listen(ctx, receiver)
	require.NoError(t, err)
	defer done()

	sender, err := protocol.NewSender(client, protocol.JSON[reading]{}, "readings")
	require.NoError(t, err)
	require.Equal(t, "readings", sender.Topic())

	before := time.Now()
	err = sender.Send(ctx, reading{"r1", 2.5},
		protocol.WithTimeout(5*time.Second),
		protocol.WithMessageExpiry(time.Minute),
	)
	require.NoError(t, err)

	select {
	case msg := <-received:
		require.Equal(t, reading{"r1", 2.5}, msg.Payload)
		require.Equal(t, "readings", msg.Topic)
		require.False(t, msg.ReceivedAt.Before(before))
	case <-time.After(5 * time.Second):
		require.Fail(t, "message not received")
	}
}

func TestMalformedMessageIsDropped(t *testing.T) {
	ctx := context.Background()
	client, server := setupMqtt(ctx, t)

	received := make(chan reading, 1)
	dropped := make(chan error, 1)
	receiver, err := protocol.NewReceiver(
		server,
		protocol.JSON[reading]{},
		"readings",
		func(_ context.Context, msg *protocol.Message[reading]) error {
			received <- msg.Payload
			return nil
		},
		protocol.WithConcurrency(1),
		protocol.WithErrorHandler(func(_ context.Context, _ string, err error) {
			dropped <- err
		}),
	)
	require.NoError(t, err)

	done, err := receiver.Listen(ctx)
	require.NoError(t, err)
	defer done()

	require.NoError(t, client.Publish(ctx, "readings", []byte("{not json"),
		mqtt.WithQoS(1)))

	select {
	case err := <-dropped:
		require.True(t, errors.IsKind(err, errors.Decode), "%v", err)
	case <-time.After(5 * time.Second):
		require.Fail(t, "malformed message not reported")
	}

	sender, err := protocol.NewSender(client, protocol.JSON[reading]{}, "readings")
	require.NoError(t, err)
	require.NoError(t, sender.Send(ctx, reading{"r2", 1}))

	select {
	case r := <-received:
		require.Equal(t, "r2", r.ID)
	case <-time.After(5 * time.Second):
		require.Fail(t, "receiver stopped after a malformed message")
	}
}

func TestHandlerPanicIsContained(t *testing.T) {
	ctx := context.Background()
	client, server := setupMqtt(ctx, t)

	dropped := make(chan error, 1)
	receiver, err := protocol.NewReceiver(
		server,
		protocol.JSON[reading]{},
		"readings",
		func(context.Context, *protocol.Message[reading]) error {
			panic("handler bug")
		},
		protocol.WithErrorHandler(func(_ context.Context, _ string, err error) {
			dropped <- err
		}),
	)
	require.NoError(t, err)

	done, err := receiver.Listen(ctx)
	require.NoError(t, err)
	defer done()

	sender, err := protocol.NewSender(client, protocol.JSON[reading]{}, "readings")
	require.NoError(t, err)
	require.NoError(t, sender.Send(ctx, reading{"r3", 0}))

	select {
	case err := <-dropped:
		require.Contains(t, err.Error(), "handler bug")
	case <-time.After(5 * time.Second):
		require.Fail(t, "panic not reported")
	}
}

func TestContentTypeMismatch(t *testing.T) {
	_, err := protocol.JSON[reading]{}.Deserialize(&protocol.Data{
		Payload:     []byte(`{}`),
		ContentType: "text/plain",
	})
	require.ErrorIs(t, err, protocol.ErrUnsupportedContentType)
}

func TestInvalidConstruction(t *testing.T) {
	_, err := protocol.NewSender[reading](nil, protocol.JSON[reading]{}, "t")
	require.True(t, errors.IsKind(err, errors.ArgumentInvalid))

	c, err := mqtt.NewSessionClient(mqtt.TCPConnection("localhost", 1))
	require.NoError(t, err)

	_, err = protocol.NewSender(c, protocol.JSON[reading]{}, "bad/#")
	require.True(t, errors.IsKind(err, errors.ConfigurationInvalid))

	_, err = protocol.NewReceiver(c, protocol.JSON[reading]{}, "t", nil)
	require.True(t, errors.IsKind(err, errors.ArgumentInvalid))
}
