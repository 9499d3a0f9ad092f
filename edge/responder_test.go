// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package edge_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/edgebench/sigbench/edge"
	"github.com/edgebench/sigbench/errors"
	"github.com/edgebench/sigbench/internal/broker"
	"github.com/edgebench/sigbench/metrics"
	"github.com/edgebench/sigbench/mqtt"
	"github.com/edgebench/sigbench/signal"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

const (
	rawTopic       = "sensors/raw_data"
	processedTopic = "processed/signal"
)

type captureSink struct {
	mu   sync.Mutex
	keys []metrics.Key
	data [][]byte
}

func (s *captureSink) Put(_ context.Context, key metrics.Key, record []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = append(s.keys, key)
	s.data = append(s.data, record)
	return nil
}

func (s *captureSink) records() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.data...)
}

func newBroker(t *testing.T) *broker.Broker {
	b, err := broker.Local(nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func newSession(
	t *testing.T,
	b *broker.Broker,
	opts ...mqtt.SessionClientOption,
) *mqtt.SessionClient {
	c, err := mqtt.NewSessionClient(mqtt.TCPConnection(b.Host(), b.Port()), opts...)
	require.NoError(t, err)
	return c
}

func startedSession(ctx context.Context, t *testing.T, b *broker.Broker) *mqtt.SessionClient {
	c := newSession(t, b)
	require.NoError(t, c.Start(ctx))
	t.Cleanup(func() { _ = c.Stop() })
	return c
}

func listeningInvoker(
	ctx context.Context,
	t *testing.T,
	c mqtt.Client,
) *edge.Invoker {
	inv, err := edge.NewInvoker(c, rawTopic, processedTopic)
	require.NoError(t, err)
	stop, err := inv.Listen(ctx)
	require.NoError(t, err)
	t.Cleanup(stop)
	return inv
}

func runningResponder(
	ctx context.Context,
	t *testing.T,
	b *broker.Broker,
	opts ...edge.ResponderOption,
) *edge.Responder {
	r, err := edge.NewResponder(newSession(t, b), rawTopic, processedTopic, opts...)
	require.NoError(t, err)
	require.NoError(t, r.Start(ctx))
	require.NoError(t, r.Serve(ctx))
	t.Cleanup(func() { _ = r.Stop() })
	return r
}

func TestResponderRoundTrip(t *testing.T) {
	ctx := context.Background()
	b := newBroker(t)

	reg := prometheus.NewRegistry()
	col, err := metrics.NewCollectors(reg)
	require.NoError(t, err)
	sink := &captureSink{}

	r := runningResponder(ctx, t, b,
		edge.WithRecorder{metrics.NewRecorder(sink)},
		edge.WithCollectors{col},
	)
	require.Equal(t, edge.Running, r.State())

	inv := listeningInvoker(ctx, t, startedSession(ctx, t, b))

	res, err := inv.Invoke(ctx, []float64{1, 2, 3, 4}, 5*time.Second)
	require.NoError(t, err)
	require.Equal(t, []float64{1, 2, 3, 4}, res.Signal)
	require.Equal(t, 2.5, res.Mean)
	require.InDelta(t, 1.118033988749895, res.Std, 1e-12)
	require.Equal(t, 1.0, res.Min)
	require.Equal(t, 4.0, res.Max)
	require.NotEmpty(t, res.RequestID)
	require.Zero(t, inv.Pending())

	// Metrics are recorded after the publish, so the response can win.
	require.Eventually(t, func() bool { return len(sink.records()) == 1 },
		5*time.Second, 10*time.Millisecond)
	var m metrics.InvocationMetrics
	require.NoError(t, json.Unmarshal(sink.records()[0], &m))
	require.Equal(t, 4, m.SignalLength)
	require.Greater(t, m.ProcessingTime, 0.0)
	require.Equal(t, res.RequestID, sink.keys[0].ID)

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(col.ProcessedCounter(metrics.PathEdge)) == 1
	}, 5*time.Second, 10*time.Millisecond)

	recent := r.Recent()
	require.Len(t, recent, 1)
	require.Equal(t, res.RequestID, recent[0].RequestID)
}

func TestResponderSurvivesMalformedMessages(t *testing.T) {
	ctx := context.Background()
	b := newBroker(t)

	reg := prometheus.NewRegistry()
	col, err := metrics.NewCollectors(reg)
	require.NoError(t, err)
	runningResponder(ctx, t, b, edge.WithCollectors{col}, edge.WithConcurrency(1))

	client := startedSession(ctx, t, b)
	for _, payload := range []string{
		`{not json`,
		`{"signal":[1,2]}`,
		`{"request_id":"empty","signal":[]}`,
	} {
		require.NoError(t, client.Publish(ctx, rawTopic, []byte(payload), mqtt.WithQoS(1)))
	}

	inv := listeningInvoker(ctx, t, client)
	res, err := inv.Invoke(ctx, []float64{1, 2, 3, 4}, 5*time.Second)
	require.NoError(t, err)
	require.Equal(t, 2.5, res.Mean)

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(col.DroppedCounter(edge.DropDecode)) == 2 &&
			testutil.ToFloat64(col.DroppedCounter(edge.DropProcess)) == 1
	}, 5*time.Second, 10*time.Millisecond)
}

func TestResponderDropsUntilServing(t *testing.T) {
	ctx := context.Background()
	b := newBroker(t)

	reg := prometheus.NewRegistry()
	col, err := metrics.NewCollectors(reg)
	require.NoError(t, err)

	r, err := edge.NewResponder(newSession(t, b), rawTopic, processedTopic,
		edge.WithCollectors{col},
	)
	require.NoError(t, err)
	require.NoError(t, r.Start(ctx))
	defer r.Stop()
	require.Equal(t, edge.Subscribed, r.State())

	client := startedSession(ctx, t, b)
	require.NoError(t, client.Publish(ctx, rawTopic,
		[]byte(`{"request_id":"early","signal":[1]}`), mqtt.WithQoS(1)))

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(col.DroppedCounter(edge.DropState)) == 1
	}, 5*time.Second, 10*time.Millisecond)
	require.Empty(t, r.Recent())

	require.True(t, errors.IsKind(r.Start(ctx), errors.StateInvalid))
	require.NoError(t, r.Serve(ctx))
	require.True(t, errors.IsKind(r.Serve(ctx), errors.StateInvalid))
}

func TestResponderRecentIsBounded(t *testing.T) {
	ctx := context.Background()
	b := newBroker(t)

	r := runningResponder(ctx, t, b, edge.WithRetain(2))
	inv := listeningInvoker(ctx, t, startedSession(ctx, t, b))

	var ids []string
	for i := range 3 {
		res, err := inv.Invoke(ctx, []float64{float64(i)}, 5*time.Second)
		require.NoError(t, err)
		ids = append(ids, res.RequestID)
	}

	require.Eventually(t, func() bool {
		recent := r.Recent()
		return len(recent) == 2 &&
			recent[0].RequestID == ids[1] &&
			recent[1].RequestID == ids[2]
	}, 5*time.Second, 10*time.Millisecond)
}

func TestResponderStartUnreachable(t *testing.T) {
	c, err := mqtt.NewSessionClient(
		mqtt.TCPConnection("127.0.0.1", 1),
		mqtt.WithConnectAttempts(1),
	)
	require.NoError(t, err)

	r, err := edge.NewResponder(c, rawTopic, processedTopic)
	require.NoError(t, err)
	require.Error(t, r.Start(context.Background()))
	require.Equal(t, edge.Disconnected, r.State())
}

func TestResponderLost(t *testing.T) {
	ctx := context.Background()
	b, err := broker.Local(nil)
	require.NoError(t, err)

	c := newSession(t, b,
		mqtt.WithReconnectAttempts(1),
		mqtt.WithConnectTimeout(time.Second),
	)
	r, err := edge.NewResponder(c, rawTopic, processedTopic)
	require.NoError(t, err)

	states := make(chan edge.Transition, 8)
	r.Observe(func(tr edge.Transition) { states <- tr })

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool { return r.State() == edge.Running },
		5*time.Second, 10*time.Millisecond)
	require.NoError(t, b.Close())

	select {
	case err := <-done:
		require.True(t, errors.IsKind(err, errors.Connection), "%v", err)
	case <-time.After(10 * time.Second):
		require.Fail(t, "connection loss not reported")
	}
	require.Equal(t, edge.Disconnected, r.State())

	var last edge.Transition
	for len(states) > 0 {
		last = <-states
	}
	require.Equal(t, edge.EventLost, last.Event)
}

func TestAdminHandler(t *testing.T) {
	ctx := context.Background()
	b := newBroker(t)

	reg := prometheus.NewRegistry()
	col, err := metrics.NewCollectors(reg)
	require.NoError(t, err)

	r, err := edge.NewResponder(newSession(t, b), rawTopic, processedTopic,
		edge.WithCollectors{col},
	)
	require.NoError(t, err)

	srv := httptest.NewServer(edge.AdminHandler(r, reg))
	defer srv.Close()

	get := func(path string) (*http.Response, []byte) {
		res, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		defer res.Body.Close()
		var body json.RawMessage
		if res.Header.Get("Content-Type") == "application/json" {
			require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
		}
		return res, body
	}

	res, body := get("/healthz")
	require.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
	require.JSONEq(t, `{"state":"disconnected"}`, string(body))

	require.NoError(t, r.Start(ctx))
	require.NoError(t, r.Serve(ctx))
	defer r.Stop()

	res, body = get("/healthz")
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.JSONEq(t, `{"state":"running"}`, string(body))

	inv := listeningInvoker(ctx, t, startedSession(ctx, t, b))
	out, err := inv.Invoke(ctx, []float64{5}, 5*time.Second)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(r.Recent()) == 1 },
		5*time.Second, 10*time.Millisecond)
	_, body = get("/recent")
	var recent []signal.ProcessedMessage
	require.NoError(t, json.Unmarshal(body, &recent))
	require.Len(t, recent, 1)
	require.Equal(t, out.RequestID, recent[0].RequestID)

	res, _ = get("/metrics")
	require.Equal(t, http.StatusOK, res.StatusCode)
}
