// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/edgebench/sigbench/bench"
	"github.com/edgebench/sigbench/cloud"
	"github.com/edgebench/sigbench/config"
	"github.com/edgebench/sigbench/edge"
	"github.com/edgebench/sigbench/errors"
	"github.com/edgebench/sigbench/internal/broker"
	"github.com/edgebench/sigbench/mqtt"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, format string, args ...any) string {
	path := filepath.Join(t.TempDir(), "sigbench.yaml")
	data := fmt.Sprintf(format, args...)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
	return path
}

func execute(ctx context.Context, args ...string) error {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	return cmd.ExecuteContext(ctx)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(&buf, config.LogConfig{Level: "debug", Format: config.FormatJSON})
	require.NoError(t, err)
	logger.Debug("hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "hello", line["msg"])
	require.Equal(t, "DEBUG", line["level"])

	buf.Reset()
	logger, err = newLogger(&buf, config.LogConfig{Level: "warn", Format: config.FormatText})
	require.NoError(t, err)
	logger.Info("quiet")
	logger.Warn("loud")
	require.NotContains(t, buf.String(), "quiet")
	require.Contains(t, buf.String(), "loud")
	require.NotContains(t, buf.String(), "\x1b[")

	_, err = newLogger(&buf, config.LogConfig{Level: "chatty"})
	var e *errors.Error
	require.ErrorAs(t, err, &e)
	require.Equal(t, errors.ConfigurationInvalid, e.Kind)
}

func TestRootRejectsInvalidFlags(t *testing.T) {
	err := execute(context.Background(), "broker", "--log-level", "chatty")
	var e *errors.Error
	require.ErrorAs(t, err, &e)
	require.Equal(t, errors.ConfigurationInvalid, e.Kind)
	require.Equal(t, "log.level", e.PropertyName)

	err = execute(context.Background(), "broker", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorAs(t, err, &e)
	require.Equal(t, "config", e.PropertyName)
}

func TestEdgeCommand(t *testing.T) {
	b, err := broker.Local(nil)
	require.NoError(t, err)
	defer b.Close()

	path := writeConfig(t, `
broker:
  host: %s
  port: %d
edge:
  admin: ""
metrics:
  file: ""
`, b.Host(), b.Port())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errc := make(chan error, 1)
	go func() { errc <- execute(ctx, "edge", "--config", path) }()

	client, err := mqtt.NewSessionClient(mqtt.TCPConnection(b.Host(), b.Port()))
	require.NoError(t, err)
	require.NoError(t, client.Start(ctx))
	defer client.Stop()

	inv, err := edge.NewInvoker(client, "sensors/raw_data", "processed/signal")
	require.NoError(t, err)
	stop, err := inv.Listen(ctx)
	require.NoError(t, err)
	defer stop()

	// The responder subscribes asynchronously; retry until it answers.
	require.Eventually(t, func() bool {
		res, err := inv.Invoke(ctx, []float64{1, 2, 3}, 200*time.Millisecond)
		return err == nil && res.Mean == 2
	}, 10*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("edge command did not stop")
	}
}

// Start a broker, an edge responder and a cloud function. wrap, when set,
// decorates the function handler.
func startPaths(
	t *testing.T,
	wrap func(http.Handler) http.Handler,
) (b *broker.Broker, endpoint string) {
	ctx := context.Background()
	b, err := broker.Local(nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	client, err := mqtt.NewSessionClient(mqtt.TCPConnection(b.Host(), b.Port()))
	require.NoError(t, err)
	responder, err := edge.NewResponder(client, "sensors/raw_data", "processed/signal")
	require.NoError(t, err)
	require.NoError(t, responder.Start(ctx))
	require.NoError(t, responder.Serve(ctx))
	t.Cleanup(func() { _ = responder.Stop() })

	fn, err := cloud.NewFunction()
	require.NoError(t, err)
	var h http.Handler = fn.Handler(nil)
	if wrap != nil {
		h = wrap(h)
	}
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return b, srv.URL + "/invoke"
}

func freeAddr(t *testing.T) string {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func TestBenchCommand(t *testing.T) {
	ctx := context.Background()
	b, endpoint := startPaths(t, nil)

	dir := t.TempDir()
	output := filepath.Join(dir, "results.json")
	summary := filepath.Join(dir, "summary.json")
	path := writeConfig(t, `
broker:
  host: %s
  port: %d
cloud:
  endpoint: %s
bench:
  distribution:
    kind: constant
    value: 1
`, b.Host(), b.Port(), endpoint)

	require.NoError(t, execute(ctx, "bench",
		"--config", path,
		"--trials", "3",
		"--signal-length", "4",
		"--output", output,
		"--summary", summary,
	))

	raw, err := os.ReadFile(output)
	require.NoError(t, err)
	var results []bench.TrialResult
	require.NoError(t, json.Unmarshal(raw, &results))
	require.Len(t, results, 3)
	for i, r := range results {
		require.Equal(t, i+1, r.TrialNumber)
		require.Nil(t, r.Cloud.Error)
		require.Nil(t, r.Edge.Error)
		require.Equal(t, []float64{1, 1, 1, 1}, r.Edge.Result.Signal)
	}

	raw, err = os.ReadFile(summary)
	require.NoError(t, err)
	var s bench.Summary
	require.NoError(t, json.Unmarshal(raw, &s))
	require.Equal(t, 3, s.Cloud.Succeeded)
	require.Equal(t, 3, s.Edge.Succeeded)
}

func TestBenchCommandServesMetrics(t *testing.T) {
	addr := freeAddr(t)

	// The second cloud call scrapes the collectors, which by then hold the
	// outcome of the first trial.
	var calls atomic.Int32
	scraped := make(chan string, 1)
	scrape := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 2 {
				res, err := http.Get("http://" + addr + "/metrics")
				if err == nil {
					body, _ := io.ReadAll(res.Body)
					_ = res.Body.Close()
					scraped <- string(body)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
	b, endpoint := startPaths(t, scrape)

	path := writeConfig(t, `
broker:
  host: %s
  port: %d
cloud:
  endpoint: %s
bench:
  signal_length: 3
  output: %s
`, b.Host(), b.Port(), endpoint, filepath.Join(t.TempDir(), "results.json"))

	require.NoError(t, execute(context.Background(), "bench",
		"--config", path,
		"--trials", "2",
		"--metrics-addr", addr,
	))
	var body string
	select {
	case body = <-scraped:
	default:
		require.Fail(t, "metrics were not served during the run")
	}
	require.Contains(t, body, `sigbench_trial_outcomes_total{outcome="success",path="cloud"} 1`)
	require.Contains(t, body, `sigbench_trial_outcomes_total{outcome="success",path="edge"} 1`)
}
