// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/edgebench/sigbench/metrics"
	"github.com/edgebench/sigbench/mqtt"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Build the recorder over every configured sink. Returns nil when no sink is
// configured.
func (a *app) recorder(
	ctx context.Context,
	col *metrics.Collectors,
) (*metrics.Recorder, error) {
	m := a.cfg.Metrics
	var sinks metrics.MultiSink

	if m.File != "" {
		s, err := metrics.NewFileSink(m.File, m.FilePartitioned)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s)
	}
	if m.Object.Endpoint != "" {
		s, err := metrics.NewObjectSink(metrics.ObjectConfig{
			Endpoint:  m.Object.Endpoint,
			Bucket:    m.Object.Bucket,
			AccessKey: m.Object.AccessKey,
			SecretKey: m.Object.SecretKey,
			Region:    m.Object.Region,
			Secure:    m.Object.Secure,
		})
		if err != nil {
			return nil, err
		}
		if err := s.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		sinks = append(sinks, s)
	}
	if m.Redis.Addr != "" {
		sinks = append(sinks, metrics.NewRedisSink(
			m.Redis.Addr,
			m.Redis.Prefix,
			time.Duration(m.Redis.TTL),
		))
	}

	var sink metrics.Sink
	switch len(sinks) {
	case 0:
		return nil, nil
	case 1:
		sink = sinks[0]
	default:
		sink = sinks
	}
	return metrics.NewRecorder(sink,
		metrics.WithCollectors{Collectors: col},
		metrics.WithLogger(a.logger),
	), nil
}

// Registry with the process collectors and the sigbench series.
func newRegistry() (*prometheus.Registry, *metrics.Collectors, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	col, err := metrics.NewCollectors(reg)
	if err != nil {
		return nil, nil, err
	}
	return reg, col, nil
}

func (a *app) session(host string, port int) (*mqtt.SessionClient, error) {
	return mqtt.NewSessionClient(
		mqtt.TCPConnection(host, port),
		append(a.cfg.SessionOptions(), mqtt.WithLogger(a.logger))...,
	)
}

// Serve h on addr until ctx is done.
func serveHTTP(
	ctx context.Context,
	logger *slog.Logger,
	addr string,
	h http.Handler,
) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", slog.String("addr", addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdown, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdown); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
