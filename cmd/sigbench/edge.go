// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package main

import (
	"context"
	"log/slog"

	"github.com/edgebench/sigbench/edge"
	"github.com/edgebench/sigbench/internal/broker"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newEdgeCmd(a *app) *cobra.Command {
	var embedded bool
	cmd := &cobra.Command{
		Use:   "edge",
		Short: "Run the edge responder",
		Long: `Run the edge responder. It subscribes to the raw topic, processes each
signal and publishes the result to the processed topic. Health, recent
messages and Prometheus metrics are served on the admin address.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("embedded-broker") {
				a.cfg.Edge.EmbeddedBroker = embedded
			}
			return a.runEdge(cmd.Context())
		},
	}
	cmd.Flags().BoolVar(&embedded, "embedded-broker", false,
		"serve an in-process MQTT broker on the broker address")
	return cmd
}

func (a *app) runEdge(ctx context.Context) error {
	cfg := a.cfg
	logger := a.logger.With(slog.String("command", "edge"))

	host, port := cfg.Broker.Host, cfg.Broker.Port
	if cfg.Edge.EmbeddedBroker {
		b, err := broker.Start(cfg.BrokerAddr(), logger)
		if err != nil {
			return err
		}
		defer b.Close()
		host, port = b.Host(), b.Port()
	}

	reg, col, err := newRegistry()
	if err != nil {
		return err
	}
	rec, err := a.recorder(ctx, col)
	if err != nil {
		return err
	}

	client, err := a.session(host, port)
	if err != nil {
		return err
	}
	responder, err := edge.NewResponder(
		client,
		cfg.Topics.Raw,
		cfg.Topics.Processed,
		edge.WithConcurrency(cfg.Edge.Concurrency),
		edge.WithRetain(cfg.Edge.Retain),
		edge.WithRecorder{Recorder: rec},
		edge.WithCollectors{Collectors: col},
		edge.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	responder.Observe(func(t edge.Transition) {
		logger.Info("responder state",
			slog.String("from", t.From.String()),
			slog.String("to", t.To.String()),
			slog.String("event", t.Event.String()),
		)
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return responder.Run(ctx)
	})
	if cfg.Edge.Admin != "" {
		g.Go(func() error {
			return serveHTTP(ctx, logger, cfg.Edge.Admin, edge.AdminHandler(responder, reg))
		})
	}
	return g.Wait()
}
