// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/edgebench/sigbench/cloud"
	"github.com/edgebench/sigbench/protocol"
	"github.com/edgebench/sigbench/signal"
	"github.com/spf13/cobra"
)

func newCloudCmd(a *app) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "cloud",
		Short: "Serve the cloud processing function over HTTP",
		Long: `Serve the cloud processing function. POST /invoke takes a raw message
and returns the processed signal; each invocation writes a metrics record.
When a mirror topic is configured the processed message is also published
over MQTT.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("listen") {
				a.cfg.Cloud.Listen = listen
			}
			return a.runCloud(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "address to serve the function on")
	return cmd
}

func (a *app) runCloud(ctx context.Context) error {
	cfg := a.cfg
	logger := a.logger.With(slog.String("command", "cloud"))

	reg, col, err := newRegistry()
	if err != nil {
		return err
	}
	rec, err := a.recorder(ctx, col)
	if err != nil {
		return err
	}

	opts := []cloud.FunctionOption{
		cloud.WithMemoryLimit(cfg.Cloud.MemoryLimitMB),
		cloud.WithTimeout(time.Duration(cfg.Cloud.Timeout)),
		cloud.WithRecorder{Recorder: rec},
		cloud.WithCollectors{Collectors: col},
		cloud.WithLogger(logger),
	}

	if cfg.Cloud.MirrorTopic != "" {
		client, err := a.session(cfg.Broker.Host, cfg.Broker.Port)
		if err != nil {
			return err
		}
		if err := client.Start(ctx); err != nil {
			return err
		}
		defer client.Stop()

		mirror, err := protocol.NewSender(
			client,
			protocol.JSON[signal.ProcessedMessage]{},
			cfg.Cloud.MirrorTopic,
			protocol.WithLogger(logger),
		)
		if err != nil {
			return err
		}
		opts = append(opts, cloud.WithMirror{Sender: mirror})
	}

	fn, err := cloud.NewFunction(opts...)
	if err != nil {
		return err
	}
	return serveHTTP(ctx, logger, cfg.Cloud.Listen, fn.Handler(reg))
}
