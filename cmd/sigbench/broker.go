// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package main

import (
	"log/slog"

	"github.com/edgebench/sigbench/internal/broker"
	"github.com/spf13/cobra"
)

func newBrokerCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "broker",
		Short: "Serve an in-process MQTT broker on the broker address",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := a.logger.With(slog.String("command", "broker"))
			b, err := broker.Start(a.cfg.BrokerAddr(), logger)
			if err != nil {
				return err
			}
			logger.Info("broker started", slog.Int("port", b.Port()))

			<-cmd.Context().Done()
			return b.Close()
		},
	}
}
