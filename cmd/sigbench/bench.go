// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/edgebench/sigbench/bench"
	"github.com/edgebench/sigbench/cloud"
	"github.com/edgebench/sigbench/edge"
	"github.com/edgebench/sigbench/internal/httpx"
	"github.com/edgebench/sigbench/iso"
	"github.com/spf13/cobra"
)

func newBenchCmd(a *app) *cobra.Command {
	var (
		trials        int
		length        int
		timeout       time.Duration
		concurrency   int
		parallelPaths bool
		output        string
		summary       string
		metricsAddr   string
	)
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run benchmark trials against the cloud and edge paths",
		Long: `Run benchmark trials. Each trial generates one signal, sends it down the
cloud and edge paths and records the processing time of both. The results
are written to the output file and a summary is printed when the run ends,
including when it is interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b := &a.cfg.Bench
			flags := cmd.Flags()
			if flags.Changed("trials") {
				b.Trials = trials
			}
			if flags.Changed("signal-length") {
				b.SignalLength = length
			}
			if flags.Changed("timeout") {
				b.Timeout = iso.Duration(timeout)
			}
			if flags.Changed("concurrency") {
				b.Concurrency = concurrency
			}
			if flags.Changed("parallel-paths") {
				b.ParallelPaths = parallelPaths
			}
			if flags.Changed("output") {
				b.Output = output
			}
			if flags.Changed("summary") {
				b.Summary = summary
			}
			if flags.Changed("metrics-addr") {
				b.MetricsAddr = metricsAddr
			}
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			return a.runBench(cmd.Context())
		},
	}

	flags := cmd.Flags()
	flags.IntVarP(&trials, "trials", "n", 0, "number of trials to run")
	flags.IntVar(&length, "signal-length", 0, "samples per signal")
	flags.DurationVar(&timeout, "timeout", 0, "timeout of each path invocation")
	flags.IntVar(&concurrency, "concurrency", 0, "trials to run at once")
	flags.BoolVar(&parallelPaths, "parallel-paths", false,
		"invoke both paths of a trial at the same time")
	flags.StringVarP(&output, "output", "o", "", "file to write the trial results to")
	flags.StringVar(&summary, "summary", "", "file to write the JSON summary to")
	flags.StringVar(&metricsAddr, "metrics-addr", "",
		"address to serve Prometheus metrics on while the run lasts")
	return cmd
}

func (a *app) runBench(ctx context.Context) error {
	cfg := a.cfg
	logger := a.logger.With(slog.String("command", "bench"))

	d := cfg.Bench.Distribution
	gen, err := bench.Distribution{
		Kind:   d.Kind,
		Mean:   d.Mean,
		StdDev: d.StdDev,
		Min:    d.Min,
		Max:    d.Max,
		Value:  d.Value,
	}.Generator()
	if err != nil {
		return err
	}

	reg, col, err := newRegistry()
	if err != nil {
		return err
	}
	if addr := cfg.Bench.MetricsAddr; addr != "" {
		srvCtx, stop := context.WithCancel(ctx)
		served := make(chan error, 1)
		go func() {
			served <- serveHTTP(srvCtx, logger, addr, httpx.NewRouter(reg))
		}()
		defer func() {
			stop()
			if err := <-served; err != nil {
				logger.Warn("metrics server failed", slog.Any("error", err))
			}
		}()
	}

	cloudInv, err := cloud.NewInvoker(cfg.Cloud.Endpoint, cloud.WithLogger(logger))
	if err != nil {
		return err
	}

	client, err := a.session(cfg.Broker.Host, cfg.Broker.Port)
	if err != nil {
		return err
	}
	if err := client.Start(ctx); err != nil {
		return err
	}
	defer client.Stop()

	edgeInv, err := edge.NewInvoker(
		client,
		cfg.Topics.Raw,
		cfg.Topics.Processed,
		edge.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	done, err := edgeInv.Listen(ctx)
	if err != nil {
		return err
	}
	defer done()

	h, err := bench.NewHarness(cloudInv, edgeInv,
		bench.WithGenerator{Generator: gen},
		bench.WithSignalLength(cfg.Bench.SignalLength),
		bench.WithTimeout(time.Duration(cfg.Bench.Timeout)),
		bench.WithConcurrency(cfg.Bench.Concurrency),
		bench.WithParallelPaths(cfg.Bench.ParallelPaths),
		bench.WithCollectors{Collectors: col},
		bench.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	logger.Info("starting benchmark",
		slog.Int("trials", cfg.Bench.Trials),
		slog.Int("signal_length", cfg.Bench.SignalLength),
		slog.Any("distribution", gen),
	)
	// An interrupted run still returns every trial, the unfinished ones as
	// cancelled.
	results, err := h.Run(ctx, cfg.Bench.Trials)
	if err != nil {
		return err
	}

	if err := bench.WriteResults(cfg.Bench.Output, results); err != nil {
		return err
	}
	logger.Info("results written", slog.String("path", cfg.Bench.Output))

	s := bench.Summarize(results)
	if err := s.WriteText(os.Stdout); err != nil {
		return err
	}
	if cfg.Bench.Summary != "" {
		if err := bench.WriteSummary(cfg.Bench.Summary, s); err != nil {
			return err
		}
	}
	return nil
}
