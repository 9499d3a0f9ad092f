// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package bench

import (
	"fmt"
	"io"

	"github.com/edgebench/sigbench/signal"
)

type (
	// Summary aggregates the results of a run per path.
	Summary struct {
		Cloud PathSummary `json:"cloud"`
		Edge  PathSummary `json:"edge"`
	}

	// PathSummary counts a path's outcomes. Failed includes timeouts and
	// cancellations. Stats covers the processing times of successful trials
	// only and is absent when none succeeded.
	PathSummary struct {
		Trials    int             `json:"trials"`
		Succeeded int             `json:"succeeded"`
		Failed    int             `json:"failed"`
		Timeouts  int             `json:"timeouts"`
		Stats     *signal.Summary `json:"processing_time,omitempty"`
	}
)

// Summarize aggregates the results.
func Summarize(results []TrialResult) Summary {
	var cloud, edge []PathResult
	for _, r := range results {
		cloud = append(cloud, r.Cloud)
		edge = append(edge, r.Edge)
	}
	return Summary{Cloud: summarizePath(cloud), Edge: summarizePath(edge)}
}

func summarizePath(paths []PathResult) PathSummary {
	s := PathSummary{Trials: len(paths)}
	var times []float64
	for _, p := range paths {
		switch p.Outcome() {
		case OutcomeSuccess:
			s.Succeeded++
			times = append(times, p.ProcessingTime)
			continue
		case OutcomeTimeout:
			s.Timeouts++
		}
		s.Failed++
	}
	if st, err := signal.Summarize(times); err == nil {
		s.Stats = &st
	}
	return s
}

// WriteText prints the summary in human-readable form.
func (s Summary) WriteText(w io.Writer) error {
	for _, p := range []struct {
		name string
		sum  PathSummary
	}{{"Cloud", s.Cloud}, {"Edge", s.Edge}} {
		if _, err := fmt.Fprintln(w, p.sum.line(p.name)); err != nil {
			return err
		}
	}
	return nil
}

func (p PathSummary) line(name string) string {
	counts := fmt.Sprintf("%d/%d succeeded, %d timed out", p.Succeeded, p.Trials, p.Timeouts)
	if p.Stats == nil {
		return fmt.Sprintf("%s Processing - no successful trials (%s)", name, counts)
	}
	return fmt.Sprintf(
		"%s Processing - Mean: %.4fs, Std: %.4fs, Min: %.4fs, Max: %.4fs (%s)",
		name, p.Stats.Mean, p.Stats.Std, p.Stats.Min, p.Stats.Max, counts,
	)
}
