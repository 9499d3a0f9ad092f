// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collectors holds the Prometheus series for both processing paths. A nil
// *Collectors is valid and records nothing.
type Collectors struct {
	processing     *prometheus.HistogramVec
	processed      *prometheus.CounterVec
	dropped        *prometheus.CounterVec
	trialOutcomes  *prometheus.CounterVec
	roundTrip      *prometheus.HistogramVec
	recordFailures prometheus.Counter
}

// Path labels.
const (
	PathCloud = "cloud"
	PathEdge  = "edge"
)

// NewCollectors creates the collectors and registers them with reg.
func NewCollectors(reg prometheus.Registerer) (*Collectors, error) {
	c := &Collectors{
		processing: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sigbench_processing_seconds",
			Help:    "Time from receipt of a raw signal to its processed result.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
		}, []string{"path"}),
		processed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sigbench_processed_total",
			Help: "Signals processed successfully.",
		}, []string{"path"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sigbench_dropped_total",
			Help: "Inbound messages dropped without a processed result.",
		}, []string{"reason"}),
		trialOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sigbench_trial_outcomes_total",
			Help: "Benchmark trial outcomes per path.",
		}, []string{"path", "outcome"}),
		roundTrip: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sigbench_round_trip_seconds",
			Help:    "Client-observed round trip of a benchmark invocation.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		}, []string{"path"}),
		recordFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sigbench_record_failures_total",
			Help: "Metrics records that could not be written to the sink.",
		}),
	}

	for _, col := range []prometheus.Collector{
		c.processing,
		c.processed,
		c.dropped,
		c.trialOutcomes,
		c.roundTrip,
		c.recordFailures,
	} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Processed counts a successfully processed signal.
func (c *Collectors) Processed(path string, d time.Duration) {
	if c == nil {
		return
	}
	c.processed.WithLabelValues(path).Inc()
	c.processing.WithLabelValues(path).Observe(d.Seconds())
}

// Dropped counts a message dropped for the given reason.
func (c *Collectors) Dropped(reason string) {
	if c == nil {
		return
	}
	c.dropped.WithLabelValues(reason).Inc()
}

// Trial counts a benchmark invocation outcome and its round trip.
func (c *Collectors) Trial(path, outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.trialOutcomes.WithLabelValues(path, outcome).Inc()
	c.roundTrip.WithLabelValues(path).Observe(d.Seconds())
}

// RecordFailed counts a failed metrics write.
func (c *Collectors) RecordFailed() {
	if c == nil {
		return
	}
	c.recordFailures.Inc()
}

// ProcessedCounter returns the processed-signal counter for path.
func (c *Collectors) ProcessedCounter(path string) prometheus.Counter {
	return c.processed.WithLabelValues(path)
}

// DroppedCounter returns the dropped-message counter for reason.
func (c *Collectors) DroppedCounter(reason string) prometheus.Counter {
	return c.dropped.WithLabelValues(reason)
}

// TrialCounter returns the trial outcome counter for path and outcome.
func (c *Collectors) TrialCounter(path, outcome string) prometheus.Counter {
	return c.trialOutcomes.WithLabelValues(path, outcome)
}
