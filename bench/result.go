// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package bench

import (
	"time"

	"github.com/edgebench/sigbench/errors"
	"github.com/edgebench/sigbench/iso"
	"github.com/edgebench/sigbench/signal"
)

type (
	// TrialResult is the outcome of one signal sent down both paths.
	TrialResult struct {
		TrialNumber int          `json:"trial_number"`
		Timestamp   iso.DateTime `json:"timestamp"`
		Cloud       PathResult   `json:"cloud"`
		Edge        PathResult   `json:"edge"`
	}

	// PathResult is the outcome of one path within a trial. Exactly one of
	// Result and Error is set.
	PathResult struct {
		Approach       string                   `json:"approach"`
		ProcessingTime float64                  `json:"processing_time"`
		Result         *signal.ProcessedMessage `json:"result,omitempty"`
		Error          *Failure                 `json:"error,omitempty"`
	}

	// Failure describes why a path produced no result.
	Failure struct {
		Kind    errors.Kind `json:"kind"`
		Message string      `json:"message"`
		Elapsed float64     `json:"elapsed"`
	}
)

// Trial outcome labels.
const (
	OutcomeSuccess   = "success"
	OutcomeTimeout   = "timeout"
	OutcomeCancelled = "cancelled"
	OutcomeFailure   = "failure"
)

// Outcome classifies the path result.
func (p *PathResult) Outcome() string {
	switch {
	case p.Error == nil:
		return OutcomeSuccess
	case p.Error.Kind == errors.Timeout:
		return OutcomeTimeout
	case p.Error.Kind == errors.Cancellation:
		return OutcomeCancelled
	default:
		return OutcomeFailure
	}
}

func newFailure(err error, elapsed time.Duration) *Failure {
	f := &Failure{
		Kind:    errors.KindOf(err),
		Message: err.Error(),
		Elapsed: elapsed.Seconds(),
	}
	if e, ok := errors.As(err); ok && e.Elapsed > 0 {
		f.Elapsed = e.Elapsed.Seconds()
	}
	return f
}
