// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package signal

import (
	"fmt"
	"math"
	"slices"

	"github.com/edgebench/sigbench/errors"
	"github.com/edgebench/sigbench/internal/wallclock"
	"github.com/edgebench/sigbench/iso"
)

// Summary holds population statistics over a sequence of samples.
type Summary struct {
	Count int     `json:"count"`
	Mean  float64 `json:"mean"`
	Std   float64 `json:"std"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// Process computes the statistics of a raw signal. The returned record holds
// its own copy of the samples.
func Process(raw []float64) (*Processed, error) {
	s, err := Summarize(raw)
	if err != nil {
		return nil, err
	}
	return &Processed{
		Timestamp: iso.UTC(wallclock.Instance.Now()),
		Signal:    slices.Clone(raw),
		Mean:      s.Mean,
		Std:       s.Std,
		Max:       s.Max,
		Min:       s.Min,
	}, nil
}

// Summarize computes the mean, population standard deviation, minimum and
// maximum of the samples. It never returns non-finite statistics.
func Summarize(samples []float64) (Summary, error) {
	if len(samples) == 0 {
		return Summary{}, &errors.Error{
			Message: "signal is empty",
			Kind:    errors.EmptyInput,
		}
	}

	s := Summary{Count: len(samples), Min: samples[0], Max: samples[0]}
	var sum float64
	for i, v := range samples {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Summary{}, &errors.Error{
				Message:       fmt.Sprintf("sample %d is not finite", i),
				Kind:          errors.ArgumentInvalid,
				PropertyName:  "signal",
				PropertyValue: v,
			}
		}
		s.Min = min(s.Min, v)
		s.Max = max(s.Max, v)
		sum += v
	}
	n := float64(len(samples))
	s.Mean = sum / n

	// Two passes, to avoid the cancellation of the sum-of-squares form.
	var sq float64
	for _, v := range samples {
		d := v - s.Mean
		sq += d * d
	}
	s.Std = math.Sqrt(sq / n)

	if math.IsInf(s.Mean, 0) || math.IsInf(s.Std, 0) || math.IsNaN(s.Std) {
		return Summary{}, &errors.Error{
			Message:      "signal statistics overflow",
			Kind:         errors.ArgumentInvalid,
			PropertyName: "signal",
		}
	}
	return s, nil
}
