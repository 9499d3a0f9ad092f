// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package signal_test

import (
	"encoding/json"
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/edgebench/sigbench/errors"
	"github.com/edgebench/sigbench/signal"
	"github.com/stretchr/testify/require"
)

func TestProcessKnownSignal(t *testing.T) {
	before := time.Now().UTC()
	p, err := signal.Process([]float64{1, 2, 3, 4})
	require.NoError(t, err)

	require.Equal(t, 2.5, p.Mean)
	require.InDelta(t, 1.118033988749895, p.Std, 1e-15)
	require.Equal(t, 4.0, p.Max)
	require.Equal(t, 1.0, p.Min)
	require.Equal(t, []float64{1, 2, 3, 4}, p.Signal)
	require.False(t, p.Timestamp.Time().Before(before.Add(-time.Second)))
}

func TestProcessZeros(t *testing.T) {
	p, err := signal.Process([]float64{0, 0, 0})
	require.NoError(t, err)
	require.Zero(t, p.Mean)
	require.Zero(t, p.Std)
	require.Zero(t, p.Max)
	require.Zero(t, p.Min)
}

func TestProcessSingleSample(t *testing.T) {
	p, err := signal.Process([]float64{-7.5})
	require.NoError(t, err)
	require.Equal(t, -7.5, p.Mean)
	require.Zero(t, p.Std)
	require.Equal(t, -7.5, p.Min)
	require.Equal(t, -7.5, p.Max)
}

func TestProcessEmpty(t *testing.T) {
	for _, raw := range [][]float64{nil, {}} {
		p, err := signal.Process(raw)
		require.Nil(t, p)
		require.True(t, errors.IsKind(err, errors.EmptyInput))
	}
}

func TestProcessNonFinite(t *testing.T) {
	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := signal.Process([]float64{1, v, 3})
		require.True(t, errors.IsKind(err, errors.ArgumentInvalid))
	}

	_, err := signal.Process([]float64{math.MaxFloat64, math.MaxFloat64})
	require.True(t, errors.IsKind(err, errors.ArgumentInvalid))
}

func TestProcessCopiesInput(t *testing.T) {
	raw := []float64{5, 6, 7}
	p, err := signal.Process(raw)
	require.NoError(t, err)

	raw[0] = 100
	require.Equal(t, []float64{5, 6, 7}, p.Signal)
}

// Compare against the textbook definitions on random input.
func TestSummarizeMatchesDefinitions(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	for range 50 {
		samples := make([]float64, 1+r.IntN(500))
		for i := range samples {
			samples[i] = r.NormFloat64()*10 + 3
		}

		s, err := signal.Summarize(samples)
		require.NoError(t, err)

		var sum float64
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, v := range samples {
			sum += v
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		mean := sum / float64(len(samples))
		var variance float64
		for _, v := range samples {
			variance += (v - mean) * (v - mean)
		}
		variance /= float64(len(samples))

		require.Equal(t, len(samples), s.Count)
		require.InDelta(t, mean, s.Mean, 1e-9)
		require.InDelta(t, math.Sqrt(variance), s.Std, 1e-9)
		require.Equal(t, lo, s.Min)
		require.Equal(t, hi, s.Max)
	}
}

func TestProcessedMessageShape(t *testing.T) {
	p, err := signal.Process([]float64{1, 2})
	require.NoError(t, err)

	data, err := json.Marshal(p.Message("req-1"))
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	require.ElementsMatch(t,
		[]string{"request_id", "timestamp", "signal", "mean", "std", "max", "min"},
		keys(fields),
	)
	require.Equal(t, "req-1", fields["request_id"])
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
