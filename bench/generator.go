// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package bench

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/edgebench/sigbench/errors"
)

type (
	// Generator produces test signals.
	Generator interface {
		Generate(n int) []float64
	}

	// Normal draws samples from a normal distribution.
	Normal struct{ Mean, StdDev float64 }

	// Uniform draws samples uniformly from [Min, Max).
	Uniform struct{ Min, Max float64 }

	// Constant repeats a single value.
	Constant struct{ Value float64 }

	// Distribution names a generator and its parameters.
	Distribution struct {
		Kind   string
		Mean   float64
		StdDev float64
		Min    float64
		Max    float64
		Value  float64
	}
)

// Distribution kinds.
const (
	DistNormal   = "normal"
	DistUniform  = "uniform"
	DistConstant = "constant"
)

func (g Normal) Generate(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = g.Mean + g.StdDev*rand.NormFloat64()
	}
	return out
}

func (g Normal) String() string {
	return fmt.Sprintf("normal(%g, %g)", g.Mean, g.StdDev)
}

func (g Uniform) Generate(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = g.Min + (g.Max-g.Min)*rand.Float64()
	}
	return out
}

func (g Uniform) String() string {
	return fmt.Sprintf("uniform(%g, %g)", g.Min, g.Max)
}

func (g Constant) Generate(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = g.Value
	}
	return out
}

func (g Constant) String() string {
	return fmt.Sprintf("constant(%g)", g.Value)
}

// Generator returns the generator for the distribution.
func (d Distribution) Generator() (Generator, error) {
	switch strings.ToLower(d.Kind) {
	case "", DistNormal:
		if d.StdDev < 0 {
			return nil, distError("bench.distribution.stddev", d.StdDev)
		}
		return Normal{Mean: d.Mean, StdDev: d.StdDev}, nil
	case DistUniform:
		if d.Max < d.Min {
			return nil, distError("bench.distribution.max", d.Max)
		}
		return Uniform{Min: d.Min, Max: d.Max}, nil
	case DistConstant:
		return Constant{Value: d.Value}, nil
	default:
		return nil, distError("bench.distribution.kind", d.Kind)
	}
}

func distError(name string, value any) error {
	return &errors.Error{
		Message:       fmt.Sprintf("invalid %s", name),
		Kind:          errors.ConfigurationInvalid,
		PropertyName:  name,
		PropertyValue: value,
	}
}
