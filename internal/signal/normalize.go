// Package signal rescales raw nanopore current traces to a canonical
// amplitude distribution.
//
// Normalization is computed per read and is a pure function of the raw
// samples and the policy, so identical inputs always give bit-identical
// output.
package signal

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// MADToSD converts a median absolute deviation into a normal-consistent
// standard deviation estimate.
const MADToSD = 1.4826

// Method selects how shift and scale are estimated.
type Method string

const (
	MedianMAD Method = "median_mad"
	MedianIQR Method = "median_iqr"
	MeanStd   Method = "mean_std"
	// Fixed uses the caller supplied shift and scale, e.g. the basecaller's
	// sm/sd tags.
	Fixed Method = "fixed"
)

// Policy configures normalization.
type Policy struct {
	Method Method  `yaml:"method" json:"method"`
	Shift  float64 `yaml:"shift,omitempty" json:"shift,omitempty"`
	Scale  float64 `yaml:"scale,omitempty" json:"scale,omitempty"`
	// MinScale floors the estimated scale. Zero means 1.0 for median_mad
	// and "reject a flat signal" for the others.
	MinScale float64 `yaml:"min_scale,omitempty" json:"min_scale,omitempty"`
	// ClipAt clamps normalized samples to [-ClipAt, ClipAt] when > 0.
	ClipAt float64 `yaml:"clip_at,omitempty" json:"clip_at,omitempty"`
}

// DefaultPolicy returns the median/MAD policy used by the basecaller.
func DefaultPolicy() Policy {
	return Policy{Method: MedianMAD}
}

// Validate checks the policy.
func (p Policy) Validate() error {
	switch p.Method {
	case MedianMAD, MedianIQR, MeanStd:
	case Fixed:
		if !(p.Scale > 0) || math.IsInf(p.Scale, 0) || math.IsNaN(p.Shift) || math.IsInf(p.Shift, 0) {
			return fmt.Errorf("fixed normalization requires finite shift and positive scale")
		}
	default:
		return fmt.Errorf("unknown normalization method %q", p.Method)
	}
	if p.MinScale < 0 || p.ClipAt < 0 {
		return fmt.Errorf("min_scale and clip_at must be non-negative")
	}
	return nil
}

// Params are the shift and scale applied to a read: norm = (x - Shift) / Scale.
type Params struct {
	Shift float64
	Scale float64
}

// Apply normalizes a single sample.
func (p Params) Apply(x float64) float64 {
	return (x - p.Shift) / p.Scale
}

// Estimate computes normalization parameters for a trace.
func Estimate(raw []float32, p Policy) (Params, error) {
	if len(raw) == 0 {
		return Params{}, &InvalidSignalError{Reason: "empty signal"}
	}
	if p.Method == Fixed {
		if err := p.Validate(); err != nil {
			return Params{}, &InvalidSignalError{Reason: err.Error()}
		}
		return Params{Shift: p.Shift, Scale: p.Scale}, nil
	}

	finite := finiteSamples(raw)
	if len(finite) == 0 {
		return Params{}, &InvalidSignalError{Reason: "no finite samples", Samples: len(raw)}
	}

	var params Params
	switch p.Method {
	case MedianMAD, "":
		sort.Float64s(finite)
		med := median(finite)
		dev := make([]float64, len(finite))
		for i, v := range finite {
			dev[i] = math.Abs(v - med)
		}
		sort.Float64s(dev)
		minScale := p.MinScale
		if minScale == 0 {
			minScale = 1.0
		}
		params = Params{Shift: med, Scale: math.Max(minScale, median(dev)*MADToSD)}
	case MedianIQR:
		sort.Float64s(finite)
		q1 := stat.Quantile(0.25, stat.Empirical, finite, nil)
		q3 := stat.Quantile(0.75, stat.Empirical, finite, nil)
		// IQR of a standard normal is 1.349
		params = Params{Shift: median(finite), Scale: math.Max(p.MinScale, (q3-q1)/1.349)}
	case MeanStd:
		mean, std := stat.MeanStdDev(finite, nil)
		if len(finite) == 1 {
			std = 0
		}
		params = Params{Shift: mean, Scale: math.Max(p.MinScale, std)}
	default:
		return Params{}, fmt.Errorf("unknown normalization method %q", p.Method)
	}

	if !(params.Scale > 0) || math.IsInf(params.Scale, 0) {
		return Params{}, &InvalidSignalError{Reason: "signal has no spread", Samples: len(raw)}
	}
	return params, nil
}

// Normalize rescales raw to the policy's canonical distribution. The output
// has the same length as the input; non-finite samples become 0.
func Normalize(raw []float32, p Policy) ([]float32, Params, error) {
	params, err := Estimate(raw, p)
	if err != nil {
		return nil, Params{}, err
	}
	return ApplyParams(raw, params, p.ClipAt), params, nil
}

// ApplyParams normalizes raw with precomputed parameters.
func ApplyParams(raw []float32, params Params, clipAt float64) []float32 {
	out := make([]float32, len(raw))
	for i, x := range raw {
		v := float64(x)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		n := params.Apply(v)
		if clipAt > 0 {
			n = math.Max(-clipAt, math.Min(clipAt, n))
		}
		out[i] = float32(n)
	}
	return out
}

func finiteSamples(raw []float32) []float64 {
	out := make([]float64, 0, len(raw))
	for _, x := range raw {
		v := float64(x)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out = append(out, v)
	}
	return out
}

// median of an already sorted slice.
func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
