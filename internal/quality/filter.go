// Package quality filters reads on their basecall Phred scores before they
// enter chunk extraction.
package quality

import (
	"fmt"
	"math"
)

// Category buckets a mean Phred quality.
type Category int

const (
	Poor      Category = iota // Q < 10
	Low                       // 10 <= Q < 20
	Medium                    // 20 <= Q < 30
	High                      // 30 <= Q < 40
	Excellent                 // Q >= 40
)

// Categorize returns the category of a mean quality.
func Categorize(q float64) Category {
	switch {
	case q < 10:
		return Poor
	case q < 20:
		return Low
	case q < 30:
		return Medium
	case q < 40:
		return High
	default:
		return Excellent
	}
}

func (c Category) String() string {
	switch c {
	case Poor:
		return "poor"
	case Low:
		return "low"
	case Medium:
		return "medium"
	case High:
		return "high"
	default:
		return "excellent"
	}
}

// MeanQuality averages Phred scores in probability space, so a handful of
// very poor bases pull the mean down as they would in the basecaller's own
// read-level score. Empty input returns 0.
func MeanQuality(quals []byte) float64 {
	if len(quals) == 0 {
		return 0
	}
	var sum float64
	for _, q := range quals {
		sum += math.Pow(10, -float64(q)/10)
	}
	return -10 * math.Log10(sum/float64(len(quals)))
}

// FilterResult represents the result of quality filtering.
type FilterResult struct {
	Passed      bool
	Reason      string
	MeanQuality float64
}

// Filter represents a quality filter configuration. Zero fields disable
// the corresponding check.
type Filter struct {
	MinMeanQuality float64 `yaml:"min_mean_quality" json:"min_mean_quality"`
	MinLength      int     `yaml:"min_length" json:"min_length"`
	MaxLength      int     `yaml:"max_length" json:"max_length"`
	MaxAmbiguous   int     `yaml:"max_ambiguous" json:"max_ambiguous"`
}

// DefaultFilter creates a filter with default settings.
func DefaultFilter() *Filter {
	return &Filter{MinMeanQuality: 7, MinLength: 50, MaxAmbiguous: -1}
}

// StrictFilter creates a filter with strict settings.
func StrictFilter() *Filter {
	return &Filter{MinMeanQuality: 15, MinLength: 200, MaxAmbiguous: 0}
}

// Enabled reports whether any check is active.
func (f *Filter) Enabled() bool {
	return f != nil && (f.MinMeanQuality > 0 || f.MinLength > 0 || f.MaxLength > 0 || f.MaxAmbiguous >= 0)
}

// Check checks whether a read passes the filter. quals may be nil, in which
// case the quality check is skipped. MaxAmbiguous < 0 disables the N check.
func (f *Filter) Check(bases string, quals []byte) (*FilterResult, error) {
	if quals != nil && len(quals) != len(bases) {
		return nil, fmt.Errorf("sequence and quality scores must have the same length")
	}

	result := &FilterResult{Passed: true, MeanQuality: MeanQuality(quals)}

	if quals != nil && f.MinMeanQuality > 0 && result.MeanQuality < f.MinMeanQuality {
		result.Passed = false
		result.Reason = "low mean quality"
		return result, nil
	}

	if f.MaxAmbiguous >= 0 {
		ambiguous := 0
		for i := 0; i < len(bases); i++ {
			if bases[i] == 'N' || bases[i] == 'n' {
				ambiguous++
			}
		}
		if ambiguous > f.MaxAmbiguous {
			result.Passed = false
			result.Reason = "too many ambiguous bases"
			return result, nil
		}
	}

	if f.MinLength > 0 && len(bases) < f.MinLength {
		result.Passed = false
		result.Reason = "read too short"
		return result, nil
	}
	if f.MaxLength > 0 && len(bases) > f.MaxLength {
		result.Passed = false
		result.Reason = "read too long"
		return result, nil
	}
	return result, nil
}

// FilteredError reports a read rejected by a Filter. It is fatal for the
// read only.
type FilteredError struct {
	ReadID string
	Reason string
}

func (e *FilteredError) Error() string {
	return fmt.Sprintf("read %s filtered: %s", e.ReadID, e.Reason)
}

func (e *FilteredError) IsReadError() {}
