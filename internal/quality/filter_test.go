package quality

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMeanQuality(t *testing.T) {
	assert.InDelta(t, 20.0, MeanQuality([]byte{20, 20, 20}), 1e-9)
	// one Q10 base dominates three Q40 bases
	assert.Less(t, MeanQuality([]byte{40, 40, 40, 10}), 17.0)
	assert.Equal(t, 0.0, MeanQuality(nil))
}

func TestCategorize(t *testing.T) {
	assert.Equal(t, Poor, Categorize(5))
	assert.Equal(t, Medium, Categorize(20))
	assert.Equal(t, Excellent, Categorize(41))
	assert.Equal(t, "high", Categorize(35).String())
}

func TestFilterCheck(t *testing.T) {
	f := &Filter{MinMeanQuality: 15, MinLength: 4, MaxLength: 8, MaxAmbiguous: 1}

	tests := []struct {
		name   string
		bases  string
		quals  []byte
		passed bool
		reason string
	}{
		{name: "pass", bases: "ACGTA", quals: []byte{20, 20, 20, 20, 20}, passed: true},
		{name: "no qualities", bases: "ACGTA", passed: true},
		{name: "low quality", bases: "ACGTA", quals: []byte{5, 5, 5, 5, 5}, reason: "low mean quality"},
		{name: "ambiguous", bases: "ANNTA", reason: "too many ambiguous bases"},
		{name: "short", bases: "ACG", reason: "read too short"},
		{name: "long", bases: "ACGTACGTA", reason: "read too long"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.Check(tt.bases, tt.quals)
			require.NoError(t, err)
			assert.Equal(t, tt.passed, res.Passed)
			assert.Equal(t, tt.reason, res.Reason)
		})
	}

	_, err := f.Check("ACGT", []byte{1})
	assert.Error(t, err)

	assert.True(t, DefaultFilter().Enabled())
	assert.False(t, (&Filter{MaxAmbiguous: -1}).Enabled())
}
