package duplex

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aria-lang/remora-go/internal/read"
	"github.com/aria-lang/remora-go/internal/sequence"
)

func TestNewPairExactComplement(t *testing.T) {
	tmpl := &read.Read{ID: "t", Sequence: "ACGTTGCA"}
	comp := &read.Read{ID: "c", Sequence: sequence.ReverseComplement("ACGTTGCA")}

	p, err := NewPair(tmpl, comp, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{7, 6, 5, 4, 3, 2, 1, 0}, p.TemplateToComplement)
	assert.Equal(t, []int{7, 6, 5, 4, 3, 2, 1, 0}, p.ComplementToTemplate)
	assert.Equal(t, 8, p.Paired())
}

func TestNewPairInsertion(t *testing.T) {
	// Template carries an extra C at index 6 that the complement lacks.
	tmpl := &read.Read{ID: "t", Sequence: "ACGTAGCATT"}
	comp := &read.Read{ID: "c", Sequence: sequence.ReverseComplement("ACGTAGATT")}

	p, err := NewPair(tmpl, comp, nil)
	require.NoError(t, err)
	require.Len(t, p.TemplateToComplement, 10)
	assert.Equal(t, 9, p.Paired())

	unpaired := -1
	for i, k := range p.TemplateToComplement {
		if k == Unpaired {
			unpaired = i
		}
	}
	assert.Equal(t, 6, unpaired)

	prev := len(comp.Sequence)
	for _, k := range p.TemplateToComplement {
		if k == Unpaired {
			continue
		}
		assert.Less(t, k, prev)
		prev = k
	}
	for k, i := range p.ComplementToTemplate {
		require.NotEqual(t, Unpaired, i)
		assert.Equal(t, k, p.TemplateToComplement[i])
	}
}

func TestParsePairs(t *testing.T) {
	in := "template complement\n# comment\nr1 r2\n\nr3\tr4\n"
	pairs, err := ParsePairs(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []IDs{{"r1", "r2"}, {"r3", "r4"}}, pairs)

	_, err = ParsePairs(strings.NewReader("header\nr1 r2 r3\n"))
	assert.Error(t, err)
}
