package kmer

import (
	"testing"

	"github.com/aria-lang/remora-go/internal/sequence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncoder(t *testing.T) {
	enc, err := NewEncoder(1, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, enc.K())
	assert.Equal(t, 12, enc.Channels())

	// A C G, base 1 covers samples [2,4)
	codes := []sequence.Code{sequence.CodeA, sequence.CodeC, sequence.CodeG}
	out, err := enc.Encode(codes, []int{0, 2, 4, 5}, 5)
	require.NoError(t, err)
	require.Len(t, out, 12*5)

	at := func(offset int, c sequence.Code, s int) float32 {
		return out[(offset*sequence.NumBases+int(c))*5+s]
	}
	// sample 2: k-mer ACG
	assert.Equal(t, float32(1), at(0, sequence.CodeA, 2))
	assert.Equal(t, float32(1), at(1, sequence.CodeC, 2))
	assert.Equal(t, float32(1), at(2, sequence.CodeG, 2))
	// sample 0: k-mer .AC, leading slot empty
	for c := sequence.CodeA; c <= sequence.CodeT; c++ {
		assert.Equal(t, float32(0), at(0, c, 0))
	}
	assert.Equal(t, float32(1), at(1, sequence.CodeA, 0))
	// each sample has exactly one hot channel per filled k-mer slot
	var total float32
	for s := 0; s < 5; s++ {
		for ch := 0; ch < 12; ch++ {
			total += out[ch*5+s]
		}
	}
	assert.Equal(t, float32(2*2+3*2+2*1), total)
}

func TestEncoderPadding(t *testing.T) {
	enc := Encoder{}
	codes := []sequence.Code{sequence.PadCode, sequence.CodeT, sequence.CodeN}
	out, err := enc.Encode(codes, []int{-3, 0, 2, 6}, 4)
	require.NoError(t, err)
	assert.Equal(t, []float32{
		0, 0, 0, 0, // A
		0, 0, 0, 0, // C
		0, 0, 0, 0, // G
		1, 1, 0, 0, // T
	}, out)

	_, err = enc.Encode(codes, []int{0, 1}, 4)
	assert.Error(t, err)

	_, err = NewEncoder(-1, 0)
	assert.Error(t, err)
}

func TestCounter(t *testing.T) {
	c, err := NewCounter(2)
	require.NoError(t, err)

	c.CountKMers("ACGACNA")
	assert.Equal(t, 4, c.Total)
	assert.Equal(t, 2, c.Counts["AC"])

	require.NoError(t, c.AddCodes([]sequence.Code{sequence.CodeC, sequence.CodeG}))
	require.NoError(t, c.AddCodes([]sequence.Code{sequence.PadCode, sequence.CodeG}))
	assert.Error(t, c.AddCodes([]sequence.Code{sequence.CodeC}))

	top, err := c.MostFrequent(2)
	require.NoError(t, err)
	assert.Equal(t, []Count{{"AC", 2}, {"CG", 2}}, top)

	other, _ := NewCounter(2)
	other.CountKMers("TT")
	require.NoError(t, c.Merge(other))
	assert.Equal(t, 6, c.Total)

	_, err = NewCounter(0)
	assert.Error(t, err)
}
