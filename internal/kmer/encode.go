// Package kmer encodes base context as k-mer channels aligned to signal
// samples, and counts context k-mers for dataset summaries.
package kmer

import (
	"fmt"

	"github.com/aria-lang/remora-go/internal/sequence"
)

// Encoder one-hot encodes, for every signal sample, the k-mer centred on
// the base that produced the sample. The k-mer spans Before bases before
// and After bases after that base.
type Encoder struct {
	Before int `yaml:"before" json:"before"`
	After  int `yaml:"after" json:"after"`
}

// NewEncoder validates the context sizes.
func NewEncoder(before, after int) (Encoder, error) {
	if before < 0 || after < 0 {
		return Encoder{}, fmt.Errorf("k-mer context must be non-negative, got %d before and %d after", before, after)
	}
	return Encoder{Before: before, After: after}, nil
}

// K returns the k-mer length.
func (e Encoder) K() int {
	return e.Before + e.After + 1
}

// Channels returns the number of encoded channels per sample.
func (e Encoder) Channels() int {
	return sequence.NumBases * e.K()
}

// Encode returns a channel-major matrix of Channels() rows and nSamples
// columns. codes are the context bases of a chunk and bounds its
// chunk-relative base boundaries (len(codes)+1 knots): base b covers
// samples [bounds[b], bounds[b+1]). Samples covered by no base, padded
// bases and ambiguous bases encode as all zeros.
func (e Encoder) Encode(codes []sequence.Code, bounds []int, nSamples int) ([]float32, error) {
	if len(bounds) != len(codes)+1 {
		return nil, fmt.Errorf("need %d base bounds, got %d", len(codes)+1, len(bounds))
	}
	k := e.K()
	out := make([]float32, sequence.NumBases*k*nSamples)
	for b := range codes {
		lo, hi := clamp(bounds[b], nSamples), clamp(bounds[b+1], nSamples)
		if lo >= hi {
			continue
		}
		for off := 0; off < k; off++ {
			j := b - e.Before + off
			if j < 0 || j >= len(codes) {
				continue
			}
			c := codes[j]
			if c < 0 || int(c) >= sequence.NumBases {
				continue
			}
			row := (off*sequence.NumBases + int(c)) * nSamples
			for s := lo; s < hi; s++ {
				out[row+s] = 1
			}
		}
	}
	return out, nil
}

func clamp(v, n int) int {
	if v < 0 {
		return 0
	}
	if v > n {
		return n
	}
	return v
}
