// Package chunk cuts fixed-size signal windows, with their base and
// alignment context, around target bases of a prepared read.
package chunk

import (
	"fmt"

	"github.com/aria-lang/remora-go/internal/kmer"
)

// Anchor selects the sample a window is centred on.
type Anchor string

const (
	// AnchorStart centres windows on the first sample of the target base.
	AnchorStart Anchor = "start"
	// AnchorCenter centres windows on the middle sample of the target base.
	AnchorCenter Anchor = "center"
)

// Config fixes the shape of every chunk. Two chunks extracted with equal
// configurations always have equal lengths.
type Config struct {
	SignalBefore int `yaml:"signal_before" json:"signal_before"`
	SignalAfter  int `yaml:"signal_after" json:"signal_after"`
	BasesBefore  int `yaml:"bases_before" json:"bases_before"`
	BasesAfter   int `yaml:"bases_after" json:"bases_after"`
	KmerBefore   int `yaml:"kmer_before" json:"kmer_before"`
	KmerAfter    int `yaml:"kmer_after" json:"kmer_after"`
	// PadValue fills samples past either end of the read. It is not
	// reserved: normalized signal, and non-finite samples replaced during
	// normalization, can hold the same value. Use Chunk.IsPadding or
	// Chunk.Boundary to tell padding apart.
	PadValue float32 `yaml:"pad_value" json:"pad_value"`
	Anchor   Anchor  `yaml:"anchor" json:"anchor"`
}

// Symmetric returns a configuration with equal context on both sides and
// a 9-mer sequence encoding.
func Symmetric(hwSig, hwBases int) Config {
	return Config{
		SignalBefore: hwSig,
		SignalAfter:  hwSig,
		BasesBefore:  hwBases,
		BasesAfter:   hwBases,
		KmerBefore:   4,
		KmerAfter:    4,
		Anchor:       AnchorStart,
	}
}

// Default is the configuration used when none is given.
func Default() Config {
	return Symmetric(50, 4)
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.SignalBefore < 0 || c.SignalAfter < 0 {
		return fmt.Errorf("signal context must be non-negative")
	}
	if c.SignalLen() == 0 {
		return fmt.Errorf("chunk must contain at least one sample")
	}
	if c.BasesBefore < 0 || c.BasesAfter < 0 {
		return fmt.Errorf("base context must be non-negative")
	}
	if c.KmerBefore < 0 || c.KmerAfter < 0 {
		return fmt.Errorf("k-mer context must be non-negative")
	}
	switch c.Anchor {
	case AnchorStart, AnchorCenter, "":
	default:
		return fmt.Errorf("unknown anchor %q", c.Anchor)
	}
	return nil
}

// SignalLen returns the number of samples in a chunk.
func (c Config) SignalLen() int {
	return c.SignalBefore + c.SignalAfter
}

// NumBases returns the number of context bases in a chunk.
func (c Config) NumBases() int {
	return c.BasesBefore + c.BasesAfter + 1
}

// Encoder returns the k-mer encoder for this configuration.
func (c Config) Encoder() kmer.Encoder {
	return kmer.Encoder{Before: c.KmerBefore, After: c.KmerAfter}
}

// Equal reports whether two configurations produce interchangeable chunks.
func (c Config) Equal(o Config) bool {
	if c.Anchor == "" {
		c.Anchor = AnchorStart
	}
	if o.Anchor == "" {
		o.Anchor = AnchorStart
	}
	return c == o
}
