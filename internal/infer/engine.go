// Package infer calls modifications on reads with a trained model.
package infer

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aria-lang/remora-go/internal/checkpoint"
	"github.com/aria-lang/remora-go/internal/chunk"
	"github.com/aria-lang/remora-go/internal/kmer"
	"github.com/aria-lang/remora-go/internal/model"
	"github.com/aria-lang/remora-go/internal/read"
	"github.com/aria-lang/remora-go/internal/sequence"
)

// Options configure an Engine.
type Options struct {
	Prepare read.Options
	// Chunk overrides the checkpoint's chunk configuration. It must match
	// what the model was trained with.
	Chunk *chunk.Config
	// Motifs overrides the checkpoint's focus motifs.
	Motifs []*sequence.Motif
	// CallUnaligned calls reads whose reference alignment failed, without
	// reference coordinates. By default they get an error and no calls.
	CallUnaligned bool
	BatchSize     int
	Workers       int
	Logger        zerolog.Logger
}

// DefaultOptions returns options matching a checkpoint's training setup.
func DefaultOptions(ck *checkpoint.Checkpoint) Options {
	prep := read.DefaultOptions()
	prep.Normalize = ck.Normalize
	prep.UseBasecallScaling = ck.UseBasecallScaling
	return Options{
		Prepare:   prep,
		BatchSize: 256,
		Workers:   4,
		Logger:    zerolog.Nop(),
	}
}

// Engine runs a loaded model over reads. It is safe for concurrent use.
type Engine struct {
	model     model.Model
	ck        *checkpoint.Checkpoint
	extractor *chunk.Extractor
	enc       kmer.Encoder
	motifs    []*sequence.Motif
	// strandShift offsets duplex pairing so the two called bases of one
	// palindromic site meet. See duplexShift.
	strandShift int
	opts        Options
	logger      zerolog.Logger
}

// NewEngine loads the checkpoint's model and verifies that the options
// reproduce its training configuration.
func NewEngine(ck *checkpoint.Checkpoint, opts Options) (*Engine, error) {
	cfg := ck.Chunk
	if opts.Chunk != nil {
		cfg = *opts.Chunk
	}
	if err := ck.Verify(cfg, opts.Prepare.Normalize, opts.Prepare.UseBasecallScaling); err != nil {
		return nil, err
	}
	m, err := ck.BuildModel()
	if err != nil {
		return nil, err
	}
	ext, err := chunk.NewExtractor(cfg)
	if err != nil {
		return nil, err
	}
	motifs := opts.Motifs
	if motifs == nil {
		for _, raw := range ck.Motifs {
			mo, err := sequence.ParseMotif(raw)
			if err != nil {
				return nil, fmt.Errorf("checkpoint %s motif: %w", ck.ID, err)
			}
			motifs = append(motifs, mo)
		}
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 256
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Engine{
		model:       m,
		ck:          ck,
		extractor:   ext,
		enc:         cfg.Encoder(),
		motifs:      motifs,
		strandShift: duplexShift(motifs),
		opts:        opts,
		logger:      opts.Logger,
	}, nil
}

// Classes returns the class labels in probability order.
func (e *Engine) Classes() []string {
	return e.ck.Classes
}

// Checkpoint returns the loaded checkpoint.
func (e *Engine) Checkpoint() *checkpoint.Checkpoint {
	return e.ck
}

// ReadCalls holds the per-position class probabilities of one read.
type ReadCalls struct {
	ReadID string `json:"read_id"`
	Contig string `json:"contig,omitempty"`
	Strand string `json:"strand,omitempty"`
	// Positions are read base indices in basecall order.
	Positions []int `json:"positions"`
	// RefPositions are contig coordinates, alignment.Unaligned where the
	// base did not align. Empty for reads without a reference.
	RefPositions []int       `json:"ref_positions,omitempty"`
	Probs        [][]float64 `json:"probs"`

	Err   error  `json:"-"`
	Error string `json:"error,omitempty"`
}

func (c *ReadCalls) fail(err error) {
	c.Err = err
	c.Error = err.Error()
}

// Len returns the number of calls.
func (c *ReadCalls) Len() int {
	return len(c.Positions)
}

// Index returns the call index for read position pos, or -1.
func (c *ReadCalls) Index(pos int) int {
	for i, p := range c.Positions {
		if p == pos {
			return i
		}
	}
	return -1
}

// CallRead prepares r and calls every focus position. Per-read failures
// are reported in the result's Err; the returned error is reserved for
// cancellation and model failures.
func (e *Engine) CallRead(ctx context.Context, r *read.Read) (*ReadCalls, error) {
	calls := &ReadCalls{ReadID: r.ID}
	p, err := read.Prepare(r, e.opts.Prepare)
	if err != nil {
		if read.IsReadError(err) {
			calls.fail(err)
			return calls, nil
		}
		return nil, err
	}
	if p.AlignErr != nil && !e.opts.CallUnaligned {
		calls.fail(p.AlignErr)
		return calls, nil
	}
	if p.Aligned() {
		calls.Contig = r.Ref.Contig
		calls.Strand = string(r.Ref.Strand)
	}

	positions := chunk.FocusPositions(p.Bases, e.motifs)
	for start := 0; start < len(positions); start += e.opts.BatchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := start + e.opts.BatchSize
		if end > len(positions) {
			end = len(positions)
		}
		for _, idx := range positions[start:end] {
			c, err := e.extractor.Extract(p, idx, chunk.Unlabeled)
			if err != nil {
				return nil, err
			}
			in, err := model.NewInput(&c, e.enc)
			if err != nil {
				return nil, err
			}
			probs, err := e.model.Forward(in)
			if err != nil {
				return nil, fmt.Errorf("read %s position %d: %w", r.ID, idx, err)
			}
			calls.Positions = append(calls.Positions, idx)
			calls.Probs = append(calls.Probs, probs)
			if p.Aligned() {
				calls.RefPositions = append(calls.RefPositions, c.RefPos)
			}
		}
	}
	e.logger.Debug().Str("read", r.ID).Int("calls", calls.Len()).Msg("read called")
	return calls, nil
}
