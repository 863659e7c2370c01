package read

import (
	"errors"
	"fmt"

	"github.com/aria-lang/remora-go/internal/alignment"
	"github.com/aria-lang/remora-go/internal/moves"
	"github.com/aria-lang/remora-go/internal/sequence"
	"github.com/aria-lang/remora-go/internal/signal"
)

// Options control read preparation.
type Options struct {
	Normalize signal.Policy
	// UseBasecallScaling normalizes with the read's sm/sd values when
	// present instead of estimating from the signal.
	UseBasecallScaling bool
	// Aligner aligns reads whose reference carries no CIGAR. Nil means
	// such reads are treated as unaligned.
	Aligner *alignment.Aligner
}

// DefaultOptions returns median/MAD normalization and a global aligner.
func DefaultOptions() Options {
	return Options{
		Normalize: signal.DefaultPolicy(),
		Aligner:   alignment.NewAligner(),
	}
}

// Prepared is a read ready for chunk extraction.
type Prepared struct {
	Read *Read
	// Signal is the calibrated, trimmed and normalized signal. Base ranges
	// in Positions index into it.
	Signal    []float32
	Norm      signal.Params
	Mapping   moves.Mapping
	Bases     string // normalized basecalls
	Codes     []sequence.Code
	Positions *alignment.PositionMap
	Alignment *alignment.Alignment
	// AlignErr holds a reference alignment failure. The read remains
	// usable for label-free inference through its read-only map.
	AlignErr error
}

// ID returns the read ID.
func (p *Prepared) ID() string {
	return p.Read.ID
}

// Len returns the number of read bases.
func (p *Prepared) Len() int {
	return len(p.Codes)
}

// Aligned reports whether reference coordinates are available.
func (p *Prepared) Aligned() bool {
	return p.Positions != nil && p.Positions.Aligned()
}

// RefPosition returns the contig coordinate of read base i, or
// alignment.Unaligned.
func (p *Prepared) RefPosition(i int) int {
	if !p.Aligned() {
		return alignment.Unaligned
	}
	local := p.Positions.Bases[i].RefPos
	if local == alignment.Unaligned {
		return local
	}
	return p.Read.Ref.Position(local)
}

// Supervised returns the alignment error, if any, that excludes this read
// from reference-labelled extraction.
func (p *Prepared) Supervised() error {
	if p.AlignErr != nil {
		return p.AlignErr
	}
	if !p.Aligned() {
		return &PrepareError{ReadID: p.Read.ID, Stage: "no alignment", Err: errors.New("read has no reference alignment")}
	}
	return nil
}

// PrepareError wraps a per-read preparation failure with the stage it
// happened in.
type PrepareError struct {
	ReadID string
	Stage  string
	Err    error
}

func (e *PrepareError) Error() string {
	return fmt.Sprintf("read %s: %s: %v", e.ReadID, e.Stage, e.Err)
}

func (e *PrepareError) Unwrap() error {
	return e.Err
}

func (e *PrepareError) IsReadError() {}

// Prepare calibrates, normalizes and maps a read. A failed reference
// alignment is recorded in AlignErr rather than returned.
func Prepare(r *Read, opts Options) (*Prepared, error) {
	if err := r.Validate(); err != nil {
		return nil, &PrepareError{ReadID: r.ID, Stage: "invalid read", Err: err}
	}

	seq, err := sequence.New(r.Sequence)
	if err != nil {
		return nil, &PrepareError{ReadID: r.ID, Stage: "invalid basecalls", Err: err}
	}

	pa := signal.ToPicoAmps(r.Signal[r.Trimmed:], r.Calibration)
	policy := opts.Normalize
	if opts.UseBasecallScaling && r.HasBasecallScaling {
		policy = signal.Policy{Method: signal.Fixed, Shift: r.BasecallShift, Scale: r.BasecallScale, ClipAt: policy.ClipAt}
	}
	norm, params, err := signal.Normalize(pa, policy)
	if err != nil {
		var sigErr *signal.InvalidSignalError
		if errors.As(err, &sigErr) {
			sigErr.ReadID = r.ID
		}
		return nil, &PrepareError{ReadID: r.ID, Stage: "invalid signal", Err: err}
	}

	mapping, err := moves.Map(seq.Len(), r.Moves, r.Stride, len(norm))
	if err != nil {
		var mvErr *moves.MoveTableLengthError
		if errors.As(err, &mvErr) {
			mvErr.ReadID = r.ID
			return nil, &PrepareError{ReadID: r.ID, Stage: mvErr.Reason, Err: err}
		}
		return nil, &PrepareError{ReadID: r.ID, Stage: "invalid move table", Err: err}
	}

	p := &Prepared{
		Read:    r,
		Signal:  norm,
		Norm:    params,
		Mapping: mapping,
		Bases:   seq.Bases,
		Codes:   seq.Codes(),
	}

	if r.Ref == nil {
		p.Positions = alignment.NewReadOnlyPositionMap(mapping)
		return p, nil
	}

	aln, err := alignRead(r, seq.Bases, opts.Aligner)
	if err != nil {
		p.AlignErr = err
		p.Positions = alignment.NewReadOnlyPositionMap(mapping)
		return p, nil
	}
	pm, err := alignment.NewPositionMap(mapping, aln, 0)
	if err != nil {
		return nil, &PrepareError{ReadID: r.ID, Stage: "position map", Err: err}
	}
	p.Alignment = aln
	p.Positions = pm
	return p, nil
}

func alignRead(r *Read, bases string, aligner *alignment.Aligner) (*alignment.Alignment, error) {
	ref := sequence.Normalize(r.Ref.Sequence)
	if len(r.Ref.Cigar) > 0 {
		aln, err := alignment.OpsFromCigar(r.Ref.Cigar, bases, ref)
		if err != nil {
			return nil, &alignment.AlignmentFailureError{ReadID: r.ID, Reason: err.Error()}
		}
		if aligner != nil && aln.Identity < aligner.MinIdentity {
			return aln, &alignment.AlignmentFailureError{
				ReadID:      r.ID,
				Reason:      "identity below threshold",
				Identity:    aln.Identity,
				MinIdentity: aligner.MinIdentity,
			}
		}
		return aln, nil
	}
	if aligner == nil {
		return nil, &alignment.AlignmentFailureError{ReadID: r.ID, Reason: "no CIGAR and no aligner configured"}
	}
	return aligner.AlignRead(r.ID, bases, ref)
}
