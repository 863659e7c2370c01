// Package read holds the per-read data model and prepares reads for chunk
// extraction: calibration, trimming, normalization, move-table mapping and
// (optionally) reference alignment.
package read

import (
	"errors"
	"fmt"

	"github.com/aria-lang/remora-go/internal/alignment"
	"github.com/aria-lang/remora-go/internal/signal"
)

// Strand of a reference alignment.
type Strand byte

const (
	Forward Strand = '+'
	Reverse Strand = '-'
)

// Reference describes where a read aligns. Sequence and Cigar are already
// in read (basecall) orientation; for reverse strand records the ingesting
// adapter reverse complements the reference and reverses the CIGAR.
type Reference struct {
	Contig string
	Strand Strand
	// Start is the 0-based forward-strand coordinate of the first
	// reference base in the aligned span.
	Start    int
	Sequence string
	// Cigar is optional. When empty the reference is aligned to the read
	// with the configured aligner.
	Cigar []alignment.CigarOp
}

// Position returns the contig coordinate of local reference index i,
// accounting for strand.
func (r *Reference) Position(i int) int {
	if r.Strand == Reverse {
		return r.Start + len(r.Sequence) - 1 - i
	}
	return r.Start + i
}

// Read is a single nanopore read as ingested. It is not modified after
// construction.
type Read struct {
	ID          string
	Signal      []float32 // raw DAC samples
	Calibration signal.Calibration
	Sequence    string // basecalls in signal order
	Moves       []uint8
	Stride      int
	// Trimmed is the number of leading samples the basecaller skipped (ts).
	Trimmed int
	// BasecallShift and BasecallScale map pA to basecaller-normalized
	// units (sm/sd). Only meaningful when HasBasecallScaling is set.
	BasecallShift      float64
	BasecallScale      float64
	HasBasecallScaling bool
	Qualities          []byte // Phred scores, may be nil
	Ref                *Reference
}

// Validate checks the structural fields that do not need any computation.
func (r *Read) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("read has no ID")
	}
	if len(r.Signal) == 0 {
		return &signal.InvalidSignalError{ReadID: r.ID, Reason: "empty signal"}
	}
	if r.Trimmed < 0 || r.Trimmed >= len(r.Signal) {
		return &signal.InvalidSignalError{
			ReadID:  r.ID,
			Reason:  fmt.Sprintf("trim of %d samples leaves no signal", r.Trimmed),
			Samples: len(r.Signal),
		}
	}
	if r.Qualities != nil && len(r.Qualities) != len(r.Sequence) {
		return fmt.Errorf("read %s: %d qualities for %d bases", r.ID, len(r.Qualities), len(r.Sequence))
	}
	return nil
}

// readError is implemented by errors that affect a single read only.
type readError interface {
	IsReadError()
}

// IsReadError reports whether err (or anything it wraps) is a per-read
// failure that should be tallied and skipped rather than abort a run.
func IsReadError(err error) bool {
	var re readError
	return errors.As(err, &re)
}

// Reason returns a short, stable label for a per-read failure, used to
// tally skipped reads.
func Reason(err error) string {
	var (
		sigErr   *signal.InvalidSignalError
		alignErr *alignment.AlignmentFailureError
		prepErr  *PrepareError
	)
	switch {
	case errors.As(err, &prepErr):
		return prepErr.Stage
	case errors.As(err, &sigErr):
		return "invalid signal"
	case errors.As(err, &alignErr):
		return "alignment failure"
	case err == nil:
		return ""
	default:
		return "other"
	}
}
