package chunk

import (
	"fmt"

	"github.com/aria-lang/remora-go/internal/alignment"
	"github.com/aria-lang/remora-go/internal/sequence"
)

// Unlabeled marks a chunk without a class label.
const Unlabeled = -1

// BoundaryWarning records how much of a chunk had to be padded because the
// window ran past either end of the read. It is informational; padded
// chunks are still valid.
type BoundaryWarning struct {
	SignalBefore int
	SignalAfter  int
	BasesBefore  int
	BasesAfter   int
}

func (w BoundaryWarning) String() string {
	return fmt.Sprintf("padded %d+%d samples, %d+%d bases",
		w.SignalBefore, w.SignalAfter, w.BasesBefore, w.BasesAfter)
}

// Chunk is a fixed-size training or inference example.
type Chunk struct {
	ReadID  string
	ReadPos int // index of the target base in the read
	RefPos  int // contig coordinate of the target base, or alignment.Unaligned

	Signal []float32
	Bases  []sequence.Code
	Ops    []alignment.Op
	// BaseBounds has len(Bases)+1 knots relative to the window start;
	// context base b covers [BaseBounds[b], BaseBounds[b+1]). Knots may
	// fall outside [0, len(Signal)] for bases partly outside the window.
	BaseBounds []int
	Center     int // index of the target base in Bases

	Label    int
	Boundary *BoundaryWarning
}

// Padded reports whether any part of the chunk is padding.
func (c *Chunk) Padded() bool {
	return c.Boundary != nil
}

// IsPadding reports whether signal sample k is padding rather than read
// signal. It does not look at sample values.
func (c *Chunk) IsPadding(k int) bool {
	if c.Boundary == nil {
		return false
	}
	return k < c.Boundary.SignalBefore || k >= len(c.Signal)-c.Boundary.SignalAfter
}

// Labeled reports whether the chunk carries a class label.
func (c *Chunk) Labeled() bool {
	return c.Label != Unlabeled
}

// Context renders the base context, pads as '.'.
func (c *Chunk) Context() string {
	b := make([]byte, len(c.Bases))
	for i, code := range c.Bases {
		b[i] = code.Byte()
	}
	return string(b)
}

// PositionError is returned when a target base lies outside the read.
type PositionError struct {
	ReadID string
	Index  int
	Len    int
}

func (e *PositionError) Error() string {
	return fmt.Sprintf("read %s: base index %d outside [0,%d)", e.ReadID, e.Index, e.Len)
}
