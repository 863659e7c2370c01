// Package moves converts a basecaller move table into per-base signal
// ranges.
//
// A move table holds one flag per signal stride; a 1 marks the stride where
// a new base begins. Base i therefore starts at stride*k_i, where k_i is the
// index of the i-th set flag, and runs until the next base starts. The last
// base runs to the end of the signal used by basecalling.
package moves

import "fmt"

// Range is a half-open signal sample interval [Start, End).
type Range struct {
	Start int
	End   int
}

// Len returns the number of samples in the range.
func (r Range) Len() int {
	return r.End - r.Start
}

// Mapping holds N+1 knots for an N base read: base i spans
// [Knots[i], Knots[i+1]).
type Mapping struct {
	Knots  []int
	Stride int
}

// Map builds the base-to-signal mapping for a read with seqLen bases.
// sigLen is the length of the (trimmed) signal the basecaller consumed.
func Map(seqLen int, mv []uint8, stride, sigLen int) (Mapping, error) {
	if stride <= 0 {
		return Mapping{}, fmt.Errorf("move table stride must be positive, got %d", stride)
	}
	if len(mv) != sigLen/stride {
		return Mapping{}, &MoveTableLengthError{
			Reason:   "move table discordant with signal",
			Expected: sigLen / stride,
			Actual:   len(mv),
		}
	}

	if seqLen <= 0 {
		return Mapping{}, &MoveTableLengthError{Reason: "read has no bases", Actual: countMoves(mv)}
	}

	knots := make([]int, 0, seqLen+1)
	for k, flag := range mv {
		if flag != 0 {
			knots = append(knots, stride*k)
		}
	}
	if len(knots) != seqLen {
		return Mapping{}, &MoveTableLengthError{
			Reason:   "move table discordant with basecalls",
			Expected: seqLen,
			Actual:   len(knots),
		}
	}
	knots = append(knots, sigLen)
	return Mapping{Knots: knots, Stride: stride}, nil
}

// FromKnots wraps precomputed knots, checking monotonicity.
func FromKnots(knots []int) (Mapping, error) {
	if len(knots) < 2 {
		return Mapping{}, fmt.Errorf("mapping needs at least two knots, got %d", len(knots))
	}
	for i := 1; i < len(knots); i++ {
		if knots[i] <= knots[i-1] {
			return Mapping{}, fmt.Errorf("knots not strictly increasing at base %d", i-1)
		}
	}
	return Mapping{Knots: append([]int(nil), knots...), Stride: 1}, nil
}

func countMoves(mv []uint8) int {
	n := 0
	for _, flag := range mv {
		if flag != 0 {
			n++
		}
	}
	return n
}

// NumBases returns the number of mapped bases.
func (m Mapping) NumBases() int {
	if len(m.Knots) == 0 {
		return 0
	}
	return len(m.Knots) - 1
}

// Range returns the signal range of base i.
func (m Mapping) Range(i int) Range {
	return Range{Start: m.Knots[i], End: m.Knots[i+1]}
}

// Ranges returns every base's signal range.
func (m Mapping) Ranges() []Range {
	out := make([]Range, m.NumBases())
	for i := range out {
		out[i] = m.Range(i)
	}
	return out
}

// Span returns the total signal interval covered by the read's bases.
func (m Mapping) Span() Range {
	if m.NumBases() == 0 {
		return Range{}
	}
	return Range{Start: m.Knots[0], End: m.Knots[len(m.Knots)-1]}
}

// BaseAt returns the base covering sample s, or -1 outside the span.
func (m Mapping) BaseAt(s int) int {
	n := m.NumBases()
	if n == 0 || s < m.Knots[0] || s >= m.Knots[n] {
		return -1
	}
	lo, hi := 0, n-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if m.Knots[mid] <= s {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo
}

// MoveTableLengthError is returned when the move table disagrees with the
// basecalled sequence or the signal. It is fatal for the read only.
type MoveTableLengthError struct {
	ReadID   string
	Reason   string
	Expected int
	Actual   int
}

func (e *MoveTableLengthError) Error() string {
	msg := fmt.Sprintf("%s: expected %d, got %d", e.Reason, e.Expected, e.Actual)
	if e.ReadID != "" {
		return fmt.Sprintf("read %s: %s", e.ReadID, msg)
	}
	return msg
}

func (e *MoveTableLengthError) IsReadError() {}
