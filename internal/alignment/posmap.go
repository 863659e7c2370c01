package alignment

import (
	"fmt"

	"github.com/aria-lang/remora-go/internal/moves"
)

// Unaligned marks a read base with no reference coordinate.
const Unaligned = -1

// BaseMapping locates one read base in signal and reference space.
type BaseMapping struct {
	Signal moves.Range
	RefPos int
	Op     Op
}

// PositionMap links every read base to its signal range and, when the read
// is aligned, to a reference coordinate.
type PositionMap struct {
	Bases []BaseMapping
	// RefToSignal holds len(ref)+1 knots: reference base r spans
	// [RefToSignal[r], RefToSignal[r+1]). Deleted reference bases get an
	// empty range at the signal start of the next read base. Nil for
	// unaligned reads.
	RefToSignal []int
	// RefOrigin is added to local reference indices to obtain RefPos.
	RefOrigin int
}

// NewPositionMap combines a move-table mapping with an alignment. Reference
// positions are reported relative to refOrigin, typically the reference
// window start on its contig.
func NewPositionMap(mapping moves.Mapping, aln *Alignment, refOrigin int) (*PositionMap, error) {
	n := mapping.NumBases()
	if aln.ReadLen != n {
		return nil, fmt.Errorf("alignment covers %d read bases, mapping has %d", aln.ReadLen, n)
	}
	pm := &PositionMap{
		Bases:       make([]BaseMapping, n),
		RefToSignal: make([]int, aln.RefLen+1),
		RefOrigin:   refOrigin,
	}
	i, j := 0, 0
	for _, op := range aln.Ops {
		switch op {
		case OpMatch, OpMismatch:
			pm.Bases[i] = BaseMapping{Signal: mapping.Range(i), RefPos: refOrigin + j, Op: op}
			pm.RefToSignal[j] = mapping.Knots[i]
			i++
			j++
		case OpInsertion:
			pm.Bases[i] = BaseMapping{Signal: mapping.Range(i), RefPos: Unaligned, Op: op}
			i++
		case OpDeletion:
			pm.RefToSignal[j] = mapping.Knots[i]
			j++
		}
	}
	pm.RefToSignal[aln.RefLen] = mapping.Knots[n]
	return pm, nil
}

// NewReadOnlyPositionMap maps read bases to signal without any reference.
func NewReadOnlyPositionMap(mapping moves.Mapping) *PositionMap {
	n := mapping.NumBases()
	pm := &PositionMap{Bases: make([]BaseMapping, n)}
	for i := 0; i < n; i++ {
		pm.Bases[i] = BaseMapping{Signal: mapping.Range(i), RefPos: Unaligned, Op: OpUnaligned}
	}
	return pm
}

// Len returns the number of read bases.
func (pm *PositionMap) Len() int {
	return len(pm.Bases)
}

// Aligned reports whether the map carries reference coordinates.
func (pm *PositionMap) Aligned() bool {
	return pm.RefToSignal != nil
}

// RefRange returns the signal range of local reference index r.
func (pm *PositionMap) RefRange(r int) (moves.Range, error) {
	if r < 0 || r+1 >= len(pm.RefToSignal) {
		return moves.Range{}, fmt.Errorf("reference index %d outside [0,%d)", r, len(pm.RefToSignal)-1)
	}
	return moves.Range{Start: pm.RefToSignal[r], End: pm.RefToSignal[r+1]}, nil
}

// ReadIndexOfRef returns the read base aligned to reference coordinate
// refPos, or -1 if the coordinate is deleted or outside the alignment.
func (pm *PositionMap) ReadIndexOfRef(refPos int) int {
	for i, b := range pm.Bases {
		if b.RefPos == refPos {
			return i
		}
	}
	return -1
}
