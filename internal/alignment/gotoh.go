package alignment

import (
	"fmt"
	"math"
)

type state uint8

const (
	stMatch state = iota
	stIns
	stDel
)

// negInf leaves headroom so adding penalties never wraps.
const negInf int32 = math.MinInt32 / 4

// Aligner aligns basecalled reads to reference sequence.
// The zero value is not usable; Scoring must be set.
type Aligner struct {
	Scoring     *ScoringMatrix
	Mode        Mode
	Band        int     // Global mode only; 0 disables banding
	MinIdentity float64 // 0 accepts every alignment
	TieBreak    TieBreak
}

// NewAligner returns an aligner with default DNA scoring in global mode.
func NewAligner() *Aligner {
	return &Aligner{Scoring: DefaultDNA(), Mode: Global}
}

// Align aligns read against ref. The whole read is always aligned; in
// SemiGlobal mode the reference may overhang on either side for free.
func (a *Aligner) Align(read, ref string) (*Alignment, error) {
	return a.AlignRead("", read, ref)
}

// AlignRead is Align with a read ID attached to any failure.
func (a *Aligner) AlignRead(readID, read, ref string) (*Alignment, error) {
	if a.Scoring == nil {
		return nil, fmt.Errorf("aligner has no scoring matrix")
	}
	if err := a.Scoring.Validate(); err != nil {
		return nil, err
	}
	if len(read) == 0 || len(ref) == 0 {
		return nil, &AlignmentFailureError{ReadID: readID, Reason: "empty sequence", MinIdentity: a.MinIdentity}
	}

	aln := a.fill(read, ref)
	aln.Identity = aln.computeIdentity()
	if aln.Identity < a.MinIdentity {
		return aln, &AlignmentFailureError{
			ReadID:      readID,
			Reason:      "identity below threshold",
			Identity:    aln.Identity,
			MinIdentity: a.MinIdentity,
		}
	}
	return aln, nil
}

// band returns the inclusive column range allowed for row i.
func (a *Aligner) band(i, m, n int) (lo, hi int) {
	if a.Mode != Global || a.Band <= 0 {
		return 0, n
	}
	w := a.Band
	// keep consecutive row bands overlapping so the corner stays reachable
	if r := (n+m-1)/m + 1; r > w {
		w = r
	}
	c := i * n / m
	lo, hi = c-w, c+w
	if lo < 0 {
		lo = 0
	}
	if hi > n {
		hi = n
	}
	return lo, hi
}

func (a *Aligner) fill(read, ref string) *Alignment {
	m, n := len(read), len(ref)
	cols := n + 1
	sc := a.Scoring
	open, ext := int32(sc.GapOpenPenalty), int32(sc.GapExtendPenalty)
	order := a.TieBreak.order()
	free := a.Mode == SemiGlobal

	trace := make([]uint8, (m+1)*cols)
	prevM, prevI, prevD := make([]int32, cols), make([]int32, cols), make([]int32, cols)
	curM, curI, curD := make([]int32, cols), make([]int32, cols), make([]int32, cols)

	// row 0: only deletions
	prevM[0], prevI[0], prevD[0] = 0, negInf, negInf
	for j := 1; j <= n; j++ {
		prevM[j], prevI[j] = negInf, negInf
		if free {
			prevD[j] = 0
		} else {
			prevD[j] = open + int32(j)*ext
		}
	}
	if lo, hi := a.band(0, m, n); lo > 0 || hi < n {
		for j := hi + 1; j <= n; j++ {
			prevD[j] = negInf
		}
	}

	pick := func(v [3]int32) (int32, state) {
		best, from := v[order[0]], order[0]
		for _, s := range order[1:] {
			if v[s] > best {
				best, from = v[s], s
			}
		}
		return best, from
	}

	for i := 1; i <= m; i++ {
		lo, hi := a.band(i, m, n)
		for j := 0; j <= n; j++ {
			curM[j], curI[j], curD[j] = negInf, negInf, negInf
		}
		if lo == 0 {
			curI[0] = open + int32(i)*ext
			lo = 1
		}
		rb := read[i-1]
		row := i * cols
		for j := lo; j <= hi; j++ {
			var tb uint8

			vm, from := pick([3]int32{prevM[j-1], prevI[j-1], prevD[j-1]})
			if vm > negInf {
				curM[j] = vm + int32(sc.Score(rb, ref[j-1]))
			}
			tb |= uint8(from)

			vi, from := pick([3]int32{prevM[j] + open + ext, prevI[j] + ext, prevD[j] + open + ext})
			if vi > negInf {
				curI[j] = vi
			}
			tb |= uint8(from) << 2

			vd, from := pick([3]int32{curM[j-1] + open + ext, curI[j-1] + open + ext, curD[j-1] + ext})
			if vd > negInf {
				curD[j] = vd
			}
			tb |= uint8(from) << 4

			trace[row+j] = tb
		}
		prevM, curM = curM, prevM
		prevI, curI = curI, prevI
		prevD, curD = curD, prevD
	}

	// prev* now hold row m
	endJ := n
	score, st := pick([3]int32{prevM[n], prevI[n], prevD[n]})
	if free {
		for j := 0; j <= n; j++ {
			v, s := pick([3]int32{prevM[j], prevI[j], prevD[j]})
			if v > score {
				score, st, endJ = v, s, j
			}
		}
	}

	ops := traceback(trace, cols, m, endJ, st)
	for j := endJ; j < n; j++ {
		ops = append(ops, OpDeletion)
	}
	aln := newAlignment(ops, read, ref, a.Mode)
	aln.Score = int(score)
	return aln
}

// traceback walks the packed predecessor states from (m, endJ) back to the
// origin and returns the ops in forward order. Diagonal steps are returned
// as OpMatch and resolved into match/mismatch by newAlignment.
func traceback(trace []uint8, cols, m, endJ int, st state) []Op {
	ops := make([]Op, 0, m+endJ)
	i, j := m, endJ
	for i > 0 && j > 0 {
		tb := trace[i*cols+j]
		switch st {
		case stMatch:
			ops = append(ops, OpMatch)
			st = state(tb & 3)
			i--
			j--
		case stIns:
			ops = append(ops, OpInsertion)
			st = state((tb >> 2) & 3)
			i--
		case stDel:
			ops = append(ops, OpDeletion)
			st = state((tb >> 4) & 3)
			j--
		}
	}
	for ; i > 0; i-- {
		ops = append(ops, OpInsertion)
	}
	for ; j > 0; j-- {
		ops = append(ops, OpDeletion)
	}
	for l, r := 0, len(ops)-1; l < r; l, r = l+1, r-1 {
		ops[l], ops[r] = ops[r], ops[l]
	}
	return ops
}
