package alignment

import (
	"fmt"
	"strings"
)

// Op is one column of a pairwise alignment.
type Op uint8

const (
	OpMatch     Op = iota // read base equals reference base
	OpMismatch            // read base differs from reference base
	OpInsertion           // read base with no reference base
	OpDeletion            // reference base with no read base
	OpUnaligned           // read base of a read that was never aligned
	OpPad                 // outside the read; only used in chunk contexts
)

func (o Op) String() string {
	switch o {
	case OpMatch:
		return "match"
	case OpMismatch:
		return "mismatch"
	case OpInsertion:
		return "insertion"
	case OpDeletion:
		return "deletion"
	case OpUnaligned:
		return "unaligned"
	case OpPad:
		return "pad"
	default:
		return "unknown"
	}
}

// cigarByte returns the extended CIGAR operation for o.
func (o Op) cigarByte() byte {
	switch o {
	case OpMatch:
		return '='
	case OpMismatch:
		return 'X'
	case OpInsertion:
		return 'I'
	case OpDeletion:
		return 'D'
	default:
		return '?'
	}
}

// consumesRead reports whether o advances the read.
func (o Op) consumesRead() bool {
	return o == OpMatch || o == OpMismatch || o == OpInsertion
}

// consumesRef reports whether o advances the reference.
func (o Op) consumesRef() bool {
	return o == OpMatch || o == OpMismatch || o == OpDeletion
}

// Alignment is the result of aligning a read against a reference.
//
// AlignedRead and AlignedRef are gapped renderings of the two inputs and
// always have the same length as Ops. RefStart and RefEnd delimit the
// reference bases actually aligned to the read; reference overhangs outside
// [RefStart, RefEnd) are still present in Ops as deletions.
type Alignment struct {
	Ops         []Op
	AlignedRead string
	AlignedRef  string
	Score       int
	Mode        Mode
	ReadLen     int
	RefLen      int
	RefStart    int
	RefEnd      int
	Identity    float64
}

// Counts holds per-kind op totals.
type Counts struct {
	Matches    int
	Mismatches int
	Insertions int
	Deletions  int
}

// Total returns the number of alignment columns.
func (c Counts) Total() int {
	return c.Matches + c.Mismatches + c.Insertions + c.Deletions
}

// newAlignment resolves diagonal steps into matches or mismatches and
// renders the gapped strings.
func newAlignment(ops []Op, read, ref string, mode Mode) *Alignment {
	var ar, af strings.Builder
	ar.Grow(len(ops))
	af.Grow(len(ops))

	i, j := 0, 0
	for k, op := range ops {
		switch op {
		case OpMatch, OpMismatch:
			if read[i] == ref[j] && read[i] != 'N' {
				ops[k] = OpMatch
			} else {
				ops[k] = OpMismatch
			}
			ar.WriteByte(read[i])
			af.WriteByte(ref[j])
			i++
			j++
		case OpInsertion:
			ar.WriteByte(read[i])
			af.WriteByte('-')
			i++
		case OpDeletion:
			ar.WriteByte('-')
			af.WriteByte(ref[j])
			j++
		}
	}

	a := &Alignment{
		Ops:         ops,
		AlignedRead: ar.String(),
		AlignedRef:  af.String(),
		Mode:        mode,
		ReadLen:     len(read),
		RefLen:      len(ref),
		RefEnd:      len(ref),
	}
	if mode == SemiGlobal {
		a.RefStart, a.RefEnd = overhangs(ops, len(ref))
	}
	return a
}

// overhangs returns the reference span between the leading and trailing
// runs of deletions.
func overhangs(ops []Op, refLen int) (start, end int) {
	lead := 0
	for lead < len(ops) && ops[lead] == OpDeletion {
		lead++
	}
	if lead == len(ops) {
		return 0, 0
	}
	trail := 0
	for k := len(ops) - 1; k >= 0 && ops[k] == OpDeletion; k-- {
		trail++
	}
	return lead, refLen - trail
}

// Counts tallies ops inside the aligned span. Free reference overhangs in
// SemiGlobal mode are not counted.
func (a *Alignment) Counts() Counts {
	lo, hi := 0, len(a.Ops)
	if a.Mode == SemiGlobal {
		for lo < hi && a.Ops[lo] == OpDeletion {
			lo++
		}
		for hi > lo && a.Ops[hi-1] == OpDeletion {
			hi--
		}
	}
	var c Counts
	for _, op := range a.Ops[lo:hi] {
		switch op {
		case OpMatch:
			c.Matches++
		case OpMismatch:
			c.Mismatches++
		case OpInsertion:
			c.Insertions++
		case OpDeletion:
			c.Deletions++
		}
	}
	return c
}

func (a *Alignment) computeIdentity() float64 {
	c := a.Counts()
	if c.Total() == 0 {
		return 0
	}
	return float64(c.Matches) / float64(c.Total())
}

// Length returns the number of alignment columns, overhangs included.
func (a *Alignment) Length() int {
	return len(a.Ops)
}

// MatchCount returns the number of matches.
func (a *Alignment) MatchCount() int {
	return a.Counts().Matches
}

// Reconstruct strips gaps from the aligned strings and returns the original
// read and reference.
func (a *Alignment) Reconstruct() (read, ref string) {
	return strings.ReplaceAll(a.AlignedRead, "-", ""), strings.ReplaceAll(a.AlignedRef, "-", "")
}

// ReadToRef returns, for each read base, the reference index it aligns to or
// Unaligned for inserted bases.
func (a *Alignment) ReadToRef() []int {
	out := make([]int, 0, a.ReadLen)
	j := 0
	for _, op := range a.Ops {
		switch {
		case op == OpInsertion:
			out = append(out, Unaligned)
		case op.consumesRead():
			out = append(out, j)
		}
		if op.consumesRef() {
			j++
		}
	}
	return out
}

// ToCIGAR generates an extended CIGAR string (=, X, I, D).
func (a *Alignment) ToCIGAR() string {
	var cigar strings.Builder
	var current byte
	count := 0
	for _, op := range a.Ops {
		b := op.cigarByte()
		if b == current {
			count++
			continue
		}
		if count > 0 {
			fmt.Fprintf(&cigar, "%d%c", count, current)
		}
		current, count = b, 1
	}
	if count > 0 {
		fmt.Fprintf(&cigar, "%d%c", count, current)
	}
	return cigar.String()
}

// Format returns a formatted string representation of the alignment.
func (a *Alignment) Format() string {
	var matchLine strings.Builder
	for _, op := range a.Ops {
		switch op {
		case OpMatch:
			matchLine.WriteByte('|')
		case OpMismatch:
			matchLine.WriteByte('.')
		default:
			matchLine.WriteByte(' ')
		}
	}
	return fmt.Sprintf("Read: %s\n      %s\nRef:  %s\nScore: %d\nIdentity: %.1f%%\nCIGAR: %s",
		a.AlignedRead, matchLine.String(), a.AlignedRef,
		a.Score, a.Identity*100, a.ToCIGAR())
}

func (a *Alignment) String() string {
	return fmt.Sprintf("Alignment { score: %d, identity: %.1f%%, length: %d, mode: %s }",
		a.Score, a.Identity*100, a.Length(), a.Mode)
}

// CigarOp is a single operation of a SAM CIGAR.
type CigarOp struct {
	Type byte
	Len  int
}

// ParseCigar parses a SAM CIGAR string such as "5S10M2I3D".
func ParseCigar(s string) ([]CigarOp, error) {
	var out []CigarOp
	n := 0
	seen := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= '0' && c <= '9' {
			n = n*10 + int(c-'0')
			seen = true
			continue
		}
		if !seen {
			return nil, fmt.Errorf("cigar %q: operation %c without length", s, c)
		}
		switch c {
		case 'M', '=', 'X', 'I', 'D', 'N', 'S', 'H', 'P':
		default:
			return nil, fmt.Errorf("cigar %q: unknown operation %c", s, c)
		}
		out = append(out, CigarOp{Type: c, Len: n})
		n, seen = 0, false
	}
	if seen {
		return nil, fmt.Errorf("cigar %q: trailing length", s)
	}
	return out, nil
}

// OpsFromCigar builds an Alignment from an existing alignment record. ref
// must hold exactly the reference bases spanned by the record. Soft-clipped
// read bases become insertions; hard clips and padding are skipped.
func OpsFromCigar(cigar []CigarOp, read, ref string) (*Alignment, error) {
	ops := make([]Op, 0, len(read)+len(ref))
	i, j := 0, 0
	for _, c := range cigar {
		for k := 0; k < c.Len; k++ {
			switch c.Type {
			case 'M', '=', 'X':
				if i >= len(read) || j >= len(ref) {
					return nil, fmt.Errorf("cigar overruns sequences (read %d, ref %d)", len(read), len(ref))
				}
				ops = append(ops, OpMatch)
				i++
				j++
			case 'I', 'S':
				if i >= len(read) {
					return nil, fmt.Errorf("cigar overruns read of length %d", len(read))
				}
				ops = append(ops, OpInsertion)
				i++
			case 'D', 'N':
				if j >= len(ref) {
					return nil, fmt.Errorf("cigar overruns reference of length %d", len(ref))
				}
				ops = append(ops, OpDeletion)
				j++
			case 'H', 'P':
			default:
				return nil, fmt.Errorf("unknown cigar operation %c", c.Type)
			}
		}
	}
	if i != len(read) {
		return nil, fmt.Errorf("cigar consumes %d read bases, read has %d", i, len(read))
	}
	if j != len(ref) {
		return nil, fmt.Errorf("cigar consumes %d reference bases, reference has %d", j, len(ref))
	}
	a := newAlignment(ops, read, ref, Global)
	a.Identity = a.computeIdentity()
	return a, nil
}
