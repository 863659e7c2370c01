package sequence

import (
	"fmt"
	"strconv"
	"strings"
)

// 4-bit mask per base
var iupacMasks = map[byte]uint8{
	'A': 1 << 0,
	'C': 1 << 1,
	'G': 1 << 2,
	'T': 1 << 3,
	'U': 1 << 3,
	'R': (1 << 0) | (1 << 2),
	'Y': (1 << 1) | (1 << 3),
	'S': (1 << 1) | (1 << 2),
	'W': (1 << 0) | (1 << 3),
	'K': (1 << 2) | (1 << 3),
	'M': (1 << 0) | (1 << 1),
	'B': (1 << 1) | (1 << 2) | (1 << 3),
	'D': (1 << 0) | (1 << 2) | (1 << 3),
	'H': (1 << 0) | (1 << 1) | (1 << 3),
	'V': (1 << 0) | (1 << 1) | (1 << 2),
	'N': 0xf,
}

// Motif is a compiled IUPAC pattern with the offset of the called base
// inside it, e.g. "CG" with offset 0 calls the C of every CpG.
type Motif struct {
	Raw    string
	Offset int
	masks  []uint8
}

// CompileMotif compiles an IUPAC motif string.
func CompileMotif(raw string) (*Motif, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("motif cannot be empty")
	}
	raw = strings.ToUpper(raw)
	masks := make([]uint8, len(raw))
	for i := 0; i < len(raw); i++ {
		m, ok := iupacMasks[raw[i]]
		if !ok {
			return nil, fmt.Errorf("invalid IUPAC base %q in motif %q", raw[i], raw)
		}
		masks[i] = m
	}
	return &Motif{Raw: raw, masks: masks}, nil
}

// ParseMotif parses "MOTIF:OFFSET" (offset defaults to 0).
func ParseMotif(spec string) (*Motif, error) {
	raw, off, found := strings.Cut(spec, ":")
	m, err := CompileMotif(raw)
	if err != nil {
		return nil, err
	}
	if found {
		o, err := strconv.Atoi(off)
		if err != nil {
			return nil, fmt.Errorf("motif %q: bad offset: %w", spec, err)
		}
		m.Offset = o
	}
	if m.Offset < 0 || m.Offset >= len(m.Raw) {
		return nil, fmt.Errorf("motif %q: offset %d outside motif", spec, m.Offset)
	}
	return m, nil
}

// Len returns the motif length.
func (m *Motif) Len() int {
	return len(m.masks)
}

// MatchAt reports whether the motif matches bases starting at pos.
func (m *Motif) MatchAt(bases string, pos int) bool {
	if pos < 0 || pos+len(m.masks) > len(bases) {
		return false
	}
	for i, mask := range m.masks {
		b := bases[pos+i]
		if b >= 'a' && b <= 'z' {
			b -= 'a' - 'A'
		}
		if mask&iupacMasks[b] == 0 || b == 'N' && mask != 0xf {
			return false
		}
	}
	return true
}

// FindAll returns every start position where the motif matches.
func (m *Motif) FindAll(bases string) []int {
	positions := make([]int, 0)
	for i := 0; i+len(m.masks) <= len(bases); i++ {
		if m.MatchAt(bases, i) {
			positions = append(positions, i)
		}
	}
	return positions
}

// FocusPositions returns the called base position of every match.
func (m *Motif) FocusPositions(bases string) []int {
	starts := m.FindAll(bases)
	for i := range starts {
		starts[i] += m.Offset
	}
	return starts
}

// StrandShift is defined for motifs equal to their own reverse
// complement, such as CG, where one site matches on both strands. It
// returns how many bases past the called base sits the base paired with
// the other strand's called base.
func (m *Motif) StrandShift() (int, bool) {
	n := len(m.masks)
	for i := range m.masks {
		if m.masks[i] != complementMask(m.masks[n-1-i]) {
			return 0, false
		}
	}
	return n - 1 - 2*m.Offset, true
}

// complementMask swaps A with T and C with G.
func complementMask(m uint8) uint8 {
	return (m&1)<<3 | (m&8)>>3 | (m&2)<<1 | (m&4)>>1
}

func (m *Motif) String() string {
	return fmt.Sprintf("%s:%d", m.Raw, m.Offset)
}
