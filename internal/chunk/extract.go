package chunk

import (
	"sort"

	"github.com/aria-lang/remora-go/internal/alignment"
	"github.com/aria-lang/remora-go/internal/read"
	"github.com/aria-lang/remora-go/internal/sequence"
)

// Extractor cuts chunks out of prepared reads. It holds no mutable state
// and is safe for concurrent use.
type Extractor struct {
	Config Config
}

// NewExtractor validates cfg and returns an extractor.
func NewExtractor(cfg Config) (*Extractor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Anchor == "" {
		cfg.Anchor = AnchorStart
	}
	return &Extractor{Config: cfg}, nil
}

// Extract builds the chunk centred on read base idx.
func (e *Extractor) Extract(p *read.Prepared, idx int, label int) (Chunk, error) {
	n := p.Len()
	if idx < 0 || idx >= n {
		return Chunk{}, &PositionError{ReadID: p.ID(), Index: idx, Len: n}
	}
	cfg := e.Config
	knots := p.Mapping.Knots

	anchor := knots[idx]
	if cfg.Anchor == AnchorCenter {
		anchor = (knots[idx] + knots[idx+1]) / 2
	}
	winStart := anchor - cfg.SignalBefore

	c := Chunk{
		ReadID:  p.ID(),
		ReadPos: idx,
		RefPos:  p.RefPosition(idx),
		Center:  cfg.BasesBefore,
		Label:   label,
	}

	var warn BoundaryWarning

	c.Signal = make([]float32, cfg.SignalLen())
	for k := range c.Signal {
		s := winStart + k
		switch {
		case s < 0:
			c.Signal[k] = cfg.PadValue
			warn.SignalBefore++
		case s >= len(p.Signal):
			c.Signal[k] = cfg.PadValue
			warn.SignalAfter++
		default:
			c.Signal[k] = p.Signal[s]
		}
	}

	nb := cfg.NumBases()
	first := idx - cfg.BasesBefore
	c.Bases = make([]sequence.Code, nb)
	c.Ops = make([]alignment.Op, nb)
	c.BaseBounds = make([]int, nb+1)
	for k := 0; k < nb; k++ {
		j := first + k
		switch {
		case j < 0:
			c.Bases[k], c.Ops[k] = sequence.PadCode, alignment.OpPad
			warn.BasesBefore++
		case j >= n:
			c.Bases[k], c.Ops[k] = sequence.PadCode, alignment.OpPad
			warn.BasesAfter++
		default:
			c.Bases[k], c.Ops[k] = p.Codes[j], p.Positions.Bases[j].Op
		}
		c.BaseBounds[k] = knots[clampIndex(j, n)] - winStart
	}
	c.BaseBounds[nb] = knots[clampIndex(first+nb, n)] - winStart

	if warn != (BoundaryWarning{}) {
		c.Boundary = &warn
	}
	return c, nil
}

func clampIndex(j, n int) int {
	if j < 0 {
		return 0
	}
	if j > n {
		return n
	}
	return j
}

// ExtractRead extracts a chunk at every position. label returns the class
// of a read position; a nil label leaves every chunk Unlabeled.
func (e *Extractor) ExtractRead(p *read.Prepared, positions []int, label func(idx int) int) ([]Chunk, error) {
	chunks := make([]Chunk, 0, len(positions))
	for _, idx := range positions {
		l := Unlabeled
		if label != nil {
			l = label(idx)
		}
		c, err := e.Extract(p, idx, l)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, nil
}

// FocusPositions returns the sorted, de-duplicated positions in bases
// selected by any motif. With no motifs every position is selected.
func FocusPositions(bases string, motifs []*sequence.Motif) []int {
	if len(motifs) == 0 {
		out := make([]int, len(bases))
		for i := range out {
			out[i] = i
		}
		return out
	}
	seen := make(map[int]struct{})
	out := make([]int, 0)
	for _, m := range motifs {
		for _, pos := range m.FocusPositions(bases) {
			if _, ok := seen[pos]; ok {
				continue
			}
			seen[pos] = struct{}{}
			out = append(out, pos)
		}
	}
	sort.Ints(out)
	return out
}
