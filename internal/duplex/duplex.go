// Package duplex pairs the template and complement reads of one molecule
// and maps each template base to its counterpart on the complement.
package duplex

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/aria-lang/remora-go/internal/alignment"
	"github.com/aria-lang/remora-go/internal/read"
	"github.com/aria-lang/remora-go/internal/sequence"
)

// Unpaired marks a base with no counterpart on the other strand.
const Unpaired = -1

// Pair is a template read, its complement read and their base
// correspondence. Both maps are monotonic: as the template index grows the
// paired complement index shrinks.
type Pair struct {
	Template   *read.Read
	Complement *read.Read
	// TemplateToComplement[i] is the complement base paired with template
	// base i, or Unpaired.
	TemplateToComplement []int
	// ComplementToTemplate is the inverse map.
	ComplementToTemplate []int
	Alignment            *alignment.Alignment
}

// NewPair aligns the template against the reverse complement of the
// complement read. A complement base k sits at index len-1-k of that
// reverse complement. Mismatched bases still pair; inserted and deleted
// bases are Unpaired.
func NewPair(template, complement *read.Read, aligner *alignment.Aligner) (*Pair, error) {
	if aligner == nil {
		aligner = alignment.NewAligner()
	}
	tSeq := sequence.Normalize(template.Sequence)
	cSeq := sequence.Normalize(complement.Sequence)
	aln, err := aligner.AlignRead(template.ID, tSeq, sequence.ReverseComplement(cSeq))
	if err != nil {
		return nil, fmt.Errorf("pair %s/%s: %w", template.ID, complement.ID, err)
	}

	t2c := aln.ReadToRef()
	c2t := make([]int, len(cSeq))
	for k := range c2t {
		c2t[k] = Unpaired
	}
	for i, j := range t2c {
		if j == alignment.Unaligned {
			t2c[i] = Unpaired
			continue
		}
		k := len(cSeq) - 1 - j
		t2c[i] = k
		c2t[k] = i
	}
	return &Pair{
		Template:             template,
		Complement:           complement,
		TemplateToComplement: t2c,
		ComplementToTemplate: c2t,
		Alignment:            aln,
	}, nil
}

// Paired returns the number of template bases with a counterpart.
func (p *Pair) Paired() int {
	n := 0
	for _, k := range p.TemplateToComplement {
		if k != Unpaired {
			n++
		}
	}
	return n
}

// IDs names the two reads of a duplex pair.
type IDs struct {
	Template   string
	Complement string
}

// ParsePairs reads a pairs file: a header line followed by one
// whitespace-separated "template complement" pair per line. Blank lines
// and lines starting with '#' are ignored.
func ParsePairs(r io.Reader) ([]IDs, error) {
	var (
		pairs      []IDs
		seenHeader bool
		lineNo     int
	)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !seenHeader {
			seenHeader = true
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("pairs line %d: want 2 read IDs, got %d fields", lineNo, len(fields))
		}
		pairs = append(pairs, IDs{Template: fields[0], Complement: fields[1]})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return pairs, nil
}
