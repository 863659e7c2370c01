package dataset

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/aria-lang/remora-go/internal/alignment"
	"github.com/aria-lang/remora-go/internal/read"
)

// Labeler assigns a class to a read position. ok is false when the
// position carries no label and should not be extracted for training.
type Labeler interface {
	Label(p *read.Prepared, idx int) (label int, ok bool)
	// NeedsReference reports whether labels depend on reference
	// coordinates, in which case unaligned reads are skipped.
	NeedsReference() bool
}

// ReadLabeler labels every position of every read with one class, as for
// control datasets where a whole sample is known canonical or modified.
type ReadLabeler struct {
	Class int
}

func (l ReadLabeler) Label(*read.Prepared, int) (int, bool) {
	return l.Class, true
}

func (l ReadLabeler) NeedsReference() bool {
	return false
}

type site struct {
	contig string
	strand read.Strand
	pos    int
}

// RefLabeler labels positions by reference site.
type RefLabeler struct {
	sites map[site]int
}

// NewRefLabeler returns an empty reference labeler.
func NewRefLabeler() *RefLabeler {
	return &RefLabeler{sites: make(map[site]int)}
}

// Set labels a single reference site.
func (l *RefLabeler) Set(contig string, strand read.Strand, pos, class int) {
	l.sites[site{contig, strand, pos}] = class
}

// Len returns the number of labelled sites.
func (l *RefLabeler) Len() int {
	return len(l.sites)
}

func (l *RefLabeler) Label(p *read.Prepared, idx int) (int, bool) {
	if !p.Aligned() || p.Read.Ref == nil {
		return 0, false
	}
	pos := p.RefPosition(idx)
	if pos == alignment.Unaligned {
		return 0, false
	}
	ref := p.Read.Ref
	class, ok := l.sites[site{ref.Contig, ref.Strand, pos}]
	return class, ok
}

func (l *RefLabeler) NeedsReference() bool {
	return true
}

// LoadBED reads labelled sites from a BED6 file: contig, start, end, class
// name, score (ignored) and strand. Every base in [start, end) is
// labelled. Class names are resolved against classes; a bare integer is
// taken as a class index. Strand "." labels both strands.
func LoadBED(r io.Reader, classes []string) (*RefLabeler, error) {
	byName := make(map[string]int, len(classes))
	for i, c := range classes {
		byName[c] = i
	}
	l := NewRefLabeler()
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "track") || strings.HasPrefix(line, "browser") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 6 {
			return nil, fmt.Errorf("bed line %d: need 6 columns, got %d", lineNo, len(fields))
		}
		start, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fmt.Errorf("bed line %d: bad start: %w", lineNo, err)
		}
		end, err := strconv.Atoi(fields[2])
		if err != nil {
			return nil, fmt.Errorf("bed line %d: bad end: %w", lineNo, err)
		}
		if end <= start || start < 0 {
			return nil, fmt.Errorf("bed line %d: empty interval [%d,%d)", lineNo, start, end)
		}
		class, ok := byName[fields[3]]
		if !ok {
			class, err = strconv.Atoi(fields[3])
			if err != nil || class < 0 || class >= len(classes) {
				return nil, fmt.Errorf("bed line %d: unknown class %q", lineNo, fields[3])
			}
		}
		var strands []read.Strand
		switch fields[5] {
		case "+":
			strands = []read.Strand{read.Forward}
		case "-":
			strands = []read.Strand{read.Reverse}
		case ".":
			strands = []read.Strand{read.Forward, read.Reverse}
		default:
			return nil, fmt.Errorf("bed line %d: bad strand %q", lineNo, fields[5])
		}
		for pos := start; pos < end; pos++ {
			for _, s := range strands {
				l.Set(fields[0], s, pos, class)
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return l, nil
}
