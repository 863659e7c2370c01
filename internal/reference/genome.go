// Package reference loads reference contigs from FASTA.
package reference

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/biogo/biogo/alphabet"
	"github.com/biogo/biogo/io/seqio/fasta"
	"github.com/biogo/biogo/seq/linear"
	"github.com/klauspost/compress/zstd"

	"github.com/aria-lang/remora-go/internal/sequence"
)

// Genome holds contig sequences in memory, upper-cased. It is read-only
// after loading and safe for concurrent use.
type Genome struct {
	contigs map[string]string
	order   []string
}

// New returns an empty genome.
func New() *Genome {
	return &Genome{contigs: make(map[string]string)}
}

// Add stores a contig, replacing any contig with the same name.
func (g *Genome) Add(name, bases string) {
	if _, ok := g.contigs[name]; !ok {
		g.order = append(g.order, name)
	}
	g.contigs[name] = sequence.Normalize(bases)
}

// ReadFASTA parses FASTA records from r.
func ReadFASTA(r io.Reader) (*Genome, error) {
	g := New()
	fafp := fasta.NewReader(r, linear.NewSeq("", nil, alphabet.DNA))
	for {
		s, err := fafp.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read fasta: %w", err)
		}
		l := s.(*linear.Seq)
		b := make([]byte, len(l.Seq))
		for i, v := range l.Seq {
			b[i] = byte(v)
		}
		g.Add(l.ID, string(b))
	}
	if len(g.order) == 0 {
		return nil, fmt.Errorf("fasta has no records")
	}
	return g, nil
}

// Open loads a FASTA file, decompressing ".zst" files.
func Open(path string) (*Genome, error) {
	fp, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fp.Close()

	var r io.Reader = fp
	if strings.HasSuffix(path, ".zst") {
		zr, err := zstd.NewReader(fp, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		defer zr.Close()
		r = zr
	}
	g, err := ReadFASTA(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}

// Names returns contig names in file order.
func (g *Genome) Names() []string {
	return append([]string(nil), g.order...)
}

// SortedNames returns contig names in lexical order.
func (g *Genome) SortedNames() []string {
	names := g.Names()
	sort.Strings(names)
	return names
}

// Len returns a contig's length.
func (g *Genome) Len(contig string) (int, bool) {
	s, ok := g.contigs[contig]
	return len(s), ok
}

// Fetch returns bases [start, end) of a contig.
func (g *Genome) Fetch(contig string, start, end int) (string, error) {
	s, ok := g.contigs[contig]
	if !ok {
		return "", fmt.Errorf("unknown contig %q", contig)
	}
	if start < 0 || end > len(s) || start > end {
		return "", fmt.Errorf("range [%d,%d) outside contig %s of length %d", start, end, contig, len(s))
	}
	return s[start:end], nil
}
