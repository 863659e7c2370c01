package dataset

import (
	"fmt"
	"strings"

	"github.com/aria-lang/remora-go/internal/kmer"
)

// Summary describes a dataset's composition.
type Summary struct {
	Chunks      int
	Classes     []string
	ClassCounts []int
	Padded      int
	Reads       int
	TopKmers    []kmer.Count
}

// Summarize counts classes, padded chunks, distinct reads and the most
// frequent k-mers centred on the target base.
func (d *Dataset) Summarize(k, top int) (*Summary, error) {
	s := &Summary{Chunks: d.Len(), Classes: d.Classes, ClassCounts: d.ClassCounts()}

	counter, err := kmer.NewCounter(k)
	if err != nil {
		return nil, err
	}
	half := (k - 1) / 2
	reads := make(map[string]struct{})
	for i := range d.Chunks {
		c := &d.Chunks[i]
		reads[c.ReadID] = struct{}{}
		if c.Padded() {
			s.Padded++
		}
		lo := c.Center - half
		if lo >= 0 && lo+k <= len(c.Bases) {
			if err := counter.AddCodes(c.Bases[lo : lo+k]); err != nil {
				return nil, err
			}
		}
	}
	s.Reads = len(reads)
	if counter.Total > 0 && top > 0 {
		s.TopKmers, err = counter.MostFrequent(top)
		if err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "chunks: %d from %d reads (%d padded)\n", s.Chunks, s.Reads, s.Padded)
	for c, n := range s.ClassCounts {
		fmt.Fprintf(&b, "  %-12s %d\n", s.Classes[c], n)
	}
	for _, km := range s.TopKmers {
		fmt.Fprintf(&b, "  %s %d\n", km.KMer, km.Count)
	}
	return b.String()
}
