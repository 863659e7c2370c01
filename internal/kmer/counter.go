package kmer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aria-lang/remora-go/internal/sequence"
)

// Count represents a k-mer and its count.
type Count struct {
	KMer  string
	Count int
}

// Counter tallies k-mers.
type Counter struct {
	K      int
	Counts map[string]int
	Total  int
}

// NewCounter creates a new k-mer counter with the specified k value.
func NewCounter(k int) (*Counter, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive")
	}
	return &Counter{K: k, Counts: make(map[string]int)}, nil
}

// AddCodes counts the k-mer formed by codes. K-mers containing pad or
// ambiguous codes are ignored.
func (c *Counter) AddCodes(codes []sequence.Code) error {
	if len(codes) != c.K {
		return fmt.Errorf("k-mer length %d doesn't match k=%d", len(codes), c.K)
	}
	var b strings.Builder
	b.Grow(c.K)
	for _, code := range codes {
		if code < 0 || int(code) >= sequence.NumBases {
			return nil
		}
		b.WriteByte(code.Byte())
	}
	c.Counts[b.String()]++
	c.Total++
	return nil
}

// CountKMers counts all k-mers in a sequence string, skipping any with N.
func (c *Counter) CountKMers(seq string) {
	seq = strings.ToUpper(seq)
	for i := 0; i <= len(seq)-c.K; i++ {
		kmer := seq[i : i+c.K]
		if !strings.ContainsRune(kmer, 'N') {
			c.Counts[kmer]++
			c.Total++
		}
	}
}

// UniqueCount returns the number of distinct k-mers.
func (c *Counter) UniqueCount() int {
	return len(c.Counts)
}

// MostFrequent returns the n most frequent k-mers, ties broken
// lexicographically.
func (c *Counter) MostFrequent(n int) ([]Count, error) {
	if n <= 0 {
		return nil, fmt.Errorf("n must be positive")
	}
	counts := make([]Count, 0, len(c.Counts))
	for kmer, count := range c.Counts {
		counts = append(counts, Count{KMer: kmer, Count: count})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].KMer < counts[j].KMer
	})
	if n > len(counts) {
		n = len(counts)
	}
	return counts[:n], nil
}

// Merge merges another Counter into this one.
func (c *Counter) Merge(other *Counter) error {
	if c.K != other.K {
		return fmt.Errorf("k values must match")
	}
	for kmer, count := range other.Counts {
		c.Counts[kmer] += count
		c.Total += count
	}
	return nil
}

func (c *Counter) String() string {
	return fmt.Sprintf("KMerCounter { k: %d, unique: %d, total: %d }", c.K, c.UniqueCount(), c.Total)
}
