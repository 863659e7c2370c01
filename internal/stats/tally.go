// Package stats provides per-reason failure tallies, read set summaries and
// the running metrics reported during training and inference.
package stats

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Tally counts processed items and failures by reason. It is safe for
// concurrent use.
type Tally struct {
	mu       sync.Mutex
	ok       int
	failures map[string]int
}

// NewTally returns an empty tally.
func NewTally() *Tally {
	return &Tally{failures: make(map[string]int)}
}

// Success records a successfully processed item.
func (t *Tally) Success() {
	t.mu.Lock()
	t.ok++
	t.mu.Unlock()
}

// Fail records a failed item under reason.
func (t *Tally) Fail(reason string) {
	t.mu.Lock()
	t.failures[reason]++
	t.mu.Unlock()
}

// Succeeded returns the number of successes.
func (t *Tally) Succeeded() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ok
}

// Failed returns the total number of failures.
func (t *Tally) Failed() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, c := range t.failures {
		n += c
	}
	return n
}

// Total returns successes plus failures.
func (t *Tally) Total() int {
	return t.Succeeded() + t.Failed()
}

// FailureRate returns failures over total, 0 when nothing was recorded.
func (t *Tally) FailureRate() float64 {
	total := t.Total()
	if total == 0 {
		return 0
	}
	return float64(t.Failed()) / float64(total)
}

// ReasonCount is one row of a tally.
type ReasonCount struct {
	Reason string `json:"reason"`
	Count  int    `json:"count"`
}

// Reasons returns failure counts, most frequent first.
func (t *Tally) Reasons() []ReasonCount {
	t.mu.Lock()
	out := make([]ReasonCount, 0, len(t.failures))
	for r, c := range t.failures {
		out = append(out, ReasonCount{Reason: r, Count: c})
	}
	t.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Reason < out[j].Reason
	})
	return out
}

// Count returns the number of failures recorded for reason.
func (t *Tally) Count(reason string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.failures[reason]
}

// Merge adds other's counts into t.
func (t *Tally) Merge(other *Tally) {
	ok := other.Succeeded()
	reasons := other.Reasons()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ok += ok
	for _, r := range reasons {
		t.failures[r.Reason] += r.Count
	}
}

func (t *Tally) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d ok, %d failed", t.Succeeded(), t.Failed())
	for _, r := range t.Reasons() {
		fmt.Fprintf(&b, "\n  %6d  %s", r.Count, r.Reason)
	}
	return b.String()
}
