package infer

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/aria-lang/remora-go/internal/duplex"
	"github.com/aria-lang/remora-go/internal/sequence"
)

// Call sources in duplex output.
const (
	SourceDuplex     = "duplex"
	SourceTemplate   = "template"
	SourceComplement = "complement"
)

// DuplexCall is one call of a duplex pair.
type DuplexCall struct {
	// TemplatePos and ComplementPos are base indices on each read,
	// duplex.Unpaired when the call has no base on that strand.
	TemplatePos   int       `json:"template_pos"`
	ComplementPos int       `json:"complement_pos"`
	Probs         []float64 `json:"probs"`
	Source        string    `json:"source"`
}

// DuplexCalls are the combined calls of a duplex pair. Template calls come
// first in template order, then complement-only calls in complement order.
type DuplexCalls struct {
	TemplateID   string       `json:"template_id"`
	ComplementID string       `json:"complement_id"`
	Calls        []DuplexCall `json:"calls"`

	Err   error  `json:"-"`
	Error string `json:"error,omitempty"`
}

// minLogProb bounds log(p) when combining.
const minLogProb = -27.631021115928547 // log(1e-12)

// Combine averages two probability vectors in log space and renormalizes.
// For two classes this is the mean of the log-odds.
func Combine(p, q []float64) []float64 {
	out := make([]float64, len(p))
	maxV := math.Inf(-1)
	for c := range p {
		out[c] = (safeLog(p[c]) + safeLog(q[c])) / 2
		if out[c] > maxV {
			maxV = out[c]
		}
	}
	var sum float64
	for c := range out {
		out[c] = math.Exp(out[c] - maxV)
		sum += out[c]
	}
	for c := range out {
		out[c] /= sum
	}
	return out
}

func safeLog(p float64) float64 {
	if p <= 0 {
		return minLogProb
	}
	return math.Max(math.Log(p), minLogProb)
}

// CallDuplex calls both strands of a pair concurrently and combines them
// at paired positions. A position called on one strand only keeps that
// strand's probabilities.
func (e *Engine) CallDuplex(ctx context.Context, pair *duplex.Pair) (*DuplexCalls, error) {
	var (
		wg         sync.WaitGroup
		tc, cc     *ReadCalls
		tErr, cErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		tc, tErr = e.CallRead(ctx, pair.Template)
	}()
	go func() {
		defer wg.Done()
		cc, cErr = e.CallRead(ctx, pair.Complement)
	}()
	wg.Wait()
	if tErr != nil {
		return nil, tErr
	}
	if cErr != nil {
		return nil, cErr
	}
	return CombineCalls(pair, tc, cc, e.strandShift), nil
}

// duplexShift returns the strand shift shared by every motif, or 0 when
// the motifs are not all palindromic with one common shift.
func duplexShift(motifs []*sequence.Motif) int {
	shift := 0
	for i, m := range motifs {
		s, ok := m.StrandShift()
		if !ok || i > 0 && s != shift {
			return 0
		}
		shift = s
	}
	return shift
}

// CombineCalls merges per-strand calls through the pair's base
// correspondence. A template call at i is matched with the complement
// call at the base paired with template base i+shift, so for CG:0 the two
// cytosines of one CpG combine with shift 1.
func CombineCalls(pair *duplex.Pair, tc, cc *ReadCalls, shift int) *DuplexCalls {
	out := &DuplexCalls{TemplateID: tc.ReadID, ComplementID: cc.ReadID}
	if tc.Err != nil && cc.Err != nil {
		out.Err = fmt.Errorf("both strands failed: template: %v; complement: %v", tc.Err, cc.Err)
		out.Error = out.Err.Error()
		return out
	}

	compIdx := make(map[int]int, cc.Len())
	for i, pos := range cc.Positions {
		compIdx[pos] = i
	}
	used := make(map[int]bool)

	for i, pos := range tc.Positions {
		call := DuplexCall{TemplatePos: pos, ComplementPos: duplex.Unpaired, Probs: tc.Probs[i], Source: SourceTemplate}
		if at := pos + shift; at >= 0 && at < len(pair.TemplateToComplement) {
			if k := pair.TemplateToComplement[at]; k != duplex.Unpaired {
				call.ComplementPos = k
				if j, ok := compIdx[k]; ok {
					call.Probs = Combine(tc.Probs[i], cc.Probs[j])
					call.Source = SourceDuplex
					used[k] = true
				}
			}
		}
		out.Calls = append(out.Calls, call)
	}
	for j, k := range cc.Positions {
		if used[k] {
			continue
		}
		tpos := duplex.Unpaired
		if k < len(pair.ComplementToTemplate) {
			if i := pair.ComplementToTemplate[k]; i != duplex.Unpaired && i-shift >= 0 && i-shift < len(pair.TemplateToComplement) {
				tpos = i - shift
			}
		}
		out.Calls = append(out.Calls, DuplexCall{TemplatePos: tpos, ComplementPos: k, Probs: cc.Probs[j], Source: SourceComplement})
	}
	return out
}
