package infer

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aria-lang/remora-go/internal/checkpoint"
	"github.com/aria-lang/remora-go/internal/chunk"
	"github.com/aria-lang/remora-go/internal/duplex"
	"github.com/aria-lang/remora-go/internal/model"
	"github.com/aria-lang/remora-go/internal/read"
	"github.com/aria-lang/remora-go/internal/sequence"
	"github.com/aria-lang/remora-go/internal/signal"
)

func synthRead(id, seq string, samplesPerBase int, rng *rand.Rand) *read.Read {
	r := &read.Read{ID: id, Sequence: seq, Stride: 1}
	for range seq {
		for k := 0; k < samplesPerBase; k++ {
			r.Signal = append(r.Signal, float32(rng.NormFloat64()*10+90))
			if k == 0 {
				r.Moves = append(r.Moves, 1)
			} else {
				r.Moves = append(r.Moves, 0)
			}
		}
	}
	return r
}

func testCheckpoint(t *testing.T) *checkpoint.Checkpoint {
	t.Helper()
	cfg := chunk.Symmetric(4, 1)
	m, err := model.New(model.Spec{Arch: "conv", Filters: 4, Kernel: 3, Hidden: 4, Seed: 2}.ForChunks(cfg, 2))
	require.NoError(t, err)
	return checkpoint.New(m, cfg, signal.DefaultPolicy(), []string{"C", "5mC"}, []string{"CG:0"})
}

func testEngine(t *testing.T, mutate func(*Options)) *Engine {
	t.Helper()
	ck := testCheckpoint(t)
	opts := DefaultOptions(ck)
	opts.Workers = 3
	if mutate != nil {
		mutate(&opts)
	}
	e, err := NewEngine(ck, opts)
	require.NoError(t, err)
	return e
}

func assertSimplex(t *testing.T, probs []float64) {
	t.Helper()
	var sum float64
	for _, p := range probs {
		assert.GreaterOrEqual(t, p, 0.0)
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-5)
}

func TestCallRead(t *testing.T) {
	e := testEngine(t, nil)
	r := synthRead("r1", "ACGTACGTAA", 4, rand.New(rand.NewSource(1)))

	calls, err := e.CallRead(context.Background(), r)
	require.NoError(t, err)
	require.NoError(t, calls.Err)
	assert.Equal(t, []int{1, 5}, calls.Positions)
	assert.Empty(t, calls.RefPositions)
	require.Len(t, calls.Probs, 2)
	for _, p := range calls.Probs {
		assertSimplex(t, p)
	}
	assert.Equal(t, 1, calls.Index(5))
	assert.Equal(t, -1, calls.Index(2))

	again, err := e.CallRead(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, calls.Probs, again.Probs)
}

func TestCallReadWithReference(t *testing.T) {
	e := testEngine(t, nil)
	r := synthRead("r1", "ACGTACGTAA", 4, rand.New(rand.NewSource(1)))
	r.Ref = &read.Reference{Contig: "chr1", Strand: read.Forward, Start: 100, Sequence: "ACGTACGTAA"}

	calls, err := e.CallRead(context.Background(), r)
	require.NoError(t, err)
	require.NoError(t, calls.Err)
	assert.Equal(t, "chr1", calls.Contig)
	assert.Equal(t, "+", calls.Strand)
	assert.Equal(t, []int{101, 105}, calls.RefPositions)
}

func TestCallReadFailures(t *testing.T) {
	rng := rand.New(rand.NewSource(2))

	t.Run("bad move table", func(t *testing.T) {
		e := testEngine(t, nil)
		r := synthRead("bad", "ACGTACGTAA", 4, rng)
		r.Moves[4] = 0
		calls, err := e.CallRead(context.Background(), r)
		require.NoError(t, err)
		assert.Error(t, calls.Err)
		assert.NotEmpty(t, calls.Error)
		assert.Zero(t, calls.Len())
	})

	unaligned := func() *read.Read {
		r := synthRead("far", "ACGTACGTAA", 4, rng)
		r.Ref = &read.Reference{Contig: "chr1", Strand: read.Forward, Sequence: "TTTTTTTTTT"}
		return r
	}
	strict := func(o *Options) { o.Prepare.Aligner.MinIdentity = 0.9 }

	t.Run("alignment failure", func(t *testing.T) {
		e := testEngine(t, strict)
		calls, err := e.CallRead(context.Background(), unaligned())
		require.NoError(t, err)
		assert.Equal(t, "alignment failure", read.Reason(calls.Err))
		assert.Zero(t, calls.Len())
	})

	t.Run("call unaligned", func(t *testing.T) {
		e := testEngine(t, func(o *Options) {
			strict(o)
			o.CallUnaligned = true
		})
		calls, err := e.CallRead(context.Background(), unaligned())
		require.NoError(t, err)
		assert.NoError(t, calls.Err)
		assert.Equal(t, []int{1, 5}, calls.Positions)
		assert.Empty(t, calls.RefPositions)
	})
}

func TestNewEngineConfigMismatch(t *testing.T) {
	ck := testCheckpoint(t)
	opts := DefaultOptions(ck)
	other := chunk.Symmetric(5, 1)
	opts.Chunk = &other

	_, err := NewEngine(ck, opts)
	var mismatch *checkpoint.ConfigMismatchError
	assert.True(t, errors.As(err, &mismatch))

	t.Run("basecall scaling", func(t *testing.T) {
		ck := testCheckpoint(t)
		ck.UseBasecallScaling = true
		opts := DefaultOptions(ck)
		assert.True(t, opts.Prepare.UseBasecallScaling)
		_, err := NewEngine(ck, opts)
		require.NoError(t, err)

		opts.Prepare.UseBasecallScaling = false
		_, err = NewEngine(ck, opts)
		var mismatch *checkpoint.ConfigMismatchError
		require.True(t, errors.As(err, &mismatch))
		assert.Equal(t, "use_basecall_scaling", mismatch.Field)
	})
}

func TestStream(t *testing.T) {
	e := testEngine(t, nil)
	rng := rand.New(rand.NewSource(3))
	reads := make(chan *read.Read)
	go func() {
		defer close(reads)
		for i := 0; i < 5; i++ {
			reads <- synthRead("r"+string(rune('0'+i)), "ACGTACGTAA", 4, rng)
		}
		bad := synthRead("bad", "ACGTACGTAA", 4, rng)
		bad.Moves = bad.Moves[:10]
		reads <- bad
	}()

	var (
		mu   sync.Mutex
		seen = map[string]*ReadCalls{}
	)
	tally, err := e.Stream(context.Background(), reads, func(c *ReadCalls) error {
		mu.Lock()
		defer mu.Unlock()
		seen[c.ReadID] = c
		return nil
	})
	require.NoError(t, err)
	assert.Len(t, seen, 6)
	assert.Equal(t, 5, tally.Succeeded())
	assert.Equal(t, 1, tally.Failed())
	assert.Error(t, seen["bad"].Err)
	assert.Equal(t, 2, seen["r0"].Len())
}

func TestStreamVisitError(t *testing.T) {
	e := testEngine(t, nil)
	rng := rand.New(rand.NewSource(4))
	reads := make(chan *read.Read, 4)
	for i := 0; i < 4; i++ {
		reads <- synthRead("r", "ACGTACGTAA", 4, rng)
	}
	close(reads)

	stop := errors.New("stop")
	_, err := e.Stream(context.Background(), reads, func(*ReadCalls) error { return stop })
	assert.ErrorIs(t, err, stop)
}

func TestCombine(t *testing.T) {
	got := Combine([]float64{0.8, 0.2}, []float64{0.6, 0.4})
	a, b := math.Sqrt(0.8*0.6), math.Sqrt(0.2*0.4)
	assert.InDeltaSlice(t, []float64{a / (a + b), b / (a + b)}, got, 1e-12)

	// Two-class combination averages log-odds.
	logit := func(p float64) float64 { return math.Log(p / (1 - p)) }
	assert.InDelta(t, (logit(0.8)+logit(0.6))/2, logit(got[0]), 1e-9)

	assertSimplex(t, Combine([]float64{1, 0}, []float64{0, 1}))
}

func TestCombineCallsUnpairedFallback(t *testing.T) {
	pair := &duplex.Pair{
		TemplateToComplement: []int{6, 5, 4, 3, 2, duplex.Unpaired, 1, 0},
		ComplementToTemplate: []int{7, 6, 4, 3, 2, 1, 0},
	}
	tc := &ReadCalls{ReadID: "t", Positions: []int{2, 5}, Probs: [][]float64{{0.3, 0.7}, {0.9, 0.1}}}
	cc := &ReadCalls{ReadID: "c", Positions: []int{1, 4}, Probs: [][]float64{{0.2, 0.8}, {0.5, 0.5}}}

	out := CombineCalls(pair, tc, cc, 0)
	require.NoError(t, out.Err)
	require.Len(t, out.Calls, 3)

	assert.Equal(t, DuplexCall{TemplatePos: 2, ComplementPos: 4, Probs: Combine(tc.Probs[0], cc.Probs[1]), Source: SourceDuplex}, out.Calls[0])
	assert.Equal(t, DuplexCall{TemplatePos: 5, ComplementPos: duplex.Unpaired, Probs: []float64{0.9, 0.1}, Source: SourceTemplate}, out.Calls[1])
	assert.Equal(t, DuplexCall{TemplatePos: 6, ComplementPos: 1, Probs: []float64{0.2, 0.8}, Source: SourceComplement}, out.Calls[2])
}

func TestCombineCallsOneStrandFailed(t *testing.T) {
	pair := &duplex.Pair{TemplateToComplement: []int{1, 0}, ComplementToTemplate: []int{1, 0}}
	failed := &ReadCalls{ReadID: "t", Err: errors.New("boom")}
	cc := &ReadCalls{ReadID: "c", Positions: []int{0}, Probs: [][]float64{{0.4, 0.6}}}

	out := CombineCalls(pair, failed, cc, 0)
	require.NoError(t, out.Err)
	require.Len(t, out.Calls, 1)
	assert.Equal(t, SourceComplement, out.Calls[0].Source)
	assert.Equal(t, 1, out.Calls[0].TemplatePos)

	out = CombineCalls(pair, failed, &ReadCalls{ReadID: "c", Err: errors.New("boom")}, 0)
	assert.Error(t, out.Err)
}

func TestCallDuplex(t *testing.T) {
	e := testEngine(t, nil)
	rng := rand.New(rand.NewSource(5))
	tmpl := synthRead("t", "ACGTACGTAA", 4, rng)
	comp := synthRead("c", sequence.ReverseComplement("ACGTACGTAA"), 4, rng)
	pair, err := duplex.NewPair(tmpl, comp, nil)
	require.NoError(t, err)

	out, err := e.CallDuplex(context.Background(), pair)
	require.NoError(t, err)
	require.NoError(t, out.Err)
	// Both cytosines of each CpG are called and combined.
	require.Len(t, out.Calls, 2)
	assert.Equal(t, []int{1, 5}, []int{out.Calls[0].TemplatePos, out.Calls[1].TemplatePos})
	assert.Equal(t, []int{7, 3}, []int{out.Calls[0].ComplementPos, out.Calls[1].ComplementPos})
	for _, c := range out.Calls {
		assert.Equal(t, SourceDuplex, c.Source)
		assertSimplex(t, c.Probs)
	}
}

func TestCombineCallsStrandShift(t *testing.T) {
	// template ACGTACGTAA against its reverse complement TTACGTACGT
	pair := &duplex.Pair{
		TemplateToComplement: []int{9, 8, 7, 6, 5, 4, 3, 2, 1, 0},
		ComplementToTemplate: []int{9, 8, 7, 6, 5, 4, 3, 2, 1, 0},
	}
	tc := &ReadCalls{ReadID: "t", Positions: []int{1, 5}, Probs: [][]float64{{0.3, 0.7}, {0.9, 0.1}}}
	cc := &ReadCalls{ReadID: "c", Positions: []int{3, 7}, Probs: [][]float64{{0.6, 0.4}, {0.2, 0.8}}}

	unshifted := CombineCalls(pair, tc, cc, 0)
	require.Len(t, unshifted.Calls, 4)
	for _, c := range unshifted.Calls {
		assert.NotEqual(t, SourceDuplex, c.Source)
	}
	// complement-only calls report the template base they pair with
	assert.Equal(t, 6, unshifted.Calls[2].TemplatePos)

	out := CombineCalls(pair, tc, cc, 1)
	require.Len(t, out.Calls, 2)
	assert.Equal(t, DuplexCall{TemplatePos: 1, ComplementPos: 7, Probs: Combine(tc.Probs[0], cc.Probs[1]), Source: SourceDuplex}, out.Calls[0])
	assert.Equal(t, DuplexCall{TemplatePos: 5, ComplementPos: 3, Probs: Combine(tc.Probs[1], cc.Probs[0]), Source: SourceDuplex}, out.Calls[1])

	t.Run("complement only", func(t *testing.T) {
		out := CombineCalls(pair, &ReadCalls{ReadID: "t"}, cc, 1)
		require.Len(t, out.Calls, 2)
		assert.Equal(t, []int{5, 1}, []int{out.Calls[0].TemplatePos, out.Calls[1].TemplatePos})
		assert.Equal(t, SourceComplement, out.Calls[0].Source)
	})
}

func TestDuplexShift(t *testing.T) {
	motif := func(s string) *sequence.Motif {
		m, err := sequence.ParseMotif(s)
		require.NoError(t, err)
		return m
	}
	assert.Equal(t, 0, duplexShift(nil))
	assert.Equal(t, 1, duplexShift([]*sequence.Motif{motif("CG:0")}))
	assert.Equal(t, 1, duplexShift([]*sequence.Motif{motif("CG:0"), motif("GATC:1")}))
	assert.Equal(t, 0, duplexShift([]*sequence.Motif{motif("CG:0"), motif("GC:1")}))
	assert.Equal(t, 0, duplexShift([]*sequence.Motif{motif("CHG:0")}))
}
