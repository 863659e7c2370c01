package read

import (
	"errors"
	"math"
	"testing"

	"github.com/aria-lang/remora-go/internal/alignment"
	"github.com/aria-lang/remora-go/internal/moves"
	"github.com/aria-lang/remora-go/internal/signal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func identityOptions() Options {
	return Options{
		Normalize: signal.Policy{Method: signal.Fixed, Shift: 0, Scale: 1},
		Aligner:   alignment.NewAligner(),
	}
}

func testRead() *Read {
	return &Read{
		ID:       "read-1",
		Signal:   []float32{1, 2, 3, 4, 5, 6, 7},
		Sequence: "ACG",
		Moves:    []uint8{1, 0, 1, 0, 1, 0, 0},
		Stride:   1,
	}
}

func TestPrepareUnaligned(t *testing.T) {
	p, err := Prepare(testRead(), identityOptions())
	require.NoError(t, err)

	assert.Equal(t, "read-1", p.ID())
	assert.Equal(t, 3, p.Len())
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6, 7}, p.Signal)
	assert.Equal(t, []moves.Range{{Start: 0, End: 2}, {Start: 2, End: 4}, {Start: 4, End: 7}}, p.Mapping.Ranges())
	assert.False(t, p.Aligned())
	assert.Equal(t, alignment.Unaligned, p.RefPosition(0))
	assert.Error(t, p.Supervised())
}

func TestPrepareTrimAndScaling(t *testing.T) {
	r := testRead()
	r.Signal = append([]float32{100, 100}, r.Signal...)
	r.Trimmed = 2
	r.Calibration = signal.Calibration{Offset: 1, Scale: 2}
	r.BasecallShift, r.BasecallScale, r.HasBasecallScaling = 4, 2, true

	opts := DefaultOptions()
	opts.UseBasecallScaling = true
	p, err := Prepare(r, opts)
	require.NoError(t, err)

	// pA = 2*(dac+1), then (pA-4)/2
	require.Len(t, p.Signal, 7)
	assert.InDelta(t, 0.0, p.Signal[0], 1e-6)
	assert.InDelta(t, 6.0, p.Signal[6], 1e-6)
	assert.Equal(t, signal.Params{Shift: 4, Scale: 2}, p.Norm)
}

func TestPrepareWithReference(t *testing.T) {
	t.Run("cigar forward", func(t *testing.T) {
		r := testRead()
		r.Ref = &Reference{Contig: "chr1", Strand: Forward, Start: 100, Sequence: "ACG",
			Cigar: []alignment.CigarOp{{Type: 'M', Len: 3}}}
		p, err := Prepare(r, identityOptions())
		require.NoError(t, err)
		require.True(t, p.Aligned())
		require.NoError(t, p.Supervised())
		assert.Equal(t, 100, p.RefPosition(0))
		assert.Equal(t, 102, p.RefPosition(2))
	})

	t.Run("cigar reverse", func(t *testing.T) {
		r := testRead()
		r.Ref = &Reference{Contig: "chr1", Strand: Reverse, Start: 100, Sequence: "ACG",
			Cigar: []alignment.CigarOp{{Type: 'M', Len: 3}}}
		p, err := Prepare(r, identityOptions())
		require.NoError(t, err)
		assert.Equal(t, 102, p.RefPosition(0))
		assert.Equal(t, 100, p.RefPosition(2))
	})

	t.Run("aligned with semi-global aligner", func(t *testing.T) {
		r := testRead()
		r.Ref = &Reference{Contig: "chr1", Strand: Forward, Start: 50, Sequence: "TTACGTT"}
		opts := identityOptions()
		opts.Aligner = &alignment.Aligner{Scoring: alignment.DefaultDNA(), Mode: alignment.SemiGlobal}
		p, err := Prepare(r, opts)
		require.NoError(t, err)
		require.True(t, p.Aligned())
		assert.Equal(t, 52, p.RefPosition(0))
		assert.Equal(t, 54, p.RefPosition(2))
		assert.Equal(t, []int{0, 0, 0, 2, 4, 7, 7, 7}, p.Positions.RefToSignal)
	})

	t.Run("alignment failure keeps read for inference", func(t *testing.T) {
		r := testRead()
		r.Ref = &Reference{Contig: "chr1", Strand: Forward, Sequence: "TTT"}
		opts := identityOptions()
		opts.Aligner.MinIdentity = 0.9
		p, err := Prepare(r, opts)
		require.NoError(t, err)
		require.Error(t, p.AlignErr)
		assert.False(t, p.Aligned())
		assert.Len(t, p.Positions.Bases, 3)

		var failure *alignment.AlignmentFailureError
		assert.True(t, errors.As(p.Supervised(), &failure))
		assert.Equal(t, "alignment failure", Reason(p.Supervised()))
	})
}

func TestPrepareFailures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *Read)
		reason string
	}{
		{
			name:   "discordant moves",
			mutate: func(r *Read) { r.Moves = []uint8{1, 0, 1, 0, 0, 0, 0} },
			reason: "move table discordant with basecalls",
		},
		{
			name:   "short move table",
			mutate: func(r *Read) { r.Moves = []uint8{1, 1, 1} },
			reason: "move table discordant with signal",
		},
		{
			name:   "invalid bases",
			mutate: func(r *Read) { r.Sequence = "AXG" },
			reason: "invalid basecalls",
		},
		{
			name:   "empty signal",
			mutate: func(r *Read) { r.Signal = nil },
			reason: "invalid read",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := testRead()
			tt.mutate(r)
			_, err := Prepare(r, identityOptions())
			require.Error(t, err)
			assert.True(t, IsReadError(err))
			assert.Equal(t, tt.reason, Reason(err))
		})
	}

	t.Run("non-finite signal", func(t *testing.T) {
		r := testRead()
		nan := float32(math.NaN())
		r.Signal = []float32{nan, nan, nan, nan, nan, nan, nan}
		opts := identityOptions()
		opts.Normalize = signal.DefaultPolicy()
		_, err := Prepare(r, opts)
		require.Error(t, err)

		var sigErr *signal.InvalidSignalError
		require.True(t, errors.As(err, &sigErr))
		assert.Equal(t, "read-1", sigErr.ReadID)
	})
}
