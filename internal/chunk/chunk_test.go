package chunk

import (
	"errors"
	"testing"

	"github.com/aria-lang/remora-go/internal/alignment"
	"github.com/aria-lang/remora-go/internal/read"
	"github.com/aria-lang/remora-go/internal/sequence"
	"github.com/aria-lang/remora-go/internal/signal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func prepared(t *testing.T) *read.Prepared {
	t.Helper()
	r := &read.Read{
		ID:       "read-1",
		Signal:   []float32{1, 2, 3, 4, 5, 6, 7},
		Sequence: "ACG",
		Moves:    []uint8{1, 0, 1, 0, 1, 0, 0},
		Stride:   1,
	}
	p, err := read.Prepare(r, read.Options{Normalize: signal.Policy{Method: signal.Fixed, Scale: 1}})
	require.NoError(t, err)
	return p
}

func newExtractor(t *testing.T, cfg Config) *Extractor {
	t.Helper()
	e, err := NewExtractor(cfg)
	require.NoError(t, err)
	return e
}

func TestExtractTrailingPad(t *testing.T) {
	e := newExtractor(t, Config{SignalBefore: 4, SignalAfter: 4, BasesBefore: 1, BasesAfter: 1})
	c, err := e.Extract(prepared(t), 2, 1)
	require.NoError(t, err)

	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6, 7, 0}, c.Signal)
	require.True(t, c.Padded())
	assert.Equal(t, BoundaryWarning{SignalAfter: 1, BasesAfter: 1}, *c.Boundary)
	assert.Equal(t, []sequence.Code{sequence.CodeC, sequence.CodeG, sequence.PadCode}, c.Bases)
	assert.Equal(t, "CG.", c.Context())
	assert.Equal(t, []alignment.Op{alignment.OpUnaligned, alignment.OpUnaligned, alignment.OpPad}, c.Ops)
	assert.Equal(t, []int{2, 4, 7, 7}, c.BaseBounds)
	assert.Equal(t, 1, c.Center)
	assert.Equal(t, 1, c.Label)
	assert.Equal(t, alignment.Unaligned, c.RefPos)
}

func TestExtractLeadingPad(t *testing.T) {
	e := newExtractor(t, Config{SignalBefore: 4, SignalAfter: 4, BasesBefore: 1, BasesAfter: 1, PadValue: -9})
	c, err := e.Extract(prepared(t), 0, Unlabeled)
	require.NoError(t, err)

	assert.Equal(t, []float32{-9, -9, -9, -9, 1, 2, 3, 4}, c.Signal)
	assert.Equal(t, BoundaryWarning{SignalBefore: 4, BasesBefore: 1}, *c.Boundary)
	assert.Equal(t, []int{4, 4, 6, 8}, c.BaseBounds)
	assert.False(t, c.Labeled())
}

func TestIsPaddingIgnoresValues(t *testing.T) {
	// the pad value equals the first real sample
	e := newExtractor(t, Config{SignalBefore: 4, SignalAfter: 4, BasesBefore: 1, BasesAfter: 1, PadValue: 1})
	c, err := e.Extract(prepared(t), 0, Unlabeled)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 1, 1, 1, 1, 2, 3, 4}, c.Signal)

	var pads []int
	for k := range c.Signal {
		if c.IsPadding(k) {
			pads = append(pads, k)
		}
	}
	assert.Equal(t, []int{0, 1, 2, 3}, pads)

	trailing, err := newExtractor(t, Config{SignalBefore: 4, SignalAfter: 4}).Extract(prepared(t), 2, 0)
	require.NoError(t, err)
	assert.True(t, trailing.IsPadding(7))
	assert.False(t, trailing.IsPadding(6))

	interior, err := newExtractor(t, Config{SignalBefore: 1, SignalAfter: 2}).Extract(prepared(t), 1, 0)
	require.NoError(t, err)
	assert.False(t, interior.IsPadding(0))
}

func TestExtractAnchorCenter(t *testing.T) {
	e := newExtractor(t, Config{SignalBefore: 4, SignalAfter: 4, Anchor: AnchorCenter})
	c, err := e.Extract(prepared(t), 2, 0)
	require.NoError(t, err)
	assert.Equal(t, []float32{2, 3, 4, 5, 6, 7, 0, 0}, c.Signal)
	assert.Equal(t, 2, c.Boundary.SignalAfter)
}

func TestExtractInterior(t *testing.T) {
	e := newExtractor(t, Config{SignalBefore: 1, SignalAfter: 2})
	c, err := e.Extract(prepared(t), 1, 0)
	require.NoError(t, err)
	assert.Equal(t, []float32{2, 3, 4}, c.Signal)
	assert.Nil(t, c.Boundary)
	assert.Equal(t, []int{1, 3}, c.BaseBounds)
}

func TestExtractDeterministic(t *testing.T) {
	e := newExtractor(t, Symmetric(3, 2))
	p := prepared(t)
	for idx := 0; idx < p.Len(); idx++ {
		a, err := e.Extract(p, idx, 0)
		require.NoError(t, err)
		b, err := e.Extract(p, idx, 0)
		require.NoError(t, err)
		assert.Equal(t, a, b)
		assert.Len(t, a.Signal, 6)
		assert.Len(t, a.Bases, 5)
		assert.Len(t, a.BaseBounds, 6)
	}
}

func TestExtractPositionError(t *testing.T) {
	e := newExtractor(t, Symmetric(2, 1))
	for _, idx := range []int{-1, 3} {
		_, err := e.Extract(prepared(t), idx, 0)
		var posErr *PositionError
		require.True(t, errors.As(err, &posErr))
		assert.Equal(t, idx, posErr.Index)
		assert.Equal(t, 3, posErr.Len)
	}
}

func TestExtractRead(t *testing.T) {
	e := newExtractor(t, Symmetric(2, 1))
	p := prepared(t)
	cpg, err := sequence.ParseMotif("CG:0")
	require.NoError(t, err)

	positions := FocusPositions(p.Bases, []*sequence.Motif{cpg})
	require.Equal(t, []int{1}, positions)

	chunks, err := e.ExtractRead(p, positions, func(int) int { return 1 })
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, 1, chunks[0].ReadPos)
	assert.Equal(t, 1, chunks[0].Label)

	chunks, err = e.ExtractRead(p, []int{0, 2}, nil)
	require.NoError(t, err)
	assert.Equal(t, Unlabeled, chunks[1].Label)
}

func TestFocusPositions(t *testing.T) {
	cg, err := sequence.ParseMotif("CG:0")
	require.NoError(t, err)
	gc, err := sequence.ParseMotif("GC:1")
	require.NoError(t, err)

	assert.Equal(t, []int{1, 3}, FocusPositions("ACGCGA", []*sequence.Motif{cg, gc}))
	assert.Equal(t, []int{0, 1, 2}, FocusPositions("ACG", nil))
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, Default().Validate())
	assert.Error(t, Symmetric(0, 0).Validate())
	assert.Error(t, Config{SignalBefore: 1, Anchor: "middle"}.Validate())
	assert.Error(t, Config{SignalBefore: 1, BasesAfter: -1}.Validate())
	assert.True(t, Config{SignalBefore: 1}.Equal(Config{SignalBefore: 1, Anchor: AnchorStart}))
}
