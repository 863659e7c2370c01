package remora

import (
	"bytes"
	"context"
	"math/rand"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aria-lang/remora-go/internal/checkpoint"
	"github.com/aria-lang/remora-go/internal/chunk"
	"github.com/aria-lang/remora-go/internal/dataset"
	"github.com/aria-lang/remora-go/internal/infer"
	"github.com/aria-lang/remora-go/internal/read"
	"github.com/aria-lang/remora-go/internal/train"
)

// synthRead builds a read whose CG cytosines sit at a level that depends
// on the methylation class.
func synthRead(id, seq string, methylated bool, rng *rand.Rand) *Read {
	const perBase = 4
	sig := make([]float32, 0, len(seq)*perBase)
	mv := make([]uint8, 0, len(seq)*perBase)
	for i := 0; i < len(seq); i++ {
		level := float32(seq[i]%7) - 3
		if seq[i] == 'C' && i+1 < len(seq) && seq[i+1] == 'G' {
			level = -4
			if methylated {
				level = 4
			}
		}
		for k := 0; k < perBase; k++ {
			sig = append(sig, level+float32(rng.NormFloat64()*0.2))
			if k == 0 {
				mv = append(mv, 1)
			} else {
				mv = append(mv, 0)
			}
		}
	}
	return &Read{ID: id, Signal: sig, Sequence: seq, Moves: mv, Stride: 1}
}

func smallConfig() *Config {
	cfg := DefaultConfig()
	cfg.Chunk = chunk.Symmetric(6, 1)
	cfg.Chunk.KmerBefore, cfg.Chunk.KmerAfter = 1, 1
	cfg.Model.Arch = "linear"
	cfg.Train.Epochs = 30
	cfg.Train.Sampling.BatchSize = 8
	cfg.Train.LearningRate = 0.05
	cfg.Train.WeightDecay = 0
	cfg.Train.Patience = 0
	cfg.Train.ValFraction = 0
	cfg.Dataset.MinReadsForTolerance = 1
	return cfg
}

func TestAlign(t *testing.T) {
	aln, err := Align("acgtacgt", "ACGTTACGT")
	require.NoError(t, err)
	r, ref := aln.Reconstruct()
	assert.Equal(t, "ACGTACGT", strings.ReplaceAll(r, "-", ""))
	assert.Equal(t, "ACGTTACGT", strings.ReplaceAll(ref, "-", ""))

	cfg := DefaultConfig()
	cfg.Align.MinIdentity = 0.99
	a, err := cfg.Align.Aligner()
	require.NoError(t, err)
	_, err = AlignWith(a, "ACGTACGT", "TTTTTTTT")
	assert.Error(t, err)
}

func TestFocusPositions(t *testing.T) {
	motifs, err := ParseMotifs([]string{"CG:0"})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 5}, FocusPositions("acgtacgt", motifs))
	assert.Len(t, FocusPositions("ACGT", nil), 4)

	_, err = ParseMotifs([]string{"CG:9"})
	assert.Error(t, err)
}

func TestTrainAndCall(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	const seq = "TTACGTTACGTTAACGTT"
	var reads []*Read
	labels := map[string]int{}
	for i := 0; i < 24; i++ {
		id := "r" + string(rune('a'+i))
		reads = append(reads, synthRead(id, seq, i%2 == 1, rng))
		labels[id] = i % 2
	}
	cfg := smallConfig()
	ctx := context.Background()

	ds, tally, err := BuildDataset(ctx, cfg, reads, perRead(labels), zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 0, tally.Failed())
	assert.Equal(t, []int{36, 36}, ds.ClassCounts())

	store := checkpoint.NewMemoryStore()
	res, err := Train(ctx, cfg, ds, store, zerolog.Nop())
	require.NoError(t, err)
	assert.NotEqual(t, train.Failed, res.State)
	require.NotNil(t, res.Best)
	assert.GreaterOrEqual(t, res.Best.ValAccuracy, 0.9)

	ck, err := checkpoint.Load(ctx, store, train.BestCheckpoint)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "best.rmck")
	require.NoError(t, WriteCheckpointFile(path, ck))
	loaded, err := ReadCheckpointFile(path)
	require.NoError(t, err)

	engine, err := NewEngine(loaded, cfg, zerolog.Nop())
	require.NoError(t, err)
	calls, err := engine.CallRead(ctx, synthRead("query", seq, true, rng))
	require.NoError(t, err)
	require.NoError(t, calls.Err)
	assert.Equal(t, []int{3, 8, 14}, calls.Positions)
	for _, p := range calls.Probs {
		assert.Greater(t, p[1], 0.5)
	}
}

func TestCheckpointPinsDatasetNormalization(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	const seq = "TTACGTTACGTTAACGTT"
	var reads []*Read
	labels := map[string]int{}
	for i := 0; i < 8; i++ {
		id := "s" + string(rune('a'+i))
		r := synthRead(id, seq, i%2 == 1, rng)
		r.BasecallShift, r.BasecallScale, r.HasBasecallScaling = 0.5, 2, true
		reads = append(reads, r)
		labels[id] = i % 2
	}
	ctx := context.Background()

	prepCfg := smallConfig()
	prepCfg.Dataset.UseBasecallScaling = true
	prepCfg.Normalize.ClipAt = 4
	built, _, err := BuildDataset(ctx, prepCfg, reads, perRead(labels), zerolog.Nop())
	require.NoError(t, err)
	assert.True(t, built.UseBasecallScaling)

	var buf bytes.Buffer
	require.NoError(t, built.Write(&buf))
	ds, err := dataset.Read(&buf)
	require.NoError(t, err)
	assert.True(t, ds.UseBasecallScaling)
	assert.Equal(t, prepCfg.Normalize, ds.Normalize)

	// train with a configuration that disagrees with the dataset
	trainCfg := smallConfig()
	trainCfg.Train.Epochs = 2
	res, err := Train(ctx, trainCfg, ds, checkpoint.NewMemoryStore(), zerolog.Nop())
	require.NoError(t, err)
	require.NotNil(t, res.Final)
	ck := res.Final
	assert.True(t, ck.UseBasecallScaling)
	assert.Equal(t, prepCfg.Normalize, ck.Normalize)

	engine, err := NewEngine(ck, trainCfg, zerolog.Nop())
	require.NoError(t, err)
	direct, err := infer.NewEngine(ck, infer.DefaultOptions(ck))
	require.NoError(t, err)

	query := synthRead("query", seq, true, rng)
	query.BasecallShift, query.BasecallScale, query.HasBasecallScaling = 0.5, 2, true
	got, err := engine.CallRead(ctx, query)
	require.NoError(t, err)
	want, err := direct.CallRead(ctx, query)
	require.NoError(t, err)
	require.NoError(t, got.Err)
	assert.Equal(t, want.Probs, got.Probs)

	opts := infer.DefaultOptions(ck)
	opts.Prepare.UseBasecallScaling = false
	_, err = infer.NewEngine(ck, opts)
	var mismatch *checkpoint.ConfigMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "use_basecall_scaling", mismatch.Field)
}

type perRead map[string]int

func (l perRead) Label(p *read.Prepared, _ int) (int, bool) {
	c, ok := l[p.ID()]
	return c, ok
}

func (l perRead) NeedsReference() bool { return false }

var _ dataset.Labeler = perRead(nil)

func TestReadRecords(t *testing.T) {
	const doc = `{"read_id":"r1","signal":[1,2,3,4],"offset":1,"scale":0.5,"sequence":"AC","moves":[1,0,1,0],"stride":1,"quality":"+5","sm":90,"sd":12,"reference":{"contig":"chr1","strand":"-","start":10,"sequence":"AC","cigar":"2M"}}

{"read_id":"r2","signal":[1,2],"sequence":"A","moves":[1,0]}
`
	reads, err := ReadRecords(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, reads, 2)

	r1 := reads[0]
	assert.Equal(t, []byte{10, 20}, r1.Qualities)
	assert.True(t, r1.HasBasecallScaling)
	assert.Equal(t, 90.0, r1.BasecallShift)
	require.NotNil(t, r1.Ref)
	assert.Equal(t, read.Reverse, r1.Ref.Strand)
	require.Len(t, r1.Ref.Cigar, 1)
	assert.Equal(t, 1.0, reads[1].Calibration.Scale)
	assert.Equal(t, 1, reads[1].Stride)

	var buf bytes.Buffer
	require.NoError(t, WriteRecords(&buf, reads))
	again, err := ReadRecords(&buf)
	require.NoError(t, err)
	assert.Equal(t, reads, again)
}

func TestReadRecordErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"no id", `{"signal":[1]}`},
		{"bad move", `{"read_id":"r","moves":[2]}`},
		{"short quality", `{"read_id":"r","sequence":"AC","quality":"5"}`},
		{"bad strand", `{"read_id":"r","reference":{"strand":"?"}}`},
		{"bad cigar", `{"read_id":"r","reference":{"cigar":"3Q"}}`},
		{"bad json", `{"read_id":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadRecords(strings.NewReader(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestReadStats(t *testing.T) {
	reads := []*Read{
		{ID: "a", Sequence: "ACGTACGTAC", Qualities: []byte{20, 20, 20, 20, 20, 20, 20, 20, 20, 20}},
		{ID: "b", Sequence: "ACG"},
	}
	s, err := ReadStats(reads)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Count)
	assert.Equal(t, 13, s.TotalBases)
	assert.InDelta(t, 20, s.MeanQuality, 1e-9)

	_, err = ReadStats(nil)
	assert.Error(t, err)
}
