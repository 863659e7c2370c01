package train

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aria-lang/remora-go/internal/checkpoint"
	"github.com/aria-lang/remora-go/internal/chunk"
	"github.com/aria-lang/remora-go/internal/dataset"
	"github.com/aria-lang/remora-go/internal/model"
	"github.com/aria-lang/remora-go/internal/sequence"
)

var testChunkConfig = chunk.Config{
	SignalBefore: 4, SignalAfter: 4,
	BasesBefore: 1, BasesAfter: 1,
	KmerBefore: 1, KmerAfter: 1,
	Anchor: chunk.AnchorStart,
}

// separable builds n chunks whose signal level identifies the class.
func separable(t *testing.T, n int, seed int64) *dataset.Dataset {
	t.Helper()
	ds, err := dataset.New(testChunkConfig, []string{"canonical", "modified"})
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(seed))
	for i := 0; i < n; i++ {
		label := i % 2
		level := -1.0
		if label == 1 {
			level = 1
		}
		sig := make([]float32, testChunkConfig.SignalLen())
		for j := range sig {
			sig[j] = float32(level + rng.NormFloat64()*0.5)
		}
		require.NoError(t, ds.Add(chunk.Chunk{
			ReadID:     fmt.Sprintf("read-%d", i),
			ReadPos:    10,
			Signal:     sig,
			Bases:      []sequence.Code{sequence.CodeA, sequence.CodeC, sequence.CodeG},
			BaseBounds: []int{0, 4, 6, 8},
			Center:     1,
			Label:      label,
		}))
	}
	return ds
}

func linearModel(t *testing.T, ds *dataset.Dataset) model.Model {
	t.Helper()
	m, err := model.New(model.Spec{Arch: "linear", Seed: 3}.ForChunks(ds.Config, ds.NumClasses()))
	require.NoError(t, err)
	return m
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Epochs = 30
	cfg.Sampling.BatchSize = 16
	cfg.LearningRate = 0.05
	cfg.WeightDecay = 0
	cfg.Patience = 0
	return cfg
}

func TestTrainerConvergesOnSeparableData(t *testing.T) {
	full := separable(t, 200, 1)
	trainSet, valSet, err := full.Split(0.2, 7)
	require.NoError(t, err)

	cfg := testConfig()
	cfg.TargetAccuracy = 0.98
	store := checkpoint.NewMemoryStore()
	tr := NewTrainer(cfg, linearModel(t, full), trainSet, valSet)
	tr.Store = store

	var transitions []State
	tr.OnState = func(_, to State) { transitions = append(transitions, to) }

	res, err := tr.Run(context.Background())
	require.NoError(t, err)
	assert.Contains(t, []State{Converged, MaxEpochs}, res.State)
	assert.True(t, tr.State().Terminal())
	require.NotEmpty(t, res.History)
	assert.GreaterOrEqual(t, res.History[len(res.History)-1].ValAccuracy, 0.95)

	assert.Equal(t, EpochStart, transitions[0])
	assert.Contains(t, transitions, Validate)
	assert.Contains(t, transitions, CheckpointDecision)
	assert.Equal(t, res.State, transitions[len(transitions)-1])

	ctx := context.Background()
	names, err := store.ListCheckpoints(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{BestCheckpoint, FinalCheckpoint}, names)

	history, ok, err := store.GetMetrics(ctx, tr.RunID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, history, res.Epochs)

	final, err := checkpoint.Load(ctx, store, FinalCheckpoint)
	require.NoError(t, err)
	m, err := final.BuildModel()
	require.NoError(t, err)
	_, conf, err := Evaluate(m, valSet)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, conf.Accuracy(), 0.95)
}

func TestTrainerStopRequested(t *testing.T) {
	ds := separable(t, 40, 2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tr := NewTrainer(testConfig(), linearModel(t, ds), ds, nil)
	res, err := tr.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, EarlyStopped, res.State)
	assert.Equal(t, "stop requested", res.Reason)
	assert.Equal(t, 1, res.Epochs)
	assert.NotNil(t, res.Final)
}

func TestTrainerPatience(t *testing.T) {
	ds := separable(t, 40, 3)
	cfg := testConfig()
	cfg.Patience = 2
	cfg.MinDelta = 1e9

	tr := NewTrainer(cfg, linearModel(t, ds), ds, nil)
	res, err := tr.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, EarlyStopped, res.State)
	assert.Equal(t, 3, res.Epochs)
}

func TestTrainerDiverged(t *testing.T) {
	ds := separable(t, 40, 4)
	cfg := testConfig()
	cfg.MaxParamNorm = 1e-9
	store := checkpoint.NewMemoryStore()

	tr := NewTrainer(cfg, linearModel(t, ds), ds, nil)
	tr.Store = store
	res, err := tr.Run(context.Background())

	var diverged *TrainingDivergedError
	require.True(t, errors.As(err, &diverged), "got %v", err)
	assert.Equal(t, 1, diverged.Epoch)
	assert.Equal(t, 0, diverged.Batch)
	require.NotEmpty(t, diverged.ReadIDs)
	assert.Contains(t, err.Error(), diverged.ReadIDs[0])
	assert.Equal(t, Failed, res.State)
	assert.Equal(t, Failed, tr.State())

	_, ok, err := store.GetCheckpoint(context.Background(), FinalCheckpoint)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTrainingDivergedErrorNamesReads(t *testing.T) {
	tests := []struct {
		name string
		ids  []string
		want string
	}{
		{"single read", []string{"r1"}, "training diverged at epoch 2 batch 3: non-finite loss (reads r1)"},
		{"several reads", []string{"a", "b", "c"}, "(reads a, b, c)"},
		{"truncated", []string{"a", "b", "c", "d", "e", "f", "g"}, "(reads a, b, c, d, e and 2 more)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := &TrainingDivergedError{Epoch: 2, Batch: 3, Reason: "non-finite loss", ReadIDs: tt.ids}
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestTrainerUnlabeledChunk(t *testing.T) {
	ds := separable(t, 20, 5)
	ds.Chunks[3].Label = chunk.Unlabeled

	tr := NewTrainer(testConfig(), linearModel(t, ds), ds, nil)
	_, err := tr.Run(context.Background())
	var batchErr *BatchError
	require.True(t, errors.As(err, &batchErr), "got %v", err)
	assert.Equal(t, "read-3", batchErr.ReadID)
	assert.Equal(t, Failed, tr.State())
}

func TestTrainerShapeMismatch(t *testing.T) {
	ds := separable(t, 20, 6)
	cfg := testChunkConfig
	cfg.SignalAfter = 6
	m, err := model.New(model.Spec{Arch: "linear"}.ForChunks(cfg, 2))
	require.NoError(t, err)

	_, err = NewTrainer(testConfig(), m, ds, nil).Run(context.Background())
	assert.Error(t, err)
}

func TestTrainerCheckpointEvery(t *testing.T) {
	ds := separable(t, 40, 7)
	cfg := testConfig()
	cfg.Epochs = 4
	cfg.Checkpoint = CheckpointPolicy{Mode: SaveEvery, Every: 2}
	store := checkpoint.NewMemoryStore()

	tr := NewTrainer(cfg, linearModel(t, ds), ds, nil)
	tr.Store = store
	res, err := tr.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, MaxEpochs, res.State)

	names, err := store.ListCheckpoints(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"epoch-002", "epoch-004", FinalCheckpoint}, names)
}

func TestAdamWFirstStep(t *testing.T) {
	p := &model.Param{Name: "w", Shape: []int{3}, W: []float64{1, 1, 1}, G: []float64{0.5, -2, 0}}
	opt := NewAdamW(0.1, 0.9, 0.999, 1e-8, 0)
	opt.Step([]*model.Param{p})
	assert.InDeltaSlice(t, []float64{0.9, 1.1, 1}, p.W, 1e-6)
	assert.Equal(t, []float64{0, 0, 0}, p.G)
}

func TestAdamWWeightDecay(t *testing.T) {
	p := &model.Param{Name: "w", Shape: []int{1}, W: []float64{2}, G: []float64{0}}
	NewAdamW(0.1, 0.9, 0.999, 1e-8, 0.5).Step([]*model.Param{p})
	assert.InDelta(t, 2*(1-0.05), p.W[0], 1e-12)
}

func TestSGDMomentum(t *testing.T) {
	p := &model.Param{Name: "w", Shape: []int{1}, W: []float64{0}, G: []float64{1}}
	opt := NewSGD(0.1, 0.5, 0)
	opt.Step([]*model.Param{p})
	assert.InDelta(t, -0.1, p.W[0], 1e-12)
	p.G[0] = 1
	opt.Step([]*model.Param{p})
	assert.InDelta(t, -0.1-0.15, p.W[0], 1e-12)
}

func TestClipGradNorm(t *testing.T) {
	p := &model.Param{Name: "w", W: make([]float64, 2), G: []float64{3, 4}}
	norm := ClipGradNorm([]*model.Param{p}, 1)
	assert.InDelta(t, 5, norm, 1e-12)
	assert.InDeltaSlice(t, []float64{0.6, 0.8}, p.G, 1e-12)

	p.G = []float64{0.3, 0.4}
	ClipGradNorm([]*model.Param{p}, 1)
	assert.InDeltaSlice(t, []float64{0.3, 0.4}, p.G, 1e-12)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"default", func(*Config) {}, true},
		{"no epochs", func(c *Config) { c.Epochs = 0 }, false},
		{"no batch", func(c *Config) { c.Sampling.BatchSize = 0 }, false},
		{"bad ratio", func(c *Config) { c.Sampling.Ratio = []float64{1} }, false},
		{"bad optimizer", func(c *Config) { c.Optimizer = "lbfgs" }, false},
		{"every without interval", func(c *Config) { c.Checkpoint.Mode = SaveEvery }, false},
		{"both", func(c *Config) { c.Checkpoint = CheckpointPolicy{Mode: SaveBoth, Every: 3} }, true},
		{"val fraction", func(c *Config) { c.ValFraction = 1 }, false},
		{"sgd", func(c *Config) { c.Optimizer = "sgd" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate(2)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestStateNames(t *testing.T) {
	assert.Equal(t, "batch_step", BatchStep.String())
	assert.False(t, Validate.Terminal())
	assert.True(t, Failed.Terminal())
	assert.True(t, Converged.Terminal())
}
