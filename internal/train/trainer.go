// Package train fits a model to a chunk dataset.
package train

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"

	"github.com/aria-lang/remora-go/internal/checkpoint"
	"github.com/aria-lang/remora-go/internal/dataset"
	"github.com/aria-lang/remora-go/internal/kmer"
	"github.com/aria-lang/remora-go/internal/model"
	"github.com/aria-lang/remora-go/internal/stats"
)

// Checkpoint names written to the store.
const (
	BestCheckpoint  = "best"
	FinalCheckpoint = "final"
)

// Result describes a finished run.
type Result struct {
	RunID   string
	State   State
	Reason  string
	Epochs  int
	History []checkpoint.EpochMetrics
	Best    *checkpoint.EpochMetrics
	Final   *checkpoint.Checkpoint
}

// Trainer runs the training state machine. Fields must be set before Run
// and not changed afterwards.
type Trainer struct {
	Config Config
	Model  model.Model
	// Train's normalization settings are written into every checkpoint.
	Train *dataset.Dataset
	// Val is the held-out split. When nil the training set is evaluated.
	Val    *dataset.Dataset
	Store  checkpoint.Store
	Motifs []string
	RunID  string
	Logger zerolog.Logger

	// OnState is called on every state change.
	OnState func(from, to State)
	// OnBatch is called after each optimizer step.
	OnBatch func(epoch, batch, batches int, loss float64)

	mu      sync.RWMutex
	state   State
	reason  string
	history []checkpoint.EpochMetrics

	// paramMu guards parameter writes against concurrent snapshots.
	paramMu sync.RWMutex
	enc     kmer.Encoder
}

// NewTrainer returns a trainer with a fresh run ID and a silent logger.
func NewTrainer(cfg Config, m model.Model, trainSet, valSet *dataset.Dataset) *Trainer {
	return &Trainer{
		Config: cfg,
		Model:  m,
		Train:  trainSet,
		Val:    valSet,
		RunID:  uuid.NewString(),
		Logger: zerolog.Nop(),
	}
}

// State returns the current state.
func (t *Trainer) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// Reason explains the terminal state.
func (t *Trainer) Reason() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.reason
}

// History returns the per-epoch metrics so far.
func (t *Trainer) History() []checkpoint.EpochMetrics {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]checkpoint.EpochMetrics(nil), t.history...)
}

func (t *Trainer) setState(s State) {
	t.mu.Lock()
	from := t.state
	t.state = s
	t.mu.Unlock()
	if from != s && t.OnState != nil {
		t.OnState(from, s)
	}
}

// Snapshot checkpoints the current parameters. It may be called while Run
// is in progress.
func (t *Trainer) Snapshot() *checkpoint.Checkpoint {
	t.paramMu.RLock()
	defer t.paramMu.RUnlock()
	c := checkpoint.New(t.Model, t.Train.Config, t.Train.Normalize, t.Train.Classes, t.Motifs)
	c.UseBasecallScaling = t.Train.UseBasecallScaling
	c.RunID = t.RunID
	return c
}

func (t *Trainer) check() error {
	if t.Model == nil || t.Train == nil {
		return fmt.Errorf("trainer needs a model and a training set")
	}
	if t.Train.Len() == 0 {
		return fmt.Errorf("training set is empty")
	}
	if err := t.Config.Validate(t.Train.NumClasses()); err != nil {
		return err
	}
	spec := t.Model.Spec()
	want := spec.ForChunks(t.Train.Config, t.Train.NumClasses())
	if spec.SignalLen != want.SignalLen || spec.KmerChannels != want.KmerChannels || spec.NumClasses != want.NumClasses {
		return fmt.Errorf("model shape (%d samples, %d k-mer channels, %d classes) does not match dataset (%d, %d, %d)",
			spec.SignalLen, spec.KmerChannels, spec.NumClasses, want.SignalLen, want.KmerChannels, want.NumClasses)
	}
	if t.Val != nil && t.Val.Len() > 0 {
		if !t.Val.Config.Equal(t.Train.Config) || t.Val.NumClasses() != t.Train.NumClasses() {
			return fmt.Errorf("validation set does not match the training set configuration")
		}
		if t.Val.Normalize != t.Train.Normalize || t.Val.UseBasecallScaling != t.Train.UseBasecallScaling {
			return fmt.Errorf("validation set was normalized differently from the training set")
		}
	}
	return nil
}

// Run trains until a terminal state. The context is checked after each
// validation; cancelling it ends the run as EarlyStopped.
func (t *Trainer) Run(ctx context.Context) (*Result, error) {
	t.setState(Init)
	if err := t.check(); err != nil {
		t.finish(Failed, err.Error())
		return nil, err
	}
	t.enc = t.Train.Config.Encoder()
	opt, err := NewOptimizer(t.Config)
	if err != nil {
		t.finish(Failed, err.Error())
		return nil, err
	}
	if t.Store != nil {
		if err := t.Store.Init(ctx); err != nil {
			t.finish(Failed, err.Error())
			return nil, fmt.Errorf("init checkpoint store: %w", err)
		}
	}

	weights := make([]float64, t.Train.NumClasses())
	for i := range weights {
		weights[i] = 1
	}
	if t.Config.ClassWeights {
		weights = t.Train.ClassWeights()
	}

	log := t.Logger.With().Str("run", t.RunID).Logger()
	log.Info().
		Str("arch", t.Model.Arch()).
		Str("optimizer", opt.Name()).
		Int("train_chunks", t.Train.Len()).
		Int("epochs", t.Config.Epochs).
		Msg("training started")

	var (
		best     *checkpoint.EpochMetrics
		stale    int
		terminal = MaxEpochs
		reason   = "reached maximum epochs"
		epoch    int
	)
	for epoch = 1; epoch <= t.Config.Epochs; epoch++ {
		t.setState(EpochStart)
		start := time.Now()
		plan, err := t.Train.Plan(t.Config.Sampling, t.Config.Seed+int64(epoch))
		if err != nil {
			t.finish(Failed, err.Error())
			return nil, err
		}

		var trainLoss stats.Mean
		conf := stats.NewConfusion(t.Train.NumClasses())
		t.setState(BatchStep)
		for b := 0; b < plan.NumBatches(); b++ {
			loss, weight, err := t.step(opt, epoch, b, plan.Batch(b), weights, conf)
			if err != nil {
				t.finish(Failed, err.Error())
				log.Error().Err(err).Int("epoch", epoch).Int("batch", b).Msg("training failed")
				return t.result(Failed, err.Error(), epoch, best, nil), err
			}
			trainLoss.Add(loss, weight)
			if t.OnBatch != nil {
				t.OnBatch(epoch, b, plan.NumBatches(), loss)
			}
		}

		t.setState(Validate)
		evalSet := t.Val
		if evalSet == nil || evalSet.Len() == 0 {
			evalSet = t.Train
		}
		valLoss, valConf, err := Evaluate(t.Model, evalSet)
		if err != nil {
			t.finish(Failed, err.Error())
			return nil, err
		}
		m := checkpoint.EpochMetrics{
			Epoch:         epoch,
			TrainLoss:     trainLoss.Value(),
			TrainAccuracy: conf.Accuracy(),
			ValLoss:       valLoss,
			ValAccuracy:   valConf.Accuracy(),
			Batches:       plan.NumBatches(),
			Duration:      time.Since(start),
		}
		t.mu.Lock()
		t.history = append(t.history, m)
		t.mu.Unlock()
		log.Info().
			Int("epoch", epoch).
			Float64("train_loss", m.TrainLoss).
			Float64("train_acc", m.TrainAccuracy).
			Float64("val_loss", m.ValLoss).
			Float64("val_acc", m.ValAccuracy).
			Dur("elapsed", m.Duration).
			Msg("epoch complete")
		if t.Store != nil {
			if err := t.Store.SaveMetrics(ctx, t.RunID, t.History()); err != nil {
				log.Warn().Err(err).Msg("saving metrics history failed")
			}
		}

		improved := best == nil || m.ValLoss < best.ValLoss-t.Config.MinDelta
		if improved {
			mm := m
			best = &mm
			stale = 0
		} else {
			stale++
		}

		t.setState(CheckpointDecision)
		if improved && (t.Config.Checkpoint.saveBest() || t.Config.Checkpoint.Mode == "") {
			t.save(ctx, log, BestCheckpoint, epoch, &m)
		}
		if t.Config.Checkpoint.saveEvery(epoch) {
			t.save(ctx, log, fmt.Sprintf("epoch-%03d", epoch), epoch, &m)
		}

		if t.Config.TargetAccuracy > 0 && m.ValAccuracy >= t.Config.TargetAccuracy {
			terminal, reason = Converged, fmt.Sprintf("validation accuracy %.4f reached target %.4f", m.ValAccuracy, t.Config.TargetAccuracy)
			break
		}
		if t.Config.Patience > 0 && stale >= t.Config.Patience {
			terminal, reason = EarlyStopped, fmt.Sprintf("no improvement for %d epochs", stale)
			break
		}
		if ctx.Err() != nil {
			terminal, reason = EarlyStopped, "stop requested"
			break
		}
	}
	if epoch > t.Config.Epochs {
		epoch = t.Config.Epochs
	}

	var last *checkpoint.EpochMetrics
	if h := t.History(); len(h) > 0 {
		last = &h[len(h)-1]
	}
	final := t.save(ctx, log, FinalCheckpoint, epoch, last)
	t.finish(terminal, reason)
	log.Info().Str("state", terminal.String()).Str("reason", reason).Int("epochs", epoch).Msg("training finished")
	return t.result(terminal, reason, epoch, best, final), nil
}

func (t *Trainer) finish(s State, reason string) {
	t.mu.Lock()
	t.reason = reason
	t.mu.Unlock()
	t.setState(s)
}

func (t *Trainer) result(s State, reason string, epochs int, best *checkpoint.EpochMetrics, final *checkpoint.Checkpoint) *Result {
	return &Result{
		RunID:   t.RunID,
		State:   s,
		Reason:  reason,
		Epochs:  epochs,
		History: t.History(),
		Best:    best,
		Final:   final,
	}
}

func (t *Trainer) save(ctx context.Context, log zerolog.Logger, name string, epoch int, m *checkpoint.EpochMetrics) *checkpoint.Checkpoint {
	c := t.Snapshot()
	c.Epoch = epoch
	c.Metrics = m
	if t.Store == nil {
		return c
	}
	if err := t.Store.SaveCheckpoint(ctx, name, c); err != nil {
		log.Warn().Err(err).Str("checkpoint", name).Msg("saving checkpoint failed")
		return c
	}
	log.Debug().Str("checkpoint", name).Int("epoch", epoch).Msg("checkpoint saved")
	return c
}

// step runs one optimizer step over the chunks at idx. The batch loss is
// the class-weighted mean of the per-chunk losses.
func (t *Trainer) step(opt Optimizer, epoch, batch int, idx []int, weights []float64, conf stats.Confusion) (float64, float64, error) {
	var sumLoss, sumW float64
	for _, i := range idx {
		c := &t.Train.Chunks[i]
		if !c.Labeled() || c.Label >= len(weights) {
			return 0, 0, &BatchError{Epoch: epoch, Batch: batch, ReadID: c.ReadID, Err: fmt.Errorf("chunk at %d has no valid label", c.ReadPos)}
		}
		in, err := model.NewInput(c, t.enc)
		if err != nil {
			return 0, 0, &BatchError{Epoch: epoch, Batch: batch, ReadID: c.ReadID, Err: err}
		}
		probs, err := t.Model.Forward(in)
		if err != nil {
			return 0, 0, &BatchError{Epoch: epoch, Batch: batch, ReadID: c.ReadID, Err: err}
		}
		w := weights[c.Label]
		loss, dLogits := model.CrossEntropy(probs, c.Label, w)
		sumLoss += loss
		sumW += w
		conf.Add(c.Label, argmax(probs))
		if err := t.Model.Backward(in, dLogits); err != nil {
			return 0, 0, &BatchError{Epoch: epoch, Batch: batch, ReadID: c.ReadID, Err: err}
		}
	}

	params := t.Model.Params()
	batchLoss := sumLoss / sumW
	if math.IsNaN(batchLoss) || math.IsInf(batchLoss, 0) {
		return 0, 0, t.diverged(epoch, batch, idx, fmt.Sprintf("non-finite loss %v", batchLoss))
	}
	for _, p := range params {
		floats.Scale(1/sumW, p.G)
	}
	if t.Config.ClipNorm > 0 {
		ClipGradNorm(params, t.Config.ClipNorm)
	}

	t.paramMu.Lock()
	opt.Step(params)
	t.paramMu.Unlock()

	if t.Config.MaxParamNorm > 0 {
		if norm := model.Norm(t.Model); norm > t.Config.MaxParamNorm || math.IsNaN(norm) {
			return 0, 0, t.diverged(epoch, batch, idx, fmt.Sprintf("parameter norm %g above %g", norm, t.Config.MaxParamNorm))
		}
	}
	return batchLoss, sumW, nil
}

func (t *Trainer) diverged(epoch, batch int, idx []int, reason string) error {
	ids := make([]string, 0, len(idx))
	seen := make(map[string]bool, len(idx))
	for _, i := range idx {
		id := t.Train.Chunks[i].ReadID
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return &TrainingDivergedError{Epoch: epoch, Batch: batch, Reason: reason, ReadIDs: ids}
}

// Evaluate returns the mean cross-entropy and the confusion matrix of m
// over ds.
func Evaluate(m model.Model, ds *dataset.Dataset) (float64, stats.Confusion, error) {
	enc := ds.Config.Encoder()
	conf := stats.NewConfusion(ds.NumClasses())
	var loss stats.Mean
	for i := range ds.Chunks {
		c := &ds.Chunks[i]
		in, err := model.NewInput(c, enc)
		if err != nil {
			return 0, nil, err
		}
		probs, err := m.Forward(in)
		if err != nil {
			return 0, nil, fmt.Errorf("evaluate %s:%d: %w", c.ReadID, c.ReadPos, err)
		}
		l, _ := model.CrossEntropy(probs, c.Label, 1)
		loss.Add(l, 1)
		conf.Add(c.Label, argmax(probs))
	}
	return loss.Value(), conf, nil
}

func argmax(v []float64) int {
	best := 0
	for i, x := range v {
		if x > v[best] {
			best = i
		}
	}
	return best
}
