// Package checkpoint persists trained models together with the chunk and
// normalization settings they were trained with.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cespare/xxhash"
	"github.com/google/uuid"

	"github.com/aria-lang/remora-go/internal/chunk"
	"github.com/aria-lang/remora-go/internal/model"
	"github.com/aria-lang/remora-go/internal/signal"
)

// EpochMetrics summarizes one training epoch.
type EpochMetrics struct {
	Epoch         int           `json:"epoch"`
	TrainLoss     float64       `json:"train_loss"`
	TrainAccuracy float64       `json:"train_accuracy"`
	ValLoss       float64       `json:"val_loss"`
	ValAccuracy   float64       `json:"val_accuracy"`
	Batches       int           `json:"batches"`
	Duration      time.Duration `json:"duration"`
}

// Checkpoint is a model snapshot and everything needed to use it.
type Checkpoint struct {
	ID        string             `json:"id"`
	RunID     string             `json:"run_id,omitempty"`
	Created   time.Time          `json:"created"`
	Model     model.Spec         `json:"model"`
	Params    []model.ParamState `json:"params"`
	Chunk     chunk.Config       `json:"chunk"`
	Normalize signal.Policy      `json:"normalize"`
	// UseBasecallScaling means reads carrying sm/sd were normalized with
	// those values instead of Normalize.
	UseBasecallScaling bool          `json:"use_basecall_scaling,omitempty"`
	Classes            []string      `json:"classes"`
	Motifs             []string      `json:"motifs,omitempty"`
	Epoch              int           `json:"epoch"`
	Metrics            *EpochMetrics `json:"metrics,omitempty"`
}

// New snapshots m. The parameters are copied.
func New(m model.Model, cfg chunk.Config, norm signal.Policy, classes, motifs []string) *Checkpoint {
	return &Checkpoint{
		ID:        uuid.NewString(),
		Created:   time.Now().UTC(),
		Model:     m.Spec(),
		Params:    model.States(m),
		Chunk:     cfg,
		Normalize: norm,
		Classes:   append([]string(nil), classes...),
		Motifs:    append([]string(nil), motifs...),
	}
}

// Arch returns the model architecture.
func (c *Checkpoint) Arch() string {
	return c.Model.Arch
}

// BuildModel reconstructs the model with the stored parameters.
func (c *Checkpoint) BuildModel() (model.Model, error) {
	if len(c.Classes) != c.Model.NumClasses {
		return nil, fmt.Errorf("checkpoint %s: %d class labels for a %d-class model", c.ID, len(c.Classes), c.Model.NumClasses)
	}
	m, err := model.New(c.Model)
	if err != nil {
		return nil, fmt.Errorf("checkpoint %s: %w", c.ID, err)
	}
	if err := m.SetParams(c.Params); err != nil {
		return nil, fmt.Errorf("checkpoint %s: %w", c.ID, err)
	}
	return m, nil
}

// Verify checks that the chunk and normalization settings an inference
// run will use match those the model was trained with.
func (c *Checkpoint) Verify(cfg chunk.Config, norm signal.Policy, basecallScaling bool) error {
	if !c.Chunk.Equal(cfg) {
		return &ConfigMismatchError{Field: "chunk", Want: describe(c.Chunk), Got: describe(cfg)}
	}
	if c.Normalize != norm {
		return &ConfigMismatchError{Field: "normalize", Want: describe(c.Normalize), Got: describe(norm)}
	}
	if c.UseBasecallScaling != basecallScaling {
		return &ConfigMismatchError{
			Field: "use_basecall_scaling",
			Want:  fmt.Sprint(c.UseBasecallScaling),
			Got:   fmt.Sprint(basecallScaling),
		}
	}
	return nil
}

// Fingerprint hashes the settings Verify compares.
func (c *Checkpoint) Fingerprint() uint64 {
	return Fingerprint(c.Chunk, c.Normalize, c.UseBasecallScaling)
}

// Fingerprint hashes a chunk and normalization configuration.
func Fingerprint(cfg chunk.Config, norm signal.Policy, basecallScaling bool) uint64 {
	b, _ := json.Marshal(struct {
		Chunk              chunk.Config  `json:"chunk"`
		Normalize          signal.Policy `json:"normalize"`
		UseBasecallScaling bool          `json:"use_basecall_scaling"`
	}{cfg, norm, basecallScaling})
	return xxhash.Sum64(b)
}

func describe(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%+v", v)
	}
	return string(b)
}
