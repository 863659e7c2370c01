package train

import (
	"fmt"

	"github.com/aria-lang/remora-go/internal/dataset"
)

// Checkpoint cadences.
const (
	SaveBest  = "best"
	SaveEvery = "every"
	SaveBoth  = "both"
)

// CheckpointPolicy decides when a training run saves checkpoints.
type CheckpointPolicy struct {
	Mode  string `yaml:"mode" json:"mode"`
	Every int    `yaml:"every,omitempty" json:"every,omitempty"`
}

func (p CheckpointPolicy) saveBest() bool {
	return p.Mode == SaveBest || p.Mode == SaveBoth
}

func (p CheckpointPolicy) saveEvery(epoch int) bool {
	return (p.Mode == SaveEvery || p.Mode == SaveBoth) && p.Every > 0 && epoch%p.Every == 0
}

// Config holds the training hyperparameters.
type Config struct {
	Epochs       int              `yaml:"epochs" json:"epochs"`
	Sampling     dataset.Sampling `yaml:"sampling" json:"sampling"`
	Optimizer    string           `yaml:"optimizer" json:"optimizer"`
	LearningRate float64          `yaml:"learning_rate" json:"learning_rate"`
	WeightDecay  float64          `yaml:"weight_decay" json:"weight_decay"`
	Momentum     float64          `yaml:"momentum,omitempty" json:"momentum,omitempty"`
	// ClipNorm bounds the global gradient norm when positive.
	ClipNorm float64 `yaml:"clip_norm,omitempty" json:"clip_norm,omitempty"`

	// Early stopping: stop after Patience epochs whose validation loss did
	// not improve on the best by more than MinDelta. Zero disables.
	Patience int     `yaml:"patience" json:"patience"`
	MinDelta float64 `yaml:"min_delta" json:"min_delta"`
	// TargetAccuracy ends the run as converged once validation accuracy
	// reaches it. Zero disables.
	TargetAccuracy float64 `yaml:"target_accuracy,omitempty" json:"target_accuracy,omitempty"`
	// MaxParamNorm fails the run when the parameter norm exceeds it.
	MaxParamNorm float64 `yaml:"max_param_norm,omitempty" json:"max_param_norm,omitempty"`

	Checkpoint   CheckpointPolicy `yaml:"checkpoint" json:"checkpoint"`
	ValFraction  float64          `yaml:"val_fraction" json:"val_fraction"`
	ClassWeights bool             `yaml:"class_weights" json:"class_weights"`
	Seed         int64            `yaml:"seed" json:"seed"`
}

// DefaultConfig returns the hyperparameters used when none are given.
func DefaultConfig() Config {
	return Config{
		Epochs:       20,
		Sampling:     dataset.Sampling{BatchSize: 64},
		Optimizer:    "adamw",
		LearningRate: 1e-3,
		WeightDecay:  1e-4,
		Momentum:     0.9,
		Patience:     5,
		MinDelta:     1e-4,
		MaxParamNorm: 1e6,
		Checkpoint:   CheckpointPolicy{Mode: SaveBest},
		ValFraction:  0.1,
		ClassWeights: true,
		Seed:         1,
	}
}

// Validate checks the configuration for numClasses classes.
func (c Config) Validate(numClasses int) error {
	if c.Epochs <= 0 {
		return fmt.Errorf("epochs must be positive, got %d", c.Epochs)
	}
	if err := c.Sampling.Validate(numClasses); err != nil {
		return err
	}
	if c.LearningRate <= 0 {
		return fmt.Errorf("learning rate must be positive")
	}
	if c.WeightDecay < 0 || c.Momentum < 0 || c.ClipNorm < 0 || c.MinDelta < 0 || c.Patience < 0 {
		return fmt.Errorf("weight decay, momentum, clip norm, min delta and patience must be non-negative")
	}
	if c.ValFraction < 0 || c.ValFraction >= 1 {
		return fmt.Errorf("validation fraction must be in [0, 1), got %g", c.ValFraction)
	}
	if c.TargetAccuracy < 0 || c.TargetAccuracy > 1 {
		return fmt.Errorf("target accuracy must be in [0, 1]")
	}
	switch c.Checkpoint.Mode {
	case SaveBest, "":
	case SaveEvery, SaveBoth:
		if c.Checkpoint.Every <= 0 {
			return fmt.Errorf("checkpoint mode %q needs a positive interval", c.Checkpoint.Mode)
		}
	default:
		return fmt.Errorf("unknown checkpoint mode %q", c.Checkpoint.Mode)
	}
	switch c.Optimizer {
	case "", "adamw", "sgd":
	default:
		return fmt.Errorf("unknown optimizer %q", c.Optimizer)
	}
	return nil
}
