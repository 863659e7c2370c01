// Package config loads the YAML configuration shared by the CLI and the
// HTTP server. Every section has defaults, so an empty file is valid.
package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aria-lang/remora-go/internal/alignment"
	"github.com/aria-lang/remora-go/internal/checkpoint"
	"github.com/aria-lang/remora-go/internal/chunk"
	"github.com/aria-lang/remora-go/internal/logging"
	"github.com/aria-lang/remora-go/internal/model"
	"github.com/aria-lang/remora-go/internal/quality"
	"github.com/aria-lang/remora-go/internal/read"
	"github.com/aria-lang/remora-go/internal/sequence"
	"github.com/aria-lang/remora-go/internal/signal"
	"github.com/aria-lang/remora-go/internal/train"
)

// Align configures the reference aligner.
type Align struct {
	Scoring     alignment.ScoringMatrix `yaml:"scoring"`
	Mode        string                  `yaml:"mode"`
	Band        int                     `yaml:"band"`
	MinIdentity float64                 `yaml:"min_identity"`
	TieBreak    string                  `yaml:"tie_break"`
}

// Aligner builds the configured aligner.
func (a Align) Aligner() (*alignment.Aligner, error) {
	if err := a.Scoring.Validate(); err != nil {
		return nil, fmt.Errorf("align.scoring: %w", err)
	}
	mode, err := alignment.ParseMode(a.Mode)
	if err != nil {
		return nil, fmt.Errorf("align.mode: %w", err)
	}
	tb, err := alignment.ParseTieBreak(a.TieBreak)
	if err != nil {
		return nil, fmt.Errorf("align.tie_break: %w", err)
	}
	if a.Band < 0 {
		return nil, fmt.Errorf("align.band must be non-negative")
	}
	if a.MinIdentity < 0 || a.MinIdentity > 1 {
		return nil, fmt.Errorf("align.min_identity must be in [0, 1]")
	}
	scoring := a.Scoring
	return &alignment.Aligner{
		Scoring:     &scoring,
		Mode:        mode,
		Band:        a.Band,
		MinIdentity: a.MinIdentity,
		TieBreak:    tb,
	}, nil
}

// Dataset configures chunk dataset building.
type Dataset struct {
	Classes              []string `yaml:"classes"`
	Motifs               []string `yaml:"motifs"`
	MaxSkipRate          float64  `yaml:"max_skip_rate"`
	MinReadsForTolerance int      `yaml:"min_reads_for_tolerance"`
	UseBasecallScaling   bool     `yaml:"use_basecall_scaling"`
}

// Infer configures the inference engine.
type Infer struct {
	BatchSize     int  `yaml:"batch_size"`
	Workers       int  `yaml:"workers"`
	CallUnaligned bool `yaml:"call_unaligned"`
}

// Store selects where checkpoints and metrics are kept.
type Store struct {
	Kind string `yaml:"kind"`
	Path string `yaml:"path"`
}

// Server configures the HTTP API.
type Server struct {
	Addr string `yaml:"addr"`
	// Checkpoint names the store entry served by the model endpoints.
	Checkpoint string        `yaml:"checkpoint"`
	Timeout    time.Duration `yaml:"timeout"`
}

// Config is the top-level configuration file.
type Config struct {
	Chunk     chunk.Config   `yaml:"chunk"`
	Normalize signal.Policy  `yaml:"normalize"`
	Align     Align          `yaml:"align"`
	Quality   quality.Filter `yaml:"quality"`
	Dataset   Dataset        `yaml:"dataset"`
	Model     model.Spec     `yaml:"model"`
	Train     train.Config   `yaml:"train"`
	Infer     Infer          `yaml:"infer"`
	Store     Store          `yaml:"store"`
	Server    Server         `yaml:"server"`
	Log       logging.Config `yaml:"log"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Chunk:     chunk.Default(),
		Normalize: signal.DefaultPolicy(),
		Align: Align{
			Scoring:  *alignment.DefaultDNA(),
			Mode:     alignment.Global.String(),
			TieBreak: alignment.MatchDeletionInsertion.String(),
		},
		Quality: quality.Filter{MaxAmbiguous: -1},
		Dataset: Dataset{
			Classes:              []string{"C", "5mC"},
			Motifs:               []string{"CG:0"},
			MaxSkipRate:          0.5,
			MinReadsForTolerance: 100,
		},
		Model:  model.Spec{Arch: "conv", Filters: 16, Kernel: 9, Hidden: 32, Seed: 1},
		Train:  train.DefaultConfig(),
		Infer:  Infer{BatchSize: 256, Workers: 4},
		Store:  Store{Kind: "dir", Path: "checkpoints"},
		Server: Server{Addr: ":8080", Checkpoint: train.BestCheckpoint, Timeout: 60 * time.Second},
		Log:    logging.DefaultConfig(),
	}
}

// Load reads a YAML file over the defaults. Unknown keys are errors.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	cfg, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Decode parses YAML from r over the defaults and validates the result.
func Decode(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Encode writes cfg as YAML.
func (c *Config) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return err
	}
	return enc.Close()
}

// String renders the configuration as YAML.
func (c *Config) String() string {
	var buf bytes.Buffer
	if err := c.Encode(&buf); err != nil {
		return err.Error()
	}
	return buf.String()
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Chunk.Validate(); err != nil {
		return fmt.Errorf("chunk: %w", err)
	}
	if err := c.Normalize.Validate(); err != nil {
		return fmt.Errorf("normalize: %w", err)
	}
	if _, err := c.Align.Aligner(); err != nil {
		return err
	}
	if len(c.Dataset.Classes) < 2 {
		return fmt.Errorf("dataset.classes needs at least two labels")
	}
	if _, err := c.Motifs(); err != nil {
		return fmt.Errorf("dataset.motifs: %w", err)
	}
	if c.Dataset.MaxSkipRate < 0 || c.Dataset.MaxSkipRate > 1 {
		return fmt.Errorf("dataset.max_skip_rate must be in [0, 1]")
	}
	if c.Model.Arch != "" && !slices.Contains(model.Archs(), c.Model.Arch) {
		return fmt.Errorf("model.arch: unknown architecture %q", c.Model.Arch)
	}
	if err := c.Train.Validate(len(c.Dataset.Classes)); err != nil {
		return fmt.Errorf("train: %w", err)
	}
	if c.Infer.BatchSize <= 0 || c.Infer.Workers <= 0 {
		return fmt.Errorf("infer: batch_size and workers must be positive")
	}
	switch c.Store.Kind {
	case "memory":
	case "dir", "sqlite":
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for %q stores", c.Store.Kind)
		}
	default:
		return fmt.Errorf("store.kind: unknown store %q", c.Store.Kind)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("server.timeout must be positive")
	}
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	return nil
}

// Motifs compiles the dataset focus motifs.
func (c *Config) Motifs() ([]*sequence.Motif, error) {
	out := make([]*sequence.Motif, 0, len(c.Dataset.Motifs))
	for _, s := range c.Dataset.Motifs {
		m, err := sequence.ParseMotif(s)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// ReadOptions builds read preparation options.
func (c *Config) ReadOptions() (read.Options, error) {
	aligner, err := c.Align.Aligner()
	if err != nil {
		return read.Options{}, err
	}
	return read.Options{
		Normalize:          c.Normalize,
		UseBasecallScaling: c.Dataset.UseBasecallScaling,
		Aligner:            aligner,
	}, nil
}

// QualityFilter returns the read filter, or nil when every check is off.
func (c *Config) QualityFilter() *quality.Filter {
	f := c.Quality
	if !f.Enabled() {
		return nil
	}
	return &f
}

// OpenStore opens and initializes the configured checkpoint store.
func (c *Config) OpenStore(ctx context.Context) (checkpoint.Store, error) {
	store, err := checkpoint.NewStore(c.Store.Kind, c.Store.Path)
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		_ = checkpoint.CloseIfSupported(store)
		return nil, fmt.Errorf("init %s store: %w", c.Store.Kind, err)
	}
	return store, nil
}
