// Package remora provides a high-level API for signal-level modified base
// calling.
//
// It wires the internal packages together the way the command line tool
// and HTTP server use them: configuration, dataset building, training and
// inference.
//
// Example usage:
//
//	cfg, err := remora.LoadConfig("remora.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	ck, err := remora.ReadCheckpointFile("best.rmck")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	engine, err := remora.NewEngine(ck, cfg, zerolog.Nop())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	calls, err := engine.CallRead(ctx, rd)
package remora

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/aria-lang/remora-go/internal/alignment"
	"github.com/aria-lang/remora-go/internal/checkpoint"
	"github.com/aria-lang/remora-go/internal/chunk"
	"github.com/aria-lang/remora-go/internal/config"
	"github.com/aria-lang/remora-go/internal/dataset"
	"github.com/aria-lang/remora-go/internal/duplex"
	"github.com/aria-lang/remora-go/internal/infer"
	"github.com/aria-lang/remora-go/internal/model"
	"github.com/aria-lang/remora-go/internal/quality"
	"github.com/aria-lang/remora-go/internal/read"
	"github.com/aria-lang/remora-go/internal/sequence"
	"github.com/aria-lang/remora-go/internal/stats"
	"github.com/aria-lang/remora-go/internal/train"
)

// Re-export types for convenience
type (
	Config        = config.Config
	Read          = read.Read
	Reference     = read.Reference
	Prepared      = read.Prepared
	Alignment     = alignment.Alignment
	Aligner       = alignment.Aligner
	ScoringMatrix = alignment.ScoringMatrix
	Chunk         = chunk.Chunk
	ChunkConfig   = chunk.Config
	Dataset       = dataset.Dataset
	Labeler       = dataset.Labeler
	Checkpoint    = checkpoint.Checkpoint
	Store         = checkpoint.Store
	Engine        = infer.Engine
	ReadCalls     = infer.ReadCalls
	DuplexCalls   = infer.DuplexCalls
	Pair          = duplex.Pair
	TrainResult   = train.Result
	Tally         = stats.Tally
	Filter        = quality.Filter
	Motif         = sequence.Motif
)

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return config.Default()
}

// LoadConfig reads a YAML configuration file. An empty path returns the
// defaults.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// Align aligns a read's basecalls to a reference with the default aligner.
func Align(readBases, ref string) (*Alignment, error) {
	return alignment.NewAligner().Align(sequence.Normalize(readBases), sequence.Normalize(ref))
}

// AlignWith aligns with a configured aligner.
func AlignWith(a *Aligner, readBases, ref string) (*Alignment, error) {
	return a.Align(sequence.Normalize(readBases), sequence.Normalize(ref))
}

// ParseMotifs compiles "MOTIF:OFFSET" specs.
func ParseMotifs(specs []string) ([]*Motif, error) {
	out := make([]*Motif, 0, len(specs))
	for _, s := range specs {
		m, err := sequence.ParseMotif(s)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// FocusPositions returns the read positions the motifs select, or every
// position when motifs is empty.
func FocusPositions(bases string, motifs []*Motif) []int {
	return chunk.FocusPositions(sequence.Normalize(bases), motifs)
}

// Prepare normalizes, maps and aligns one read using cfg.
func Prepare(cfg *Config, r *Read) (*Prepared, error) {
	opts, err := cfg.ReadOptions()
	if err != nil {
		return nil, err
	}
	return read.Prepare(r, opts)
}

// NewBuilder returns a dataset builder for cfg. A nil labeler labels every
// chunk with class 0.
func NewBuilder(cfg *Config, labeler Labeler, logger zerolog.Logger) (*dataset.Builder, error) {
	ext, err := chunk.NewExtractor(cfg.Chunk)
	if err != nil {
		return nil, err
	}
	opts, err := cfg.ReadOptions()
	if err != nil {
		return nil, err
	}
	motifs, err := cfg.Motifs()
	if err != nil {
		return nil, err
	}
	if labeler == nil {
		labeler = dataset.ReadLabeler{Class: 0}
	}
	return &dataset.Builder{
		Extractor:            ext,
		Options:              opts,
		Labeler:              labeler,
		Classes:              cfg.Dataset.Classes,
		Motifs:               motifs,
		Filter:               cfg.QualityFilter(),
		MaxSkipRate:          cfg.Dataset.MaxSkipRate,
		MinReadsForTolerance: cfg.Dataset.MinReadsForTolerance,
		Logger:               logger,
	}, nil
}

// BuildDataset extracts labelled chunks from reads.
func BuildDataset(ctx context.Context, cfg *Config, reads []*Read, labeler Labeler, logger zerolog.Logger) (*Dataset, *Tally, error) {
	b, err := NewBuilder(cfg, labeler, logger)
	if err != nil {
		return nil, nil, err
	}
	return b.Build(ctx, reads)
}

// NewTrainer splits ds, builds a fresh model from cfg.Model and returns a
// trainer writing checkpoints to store. Checkpoints record the
// normalization ds was built with, whatever cfg.Normalize says.
func NewTrainer(cfg *Config, ds *Dataset, store Store, logger zerolog.Logger) (*train.Trainer, error) {
	if err := cfg.Train.Validate(ds.NumClasses()); err != nil {
		return nil, err
	}
	trainSet, valSet := ds, (*Dataset)(nil)
	if cfg.Train.ValFraction > 0 {
		var err error
		trainSet, valSet, err = ds.Split(cfg.Train.ValFraction, cfg.Train.Seed)
		if err != nil {
			return nil, err
		}
	}
	m, err := model.New(cfg.Model.ForChunks(ds.Config, ds.NumClasses()))
	if err != nil {
		return nil, err
	}
	if ds.Normalize != cfg.Normalize || ds.UseBasecallScaling != cfg.Dataset.UseBasecallScaling {
		logger.Warn().
			Str("dataset_method", string(ds.Normalize.Method)).
			Bool("dataset_basecall_scaling", ds.UseBasecallScaling).
			Msg("dataset normalization differs from the configuration; using the dataset's")
	}
	t := train.NewTrainer(cfg.Train, m, trainSet, valSet)
	t.Store = store
	t.Motifs = cfg.Dataset.Motifs
	t.Logger = logger
	return t, nil
}

// Train runs a full training loop over ds.
func Train(ctx context.Context, cfg *Config, ds *Dataset, store Store, logger zerolog.Logger) (*TrainResult, error) {
	t, err := NewTrainer(cfg, ds, store, logger)
	if err != nil {
		return nil, err
	}
	return t.Run(ctx)
}

// NewEngine loads a checkpoint for inference with cfg's read preparation
// and worker settings. The checkpoint's chunk and normalization settings
// are authoritative; cfg must agree with them.
func NewEngine(ck *Checkpoint, cfg *Config, logger zerolog.Logger) (*Engine, error) {
	opts := infer.DefaultOptions(ck)
	prep, err := cfg.ReadOptions()
	if err != nil {
		return nil, err
	}
	if prep.Normalize != ck.Normalize || prep.UseBasecallScaling != ck.UseBasecallScaling {
		logger.Warn().
			Str("checkpoint_method", string(ck.Normalize.Method)).
			Bool("checkpoint_basecall_scaling", ck.UseBasecallScaling).
			Msg("configured normalization differs from the checkpoint; using the checkpoint's")
	}
	prep.Normalize = ck.Normalize
	prep.UseBasecallScaling = ck.UseBasecallScaling
	opts.Prepare = prep
	opts.BatchSize = cfg.Infer.BatchSize
	opts.Workers = cfg.Infer.Workers
	opts.CallUnaligned = cfg.Infer.CallUnaligned
	opts.Logger = logger
	return infer.NewEngine(ck, opts)
}

// ReadCheckpointFile decodes a checkpoint file.
func ReadCheckpointFile(path string) (*Checkpoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	ck, err := checkpoint.Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ck, nil
}

// WriteCheckpointFile encodes a checkpoint to path.
func WriteCheckpointFile(path string, ck *Checkpoint) error {
	b, err := checkpoint.Encode(ck)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// ReadStats summarizes read lengths and basecall qualities.
func ReadStats(reads []*Read) (*stats.ReadSetStats, error) {
	summaries := make([]stats.ReadSummary, len(reads))
	for i, r := range reads {
		summaries[i] = stats.ReadSummary{
			Length:      len(r.Sequence),
			MeanQuality: quality.MeanQuality(r.Qualities),
			HasQuality:  len(r.Qualities) > 0,
		}
	}
	return stats.FromReads(summaries)
}

// Version returns the library version.
func Version() string {
	return "0.3.0"
}

// Info returns a short description of the library.
func Info() string {
	return fmt.Sprintf(`remora-go v%s - signal-level modified base calling

Features:
  - Signal normalization (median/MAD, IQR, mean/std, fixed)
  - Move-table base to signal mapping
  - Affine-gap read to reference alignment
  - Fixed-shape chunk extraction around motif positions
  - Class-balanced training with AdamW or SGD
  - Streaming and duplex inference
`, Version())
}
