package dataset

import (
	"context"
	"errors"

	"github.com/exascience/pargo/parallel"
	"github.com/rs/zerolog"

	"github.com/aria-lang/remora-go/internal/chunk"
	"github.com/aria-lang/remora-go/internal/quality"
	"github.com/aria-lang/remora-go/internal/read"
	"github.com/aria-lang/remora-go/internal/sequence"
	"github.com/aria-lang/remora-go/internal/stats"
)

// reasonNoChunks tallies reads that prepared fine but yielded no labelled
// positions.
const reasonNoChunks = "no labelled positions"

// Builder extracts labelled chunks from reads.
type Builder struct {
	Extractor *chunk.Extractor
	Options   read.Options
	Labeler   Labeler
	Classes   []string
	Motifs    []*sequence.Motif
	Filter    *quality.Filter
	// MaxSkipRate is the tolerated fraction of skipped reads. The check
	// only applies once MinReadsForTolerance reads have been seen.
	MaxSkipRate          float64
	MinReadsForTolerance int
	Logger               zerolog.Logger
	// OnRead is called once per read after extraction, possibly from
	// several goroutines at once.
	OnRead func()
}

type readResult struct {
	chunks []chunk.Chunk
	err    error
}

// Build prepares every read in parallel and gathers chunks in read order,
// so the result does not depend on scheduling. Reads that fail are tallied
// by reason and skipped; Build fails with *ToleranceExceededError when the
// running skip rate exceeds MaxSkipRate.
func (b *Builder) Build(ctx context.Context, reads []*read.Read) (*Dataset, *stats.Tally, error) {
	ds, err := New(b.Extractor.Config, b.Classes)
	if err != nil {
		return nil, nil, err
	}
	ds.Normalize = b.Options.Normalize
	ds.UseBasecallScaling = b.Options.UseBasecallScaling

	results := make([]readResult, len(reads))
	parallel.Range(0, len(reads), 0, func(low, high int) {
		for i := low; i < high; i++ {
			if err := ctx.Err(); err != nil {
				results[i].err = err
				continue
			}
			results[i].chunks, results[i].err = b.extract(reads[i])
			if b.OnRead != nil {
				b.OnRead()
			}
		}
	})
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	tally := stats.NewTally()
	for i, res := range results {
		switch {
		case res.err != nil && !read.IsReadError(res.err):
			return nil, tally, res.err
		case res.err != nil:
			reason := read.Reason(res.err)
			tally.Fail(reason)
			b.Logger.Debug().Str("read_id", reads[i].ID).Str("reason", reason).Err(res.err).Msg("skipping read")
		case len(res.chunks) == 0:
			tally.Fail(reasonNoChunks)
		default:
			tally.Success()
			for _, c := range res.chunks {
				if err := ds.Add(c); err != nil {
					return nil, tally, err
				}
			}
		}
		if seen := i + 1; seen >= b.MinReadsForTolerance && b.MaxSkipRate > 0 {
			if float64(tally.Failed()) > b.MaxSkipRate*float64(seen) {
				return nil, tally, &ToleranceExceededError{Skipped: tally.Failed(), Total: seen, MaxRate: b.MaxSkipRate}
			}
		}
	}

	b.Logger.Info().
		Int("reads", len(reads)).
		Int("skipped", tally.Failed()).
		Int("chunks", ds.Len()).
		Ints("class_counts", ds.ClassCounts()).
		Msg("dataset built")
	return ds, tally, nil
}

func (b *Builder) extract(r *read.Read) ([]chunk.Chunk, error) {
	if b.Filter.Enabled() {
		res, err := b.Filter.Check(r.Sequence, r.Qualities)
		if err != nil {
			return nil, &read.PrepareError{ReadID: r.ID, Stage: "invalid qualities", Err: err}
		}
		if !res.Passed {
			return nil, &read.PrepareError{ReadID: r.ID, Stage: res.Reason, Err: &quality.FilteredError{ReadID: r.ID, Reason: res.Reason}}
		}
	}

	p, err := read.Prepare(r, b.Options)
	if err != nil {
		return nil, err
	}
	if b.Labeler.NeedsReference() {
		if err := p.Supervised(); err != nil {
			return nil, err
		}
	}

	var chunks []chunk.Chunk
	for _, idx := range chunk.FocusPositions(p.Bases, b.Motifs) {
		label, ok := b.Labeler.Label(p, idx)
		if !ok {
			continue
		}
		c, err := b.Extractor.Extract(p, idx, label)
		if err != nil {
			var posErr *chunk.PositionError
			if errors.As(err, &posErr) {
				continue
			}
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, nil
}
