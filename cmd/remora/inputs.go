package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/spf13/cobra"

	"github.com/aria-lang/remora-go/internal/bamio"
	"github.com/aria-lang/remora-go/internal/read"
	"github.com/aria-lang/remora-go/internal/reference"
	"github.com/aria-lang/remora-go/internal/signalio"
	"github.com/aria-lang/remora-go/internal/stats"
	"github.com/aria-lang/remora-go/pkg/remora"
)

// inputs selects where reads come from: a JSONL file of complete reads, or
// a BAM file joined with a signal file.
type inputs struct {
	reads            string
	bam              string
	signals          string
	reference        string
	threads          int
	includeSecondary bool
}

func (in *inputs) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&in.reads, "reads", "", "JSONL file of complete reads (.zst allowed)")
	f.StringVar(&in.bam, "bam", "", "BAM file with move tables")
	f.StringVar(&in.signals, "signals", "", "JSONL signal file joined to --bam (.zst allowed)")
	f.StringVar(&in.reference, "reference", "", "FASTA reference for mapped BAM records (.zst allowed)")
	f.IntVarP(&in.threads, "threads", "t", runtime.NumCPU(), "BAM decompression threads")
	f.BoolVar(&in.includeSecondary, "include-secondary", false, "Keep secondary and supplementary BAM records")
}

func (in *inputs) validate() error {
	switch {
	case in.reads != "" && in.bam != "":
		return fmt.Errorf("--reads and --bam are mutually exclusive")
	case in.reads != "":
		return nil
	case in.bam != "" && in.signals == "":
		return fmt.Errorf("--bam needs --signals")
	case in.bam != "":
		return nil
	default:
		return fmt.Errorf("one of --reads or --bam is required")
	}
}

// each calls fn for every ingested read. Reads that cannot be ingested are
// tallied and skipped.
func (in *inputs) each(ctx context.Context, a *app, fn func(*read.Read) error) (*stats.Tally, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	tally := stats.NewTally()
	if in.reads != "" {
		rc, err := openMaybeZstd(in.reads)
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		reads, err := remora.ReadRecords(rc)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", in.reads, err)
		}
		for _, rd := range reads {
			if err := ctx.Err(); err != nil {
				return tally, err
			}
			if err := fn(rd); err != nil {
				return tally, err
			}
		}
		return tally, nil
	}

	src, err := signalio.Open(in.signals)
	if err != nil {
		return nil, err
	}
	signals, err := signalio.Index(src)
	src.Close()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", in.signals, err)
	}
	a.log.Debug().Int("reads", len(signals)).Str("path", in.signals).Msg("signals indexed")

	var genome *reference.Genome
	if in.reference != "" {
		if genome, err = reference.Open(in.reference); err != nil {
			return nil, err
		}
		a.log.Debug().Strs("contigs", genome.SortedNames()).Msg("reference loaded")
	}

	f, err := os.Open(in.bam)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	br, err := bamio.NewReader(f, genome, in.threads)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", in.bam, err)
	}
	defer br.Close()
	br.IncludeSecondary = in.includeSecondary

	err = bamio.Join(br, signals, func(rd *read.Read) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return fn(rd)
	}, func(readID string, err error) {
		tally.Fail(read.Reason(err))
		a.log.Debug().Str("read_id", readID).Err(err).Msg("skipping record")
	})
	return tally, err
}

// load collects every ingested read.
func (in *inputs) load(ctx context.Context, a *app) ([]*read.Read, *stats.Tally, error) {
	var reads []*read.Read
	tally, err := in.each(ctx, a, func(rd *read.Read) error {
		reads = append(reads, rd)
		return nil
	})
	return reads, tally, err
}

type multiCloser []io.Closer

func (m multiCloser) Close() error {
	var errs []error
	for i := len(m) - 1; i >= 0; i-- {
		errs = append(errs, m[i].Close())
	}
	return errors.Join(errs...)
}

type readCloser struct {
	io.Reader
	io.Closer
}

func openMaybeZstd(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(path, ".zst") {
		return f, nil
	}
	zr, err := zstd.NewReader(f, zstd.WithDecoderConcurrency(1))
	if err != nil {
		f.Close()
		return nil, err
	}
	return readCloser{zr, multiCloser{f, zstdCloser{zr}}}, nil
}

type writeCloser struct {
	io.Writer
	io.Closer
}

// createMaybeZstd opens path for writing; "-" or "" is stdout.
func createMaybeZstd(cmd *cobra.Command, path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return writeCloser{cmd.OutOrStdout(), nopCloser{}}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(path, ".zst") {
		return f, nil
	}
	zw, err := zstd.NewWriter(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return writeCloser{zw, multiCloser{f, zw}}, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

type zstdCloser struct{ d *zstd.Decoder }

func (z zstdCloser) Close() error {
	z.d.Close()
	return nil
}
