package main

import (
	"context"
	"fmt"
	"os"

	"github.com/cheggaaa/pb/v3"
	"github.com/spf13/cobra"

	"github.com/aria-lang/remora-go/internal/dataset"
	"github.com/aria-lang/remora-go/internal/read"
	"github.com/aria-lang/remora-go/pkg/remora"
)

func datasetCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dataset",
		Short: "Prepare or inspect chunk datasets",
	}
	cmd.AddCommand(datasetPrepareCommand(a), datasetInspectCommand(a))
	return cmd
}

func datasetPrepareCommand(a *app) *cobra.Command {
	var (
		in     inputs
		output string
		class  string
		labels string
	)
	cmd := &cobra.Command{
		Use:   "prepare",
		Short: "Extract labelled chunks from reads",
		Long: `Extract chunks around motif positions and label them.

--class labels every chunk of every read with one class (e.g. a fully
methylated control). --labels reads a BED file of per-site classes
(contig, start, end, class, score, strand) and needs aligned reads.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			labeler, err := buildLabeler(a.cfg.Dataset.Classes, class, labels)
			if err != nil {
				return err
			}
			reads, tally, err := in.load(cmd.Context(), a)
			if err != nil {
				return err
			}
			ds, built, err := buildDataset(cmd.Context(), a, reads, labeler)
			if built != nil {
				tally.Merge(built)
			}
			if err != nil {
				return err
			}
			a.log.Info().Stringer("reads", tally).Msg("read summary")

			f, err := os.Create(output)
			if err != nil {
				return err
			}
			if err := ds.Write(f); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			a.log.Info().Str("path", output).Int("chunks", ds.Len()).Msg("dataset written")
			return nil
		},
	}
	in.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "chunks.rmds", "Output dataset file")
	cmd.Flags().StringVar(&class, "class", "", "Label every chunk with this class")
	cmd.Flags().StringVar(&labels, "labels", "", "BED file of per-site classes")
	return cmd
}

func buildLabeler(classes []string, class, labels string) (dataset.Labeler, error) {
	switch {
	case class != "" && labels != "":
		return nil, fmt.Errorf("--class and --labels are mutually exclusive")
	case class != "":
		for i, c := range classes {
			if c == class {
				return dataset.ReadLabeler{Class: i}, nil
			}
		}
		return nil, fmt.Errorf("class %q not in %v", class, classes)
	case labels != "":
		f, err := os.Open(labels)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return dataset.LoadBED(f, classes)
	default:
		return nil, fmt.Errorf("one of --class or --labels is required")
	}
}

// buildDataset runs the builder behind a progress bar.
func buildDataset(ctx context.Context, a *app, reads []*read.Read, labeler dataset.Labeler) (*remora.Dataset, *remora.Tally, error) {
	b, err := remora.NewBuilder(a.cfg, labeler, a.log)
	if err != nil {
		return nil, nil, err
	}
	var bar *pb.ProgressBar
	if !a.noProgress {
		bar = pb.Full.Start(len(reads))
		defer bar.Finish()
		b.OnRead = func() { bar.Increment() }
	}
	return b.Build(ctx, reads)
}

func datasetInspectCommand(a *app) *cobra.Command {
	var (
		k   int
		top int
	)
	cmd := &cobra.Command{
		Use:   "inspect <dataset>",
		Short: "Summarize a chunk dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := readDataset(args[0])
			if err != nil {
				return err
			}
			s, err := ds.Summarize(k, top)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), s)
			return nil
		},
	}
	cmd.Flags().IntVarP(&k, "kmer-size", "k", 3, "Centred k-mer size")
	cmd.Flags().IntVarP(&top, "top", "n", 5, "Most frequent k-mers to show")
	return cmd
}

func readDataset(path string) (*remora.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	ds, err := dataset.Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ds, nil
}
