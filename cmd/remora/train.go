package main

import (
	"fmt"

	"github.com/cheggaaa/pb/v3"
	"github.com/spf13/cobra"

	"github.com/aria-lang/remora-go/internal/checkpoint"
	"github.com/aria-lang/remora-go/internal/train"
	"github.com/aria-lang/remora-go/pkg/remora"
)

func trainCommand(a *app) *cobra.Command {
	var (
		datasets []string
		output   string
		epochs   int
		arch     string
	)
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a model on chunk datasets",
		Long: `Train a model on one or more datasets written by "dataset prepare".

Checkpoints and per-epoch metrics go to the configured store. --output
additionally writes the final checkpoint to a file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			if epochs > 0 {
				cfg.Train.Epochs = epochs
			}
			if arch != "" {
				cfg.Model.Arch = arch
			}

			ds, err := readDataset(datasets[0])
			if err != nil {
				return err
			}
			for _, path := range datasets[1:] {
				more, err := readDataset(path)
				if err != nil {
					return err
				}
				if err := ds.Merge(more); err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
			}
			if !ds.Config.Equal(cfg.Chunk) {
				a.log.Warn().Msg("dataset chunk configuration differs from the configuration file; using the dataset's")
			}

			store, err := cfg.OpenStore(cmd.Context())
			if err != nil {
				return err
			}
			defer checkpoint.CloseIfSupported(store)

			t, err := remora.NewTrainer(cfg, ds, store, a.log)
			if err != nil {
				return err
			}
			if !a.noProgress {
				bar := pb.Full.Start(cfg.Train.Epochs)
				defer bar.Finish()
				t.OnState = func(from, to train.State) {
					if to == train.CheckpointDecision {
						bar.Increment()
					}
				}
			}

			res, err := t.Run(cmd.Context())
			if err != nil {
				return err
			}
			ev := a.log.Info().
				Str("run_id", res.RunID).
				Stringer("state", res.State).
				Int("epochs", res.Epochs)
			if res.Best != nil {
				ev = ev.Float64("best_val_loss", res.Best.ValLoss).Float64("best_val_accuracy", res.Best.ValAccuracy)
			}
			ev.Msg("training finished")

			if output != "" && res.Final != nil {
				if err := remora.WriteCheckpointFile(output, res.Final); err != nil {
					return err
				}
				a.log.Info().Str("path", output).Msg("checkpoint written")
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&datasets, "dataset", "d", nil, "Dataset files (repeatable)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Also write the final checkpoint to this file")
	cmd.Flags().IntVarP(&epochs, "epochs", "e", 0, "Override train.epochs")
	cmd.Flags().StringVar(&arch, "arch", "", "Override model.arch")
	cmd.MarkFlagRequired("dataset")
	return cmd
}
