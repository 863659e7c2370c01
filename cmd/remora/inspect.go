package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/aria-lang/remora-go/internal/checkpoint"
	"github.com/aria-lang/remora-go/pkg/remora"
)

func inspectCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show checkpoints, read statistics or the configuration",
	}
	cmd.AddCommand(inspectCheckpointCommand(a), inspectReadsCommand(a), inspectConfigCommand(a))
	return cmd
}

type checkpointInfo struct {
	ID          string                    `json:"id"`
	RunID       string                    `json:"run_id,omitempty"`
	Created     string                    `json:"created"`
	Arch        string                    `json:"arch"`
	Classes     []string                  `json:"classes"`
	Motifs      []string                  `json:"motifs,omitempty"`
	Epoch       int                       `json:"epoch"`
	Params      int                       `json:"params"`
	Fingerprint string                    `json:"fingerprint"`
	Chunk       remora.ChunkConfig        `json:"chunk"`
	Metrics     *checkpoint.EpochMetrics  `json:"metrics,omitempty"`
	History     []checkpoint.EpochMetrics `json:"history,omitempty"`
}

func inspectCheckpointCommand(a *app) *cobra.Command {
	var (
		model   modelFlags
		history bool
	)
	cmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "Describe a checkpoint; with no flags, list the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if model.file == "" && model.name == "" {
				store, err := a.cfg.OpenStore(ctx)
				if err != nil {
					return err
				}
				defer checkpoint.CloseIfSupported(store)
				names, err := store.ListCheckpoints(ctx)
				if err != nil {
					return err
				}
				for _, n := range names {
					fmt.Fprintln(cmd.OutOrStdout(), n)
				}
				return nil
			}

			ck, err := model.load(ctx, a)
			if err != nil {
				return err
			}
			info := checkpointInfo{
				ID:          ck.ID,
				RunID:       ck.RunID,
				Created:     ck.Created.Format(time.RFC3339),
				Arch:        ck.Arch(),
				Classes:     ck.Classes,
				Motifs:      ck.Motifs,
				Epoch:       ck.Epoch,
				Fingerprint: fmt.Sprintf("%016x", ck.Fingerprint()),
				Chunk:       ck.Chunk,
				Metrics:     ck.Metrics,
			}
			for _, p := range ck.Params {
				info.Params += len(p.W)
			}
			if history && ck.RunID != "" {
				store, err := a.cfg.OpenStore(ctx)
				if err != nil {
					return err
				}
				defer checkpoint.CloseIfSupported(store)
				if h, ok, err := store.GetMetrics(ctx, ck.RunID); err != nil {
					return err
				} else if ok {
					info.History = h
				}
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(info)
		},
	}
	model.register(cmd)
	cmd.Flags().BoolVar(&history, "history", false, "Include the run's metrics history from the store")
	return cmd
}

func inspectReadsCommand(a *app) *cobra.Command {
	var in inputs
	cmd := &cobra.Command{
		Use:   "reads",
		Short: "Summarize read lengths and basecall qualities",
		RunE: func(cmd *cobra.Command, args []string) error {
			reads, tally, err := in.load(cmd.Context(), a)
			if err != nil {
				return err
			}
			s, err := remora.ReadStats(reads)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), s)
			if tally.Failed() > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "skipped records: %s\n", tally)
			}
			return nil
		},
	}
	in.register(cmd)
	return cmd
}

func inspectConfigCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.cfg.Encode(cmd.OutOrStdout())
		},
	}
}
