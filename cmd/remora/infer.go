package main

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/cheggaaa/pb/v3"
	"github.com/spf13/cobra"

	"github.com/aria-lang/remora-go/internal/checkpoint"
	"github.com/aria-lang/remora-go/internal/infer"
	"github.com/aria-lang/remora-go/internal/read"
	"github.com/aria-lang/remora-go/pkg/remora"
)

// modelFlags choose the checkpoint to run: a file, or a name in the
// configured store.
type modelFlags struct {
	file string
	name string
}

func (m *modelFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&m.file, "model", "m", "", "Checkpoint file")
	cmd.Flags().StringVar(&m.name, "checkpoint", "", "Checkpoint name in the configured store (default server.checkpoint)")
}

func (m *modelFlags) load(ctx context.Context, a *app) (*remora.Checkpoint, error) {
	if m.file != "" {
		return remora.ReadCheckpointFile(m.file)
	}
	name := m.name
	if name == "" {
		name = a.cfg.Server.Checkpoint
	}
	store, err := a.cfg.OpenStore(ctx)
	if err != nil {
		return nil, err
	}
	defer checkpoint.CloseIfSupported(store)
	return checkpoint.Load(ctx, store, name)
}

func (m *modelFlags) engine(ctx context.Context, a *app) (*remora.Engine, error) {
	ck, err := m.load(ctx, a)
	if err != nil {
		return nil, err
	}
	a.log.Info().Str("checkpoint", ck.ID).Str("arch", ck.Arch()).Int("epoch", ck.Epoch).Msg("model loaded")
	return remora.NewEngine(ck, a.cfg, a.log)
}

func inferCommand(a *app) *cobra.Command {
	var (
		in            inputs
		model         modelFlags
		output        string
		workers       int
		callUnaligned bool
	)
	cmd := &cobra.Command{
		Use:   "infer",
		Short: "Call modified bases on reads",
		Long: `Call every focus position of every read and write one JSON object
per read. Reads that fail preparation are written with an "error" field
and no calls. Output ending in .zst is compressed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := in.validate(); err != nil {
				return err
			}
			if workers > 0 {
				a.cfg.Infer.Workers = workers
			}
			if cmd.Flags().Changed("call-unaligned") {
				a.cfg.Infer.CallUnaligned = callUnaligned
			}
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			engine, err := model.engine(ctx, a)
			if err != nil {
				return err
			}
			out, err := createMaybeZstd(cmd, output)
			if err != nil {
				return err
			}
			defer func() {
				if out != nil {
					out.Close()
				}
			}()
			enc := json.NewEncoder(out)

			var bar *pb.ProgressBar
			if !a.noProgress {
				bar = pb.Full.Start(0)
				defer bar.Finish()
			}

			reads := make(chan *read.Read)
			ingestErr := make(chan error, 1)
			var ingestTally *remora.Tally
			go func() {
				defer close(reads)
				var err error
				ingestTally, err = in.each(ctx, a, func(rd *read.Read) error {
					select {
					case reads <- rd:
						return nil
					case <-ctx.Done():
						return ctx.Err()
					}
				})
				ingestErr <- err
			}()

			tally, err := engine.Stream(ctx, reads, func(calls *infer.ReadCalls) error {
				if bar != nil {
					bar.Increment()
				}
				return enc.Encode(calls)
			})
			cancel()
			if ierr := <-ingestErr; ierr != nil && !errors.Is(ierr, context.Canceled) && err == nil {
				err = ierr
			}
			if ingestTally != nil && tally != nil {
				tally.Merge(ingestTally)
			}
			if err != nil {
				return err
			}
			err = out.Close()
			out = nil
			if err != nil {
				return err
			}
			a.log.Info().
				Int("called", tally.Succeeded()).
				Int("failed", tally.Failed()).
				Stringer("reasons", tally).
				Msg("inference finished")
			return nil
		},
	}
	in.register(cmd)
	model.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "-", "Output JSONL file (- for stdout)")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Override infer.workers")
	cmd.Flags().BoolVar(&callUnaligned, "call-unaligned", false, "Call reads whose reference alignment failed")
	return cmd
}
