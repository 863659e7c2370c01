package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/cheggaaa/pb/v3"
	"github.com/spf13/cobra"

	"github.com/aria-lang/remora-go/internal/duplex"
	"github.com/aria-lang/remora-go/internal/read"
)

func duplexCommand(a *app) *cobra.Command {
	var (
		in     inputs
		model  modelFlags
		pairs  string
		output string
	)
	cmd := &cobra.Command{
		Use:   "duplex",
		Short: "Call modified bases on duplex pairs",
		Long: `Call both strands of each duplex pair and combine calls at paired
positions. --pairs lists "template complement" read IDs, one pair per
line after a header line.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			f, err := os.Open(pairs)
			if err != nil {
				return err
			}
			ids, err := duplex.ParsePairs(f)
			f.Close()
			if err != nil {
				return fmt.Errorf("%s: %w", pairs, err)
			}

			engine, err := model.engine(ctx, a)
			if err != nil {
				return err
			}
			aligner, err := a.cfg.Align.Aligner()
			if err != nil {
				return err
			}

			wanted := make(map[string]bool, 2*len(ids))
			for _, p := range ids {
				wanted[p.Template], wanted[p.Complement] = true, true
			}
			byID := make(map[string]*read.Read, len(wanted))
			if _, err := in.each(ctx, a, func(rd *read.Read) error {
				if wanted[rd.ID] {
					byID[rd.ID] = rd
				}
				return nil
			}); err != nil {
				return err
			}

			out, err := createMaybeZstd(cmd, output)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(out)

			var bar *pb.ProgressBar
			if !a.noProgress {
				bar = pb.Full.Start(len(ids))
			}
			var written, skipped int
			for _, p := range ids {
				if bar != nil {
					bar.Increment()
				}
				tmpl, comp := byID[p.Template], byID[p.Complement]
				if tmpl == nil || comp == nil {
					skipped++
					a.log.Warn().Str("template", p.Template).Str("complement", p.Complement).Msg("pair read missing")
					continue
				}
				pair, err := duplex.NewPair(tmpl, comp, aligner)
				if err != nil {
					skipped++
					a.log.Warn().Err(err).Msg("pairing failed")
					continue
				}
				calls, err := engine.CallDuplex(ctx, pair)
				if err != nil {
					out.Close()
					return err
				}
				if err := enc.Encode(calls); err != nil {
					out.Close()
					return err
				}
				written++
			}
			if bar != nil {
				bar.Finish()
			}
			if err := out.Close(); err != nil {
				return err
			}
			a.log.Info().Int("pairs", written).Int("skipped", skipped).Msg("duplex calling finished")
			return nil
		},
	}
	in.register(cmd)
	model.register(cmd)
	cmd.Flags().StringVar(&pairs, "pairs", "", "Pairs file (template and complement read IDs)")
	cmd.Flags().StringVarP(&output, "output", "o", "-", "Output JSONL file (- for stdout)")
	cmd.MarkFlagRequired("pairs")
	return cmd
}
