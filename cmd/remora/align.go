package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aria-lang/remora-go/pkg/remora"
)

func alignCommand(a *app) *cobra.Command {
	var (
		readSeq string
		refSeq  string
		mode    string
	)
	cmd := &cobra.Command{
		Use:   "align",
		Short: "Align basecalls to a reference sequence",
		Long:  "Align a read's basecalls to a reference with the configured affine-gap aligner and print the alignment",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg.Align
			if mode != "" {
				cfg.Mode = mode
			}
			aligner, err := cfg.Aligner()
			if err != nil {
				return err
			}
			aln, err := remora.AlignWith(aligner, readSeq, refSeq)
			if aln != nil {
				fmt.Fprintln(cmd.OutOrStdout(), aln.Format())
			}
			return err
		},
	}
	cmd.Flags().StringVar(&readSeq, "read", "", "Read basecalls")
	cmd.Flags().StringVar(&refSeq, "ref", "", "Reference sequence")
	cmd.Flags().StringVar(&mode, "mode", "", "Alignment mode (global, semi-global); overrides align.mode")
	cmd.MarkFlagRequired("read")
	cmd.MarkFlagRequired("ref")
	return cmd
}
