// Command remora trains and runs signal-level modified base models.
//
// Usage:
//
//	remora [command] [options]
//
// Commands:
//
//	align       Align basecalls to a reference
//	dataset     Prepare or inspect chunk datasets
//	train       Train a model on a chunk dataset
//	infer       Call modified bases on reads
//	duplex      Call modified bases on duplex pairs
//	inspect     Show checkpoints, read statistics or the configuration
//	version     Show version information
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/aria-lang/remora-go/internal/logging"
	"github.com/aria-lang/remora-go/pkg/remora"
)

// app holds what every subcommand needs once flags are parsed.
type app struct {
	configPath string
	logLevel   string
	logFormat  string
	noProgress bool

	cfg *remora.Config
	log zerolog.Logger
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := remora.LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = a.logLevel
	}
	if cmd.Flags().Changed("log-format") {
		cfg.Log.Format = logging.Format(a.logFormat)
	}
	log, err := logging.FromConfig(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}
	a.cfg, a.log = cfg, log
	return nil
}

func newRootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "remora",
		Short: "Signal-level modified base calling",
		Long: `remora: modified base calling from nanopore signal

Reads are ingested from a BAM file with move tables (mv/ts/sm/sd tags)
joined to a JSONL signal file, or from a JSONL file of complete reads.
Chunks around motif positions train a small classifier whose checkpoint
is then used to call every read.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}
	root.CompletionOptions.DisableDefaultCmd = true
	pf := root.PersistentFlags()
	pf.StringVarP(&a.configPath, "config", "c", "", "YAML configuration file")
	pf.StringVar(&a.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	pf.StringVar(&a.logFormat, "log-format", "console", "Log format (console, json)")
	pf.BoolVar(&a.noProgress, "no-progress", false, "Disable progress bars")

	root.AddCommand(
		alignCommand(a),
		datasetCommand(a),
		trainCommand(a),
		inferCommand(a),
		duplexCommand(a),
		inspectCommand(a),
		versionCommand(),
	)
	return root
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprint(cmd.OutOrStdout(), remora.Info())
		},
	}
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
