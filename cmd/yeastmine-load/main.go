package main

import (
	"fmt"
	"io"
	"os"

	"github.com/Gobusters/ectologger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yeastgenome/yeastmine-bio-sources/config"
	"github.com/yeastgenome/yeastmine-bio-sources/pkg/logging"
)

// app carries what every subcommand needs once the root pre-run has loaded
// the configuration.
type app struct {
	cfg    *config.Config
	logger ectologger.Logger
	zap    *zap.Logger
}

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

// run executes the command line and returns the process exit code. Cobra's
// own error printing is silenced, so errors are written to stderr here.
func run(args []string, stderr io.Writer) int {
	rootCmd := newRootCmd()
	rootCmd.SetArgs(args)
	rootCmd.SetErr(stderr)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "yeastmine-load",
		Short:         "Load biological data files into the YeastMine item store",
		Long:          "Runs the bio-source pipelines named in a load manifest and writes their items to the configured store backend.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return a.init()
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if a.zap != nil {
				_ = a.zap.Sync()
			}
		},
	}

	rootCmd.AddCommand(
		newLoadCmd(a),
		newSourcesCmd(),
		newMigrateCmd(a),
	)

	return rootCmd
}

func (a *app) init() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, zl, err := logging.New(cfg.LogLevel, cfg.PrettyLogs)
	if err != nil {
		return err
	}

	a.cfg, a.logger, a.zap = cfg, logger, zl
	return nil
}
