package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/yeastgenome/yeastmine-bio-sources/pkg/loader"
	"github.com/yeastgenome/yeastmine-bio-sources/pkg/manifest"
	"github.com/yeastgenome/yeastmine-bio-sources/pkg/sources"
	"github.com/yeastgenome/yeastmine-bio-sources/pkg/status"
	"github.com/yeastgenome/yeastmine-bio-sources/pkg/tracing"
)

const shutdownTimeout = 5 * time.Second

func newLoadCmd(a *app) *cobra.Command {
	var (
		manifestPath string
		opts         loader.Options
	)

	loadCmd := &cobra.Command{
		Use:   "load",
		Short: "Run the jobs of a load manifest",
		Long:  "Runs every job of the manifest in order, stopping at the first fatal error. Exits non-zero when a job fails.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if manifestPath == "" {
				manifestPath = a.cfg.ManifestPath
			}
			return a.load(cmd, manifestPath, opts)
		},
	}

	loadCmd.Flags().StringVarP(&manifestPath, "manifest", "m", "", "Path to the load manifest (defaults to MANIFEST_PATH)")
	loadCmd.Flags().BoolVarP(&opts.DryRun, "dry-run", "n", false, "Write into an in-memory store and skip the run lock")
	loadCmd.Flags().StringSliceVarP(&opts.Only, "only", "o", nil, "Run only the named jobs")

	return loadCmd
}

func (a *app) load(cmd *cobra.Command, manifestPath string, opts loader.Options) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, a.cfg.AppName, tracing.Config{
		Enabled:  a.cfg.TracingEnabled,
		Endpoint: a.cfg.TracingEndpoint,
		Protocol: a.cfg.TracingProtocol,
		Insecure: a.cfg.TracingInsecure,
		Timeout:  a.cfg.TracingTimeout,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.WithoutCancel(ctx)); err != nil {
			a.logger.WithError(err).Warn("Failed to flush traces")
		}
	}()

	m, err := manifest.Load(manifestPath)
	if err != nil {
		return err
	}

	catalog, err := sources.Default()
	if err != nil {
		return err
	}

	l := loader.New(a.cfg, catalog, a.logger)

	if a.cfg.StatusServerEnabled {
		srv := status.NewServer(a.cfg.AppName, l, a.logger)
		srv.Start(a.cfg.StatusServerAddr)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				a.logger.WithError(err).Warn("Failed to stop status server")
			}
		}()
	}

	result, err := l.Run(ctx, m, opts)
	writeReport(cmd.OutOrStdout(), result)
	if err != nil {
		a.logger.WithError(err).WithField("manifest", m.Name).Error("Load failed")
	}
	return err
}
