package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yeastgenome/yeastmine-bio-sources/pkg/loader"
)

func newMigrateCmd(a *app) *cobra.Command {
	var backendName string

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the item store SQL migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if backendName == "" {
				backendName = a.cfg.StoreBackend
			}
			if backendName != loader.BackendPostgres && backendName != loader.BackendSQLite {
				return fmt.Errorf("store backend %s has no migrations", backendName)
			}

			db, err := loader.OpenDatabase(cmd.Context(), a.cfg, backendName, a.logger)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := loader.Migrate(a.cfg, backendName, db, a.logger); err != nil {
				return err
			}
			a.logger.WithField("backend", backendName).Info("Migrations applied")
			return nil
		},
	}

	migrateCmd.Flags().StringVarP(&backendName, "backend", "b", "", "postgres or sqlite (defaults to STORE_BACKEND)")

	return migrateCmd
}
