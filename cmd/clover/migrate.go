package main

import (
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	var version uint

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long: `Apply the migrations in DB_MIGRATION_FOLDER_PATH.

Examples:
  clover migrate
  clover migrate --version 1`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.connectDatabase(cmd.Context()); err != nil {
				return err
			}
			return a.migrate(version)
		},
	}

	cmd.Flags().UintVar(&version, "version", 0, "target schema version (0 = latest)")
	return cmd
}
