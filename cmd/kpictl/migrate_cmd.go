package main

import (
	"context"

	"github.com/spf13/cobra"
)

func newMigrateCmd(open func(context.Context) (*env, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.store.Close()

			if err := e.store.Migrate(cmd.Context(), e.logger); err != nil {
				return err
			}
			versions, err := e.store.AppliedMigrations(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(map[string]any{"applied": versions})
		},
	}
}
