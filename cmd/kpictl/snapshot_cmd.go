package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/slatrack/backend/internal/scheduler"
)

func newSnapshotCmd(open func(context.Context) (*env, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot",
		Short: "Store the organisation and per-division scorecards once",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.store.Close()

			svc := &scheduler.SnapshotService{
				Engine: e.engine,
				Store:  e.store,
				Window: e.cfg.SnapshotWindow,
				Logger: e.logger,
			}
			items, err := svc.RunOnce(cmd.Context())
			if len(items) > 0 {
				if werr := writeJSON(items); werr != nil {
					return werr
				}
			}
			return err
		},
	}
}
