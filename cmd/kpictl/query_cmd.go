package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/slatrack/backend/internal/models"
	"github.com/slatrack/backend/internal/scoring"
)

type windowFlags struct {
	window     string
	start      string
	end        string
	division   int64
	department int64
	side       string
}

func (f *windowFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.window, "window", "month", "Named window: day|week|month|quarter|year")
	cmd.Flags().StringVar(&f.start, "start", "", "Window start, RFC3339 (overrides --window)")
	cmd.Flags().StringVar(&f.end, "end", "", "Window end, RFC3339 (exclusive)")
	cmd.Flags().Int64Var(&f.division, "division", 0, "Restrict to a division")
	cmd.Flags().Int64Var(&f.department, "department", 0, "Restrict to a department")
	cmd.Flags().StringVar(&f.side, "side", string(models.SideAssignee), "Match scope on assignee|requester")
}

func (f *windowFlags) resolve(now time.Time) (models.Window, *models.Scope, error) {
	var w models.Window
	switch {
	case f.start != "" && f.end != "":
		start, err := time.Parse(time.RFC3339, f.start)
		if err != nil {
			return models.Window{}, nil, fmt.Errorf("invalid --start: %w", err)
		}
		end, err := time.Parse(time.RFC3339, f.end)
		if err != nil {
			return models.Window{}, nil, fmt.Errorf("invalid --end: %w", err)
		}
		w = models.Window{Start: start.UTC(), End: end.UTC()}
	case f.start != "" || f.end != "":
		return models.Window{}, nil, fmt.Errorf("--start and --end must be given together")
	default:
		var err error
		if w, err = scoring.ResolveWindow(f.window, now); err != nil {
			return models.Window{}, nil, err
		}
	}

	side := models.ScopeSide(f.side)
	if side != models.SideAssignee && side != models.SideRequester {
		return models.Window{}, nil, fmt.Errorf("invalid --side %q", f.side)
	}
	if f.division <= 0 && f.department <= 0 {
		return w, nil, nil
	}
	scope := &models.Scope{Side: side}
	if f.division > 0 {
		scope.DivisionID = &f.division
	}
	if f.department > 0 {
		scope.DepartmentID = &f.department
	}
	return w, scope, nil
}

func newQueryCmds(open func(context.Context) (*env, error)) []*cobra.Command {
	query := func(use, short string, run func(ctx context.Context, e *env, w models.Window, scope *models.Scope) (any, error)) *cobra.Command {
		var flags windowFlags
		cmd := &cobra.Command{
			Use:   use,
			Short: short,
			RunE: func(cmd *cobra.Command, args []string) error {
				w, scope, err := flags.resolve(time.Now().UTC())
				if err != nil {
					return err
				}
				e, err := open(cmd.Context())
				if err != nil {
					return err
				}
				defer e.store.Close()

				out, err := run(cmd.Context(), e, w, scope)
				if err != nil {
					return err
				}
				return writeJSON(out)
			},
		}
		flags.register(cmd)
		return cmd
	}

	var granularity string
	trend := query("trend", "Per-bucket SLA compliance, fulfillment and satisfaction", func(ctx context.Context, e *env, w models.Window, scope *models.Scope) (any, error) {
		g, err := scoring.ParseGranularity(granularity)
		if err != nil {
			return nil, err
		}
		return e.engine.GetTrend(ctx, w, g, scope)
	})
	trend.Flags().StringVar(&granularity, "granularity", string(scoring.Daily), "daily|weekly|monthly")

	return []*cobra.Command{
		query("kpis", "Compute the KPI set of a window", func(ctx context.Context, e *env, w models.Window, scope *models.Scope) (any, error) {
			return e.engine.GetKpis(ctx, w, scope)
		}),
		query("scorecard", "Compute the weighted scorecard of a window", func(ctx context.Context, e *env, w models.Window, scope *models.Scope) (any, error) {
			return e.engine.GetScorecard(ctx, w, scope)
		}),
		query("integration", "Compute the integration index of a window", func(ctx context.Context, e *env, w models.Window, scope *models.Scope) (any, error) {
			return e.engine.GetIntegrationIndex(ctx, w, scope)
		}),
		query("sla", "List open requests in WARNING or BREACHED", func(ctx context.Context, e *env, w models.Window, scope *models.Scope) (any, error) {
			return e.engine.GetSLAStatus(ctx, w, scope)
		}),
		trend,
	}
}
