package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/slatrack/backend/internal/metrics"
	"github.com/slatrack/backend/internal/models"
)

type Snapshotter interface {
	Snapshot(ctx context.Context, w models.Window, scope *models.Scope) (models.ScorecardSnapshot, error)
}

type SnapshotStore interface {
	InsertScorecard(ctx context.Context, snap models.ScorecardSnapshot) error
	ListDivisionIDs(ctx context.Context) ([]int64, error)
}

// SnapshotService periodically persists the organisation-wide scorecard and one
// scorecard per division over a trailing window. It runs under a suture supervisor.
type SnapshotService struct {
	Engine   Snapshotter
	Store    SnapshotStore
	Interval time.Duration
	Window   time.Duration
	Logger   zerolog.Logger
	Now      func() time.Time
}

// Serve runs one pass immediately and then one per Interval until ctx is done.
func (s *SnapshotService) Serve(ctx context.Context) error {
	if s.Interval <= 0 {
		return fmt.Errorf("snapshot scheduler: interval must be positive, got %s", s.Interval)
	}
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
			s.Logger.Error().Err(err).Msg("scorecard snapshot pass failed")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *SnapshotService) String() string {
	return "snapshot-scheduler"
}

// RunOnce computes and stores every snapshot of one pass. A failing division
// does not stop the others; their errors are joined.
func (s *SnapshotService) RunOnce(ctx context.Context) ([]models.ScorecardSnapshot, error) {
	const op = "scheduler.RunOnce"
	now := time.Now().UTC()
	if s.Now != nil {
		now = s.Now()
	}
	w := models.Window{Start: now.Add(-s.Window), End: now}

	divisions, err := s.Store.ListDivisionIDs(ctx)
	if err != nil {
		err = fmt.Errorf("%s: list divisions: %w", op, err)
		metrics.RecordSnapshot(err, nil)
		return nil, err
	}

	scopes := []*models.Scope{nil}
	for _, id := range divisions {
		id := id
		scopes = append(scopes, &models.Scope{DivisionID: &id, Side: models.SideAssignee})
	}

	var (
		out    []models.ScorecardSnapshot
		errs   []error
		scores = map[string][2]float64{}
	)
	for _, scope := range scopes {
		label := scopeLabel(scope)
		snap, err := s.Engine.Snapshot(ctx, w, scope)
		if err == nil {
			err = s.Store.InsertScorecard(ctx, snap)
		}
		if err != nil {
			s.Logger.Warn().Err(err).Str("scope", label).Msg("scorecard snapshot skipped")
			errs = append(errs, fmt.Errorf("%s: %s: %w", op, label, err))
			continue
		}
		scores[label] = [2]float64{snap.TotalScore, snap.IntegrationIndex}
		out = append(out, snap)
	}

	err = errors.Join(errs...)
	metrics.RecordSnapshot(err, scores)
	s.Logger.Info().
		Int("stored", len(out)).
		Int("failed", len(errs)).
		Time("window_start", w.Start).
		Time("window_end", w.End).
		Msg("scorecard snapshot pass finished")
	return out, err
}

func scopeLabel(scope *models.Scope) string {
	if scope.Empty() {
		return "organisation"
	}
	return fmt.Sprintf("division:%d", *scope.DivisionID)
}
