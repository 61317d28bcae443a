package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/slatrack/backend/internal/metrics"
	"github.com/slatrack/backend/internal/models"
	"github.com/slatrack/backend/internal/scoring"
)

// Engine answers KPI, scorecard and integration queries by fetching the records of a
// window and running them through the scoring core. It holds no state between calls.
type Engine struct {
	Repo   Repository
	Policy scoring.Policy
	Logger zerolog.Logger
	// Now defaults to time.Now in UTC.
	Now func() time.Time
}

type evaluation struct {
	facts   []scoring.RequestFact
	skipped int
	now     time.Time
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now().UTC()
}

func (e *Engine) GetKpis(ctx context.Context, w models.Window, scope *models.Scope) (k scoring.KpiSet, err error) {
	defer track("kpis", time.Now(), &err)
	ev, err := e.evaluate(ctx, w, scope)
	if err != nil {
		return scoring.KpiSet{}, err
	}
	k, err = scoring.Aggregate(ev.facts, w, scope, e.Policy)
	if err != nil {
		return scoring.KpiSet{}, err
	}
	k.SkippedRecords = ev.skipped
	return k, nil
}

func (e *Engine) GetScorecard(ctx context.Context, w models.Window, scope *models.Scope) (sc scoring.ScorecardResult, err error) {
	defer track("scorecard", time.Now(), &err)
	ev, err := e.evaluate(ctx, w, scope)
	if err != nil {
		return scoring.ScorecardResult{}, err
	}
	k, err := scoring.Aggregate(ev.facts, w, scope, e.Policy)
	if err != nil {
		return scoring.ScorecardResult{}, err
	}
	k.SkippedRecords = ev.skipped
	return scoring.ComputeScorecard(k, e.Policy), nil
}

func (e *Engine) GetIntegrationIndex(ctx context.Context, w models.Window, scope *models.Scope) (res scoring.IntegrationIndexResult, err error) {
	defer track("integration", time.Now(), &err)
	ev, err := e.evaluate(ctx, w, scope)
	if err != nil {
		return scoring.IntegrationIndexResult{}, err
	}
	res, err = scoring.ComputeIntegrationIndex(ev.facts, w, scope, e.Policy)
	if err != nil {
		return scoring.IntegrationIndexResult{}, err
	}
	res.SkippedRecords = ev.skipped
	return res, nil
}

type TrendReport struct {
	Window         models.Window        `json:"window"`
	Granularity    scoring.Granularity  `json:"granularity"`
	Points         []scoring.TrendPoint `json:"points"`
	SkippedRecords int                  `json:"skipped_records"`
}

func (e *Engine) GetTrend(ctx context.Context, w models.Window, g scoring.Granularity, scope *models.Scope) (rep TrendReport, err error) {
	defer track("trend", time.Now(), &err)
	ev, err := e.evaluate(ctx, w, scope)
	if err != nil {
		return TrendReport{}, err
	}
	points, err := scoring.Trend(ev.facts, w, g, scope, e.Policy)
	if err != nil {
		return TrendReport{}, err
	}
	return TrendReport{Window: w, Granularity: g, Points: points, SkippedRecords: ev.skipped}, nil
}

type SLAStatus struct {
	Window         models.Window            `json:"window"`
	EvaluatedAt    time.Time                `json:"evaluated_at"`
	Counts         map[scoring.SLAState]int `json:"counts"`
	Breached       []OpenRequest            `json:"breached"`
	Warning        []OpenRequest            `json:"warning"`
	SkippedRecords int                      `json:"skipped_records"`
}

// OpenRequest is an open request that is close to or past its completion deadline.
type OpenRequest struct {
	RequestID    int64               `json:"request_id"`
	Reference    string              `json:"reference"`
	ResourceType models.ResourceType `json:"resource_type"`
	Priority     models.Priority     `json:"priority"`
	Status       models.Status       `json:"status"`
	Deadline     time.Time           `json:"deadline"`
	ElapsedHours float64             `json:"elapsed_hours"`
	TargetHours  float64             `json:"target_hours"`
}

func (e *Engine) GetSLAStatus(ctx context.Context, w models.Window, scope *models.Scope) (st SLAStatus, err error) {
	defer track("sla_status", time.Now(), &err)
	ev, err := e.evaluate(ctx, w, scope)
	if err != nil {
		return SLAStatus{}, err
	}
	k, err := scoring.Aggregate(ev.facts, w, scope, e.Policy)
	if err != nil {
		return SLAStatus{}, err
	}
	st = SLAStatus{
		Window:         w,
		EvaluatedAt:    ev.now,
		Counts:         k.SLAStates,
		Breached:       []OpenRequest{},
		Warning:        []OpenRequest{},
		SkippedRecords: ev.skipped,
	}
	for _, f := range ev.facts {
		if !w.Contains(f.CreatedAt) || !scope.Matches(scope.Pick(f.Requester, f.Assignee)) {
			continue
		}
		o := OpenRequest{
			RequestID:    f.RequestID,
			Reference:    f.Reference,
			ResourceType: f.ResourceType,
			Priority:     f.Priority,
			Status:       f.Status,
			Deadline:     f.Deadline,
			ElapsedHours: f.ElapsedHours,
			TargetHours:  f.TargetHours,
		}
		switch f.SLAState {
		case scoring.SLABreached:
			st.Breached = append(st.Breached, o)
		case scoring.SLAWarning:
			st.Warning = append(st.Warning, o)
		}
	}
	return st, nil
}

// GetRequestFact evaluates a single request. A record that fails validation is
// returned as its *scoring.DataIntegrityError.
func (e *Engine) GetRequestFact(ctx context.Context, id int64) (f scoring.RequestFact, err error) {
	defer track("request_fact", time.Now(), &err)
	const op = "service.GetRequestFact"

	req, err := e.Repo.FetchRequest(ctx, id)
	if err != nil {
		return scoring.RequestFact{}, fmt.Errorf("%s: %w", op, err)
	}
	rec := scoring.Record{Request: req}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d, err := e.Repo.FetchResourceDetail(gctx, id)
		rec.Detail = d
		return err
	})
	g.Go(func() error {
		r, err := e.Repo.FetchRating(gctx, id)
		rec.Rating = r
		return err
	})
	if err := g.Wait(); err != nil {
		return scoring.RequestFact{}, fmt.Errorf("%s: %w", op, err)
	}
	return scoring.Extract(rec, e.now(), e.Policy)
}

// Snapshot computes the scorecard and integration index of one window from a
// single fetch and packs them into a persistable snapshot.
func (e *Engine) Snapshot(ctx context.Context, w models.Window, scope *models.Scope) (snap models.ScorecardSnapshot, err error) {
	defer track("snapshot", time.Now(), &err)
	const op = "service.Snapshot"

	ev, err := e.evaluate(ctx, w, scope)
	if err != nil {
		return models.ScorecardSnapshot{}, err
	}
	k, err := scoring.Aggregate(ev.facts, w, scope, e.Policy)
	if err != nil {
		return models.ScorecardSnapshot{}, err
	}
	k.SkippedRecords = ev.skipped
	sc := scoring.ComputeScorecard(k, e.Policy)
	ii, err := scoring.ComputeIntegrationIndex(ev.facts, w, scope, e.Policy)
	if err != nil {
		return models.ScorecardSnapshot{}, err
	}

	breakdown, err := json.Marshal(map[string]any{
		"kpis":         k,
		"cost_signals": sc.CostSignals,
		"integration":  ii,
	})
	if err != nil {
		return models.ScorecardSnapshot{}, fmt.Errorf("%s: marshal breakdown: %w", op, err)
	}

	snap = models.ScorecardSnapshot{
		ID:                     uuid.NewString(),
		PeriodStart:            w.Start,
		PeriodEnd:              w.End,
		ServiceEfficiencyScore: sc.ServiceEfficiency,
		ComplianceScore:        sc.Compliance,
		CostOptimizationScore:  sc.CostOptimization,
		SatisfactionScore:      sc.Satisfaction,
		TotalScore:             sc.TotalScore,
		Rating:                 string(sc.Rating),
		IntegrationIndex:       ii.IntegrationIndex,
		SkippedRecords:         ev.skipped,
		Breakdown:              breakdown,
		CreatedAt:              ev.now,
	}
	if scope != nil {
		snap.DivisionID = scope.DivisionID
		snap.DepartmentID = scope.DepartmentID
	}
	return snap, nil
}

// evaluate fetches every record of the window and extracts facts, skipping
// records that fail validation.
func (e *Engine) evaluate(ctx context.Context, w models.Window, scope *models.Scope) (evaluation, error) {
	const op = "service.evaluate"
	if err := scoring.ValidateWindow(w, e.Policy); err != nil {
		return evaluation{}, err
	}

	limit := 0
	if e.Policy.MaxRecords > 0 {
		limit = e.Policy.MaxRecords + 1
	}
	requests, err := e.Repo.FetchRequests(ctx, w, scope, limit)
	if err != nil {
		return evaluation{}, fmt.Errorf("%s: fetch requests: %w", op, err)
	}
	if e.Policy.MaxRecords > 0 && len(requests) > e.Policy.MaxRecords {
		return evaluation{}, &scoring.WindowTooLargeError{Count: len(requests), Limit: e.Policy.MaxRecords}
	}

	ids := make([]int64, len(requests))
	for i, r := range requests {
		ids[i] = r.ID
	}
	var (
		details map[int64]models.ResourceDetail
		ratings map[int64]models.SatisfactionRating
	)
	if len(ids) > 0 {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			details, err = e.Repo.FetchResourceDetails(gctx, ids)
			return err
		})
		g.Go(func() error {
			var err error
			ratings, err = e.Repo.FetchRatings(gctx, ids)
			return err
		})
		if err := g.Wait(); err != nil {
			return evaluation{}, fmt.Errorf("%s: fetch details: %w", op, err)
		}
	}

	records := make([]scoring.Record, len(requests))
	for i, r := range requests {
		records[i] = scoring.Record{Request: r, Detail: details[r.ID]}
		if rt, ok := ratings[r.ID]; ok {
			records[i].Rating = &rt
		}
	}

	now := e.now()
	facts, skipped := scoring.ExtractAll(records, now, e.Policy)
	fields := make([]string, 0, len(skipped))
	for _, err := range skipped {
		ev := e.Logger.Warn().Err(err)
		var ie *scoring.DataIntegrityError
		if errors.As(err, &ie) {
			ev = ev.Int64("request_id", ie.RequestID).Str("field", ie.Field)
			fields = append(fields, ie.Field)
		}
		ev.Msg("skipping request record")
	}
	var dropped []string
	for _, f := range facts {
		for _, part := range f.DroppedParts {
			e.Logger.Warn().
				Int64("request_id", part.RequestID).
				Str("field", part.Field).
				Str("reason", part.Reason).
				Msg("dropping invalid record part")
			dropped = append(dropped, part.Field)
		}
	}
	metrics.RecordExtraction(len(facts), fields, dropped)
	if len(skipped) > 0 || len(dropped) > 0 {
		e.Logger.Info().
			Int("evaluated", len(facts)).
			Int("skipped", len(skipped)).
			Int("dropped_parts", len(dropped)).
			Time("window_start", w.Start).
			Time("window_end", w.End).
			Msg("evaluation finished with skipped records or parts")
	}
	return evaluation{facts: facts, skipped: len(skipped), now: now}, nil
}

// ErrorKind classifies an engine error for metrics and HTTP mapping.
func ErrorKind(err error) string {
	var (
		iw *scoring.InvalidWindowError
		tl *scoring.WindowTooLargeError
		di *scoring.DataIntegrityError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &iw):
		return "invalid_window"
	case errors.As(err, &tl):
		return "window_too_large"
	case errors.As(err, &di):
		return "data_integrity"
	case errors.Is(err, models.ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "storage"
	}
}

func track(op string, start time.Time, err *error) {
	metrics.RecordEvaluation(op, time.Since(start), ErrorKind(*err), *err)
}
