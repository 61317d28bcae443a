package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/slatrack/backend/internal/models"
	"github.com/slatrack/backend/internal/scoring"
)

var base = time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)

func hours(h float64) *time.Time {
	t := base.Add(time.Duration(h * float64(time.Hour)))
	return &t
}

func f64(v float64) *float64 { return &v }

func completedRequest(id int64, rt models.ResourceType, target, done float64) models.ServiceRequest {
	return models.ServiceRequest{
		ID:                 id,
		Reference:          "SR-TEST",
		ResourceType:       rt,
		Priority:           models.PriorityHigh,
		Status:             models.StatusCompleted,
		CreatedAt:          base,
		CompletedAt:        hours(done),
		SLACompletionHours: f64(target),
	}
}

func newEngine(repo Repository) *Engine {
	return &Engine{
		Repo:   repo,
		Policy: scoring.DefaultPolicy(),
		Logger: zerolog.Nop(),
		Now:    func() time.Time { return base.Add(72 * time.Hour) },
	}
}

func week() models.Window {
	return models.Window{Start: base.Add(-time.Hour), End: base.Add(7 * 24 * time.Hour)}
}

func TestGetKpisSkipsBrokenRecords(t *testing.T) {
	repo := NewMemoryRepository()
	repo.Add(completedRequest(1, models.ResourceFleet, 24, 10), models.FleetDetail{RequestID: 1, TripCompleted: true}, nil)
	repo.Add(completedRequest(2, models.ResourceFleet, 24, 30), models.FleetDetail{RequestID: 2}, nil)
	broken := completedRequest(3, models.ResourceGeneral, 24, 10)
	broken.CompletedAt = nil
	repo.Add(broken, nil, nil)

	k, err := newEngine(repo).GetKpis(context.Background(), week(), nil)
	if err != nil {
		t.Fatalf("GetKpis: %v", err)
	}
	if k.SkippedRecords != 1 {
		t.Fatalf("expected 1 skipped record, got %d", k.SkippedRecords)
	}
	if k.General.TotalRequests != 2 {
		t.Fatalf("expected 2 requests, got %d", k.General.TotalRequests)
	}
	if k.General.SLAComplianceRate != 50 {
		t.Fatalf("expected compliance 50, got %v", k.General.SLAComplianceRate)
	}
	if k.Fleet.TripCompletionRate != 50 {
		t.Fatalf("expected trip completion 50, got %v", k.Fleet.TripCompletionRate)
	}
}

func TestGetKpisKeepsRequestWithInvalidRating(t *testing.T) {
	repo := NewMemoryRepository()
	repo.Add(completedRequest(1, models.ResourceGeneral, 24, 10), nil, &models.SatisfactionRating{RequestID: 1, OverallScore: 0})
	repo.Add(completedRequest(2, models.ResourceGeneral, 24, 10), nil, &models.SatisfactionRating{RequestID: 2, OverallScore: 4})

	k, err := newEngine(repo).GetKpis(context.Background(), week(), nil)
	if err != nil {
		t.Fatalf("GetKpis: %v", err)
	}
	if k.SkippedRecords != 0 {
		t.Fatalf("expected no skipped records, got %d", k.SkippedRecords)
	}
	if k.General.EligibleRequests != 2 || k.General.SLAComplianceRate != 100 {
		t.Fatalf("expected both requests compliant, got %+v", k.General)
	}
	if k.General.RatedRequests != 1 || k.General.CustomerSatisfactionScore != 4 {
		t.Fatalf("expected only the valid rating counted, got %+v", k.General)
	}
}

func TestGetKpisRejectsInvertedWindowWithoutFetching(t *testing.T) {
	repo := NewMemoryRepository()
	w := week()
	w.Start, w.End = w.End, w.Start

	_, err := newEngine(repo).GetKpis(context.Background(), w, nil)
	var iw *scoring.InvalidWindowError
	if !errors.As(err, &iw) {
		t.Fatalf("expected InvalidWindowError, got %v", err)
	}
	if repo.Calls != 0 {
		t.Fatalf("expected no repository calls, got %d", repo.Calls)
	}
}

func TestGetKpisWindowTooLarge(t *testing.T) {
	repo := NewMemoryRepository()
	for i := int64(1); i <= 4; i++ {
		repo.Add(completedRequest(i, models.ResourceGeneral, 24, 2), nil, nil)
	}
	e := newEngine(repo)
	e.Policy.MaxRecords = 3

	_, err := e.GetKpis(context.Background(), week(), nil)
	var tl *scoring.WindowTooLargeError
	if !errors.As(err, &tl) {
		t.Fatalf("expected WindowTooLargeError, got %v", err)
	}
	if tl.Limit != 3 {
		t.Fatalf("expected limit 3, got %d", tl.Limit)
	}
	if ErrorKind(err) != "window_too_large" {
		t.Fatalf("unexpected kind %q", ErrorKind(err))
	}

	e.Policy.MaxRecords = 4
	if _, err := e.GetKpis(context.Background(), week(), nil); err != nil {
		t.Fatalf("expected window at the ceiling to pass, got %v", err)
	}
}

func TestGetKpisWrapsStorageErrors(t *testing.T) {
	repo := NewMemoryRepository()
	repo.Err = errors.New("connection refused")

	_, err := newEngine(repo).GetKpis(context.Background(), week(), nil)
	if !errors.Is(err, repo.Err) {
		t.Fatalf("expected wrapped storage error, got %v", err)
	}
	if ErrorKind(err) != "storage" {
		t.Fatalf("unexpected kind %q", ErrorKind(err))
	}
}

func TestGetScorecardAndIntegrationIndex(t *testing.T) {
	repo := NewMemoryRepository()
	for i := int64(1); i <= 4; i++ {
		repo.Add(completedRequest(i, models.ResourceGeneral, 24, 12), nil, &models.SatisfactionRating{RequestID: i, OverallScore: 4})
	}
	e := newEngine(repo)

	sc, err := e.GetScorecard(context.Background(), week(), nil)
	if err != nil {
		t.Fatalf("GetScorecard: %v", err)
	}
	if sc.TotalScore != 85 || sc.Rating != scoring.RatingVeryGood {
		t.Fatalf("unexpected scorecard %+v", sc)
	}

	ii, err := e.GetIntegrationIndex(context.Background(), week(), nil)
	if err != nil {
		t.Fatalf("GetIntegrationIndex: %v", err)
	}
	if ii.CoordinationEffectiveness != 0 || ii.ReportingTimeliness != 100 {
		t.Fatalf("unexpected integration result %+v", ii)
	}
}

func TestGetScorecardEmptyWindow(t *testing.T) {
	sc, err := newEngine(NewMemoryRepository()).GetScorecard(context.Background(), week(), nil)
	if err != nil {
		t.Fatalf("GetScorecard: %v", err)
	}
	if !sc.NoActivity || sc.TotalScore != 0 || sc.Rating != scoring.RatingUnsatisfactory {
		t.Fatalf("expected all-zero scorecard, got %+v", sc)
	}
}

func TestGetSLAStatusListsBreachedRequests(t *testing.T) {
	repo := NewMemoryRepository()
	open := models.ServiceRequest{
		ID: 10, Reference: "SR-10", ResourceType: models.ResourceICT, Priority: models.PriorityHigh,
		Status: models.StatusInProgress, CreatedAt: base, SLACompletionHours: f64(8),
	}
	repo.Add(open, nil, nil)
	repo.Add(completedRequest(11, models.ResourceGeneral, 24, 2), nil, nil)

	st, err := newEngine(repo).GetSLAStatus(context.Background(), week(), nil)
	if err != nil {
		t.Fatalf("GetSLAStatus: %v", err)
	}
	if len(st.Breached) != 1 || st.Breached[0].RequestID != 10 {
		t.Fatalf("expected request 10 breached, got %+v", st.Breached)
	}
	if st.Counts[scoring.SLAMet] != 1 || st.Counts[scoring.SLABreached] != 1 {
		t.Fatalf("unexpected counts %+v", st.Counts)
	}
}

func TestGetRequestFact(t *testing.T) {
	repo := NewMemoryRepository()
	repo.Add(completedRequest(5, models.ResourceICT, 24, 2), models.ICTDetail{RequestID: 5, Reopened: true}, nil)
	wrong := completedRequest(6, models.ResourceHR, 24, 2)
	repo.Add(wrong, models.FleetDetail{RequestID: 6}, nil)
	broken := completedRequest(7, models.ResourceGeneral, 24, 2)
	broken.CompletedAt = nil
	repo.Add(broken, nil, nil)
	e := newEngine(repo)

	f, err := e.GetRequestFact(context.Background(), 5)
	if err != nil {
		t.Fatalf("GetRequestFact: %v", err)
	}
	if !f.Reopened || !f.HasDomainFlag || f.DomainFlag {
		t.Fatalf("unexpected fact %+v", f)
	}

	f, err = e.GetRequestFact(context.Background(), 6)
	if err != nil {
		t.Fatalf("GetRequestFact with mismatched detail: %v", err)
	}
	if f.HR != nil || f.Fleet != nil || len(f.DroppedParts) != 1 || f.DroppedParts[0].Field != "resource_detail" {
		t.Fatalf("expected detail dropped, got %+v", f)
	}
	if f.SLAState != scoring.SLAMet {
		t.Fatalf("expected SLA state MET, got %s", f.SLAState)
	}

	_, err = e.GetRequestFact(context.Background(), 7)
	var ie *scoring.DataIntegrityError
	if !errors.As(err, &ie) {
		t.Fatalf("expected integrity error, got %v", err)
	}

	_, err = e.GetRequestFact(context.Background(), 404)
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestGetTrend(t *testing.T) {
	repo := NewMemoryRepository()
	repo.Add(completedRequest(1, models.ResourceGeneral, 24, 2), nil, nil)
	w := models.Window{Start: base, End: base.Add(3 * 24 * time.Hour)}

	rep, err := newEngine(repo).GetTrend(context.Background(), w, scoring.Daily, nil)
	if err != nil {
		t.Fatalf("GetTrend: %v", err)
	}
	if len(rep.Points) != 3 || rep.Points[0].Requests != 1 {
		t.Fatalf("unexpected trend %+v", rep.Points)
	}
}

func TestSnapshot(t *testing.T) {
	repo := NewMemoryRepository()
	r := completedRequest(1, models.ResourceGeneral, 24, 12)
	div := int64(7)
	r.Assignee.DivisionID = &div
	repo.Add(r, nil, nil)

	snap, err := newEngine(repo).Snapshot(context.Background(), week(), &models.Scope{DivisionID: &div})
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.ID == "" || snap.DivisionID == nil || *snap.DivisionID != 7 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	var breakdown map[string]json.RawMessage
	if err := json.Unmarshal(snap.Breakdown, &breakdown); err != nil {
		t.Fatalf("breakdown is not JSON: %v", err)
	}
	for _, key := range []string{"kpis", "cost_signals", "integration"} {
		if _, ok := breakdown[key]; !ok {
			t.Fatalf("breakdown missing %q", key)
		}
	}
}
