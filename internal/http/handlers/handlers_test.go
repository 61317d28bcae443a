package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/slatrack/backend/internal/db"
	"github.com/slatrack/backend/internal/models"
	"github.com/slatrack/backend/internal/scoring"
	"github.com/slatrack/backend/internal/service"
)

var now = time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)

func init() {
	gin.SetMode(gin.TestMode)
}

func request(id int64, div int64, target, done float64) models.ServiceRequest {
	created := now.Add(-72 * time.Hour)
	completed := created.Add(time.Duration(done * float64(time.Hour)))
	return models.ServiceRequest{
		ID:                 id,
		Reference:          fmt.Sprintf("SR-%d", id),
		ResourceType:       models.ResourceGeneral,
		Priority:           models.PriorityMedium,
		Status:             models.StatusCompleted,
		CreatedAt:          created,
		CompletedAt:        &completed,
		SLACompletionHours: &target,
		Assignee:           models.OrgChain{DivisionID: &div},
	}
}

type fakeHistory struct {
	filter db.ScorecardFilter
	err    error
}

func (f *fakeHistory) ListScorecards(_ context.Context, filter db.ScorecardFilter) ([]models.ScorecardSnapshot, error) {
	f.filter = filter
	return nil, f.err
}

type fakeRunner struct {
	items []models.ScorecardSnapshot
	err   error
}

func (f fakeRunner) RunOnce(context.Context) ([]models.ScorecardSnapshot, error) {
	return f.items, f.err
}

func newTestRouter(repo service.Repository) (*gin.Engine, *Handler) {
	policy := scoring.DefaultPolicy()
	policy.MaxRecords = 3
	h := &Handler{
		Engine: &service.Engine{
			Repo:   repo,
			Policy: policy,
			Logger: zerolog.Nop(),
			Now:    func() time.Time { return now },
		},
		History:   &fakeHistory{},
		Validator: validator.New(),
		Logger:    zerolog.Nop(),
		Now:       func() time.Time { return now },
	}
	r := gin.New()
	r.GET("/api/kpis", h.Kpis)
	r.GET("/api/scorecard", h.Scorecard)
	r.GET("/api/integration-index", h.IntegrationIndex)
	r.GET("/api/trends", h.Trends)
	r.GET("/api/sla/status", h.SLAStatus)
	r.GET("/api/requests/:id/facts", h.RequestFacts)
	r.GET("/api/scorecards/history", h.ScorecardHistory)
	r.POST("/api/scorecards/snapshot", h.RunSnapshot)
	return r, h
}

func get(t *testing.T, r *gin.Engine, target string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode %s: %v (%s)", target, err, w.Body.String())
	}
	return w, body
}

func errorCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func TestKpisDefaultWindow(t *testing.T) {
	repo := service.NewMemoryRepository()
	repo.Add(request(1, 1, 24, 12), nil, nil)
	repo.Add(request(2, 1, 24, 36), nil, nil)
	r, _ := newTestRouter(repo)

	w, body := get(t, r, "/api/kpis")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	general := body["general"].(map[string]any)
	if general["total_requests"].(float64) != 2 {
		t.Fatalf("expected 2 requests, got %v", general["total_requests"])
	}
	if general["sla_compliance_rate"].(float64) != 50 {
		t.Fatalf("expected compliance 50, got %v", general["sla_compliance_rate"])
	}
}

func TestKpisScopeFilter(t *testing.T) {
	repo := service.NewMemoryRepository()
	repo.Add(request(1, 1, 24, 12), nil, nil)
	repo.Add(request(2, 2, 24, 12), nil, nil)
	r, _ := newTestRouter(repo)

	_, body := get(t, r, "/api/kpis?window=week&division_id=2")
	general := body["general"].(map[string]any)
	if general["total_requests"].(float64) != 1 {
		t.Fatalf("expected 1 scoped request, got %v", general["total_requests"])
	}
}

func TestWindowValidation(t *testing.T) {
	r, _ := newTestRouter(service.NewMemoryRepository())
	cases := []struct {
		target string
		status int
		code   string
	}{
		{"/api/kpis?window=decade", http.StatusBadRequest, "VALIDATION_ERROR"},
		{"/api/kpis?start=2024-06-01T00:00:00Z", http.StatusBadRequest, "VALIDATION_ERROR"},
		{"/api/kpis?start=yesterday&end=today", http.StatusBadRequest, "INVALID_WINDOW"},
		{"/api/kpis?start=2024-06-05T00:00:00Z&end=2024-06-01T00:00:00Z", http.StatusBadRequest, "INVALID_WINDOW"},
		{"/api/scorecard?start=2020-01-01T00:00:00Z&end=2024-01-01T00:00:00Z", http.StatusBadRequest, "INVALID_WINDOW"},
		{"/api/kpis?division_id=0", http.StatusBadRequest, "VALIDATION_ERROR"},
		{"/api/kpis?side=both&division_id=1", http.StatusBadRequest, "VALIDATION_ERROR"},
		{"/api/trends?granularity=hourly", http.StatusBadRequest, "VALIDATION_ERROR"},
	}
	for _, tc := range cases {
		w, body := get(t, r, tc.target)
		if w.Code != tc.status || errorCode(body) != tc.code {
			t.Fatalf("%s: expected %d %s, got %d %s", tc.target, tc.status, tc.code, w.Code, errorCode(body))
		}
	}
}

func TestWindowTooLarge(t *testing.T) {
	repo := service.NewMemoryRepository()
	for i := int64(1); i <= 4; i++ {
		repo.Add(request(i, 1, 24, 2), nil, nil)
	}
	r, _ := newTestRouter(repo)

	w, body := get(t, r, "/api/scorecard?window=week")
	if w.Code != http.StatusUnprocessableEntity || errorCode(body) != "WINDOW_TOO_LARGE" {
		t.Fatalf("expected 422 WINDOW_TOO_LARGE, got %d %s", w.Code, errorCode(body))
	}
}

func TestStorageErrors(t *testing.T) {
	repo := service.NewMemoryRepository()
	repo.Err = errors.New("connection refused")
	r, _ := newTestRouter(repo)
	w, body := get(t, r, "/api/integration-index")
	if w.Code != http.StatusInternalServerError || errorCode(body) != "DB_ERROR" {
		t.Fatalf("expected 500 DB_ERROR, got %d %s", w.Code, errorCode(body))
	}

	repo.Err = service.ErrUnavailable
	w, body = get(t, r, "/api/integration-index")
	if w.Code != http.StatusServiceUnavailable || errorCode(body) != "DB_UNAVAILABLE" {
		t.Fatalf("expected 503 DB_UNAVAILABLE, got %d %s", w.Code, errorCode(body))
	}
}

func TestScorecardAndIntegration(t *testing.T) {
	repo := service.NewMemoryRepository()
	for i := int64(1); i <= 2; i++ {
		repo.Add(request(i, 1, 24, 12), nil, &models.SatisfactionRating{RequestID: i, OverallScore: 4})
	}
	r, _ := newTestRouter(repo)

	w, body := get(t, r, "/api/scorecard?window=week")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if body["rating"] != string(scoring.RatingVeryGood) || body["total_score"].(float64) != 85 {
		t.Fatalf("unexpected scorecard %v", body)
	}

	w, body = get(t, r, "/api/integration-index?window=week")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if _, ok := body["integration_index"]; !ok {
		t.Fatalf("missing integration_index in %v", body)
	}
}

func TestTrendsAndSLAStatus(t *testing.T) {
	repo := service.NewMemoryRepository()
	repo.Add(request(1, 1, 24, 12), nil, nil)
	target := 8.0
	repo.Add(models.ServiceRequest{
		ID:                 2,
		Reference:          "SR-OPEN",
		ResourceType:       models.ResourceICT,
		Priority:           models.PriorityHigh,
		Status:             models.StatusInProgress,
		CreatedAt:          now.Add(-24 * time.Hour),
		SLACompletionHours: &target,
	}, nil, nil)
	r, _ := newTestRouter(repo)

	w, body := get(t, r, "/api/trends?window=week&granularity=daily")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if points := body["points"].([]any); len(points) != 7 {
		t.Fatalf("expected 7 daily points, got %d", len(points))
	}

	w, body = get(t, r, "/api/sla/status?window=week")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	breached := body["breached"].([]any)
	if len(breached) != 1 || breached[0].(map[string]any)["reference"] != "SR-OPEN" {
		t.Fatalf("unexpected breached list %v", breached)
	}
}

func TestRequestFacts(t *testing.T) {
	repo := service.NewMemoryRepository()
	repo.Add(request(1, 1, 24, 12), nil, nil)
	broken := request(2, 1, 24, 12)
	broken.CompletedAt = nil
	repo.Add(broken, nil, nil)
	r, _ := newTestRouter(repo)

	if w, body := get(t, r, "/api/requests/1/facts"); w.Code != http.StatusOK || body["request_id"].(float64) != 1 {
		t.Fatalf("expected fact of request 1, got %d %v", w.Code, body)
	}
	if w, body := get(t, r, "/api/requests/2/facts"); w.Code != http.StatusUnprocessableEntity || errorCode(body) != "DATA_INTEGRITY" {
		t.Fatalf("expected 422 DATA_INTEGRITY, got %d %s", w.Code, errorCode(body))
	}
	if w, body := get(t, r, "/api/requests/99/facts"); w.Code != http.StatusNotFound || errorCode(body) != "NOT_FOUND" {
		t.Fatalf("expected 404, got %d %s", w.Code, errorCode(body))
	}
	if w, _ := get(t, r, "/api/requests/abc/facts"); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestScorecardHistory(t *testing.T) {
	r, h := newTestRouter(service.NewMemoryRepository())

	w, body := get(t, r, "/api/scorecards/history?division_id=3&limit=10")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if items := body["items"].([]any); len(items) != 0 {
		t.Fatalf("expected empty list, got %v", items)
	}
	f := h.History.(*fakeHistory).filter
	if f.DivisionID == nil || *f.DivisionID != 3 || f.Limit != 10 {
		t.Fatalf("unexpected filter %+v", f)
	}

	if w, _ := get(t, r, "/api/scorecards/history?limit=1000"); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for oversized limit, got %d", w.Code)
	}
}

func TestRunSnapshot(t *testing.T) {
	r, h := newTestRouter(service.NewMemoryRepository())

	post := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/scorecards/snapshot", nil))
		return w
	}

	if w := post(); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without scheduler, got %d", w.Code)
	}

	h.Snapshots = fakeRunner{err: errors.New("db down")}
	if w := post(); w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}

	h.Snapshots = fakeRunner{items: []models.ScorecardSnapshot{{ID: "a"}}, err: errors.New("division:2 failed")}
	w := post()
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"stored":1`) {
		t.Fatalf("expected partial success, got %d %s", w.Code, w.Body.String())
	}
}
