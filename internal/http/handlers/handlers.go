package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/slatrack/backend/internal/db"
	"github.com/slatrack/backend/internal/http/middleware"
	"github.com/slatrack/backend/internal/models"
	"github.com/slatrack/backend/internal/scoring"
	"github.com/slatrack/backend/internal/service"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type ScorecardHistory interface {
	ListScorecards(ctx context.Context, f db.ScorecardFilter) ([]models.ScorecardSnapshot, error)
}

type SnapshotRunner interface {
	RunOnce(ctx context.Context) ([]models.ScorecardSnapshot, error)
}

type Handler struct {
	Engine    *service.Engine
	DB        Pinger
	History   ScorecardHistory
	Snapshots SnapshotRunner
	Validator *validator.Validate
	Logger    zerolog.Logger
	// RequestTimeout bounds every engine call; 0 leaves the request context alone.
	RequestTimeout time.Duration
	Now            func() time.Time
}

// WindowQuery selects the window and organisational scope of a query. An explicit
// start/end pair wins over the named window.
type WindowQuery struct {
	Window       string `form:"window" validate:"omitempty,oneof=day week month quarter year"`
	Start        string `form:"start" validate:"required_with=End"`
	End          string `form:"end" validate:"required_with=Start"`
	DivisionID   *int64 `form:"division_id" validate:"omitempty,gt=0"`
	DepartmentID *int64 `form:"department_id" validate:"omitempty,gt=0"`
	Side         string `form:"side" validate:"omitempty,oneof=assignee requester"`
}

type TrendQuery struct {
	WindowQuery
	Granularity string `form:"granularity" validate:"omitempty,oneof=daily weekly monthly"`
}

type HistoryQuery struct {
	DivisionID   *int64 `form:"division_id" validate:"omitempty,gt=0"`
	DepartmentID *int64 `form:"department_id" validate:"omitempty,gt=0"`
	Limit        int    `form:"limit" validate:"omitempty,min=1,max=500"`
}

func (h *Handler) Healthz(c *gin.Context) {
	if h.DB == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()
	if err := h.DB.Ping(ctx); err != nil {
		writeError(c, http.StatusServiceUnavailable, "DB_UNAVAILABLE", "Database unavailable", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// @Summary KPI set
// @Description General, cost and per-domain KPIs of a window
// @Tags kpis
// @Produce json
// @Param window query string false "day|week|month|quarter|year"
// @Param start query string false "RFC3339 start (inclusive)"
// @Param end query string false "RFC3339 end (exclusive)"
// @Param division_id query int false "Division"
// @Param department_id query int false "Department"
// @Param side query string false "assignee|requester"
// @Success 200 {object} scoring.KpiSet
// @Failure 400 {object} map[string]any
// @Failure 422 {object} map[string]any
// @Router /api/kpis [get]
func (h *Handler) Kpis(c *gin.Context) {
	var q WindowQuery
	w, scope, ok := h.bindWindow(c, &q)
	if !ok {
		return
	}
	ctx, cancel := h.context(c)
	defer cancel()
	k, err := h.Engine.GetKpis(ctx, w, scope)
	if err != nil {
		h.writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, k)
}

// @Summary Scorecard
// @Description Weighted four-dimension scorecard with rating
// @Tags scorecard
// @Produce json
// @Param window query string false "day|week|month|quarter|year"
// @Param start query string false "RFC3339 start (inclusive)"
// @Param end query string false "RFC3339 end (exclusive)"
// @Param division_id query int false "Division"
// @Param department_id query int false "Department"
// @Param side query string false "assignee|requester"
// @Success 200 {object} scoring.ScorecardResult
// @Failure 400 {object} map[string]any
// @Router /api/scorecard [get]
func (h *Handler) Scorecard(c *gin.Context) {
	var q WindowQuery
	w, scope, ok := h.bindWindow(c, &q)
	if !ok {
		return
	}
	ctx, cancel := h.context(c)
	defer cancel()
	sc, err := h.Engine.GetScorecard(ctx, w, scope)
	if err != nil {
		h.writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, sc)
}

// @Summary Integration index
// @Description Cross-department coordination, alignment, reporting and collaboration
// @Tags integration
// @Produce json
// @Param window query string false "day|week|month|quarter|year"
// @Param start query string false "RFC3339 start (inclusive)"
// @Param end query string false "RFC3339 end (exclusive)"
// @Param division_id query int false "Division"
// @Param department_id query int false "Department"
// @Success 200 {object} scoring.IntegrationIndexResult
// @Failure 400 {object} map[string]any
// @Router /api/integration-index [get]
func (h *Handler) IntegrationIndex(c *gin.Context) {
	var q WindowQuery
	w, scope, ok := h.bindWindow(c, &q)
	if !ok {
		return
	}
	ctx, cancel := h.context(c)
	defer cancel()
	res, err := h.Engine.GetIntegrationIndex(ctx, w, scope)
	if err != nil {
		h.writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// @Summary Trends
// @Tags trends
// @Produce json
// @Param window query string false "day|week|month|quarter|year"
// @Param granularity query string false "daily|weekly|monthly"
// @Success 200 {object} service.TrendReport
// @Failure 400 {object} map[string]any
// @Router /api/trends [get]
func (h *Handler) Trends(c *gin.Context) {
	var q TrendQuery
	w, scope, ok := h.bindWindow(c, &q)
	if !ok {
		return
	}
	g, err := scoring.ParseGranularity(q.Granularity)
	if err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}
	ctx, cancel := h.context(c)
	defer cancel()
	rep, err := h.Engine.GetTrend(ctx, w, g, scope)
	if err != nil {
		h.writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

// @Summary SLA status
// @Description SLA state counts and open requests in WARNING or BREACHED
// @Tags sla
// @Produce json
// @Param window query string false "day|week|month|quarter|year"
// @Success 200 {object} service.SLAStatus
// @Router /api/sla/status [get]
func (h *Handler) SLAStatus(c *gin.Context) {
	var q WindowQuery
	w, scope, ok := h.bindWindow(c, &q)
	if !ok {
		return
	}
	ctx, cancel := h.context(c)
	defer cancel()
	st, err := h.Engine.GetSLAStatus(ctx, w, scope)
	if err != nil {
		h.writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// @Summary Request facts
// @Description Extracted metrics of one request, or the integrity error that excludes it
// @Tags requests
// @Produce json
// @Param id path int true "Request ID"
// @Success 200 {object} scoring.RequestFact
// @Failure 404 {object} map[string]any
// @Failure 422 {object} map[string]any
// @Router /api/requests/{id}/facts [get]
func (h *Handler) RequestFacts(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Request id must be a positive integer", nil)
		return
	}
	ctx, cancel := h.context(c)
	defer cancel()
	f, err := h.Engine.GetRequestFact(ctx, id)
	if err != nil {
		h.writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, f)
}

// @Summary Scorecard history
// @Tags scorecard
// @Produce json
// @Param division_id query int false "Division"
// @Param department_id query int false "Department"
// @Param limit query int false "Max rows (1-500)"
// @Success 200 {object} map[string]any
// @Router /api/scorecards/history [get]
func (h *Handler) ScorecardHistory(c *gin.Context) {
	var q HistoryQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid query", err.Error())
		return
	}
	if err := h.Validator.Struct(q); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}
	if h.History == nil {
		writeError(c, http.StatusServiceUnavailable, "DB_UNAVAILABLE", "Scorecard history is not configured", nil)
		return
	}
	ctx, cancel := h.context(c)
	defer cancel()
	items, err := h.History.ListScorecards(ctx, db.ScorecardFilter{DivisionID: q.DivisionID, DepartmentID: q.DepartmentID, Limit: q.Limit})
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list scorecards", err.Error())
		return
	}
	if items == nil {
		items = []models.ScorecardSnapshot{}
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// @Summary Run scorecard snapshot
// @Description Computes and stores the organisation and per-division scorecards now
// @Tags scorecard
// @Produce json
// @Success 200 {object} map[string]any
// @Router /api/scorecards/snapshot [post]
func (h *Handler) RunSnapshot(c *gin.Context) {
	if h.Snapshots == nil {
		writeError(c, http.StatusServiceUnavailable, "SNAPSHOT_DISABLED", "Snapshot scheduler is not configured", nil)
		return
	}
	items, err := h.Snapshots.RunOnce(c.Request.Context())
	if err != nil && len(items) == 0 {
		writeError(c, http.StatusInternalServerError, "SNAPSHOT_FAILED", "Snapshot run failed", err.Error())
		return
	}
	resp := gin.H{"stored": len(items), "items": items}
	if err != nil {
		h.Logger.Warn().Err(err).Str("request_id", middleware.GetRequestID(c)).Msg("snapshot run partially failed")
		resp["error"] = err.Error()
	}
	c.JSON(http.StatusOK, resp)
}

// bindWindow binds and validates q from the query string and resolves it to a
// window and scope. It writes the error response itself and reports false.
func (h *Handler) bindWindow(c *gin.Context, q any) (models.Window, *models.Scope, bool) {
	if err := c.ShouldBindQuery(q); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid query", err.Error())
		return models.Window{}, nil, false
	}
	if err := h.Validator.Struct(q); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return models.Window{}, nil, false
	}

	var wq WindowQuery
	switch v := q.(type) {
	case *WindowQuery:
		wq = *v
	case *TrendQuery:
		wq = v.WindowQuery
	}

	var w models.Window
	if wq.Start != "" {
		start, err := time.Parse(time.RFC3339, wq.Start)
		if err != nil {
			writeError(c, http.StatusBadRequest, "INVALID_WINDOW", "start must be RFC3339", err.Error())
			return models.Window{}, nil, false
		}
		end, err := time.Parse(time.RFC3339, wq.End)
		if err != nil {
			writeError(c, http.StatusBadRequest, "INVALID_WINDOW", "end must be RFC3339", err.Error())
			return models.Window{}, nil, false
		}
		w = models.Window{Start: start.UTC(), End: end.UTC()}
	} else {
		var err error
		w, err = scoring.ResolveWindow(wq.Window, h.now())
		if err != nil {
			writeError(c, http.StatusBadRequest, "INVALID_WINDOW", "Unknown window", err.Error())
			return models.Window{}, nil, false
		}
	}

	var scope *models.Scope
	if wq.DivisionID != nil || wq.DepartmentID != nil {
		scope = &models.Scope{DivisionID: wq.DivisionID, DepartmentID: wq.DepartmentID, Side: models.ScopeSide(wq.Side)}
	}
	return w, scope, true
}

func (h *Handler) context(c *gin.Context) (context.Context, context.CancelFunc) {
	if h.RequestTimeout <= 0 {
		return context.WithCancel(c.Request.Context())
	}
	return context.WithTimeout(c.Request.Context(), h.RequestTimeout)
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now().UTC()
}

func (h *Handler) writeEngineError(c *gin.Context, err error) {
	kind := service.ErrorKind(err)
	switch kind {
	case "invalid_window":
		writeError(c, http.StatusBadRequest, "INVALID_WINDOW", "Invalid window", err.Error())
	case "window_too_large":
		writeError(c, http.StatusUnprocessableEntity, "WINDOW_TOO_LARGE", "Window holds too many requests; narrow it", err.Error())
	case "data_integrity":
		writeError(c, http.StatusUnprocessableEntity, "DATA_INTEGRITY", "Request record is inconsistent", err.Error())
	case "not_found":
		writeError(c, http.StatusNotFound, "NOT_FOUND", "Request not found", nil)
	case "unavailable":
		writeError(c, http.StatusServiceUnavailable, "DB_UNAVAILABLE", "Database unavailable", err.Error())
	case "timeout":
		writeError(c, http.StatusGatewayTimeout, "TIMEOUT", "Query timed out", err.Error())
	default:
		h.Logger.Error().Err(err).Str("request_id", middleware.GetRequestID(c)).Msg("engine query failed")
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to evaluate window", err.Error())
	}
}

func writeError(c *gin.Context, status int, code string, message string, details any) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}
