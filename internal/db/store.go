package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/slatrack/backend/internal/metrics"
	"github.com/slatrack/backend/internal/models"
)

type Store struct {
	Pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	const op = "db.New"
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("%s: parse config: %w", op, err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Store{Pool: pool}, nil
}

func (s *Store) Close() {
	s.Pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.Pool.Ping(ctx)
}

func (s *Store) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func observe(op string, start time.Time, err *error) {
	metrics.RecordDBQuery(op, time.Since(start), *err)
}

// RouteCount is the number of SENT actions in the activity log.
const requestColumns = `r.id, r.reference, r.request_type, r.priority, r.status,
	r.created_at, r.submitted_at, r.acknowledged_at, r.completed_at, r.completion_recorded_at,
	r.sla_response_time_hours, r.sla_completion_time_hours,
	r.requester_division_id, r.requester_department_id, r.requester_subdepartment_id,
	r.assigned_division_id, r.assigned_department_id, r.assigned_subdepartment_id,
	r.cost_estimate::text, r.actual_cost::text,
	(SELECT count(*) FROM request_activity_logs l WHERE l.request_id = r.id AND l.action = 'SENT')`

func scanRequest(row pgx.Row) (models.ServiceRequest, error) {
	var (
		r            models.ServiceRequest
		resourceType string
		priority     string
		status       string
		estimate     *string
		actual       *string
		routes       int64
	)
	err := row.Scan(
		&r.ID, &r.Reference, &resourceType, &priority, &status,
		&r.CreatedAt, &r.SubmittedAt, &r.AcknowledgedAt, &r.CompletedAt, &r.CompletionRecordedAt,
		&r.SLAResponseHours, &r.SLACompletionHours,
		&r.Requester.DivisionID, &r.Requester.DepartmentID, &r.Requester.SubDepartmentID,
		&r.Assignee.DivisionID, &r.Assignee.DepartmentID, &r.Assignee.SubDepartmentID,
		&estimate, &actual,
		&routes,
	)
	if err != nil {
		return models.ServiceRequest{}, err
	}
	r.ResourceType = models.ResourceType(strings.ToUpper(resourceType))
	r.Priority = models.Priority(strings.ToUpper(priority))
	r.Status = models.Status(strings.ToUpper(status))
	r.RouteCount = int(routes)
	if r.CostEstimate, err = decimalColumn(r.ID, "cost_estimate", estimate); err != nil {
		return models.ServiceRequest{}, err
	}
	if r.ActualCost, err = decimalColumn(r.ID, "actual_cost", actual); err != nil {
		return models.ServiceRequest{}, err
	}
	return r, nil
}

// FetchRequests returns the requests created inside w whose scoped side matches scope.
func (s *Store) FetchRequests(ctx context.Context, w models.Window, scope *models.Scope, limit int) (out []models.ServiceRequest, err error) {
	defer observe("fetch_requests", time.Now(), &err)
	const op = "db.FetchRequests"

	query := `SELECT ` + requestColumns + ` FROM requests r`
	args := []any{w.Start, w.End}
	wheres := []string{"r.created_at >= $1", "r.created_at < $2"}
	if !scope.Empty() {
		prefix := "r.assigned_"
		if scope.Side == models.SideRequester {
			prefix = "r.requester_"
		}
		if scope.DivisionID != nil {
			args = append(args, *scope.DivisionID)
			wheres = append(wheres, fmt.Sprintf("%sdivision_id = $%d", prefix, len(args)))
		}
		if scope.DepartmentID != nil {
			args = append(args, *scope.DepartmentID)
			wheres = append(wheres, fmt.Sprintf("%sdepartment_id = $%d", prefix, len(args)))
		}
	}
	query += " WHERE " + strings.Join(wheres, " AND ") + " ORDER BY r.id"
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

func (s *Store) FetchRequest(ctx context.Context, id int64) (r models.ServiceRequest, err error) {
	defer observe("fetch_request", time.Now(), &err)
	const op = "db.FetchRequest"

	r, err = scanRequest(s.Pool.QueryRow(ctx, `SELECT `+requestColumns+` FROM requests r WHERE r.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ServiceRequest{}, fmt.Errorf("%s: request %d: %w", op, id, models.ErrNotFound)
	}
	if err != nil {
		return models.ServiceRequest{}, fmt.Errorf("%s: %w", op, err)
	}
	return r, nil
}

// InsertRequests bulk-loads requests with their ids as given.
func (s *Store) InsertRequests(ctx context.Context, requests []models.ServiceRequest) (n int64, err error) {
	defer observe("insert_requests", time.Now(), &err)
	rows := make([][]any, 0, len(requests))
	for _, r := range requests {
		rows = append(rows, []any{
			r.ID, r.Reference, string(r.ResourceType), string(r.Priority), string(r.Status),
			r.Requester.DivisionID, r.Requester.DepartmentID, r.Requester.SubDepartmentID,
			r.Assignee.DivisionID, r.Assignee.DepartmentID, r.Assignee.SubDepartmentID,
			r.SLAResponseHours, r.SLACompletionHours,
			decimalArg(r.CostEstimate), decimalArg(r.ActualCost),
			r.CreatedAt, r.SubmittedAt, r.AcknowledgedAt, r.CompletedAt, r.CompletionRecordedAt,
		})
	}
	return s.Pool.CopyFrom(ctx, pgx.Identifier{"requests"}, []string{
		"id", "reference", "request_type", "priority", "status",
		"requester_division_id", "requester_department_id", "requester_subdepartment_id",
		"assigned_division_id", "assigned_department_id", "assigned_subdepartment_id",
		"sla_response_time_hours", "sla_completion_time_hours",
		"cost_estimate", "actual_cost",
		"created_at", "submitted_at", "acknowledged_at", "completed_at", "completion_recorded_at",
	}, pgx.CopyFromRows(rows))
}

// LogActivity appends one entry to a request's activity log.
func (s *Store) LogActivity(ctx context.Context, requestID int64, action string, at time.Time) (err error) {
	defer observe("log_activity", time.Now(), &err)
	_, err = s.Pool.Exec(ctx, `INSERT INTO request_activity_logs (request_id, action, created_at) VALUES ($1, $2, $3)`, requestID, action, at)
	return err
}

// ListDivisionIDs returns every division that has been assigned a request.
func (s *Store) ListDivisionIDs(ctx context.Context) (out []int64, err error) {
	defer observe("list_divisions", time.Now(), &err)
	rows, err := s.Pool.Query(ctx, `SELECT DISTINCT assigned_division_id FROM requests WHERE assigned_division_id IS NOT NULL ORDER BY 1`)
	if err != nil {
		return nil, err
	}
	out, err = pgx.CollectRows(rows, pgx.RowTo[int64])
	return out, err
}

func parseDecimal(v *string) (decimal.NullDecimal, error) {
	if v == nil {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(*v)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}

// decimalColumn reads a NUMERIC column of one request. NUMERIC also stores
// NaN, which has no decimal form, so it is read as NULL.
func decimalColumn(requestID int64, field string, v *string) (decimal.NullDecimal, error) {
	if v != nil && strings.EqualFold(strings.TrimSpace(*v), "NaN") {
		log.Warn().Int64("request_id", requestID).Str("field", field).Msg("NaN numeric value read as NULL")
		metrics.RecordNonNumeric(field)
		return decimal.NullDecimal{}, nil
	}
	d, err := parseDecimal(v)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("request %d: %s: %w", requestID, field, err)
	}
	return d, nil
}

// decimalArg converts a NullDecimal to NUMERIC without going through float64.
func decimalArg(d decimal.NullDecimal) pgtype.Numeric {
	if !d.Valid {
		return pgtype.Numeric{}
	}
	return pgtype.Numeric{Int: d.Decimal.Coefficient(), Exp: d.Decimal.Exponent(), Valid: true}
}

func derefInt(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
