package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/slatrack/backend/internal/models"
)

type ScorecardFilter struct {
	DivisionID   *int64
	DepartmentID *int64
	Limit        int
}

func (s *Store) InsertScorecard(ctx context.Context, snap models.ScorecardSnapshot) (err error) {
	defer observe("insert_scorecard", time.Now(), &err)
	const op = "db.InsertScorecard"

	var breakdown []byte
	if len(snap.Breakdown) > 0 {
		breakdown = snap.Breakdown
	}
	_, err = s.Pool.Exec(ctx, `INSERT INTO scorecards (
			id, period_start, period_end, division_id, department_id,
			service_efficiency_score, compliance_score, cost_optimization_score, satisfaction_score,
			total_score, rating, integration_index, skipped_records, breakdown, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		snap.ID, snap.PeriodStart, snap.PeriodEnd, snap.DivisionID, snap.DepartmentID,
		snap.ServiceEfficiencyScore, snap.ComplianceScore, snap.CostOptimizationScore, snap.SatisfactionScore,
		snap.TotalScore, snap.Rating, snap.IntegrationIndex, snap.SkippedRecords, breakdown, snap.CreatedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ListScorecards returns stored snapshots newest first. A nil division or
// department in the filter means any, not the org-wide row.
func (s *Store) ListScorecards(ctx context.Context, f ScorecardFilter) (out []models.ScorecardSnapshot, err error) {
	defer observe("list_scorecards", time.Now(), &err)
	const op = "db.ListScorecards"

	query := `SELECT id::text, period_start, period_end, division_id, department_id,
		service_efficiency_score::float8, compliance_score::float8, cost_optimization_score::float8,
		satisfaction_score::float8, total_score::float8, rating, integration_index::float8,
		skipped_records, breakdown, created_at
		FROM scorecards`
	args := []any{}
	wheres := []string{}
	if f.DivisionID != nil {
		args = append(args, *f.DivisionID)
		wheres = append(wheres, fmt.Sprintf("division_id = $%d", len(args)))
	}
	if f.DepartmentID != nil {
		args = append(args, *f.DepartmentID)
		wheres = append(wheres, fmt.Sprintf("department_id = $%d", len(args)))
	}
	if len(wheres) > 0 {
		query += " WHERE " + strings.Join(wheres, " AND ")
	}
	query += " ORDER BY created_at DESC"
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			snap      models.ScorecardSnapshot
			breakdown []byte
		)
		if err := rows.Scan(
			&snap.ID, &snap.PeriodStart, &snap.PeriodEnd, &snap.DivisionID, &snap.DepartmentID,
			&snap.ServiceEfficiencyScore, &snap.ComplianceScore, &snap.CostOptimizationScore,
			&snap.SatisfactionScore, &snap.TotalScore, &snap.Rating, &snap.IntegrationIndex,
			&snap.SkippedRecords, &breakdown, &snap.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		snap.Breakdown = breakdown
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}
