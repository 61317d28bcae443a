package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/slatrack/backend/internal/models"
)

const fleetQuery = `SELECT request_id, vehicle_assigned, dispatch_time, return_time, fuel_used, km_traveled,
	trip_completed, breakdown_occurred FROM fleet_requests WHERE request_id = ANY($1)`

const hrQuery = `SELECT request_id, staff_assigned, deployment_duration_days, overtime_hours, deployment_filled
	FROM hr_deployments WHERE request_id = ANY($1)`

const financeQuery = `SELECT request_id, transaction_type, amount::text, document_completeness_score,
	complies_with_finance_sop, payment_accuracy, date_received, date_processed
	FROM finance_transactions WHERE request_id = ANY($1)`

const ictQuery = `SELECT request_id, problem_type, resolution_time_minutes, escalated, reopened
	FROM ict_tickets WHERE request_id = ANY($1)`

const logisticsQuery = `SELECT request_id, item_requested, quantity_requested, quantity_delivered, stock_available,
	delivery_time_days, requisition_accurate, cost_per_item::text
	FROM logistics_requests WHERE request_id = ANY($1)`

// FetchResourceDetails loads the detail rows of every domain table for the given
// requests in one round trip. Requests without a detail are absent from the map.
func (s *Store) FetchResourceDetails(ctx context.Context, requestIDs []int64) (out map[int64]models.ResourceDetail, err error) {
	defer observe("fetch_details", time.Now(), &err)
	const op = "db.FetchResourceDetails"

	out = make(map[int64]models.ResourceDetail, len(requestIDs))
	if len(requestIDs) == 0 {
		return out, nil
	}

	batch := &pgx.Batch{}
	batch.Queue(fleetQuery, requestIDs).Query(func(rows pgx.Rows) error {
		for rows.Next() {
			var d models.FleetDetail
			var vehicle *string
			if err := rows.Scan(&d.RequestID, &vehicle, &d.DispatchTime, &d.ReturnTime, &d.FuelUsed, &d.KmTraveled, &d.TripCompleted, &d.BreakdownOccurred); err != nil {
				return err
			}
			d.VehicleAssigned = derefString(vehicle)
			out[d.RequestID] = d
		}
		return rows.Err()
	})
	batch.Queue(hrQuery, requestIDs).Query(func(rows pgx.Rows) error {
		for rows.Next() {
			var d models.HRDetail
			var staff *string
			if err := rows.Scan(&d.RequestID, &staff, &d.DeploymentDurationDays, &d.OvertimeHours, &d.DeploymentFilled); err != nil {
				return err
			}
			d.StaffAssigned = derefString(staff)
			out[d.RequestID] = d
		}
		return rows.Err()
	})
	batch.Queue(financeQuery, requestIDs).Query(func(rows pgx.Rows) error {
		for rows.Next() {
			var d models.FinanceDetail
			var txType, amount *string
			if err := rows.Scan(&d.RequestID, &txType, &amount, &d.DocumentCompletenessScore, &d.CompliesWithSOP, &d.PaymentAccuracy, &d.DateReceived, &d.DateProcessed); err != nil {
				return err
			}
			d.TransactionType = derefString(txType)
			amt, err := decimalColumn(d.RequestID, "amount", amount)
			if err != nil {
				return err
			}
			d.Amount = amt
			out[d.RequestID] = d
		}
		return rows.Err()
	})
	batch.Queue(ictQuery, requestIDs).Query(func(rows pgx.Rows) error {
		for rows.Next() {
			var d models.ICTDetail
			var problem *string
			if err := rows.Scan(&d.RequestID, &problem, &d.ResolutionTimeMinutes, &d.Escalated, &d.Reopened); err != nil {
				return err
			}
			d.ProblemType = derefString(problem)
			out[d.RequestID] = d
		}
		return rows.Err()
	})
	batch.Queue(logisticsQuery, requestIDs).Query(func(rows pgx.Rows) error {
		for rows.Next() {
			var d models.LogisticsDetail
			var item, cost *string
			if err := rows.Scan(&d.RequestID, &item, &d.QuantityRequested, &d.QuantityDelivered, &d.StockAvailable, &d.DeliveryTimeDays, &d.RequisitionAccurate, &cost); err != nil {
				return err
			}
			d.ItemRequested = derefString(item)
			c, err := decimalColumn(d.RequestID, "cost_per_item", cost)
			if err != nil {
				return err
			}
			d.CostPerItem = c
			out[d.RequestID] = d
		}
		return rows.Err()
	})

	if err := s.Pool.SendBatch(ctx, batch).Close(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

func (s *Store) FetchResourceDetail(ctx context.Context, requestID int64) (models.ResourceDetail, error) {
	details, err := s.FetchResourceDetails(ctx, []int64{requestID})
	if err != nil {
		return nil, err
	}
	d, ok := details[requestID]
	if !ok {
		return nil, nil
	}
	return d, nil
}

// InsertResourceDetail writes d into its domain table.
func (s *Store) InsertResourceDetail(ctx context.Context, d models.ResourceDetail) (err error) {
	defer observe("insert_detail", time.Now(), &err)
	switch v := d.(type) {
	case models.FleetDetail:
		_, err = s.Pool.Exec(ctx, `INSERT INTO fleet_requests (request_id, vehicle_assigned, dispatch_time, return_time, fuel_used, km_traveled, trip_completed, breakdown_occurred)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			v.RequestID, v.VehicleAssigned, v.DispatchTime, v.ReturnTime, v.FuelUsed, v.KmTraveled, v.TripCompleted, v.BreakdownOccurred)
	case models.HRDetail:
		_, err = s.Pool.Exec(ctx, `INSERT INTO hr_deployments (request_id, staff_assigned, deployment_duration_days, overtime_hours, deployment_filled)
			VALUES ($1, $2, $3, $4, $5)`,
			v.RequestID, v.StaffAssigned, v.DeploymentDurationDays, v.OvertimeHours, v.DeploymentFilled)
	case models.FinanceDetail:
		_, err = s.Pool.Exec(ctx, `INSERT INTO finance_transactions (request_id, transaction_type, amount, document_completeness_score, complies_with_finance_sop, payment_accuracy, date_received, date_processed)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			v.RequestID, v.TransactionType, decimalArg(v.Amount), v.DocumentCompletenessScore, v.CompliesWithSOP, v.PaymentAccuracy, v.DateReceived, v.DateProcessed)
	case models.ICTDetail:
		_, err = s.Pool.Exec(ctx, `INSERT INTO ict_tickets (request_id, problem_type, resolution_time_minutes, escalated, reopened)
			VALUES ($1, $2, $3, $4, $5)`,
			v.RequestID, v.ProblemType, v.ResolutionTimeMinutes, v.Escalated, v.Reopened)
	case models.LogisticsDetail:
		_, err = s.Pool.Exec(ctx, `INSERT INTO logistics_requests (request_id, item_requested, quantity_requested, quantity_delivered, stock_available, delivery_time_days, requisition_accurate, cost_per_item)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			v.RequestID, v.ItemRequested, v.QuantityRequested, v.QuantityDelivered, v.StockAvailable, v.DeliveryTimeDays, v.RequisitionAccurate, decimalArg(v.CostPerItem))
	default:
		err = fmt.Errorf("db.InsertResourceDetail: unsupported detail %T", d)
	}
	return err
}

const ratingQuery = `SELECT request_id, timeliness_score, quality_score, communication_score,
	professionalism_score, overall_score::float8, submitted_at
	FROM customer_satisfaction WHERE request_id = ANY($1)`

func (s *Store) FetchRatings(ctx context.Context, requestIDs []int64) (out map[int64]models.SatisfactionRating, err error) {
	defer observe("fetch_ratings", time.Now(), &err)
	const op = "db.FetchRatings"

	out = make(map[int64]models.SatisfactionRating, len(requestIDs))
	if len(requestIDs) == 0 {
		return out, nil
	}
	rows, err := s.Pool.Query(ctx, ratingQuery, requestIDs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()
	for rows.Next() {
		var r models.SatisfactionRating
		var timeliness, quality, comm, profession *int
		if err := rows.Scan(&r.RequestID, &timeliness, &quality, &comm, &profession, &r.OverallScore, &r.SubmittedAt); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		r.TimelinessScore = derefInt(timeliness)
		r.QualityScore = derefInt(quality)
		r.CommunicationScore = derefInt(comm)
		r.ProfessionalismScore = derefInt(profession)
		out[r.RequestID] = r
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

func (s *Store) FetchRating(ctx context.Context, requestID int64) (*models.SatisfactionRating, error) {
	ratings, err := s.FetchRatings(ctx, []int64{requestID})
	if err != nil {
		return nil, err
	}
	r, ok := ratings[requestID]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (s *Store) InsertRating(ctx context.Context, r models.SatisfactionRating) (err error) {
	defer observe("insert_rating", time.Now(), &err)
	_, err = s.Pool.Exec(ctx, `INSERT INTO customer_satisfaction (request_id, timeliness_score, quality_score, communication_score, professionalism_score, overall_score, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		r.RequestID, nullInt(r.TimelinessScore), nullInt(r.QualityScore), nullInt(r.CommunicationScore), nullInt(r.ProfessionalismScore), r.OverallScore, r.SubmittedAt)
	return err
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

// nullInt stores a blank (0) score as NULL.
func nullInt(v int) *int {
	if v == 0 {
		return nil
	}
	return &v
}
