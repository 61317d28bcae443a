package scoring

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/slatrack/backend/internal/models"
)

var t0 = time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func at(h float64) *time.Time {
	ts := t0.Add(time.Duration(h * float64(time.Hour)))
	return &ts
}

func request(id int64, rt models.ResourceType, status models.Status) models.ServiceRequest {
	return models.ServiceRequest{
		ID:           id,
		Reference:    "REQ-TEST",
		ResourceType: rt,
		Priority:     models.PriorityMedium,
		Status:       status,
		CreatedAt:    t0,
	}
}

func completed(id int64, rt models.ResourceType, targetHours, doneAfter float64) models.ServiceRequest {
	r := request(id, rt, models.StatusCompleted)
	r.SLACompletionHours = ptr(targetHours)
	r.CompletedAt = at(doneAfter)
	return r
}

func TestExtractCompletedWithinAndOutside(t *testing.T) {
	p := DefaultPolicy()
	now := t0.Add(100 * time.Hour)

	f, err := Extract(Record{Request: completed(1, models.ResourceGeneral, 24, 24)}, now, p)
	require.NoError(t, err)
	require.True(t, f.SLAEligible)
	require.True(t, f.WithinSLA, "deadline is inclusive")
	require.Equal(t, SLAMet, f.SLAState)
	require.Equal(t, 24.0, f.ElapsedHours)

	f, err = Extract(Record{Request: completed(2, models.ResourceGeneral, 24, 30)}, now, p)
	require.NoError(t, err)
	require.False(t, f.WithinSLA)
	require.Equal(t, SLAMissed, f.SLAState)
}

func TestExtractOpenRequestTimedAgainstNow(t *testing.T) {
	p := DefaultPolicy()
	r := request(1, models.ResourceGeneral, models.StatusInProgress)
	r.SLACompletionHours = ptr(10.0)

	f, err := Extract(Record{Request: r}, t0.Add(5*time.Hour), p)
	require.NoError(t, err)
	require.True(t, f.WithinSLA)
	require.Equal(t, SLAOnTrack, f.SLAState)
	require.Equal(t, 5.0, f.ElapsedHours)

	f, err = Extract(Record{Request: r}, t0.Add(9*time.Hour), p)
	require.NoError(t, err)
	require.Equal(t, SLAWarning, f.SLAState)

	f, err = Extract(Record{Request: r}, t0.Add(11*time.Hour), p)
	require.NoError(t, err)
	require.False(t, f.WithinSLA)
	require.Equal(t, SLABreached, f.SLAState)
}

func TestExtractExcludedAndMissingTarget(t *testing.T) {
	p := DefaultPolicy()
	rejected := request(1, models.ResourceGeneral, models.StatusRejected)
	rejected.SLACompletionHours = ptr(24.0)

	f, err := Extract(Record{Request: rejected}, t0, p)
	require.NoError(t, err)
	require.True(t, f.Excluded)
	require.False(t, f.SLAEligible)
	require.False(t, f.MissingTarget)
	require.Equal(t, SLAExcluded, f.SLAState)

	f, err = Extract(Record{Request: request(2, models.ResourceGeneral, models.StatusPending)}, t0, p)
	require.NoError(t, err)
	require.True(t, f.MissingTarget)
	require.False(t, f.SLAEligible)
	require.Equal(t, SLAUnknown, f.SLAState)
}

func TestExtractClampsNegativeElapsed(t *testing.T) {
	r := request(1, models.ResourceGeneral, models.StatusPending)
	f, err := Extract(Record{Request: r}, t0.Add(-2*time.Hour), DefaultPolicy())
	require.NoError(t, err)
	require.Equal(t, 0.0, f.ElapsedHours)
}

func TestExtractDomainFlags(t *testing.T) {
	p := DefaultPolicy()
	cases := []struct {
		name     string
		rt       models.ResourceType
		detail   models.ResourceDetail
		hasFlag  bool
		wantFlag bool
	}{
		{"fleet trip", models.ResourceFleet, models.FleetDetail{TripCompleted: true}, true, true},
		{"hr unfilled", models.ResourceHR, models.HRDetail{DeploymentFilled: false}, true, false},
		{"finance accurate", models.ResourceFinance, models.FinanceDetail{PaymentAccuracy: true}, true, true},
		{"ict reopened", models.ResourceICT, models.ICTDetail{Reopened: true}, true, false},
		{"ict clean", models.ResourceICT, models.ICTDetail{}, true, true},
		{"logistics short", models.ResourceLogistics, models.LogisticsDetail{QuantityRequested: ptr(10.0), QuantityDelivered: ptr(7.0)}, true, false},
		{"logistics full", models.ResourceLogistics, models.LogisticsDetail{QuantityRequested: ptr(10.0), QuantityDelivered: ptr(10.0)}, true, true},
		{"logistics unknown quantities", models.ResourceLogistics, models.LogisticsDetail{}, false, false},
		{"general", models.ResourceGeneral, nil, false, false},
		{"fleet without detail", models.ResourceFleet, nil, false, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f, err := Extract(Record{Request: request(1, tc.rt, models.StatusInProgress), Detail: tc.detail}, t0, p)
			require.NoError(t, err)
			require.Equal(t, tc.hasFlag, f.HasDomainFlag)
			require.Equal(t, tc.wantFlag, f.DomainFlag)
		})
	}
}

func TestExtractIntegrityErrors(t *testing.T) {
	p := DefaultPolicy()
	noCreated := request(1, models.ResourceGeneral, models.StatusPending)
	noCreated.CreatedAt = time.Time{}

	noCompletedAt := request(2, models.ResourceGeneral, models.StatusCompleted)

	negativeTarget := request(3, models.ResourceGeneral, models.StatusPending)
	negativeTarget.SLACompletionHours = ptr(-1.0)

	unknownStatus := request(4, models.ResourceGeneral, "ARCHIVED")

	hugeTarget := request(5, models.ResourceGeneral, models.StatusInProgress)
	hugeTarget.SLACompletionHours = ptr(3e6)

	cases := []struct {
		name  string
		rec   Record
		field string
	}{
		{"missing created_at", Record{Request: noCreated}, "created_at"},
		{"completed without completed_at", Record{Request: noCompletedAt}, "completed_at"},
		{"negative target", Record{Request: negativeTarget}, "sla_completion_time_hours"},
		{"unknown status", Record{Request: unknownStatus}, "status"},
		{"target beyond duration range", Record{Request: hugeTarget}, "sla_completion_time_hours"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Extract(tc.rec, t0, p)
			var ie *DataIntegrityError
			require.True(t, errors.As(err, &ie), "got %v", err)
			require.Equal(t, tc.field, ie.Field)
			require.Equal(t, tc.rec.Request.ID, ie.RequestID)
		})
	}
}

func TestExtractDropsInvalidOptionalParts(t *testing.T) {
	p := DefaultPolicy()
	cases := []struct {
		name   string
		rec    Record
		field  string
		detail bool
	}{
		{"detail mismatch", Record{Request: completed(1, models.ResourceHR, 24, 10), Detail: models.FleetDetail{TripCompleted: true}}, "resource_detail", true},
		{"blank overall rating", Record{Request: completed(2, models.ResourceGeneral, 24, 10), Rating: &models.SatisfactionRating{OverallScore: 0}}, "overall_score", false},
		{"rating out of range", Record{Request: completed(3, models.ResourceGeneral, 24, 10), Rating: &models.SatisfactionRating{OverallScore: 6}}, "overall_score", false},
		{"rating not a number", Record{Request: completed(4, models.ResourceGeneral, 24, 10), Rating: &models.SatisfactionRating{OverallScore: math.NaN()}}, "overall_score", false},
		{"rating dimension out of range", Record{Request: completed(5, models.ResourceGeneral, 24, 10), Rating: &models.SatisfactionRating{OverallScore: 4, QualityScore: 9}}, "quality_score", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f, err := Extract(tc.rec, t0.Add(48*time.Hour), p)
			require.NoError(t, err)
			require.Equal(t, SLAMet, f.SLAState)
			require.True(t, f.WithinSLA)
			require.Len(t, f.DroppedParts, 1)
			require.Equal(t, tc.field, f.DroppedParts[0].Field)
			require.Equal(t, tc.rec.Request.ID, f.DroppedParts[0].RequestID)
			if tc.detail {
				require.False(t, f.HasDomainFlag)
				require.Nil(t, f.Fleet)
			} else {
				require.False(t, f.Rated)
				require.Nil(t, f.Rating)
			}
		})
	}
}

func TestInvalidRatingKeepsRequestCompliant(t *testing.T) {
	p := DefaultPolicy()
	records := []Record{{
		Request: completed(1, models.ResourceGeneral, 24, 10),
		Rating:  &models.SatisfactionRating{RequestID: 1, OverallScore: 0},
	}}
	facts, skipped := ExtractAll(records, t0.Add(48*time.Hour), p)
	require.Empty(t, skipped)
	require.Len(t, facts, 1)

	k, err := Aggregate(facts, models.Window{Start: t0, End: t0.Add(24 * time.Hour)}, nil, p)
	require.NoError(t, err)
	require.Equal(t, 1, k.General.TotalRequests)
	require.Equal(t, 1, k.General.EligibleRequests)
	require.Equal(t, 100.0, k.General.SLAComplianceRate)
	require.Zero(t, k.General.RatedRequests)
}

func TestExtractCapsHugeTargets(t *testing.T) {
	r := request(1, models.ResourceGeneral, models.StatusInProgress)
	r.SLACompletionHours = ptr(maxTargetHours)
	f, err := Extract(Record{Request: r}, t0.Add(time.Hour), DefaultPolicy())
	require.NoError(t, err)
	require.True(t, f.Deadline.After(t0))
	require.Equal(t, SLAOnTrack, f.SLAState)
}

func TestExtractAllSkipsBadRecords(t *testing.T) {
	bad := request(2, models.ResourceGeneral, models.StatusCompleted)
	records := []Record{
		{Request: completed(1, models.ResourceGeneral, 24, 2)},
		{Request: bad},
		{Request: completed(3, models.ResourceGeneral, 24, 2)},
	}
	facts, skipped := ExtractAll(records, t0.Add(48*time.Hour), DefaultPolicy())
	require.Len(t, facts, 2)
	require.Len(t, skipped, 1)
	require.Equal(t, int64(1), facts[0].RequestID)
	require.Equal(t, int64(3), facts[1].RequestID)
}

func TestExtractResponseAndRecording(t *testing.T) {
	r := completed(1, models.ResourceGeneral, 24, 10)
	r.SLAResponseHours = ptr(2.0)
	r.AcknowledgedAt = at(1)
	r.CompletionRecordedAt = at(40)
	r.RouteCount = 2
	r.CostEstimate = decimal.NewNullDecimal(decimal.NewFromInt(100))
	r.ActualCost = decimal.NewNullDecimal(decimal.NewFromInt(80))

	f, err := Extract(Record{Request: r}, t0.Add(72*time.Hour), DefaultPolicy())
	require.NoError(t, err)
	require.True(t, f.ResponseEligible)
	require.True(t, f.RespondedWithinSLA)
	require.Equal(t, 1.0, *f.ResponseHours)
	require.True(t, f.AckBeforeCompletion)
	require.True(t, f.Rerouted)
	require.Equal(t, 30.0, *f.RecordingLagHours)
	require.True(t, f.HasCost)
	require.True(t, f.ActualCost.Equal(decimal.NewFromInt(80)))
}
