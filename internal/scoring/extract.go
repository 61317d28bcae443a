package scoring

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/slatrack/backend/internal/models"
)

// Record is one request together with its optional resource detail and rating.
type Record struct {
	Request models.ServiceRequest
	Detail  models.ResourceDetail
	Rating  *models.SatisfactionRating
}

type SLAState string

const (
	SLAOnTrack  SLAState = "ON_TRACK"
	SLAWarning  SLAState = "WARNING"
	SLABreached SLAState = "BREACHED"
	SLAMet      SLAState = "MET"
	SLAMissed   SLAState = "MISSED"
	SLAUnknown  SLAState = "UNKNOWN"
	SLAExcluded SLAState = "EXCLUDED"
)

// RequestFact is everything the aggregators need to know about one request.
type RequestFact struct {
	RequestID    int64               `json:"request_id"`
	Reference    string              `json:"reference"`
	ResourceType models.ResourceType `json:"resource_type"`
	Priority     models.Priority     `json:"priority"`
	Status       models.Status       `json:"status"`
	CreatedAt    time.Time           `json:"created_at"`
	Requester    models.OrgChain     `json:"requester"`
	Assignee     models.OrgChain     `json:"assignee"`

	Completed     bool       `json:"completed"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	Excluded      bool       `json:"excluded"`
	MissingTarget bool       `json:"missing_target"`
	SLAEligible   bool       `json:"sla_eligible"`
	WithinSLA     bool       `json:"is_within_sla"`
	TargetHours   float64    `json:"target_hours"`
	ElapsedHours  float64    `json:"elapsed_hours"`
	Deadline      time.Time  `json:"deadline,omitempty"`
	SLAState      SLAState   `json:"sla_state"`

	ResponseEligible   bool     `json:"response_eligible"`
	RespondedWithinSLA bool     `json:"responded_within_sla"`
	ResponseHours      *float64 `json:"response_hours,omitempty"`

	Acknowledged        bool     `json:"acknowledged"`
	AckBeforeCompletion bool     `json:"ack_before_completion"`
	Rerouted            bool     `json:"rerouted"`
	Reopened            bool     `json:"reopened"`
	RecordingLagHours   *float64 `json:"recording_lag_hours,omitempty"`

	HasDomainFlag bool            `json:"has_domain_flag"`
	DomainFlag    bool            `json:"domain_flag"`
	Fleet         *FleetFacts     `json:"fleet,omitempty"`
	HR            *HRFacts        `json:"hr,omitempty"`
	Finance       *FinanceFacts   `json:"finance,omitempty"`
	ICT           *ICTFacts       `json:"ict,omitempty"`
	Logistics     *LogisticsFacts `json:"logistics,omitempty"`

	HasCost      bool            `json:"has_cost"`
	CostEstimate decimal.Decimal `json:"cost_estimate"`
	ActualCost   decimal.Decimal `json:"actual_cost"`

	Rated  bool         `json:"rated"`
	Rating *RatingFacts `json:"rating,omitempty"`

	// DroppedParts lists the detail or rating that failed validation and was left out.
	DroppedParts []*DataIntegrityError `json:"dropped_parts,omitempty"`
}

type FleetFacts struct {
	TripCompleted   bool     `json:"trip_completed"`
	Breakdown       bool     `json:"breakdown"`
	FuelUsed        *float64 `json:"fuel_used,omitempty"`
	KmTraveled      *float64 `json:"km_traveled,omitempty"`
	TurnaroundHours *float64 `json:"turnaround_hours,omitempty"`
}

type HRFacts struct {
	Filled         bool     `json:"filled"`
	OvertimeHours  *float64 `json:"overtime_hours,omitempty"`
	ScheduledHours *float64 `json:"scheduled_hours,omitempty"`
}

type FinanceFacts struct {
	Accurate          bool                `json:"accurate"`
	SOPCompliant      bool                `json:"sop_compliant"`
	CompletenessScore *float64            `json:"completeness_score,omitempty"`
	ProcessingDays    *float64            `json:"processing_days,omitempty"`
	Amount            decimal.NullDecimal `json:"amount"`
}

type ICTFacts struct {
	Reopened          bool     `json:"reopened"`
	Escalated         bool     `json:"escalated"`
	ResolutionMinutes *float64 `json:"resolution_minutes,omitempty"`
}

type LogisticsFacts struct {
	Requested           *float64 `json:"requested,omitempty"`
	Delivered           *float64 `json:"delivered,omitempty"`
	StockAvailable      bool     `json:"stock_available"`
	RequisitionAccurate bool     `json:"requisition_accurate"`
	DeliveryDays        *float64 `json:"delivery_days,omitempty"`
}

type RatingFacts struct {
	Overall         float64 `json:"overall"`
	Timeliness      float64 `json:"timeliness"`
	Quality         float64 `json:"quality"`
	Communication   float64 `json:"communication"`
	Professionalism float64 `json:"professionalism"`
}

// maxTargetHours is the longest target a time.Duration can hold.
const maxTargetHours = float64(math.MaxInt64 / int64(time.Hour))

var knownStatuses = map[models.Status]bool{
	models.StatusPending:         true,
	models.StatusApprovalPending: true,
	models.StatusApproved:        true,
	models.StatusInProgress:      true,
	models.StatusCompleted:       true,
	models.StatusRejected:        true,
	models.StatusCancelled:       true,
}

var knownResourceTypes = map[models.ResourceType]bool{
	models.ResourceFleet:     true,
	models.ResourceHR:        true,
	models.ResourceFinance:   true,
	models.ResourceICT:       true,
	models.ResourceLogistics: true,
	models.ResourceGeneral:   true,
}

// Extract derives the fact for a single record evaluated at now.
// It never looks at other records, so the result depends only on its arguments.
func Extract(rec Record, now time.Time, p Policy) (RequestFact, error) {
	r := rec.Request
	if err := checkRequest(r); err != nil {
		return RequestFact{}, err
	}
	resourceType := r.ResourceType
	if resourceType == "" {
		resourceType = models.ResourceGeneral
	}
	// Detail and rating are optional, so a broken one is dropped and the request still counts.
	detail, rating := rec.Detail, rec.Rating
	var dropped []*DataIntegrityError
	if detail != nil && detail.ResourceType() != resourceType {
		dropped = append(dropped, integrity(r.ID, "resource_detail", "detail of type "+string(detail.ResourceType())+" attached to "+string(resourceType)+" request"))
		detail = nil
	}
	if rating != nil {
		if err := checkRating(r.ID, rating); err != nil {
			dropped = append(dropped, err)
			rating = nil
		}
	}

	f := RequestFact{
		RequestID:    r.ID,
		Reference:    r.Reference,
		ResourceType: resourceType,
		Priority:     r.Priority,
		Status:       r.Status,
		CreatedAt:    r.CreatedAt,
		Requester:    r.Requester,
		Assignee:     r.Assignee,
		Completed:    r.Status == models.StatusCompleted,
		Excluded:     p.excluded(r.Status),
		Rerouted:     r.RouteCount > 1,
		DroppedParts: dropped,
	}

	end := now
	if f.Completed {
		end = *r.CompletedAt
		f.CompletedAt = r.CompletedAt
	}
	f.ElapsedHours = math.Max(0, hoursBetween(r.CreatedAt, end))

	if r.SLACompletionHours == nil {
		f.MissingTarget = !f.Excluded
	} else {
		f.TargetHours = *r.SLACompletionHours
		f.Deadline = r.CreatedAt.Add(hoursToDuration(f.TargetHours))
		if !f.Excluded {
			f.SLAEligible = true
			if f.Completed {
				f.WithinSLA = !r.CompletedAt.After(f.Deadline)
			} else {
				f.WithinSLA = !now.After(f.Deadline)
			}
		}
	}
	f.SLAState = slaState(f, now, p)

	if r.AcknowledgedAt != nil {
		f.Acknowledged = true
		h := math.Max(0, hoursBetween(r.CreatedAt, *r.AcknowledgedAt))
		f.ResponseHours = &h
		if f.Completed {
			f.AckBeforeCompletion = !r.AcknowledgedAt.After(*r.CompletedAt)
		}
	}
	if r.SLAResponseHours != nil && !f.Excluded {
		responseDeadline := r.CreatedAt.Add(hoursToDuration(*r.SLAResponseHours))
		f.ResponseEligible = true
		if r.AcknowledgedAt != nil {
			f.RespondedWithinSLA = !r.AcknowledgedAt.After(responseDeadline)
		} else {
			f.RespondedWithinSLA = !now.After(responseDeadline)
		}
	}

	if f.Completed {
		lag := 0.0
		if r.CompletionRecordedAt != nil {
			lag = math.Max(0, hoursBetween(*r.CompletedAt, *r.CompletionRecordedAt))
		}
		f.RecordingLagHours = &lag
	}

	if r.CostEstimate.Valid && r.ActualCost.Valid && r.CostEstimate.Decimal.IsPositive() {
		f.HasCost = true
		f.CostEstimate = r.CostEstimate.Decimal
		f.ActualCost = r.ActualCost.Decimal
	}

	applyDetail(&f, detail)

	if rating != nil {
		f.Rated = true
		f.Rating = &RatingFacts{
			Overall:         rating.OverallScore,
			Timeliness:      float64(rating.TimelinessScore),
			Quality:         float64(rating.QualityScore),
			Communication:   float64(rating.CommunicationScore),
			Professionalism: float64(rating.ProfessionalismScore),
		}
	}
	return f, nil
}

// ExtractAll extracts every record, skipping the ones that fail with a DataIntegrityError.
// The skipped records' errors are returned alongside the facts.
func ExtractAll(records []Record, now time.Time, p Policy) ([]RequestFact, []error) {
	facts := make([]RequestFact, 0, len(records))
	var skipped []error
	for _, rec := range records {
		f, err := Extract(rec, now, p)
		if err != nil {
			skipped = append(skipped, err)
			continue
		}
		facts = append(facts, f)
	}
	return facts, skipped
}

func checkRequest(r models.ServiceRequest) error {
	if r.CreatedAt.IsZero() {
		return integrity(r.ID, "created_at", "missing timestamp")
	}
	if !knownStatuses[r.Status] {
		return integrity(r.ID, "status", "unknown status "+string(r.Status))
	}
	if r.ResourceType != "" && !knownResourceTypes[r.ResourceType] {
		return integrity(r.ID, "resource_type", "unknown resource type "+string(r.ResourceType))
	}
	if r.Status == models.StatusCompleted && r.CompletedAt == nil {
		return integrity(r.ID, "completed_at", "missing on completed request")
	}
	timestamps := []struct {
		field string
		ts    *time.Time
	}{
		{"submitted_at", r.SubmittedAt},
		{"acknowledged_at", r.AcknowledgedAt},
		{"completed_at", r.CompletedAt},
		{"completion_recorded_at", r.CompletionRecordedAt},
	}
	for _, t := range timestamps {
		if t.ts != nil && t.ts.IsZero() {
			return integrity(r.ID, t.field, "zero timestamp")
		}
	}
	targets := []struct {
		field string
		hours *float64
	}{
		{"sla_completion_time_hours", r.SLACompletionHours},
		{"sla_response_time_hours", r.SLAResponseHours},
	}
	for _, t := range targets {
		if t.hours == nil {
			continue
		}
		if *t.hours < 0 || math.IsNaN(*t.hours) || math.IsInf(*t.hours, 0) {
			return integrity(r.ID, t.field, "target must be a non-negative number of hours")
		}
		if *t.hours > maxTargetHours {
			return integrity(r.ID, t.field, fmt.Sprintf("target exceeds %.0f hours", maxTargetHours))
		}
	}
	return nil
}

func checkRating(id int64, rt *models.SatisfactionRating) *DataIntegrityError {
	if !(rt.OverallScore >= 1 && rt.OverallScore <= 5) {
		return integrity(id, "overall_score", "must be within 1..5")
	}
	dims := []struct {
		field string
		v     int
	}{
		{"timeliness_score", rt.TimelinessScore},
		{"quality_score", rt.QualityScore},
		{"communication_score", rt.CommunicationScore},
		{"professionalism_score", rt.ProfessionalismScore},
	}
	for _, d := range dims {
		// 0 means the dimension was left blank.
		if d.v != 0 && (d.v < 1 || d.v > 5) {
			return integrity(id, d.field, "must be within 1..5")
		}
	}
	return nil
}

func applyDetail(f *RequestFact, detail models.ResourceDetail) {
	switch d := detail.(type) {
	case models.FleetDetail:
		ff := &FleetFacts{
			TripCompleted: d.TripCompleted,
			Breakdown:     d.BreakdownOccurred,
			FuelUsed:      d.FuelUsed,
			KmTraveled:    d.KmTraveled,
		}
		if d.DispatchTime != nil && d.ReturnTime != nil {
			h := math.Max(0, hoursBetween(*d.DispatchTime, *d.ReturnTime))
			ff.TurnaroundHours = &h
		}
		f.Fleet = ff
		f.HasDomainFlag, f.DomainFlag = true, d.TripCompleted
	case models.HRDetail:
		hf := &HRFacts{Filled: d.DeploymentFilled, OvertimeHours: d.OvertimeHours}
		if d.DeploymentDurationDays != nil {
			h := float64(*d.DeploymentDurationDays) * hoursPerWorkday
			hf.ScheduledHours = &h
		}
		f.HR = hf
		f.HasDomainFlag, f.DomainFlag = true, d.DeploymentFilled
	case models.FinanceDetail:
		ff := &FinanceFacts{
			Accurate:     d.PaymentAccuracy,
			SOPCompliant: d.CompliesWithSOP,
			Amount:       d.Amount,
		}
		if d.DocumentCompletenessScore != nil {
			v := clampPercent(float64(*d.DocumentCompletenessScore))
			ff.CompletenessScore = &v
		}
		if d.DateReceived != nil && d.DateProcessed != nil {
			days := math.Max(0, hoursBetween(*d.DateReceived, *d.DateProcessed)/24)
			ff.ProcessingDays = &days
		}
		f.Finance = ff
		f.HasDomainFlag, f.DomainFlag = true, d.PaymentAccuracy
	case models.ICTDetail:
		icf := &ICTFacts{Reopened: d.Reopened, Escalated: d.Escalated}
		if d.ResolutionTimeMinutes != nil {
			m := math.Max(0, float64(*d.ResolutionTimeMinutes))
			icf.ResolutionMinutes = &m
		}
		f.ICT = icf
		f.Reopened = d.Reopened
		f.HasDomainFlag, f.DomainFlag = true, !d.Reopened
	case models.LogisticsDetail:
		lf := &LogisticsFacts{
			Requested:           d.QuantityRequested,
			Delivered:           d.QuantityDelivered,
			StockAvailable:      d.StockAvailable,
			RequisitionAccurate: d.RequisitionAccurate,
		}
		if d.DeliveryTimeDays != nil {
			v := math.Max(0, float64(*d.DeliveryTimeDays))
			lf.DeliveryDays = &v
		}
		f.Logistics = lf
		if d.QuantityRequested != nil && d.QuantityDelivered != nil {
			f.HasDomainFlag, f.DomainFlag = true, *d.QuantityDelivered >= *d.QuantityRequested
		}
	}
}

// slaState classifies an extracted fact at now.
func slaState(f RequestFact, now time.Time, p Policy) SLAState {
	switch {
	case f.Excluded:
		return SLAExcluded
	case !f.SLAEligible:
		return SLAUnknown
	case f.Completed && f.WithinSLA:
		return SLAMet
	case f.Completed:
		return SLAMissed
	case now.After(f.Deadline):
		return SLABreached
	}
	remaining := f.Deadline.Sub(now)
	if float64(remaining) < float64(hoursToDuration(f.TargetHours))*p.WarningFraction {
		return SLAWarning
	}
	return SLAOnTrack
}

func hoursBetween(from, to time.Time) float64 {
	return to.Sub(from).Hours()
}

func hoursToDuration(h float64) time.Duration {
	return time.Duration(h * float64(time.Hour))
}
