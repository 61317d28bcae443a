package models

import (
	"errors"
	"time"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

type ResourceType string

const (
	ResourceFleet     ResourceType = "FLEET"
	ResourceHR        ResourceType = "HR"
	ResourceFinance   ResourceType = "FINANCE"
	ResourceICT       ResourceType = "ICT"
	ResourceLogistics ResourceType = "LOGISTICS"
	ResourceGeneral   ResourceType = "GENERAL"
)

// DomainResourceTypes are the resource types that carry a detail record.
var DomainResourceTypes = []ResourceType{ResourceFleet, ResourceHR, ResourceFinance, ResourceICT, ResourceLogistics}

type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityLow    Priority = "LOW"
)

type Status string

const (
	StatusPending         Status = "PENDING"
	StatusApprovalPending Status = "APPROVAL_PENDING"
	StatusApproved        Status = "APPROVED"
	StatusInProgress      Status = "IN_PROGRESS"
	StatusCompleted       Status = "COMPLETED"
	StatusRejected        Status = "REJECTED"
	StatusCancelled       Status = "CANCELLED"
)

// Closed reports whether no further work is expected on a request in this status.
func (s Status) Closed() bool {
	return s == StatusCompleted || s == StatusRejected || s == StatusCancelled
}

// OrgChain locates one side of a request in the division/department/sub-department tree.
type OrgChain struct {
	DivisionID      *int64 `json:"division_id"`
	DepartmentID    *int64 `json:"department_id"`
	SubDepartmentID *int64 `json:"subdepartment_id"`
}

type ServiceRequest struct {
	ID                   int64               `json:"id"`
	Reference            string              `json:"reference"`
	ResourceType         ResourceType        `json:"resource_type"`
	Priority             Priority            `json:"priority"`
	Status               Status              `json:"status"`
	CreatedAt            time.Time           `json:"created_at"`
	SubmittedAt          *time.Time          `json:"submitted_at"`
	AcknowledgedAt       *time.Time          `json:"acknowledged_at"`
	CompletedAt          *time.Time          `json:"completed_at"`
	CompletionRecordedAt *time.Time          `json:"completion_recorded_at"`
	SLAResponseHours     *float64            `json:"sla_response_time_hours"`
	SLACompletionHours   *float64            `json:"sla_completion_time_hours"`
	Requester            OrgChain            `json:"requester"`
	Assignee             OrgChain            `json:"assignee"`
	RouteCount           int                 `json:"route_count"`
	CostEstimate         decimal.NullDecimal `json:"cost_estimate"`
	ActualCost           decimal.NullDecimal `json:"actual_cost"`
}

// ResourceDetail is implemented by exactly one variant per domain resource type.
type ResourceDetail interface {
	ResourceType() ResourceType
}

type FleetDetail struct {
	RequestID         int64      `json:"request_id"`
	VehicleAssigned   string     `json:"vehicle_assigned"`
	DispatchTime      *time.Time `json:"dispatch_time"`
	ReturnTime        *time.Time `json:"return_time"`
	FuelUsed          *float64   `json:"fuel_used"`
	KmTraveled        *float64   `json:"km_traveled"`
	TripCompleted     bool       `json:"trip_completed"`
	BreakdownOccurred bool       `json:"breakdown_occurred"`
}

func (FleetDetail) ResourceType() ResourceType { return ResourceFleet }

type HRDetail struct {
	RequestID              int64    `json:"request_id"`
	StaffAssigned          string   `json:"staff_assigned"`
	DeploymentDurationDays *int     `json:"deployment_duration_days"`
	OvertimeHours          *float64 `json:"overtime_hours"`
	DeploymentFilled       bool     `json:"deployment_filled"`
}

func (HRDetail) ResourceType() ResourceType { return ResourceHR }

type FinanceDetail struct {
	RequestID                 int64               `json:"request_id"`
	TransactionType           string              `json:"transaction_type"`
	Amount                    decimal.NullDecimal `json:"amount"`
	DocumentCompletenessScore *int                `json:"document_completeness_score"`
	CompliesWithSOP           bool                `json:"complies_with_finance_sop"`
	PaymentAccuracy           bool                `json:"payment_accuracy"`
	DateReceived              *time.Time          `json:"date_received"`
	DateProcessed             *time.Time          `json:"date_processed"`
}

func (FinanceDetail) ResourceType() ResourceType { return ResourceFinance }

type ICTDetail struct {
	RequestID             int64  `json:"request_id"`
	ProblemType           string `json:"problem_type"`
	ResolutionTimeMinutes *int   `json:"resolution_time_minutes"`
	Escalated             bool   `json:"escalated"`
	Reopened              bool   `json:"reopened"`
}

func (ICTDetail) ResourceType() ResourceType { return ResourceICT }

type LogisticsDetail struct {
	RequestID           int64               `json:"request_id"`
	ItemRequested       string              `json:"item_requested"`
	QuantityRequested   *float64            `json:"quantity_requested"`
	QuantityDelivered   *float64            `json:"quantity_delivered"`
	StockAvailable      bool                `json:"stock_available"`
	DeliveryTimeDays    *int                `json:"delivery_time_days"`
	RequisitionAccurate bool                `json:"requisition_accurate"`
	CostPerItem         decimal.NullDecimal `json:"cost_per_item"`
}

func (LogisticsDetail) ResourceType() ResourceType { return ResourceLogistics }

type SatisfactionRating struct {
	RequestID            int64     `json:"request_id"`
	TimelinessScore      int       `json:"timeliness_score"`
	QualityScore         int       `json:"quality_score"`
	CommunicationScore   int       `json:"communication_score"`
	ProfessionalismScore int       `json:"professionalism_score"`
	OverallScore         float64   `json:"overall_score"`
	SubmittedAt          time.Time `json:"submitted_at"`
}

// Window is the half-open interval [Start, End).
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

type ScopeSide string

const (
	SideAssignee  ScopeSide = "assignee"
	SideRequester ScopeSide = "requester"
)

// Scope restricts a computation to one division and/or department, matched on the
// assignee (fulfilling) side unless Side says otherwise.
type Scope struct {
	DivisionID   *int64    `json:"division_id,omitempty"`
	DepartmentID *int64    `json:"department_id,omitempty"`
	Side         ScopeSide `json:"side,omitempty"`
}

func (s *Scope) Empty() bool {
	return s == nil || (s.DivisionID == nil && s.DepartmentID == nil)
}

// Pick returns the side of a request the scope is matched against.
func (s *Scope) Pick(requester, assignee OrgChain) OrgChain {
	if s != nil && s.Side == SideRequester {
		return requester
	}
	return assignee
}

func (s *Scope) Matches(c OrgChain) bool {
	if s.Empty() {
		return true
	}
	if s.DivisionID != nil && (c.DivisionID == nil || *c.DivisionID != *s.DivisionID) {
		return false
	}
	if s.DepartmentID != nil && (c.DepartmentID == nil || *c.DepartmentID != *s.DepartmentID) {
		return false
	}
	return true
}

// ScorecardSnapshot is a persisted scorecard computed by the scheduler.
type ScorecardSnapshot struct {
	ID                     string          `json:"id"`
	PeriodStart            time.Time       `json:"period_start"`
	PeriodEnd              time.Time       `json:"period_end"`
	DivisionID             *int64          `json:"division_id"`
	DepartmentID           *int64          `json:"department_id"`
	ServiceEfficiencyScore float64         `json:"service_efficiency_score"`
	ComplianceScore        float64         `json:"compliance_score"`
	CostOptimizationScore  float64         `json:"cost_optimization_score"`
	SatisfactionScore      float64         `json:"satisfaction_score"`
	TotalScore             float64         `json:"total_score"`
	Rating                 string          `json:"rating"`
	IntegrationIndex       float64         `json:"integration_index"`
	SkippedRecords         int             `json:"skipped_records"`
	Breakdown              json.RawMessage `json:"breakdown,omitempty"`
	CreatedAt              time.Time       `json:"created_at"`
}

// ErrNotFound is returned by repositories when a single record lookup finds nothing.
var ErrNotFound = errors.New("not found")
