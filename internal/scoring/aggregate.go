package scoring

import (
	"cmp"
	"math"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/slatrack/backend/internal/models"
)

// KpiSet is the reduction of every fact inside one window and scope.
// Rates are percentages in [0,100] rounded to two decimals; a set built from
// zero facts has every value at zero.
type KpiSet struct {
	Window     models.Window    `json:"window"`
	Scope      *models.Scope    `json:"scope,omitempty"`
	General    GeneralKpis      `json:"general"`
	Cost       CostKpis         `json:"cost"`
	Fleet      FleetKpis        `json:"fleet"`
	HR         HRKpis           `json:"hr"`
	Finance    FinanceKpis      `json:"finance"`
	ICT        ICTKpis          `json:"ict"`
	Logistics  LogisticsKpis    `json:"logistics"`
	SLAStates  map[SLAState]int `json:"sla_states"`
	Breakdowns Breakdowns       `json:"breakdowns"`

	// SkippedRecords is filled in by callers that extracted the facts.
	SkippedRecords int `json:"skipped_records"`
}

type GeneralKpis struct {
	TotalRequests         int `json:"total_requests"`
	EligibleRequests      int `json:"eligible_requests"`
	CompliantRequests     int `json:"compliant_requests"`
	MissingTargetRequests int `json:"missing_target_requests"`
	ExcludedRequests      int `json:"excluded_requests"`
	CompletedRequests     int `json:"completed_requests"`
	RatedRequests         int `json:"rated_requests"`

	SLAComplianceRate         float64 `json:"sla_compliance_rate"`
	ServiceFulfillmentRate    float64 `json:"service_fulfillment_rate"`
	CustomerSatisfactionScore float64 `json:"customer_satisfaction_score"`
	ResponseComplianceRate    float64 `json:"response_compliance_rate"`

	// TimedCompletions counts completed requests with a completion target;
	// the two averages below are taken over them.
	TimedCompletions   int     `json:"timed_completions"`
	AvgCompletionHours float64 `json:"avg_completion_hours"`
	AvgTargetHours     float64 `json:"avg_target_hours"`

	AvgTimeliness      float64 `json:"avg_timeliness"`
	AvgQuality         float64 `json:"avg_quality"`
	AvgCommunication   float64 `json:"avg_communication"`
	AvgProfessionalism float64 `json:"avg_professionalism"`
}

// CostKpis covers requests carrying both a positive estimate and an actual cost.
type CostKpis struct {
	CostedRequests   int             `json:"costed_requests"`
	WithinBudgetRate float64         `json:"within_budget_rate"`
	TotalEstimate    decimal.Decimal `json:"total_estimate"`
	TotalActual      decimal.Decimal `json:"total_actual"`
	BudgetVariance   decimal.Decimal `json:"budget_variance"`
	CostPerRequest   decimal.Decimal `json:"cost_per_request"`
}

type FleetKpis struct {
	Requests               int     `json:"requests"`
	TripCompletionRate     float64 `json:"trip_completion_rate"`
	BreakdownCount         int     `json:"breakdown_count"`
	BreakdownRate          float64 `json:"breakdown_rate"`
	FuelSamples            int     `json:"fuel_samples"`
	FuelEfficiencyKmPerL   float64 `json:"fuel_efficiency_km_per_liter"`
	AvgTurnaroundHours     float64 `json:"avg_turnaround_hours"`
	VehicleUtilizationRate float64 `json:"vehicle_utilization_rate"`
}

type HRKpis struct {
	Requests              int     `json:"requests"`
	DeploymentFillingRate float64 `json:"deployment_filling_rate"`
	OvertimeSamples       int     `json:"overtime_samples"`
	OvertimeUsageRate     float64 `json:"overtime_usage_rate"`
	AvgResponseHours      float64 `json:"avg_response_hours"`
}

type FinanceKpis struct {
	Requests                int             `json:"requests"`
	PaymentAccuracyRate     float64         `json:"payment_accuracy_rate"`
	DocumentCompletenessAvg float64         `json:"document_completeness_avg"`
	SOPComplianceRate       float64         `json:"sop_compliance_rate"`
	AvgProcessingDays       float64         `json:"avg_processing_days"`
	TotalAmount             decimal.Decimal `json:"total_amount"`
}

type ICTKpis struct {
	Requests             int     `json:"requests"`
	ResolutionRate       float64 `json:"resolution_rate"`
	ReopenedRate         float64 `json:"reopened_rate"`
	EscalationRate       float64 `json:"escalation_rate"`
	AvgResolutionMinutes float64 `json:"avg_resolution_minutes"`
	AvgResponseHours     float64 `json:"avg_response_hours"`
}

type LogisticsKpis struct {
	Requests                int     `json:"requests"`
	QuantitySamples         int     `json:"quantity_samples"`
	StockFulfillmentRate    float64 `json:"stock_fulfillment_rate"`
	StockAvailabilityRate   float64 `json:"stock_availability_rate"`
	OnTimeDeliveryRate      float64 `json:"on_time_delivery_rate"`
	RequisitionAccuracyRate float64 `json:"requisition_accuracy_rate"`
	AvgDeliveryDays         float64 `json:"avg_delivery_days"`
}

// Aggregate reduces the facts created inside w and matching scope into a KpiSet.
// The input slice is not modified and its order does not affect the result.
func Aggregate(facts []RequestFact, w models.Window, scope *models.Scope, p Policy) (KpiSet, error) {
	if err := ValidateWindow(w, p); err != nil {
		return KpiSet{}, err
	}
	sel := selectFacts(facts, w, scope)

	k := KpiSet{
		Window:    w,
		Scope:     scope,
		General:   general(sel),
		Cost:      cost(sel),
		Fleet:     fleet(sel, w, p),
		HR:        hr(sel),
		Finance:   finance(sel),
		ICT:       ict(sel),
		Logistics: logistics(sel),
		SLAStates: slaStates(sel),
	}
	k.Breakdowns = breakdowns(sel, w, k.General, p)
	return k, nil
}

// selectFacts returns the facts inside w and scope ordered by request id, then creation time.
func selectFacts(facts []RequestFact, w models.Window, scope *models.Scope) []RequestFact {
	out := make([]RequestFact, 0, len(facts))
	for _, f := range facts {
		if !w.Contains(f.CreatedAt) {
			continue
		}
		if !scope.Matches(scope.Pick(f.Requester, f.Assignee)) {
			continue
		}
		out = append(out, f)
	}
	slices.SortStableFunc(out, func(a, b RequestFact) int {
		if c := cmp.Compare(a.RequestID, b.RequestID); c != 0 {
			return c
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out
}

func general(facts []RequestFact) GeneralKpis {
	var g GeneralKpis
	var flagged, flagTrue, respEligible, respOK int
	var sumOverall, sumCompletion, sumTarget float64
	var dims [4]mean

	for _, f := range facts {
		g.TotalRequests++
		if f.Excluded {
			g.ExcludedRequests++
		}
		if f.MissingTarget {
			g.MissingTargetRequests++
		}
		if f.SLAEligible {
			g.EligibleRequests++
			if f.WithinSLA {
				g.CompliantRequests++
			}
		}
		if f.Completed {
			g.CompletedRequests++
			if f.SLAEligible {
				g.TimedCompletions++
				sumCompletion += f.ElapsedHours
				sumTarget += f.TargetHours
			}
		}
		if f.HasDomainFlag {
			flagged++
			if f.DomainFlag {
				flagTrue++
			}
		}
		if f.ResponseEligible {
			respEligible++
			if f.RespondedWithinSLA {
				respOK++
			}
		}
		if f.Rated {
			g.RatedRequests++
			sumOverall += f.Rating.Overall
			dims[0].addScore(f.Rating.Timeliness)
			dims[1].addScore(f.Rating.Quality)
			dims[2].addScore(f.Rating.Communication)
			dims[3].addScore(f.Rating.Professionalism)
		}
	}

	g.SLAComplianceRate = rate(g.CompliantRequests, g.EligibleRequests)
	g.ServiceFulfillmentRate = rate(flagTrue, flagged)
	g.ResponseComplianceRate = rate(respOK, respEligible)
	if g.RatedRequests > 0 {
		g.CustomerSatisfactionScore = round2(math.Min(5, math.Max(0, sumOverall/float64(g.RatedRequests))))
	}
	if g.TimedCompletions > 0 {
		g.AvgCompletionHours = round2(sumCompletion / float64(g.TimedCompletions))
		g.AvgTargetHours = round2(sumTarget / float64(g.TimedCompletions))
	}
	g.AvgTimeliness = dims[0].value()
	g.AvgQuality = dims[1].value()
	g.AvgCommunication = dims[2].value()
	g.AvgProfessionalism = dims[3].value()
	return g
}

func cost(facts []RequestFact) CostKpis {
	c := CostKpis{
		TotalEstimate:  decimal.Zero,
		TotalActual:    decimal.Zero,
		BudgetVariance: decimal.Zero,
		CostPerRequest: decimal.Zero,
	}
	var within int
	for _, f := range facts {
		if !f.HasCost || f.Excluded {
			continue
		}
		c.CostedRequests++
		c.TotalEstimate = c.TotalEstimate.Add(f.CostEstimate)
		c.TotalActual = c.TotalActual.Add(f.ActualCost)
		if f.ActualCost.LessThanOrEqual(f.CostEstimate) {
			within++
		}
	}
	if c.CostedRequests == 0 {
		return c
	}
	c.WithinBudgetRate = rate(within, c.CostedRequests)
	c.BudgetVariance = c.TotalActual.Sub(c.TotalEstimate)
	c.CostPerRequest = c.TotalActual.Div(decimal.NewFromInt(int64(c.CostedRequests))).Round(2)
	return c
}

func fleet(facts []RequestFact, w models.Window, p Policy) FleetKpis {
	var k FleetKpis
	var trips int
	var km, fuel float64
	var turnaround mean
	for _, f := range facts {
		if f.ResourceType != models.ResourceFleet {
			continue
		}
		k.Requests++
		if f.Fleet == nil {
			continue
		}
		if f.Fleet.TripCompleted {
			trips++
		}
		if f.Fleet.Breakdown {
			k.BreakdownCount++
		}
		if f.Fleet.FuelUsed != nil && f.Fleet.KmTraveled != nil && *f.Fleet.FuelUsed > 0 {
			k.FuelSamples++
			fuel += *f.Fleet.FuelUsed
			km += *f.Fleet.KmTraveled
		}
		if f.Fleet.TurnaroundHours != nil {
			turnaround.add(*f.Fleet.TurnaroundHours)
		}
	}
	k.TripCompletionRate = rate(trips, k.Requests)
	k.BreakdownRate = rate(k.BreakdownCount, k.Requests)
	if fuel > 0 {
		k.FuelEfficiencyKmPerL = round2(math.Max(0, km/fuel))
	}
	k.AvgTurnaroundHours = turnaround.value()
	if p.FleetSize > 0 {
		days := math.Max(1, math.Ceil(w.End.Sub(w.Start).Hours()/24))
		k.VehicleUtilizationRate = round2(clampPercent(100 * float64(trips) / (float64(p.FleetSize) * days)))
	}
	return k
}

func hr(facts []RequestFact) HRKpis {
	var k HRKpis
	var filled int
	var overtime, scheduled float64
	var response mean
	for _, f := range facts {
		if f.ResourceType != models.ResourceHR {
			continue
		}
		k.Requests++
		if f.ResponseHours != nil {
			response.add(*f.ResponseHours)
		}
		if f.HR == nil {
			continue
		}
		if f.HR.Filled {
			filled++
		}
		if f.HR.OvertimeHours != nil && f.HR.ScheduledHours != nil && *f.HR.ScheduledHours > 0 {
			k.OvertimeSamples++
			overtime += math.Max(0, *f.HR.OvertimeHours)
			scheduled += *f.HR.ScheduledHours
		}
	}
	k.DeploymentFillingRate = rate(filled, k.Requests)
	if scheduled > 0 {
		k.OvertimeUsageRate = round2(clampPercent(100 * overtime / scheduled))
	}
	k.AvgResponseHours = response.value()
	return k
}

func finance(facts []RequestFact) FinanceKpis {
	k := FinanceKpis{TotalAmount: decimal.Zero}
	var accurate, sop int
	var completeness, processing mean
	for _, f := range facts {
		if f.ResourceType != models.ResourceFinance {
			continue
		}
		k.Requests++
		if f.Finance == nil {
			continue
		}
		if f.Finance.Accurate {
			accurate++
		}
		if f.Finance.SOPCompliant {
			sop++
		}
		if f.Finance.CompletenessScore != nil {
			completeness.add(*f.Finance.CompletenessScore)
		}
		if f.Finance.ProcessingDays != nil {
			processing.add(*f.Finance.ProcessingDays)
		}
		if f.Finance.Amount.Valid {
			k.TotalAmount = k.TotalAmount.Add(f.Finance.Amount.Decimal)
		}
	}
	k.PaymentAccuracyRate = rate(accurate, k.Requests)
	k.SOPComplianceRate = rate(sop, k.Requests)
	k.DocumentCompletenessAvg = completeness.value()
	k.AvgProcessingDays = processing.value()
	return k
}

func ict(facts []RequestFact) ICTKpis {
	var k ICTKpis
	var resolved, reopened, escalated int
	var resolution, response mean
	for _, f := range facts {
		if f.ResourceType != models.ResourceICT {
			continue
		}
		k.Requests++
		if f.ResponseHours != nil {
			response.add(*f.ResponseHours)
		}
		if f.Completed && !f.Reopened {
			resolved++
		}
		if f.ICT == nil {
			continue
		}
		if f.ICT.Reopened {
			reopened++
		}
		if f.ICT.Escalated {
			escalated++
		}
		if f.ICT.ResolutionMinutes != nil {
			resolution.add(*f.ICT.ResolutionMinutes)
		}
	}
	k.ResolutionRate = rate(resolved, k.Requests)
	k.ReopenedRate = rate(reopened, k.Requests)
	k.EscalationRate = rate(escalated, k.Requests)
	k.AvgResolutionMinutes = resolution.value()
	k.AvgResponseHours = response.value()
	return k
}

func logistics(facts []RequestFact) LogisticsKpis {
	var k LogisticsKpis
	var fulfilled, available, accurate, deliveredTimed, onTime int
	var delivery mean
	for _, f := range facts {
		if f.ResourceType != models.ResourceLogistics {
			continue
		}
		k.Requests++
		if f.Completed && f.SLAEligible {
			deliveredTimed++
			if f.WithinSLA {
				onTime++
			}
		}
		if f.Logistics == nil {
			continue
		}
		if f.HasDomainFlag {
			k.QuantitySamples++
			if f.DomainFlag {
				fulfilled++
			}
		}
		if f.Logistics.StockAvailable {
			available++
		}
		if f.Logistics.RequisitionAccurate {
			accurate++
		}
		if f.Logistics.DeliveryDays != nil {
			delivery.add(*f.Logistics.DeliveryDays)
		}
	}
	k.StockFulfillmentRate = rate(fulfilled, k.Requests)
	k.StockAvailabilityRate = rate(available, k.Requests)
	k.RequisitionAccuracyRate = rate(accurate, k.Requests)
	k.OnTimeDeliveryRate = rate(onTime, deliveredTimed)
	k.AvgDeliveryDays = delivery.value()
	return k
}

func slaStates(facts []RequestFact) map[SLAState]int {
	out := map[SLAState]int{
		SLAOnTrack:  0,
		SLAWarning:  0,
		SLABreached: 0,
		SLAMet:      0,
		SLAMissed:   0,
		SLAUnknown:  0,
		SLAExcluded: 0,
	}
	for _, f := range facts {
		out[f.SLAState]++
	}
	return out
}

type mean struct {
	sum float64
	n   int
}

func (m *mean) add(v float64) {
	m.sum += v
	m.n++
}

// addScore skips 0, which marks a rating dimension left blank.
func (m *mean) addScore(v float64) {
	if v == 0 {
		return
	}
	m.add(v)
}

func (m mean) value() float64 {
	if m.n == 0 {
		return 0
	}
	return round2(m.sum / float64(m.n))
}

// rate is 100·num/den clamped to [0,100]; an empty denominator yields 0.
func rate(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return round2(clampPercent(100 * float64(num) / float64(den)))
}

func clampPercent(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Min(100, math.Max(0, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
