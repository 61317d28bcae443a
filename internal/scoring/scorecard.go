package scoring

import (
	"math"

	"github.com/slatrack/backend/internal/models"
)

type Rating string

const (
	RatingOutstanding      Rating = "OUTSTANDING"
	RatingVeryGood         Rating = "VERY_GOOD"
	RatingGood             Rating = "GOOD"
	RatingNeedsImprovement Rating = "NEEDS_IMPROVEMENT"
	RatingUnsatisfactory   Rating = "UNSATISFACTORY"
)

// Rank orders ratings from UNSATISFACTORY (0) to OUTSTANDING (4).
func (r Rating) Rank() int {
	switch r {
	case RatingOutstanding:
		return 4
	case RatingVeryGood:
		return 3
	case RatingGood:
		return 2
	case RatingNeedsImprovement:
		return 1
	default:
		return 0
	}
}

// RatingFor maps a total score to its bucket. Lower bounds are inclusive.
func RatingFor(total float64, t Thresholds) Rating {
	switch {
	case total >= t.Outstanding:
		return RatingOutstanding
	case total >= t.VeryGood:
		return RatingVeryGood
	case total >= t.Good:
		return RatingGood
	case total >= t.NeedsImprovement:
		return RatingNeedsImprovement
	default:
		return RatingUnsatisfactory
	}
}

// Dimensions are the four scorecard scores, each in [0,100].
type Dimensions struct {
	ServiceEfficiency float64 `json:"service_efficiency_score"`
	Compliance        float64 `json:"compliance_score"`
	CostOptimization  float64 `json:"cost_optimization_score"`
	Satisfaction      float64 `json:"satisfaction_score"`
}

// Total is the weighted sum clamped to [0,100].
func (d Dimensions) Total(w Weights) float64 {
	t := w.ServiceEfficiency*d.ServiceEfficiency +
		w.Compliance*d.Compliance +
		w.CostOptimization*d.CostOptimization +
		w.Satisfaction*d.Satisfaction
	return clampPercent(t)
}

// CostSignal is one input to the cost optimisation dimension.
type CostSignal struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

type ScorecardResult struct {
	Window models.Window `json:"window"`
	Scope  *models.Scope `json:"scope,omitempty"`
	Dimensions
	TotalScore  float64      `json:"total_score"`
	Rating      Rating       `json:"rating"`
	Weights     Weights      `json:"weights"`
	CostSignals []CostSignal `json:"cost_signals"`
	// NoActivity is set when the window held no requests at all.
	NoActivity     bool `json:"no_activity"`
	SkippedRecords int  `json:"skipped_records"`
}

// ComputeScorecard combines a KpiSet into the weighted four-dimension scorecard.
// A KpiSet without requests produces the all-zero UNSATISFACTORY scorecard.
func ComputeScorecard(k KpiSet, p Policy) ScorecardResult {
	res := ScorecardResult{
		Window:         k.Window,
		Scope:          k.Scope,
		Weights:        p.Weights,
		CostSignals:    []CostSignal{},
		SkippedRecords: k.SkippedRecords,
	}
	if k.General.TotalRequests == 0 {
		res.NoActivity = true
		res.Rating = RatingFor(0, p.Thresholds)
		return res
	}

	signals := costSignals(k, p)
	res.CostSignals = signals
	res.Dimensions = Dimensions{
		ServiceEfficiency: round2(serviceEfficiency(k.General, p)),
		Compliance:        round2(compliance(k.General)),
		CostOptimization:  round2(costOptimization(signals, p)),
		Satisfaction:      round2(clampPercent(k.General.CustomerSatisfactionScore * 20)),
	}
	res.TotalScore = round2(res.Dimensions.Total(p.Weights))
	res.Rating = RatingFor(res.TotalScore, p.Thresholds)
	return res
}

func serviceEfficiency(g GeneralKpis, p Policy) float64 {
	switch {
	case g.TimedCompletions == 0:
		return p.NeutralScore
	case g.AvgCompletionHours <= 0:
		return 100
	}
	return clampPercent(100 * math.Min(1, g.AvgTargetHours/g.AvgCompletionHours))
}

// compliance discounts the SLA compliance rate by the share of requests that had no target.
func compliance(g GeneralKpis) float64 {
	base := g.TotalRequests - g.ExcludedRequests
	if base <= 0 {
		return 0
	}
	missing := float64(g.MissingTargetRequests) / float64(base)
	return clampPercent(g.SLAComplianceRate * (1 - missing))
}

func costSignals(k KpiSet, p Policy) []CostSignal {
	out := []CostSignal{}
	if k.Cost.CostedRequests > 0 {
		out = append(out, CostSignal{Name: "within_budget", Score: k.Cost.WithinBudgetRate})
	}
	if k.Fleet.FuelSamples > 0 && p.FuelBenchmark > 0 {
		out = append(out, CostSignal{
			Name:  "fuel_efficiency",
			Score: round2(100 * math.Min(1, k.Fleet.FuelEfficiencyKmPerL/p.FuelBenchmark)),
		})
	}
	if k.HR.OvertimeSamples > 0 {
		out = append(out, CostSignal{Name: "overtime", Score: round2(clampPercent(100 - k.HR.OvertimeUsageRate))})
	}
	if k.Logistics.QuantitySamples > 0 {
		out = append(out, CostSignal{Name: "stock_fulfillment", Score: k.Logistics.StockFulfillmentRate})
	}
	return out
}

func costOptimization(signals []CostSignal, p Policy) float64 {
	if len(signals) == 0 {
		return p.NeutralScore
	}
	var sum float64
	for _, s := range signals {
		sum += s.Score
	}
	return clampPercent(sum / float64(len(signals)))
}
