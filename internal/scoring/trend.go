package scoring

import (
	"github.com/slatrack/backend/internal/models"
)

type TrendPoint struct {
	Window                    models.Window `json:"window"`
	Requests                  int           `json:"requests"`
	SLAComplianceRate         float64       `json:"sla_compliance_rate"`
	ServiceFulfillmentRate    float64       `json:"service_fulfillment_rate"`
	CustomerSatisfactionScore float64       `json:"customer_satisfaction_score"`
	TotalScore                float64       `json:"total_score"`
	Rating                    Rating        `json:"rating"`
}

// Trend aggregates each granularity bucket of w separately.
func Trend(facts []RequestFact, w models.Window, g Granularity, scope *models.Scope, p Policy) ([]TrendPoint, error) {
	if err := ValidateWindow(w, p); err != nil {
		return nil, err
	}
	sel := selectFacts(facts, w, scope)
	buckets := Buckets(w, g)
	points := make([]TrendPoint, 0, len(buckets))
	for _, b := range buckets {
		k, err := Aggregate(sel, b, scope, p)
		if err != nil {
			return nil, err
		}
		sc := ComputeScorecard(k, p)
		points = append(points, TrendPoint{
			Window:                    b,
			Requests:                  k.General.TotalRequests,
			SLAComplianceRate:         k.General.SLAComplianceRate,
			ServiceFulfillmentRate:    k.General.ServiceFulfillmentRate,
			CustomerSatisfactionScore: k.General.CustomerSatisfactionScore,
			TotalScore:                sc.TotalScore,
			Rating:                    sc.Rating,
		})
	}
	return points, nil
}
