package scoring

import (
	"fmt"
	"math"
	"time"

	"github.com/slatrack/backend/internal/models"
)

// Weights of the four scorecard dimensions. They must sum to 1.
type Weights struct {
	ServiceEfficiency float64 `json:"service_efficiency"`
	Compliance        float64 `json:"compliance"`
	CostOptimization  float64 `json:"cost_optimization"`
	Satisfaction      float64 `json:"satisfaction"`
}

var DefaultWeights = Weights{
	ServiceEfficiency: 0.25,
	Compliance:        0.30,
	CostOptimization:  0.20,
	Satisfaction:      0.25,
}

func (w Weights) Sum() float64 {
	return w.ServiceEfficiency + w.Compliance + w.CostOptimization + w.Satisfaction
}

func (w Weights) Validate() error {
	for _, v := range []float64{w.ServiceEfficiency, w.Compliance, w.CostOptimization, w.Satisfaction} {
		if v < 0 || math.IsNaN(v) {
			return fmt.Errorf("scoring weights must be non-negative, got %+v", w)
		}
	}
	if math.Abs(w.Sum()-1) > 1e-9 {
		return fmt.Errorf("scoring weights must sum to 1, got %.4f", w.Sum())
	}
	return nil
}

// Thresholds are the inclusive lower bounds of each rating bucket above UNSATISFACTORY.
type Thresholds struct {
	Outstanding      float64 `json:"outstanding"`
	VeryGood         float64 `json:"very_good"`
	Good             float64 `json:"good"`
	NeedsImprovement float64 `json:"needs_improvement"`
}

var DefaultThresholds = Thresholds{
	Outstanding:      90,
	VeryGood:         75,
	Good:             60,
	NeedsImprovement: 40,
}

func (t Thresholds) Validate() error {
	if !(t.Outstanding > t.VeryGood && t.VeryGood > t.Good && t.Good > t.NeedsImprovement) {
		return fmt.Errorf("rating thresholds must be strictly decreasing, got %+v", t)
	}
	return nil
}

const (
	// DefaultNeutralScore stands in for a dimension with no data to judge.
	DefaultNeutralScore = 50.0
	// DefaultReportingGrace is how long after completion the completion may be recorded and still count as timely.
	DefaultReportingGrace = 24 * time.Hour
	// DefaultWarningFraction is the remaining share of the SLA target below which an open request is in WARNING.
	DefaultWarningFraction = 0.2
	DefaultFleetSize       = 10
	// DefaultFuelBenchmark is the km/l figure that earns a full fuel-efficiency score.
	DefaultFuelBenchmark = 8.0
	DefaultMaxRecords    = 50000
	hoursPerWorkday      = 8.0
)

// Policy gathers every tunable of the engine. The zero value is not usable; start from DefaultPolicy.
type Policy struct {
	Weights          Weights
	Thresholds       Thresholds
	ExcludedStatuses []models.Status
	NeutralScore     float64
	ReportingGrace   time.Duration
	WarningFraction  float64
	FleetSize        int
	FuelBenchmark    float64
	// MaxRecords caps how many requests one query may evaluate; 0 disables the cap.
	MaxRecords int
	// MaxWindow caps the span of a window; 0 disables the cap.
	MaxWindow time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		Weights:          DefaultWeights,
		Thresholds:       DefaultThresholds,
		ExcludedStatuses: []models.Status{models.StatusRejected, models.StatusCancelled},
		NeutralScore:     DefaultNeutralScore,
		ReportingGrace:   DefaultReportingGrace,
		WarningFraction:  DefaultWarningFraction,
		FleetSize:        DefaultFleetSize,
		FuelBenchmark:    DefaultFuelBenchmark,
		MaxRecords:       DefaultMaxRecords,
		MaxWindow:        366 * 24 * time.Hour,
	}
}

func (p Policy) Validate() error {
	if err := p.Weights.Validate(); err != nil {
		return err
	}
	if err := p.Thresholds.Validate(); err != nil {
		return err
	}
	if p.NeutralScore < 0 || p.NeutralScore > 100 {
		return fmt.Errorf("neutral score must be within [0,100], got %v", p.NeutralScore)
	}
	if p.WarningFraction < 0 || p.WarningFraction > 1 {
		return fmt.Errorf("warning fraction must be within [0,1], got %v", p.WarningFraction)
	}
	return nil
}

func (p Policy) excluded(s models.Status) bool {
	for _, st := range p.ExcludedStatuses {
		if st == s {
			return true
		}
	}
	return false
}
