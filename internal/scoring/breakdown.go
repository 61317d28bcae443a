package scoring

import (
	"cmp"
	"math"
	"slices"

	"github.com/slatrack/backend/internal/models"
)

var (
	priorities    = []models.Priority{models.PriorityHigh, models.PriorityMedium, models.PriorityLow}
	resourceTypes = []models.ResourceType{
		models.ResourceFleet,
		models.ResourceHR,
		models.ResourceFinance,
		models.ResourceICT,
		models.ResourceLogistics,
		models.ResourceGeneral,
	}
)

// Breakdowns splits the selected requests by one attribute at a time.
// Known priorities, statuses and resource types are always present, at zero when unused.
type Breakdowns struct {
	ByPriority     map[models.Priority]int     `json:"by_priority"`
	ByStatus       map[models.Status]int       `json:"by_status"`
	ByResourceType map[models.ResourceType]int `json:"by_resource_type"`
	ByDivision     []DivisionCount             `json:"by_division"`

	// Averages over acknowledged requests, in hours from creation.
	ResponseHoursByPriority     map[models.Priority]float64     `json:"response_hours_by_priority"`
	ResponseHoursByResourceType map[models.ResourceType]float64 `json:"response_hours_by_resource_type"`

	CompletedInPeriod    int     `json:"completed_in_period"`
	DepartmentEfficiency float64 `json:"department_efficiency_score"`
}

// DivisionCount is the number of requests assigned to one division; a nil
// DivisionID collects the unassigned ones.
type DivisionCount struct {
	DivisionID *int64 `json:"division_id"`
	Requests   int    `json:"requests"`
}

func breakdowns(facts []RequestFact, w models.Window, g GeneralKpis, p Policy) Breakdowns {
	b := Breakdowns{
		ByPriority:                  make(map[models.Priority]int, len(priorities)),
		ByStatus:                    make(map[models.Status]int, len(knownStatuses)),
		ByResourceType:              make(map[models.ResourceType]int, len(resourceTypes)),
		ByDivision:                  []DivisionCount{},
		ResponseHoursByPriority:     make(map[models.Priority]float64, len(priorities)),
		ResponseHoursByResourceType: make(map[models.ResourceType]float64, len(resourceTypes)),
	}
	for _, pr := range priorities {
		b.ByPriority[pr] = 0
	}
	for st := range knownStatuses {
		b.ByStatus[st] = 0
	}
	for _, rt := range resourceTypes {
		b.ByResourceType[rt] = 0
	}

	byPriority := map[models.Priority]*mean{}
	byResource := map[models.ResourceType]*mean{}
	divisions := map[int64]int{}
	unassigned := 0

	for _, f := range facts {
		b.ByPriority[f.Priority]++
		b.ByStatus[f.Status]++
		b.ByResourceType[f.ResourceType]++
		if id := f.Assignee.DivisionID; id != nil {
			divisions[*id]++
		} else {
			unassigned++
		}
		if f.CompletedAt != nil && w.Contains(*f.CompletedAt) {
			b.CompletedInPeriod++
		}
		if f.ResponseHours != nil {
			meanFor(byPriority, f.Priority).add(*f.ResponseHours)
			meanFor(byResource, f.ResourceType).add(*f.ResponseHours)
		}
	}

	for _, pr := range priorities {
		b.ResponseHoursByPriority[pr] = 0
	}
	for pr, m := range byPriority {
		b.ResponseHoursByPriority[pr] = m.value()
	}
	for _, rt := range resourceTypes {
		b.ResponseHoursByResourceType[rt] = 0
	}
	for rt, m := range byResource {
		b.ResponseHoursByResourceType[rt] = m.value()
	}

	for id, n := range divisions {
		id := id
		b.ByDivision = append(b.ByDivision, DivisionCount{DivisionID: &id, Requests: n})
	}
	slices.SortFunc(b.ByDivision, func(a, c DivisionCount) int {
		return cmp.Compare(*a.DivisionID, *c.DivisionID)
	})
	if unassigned > 0 {
		b.ByDivision = append(b.ByDivision, DivisionCount{Requests: unassigned})
	}

	b.DepartmentEfficiency = departmentEfficiency(g, p)
	return b
}

func meanFor[K comparable](m map[K]*mean, k K) *mean {
	v, ok := m[k]
	if !ok {
		v = &mean{}
		m[k] = v
	}
	return v
}

// departmentEfficiency is the geometric mean of the completion rate, the SLA
// compliance rate and satisfaction rescaled from 1..5 to 0..100. Unrated
// requests leave satisfaction at the neutral score.
func departmentEfficiency(g GeneralKpis, p Policy) float64 {
	if g.TotalRequests == 0 {
		return 0
	}
	completion := 100 * float64(g.CompletedRequests) / float64(g.TotalRequests)
	satisfaction := p.NeutralScore
	if g.RatedRequests > 0 {
		satisfaction = clampPercent((g.CustomerSatisfactionScore - 1) / 4 * 100)
	}
	product := completion * g.SLAComplianceRate * satisfaction
	if product <= 0 {
		return 0
	}
	return round2(clampPercent(math.Cbrt(product)))
}
