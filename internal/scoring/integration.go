package scoring

import (
	"github.com/slatrack/backend/internal/models"
)

type IntegrationIndexResult struct {
	Window models.Window `json:"window"`
	Scope  *models.Scope `json:"scope,omitempty"`

	CoordinationEffectiveness float64 `json:"coordination_effectiveness"`
	ProcessAlignment          float64 `json:"process_alignment"`
	ReportingTimeliness       float64 `json:"reporting_timeliness"`
	CollaborationScore        float64 `json:"collaboration_score"`
	IntegrationIndex          float64 `json:"integration_index"`

	CrossDepartmentRequests int `json:"cross_department_requests"`
	AlignmentEligible       int `json:"alignment_eligible"`
	ReportingEligible       int `json:"reporting_eligible"`
	CollaborationEligible   int `json:"collaboration_eligible"`

	SkippedRecords int `json:"skipped_records"`
}

// ComputeIntegrationIndex scores how well departments work across their boundaries.
// Every component is a percentage that falls to 0 when nothing is eligible, and the
// index is their unweighted mean.
func ComputeIntegrationIndex(facts []RequestFact, w models.Window, scope *models.Scope, p Policy) (IntegrationIndexResult, error) {
	if err := ValidateWindow(w, p); err != nil {
		return IntegrationIndexResult{}, err
	}
	res := IntegrationIndexResult{Window: w, Scope: scope}
	graceHours := p.ReportingGrace.Hours()

	var coordinated, aligned, timely, collaborated int
	for _, f := range selectFacts(facts, w, scope) {
		if crossDepartment(f.Requester, f.Assignee) && f.ResponseEligible {
			res.CrossDepartmentRequests++
			if f.RespondedWithinSLA {
				coordinated++
			}
		}

		if f.Status.Closed() {
			res.AlignmentEligible++
			if f.Completed && f.Acknowledged && f.AckBeforeCompletion && !f.Reopened && !f.Rerouted {
				aligned++
			}
		}

		if f.Completed && f.RecordingLagHours != nil {
			res.ReportingEligible++
			if *f.RecordingLagHours <= graceHours {
				timely++
			}
		}

		stalled := !f.Status.Closed() && f.SLAState == SLABreached
		if chainsDiffer(f.Requester, f.Assignee) && (f.Status.Closed() || stalled) {
			res.CollaborationEligible++
			if f.Completed {
				collaborated++
			}
		}
	}

	res.CoordinationEffectiveness = rate(coordinated, res.CrossDepartmentRequests)
	res.ProcessAlignment = rate(aligned, res.AlignmentEligible)
	res.ReportingTimeliness = rate(timely, res.ReportingEligible)
	res.CollaborationScore = rate(collaborated, res.CollaborationEligible)
	res.IntegrationIndex = round2(clampPercent((res.CoordinationEffectiveness +
		res.ProcessAlignment +
		res.ReportingTimeliness +
		res.CollaborationScore) / 4))
	return res, nil
}

// crossDepartment reports whether both sides are known and sit in different
// divisions or departments.
func crossDepartment(requester, assignee models.OrgChain) bool {
	if requester.DivisionID == nil || assignee.DivisionID == nil {
		return false
	}
	return differ(requester.DivisionID, assignee.DivisionID) ||
		differ(requester.DepartmentID, assignee.DepartmentID)
}

// chainsDiffer is crossDepartment extended to the sub-department level.
func chainsDiffer(requester, assignee models.OrgChain) bool {
	if crossDepartment(requester, assignee) {
		return true
	}
	if requester.DivisionID == nil || assignee.DivisionID == nil {
		return false
	}
	return differ(requester.SubDepartmentID, assignee.SubDepartmentID)
}

func differ(a, b *int64) bool {
	switch {
	case a == nil && b == nil:
		return false
	case a == nil || b == nil:
		return true
	}
	return *a != *b
}
