// Package report turns an engine trace into the serializable simulation result.
package report

import (
	"approval-routing/internal/engine"
	"approval-routing/pkg/models"
)

// Report is the stable result shape returned to callers.
type Report struct {
	AppliedStages []StageReport `json:"appliedStages"`
	Warnings      []string      `json:"warnings"`
}

// StageReport describes one stage of the simulated workflow.
type StageReport struct {
	Name         string              `json:"name"`
	Skipped      bool                `json:"skipped"`
	Reason       string              `json:"reason,omitempty"`
	Approvers    []ApproverReport    `json:"approvers,omitempty"`
	ApprovalRule models.ApprovalRule `json:"approvalRule,omitempty"`
	SLAHours     int                 `json:"slaHours,omitempty"`
	EscalateTo   *models.Identity    `json:"escalateTo,omitempty"`
	Notes        []string            `json:"notes,omitempty"`
}

// ApproverReport is an effective approver, with the principal it replaced if delegated.
type ApproverReport struct {
	Type          models.IdentityType `json:"type"`
	Ref           string              `json:"ref"`
	DelegatedFrom *models.Identity    `json:"delegatedFrom,omitempty"`
	RuleID        string              `json:"ruleId,omitempty"`
}

// Build formats trace. Skipped stages carry only their name and reason.
func Build(trace engine.Trace) Report {
	r := Report{
		AppliedStages: make([]StageReport, 0, len(trace.Stages)),
		Warnings:      append(make([]string, 0, len(trace.Warnings)), trace.Warnings...),
	}

	for _, st := range trace.Stages {
		sr := StageReport{
			Name:    st.Stage.Name,
			Skipped: !st.Applied,
			Reason:  st.Reason,
		}
		if st.Applied {
			sr.Approvers = make([]ApproverReport, 0, len(st.Approvers))
			for _, a := range st.Approvers {
				sr.Approvers = append(sr.Approvers, ApproverReport{
					Type:          a.Type,
					Ref:           a.Ref,
					DelegatedFrom: a.DelegatedFrom,
					RuleID:        a.RuleID,
				})
			}
			sr.ApprovalRule = st.Stage.ApprovalRule
			sr.SLAHours = st.Stage.SLAHours
			sr.EscalateTo = st.EscalateTo
			sr.Notes = st.Notes
		}
		r.AppliedStages = append(r.AppliedStages, sr)
	}
	return r
}

// Counts returns how many stages were applied and skipped.
func (r Report) Counts() (applied, skipped int) {
	for _, st := range r.AppliedStages {
		if st.Skipped {
			skipped++
		} else {
			applied++
		}
	}
	return applied, skipped
}
