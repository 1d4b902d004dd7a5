// Package engine walks an approval workflow against a document and previews
// which stages would apply and who would approve each of them.
//
// Every stage is evaluated on its own merits. A live approval runtime would
// stop at the first pending stage; the preview deliberately shows the full
// exposure of the document instead.
package engine

import (
	"fmt"
	"time"

	"approval-routing/internal/approver"
	"approval-routing/internal/condition"
	"approval-routing/internal/delegation"
	"approval-routing/pkg/models"
)

// ReasonConditionNotMet is recorded on stages whose entry condition is false.
const ReasonConditionNotMet = "condition not met"

// Delegator resolves the effective delegate of a principal.
type Delegator interface {
	Resolve(principal models.Identity, ctx delegation.Context) delegation.Resolution
}

// Input is the document being routed.
type Input struct {
	EntityType string
	Payload    any
	// At pins delegation lookups to an instant; nil uses the delegator's clock.
	At *time.Time
	// Project narrows project-scoped delegations.
	Project string
}

// Assignment is one effective approver of an applied stage.
type Assignment struct {
	models.Identity
	// DelegatedFrom is the original principal when a delegation replaced it.
	DelegatedFrom *models.Identity
	// RuleID is the delegation rule that produced this assignment.
	RuleID string
}

// StageResult is the engine's record of one stage.
type StageResult struct {
	Stage      models.Stage
	Applied    bool
	Reason     string
	Approvers  []Assignment
	EscalateTo *models.Identity
	Notes      []string
}

// Trace is the full outcome of a simulation, in stage order.
type Trace struct {
	WorkflowID string
	Version    int
	Stages     []StageResult
	Warnings   []string
}

// Engine simulates workflows. It holds no per-call state and is safe for concurrent use.
type Engine struct {
	delegator Delegator
}

// New returns an Engine. A nil delegator disables delegation substitution.
func New(delegator Delegator) *Engine {
	return &Engine{delegator: delegator}
}

// Simulate evaluates every stage of wf for in.
func (e *Engine) Simulate(wf models.Workflow, in Input) Trace {
	trace := Trace{
		WorkflowID: wf.ID,
		Version:    wf.Version,
		Stages:     make([]StageResult, 0, len(wf.Stages)),
		Warnings:   make([]string, 0),
	}

	for _, stage := range wf.Stages {
		result, warnings := e.simulateStage(stage, in)
		trace.Stages = append(trace.Stages, result)
		trace.Warnings = append(trace.Warnings, warnings...)
	}
	return trace
}

func (e *Engine) simulateStage(stage models.Stage, in Input) (StageResult, []string) {
	result := StageResult{Stage: stage}
	var warnings []string

	ok, problem := condition.Check(stage.EntryCondition, in.Payload)
	if problem != "" {
		warnings = append(warnings, fmt.Sprintf("stage %s: %s", stage.Name, problem))
	}
	if !ok {
		result.Reason = ReasonConditionNotMet
		return result, warnings
	}
	result.Applied = true

	seen := make(map[models.Identity]bool)
	for _, configured := range stage.Approvers {
		id, problem := approver.Resolve(configured, in.Payload)
		if id == nil {
			warnings = append(warnings, fmt.Sprintf("stage %s: %s", stage.Name, problem))
			continue
		}

		assignment := e.delegate(*id, stage, in)
		if assignment.DelegatedFrom != nil {
			result.Notes = append(result.Notes, fmt.Sprintf("delegated: %s -> %s (rule %s)",
				assignment.DelegatedFrom, assignment.Identity, assignment.RuleID))
		}
		if seen[assignment.Identity] {
			result.Notes = append(result.Notes, "duplicate approver collapsed: "+assignment.Identity.String())
			continue
		}
		seen[assignment.Identity] = true
		result.Approvers = append(result.Approvers, assignment)
	}

	if stage.EscalateTo != nil {
		id, problem := approver.Resolve(*stage.EscalateTo, in.Payload)
		if id == nil {
			warnings = append(warnings, fmt.Sprintf("stage %s: escalation %s", stage.Name, problem))
		}
		result.EscalateTo = id
	}

	if len(result.Approvers) == 0 {
		warnings = append(warnings, "no approvers for stage "+stage.Name)
	}
	return result, warnings
}

// delegate substitutes the effective delegate for user approvers.
func (e *Engine) delegate(id models.Identity, stage models.Stage, in Input) Assignment {
	assignment := Assignment{Identity: id}
	if e.delegator == nil || id.Type != models.IdentityUser {
		return assignment
	}

	res := e.delegator.Resolve(id, delegation.Context{
		EntityType: in.EntityType,
		StageName:  stage.Name,
		Project:    in.Project,
		At:         in.At,
	})
	if res.To == nil {
		return assignment
	}

	original := id
	assignment.Identity = *res.To
	assignment.DelegatedFrom = &original
	if res.Rule != nil {
		assignment.RuleID = res.Rule.ID
	}
	return assignment
}
