package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"approval-routing/internal/delegation"
	"approval-routing/pkg/models"
)

var at = time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

func thresholdWorkflow() models.Workflow {
	return models.Workflow{
		ID:         "wf-expense",
		Name:       "Expense approval",
		EntityType: "expense_claim",
		Version:    3,
		IsActive:   true,
		Stages: []models.Stage{
			{
				Name:           "cfo_review",
				EntryCondition: &models.Condition{Left: "total", Op: models.OpGte, Right: 5000000},
				Approvers:      []models.Approver{{Type: models.ApproverUser, Ref: "cfo@corp.com"}},
				ApprovalRule:   models.ApprovalRuleAny,
			},
		},
	}
}

func TestSimulateThreshold(t *testing.T) {
	eng := New(nil)

	trace := eng.Simulate(thresholdWorkflow(), Input{EntityType: "expense_claim", Payload: map[string]any{"total": 6000000.0}})
	require.Len(t, trace.Stages, 1)
	assert.True(t, trace.Stages[0].Applied)
	assert.Empty(t, trace.Stages[0].Reason)
	assert.Empty(t, trace.Warnings)

	trace = eng.Simulate(thresholdWorkflow(), Input{EntityType: "expense_claim", Payload: map[string]any{"total": 1000.0}})
	require.Len(t, trace.Stages, 1)
	assert.False(t, trace.Stages[0].Applied)
	assert.Equal(t, ReasonConditionNotMet, trace.Stages[0].Reason)
	assert.Empty(t, trace.Stages[0].Approvers)
}

func TestSimulateDynamicApprover(t *testing.T) {
	wf := models.Workflow{Stages: []models.Stage{{
		Name:      "manager_review",
		Approvers: []models.Approver{{Type: models.ApproverDynamic, Ref: "requester.manager"}},
	}}}

	trace := New(nil).Simulate(wf, Input{Payload: map[string]any{
		"requester": map[string]any{"manager": "m@corp.com"},
	}})

	require.Len(t, trace.Stages[0].Approvers, 1)
	assert.Equal(t, models.Identity{Type: models.IdentityUser, Ref: "m@corp.com"}, trace.Stages[0].Approvers[0].Identity)
	assert.Nil(t, trace.Stages[0].Approvers[0].DelegatedFrom)
}

func TestSimulateUnresolvedApproverKeepsStage(t *testing.T) {
	wf := models.Workflow{Stages: []models.Stage{{
		Name: "manager_review",
		Approvers: []models.Approver{
			{Type: models.ApproverDynamic, Ref: "requester.manager"},
			{Type: models.ApproverRole, Ref: "finance"},
		},
	}}}

	trace := New(nil).Simulate(wf, Input{Payload: map[string]any{}})

	assert.True(t, trace.Stages[0].Applied)
	assert.Len(t, trace.Stages[0].Approvers, 1)
	assert.Equal(t, []string{"stage manager_review: dynamic approver path unresolved: requester.manager"}, trace.Warnings)
}

func TestSimulateNoApproversWarning(t *testing.T) {
	wf := models.Workflow{Stages: []models.Stage{
		{Name: "empty"},
		{Name: "unresolved", Approvers: []models.Approver{{Type: models.ApproverDynamic, Ref: "nobody"}}},
	}}

	trace := New(nil).Simulate(wf, Input{Payload: map[string]any{}})

	assert.True(t, trace.Stages[0].Applied)
	assert.True(t, trace.Stages[1].Applied)
	assert.Equal(t, []string{
		"no approvers for stage empty",
		"stage unresolved: dynamic approver path unresolved: nobody",
		"no approvers for stage unresolved",
	}, trace.Warnings)
}

func TestSimulateEvaluatesEveryStage(t *testing.T) {
	wf := models.Workflow{Stages: []models.Stage{
		{Name: "a", EntryCondition: &models.Condition{Left: "total", Op: models.OpGt, Right: 100}, Approvers: []models.Approver{{Type: models.ApproverRole, Ref: "r1"}}},
		{Name: "b", EntryCondition: &models.Condition{Left: "total", Op: models.OpGt, Right: 1000}, Approvers: []models.Approver{{Type: models.ApproverRole, Ref: "r2"}}},
		{Name: "c", Approvers: []models.Approver{{Type: models.ApproverRole, Ref: "r3"}}},
	}}

	trace := New(nil).Simulate(wf, Input{Payload: map[string]any{"total": 500}})

	var applied []string
	for _, st := range trace.Stages {
		if st.Applied {
			applied = append(applied, st.Stage.Name)
		}
	}
	assert.Equal(t, []string{"a", "c"}, applied)
}

func TestSimulateConditionProblemsBecomeWarnings(t *testing.T) {
	wf := models.Workflow{Stages: []models.Stage{{
		Name:           "bad",
		EntryCondition: &models.Condition{Left: "total", Op: "between", Right: []any{1, 2}},
		Approvers:      []models.Approver{{Type: models.ApproverRole, Ref: "r"}},
	}}}

	trace := New(nil).Simulate(wf, Input{Payload: map[string]any{"total": 1}})

	assert.False(t, trace.Stages[0].Applied)
	assert.Equal(t, ReasonConditionNotMet, trace.Stages[0].Reason)
	assert.Equal(t, []string{`stage bad: unknown operator "between"`}, trace.Warnings)
}

func TestSimulateAppliesDelegation(t *testing.T) {
	start := at.Add(-24 * time.Hour)
	rules := []models.DelegationRule{
		{
			ID:         "del-1",
			Principal:  models.Identity{Type: models.IdentityUser, Ref: "cfo@corp.com"},
			DelegateTo: models.Identity{Type: models.IdentityUser, Ref: "deputy@corp.com"},
			Scope:      models.DelegationScope{Stages: []string{"cfo_review"}},
			StartAt:    &start,
			Active:     true,
		},
		{
			ID:         "del-2",
			Principal:  models.Identity{Type: models.IdentityUser, Ref: "cfo@corp.com"},
			DelegateTo: models.Identity{Type: models.IdentityUser, Ref: "other@corp.com"},
			Scope:      models.DelegationScope{EntityTypes: []string{"purchase_request"}},
			Active:     true,
		},
	}
	eng := New(delegation.NewResolver(rules))

	trace := eng.Simulate(thresholdWorkflow(), Input{
		EntityType: "expense_claim",
		Payload:    map[string]any{"total": 9000000},
		At:         &at,
	})

	require.Len(t, trace.Stages[0].Approvers, 1)
	got := trace.Stages[0].Approvers[0]
	assert.Equal(t, "deputy@corp.com", got.Ref)
	assert.Equal(t, "cfo@corp.com", got.DelegatedFrom.Ref)
	assert.Equal(t, "del-1", got.RuleID)
	assert.Equal(t, []string{"delegated: user:cfo@corp.com -> user:deputy@corp.com (rule del-1)"}, trace.Stages[0].Notes)
}

func TestSimulateDoesNotDelegateRoles(t *testing.T) {
	rules := []models.DelegationRule{{
		ID:         "del-role",
		Principal:  models.Identity{Type: models.IdentityRole, Ref: "finance"},
		DelegateTo: models.Identity{Type: models.IdentityUser, Ref: "x@corp.com"},
		Active:     true,
	}}
	wf := models.Workflow{Stages: []models.Stage{{Name: "s", Approvers: []models.Approver{{Type: models.ApproverRole, Ref: "finance"}}}}}

	trace := New(delegation.NewResolver(rules)).Simulate(wf, Input{At: &at})

	assert.Equal(t, models.IdentityRole, trace.Stages[0].Approvers[0].Type)
	assert.Nil(t, trace.Stages[0].Approvers[0].DelegatedFrom)
}

func TestSimulateCollapsesDuplicateApprovers(t *testing.T) {
	rules := []models.DelegationRule{{
		ID:         "del-1",
		Principal:  models.Identity{Type: models.IdentityUser, Ref: "a@corp.com"},
		DelegateTo: models.Identity{Type: models.IdentityUser, Ref: "b@corp.com"},
		Active:     true,
	}}
	wf := models.Workflow{Stages: []models.Stage{{Name: "s", Approvers: []models.Approver{
		{Type: models.ApproverUser, Ref: "a@corp.com"},
		{Type: models.ApproverUser, Ref: "b@corp.com"},
	}}}}

	trace := New(delegation.NewResolver(rules)).Simulate(wf, Input{At: &at})

	require.Len(t, trace.Stages[0].Approvers, 1)
	assert.Equal(t, "b@corp.com", trace.Stages[0].Approvers[0].Ref)
	assert.Contains(t, trace.Stages[0].Notes, "duplicate approver collapsed: user:b@corp.com")
}

func TestSimulateResolvesEscalation(t *testing.T) {
	wf := models.Workflow{Stages: []models.Stage{
		{
			Name:       "ok",
			Approvers:  []models.Approver{{Type: models.ApproverRole, Ref: "r"}},
			EscalateTo: &models.Approver{Type: models.ApproverDynamic, Ref: "requester.director"},
		},
		{
			Name:       "broken",
			Approvers:  []models.Approver{{Type: models.ApproverRole, Ref: "r"}},
			EscalateTo: &models.Approver{Type: models.ApproverDynamic, Ref: "nope"},
		},
	}}

	trace := New(nil).Simulate(wf, Input{Payload: map[string]any{"requester": map[string]any{"director": "d@corp.com"}}})

	require.NotNil(t, trace.Stages[0].EscalateTo)
	assert.Equal(t, "d@corp.com", trace.Stages[0].EscalateTo.Ref)
	assert.Nil(t, trace.Stages[1].EscalateTo)
	assert.Equal(t, []string{"stage broken: escalation dynamic approver path unresolved: nope"}, trace.Warnings)
}

func TestSimulateNeverPanics(t *testing.T) {
	wf := models.Workflow{Stages: []models.Stage{
		{Name: "num", EntryCondition: &models.Condition{Left: "total", Op: models.OpGte, Right: 10}, Approvers: []models.Approver{{Type: models.ApproverDynamic, Ref: "requester.manager"}}},
		{Name: "in", EntryCondition: &models.Condition{Left: "dept", Op: models.OpIn, Right: []any{"a"}}, Approvers: []models.Approver{{Type: models.ApproverDynamic, Ref: "requester.0"}}},
		{Name: "contains", EntryCondition: &models.Condition{Left: "memo.text", Op: models.OpContains, Right: "x"}},
		{Name: "eq", EntryCondition: &models.Condition{Left: "requester", Op: models.OpEq, Right: nil}, EscalateTo: &models.Approver{Type: "mystery", Ref: ""}},
	}}
	payloads := []any{
		nil,
		"string payload",
		42,
		[]any{1, "two", nil},
		map[string]any{},
		map[string]any{"total": nil, "dept": nil, "requester": nil, "memo": nil},
		map[string]any{"total": "lots", "dept": []any{"a"}, "requester": []any{"x@corp.com"}, "memo": 7},
		map[string]any{"total": map[string]any{"v": 1}, "dept": true, "requester": map[string]any{"manager": 12}},
		map[string]any{"total": []any{}, "requester": map[string]any{"manager": nil}, "memo": map[string]any{"text": []any{}}},
	}
	eng := New(delegation.NewResolver(nil))

	for _, p := range payloads {
		assert.NotPanics(t, func() {
			trace := eng.Simulate(wf, Input{EntityType: "expense_claim", Payload: p})
			assert.Len(t, trace.Stages, len(wf.Stages))
		})
	}
}

func TestSimulateDoesNotMutateWorkflow(t *testing.T) {
	wf := thresholdWorkflow()
	before := thresholdWorkflow()

	New(nil).Simulate(wf, Input{Payload: map[string]any{"total": 6000000}})

	assert.Equal(t, before, wf)
}
