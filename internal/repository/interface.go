package repository

import (
	"context"
	"errors"

	"approval-routing/pkg/models"
)

// ErrNotFound is returned when a workflow or rule does not exist.
var ErrNotFound = errors.New("not found")

// WorkflowStore persists workflow definitions.
type WorkflowStore interface {
	// ListWorkflows returns every workflow ordered by entity type, then name.
	ListWorkflows(ctx context.Context) ([]models.Workflow, error)
	// GetWorkflow returns one workflow by id.
	GetWorkflow(ctx context.Context, id string) (*models.Workflow, error)
	// SaveWorkflow inserts or replaces a workflow.
	SaveWorkflow(ctx context.Context, wf *models.Workflow) error
	// DeleteWorkflow removes a workflow.
	DeleteWorkflow(ctx context.Context, id string) error
}

// RuleStore persists delegation rules.
type RuleStore interface {
	// ListRules returns every rule ordered by id.
	ListRules(ctx context.Context) ([]models.DelegationRule, error)
	// GetRule returns one rule by id.
	GetRule(ctx context.Context, id string) (*models.DelegationRule, error)
	// SaveRule inserts or replaces a rule.
	SaveRule(ctx context.Context, rule *models.DelegationRule) error
	// DeleteRule removes a rule.
	DeleteRule(ctx context.Context, id string) error
}

// Store is the full collaborator the routing service persists through.
type Store interface {
	WorkflowStore
	RuleStore
}
