package repository

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"approval-routing/pkg/models"
)

//go:embed schema.sql
var schemaSQL string

// PostgresStore is a PostgreSQL implementation of the Store interface.
// Stages and scopes are stored as JSONB.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the tables if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

const workflowColumns = "id, name, entity_type, version, is_active, stages, created_at, updated_at"

// ListWorkflows returns every workflow.
func (s *PostgresStore) ListWorkflows(ctx context.Context) ([]models.Workflow, error) {
	rows, err := s.db.Query(ctx, "SELECT "+workflowColumns+" FROM workflows ORDER BY entity_type, name, id")
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}
	defer rows.Close()

	workflows := make([]models.Workflow, 0)
	for rows.Next() {
		wf, err := scanWorkflow(rows)
		if err != nil {
			return nil, err
		}
		workflows = append(workflows, *wf)
	}
	return workflows, rows.Err()
}

// GetWorkflow returns one workflow.
func (s *PostgresStore) GetWorkflow(ctx context.Context, id string) (*models.Workflow, error) {
	row := s.db.QueryRow(ctx, "SELECT "+workflowColumns+" FROM workflows WHERE id = $1", id)
	wf, err := scanWorkflow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return wf, err
}

// SaveWorkflow inserts or replaces a workflow.
func (s *PostgresStore) SaveWorkflow(ctx context.Context, wf *models.Workflow) error {
	stages, err := json.Marshal(wf.Stages)
	if err != nil {
		return fmt.Errorf("failed to marshal stages: %w", err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO workflows (id, name, entity_type, version, is_active, stages, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			entity_type = EXCLUDED.entity_type,
			version = EXCLUDED.version,
			is_active = EXCLUDED.is_active,
			stages = EXCLUDED.stages,
			updated_at = EXCLUDED.updated_at`,
		wf.ID, wf.Name, wf.EntityType, wf.Version, wf.IsActive, stages, wf.CreatedAt, wf.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save workflow %s: %w", wf.ID, err)
	}
	return nil
}

// DeleteWorkflow removes a workflow.
func (s *PostgresStore) DeleteWorkflow(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, "DELETE FROM workflows WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete workflow %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const ruleColumns = `id, principal_type, principal_ref, delegate_type, delegate_ref, scope,
	start_at, end_at, active, priority, reason, notify, created_at, updated_at`

// ListRules returns every delegation rule.
func (s *PostgresStore) ListRules(ctx context.Context) ([]models.DelegationRule, error) {
	rows, err := s.db.Query(ctx, "SELECT "+ruleColumns+" FROM delegation_rules ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list delegation rules: %w", err)
	}
	defer rows.Close()

	rules := make([]models.DelegationRule, 0)
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, *rule)
	}
	return rules, rows.Err()
}

// GetRule returns one delegation rule.
func (s *PostgresStore) GetRule(ctx context.Context, id string) (*models.DelegationRule, error) {
	row := s.db.QueryRow(ctx, "SELECT "+ruleColumns+" FROM delegation_rules WHERE id = $1", id)
	rule, err := scanRule(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rule, err
}

// SaveRule inserts or replaces a delegation rule.
func (s *PostgresStore) SaveRule(ctx context.Context, rule *models.DelegationRule) error {
	scope, err := json.Marshal(rule.Scope)
	if err != nil {
		return fmt.Errorf("failed to marshal scope: %w", err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO delegation_rules (id, principal_type, principal_ref, delegate_type, delegate_ref, scope,
			start_at, end_at, active, priority, reason, notify, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			principal_type = EXCLUDED.principal_type,
			principal_ref = EXCLUDED.principal_ref,
			delegate_type = EXCLUDED.delegate_type,
			delegate_ref = EXCLUDED.delegate_ref,
			scope = EXCLUDED.scope,
			start_at = EXCLUDED.start_at,
			end_at = EXCLUDED.end_at,
			active = EXCLUDED.active,
			priority = EXCLUDED.priority,
			reason = EXCLUDED.reason,
			notify = EXCLUDED.notify,
			updated_at = EXCLUDED.updated_at`,
		rule.ID, rule.Principal.Type, rule.Principal.Ref, rule.DelegateTo.Type, rule.DelegateTo.Ref, scope,
		rule.StartAt, rule.EndAt, rule.Active, rule.Priority, rule.Reason, rule.Notify, rule.CreatedAt, rule.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save delegation rule %s: %w", rule.ID, err)
	}
	return nil
}

// DeleteRule removes a delegation rule.
func (s *PostgresStore) DeleteRule(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, "DELETE FROM delegation_rules WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete delegation rule %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanWorkflow(row pgx.Row) (*models.Workflow, error) {
	var wf models.Workflow
	var stages []byte
	err := row.Scan(&wf.ID, &wf.Name, &wf.EntityType, &wf.Version, &wf.IsActive, &stages, &wf.CreatedAt, &wf.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan workflow: %w", err)
	}
	if err := json.Unmarshal(stages, &wf.Stages); err != nil {
		return nil, fmt.Errorf("failed to decode stages of workflow %s: %w", wf.ID, err)
	}
	return &wf, nil
}

func scanRule(row pgx.Row) (*models.DelegationRule, error) {
	var rule models.DelegationRule
	var principalType, delegateType string
	var scope []byte
	err := row.Scan(&rule.ID, &principalType, &rule.Principal.Ref, &delegateType, &rule.DelegateTo.Ref, &scope,
		&rule.StartAt, &rule.EndAt, &rule.Active, &rule.Priority, &rule.Reason, &rule.Notify, &rule.CreatedAt, &rule.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan delegation rule: %w", err)
	}
	rule.Principal.Type = models.IdentityType(principalType)
	rule.DelegateTo.Type = models.IdentityType(delegateType)
	if err := json.Unmarshal(scope, &rule.Scope); err != nil {
		return nil, fmt.Errorf("failed to decode scope of rule %s: %w", rule.ID, err)
	}
	return &rule, nil
}
