package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"approval-routing/pkg/models"
)

func TestPostgresStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("approvals"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2)),
	)
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Fatalf("failed to terminate container: %s", err)
		}
	}()

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatal(err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Close()

	store := NewPostgresStore(pool)
	require.NoError(t, store.Migrate(ctx))
	require.NoError(t, store.Migrate(ctx), "migration must be repeatable")

	t.Run("Workflow round trip", func(t *testing.T) {
		now := time.Now().UTC().Truncate(time.Microsecond)
		wf := &models.Workflow{
			ID:         uuid.New().String(),
			Name:       "Expense claims",
			EntityType: "expense_claim",
			Version:    1,
			IsActive:   true,
			Stages: []models.Stage{{
				Name:           "cfo_review",
				EntryCondition: &models.Condition{Left: "total", Op: models.OpGte, Right: 5000000.0},
				Approvers:      []models.Approver{{Type: models.ApproverDynamic, Ref: "requester.manager"}},
				ApprovalRule:   models.ApprovalRuleAll,
				SLAHours:       48,
				OnReject:       models.RejectToPrevious,
				Notify:         []string{"requester"},
			}},
			CreatedAt: now,
			UpdatedAt: now,
		}

		require.NoError(t, store.SaveWorkflow(ctx, wf))

		got, err := store.GetWorkflow(ctx, wf.ID)
		require.NoError(t, err)
		assert.Equal(t, wf.Name, got.Name)
		assert.Equal(t, wf.Stages, got.Stages)
		assert.True(t, got.CreatedAt.Equal(now))

		wf.Version = 2
		wf.Name = "Expense claims v2"
		require.NoError(t, store.SaveWorkflow(ctx, wf))

		all, err := store.ListWorkflows(ctx)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, 2, all[0].Version)

		require.NoError(t, store.DeleteWorkflow(ctx, wf.ID))
		_, err = store.GetWorkflow(ctx, wf.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, store.DeleteWorkflow(ctx, wf.ID), ErrNotFound)
	})

	t.Run("Rule round trip", func(t *testing.T) {
		start := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
		rule := &models.DelegationRule{
			ID:         uuid.New().String(),
			Principal:  models.Identity{Type: models.IdentityUser, Ref: "a@corp.com"},
			DelegateTo: models.Identity{Type: models.IdentityRole, Ref: "finance_deputy"},
			Scope:      models.DelegationScope{EntityTypes: []string{"expense_claim"}, Projects: []string{"apollo"}},
			StartAt:    &start,
			Active:     true,
			Priority:   5,
			Reason:     "parental leave",
			Notify:     true,
			CreatedAt:  start,
			UpdatedAt:  start,
		}

		require.NoError(t, store.SaveRule(ctx, rule))

		got, err := store.GetRule(ctx, rule.ID)
		require.NoError(t, err)
		assert.Equal(t, rule.Principal, got.Principal)
		assert.Equal(t, rule.DelegateTo, got.DelegateTo)
		assert.Equal(t, rule.Scope, got.Scope)
		require.NotNil(t, got.StartAt)
		assert.True(t, got.StartAt.Equal(start))
		assert.Nil(t, got.EndAt)

		rules, err := store.ListRules(ctx)
		require.NoError(t, err)
		assert.Len(t, rules, 1)

		require.NoError(t, store.DeleteRule(ctx, rule.ID))
		_, err = store.GetRule(ctx, rule.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
