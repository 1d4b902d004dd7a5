package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"approval-routing/pkg/models"
)

func setupRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, WithKeyPrefix("test")), mr
}

// exerciseStore runs the behaviour every Store implementation must share.
func exerciseStore(t *testing.T, store Store) {
	ctx := context.Background()
	start := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	_, err := store.GetWorkflow(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.DeleteWorkflow(ctx, "missing"), ErrNotFound)
	_, err = store.GetRule(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.DeleteRule(ctx, "missing"), ErrNotFound)

	wfs := []*models.Workflow{
		{ID: "wf-2", Name: "Purchase requests", EntityType: "purchase_request", Version: 1},
		{ID: "wf-1", Name: "Expense claims", EntityType: "expense_claim", Version: 1, IsActive: true,
			Stages: []models.Stage{{Name: "manager_review", Approvers: []models.Approver{{Type: models.ApproverRole, Ref: "managers"}}}}},
	}
	for _, wf := range wfs {
		require.NoError(t, store.SaveWorkflow(ctx, wf))
	}

	listed, err := store.ListWorkflows(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "wf-1", listed[0].ID)
	assert.Equal(t, "manager_review", listed[0].Stages[0].Name)

	wfs[1].Version = 2
	require.NoError(t, store.SaveWorkflow(ctx, wfs[1]))
	got, err := store.GetWorkflow(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Version)

	require.NoError(t, store.DeleteWorkflow(ctx, "wf-2"))
	listed, err = store.ListWorkflows(ctx)
	require.NoError(t, err)
	assert.Len(t, listed, 1)

	rules := []*models.DelegationRule{
		{ID: "r-b", Principal: models.Identity{Type: models.IdentityUser, Ref: "a@corp.com"},
			DelegateTo: models.Identity{Type: models.IdentityUser, Ref: "b@corp.com"}, StartAt: &start, Active: true},
		{ID: "r-a", Principal: models.Identity{Type: models.IdentityRole, Ref: "finance"},
			DelegateTo: models.Identity{Type: models.IdentityUser, Ref: "c@corp.com"},
			Scope: models.DelegationScope{Stages: []string{"cfo_review"}}, Priority: 2},
	}
	for _, r := range rules {
		require.NoError(t, store.SaveRule(ctx, r))
	}

	listedRules, err := store.ListRules(ctx)
	require.NoError(t, err)
	require.Len(t, listedRules, 2)
	assert.Equal(t, "r-a", listedRules[0].ID)
	assert.Equal(t, []string{"cfo_review"}, listedRules[0].Scope.Stages)

	rule, err := store.GetRule(ctx, "r-b")
	require.NoError(t, err)
	require.NotNil(t, rule.StartAt)
	assert.True(t, rule.StartAt.Equal(start))

	require.NoError(t, store.DeleteRule(ctx, "r-b"))
	listedRules, err = store.ListRules(ctx)
	require.NoError(t, err)
	assert.Len(t, listedRules, 1)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestRedisStore(t *testing.T) {
	store, _ := setupRedisStore(t)
	exerciseStore(t, store)
}

func TestRedisStoreKeys(t *testing.T) {
	store, mr := setupRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveWorkflow(ctx, &models.Workflow{ID: "wf-1", Name: "x", EntityType: "y"}))

	assert.True(t, mr.Exists("test:workflow:wf-1"))
	members, err := mr.Members("test:workflow:index")
	require.NoError(t, err)
	assert.Equal(t, []string{"wf-1"}, members)
}

func TestRedisStoreSkipsDanglingIndexEntries(t *testing.T) {
	store, mr := setupRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveRule(ctx, &models.DelegationRule{ID: "r1"}))
	_, err := mr.SetAdd("test:rule:index", "ghost")
	require.NoError(t, err)

	rules, err := store.ListRules(ctx)
	require.NoError(t, err)
	assert.Len(t, rules, 1)
}

func TestRedisStoreUnavailable(t *testing.T) {
	store, mr := setupRedisStore(t)
	mr.Close()

	_, err := store.ListRules(context.Background())
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}
