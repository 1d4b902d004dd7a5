package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"approval-routing/pkg/models"
)

// RedisStore keeps workflows and rules as JSON strings in Redis, with one set
// per kind indexing the ids.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithKeyPrefix sets the key prefix. Default is "approvals".
func WithKeyPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(client *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client, prefix: "approvals"}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

const (
	kindWorkflow = "workflow"
	kindRule     = "rule"
)

func (s *RedisStore) key(kind, id string) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, kind, id)
}

func (s *RedisStore) indexKey(kind string) string {
	return fmt.Sprintf("%s:%s:index", s.prefix, kind)
}

// ListWorkflows returns every workflow.
func (s *RedisStore) ListWorkflows(ctx context.Context) ([]models.Workflow, error) {
	workflows := make([]models.Workflow, 0)
	err := s.list(ctx, kindWorkflow, func(data []byte) error {
		var wf models.Workflow
		if err := json.Unmarshal(data, &wf); err != nil {
			return err
		}
		workflows = append(workflows, wf)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortWorkflows(workflows)
	return workflows, nil
}

// GetWorkflow returns one workflow.
func (s *RedisStore) GetWorkflow(ctx context.Context, id string) (*models.Workflow, error) {
	var wf models.Workflow
	if err := s.get(ctx, kindWorkflow, id, &wf); err != nil {
		return nil, err
	}
	return &wf, nil
}

// SaveWorkflow stores wf.
func (s *RedisStore) SaveWorkflow(ctx context.Context, wf *models.Workflow) error {
	return s.put(ctx, kindWorkflow, wf.ID, wf)
}

// DeleteWorkflow removes a workflow.
func (s *RedisStore) DeleteWorkflow(ctx context.Context, id string) error {
	return s.remove(ctx, kindWorkflow, id)
}

// ListRules returns every delegation rule.
func (s *RedisStore) ListRules(ctx context.Context) ([]models.DelegationRule, error) {
	rules := make([]models.DelegationRule, 0)
	err := s.list(ctx, kindRule, func(data []byte) error {
		var r models.DelegationRule
		if err := json.Unmarshal(data, &r); err != nil {
			return err
		}
		rules = append(rules, r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortRules(rules)
	return rules, nil
}

// GetRule returns one delegation rule.
func (s *RedisStore) GetRule(ctx context.Context, id string) (*models.DelegationRule, error) {
	var r models.DelegationRule
	if err := s.get(ctx, kindRule, id, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// SaveRule stores rule.
func (s *RedisStore) SaveRule(ctx context.Context, rule *models.DelegationRule) error {
	return s.put(ctx, kindRule, rule.ID, rule)
}

// DeleteRule removes a delegation rule.
func (s *RedisStore) DeleteRule(ctx context.Context, id string) error {
	return s.remove(ctx, kindRule, id)
}

func (s *RedisStore) get(ctx context.Context, kind, id string, dest any) error {
	data, err := s.client.Get(ctx, s.key(kind, id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		return fmt.Errorf("redis get %s %s: %w", kind, id, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to decode %s %s: %w", kind, id, err)
	}
	return nil
}

// put writes the value and its index entry in one round trip.
func (s *RedisStore) put(ctx context.Context, kind, id string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s %s: %w", kind, id, err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key(kind, id), data, 0)
	pipe.SAdd(ctx, s.indexKey(kind), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis save %s %s: %w", kind, id, err)
	}
	return nil
}

func (s *RedisStore) remove(ctx context.Context, kind, id string) error {
	pipe := s.client.TxPipeline()
	del := pipe.Del(ctx, s.key(kind, id))
	pipe.SRem(ctx, s.indexKey(kind), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis delete %s %s: %w", kind, id, err)
	}
	if del.Val() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *RedisStore) list(ctx context.Context, kind string, decode func([]byte) error) error {
	ids, err := s.client.SMembers(ctx, s.indexKey(kind)).Result()
	if err != nil {
		return fmt.Errorf("redis list %s: %w", kind, err)
	}
	if len(ids) == 0 {
		return nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.key(kind, id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return fmt.Errorf("redis mget %s: %w", kind, err)
	}

	for i, v := range values {
		str, ok := v.(string)
		if !ok {
			// index entry without a value; skip it
			continue
		}
		if err := decode([]byte(str)); err != nil {
			return fmt.Errorf("failed to decode %s %s: %w", kind, ids[i], err)
		}
	}
	return nil
}
