package repository

import (
	"context"
	"slices"
	"strings"
	"sync"

	"approval-routing/pkg/models"
)

// MemoryStore keeps workflows and rules in process. Used for development and tests.
type MemoryStore struct {
	mu        sync.RWMutex
	workflows map[string]models.Workflow
	rules     map[string]models.DelegationRule
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		workflows: make(map[string]models.Workflow),
		rules:     make(map[string]models.DelegationRule),
	}
}

// ListWorkflows returns every workflow.
func (s *MemoryStore) ListWorkflows(_ context.Context) ([]models.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Workflow, 0, len(s.workflows))
	for _, wf := range s.workflows {
		out = append(out, wf)
	}
	sortWorkflows(out)
	return out, nil
}

// GetWorkflow returns one workflow.
func (s *MemoryStore) GetWorkflow(_ context.Context, id string) (*models.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wf, ok := s.workflows[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &wf, nil
}

// SaveWorkflow stores wf.
func (s *MemoryStore) SaveWorkflow(_ context.Context, wf *models.Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.workflows[wf.ID] = *wf
	return nil
}

// DeleteWorkflow removes a workflow.
func (s *MemoryStore) DeleteWorkflow(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.workflows[id]; !ok {
		return ErrNotFound
	}
	delete(s.workflows, id)
	return nil
}

// ListRules returns every rule.
func (s *MemoryStore) ListRules(_ context.Context) ([]models.DelegationRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.DelegationRule, 0, len(s.rules))
	for _, r := range s.rules {
		out = append(out, r)
	}
	sortRules(out)
	return out, nil
}

// GetRule returns one rule.
func (s *MemoryStore) GetRule(_ context.Context, id string) (*models.DelegationRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rules[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

// SaveRule stores rule.
func (s *MemoryStore) SaveRule(_ context.Context, rule *models.DelegationRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rules[rule.ID] = *rule
	return nil
}

// DeleteRule removes a rule.
func (s *MemoryStore) DeleteRule(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rules[id]; !ok {
		return ErrNotFound
	}
	delete(s.rules, id)
	return nil
}

func sortWorkflows(wfs []models.Workflow) {
	slices.SortFunc(wfs, func(a, b models.Workflow) int {
		if c := strings.Compare(a.EntityType, b.EntityType); c != 0 {
			return c
		}
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}

func sortRules(rules []models.DelegationRule) {
	slices.SortFunc(rules, func(a, b models.DelegationRule) int {
		return strings.Compare(a.ID, b.ID)
	})
}
