package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"approval-routing/internal/delegation"
	"approval-routing/internal/engine"
	"approval-routing/internal/logging"
	"approval-routing/internal/metrics"
	"approval-routing/internal/report"
	"approval-routing/internal/repository"
	"approval-routing/internal/validation"
	"approval-routing/pkg/models"
)

// directoryConcurrency bounds parallel role lookups while building a snapshot.
const directoryConcurrency = 8

// SimulateRequest is the document side of a simulation.
type SimulateRequest struct {
	Payload any
	Project string
	At      *time.Time
}

// RuleSaveResult is a saved rule plus the active rules it overlaps.
// Conflicts are advisory; the rule is saved regardless.
type RuleSaveResult struct {
	Rule      models.DelegationRule   `json:"rule"`
	Conflicts []models.DelegationRule `json:"conflicts"`
}

// RoutingService is the service for managing workflows and delegation rules
// and for previewing how documents route through them.
type RoutingService struct {
	store     repository.Store
	directory Directory
	logger    *slog.Logger
	metrics   *metrics.Recorder
	clock     delegation.Clock
	newID     func() string
}

// Option configures a RoutingService.
type Option func(*RoutingService)

// WithDirectory sets where role memberships come from.
func WithDirectory(d Directory) Option {
	return func(s *RoutingService) { s.directory = d }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *RoutingService) { s.logger = l }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Recorder) Option {
	return func(s *RoutingService) { s.metrics = m }
}

// WithClock sets the clock for timestamps and delegation windows.
func WithClock(c delegation.Clock) Option {
	return func(s *RoutingService) { s.clock = c }
}

// NewRoutingService creates a new RoutingService.
func NewRoutingService(store repository.Store, opts ...Option) *RoutingService {
	s := &RoutingService{
		store:     store,
		directory: StaticDirectory(nil),
		logger:    logging.Discard(),
		clock:     delegation.SystemClock,
		newID:     func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SimulateWorkflow previews the stored workflow id against req.
func (s *RoutingService) SimulateWorkflow(ctx context.Context, id string, req SimulateRequest) (*report.Report, error) {
	var wf *models.Workflow
	var resolver *delegation.Resolver

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		wf, err = s.store.GetWorkflow(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		resolver, err = s.resolver(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return s.simulate(ctx, *wf, resolver, req), nil
}

// SimulateActive previews the active workflow for entityType.
func (s *RoutingService) SimulateActive(ctx context.Context, entityType string, req SimulateRequest) (*report.Report, error) {
	var workflows []models.Workflow
	var resolver *delegation.Resolver

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		workflows, err = s.store.ListWorkflows(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		resolver, err = s.resolver(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	i := slices.IndexFunc(workflows, func(wf models.Workflow) bool {
		return wf.IsActive && wf.EntityType == entityType
	})
	if i < 0 {
		return nil, fmt.Errorf("no active workflow for %s: %w", entityType, repository.ErrNotFound)
	}
	return s.simulate(ctx, workflows[i], resolver, req), nil
}

// SimulateInline previews an unsaved workflow definition.
// The definition is not validated; problems surface as warnings.
func (s *RoutingService) SimulateInline(ctx context.Context, wf models.Workflow, req SimulateRequest) (*report.Report, error) {
	resolver, err := s.resolver(ctx)
	if err != nil {
		return nil, err
	}
	return s.simulate(ctx, wf, resolver, req), nil
}

func (s *RoutingService) simulate(ctx context.Context, wf models.Workflow, resolver *delegation.Resolver, req SimulateRequest) *report.Report {
	trace := engine.New(resolver).Simulate(wf, engine.Input{
		EntityType: wf.EntityType,
		Payload:    req.Payload,
		At:         req.At,
		Project:    req.Project,
	})
	rep := report.Build(trace)

	applied, skipped := rep.Counts()
	s.metrics.RecordSimulation(ctx, wf.EntityType, applied, skipped, len(rep.Warnings))
	s.logger.Debug("workflow simulated",
		"workflow_id", wf.ID,
		"version", wf.Version,
		"applied", applied,
		"skipped", skipped,
		"warnings", len(rep.Warnings))
	return &rep
}

// ResolveDelegate returns who acts for principal in dctx.
func (s *RoutingService) ResolveDelegate(ctx context.Context, principal models.Identity, dctx delegation.Context) (*delegation.Resolution, error) {
	resolver, err := s.resolver(ctx)
	if err != nil {
		return nil, err
	}
	res := resolver.Resolve(principal, dctx)
	s.metrics.RecordResolution(ctx, res.To != nil)
	return &res, nil
}

// CheckConflicts returns the stored active rules that overlap rule.
// The stored version of rule itself is ignored.
func (s *RoutingService) CheckConflicts(ctx context.Context, rule models.DelegationRule) ([]models.DelegationRule, error) {
	rules, err := s.store.ListRules(ctx)
	if err != nil {
		return nil, err
	}
	return delegation.NewResolver(rules).CheckConflicts(rule, rule.ID), nil
}

// SaveRule validates and stores rule, assigning an id and timestamps.
func (s *RoutingService) SaveRule(ctx context.Context, rule models.DelegationRule) (*RuleSaveResult, error) {
	if err := validation.Rule(rule); err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	if rule.ID == "" {
		rule.ID = s.newID()
		rule.CreatedAt = now
	} else {
		existing, err := s.store.GetRule(ctx, rule.ID)
		switch {
		case err == nil:
			rule.CreatedAt = existing.CreatedAt
		case errors.Is(err, repository.ErrNotFound):
			rule.CreatedAt = now
		default:
			return nil, err
		}
	}
	rule.UpdatedAt = now

	conflicts, err := s.CheckConflicts(ctx, rule)
	if err != nil {
		return nil, err
	}

	if err := s.store.SaveRule(ctx, &rule); err != nil {
		s.logger.Error("failed to save delegation rule", "rule_id", rule.ID, "error", err)
		return nil, err
	}
	s.metrics.RecordSave(ctx, "rule")

	if len(conflicts) > 0 {
		ids := make([]string, len(conflicts))
		for i, c := range conflicts {
			ids[i] = c.ID
		}
		s.logger.Warn("delegation rule overlaps active rules",
			"rule_id", rule.ID, "principal", rule.Principal.String(), "conflicts", ids)
	}
	s.logger.Info("delegation rule saved", "rule_id", rule.ID, "principal", rule.Principal.String())

	return &RuleSaveResult{Rule: rule, Conflicts: conflicts}, nil
}

// SaveWorkflow validates and stores wf. Saving an existing workflow bumps its
// version. Saving an active workflow deactivates any other active workflow of
// the same entity type.
func (s *RoutingService) SaveWorkflow(ctx context.Context, wf models.Workflow) (*models.Workflow, error) {
	if err := validation.Workflow(wf); err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	if wf.ID == "" {
		wf.ID = s.newID()
		wf.Version = 1
		wf.CreatedAt = now
	} else {
		existing, err := s.store.GetWorkflow(ctx, wf.ID)
		switch {
		case err == nil:
			wf.Version = existing.Version + 1
			wf.CreatedAt = existing.CreatedAt
		case errors.Is(err, repository.ErrNotFound):
			wf.Version = max(wf.Version, 1)
			wf.CreatedAt = now
		default:
			return nil, err
		}
	}
	wf.UpdatedAt = now

	// The previous active workflow keeps routing until wf is persisted.
	if err := s.store.SaveWorkflow(ctx, &wf); err != nil {
		s.logger.Error("failed to save workflow", "workflow_id", wf.ID, "error", err)
		return nil, err
	}
	s.metrics.RecordSave(ctx, "workflow")
	s.logger.Info("workflow saved",
		"workflow_id", wf.ID, "entity_type", wf.EntityType, "version", wf.Version, "active", wf.IsActive)

	if wf.IsActive {
		if err := s.deactivateOthers(ctx, wf, now); err != nil {
			return nil, err
		}
	}

	return &wf, nil
}

func (s *RoutingService) deactivateOthers(ctx context.Context, wf models.Workflow, now time.Time) error {
	workflows, err := s.store.ListWorkflows(ctx)
	if err != nil {
		return err
	}
	var (
		stillActive []string
		firstErr    error
	)
	for _, other := range workflows {
		if other.ID == wf.ID || !other.IsActive || other.EntityType != wf.EntityType {
			continue
		}
		other.IsActive = false
		other.UpdatedAt = now
		if err := s.store.SaveWorkflow(ctx, &other); err != nil {
			stillActive = append(stillActive, other.ID)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		s.logger.Info("workflow deactivated", "workflow_id", other.ID, "replaced_by", wf.ID)
	}
	if firstErr != nil {
		s.logger.Error("failed to deactivate workflows",
			"workflow_id", wf.ID, "still_active", stillActive, "error", firstErr)
		return fmt.Errorf("workflow %s saved but %s still active: %w",
			wf.ID, strings.Join(stillActive, ", "), firstErr)
	}
	return nil
}

// ListWorkflows returns every stored workflow.
func (s *RoutingService) ListWorkflows(ctx context.Context) ([]models.Workflow, error) {
	return s.store.ListWorkflows(ctx)
}

// GetWorkflow returns one workflow.
func (s *RoutingService) GetWorkflow(ctx context.Context, id string) (*models.Workflow, error) {
	return s.store.GetWorkflow(ctx, id)
}

// DeleteWorkflow removes a workflow.
func (s *RoutingService) DeleteWorkflow(ctx context.Context, id string) error {
	return s.store.DeleteWorkflow(ctx, id)
}

// ListRules returns every stored delegation rule.
func (s *RoutingService) ListRules(ctx context.Context) ([]models.DelegationRule, error) {
	return s.store.ListRules(ctx)
}

// GetRule returns one delegation rule.
func (s *RoutingService) GetRule(ctx context.Context, id string) (*models.DelegationRule, error) {
	return s.store.GetRule(ctx, id)
}

// DeleteRule removes a delegation rule.
func (s *RoutingService) DeleteRule(ctx context.Context, id string) error {
	return s.store.DeleteRule(ctx, id)
}

// resolver builds a read-only snapshot of the rules and the memberships of
// every role that an active rule delegates for.
func (s *RoutingService) resolver(ctx context.Context) (*delegation.Resolver, error) {
	rules, err := s.store.ListRules(ctx)
	if err != nil {
		return nil, err
	}
	roles, err := s.memberships(ctx, rules)
	if err != nil {
		return nil, err
	}
	return delegation.NewResolver(rules, delegation.WithClock(s.clock), delegation.WithRoles(roles)), nil
}

// memberships returns user ref -> role refs for the roles named by active
// role-principal rules.
func (s *RoutingService) memberships(ctx context.Context, rules []models.DelegationRule) (map[string][]string, error) {
	var roles []string
	for _, r := range rules {
		if r.Active && r.Principal.Type == models.IdentityRole && !slices.Contains(roles, r.Principal.Ref) {
			roles = append(roles, r.Principal.Ref)
		}
	}
	if len(roles) == 0 || s.directory == nil {
		return nil, nil
	}

	members := make([][]string, len(roles))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(directoryConcurrency)
	for i, role := range roles {
		g.Go(func() error {
			m, err := s.directory.MembersOf(gctx, role)
			if err != nil {
				return fmt.Errorf("failed to load members of role %s: %w", role, err)
			}
			members[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byUser := make(map[string][]string)
	for i, role := range roles {
		for _, user := range members[i] {
			byUser[user] = append(byUser[user], role)
		}
	}
	return byUser, nil
}
