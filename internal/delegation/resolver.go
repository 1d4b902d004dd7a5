// Package delegation decides who receives a principal's approvals while
// delegation rules are in force, and flags rules whose windows overlap.
package delegation

import (
	"slices"
	"strings"
	"time"

	"approval-routing/pkg/models"
)

// Clock supplies the default resolution instant.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now calls f.
func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock.
var SystemClock Clock = ClockFunc(time.Now)

// Context describes the routing situation a delegation is resolved for.
type Context struct {
	EntityType string     `json:"entity_type"`
	StageName  string     `json:"stage_name,omitempty"`
	Project    string     `json:"project,omitempty"`
	At         *time.Time `json:"at,omitempty"`
}

// Resolution is the outcome of resolving one principal.
// To is nil when no rule applies. Candidates holds every matching rule, best first.
type Resolution struct {
	To         *models.Identity        `json:"to"`
	Rule       *models.DelegationRule  `json:"rule,omitempty"`
	Candidates []models.DelegationRule `json:"candidates"`
}

// Resolver answers delegation questions over a read-only snapshot of rules.
type Resolver struct {
	rules []models.DelegationRule
	roles map[string][]string
	clock Clock
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithClock sets the clock used when a Context carries no instant.
func WithClock(c Clock) Option {
	return func(r *Resolver) {
		r.clock = c
	}
}

// WithRoles sets the role memberships used to match role-typed rules against
// user principals. The map is keyed by user ref.
func WithRoles(memberships map[string][]string) Option {
	return func(r *Resolver) {
		r.roles = memberships
	}
}

// NewResolver builds a resolver over rules. The slice is copied.
func NewResolver(rules []models.DelegationRule, opts ...Option) *Resolver {
	r := &Resolver{
		rules: slices.Clone(rules),
		clock: SystemClock,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve finds the effective delegate for principal in ctx.
func (r *Resolver) Resolve(principal models.Identity, ctx Context) Resolution {
	at := r.clock.Now()
	if ctx.At != nil {
		at = *ctx.At
	}

	candidates := make([]models.DelegationRule, 0)
	for _, rule := range r.rules {
		if !rule.Active || !InWindow(rule, at) {
			continue
		}
		if !r.principalMatches(rule.Principal, principal) || !scopeMatches(rule.Scope, ctx) {
			continue
		}
		candidates = append(candidates, rule)
	}
	slices.SortFunc(candidates, Compare)

	res := Resolution{Candidates: candidates}
	if len(candidates) > 0 {
		best := candidates[0]
		to := best.DelegateTo
		res.To = &to
		res.Rule = &best
	}
	return res
}

// CheckConflicts returns the other active rules for the same principal whose
// windows overlap rule's window, ordered by id. A rule with id excludingID is
// ignored as well, which lets an edited rule be checked against its old self.
func (r *Resolver) CheckConflicts(rule models.DelegationRule, excludingID string) []models.DelegationRule {
	conflicts := make([]models.DelegationRule, 0)
	for _, other := range r.rules {
		if !other.Active {
			continue
		}
		if rule.ID != "" && other.ID == rule.ID {
			continue
		}
		if excludingID != "" && other.ID == excludingID {
			continue
		}
		if other.Principal != rule.Principal || !Overlaps(rule, other) {
			continue
		}
		conflicts = append(conflicts, other)
	}
	slices.SortFunc(conflicts, func(a, b models.DelegationRule) int {
		return strings.Compare(a.ID, b.ID)
	})
	return conflicts
}

func (r *Resolver) principalMatches(rulePrincipal, principal models.Identity) bool {
	switch rulePrincipal.Type {
	case models.IdentityUser:
		return principal.Type == models.IdentityUser && principal.Ref == rulePrincipal.Ref
	case models.IdentityRole:
		switch principal.Type {
		case models.IdentityRole:
			return principal.Ref == rulePrincipal.Ref
		case models.IdentityUser:
			return slices.Contains(r.roles[principal.Ref], rulePrincipal.Ref)
		}
	}
	return false
}

func scopeMatches(scope models.DelegationScope, ctx Context) bool {
	if len(scope.EntityTypes) > 0 && !slices.Contains(scope.EntityTypes, ctx.EntityType) {
		return false
	}
	if len(scope.Stages) > 0 && !slices.Contains(scope.Stages, ctx.StageName) {
		return false
	}
	if len(scope.Projects) > 0 && !slices.Contains(scope.Projects, ctx.Project) {
		return false
	}
	return true
}

// InWindow reports whether at falls in the rule's [start_at, end_at) window.
func InWindow(rule models.DelegationRule, at time.Time) bool {
	if rule.StartAt != nil && at.Before(*rule.StartAt) {
		return false
	}
	if rule.EndAt != nil && !at.Before(*rule.EndAt) {
		return false
	}
	return true
}

// Overlaps reports whether two rule windows intersect. Missing bounds are infinite.
func Overlaps(a, b models.DelegationRule) bool {
	return before(a.StartAt, b.EndAt) && before(b.StartAt, a.EndAt)
}

func before(start, end *time.Time) bool {
	if start == nil || end == nil {
		return true
	}
	return start.Before(*end)
}
