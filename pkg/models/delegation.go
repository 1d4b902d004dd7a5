package models

import (
	"time"
)

// IdentityType distinguishes concrete user identities from role identities.
type IdentityType string

const (
	IdentityUser IdentityType = "user"
	IdentityRole IdentityType = "role"
)

// Identity is a concrete approver, principal or delegate.
type Identity struct {
	Type IdentityType `json:"type" yaml:"type"`
	Ref  string       `json:"ref" yaml:"ref"`
}

// String renders the identity as "type:ref".
func (i Identity) String() string {
	return string(i.Type) + ":" + i.Ref
}

// ApproverType is the kind of approver reference configured on a stage.
type ApproverType string

const (
	ApproverRole    ApproverType = "role"
	ApproverUser    ApproverType = "user"
	ApproverDynamic ApproverType = "dynamic"
)

// Approver is an approver reference as configured in the workflow designer.
// For dynamic approvers Ref is a dot-path into the document payload.
type Approver struct {
	Type ApproverType `json:"type" yaml:"type"`
	Ref  string       `json:"ref" yaml:"ref"`
}

// DelegationScope narrows where a delegation applies. Empty dimensions match anything.
type DelegationScope struct {
	EntityTypes []string `json:"entity_types,omitempty" yaml:"entity_types,omitempty"`
	Stages      []string `json:"stages,omitempty" yaml:"stages,omitempty"`
	Projects    []string `json:"projects,omitempty" yaml:"projects,omitempty"`
}

// Dimensions reports how many scope dimensions are set.
func (s DelegationScope) Dimensions() int {
	n := 0
	if len(s.EntityTypes) > 0 {
		n++
	}
	if len(s.Stages) > 0 {
		n++
	}
	if len(s.Projects) > 0 {
		n++
	}
	return n
}

// DelegationRule temporarily routes a principal's approvals to someone else.
// A nil StartAt or EndAt leaves the window open on that side.
type DelegationRule struct {
	ID         string          `json:"id" yaml:"id"`
	Principal  Identity        `json:"principal" yaml:"principal"`
	DelegateTo Identity        `json:"delegate_to" yaml:"delegate_to"`
	Scope      DelegationScope `json:"scope" yaml:"scope"`
	StartAt    *time.Time      `json:"start_at,omitempty" yaml:"start_at,omitempty"`
	EndAt      *time.Time      `json:"end_at,omitempty" yaml:"end_at,omitempty"`
	Active     bool            `json:"active" yaml:"active"`
	Priority   int             `json:"priority" yaml:"priority"`
	Reason     string          `json:"reason,omitempty" yaml:"reason,omitempty"`
	Notify     bool            `json:"notify" yaml:"notify"`
	CreatedAt  time.Time       `json:"created_at" yaml:"-"`
	UpdatedAt  time.Time       `json:"updated_at" yaml:"-"`
}
