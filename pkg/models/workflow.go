package models

import (
	"time"
)

// ApprovalRule says how many of a stage's approvers must sign off.
type ApprovalRule string

const (
	ApprovalRuleAny ApprovalRule = "any"
	ApprovalRuleAll ApprovalRule = "all"
)

// RejectAction is what happens to the document when a stage rejects it.
type RejectAction string

const (
	RejectToPrevious RejectAction = "previous"
	RejectTerminate  RejectAction = "terminate"
)

// Operator is a comparison operator used by stage entry conditions.
type Operator string

const (
	OpEq       Operator = "eq"
	OpNeq      Operator = "neq"
	OpGt       Operator = "gt"
	OpLt       Operator = "lt"
	OpGte      Operator = "gte"
	OpLte      Operator = "lte"
	OpIn       Operator = "in"
	OpContains Operator = "contains"
)

// Operators lists every supported operator.
var Operators = []Operator{OpEq, OpNeq, OpGt, OpLt, OpGte, OpLte, OpIn, OpContains}

// Workflow is a versioned approval pipeline for one entity type.
// Only one workflow per entity type is expected to be active at a time.
type Workflow struct {
	ID         string    `json:"id" yaml:"id"`
	Name       string    `json:"name" yaml:"name"`
	EntityType string    `json:"entity_type" yaml:"entity_type"`
	Version    int       `json:"version" yaml:"version"`
	Stages     []Stage   `json:"stages" yaml:"stages"`
	IsActive   bool      `json:"is_active" yaml:"is_active"`
	CreatedAt  time.Time `json:"created_at" yaml:"-"`
	UpdatedAt  time.Time `json:"updated_at" yaml:"-"`
}

// Stage is one ordered step of a workflow.
type Stage struct {
	ID             string       `json:"id" yaml:"id"`
	Name           string       `json:"name" yaml:"name"`
	EntryCondition *Condition   `json:"entryCondition" yaml:"entryCondition"`
	Approvers      []Approver   `json:"approvers" yaml:"approvers"`
	ApprovalRule   ApprovalRule `json:"approvalRule" yaml:"approvalRule"`
	SLAHours       int          `json:"slaHours" yaml:"slaHours"`
	EscalateTo     *Approver    `json:"escalateTo" yaml:"escalateTo"`
	OnReject       RejectAction `json:"onReject" yaml:"onReject"`
	Notify         []string     `json:"notify" yaml:"notify"`
}

// Condition compares the payload value at Left against Right.
// A nil *Condition always applies.
type Condition struct {
	Left  string   `json:"left" yaml:"left"`
	Op    Operator `json:"op" yaml:"op"`
	Right any      `json:"right" yaml:"right"`
}
