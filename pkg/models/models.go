// Package models defines the domain and wire models for the approval routing service
package models

import (
	"time"
)

// HealthStatus represents service health
type HealthStatus struct {
	Status    string            `json:"status"`
	Service   string            `json:"service"`
	Version   string            `json:"version"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// ProblemDetails represents RFC 7807 Problem Details
type ProblemDetails struct {
	Type          string         `json:"type"`
	Title         string         `json:"title"`
	Status        int            `json:"status"`
	Detail        string         `json:"detail,omitempty"`
	Instance      string         `json:"instance,omitempty"`
	InvalidParams []InvalidParam `json:"invalid_params,omitempty"`
}

// InvalidParam names one rejected field of a request body
type InvalidParam struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// SimulateRequest is the body of the simulate endpoints.
// Workflow and EntityType are only read by POST /simulate: an inline
// definition wins over the active workflow of EntityType.
type SimulateRequest struct {
	Payload    any        `json:"payload"`
	Project    string     `json:"project,omitempty"`
	At         *time.Time `json:"at,omitempty"`
	EntityType string     `json:"entity_type,omitempty"`
	Workflow   *Workflow  `json:"workflow,omitempty"`
}

// ConflictsResponse lists active rules overlapping a candidate rule
type ConflictsResponse struct {
	Conflicts []DelegationRule `json:"conflicts"`
}
