// Package validation rejects malformed workflows and delegation rules before
// they are persisted. Evaluation never calls into this package; it tolerates
// whatever reaches it and reports warnings instead.
package validation

import (
	"embed"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"approval-routing/pkg/models"
)

//go:embed schemas/*.json
var schemaFS embed.FS

var (
	ruleSchema     = mustSchema("schemas/delegation_rule.json")
	workflowSchema = mustSchema("schemas/workflow.json")
)

func mustSchema(name string) *gojsonschema.Schema {
	data, err := schemaFS.ReadFile(name)
	if err != nil {
		panic(fmt.Sprintf("validation: read %s: %v", name, err))
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
	if err != nil {
		panic(fmt.Sprintf("validation: compile %s: %v", name, err))
	}
	return schema
}

// Problem is a single rejected field.
type Problem struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error collects every problem found in one document.
type Error struct {
	Kind     string    `json:"kind"`
	Problems []Problem `json:"problems"`
}

func (e *Error) Error() string {
	parts := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		parts = append(parts, p.Field+": "+p.Message)
	}
	return fmt.Sprintf("invalid %s: %s", e.Kind, strings.Join(parts, "; "))
}

func (e *Error) add(field, message string) {
	e.Problems = append(e.Problems, Problem{Field: field, Message: message})
}

func (e *Error) orNil() error {
	if len(e.Problems) == 0 {
		return nil
	}
	return e
}

// Rule checks a delegation rule before it is saved.
func Rule(rule models.DelegationRule) error {
	verr := &Error{Kind: "delegation rule"}
	if err := checkSchema(ruleSchema, rule, verr); err != nil {
		return err
	}

	if strings.TrimSpace(rule.Principal.Ref) == "" {
		verr.add("principal.ref", "is required")
	}
	if strings.TrimSpace(rule.DelegateTo.Ref) == "" {
		verr.add("delegate_to.ref", "is required")
	}
	if rule.Principal.Ref != "" && rule.Principal == rule.DelegateTo {
		verr.add("delegate_to", "must differ from principal")
	}
	if rule.StartAt != nil && rule.EndAt != nil && !rule.StartAt.Before(*rule.EndAt) {
		verr.add("end_at", "must be after start_at")
	}
	return verr.orNil()
}

// Workflow checks a workflow definition before it is saved.
func Workflow(wf models.Workflow) error {
	verr := &Error{Kind: "workflow"}
	if err := checkSchema(workflowSchema, wf, verr); err != nil {
		return err
	}

	if strings.TrimSpace(wf.Name) == "" {
		verr.add("name", "is required")
	}
	if strings.TrimSpace(wf.EntityType) == "" {
		verr.add("entity_type", "is required")
	}
	if len(wf.Stages) == 0 {
		verr.add("stages", "at least one stage is required")
	}

	seen := make(map[string]bool, len(wf.Stages))
	for i, st := range wf.Stages {
		field := fmt.Sprintf("stages.%d", i)
		if strings.TrimSpace(st.Name) == "" {
			verr.add(field+".name", "is required")
		} else if seen[st.Name] {
			verr.add(field+".name", fmt.Sprintf("duplicate stage name %q", st.Name))
		}
		seen[st.Name] = true

		if st.EntryCondition != nil && strings.TrimSpace(st.EntryCondition.Left) == "" {
			verr.add(field+".entryCondition.left", "is required")
		}
		for j, a := range st.Approvers {
			if strings.TrimSpace(a.Ref) == "" {
				verr.add(fmt.Sprintf("%s.approvers.%d.ref", field, j), "is required")
			}
		}
		if st.EscalateTo != nil && strings.TrimSpace(st.EscalateTo.Ref) == "" {
			verr.add(field+".escalateTo.ref", "is required")
		}
	}
	return verr.orNil()
}

// checkSchema adds schema violations to verr. The returned error is only set
// when validation itself could not run.
func checkSchema(schema *gojsonschema.Schema, doc any, verr *Error) error {
	result, err := schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("validate %s: %w", verr.Kind, err)
	}
	for _, re := range result.Errors() {
		verr.add(re.Field(), re.Description())
	}
	return nil
}
