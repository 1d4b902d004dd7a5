// Package approver turns configured approver references into concrete identities.
//
// A Reference is a closed set of variants (Role, User, Dynamic). Only this
// package can add variants, and Resolve switches over all of them.
package approver

import (
	"fmt"
	"strings"

	"approval-routing/internal/payload"
	"approval-routing/pkg/models"
)

// Reference is an approver as configured on a stage.
type Reference interface {
	reference()
}

// Role names a role whose members may approve.
type Role struct{ Name string }

// User names a single approving user.
type User struct{ ID string }

// Dynamic points into the document payload, e.g. "requester.manager".
type Dynamic struct{ Path string }

func (Role) reference()    {}
func (User) reference()    {}
func (Dynamic) reference() {}

// Parse converts the stored approver form into a Reference.
func Parse(a models.Approver) (Reference, error) {
	switch a.Type {
	case models.ApproverRole:
		return Role{Name: a.Ref}, nil
	case models.ApproverUser:
		return User{ID: a.Ref}, nil
	case models.ApproverDynamic:
		return Dynamic{Path: a.Ref}, nil
	default:
		return nil, fmt.Errorf("unknown approver type %q", a.Type)
	}
}

// ResolveReference resolves ref against doc. It returns false when a dynamic
// path does not lead to a non-empty string, or when ref is nil.
func ResolveReference(ref Reference, doc any) (models.Identity, bool) {
	switch r := ref.(type) {
	case Role:
		return models.Identity{Type: models.IdentityRole, Ref: r.Name}, true
	case User:
		return models.Identity{Type: models.IdentityUser, Ref: r.ID}, true
	case Dynamic:
		v, found := payload.Lookup(doc, r.Path)
		if !found {
			return models.Identity{}, false
		}
		s, ok := v.(string)
		if !ok || strings.TrimSpace(s) == "" {
			return models.Identity{}, false
		}
		return models.Identity{Type: models.IdentityUser, Ref: s}, true
	default:
		return models.Identity{}, false
	}
}

// Resolve resolves a configured approver against doc. On failure the identity
// is nil and the returned warning says why.
func Resolve(a models.Approver, doc any) (*models.Identity, string) {
	ref, err := Parse(a)
	if err != nil {
		return nil, err.Error()
	}
	id, ok := ResolveReference(ref, doc)
	if !ok {
		return nil, "dynamic approver path unresolved: " + a.Ref
	}
	return &id, ""
}
