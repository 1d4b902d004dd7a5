package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"approval-routing/internal/delegation"
	"approval-routing/pkg/models"
)

// ListDelegations returns every delegation rule
// (GET /api/v1/delegations)
func (s *Server) ListDelegations(c echo.Context) error {
	rules, err := s.svc.ListRules(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rules)
}

// CreateDelegation saves a new rule and reports the active rules it overlaps
// (POST /api/v1/delegations)
func (s *Server) CreateDelegation(c echo.Context) error {
	var rule models.DelegationRule
	if err := bindBody(c, &rule); err != nil {
		return err
	}
	rule.ID = ""

	result, err := s.svc.SaveRule(c.Request().Context(), rule)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, result)
}

// GetDelegation returns one rule
// (GET /api/v1/delegations/{id})
func (s *Server) GetDelegation(c echo.Context, id string) error {
	rule, err := s.svc.GetRule(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rule)
}

// PutDelegation creates or replaces a rule
// (PUT /api/v1/delegations/{id})
func (s *Server) PutDelegation(c echo.Context, id string) error {
	var rule models.DelegationRule
	if err := bindBody(c, &rule); err != nil {
		return err
	}
	rule.ID = id

	result, err := s.svc.SaveRule(c.Request().Context(), rule)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// DeleteDelegation removes a rule
// (DELETE /api/v1/delegations/{id})
func (s *Server) DeleteDelegation(c echo.Context, id string) error {
	if err := s.svc.DeleteRule(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// CheckDelegationConflicts lists active rules overlapping the rule in the body
// without saving it
// (POST /api/v1/delegations/conflicts)
func (s *Server) CheckDelegationConflicts(c echo.Context) error {
	var rule models.DelegationRule
	if err := bindBody(c, &rule); err != nil {
		return err
	}

	conflicts, err := s.svc.CheckConflicts(c.Request().Context(), rule)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, models.ConflictsResponse{Conflicts: conflicts})
}

// ResolveDelegate shows who would act for a principal
// (GET /api/v1/delegations/resolve)
func (s *Server) ResolveDelegate(c echo.Context, params ResolveDelegateParams) error {
	principal := models.Identity{Type: params.PrincipalType, Ref: params.PrincipalRef}
	switch principal.Type {
	case models.IdentityUser, models.IdentityRole:
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "principal_type must be user or role")
	}

	dctx := delegation.Context{At: params.At}
	if params.EntityType != nil {
		dctx.EntityType = *params.EntityType
	}
	if params.Stage != nil {
		dctx.StageName = *params.Stage
	}
	if params.Project != nil {
		dctx.Project = *params.Project
	}

	res, err := s.svc.ResolveDelegate(c.Request().Context(), principal, dctx)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}
