// Package api contains the HTTP handlers for the approval routing service
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"approval-routing/internal/delegation"
	"approval-routing/internal/report"
	"approval-routing/internal/repository"
	"approval-routing/internal/services"
	"approval-routing/internal/validation"
	"approval-routing/pkg/models"
)

// ServiceName and Version are reported by the health endpoint.
const (
	ServiceName = "approval-routing"
	Version     = "1.0.0"
)

// RoutingService is what the handlers need from the service layer.
type RoutingService interface {
	ListWorkflows(ctx context.Context) ([]models.Workflow, error)
	GetWorkflow(ctx context.Context, id string) (*models.Workflow, error)
	SaveWorkflow(ctx context.Context, wf models.Workflow) (*models.Workflow, error)
	DeleteWorkflow(ctx context.Context, id string) error

	SimulateWorkflow(ctx context.Context, id string, req services.SimulateRequest) (*report.Report, error)
	SimulateActive(ctx context.Context, entityType string, req services.SimulateRequest) (*report.Report, error)
	SimulateInline(ctx context.Context, wf models.Workflow, req services.SimulateRequest) (*report.Report, error)

	ListRules(ctx context.Context) ([]models.DelegationRule, error)
	GetRule(ctx context.Context, id string) (*models.DelegationRule, error)
	SaveRule(ctx context.Context, rule models.DelegationRule) (*services.RuleSaveResult, error)
	DeleteRule(ctx context.Context, id string) error
	CheckConflicts(ctx context.Context, rule models.DelegationRule) ([]models.DelegationRule, error)
	ResolveDelegate(ctx context.Context, principal models.Identity, dctx delegation.Context) (*delegation.Resolution, error)
}

// Server holds the dependencies for the API server.
type Server struct {
	svc RoutingService
	now func() time.Time
}

// NewServer creates a new Server.
func NewServer(svc RoutingService) *Server {
	return &Server{svc: svc, now: time.Now}
}

// GetHealth returns basic health status (always returns 200 OK)
// (GET /api/v1/health)
func (s *Server) GetHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, models.HealthStatus{
		Status:    "ok",
		Service:   ServiceName,
		Version:   Version,
		Timestamp: s.now().UTC(),
	})
}

// ErrorHandler renders every error as RFC 7807 Problem Details.
func ErrorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		problem := problemFor(err)
		problem.Instance = c.Request().URL.Path
		if problem.Status >= http.StatusInternalServerError {
			logger.Error("request failed",
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
				"error", err)
		}

		c.Response().Header().Set(echo.HeaderContentType, "application/problem+json")
		if c.Request().Method == http.MethodHead {
			err = c.NoContent(problem.Status)
		} else {
			err = c.JSON(problem.Status, problem)
		}
		if err != nil {
			logger.Error("failed to write error response", "error", err)
		}
	}
}

func problemFor(err error) models.ProblemDetails {
	problem := models.ProblemDetails{Type: "about:blank"}

	var verr *validation.Error
	var herr *echo.HTTPError
	switch {
	case errors.As(err, &verr):
		problem.Status = http.StatusUnprocessableEntity
		problem.Detail = verr.Error()
		for _, p := range verr.Problems {
			problem.InvalidParams = append(problem.InvalidParams, models.InvalidParam{Name: p.Field, Reason: p.Message})
		}
	case errors.Is(err, repository.ErrNotFound):
		problem.Status = http.StatusNotFound
		problem.Detail = err.Error()
	case errors.As(err, &herr):
		problem.Status = herr.Code
		problem.Detail = fmt.Sprint(herr.Message)
	default:
		problem.Status = http.StatusInternalServerError
		problem.Detail = "internal error"
	}
	problem.Title = http.StatusText(problem.Status)
	return problem
}

func bindBody(c echo.Context, dest any) error {
	if err := (&echo.DefaultBinder{}).BindBody(c, dest); err != nil {
		var herr *echo.HTTPError
		if errors.As(err, &herr) {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body: "+fmt.Sprint(herr.Message))
		}
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body: "+err.Error())
	}
	return nil
}
