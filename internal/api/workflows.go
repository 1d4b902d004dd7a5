package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"approval-routing/internal/report"
	"approval-routing/internal/services"
	"approval-routing/pkg/models"
)

// ListWorkflows returns a list of all workflows
// (GET /api/v1/workflows)
func (s *Server) ListWorkflows(c echo.Context) error {
	workflows, err := s.svc.ListWorkflows(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, workflows)
}

// CreateWorkflow saves a new workflow; any id in the body is ignored
// (POST /api/v1/workflows)
func (s *Server) CreateWorkflow(c echo.Context) error {
	var workflow models.Workflow
	if err := bindBody(c, &workflow); err != nil {
		return err
	}
	workflow.ID = ""

	saved, err := s.svc.SaveWorkflow(c.Request().Context(), workflow)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, saved)
}

// GetWorkflow returns one workflow
// (GET /api/v1/workflows/{id})
func (s *Server) GetWorkflow(c echo.Context, id string) error {
	workflow, err := s.svc.GetWorkflow(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, workflow)
}

// PutWorkflow creates or updates a workflow, bumping its version
// (PUT /api/v1/workflows/{id})
func (s *Server) PutWorkflow(c echo.Context, id string) error {
	var workflow models.Workflow
	if err := bindBody(c, &workflow); err != nil {
		return err
	}
	workflow.ID = id

	saved, err := s.svc.SaveWorkflow(c.Request().Context(), workflow)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, saved)
}

// DeleteWorkflow removes a workflow
// (DELETE /api/v1/workflows/{id})
func (s *Server) DeleteWorkflow(c echo.Context, id string) error {
	if err := s.svc.DeleteWorkflow(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// SimulateWorkflow previews a stored workflow against a document
// (POST /api/v1/workflows/{id}/simulate)
func (s *Server) SimulateWorkflow(c echo.Context, id string) error {
	var req models.SimulateRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}

	rep, err := s.svc.SimulateWorkflow(c.Request().Context(), id, simulateInput(req))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rep)
}

// Simulate previews an inline workflow, or the active workflow of an entity type
// (POST /api/v1/simulate)
func (s *Server) Simulate(c echo.Context) error {
	var req models.SimulateRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	var rep *report.Report
	var err error
	switch {
	case req.Workflow != nil:
		rep, err = s.svc.SimulateInline(ctx, *req.Workflow, simulateInput(req))
	case req.EntityType != "":
		rep, err = s.svc.SimulateActive(ctx, req.EntityType, simulateInput(req))
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "either workflow or entity_type is required")
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rep)
}

func simulateInput(req models.SimulateRequest) services.SimulateRequest {
	return services.SimulateRequest{Payload: req.Payload, Project: req.Project, At: req.At}
}
