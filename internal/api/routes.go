package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/oapi-codegen/runtime"

	"approval-routing/pkg/models"
)

// ServerInterface lists the operations of openapi.yaml.
type ServerInterface interface {
	// (GET /health)
	GetHealth(ctx echo.Context) error
	// (GET /workflows)
	ListWorkflows(ctx echo.Context) error
	// (POST /workflows)
	CreateWorkflow(ctx echo.Context) error
	// (GET /workflows/{id})
	GetWorkflow(ctx echo.Context, id string) error
	// (PUT /workflows/{id})
	PutWorkflow(ctx echo.Context, id string) error
	// (DELETE /workflows/{id})
	DeleteWorkflow(ctx echo.Context, id string) error
	// (POST /workflows/{id}/simulate)
	SimulateWorkflow(ctx echo.Context, id string) error
	// (POST /simulate)
	Simulate(ctx echo.Context) error
	// (GET /delegations)
	ListDelegations(ctx echo.Context) error
	// (POST /delegations)
	CreateDelegation(ctx echo.Context) error
	// (GET /delegations/{id})
	GetDelegation(ctx echo.Context, id string) error
	// (PUT /delegations/{id})
	PutDelegation(ctx echo.Context, id string) error
	// (DELETE /delegations/{id})
	DeleteDelegation(ctx echo.Context, id string) error
	// (POST /delegations/conflicts)
	CheckDelegationConflicts(ctx echo.Context) error
	// (GET /delegations/resolve)
	ResolveDelegate(ctx echo.Context, params ResolveDelegateParams) error
}

// ResolveDelegateParams are the query parameters of GET /delegations/resolve.
type ResolveDelegateParams struct {
	PrincipalType models.IdentityType `form:"principal_type" json:"principal_type"`
	PrincipalRef  string              `form:"principal_ref" json:"principal_ref"`
	EntityType    *string             `form:"entity_type,omitempty" json:"entity_type,omitempty"`
	Stage         *string             `form:"stage,omitempty" json:"stage,omitempty"`
	Project       *string             `form:"project,omitempty" json:"project,omitempty"`
	At            *time.Time          `form:"at,omitempty" json:"at,omitempty"`
}

// ServerInterfaceWrapper converts echo contexts to parameters.
type ServerInterfaceWrapper struct {
	Handler ServerInterface
}

func (w *ServerInterfaceWrapper) GetHealth(ctx echo.Context) error {
	return w.Handler.GetHealth(ctx)
}

func (w *ServerInterfaceWrapper) ListWorkflows(ctx echo.Context) error {
	return w.Handler.ListWorkflows(ctx)
}

func (w *ServerInterfaceWrapper) CreateWorkflow(ctx echo.Context) error {
	return w.Handler.CreateWorkflow(ctx)
}

func (w *ServerInterfaceWrapper) GetWorkflow(ctx echo.Context) error {
	id, err := bindID(ctx)
	if err != nil {
		return err
	}
	return w.Handler.GetWorkflow(ctx, id)
}

func (w *ServerInterfaceWrapper) PutWorkflow(ctx echo.Context) error {
	id, err := bindID(ctx)
	if err != nil {
		return err
	}
	return w.Handler.PutWorkflow(ctx, id)
}

func (w *ServerInterfaceWrapper) DeleteWorkflow(ctx echo.Context) error {
	id, err := bindID(ctx)
	if err != nil {
		return err
	}
	return w.Handler.DeleteWorkflow(ctx, id)
}

func (w *ServerInterfaceWrapper) SimulateWorkflow(ctx echo.Context) error {
	id, err := bindID(ctx)
	if err != nil {
		return err
	}
	return w.Handler.SimulateWorkflow(ctx, id)
}

func (w *ServerInterfaceWrapper) Simulate(ctx echo.Context) error {
	return w.Handler.Simulate(ctx)
}

func (w *ServerInterfaceWrapper) ListDelegations(ctx echo.Context) error {
	return w.Handler.ListDelegations(ctx)
}

func (w *ServerInterfaceWrapper) CreateDelegation(ctx echo.Context) error {
	return w.Handler.CreateDelegation(ctx)
}

func (w *ServerInterfaceWrapper) GetDelegation(ctx echo.Context) error {
	id, err := bindID(ctx)
	if err != nil {
		return err
	}
	return w.Handler.GetDelegation(ctx, id)
}

func (w *ServerInterfaceWrapper) PutDelegation(ctx echo.Context) error {
	id, err := bindID(ctx)
	if err != nil {
		return err
	}
	return w.Handler.PutDelegation(ctx, id)
}

func (w *ServerInterfaceWrapper) DeleteDelegation(ctx echo.Context) error {
	id, err := bindID(ctx)
	if err != nil {
		return err
	}
	return w.Handler.DeleteDelegation(ctx, id)
}

func (w *ServerInterfaceWrapper) CheckDelegationConflicts(ctx echo.Context) error {
	return w.Handler.CheckDelegationConflicts(ctx)
}

func (w *ServerInterfaceWrapper) ResolveDelegate(ctx echo.Context) error {
	var params ResolveDelegateParams
	query := ctx.QueryParams()

	if err := runtime.BindQueryParameter("form", true, true, "principal_type", query, &params.PrincipalType); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Invalid format for parameter principal_type: %s", err))
	}
	if err := runtime.BindQueryParameter("form", true, true, "principal_ref", query, &params.PrincipalRef); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Invalid format for parameter principal_ref: %s", err))
	}
	if err := runtime.BindQueryParameter("form", true, false, "entity_type", query, &params.EntityType); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Invalid format for parameter entity_type: %s", err))
	}
	if err := runtime.BindQueryParameter("form", true, false, "stage", query, &params.Stage); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Invalid format for parameter stage: %s", err))
	}
	if err := runtime.BindQueryParameter("form", true, false, "project", query, &params.Project); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Invalid format for parameter project: %s", err))
	}
	if err := runtime.BindQueryParameter("form", true, false, "at", query, &params.At); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Invalid format for parameter at: %s", err))
	}

	return w.Handler.ResolveDelegate(ctx, params)
}

func bindID(ctx echo.Context) (string, error) {
	var id string
	err := runtime.BindStyledParameterWithOptions("simple", "id", ctx.Param("id"), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		return "", echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Invalid format for parameter id: %s", err))
	}
	return id, nil
}

// EchoRouter is satisfied by *echo.Echo and *echo.Group.
type EchoRouter interface {
	CONNECT(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
	DELETE(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
	GET(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
	HEAD(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
	OPTIONS(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
	PATCH(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
	POST(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
	PUT(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
	TRACE(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
}

// RegisterHandlers adds each operation of si to router.
func RegisterHandlers(router EchoRouter, si ServerInterface) {
	w := &ServerInterfaceWrapper{Handler: si}

	router.GET("/health", w.GetHealth)
	router.GET("/workflows", w.ListWorkflows)
	router.POST("/workflows", w.CreateWorkflow)
	router.GET("/workflows/:id", w.GetWorkflow)
	router.PUT("/workflows/:id", w.PutWorkflow)
	router.DELETE("/workflows/:id", w.DeleteWorkflow)
	router.POST("/workflows/:id/simulate", w.SimulateWorkflow)
	router.POST("/simulate", w.Simulate)
	router.GET("/delegations", w.ListDelegations)
	router.POST("/delegations", w.CreateDelegation)
	router.POST("/delegations/conflicts", w.CheckDelegationConflicts)
	router.GET("/delegations/resolve", w.ResolveDelegate)
	router.GET("/delegations/:id", w.GetDelegation)
	router.PUT("/delegations/:id", w.PutDelegation)
	router.DELETE("/delegations/:id", w.DeleteDelegation)
}
