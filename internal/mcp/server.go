package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"approval-routing/internal/delegation"
	"approval-routing/internal/report"
	"approval-routing/internal/services"
	"approval-routing/pkg/models"
)

// RoutingService is the part of the service layer exposed as tools.
type RoutingService interface {
	SimulateWorkflow(ctx context.Context, id string, req services.SimulateRequest) (*report.Report, error)
	SimulateActive(ctx context.Context, entityType string, req services.SimulateRequest) (*report.Report, error)
	ResolveDelegate(ctx context.Context, principal models.Identity, dctx delegation.Context) (*delegation.Resolution, error)
	CheckConflicts(ctx context.Context, rule models.DelegationRule) ([]models.DelegationRule, error)
}

type Server struct {
	mcpServer *server.MCPServer
	routing   RoutingService
}

func NewServer(routing RoutingService) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"Approval Routing",
			"1.0.0",
			server.WithToolCapabilities(true),
		),
		routing: routing,
	}

	s.registerTools()
	return s
}

func (s *Server) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"simulate_workflow",
			mcp.WithDescription("Preview which approval stages apply to a document and who approves each"),
			mcp.WithString("workflow_id", mcp.Description("ID of a stored workflow")),
			mcp.WithString("entity_type", mcp.Description("Use the active workflow of this entity type when workflow_id is empty")),
			mcp.WithObject("payload", mcp.Required(), mcp.Description("The document being routed")),
			mcp.WithString("project", mcp.Description("Project used to match project-scoped delegations")),
			mcp.WithString("at", mcp.Description("RFC 3339 instant for delegation windows; defaults to now")),
		),
		s.handleSimulate,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"resolve_delegate",
			mcp.WithDescription("Find who acts for a user or role under the current delegation rules"),
			mcp.WithString("principal_type", mcp.Required(), mcp.Enum("user", "role")),
			mcp.WithString("principal_ref", mcp.Required(), mcp.Description("User id or role name")),
			mcp.WithString("entity_type", mcp.Description("Entity type being approved")),
			mcp.WithString("stage", mcp.Description("Stage name being approved")),
			mcp.WithString("project", mcp.Description("Project of the document")),
			mcp.WithString("at", mcp.Description("RFC 3339 instant; defaults to now")),
		),
		s.handleResolve,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"check_delegation_conflicts",
			mcp.WithDescription("List active delegation rules whose window overlaps a candidate rule for the same principal"),
			mcp.WithObject("rule", mcp.Required(), mcp.Description("Delegation rule in API JSON form")),
		),
		s.handleConflicts,
	)
}

func (s *Server) handleSimulate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	payload, ok := args["payload"].(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Missing required parameter: payload"), nil
	}
	at, err := optionalTime(args, "at")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	req := services.SimulateRequest{Payload: payload, Project: optionalString(args, "project"), At: at}

	var rep *report.Report
	if id := optionalString(args, "workflow_id"); id != "" {
		rep, err = s.routing.SimulateWorkflow(ctx, id, req)
	} else if entityType := optionalString(args, "entity_type"); entityType != "" {
		rep, err = s.routing.SimulateActive(ctx, entityType, req)
	} else {
		return mcp.NewToolResultError("Missing required parameter: workflow_id or entity_type"), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to simulate: %v", err)), nil
	}

	jsonBytes, _ := json.Marshal(rep)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleResolve(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	principal := models.Identity{
		Type: models.IdentityType(optionalString(args, "principal_type")),
		Ref:  optionalString(args, "principal_ref"),
	}
	if principal.Type != models.IdentityUser && principal.Type != models.IdentityRole {
		return mcp.NewToolResultError("Missing required parameter: principal_type (user or role)"), nil
	}
	if principal.Ref == "" {
		return mcp.NewToolResultError("Missing required parameter: principal_ref"), nil
	}
	at, err := optionalTime(args, "at")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	res, err := s.routing.ResolveDelegate(ctx, principal, delegation.Context{
		EntityType: optionalString(args, "entity_type"),
		StageName:  optionalString(args, "stage"),
		Project:    optionalString(args, "project"),
		At:         at,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to resolve delegate: %v", err)), nil
	}

	jsonBytes, _ := json.Marshal(res)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleConflicts(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	raw, ok := args["rule"].(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Missing required parameter: rule"), nil
	}
	var rule models.DelegationRule
	data, _ := json.Marshal(raw)
	if err := json.Unmarshal(data, &rule); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid rule: %v", err)), nil
	}

	conflicts, err := s.routing.CheckConflicts(ctx, rule)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to check conflicts: %v", err)), nil
	}

	jsonBytes, _ := json.Marshal(models.ConflictsResponse{Conflicts: conflicts})
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func optionalString(args map[string]interface{}, key string) string {
	v, _ := args[key].(string)
	return v
}

func optionalTime(args map[string]interface{}, key string) (*time.Time, error) {
	v := optionalString(args, key)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, fmt.Errorf("Invalid parameter %s: %v", key, err)
	}
	return &t, nil
}

func MountHTTPHandlers(mux *http.ServeMux, mcpServer *server.MCPServer) {
	// Use SSE server for /mcp/sse and /mcp/message endpoints
	sseServer := server.NewSSEServer(mcpServer, server.WithStaticBasePath("/mcp"))

	mux.HandleFunc("/mcp/sse", sseServer.ServeHTTP)
	mux.HandleFunc("/mcp/message", sseServer.ServeHTTP)
}
