// Package mcpserver exposes the task graph operations as MCP tools.
//
// The server acts as one fixed identity and applies the same authorization
// policy as the HTTP API.
package mcpserver

import (
	"context"
	"errors"
	"fmt"

	"github.com/metalagman/taskgraph/internal/auth"
	"github.com/metalagman/taskgraph/internal/task"
	"github.com/metalagman/taskgraph/internal/tracker"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"
)

// Name is the implementation name announced to clients.
const Name = "taskgraph"

var errForbidden = errors.New("forbidden: this action is unauthorized")

// Server holds the tool handlers.
type Server struct {
	svc    *tracker.Service
	caller auth.Identity
	policy auth.Policy
}

// New creates tool handlers acting as caller.
func New(svc *tracker.Service, caller auth.Identity) *Server {
	return &Server{svc: svc, caller: caller}
}

// MCP builds an MCP server with every tool registered.
func (s *Server) MCP(version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: Name, Version: version}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "create_task",
		Description: "Create a task, optionally depending on an existing task. Requires the manager role.",
	}, s.createTask)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "add_dependency",
		Description: "Record that task_id depends on depends_on_id. Rejected when the edge would close a cycle.",
	}, s.addDependency)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "update_status",
		Description: "Move a task to pending, completed or canceled. Completion requires all dependencies completed.",
	}, s.updateStatus)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "would_create_cycle",
		Description: "Report whether adding task_id -> depends_on_id would create a dependency cycle.",
	}, s.wouldCreateCycle)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_task",
		Description: "Fetch a task with its direct dependencies and dependents.",
	}, s.getTask)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_tasks",
		Description: "List tasks visible to the caller, optionally filtered by status.",
	}, s.listTasks)

	return server
}

// Run serves the tools over t until ctx is done or the client disconnects.
func (s *Server) Run(ctx context.Context, version string, t mcp.Transport) error {
	log.Info().Int64("user_id", s.caller.UserID).Str("role", string(s.caller.Role)).Msg("mcp server started")
	if err := s.MCP(version).Run(ctx, t); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run mcp server: %w", err)
	}
	return nil
}

// toolError prefixes task errors with their stable code so clients can branch on it.
func toolError(err error) error {
	if kind, ok := task.KindOf(err); ok {
		return fmt.Errorf("%s: %w", kind, err)
	}
	return err
}

func (s *Server) authorize(ctx context.Context, taskID int64, action auth.Action) (task.Task, error) {
	t, err := s.svc.Task(ctx, taskID)
	if err != nil {
		return task.Task{}, toolError(err)
	}
	if !s.policy.Allow(s.caller, action, &t) {
		return task.Task{}, errForbidden
	}
	return t, nil
}
