package mcpserver

import (
	"context"

	"github.com/metalagman/taskgraph/internal/auth"
	"github.com/metalagman/taskgraph/internal/graph"
	"github.com/metalagman/taskgraph/internal/task"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type createTaskInput struct {
	Title       string `json:"title"                   jsonschema:"task title, at most 255 characters"`
	Description string `json:"description,omitempty"   jsonschema:"optional markdown description"`
	DueDate     string `json:"due_date,omitempty"      jsonschema:"optional due date as YYYY-MM-DD"`
	AssigneeID  int64  `json:"assignee_id,omitempty"   jsonschema:"optional assignee user id"`
	DependsOnID int64  `json:"depends_on_id,omitempty" jsonschema:"optional id of a task the new task depends on"`
}

type edgeInput struct {
	TaskID      int64 `json:"task_id"       jsonschema:"the dependent task"`
	DependsOnID int64 `json:"depends_on_id" jsonschema:"the task it depends on"`
}

type updateStatusInput struct {
	TaskID int64  `json:"task_id" jsonschema:"task to update"`
	Status string `json:"status"  jsonschema:"one of pending, completed, canceled"`
}

type getTaskInput struct {
	TaskID int64 `json:"task_id" jsonschema:"task to fetch"`
}

type listTasksInput struct {
	Status  string `json:"status,omitempty"   jsonschema:"optional status filter"`
	Page    int    `json:"page,omitempty"     jsonschema:"1-based page number"`
	PerPage int    `json:"per_page,omitempty" jsonschema:"page size"`
}

type taskOutput struct {
	Task task.View `json:"task"`
}

type taskDetailOutput struct {
	Task       task.View   `json:"task"`
	DependsOn  []task.View `json:"depends_on"`
	Dependents []task.View `json:"dependents"`
}

type cycleOutput struct {
	WouldCreateCycle bool `json:"would_create_cycle"`
}

type listOutput struct {
	Tasks []task.View `json:"tasks"`
	Total int         `json:"total"`
	Page  int         `json:"page"`
}

func (s *Server) createTask(ctx context.Context, _ *mcp.CallToolRequest, in createTaskInput) (*mcp.CallToolResult, taskOutput, error) {
	if !s.policy.Allow(s.caller, auth.ActionCreate, nil) {
		return nil, taskOutput{}, errForbidden
	}
	nt := task.NewTask{Title: in.Title, Description: in.Description}
	if in.DueDate != "" {
		due, err := task.ParseDate(in.DueDate)
		if err != nil {
			return nil, taskOutput{}, err
		}
		nt.DueDate = &due
	}
	if in.AssigneeID != 0 {
		nt.AssigneeID = &in.AssigneeID
	}
	if in.DependsOnID != 0 {
		nt.DependsOnID = &in.DependsOnID
	}
	created, err := s.svc.CreateTask(ctx, s.caller.UserID, nt)
	if err != nil {
		return nil, taskOutput{}, toolError(err)
	}
	return nil, taskOutput{Task: created.View()}, nil
}

func (s *Server) addDependency(ctx context.Context, _ *mcp.CallToolRequest, in edgeInput) (*mcp.CallToolResult, graph.Edge, error) {
	if _, err := s.authorize(ctx, in.TaskID, auth.ActionAddDependency); err != nil {
		return nil, graph.Edge{}, err
	}
	if err := s.svc.AddDependency(ctx, in.TaskID, in.DependsOnID); err != nil {
		return nil, graph.Edge{}, toolError(err)
	}
	return nil, graph.Edge{TaskID: in.TaskID, DependsOnID: in.DependsOnID}, nil
}

func (s *Server) updateStatus(ctx context.Context, _ *mcp.CallToolRequest, in updateStatusInput) (*mcp.CallToolResult, taskOutput, error) {
	status, err := task.ParseStatus(in.Status)
	if err != nil {
		return nil, taskOutput{}, toolError(err)
	}
	if _, err := s.authorize(ctx, in.TaskID, auth.ActionUpdateStatus); err != nil {
		return nil, taskOutput{}, err
	}
	updated, err := s.svc.UpdateStatus(ctx, in.TaskID, status)
	if err != nil {
		return nil, taskOutput{}, toolError(err)
	}
	return nil, taskOutput{Task: updated.View()}, nil
}

func (s *Server) wouldCreateCycle(ctx context.Context, _ *mcp.CallToolRequest, in edgeInput) (*mcp.CallToolResult, cycleOutput, error) {
	if _, err := s.authorize(ctx, in.TaskID, auth.ActionView); err != nil {
		return nil, cycleOutput{}, err
	}
	cyclic, err := s.svc.WouldCreateCycle(ctx, in.TaskID, in.DependsOnID)
	if err != nil {
		return nil, cycleOutput{}, err
	}
	return nil, cycleOutput{WouldCreateCycle: cyclic}, nil
}

func (s *Server) getTask(ctx context.Context, _ *mcp.CallToolRequest, in getTaskInput) (*mcp.CallToolResult, taskDetailOutput, error) {
	t, err := s.authorize(ctx, in.TaskID, auth.ActionView)
	if err != nil {
		return nil, taskDetailOutput{}, err
	}
	deps, err := s.svc.Dependencies(ctx, t.ID)
	if err != nil {
		return nil, taskDetailOutput{}, toolError(err)
	}
	return nil, taskDetailOutput{
		Task:       t.View(),
		DependsOn:  task.Views(deps.DependsOn),
		Dependents: task.Views(deps.Dependents),
	}, nil
}

func (s *Server) listTasks(ctx context.Context, _ *mcp.CallToolRequest, in listTasksInput) (*mcp.CallToolResult, listOutput, error) {
	f := task.Filter{Page: in.Page, PerPage: in.PerPage}
	if in.Status != "" {
		status, err := task.ParseStatus(in.Status)
		if err != nil {
			return nil, listOutput{}, toolError(err)
		}
		f.Status = &status
	}
	if !s.policy.Allow(s.caller, auth.ActionListAll, nil) {
		f.AssigneeID = &s.caller.UserID
	}
	page, err := s.svc.List(ctx, f)
	if err != nil {
		return nil, listOutput{}, err
	}
	return nil, listOutput{Tasks: task.Views(page.Items), Total: page.Total, Page: page.Page}, nil
}
