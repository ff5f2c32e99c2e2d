package auth

import "github.com/metalagman/taskgraph/internal/task"

// Identity is the authenticated caller of an operation.
type Identity struct {
	UserID int64
	Role   Role
}

// IsManager reports whether the caller has the manager role.
func (i Identity) IsManager() bool {
	return i.Role == RoleManager
}

// Action is an operation subject to authorization.
type Action string

const (
	ActionCreate        Action = "create"
	ActionListAll       Action = "list_all"
	ActionView          Action = "view"
	ActionUpdate        Action = "update"
	ActionUpdateStatus  Action = "update_status"
	ActionAddDependency Action = "add_dependency"
)

// Policy decides which callers may perform which actions on which tasks.
// It knows nothing about the dependency graph.
type Policy struct{}

// Allow reports whether caller may perform action on target.
// target is nil for actions that do not address a single task.
func (Policy) Allow(caller Identity, action Action, target *task.Task) bool {
	if caller.UserID == 0 {
		return false
	}
	if caller.IsManager() {
		return true
	}
	switch action {
	case ActionCreate, ActionListAll:
		return false
	}
	if target == nil {
		return false
	}
	owner := target.CreatedBy == caller.UserID
	assignee := target.AssigneeID != nil && *target.AssigneeID == caller.UserID
	switch action {
	case ActionView, ActionUpdateStatus:
		return owner || assignee
	case ActionUpdate, ActionAddDependency:
		return owner
	}
	return false
}
