package task

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind is the stable, machine readable category of a task error.
type Kind string

const (
	KindTaskNotFound           Kind = "task_not_found"
	KindDependencyNotFound     Kind = "dependency_not_found"
	KindAlreadyCompleted       Kind = "already_completed"
	KindCycleDetected          Kind = "cycle_detected"
	KindDuplicateDependency    Kind = "duplicate_dependency"
	KindIncompleteDependencies Kind = "incomplete_dependencies"
	KindInvalidStatus          Kind = "invalid_status"
	KindInvalid                Kind = "invalid_task"
)

// HTTPStatus maps the kind to the response status used by the API.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindTaskNotFound, KindDependencyNotFound:
		return http.StatusNotFound
	case KindAlreadyCompleted:
		return http.StatusBadRequest
	case KindDuplicateDependency:
		return http.StatusConflict
	case KindCycleDetected, KindIncompleteDependencies, KindInvalidStatus, KindInvalid:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// Error is a semantic rejection of a task operation. It is never retried.
type Error struct {
	Kind Kind
	// TaskID is the subject of the error, zero when not applicable.
	TaskID int64
	// Blocking lists the unfinished dependencies for KindIncompleteDependencies.
	Blocking []int64
	Detail   string
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindTaskNotFound:
		if e.TaskID != 0 {
			return fmt.Sprintf("task with ID %d not found", e.TaskID)
		}
		return "task not found"
	case KindDependencyNotFound:
		if e.TaskID != 0 {
			return fmt.Sprintf("task dependency with ID %d not found", e.TaskID)
		}
		return "task dependency not found"
	case KindAlreadyCompleted:
		return "cannot add dependency to a completed task"
	case KindCycleDetected:
		return "cycle detected in task dependencies: a task cannot depend on itself or create a circular dependency"
	case KindDuplicateDependency:
		return "dependency already exists"
	case KindIncompleteDependencies:
		msg := "cannot mark task as completed until all dependencies are completed"
		if len(e.Blocking) > 0 {
			ids := make([]string, 0, len(e.Blocking))
			for _, id := range e.Blocking {
				ids = append(ids, fmt.Sprint(id))
			}
			msg += " (pending: " + strings.Join(ids, ", ") + ")"
		}
		return msg
	case KindInvalidStatus:
		names := make([]string, 0, len(Statuses))
		for _, st := range Statuses {
			names = append(names, string(st))
		}
		return fmt.Sprintf("invalid status %q: must be one of %s", e.Detail, strings.Join(names, ", "))
	case KindInvalid:
		return "invalid task: " + e.Detail
	}
	return string(e.Kind)
}

// Is matches any *Error of the same kind, so errors.Is works against the sentinels below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrTaskNotFound           = &Error{Kind: KindTaskNotFound}
	ErrDependencyNotFound     = &Error{Kind: KindDependencyNotFound}
	ErrAlreadyCompleted       = &Error{Kind: KindAlreadyCompleted}
	ErrCycleDetected          = &Error{Kind: KindCycleDetected}
	ErrDuplicateDependency    = &Error{Kind: KindDuplicateDependency}
	ErrIncompleteDependencies = &Error{Kind: KindIncompleteDependencies}
	ErrInvalidStatus          = &Error{Kind: KindInvalidStatus}
	ErrInvalid                = &Error{Kind: KindInvalid}
)

// NotFound returns a TaskNotFound error for id.
func NotFound(id int64) error {
	return &Error{Kind: KindTaskNotFound, TaskID: id}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind, true
	}
	return "", false
}
