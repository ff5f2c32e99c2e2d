// Package task defines the task model, its error kinds and task persistence.
package task

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the storage and wire layout of due dates.
const DateLayout = "2006-01-02"

// MaxTitleLength bounds Task.Title.
const MaxTitleLength = 255

// Status is the lifecycle state of a task.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusCanceled  Status = "canceled"
)

// Statuses lists every valid status.
var Statuses = []Status{StatusPending, StatusCompleted, StatusCanceled}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusCanceled:
		return true
	}
	return false
}

// ParseStatus converts a user supplied status string.
func ParseStatus(value string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(value)))
	if !s.Valid() {
		return "", &Error{Kind: KindInvalidStatus, Detail: value}
	}
	return s, nil
}

// Task describes a task record.
type Task struct {
	ID          int64
	Title       string
	Description string
	Status      Status
	DueDate     *time.Time
	CreatedBy   int64
	AssigneeID  *int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewTask holds the fields accepted when creating a task.
type NewTask struct {
	Title       string
	Description string
	Status      Status
	DueDate     *time.Time
	AssigneeID  *int64
	DependsOnID *int64
}

// Validate normalizes and checks the creation payload.
func (n *NewTask) Validate() error {
	n.Title = strings.TrimSpace(n.Title)
	if err := validateTitle(n.Title); err != nil {
		return err
	}
	if n.Status == "" {
		n.Status = StatusPending
	}
	if !n.Status.Valid() {
		return &Error{Kind: KindInvalidStatus, Detail: string(n.Status)}
	}
	return nil
}

// Update holds a partial update. Nil fields are left untouched.
type Update struct {
	Title         *string
	Description   *string
	DueDate       *time.Time
	ClearDueDate  bool
	AssigneeID    *int64
	ClearAssignee bool
}

// Empty reports whether the update changes nothing.
func (u Update) Empty() bool {
	return u.Title == nil && u.Description == nil && u.DueDate == nil &&
		!u.ClearDueDate && u.AssigneeID == nil && !u.ClearAssignee
}

// Validate normalizes and checks the update payload.
func (u *Update) Validate() error {
	if u.Title != nil {
		title := strings.TrimSpace(*u.Title)
		if err := validateTitle(title); err != nil {
			return err
		}
		u.Title = &title
	}
	return nil
}

func validateTitle(title string) error {
	if title == "" {
		return &Error{Kind: KindInvalid, Detail: "title is required"}
	}
	if len([]rune(title)) > MaxTitleLength {
		return &Error{Kind: KindInvalid, Detail: fmt.Sprintf("title must be at most %d characters", MaxTitleLength)}
	}
	return nil
}

// Filter narrows List results. Zero values mean "no filter".
type Filter struct {
	Status     *Status
	DueFrom    *time.Time
	DueTo      *time.Time
	AssigneeID *int64
	Page       int
	PerPage    int
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(value string) (time.Time, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", value, err)
	}
	return d, nil
}

// View is the serialized shape of a task shared by the API, the CLI and the MCP tools.
type View struct {
	ID          int64  `json:"id"                    yaml:"id"`
	Title       string `json:"title"                 yaml:"title"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Status      Status `json:"status"                yaml:"status"`
	DueDate     string `json:"due_date,omitempty"    yaml:"due_date,omitempty"`
	CreatedBy   int64  `json:"created_by"            yaml:"created_by"`
	AssigneeID  *int64 `json:"assignee_id,omitempty" yaml:"assignee_id,omitempty"`
	CreatedAt   string `json:"created_at"            yaml:"created_at"`
	UpdatedAt   string `json:"updated_at"            yaml:"updated_at"`
}

// View converts t to its serialized shape.
func (t Task) View() View {
	v := View{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Status:      t.Status,
		CreatedBy:   t.CreatedBy,
		AssigneeID:  t.AssigneeID,
		CreatedAt:   t.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   t.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if t.DueDate != nil {
		v.DueDate = t.DueDate.Format(DateLayout)
	}
	return v
}

// Views converts a slice of tasks.
func Views(items []Task) []View {
	out := make([]View, 0, len(items))
	for _, item := range items {
		out = append(out, item.View())
	}
	return out
}
