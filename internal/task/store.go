package task

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/metalagman/taskgraph/internal/db"
)

const taskColumns = `id, title, description, status, due_date, created_by, assignee_id, created_at, updated_at`

// Store manages task persistence.
type Store struct {
	q db.Querier
}

// NewStore creates a task store over a database handle or an open transaction.
func NewStore(q db.Querier) *Store {
	return &Store{q: q}
}

// Create inserts a new task owned by createdBy and returns its id.
// The payload is expected to be validated already.
func (s *Store) Create(ctx context.Context, createdBy int64, in NewTask) (int64, error) {
	now := formatTime(time.Now())
	status := in.Status
	if status == "" {
		status = StatusPending
	}
	res, err := s.q.ExecContext(ctx, `INSERT INTO tasks(title, description, status, due_date, created_by, assignee_id, created_at, updated_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		in.Title, nullableString(in.Description), string(status), nullableDate(in.DueDate), createdBy, nullableInt(in.AssigneeID), now, now)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			if in.AssigneeID != nil {
				return 0, unknownAssignee(*in.AssigneeID)
			}
			return 0, &Error{Kind: KindInvalid, Detail: fmt.Sprintf("creator %d does not exist", createdBy)}
		}
		return 0, fmt.Errorf("insert task: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read task id: %w", err)
	}
	return id, nil
}

func unknownAssignee(id int64) error {
	return &Error{Kind: KindInvalid, Detail: fmt.Sprintf("assignee %d does not exist", id)}
}

// Get fetches a task by id. A missing task yields ErrTaskNotFound.
func (s *Store) Get(ctx context.Context, id int64) (Task, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=?`, id)
	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Task{}, NotFound(id)
		}
		return Task{}, fmt.Errorf("read task: %w", err)
	}
	return t, nil
}

// Exists reports whether a task with id is stored.
func (s *Store) Exists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	if err := s.q.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM tasks WHERE id=?)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("check task: %w", err)
	}
	return exists, nil
}

// GetMany fetches the tasks with the given ids ordered by id. Unknown ids are skipped.
func (s *Store) GetMany(ctx context.Context, ids []int64) ([]Task, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}
	rows, err := s.q.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id IN (`+placeholders+`) ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	return collect(rows)
}

// List returns one page of tasks matching the filter and the total match count.
func (s *Store) List(ctx context.Context, f Filter) ([]Task, int, error) {
	var where []string
	var args []any
	if f.Status != nil {
		where = append(where, "status=?")
		args = append(args, string(*f.Status))
	}
	if f.DueFrom != nil {
		where = append(where, "due_date >= ?")
		args = append(args, f.DueFrom.Format(DateLayout))
	}
	if f.DueTo != nil {
		where = append(where, "due_date <= ?")
		args = append(args, f.DueTo.Format(DateLayout))
	}
	if f.AssigneeID != nil {
		where = append(where, "assignee_id=?")
		args = append(args, *f.AssigneeID)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.q.QueryRowContext(ctx, `SELECT count(*) FROM tasks`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count tasks: %w", err)
	}

	query := `SELECT ` + taskColumns + ` FROM tasks` + clause + ` ORDER BY id`
	if f.PerPage > 0 {
		page := f.Page
		if page < 1 {
			page = 1
		}
		query += " LIMIT ? OFFSET ?"
		args = append(args, f.PerPage, (page-1)*f.PerPage)
	}
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query tasks: %w", err)
	}
	items, err := collect(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// Update applies a partial update to the task.
func (s *Store) Update(ctx context.Context, id int64, u Update) error {
	sets := []string{"updated_at=?"}
	args := []any{formatTime(time.Now())}
	if u.Title != nil {
		sets = append(sets, "title=?")
		args = append(args, *u.Title)
	}
	if u.Description != nil {
		sets = append(sets, "description=?")
		args = append(args, nullableString(*u.Description))
	}
	switch {
	case u.ClearDueDate:
		sets = append(sets, "due_date=NULL")
	case u.DueDate != nil:
		sets = append(sets, "due_date=?")
		args = append(args, u.DueDate.Format(DateLayout))
	}
	switch {
	case u.ClearAssignee:
		sets = append(sets, "assignee_id=NULL")
	case u.AssigneeID != nil:
		sets = append(sets, "assignee_id=?")
		args = append(args, *u.AssigneeID)
	}
	args = append(args, id)
	res, err := s.q.ExecContext(ctx, `UPDATE tasks SET `+strings.Join(sets, ", ")+` WHERE id=?`, args...)
	if err != nil {
		if u.AssigneeID != nil && db.IsForeignKeyViolation(err) {
			return unknownAssignee(*u.AssigneeID)
		}
		return fmt.Errorf("update task: %w", err)
	}
	return requireRow(res, id)
}

// UpdateStatus sets a task status and updated_at.
func (s *Store) UpdateStatus(ctx context.Context, id int64, status Status) error {
	res, err := s.q.ExecContext(ctx, `UPDATE tasks SET status=?, updated_at=? WHERE id=?`, string(status), formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("update task status: %w", err)
	}
	return requireRow(res, id)
}

func requireRow(res sql.Result, id int64) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return NotFound(id)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (Task, error) {
	var t Task
	var description, dueDate sql.NullString
	var assignee sql.NullInt64
	var status, createdAt, updatedAt string
	if err := row.Scan(&t.ID, &t.Title, &description, &status, &dueDate, &t.CreatedBy, &assignee, &createdAt, &updatedAt); err != nil {
		return Task{}, err
	}
	t.Status = Status(status)
	t.Description = description.String
	if dueDate.Valid {
		d, err := ParseDate(dueDate.String)
		if err != nil {
			return Task{}, err
		}
		t.DueDate = &d
	}
	if assignee.Valid {
		id := assignee.Int64
		t.AssigneeID = &id
	}
	var err error
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return Task{}, err
	}
	if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return Task{}, err
	}
	return t, nil
}

func collect(rows *sql.Rows) ([]Task, error) {
	defer rows.Close()
	var out []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return out, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", value, err)
	}
	return t, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableInt(value *int64) any {
	if value == nil {
		return nil
	}
	return *value
}

func nullableDate(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.Format(DateLayout)
}
