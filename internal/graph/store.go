// Package graph stores task dependency edges and answers reachability questions about them.
//
// An edge (TaskID, DependsOnID) means TaskID cannot be completed until
// DependsOnID is completed. The edge set is kept acyclic by callers that
// consult Detector before every AddEdge.
package graph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/metalagman/taskgraph/internal/db"
)

// ErrEdgeExists is returned by AddEdge when the ordered pair is already stored.
var ErrEdgeExists = errors.New("dependency edge already exists")

// Edge is a directed dependency edge.
type Edge struct {
	TaskID      int64 `json:"task_id"       yaml:"task_id"`
	DependsOnID int64 `json:"depends_on_id" yaml:"depends_on_id"`
}

// Store persists dependency edges. It never caches graph state.
type Store struct {
	q db.Querier
}

// NewStore creates an edge store over a database handle or an open transaction.
func NewStore(q db.Querier) *Store {
	return &Store{q: q}
}

// EdgeExists reports whether the exact ordered pair is committed.
func (s *Store) EdgeExists(ctx context.Context, taskID, dependsOnID int64) (bool, error) {
	var exists bool
	err := s.q.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM task_dependencies WHERE task_id=? AND depends_on_task_id=?)`,
		taskID, dependsOnID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check dependency edge: %w", err)
	}
	return exists, nil
}

// AddEdge inserts the edge. A duplicate pair yields ErrEdgeExists.
func (s *Store) AddEdge(ctx context.Context, taskID, dependsOnID int64) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.q.ExecContext(ctx, `INSERT INTO task_dependencies(task_id, depends_on_task_id, created_at) VALUES(?, ?, ?)`,
		taskID, dependsOnID, now)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrEdgeExists
		}
		return fmt.Errorf("insert dependency edge: %w", err)
	}
	return nil
}

// ReachableAncestors returns every task id reachable from startID by following
// depends-on edges, sorted ascending. startID itself is only included when it
// lies on a cycle.
//
// UNION discards rows already produced, so the recursion stops once no new
// task id appears. Evaluation is bounded by the number of distinct tasks
// even for a cyclic edge set.
func (s *Store) ReachableAncestors(ctx context.Context, startID int64) ([]int64, error) {
	const query = `
WITH RECURSIVE ancestors(id) AS (
  SELECT depends_on_task_id FROM task_dependencies WHERE task_id = ?
  UNION
  SELECT d.depends_on_task_id
  FROM task_dependencies d
  JOIN ancestors a ON d.task_id = a.id
)
SELECT id FROM ancestors ORDER BY id`
	return s.ids(ctx, "reachable ancestors", query, startID)
}

// DirectDependencies returns the ids taskID directly depends on.
func (s *Store) DirectDependencies(ctx context.Context, taskID int64) ([]int64, error) {
	return s.ids(ctx, "direct dependencies",
		`SELECT depends_on_task_id FROM task_dependencies WHERE task_id=? ORDER BY depends_on_task_id`, taskID)
}

// Dependents returns the ids that directly depend on taskID.
func (s *Store) Dependents(ctx context.Context, taskID int64) ([]int64, error) {
	return s.ids(ctx, "dependents",
		`SELECT task_id FROM task_dependencies WHERE depends_on_task_id=? ORDER BY task_id`, taskID)
}

// IncompleteDependencies returns the direct dependencies of taskID whose status is not completed.
func (s *Store) IncompleteDependencies(ctx context.Context, taskID int64) ([]int64, error) {
	const query = `
SELECT e.depends_on_task_id
FROM task_dependencies e
JOIN tasks d ON d.id = e.depends_on_task_id
WHERE e.task_id = ? AND d.status != 'completed'
ORDER BY e.depends_on_task_id`
	return s.ids(ctx, "incomplete dependencies", query, taskID)
}

// CountEdges returns how many rows hold the ordered pair. It is at most one.
func (s *Store) CountEdges(ctx context.Context, taskID, dependsOnID int64) (int, error) {
	var n int
	err := s.q.QueryRowContext(ctx, `SELECT count(*) FROM task_dependencies WHERE task_id=? AND depends_on_task_id=?`,
		taskID, dependsOnID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count dependency edges: %w", err)
	}
	return n, nil
}

// Edges returns the full edge set ordered by (task_id, depends_on_task_id).
func (s *Store) Edges(ctx context.Context) ([]Edge, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT task_id, depends_on_task_id FROM task_dependencies ORDER BY task_id, depends_on_task_id`)
	if err != nil {
		return nil, fmt.Errorf("query dependency edges: %w", err)
	}
	defer rows.Close()
	var out []Edge
	for rows.Next() {
		var e Edge
		if err := rows.Scan(&e.TaskID, &e.DependsOnID); err != nil {
			return nil, fmt.Errorf("scan dependency edge: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dependency edges: %w", err)
	}
	return out, nil
}

func (s *Store) ids(ctx context.Context, what, query string, args ...any) ([]int64, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", what, err)
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan %s: %w", what, err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", what, err)
	}
	return out, nil
}
