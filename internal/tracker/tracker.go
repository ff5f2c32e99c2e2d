// Package tracker implements the task operations on top of the task and graph stores:
// task creation, dependency management and status transitions.
//
// Every mutating operation runs its reads and its single write inside one
// transaction. The database opens transactions with BEGIN IMMEDIATE, so two
// concurrent check-then-insert sequences are serialized and can never both
// commit edges that together form a cycle.
package tracker

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/metalagman/taskgraph/internal/graph"
	"github.com/metalagman/taskgraph/internal/task"
)

const (
	DefaultPageSize = 15
	MaxPageSize     = 100
)

// Options tunes listing behaviour.
type Options struct {
	DefaultPageSize int
	MaxPageSize     int
}

// Service exposes the task graph operations.
type Service struct {
	db              *sql.DB
	defaultPageSize int
	maxPageSize     int
}

// New creates a service over an opened database.
func New(database *sql.DB, opts Options) *Service {
	s := &Service{
		db:              database,
		defaultPageSize: opts.DefaultPageSize,
		maxPageSize:     opts.MaxPageSize,
	}
	if s.defaultPageSize <= 0 {
		s.defaultPageSize = DefaultPageSize
	}
	if s.maxPageSize <= 0 {
		s.maxPageSize = MaxPageSize
	}
	if s.defaultPageSize > s.maxPageSize {
		s.defaultPageSize = s.maxPageSize
	}
	return s
}

// Task fetches a single task.
func (s *Service) Task(ctx context.Context, id int64) (task.Task, error) {
	return task.NewStore(s.db).Get(ctx, id)
}

// Page is one page of a task listing.
type Page struct {
	Items   []task.Task
	Total   int
	Page    int
	PerPage int
}

// List returns one page of tasks. Page sizes are clamped to the configured bounds.
func (s *Service) List(ctx context.Context, f task.Filter) (Page, error) {
	if f.PerPage <= 0 {
		f.PerPage = s.defaultPageSize
	}
	if f.PerPage > s.maxPageSize {
		f.PerPage = s.maxPageSize
	}
	if f.Page < 1 {
		f.Page = 1
	}
	items, total, err := task.NewStore(s.db).List(ctx, f)
	if err != nil {
		return Page{}, err
	}
	return Page{Items: items, Total: total, Page: f.Page, PerPage: f.PerPage}, nil
}

// Dependencies holds the direct neighbourhood of a task in the graph.
type Dependencies struct {
	// DependsOn are the tasks the subject directly depends on.
	DependsOn []task.Task
	// Dependents are the tasks that directly depend on the subject.
	Dependents []task.Task
}

// Dependencies returns the direct dependencies and dependents of a task.
func (s *Service) Dependencies(ctx context.Context, id int64) (Dependencies, error) {
	tasks := task.NewStore(s.db)
	edges := graph.NewStore(s.db)
	if _, err := tasks.Get(ctx, id); err != nil {
		return Dependencies{}, err
	}
	dependsOn, err := edges.DirectDependencies(ctx, id)
	if err != nil {
		return Dependencies{}, err
	}
	dependents, err := edges.Dependents(ctx, id)
	if err != nil {
		return Dependencies{}, err
	}
	var out Dependencies
	if out.DependsOn, err = tasks.GetMany(ctx, dependsOn); err != nil {
		return Dependencies{}, err
	}
	if out.Dependents, err = tasks.GetMany(ctx, dependents); err != nil {
		return Dependencies{}, err
	}
	return out, nil
}

// WouldCreateCycle reports whether adding taskID -> dependsOnID would create a cycle
// in the currently committed graph. It does not check that either task exists.
func (s *Service) WouldCreateCycle(ctx context.Context, taskID, dependsOnID int64) (bool, error) {
	return graph.NewDetector(graph.NewStore(s.db)).WouldCreateCycle(ctx, taskID, dependsOnID)
}

// Verify loads the whole edge set and returns a cycle if one exists.
func (s *Service) Verify(ctx context.Context) ([]int64, int, error) {
	edges, err := graph.NewStore(s.db).Edges(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("verify graph: %w", err)
	}
	return graph.FindCycle(edges), len(edges), nil
}
