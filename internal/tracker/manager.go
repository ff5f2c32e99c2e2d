package tracker

import (
	"context"
	"database/sql"
	"errors"

	"github.com/metalagman/taskgraph/internal/db"
	"github.com/metalagman/taskgraph/internal/graph"
	"github.com/metalagman/taskgraph/internal/task"
	"github.com/rs/zerolog/log"
)

// CreateTask inserts a task owned by createdBy. When in.DependsOnID is set the
// dependency is attached in the same transaction, so a rejected dependency
// leaves no task behind.
func (s *Service) CreateTask(ctx context.Context, createdBy int64, in task.NewTask) (task.Task, error) {
	if err := in.Validate(); err != nil {
		return task.Task{}, err
	}
	var created task.Task
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		tasks := task.NewStore(tx)
		id, err := tasks.Create(ctx, createdBy, in)
		if err != nil {
			return err
		}
		if created, err = tasks.Get(ctx, id); err != nil {
			return err
		}
		if in.DependsOnID != nil {
			return addDependency(ctx, tx, created, *in.DependsOnID)
		}
		return nil
	})
	if err != nil {
		logRejection(err, "create task", 0, in.DependsOnID)
		return task.Task{}, err
	}
	log.Debug().Int64("task_id", created.ID).Int64("created_by", createdBy).Msg("task created")
	return created, nil
}

// AddDependency records that taskID depends on dependsOnID.
//
// Checks run in a fixed order, which decides the error a caller sees when
// several conditions hold: completed task, missing target, cycle, duplicate.
func (s *Service) AddDependency(ctx context.Context, taskID, dependsOnID int64) error {
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		t, err := task.NewStore(tx).Get(ctx, taskID)
		if err != nil {
			return err
		}
		return addDependency(ctx, tx, t, dependsOnID)
	})
	if err != nil {
		logRejection(err, "add dependency", taskID, &dependsOnID)
		return err
	}
	log.Debug().Int64("task_id", taskID).Int64("depends_on_id", dependsOnID).Msg("dependency added")
	return nil
}

func addDependency(ctx context.Context, q db.Querier, t task.Task, dependsOnID int64) error {
	if t.Status == task.StatusCompleted {
		return &task.Error{Kind: task.KindAlreadyCompleted, TaskID: t.ID}
	}

	exists, err := task.NewStore(q).Exists(ctx, dependsOnID)
	if err != nil {
		return err
	}
	if !exists {
		return &task.Error{Kind: task.KindDependencyNotFound, TaskID: dependsOnID}
	}

	edges := graph.NewStore(q)
	cyclic, err := graph.NewDetector(edges).WouldCreateCycle(ctx, t.ID, dependsOnID)
	if err != nil {
		return err
	}
	if cyclic {
		return &task.Error{Kind: task.KindCycleDetected, TaskID: t.ID}
	}

	duplicate, err := edges.EdgeExists(ctx, t.ID, dependsOnID)
	if err != nil {
		return err
	}
	if duplicate {
		return &task.Error{Kind: task.KindDuplicateDependency, TaskID: t.ID}
	}

	if err := edges.AddEdge(ctx, t.ID, dependsOnID); err != nil {
		if errors.Is(err, graph.ErrEdgeExists) {
			return &task.Error{Kind: task.KindDuplicateDependency, TaskID: t.ID}
		}
		return err
	}
	return nil
}

func logRejection(err error, op string, taskID int64, dependsOnID *int64) {
	kind, ok := task.KindOf(err)
	if !ok {
		return
	}
	ev := log.Info().Str("op", op).Str("reason", string(kind))
	if taskID != 0 {
		ev = ev.Int64("task_id", taskID)
	}
	if dependsOnID != nil {
		ev = ev.Int64("depends_on_id", *dependsOnID)
	}
	ev.Msg("task operation rejected")
}
