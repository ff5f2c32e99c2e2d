package tracker

import (
	"context"
	"database/sql"

	"github.com/metalagman/taskgraph/internal/db"
	"github.com/metalagman/taskgraph/internal/graph"
	"github.com/metalagman/taskgraph/internal/task"
	"github.com/rs/zerolog/log"
)

// UpdateStatus moves a task to status and returns the refreshed task.
//
// Moving to completed requires every direct dependency to be completed
// already. Each of those could only complete once its own dependencies had,
// so the direct check covers the whole closure. Other transitions are not
// guarded by the graph.
func (s *Service) UpdateStatus(ctx context.Context, taskID int64, status task.Status) (task.Task, error) {
	if !status.Valid() {
		return task.Task{}, &task.Error{Kind: task.KindInvalidStatus, TaskID: taskID, Detail: string(status)}
	}
	var updated task.Task
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		tasks := task.NewStore(tx)
		current, err := tasks.Get(ctx, taskID)
		if err != nil {
			return err
		}
		if status == task.StatusCompleted {
			blocking, err := graph.NewStore(tx).IncompleteDependencies(ctx, taskID)
			if err != nil {
				return err
			}
			if len(blocking) > 0 {
				return &task.Error{Kind: task.KindIncompleteDependencies, TaskID: taskID, Blocking: blocking}
			}
		}
		if err := tasks.UpdateStatus(ctx, taskID, status); err != nil {
			return err
		}
		updated, err = tasks.Get(ctx, taskID)
		if err != nil {
			return err
		}
		log.Debug().Int64("task_id", taskID).Str("from", string(current.Status)).Str("to", string(status)).Msg("task status changed")
		return nil
	})
	if err != nil {
		logRejection(err, "update status", taskID, nil)
		return task.Task{}, err
	}
	return updated, nil
}

// UpdateTask applies a partial update of the descriptive fields and returns the refreshed task.
// Status and ownership are not writable here.
func (s *Service) UpdateTask(ctx context.Context, taskID int64, u task.Update) (task.Task, error) {
	if err := u.Validate(); err != nil {
		return task.Task{}, err
	}
	if u.Empty() {
		return s.Task(ctx, taskID)
	}
	var updated task.Task
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		tasks := task.NewStore(tx)
		if err := tasks.Update(ctx, taskID, u); err != nil {
			return err
		}
		var err error
		updated, err = tasks.Get(ctx, taskID)
		return err
	})
	if err != nil {
		logRejection(err, "update task", taskID, nil)
		return task.Task{}, err
	}
	return updated, nil
}
