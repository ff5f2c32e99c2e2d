package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/metalagman/taskgraph/internal/auth"
	"github.com/metalagman/taskgraph/internal/config"
	"github.com/metalagman/taskgraph/internal/db"
	"github.com/metalagman/taskgraph/internal/task"
	"github.com/metalagman/taskgraph/internal/tracker"
)

// env bundles the opened database and the services built on it.
type env struct {
	cfg   config.Config
	db    *sql.DB
	svc   *tracker.Service
	users *auth.Store
}

func openDB(cfg config.Config) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create database dir: %w", err)
	}
	return db.Open(cfg.Database.Path, db.Options{BusyTimeout: cfg.Database.BusyTimeout})
}

func openEnv() (*env, func(), error) {
	cfg, err := loadConfig(workingDir())
	if err != nil {
		return nil, func() {}, err
	}
	database, err := openDB(cfg)
	if err != nil {
		return nil, func() {}, err
	}
	e := &env{
		cfg: cfg,
		db:  database,
		svc: tracker.New(database, tracker.Options{
			DefaultPageSize: cfg.Tasks.DefaultPageSize,
			MaxPageSize:     cfg.Tasks.MaxPageSize,
		}),
		users: auth.NewStore(database, cfg.Auth.BcryptCost),
	}
	return e, func() { _ = database.Close() }, nil
}

// caller resolves the --as email to an identity.
func (e *env) caller(ctx context.Context, email string) (auth.Identity, error) {
	if strings.TrimSpace(email) == "" {
		return auth.Identity{}, errors.New("--as is required: the email of the acting user")
	}
	u, err := e.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			return auth.Identity{}, fmt.Errorf("user %q not found", email)
		}
		return auth.Identity{}, err
	}
	return u.Identity(), nil
}

var errForbidden = errors.New("forbidden: this action is unauthorized")

// authorize loads a task and checks that caller may perform action on it.
func (e *env) authorize(ctx context.Context, caller auth.Identity, id int64, action auth.Action) (task.Task, error) {
	t, err := e.svc.Task(ctx, id)
	if err != nil {
		return task.Task{}, err
	}
	if !(auth.Policy{}).Allow(caller, action, &t) {
		return task.Task{}, errForbidden
	}
	return t, nil
}
