package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/metalagman/taskgraph/internal/task"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// CLI tests share the package-level flag variables and the global viper
// instance, so none of them run in parallel.

func runCLI(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	cmd, err := newRootCmd()
	require.NoError(t, err)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"-C", dir}, args...))
	err = cmd.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, dir string, args ...string) string {
	t.Helper()
	out, err := runCLI(t, dir, args...)
	require.NoError(t, err, "taskgraph %v", args)
	return out
}

func newWorkspace(t *testing.T) string {
	t.Helper()
	t.Setenv("TASKGRAPH_AUTH_BCRYPT_COST", "4")
	dir := t.TempDir()
	out := mustRun(t, dir, "init")
	assert.Contains(t, out, "initialized")
	mustRun(t, dir, "user", "add", "--name", "Manager", "--email", "m@example.com", "--password", "password1", "--role", "manager")
	mustRun(t, dir, "user", "add", "--name", "Worker", "--email", "w@example.com", "--password", "password1")
	return dir
}

func addTask(t *testing.T, dir string, args ...string) int64 {
	t.Helper()
	out := mustRun(t, dir, append([]string{"task", "add", "--as", "m@example.com", "-o", "json"}, args...)...)
	var v task.View
	require.NoError(t, json.Unmarshal([]byte(out), &v), out)
	return v.ID
}

func TestInit_IsIdempotent(t *testing.T) {
	dir := t.TempDir()
	mustRun(t, dir, "init")
	assert.FileExists(t, filepath.Join(dir, ".taskgraph", "config.yaml"))
	assert.FileExists(t, filepath.Join(dir, ".taskgraph", "taskgraph.db"))

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".taskgraph", "config.yaml"), []byte("http:\n  addr: :9999\n"), 0o644))
	mustRun(t, dir, "init")
	data, err := os.ReadFile(filepath.Join(dir, ".taskgraph", "config.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), ":9999", "existing config is kept")
}

func TestTaskCommands_DependencyFlow(t *testing.T) {
	dir := newWorkspace(t)
	a := addTask(t, dir, "Design", "schema")
	b := addTask(t, dir, "Build", "--depends-on", fmt.Sprint(a), "--description", "# Plan\n\nship it")

	_, err := runCLI(t, dir, "task", "link", "--as", "m@example.com", fmt.Sprint(a), fmt.Sprint(b))
	require.ErrorIs(t, err, task.ErrCycleDetected)

	_, err = runCLI(t, dir, "task", "link", "--as", "m@example.com", fmt.Sprint(b), fmt.Sprint(a))
	require.ErrorIs(t, err, task.ErrDuplicateDependency)

	out := mustRun(t, dir, "task", "cycle-check", "--as", "m@example.com", "-o", "json", fmt.Sprint(a), fmt.Sprint(b))
	var check cycleCheckOutput
	require.NoError(t, json.Unmarshal([]byte(out), &check))
	assert.True(t, check.WouldCreateCycle)

	_, err = runCLI(t, dir, "task", "status", "--as", "m@example.com", fmt.Sprint(b), "completed")
	require.ErrorIs(t, err, task.ErrIncompleteDependencies)

	mustRun(t, dir, "task", "status", "--as", "m@example.com", fmt.Sprint(a), "completed")
	out = mustRun(t, dir, "task", "status", "--as", "m@example.com", fmt.Sprint(b), "completed")
	assert.Contains(t, out, "completed")

	out = mustRun(t, dir, "task", "show", "--as", "m@example.com", fmt.Sprint(b))
	assert.Contains(t, out, "Build")
	assert.Contains(t, out, "depends on:")
	assert.Contains(t, out, "ship it")

	out = mustRun(t, dir, "task", "list", "--as", "m@example.com", "-o", "yaml")
	assert.Contains(t, out, "title: Design schema")
	assert.Contains(t, out, "total: 2")

	out = mustRun(t, dir, "graph", "verify")
	assert.Contains(t, out, "graph is acyclic (1 edges)")
}

func TestTaskCommands_Policy(t *testing.T) {
	dir := newWorkspace(t)

	_, err := runCLI(t, dir, "task", "add", "--as", "w@example.com", "nope")
	require.ErrorIs(t, err, errForbidden)

	_, err = runCLI(t, dir, "task", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--as is required")

	_, err = runCLI(t, dir, "task", "list", "--as", "ghost@example.com")
	require.Error(t, err)

	id := addTask(t, dir, "Assigned", "--assignee", "2")
	other := addTask(t, dir, "Unassigned")

	out := mustRun(t, dir, "task", "list", "--as", "w@example.com", "-o", "json")
	var list listOutput
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	require.Len(t, list.Tasks, 1)
	assert.Equal(t, id, list.Tasks[0].ID)

	_, err = runCLI(t, dir, "task", "show", "--as", "w@example.com", fmt.Sprint(other))
	require.ErrorIs(t, err, errForbidden)
	_, err = runCLI(t, dir, "task", "update", "--as", "w@example.com", fmt.Sprint(id), "--title", "mine now")
	require.ErrorIs(t, err, errForbidden)

	out = mustRun(t, dir, "task", "update", "--as", "m@example.com", "-o", "json", fmt.Sprint(id), "--title", "Renamed", "--clear-assignee")
	var v task.View
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.Equal(t, "Renamed", v.Title)
	assert.Nil(t, v.AssigneeID)
}

func TestTaskCommands_Validation(t *testing.T) {
	dir := newWorkspace(t)

	_, err := runCLI(t, dir, "task", "add", "--as", "m@example.com", "x", "--depends-on", "42")
	require.ErrorIs(t, err, task.ErrDependencyNotFound)

	out := mustRun(t, dir, "task", "list", "--as", "m@example.com")
	assert.Contains(t, out, "no tasks", "rejected dependency leaves no task behind")

	_, err = runCLI(t, dir, "task", "add", "--as", "m@example.com", "x", "--assignee", "9999")
	require.ErrorIs(t, err, task.ErrInvalid)

	_, err = runCLI(t, dir, "task", "status", "--as", "m@example.com", "1", "done")
	require.ErrorIs(t, err, task.ErrInvalidStatus)

	_, err = runCLI(t, dir, "task", "show", "--as", "m@example.com", "abc")
	require.Error(t, err)

	_, err = runCLI(t, dir, "task", "list", "--as", "m@example.com", "-o", "xml")
	require.Error(t, err)
}
