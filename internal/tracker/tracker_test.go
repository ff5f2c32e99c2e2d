package tracker

import (
	"context"
	"database/sql"
	"math/rand"
	"path/filepath"
	"sync"
	"testing"

	"github.com/metalagman/taskgraph/internal/db"
	"github.com/metalagman/taskgraph/internal/graph"
	"github.com/metalagman/taskgraph/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const managerID = int64(1)

func newTestService(t *testing.T) (*Service, *sql.DB) {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "taskgraph.db"), db.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	_, err = database.Exec(`INSERT INTO users(name, email, password_hash, role, created_at)
		VALUES('manager', 'manager@example.com', 'x', 'manager', '2025-01-01T00:00:00Z')`)
	require.NoError(t, err)
	return New(database, Options{}), database
}

func createTasks(t *testing.T, svc *Service, n int) []int64 {
	t.Helper()
	ids := make([]int64, 0, n)
	for i := 0; i < n; i++ {
		created, err := svc.CreateTask(context.Background(), managerID, task.NewTask{Title: "task"})
		require.NoError(t, err)
		ids = append(ids, created.ID)
	}
	return ids
}

func requireAcyclic(t *testing.T, svc *Service) {
	t.Helper()
	cycle, _, err := svc.Verify(context.Background())
	require.NoError(t, err)
	require.Nil(t, cycle, "graph must stay acyclic")
}

func edgeCount(t *testing.T, database *sql.DB, taskID, dependsOnID int64) int {
	t.Helper()
	n, err := graph.NewStore(database).CountEdges(context.Background(), taskID, dependsOnID)
	require.NoError(t, err)
	return n
}

func TestWouldCreateCycle_SelfIsAlwaysCycle(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ids := createTasks(t, svc, 2)
	ctx := context.Background()

	for _, id := range append(ids, 12345) {
		cyclic, err := svc.WouldCreateCycle(ctx, id, id)
		require.NoError(t, err)
		assert.True(t, cyclic, "task %d", id)
	}
}

func TestAddDependency_ReverseEdgeIsCycle(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ids := createTasks(t, svc, 2)
	a, b := ids[0], ids[1]
	ctx := context.Background()

	require.NoError(t, svc.AddDependency(ctx, a, b))
	requireAcyclic(t, svc)

	err := svc.AddDependency(ctx, b, a)
	require.ErrorIs(t, err, task.ErrCycleDetected)
	requireAcyclic(t, svc)
}

func TestAddDependency_DuplicateKeepsSingleEdge(t *testing.T) {
	t.Parallel()

	svc, database := newTestService(t)
	ids := createTasks(t, svc, 2)
	a, b := ids[0], ids[1]
	ctx := context.Background()

	require.NoError(t, svc.AddDependency(ctx, a, b))
	require.ErrorIs(t, svc.AddDependency(ctx, a, b), task.ErrDuplicateDependency)
	assert.Equal(t, 1, edgeCount(t, database, a, b))
}

func TestAddDependency_CompletedTaskAlwaysRejected(t *testing.T) {
	t.Parallel()

	svc, database := newTestService(t)
	ids := createTasks(t, svc, 3)
	a, b, c := ids[0], ids[1], ids[2]
	ctx := context.Background()

	require.NoError(t, svc.AddDependency(ctx, a, b))
	require.NoError(t, svc.AddDependency(ctx, b, c))
	_, err := svc.UpdateStatus(ctx, c, task.StatusCompleted)
	require.NoError(t, err)

	// c is completed: fresh edge, cycle-closing edge, self edge and missing target all fail the same way.
	for _, target := range []int64{a, b, c, 9999} {
		err := svc.AddDependency(ctx, c, target)
		require.ErrorIs(t, err, task.ErrAlreadyCompleted, "target %d", target)
	}

	// Duplicate on a completed task.
	_, err = svc.UpdateStatus(ctx, b, task.StatusCompleted)
	require.NoError(t, err)
	require.ErrorIs(t, svc.AddDependency(ctx, b, c), task.ErrAlreadyCompleted)
	assert.Equal(t, 1, edgeCount(t, database, b, c))
}

func TestAddDependency_ErrorPrecedence(t *testing.T) {
	t.Parallel()

	svc, database := newTestService(t)
	ids := createTasks(t, svc, 2)
	a, b := ids[0], ids[1]
	ctx := context.Background()

	require.ErrorIs(t, svc.AddDependency(ctx, 777, a), task.ErrTaskNotFound)
	require.ErrorIs(t, svc.AddDependency(ctx, a, 888), task.ErrDependencyNotFound)
	require.ErrorIs(t, svc.AddDependency(ctx, a, a), task.ErrCycleDetected)

	// Force a cyclic pair underneath the engine: the duplicate a->b also closes a cycle,
	// and the cycle check runs first.
	edges := graph.NewStore(database)
	require.NoError(t, edges.AddEdge(ctx, a, b))
	require.NoError(t, edges.AddEdge(ctx, b, a))
	require.ErrorIs(t, svc.AddDependency(ctx, a, b), task.ErrCycleDetected)
}

func TestAddDependency_ErrorsCarryIDs(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ids := createTasks(t, svc, 1)

	err := svc.AddDependency(context.Background(), ids[0], 404)
	var te *task.Error
	require.ErrorAs(t, err, &te)
	assert.Equal(t, task.KindDependencyNotFound, te.Kind)
	assert.Equal(t, int64(404), te.TaskID)
}

func TestAddDependency_ChainClosingEdgeIsCycle(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ids := createTasks(t, svc, 3)
	t1, t2, t3 := ids[0], ids[1], ids[2]
	ctx := context.Background()

	require.NoError(t, svc.AddDependency(ctx, t2, t1))
	require.NoError(t, svc.AddDependency(ctx, t3, t2))
	require.ErrorIs(t, svc.AddDependency(ctx, t1, t3), task.ErrCycleDetected)
	requireAcyclic(t, svc)

	// The transitive shortcut is fine.
	require.NoError(t, svc.AddDependency(ctx, t3, t1))
	requireAcyclic(t, svc)
}

func TestAddDependency_UnrelatedPairCommits(t *testing.T) {
	t.Parallel()

	svc, database := newTestService(t)
	ids := createTasks(t, svc, 4)
	t1, t3, t4 := ids[0], ids[2], ids[3]
	ctx := context.Background()

	require.NoError(t, svc.AddDependency(ctx, t3, t1))

	cyclic, err := svc.WouldCreateCycle(ctx, t3, t4)
	require.NoError(t, err)
	assert.False(t, cyclic)

	require.NoError(t, svc.AddDependency(ctx, t3, t4))
	assert.Equal(t, 1, edgeCount(t, database, t3, t4))
	requireAcyclic(t, svc)
}

func TestUpdateStatus_CompletionGate(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ids := createTasks(t, svc, 2)
	t1, t2 := ids[0], ids[1]
	ctx := context.Background()

	require.NoError(t, svc.AddDependency(ctx, t2, t1))

	_, err := svc.UpdateStatus(ctx, t2, task.StatusCompleted)
	require.ErrorIs(t, err, task.ErrIncompleteDependencies)
	var te *task.Error
	require.ErrorAs(t, err, &te)
	assert.Equal(t, []int64{t1}, te.Blocking)

	got, err := svc.Task(ctx, t2)
	require.NoError(t, err)
	assert.Equal(t, task.StatusPending, got.Status, "rejected transition must not persist")

	done, err := svc.UpdateStatus(ctx, t1, task.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, task.StatusCompleted, done.Status)

	done, err = svc.UpdateStatus(ctx, t2, task.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, task.StatusCompleted, done.Status)
}

func TestUpdateStatus_CanceledDependencyStillBlocks(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ids := createTasks(t, svc, 2)
	ctx := context.Background()

	require.NoError(t, svc.AddDependency(ctx, ids[1], ids[0]))
	_, err := svc.UpdateStatus(ctx, ids[0], task.StatusCanceled)
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, ids[1], task.StatusCompleted)
	require.ErrorIs(t, err, task.ErrIncompleteDependencies)
}

func TestUpdateStatus_OtherTransitionsUnguarded(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ids := createTasks(t, svc, 2)
	ctx := context.Background()
	require.NoError(t, svc.AddDependency(ctx, ids[1], ids[0]))

	got, err := svc.UpdateStatus(ctx, ids[1], task.StatusCanceled)
	require.NoError(t, err)
	assert.Equal(t, task.StatusCanceled, got.Status)

	got, err = svc.UpdateStatus(ctx, ids[1], task.StatusPending)
	require.NoError(t, err)
	assert.Equal(t, task.StatusPending, got.Status)
}

func TestUpdateStatus_Rejections(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ids := createTasks(t, svc, 1)
	ctx := context.Background()

	_, err := svc.UpdateStatus(ctx, ids[0], task.Status("archived"))
	require.ErrorIs(t, err, task.ErrInvalidStatus)

	_, err = svc.UpdateStatus(ctx, 5150, task.StatusCompleted)
	require.ErrorIs(t, err, task.ErrTaskNotFound)
}

func TestCreateTask_WithDependency(t *testing.T) {
	t.Parallel()

	svc, database := newTestService(t)
	ids := createTasks(t, svc, 1)
	ctx := context.Background()

	created, err := svc.CreateTask(ctx, managerID, task.NewTask{Title: "follow-up", DependsOnID: &ids[0]})
	require.NoError(t, err)
	assert.Equal(t, managerID, created.CreatedBy)
	assert.Equal(t, task.StatusPending, created.Status)
	assert.Equal(t, 1, edgeCount(t, database, created.ID, ids[0]))
}

func TestCreateTask_RejectedDependencyLeavesNoTask(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()
	missing := int64(31337)

	_, err := svc.CreateTask(ctx, managerID, task.NewTask{Title: "orphan", DependsOnID: &missing})
	require.ErrorIs(t, err, task.ErrDependencyNotFound)

	page, err := svc.List(ctx, task.Filter{})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
}

func TestCreateTask_CompletedWithDependency(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ids := createTasks(t, svc, 1)

	_, err := svc.CreateTask(context.Background(), managerID, task.NewTask{
		Title:       "already done",
		Status:      task.StatusCompleted,
		DependsOnID: &ids[0],
	})
	require.ErrorIs(t, err, task.ErrAlreadyCompleted)
}

func TestCreateTask_Validation(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	_, err := svc.CreateTask(context.Background(), managerID, task.NewTask{Title: " "})
	require.ErrorIs(t, err, task.ErrInvalid)
}

func TestUpdateTask(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ids := createTasks(t, svc, 1)
	ctx := context.Background()
	title := "renamed"
	desc := "now with details"

	got, err := svc.UpdateTask(ctx, ids[0], task.Update{Title: &title, Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Title)
	assert.Equal(t, "now with details", got.Description)
	assert.Equal(t, managerID, got.CreatedBy)

	got, err = svc.UpdateTask(ctx, ids[0], task.Update{})
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Title)

	_, err = svc.UpdateTask(ctx, 999, task.Update{Title: &title})
	require.ErrorIs(t, err, task.ErrTaskNotFound)
}

func TestList_ClampsPageSize(t *testing.T) {
	t.Parallel()

	svc, database := newTestService(t)
	svc = New(database, Options{DefaultPageSize: 2, MaxPageSize: 3})
	createTasks(t, svc, 5)
	ctx := context.Background()

	page, err := svc.List(ctx, task.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total)
	assert.Len(t, page.Items, 2)
	assert.Equal(t, 1, page.Page)

	page, err = svc.List(ctx, task.Filter{PerPage: 50, Page: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, page.PerPage)
	assert.Len(t, page.Items, 2)
}

func TestDependencies(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ids := createTasks(t, svc, 3)
	ctx := context.Background()
	require.NoError(t, svc.AddDependency(ctx, ids[1], ids[0]))
	require.NoError(t, svc.AddDependency(ctx, ids[2], ids[1]))

	deps, err := svc.Dependencies(ctx, ids[1])
	require.NoError(t, err)
	require.Len(t, deps.DependsOn, 1)
	require.Len(t, deps.Dependents, 1)
	assert.Equal(t, ids[0], deps.DependsOn[0].ID)
	assert.Equal(t, ids[2], deps.Dependents[0].ID)

	_, err = svc.Dependencies(ctx, 424242)
	require.ErrorIs(t, err, task.ErrTaskNotFound)
}

func TestAddDependency_ConcurrentOppositeEdges(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()
	const pairs = 10
	ids := createTasks(t, svc, 2*pairs)

	type result struct{ forward, backward error }
	results := make([]result, pairs)
	var wg sync.WaitGroup
	for i := 0; i < pairs; i++ {
		a, b := ids[2*i], ids[2*i+1]
		wg.Add(2)
		go func() {
			defer wg.Done()
			results[i].forward = svc.AddDependency(ctx, a, b)
		}()
		go func() {
			defer wg.Done()
			results[i].backward = svc.AddDependency(ctx, b, a)
		}()
	}
	wg.Wait()

	for i, r := range results {
		ok := 0
		for _, err := range []error{r.forward, r.backward} {
			if err == nil {
				ok++
				continue
			}
			assert.ErrorIs(t, err, task.ErrCycleDetected, "pair %d", i)
		}
		assert.Equal(t, 1, ok, "exactly one direction must win for pair %d", i)
	}
	requireAcyclic(t, svc)
}

func TestAddDependency_RandomWorkloadStaysAcyclic(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()
	ids := createTasks(t, svc, 12)
	rng := rand.New(rand.NewSource(7))

	accepted := 0
	for i := 0; i < 150; i++ {
		a := ids[rng.Intn(len(ids))]
		b := ids[rng.Intn(len(ids))]
		err := svc.AddDependency(ctx, a, b)
		if err == nil {
			accepted++
			requireAcyclic(t, svc)
			continue
		}
		kind, ok := task.KindOf(err)
		require.True(t, ok, "unexpected error %v", err)
		require.Contains(t, []task.Kind{task.KindCycleDetected, task.KindDuplicateDependency}, kind)
	}
	assert.Positive(t, accepted)
}
