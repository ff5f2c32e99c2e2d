package graph

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReach struct {
	ancestors map[int64][]int64
	err       error
	calls     int
}

func (f *fakeReach) ReachableAncestors(_ context.Context, startID int64) ([]int64, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.ancestors[startID], nil
}

func TestDetector_SelfLoopShortCircuits(t *testing.T) {
	t.Parallel()

	reach := &fakeReach{}
	cyclic, err := NewDetector(reach).WouldCreateCycle(context.Background(), 7, 7)
	require.NoError(t, err)
	assert.True(t, cyclic)
	assert.Zero(t, reach.calls, "self loop must not query the store")
}

func TestDetector_UsesClosureOfDependency(t *testing.T) {
	t.Parallel()

	// 2 already depends (transitively) on 1 and 3.
	reach := &fakeReach{ancestors: map[int64][]int64{2: {1, 3}}}
	d := NewDetector(reach)
	ctx := context.Background()

	cyclic, err := d.WouldCreateCycle(ctx, 1, 2)
	require.NoError(t, err)
	assert.True(t, cyclic)

	cyclic, err = d.WouldCreateCycle(ctx, 4, 2)
	require.NoError(t, err)
	assert.False(t, cyclic)
}

func TestDetector_PropagatesStoreErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("disk I/O error")
	cyclic, err := NewDetector(&fakeReach{err: boom}).WouldCreateCycle(context.Background(), 1, 2)
	require.ErrorIs(t, err, boom)
	assert.False(t, cyclic)
}

func TestDetector_AgainstStore(t *testing.T) {
	t.Parallel()

	store, _ := newTestGraph(t, 4)
	addEdges(t, store, Edge{2, 1}, Edge{3, 2})
	d := NewDetector(store)
	ctx := context.Background()

	tests := []struct {
		name        string
		taskID      int64
		dependsOnID int64
		want        bool
	}{
		{name: "closes three cycle", taskID: 1, dependsOnID: 3, want: true},
		{name: "closes two cycle", taskID: 1, dependsOnID: 2, want: true},
		{name: "self", taskID: 4, dependsOnID: 4, want: true},
		{name: "forward shortcut", taskID: 3, dependsOnID: 1, want: false},
		{name: "unrelated", taskID: 3, dependsOnID: 4, want: false},
		{name: "into unrelated", taskID: 4, dependsOnID: 3, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := d.WouldCreateCycle(ctx, tt.taskID, tt.dependsOnID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
