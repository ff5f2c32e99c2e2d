package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFindCycle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		edges []Edge
		want  []int64
	}{
		{name: "empty", edges: nil, want: nil},
		{name: "chain", edges: []Edge{{3, 2}, {2, 1}}, want: nil},
		{name: "diamond", edges: []Edge{{1, 2}, {1, 3}, {2, 4}, {3, 4}}, want: nil},
		{name: "two cycle", edges: []Edge{{1, 2}, {2, 1}}, want: []int64{1, 2, 1}},
		{name: "three cycle behind tail", edges: []Edge{{1, 2}, {2, 3}, {3, 4}, {4, 2}}, want: []int64{2, 3, 4, 2}},
		{name: "self loop", edges: []Edge{{5, 5}}, want: []int64{5, 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FindCycle(tt.edges))
		})
	}
}
