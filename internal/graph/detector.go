package graph

import (
	"context"
	"fmt"
	"slices"
)

// Reachability is the query the cycle detector needs from the edge store.
type Reachability interface {
	ReachableAncestors(ctx context.Context, startID int64) ([]int64, error)
}

// Detector decides whether a candidate edge would close a cycle.
type Detector struct {
	reach Reachability
}

// NewDetector creates a detector reading current committed state through reach.
func NewDetector(reach Reachability) *Detector {
	return &Detector{reach: reach}
}

// WouldCreateCycle reports whether adding taskID -> dependsOnID would create a cycle.
//
// The edge closes a cycle iff dependsOnID already reaches taskID, so only the
// dependency closure of dependsOnID is inspected.
func (d *Detector) WouldCreateCycle(ctx context.Context, taskID, dependsOnID int64) (bool, error) {
	if taskID == dependsOnID {
		return true, nil
	}
	ancestors, err := d.reach.ReachableAncestors(ctx, dependsOnID)
	if err != nil {
		return false, fmt.Errorf("would create cycle: %w", err)
	}
	return slices.Contains(ancestors, taskID), nil
}
