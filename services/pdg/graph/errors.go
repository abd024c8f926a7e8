// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph implements the program dependence graph (PDG) engine.
//
// The graph holds code symbols as nodes and their relationships (calls,
// data dependencies, inheritance, imports) as edges. Nodes and edges live
// in generational arenas and are addressed through opaque NodeID/EdgeID
// handles that stay valid across insertions and become detectably stale
// after removal. Slots are tombstoned on removal and only reused under a
// bumped generation, so a retained handle never silently aliases an
// unrelated node.
//
// # Ownership Model
//
// The graph exclusively owns all node and edge payloads. Accessors return
// copies; callers never hold pointers into the arenas.
//
// # Thread Safety
//
// The graph is single-writer and has no internal locking. Callers sharing
// a graph across goroutines must serialize access externally (exclusive
// lock around refresh cycles, shared lock for queries). Concurrent
// read-only traversal alongside a mutation is unsafe.
//
// # Lifecycle
//
// A graph lives for one analysis session. Fragments are produced per file
// by Builder, folded in with MergeFragment or MergeExternalPDG, and torn
// down per file by RemoveFile. Persistence is owned by the storage
// collaborator.
package graph

import (
	"errors"
	"fmt"
)

// Sentinel errors for graph operations.
var (
	// ErrNodeNotFound is returned when an operation references a node
	// handle that is stale or was never allocated.
	ErrNodeNotFound = errors.New("node not found")

	// ErrEdgeNotFound is returned when an operation references an edge
	// handle that is stale or was never allocated.
	ErrEdgeNotFound = errors.New("edge not found")

	// ErrMaxDepthExceeded is returned when a cross-project merge would
	// exceed the configured depth limit. Use errors.Is against this and
	// errors.As against *MaxDepthError to recover the limit.
	ErrMaxDepthExceeded = errors.New("cross-project merge depth exceeded")

	// ErrNodeConflict is reserved for a future merge conflict path.
	// No current code path returns it.
	ErrNodeConflict = errors.New("node conflict")

	// ErrEdgeConflict is reserved for a future merge conflict path.
	// No current code path returns it.
	ErrEdgeConflict = errors.New("edge conflict")
)

// MaxDepthError reports a rejected cross-project merge.
//
// The merge is rejected before any mutation: node and edge counts are
// identical before and after the failed call.
type MaxDepthError struct {
	// Limit is the configured maximum number of distinct merged projects.
	Limit int
}

// Error implements the error interface.
func (e *MaxDepthError) Error() string {
	return fmt.Sprintf("cross-project merge depth exceeded: max_depth=%d", e.Limit)
}

// Is makes errors.Is(err, ErrMaxDepthExceeded) succeed.
func (e *MaxDepthError) Is(target error) bool {
	return target == ErrMaxDepthExceeded
}
