// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package storage defines the persistence contract for project graphs.
//
// The persisted layout is owned entirely by the implementation; the
// graph engine never depends on it. Node records are grouped per file
// so a deleted file's rows can be dropped without rewriting the whole
// graph; edges are persisted as one blob per project because every
// refresh cycle rewrites them wholesale anyway.
package storage

import (
	"context"
	"errors"

	"github.com/AleutianAI/CodeGravity/services/pdg/graph"
)

// ErrNotFound is returned when a project or record does not exist.
var ErrNotFound = errors.New("storage: not found")

// EdgeRecord is one persisted edge. Endpoints are node ID strings; on
// load they resolve through the symbol index with its usual
// last-write-wins rule.
type EdgeRecord struct {
	From string     `json:"from"`
	To   string     `json:"to"`
	Edge graph.Edge `json:"edge"`
}

// Store persists project graphs and per-file freshness bookkeeping.
//
// Thread Safety:
//
//	Implementations must be safe for concurrent use; the engine
//	serializes graph mutation but not storage calls.
type Store interface {
	// SaveGraph persists the full graph for a project, replacing any
	// prior snapshot.
	SaveGraph(ctx context.Context, projectID string, g *graph.Graph) error

	// LoadGraph reconstructs a project's graph. Returns ErrNotFound if
	// the project has never been saved.
	LoadGraph(ctx context.Context, projectID string) (*graph.Graph, error)

	// GraphExists reports whether a saved graph exists for the project.
	GraphExists(ctx context.Context, projectID string) (bool, error)

	// DeleteFileData drops the persisted node rows for one file.
	DeleteFileData(ctx context.Context, projectID, fileKey string) error

	// IndexedFiles returns the file-key to content-hash map recorded by
	// previous refresh cycles. Empty map for unknown projects.
	IndexedFiles(ctx context.Context, projectID string) (map[string]string, error)

	// UpdateIndexedFile records a file's content hash.
	UpdateIndexedFile(ctx context.Context, projectID, fileKey, contentHash string) error

	// RemoveIndexedFile drops a file's hash record. Unknown keys are a
	// no-op.
	RemoveIndexedFile(ctx context.Context, projectID, fileKey string) error

	// SaveCrossProject persists the merger side tables for a project.
	SaveCrossProject(ctx context.Context, projectID string, snap *graph.MergerSnapshot) error

	// LoadCrossProject returns the persisted merger side tables, or
	// ErrNotFound.
	LoadCrossProject(ctx context.Context, projectID string) (*graph.MergerSnapshot, error)

	// Close releases the underlying database.
	Close() error
}
