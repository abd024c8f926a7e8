// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"context"
	"sort"
	"time"
)

// DefaultMaxMergeDepth bounds how many distinct foreign projects may be
// folded into one merged graph.
const DefaultMaxMergeDepth = 3

// Merger folds foreign project graphs into a root graph and tracks
// which nodes came from where.
//
// Description:
//
//	Origins and external refs are side tables keyed by node handle.
//	Graph.RemoveFile does not clean them; callers removing merged
//	nodes must call PruneStaleEntries afterwards. Tagging origin on
//	the Node payload itself would remove this hazard but changes the
//	persisted shape, so the side tables stay for now.
//
// Thread Safety:
//
//	Same single-writer rules as Graph; no internal locking.
type Merger struct {
	rootProjectID string
	graph         *Graph
	maxDepth      int

	// nodeOrigins maps merged node handles to the project they came
	// from. Absence means local/root.
	nodeOrigins map[NodeID]string

	// externalRefs maps each merged project to the handles it
	// contributed.
	externalRefs map[string][]NodeID
}

// MergerOption configures a Merger.
type MergerOption func(*Merger)

// WithMaxDepth overrides the merge depth limit.
func WithMaxDepth(depth int) MergerOption {
	return func(m *Merger) {
		m.maxDepth = depth
	}
}

// NewMerger creates a Merger over the given root graph.
func NewMerger(rootProjectID string, g *Graph, opts ...MergerOption) *Merger {
	m := &Merger{
		rootProjectID: rootProjectID,
		graph:         g,
		maxDepth:      DefaultMaxMergeDepth,
		nodeOrigins:   make(map[NodeID]string),
		externalRefs:  make(map[string][]NodeID),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// MergeExternalPDG copies a foreign project graph into the root graph.
//
// Description:
//
//	Fail-fast: if the number of distinct already-merged projects has
//	reached the depth limit, returns MaxDepthError before touching
//	the graph, so node and edge counts are unchanged by a failed
//	call. On success every foreign node is copied under a fresh
//	handle, edges are translated through the old-to-new map, and the
//	origin and external-ref tables are updated.
//
// Inputs:
//
//	ctx - For tracing only.
//	projectID - The foreign project. Re-merging an already-merged
//	project appends to its ref list and does not count again toward
//	the depth limit.
//	foreign - The foreign graph. Not mutated.
//
// Outputs:
//
//	error - MaxDepthError (matches ErrMaxDepthExceeded) at the limit.
func (m *Merger) MergeExternalPDG(ctx context.Context, projectID string, foreign *Graph) error {
	_, span := startQuerySpan(ctx, "MergeExternalPDG", projectID)
	defer span.End()
	start := time.Now()

	if _, merged := m.externalRefs[projectID]; !merged && len(m.externalRefs) >= m.maxDepth {
		return &MaxDepthError{Limit: m.maxDepth}
	}

	idMap := make(map[NodeID]NodeID, foreign.NodeCount())
	newIDs := make([]NodeID, 0, foreign.NodeCount())
	foreign.NodeIndices()(func(old NodeID) bool {
		n, _ := foreign.GetNode(old)
		newID := m.graph.AddNode(n)
		idMap[old] = newID
		m.nodeOrigins[newID] = projectID
		newIDs = append(newIDs, newID)
		return true
	})

	foreign.EdgeIndices()(func(eid EdgeID) bool {
		from, to, _ := foreign.EdgeEndpoints(eid)
		e, _ := foreign.GetEdge(eid)
		m.graph.AddEdge(idMap[from], idMap[to], e) //nolint:errcheck // endpoints just allocated
		return true
	})

	m.externalRefs[projectID] = append(m.externalRefs[projectID], newIDs...)
	recordQueryMetrics(ctx, "merge", time.Since(start), len(newIDs))
	return nil
}

// IsExternalNode reports whether a node was merged in from a foreign
// project.
func (m *Merger) IsExternalNode(id NodeID) bool {
	_, ok := m.nodeOrigins[id]
	return ok
}

// NodeOrigin returns the project a node was merged from. ok is false
// for local nodes.
func (m *Merger) NodeOrigin(id NodeID) (string, bool) {
	project, ok := m.nodeOrigins[id]
	return project, ok
}

// LocalNodes returns the handles of all live nodes that belong to the
// root project.
func (m *Merger) LocalNodes() []NodeID {
	out := make([]NodeID, 0, m.graph.NodeCount())
	m.graph.NodeIndices()(func(id NodeID) bool {
		if _, external := m.nodeOrigins[id]; !external {
			out = append(out, id)
		}
		return true
	})
	return out
}

// ExternalNodes returns the handles of all live nodes merged from
// foreign projects.
func (m *Merger) ExternalNodes() []NodeID {
	out := make([]NodeID, 0, len(m.nodeOrigins))
	m.graph.NodeIndices()(func(id NodeID) bool {
		if _, external := m.nodeOrigins[id]; external {
			out = append(out, id)
		}
		return true
	})
	return out
}

// ReferencedProjects returns the merged project IDs, sorted, excluding
// the root project.
func (m *Merger) ReferencedProjects() []string {
	projects := make([]string, 0, len(m.externalRefs))
	for p := range m.externalRefs {
		if p != m.rootProjectID {
			projects = append(projects, p)
		}
	}
	sort.Strings(projects)
	return projects
}

// PruneStaleEntries drops origin and ref entries whose nodes are no
// longer live. Call after removing files that contained merged nodes.
func (m *Merger) PruneStaleEntries() int {
	pruned := 0
	for id := range m.nodeOrigins {
		if _, ok := m.graph.GetNode(id); !ok {
			delete(m.nodeOrigins, id)
			pruned++
		}
	}
	for project, ids := range m.externalRefs {
		kept := ids[:0]
		for _, id := range ids {
			if _, ok := m.graph.GetNode(id); ok {
				kept = append(kept, id)
			}
		}
		if len(kept) == 0 {
			delete(m.externalRefs, project)
		} else {
			m.externalRefs[project] = kept
		}
	}
	return pruned
}

// OriginEntry is one persisted (node handle, project) pair.
type OriginEntry struct {
	NodeIndex  uint32 `json:"node_index"`
	NodeGen    uint32 `json:"node_gen"`
	ProjectID  string `json:"project_id"`
	SymbolID   string `json:"symbol_id"`
	SymbolKind string `json:"symbol_kind"`
}

// MergerSnapshot is the persistable cross-project state. It captures
// origin pairs plus a symbol-level snapshot of external refs; the graph
// itself is persisted separately by the storage layer.
type MergerSnapshot struct {
	RootProjectID string        `json:"root_project_id"`
	MaxDepth      int           `json:"max_depth"`
	Origins       []OriginEntry `json:"origins,omitempty"`
}

// ToSerializable captures the merger's side tables for persistence.
// Entries are sorted by handle so snapshots are stable.
func (m *Merger) ToSerializable() *MergerSnapshot {
	snap := &MergerSnapshot{
		RootProjectID: m.rootProjectID,
		MaxDepth:      m.maxDepth,
		Origins:       make([]OriginEntry, 0, len(m.nodeOrigins)),
	}
	for id, project := range m.nodeOrigins {
		entry := OriginEntry{NodeIndex: id.idx, NodeGen: id.gen, ProjectID: project}
		if n, ok := m.graph.GetNode(id); ok {
			entry.SymbolID = n.ID
			entry.SymbolKind = n.Kind.String()
		}
		snap.Origins = append(snap.Origins, entry)
	}
	sort.Slice(snap.Origins, func(i, j int) bool {
		if snap.Origins[i].NodeIndex != snap.Origins[j].NodeIndex {
			return snap.Origins[i].NodeIndex < snap.Origins[j].NodeIndex
		}
		return snap.Origins[i].NodeGen < snap.Origins[j].NodeGen
	})
	return snap
}

// FromSerializableWithGraph reconstructs a Merger over a freshly loaded
// graph.
//
// Description:
//
//	Handles are renumbered when a graph is rebuilt from storage, so
//	the persisted (index, gen) pair cannot identify a node across a
//	reload. Each origin entry resolves through its symbol ID instead;
//	entries whose symbol no longer resolves are dropped.
//
// Limitations:
//
//	Only nodeOrigins is reconstructed; externalRefs is left empty, so
//	ReferencedProjects and the depth guard start from a clean slate
//	after a reload. Known limitation, kept as-is.
func FromSerializableWithGraph(snap *MergerSnapshot, g *Graph) *Merger {
	m := NewMerger(snap.RootProjectID, g)
	if snap.MaxDepth > 0 {
		m.maxDepth = snap.MaxDepth
	}
	for _, entry := range snap.Origins {
		if entry.SymbolID == "" {
			continue
		}
		if id, ok := g.FindBySymbol(entry.SymbolID); ok {
			m.nodeOrigins[id] = entry.ProjectID
		}
	}
	return m
}
