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
	"fmt"
)

// Graph is the mutable program dependence graph for one project.
//
// Thread Safety:
//
//	Graph has no internal locking. Single-writer; callers serialize
//	concurrent access externally (see package doc).
type Graph struct {
	nodes nodeArena
	edges edgeArena

	// symbolIndex maps node ID strings to handles. On collision the last
	// insert wins; this is long-standing observed behavior and is
	// covered by a test, do not change without a product decision.
	symbolIndex map[string]NodeID

	// fileIndex maps file paths to the nodes defined in that file.
	fileIndex map[string][]NodeID
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		symbolIndex: make(map[string]NodeID),
		fileIndex:   make(map[string][]NodeID),
	}
}

// AddNode inserts a node and returns its handle.
//
// Description:
//
//	Always inserts, even if a node with the same ID string exists; the
//	symbol index is overwritten (last write wins) while the file index
//	accumulates. Complexity below 1 is clamped to 1.
//
// Inputs:
//
//	n - The node payload. The graph stores a copy.
//
// Outputs:
//
//	NodeID - Stable handle to the inserted node.
func (g *Graph) AddNode(n Node) NodeID {
	if n.Complexity < 1 {
		n.Complexity = 1
	}
	id := g.nodes.alloc(n)
	g.symbolIndex[n.ID] = id
	g.fileIndex[n.FilePath] = append(g.fileIndex[n.FilePath], id)
	return id
}

// AddEdge inserts a directed edge between two live nodes.
//
// Description:
//
//	Always inserts; no deduplication is performed here. The builder owns
//	import-edge dedup on its own path.
//
// Inputs:
//
//	from - Source node handle. Must be live.
//	to - Target node handle. Must be live.
//	e - Edge payload. The graph stores a copy.
//
// Outputs:
//
//	EdgeID - Stable handle to the inserted edge.
//	error - ErrNodeNotFound if either endpoint is stale or missing.
func (g *Graph) AddEdge(from, to NodeID, e Edge) (EdgeID, error) {
	fromSlot := g.nodes.get(from)
	if fromSlot == nil {
		return EdgeID{}, fmt.Errorf("%w: edge source", ErrNodeNotFound)
	}
	toSlot := g.nodes.get(to)
	if toSlot == nil {
		return EdgeID{}, fmt.Errorf("%w: edge target", ErrNodeNotFound)
	}

	id := g.edges.alloc(from, to, e)
	fromSlot.outgoing = append(fromSlot.outgoing, id)
	toSlot.incoming = append(toSlot.incoming, id)
	return id, nil
}

// GetNode returns a copy of the node payload for a live handle.
func (g *Graph) GetNode(id NodeID) (Node, bool) {
	s := g.nodes.get(id)
	if s == nil {
		return Node{}, false
	}
	return s.node, true
}

// GetEdge returns a copy of the edge payload for a live handle.
func (g *Graph) GetEdge(id EdgeID) (Edge, bool) {
	s := g.edges.get(id)
	if s == nil {
		return Edge{}, false
	}
	return s.edge, true
}

// FindBySymbol resolves a node ID string through the symbol index.
//
// On historical collisions the most recent insert wins.
func (g *Graph) FindBySymbol(symbolID string) (NodeID, bool) {
	id, ok := g.symbolIndex[symbolID]
	return id, ok
}

// NodesInFile returns the handles of all nodes in the given file bucket.
//
// Returns a defensive copy; empty slice if the file is unknown.
func (g *Graph) NodesInFile(filePath string) []NodeID {
	ids := g.fileIndex[filePath]
	if len(ids) == 0 {
		return []NodeID{}
	}
	out := make([]NodeID, len(ids))
	copy(out, ids)
	return out
}

// FilePaths returns all file bucket keys in unspecified order.
func (g *Graph) FilePaths() []string {
	paths := make([]string, 0, len(g.fileIndex))
	for p := range g.fileIndex {
		paths = append(paths, p)
	}
	return paths
}

// NodeCount returns the number of live nodes.
func (g *Graph) NodeCount() int {
	return g.nodes.count
}

// EdgeCount returns the number of live edges.
func (g *Graph) EdgeCount() int {
	return g.edges.count
}

// NodeIndices returns an iterator over all live node handles.
//
// The sequence is lazy and finite. It is valid only while the graph is
// not mutated during iteration.
//
// Example:
//
//	for id := range g.NodeIndices() {
//	    n, _ := g.GetNode(id)
//	    fmt.Println(n.ID)
//	}
func (g *Graph) NodeIndices() func(yield func(NodeID) bool) {
	return func(yield func(NodeID) bool) {
		for i := range g.nodes.slots {
			s := &g.nodes.slots[i]
			if !s.live {
				continue
			}
			if !yield(NodeID{idx: uint32(i), gen: s.gen}) {
				return
			}
		}
	}
}

// EdgeIndices returns an iterator over all live edge handles, with the
// same validity caveat as NodeIndices.
func (g *Graph) EdgeIndices() func(yield func(EdgeID) bool) {
	return func(yield func(EdgeID) bool) {
		for i := range g.edges.slots {
			s := &g.edges.slots[i]
			if !s.live {
				continue
			}
			if !yield(EdgeID{idx: uint32(i), gen: s.gen}) {
				return
			}
		}
	}
}

// EdgeEndpoints returns the (source, target) handles for a live edge.
func (g *Graph) EdgeEndpoints(id EdgeID) (NodeID, NodeID, bool) {
	s := g.edges.get(id)
	if s == nil {
		return NodeID{}, NodeID{}, false
	}
	return s.from, s.to, true
}

// Neighbors returns the distinct outgoing neighbor handles of a node in
// first-edge order. Empty slice for stale handles.
func (g *Graph) Neighbors(id NodeID) []NodeID {
	s := g.nodes.get(id)
	if s == nil {
		return []NodeID{}
	}
	seen := make(map[NodeID]bool, len(s.outgoing))
	out := make([]NodeID, 0, len(s.outgoing))
	for _, eid := range s.outgoing {
		es := g.edges.get(eid)
		if es == nil {
			continue
		}
		if !seen[es.to] {
			seen[es.to] = true
			out = append(out, es.to)
		}
	}
	return out
}

// Predecessors returns the distinct incoming neighbor handles of a node
// in first-edge order.
func (g *Graph) Predecessors(id NodeID) []NodeID {
	s := g.nodes.get(id)
	if s == nil {
		return []NodeID{}
	}
	seen := make(map[NodeID]bool, len(s.incoming))
	out := make([]NodeID, 0, len(s.incoming))
	for _, eid := range s.incoming {
		es := g.edges.get(eid)
		if es == nil {
			continue
		}
		if !seen[es.from] {
			seen[es.from] = true
			out = append(out, es.from)
		}
	}
	return out
}

// OutgoingEdges returns a copy of the outgoing edge handles of a node.
func (g *Graph) OutgoingEdges(id NodeID) []EdgeID {
	s := g.nodes.get(id)
	if s == nil {
		return []EdgeID{}
	}
	out := make([]EdgeID, len(s.outgoing))
	copy(out, s.outgoing)
	return out
}

// HasEdge reports whether a live edge of the given kind exists from one
// node to another.
func (g *Graph) HasEdge(from, to NodeID, kind EdgeKind) bool {
	s := g.nodes.get(from)
	if s == nil {
		return false
	}
	for _, eid := range s.outgoing {
		es := g.edges.get(eid)
		if es == nil {
			continue
		}
		if es.to == to && es.edge.Kind == kind {
			return true
		}
	}
	return false
}

// RemoveFile removes every node in the given file bucket and every edge
// incident to a removed node.
//
// Description:
//
//	Purges stale symbol and file index entries for the removed nodes.
//	A symbol index entry is deleted only if it still points at the
//	removed node, so a collision overwrite from another file survives.
//	Idempotent: a second call with the same key is a no-op.
//
// Inputs:
//
//	fileKey - File path exactly as it appears in node FilePath fields.
//
// Outputs:
//
//	int - Number of nodes removed (0 on the idempotent second call).
//
// Limitations:
//
//	Cross-project side tables (node origins, external refs) are NOT
//	cleaned here; a caller removing merged nodes must also call
//	Merger.PruneStaleEntries or risk dangling origin entries.
func (g *Graph) RemoveFile(fileKey string) int {
	ids := g.fileIndex[fileKey]
	if len(ids) == 0 {
		return 0
	}

	removed := 0
	for _, id := range ids {
		s := g.nodes.get(id)
		if s == nil {
			continue // already gone; tolerate stale bucket entries
		}

		// Unlink and release incident edges. Copy the handle slices:
		// removeEdge mutates the slot's lists.
		for _, eid := range append([]EdgeID(nil), s.outgoing...) {
			g.removeEdge(eid)
		}
		for _, eid := range append([]EdgeID(nil), s.incoming...) {
			g.removeEdge(eid)
		}

		if cur, ok := g.symbolIndex[s.node.ID]; ok && cur == id {
			delete(g.symbolIndex, s.node.ID)
		}
		g.nodes.release(id)
		removed++
	}

	delete(g.fileIndex, fileKey)
	return removed
}

// removeEdge unlinks an edge from both endpoint slots and releases it.
func (g *Graph) removeEdge(id EdgeID) {
	es := g.edges.get(id)
	if es == nil {
		return
	}
	if fromSlot := g.nodes.get(es.from); fromSlot != nil {
		fromSlot.outgoing = dropEdgeID(fromSlot.outgoing, id)
	}
	if toSlot := g.nodes.get(es.to); toSlot != nil {
		toSlot.incoming = dropEdgeID(toSlot.incoming, id)
	}
	g.edges.release(id)
}

func dropEdgeID(ids []EdgeID, target EdgeID) []EdgeID {
	out := ids[:0]
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}

// MergeFragment copies every node and edge of a fragment into this graph
// under freshly allocated handles.
//
// Description:
//
//	Used to fold a per-file builder fragment into the project graph.
//	Node handles are remapped; the symbol index follows its usual
//	last-write-wins rule. Import edges that would duplicate an existing
//	(anchor, target) import pair are skipped to preserve the import
//	dedup invariant across merges.
//
// Inputs:
//
//	fragment - The source graph. Not mutated.
//
// Outputs:
//
//	int - Nodes copied.
//	int - Edges copied.
func (g *Graph) MergeFragment(fragment *Graph) (int, int) {
	idMap := make(map[NodeID]NodeID, fragment.NodeCount())

	nodesCopied := 0
	fragment.NodeIndices()(func(old NodeID) bool {
		n, _ := fragment.GetNode(old)
		idMap[old] = g.AddNode(n)
		nodesCopied++
		return true
	})

	edgesCopied := 0
	fragment.EdgeIndices()(func(eid EdgeID) bool {
		from, to, _ := fragment.EdgeEndpoints(eid)
		e, _ := fragment.GetEdge(eid)
		newFrom, newTo := idMap[from], idMap[to]
		if e.Kind == EdgeKindImport && g.HasEdge(newFrom, newTo, EdgeKindImport) {
			return true
		}
		if _, err := g.AddEdge(newFrom, newTo, e); err == nil {
			edgesCopied++
		}
		return true
	})

	return nodesCopied, edgesCopied
}

// Stats returns summary statistics for the graph.
func (g *Graph) Stats() Stats {
	st := Stats{
		NodeCount:   g.NodeCount(),
		EdgeCount:   g.EdgeCount(),
		NodesByKind: make(map[NodeKind]int),
		EdgesByKind: make(map[EdgeKind]int),
		FileCount:   len(g.fileIndex),
	}
	g.NodeIndices()(func(id NodeID) bool {
		n, _ := g.GetNode(id)
		st.NodesByKind[n.Kind]++
		if n.Language == LanguageExternal {
			st.ExternalNodes++
		}
		return true
	})
	g.EdgeIndices()(func(id EdgeID) bool {
		e, _ := g.GetEdge(id)
		st.EdgesByKind[e.Kind]++
		return true
	})
	return st
}

// Validate checks that every live edge references live nodes.
//
// Description:
//
//	Should hold by construction; a failure indicates a bug in removal
//	bookkeeping. Intended for use after load and in tests.
//
// Outputs:
//
//	error - Non-nil if a dangling edge is found.
func (g *Graph) Validate() error {
	var err error
	g.EdgeIndices()(func(id EdgeID) bool {
		es := g.edges.get(id)
		if g.nodes.get(es.from) == nil {
			err = fmt.Errorf("edge %v: dangling source %v", id, es.from)
			return false
		}
		if g.nodes.get(es.to) == nil {
			err = fmt.Errorf("edge %v: dangling target %v", id, es.to)
			return false
		}
		return true
	})
	return err
}
