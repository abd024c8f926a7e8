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

// NodeID is a stable, opaque handle to a node.
//
// Handles stay valid across insertions. After the node is removed the
// handle becomes stale: lookups fail rather than resolving to whatever
// later reused the slot, because reuse bumps the slot generation.
// The zero value is never a live handle.
type NodeID struct {
	idx uint32
	gen uint32
}

// IsZero reports whether the handle is the zero value.
func (id NodeID) IsZero() bool {
	return id == NodeID{}
}

// EdgeID is a stable, opaque handle to an edge, with the same staleness
// guarantees as NodeID.
type EdgeID struct {
	idx uint32
	gen uint32
}

// IsZero reports whether the handle is the zero value.
func (id EdgeID) IsZero() bool {
	return id == EdgeID{}
}

// nodeSlot is one arena cell. Removal tombstones the slot (live=false)
// and bumps gen; the free list may hand the cell out again under the new
// generation.
type nodeSlot struct {
	gen  uint32
	live bool
	node Node

	// outgoing and incoming are incident edge handles, maintained by the
	// graph (not the arena) so edge removal can unlink both endpoints.
	outgoing []EdgeID
	incoming []EdgeID
}

type edgeSlot struct {
	gen  uint32
	live bool
	edge Edge
	from NodeID
	to   NodeID
}

// nodeArena is a growable slot array with generation-guarded reuse.
// Generations start at 1 so the zero NodeID never matches a slot.
type nodeArena struct {
	slots []nodeSlot
	free  []uint32
	count int
}

func (a *nodeArena) alloc(n Node) NodeID {
	a.count++
	if len(a.free) > 0 {
		idx := a.free[len(a.free)-1]
		a.free = a.free[:len(a.free)-1]
		s := &a.slots[idx]
		s.live = true
		s.node = n
		s.outgoing = s.outgoing[:0]
		s.incoming = s.incoming[:0]
		return NodeID{idx: idx, gen: s.gen}
	}
	a.slots = append(a.slots, nodeSlot{gen: 1, live: true, node: n})
	return NodeID{idx: uint32(len(a.slots) - 1), gen: 1}
}

// get returns the slot for a live, generation-matching handle, else nil.
func (a *nodeArena) get(id NodeID) *nodeSlot {
	if int(id.idx) >= len(a.slots) {
		return nil
	}
	s := &a.slots[id.idx]
	if !s.live || s.gen != id.gen {
		return nil
	}
	return s
}

// release tombstones the slot and schedules generation-guarded reuse.
func (a *nodeArena) release(id NodeID) bool {
	s := a.get(id)
	if s == nil {
		return false
	}
	s.live = false
	s.gen++
	s.node = Node{}
	a.free = append(a.free, id.idx)
	a.count--
	return true
}

type edgeArena struct {
	slots []edgeSlot
	free  []uint32
	count int
}

func (a *edgeArena) alloc(from, to NodeID, e Edge) EdgeID {
	a.count++
	if len(a.free) > 0 {
		idx := a.free[len(a.free)-1]
		a.free = a.free[:len(a.free)-1]
		s := &a.slots[idx]
		s.live = true
		s.edge = e
		s.from = from
		s.to = to
		return EdgeID{idx: idx, gen: s.gen}
	}
	a.slots = append(a.slots, edgeSlot{gen: 1, live: true, edge: e, from: from, to: to})
	return EdgeID{idx: uint32(len(a.slots) - 1), gen: 1}
}

func (a *edgeArena) get(id EdgeID) *edgeSlot {
	if int(id.idx) >= len(a.slots) {
		return nil
	}
	s := &a.slots[id.idx]
	if !s.live || s.gen != id.gen {
		return nil
	}
	return s
}

func (a *edgeArena) release(id EdgeID) bool {
	s := a.get(id)
	if s == nil {
		return false
	}
	s.live = false
	s.gen++
	s.edge = Edge{}
	s.from = NodeID{}
	s.to = NodeID{}
	a.free = append(a.free, id.idx)
	a.count--
	return true
}
