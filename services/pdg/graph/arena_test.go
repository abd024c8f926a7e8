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

import "testing"

func TestNodeArena_HandleLifecycle(t *testing.T) {
	var arena nodeArena

	t.Run("alloc and get", func(t *testing.T) {
		id := arena.alloc(Node{ID: "n1"})
		slot := arena.get(id)
		if slot == nil {
			t.Fatal("expected live slot")
		}
		if slot.node.ID != "n1" {
			t.Errorf("expected payload n1, got %q", slot.node.ID)
		}
		if arena.count != 1 {
			t.Errorf("expected count 1, got %d", arena.count)
		}
	})

	t.Run("release tombstones the slot", func(t *testing.T) {
		id := arena.alloc(Node{ID: "n2"})
		arena.release(id)
		if arena.get(id) != nil {
			t.Error("released handle should be stale")
		}
		if arena.count != 1 {
			t.Errorf("expected count back to 1, got %d", arena.count)
		}
	})

	t.Run("slot reuse bumps generation", func(t *testing.T) {
		victim := arena.alloc(Node{ID: "victim"})
		arena.release(victim)

		reused := arena.alloc(Node{ID: "reused"})
		if reused.idx != victim.idx {
			t.Fatalf("expected free-list reuse of slot %d, got %d", victim.idx, reused.idx)
		}
		if reused.gen == victim.gen {
			t.Error("reused slot must carry a new generation")
		}
		if arena.get(victim) != nil {
			t.Error("old handle must not resolve to the new occupant")
		}
		if arena.get(reused) == nil {
			t.Error("new handle must be live")
		}
	})

	t.Run("double release is a no-op", func(t *testing.T) {
		id := arena.alloc(Node{ID: "twice"})
		before := arena.count
		arena.release(id)
		arena.release(id)
		if arena.count != before-1 {
			t.Errorf("expected count %d, got %d", before-1, arena.count)
		}
	})
}

func TestEdgeArena_HandleLifecycle(t *testing.T) {
	var nodes nodeArena
	var edges edgeArena
	from := nodes.alloc(Node{ID: "a"})
	to := nodes.alloc(Node{ID: "b"})

	id := edges.alloc(from, to, Edge{Kind: EdgeKindCall})
	slot := edges.get(id)
	if slot == nil {
		t.Fatal("expected live edge slot")
	}
	if slot.from != from || slot.to != to {
		t.Errorf("unexpected endpoints %v -> %v", slot.from, slot.to)
	}

	edges.release(id)
	if edges.get(id) != nil {
		t.Error("released edge handle should be stale")
	}

	reused := edges.alloc(from, to, Edge{Kind: EdgeKindImport})
	if reused.idx == id.idx && reused.gen == id.gen {
		t.Error("reused edge slot must carry a new generation")
	}
}
