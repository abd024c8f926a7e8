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
	"testing"
)

// Helper to add a node with a given byte span and complexity.
func gravityNode(g *Graph, file, name string, span, complexity int) NodeID {
	return g.AddNode(Node{
		ID:         SymbolID(file, name),
		Kind:       NodeKindFunction,
		Name:       name,
		FilePath:   file,
		ByteStart:  0,
		ByteEnd:    span,
		Complexity: complexity,
		Language:   "python",
	})
}

func TestGravityConfig_Defaults(t *testing.T) {
	cfg := DefaultGravityConfig()
	if cfg.MaxTokens != 2000 {
		t.Errorf("MaxTokens = %d, want 2000", cfg.MaxTokens)
	}
	if cfg.DistanceDecay != 2.0 || cfg.SemanticWeight != 1.0 || cfg.ComplexityWeight != 0.5 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestEstimateTokens(t *testing.T) {
	if got := estimateTokens(Node{ByteStart: 0, ByteEnd: 400}); got != 100 {
		t.Errorf("400 bytes = %d tokens, want 100", got)
	}
	// Synthetic nodes with empty spans get the floor.
	if got := estimateTokens(Node{}); got != 10 {
		t.Errorf("empty span = %d tokens, want 10", got)
	}
}

func TestGraph_ExpandContext(t *testing.T) {
	ctx := context.Background()

	t.Run("budget smaller than any node yields empty context", func(t *testing.T) {
		g := NewGraph()
		entry := gravityNode(g, "g.py", "f", 400, 3)
		cfg := DefaultGravityConfig()
		cfg.MaxTokens = 50 // every node costs >= 100

		got := g.ExpandContext(ctx, []EntryPoint{{ID: entry, SemanticScore: 1}}, cfg)
		if len(got) != 0 {
			t.Errorf("expected empty context, got %d nodes", len(got))
		}
	})

	t.Run("first rejection terminates the traversal", func(t *testing.T) {
		g := NewGraph()
		entry := gravityNode(g, "g.py", "f", 400, 5) // 100 tokens
		big := gravityNode(g, "g.py", "big", 4000, 9)
		small := gravityNode(g, "g.py", "small", 40, 1) // would fit
		if _, err := g.AddEdge(entry, big, Edge{Kind: EdgeKindCall}); err != nil {
			t.Fatal(err)
		}
		if _, err := g.AddEdge(entry, small, Edge{Kind: EdgeKindCall}); err != nil {
			t.Fatal(err)
		}

		cfg := DefaultGravityConfig()
		cfg.MaxTokens = 200
		got := g.ExpandContext(ctx, []EntryPoint{{ID: entry, SemanticScore: 1}}, cfg)

		// big has higher relevance than small; when it overflows the
		// budget the traversal stops rather than skipping to small.
		if len(got) != 1 || got[0] != entry {
			t.Errorf("expected traversal to stop at the entry node, got %v", got)
		}
	})

	t.Run("accepted cost never exceeds the budget", func(t *testing.T) {
		g := NewGraph()
		prev := gravityNode(g, "g.py", "n0", 200, 2)
		entry := prev
		for i := 1; i < 20; i++ {
			next := gravityNode(g, "g.py", "n"+string(rune('a'+i)), 200, 2)
			if _, err := g.AddEdge(prev, next, Edge{Kind: EdgeKindCall}); err != nil {
				t.Fatal(err)
			}
			prev = next
		}

		cfg := DefaultGravityConfig()
		cfg.MaxTokens = 175 // 3 * 50 tokens fit, the 4th does not
		got := g.ExpandContext(ctx, []EntryPoint{{ID: entry, SemanticScore: 1}}, cfg)

		total := 0
		for _, id := range got {
			n, _ := g.GetNode(id)
			total += estimateTokens(n)
		}
		if total > cfg.MaxTokens {
			t.Errorf("accepted cost %d exceeds budget %d", total, cfg.MaxTokens)
		}
		if len(got) != 3 {
			t.Errorf("expected 3 accepted nodes, got %d", len(got))
		}
	})

	t.Run("equal relevance ties break on node id", func(t *testing.T) {
		run := func() []string {
			g := NewGraph()
			entry := gravityNode(g, "t.py", "seed", 40, 1)
			// Identical span and complexity: identical relevance.
			for _, name := range []string{"zeta", "alpha", "mid"} {
				n := gravityNode(g, "t.py", name, 40, 1)
				if _, err := g.AddEdge(entry, n, Edge{Kind: EdgeKindCall}); err != nil {
					t.Fatal(err)
				}
			}
			var ids []string
			for _, id := range g.ExpandContext(ctx, []EntryPoint{{ID: entry, SemanticScore: 1}}, DefaultGravityConfig()) {
				n, _ := g.GetNode(id)
				ids = append(ids, n.ID)
			}
			return ids
		}

		first := run()
		for i := 0; i < 5; i++ {
			if next := run(); len(next) != len(first) {
				t.Fatalf("run %d returned %d nodes, want %d", i, len(next), len(first))
			} else {
				for j := range next {
					if next[j] != first[j] {
						t.Fatalf("nondeterministic order at %d: %q vs %q", j, next[j], first[j])
					}
				}
			}
		}
		// Siblings at equal relevance come back in id order.
		if len(first) != 4 || first[1] != "t.py:alpha" || first[2] != "t.py:mid" || first[3] != "t.py:zeta" {
			t.Errorf("unexpected acceptance order: %v", first)
		}
	})

	t.Run("stale entry points are skipped silently", func(t *testing.T) {
		g := NewGraph()
		live := gravityNode(g, "t.py", "live", 40, 1)
		got := g.ExpandContext(ctx, []EntryPoint{
			{ID: NodeID{idx: 404, gen: 7}, SemanticScore: 1},
			{ID: live, SemanticScore: 1},
		}, DefaultGravityConfig())
		if len(got) != 1 || got[0] != live {
			t.Errorf("expected only the live entry, got %v", got)
		}
	})
}
