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
	"container/heap"
	"context"
	"math"
	"time"
)

// GravityConfig tunes the token-budgeted context expansion.
type GravityConfig struct {
	// MaxTokens is the hard budget; the first node whose estimated
	// cost would exceed it terminates the traversal.
	MaxTokens int `yaml:"max_tokens"`
	// DistanceDecay is the exponent applied to graph distance.
	DistanceDecay float64 `yaml:"distance_decay"`
	// SemanticWeight scales the entry point's semantic score.
	SemanticWeight float64 `yaml:"semantic_weight"`
	// ComplexityWeight scales node complexity.
	ComplexityWeight float64 `yaml:"complexity_weight"`
}

// DefaultGravityConfig returns the standard traversal tuning.
func DefaultGravityConfig() GravityConfig {
	return GravityConfig{
		MaxTokens:        2000,
		DistanceDecay:    2.0,
		SemanticWeight:   1.0,
		ComplexityWeight: 0.5,
	}
}

// EntryPoint seeds a gravity traversal with a node and its semantic
// relevance score from the search layer.
type EntryPoint struct {
	ID            NodeID
	SemanticScore float64
}

// candidate is a heap entry. A node may be queued more than once; the
// visited set on pop keeps only the best-relevance occurrence.
type candidate struct {
	id        NodeID
	idString  string
	relevance float64
	distance  int
	semantic  float64
}

// candidateHeap is a max-heap on relevance with the node ID string as a
// secondary key, so equal-relevance pops are deterministic.
type candidateHeap []candidate

func (h candidateHeap) Len() int { return len(h) }

func (h candidateHeap) Less(i, j int) bool {
	if h[i].relevance != h[j].relevance {
		return h[i].relevance > h[j].relevance
	}
	return h[i].idString < h[j].idString
}

func (h candidateHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *candidateHeap) Push(x any) { *h = append(*h, x.(candidate)) }

func (h *candidateHeap) Pop() any {
	old := *h
	n := len(old)
	c := old[n-1]
	*h = old[:n-1]
	return c
}

// relevance computes the gravity score for a node at the given distance
// from its seeding entry point.
func (c GravityConfig) relevance(n Node, distance int, semantic float64) float64 {
	attraction := semantic*c.SemanticWeight + float64(n.Complexity)*c.ComplexityWeight
	decay := math.Pow(float64(distance), c.DistanceDecay)
	if decay < 1 {
		decay = 1
	}
	return attraction / decay
}

// estimateTokens approximates the token cost of including a node's
// source span in a context window. Four bytes per token, floor of 10
// for synthetic nodes with empty byte ranges.
func estimateTokens(n Node) int {
	cost := (n.ByteEnd - n.ByteStart) / 4
	if cost < 10 {
		cost = 10
	}
	return cost
}

// ExpandContext runs the gravity traversal from the given entry points.
//
// Description:
//
//	Seeds a max-priority queue with the entry nodes at distance 0 and
//	repeatedly accepts the highest-relevance unvisited node, charging
//	its estimated token cost against the budget. The first node whose
//	cost would overflow MaxTokens terminates the whole traversal; it
//	is not skipped over. Each accepted node's unvisited neighbors join
//	the queue at distance+1, inheriting the semantic score of the
//	entry point that reached them.
//
//	Entry points absent from the graph (stale handles) are silently
//	skipped; there are no error outcomes.
//
// Inputs:
//
//	ctx - For tracing and metrics only.
//	entries - Seed nodes with semantic scores from the search layer.
//	cfg - Traversal tuning; see DefaultGravityConfig.
//
// Outputs:
//
//	[]NodeID - Accepted nodes in acceptance order. Total estimated
//	cost never exceeds cfg.MaxTokens.
func (g *Graph) ExpandContext(ctx context.Context, entries []EntryPoint, cfg GravityConfig) []NodeID {
	ctx, span := startQuerySpan(ctx, "ExpandContext", "")
	defer span.End()
	start := time.Now()

	pq := &candidateHeap{}
	heap.Init(pq)
	for _, ep := range entries {
		n, ok := g.GetNode(ep.ID)
		if !ok {
			continue
		}
		heap.Push(pq, candidate{
			id:        ep.ID,
			idString:  n.ID,
			relevance: cfg.relevance(n, 0, ep.SemanticScore),
			distance:  0,
			semantic:  ep.SemanticScore,
		})
	}

	visited := make(map[NodeID]bool)
	accepted := make([]NodeID, 0)
	spent := 0

	for pq.Len() > 0 {
		c := heap.Pop(pq).(candidate)
		if visited[c.id] {
			continue
		}
		n, ok := g.GetNode(c.id)
		if !ok {
			continue
		}

		cost := estimateTokens(n)
		if spent+cost > cfg.MaxTokens {
			break
		}
		visited[c.id] = true
		spent += cost
		accepted = append(accepted, c.id)

		for _, next := range g.Neighbors(c.id) {
			if visited[next] {
				continue
			}
			nn, ok := g.GetNode(next)
			if !ok {
				continue
			}
			heap.Push(pq, candidate{
				id:        next,
				idString:  nn.ID,
				relevance: cfg.relevance(nn, c.distance+1, c.semantic),
				distance:  c.distance + 1,
				semantic:  c.semantic,
			})
		}
	}

	recordTraversalMetrics(ctx, time.Since(start), len(accepted))
	return accepted
}
