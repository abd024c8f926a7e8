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
	"time"
)

// ctxCheckInterval bounds how often traversals poll for cancellation.
const ctxCheckInterval = 256

// ForwardImpact returns the set of nodes transitively reachable from
// origin by following outgoing edges of any kind.
//
// Description:
//
//	Iterative BFS with an explicit visited set; recursive call graphs
//	are common and must not blow the stack. The origin itself is
//	excluded unless a cycle leads back to it, in which case it is
//	included (genuine self-impact through recursion).
//
// Inputs:
//
//	ctx - Checked periodically; a cancelled context aborts the walk.
//	origin - The changed node. A stale handle yields an empty set.
//
// Outputs:
//
//	map[NodeID]bool - The impact set (the "blast radius").
//	error - Context error if the walk was cancelled.
func (g *Graph) ForwardImpact(ctx context.Context, origin NodeID) (map[NodeID]bool, error) {
	return g.impact(ctx, origin, "ForwardImpact", g.Neighbors)
}

// BackwardImpact returns the set of nodes that transitively reach
// origin by following incoming edges of any kind. Symmetric to
// ForwardImpact, including the cycle rule for the origin.
func (g *Graph) BackwardImpact(ctx context.Context, origin NodeID) (map[NodeID]bool, error) {
	return g.impact(ctx, origin, "BackwardImpact", g.Predecessors)
}

func (g *Graph) impact(ctx context.Context, origin NodeID, queryType string, step func(NodeID) []NodeID) (map[NodeID]bool, error) {
	start := time.Now()
	originNode, ok := g.GetNode(origin)
	if !ok {
		return map[NodeID]bool{}, nil
	}
	ctx, span := startQuerySpan(ctx, queryType, originNode.ID)
	defer span.End()

	reached := make(map[NodeID]bool)
	queue := step(origin)
	processed := 0
	for len(queue) > 0 {
		if processed%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		processed++

		cur := queue[0]
		queue = queue[1:]
		if reached[cur] {
			continue
		}
		reached[cur] = true
		for _, next := range step(cur) {
			if !reached[next] {
				queue = append(queue, next)
			}
		}
	}

	recordQueryMetrics(ctx, queryType, time.Since(start), len(reached))
	return reached, nil
}
