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
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/AleutianAI/CodeGravity/services/pdg/extract"
)

// BuildResult summarizes one per-file fragment build.
type BuildResult struct {
	NodesCreated     int
	EdgesCreated     int
	CallEdges        int
	DataEdges        int
	InheritanceEdges int
	ImportEdges      int
	UnresolvedCalls  int
	ExternalImports  int
}

// Builder turns one file's extracted signatures into a standalone graph
// fragment. Fragments are folded into the project graph by the
// refresher via Graph.MergeFragment.
//
// Thread Safety:
//
//	A Builder is stateless after construction and safe for concurrent
//	BuildFile calls on distinct output fragments.
type Builder struct {
	heuristicEdges bool
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithHeuristicEdges enables or disables the data-dependency and
// inheritance heuristics. Enabled by default.
func WithHeuristicEdges(enabled bool) BuilderOption {
	return func(b *Builder) {
		b.heuristicEdges = enabled
	}
}

// NewBuilder creates a Builder with the given options.
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{heuristicEdges: true}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// BuildFile builds a graph fragment from one file's extraction.
//
// Description:
//
//	Creates one node per signature plus a synthetic module anchor.
//	Call edges resolve by exact qualified-name match inside the same
//	extraction; unmatched calls are dropped. Data-dependency and
//	inheritance edges come from the heuristics described on the edge
//	kinds. Import edges root at the module anchor; unresolved imports
//	get-or-create an external placeholder node, and duplicate imports
//	of one path collapse to a single edge.
//
//	Deterministic: identical extractions produce fragments with
//	identical node/edge counts and identical ID strings. Upstream
//	cache keys depend on this.
//
// Inputs:
//
//	ctx - Context for tracing only; the build itself does not block.
//	fx - The file extraction. Signature order is significant.
//
// Outputs:
//
//	*Graph - The fragment, never merged into anything yet.
//	*BuildResult - Edge/node counters for logging and metrics.
//	error - Non-nil only for a nil or pathless extraction.
func (b *Builder) BuildFile(ctx context.Context, fx *extract.FileExtraction) (*Graph, *BuildResult, error) {
	if fx == nil {
		return nil, nil, fmt.Errorf("build: nil extraction")
	}
	if fx.FilePath == "" {
		return nil, nil, fmt.Errorf("build: extraction has no file path")
	}

	ctx, span := startBuildSpan(ctx, fx.FilePath)
	defer span.End()
	start := time.Now()

	frag := NewGraph()
	res := &BuildResult{}

	anchor := frag.AddNode(Node{
		ID:       ModuleAnchorID(fx.FilePath),
		Kind:     NodeKindModule,
		Name:     path.Base(fx.FilePath),
		FilePath: fx.FilePath,
		Language: fx.Language,
	})
	res.NodesCreated++

	// Pass 1: one node per signature. The qualified-name map follows
	// the symbol index's last-write-wins rule for duplicate names.
	byQualified := make(map[string]NodeID, len(fx.Signatures))
	sigIDs := make([]NodeID, len(fx.Signatures))
	for i, sig := range fx.Signatures {
		kind := NodeKindFunction
		if sig.IsMethod {
			kind = NodeKindMethod
		}
		id := frag.AddNode(Node{
			ID:         SymbolID(fx.FilePath, sig.QualifiedName),
			Kind:       kind,
			Name:       sig.Name,
			FilePath:   fx.FilePath,
			ByteStart:  sig.ByteStart,
			ByteEnd:    sig.ByteEnd,
			Complexity: 1 + len(sig.Calls),
			Language:   fx.Language,
		})
		byQualified[sig.QualifiedName] = id
		sigIDs[i] = id
		res.NodesCreated++
	}

	b.addCallEdges(frag, fx, byQualified, sigIDs, res)
	if b.heuristicEdges {
		b.addDataDependencyEdges(frag, fx, sigIDs, res)
	}
	b.addImportEdges(frag, fx, anchor, byQualified, res)

	res.EdgesCreated = res.CallEdges + res.DataEdges + res.InheritanceEdges + res.ImportEdges
	setBuildSpanResult(span, res.NodesCreated, res.EdgesCreated)
	recordBuildMetrics(ctx, time.Since(start), res.NodesCreated, res.EdgesCreated, true)
	return frag, res, nil
}

// addCallEdges resolves each signature's calls against the other
// signatures of the same extraction and adds Call edges, aggregating
// repeated calls to one callee into a single edge with a count. When
// the heuristic is enabled, a Call between two same-named methods under
// different qualifiers also gets an Inheritance edge (treated as an
// override relationship).
func (b *Builder) addCallEdges(frag *Graph, fx *extract.FileExtraction, byQualified map[string]NodeID, sigIDs []NodeID, res *BuildResult) {
	for i, sig := range fx.Signatures {
		counts := make(map[string]int, len(sig.Calls))
		order := make([]string, 0, len(sig.Calls))
		for _, callee := range sig.Calls {
			if callee == sig.QualifiedName {
				continue
			}
			if counts[callee] == 0 {
				order = append(order, callee)
			}
			counts[callee]++
		}

		for _, callee := range order {
			target, ok := byQualified[callee]
			if !ok {
				res.UnresolvedCalls += counts[callee]
				continue
			}
			if _, err := frag.AddEdge(sigIDs[i], target, Edge{
				Kind:      EdgeKindCall,
				CallCount: counts[callee],
			}); err == nil {
				res.CallEdges++
			}

			if b.heuristicEdges && sig.IsMethod && isOverridePair(sig.QualifiedName, callee) {
				if _, err := frag.AddEdge(sigIDs[i], target, Edge{Kind: EdgeKindInheritance}); err == nil {
					res.InheritanceEdges++
				}
			}
		}
	}
}

// isOverridePair reports whether two qualified names share a method
// name under different qualifiers (e.g. Derived::process vs
// Base::process).
func isOverridePair(a, b string) bool {
	qa, ma := splitQualified(a)
	qb, mb := splitQualified(b)
	return ma == mb && qa != qb && qa != "" && qb != ""
}

// splitQualified splits a qualified name into (qualifier, member) on
// the last "::" or "." separator. A bare name has an empty qualifier.
func splitQualified(qualified string) (string, string) {
	if i := strings.LastIndex(qualified, "::"); i >= 0 {
		return qualified[:i], qualified[i+2:]
	}
	if i := strings.LastIndex(qualified, "."); i >= 0 {
		return qualified[:i], qualified[i+1:]
	}
	return "", qualified
}

// addDataDependencyEdges links signatures that share an identical
// parameter type annotation. Name-based, not true dataflow; annotation
// groups are visited in sorted order so fragments stay deterministic.
func (b *Builder) addDataDependencyEdges(frag *Graph, fx *extract.FileExtraction, sigIDs []NodeID, res *BuildResult) {
	groups := make(map[string][]int)
	for i, sig := range fx.Signatures {
		seen := make(map[string]bool, len(sig.Parameters))
		for _, p := range sig.Parameters {
			if p.TypeAnnotation == "" || seen[p.TypeAnnotation] {
				continue
			}
			seen[p.TypeAnnotation] = true
			groups[p.TypeAnnotation] = append(groups[p.TypeAnnotation], i)
		}
	}

	annotations := make([]string, 0, len(groups))
	for a := range groups {
		annotations = append(annotations, a)
	}
	sort.Strings(annotations)

	for _, annotation := range annotations {
		members := groups[annotation]
		for i := 0; i < len(members); i++ {
			for j := i + 1; j < len(members); j++ {
				if _, err := frag.AddEdge(sigIDs[members[i]], sigIDs[members[j]], Edge{
					Kind:         EdgeKindDataDependency,
					VariableName: annotation,
				}); err == nil {
					res.DataEdges++
				}
			}
		}
	}
}

// addImportEdges roots one Import edge per distinct imported path at
// the module anchor. A path that matches a signature's qualified name
// resolves locally; anything else gets a synthetic external Module node
// keyed by (file, path), reused across duplicate imports.
func (b *Builder) addImportEdges(frag *Graph, fx *extract.FileExtraction, anchor NodeID, byQualified map[string]NodeID, res *BuildResult) {
	externals := make(map[string]NodeID)
	seen := make(map[string]bool, len(fx.Imports))
	for _, imp := range fx.Imports {
		if imp.Path == "" || seen[imp.Path] {
			continue
		}
		seen[imp.Path] = true

		target, ok := byQualified[imp.Path]
		if !ok {
			target, ok = externals[imp.Path]
			if !ok {
				target = frag.AddNode(Node{
					ID:       ExternalModuleID(fx.FilePath, imp.Path),
					Kind:     NodeKindModule,
					Name:     imp.Path,
					FilePath: fx.FilePath,
					Language: LanguageExternal,
				})
				externals[imp.Path] = target
				res.NodesCreated++
				res.ExternalImports++
			}
		}

		if _, err := frag.AddEdge(anchor, target, Edge{Kind: EdgeKindImport}); err == nil {
			res.ImportEdges++
		}
	}
}
