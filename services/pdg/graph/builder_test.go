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
	"testing"

	"github.com/AleutianAI/CodeGravity/services/pdg/extract"
)

// Helper to create a signature with calls.
func testSignature(name, qualified string, calls ...string) extract.SignatureInfo {
	return extract.SignatureInfo{
		Name:          name,
		QualifiedName: qualified,
		Calls:         calls,
		ByteStart:     0,
		ByteEnd:       200,
	}
}

func testExtraction(filePath string, sigs []extract.SignatureInfo, imports []extract.Import) *extract.FileExtraction {
	return &extract.FileExtraction{
		FilePath:   filePath,
		Language:   "python",
		Signatures: sigs,
		Imports:    imports,
	}
}

func nodeIDs(g *Graph) []string {
	var ids []string
	g.NodeIndices()(func(id NodeID) bool {
		n, _ := g.GetNode(id)
		ids = append(ids, n.ID)
		return true
	})
	sort.Strings(ids)
	return ids
}

func TestBuilder_BuildFile_Basics(t *testing.T) {
	builder := NewBuilder()
	ctx := context.Background()

	t.Run("nil extraction", func(t *testing.T) {
		if _, _, err := builder.BuildFile(ctx, nil); err == nil {
			t.Error("expected error for nil extraction")
		}
	})

	t.Run("missing file path", func(t *testing.T) {
		if _, _, err := builder.BuildFile(ctx, &extract.FileExtraction{Language: "python"}); err == nil {
			t.Error("expected error for pathless extraction")
		}
	})

	t.Run("module anchor is always created", func(t *testing.T) {
		frag, res, err := builder.BuildFile(ctx, testExtraction("empty.py", nil, nil))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.NodesCreated != 1 {
			t.Errorf("expected only the anchor, got %d nodes", res.NodesCreated)
		}
		if _, ok := frag.FindBySymbol(ModuleAnchorID("empty.py")); !ok {
			t.Error("module anchor missing")
		}
	})

	t.Run("signatures become nodes with derived complexity", func(t *testing.T) {
		frag, _, err := builder.BuildFile(ctx, testExtraction("c.py", []extract.SignatureInfo{
			testSignature("f", "f", "g", "g", "h"),
			testSignature("g", "g"),
		}, nil))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		id, ok := frag.FindBySymbol("c.py:f")
		if !ok {
			t.Fatal("node for f missing")
		}
		n, _ := frag.GetNode(id)
		if n.Complexity != 4 {
			t.Errorf("expected complexity 1+3 calls, got %d", n.Complexity)
		}
	})
}

func TestBuilder_BuildFile_CallEdges(t *testing.T) {
	builder := NewBuilder()
	ctx := context.Background()

	t.Run("exact match within batch", func(t *testing.T) {
		frag, res, err := builder.BuildFile(ctx, testExtraction("calls.py", []extract.SignatureInfo{
			testSignature("f", "f", "g"),
			testSignature("g", "g"),
		}, nil))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.CallEdges != 1 {
			t.Fatalf("expected 1 call edge, got %d", res.CallEdges)
		}
		f, _ := frag.FindBySymbol("calls.py:f")
		g, _ := frag.FindBySymbol("calls.py:g")
		if !frag.HasEdge(f, g, EdgeKindCall) {
			t.Error("call edge f->g missing")
		}
	})

	t.Run("repeated calls aggregate into a count", func(t *testing.T) {
		frag, res, err := builder.BuildFile(ctx, testExtraction("rep.py", []extract.SignatureInfo{
			testSignature("f", "f", "g", "g", "g"),
			testSignature("g", "g"),
		}, nil))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.CallEdges != 1 {
			t.Fatalf("expected 1 aggregated edge, got %d", res.CallEdges)
		}
		f, _ := frag.FindBySymbol("rep.py:f")
		var count int
		for _, eid := range frag.OutgoingEdges(f) {
			if e, _ := frag.GetEdge(eid); e.Kind == EdgeKindCall {
				count = e.CallCount
			}
		}
		if count != 3 {
			t.Errorf("expected call count 3, got %d", count)
		}
	})

	t.Run("unmatched calls are dropped", func(t *testing.T) {
		frag, res, err := builder.BuildFile(ctx, testExtraction("miss.py", []extract.SignatureInfo{
			testSignature("f", "f", "not_here"),
		}, nil))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.CallEdges != 0 || res.UnresolvedCalls != 1 {
			t.Errorf("expected 0 edges and 1 unresolved, got %d/%d", res.CallEdges, res.UnresolvedCalls)
		}
		if frag.EdgeCount() != 0 {
			t.Errorf("expected no edges, got %d", frag.EdgeCount())
		}
	})
}

func TestBuilder_BuildFile_Imports(t *testing.T) {
	builder := NewBuilder()
	ctx := context.Background()

	t.Run("duplicate imports collapse to one edge", func(t *testing.T) {
		frag, res, err := builder.BuildFile(ctx, testExtraction("dup.py", nil, []extract.Import{
			{Path: "os"},
			{Path: "os", Alias: "operating_system"},
		}))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.ImportEdges != 1 {
			t.Errorf("expected 1 import edge, got %d", res.ImportEdges)
		}
		if res.ExternalImports != 1 {
			t.Errorf("expected 1 external node, got %d", res.ExternalImports)
		}
		anchor, _ := frag.FindBySymbol(ModuleAnchorID("dup.py"))
		target, ok := frag.FindBySymbol(ExternalModuleID("dup.py", "os"))
		if !ok {
			t.Fatal("external placeholder missing")
		}
		if !frag.HasEdge(anchor, target, EdgeKindImport) {
			t.Error("import edge anchor->external missing")
		}
		n, _ := frag.GetNode(target)
		if n.Language != LanguageExternal {
			t.Errorf("placeholder language = %q, want %q", n.Language, LanguageExternal)
		}
	})

	t.Run("import resolving to a local symbol", func(t *testing.T) {
		frag, res, err := builder.BuildFile(ctx, testExtraction("loc.py", []extract.SignatureInfo{
			testSignature("helpers", "helpers"),
		}, []extract.Import{{Path: "helpers"}}))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.ExternalImports != 0 {
			t.Errorf("expected no placeholder, got %d", res.ExternalImports)
		}
		anchor, _ := frag.FindBySymbol(ModuleAnchorID("loc.py"))
		target, _ := frag.FindBySymbol("loc.py:helpers")
		if !frag.HasEdge(anchor, target, EdgeKindImport) {
			t.Error("import edge to local symbol missing")
		}
	})
}

func TestBuilder_BuildFile_Determinism(t *testing.T) {
	builder := NewBuilder()
	ctx := context.Background()
	fx := func() *extract.FileExtraction {
		return testExtraction("det.py", []extract.SignatureInfo{
			{Name: "f", QualifiedName: "f", Calls: []string{"g"}, Parameters: []extract.Parameter{{Name: "u", TypeAnnotation: "User"}, {Name: "s", TypeAnnotation: "Session"}}, ByteEnd: 150},
			{Name: "g", QualifiedName: "g", Parameters: []extract.Parameter{{Name: "u", TypeAnnotation: "User"}}, ByteEnd: 90},
			{Name: "h", QualifiedName: "h", Parameters: []extract.Parameter{{Name: "s", TypeAnnotation: "Session"}}, ByteEnd: 60},
		}, []extract.Import{{Path: "os"}, {Path: "sys"}})
	}

	first, firstRes, err := builder.BuildFile(ctx, fx())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, secondRes, err := builder.BuildFile(ctx, fx())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if first.NodeCount() != second.NodeCount() || first.EdgeCount() != second.EdgeCount() {
		t.Fatalf("counts differ: %d/%d vs %d/%d",
			first.NodeCount(), first.EdgeCount(), second.NodeCount(), second.EdgeCount())
	}
	if *firstRes != *secondRes {
		t.Errorf("build results differ: %+v vs %+v", firstRes, secondRes)
	}
	a, b := nodeIDs(first), nodeIDs(second)
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("node id mismatch at %d: %q vs %q", i, a[i], b[i])
		}
	}
}

func TestBuilder_BuildFile_OverrideRegression(t *testing.T) {
	// Derived::process overrides Base::process and calls it; both take a
	// User parameter. The extraction must yield at least one call edge,
	// one data dependency edge, and one inheritance edge.
	builder := NewBuilder()
	frag, res, err := builder.BuildFile(context.Background(), testExtraction("shapes.py", []extract.SignatureInfo{
		{
			Name:          "process",
			QualifiedName: "Base::process",
			IsMethod:      true,
			Parameters:    []extract.Parameter{{Name: "user", TypeAnnotation: "User"}},
			ByteStart:     0,
			ByteEnd:       120,
		},
		{
			Name:          "process",
			QualifiedName: "Derived::process",
			IsMethod:      true,
			Calls:         []string{"Base::process"},
			Parameters:    []extract.Parameter{{Name: "user", TypeAnnotation: "User"}},
			ByteStart:     130,
			ByteEnd:       260,
		},
	}, nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.CallEdges < 1 {
		t.Errorf("expected >=1 call edge, got %d", res.CallEdges)
	}
	if res.DataEdges < 1 {
		t.Errorf("expected >=1 data dependency edge, got %d", res.DataEdges)
	}
	if res.InheritanceEdges < 1 {
		t.Errorf("expected >=1 inheritance edge, got %d", res.InheritanceEdges)
	}

	derived, _ := frag.FindBySymbol("shapes.py:Derived::process")
	base, _ := frag.FindBySymbol("shapes.py:Base::process")
	if !frag.HasEdge(derived, base, EdgeKindCall) {
		t.Error("call edge Derived::process -> Base::process missing")
	}
	if !frag.HasEdge(derived, base, EdgeKindInheritance) {
		t.Error("inheritance edge Derived::process -> Base::process missing")
	}
}

func TestBuilder_BuildFile_DataDependency(t *testing.T) {
	builder := NewBuilder()
	frag, res, err := builder.BuildFile(context.Background(), testExtraction("data.py", []extract.SignatureInfo{
		{Name: "a", QualifiedName: "a", Parameters: []extract.Parameter{{Name: "u", TypeAnnotation: "User"}}},
		{Name: "b", QualifiedName: "b", Parameters: []extract.Parameter{{Name: "u", TypeAnnotation: "User"}}},
		{Name: "c", QualifiedName: "c", Parameters: []extract.Parameter{{Name: "n", TypeAnnotation: "int"}}},
	}, nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.DataEdges != 1 {
		t.Fatalf("expected 1 data dependency edge, got %d", res.DataEdges)
	}
	a, _ := frag.FindBySymbol("data.py:a")
	b, _ := frag.FindBySymbol("data.py:b")
	var annotation string
	for _, eid := range frag.OutgoingEdges(a) {
		if e, _ := frag.GetEdge(eid); e.Kind == EdgeKindDataDependency {
			annotation = e.VariableName
		}
	}
	if !frag.HasEdge(a, b, EdgeKindDataDependency) {
		t.Error("data dependency edge a->b missing")
	}
	if annotation != "User" {
		t.Errorf("expected shared annotation %q, got %q", "User", annotation)
	}
}

func TestBuilder_HeuristicsDisabled(t *testing.T) {
	builder := NewBuilder(WithHeuristicEdges(false))
	_, res, err := builder.BuildFile(context.Background(), testExtraction("off.py", []extract.SignatureInfo{
		{Name: "process", QualifiedName: "Base::process", IsMethod: true, Parameters: []extract.Parameter{{Name: "u", TypeAnnotation: "User"}}},
		{Name: "process", QualifiedName: "Derived::process", IsMethod: true, Calls: []string{"Base::process"}, Parameters: []extract.Parameter{{Name: "u", TypeAnnotation: "User"}}},
	}, nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.CallEdges != 1 {
		t.Errorf("call edges should survive, got %d", res.CallEdges)
	}
	if res.DataEdges != 0 || res.InheritanceEdges != 0 {
		t.Errorf("heuristic edges should be off, got data=%d inheritance=%d", res.DataEdges, res.InheritanceEdges)
	}
}
