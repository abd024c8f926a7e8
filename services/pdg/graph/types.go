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

import "fmt"

// NodeKind classifies a symbol node.
type NodeKind int

const (
	// NodeKindFunction is a free function.
	NodeKindFunction NodeKind = iota

	// NodeKindClass is a class, struct, or similar type definition.
	NodeKindClass

	// NodeKindMethod is a function bound to a type.
	NodeKindMethod

	// NodeKindVariable is a module- or class-level variable.
	NodeKindVariable

	// NodeKindModule is a file-level anchor or an external module
	// placeholder.
	NodeKindModule

	// NumNodeKinds is the total number of node kinds (for array sizing).
	NumNodeKinds
)

// nodeKindNames maps NodeKind values to their string representations.
var nodeKindNames = map[NodeKind]string{
	NodeKindFunction: "function",
	NodeKindClass:    "class",
	NodeKindMethod:   "method",
	NodeKindVariable: "variable",
	NodeKindModule:   "module",
}

// String returns the string representation of the NodeKind.
func (k NodeKind) String() string {
	if name, ok := nodeKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// EdgeKind classifies a dependency edge.
type EdgeKind int

const (
	// EdgeKindCall is a caller-to-callee relationship.
	EdgeKindCall EdgeKind = iota

	// EdgeKindDataDependency links symbols sharing a parameter type.
	// This is a name-based heuristic, not true dataflow.
	EdgeKindDataDependency

	// EdgeKindInheritance links an overriding method to the method it
	// overrides.
	EdgeKindInheritance

	// EdgeKindImport links a file's module anchor to an imported target.
	EdgeKindImport

	// NumEdgeKinds is the total number of edge kinds (for array sizing).
	NumEdgeKinds
)

// edgeKindNames maps EdgeKind values to their string representations.
var edgeKindNames = map[EdgeKind]string{
	EdgeKindCall:           "call",
	EdgeKindDataDependency: "data_dependency",
	EdgeKindInheritance:    "inheritance",
	EdgeKindImport:         "import",
}

// String returns the string representation of the EdgeKind.
func (k EdgeKind) String() string {
	if name, ok := edgeKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// LanguageExternal marks synthetic placeholder nodes for unresolved
// imports.
const LanguageExternal = "external"

// Node is a symbol in the dependence graph.
//
// ID follows the convention "<file_path>:<qualified_name>" for extracted
// symbols, "<file_path>:__module__" for the per-file anchor, and
// "<file_path>:__external__:<module_path>" for unresolved imports.
type Node struct {
	// ID is the unique string identifier.
	ID string `json:"id"`

	// Kind classifies the symbol.
	Kind NodeKind `json:"kind"`

	// Name is the unqualified symbol name.
	Name string `json:"name"`

	// FilePath is the project-relative file the symbol belongs to.
	FilePath string `json:"file_path"`

	// ByteStart and ByteEnd delimit the symbol in the source file.
	// Both are zero for synthetic nodes.
	ByteStart int `json:"byte_start"`
	ByteEnd   int `json:"byte_end"`

	// Complexity is a structural complexity estimate, always >= 1.
	Complexity int `json:"complexity"`

	// Language is the extraction language tag. LanguageExternal marks
	// unresolved-import placeholders.
	Language string `json:"language"`

	// Embedding is an optional semantic vector supplied by the search
	// collaborator. Nil when absent.
	Embedding []float32 `json:"embedding,omitempty"`
}

// Edge is a directed relationship between two nodes.
//
// Multiplicity is allowed for all kinds except Import edges sharing the
// same (anchor, target) pair, which the builder deduplicates.
type Edge struct {
	// Kind is the relationship type.
	Kind EdgeKind `json:"kind"`

	// CallCount is the number of call sites this edge represents.
	// Zero when not applicable.
	CallCount int `json:"call_count,omitempty"`

	// VariableName carries the shared type annotation for data
	// dependency edges. Empty when not applicable.
	VariableName string `json:"variable_name,omitempty"`
}

// ModuleAnchorID returns the synthetic per-file anchor node ID.
func ModuleAnchorID(filePath string) string {
	return filePath + ":__module__"
}

// ExternalModuleID returns the synthetic unresolved-import node ID for
// the given file and import path.
func ExternalModuleID(filePath, importPath string) string {
	return fmt.Sprintf("%s:__external__:%s", filePath, importPath)
}

// SymbolID returns the node ID for a qualified symbol in a file.
func SymbolID(filePath, qualifiedName string) string {
	return filePath + ":" + qualifiedName
}

// Stats summarizes a graph.
type Stats struct {
	// NodeCount is the number of live nodes.
	NodeCount int

	// EdgeCount is the number of live edges.
	EdgeCount int

	// NodesByKind maps each NodeKind to the count of live nodes.
	NodesByKind map[NodeKind]int

	// EdgesByKind maps each EdgeKind to the count of live edges.
	EdgesByKind map[EdgeKind]int

	// FileCount is the number of distinct file buckets.
	FileCount int

	// ExternalNodes is the number of unresolved-import placeholders.
	ExternalNodes int
}
