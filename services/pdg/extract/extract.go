// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package extract defines the language-neutral signature model produced
// by per-language parsers and consumed by the graph builder.
//
// A parser reads one source file and reports the symbols it defines,
// the qualified names each symbol calls, and the modules the file
// imports. Parsers do not resolve anything; resolution happens in the
// builder against the fragment and in the refresher's relink pass
// against the project graph.
package extract

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
)

// Parameter is a single formal parameter of a function or method.
type Parameter struct {
	Name           string `json:"name"`
	TypeAnnotation string `json:"type_annotation,omitempty"`
	DefaultValue   string `json:"default_value,omitempty"`
}

// Import is a module import declared by a source file.
type Import struct {
	// Path is the imported module path as written in the source.
	Path string `json:"path"`
	// Alias is the local binding name, empty if none.
	Alias string `json:"alias,omitempty"`
}

// SignatureInfo describes one symbol defined in a source file.
type SignatureInfo struct {
	Name          string      `json:"name"`
	QualifiedName string      `json:"qualified_name"`
	Parameters    []Parameter `json:"parameters,omitempty"`
	ReturnType    string      `json:"return_type,omitempty"`
	Visibility    string      `json:"visibility,omitempty"`
	IsAsync       bool        `json:"is_async,omitempty"`
	IsMethod      bool        `json:"is_method,omitempty"`
	Docstring     string      `json:"docstring,omitempty"`

	// Calls lists the qualified names this symbol invokes, in source
	// order, unresolved.
	Calls []string `json:"calls,omitempty"`

	ByteStart int `json:"byte_start"`
	ByteEnd   int `json:"byte_end"`
}

// FileExtraction is the full parse product for one source file.
type FileExtraction struct {
	FilePath   string          `json:"file_path"`
	Language   string          `json:"language"`
	Source     []byte          `json:"-"`
	Signatures []SignatureInfo `json:"signatures,omitempty"`
	Imports    []Import        `json:"imports,omitempty"`
}

// Parser extracts signatures from a single source file.
//
// Thread Safety:
//
//	Implementations must be safe for concurrent Parse calls; the
//	refresher parses files in parallel during cold start.
type Parser interface {
	// Parse extracts signatures from the given file contents.
	// FilePath in the result must equal the filePath argument.
	Parse(ctx context.Context, filePath string, source []byte) (*FileExtraction, error)

	// Supports reports whether this parser handles the given file path
	// (typically by extension).
	Supports(filePath string) bool
}

// HashBytes returns the hex-encoded SHA-256 digest of content. Used as
// the freshness fingerprint for indexed files.
func HashBytes(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
