// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// SidecarSuffix marks pre-extracted signature files produced by the
// language extraction service.
const SidecarSuffix = ".sig.json"

// JSONParser reads pre-extracted signature sidecar files.
//
// Description:
//
//	Language parsing happens in a separate extraction service; it
//	writes one ".sig.json" sidecar per source file. This parser loads
//	those sidecars, which lets the indexer run without linking any
//	grammar toolchain.
type JSONParser struct{}

var _ Parser = (*JSONParser)(nil)

// NewJSONParser creates a sidecar parser.
func NewJSONParser() *JSONParser {
	return &JSONParser{}
}

// Supports reports whether the path is a signature sidecar.
func (p *JSONParser) Supports(filePath string) bool {
	return strings.HasSuffix(filePath, SidecarSuffix)
}

// Parse decodes one sidecar file.
func (p *JSONParser) Parse(_ context.Context, filePath string, source []byte) (*FileExtraction, error) {
	var fx FileExtraction
	if err := json.Unmarshal(source, &fx); err != nil {
		return nil, fmt.Errorf("decode signature sidecar %s: %w", filePath, err)
	}
	// The sidecar path is the canonical file key; the embedded
	// file_path field is informational only.
	fx.FilePath = filePath
	fx.Source = source
	return &fx, nil
}
