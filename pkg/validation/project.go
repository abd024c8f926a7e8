// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation for values that end up
// inside database keys or file paths.
//
// Project IDs are embedded verbatim in storage keys, so an unvalidated
// ID could collide with the key layout's separators or smuggle prefix
// matches across projects.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// projectIDPattern matches valid project identifiers: lowercase
// alphanumerics, hyphens, and underscores, starting with an
// alphanumeric. Max length 64.
var projectIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_\-]{0,63}$`)

// ValidateProjectID checks a project identifier before it is embedded
// in storage keys.
//
// Valid IDs:
//   - 1-64 characters
//   - Lowercase letters a-z, digits 0-9
//   - Hyphens and underscores after the first character
//
// Colons are rejected unconditionally: the storage key layout uses
// them as separators.
func ValidateProjectID(id string) error {
	if id == "" {
		return fmt.Errorf("project ID cannot be empty")
	}
	if !projectIDPattern.MatchString(id) {
		return fmt.Errorf("invalid project ID %q (must be 1-64 lowercase alphanumeric chars, hyphens, or underscores)", id)
	}
	return nil
}

// SanitizeProjectID lowercases and validates a project identifier.
// Returns the normalized ID or an error.
func SanitizeProjectID(id string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(id))
	if err := ValidateProjectID(normalized); err != nil {
		return "", err
	}
	return normalized, nil
}

// ValidateFileKey checks a normalized file key before it is embedded in
// storage keys. File keys are slash-separated relative paths; absolute
// paths and parent traversal are rejected.
func ValidateFileKey(key string) error {
	if key == "" {
		return fmt.Errorf("file key cannot be empty")
	}
	if strings.HasPrefix(key, "/") {
		return fmt.Errorf("file key %q must be relative", key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." {
			return fmt.Errorf("file key %q must not traverse upward", key)
		}
	}
	return nil
}
