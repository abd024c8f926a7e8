// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package refresh keeps a project graph in sync with its file tree.
//
// A refresh cycle compares current content hashes against the hashes
// recorded by the previous cycle (the freshness diff), removes deleted
// files from the graph, re-parses changed files into fragments, folds
// them in, re-links unresolved imports, and persists once.
package refresh

import "sort"

// FreshnessDiff is the set of files that changed or disappeared since
// the last indexed state.
type FreshnessDiff struct {
	// ChangedFiles are new files plus files whose content hash differs
	// from the indexed hash. Sorted.
	ChangedFiles []string

	// DeletedFiles were indexed before but are absent now. Sorted.
	DeletedFiles []string
}

// Empty reports whether the diff contains no work.
func (d FreshnessDiff) Empty() bool {
	return len(d.ChangedFiles) == 0 && len(d.DeletedFiles) == 0
}

// ComputeDiff compares the previously indexed hash map against current
// file hashes.
//
// Inputs:
//
//	indexed - file key to content hash, from the last refresh cycle.
//	current - file key to content hash for the files on disk now.
//
// Outputs:
//
//	FreshnessDiff - Sorted changed and deleted file lists.
func ComputeDiff(indexed, current map[string]string) FreshnessDiff {
	var diff FreshnessDiff
	for file, hash := range current {
		if prev, ok := indexed[file]; !ok || prev != hash {
			diff.ChangedFiles = append(diff.ChangedFiles, file)
		}
	}
	for file := range indexed {
		if _, ok := current[file]; !ok {
			diff.DeletedFiles = append(diff.DeletedFiles, file)
		}
	}
	sort.Strings(diff.ChangedFiles)
	sort.Strings(diff.DeletedFiles)
	return diff
}
