// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package refresh

import (
	"sync"
	"time"
)

// DirtyEntry records one file awaiting refresh.
type DirtyEntry struct {
	// Path is the file path as reported by the source.
	Path string

	// Deleted marks files that disappeared rather than changed.
	Deleted bool

	// MarkedAt is when the file was flagged.
	MarkedAt time.Time

	// Source says how the file became dirty ("watcher", "manual").
	Source string
}

// DirtyTracker accumulates file changes between refresh cycles.
//
// Description:
//
//	Watcher events and manual marks land here; a refresh cycle drains
//	the set with Snapshot, runs, and clears exactly what it saw with
//	Clear. Changes arriving mid-cycle survive to the next one.
//
// Thread Safety:
//
//	All methods are safe for concurrent use.
type DirtyTracker struct {
	mu      sync.RWMutex
	entries map[string]DirtyEntry
}

// NewDirtyTracker creates an empty tracker.
func NewDirtyTracker() *DirtyTracker {
	return &DirtyTracker{entries: make(map[string]DirtyEntry)}
}

// Mark flags a file as changed.
func (d *DirtyTracker) Mark(path, source string) {
	d.set(DirtyEntry{Path: path, MarkedAt: time.Now(), Source: source})
}

// MarkDeleted flags a file as removed.
func (d *DirtyTracker) MarkDeleted(path, source string) {
	d.set(DirtyEntry{Path: path, Deleted: true, MarkedAt: time.Now(), Source: source})
}

// MarkFromWatcher converts a watcher event into a dirty entry. Renames
// are treated as deletions of the old path; the new path arrives as its
// own create event.
func (d *DirtyTracker) MarkFromWatcher(change FileChange) {
	switch change.Op {
	case FileOpRemove, FileOpRename:
		d.MarkDeleted(change.Path, "watcher")
	default:
		d.Mark(change.Path, "watcher")
	}
}

func (d *DirtyTracker) set(entry DirtyEntry) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries[entry.Path] = entry
}

// HasDirty reports whether any files await refresh.
func (d *DirtyTracker) HasDirty() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.entries) > 0
}

// Count returns the number of dirty files.
func (d *DirtyTracker) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.entries)
}

// Snapshot returns the dirty set split into changed and deleted paths
// without clearing it. Call Clear with the same paths after a
// successful cycle.
func (d *DirtyTracker) Snapshot() (changed, deleted []string) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for path, entry := range d.entries {
		if entry.Deleted {
			deleted = append(deleted, path)
		} else {
			changed = append(changed, path)
		}
	}
	return changed, deleted
}

// Clear drops the given paths from the dirty set and returns how many
// were present.
func (d *DirtyTracker) Clear(paths []string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	cleared := 0
	for _, path := range paths {
		if _, ok := d.entries[path]; ok {
			delete(d.entries, path)
			cleared++
		}
	}
	return cleared
}

// ClearAll empties the dirty set and returns how many entries it held.
func (d *DirtyTracker) ClearAll() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := len(d.entries)
	d.entries = make(map[string]DirtyEntry)
	return n
}
