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
	"reflect"
	"testing"
)

func TestComputeDiff(t *testing.T) {
	tests := []struct {
		name    string
		indexed map[string]string
		current map[string]string
		want    FreshnessDiff
	}{
		{
			name:    "everything in sync",
			indexed: map[string]string{"a.py": "h1", "b.py": "h2"},
			current: map[string]string{"a.py": "h1", "b.py": "h2"},
			want:    FreshnessDiff{},
		},
		{
			name:    "new file is changed",
			indexed: map[string]string{},
			current: map[string]string{"a.py": "h1"},
			want:    FreshnessDiff{ChangedFiles: []string{"a.py"}},
		},
		{
			name:    "hash mismatch is changed",
			indexed: map[string]string{"a.py": "h1"},
			current: map[string]string{"a.py": "h2"},
			want:    FreshnessDiff{ChangedFiles: []string{"a.py"}},
		},
		{
			name:    "missing file is deleted",
			indexed: map[string]string{"a.py": "h1", "b.py": "h2"},
			current: map[string]string{"b.py": "h2"},
			want:    FreshnessDiff{DeletedFiles: []string{"a.py"}},
		},
		{
			name:    "mixed changes sorted",
			indexed: map[string]string{"z.py": "h1", "m.py": "h2", "a.py": "h3"},
			current: map[string]string{"z.py": "changed", "b.py": "new", "a.py": "h3"},
			want: FreshnessDiff{
				ChangedFiles: []string{"b.py", "z.py"},
				DeletedFiles: []string{"m.py"},
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ComputeDiff(tc.indexed, tc.current)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestFreshnessDiff_Empty(t *testing.T) {
	if !(FreshnessDiff{}).Empty() {
		t.Error("zero diff should be empty")
	}
	if (FreshnessDiff{ChangedFiles: []string{"a.py"}}).Empty() {
		t.Error("diff with changes should not be empty")
	}
	if (FreshnessDiff{DeletedFiles: []string{"a.py"}}).Empty() {
		t.Error("diff with deletions should not be empty")
	}
}
