// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/CodeGravity/services/pdg/graph"
	"github.com/AleutianAI/CodeGravity/services/pdg/storage"
)

var (
	statsJSON bool

	statsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Show summary statistics for a project graph",
		Args:  cobra.NoArgs,
		RunE:  runStats,
	}
)

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false,
		"Output as JSON for scripting")
}

func runStats(cmd *cobra.Command, args []string) error {
	store, g, err := loadGraph(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := g.Validate(); err != nil {
		return fmt.Errorf("graph failed validation: %w", err)
	}
	st := g.Stats()

	// Cross-project state only exists after a merge.
	var mergedProjects []string
	mergedNodes := 0
	if snap, err := store.LoadCrossProject(cmd.Context(), flagProject); err == nil {
		seen := make(map[string]bool)
		for _, origin := range snap.Origins {
			if !seen[origin.ProjectID] {
				seen[origin.ProjectID] = true
				mergedProjects = append(mergedProjects, origin.ProjectID)
			}
		}
		sort.Strings(mergedProjects)
		mergedNodes = len(snap.Origins)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return err
	}

	if statsJSON {
		nodesByKind := make(map[string]int, len(st.NodesByKind))
		for kind, count := range st.NodesByKind {
			nodesByKind[kind.String()] = count
		}
		edgesByKind := make(map[string]int, len(st.EdgesByKind))
		for kind, count := range st.EdgesByKind {
			edgesByKind[kind.String()] = count
		}
		payload, _ := json.MarshalIndent(map[string]any{
			"project":         flagProject,
			"nodes":           st.NodeCount,
			"edges":           st.EdgeCount,
			"files":           st.FileCount,
			"external_nodes":  st.ExternalNodes,
			"nodes_by_kind":   nodesByKind,
			"edges_by_kind":   edgesByKind,
			"merged_projects": mergedProjects,
			"merged_nodes":    mergedNodes,
		}, "", "  ")
		fmt.Println(string(payload))
		return nil
	}

	fmt.Printf("Project %q: %d nodes, %d edges, %d files, %d unresolved imports\n",
		flagProject, st.NodeCount, st.EdgeCount, st.FileCount, st.ExternalNodes)
	if len(mergedProjects) > 0 {
		fmt.Printf("  merged: %d nodes from %v\n", mergedNodes, mergedProjects)
	}
	for kind := graph.NodeKind(0); kind < graph.NumNodeKinds; kind++ {
		if count := st.NodesByKind[kind]; count > 0 {
			fmt.Printf("  %-16s %d\n", kind.String()+":", count)
		}
	}
	for kind := graph.EdgeKind(0); kind < graph.NumEdgeKinds; kind++ {
		if count := st.EdgesByKind[kind]; count > 0 {
			fmt.Printf("  %-16s %d\n", kind.String()+":", count)
		}
	}
	return nil
}
