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

	"github.com/spf13/cobra"

	"github.com/AleutianAI/CodeGravity/pkg/validation"
	"github.com/AleutianAI/CodeGravity/services/pdg/graph"
	"github.com/AleutianAI/CodeGravity/services/pdg/storage"
)

var (
	mergeMaxDepth int
	mergeJSON     bool

	mergeCmd = &cobra.Command{
		Use:   "merge <foreign-project>...",
		Short: "Fold other projects' graphs into the current project",
		Long: `Merge copies each foreign project's indexed graph into the current
project's graph, so impact and context queries can cross project
boundaries. Merged nodes keep a record of which project they came
from; the number of distinct foreign projects is bounded by
--max-depth.

Both projects must have been indexed with 'codegravity refresh' first.

Examples:
  codegravity merge shared-lib
  codegravity --project app merge auth-service billing-service`,
		Args: cobra.MinimumNArgs(1),
		RunE: runMerge,
	}
)

func init() {
	mergeCmd.Flags().IntVar(&mergeMaxDepth, "max-depth", graph.DefaultMaxMergeDepth,
		"Maximum number of distinct foreign projects")
	mergeCmd.Flags().BoolVar(&mergeJSON, "json", false,
		"Output as JSON for scripting")
}

func runMerge(cmd *cobra.Command, args []string) error {
	store, g, err := loadGraph(cmd)
	if err != nil {
		return err
	}
	defer store.Close()
	ctx := cmd.Context()

	merger := graph.NewMerger(flagProject, g, graph.WithMaxDepth(mergeMaxDepth))
	merged := 0
	for _, foreignID := range args {
		foreignID, err := validation.SanitizeProjectID(foreignID)
		if err != nil {
			return err
		}
		if foreignID == flagProject {
			return fmt.Errorf("cannot merge project %q into itself", flagProject)
		}

		foreign, err := store.LoadGraph(ctx, foreignID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("project %q has no indexed graph (run 'codegravity --project %s refresh' first)", foreignID, foreignID)
			}
			return err
		}

		if err := merger.MergeExternalPDG(ctx, foreignID, foreign); err != nil {
			var depthErr *graph.MaxDepthError
			if errors.As(err, &depthErr) {
				return fmt.Errorf("merge of %q rejected: depth limit of %d distinct projects reached", foreignID, depthErr.Limit)
			}
			return err
		}
		merged++
	}

	if err := store.SaveGraph(ctx, flagProject, g); err != nil {
		return fmt.Errorf("persist merged graph: %w", err)
	}
	if err := store.SaveCrossProject(ctx, flagProject, merger.ToSerializable()); err != nil {
		return fmt.Errorf("persist cross-project state: %w", err)
	}

	if mergeJSON {
		payload, _ := json.MarshalIndent(map[string]any{
			"project":             flagProject,
			"merged":              merged,
			"referenced_projects": merger.ReferencedProjects(),
			"external_nodes":      len(merger.ExternalNodes()),
			"nodes":               g.NodeCount(),
			"edges":               g.EdgeCount(),
		}, "", "  ")
		fmt.Println(string(payload))
		return nil
	}

	fmt.Printf("Merged %d project(s) into %q: %d external nodes (%d nodes, %d edges total)\n",
		merged, flagProject, len(merger.ExternalNodes()), g.NodeCount(), g.EdgeCount())
	return nil
}
