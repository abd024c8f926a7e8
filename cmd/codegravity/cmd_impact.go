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
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/CodeGravity/services/pdg/graph"
)

var (
	impactDirection string
	impactJSON      bool

	impactCmd = &cobra.Command{
		Use:   "impact <symbol-id>",
		Short: "Compute the blast radius of changing a symbol",
		Long: `Impact follows the dependence graph transitively from the given
symbol and reports every node that would be affected by a change.

Direction:
  forward   what this symbol affects (default)
  backward  what affects this symbol
  both      union of forward and backward

Symbol IDs follow the form "<file_path>:<qualified_name>".

Examples:
  codegravity impact "src/auth.py:validate_token"
  codegravity impact --direction backward "src/db.py:Connection.query"`,
		Args: cobra.ExactArgs(1),
		RunE: runImpact,
	}
)

func init() {
	impactCmd.Flags().StringVar(&impactDirection, "direction", "forward",
		"Traversal direction: forward, backward, both")
	impactCmd.Flags().BoolVar(&impactJSON, "json", false,
		"Output as JSON for scripting")
}

func runImpact(cmd *cobra.Command, args []string) error {
	switch impactDirection {
	case "forward", "backward", "both":
	default:
		return fmt.Errorf("invalid direction %q (want forward, backward, or both)", impactDirection)
	}

	store, g, err := loadGraph(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	origin, ok := g.FindBySymbol(args[0])
	if !ok {
		return fmt.Errorf("symbol %q not found in project %q", args[0], flagProject)
	}

	impacted := make(map[graph.NodeID]bool)
	if impactDirection == "forward" || impactDirection == "both" {
		forward, err := g.ForwardImpact(cmd.Context(), origin)
		if err != nil {
			return err
		}
		for id := range forward {
			impacted[id] = true
		}
	}
	if impactDirection == "backward" || impactDirection == "both" {
		backward, err := g.BackwardImpact(cmd.Context(), origin)
		if err != nil {
			return err
		}
		for id := range backward {
			impacted[id] = true
		}
	}

	ids := make([]string, 0, len(impacted))
	for id := range impacted {
		if n, ok := g.GetNode(id); ok {
			ids = append(ids, n.ID)
		}
	}
	sort.Strings(ids)

	if impactJSON {
		payload, _ := json.MarshalIndent(map[string]any{
			"symbol":    args[0],
			"direction": impactDirection,
			"impacted":  ids,
			"count":     len(ids),
		}, "", "  ")
		fmt.Println(string(payload))
		return nil
	}

	fmt.Printf("%d nodes impacted (%s) by %s\n", len(ids), impactDirection, args[0])
	for _, id := range ids {
		fmt.Println("  " + id)
	}
	return nil
}
