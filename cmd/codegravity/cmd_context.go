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

	"github.com/spf13/cobra"

	"github.com/AleutianAI/CodeGravity/cmd/codegravity/config"
	"github.com/AleutianAI/CodeGravity/services/pdg/graph"
)

var (
	contextMaxTokens int
	contextScore     float64
	contextJSON      bool

	contextCmd = &cobra.Command{
		Use:   "context <symbol-id>...",
		Short: "Expand a token-budgeted context window around entry symbols",
		Long: `Context runs the gravity traversal: starting from the given entry
symbols, it repeatedly pulls in the most relevant neighboring node,
where relevance decays with graph distance, until adding the next node
would exceed the token budget.

Examples:
  codegravity context "src/auth.py:validate_token"
  codegravity context --max-tokens 4000 "src/a.py:f" "src/b.py:g"`,
		Args: cobra.MinimumNArgs(1),
		RunE: runContext,
	}
)

func init() {
	contextCmd.Flags().IntVar(&contextMaxTokens, "max-tokens", 0,
		"Token budget (0 = from config)")
	contextCmd.Flags().Float64Var(&contextScore, "score", 1.0,
		"Semantic score assigned to every entry symbol")
	contextCmd.Flags().BoolVar(&contextJSON, "json", false,
		"Output as JSON for scripting")
}

func runContext(cmd *cobra.Command, args []string) error {
	store, g, err := loadGraph(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	cfg := graph.GravityConfig{
		MaxTokens:        config.Global.Gravity.MaxTokens,
		DistanceDecay:    config.Global.Gravity.DistanceDecay,
		SemanticWeight:   config.Global.Gravity.SemanticWeight,
		ComplexityWeight: config.Global.Gravity.ComplexityWeight,
	}
	if contextMaxTokens > 0 {
		cfg.MaxTokens = contextMaxTokens
	}

	var entries []graph.EntryPoint
	for _, symbol := range args {
		id, ok := g.FindBySymbol(symbol)
		if !ok {
			// Entry symbols absent from the graph are skipped, same as
			// stale entry handles inside the traversal.
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: symbol %q not found, skipping\n", symbol)
			continue
		}
		entries = append(entries, graph.EntryPoint{ID: id, SemanticScore: contextScore})
	}

	accepted := g.ExpandContext(cmd.Context(), entries, cfg)

	type item struct {
		ID       string `json:"id"`
		FilePath string `json:"file_path"`
		Start    int    `json:"byte_start"`
		End      int    `json:"byte_end"`
	}
	items := make([]item, 0, len(accepted))
	for _, id := range accepted {
		if n, ok := g.GetNode(id); ok {
			items = append(items, item{ID: n.ID, FilePath: n.FilePath, Start: n.ByteStart, End: n.ByteEnd})
		}
	}

	if contextJSON {
		payload, _ := json.MarshalIndent(map[string]any{
			"max_tokens": cfg.MaxTokens,
			"nodes":      items,
			"count":      len(items),
		}, "", "  ")
		fmt.Println(string(payload))
		return nil
	}

	fmt.Printf("%d nodes selected within %d tokens\n", len(items), cfg.MaxTokens)
	for _, it := range items {
		fmt.Printf("  %s [%d:%d]\n", it.ID, it.Start, it.End)
	}
	return nil
}
