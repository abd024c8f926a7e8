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
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/CodeGravity/cmd/codegravity/config"
	"github.com/AleutianAI/CodeGravity/pkg/validation"
	"github.com/AleutianAI/CodeGravity/services/pdg/extract"
	"github.com/AleutianAI/CodeGravity/services/pdg/graph"
	badgerstore "github.com/AleutianAI/CodeGravity/services/pdg/storage/badger"
)

// --- Global Command Variables ---
var (
	flagProject string
	flagDataDir string

	rootCmd = &cobra.Command{
		Use:   "codegravity",
		Short: "Index codebases into a dependence graph and query impact and context",
		Long: `CodeGravity indexes multi-language codebases into a unified program
dependence graph. It answers two questions under resource constraints:
what does changing symbol X affect, and what minimal token-budgeted
slice of code is most relevant to a query.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Load(); err != nil {
				return err
			}
			if err := setupLogging(config.Global.Logging); err != nil {
				return err
			}
			if config.Global.Telemetry.Enabled {
				if err := setupTelemetry(); err != nil {
					slog.Warn("telemetry setup failed", slog.String("error", err.Error()))
				}
			}
			if flagProject == "" {
				flagProject = config.Global.Project.DefaultID
			}
			normalized, err := validation.SanitizeProjectID(flagProject)
			if err != nil {
				return err
			}
			flagProject = normalized
			if flagDataDir == "" {
				flagDataDir = config.Global.DataDir
			}
			return nil
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&flagProject, "project", "",
		"Project ID (default from config)")
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "",
		"Database directory (default from config)")

	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(impactCmd)
	rootCmd.AddCommand(contextCmd)
	rootCmd.AddCommand(mergeCmd)
	rootCmd.AddCommand(statsCmd)
}

// openStore opens the embedded database under the data directory.
func openStore() (*badgerstore.Store, error) {
	cfg := badgerstore.DefaultConfig()
	cfg.Path = filepath.Join(flagDataDir, "graph")
	cfg.Logger = slog.Default()
	return badgerstore.OpenStore(cfg)
}

// loadGraph opens the store and loads the project's persisted graph.
// The caller closes the returned store.
func loadGraph(cmd *cobra.Command) (*badgerstore.Store, *graph.Graph, error) {
	store, err := openStore()
	if err != nil {
		return nil, nil, err
	}
	g, err := store.LoadGraph(cmd.Context(), flagProject)
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("load graph for project %q (run 'codegravity refresh' first): %w", flagProject, err)
	}
	return store, g, nil
}

// parsers returns the configured extraction parsers.
func parsers() []extract.Parser {
	return []extract.Parser{extract.NewJSONParser()}
}
