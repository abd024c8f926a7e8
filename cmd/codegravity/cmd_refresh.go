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
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/CodeGravity/cmd/codegravity/config"
	"github.com/AleutianAI/CodeGravity/services/pdg/refresh"
)

var (
	refreshWatch bool
	refreshJSON  bool

	refreshCmd = &cobra.Command{
		Use:   "refresh [root]",
		Short: "Index or incrementally refresh a project graph",
		Long: `Refresh scans the project for signature sidecars, compares content
hashes against the last indexed state, and applies only the difference:
deleted files are removed from the graph, changed files are re-parsed
and folded back in. The first run builds the graph from scratch.

With --watch, the command keeps running and refreshes automatically as
files change.

Examples:
  codegravity refresh .
  codegravity refresh --watch /path/to/project`,
		Args: cobra.MaximumNArgs(1),
		RunE: runRefresh,
	}
)

func init() {
	refreshCmd.Flags().BoolVar(&refreshWatch, "watch", false,
		"Keep running and refresh on file changes")
	refreshCmd.Flags().BoolVar(&refreshJSON, "json", false,
		"Output as JSON for scripting")
}

func runRefresh(cmd *cobra.Command, args []string) error {
	root := "."
	if len(args) == 1 {
		root = args[0]
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve project root: %w", err)
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	refresher := refresh.NewRefresher(flagProject, root, store, parsers(),
		refresh.WithParallelism(config.Global.Refresh.Parallelism),
	)

	inventory, err := scanInventory(root)
	if err != nil {
		return err
	}

	_, res, err := refresher.Refresh(cmd.Context(), inventory)
	if err != nil {
		return err
	}
	printRefreshResult(res)

	if !refreshWatch {
		return nil
	}
	return watchLoop(cmd.Context(), root, refresher)
}

// scanInventory walks the project tree and collects every file a
// configured parser supports.
func scanInventory(root string) ([]string, error) {
	ps := parsers()
	var inventory []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable subtree, keep walking
		}
		if d.IsDir() {
			base := filepath.Base(path)
			if base == ".git" || base == "node_modules" || base == "__pycache__" {
				return filepath.SkipDir
			}
			return nil
		}
		for _, p := range ps {
			if p.Supports(path) {
				inventory = append(inventory, path)
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan project tree: %w", err)
	}
	return inventory, nil
}

// watchLoop refreshes whenever the watcher reports changes, until the
// process is signalled.
func watchLoop(parent context.Context, root string, refresher *refresh.Refresher) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracker := refresh.NewDirtyTracker()
	opts := refresh.DefaultWatcherOptions()
	if ms := config.Global.Refresh.DebounceWindowMS; ms > 0 {
		opts.DebounceWindow = time.Duration(ms) * time.Millisecond
	}
	watcher, err := refresh.NewFileWatcher(root, func(changes []refresh.FileChange) {
		for _, change := range changes {
			tracker.MarkFromWatcher(change)
		}
	}, &opts)
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	defer watcher.Stop()
	if err := watcher.Start(ctx); err != nil {
		return fmt.Errorf("start file watcher: %w", err)
	}

	slog.Info("watching for changes", slog.String("root", root))
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if !tracker.HasDirty() {
				continue
			}
			changed, deleted := tracker.Snapshot()
			_, res, err := refresher.RefreshPaths(ctx, changed, deleted)
			if err != nil {
				slog.Warn("refresh cycle failed", slog.String("error", err.Error()))
				continue
			}
			tracker.Clear(changed)
			tracker.Clear(deleted)
			printRefreshResult(res)
		}
	}
}

func printRefreshResult(res *refresh.RefreshResult) {
	if refreshJSON {
		payload, _ := json.MarshalIndent(map[string]any{
			"cycle_id":       res.CycleID,
			"files_changed":  res.FilesChanged,
			"files_deleted":  res.FilesDeleted,
			"files_skipped":  res.FilesSkipped,
			"edges_relinked": res.EdgesRelinked,
			"nodes":          res.NodeCount,
			"edges":          res.EdgeCount,
			"duration_ms":    res.Duration.Milliseconds(),
		}, "", "  ")
		fmt.Println(string(payload))
		return
	}
	fmt.Printf("Refreshed project %q: %d changed, %d deleted, %d skipped, %d edges relinked (%d nodes, %d edges, %s)\n",
		flagProject, res.FilesChanged, res.FilesDeleted, res.FilesSkipped,
		res.EdgesRelinked, res.NodeCount, res.EdgeCount, res.Duration.Round(time.Millisecond))
}
