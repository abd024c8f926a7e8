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
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/CodeGravity/pkg/validation"
	"github.com/AleutianAI/CodeGravity/services/pdg/extract"
	"github.com/AleutianAI/CodeGravity/services/pdg/graph"
	"github.com/AleutianAI/CodeGravity/services/pdg/storage"
)

// defaultParallelism bounds concurrent parses during cold start.
const defaultParallelism = 8

// RefreshResult summarizes one refresh cycle.
type RefreshResult struct {
	// CycleID uniquely identifies this cycle in logs.
	CycleID string

	FilesChanged int
	FilesDeleted int
	// FilesSkipped counts changed files whose parse failed; their
	// prior graph state is untouched and they are not marked indexed.
	FilesSkipped int
	// EdgesRelinked counts import edges added by the post-pass when a
	// placeholder resolved to a real node.
	EdgesRelinked int

	NodeCount int
	EdgeCount int
	Duration  time.Duration
}

// Refresher orchestrates per-file add/remove of graph fragments driven
// by a freshness diff.
//
// Thread Safety:
//
//	Not safe for concurrent use with itself or with queries on the
//	same graph; callers hold an exclusive lock around refresh cycles.
type Refresher struct {
	projectID string
	root      string
	store     storage.Store
	parsers   []extract.Parser
	builder   *graph.Builder
	logger    *slog.Logger

	parallelism int
	readFile    func(string) ([]byte, error)
}

// Option configures a Refresher.
type Option func(*Refresher)

// WithLogger sets the structured logger. Defaults to slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Refresher) {
		r.logger = logger
	}
}

// WithParallelism bounds concurrent parses during cold start.
func WithParallelism(n int) Option {
	return func(r *Refresher) {
		if n > 0 {
			r.parallelism = n
		}
	}
}

// WithBuilder overrides the fragment builder.
func WithBuilder(b *graph.Builder) Option {
	return func(r *Refresher) {
		r.builder = b
	}
}

// WithFileReader overrides how file contents are read. For tests.
func WithFileReader(read func(string) ([]byte, error)) Option {
	return func(r *Refresher) {
		r.readFile = read
	}
}

// NewRefresher creates a Refresher for one project.
//
// Inputs:
//
//	projectID - Storage namespace for the project.
//	root - Project root directory; file keys are normalized relative
//	to it.
//	store - Persistence backend.
//	parsers - Per-language parsers, consulted in order.
func NewRefresher(projectID, root string, store storage.Store, parsers []extract.Parser, opts ...Option) *Refresher {
	r := &Refresher{
		projectID:   projectID,
		root:        root,
		store:       store,
		parsers:     parsers,
		builder:     graph.NewBuilder(),
		logger:      slog.Default(),
		parallelism: defaultParallelism,
		readFile:    os.ReadFile,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NormalizeKey converts a path to the project-relative, slash-separated
// spelling used as the canonical file key.
func (r *Refresher) NormalizeKey(path string) string {
	if r.root != "" && filepath.IsAbs(path) {
		if rel, err := filepath.Rel(r.root, path); err == nil && !strings.HasPrefix(rel, "..") {
			return filepath.ToSlash(rel)
		}
	}
	return filepath.ToSlash(path)
}

// keySpellings returns every spelling under which a file's nodes may
// have been stored: the normalized-relative key and the raw path.
func (r *Refresher) keySpellings(path string) []string {
	normalized := r.NormalizeKey(path)
	if normalized == filepath.ToSlash(path) {
		return []string{normalized}
	}
	return []string{normalized, filepath.ToSlash(path)}
}

func (r *Refresher) parserFor(path string) extract.Parser {
	for _, p := range r.parsers {
		if p.Supports(path) {
			return p
		}
	}
	return nil
}

// RefreshProject applies a freshness diff to a live graph.
//
// Description:
//
//	Deleted files are removed from the graph and their persisted rows
//	dropped best-effort; storage hiccups there are logged and
//	swallowed so a single bad row cannot abort the cycle. Changed
//	files are re-parsed; on success the file's old nodes are removed
//	under every key spelling before the fresh fragment merges in, so
//	no stale duplicates survive. A failed parse skips the file
//	entirely, leaving prior graph state and skipping the indexed-file
//	record. After the per-file work one re-link pass resolves
//	external import placeholders against the whole graph, and the
//	graph is persisted exactly once.
//
// Inputs:
//
//	ctx - Cancels between files and propagates to parsers.
//	g - The live graph, mutated in place.
//	diff - Changed and deleted files.
//
// Outputs:
//
//	*RefreshResult - Cycle counters.
//	error - Non-nil only for cancellation or the final persist.
func (r *Refresher) RefreshProject(ctx context.Context, g *graph.Graph, diff FreshnessDiff) (*RefreshResult, error) {
	start := time.Now()
	res := &RefreshResult{CycleID: uuid.NewString()}
	logger := r.logger.With(
		slog.String("project", r.projectID),
		slog.String("cycle", res.CycleID),
	)
	logger.Info("refresh cycle started",
		slog.Int("changed", len(diff.ChangedFiles)),
		slog.Int("deleted", len(diff.DeletedFiles)),
	)

	for _, file := range diff.DeletedFiles {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		key := r.NormalizeKey(file)
		for _, spelling := range r.keySpellings(file) {
			g.RemoveFile(spelling)
		}
		if err := r.store.DeleteFileData(ctx, r.projectID, key); err != nil {
			logger.Warn("delete file rows failed",
				slog.String("file", key), slog.String("error", err.Error()))
		}
		if err := r.store.RemoveIndexedFile(ctx, r.projectID, key); err != nil {
			logger.Warn("remove indexed-file record failed",
				slog.String("file", key), slog.String("error", err.Error()))
		}
		res.FilesDeleted++
	}

	for _, file := range diff.ChangedFiles {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		key := r.NormalizeKey(file)

		fx, hash, ok := r.parseFile(ctx, logger, file, key)
		if !ok {
			res.FilesSkipped++
			continue
		}

		frag, _, err := r.builder.BuildFile(ctx, fx)
		if err != nil {
			logger.Warn("fragment build failed",
				slog.String("file", key), slog.String("error", err.Error()))
			res.FilesSkipped++
			continue
		}

		for _, spelling := range r.keySpellings(file) {
			g.RemoveFile(spelling)
		}
		g.MergeFragment(frag)

		if err := r.store.UpdateIndexedFile(ctx, r.projectID, key, hash); err != nil {
			logger.Warn("indexed-file record update failed",
				slog.String("file", key), slog.String("error", err.Error()))
		}
		res.FilesChanged++
	}

	res.EdgesRelinked = RelinkExternalImports(g)

	if err := r.store.SaveGraph(ctx, r.projectID, g); err != nil {
		return nil, fmt.Errorf("persist refreshed graph: %w", err)
	}

	res.NodeCount = g.NodeCount()
	res.EdgeCount = g.EdgeCount()
	res.Duration = time.Since(start)
	logger.Info("refresh cycle finished",
		slog.Int("files_changed", res.FilesChanged),
		slog.Int("files_deleted", res.FilesDeleted),
		slog.Int("files_skipped", res.FilesSkipped),
		slog.Int("edges_relinked", res.EdgesRelinked),
		slog.Duration("duration", res.Duration),
	)
	return res, nil
}

// parseFile reads and parses one file. ok is false when the file must
// be skipped (invalid key, unreadable, unsupported, or parse failure).
// The normalized key becomes part of a storage key, so it is validated
// before anything is read or written under it.
func (r *Refresher) parseFile(ctx context.Context, logger *slog.Logger, file, key string) (*extract.FileExtraction, string, bool) {
	if err := validation.ValidateFileKey(key); err != nil {
		logger.Warn("invalid file key, skipping file",
			slog.String("file", key), slog.String("error", err.Error()))
		return nil, "", false
	}
	source, err := r.readFile(r.absPath(file))
	if err != nil {
		logger.Warn("read failed, skipping file",
			slog.String("file", key), slog.String("error", err.Error()))
		return nil, "", false
	}
	parser := r.parserFor(file)
	if parser == nil {
		logger.Debug("no parser for file", slog.String("file", key))
		return nil, "", false
	}
	fx, err := parser.Parse(ctx, key, source)
	if err != nil {
		logger.Warn("parse failed, skipping file",
			slog.String("file", key), slog.String("error", err.Error()))
		return nil, "", false
	}
	return fx, extract.HashBytes(source), true
}

func (r *Refresher) absPath(file string) string {
	if filepath.IsAbs(file) || r.root == "" {
		return file
	}
	return filepath.Join(r.root, filepath.FromSlash(file))
}

// Refresh loads the prior state, computes the freshness diff against
// the given file inventory, and runs one cycle.
//
// Description:
//
//	The cold path (no persisted graph) parses the whole inventory in
//	parallel; the warm path loads the prior graph and applies only
//	the diff. Either way the graph persists exactly once.
//
// Inputs:
//
//	ctx - Cancellation.
//	inventory - Every candidate source file in the project, absolute
//	or root-relative.
//
// Outputs:
//
//	*graph.Graph - The refreshed graph.
//	*RefreshResult - Cycle counters.
//	error - Load, cancellation, or persist failure.
func (r *Refresher) Refresh(ctx context.Context, inventory []string) (*graph.Graph, *RefreshResult, error) {
	exists, err := r.store.GraphExists(ctx, r.projectID)
	if err != nil {
		return nil, nil, fmt.Errorf("check for persisted graph: %w", err)
	}
	if !exists {
		return r.ColdStart(ctx, inventory)
	}

	g, err := r.store.LoadGraph(ctx, r.projectID)
	if err != nil {
		return nil, nil, fmt.Errorf("load persisted graph: %w", err)
	}

	indexed, err := r.store.IndexedFiles(ctx, r.projectID)
	if err != nil {
		return nil, nil, fmt.Errorf("load indexed files: %w", err)
	}

	current := make(map[string]string, len(inventory))
	for _, file := range inventory {
		if r.parserFor(file) == nil {
			continue
		}
		source, err := r.readFile(r.absPath(file))
		if err != nil {
			continue // surfaces later as a deletion if it was indexed
		}
		current[r.NormalizeKey(file)] = extract.HashBytes(source)
	}

	res, err := r.RefreshProject(ctx, g, ComputeDiff(indexed, current))
	if err != nil {
		return nil, nil, err
	}
	return g, res, nil
}

// RefreshPaths runs one cycle over an explicit set of changed and
// deleted paths, as reported by a file watcher, without rescanning the
// project tree.
//
// Description:
//
//	Loads the prior state and builds a targeted diff from the given
//	paths: changed paths hashing identically to their indexed record
//	are dropped, changed paths that can no longer be read but were
//	indexed become deletions, and deleted paths are applied only when
//	they were indexed. Duplicate spellings of the same key collapse,
//	deletions winning. Falls back to ColdStart over the changed paths
//	when no graph is persisted yet.
//
// Inputs:
//
//	ctx - Cancellation.
//	changed - Paths reported as created or written.
//	deleted - Paths reported as removed or renamed away.
//
// Outputs:
//
//	*graph.Graph - The refreshed graph.
//	*RefreshResult - Cycle counters.
//	error - Load, cancellation, or persist failure.
func (r *Refresher) RefreshPaths(ctx context.Context, changed, deleted []string) (*graph.Graph, *RefreshResult, error) {
	exists, err := r.store.GraphExists(ctx, r.projectID)
	if err != nil {
		return nil, nil, fmt.Errorf("check for persisted graph: %w", err)
	}
	if !exists {
		return r.ColdStart(ctx, changed)
	}

	g, err := r.store.LoadGraph(ctx, r.projectID)
	if err != nil {
		return nil, nil, fmt.Errorf("load persisted graph: %w", err)
	}
	indexed, err := r.store.IndexedFiles(ctx, r.projectID)
	if err != nil {
		return nil, nil, fmt.Errorf("load indexed files: %w", err)
	}

	var diff FreshnessDiff
	seen := make(map[string]bool)
	for _, file := range deleted {
		key := r.NormalizeKey(file)
		if seen[key] {
			continue
		}
		seen[key] = true
		if _, ok := indexed[key]; ok {
			diff.DeletedFiles = append(diff.DeletedFiles, file)
		}
	}
	for _, file := range changed {
		if r.parserFor(file) == nil {
			continue
		}
		key := r.NormalizeKey(file)
		if seen[key] {
			continue
		}
		seen[key] = true
		source, err := r.readFile(r.absPath(file))
		if err != nil {
			// The path vanished between the event and the cycle.
			if _, ok := indexed[key]; ok {
				diff.DeletedFiles = append(diff.DeletedFiles, file)
			}
			continue
		}
		if indexed[key] == extract.HashBytes(source) {
			continue
		}
		diff.ChangedFiles = append(diff.ChangedFiles, file)
	}
	sort.Strings(diff.ChangedFiles)
	sort.Strings(diff.DeletedFiles)

	res, err := r.RefreshProject(ctx, g, diff)
	if err != nil {
		return nil, nil, err
	}
	return g, res, nil
}

// ColdStart builds a project graph from scratch.
//
// Description:
//
//	Parses the whole inventory with bounded parallelism, merges the
//	fragments in sorted file order for determinism, runs the re-link
//	pass once, and saves once. Files that fail to parse are skipped
//	and not marked indexed, same as the warm path.
func (r *Refresher) ColdStart(ctx context.Context, inventory []string) (*graph.Graph, *RefreshResult, error) {
	start := time.Now()
	res := &RefreshResult{CycleID: uuid.NewString()}
	logger := r.logger.With(
		slog.String("project", r.projectID),
		slog.String("cycle", res.CycleID),
	)
	logger.Info("cold start", slog.Int("inventory", len(inventory)))

	type parsed struct {
		key  string
		fx   *extract.FileExtraction
		hash string
	}

	var (
		mu      sync.Mutex
		results = make(map[string]parsed)
		skipped int
	)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(r.parallelism)
	for _, file := range inventory {
		if r.parserFor(file) == nil {
			continue
		}
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			key := r.NormalizeKey(file)
			fx, hash, ok := r.parseFile(egCtx, logger, file, key)
			mu.Lock()
			defer mu.Unlock()
			if !ok {
				skipped++
				return nil
			}
			results[key] = parsed{key: key, fx: fx, hash: hash}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, nil, err
	}

	keys := make([]string, 0, len(results))
	for key := range results {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	g := graph.NewGraph()
	for _, key := range keys {
		p := results[key]
		frag, _, err := r.builder.BuildFile(ctx, p.fx)
		if err != nil {
			logger.Warn("fragment build failed",
				slog.String("file", key), slog.String("error", err.Error()))
			skipped++
			continue
		}
		g.MergeFragment(frag)
		if err := r.store.UpdateIndexedFile(ctx, r.projectID, key, p.hash); err != nil {
			logger.Warn("indexed-file record update failed",
				slog.String("file", key), slog.String("error", err.Error()))
		}
		res.FilesChanged++
	}

	res.EdgesRelinked = RelinkExternalImports(g)

	if err := r.store.SaveGraph(ctx, r.projectID, g); err != nil {
		return nil, nil, fmt.Errorf("persist graph: %w", err)
	}

	res.FilesSkipped = skipped
	res.NodeCount = g.NodeCount()
	res.EdgeCount = g.EdgeCount()
	res.Duration = time.Since(start)
	logger.Info("cold start finished",
		slog.Int("files_indexed", res.FilesChanged),
		slog.Int("files_skipped", res.FilesSkipped),
		slog.Int("nodes", res.NodeCount),
		slog.Int("edges", res.EdgeCount),
		slog.Duration("duration", res.Duration),
	)
	return g, res, nil
}

// RelinkExternalImports resolves external import placeholders against
// the whole graph.
//
// Description:
//
//	For every external placeholder node, looks for a real node the
//	import path now resolves to: a module anchor whose file path
//	equals the import path, or a symbol with that qualified name in
//	any file (sorted file order, first match wins). On a hit, each
//	import edge pointing at the placeholder gains a duplicate edge to
//	the resolved target. Existing edges are never removed, so
//	already-correct edges stay intact and the pass is safe to re-run.
//
// Outputs:
//
//	int - Number of edges added.
func RelinkExternalImports(g *graph.Graph) int {
	files := g.FilePaths()
	sort.Strings(files)

	relinked := 0
	var externals []graph.NodeID
	g.NodeIndices()(func(id graph.NodeID) bool {
		if n, ok := g.GetNode(id); ok && n.Language == graph.LanguageExternal {
			externals = append(externals, id)
		}
		return true
	})

	for _, extID := range externals {
		n, ok := g.GetNode(extID)
		if !ok {
			continue
		}
		importPath := n.Name

		target, found := g.FindBySymbol(graph.ModuleAnchorID(importPath))
		if !found {
			for _, file := range files {
				if id, ok := g.FindBySymbol(graph.SymbolID(file, importPath)); ok {
					target, found = id, true
					break
				}
			}
		}
		if !found || target == extID {
			continue
		}

		for _, anchor := range g.Predecessors(extID) {
			if anchor == target || g.HasEdge(anchor, target, graph.EdgeKindImport) {
				continue
			}
			if _, err := g.AddEdge(anchor, target, graph.Edge{Kind: graph.EdgeKindImport}); err == nil {
				relinked++
			}
		}
	}
	return relinked
}
