// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/CodeGravity/services/pdg/graph"
	"github.com/AleutianAI/CodeGravity/services/pdg/storage"
)

// Key layout, all values JSON:
//
//	pdg:<project>:meta              existence marker
//	pdg:<project>:file:<file_key>   []graph.Node for one file
//	pdg:<project>:edges             []storage.EdgeRecord
//	pdg:<project>:xproj             graph.MergerSnapshot
//	idx:<project>:<file_key>        content hash (raw string)
const (
	graphPrefix = "pdg:"
	indexPrefix = "idx:"
)

// Store implements storage.Store on BadgerDB.
type Store struct {
	db *DB
}

var _ storage.Store = (*Store)(nil)

// NewStore wraps an open database as a graph store.
func NewStore(db *DB) *Store {
	return &Store{db: db}
}

// OpenStore opens a database with the given config and wraps it.
func OpenStore(cfg Config) (*Store, error) {
	db, err := OpenDB(cfg)
	if err != nil {
		return nil, err
	}
	return NewStore(db), nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func metaKey(projectID string) []byte {
	return []byte(graphPrefix + projectID + ":meta")
}

func fileKeyPrefix(projectID string) []byte {
	return []byte(graphPrefix + projectID + ":file:")
}

func fileNodesKey(projectID, fileKey string) []byte {
	return []byte(graphPrefix + projectID + ":file:" + fileKey)
}

func edgesKey(projectID string) []byte {
	return []byte(graphPrefix + projectID + ":edges")
}

func xprojKey(projectID string) []byte {
	return []byte(graphPrefix + projectID + ":xproj")
}

func indexEntryKey(projectID, fileKey string) []byte {
	return []byte(indexPrefix + projectID + ":" + fileKey)
}

// SaveGraph persists the full graph, replacing any prior snapshot.
//
// Description:
//
//	Drops every existing per-file row for the project, then writes one
//	row of nodes per file plus a single edges blob. Edge endpoints are
//	stored as node ID strings and re-resolved on load.
func (s *Store) SaveGraph(ctx context.Context, projectID string, g *graph.Graph) error {
	byFile := make(map[string][]graph.Node)
	g.NodeIndices()(func(id graph.NodeID) bool {
		n, _ := g.GetNode(id)
		byFile[n.FilePath] = append(byFile[n.FilePath], n)
		return true
	})

	edges := make([]storage.EdgeRecord, 0, g.EdgeCount())
	g.EdgeIndices()(func(eid graph.EdgeID) bool {
		from, to, _ := g.EdgeEndpoints(eid)
		fromNode, _ := g.GetNode(from)
		toNode, _ := g.GetNode(to)
		e, _ := g.GetEdge(eid)
		edges = append(edges, storage.EdgeRecord{From: fromNode.ID, To: toNode.ID, Edge: e})
		return true
	})

	return s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		if err := deletePrefix(txn, fileKeyPrefix(projectID)); err != nil {
			return fmt.Errorf("clear file rows: %w", err)
		}

		for file, nodes := range byFile {
			payload, err := json.Marshal(nodes)
			if err != nil {
				return fmt.Errorf("marshal nodes for %s: %w", file, err)
			}
			if err := txn.Set(fileNodesKey(projectID, file), payload); err != nil {
				return fmt.Errorf("write nodes for %s: %w", file, err)
			}
		}

		payload, err := json.Marshal(edges)
		if err != nil {
			return fmt.Errorf("marshal edges: %w", err)
		}
		if err := txn.Set(edgesKey(projectID), payload); err != nil {
			return fmt.Errorf("write edges: %w", err)
		}

		return txn.Set(metaKey(projectID), []byte("1"))
	})
}

// LoadGraph reconstructs the persisted graph for a project.
//
// Description:
//
//	Files load in sorted key order and nodes within a file in saved
//	order, so a load after a save reproduces the same symbol-index
//	overwrite outcomes. Edges whose endpoints no longer resolve are
//	dropped silently.
func (s *Store) LoadGraph(ctx context.Context, projectID string) (*graph.Graph, error) {
	var (
		fileKeys []string
		nodeRows = make(map[string][]graph.Node)
		edges    []storage.EdgeRecord
		found    bool
	)

	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		if _, err := txn.Get(metaKey(projectID)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return storage.ErrNotFound
			}
			return err
		}
		found = true

		prefix := fileKeyPrefix(projectID)
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix, PrefetchValues: true})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			fileKey := strings.TrimPrefix(string(item.Key()), string(prefix))
			var nodes []graph.Node
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &nodes)
			}); err != nil {
				return fmt.Errorf("decode nodes for %s: %w", fileKey, err)
			}
			fileKeys = append(fileKeys, fileKey)
			nodeRows[fileKey] = nodes
		}

		item, err := txn.Get(edgesKey(projectID))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil // nodes-only snapshot
			}
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &edges)
		})
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, storage.ErrNotFound
	}

	sort.Strings(fileKeys)
	g := graph.NewGraph()
	for _, fileKey := range fileKeys {
		for _, n := range nodeRows[fileKey] {
			g.AddNode(n)
		}
	}
	for _, rec := range edges {
		from, ok := g.FindBySymbol(rec.From)
		if !ok {
			continue
		}
		to, ok := g.FindBySymbol(rec.To)
		if !ok {
			continue
		}
		if _, err := g.AddEdge(from, to, rec.Edge); err != nil {
			return nil, fmt.Errorf("restore edge %s -> %s: %w", rec.From, rec.To, err)
		}
	}
	return g, nil
}

// GraphExists reports whether a saved graph exists for the project.
func (s *Store) GraphExists(ctx context.Context, projectID string) (bool, error) {
	exists := false
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		_, err := txn.Get(metaKey(projectID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		exists = true
		return nil
	})
	return exists, err
}

// DeleteFileData drops the persisted node row for one file.
func (s *Store) DeleteFileData(ctx context.Context, projectID, fileKey string) error {
	return s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		return txn.Delete(fileNodesKey(projectID, fileKey))
	})
}

// IndexedFiles returns the file-key to content-hash map for a project.
func (s *Store) IndexedFiles(ctx context.Context, projectID string) (map[string]string, error) {
	out := make(map[string]string)
	prefix := []byte(indexPrefix + projectID + ":")
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix, PrefetchValues: true})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			fileKey := strings.TrimPrefix(string(item.Key()), string(prefix))
			if err := item.Value(func(val []byte) error {
				out[fileKey] = string(val)
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateIndexedFile records a file's content hash.
func (s *Store) UpdateIndexedFile(ctx context.Context, projectID, fileKey, contentHash string) error {
	return s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		return txn.Set(indexEntryKey(projectID, fileKey), []byte(contentHash))
	})
}

// RemoveIndexedFile drops a file's hash record.
func (s *Store) RemoveIndexedFile(ctx context.Context, projectID, fileKey string) error {
	return s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		return txn.Delete(indexEntryKey(projectID, fileKey))
	})
}

// SaveCrossProject persists the merger side tables for a project.
func (s *Store) SaveCrossProject(ctx context.Context, projectID string, snap *graph.MergerSnapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal cross-project snapshot: %w", err)
	}
	return s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		return txn.Set(xprojKey(projectID), payload)
	})
}

// LoadCrossProject returns the persisted merger side tables.
func (s *Store) LoadCrossProject(ctx context.Context, projectID string) (*graph.MergerSnapshot, error) {
	var snap graph.MergerSnapshot
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(xprojKey(projectID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return storage.ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &snap)
		})
	})
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// deletePrefix removes every key under a prefix within the transaction.
func deletePrefix(txn *badger.Txn, prefix []byte) error {
	it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
	defer it.Close()

	var keys [][]byte
	for it.Rewind(); it.Valid(); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	for _, key := range keys {
		if err := txn.Delete(key); err != nil {
			return err
		}
	}
	return nil
}
