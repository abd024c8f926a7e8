// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config holds the CLI's YAML configuration singleton.
package config

import (
	"os"
	"path/filepath"
)

// CodeGravityConfig is the top-level CLI configuration.
type CodeGravityConfig struct {
	// DataDir is where the embedded database lives.
	DataDir string `yaml:"data_dir"`

	Project   ProjectConfig   `yaml:"project"`
	Gravity   GravityConfig   `yaml:"gravity"`
	Refresh   RefreshConfig   `yaml:"refresh"`
	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ProjectConfig names the default project.
type ProjectConfig struct {
	// DefaultID is used when no --project flag is given.
	DefaultID string `yaml:"default_id"`
}

// GravityConfig mirrors the traversal tuning knobs.
type GravityConfig struct {
	MaxTokens        int     `yaml:"max_tokens"`
	DistanceDecay    float64 `yaml:"distance_decay"`
	SemanticWeight   float64 `yaml:"semantic_weight"`
	ComplexityWeight float64 `yaml:"complexity_weight"`
}

// RefreshConfig tunes refresh cycles.
type RefreshConfig struct {
	// Parallelism bounds concurrent parses during cold start.
	Parallelism int `yaml:"parallelism"`

	// DebounceWindowMS is the file watcher debounce in milliseconds.
	DebounceWindowMS int `yaml:"debounce_window_ms"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// Dir enables JSON file logging alongside stderr when set.
	Dir string `yaml:"dir,omitempty"`

	// JSON switches stderr output to JSON.
	JSON bool `yaml:"json,omitempty"`
}

// TelemetryConfig controls metric export.
type TelemetryConfig struct {
	// Enabled turns on the stdout metric exporter.
	Enabled bool `yaml:"enabled"`
}

// DefaultConfig returns the first-run configuration.
func DefaultConfig() CodeGravityConfig {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return CodeGravityConfig{
		DataDir: filepath.Join(home, ".codegravity", "data"),
		Project: ProjectConfig{DefaultID: "default"},
		Gravity: GravityConfig{
			MaxTokens:        2000,
			DistanceDecay:    2.0,
			SemanticWeight:   1.0,
			ComplexityWeight: 0.5,
		},
		Refresh: RefreshConfig{
			Parallelism:      8,
			DebounceWindowMS: 100,
		},
		Logging:   LoggingConfig{Level: "info"},
		Telemetry: TelemetryConfig{Enabled: false},
	}
}
