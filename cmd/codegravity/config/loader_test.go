// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"
)

// TestCreateDefault verifies default config creation.
func TestCreateDefault(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, ".codegravity", "codegravity.yaml")

	if err := createDefault(configPath); err != nil {
		t.Fatalf("createDefault() failed: %v", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Fatal("config file was not created")
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("failed to read config file: %v", err)
	}

	var cfg CodeGravityConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("failed to parse config: %v", err)
	}

	// Verify some defaults
	if cfg.Project.DefaultID != "default" {
		t.Errorf("Project.DefaultID = %q, want %q", cfg.Project.DefaultID, "default")
	}
	if cfg.Gravity.MaxTokens != 2000 {
		t.Errorf("Gravity.MaxTokens = %d, want 2000", cfg.Gravity.MaxTokens)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "info")
	}
}

// TestCreateDefault_DirectoryCreation verifies directory is created.
func TestCreateDefault_DirectoryCreation(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "deep", "nested", "path", "codegravity.yaml")

	if err := createDefault(configPath); err != nil {
		t.Fatalf("createDefault() failed with nested path: %v", err)
	}

	dirPath := filepath.Dir(configPath)
	if _, err := os.Stat(dirPath); os.IsNotExist(err) {
		t.Fatal("nested directories were not created")
	}
}

// TestLoadInternal_FirstRun verifies the config is created with defaults
// when no file exists yet.
func TestLoadInternal_FirstRun(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	if err := loadInternal(); err != nil {
		t.Fatalf("loadInternal() failed: %v", err)
	}

	home, _ := os.UserHomeDir()
	configPath := filepath.Join(home, ".codegravity", "codegravity.yaml")
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Fatal("first run did not create the config file")
	}

	want := DefaultConfig()
	if Global.Project.DefaultID != want.Project.DefaultID {
		t.Errorf("Project.DefaultID = %q, want %q", Global.Project.DefaultID, want.Project.DefaultID)
	}
	if Global.Refresh.Parallelism != want.Refresh.Parallelism {
		t.Errorf("Refresh.Parallelism = %d, want %d", Global.Refresh.Parallelism, want.Refresh.Parallelism)
	}
}

// TestLoadInternal_PartialFileKeepsDefaults verifies keys missing from the
// YAML file fall back to their defaults.
func TestLoadInternal_PartialFileKeepsDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	configPath := filepath.Join(home, ".codegravity", "codegravity.yaml")
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}
	partial := "project:\n  default_id: myproj\n"
	if err := os.WriteFile(configPath, []byte(partial), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	if err := loadInternal(); err != nil {
		t.Fatalf("loadInternal() failed: %v", err)
	}

	if Global.Project.DefaultID != "myproj" {
		t.Errorf("Project.DefaultID = %q, want %q", Global.Project.DefaultID, "myproj")
	}
	// Untouched sections keep their defaults.
	if Global.Gravity.DistanceDecay != 2.0 {
		t.Errorf("Gravity.DistanceDecay = %v, want 2.0", Global.Gravity.DistanceDecay)
	}
	if Global.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want %q", Global.Logging.Level, "info")
	}
}

// TestLoadInternal_EnvOverrides verifies CODEGRAVITY_* variables win over
// the file contents.
func TestLoadInternal_EnvOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("CODEGRAVITY_DATA_DIR", "/tmp/cg-data")
	t.Setenv("CODEGRAVITY_PROJECT", "envproj")
	t.Setenv("CODEGRAVITY_LOG_LEVEL", "debug")

	if err := loadInternal(); err != nil {
		t.Fatalf("loadInternal() failed: %v", err)
	}

	if Global.DataDir != "/tmp/cg-data" {
		t.Errorf("DataDir = %q, want %q", Global.DataDir, "/tmp/cg-data")
	}
	if Global.Project.DefaultID != "envproj" {
		t.Errorf("Project.DefaultID = %q, want %q", Global.Project.DefaultID, "envproj")
	}
	if Global.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", Global.Logging.Level, "debug")
	}
}
