// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package extract

import (
	"context"
	"testing"
)

func TestHashBytes(t *testing.T) {
	empty := HashBytes(nil)
	if empty != "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855" {
		t.Errorf("unexpected digest for empty content: %s", empty)
	}
	if HashBytes([]byte("a")) == HashBytes([]byte("b")) {
		t.Error("distinct content must hash differently")
	}
	if HashBytes([]byte("same")) != HashBytes([]byte("same")) {
		t.Error("hashing must be deterministic")
	}
}

func TestJSONParser_Supports(t *testing.T) {
	p := NewJSONParser()
	if !p.Supports("pkg/mod.py.sig.json") {
		t.Error("sidecar path should be supported")
	}
	if p.Supports("pkg/mod.py") {
		t.Error("raw source path should not be supported")
	}
	if p.Supports("notes.json") {
		t.Error("plain json should not be supported")
	}
}

func TestJSONParser_Parse(t *testing.T) {
	sidecar := []byte(`{
		"file_path": "somewhere/else.py",
		"language": "python",
		"signatures": [
			{
				"name": "run",
				"qualified_name": "Job::run",
				"is_method": true,
				"calls": ["validate", "Job::save"],
				"parameters": [{"name": "self"}, {"name": "retries", "type_annotation": "int", "default_value": "3"}],
				"byte_start": 100,
				"byte_end": 480
			}
		],
		"imports": [{"path": "os"}, {"path": "numpy", "alias": "np"}]
	}`)

	p := NewJSONParser()
	fx, err := p.Parse(context.Background(), "mod.py.sig.json", sidecar)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	// The argument path wins over the embedded one.
	if fx.FilePath != "mod.py.sig.json" {
		t.Errorf("file path not overridden: %s", fx.FilePath)
	}
	if fx.Language != "python" {
		t.Errorf("language = %s", fx.Language)
	}
	if len(fx.Signatures) != 1 {
		t.Fatalf("expected 1 signature, got %d", len(fx.Signatures))
	}
	sig := fx.Signatures[0]
	if sig.QualifiedName != "Job::run" || !sig.IsMethod {
		t.Errorf("unexpected signature: %+v", sig)
	}
	if len(sig.Calls) != 2 || sig.Calls[1] != "Job::save" {
		t.Errorf("unexpected calls: %v", sig.Calls)
	}
	if len(sig.Parameters) != 2 || sig.Parameters[1].TypeAnnotation != "int" {
		t.Errorf("unexpected parameters: %+v", sig.Parameters)
	}
	if sig.ByteStart != 100 || sig.ByteEnd != 480 {
		t.Errorf("unexpected byte span: %d-%d", sig.ByteStart, sig.ByteEnd)
	}
	if len(fx.Imports) != 2 || fx.Imports[1].Alias != "np" {
		t.Errorf("unexpected imports: %+v", fx.Imports)
	}
	if string(fx.Source) != string(sidecar) {
		t.Error("source bytes should be retained")
	}
}

func TestJSONParser_ParseRejectsMalformed(t *testing.T) {
	p := NewJSONParser()
	if _, err := p.Parse(context.Background(), "bad.sig.json", []byte("{not json")); err == nil {
		t.Fatal("expected decode error")
	}
}
