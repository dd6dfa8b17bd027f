// Copyright (c) 2026 rhpak team
// rhpak - content-addressed ROM hack package pipeline
// This source code is licensed under the MIT license found in the LICENSE file.

package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// LoadManifest reads and decodes a skeleton file. Unknown fields are
// rejected so a typo'd manifest fails loudly instead of silently
// dropping data.
func LoadManifest(path string) (Manifest, error) {
	var m Manifest
	data, err := os.ReadFile(path)
	if err != nil {
		return m, &ValidationError{Field: "skeleton_file", Reason: fmt.Sprintf("cannot read %s: %v", path, err)}
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&m); err != nil {
		return m, &ValidationError{Field: "skeleton_file", Reason: fmt.Sprintf("malformed manifest %s: %v", path, err)}
	}
	if m.SkeletonFile == "" {
		m.SkeletonFile = filepath.Base(path)
	}
	return m, nil
}

// SaveManifest encodes the manifest with stable two-space indentation,
// matching what the authoring tools emit.
func SaveManifest(m Manifest, path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	data = append(data, '\n')
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create manifest directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}
