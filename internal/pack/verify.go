// Copyright (c) 2026 rhpak team
// rhpak - content-addressed ROM hack package pipeline
// This source code is licensed under the MIT license found in the LICENSE file.

package pack

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rhpak/rhpak/internal/blob"
	"github.com/rhpak/rhpak/internal/digest"
	"github.com/rhpak/rhpak/internal/logging"
	"github.com/rhpak/rhpak/internal/model"
	"github.com/rhpak/rhpak/internal/patchtool"
	"github.com/rhpak/rhpak/internal/safety"
)

// VerifyOptions configures a verification pass over an extracted (or
// in-place staged) package tree.
type VerifyOptions struct {
	Filter *safety.Filter
	// Tool reapplies the patch to the base asset and checks the result
	// digests. A package is valid only if both the patch chain and the
	// applied-result chain match, so callers set Tool whenever a patch
	// tool is configured; leaving it nil (a machine without the base
	// asset) verifies the patch and blob chains only.
	Tool *patchtool.Config
}

// Verify recomputes every digest chain of the package rooted at dir and
// re-runs the safety filter over every buffer. It never touches
// persisted storage: verify-only mode is exactly this call against a
// disposable scratch area.
func Verify(ctx context.Context, m model.Manifest, dir string, opts VerifyOptions) error {
	if err := m.ValidatePrepared(); err != nil {
		return err
	}
	if opts.Filter == nil {
		opts.Filter = safety.New(nil)
	}

	// Patch bytes: safety first, then the full digest chain.
	patchBytes, err := readArtifact(dir, m.Patch.StoragePath)
	if err != nil {
		return err
	}
	if err := opts.Filter.Check(m.Patch.StoragePath, patchBytes); err != nil {
		return err
	}
	if err := digest.VerifyAgainst("patch", m.Patch.Digests, patchBytes); err != nil {
		return err
	}

	// Patchblob: decode is the strict inverse of encode and must land
	// exactly on the recorded plaintext digest and the patch bytes.
	cipher, err := readArtifact(dir, m.Attachment.StoragePath)
	if err != nil {
		return err
	}
	plain, err := blob.Decode(m.Blob, cipher)
	if err != nil {
		return err
	}
	if err := opts.Filter.Check(m.Blob.Name, plain); err != nil {
		return err
	}
	if got := digest.SHA256Hex(plain); got != m.Patch.Digests.SHA256 {
		return &model.IntegrityError{Field: "patchblob", Algorithm: "sha256", Want: m.Patch.Digests.SHA256, Got: got}
	}

	// Verification result: re-derive it through the tool and hold it
	// against the recorded chain.
	if opts.Tool != nil {
		result, err := opts.Tool.Apply(ctx, filepath.Join(dir, filepath.FromSlash(m.Patch.StoragePath)))
		if err != nil {
			return err
		}
		if err := digest.VerifyAgainst("result", m.Result.Digests, result); err != nil {
			return err
		}
	}

	// Attachments: decrypt and recompute both chains; every decrypted
	// buffer re-passes the filter so a package cannot smuggle content
	// past it by claiming pre-verified status.
	for _, entry := range append(append([]model.MediaEntry(nil), m.Resources...), m.Screenshots...) {
		if !entry.FileBacked() {
			continue
		}
		cipher, err := readArtifact(dir, entry.StoragePath)
		if err != nil {
			return err
		}
		plain, err := blob.Open(entry, cipher)
		if err != nil {
			return err
		}
		if err := opts.Filter.Check(entry.Name, plain); err != nil {
			return err
		}
	}

	logging.Debugf("pack: verified %s", m.Name)
	return nil
}

// VerifyArchive extracts the archive into a scratch directory, loads
// the manifest out of it, runs Verify, and discards the scratch area.
// It returns the verified manifest and the scratch path through
// fn, letting import mode hand the tree to the installer before
// cleanup; fn may be nil for verify-only.
func VerifyArchive(ctx context.Context, archivePath string, opts VerifyOptions, fn func(model.Manifest, string) error) (model.Manifest, error) {
	var m model.Manifest
	scratch, err := os.MkdirTemp("", "rhpak-verify-")
	if err != nil {
		return m, fmt.Errorf("failed to create scratch directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(scratch) }()

	if err := Extract(archivePath, scratch); err != nil {
		return m, err
	}
	m, err = findManifest(scratch)
	if err != nil {
		return m, err
	}
	if err := Verify(ctx, m, scratch, opts); err != nil {
		return m, err
	}
	if fn != nil {
		if err := fn(m, scratch); err != nil {
			return m, err
		}
	}
	return m, nil
}

func findManifest(dir string) (model.Manifest, error) {
	var m model.Manifest
	entries, err := os.ReadDir(dir)
	if err != nil {
		return m, fmt.Errorf("failed to read scratch directory: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		return model.LoadManifest(filepath.Join(dir, e.Name()))
	}
	return m, &model.ValidationError{Field: "archive", Reason: "no manifest found at archive root"}
}

func readArtifact(dir, rel string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(rel)))
	if err != nil {
		return nil, &model.ValidationError{Field: rel, Reason: "referenced artifact missing"}
	}
	return data, nil
}
