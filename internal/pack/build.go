// Copyright (c) 2026 rhpak team
// rhpak - content-addressed ROM hack package pipeline
// This source code is licensed under the MIT license found in the LICENSE file.

// Package pack seals prepared packages into distributable .rhpak
// archives and verifies or imports them back. An archive is a solid
// zstd-compressed tar stream whose internal paths mirror the manifest's
// recorded relative paths verbatim, so extraction needs no path
// renegotiation.
package pack

import (
	"archive/tar"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/rhpak/rhpak/internal/logging"
	"github.com/rhpak/rhpak/internal/model"
)

// Extension of sealed package archives.
const Extension = ".rhpak"

// Build seals the manifest plus every staged artifact under stageDir
// into one archive at outPath. Building fails closed: any referenced
// artifact missing from disk aborts with a ValidationError naming it;
// nothing is ever silently omitted.
func Build(m model.Manifest, stageDir, outPath string) error {
	if err := m.ValidatePrepared(); err != nil {
		return err
	}
	entries := archiveEntries(m)
	for _, rel := range entries {
		if _, err := os.Stat(filepath.Join(stageDir, filepath.FromSlash(rel))); err != nil {
			return &model.ValidationError{Field: rel, Reason: "referenced artifact missing from stage directory"}
		}
	}

	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	defer func() { _ = out.Close() }()

	zw, err := zstd.NewWriter(out, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return fmt.Errorf("failed to initialize compressor: %w", err)
	}
	tw := tar.NewWriter(zw)

	manifestJSON, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	manifestJSON = append(manifestJSON, '\n')
	skeleton := m.SkeletonFile
	if skeleton == "" {
		skeleton = "skeleton.json"
	}
	if err := writeTarFile(tw, skeleton, manifestJSON); err != nil {
		return err
	}
	for _, rel := range entries {
		data, err := os.ReadFile(filepath.Join(stageDir, filepath.FromSlash(rel)))
		if err != nil {
			return &model.ValidationError{Field: rel, Reason: "referenced artifact missing from stage directory"}
		}
		if err := writeTarFile(tw, rel, data); err != nil {
			return err
		}
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("failed to finalize archive: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finalize compression: %w", err)
	}
	logging.Infof("pack: sealed %s (%d artifacts)", filepath.Base(outPath), len(entries))
	return nil
}

// archiveEntries lists every staged artifact path the manifest
// references, in archive order.
func archiveEntries(m model.Manifest) []string {
	entries := []string{m.Patch.StoragePath, m.Attachment.StoragePath}
	for _, r := range m.Resources {
		if r.FileBacked() {
			entries = append(entries, r.StoragePath)
		}
	}
	for _, s := range m.Screenshots {
		if s.FileBacked() {
			entries = append(entries, s.StoragePath)
		}
	}
	return entries
}

func writeTarFile(tw *tar.Writer, name string, data []byte) error {
	hdr := &tar.Header{
		Name: name,
		Mode: 0o644,
		Size: int64(len(data)),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("failed to write archive header for %s: %w", name, err)
	}
	if _, err := tw.Write(data); err != nil {
		return fmt.Errorf("failed to write archive entry %s: %w", name, err)
	}
	return nil
}

// Extract unpacks an archive into destDir. Entry paths are confined to
// the destination; absolute or parent-escaping names abort the
// extraction.
func Extract(archivePath, destDir string) error {
	in, err := os.Open(archivePath)
	if err != nil {
		return &model.ValidationError{Field: "archive", Reason: fmt.Sprintf("cannot open %s: %v", archivePath, err)}
	}
	defer func() { _ = in.Close() }()

	zr, err := zstd.NewReader(in)
	if err != nil {
		return &model.ValidationError{Field: "archive", Reason: "not a zstd stream"}
	}
	defer zr.Close()

	tr := tar.NewReader(zr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return &model.ValidationError{Field: "archive", Reason: fmt.Sprintf("corrupt archive: %v", err)}
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		clean := filepath.Clean(filepath.FromSlash(hdr.Name))
		if filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
			return &model.ValidationError{Field: "archive", Reason: fmt.Sprintf("entry %q escapes the extraction root", hdr.Name)}
		}
		abs := filepath.Join(destDir, clean)
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			return fmt.Errorf("failed to create extraction directory: %w", err)
		}
		f, err := os.Create(abs)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", abs, err)
		}
		if _, err := io.Copy(f, tr); err != nil {
			_ = f.Close()
			return fmt.Errorf("failed to extract %s: %w", hdr.Name, err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("failed to finalize %s: %w", hdr.Name, err)
		}
	}
}
