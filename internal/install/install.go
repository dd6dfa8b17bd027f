// Copyright (c) 2026 rhpak team
// rhpak - content-addressed ROM hack package pipeline
// This source code is licensed under the MIT license found in the LICENSE file.

// Package install turns a verified manifest plus its artifact tree into
// persisted rows, and removes them again by package UUID. Stores stay
// untouched until this final phase, so aborting any earlier stage needs
// no rollback. Callers must serialize concurrent operations against the
// same package UUID; different packages are safe in parallel.
package install

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rhpak/rhpak/internal/logging"
	"github.com/rhpak/rhpak/internal/model"
	"github.com/rhpak/rhpak/internal/store"
)

// Install upserts every row the manifest describes, reading artifact
// bytes from dir. Order matters: metadata, blob, resources, screenshots,
// and the registry row last — its presence marks a completed install.
// Any error surfaces unmodified and the remaining stores are left
// unwritten.
func Install(ctx context.Context, s store.Store, m model.Manifest, dir string) error {
	if err := m.ValidatePrepared(); err != nil {
		return err
	}

	if err := s.UpsertVersion(ctx, store.VersionRow{
		Title:   m.Game.Title,
		Version: m.Game.Version,
		Author:  m.Game.Author,
		PackID:  m.PackID,
	}); err != nil {
		return err
	}

	cipher, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(m.Attachment.StoragePath)))
	if err != nil {
		return &model.ValidationError{Field: m.Attachment.StoragePath, Reason: "patchblob missing from artifact tree"}
	}
	if err := s.PutBlob(ctx, m.Blob.Name, cipher, m.PackID); err != nil {
		return err
	}

	if err := installMedia(ctx, s, store.KindResource, m.Resources, dir); err != nil {
		return err
	}
	if err := installMedia(ctx, s, store.KindScreenshot, m.Screenshots, dir); err != nil {
		return err
	}

	if err := s.UpsertRegistry(ctx, store.RegistryRow{
		PackID:       m.PackID,
		Name:         m.Name,
		SkeletonFile: m.SkeletonFile,
		ResultSHA256: m.Result.Digests.SHA256,
		InstalledAt:  time.Now().UTC(),
	}); err != nil {
		return err
	}
	logging.Infof("install: %s (%s) installed", m.Name, m.PackID)
	return nil
}

func installMedia(ctx context.Context, s store.Store, kind store.MediaKind, entries []model.MediaEntry, dir string) error {
	for _, e := range entries {
		row := store.MediaRow{
			Name:          e.Name,
			URL:           e.URL,
			StoragePath:   e.StoragePath,
			CipherSHA256:  e.CipherSHA256,
			PackID:        e.PackID,
			AutoGenerated: e.AutoGenerated,
		}
		if e.FileBacked() {
			data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(e.StoragePath)))
			if err != nil {
				return &model.ValidationError{Field: e.StoragePath, Reason: fmt.Sprintf("%s missing from artifact tree", kind)}
			}
			row.Data = data
		}
		if err := s.UpsertMedia(ctx, kind, row); err != nil {
			return err
		}
	}
	return nil
}

// Removed reports how many rows each store gave up during an uninstall.
type Removed struct {
	Versions    int64
	Blobs       int64
	Resources   int64
	Screenshots int64
	Registry    int64
	PurgedFiles int
}

// Total sums every removed row.
func (r Removed) Total() int64 {
	return r.Versions + r.Blobs + r.Resources + r.Screenshots + r.Registry
}

// Uninstall deletes every row tagged with packID from every store, the
// registry row included. It needs nothing but the UUID — no manifest or
// archive. Deleting zero rows is success; the operation is safe to
// repeat. When purge is set, staged plaintext files under stageDir are
// removed too, but only those recorded as pipeline-auto-generated;
// author-supplied files are never touched.
func Uninstall(ctx context.Context, s store.Store, packID string, purge bool, stageDir string) (Removed, error) {
	var r Removed

	if purge && stageDir != "" {
		// Collect purge candidates before their rows disappear.
		for _, kind := range []store.MediaKind{store.KindResource, store.KindScreenshot} {
			rows, err := s.ListMediaByPack(ctx, kind, packID)
			if err != nil {
				return r, err
			}
			for _, row := range rows {
				if !row.AutoGenerated || row.StoragePath == "" {
					continue
				}
				abs := filepath.Join(stageDir, filepath.FromSlash(row.StoragePath))
				if err := os.Remove(abs); err == nil {
					r.PurgedFiles++
				} else if !errors.Is(err, os.ErrNotExist) {
					logging.Warnf("uninstall: could not purge %s: %v", abs, err)
				}
			}
		}
	}

	n, err := s.DeleteVersionsByPack(ctx, packID)
	if err != nil {
		return r, err
	}
	r.Versions = n

	n, err = s.ReleaseBlobsByPack(ctx, packID)
	if err != nil {
		return r, err
	}
	r.Blobs = n

	n, err = s.DeleteMediaByPack(ctx, store.KindResource, packID)
	if err != nil {
		return r, err
	}
	r.Resources = n

	n, err = s.DeleteMediaByPack(ctx, store.KindScreenshot, packID)
	if err != nil {
		return r, err
	}
	r.Screenshots = n

	n, err = s.DeleteRegistry(ctx, packID)
	if err != nil {
		return r, err
	}
	r.Registry = n

	logging.Infof("uninstall: %s removed %d rows", packID, r.Total())
	return r, nil
}
