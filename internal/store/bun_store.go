// Copyright (c) 2026 rhpak team
// rhpak - content-addressed ROM hack package pipeline
// This source code is licensed under the MIT license found in the LICENSE file.

package store

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/rhpak/rhpak/internal/model"
)

// BunStore implements Store for all three SQL backends through one
// long-lived *bun.DB. Every upsert runs inside a transaction: the
// ownership check and the write either both happen or neither does.
type BunStore struct {
	db *bun.DB
}

// DB exposes the underlying bun handle for tests.
func (s *BunStore) DB() *bun.DB { return s.db }

// Close releases the database handle.
func (s *BunStore) Close() error { return s.db.Close() }

// --- version metadata store ---

func (s *BunStore) UpsertVersion(ctx context.Context, row VersionRow) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var existing versionModel
		err := tx.NewSelect().Model(&existing).
			Where("title = ?", row.Title).
			Where("version = ?", row.Version).
			Limit(1).Scan(ctx)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			_, err := tx.NewInsert().Model(&versionModel{
				Title:   row.Title,
				Version: row.Version,
				Author:  row.Author,
				PackID:  row.PackID,
			}).Exec(ctx)
			return MapDBError(err)
		case err != nil:
			return MapDBError(err)
		case existing.PackID != row.PackID:
			return &model.OwnershipConflict{Store: "version", Key: row.Title + "/" + row.Version, Owner: existing.PackID, Requested: row.PackID}
		default:
			// Idempotent upsert by the owning package.
			_, err := tx.NewUpdate().Model(&versionModel{}).
				Set("author = ?", row.Author).
				Where("id = ?", existing.ID).
				Exec(ctx)
			return MapDBError(err)
		}
	})
}

func (s *BunStore) GetVersion(ctx context.Context, title, version string) (*VersionRow, error) {
	var m versionModel
	err := s.db.NewSelect().Model(&m).
		Where("title = ?", title).
		Where("version = ?", version).
		Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, MapDBError(err)
	}
	return &VersionRow{Title: m.Title, Version: m.Version, Author: m.Author, PackID: m.PackID}, nil
}

func (s *BunStore) DeleteVersionsByPack(ctx context.Context, packID string) (int64, error) {
	res, err := s.db.NewDelete().Model((*versionModel)(nil)).
		Where("pack_id = ?", packID).Exec(ctx)
	if err != nil {
		return 0, MapDBError(err)
	}
	return res.RowsAffected()
}

// --- patchblob attachment store ---

func (s *BunStore) PutBlob(ctx context.Context, name string, data []byte, packID string) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var existing blobModel
		err := tx.NewSelect().Model(&existing).Where("name = ?", name).Limit(1).Scan(ctx)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			if _, err := tx.NewInsert().Model(&blobModel{Name: name, Data: data, Size: int64(len(data))}).Exec(ctx); err != nil {
				return MapDBError(err)
			}
		case err != nil:
			return MapDBError(err)
		case !bytes.Equal(existing.Data, data):
			// Same content-derived name, different ciphertext: only the
			// sole owner may replace the bytes (a re-prepared blob picks
			// up a fresh nonce). Any other owner would be clobbered.
			owners, err := s.blobOwners(ctx, tx, name)
			if err != nil {
				return err
			}
			for _, o := range owners {
				if o != packID {
					return &model.OwnershipConflict{Store: "attachment", Key: name, Owner: o, Requested: packID}
				}
			}
			if _, err := tx.NewUpdate().Model(&blobModel{}).
				Set("data = ?", data).
				Set("size = ?", int64(len(data))).
				Where("name = ?", name).
				Exec(ctx); err != nil {
				return MapDBError(err)
			}
		}

		// Record ownership; identical bytes from a second package share
		// the blob through an additional owner row.
		exists, err := tx.NewSelect().Model((*blobOwnerModel)(nil)).
			Where("name = ?", name).
			Where("pack_id = ?", packID).
			Exists(ctx)
		if err != nil {
			return MapDBError(err)
		}
		if !exists {
			if _, err := tx.NewInsert().Model(&blobOwnerModel{Name: name, PackID: packID}).Exec(ctx); err != nil {
				return MapDBError(err)
			}
		}
		return nil
	})
}

func (s *BunStore) blobOwners(ctx context.Context, tx bun.Tx, name string) ([]string, error) {
	var owners []blobOwnerModel
	if err := tx.NewSelect().Model(&owners).Where("name = ?", name).Scan(ctx); err != nil {
		return nil, MapDBError(err)
	}
	out := make([]string, 0, len(owners))
	for _, o := range owners {
		out = append(out, o.PackID)
	}
	return out, nil
}

func (s *BunStore) GetBlob(ctx context.Context, name string) ([]byte, error) {
	var m blobModel
	err := s.db.NewSelect().Model(&m).Where("name = ?", name).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, MapDBError(err)
	}
	return m.Data, nil
}

func (s *BunStore) ReleaseBlobsByPack(ctx context.Context, packID string) (int64, error) {
	var released int64
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var owned []blobOwnerModel
		if err := tx.NewSelect().Model(&owned).Where("pack_id = ?", packID).Scan(ctx); err != nil {
			return MapDBError(err)
		}
		res, err := tx.NewDelete().Model((*blobOwnerModel)(nil)).
			Where("pack_id = ?", packID).Exec(ctx)
		if err != nil {
			return MapDBError(err)
		}
		released, _ = res.RowsAffected()

		// Drop blob bytes whose last owner is gone.
		for _, o := range owned {
			remaining, err := tx.NewSelect().Model((*blobOwnerModel)(nil)).
				Where("name = ?", o.Name).Count(ctx)
			if err != nil {
				return MapDBError(err)
			}
			if remaining == 0 {
				if _, err := tx.NewDelete().Model((*blobModel)(nil)).
					Where("name = ?", o.Name).Exec(ctx); err != nil {
					return MapDBError(err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return released, nil
}

// --- resource / screenshot stores ---

func (s *BunStore) UpsertMedia(ctx context.Context, kind MediaKind, row MediaRow) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		switch kind {
		case KindResource:
			return upsertResource(ctx, tx, row)
		case KindScreenshot:
			return upsertScreenshot(ctx, tx, row)
		}
		return fmt.Errorf("unknown media kind %q", kind)
	})
}

func upsertResource(ctx context.Context, tx bun.Tx, row MediaRow) error {
	var existing resourceModel
	err := tx.NewSelect().Model(&existing).Where("name = ?", row.Name).Limit(1).Scan(ctx)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err := tx.NewInsert().Model(&resourceModel{
			Name:          row.Name,
			URL:           row.URL,
			StoragePath:   row.StoragePath,
			Data:          row.Data,
			CipherSHA256:  row.CipherSHA256,
			PackID:        row.PackID,
			AutoGenerated: legacyBool(row.AutoGenerated),
		}).Exec(ctx)
		return MapDBError(err)
	case err != nil:
		return MapDBError(err)
	case existing.PackID != row.PackID:
		return &model.OwnershipConflict{Store: "resource", Key: row.Name, Owner: existing.PackID, Requested: row.PackID}
	default:
		_, err := tx.NewUpdate().Model(&resourceModel{}).
			Set("url = ?", row.URL).
			Set("storage_path = ?", row.StoragePath).
			Set("data = ?", row.Data).
			Set("cipher_sha256 = ?", row.CipherSHA256).
			Set("auto_generated = ?", legacyBool(row.AutoGenerated)).
			Where("id = ?", existing.ID).
			Exec(ctx)
		return MapDBError(err)
	}
}

func upsertScreenshot(ctx context.Context, tx bun.Tx, row MediaRow) error {
	var existing screenshotModel
	err := tx.NewSelect().Model(&existing).Where("name = ?", row.Name).Limit(1).Scan(ctx)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err := tx.NewInsert().Model(&screenshotModel{
			Name:          row.Name,
			URL:           row.URL,
			StoragePath:   row.StoragePath,
			Data:          row.Data,
			CipherSHA256:  row.CipherSHA256,
			PackID:        row.PackID,
			AutoGenerated: legacyBool(row.AutoGenerated),
		}).Exec(ctx)
		return MapDBError(err)
	case err != nil:
		return MapDBError(err)
	case existing.PackID != row.PackID:
		return &model.OwnershipConflict{Store: "screenshot", Key: row.Name, Owner: existing.PackID, Requested: row.PackID}
	default:
		_, err := tx.NewUpdate().Model(&screenshotModel{}).
			Set("url = ?", row.URL).
			Set("storage_path = ?", row.StoragePath).
			Set("data = ?", row.Data).
			Set("cipher_sha256 = ?", row.CipherSHA256).
			Set("auto_generated = ?", legacyBool(row.AutoGenerated)).
			Where("id = ?", existing.ID).
			Exec(ctx)
		return MapDBError(err)
	}
}

func (s *BunStore) GetMedia(ctx context.Context, kind MediaKind, name string) (*MediaRow, error) {
	switch kind {
	case KindResource:
		var m resourceModel
		err := s.db.NewSelect().Model(&m).Where("name = ?", name).Limit(1).Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, MapDBError(err)
		}
		return resourceToRow(m), nil
	case KindScreenshot:
		var m screenshotModel
		err := s.db.NewSelect().Model(&m).Where("name = ?", name).Limit(1).Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, MapDBError(err)
		}
		return screenshotToRow(m), nil
	}
	return nil, fmt.Errorf("unknown media kind %q", kind)
}

func (s *BunStore) ListMediaByPack(ctx context.Context, kind MediaKind, packID string) ([]MediaRow, error) {
	var rows []MediaRow
	switch kind {
	case KindResource:
		var ms []resourceModel
		if err := s.db.NewSelect().Model(&ms).Where("pack_id = ?", packID).Order("id ASC").Scan(ctx); err != nil {
			return nil, MapDBError(err)
		}
		for _, m := range ms {
			rows = append(rows, *resourceToRow(m))
		}
	case KindScreenshot:
		var ms []screenshotModel
		if err := s.db.NewSelect().Model(&ms).Where("pack_id = ?", packID).Order("id ASC").Scan(ctx); err != nil {
			return nil, MapDBError(err)
		}
		for _, m := range ms {
			rows = append(rows, *screenshotToRow(m))
		}
	default:
		return nil, fmt.Errorf("unknown media kind %q", kind)
	}
	return rows, nil
}

func (s *BunStore) DeleteMediaByPack(ctx context.Context, kind MediaKind, packID string) (int64, error) {
	m, _, err := mediaTable(kind)
	if err != nil {
		return 0, err
	}
	res, err := s.db.NewDelete().Model(m).Where("pack_id = ?", packID).Exec(ctx)
	if err != nil {
		return 0, MapDBError(err)
	}
	return res.RowsAffected()
}

func resourceToRow(m resourceModel) *MediaRow {
	return &MediaRow{
		Name:          m.Name,
		URL:           m.URL,
		StoragePath:   m.StoragePath,
		Data:          m.Data,
		CipherSHA256:  m.CipherSHA256,
		PackID:        m.PackID,
		AutoGenerated: fromLegacyBool(m.AutoGenerated),
	}
}

func screenshotToRow(m screenshotModel) *MediaRow {
	return &MediaRow{
		Name:          m.Name,
		URL:           m.URL,
		StoragePath:   m.StoragePath,
		Data:          m.Data,
		CipherSHA256:  m.CipherSHA256,
		PackID:        m.PackID,
		AutoGenerated: fromLegacyBool(m.AutoGenerated),
	}
}

// --- package registry ---

func (s *BunStore) UpsertRegistry(ctx context.Context, row RegistryRow) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var existing registryModel
		err := tx.NewSelect().Model(&existing).Where("pack_id = ?", row.PackID).Limit(1).Scan(ctx)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			_, err := tx.NewInsert().Model(&registryModel{
				PackID:       row.PackID,
				Name:         row.Name,
				SkeletonFile: row.SkeletonFile,
				ResultSHA256: row.ResultSHA256,
				InstalledAt:  row.InstalledAt,
			}).Exec(ctx)
			return MapDBError(err)
		case err != nil:
			return MapDBError(err)
		default:
			_, err := tx.NewUpdate().Model(&registryModel{}).
				Set("name = ?", row.Name).
				Set("skeleton_file = ?", row.SkeletonFile).
				Set("result_sha256 = ?", row.ResultSHA256).
				Set("installed_at = ?", row.InstalledAt).
				Where("pack_id = ?", row.PackID).
				Exec(ctx)
			return MapDBError(err)
		}
	})
}

func (s *BunStore) GetRegistry(ctx context.Context, packID string) (*RegistryRow, error) {
	var m registryModel
	err := s.db.NewSelect().Model(&m).Where("pack_id = ?", packID).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, MapDBError(err)
	}
	return &RegistryRow{
		PackID:       m.PackID,
		Name:         m.Name,
		SkeletonFile: m.SkeletonFile,
		ResultSHA256: m.ResultSHA256,
		InstalledAt:  m.InstalledAt,
	}, nil
}

func (s *BunStore) ListRegistry(ctx context.Context) ([]RegistryRow, error) {
	var ms []registryModel
	if err := s.db.NewSelect().Model(&ms).Order("installed_at ASC").Scan(ctx); err != nil {
		return nil, MapDBError(err)
	}
	rows := make([]RegistryRow, 0, len(ms))
	for _, m := range ms {
		rows = append(rows, RegistryRow{
			PackID:       m.PackID,
			Name:         m.Name,
			SkeletonFile: m.SkeletonFile,
			ResultSHA256: m.ResultSHA256,
			InstalledAt:  m.InstalledAt,
		})
	}
	return rows, nil
}

func (s *BunStore) DeleteRegistry(ctx context.Context, packID string) (int64, error) {
	res, err := s.db.NewDelete().Model((*registryModel)(nil)).
		Where("pack_id = ?", packID).Exec(ctx)
	if err != nil {
		return 0, MapDBError(err)
	}
	return res.RowsAffected()
}

func (s *BunStore) ListResultDigests(ctx context.Context) ([]string, error) {
	var digests []string
	if err := s.db.NewSelect().Model((*registryModel)(nil)).
		Column("result_sha256").
		Where("result_sha256 <> ''").
		Scan(ctx, &digests); err != nil {
		return nil, MapDBError(err)
	}
	return digests, nil
}
