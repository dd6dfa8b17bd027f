// Copyright (c) 2026 rhpak team
// rhpak - content-addressed ROM hack package pipeline
// This source code is licensed under the MIT license found in the LICENSE file.

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// Bun models. The legacy metadata schema predates this tool, so column
// shapes (notably the "Yes"/"No" auto_generated flag) are preserved
// as-is; conversion to real booleans happens only here.

type versionModel struct {
	bun.BaseModel `bun:"table:pack_versions"`
	ID            int64  `bun:"id,pk,autoincrement"`
	Title         string `bun:"title,notnull"`
	Version       string `bun:"version,notnull"`
	Author        string `bun:"author"`
	PackID        string `bun:"pack_id,notnull"`
}

type blobModel struct {
	bun.BaseModel `bun:"table:patchblobs"`
	Name          string `bun:"name,pk"`
	Data          []byte `bun:"data"`
	Size          int64  `bun:"size"`
}

type blobOwnerModel struct {
	bun.BaseModel `bun:"table:patchblob_owners"`
	ID            int64  `bun:"id,pk,autoincrement"`
	Name          string `bun:"name,notnull"`
	PackID        string `bun:"pack_id,notnull"`
}

type resourceModel struct {
	bun.BaseModel `bun:"table:pack_resources"`
	ID            int64  `bun:"id,pk,autoincrement"`
	Name          string `bun:"name,notnull"`
	URL           string `bun:"url"`
	StoragePath   string `bun:"storage_path"`
	Data          []byte `bun:"data"`
	CipherSHA256  string `bun:"cipher_sha256"`
	PackID        string `bun:"pack_id,notnull"`
	AutoGenerated string `bun:"auto_generated"` // legacy "Yes"/"No"
}

type screenshotModel struct {
	bun.BaseModel `bun:"table:pack_screenshots"`
	ID            int64  `bun:"id,pk,autoincrement"`
	Name          string `bun:"name,notnull"`
	URL           string `bun:"url"`
	StoragePath   string `bun:"storage_path"`
	Data          []byte `bun:"data"`
	CipherSHA256  string `bun:"cipher_sha256"`
	PackID        string `bun:"pack_id,notnull"`
	AutoGenerated string `bun:"auto_generated"` // legacy "Yes"/"No"
}

type registryModel struct {
	bun.BaseModel `bun:"table:pack_registry"`
	PackID        string    `bun:"pack_id,pk"`
	Name          string    `bun:"name,notnull"`
	SkeletonFile  string    `bun:"skeleton_file"`
	ResultSHA256  string    `bun:"result_sha256"`
	InstalledAt   time.Time `bun:"installed_at"`
}

// legacyBool converts between the store's historical "Yes"/"No" flag
// encoding and the core's real booleans.
func legacyBool(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func fromLegacyBool(s string) bool {
	switch s {
	case "Yes", "yes", "1", "true":
		return true
	}
	return false
}

func mediaTable(kind MediaKind) (any, string, error) {
	switch kind {
	case KindResource:
		return (*resourceModel)(nil), "pack_resources", nil
	case KindScreenshot:
		return (*screenshotModel)(nil), "pack_screenshots", nil
	}
	return nil, "", fmt.Errorf("unknown media kind %q", kind)
}

// ensureSchema creates missing tables and the unique indexes the
// ownership checks rely on. Safe to run on every open.
func ensureSchema(ctx context.Context, bdb *bun.DB) error {
	models := []any{
		(*versionModel)(nil),
		(*blobModel)(nil),
		(*blobOwnerModel)(nil),
		(*resourceModel)(nil),
		(*screenshotModel)(nil),
		(*registryModel)(nil),
	}
	for _, m := range models {
		if _, err := bdb.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			return err
		}
	}
	indexes := []struct {
		name    string
		table   string
		columns []string
	}{
		{"ux_pack_versions_key", "pack_versions", []string{"title", "version"}},
		{"ux_patchblob_owners_key", "patchblob_owners", []string{"name", "pack_id"}},
		{"ux_pack_resources_name", "pack_resources", []string{"name"}},
		{"ux_pack_screenshots_name", "pack_screenshots", []string{"name"}},
	}
	for _, idx := range indexes {
		q := bdb.NewCreateIndex().
			Unique().
			IfNotExists().
			Index(idx.name).
			Table(idx.table)
		for _, c := range idx.columns {
			q = q.Column(c)
		}
		if _, err := q.Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}
