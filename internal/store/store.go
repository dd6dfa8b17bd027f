// Copyright (c) 2026 rhpak team
// rhpak - content-addressed ROM hack package pipeline
// This source code is licensed under the MIT license found in the LICENSE file.

// Package store is the data access layer for the five persisted stores:
// game/version metadata, the patchblob attachment store, resources,
// screenshots, and the package registry. It abstracts the underlying
// database (SQLite, PostgreSQL, MySQL) behind one interface so the
// pipeline interacts with every backend the same way.
package store

import (
	"context"
	"time"
)

// MediaKind selects between the resource and screenshot stores, which
// share row shape but are independent tables.
type MediaKind string

const (
	KindResource   MediaKind = "resource"
	KindScreenshot MediaKind = "screenshot"
)

// VersionRow is one game/version metadata row. Title and Version form
// the natural key; PackID is the ownership tag.
type VersionRow struct {
	Title   string
	Version string
	Author  string
	PackID  string
}

// MediaRow is one resource or screenshot row. Name is the natural key
// within its kind. AutoGenerated uses a real boolean here; the legacy
// "Yes"/"No" encoding exists only inside the bun adapter.
type MediaRow struct {
	Name          string
	URL           string
	StoragePath   string
	Data          []byte
	CipherSHA256  string
	PackID        string
	AutoGenerated bool
}

// RegistryRow maps a package UUID to its display name and manifest
// filename. Its presence is the canonical signal that the package is
// fully installed. ResultSHA256 feeds the safety filter's blocklist.
type RegistryRow struct {
	PackID       string
	Name         string
	SkeletonFile string
	ResultSHA256 string
	InstalledAt  time.Time
}

// Store is the interface every backend implements. Each logical store
// exposes exactly three operations: upsert-with-ownership-check,
// delete-by-package-uuid, and lookup-by-key. Upserts return an
// OwnershipConflict when the natural key is held by a different
// package and write nothing; deletes of zero rows are success.
type Store interface {
	UpsertVersion(ctx context.Context, row VersionRow) error
	GetVersion(ctx context.Context, title, version string) (*VersionRow, error)
	DeleteVersionsByPack(ctx context.Context, packID string) (int64, error)

	// The attachment store is content-addressed and reference-counted:
	// identical patch bytes from two packages share one blob row, each
	// holding its own owner entry. PutBlob under an existing name adds
	// an owner; ReleaseBlobsByPack removes this package's owner entries
	// and deletes blob bytes only when the last owner is gone.
	PutBlob(ctx context.Context, name string, data []byte, packID string) error
	GetBlob(ctx context.Context, name string) ([]byte, error)
	ReleaseBlobsByPack(ctx context.Context, packID string) (int64, error)

	UpsertMedia(ctx context.Context, kind MediaKind, row MediaRow) error
	GetMedia(ctx context.Context, kind MediaKind, name string) (*MediaRow, error)
	ListMediaByPack(ctx context.Context, kind MediaKind, packID string) ([]MediaRow, error)
	DeleteMediaByPack(ctx context.Context, kind MediaKind, packID string) (int64, error)

	UpsertRegistry(ctx context.Context, row RegistryRow) error
	GetRegistry(ctx context.Context, packID string) (*RegistryRow, error)
	ListRegistry(ctx context.Context) ([]RegistryRow, error)
	DeleteRegistry(ctx context.Context, packID string) (int64, error)

	// ListResultDigests returns the verification-result digests of every
	// installed package, merged into the safety filter's blocklist.
	ListResultDigests(ctx context.Context) ([]string, error)

	Close() error
}
