// Copyright (c) 2026 rhpak team
// rhpak - content-addressed ROM hack package pipeline
// This source code is licensed under the MIT license found in the LICENSE file.

// Package model defines the manifest (skeleton) document and its records.
// The JSON field names are a compatibility surface: manifests written by
// earlier releases must round-trip byte-for-byte through these types.
package model

import (
	"fmt"
	"time"
)

// DigestSet is the full digest chain recorded for one byte sequence.
// Once a manifest is prepared these values are load-bearing: every later
// stage recomputes and compares them instead of trusting the bytes.
type DigestSet struct {
	Length   int64  `json:"length"`
	SHA1     string `json:"sha1"`
	SHA224   string `json:"sha224"`
	SHA256   string `json:"sha256"`
	MD5      string `json:"md5"`
	CRC16    string `json:"crc16"`
	CRC32    string `json:"crc32"`
	ShakeCID string `json:"shake_cid"`
	CIDv0    string `json:"cid_v0"`
	CIDv1    string `json:"cid_v1"`
}

// IsZero reports whether no digest has been recorded yet.
func (d DigestSet) IsZero() bool {
	return d.SHA256 == "" && d.SHA1 == "" && d.Length == 0
}

// Game describes the primary content item a package targets. Title and
// Version together form the natural key in the metadata store.
type Game struct {
	Title   string `json:"title"`
	Version string `json:"version"`
	Author  string `json:"author"`
}

// PatchArtifact records the staged patch: its digests, where the staged
// copy lives relative to the stage root, and where the bytes came from.
type PatchArtifact struct {
	SourceName      string    `json:"source_name"`
	StoragePath     string    `json:"storage_path"`
	Digests         DigestSet `json:"digests"`
	Extracted       bool      `json:"extracted"`
	ContainerMember string    `json:"container_member,omitempty"`
}

// PatchBlob is the compressed-then-encrypted form of the patch. Name is
// derived from the plaintext digest, so identical patch bytes always
// produce an identical blob identity. Key is the hex-encoded symmetric
// key; it travels in the manifest because the sealed archive is the unit
// of trust.
type PatchBlob struct {
	Name          string `json:"name"`
	Key           string `json:"key"`
	EncodedSize   int64  `json:"encoded_size"`
	DecodedSize   int64  `json:"decoded_size"`
	EncodedSHA256 string `json:"encoded_sha256"`
	DecodedSHA256 string `json:"decoded_sha256"`
	PackID        string `json:"pack_id"`
}

// Attachment records where the patchblob file is placed inside a sealed
// archive.
type Attachment struct {
	StoragePath string `json:"storage_path"`
	Size        int64  `json:"size"`
}

// VerificationResult holds the digest chain of the bytes produced by
// applying the patch to the base asset. It is an independent integrity
// check: a patch is valid only if both its own digests and these match.
type VerificationResult struct {
	Digests DigestSet `json:"digests"`
}

// MediaEntry is one resource or screenshot. File-backed entries carry an
// encrypted payload at StoragePath plus both digest chains; URL entries
// carry no local bytes. AutoGenerated marks pipeline-created entries,
// the only ones eligible for automatic cleanup.
type MediaEntry struct {
	Name          string    `json:"name"`
	URL           string    `json:"url,omitempty"`
	StoragePath   string    `json:"storage_path,omitempty"`
	Key           string    `json:"key,omitempty"`
	PlainDigests  DigestSet `json:"plain_digests"`
	CipherSHA256  string    `json:"cipher_sha256,omitempty"`
	PackID        string    `json:"pack_id"`
	AutoGenerated bool      `json:"auto_generated"`
}

// FileBacked reports whether the entry has local encrypted bytes.
func (m MediaEntry) FileBacked() bool { return m.URL == "" }

// Manifest (the "skeleton") is the authoritative description of one
// package across its whole lifecycle. It is passed by value through the
// pipeline: each stage consumes one manifest and returns a new one.
type Manifest struct {
	PackID       string             `json:"pack_id"`
	Name         string             `json:"name"`
	SkeletonFile string             `json:"skeleton_file"`
	Prepared     bool               `json:"prepared"`
	PreparedAt   time.Time          `json:"prepared_at,omitzero"`
	Game         Game               `json:"game"`
	Patch        PatchArtifact      `json:"patch"`
	Blob         PatchBlob          `json:"patchblob"`
	Attachment   Attachment         `json:"attachment"`
	Result       VerificationResult `json:"result"`
	Resources    []MediaEntry       `json:"resources"`
	Screenshots  []MediaEntry       `json:"screenshots"`
}

// Validate checks the fields every pipeline stage depends on. It does not
// touch the filesystem; staged files are checked by the stage that reads
// them.
func (m Manifest) Validate() error {
	if m.PackID == "" {
		return &ValidationError{Field: "pack_id", Reason: "missing package UUID"}
	}
	if m.Name == "" {
		return &ValidationError{Field: "name", Reason: "missing display name"}
	}
	if m.Game.Title == "" {
		return &ValidationError{Field: "game.title", Reason: "missing game title"}
	}
	return nil
}

// ValidatePrepared additionally checks the records a prepared manifest
// must carry before it can be packaged, verified or installed.
func (m Manifest) ValidatePrepared() error {
	if err := m.Validate(); err != nil {
		return err
	}
	if !m.Prepared {
		return &ValidationError{Field: "prepared", Reason: "manifest has not been prepared"}
	}
	if m.Patch.Digests.IsZero() {
		return &ValidationError{Field: "patch.digests", Reason: "prepared manifest lacks patch digests"}
	}
	if m.Patch.StoragePath == "" {
		return &ValidationError{Field: "patch.storage_path", Reason: "prepared manifest lacks a staged patch path"}
	}
	if m.Blob.Name == "" {
		return &ValidationError{Field: "patchblob.name", Reason: "prepared manifest lacks a patchblob"}
	}
	if m.Result.Digests.IsZero() {
		return &ValidationError{Field: "result.digests", Reason: "prepared manifest lacks a verification result"}
	}
	for i, r := range m.Resources {
		if r.FileBacked() && r.StoragePath == "" {
			return &ValidationError{Field: fmt.Sprintf("resources[%d]", i), Reason: "file-backed entry without storage path"}
		}
	}
	for i, s := range m.Screenshots {
		if s.FileBacked() && s.StoragePath == "" {
			return &ValidationError{Field: fmt.Sprintf("screenshots[%d]", i), Reason: "file-backed entry without storage path"}
		}
	}
	return nil
}
