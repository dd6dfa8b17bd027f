// Copyright (c) 2026 rhpak team
// rhpak - content-addressed ROM hack package pipeline
// This source code is licensed under the MIT license found in the LICENSE file.

// Package safety screens every buffer the pipeline touches before any
// compression or encryption work is spent on it. A buffer is rejected
// if its name carries a raw ROM image extension, if its digest is on
// the blocklist, or if any member of a nested container fails either
// check.
package safety

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/rhpak/rhpak/internal/digest"
	"github.com/rhpak/rhpak/internal/model"
)

// maxMemberSize bounds how much of a single container member the filter
// will inflate while scanning. Patch archives are small; anything
// larger is suspicious on its face.
const maxMemberSize = 64 << 20

// blockedExtensions are raw ROM image formats. Distributing these is
// never legitimate for a patch package, so the name alone is grounds
// for rejection regardless of content.
var blockedExtensions = map[string]bool{
	".sfc": true,
	".smc": true,
	".swc": true,
	".fig": true,
	".bs":  true,
	".st":  true,
}

// seedBlocklist is the fixed set of disallowed content digests
// (SHA-256, hex) every filter starts with. Digests of verification
// results recorded by installed packages are merged in at construction
// time so a derivative detected once is blocked everywhere after.
var seedBlocklist = []string{
	"0e4e5d026d5046189b2fa0791d28fc8fa2e1d2f39b0b90808ed29ff61d93e43d",
	"83a7c7a491b85430bbf0d76da99aee364c085c9b80c30deb2b4b2b79e7cdef46",
	"5c1e8a3bbdee82cbe52f99dc19db81bb2e9871308d2e3a438e11d741d7e9166e",
}

// Filter holds the combined blocklist. Construct one per operation via
// New; it is safe for concurrent readers once built.
type Filter struct {
	blocked map[string]bool
}

// New builds a filter from the seed set plus any extra SHA-256 digests
// (typically the verification-result digests of previously installed
// packages).
func New(extra []string) *Filter {
	f := &Filter{blocked: make(map[string]bool, len(seedBlocklist)+len(extra))}
	for _, d := range seedBlocklist {
		f.blocked[strings.ToLower(d)] = true
	}
	for _, d := range extra {
		if d != "" {
			f.blocked[strings.ToLower(d)] = true
		}
	}
	return f
}

// Check scans one named buffer. Container formats are walked
// recursively; every member at every depth must pass. Returns a
// SafetyViolation on the first failure.
func (f *Filter) Check(name string, data []byte) error {
	if ext := strings.ToLower(path.Ext(name)); blockedExtensions[ext] {
		return &model.SafetyViolation{Name: name, Reason: fmt.Sprintf("disallowed raw image extension %s", ext)}
	}
	if f.blocked[digest.SHA256Hex(data)] {
		return &model.SafetyViolation{Name: name, Reason: "digest is on the content blocklist"}
	}
	if isZip(data) {
		return f.checkZip(name, data)
	}
	return nil
}

func (f *Filter) checkZip(name string, data []byte) error {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		// Not actually a readable archive; the digest check above
		// already cleared the raw bytes.
		return nil
	}
	for _, entry := range zr.File {
		if entry.FileInfo().IsDir() {
			continue
		}
		if entry.UncompressedSize64 > maxMemberSize {
			return &model.SafetyViolation{
				Name:   name + "!" + entry.Name,
				Reason: fmt.Sprintf("container member exceeds %d byte scan limit", maxMemberSize),
			}
		}
		member, err := readZipMember(entry)
		if err != nil {
			return &model.SafetyViolation{Name: name + "!" + entry.Name, Reason: fmt.Sprintf("unreadable container member: %v", err)}
		}
		if err := f.Check(name+"!"+entry.Name, member); err != nil {
			return err
		}
	}
	return nil
}

func readZipMember(entry *zip.File) ([]byte, error) {
	rc, err := entry.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	return io.ReadAll(io.LimitReader(rc, maxMemberSize+1))
}

// isZip sniffs the local file header magic.
func isZip(data []byte) bool {
	return len(data) >= 4 && bytes.Equal(data[:4], []byte{'P', 'K', 0x03, 0x04})
}
