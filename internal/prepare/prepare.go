// Copyright (c) 2026 rhpak team
// rhpak - content-addressed ROM hack package pipeline
// This source code is licensed under the MIT license found in the LICENSE file.

// Package prepare stages a patch, fixes its digest chain in the
// manifest, regenerates the verification result through the external
// tool, and encodes the patchblob. Prepare is a pure transformation
// over the manifest value: it consumes one manifest and returns a new
// one, touching only the stage directory on disk.
package prepare

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rhpak/rhpak/internal/blob"
	"github.com/rhpak/rhpak/internal/digest"
	"github.com/rhpak/rhpak/internal/logging"
	"github.com/rhpak/rhpak/internal/model"
	"github.com/rhpak/rhpak/internal/patchtool"
	"github.com/rhpak/rhpak/internal/safety"
)

// Preparer carries everything one prepare run needs. All fields are
// explicit; nothing is discovered at call time.
type Preparer struct {
	Tool    *patchtool.Config
	Filter  *safety.Filter
	Weights ScoringWeights
	// StageDir is the root under which staged artifacts are written.
	// Recorded storage paths are relative to it.
	StageDir string
	// Now is overridable for tests.
	Now func() time.Time
}

func (p *Preparer) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now().UTC()
}

// Prepare stages the patch at sourcePath (selecting it out of a ZIP
// container if needed), computes every digest, applies the patch to the
// base asset, digests the result, and encodes the patchblob. All
// digests are cached in the returned manifest so later stages never
// re-read the original source, only the staged copy.
func (p *Preparer) Prepare(ctx context.Context, m model.Manifest, sourcePath string) (model.Manifest, error) {
	if err := m.Validate(); err != nil {
		return m, err
	}
	source, err := os.ReadFile(sourcePath)
	if err != nil {
		return m, &model.ValidationError{Field: "patch.source", Reason: fmt.Sprintf("cannot read %s: %v", sourcePath, err)}
	}
	sourceName := filepath.Base(sourcePath)
	// Everything is screened before any further processing, nested
	// container members included.
	if err := p.Filter.Check(sourceName, source); err != nil {
		return m, err
	}

	patchName := sourceName
	patchBytes := source
	extracted := false
	member := ""
	if strings.EqualFold(filepath.Ext(sourcePath), ".zip") {
		member, patchBytes, err = selectPatch(source, p.Weights)
		if err != nil {
			return m, err
		}
		patchName = path.Base(member)
		extracted = true
		logging.Debugf("prepare: selected %q from container %s", member, sourceName)
	}

	digests, err := digest.Compute(patchBytes)
	if err != nil {
		return m, err
	}

	// Idempotence: re-preparing an unchanged source reuses the recorded
	// blob key so the staged tree converges instead of churning.
	var priorKey []byte
	if m.Prepared && m.Patch.Digests.SHA256 == digests.SHA256 && m.Blob.Key != "" {
		if k, decErr := decodeHexKey(m.Blob.Key); decErr == nil {
			priorKey = k
		}
	}

	storagePath := path.Join("patch", patchName)
	if err := p.writeStaged(storagePath, patchBytes); err != nil {
		return m, err
	}

	result, err := p.Tool.Apply(ctx, filepath.Join(p.StageDir, filepath.FromSlash(storagePath)))
	if err != nil {
		return m, err
	}
	resultDigests, err := digest.Compute(result)
	if err != nil {
		return m, err
	}

	blobRec, cipher, err := blob.Encode(patchBytes, priorKey)
	if err != nil {
		return m, err
	}
	blobRec.PackID = m.PackID
	blobPath := path.Join("blob", blobRec.Name)
	if err := p.writeStaged(blobPath, cipher); err != nil {
		return m, err
	}

	out := m
	out.Patch = model.PatchArtifact{
		SourceName:      sourceName,
		StoragePath:     storagePath,
		Digests:         digests,
		Extracted:       extracted,
		ContainerMember: member,
	}
	out.Blob = blobRec
	out.Attachment = model.Attachment{StoragePath: blobPath, Size: int64(len(cipher))}
	out.Result = model.VerificationResult{Digests: resultDigests}
	out.Prepared = true
	out.PreparedAt = p.now()
	logging.Infof("prepare: %s staged (%d byte patch, %d byte result)", m.Name, len(patchBytes), len(result))
	return out, nil
}

// AttachResource encrypts and stages one author- or pipeline-supplied
// resource file, returning the manifest with the entry appended.
// Screenshot staging is identical apart from the target list.
func (p *Preparer) AttachResource(m model.Manifest, filePath string, autoGenerated bool) (model.Manifest, error) {
	entry, cipher, err := p.sealMedia(m, filePath, "resources", autoGenerated)
	if err != nil {
		return m, err
	}
	out := m
	out.Resources = append(append([]model.MediaEntry(nil), m.Resources...), entry)
	return out, p.writeStaged(entry.StoragePath, cipher)
}

// AttachScreenshot encrypts and stages one screenshot file.
func (p *Preparer) AttachScreenshot(m model.Manifest, filePath string, autoGenerated bool) (model.Manifest, error) {
	entry, cipher, err := p.sealMedia(m, filePath, "screenshots", autoGenerated)
	if err != nil {
		return m, err
	}
	out := m
	out.Screenshots = append(append([]model.MediaEntry(nil), m.Screenshots...), entry)
	return out, p.writeStaged(entry.StoragePath, cipher)
}

func (p *Preparer) sealMedia(m model.Manifest, filePath, kind string, autoGenerated bool) (model.MediaEntry, []byte, error) {
	var entry model.MediaEntry
	plain, err := os.ReadFile(filePath)
	if err != nil {
		return entry, nil, &model.ValidationError{Field: kind, Reason: fmt.Sprintf("cannot read %s: %v", filePath, err)}
	}
	name := filepath.Base(filePath)
	if err := p.Filter.Check(name, plain); err != nil {
		return entry, nil, err
	}
	entry = model.MediaEntry{
		Name:          name,
		StoragePath:   path.Join(kind, name+".enc"),
		PackID:        m.PackID,
		AutoGenerated: autoGenerated,
	}
	entry, cipher, err := blob.Seal(entry, plain, nil)
	if err != nil {
		return entry, nil, err
	}
	return entry, cipher, nil
}

func decodeHexKey(s string) ([]byte, error) {
	return hex.DecodeString(s)
}

func (p *Preparer) writeStaged(rel string, data []byte) error {
	abs := filepath.Join(p.StageDir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("failed to create stage directory: %w", err)
	}
	if err := os.WriteFile(abs, data, 0o644); err != nil {
		return fmt.Errorf("failed to stage %s: %w", rel, err)
	}
	return nil
}

