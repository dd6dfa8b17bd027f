package install

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rhpak/rhpak/internal/blob"
	"github.com/rhpak/rhpak/internal/digest"
	"github.com/rhpak/rhpak/internal/model"
	"github.com/rhpak/rhpak/internal/store"
)

func newTestStore(t *testing.T, name string) store.Store {
	t.Helper()
	dsn := fmt.Sprintf("file:test_install_%s?mode=memory&cache=shared", name)
	s, err := store.NewStoreFromDSN("sqlite", dsn)
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// stagedManifest stages a minimal but complete artifact tree under dir
// and returns the matching prepared manifest.
func stagedManifest(t *testing.T, dir, packID string) model.Manifest {
	t.Helper()
	patch := bytes.Repeat([]byte("installable-patch-"), 100)
	digests, err := digest.Compute(patch)
	if err != nil {
		t.Fatalf("digest failed: %v", err)
	}
	rec, cipher, err := blob.Encode(patch, nil)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	rec.PackID = packID

	resultDigests, err := digest.Compute(append([]byte("base"), patch...))
	if err != nil {
		t.Fatalf("digest failed: %v", err)
	}

	auto := model.MediaEntry{Name: "auto.txt", StoragePath: "resources/auto.txt.enc", PackID: packID, AutoGenerated: true}
	auto, autoCipher, err := blob.Seal(auto, []byte("generated"), nil)
	if err != nil {
		t.Fatalf("seal failed: %v", err)
	}
	manual := model.MediaEntry{Name: "manual.txt", StoragePath: "resources/manual.txt.enc", PackID: packID}
	manual, manualCipher, err := blob.Seal(manual, []byte("hand written"), nil)
	if err != nil {
		t.Fatalf("seal failed: %v", err)
	}

	m := model.Manifest{
		PackID:       packID,
		Name:         "Install Test Hack",
		SkeletonFile: "install-test.json",
		Prepared:     true,
		PreparedAt:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Game:         model.Game{Title: "Install Game", Version: "2.0", Author: "tester"},
		Patch:        model.PatchArtifact{SourceName: "hack.bps", StoragePath: "patch/hack.bps", Digests: digests},
		Blob:         rec,
		Attachment:   model.Attachment{StoragePath: "blob/" + rec.Name, Size: int64(len(cipher))},
		Result:       model.VerificationResult{Digests: resultDigests},
		Resources:    []model.MediaEntry{auto, manual},
	}

	for rel, data := range map[string][]byte{
		m.Patch.StoragePath:      patch,
		m.Attachment.StoragePath: cipher,
		auto.StoragePath:         autoCipher,
		manual.StoragePath:       manualCipher,
	} {
		abs := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			t.Fatalf("mkdir failed: %v", err)
		}
		if err := os.WriteFile(abs, data, 0o644); err != nil {
			t.Fatalf("stage write failed: %v", err)
		}
	}
	return m
}

func TestInstall_WritesEveryStore(t *testing.T) {
	s := newTestStore(t, "full")
	ctx := context.Background()
	dir := t.TempDir()
	m := stagedManifest(t, dir, "11111111-0000-0000-0000-000000000001")

	if err := Install(ctx, s, m, dir); err != nil {
		t.Fatalf("Install failed: %v", err)
	}

	if _, err := s.GetVersion(ctx, "Install Game", "2.0"); err != nil {
		t.Errorf("version row missing: %v", err)
	}
	if _, err := s.GetBlob(ctx, m.Blob.Name); err != nil {
		t.Errorf("blob row missing: %v", err)
	}
	rows, err := s.ListMediaByPack(ctx, store.KindResource, m.PackID)
	if err != nil || len(rows) != 2 {
		t.Errorf("resource rows = %d, %v", len(rows), err)
	}
	reg, err := s.GetRegistry(ctx, m.PackID)
	if err != nil {
		t.Fatalf("registry row missing: %v", err)
	}
	if reg.ResultSHA256 != m.Result.Digests.SHA256 {
		t.Error("registry does not carry the result digest")
	}
}

func TestInstall_Reinstall(t *testing.T) {
	s := newTestStore(t, "reinstall")
	ctx := context.Background()
	dir := t.TempDir()
	m := stagedManifest(t, dir, "22222222-0000-0000-0000-000000000002")

	if err := Install(ctx, s, m, dir); err != nil {
		t.Fatalf("first install failed: %v", err)
	}
	if err := Install(ctx, s, m, dir); err != nil {
		t.Fatalf("reinstall by the same package failed: %v", err)
	}
	list, err := s.ListRegistry(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("registry list = %d, %v", len(list), err)
	}
}

func TestInstall_ConflictLeavesNoRegistryRow(t *testing.T) {
	s := newTestStore(t, "conflict")
	ctx := context.Background()

	dirA := t.TempDir()
	a := stagedManifest(t, dirA, "33333333-0000-0000-0000-000000000003")
	if err := Install(ctx, s, a, dirA); err != nil {
		t.Fatalf("first install failed: %v", err)
	}

	// Same game/version under a different UUID: the version upsert is the
	// first write and must refuse, so nothing else gets written either.
	dirB := t.TempDir()
	b := stagedManifest(t, dirB, "44444444-0000-0000-0000-000000000004")
	err := Install(ctx, s, b, dirB)
	var oc *model.OwnershipConflict
	if !errors.As(err, &oc) {
		t.Fatalf("expected OwnershipConflict, got %v", err)
	}
	if _, err := s.GetRegistry(ctx, b.PackID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("conflicting install left a registry row: %v", err)
	}
}

func TestUninstall_RemovesEverythingAndRepeats(t *testing.T) {
	s := newTestStore(t, "uninstall")
	ctx := context.Background()
	dir := t.TempDir()
	m := stagedManifest(t, dir, "55555555-0000-0000-0000-000000000005")

	if err := Install(ctx, s, m, dir); err != nil {
		t.Fatalf("install failed: %v", err)
	}
	r, err := Uninstall(ctx, s, m.PackID, false, "")
	if err != nil {
		t.Fatalf("uninstall failed: %v", err)
	}
	if r.Versions != 1 || r.Blobs != 1 || r.Resources != 2 || r.Registry != 1 {
		t.Errorf("removed counts = %+v", r)
	}
	if _, err := s.GetRegistry(ctx, m.PackID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("registry row survived: %v", err)
	}

	// Repeating the uninstall finds nothing and still succeeds.
	r, err = Uninstall(ctx, s, m.PackID, false, "")
	if err != nil {
		t.Fatalf("second uninstall failed: %v", err)
	}
	if r.Total() != 0 {
		t.Errorf("second uninstall removed %d rows, want 0", r.Total())
	}
}

func TestUninstall_PurgeOnlyAutoGenerated(t *testing.T) {
	s := newTestStore(t, "purge")
	ctx := context.Background()
	dir := t.TempDir()
	m := stagedManifest(t, dir, "66666666-0000-0000-0000-000000000006")

	if err := Install(ctx, s, m, dir); err != nil {
		t.Fatalf("install failed: %v", err)
	}
	r, err := Uninstall(ctx, s, m.PackID, true, dir)
	if err != nil {
		t.Fatalf("purging uninstall failed: %v", err)
	}
	if r.PurgedFiles != 1 {
		t.Errorf("purged %d files, want 1", r.PurgedFiles)
	}
	if _, err := os.Stat(filepath.Join(dir, "resources", "auto.txt.enc")); !errors.Is(err, os.ErrNotExist) {
		t.Error("auto-generated file survived the purge")
	}
	if _, err := os.Stat(filepath.Join(dir, "resources", "manual.txt.enc")); err != nil {
		t.Errorf("author-supplied file was purged: %v", err)
	}
}

func TestInstall_SharedBlobAcrossPacks(t *testing.T) {
	s := newTestStore(t, "sharedblob")
	ctx := context.Background()

	dirA := t.TempDir()
	a := stagedManifest(t, dirA, "77777777-0000-0000-0000-000000000007")
	a.Game.Title = "Shared Game A"
	a.Resources = nil
	if err := Install(ctx, s, a, dirA); err != nil {
		t.Fatalf("first install failed: %v", err)
	}

	// A second package with identical patch bytes shares the blob row:
	// same staged tree generator, different UUID, different metadata keys.
	dirB := t.TempDir()
	b := stagedManifest(t, dirB, "88888888-0000-0000-0000-000000000008")
	b.Game.Title = "Shared Game B"
	b.Resources = nil
	b.Blob.Name = a.Blob.Name
	// Reuse A's ciphertext so the content-addressed identity matches.
	cipher, err := os.ReadFile(filepath.Join(dirA, filepath.FromSlash(a.Attachment.StoragePath)))
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	abs := filepath.Join(dirB, filepath.FromSlash("blob/"+a.Blob.Name))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := os.WriteFile(abs, cipher, 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	b.Attachment.StoragePath = "blob/" + a.Blob.Name
	if err := Install(ctx, s, b, dirB); err != nil {
		t.Fatalf("second install failed: %v", err)
	}

	// Uninstalling A keeps the blob alive for B.
	if _, err := Uninstall(ctx, s, a.PackID, false, ""); err != nil {
		t.Fatalf("uninstall failed: %v", err)
	}
	if _, err := s.GetBlob(ctx, a.Blob.Name); err != nil {
		t.Errorf("shared blob removed while still owned: %v", err)
	}
}
