package safety

import (
	"archive/zip"
	"bytes"
	"errors"
	"testing"

	"github.com/rhpak/rhpak/internal/digest"
	"github.com/rhpak/rhpak/internal/model"
)

func makeZip(t *testing.T, members map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, data := range members {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create failed: %v", err)
		}
		if _, err := w.Write(data); err != nil {
			t.Fatalf("zip write failed: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close failed: %v", err)
	}
	return buf.Bytes()
}

func TestCheck_CleanBufferPasses(t *testing.T) {
	f := New(nil)
	if err := f.Check("hack.bps", []byte("harmless patch data")); err != nil {
		t.Errorf("clean buffer rejected: %v", err)
	}
}

func TestCheck_BlockedExtension(t *testing.T) {
	f := New(nil)
	for _, name := range []string{"dump.sfc", "DUMP.SMC", "image.fig"} {
		err := f.Check(name, []byte("anything"))
		var sv *model.SafetyViolation
		if !errors.As(err, &sv) {
			t.Errorf("%s: expected SafetyViolation, got %v", name, err)
		}
	}
}

func TestCheck_BlocklistedDigest(t *testing.T) {
	payload := []byte("disallowed content")
	f := New([]string{digest.SHA256Hex(payload)})
	err := f.Check("innocent-name.bps", payload)
	var sv *model.SafetyViolation
	if !errors.As(err, &sv) {
		t.Fatalf("expected SafetyViolation, got %v", err)
	}
}

func TestCheck_ZipMemberBlocked(t *testing.T) {
	payload := []byte("disallowed content inside archive")
	archive := makeZip(t, map[string][]byte{
		"patch.bps": []byte("fine"),
		"bad.dat":   payload,
	})
	f := New([]string{digest.SHA256Hex(payload)})
	err := f.Check("bundle.zip", archive)
	var sv *model.SafetyViolation
	if !errors.As(err, &sv) {
		t.Fatalf("expected SafetyViolation for archive member, got %v", err)
	}
}

func TestCheck_NestedZipMemberBlocked(t *testing.T) {
	payload := []byte("deeply nested disallowed content")
	inner := makeZip(t, map[string][]byte{"hidden.dat": payload})
	outer := makeZip(t, map[string][]byte{"inner.zip": inner, "readme.txt": []byte("hi")})

	f := New([]string{digest.SHA256Hex(payload)})
	err := f.Check("outer.zip", outer)
	var sv *model.SafetyViolation
	if !errors.As(err, &sv) {
		t.Fatalf("expected SafetyViolation at nesting depth 2, got %v", err)
	}
}

func TestCheck_ZipMemberBlockedExtension(t *testing.T) {
	archive := makeZip(t, map[string][]byte{"rom.smc": []byte("raw image")})
	f := New(nil)
	err := f.Check("bundle.zip", archive)
	var sv *model.SafetyViolation
	if !errors.As(err, &sv) {
		t.Fatalf("expected SafetyViolation for member extension, got %v", err)
	}
}

func TestCheck_CleanZipPasses(t *testing.T) {
	archive := makeZip(t, map[string][]byte{
		"hack.bps":   []byte("patch data"),
		"readme.txt": []byte("read me"),
	})
	f := New(nil)
	if err := f.Check("bundle.zip", archive); err != nil {
		t.Errorf("clean archive rejected: %v", err)
	}
}

func TestNew_MergesExtraDigests(t *testing.T) {
	f := New([]string{"ABCDEF", ""})
	if !f.blocked["abcdef"] {
		t.Error("extra digest not lowercased into blocklist")
	}
	if len(f.blocked) != len(seedBlocklist)+1 {
		t.Errorf("blocklist size = %d, want %d", len(f.blocked), len(seedBlocklist)+1)
	}
}
