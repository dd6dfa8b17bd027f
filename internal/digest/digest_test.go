package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/rhpak/rhpak/internal/model"
)

func TestCompute_MatchesReferenceSHA256(t *testing.T) {
	data := make([]byte, 2048)
	for i := range data {
		data[i] = byte(i % 251)
	}
	set, err := Compute(data)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	ref := sha256.Sum256(data)
	if set.SHA256 != hex.EncodeToString(ref[:]) {
		t.Errorf("SHA256 mismatch: got %s", set.SHA256)
	}
	if set.Length != 2048 {
		t.Errorf("Length = %d, want 2048", set.Length)
	}
}

func TestCompute_AllFieldsPopulated(t *testing.T) {
	set, err := Compute([]byte("the quick brown fox"))
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if len(set.SHA1) != 40 {
		t.Errorf("SHA1 length = %d, want 40", len(set.SHA1))
	}
	if len(set.SHA224) != 56 {
		t.Errorf("SHA224 length = %d, want 56", len(set.SHA224))
	}
	if len(set.MD5) != 32 {
		t.Errorf("MD5 length = %d, want 32", len(set.MD5))
	}
	if len(set.CRC16) != 4 {
		t.Errorf("CRC16 length = %d, want 4", len(set.CRC16))
	}
	if len(set.CRC32) != 8 {
		t.Errorf("CRC32 length = %d, want 8", len(set.CRC32))
	}
	if len(set.ShakeCID) != 64 {
		t.Errorf("ShakeCID length = %d, want 64", len(set.ShakeCID))
	}
	if !strings.HasPrefix(set.CIDv0, "Qm") {
		t.Errorf("CIDv0 = %s, want Qm prefix", set.CIDv0)
	}
	if !strings.HasPrefix(set.CIDv1, "baf") {
		t.Errorf("CIDv1 = %s, want baf prefix", set.CIDv1)
	}
}

func TestCompute_Deterministic(t *testing.T) {
	a, err := Compute([]byte("payload"))
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	b, err := Compute([]byte("payload"))
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if a != b {
		t.Errorf("digest sets differ for identical input:\n%+v\n%+v", a, b)
	}
}

func TestVerifyAgainst_Match(t *testing.T) {
	data := []byte("patch bytes")
	set, err := Compute(data)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if err := VerifyAgainst("patch", set, data); err != nil {
		t.Errorf("VerifyAgainst failed on matching data: %v", err)
	}
}

func TestVerifyAgainst_MismatchNamesAlgorithm(t *testing.T) {
	data := []byte("patch bytes")
	set, err := Compute(data)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	set.SHA224 = strings.Repeat("0", 56)
	err = VerifyAgainst("patch", set, data)
	var ie *model.IntegrityError
	if !errors.As(err, &ie) {
		t.Fatalf("expected IntegrityError, got %v", err)
	}
	if ie.Field != "patch" || ie.Algorithm != "sha224" {
		t.Errorf("error names %s/%s, want patch/sha224", ie.Field, ie.Algorithm)
	}
}

func TestVerifyAgainst_SkipsUnrecordedAlgorithms(t *testing.T) {
	data := []byte("older manifest")
	set, err := Compute(data)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	// Older manifests did not record content identifiers.
	set.ShakeCID = ""
	set.CIDv0 = ""
	set.CIDv1 = ""
	if err := VerifyAgainst("patch", set, data); err != nil {
		t.Errorf("VerifyAgainst failed with unrecorded fields: %v", err)
	}
}

func TestVerifyAgainst_SingleBitFlip(t *testing.T) {
	data := []byte("some patch content for flipping")
	set, err := Compute(data)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	flipped := append([]byte(nil), data...)
	flipped[7] ^= 0x01
	err = VerifyAgainst("patch", set, flipped)
	var ie *model.IntegrityError
	if !errors.As(err, &ie) {
		t.Fatalf("expected IntegrityError for bit flip, got %v", err)
	}
}
