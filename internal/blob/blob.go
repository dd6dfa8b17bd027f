// Copyright (c) 2026 rhpak team
// rhpak - content-addressed ROM hack package pipeline
// This source code is licensed under the MIT license found in the LICENSE file.

// Package blob turns prepared patch bytes into a content-addressed
// patchblob (zstd compress, then XChaCha20-Poly1305 encrypt) and back.
// The blob name is derived from the plaintext digest, so identical
// patch bytes always yield an identical blob identity no matter which
// package produced them.
package blob

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/rhpak/rhpak/internal/digest"
	"github.com/rhpak/rhpak/internal/model"
)

// KeySize is the symmetric key length in bytes.
const KeySize = chacha20poly1305.KeySize

// namePrefix marks patchblob files on disk and in the attachment store.
const namePrefix = "pblob_"

var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	// EncodeAll/DecodeAll on shared codecs; both are safe for
	// concurrent use.
	zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	zstdDecoder, _ = zstd.NewReader(nil)
}

// NewKey generates a fresh symmetric key.
func NewKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate blob key: %w", err)
	}
	return key, nil
}

// Name derives the content-addressed blob name for the given plaintext.
func Name(plain []byte) string {
	return namePrefix + digest.SHA256Hex(plain)
}

// Encode compresses then encrypts the plaintext. A nil key means a
// freshly generated one; passing the recorded key reproduces a blob
// byte-compatible with an earlier preparation except for the random
// nonce. The returned record carries both the ciphertext ("encoded")
// and plaintext ("decoded") digests.
func Encode(plain, key []byte) (model.PatchBlob, []byte, error) {
	var rec model.PatchBlob
	if key == nil {
		k, err := NewKey()
		if err != nil {
			return rec, nil, err
		}
		key = k
	}
	if len(key) != KeySize {
		return rec, nil, &model.ValidationError{Field: "patchblob.key", Reason: fmt.Sprintf("key must be %d bytes, got %d", KeySize, len(key))}
	}

	compressed := zstdEncoder.EncodeAll(plain, nil)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return rec, nil, fmt.Errorf("failed to initialize cipher: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return rec, nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	// Ciphertext layout: nonce || sealed bytes.
	cipher := aead.Seal(nonce, nonce, compressed, nil)

	rec = model.PatchBlob{
		Name:          Name(plain),
		Key:           hex.EncodeToString(key),
		EncodedSize:   int64(len(cipher)),
		DecodedSize:   int64(len(plain)),
		EncodedSHA256: digest.SHA256Hex(cipher),
		DecodedSHA256: digest.SHA256Hex(plain),
	}
	return rec, cipher, nil
}

// Decode is the strict inverse of Encode: decrypt, decompress, and
// verify the plaintext against the recorded decoded digest. Any
// divergence at any step is a tamper signal reported as an
// IntegrityError, never silently tolerated.
func Decode(rec model.PatchBlob, cipher []byte) ([]byte, error) {
	if got := digest.SHA256Hex(cipher); rec.EncodedSHA256 != "" && got != rec.EncodedSHA256 {
		return nil, &model.IntegrityError{Field: "patchblob.encoded_sha256", Algorithm: "sha256", Want: rec.EncodedSHA256, Got: got}
	}
	key, err := hex.DecodeString(rec.Key)
	if err != nil || len(key) != KeySize {
		return nil, &model.ValidationError{Field: "patchblob.key", Reason: "malformed symmetric key"}
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cipher: %w", err)
	}
	if len(cipher) < aead.NonceSize() {
		return nil, &model.IntegrityError{Field: "patchblob", Algorithm: "xchacha20", Want: fmt.Sprintf(">=%d bytes", aead.NonceSize()), Got: fmt.Sprintf("%d bytes", len(cipher))}
	}
	nonce, sealed := cipher[:aead.NonceSize()], cipher[aead.NonceSize():]
	compressed, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		// Authentication failure: the ciphertext was altered.
		return nil, &model.IntegrityError{Field: "patchblob", Algorithm: "poly1305", Want: "valid authentication tag", Got: "tag mismatch"}
	}
	plain, err := zstdDecoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, &model.IntegrityError{Field: "patchblob", Algorithm: "zstd", Want: "valid compressed stream", Got: err.Error()}
	}
	if got := digest.SHA256Hex(plain); rec.DecodedSHA256 != "" && got != rec.DecodedSHA256 {
		return nil, &model.IntegrityError{Field: "patchblob.decoded_sha256", Algorithm: "sha256", Want: rec.DecodedSHA256, Got: got}
	}
	return plain, nil
}
