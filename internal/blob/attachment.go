// Copyright (c) 2026 rhpak team
// rhpak - content-addressed ROM hack package pipeline
// This source code is licensed under the MIT license found in the LICENSE file.

package blob

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/rhpak/rhpak/internal/digest"
	"github.com/rhpak/rhpak/internal/model"
)

// Resources and screenshots are encrypted individually but not
// compressed; they are typically already-compressed media.

// Seal encrypts one attachment payload and fills in the entry's digest
// records. A nil key means a freshly generated one.
func Seal(entry model.MediaEntry, plain, key []byte) (model.MediaEntry, []byte, error) {
	if key == nil {
		k, err := NewKey()
		if err != nil {
			return entry, nil, err
		}
		key = k
	}
	if len(key) != KeySize {
		return entry, nil, &model.ValidationError{Field: "attachment.key", Reason: fmt.Sprintf("key must be %d bytes, got %d", KeySize, len(key))}
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return entry, nil, fmt.Errorf("failed to initialize cipher: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return entry, nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	cipher := aead.Seal(nonce, nonce, plain, nil)

	plainDigests, err := digest.Compute(plain)
	if err != nil {
		return entry, nil, err
	}
	entry.Key = hex.EncodeToString(key)
	entry.PlainDigests = plainDigests
	entry.CipherSHA256 = digest.SHA256Hex(cipher)
	return entry, cipher, nil
}

// Open decrypts one attachment payload and verifies both digest chains.
func Open(entry model.MediaEntry, cipher []byte) ([]byte, error) {
	field := "attachment " + entry.Name
	if got := digest.SHA256Hex(cipher); entry.CipherSHA256 != "" && got != entry.CipherSHA256 {
		return nil, &model.IntegrityError{Field: field + " (cipher)", Algorithm: "sha256", Want: entry.CipherSHA256, Got: got}
	}
	key, err := hex.DecodeString(entry.Key)
	if err != nil || len(key) != KeySize {
		return nil, &model.ValidationError{Field: field, Reason: "malformed symmetric key"}
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cipher: %w", err)
	}
	if len(cipher) < aead.NonceSize() {
		return nil, &model.IntegrityError{Field: field, Algorithm: "xchacha20", Want: fmt.Sprintf(">=%d bytes", aead.NonceSize()), Got: fmt.Sprintf("%d bytes", len(cipher))}
	}
	nonce, sealed := cipher[:aead.NonceSize()], cipher[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, &model.IntegrityError{Field: field, Algorithm: "poly1305", Want: "valid authentication tag", Got: "tag mismatch"}
	}
	if err := digest.VerifyAgainst(field, entry.PlainDigests, plain); err != nil {
		return nil, err
	}
	return plain, nil
}
