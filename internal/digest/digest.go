// Copyright (c) 2026 rhpak team
// rhpak - content-addressed ROM hack package pipeline
// This source code is licensed under the MIT license found in the LICENSE file.

// Package digest computes and verifies the full digest chain recorded in
// manifests. The chain deliberately spans weak and strong algorithms:
// the weak ones (MD5, CRC) exist for compatibility with legacy catalog
// listings, the strong ones carry the actual integrity guarantee, and
// the content identifiers give every artifact a stable name.
package digest

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash/crc32"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
	"github.com/sigurn/crc16"
	"golang.org/x/crypto/sha3"

	"github.com/rhpak/rhpak/internal/model"
)

// shakeLen is the output length of the SHAKE-256 content identifier.
const shakeLen = 32

var crc16Table = crc16.MakeTable(crc16.CRC16_XMODEM)

// Compute derives the full digest set for the given bytes.
func Compute(data []byte) (model.DigestSet, error) {
	sum1 := sha1.Sum(data)
	sum224 := sha256.Sum224(data)
	sum256 := sha256.Sum256(data)
	sumMD5 := md5.Sum(data)

	shake := make([]byte, shakeLen)
	sha3.ShakeSum256(shake, data)

	mh, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return model.DigestSet{}, fmt.Errorf("failed to compute multihash: %w", err)
	}

	return model.DigestSet{
		Length:   int64(len(data)),
		SHA1:     hex.EncodeToString(sum1[:]),
		SHA224:   hex.EncodeToString(sum224[:]),
		SHA256:   hex.EncodeToString(sum256[:]),
		MD5:      hex.EncodeToString(sumMD5[:]),
		CRC16:    fmt.Sprintf("%04x", crc16.Checksum(data, crc16Table)),
		CRC32:    fmt.Sprintf("%08x", crc32.ChecksumIEEE(data)),
		ShakeCID: hex.EncodeToString(shake),
		CIDv0:    cid.NewCidV0(mh).String(),
		CIDv1:    cid.NewCidV1(cid.Raw, mh).String(),
	}, nil
}

// SHA256Hex is a shortcut for the places that only need the primary
// content hash (blob naming, the safety blocklist).
func SHA256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// VerifyAgainst recomputes the digest set for data and compares it to
// the recorded one. The first divergence is returned as an
// IntegrityError naming the manifest field and the algorithm; matching
// raw lengths but differing digests are reported like any other
// mismatch.
func VerifyAgainst(field string, recorded model.DigestSet, data []byte) error {
	computed, err := Compute(data)
	if err != nil {
		return err
	}
	type pair struct {
		algo string
		want string
		got  string
	}
	checks := []pair{
		{"length", fmt.Sprintf("%d", recorded.Length), fmt.Sprintf("%d", computed.Length)},
		{"sha1", recorded.SHA1, computed.SHA1},
		{"sha224", recorded.SHA224, computed.SHA224},
		{"sha256", recorded.SHA256, computed.SHA256},
		{"md5", recorded.MD5, computed.MD5},
		{"crc16", recorded.CRC16, computed.CRC16},
		{"crc32", recorded.CRC32, computed.CRC32},
		{"shake_cid", recorded.ShakeCID, computed.ShakeCID},
		{"cid_v0", recorded.CIDv0, computed.CIDv0},
		{"cid_v1", recorded.CIDv1, computed.CIDv1},
	}
	for _, c := range checks {
		if c.want == "" {
			// Unrecorded algorithms are not part of the chain for this
			// artifact (older manifests recorded fewer digests).
			continue
		}
		if c.want != c.got {
			return &model.IntegrityError{Field: field, Algorithm: c.algo, Want: c.want, Got: c.got}
		}
	}
	return nil
}
