// Package identity maps external user ids to the opaque identities stored with
// posts, reactions and admin flags.
package identity

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"hash"
)

// ErrEmptyID is returned for an empty raw id.
var ErrEmptyID = errors.New("identity: empty user id")

// Hasher derives identities. The zero value hashes with plain SHA-256.
type Hasher struct {
	salt []byte
}

// NewHasher returns a Hasher keyed by salt. An empty salt yields plain SHA-256
// digests of the raw id.
func NewHasher(salt string) *Hasher {
	return &Hasher{salt: []byte(salt)}
}

// Hash returns the hex digest identity for rawID.
func (h *Hasher) Hash(rawID string) (string, error) {
	if rawID == "" {
		return "", ErrEmptyID
	}

	var mac hash.Hash
	if len(h.salt) == 0 {
		mac = sha256.New()
	} else {
		mac = hmac.New(sha256.New, h.salt)
	}
	if _, err := mac.Write([]byte(rawID)); err != nil {
		return "", err
	}
	return hex.EncodeToString(mac.Sum(nil)), nil
}
