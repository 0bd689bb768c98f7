// Package blindindex derives a one-way token from a normalized identifier so
// duplicate submissions can be detected by equality lookup without decrypting
// anything. The transform is an HMAC keyed by a secret salt: deterministic
// for a given salt, not reversible, and not reproducible without the salt.
package blindindex

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"intake/internal/crypto/keyring"
	"intake/pkg/email"
)

// Indexer computes blind index tokens for equality lookup. Never use the
// output for range queries; ordering of tokens carries no meaning.
type Indexer struct {
	salt []byte
}

// New builds an indexer over the keyring's blind index salt.
func New(k *keyring.Keyring) *Indexer {
	return &Indexer{salt: k.BlindIndexSalt()}
}

// Index returns a fixed-length hex token for the identifier. Case and
// surrounding whitespace are normalized first, so " Jane@X.com " and
// "jane@x.com" index identically. Empty input yields an empty token,
// matching the record invariant that the index is present iff the field was
// supplied.
func (i *Indexer) Index(identifier string) string {
	normalized := email.Normalize(identifier)
	if normalized == "" {
		return ""
	}
	mac := hmac.New(sha256.New, i.salt)
	mac.Write([]byte(normalized))
	return hex.EncodeToString(mac.Sum(nil))
}
