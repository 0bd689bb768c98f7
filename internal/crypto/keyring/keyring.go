// Package keyring holds the process-wide secret material. It is loaded once
// at startup from external configuration and is read-only afterwards, so no
// locking is required; other components hold a read-only handle.
package keyring

import (
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/argon2"
)

const keyLen = 32

// Keyring carries the AES key for PII field encryption and the salt keying
// the email blind index. There is no runtime rotation path; rotating either
// value requires an explicit re-encryption migration.
type Keyring struct {
	encryptionKey  []byte
	blindIndexSalt []byte
}

// Config is the secret material handed in from the environment.
type Config struct {
	// MasterKeyHex is a 64-char hex AES-256 key. Takes precedence when set.
	MasterKeyHex string
	// Passphrase and KDFSalt derive the key via argon2id when no raw key is
	// provided.
	Passphrase string
	KDFSalt    string

	BlindIndexSalt string
}

// Load validates the secret material and builds the keyring.
func Load(cfg Config) (*Keyring, error) {
	if cfg.BlindIndexSalt == "" {
		return nil, fmt.Errorf("keyring: blind index salt is required")
	}

	var key []byte
	switch {
	case cfg.MasterKeyHex != "":
		decoded, err := hex.DecodeString(cfg.MasterKeyHex)
		if err != nil {
			return nil, fmt.Errorf("keyring: master key is not valid hex: %w", err)
		}
		if len(decoded) != keyLen {
			return nil, fmt.Errorf("keyring: master key must be %d bytes, got %d", keyLen, len(decoded))
		}
		key = decoded
	case cfg.Passphrase != "" && cfg.KDFSalt != "":
		key = deriveKey([]byte(cfg.Passphrase), []byte(cfg.KDFSalt))
	default:
		return nil, fmt.Errorf("keyring: either a master key or a passphrase with KDF salt is required")
	}

	return &Keyring{
		encryptionKey:  key,
		blindIndexSalt: []byte(cfg.BlindIndexSalt),
	}, nil
}

// deriveKey stretches a passphrase into an AES-256 key with argon2id.
func deriveKey(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, 1, 64*1024, 4, keyLen)
}

// EncryptionKey returns the AES key for field encryption. Callers must not
// mutate the returned slice.
func (k *Keyring) EncryptionKey() []byte { return k.encryptionKey }

// BlindIndexSalt returns the salt keying the blind index HMAC. Callers must
// not mutate the returned slice.
func (k *Keyring) BlindIndexSalt() []byte { return k.blindIndexSalt }

// Zero wipes key material. Call at process shutdown; the keyring is unusable
// afterwards.
func (k *Keyring) Zero() {
	for i := range k.encryptionKey {
		k.encryptionKey[i] = 0
	}
	for i := range k.blindIndexSalt {
		k.blindIndexSalt[i] = 0
	}
}
