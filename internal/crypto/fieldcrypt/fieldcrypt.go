// Package fieldcrypt is the codec boundary for PII: ciphertext exists only
// here. Fields are sealed with AES-256-GCM under the keyring's encryption
// key, so encryption is non-deterministic (fresh nonce per call) and
// tampering is detected rather than silently decrypted.
package fieldcrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"fmt"

	dErrors "intake/pkg/domain-errors"

	"intake/internal/crypto/keyring"
)

// Codec encrypts and decrypts individual PII fields and the structured
// custom-fields blob. It is pure with respect to external state.
type Codec struct {
	aead cipher.AEAD
}

// New builds a codec over the keyring's encryption key.
func New(k *keyring.Keyring) (*Codec, error) {
	block, err := aes.NewCipher(k.EncryptionKey())
	if err != nil {
		return nil, fmt.Errorf("fieldcrypt: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("fieldcrypt: %w", err)
	}
	return &Codec{aead: aead}, nil
}

// Encrypt seals plaintext as nonce||ciphertext. Empty plaintext maps to an
// empty ciphertext so optional fields stay absent rather than encrypting "".
func (c *Codec) Encrypt(plaintext []byte) ([]byte, error) {
	if len(plaintext) == 0 {
		return nil, nil
	}
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("fieldcrypt: nonce: %w", err)
	}
	return c.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens nonce||ciphertext. Malformed input or an authentication
// failure (tampering, wrong key) yields a decryption-coded error; corrupted
// plaintext is never returned.
func (c *Codec) Decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) == 0 {
		return nil, nil
	}
	if len(ciphertext) < c.aead.NonceSize() {
		return nil, dErrors.New(dErrors.CodeDecryption, "ciphertext shorter than nonce")
	}
	nonce, sealed := ciphertext[:c.aead.NonceSize()], ciphertext[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeDecryption, "ciphertext failed authentication")
	}
	return plaintext, nil
}

// EncryptString is a convenience wrapper for string-valued PII fields.
func (c *Codec) EncryptString(plaintext string) ([]byte, error) {
	return c.Encrypt([]byte(plaintext))
}

// DecryptString is a convenience wrapper for string-valued PII fields.
func (c *Codec) DecryptString(ciphertext []byte) (string, error) {
	plaintext, err := c.Decrypt(ciphertext)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// EncryptJSON serializes v to canonical JSON and seals the whole blob as one
// unit, so structured custom fields never leak individual keys.
func (c *Codec) EncryptJSON(v any) ([]byte, error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeDataIntegrity, "custom fields are not serializable")
	}
	return c.Encrypt(plaintext)
}

// DecryptJSON opens the blob and parses it back. A parse failure after a
// successful decrypt is a data-integrity error, distinct from a key or
// authentication failure, so operators can tell corruption from rotation.
func (c *Codec) DecryptJSON(ciphertext []byte, v any) error {
	plaintext, err := c.Decrypt(ciphertext)
	if err != nil {
		return err
	}
	if len(plaintext) == 0 {
		return nil
	}
	if err := json.Unmarshal(plaintext, v); err != nil {
		return dErrors.Wrap(err, dErrors.CodeDataIntegrity, "decrypted blob is not valid JSON")
	}
	return nil
}
