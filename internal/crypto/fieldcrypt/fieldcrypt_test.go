package fieldcrypt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intake/internal/crypto/keyring"
	dErrors "intake/pkg/domain-errors"
)

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	k, err := keyring.Load(keyring.Config{
		Passphrase:     "test-passphrase",
		KDFSalt:        "test-kdf-salt",
		BlindIndexSalt: "test-index-salt",
	})
	require.NoError(t, err)
	codec, err := New(k)
	require.NoError(t, err)
	return codec
}

func TestRoundTrip(t *testing.T) {
	codec := newTestCodec(t)

	values := []string{
		"12 Main Street",
		"+1 (555) 010-2030",
		"jane@example.com",
		"",
		"multi\nline\nfree text with unicode: åßç",
	}

	for _, v := range values {
		ct, err := codec.EncryptString(v)
		require.NoError(t, err)

		got, err := codec.DecryptString(ct)
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
}

func TestEncrypt_NonDeterministic(t *testing.T) {
	codec := newTestCodec(t)

	a, err := codec.EncryptString("jane@example.com")
	require.NoError(t, err)
	b, err := codec.EncryptString("jane@example.com")
	require.NoError(t, err)

	assert.NotEqual(t, a, b, "identical plaintexts must produce distinct ciphertexts")
}

func TestDecrypt_TamperDetected(t *testing.T) {
	codec := newTestCodec(t)

	ct, err := codec.EncryptString("sensitive value")
	require.NoError(t, err)

	// Flip one byte anywhere in the sealed payload.
	for i := range ct {
		tampered := append([]byte(nil), ct...)
		tampered[i] ^= 0x01

		_, err := codec.Decrypt(tampered)
		require.Errorf(t, err, "byte %d flipped but decrypt succeeded", i)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeDecryption))
	}
}

func TestDecrypt_WrongKey(t *testing.T) {
	codec := newTestCodec(t)

	other, err := keyring.Load(keyring.Config{
		Passphrase:     "different-passphrase",
		KDFSalt:        "test-kdf-salt",
		BlindIndexSalt: "test-index-salt",
	})
	require.NoError(t, err)
	otherCodec, err := New(other)
	require.NoError(t, err)

	ct, err := codec.EncryptString("secret")
	require.NoError(t, err)

	_, err = otherCodec.Decrypt(ct)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeDecryption))
}

func TestDecrypt_Malformed(t *testing.T) {
	codec := newTestCodec(t)

	_, err := codec.Decrypt([]byte{0x01, 0x02})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeDecryption))
}

func TestJSONBlob_RoundTrip(t *testing.T) {
	codec := newTestCodec(t)

	fields := map[string]any{
		"occupation": "engineer",
		"referral":   "jane",
		"interests":  []any{"infrastructure", "security"},
	}

	ct, err := codec.EncryptJSON(fields)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, codec.DecryptJSON(ct, &got))
	assert.Equal(t, fields, got)
}

func TestJSONBlob_IntegrityDistinctFromDecryption(t *testing.T) {
	codec := newTestCodec(t)

	// A valid ciphertext whose plaintext is not JSON: decrypt succeeds,
	// parsing fails, and the error must be data-integrity, not decryption.
	ct, err := codec.Encrypt([]byte("{not json"))
	require.NoError(t, err)

	var got map[string]any
	err = codec.DecryptJSON(ct, &got)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeDataIntegrity))
	assert.False(t, dErrors.HasCode(err, dErrors.CodeDecryption))
}
