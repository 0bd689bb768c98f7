package dErrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCode(t *testing.T) {
	t.Run("matches direct error", func(t *testing.T) {
		err := New(CodeForbidden, "not yours")
		assert.True(t, HasCode(err, CodeForbidden))
		assert.False(t, HasCode(err, CodeNotFound))
	})

	t.Run("matches through wrapping", func(t *testing.T) {
		inner := errors.New("row not found")
		err := Wrap(inner, CodeNotFound, "applicant missing")
		assert.True(t, HasCode(err, CodeNotFound))
		assert.True(t, errors.Is(err, inner))
	})

	t.Run("matches through fmt wrapping", func(t *testing.T) {
		err := fmt.Errorf("claim next: %w", New(CodeDuplicate, "email already submitted"))
		assert.True(t, HasCode(err, CodeDuplicate))
	})

	t.Run("plain errors have no code", func(t *testing.T) {
		assert.False(t, HasCode(errors.New("boom"), CodeInternal))
	})
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeDecryption, CodeOf(New(CodeDecryption, "bad ciphertext")))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("unclassified")))
}

func TestWrapNil(t *testing.T) {
	require.NoError(t, Wrap(nil, CodeInternal, "should vanish"))
}

func TestMessageExcludesCause(t *testing.T) {
	err := Wrap(errors.New("pq: deadlock detected"), CodeInternal, "claim failed")
	var de *Error
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "claim failed", de.Message())
	assert.Contains(t, err.Error(), "deadlock")
}
