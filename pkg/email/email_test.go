package email

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "jane@example.org", Normalize("  Jane@Example.ORG "))
	assert.Equal(t, "", Normalize("   "))
}

func TestDeriveDisplayName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"jane.doe@example.org", "Jane Doe"},
		{"jane_doe", "Jane Doe"},
		{"reviewer-two+test@example.org", "Reviewer Two Test"},
		{"admin", "Admin"},
		{"@example.org", "@example.org"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DeriveDisplayName(tt.in), tt.in)
	}
}
