// Package email holds small helpers for working with email-shaped
// identifiers: canonical normalization and display-name derivation.
package email

import (
	"strings"
	"unicode"
)

// Normalize lowercases an identifier and strips surrounding whitespace.
// Two submissions that differ only in case or padding normalize to the
// same value, which is what duplicate detection keys on.
func Normalize(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}

// DeriveDisplayName builds a human-readable name from a username or
// email address, splitting the local part on common separators:
// "jane.doe@example.org" becomes "Jane Doe". Used as a fallback when an
// account is provisioned without an explicit display name.
func DeriveDisplayName(identifier string) string {
	localPart := identifier
	if at := strings.IndexByte(identifier, '@'); at > 0 {
		localPart = identifier[:at]
	}

	parts := strings.FieldsFunc(localPart, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == '+'
	})
	if len(parts) == 0 {
		return identifier
	}

	for i, p := range parts {
		parts[i] = capitalize(p)
	}
	return strings.Join(parts, " ")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}

	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
