package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"intake/internal/platform/middleware"
	dErrors "intake/pkg/domain-errors"
)

// Claims is the token payload. Subject carries the staff id; the role and
// username ride along so the middleware never needs a store lookup.
type Claims struct {
	jwt.RegisteredClaims
	Role     string `json:"role"`
	Username string `json:"username"`
}

// TokenManager issues and validates HS256 session tokens.
type TokenManager struct {
	signingKey []byte
	ttl        time.Duration
}

func NewTokenManager(signingKey []byte, ttl time.Duration) *TokenManager {
	return &TokenManager{signingKey: signingKey, ttl: ttl}
}

func (m *TokenManager) TTL() time.Duration { return m.ttl }

// IssueToken mints a token for the authenticated account and returns the
// signed string along with its claims.
func (m *TokenManager) IssueToken(staffID, username, role string) (string, *Claims, error) {
	now := time.Now().UTC()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   staffID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
		Role:     role,
		Username: username,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.signingKey)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return signed, claims, nil
}

// ValidateToken parses and verifies a bearer token. Implements
// middleware.TokenValidator.
func (m *TokenManager) ValidateToken(tokenString string) (*middleware.TokenClaims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return m.signingKey, nil
		},
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid token")
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "token missing required claims")
	}
	return &middleware.TokenClaims{
		StaffID:  claims.Subject,
		Role:     claims.Role,
		Username: claims.Username,
		JTI:      claims.ID,
	}, nil
}
