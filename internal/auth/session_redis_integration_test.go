//go:build integration

package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intake/internal/auth"
	platformredis "intake/internal/platform/redis"
	"intake/pkg/testutil/containers"
)

func newRedisSessions(t *testing.T) *auth.RedisSessionStore {
	rc := containers.NewRedisContainer(t)
	t.Cleanup(func() {
		_ = rc.FlushAll(context.Background())
		_ = rc.Client.Close()
	})

	client, err := platformredis.New(rc.Addr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return auth.NewRedisSessionStore(client)
}

func TestRedisSessionLifecycle(t *testing.T) {
	sessions := newRedisSessions(t)
	ctx := context.Background()

	now := time.Now().UTC()
	session := auth.Session{
		JTI:       "session-jti-1",
		StaffID:   "staff-1",
		Username:  "jdoe",
		Role:      "REVIEWER",
		Device:    "Chrome 120 on Windows",
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Hour),
	}
	require.NoError(t, sessions.Save(ctx, session))

	revoked, err := sessions.IsRevoked(ctx, session.JTI)
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, sessions.Revoke(ctx, session.JTI, now.Add(time.Hour)))

	revoked, err = sessions.IsRevoked(ctx, session.JTI)
	require.NoError(t, err)
	assert.True(t, revoked)

	// Unknown tokens are simply not revoked.
	revoked, err = sessions.IsRevoked(ctx, "never-issued")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestRedisRevocationExpires(t *testing.T) {
	sessions := newRedisSessions(t)
	ctx := context.Background()

	// A revocation horizon in the past needs no marker; the token is
	// already dead by expiry.
	require.NoError(t, sessions.Revoke(ctx, "expired-jti", time.Now().Add(-time.Minute)))
	revoked, err := sessions.IsRevoked(ctx, "expired-jti")
	require.NoError(t, err)
	assert.False(t, revoked)
}
