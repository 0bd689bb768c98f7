package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	platformredis "intake/internal/platform/redis"
)

// Session is one issued token's server-side record.
type Session struct {
	JTI       string    `json:"jti"`
	StaffID   string    `json:"staff_id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Device    string    `json:"device"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionStore tracks live sessions and revocations. IsRevoked satisfies
// middleware.RevocationChecker. Revocation markers only need to outlive the
// token, so both implementations expire them at the token's deadline.
type SessionStore interface {
	Save(ctx context.Context, s Session) error
	Revoke(ctx context.Context, jti string, until time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// InMemorySessionStore backs unit tests and single-node development runs.
type InMemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
	revoked  map[string]time.Time
}

func NewInMemorySessionStore() *InMemorySessionStore {
	return &InMemorySessionStore{
		sessions: make(map[string]Session),
		revoked:  make(map[string]time.Time),
	}
}

func (s *InMemorySessionStore) Save(_ context.Context, session Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.JTI] = session
	return nil
}

func (s *InMemorySessionStore) Revoke(_ context.Context, jti string, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, jti)
	s.revoked[jti] = until
	return nil
}

func (s *InMemorySessionStore) IsRevoked(_ context.Context, jti string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	until, ok := s.revoked[jti]
	return ok && time.Now().Before(until), nil
}

// RedisSessionStore keys sessions and revocation markers by jti with TTLs
// matching the token lifetime, so expired state cleans itself up.
type RedisSessionStore struct {
	client *platformredis.Client
}

func NewRedisSessionStore(client *platformredis.Client) *RedisSessionStore {
	return &RedisSessionStore{client: client}
}

func sessionKey(jti string) string { return "intake:session:" + jti }
func revokedKey(jti string) string { return "intake:revoked:" + jti }

func (s *RedisSessionStore) Save(ctx context.Context, session Session) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	if err := s.client.Set(ctx, sessionKey(session.JTI), payload, ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) Revoke(ctx context.Context, jti string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, sessionKey(jti))
	pipe.Set(ctx, revokedKey(jti), "1", ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := s.client.Exists(ctx, revokedKey(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("check revocation: %w", err)
	}
	return n > 0, nil
}
