// Package auth authenticates staff and manages their sessions. Login
// failures are indistinguishable and constant-cost whether the username
// exists or not; every attempt, good or bad, lands in the audit trail.
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mssola/useragent"

	"intake/internal/access"
	"intake/internal/audit"
	"intake/internal/platform/metrics"
	"intake/internal/staff"
	id "intake/pkg/domain"
	dErrors "intake/pkg/domain-errors"
)

// Authenticator verifies credentials. Implemented by the staff service.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (*staff.Account, error)
}

// LoginHook is notified after a reviewer logs in so the queue can hand them
// work. The login outcome never depends on the hook.
type LoginHook interface {
	AutoClaimOnLogin(ctx context.Context, reviewer access.Actor)
}

// LoginResult is what a successful login returns to the transport layer.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	StaffID   id.StaffID
	Username  string
	Role      id.Role
}

// Service orchestrates login and logout.
type Service struct {
	accounts Authenticator
	tokens   *TokenManager
	sessions SessionStore
	recorder *audit.Recorder
	queue    LoginHook
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithLoginHook(hook LoginHook) Option {
	return func(s *Service) {
		s.queue = hook
	}
}

// NewService constructs a Service.
func NewService(accounts Authenticator, tokens *TokenManager, sessions SessionStore, recorder *audit.Recorder, opts ...Option) *Service {
	s := &Service{
		accounts: accounts,
		tokens:   tokens,
		sessions: sessions,
		recorder: recorder,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Login verifies credentials and issues a session token. The failure path
// audits the attempted username and device but never the password.
func (s *Service) Login(ctx context.Context, username, password, userAgent string) (*LoginResult, error) {
	device := describeDevice(userAgent)

	account, err := s.accounts.Authenticate(ctx, username, password)
	if err != nil {
		if s.metrics != nil {
			s.metrics.AuthFailures.Inc()
		}
		details := fmt.Sprintf("failed login for %q from %s", username, device)
		if auditErr := s.recorder.Record(ctx, nil, nil, audit.ActionLoginFailed, details); auditErr != nil {
			return nil, dErrors.Wrap(auditErr, dErrors.CodeInternal, "failed to record login attempt")
		}
		return nil, err
	}

	token, claims, err := s.tokens.IssueToken(account.ID.String(), account.Username, string(account.Role))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue token")
	}

	session := Session{
		JTI:       claims.ID,
		StaffID:   account.ID.String(),
		Username:  account.Username,
		Role:      string(account.Role),
		Device:    device,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save session")
	}

	details := fmt.Sprintf("login from %s", device)
	if err := s.recorder.Record(ctx, &account.ID, nil, audit.ActionLoginSucceeded, details); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record login")
	}

	if account.Role == id.RoleReviewer && s.queue != nil {
		actor := access.Actor{ID: account.ID, Role: account.Role, Username: account.Username}
		go s.queue.AutoClaimOnLogin(context.WithoutCancel(ctx), actor)
	}

	s.logger.InfoContext(ctx, "staff logged in",
		"staff_id", account.ID,
		"role", account.Role,
	)
	return &LoginResult{
		Token:     token,
		ExpiresAt: claims.ExpiresAt.Time,
		StaffID:   account.ID,
		Username:  account.Username,
		Role:      account.Role,
	}, nil
}

// Logout revokes the presented token's jti. The marker lives exactly as
// long as the token could.
func (s *Service) Logout(ctx context.Context, jti string) error {
	until := time.Now().UTC().Add(s.tokens.TTL())
	if err := s.sessions.Revoke(ctx, jti, until); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke session")
	}
	return nil
}

// describeDevice condenses a User-Agent header for audit details.
func describeDevice(header string) string {
	if header == "" {
		return "unknown device"
	}
	ua := useragent.New(header)
	name, version := ua.Browser()
	if name == "" {
		return "unknown device"
	}
	desc := name
	if version != "" {
		desc += " " + version
	}
	if os := ua.OS(); os != "" {
		desc += " on " + os
	}
	return desc
}
