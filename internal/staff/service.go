package staff

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"intake/internal/audit"
	id "intake/pkg/domain"
	dErrors "intake/pkg/domain-errors"
	"intake/pkg/email"
	"intake/pkg/platform/sentinel"
)

const (
	minUsernameLen = 3
	minPasswordLen = 8
)

// Service owns account lifecycle rules: validation, password hashing,
// role immutability, and the self-delete guard. Every mutation is audited.
type Service struct {
	store      Store
	recorder   *audit.Recorder
	logger     *slog.Logger
	bcryptCost int
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		s.bcryptCost = cost
	}
}

// NewService constructs a Service.
func NewService(store Store, recorder *audit.Recorder, opts ...Option) *Service {
	s := &Service{
		store:      store,
		recorder:   recorder,
		logger:     slog.Default(),
		bcryptCost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create provisions a new account. The role is fixed at creation and cannot
// be changed afterwards; promoting someone means issuing a new account.
func (s *Service) Create(ctx context.Context, actor id.StaffID, username, password string, role id.Role, displayName string) (*Account, error) {
	username = strings.TrimSpace(username)
	if len(username) < minUsernameLen {
		return nil, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("username must be at least %d characters", minUsernameLen))
	}
	if len(password) < minPasswordLen {
		return nil, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("password must be at least %d characters", minPasswordLen))
	}
	if !role.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("unknown role %q", role))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash password")
	}

	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName = email.DeriveDisplayName(username)
	}

	now := time.Now().UTC()
	account := &Account{
		ID:           id.NewStaffID(),
		Username:     username,
		PasswordHash: string(hash),
		Role:         role,
		DisplayName:  displayName,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.store.Create(ctx, account); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "username already taken")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create account")
	}

	details := fmt.Sprintf("created account %s with role %s", account.Username, account.Role)
	if err := s.recorder.Record(ctx, &actor, nil, audit.ActionAccountCreated, details); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record account creation")
	}

	s.logger.InfoContext(ctx, "staff account created",
		"staff_id", account.ID,
		"role", account.Role,
	)
	return account, nil
}

// Get returns one account.
func (s *Service) Get(ctx context.Context, staffID id.StaffID) (*Account, error) {
	account, err := s.store.FindByID(ctx, staffID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "account not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load account")
	}
	return account, nil
}

// List returns all accounts sorted by username.
func (s *Service) List(ctx context.Context) ([]*Account, error) {
	accounts, err := s.store.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list accounts")
	}
	return accounts, nil
}

// Update applies the mutable fields of an account. Username and role are not
// part of Update by construction, so immutability holds without a check here.
func (s *Service) Update(ctx context.Context, actor id.StaffID, staffID id.StaffID, upd Update) (*Account, error) {
	account, err := s.store.FindByID(ctx, staffID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "account not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load account")
	}

	var changed []string
	if upd.DisplayName != nil {
		account.DisplayName = strings.TrimSpace(*upd.DisplayName)
		changed = append(changed, "display_name")
	}
	if upd.Password != nil {
		if len(*upd.Password) < minPasswordLen {
			return nil, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("password must be at least %d characters", minPasswordLen))
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*upd.Password), s.bcryptCost)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash password")
		}
		account.PasswordHash = string(hash)
		changed = append(changed, "password")
	}
	if upd.Active != nil {
		account.Active = *upd.Active
		changed = append(changed, "active")
	}
	if len(changed) == 0 {
		return account, nil
	}
	account.UpdatedAt = time.Now().UTC()

	if err := s.store.Update(ctx, account); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "account not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update account")
	}

	details := fmt.Sprintf("updated account %s: %s", account.Username, strings.Join(changed, ", "))
	if err := s.recorder.Record(ctx, &actor, nil, audit.ActionAccountUpdated, details); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record account update")
	}
	return account, nil
}

// Delete removes an account. An admin cannot delete their own account, which
// guarantees at least one admin always remains reachable. An account that
// still owns assigned applications is refused until those assignments are
// reclaimed or reassigned.
func (s *Service) Delete(ctx context.Context, actor id.StaffID, staffID id.StaffID) error {
	if actor == staffID {
		return dErrors.New(dErrors.CodeInvariantViolation, "cannot delete your own account")
	}

	account, err := s.store.FindByID(ctx, staffID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "account not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load account")
	}

	if err := s.store.Delete(ctx, staffID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "account not found")
		}
		if errors.Is(err, sentinel.ErrConflict) {
			return dErrors.New(dErrors.CodeConflict, "account still owns assigned applications")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete account")
	}

	details := fmt.Sprintf("deleted account %s", account.Username)
	if err := s.recorder.Record(ctx, &actor, nil, audit.ActionAccountDeleted, details); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record account deletion")
	}

	s.logger.InfoContext(ctx, "staff account deleted", "staff_id", staffID)
	return nil
}

// Bootstrap creates the initial admin account when the store is empty. It is
// a no-op on an already-provisioned system, so it is safe to run on every
// startup.
func (s *Service) Bootstrap(ctx context.Context, username, password string) error {
	count, err := s.store.Count(ctx)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to count accounts")
	}
	if count > 0 {
		return nil
	}
	if username == "" || password == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "bootstrap admin credentials are not configured")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash password")
	}

	now := time.Now().UTC()
	account := &Account{
		ID:           id.NewStaffID(),
		Username:     username,
		PasswordHash: string(hash),
		Role:         id.RoleAdmin,
		DisplayName:  username,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Create(ctx, account); err != nil {
		// A concurrent replica may have won the race; that is fine.
		if errors.Is(err, sentinel.ErrConflict) {
			return nil
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create bootstrap admin")
	}

	details := fmt.Sprintf("created account %s with role %s", account.Username, account.Role)
	if err := s.recorder.Record(ctx, nil, nil, audit.ActionAccountCreated, details); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record bootstrap admin creation")
	}

	s.logger.InfoContext(ctx, "bootstrap admin created", "staff_id", account.ID)
	return nil
}

// Authenticate verifies a username/password pair and returns the account.
// A missing user and a wrong password are indistinguishable to the caller,
// and both cost one bcrypt comparison.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*Account, error) {
	account, err := s.store.FindByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			// Burn a comparison so response time does not reveal existence.
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load account")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}
	if !account.Active {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}
	return account, nil
}

// dummyHash is a valid bcrypt hash of an unguessable value, used to equalize
// timing when the username does not exist.
var dummyHash = []byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy")
