package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"intake/internal/access"
	"intake/internal/audit"
	"intake/internal/staff"
	id "intake/pkg/domain"
	dErrors "intake/pkg/domain-errors"
)

const chromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

type ServiceSuite struct {
	suite.Suite
	ctx      context.Context
	staffSvc *staff.Service
	auditlog *audit.InMemoryStore
	sessions *InMemorySessionStore
	tokens   *TokenManager
	hook     *claimRecorder
	svc      *Service
	admin    id.StaffID
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.auditlog = audit.NewInMemoryStore()
	recorder := audit.NewRecorder(s.auditlog)
	s.staffSvc = staff.NewService(staff.NewInMemoryStore(), recorder, staff.WithBcryptCost(bcrypt.MinCost))
	s.sessions = NewInMemorySessionStore()
	s.tokens = NewTokenManager([]byte("0123456789abcdef0123456789abcdef"), time.Hour)
	s.hook = &claimRecorder{}
	s.svc = NewService(s.staffSvc, s.tokens, s.sessions, recorder, WithLoginHook(s.hook))
	s.admin = id.NewStaffID()
}

type claimRecorder struct {
	mu     sync.Mutex
	actors []access.Actor
	done   chan struct{}
}

func (c *claimRecorder) AutoClaimOnLogin(_ context.Context, reviewer access.Actor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.actors = append(c.actors, reviewer)
	if c.done != nil {
		close(c.done)
	}
}

func (s *ServiceSuite) createStaff(username string, role id.Role) *staff.Account {
	account, err := s.staffSvc.Create(s.ctx, s.admin, username, "s3cretpass", role, "")
	s.Require().NoError(err)
	return account
}

func (s *ServiceSuite) lastEntry() audit.Entry {
	entries, err := s.auditlog.List(s.ctx, audit.Query{})
	s.Require().NoError(err)
	s.Require().NotEmpty(entries)
	return entries[len(entries)-1]
}

func (s *ServiceSuite) TestLoginIssuesValidToken() {
	account := s.createStaff("jdoe", id.RoleAdmin)

	result, err := s.svc.Login(s.ctx, "jdoe", "s3cretpass", chromeUA)
	s.Require().NoError(err)
	s.Equal(account.ID, result.StaffID)
	s.Equal(id.RoleAdmin, result.Role)
	s.WithinDuration(time.Now().Add(time.Hour), result.ExpiresAt, time.Minute)

	claims, err := s.tokens.ValidateToken(result.Token)
	s.Require().NoError(err)
	s.Equal(account.ID.String(), claims.StaffID)
	s.Equal("ADMIN", claims.Role)
	s.Equal("jdoe", claims.Username)
	s.NotEmpty(claims.JTI)

	entry := s.lastEntry()
	s.Equal(audit.ActionLoginSucceeded, entry.Action)
	s.Equal(&account.ID, entry.ActorID)
	s.Contains(entry.Details, "Chrome")
	s.Contains(entry.Details, "Windows")
}

func (s *ServiceSuite) TestLoginFailureAuditsWithoutPassword() {
	s.createStaff("jdoe", id.RoleReviewer)

	_, err := s.svc.Login(s.ctx, "jdoe", "hunter2-wrong", chromeUA)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

	entry := s.lastEntry()
	s.Equal(audit.ActionLoginFailed, entry.Action)
	s.Nil(entry.ActorID)
	s.Contains(entry.Details, `"jdoe"`)
	s.NotContains(entry.Details, "hunter2")
}

func (s *ServiceSuite) TestLoginUnknownUserFailsIdentically() {
	s.createStaff("jdoe", id.RoleReviewer)

	_, errWrongPass := s.svc.Login(s.ctx, "jdoe", "wrongpass1", chromeUA)
	_, errNoUser := s.svc.Login(s.ctx, "ghost", "wrongpass1", chromeUA)

	s.Require().Error(errWrongPass)
	s.Require().Error(errNoUser)
	s.Equal(errWrongPass.Error(), errNoUser.Error())
}

func (s *ServiceSuite) TestReviewerLoginTriggersAutoClaim() {
	account := s.createStaff("rev", id.RoleReviewer)
	s.hook.done = make(chan struct{})

	_, err := s.svc.Login(s.ctx, "rev", "s3cretpass", chromeUA)
	s.Require().NoError(err)

	select {
	case <-s.hook.done:
	case <-time.After(time.Second):
		s.FailNow("auto-claim hook was not called")
	}
	s.hook.mu.Lock()
	defer s.hook.mu.Unlock()
	s.Require().Len(s.hook.actors, 1)
	s.Equal(account.ID, s.hook.actors[0].ID)
	s.Equal("rev", s.hook.actors[0].Username)
}

func (s *ServiceSuite) TestAdminLoginDoesNotAutoClaim() {
	s.createStaff("boss", id.RoleAdmin)

	_, err := s.svc.Login(s.ctx, "boss", "s3cretpass", chromeUA)
	s.Require().NoError(err)

	time.Sleep(50 * time.Millisecond)
	s.hook.mu.Lock()
	defer s.hook.mu.Unlock()
	s.Empty(s.hook.actors)
}

func (s *ServiceSuite) TestLogoutRevokesToken() {
	s.createStaff("jdoe", id.RoleAdmin)

	result, err := s.svc.Login(s.ctx, "jdoe", "s3cretpass", chromeUA)
	s.Require().NoError(err)
	claims, err := s.tokens.ValidateToken(result.Token)
	s.Require().NoError(err)

	revoked, err := s.sessions.IsRevoked(s.ctx, claims.JTI)
	s.Require().NoError(err)
	s.False(revoked)

	s.Require().NoError(s.svc.Logout(s.ctx, claims.JTI))

	revoked, err = s.sessions.IsRevoked(s.ctx, claims.JTI)
	s.Require().NoError(err)
	s.True(revoked)

	// The token itself still parses; revocation is the middleware's job.
	_, err = s.tokens.ValidateToken(result.Token)
	s.NoError(err)
}

func TestValidateTokenRejectsForgeries(t *testing.T) {
	tokens := NewTokenManager([]byte("0123456789abcdef0123456789abcdef"), time.Hour)

	signed, _, err := tokens.IssueToken(id.NewStaffID().String(), "jdoe", "REVIEWER")
	require.NoError(t, err)

	t.Run("wrong key", func(t *testing.T) {
		other := NewTokenManager([]byte("another-signing-key-entirely!!!!"), time.Hour)
		_, err := other.ValidateToken(signed)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := tokens.ValidateToken("not.a.token")
		require.Error(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		shortLived := NewTokenManager([]byte("0123456789abcdef0123456789abcdef"), -time.Minute)
		signed, _, err := shortLived.IssueToken(id.NewStaffID().String(), "jdoe", "REVIEWER")
		require.NoError(t, err)
		_, err = tokens.ValidateToken(signed)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func TestDescribeDevice(t *testing.T) {
	assert.Equal(t, "unknown device", describeDevice(""))

	desc := describeDevice(chromeUA)
	assert.Contains(t, desc, "Chrome")
	assert.Contains(t, desc, "on Windows")
}
