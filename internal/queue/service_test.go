package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"intake/internal/access"
	"intake/internal/applicant"
	"intake/internal/audit"
	id "intake/pkg/domain"
	dErrors "intake/pkg/domain-errors"
	"intake/pkg/platform/sentinel"
)

const testThreshold = 168 * time.Hour

type ServiceSuite struct {
	suite.Suite
	ctx      context.Context
	store    *applicant.InMemoryStore
	auditlog *audit.InMemoryStore
	roster   map[id.StaffID]*RosterEntry
	svc      *Service
	clock    time.Time
	admin    access.Actor
	reviewer access.Actor
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = applicant.NewInMemoryStore()
	s.auditlog = audit.NewInMemoryStore()
	s.roster = make(map[id.StaffID]*RosterEntry)
	s.clock = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	directory := DirectoryFunc(func(_ context.Context, staffID id.StaffID) (*RosterEntry, error) {
		entry, ok := s.roster[staffID]
		if !ok {
			return nil, sentinel.ErrNotFound
		}
		return entry, nil
	})
	s.svc = NewService(s.store, directory, audit.NewRecorder(s.auditlog), testThreshold,
		WithClock(func() time.Time { return s.clock }))

	s.admin = access.Actor{ID: id.NewStaffID(), Role: id.RoleAdmin, Username: "root"}
	s.reviewer = s.addReviewer("rev")
}

func (s *ServiceSuite) addReviewer(username string) access.Actor {
	staffID := id.NewStaffID()
	s.roster[staffID] = &RosterEntry{ID: staffID, Username: username, Role: id.RoleReviewer, Active: true}
	return access.Actor{ID: staffID, Role: id.RoleReviewer, Username: username}
}

func (s *ServiceSuite) addPending(createdAt time.Time) id.ApplicantID {
	a := &applicant.Applicant{
		ID:        id.NewApplicantID(),
		FirstName: "Jane",
		LastName:  "Doe",
		Status:    applicant.StatusPending,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	s.Require().NoError(s.store.Create(s.ctx, a))
	return a.ID
}

func (s *ServiceSuite) auditActions() []audit.Action {
	entries, err := s.auditlog.List(s.ctx, audit.Query{})
	s.Require().NoError(err)
	out := make([]audit.Action, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Action)
	}
	return out
}

func (s *ServiceSuite) TestClaimNextFIFO() {
	base := s.clock.Add(-time.Hour)
	first := s.addPending(base)
	second := s.addPending(base.Add(time.Minute))
	third := s.addPending(base.Add(2 * time.Minute))

	for i, want := range []id.ApplicantID{first, second, third} {
		sum, err := s.svc.ClaimNext(s.ctx, s.reviewer)
		s.Require().NoError(err, "claim %d", i)
		s.Equal(want, sum.ID)
		s.Equal(applicant.StatusAssigned, sum.Status)
		s.Equal(&s.reviewer.ID, sum.AssignedTo)
	}

	s.Equal([]audit.Action{
		audit.ActionAutoAssigned, audit.ActionAutoAssigned, audit.ActionAutoAssigned,
	}, s.auditActions())
}

func (s *ServiceSuite) TestClaimNextEmptyQueue() {
	_, err := s.svc.ClaimNext(s.ctx, s.reviewer)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	s.Empty(s.auditActions())
}

// Many reviewers racing over a small queue: every pending record is claimed
// exactly once and every other claimant sees an empty queue.
func (s *ServiceSuite) TestConcurrentClaimsNoDoubleAssignment() {
	const pending, claimants = 10, 50

	base := s.clock.Add(-time.Hour)
	for i := 0; i < pending; i++ {
		s.addPending(base.Add(time.Duration(i) * time.Second))
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		claimed []id.ApplicantID
		empty   int
	)
	for i := 0; i < claimants; i++ {
		wg.Add(1)
		reviewer := s.addReviewer("rev-" + id.NewStaffID().String())
		go func() {
			defer wg.Done()
			sum, err := s.svc.ClaimNext(s.ctx, reviewer)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if dErrors.HasCode(err, dErrors.CodeNotFound) {
					empty++
				}
				return
			}
			claimed = append(claimed, sum.ID)
		}()
	}
	wg.Wait()

	s.Len(claimed, pending)
	s.Equal(claimants-pending, empty)

	seen := map[id.ApplicantID]bool{}
	for _, applicantID := range claimed {
		s.False(seen[applicantID], "applicant %s claimed twice", applicantID)
		seen[applicantID] = true
	}
}

func (s *ServiceSuite) TestClaimSweepsStaleAssignmentsFirst() {
	staleID := s.addPending(s.clock.Add(-30 * 24 * time.Hour))
	other := s.addReviewer("other")
	_, err := s.store.AssignIfClaimable(s.ctx, staleID, other.ID, s.clock.Add(-testThreshold-time.Hour))
	s.Require().NoError(err)

	sum, err := s.svc.ClaimNext(s.ctx, s.reviewer)
	s.Require().NoError(err)
	s.Equal(staleID, sum.ID)
	s.Equal(&s.reviewer.ID, sum.AssignedTo)

	s.Equal([]audit.Action{audit.ActionAssignmentReclaimed, audit.ActionAutoAssigned}, s.auditActions())
}

func (s *ServiceSuite) TestReclaimStaleBoundary() {
	// Strictly older than the threshold is stale; exactly at it is not.
	staleID := s.addPending(s.clock.Add(-30 * 24 * time.Hour))
	_, err := s.store.AssignIfClaimable(s.ctx, staleID, s.reviewer.ID, s.clock.Add(-testThreshold-time.Second))
	s.Require().NoError(err)
	freshID := s.addPending(s.clock.Add(-30 * 24 * time.Hour))
	_, err = s.store.AssignIfClaimable(s.ctx, freshID, s.reviewer.ID, s.clock.Add(-testThreshold))
	s.Require().NoError(err)

	count, err := s.svc.ReclaimStale(s.ctx, s.admin)
	s.Require().NoError(err)
	s.Equal(1, count)

	stale, err := s.store.FindByID(s.ctx, staleID)
	s.Require().NoError(err)
	s.Equal(applicant.StatusPending, stale.Status)
	s.Nil(stale.AssignedTo)

	fresh, err := s.store.FindByID(s.ctx, freshID)
	s.Require().NoError(err)
	s.Equal(applicant.StatusAssigned, fresh.Status)

	s.Equal([]audit.Action{audit.ActionAssignmentReclaimedByOp}, s.auditActions())
}

func (s *ServiceSuite) TestReclaimStaleRequiresAdmin() {
	_, err := s.svc.ReclaimStale(s.ctx, s.reviewer)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

func (s *ServiceSuite) TestManualAssign() {
	applicantID := s.addPending(s.clock.Add(-time.Hour))

	sum, err := s.svc.ManualAssign(s.ctx, s.admin, applicantID, s.reviewer.ID)
	s.Require().NoError(err)
	s.Equal(applicant.StatusAssigned, sum.Status)
	s.Equal(&s.reviewer.ID, sum.AssignedTo)

	s.Equal([]audit.Action{audit.ActionAssigned}, s.auditActions())
}

func (s *ServiceSuite) TestManualAssignTakesOverAssignedRecord() {
	applicantID := s.addPending(s.clock.Add(-time.Hour))
	other := s.addReviewer("other")
	_, err := s.store.AssignIfClaimable(s.ctx, applicantID, other.ID, s.clock)
	s.Require().NoError(err)

	sum, err := s.svc.ManualAssign(s.ctx, s.admin, applicantID, s.reviewer.ID)
	s.Require().NoError(err)
	s.Equal(&s.reviewer.ID, sum.AssignedTo)
}

func (s *ServiceSuite) TestManualAssignRejectsDecidedRecord() {
	applicantID := s.addPending(s.clock.Add(-time.Hour))
	_, err := s.store.AssignIfClaimable(s.ctx, applicantID, s.reviewer.ID, s.clock)
	s.Require().NoError(err)
	_, err = s.store.TransitionStatus(s.ctx, applicantID, applicant.StatusAssigned, applicant.StatusApproved, false, s.clock)
	s.Require().NoError(err)

	_, err = s.svc.ManualAssign(s.ctx, s.admin, applicantID, s.reviewer.ID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *ServiceSuite) TestManualAssignValidatesTarget() {
	applicantID := s.addPending(s.clock.Add(-time.Hour))

	_, err := s.svc.ManualAssign(s.ctx, s.admin, applicantID, id.NewStaffID())
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

	inactive := s.addReviewer("gone")
	s.roster[inactive.ID].Active = false
	_, err = s.svc.ManualAssign(s.ctx, s.admin, applicantID, inactive.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

	adminEntry := id.NewStaffID()
	s.roster[adminEntry] = &RosterEntry{ID: adminEntry, Username: "boss", Role: id.RoleAdmin, Active: true}
	_, err = s.svc.ManualAssign(s.ctx, s.admin, applicantID, adminEntry)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *ServiceSuite) TestManualAssignRequiresAdmin() {
	applicantID := s.addPending(s.clock.Add(-time.Hour))

	_, err := s.svc.ManualAssign(s.ctx, s.reviewer, applicantID, s.reviewer.ID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

func (s *ServiceSuite) TestAutoClaimSwallowsEmptyQueue() {
	// Must not panic or audit anything when there is nothing to claim.
	s.svc.AutoClaimOnLogin(s.ctx, s.reviewer)
	s.Empty(s.auditActions())

	applicantID := s.addPending(s.clock.Add(-time.Hour))
	s.svc.AutoClaimOnDecision(s.ctx, s.reviewer)

	a, err := s.store.FindByID(s.ctx, applicantID)
	s.Require().NoError(err)
	s.Equal(applicant.StatusAssigned, a.Status)
}
