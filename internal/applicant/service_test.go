package applicant

import (
	"context"
	"encoding/hex"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"intake/internal/access"
	"intake/internal/audit"
	"intake/internal/crypto/blindindex"
	"intake/internal/crypto/fieldcrypt"
	"intake/internal/crypto/keyring"
	id "intake/pkg/domain"
	dErrors "intake/pkg/domain-errors"
)

func newTestKeyring(t testing.TB) *keyring.Keyring {
	t.Helper()
	k, err := keyring.Load(keyring.Config{
		MasterKeyHex:   hex.EncodeToString(make([]byte, 32)),
		BlindIndexSalt: "test-blind-index-salt",
	})
	if err != nil {
		t.Fatal(err)
	}
	return k
}

type ServiceSuite struct {
	suite.Suite
	ctx      context.Context
	store    *InMemoryStore
	auditlog *audit.InMemoryStore
	svc      *Service
	admin    access.Actor
	reviewer access.Actor
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = NewInMemoryStore()
	s.auditlog = audit.NewInMemoryStore()

	k := newTestKeyring(s.T())
	codec, err := fieldcrypt.New(k)
	s.Require().NoError(err)

	s.svc = NewService(s.store, codec, blindindex.New(k), audit.NewRecorder(s.auditlog))
	s.admin = access.Actor{ID: id.NewStaffID(), Role: id.RoleAdmin, Username: "root"}
	s.reviewer = access.Actor{ID: id.NewStaffID(), Role: id.RoleReviewer, Username: "rev"}
}

func (s *ServiceSuite) submission(email string) Submission {
	return Submission{
		FirstName:     "Jane",
		LastName:      "Doe",
		City:          "Springfield",
		Zip:           "12345",
		StreetAddress: "742 Evergreen Terrace",
		Phone:         "+1 555 0100",
		Email:         email,
		FreeText:      map[string]any{"referral": "friend"},
	}
}

// submit creates a record and assigns it to the given reviewer when owner
// is non-nil.
func (s *ServiceSuite) submit(email string, owner *access.Actor) id.ApplicantID {
	sum, err := s.svc.Submit(s.ctx, s.submission(email))
	s.Require().NoError(err)
	if owner != nil {
		_, err := s.store.AssignIfClaimable(s.ctx, sum.ID, owner.ID, time.Now().UTC())
		s.Require().NoError(err)
	}
	return sum.ID
}

func (s *ServiceSuite) auditEntries() []audit.Entry {
	entries, err := s.auditlog.List(s.ctx, audit.Query{})
	s.Require().NoError(err)
	return entries
}

func (s *ServiceSuite) TestSubmitEncryptsAtRest() {
	applicantID := s.submit("jane@example.com", nil)

	raw, err := s.store.FindByID(s.ctx, applicantID)
	s.Require().NoError(err)
	s.Equal(StatusPending, raw.Status)
	s.Nil(raw.AssignedTo)

	// Plaintext never appears in the persisted record.
	s.NotContains(string(raw.StreetAddressCT), "Evergreen")
	s.NotContains(string(raw.PhoneCT), "555")
	s.NotContains(string(raw.EmailCT), "jane")
	s.NotContains(string(raw.CustomFieldsCT), "referral")
	s.NotContains(raw.EmailIndex, "jane")
	s.Len(raw.EmailIndex, 64)
}

func (s *ServiceSuite) TestSubmitValidation() {
	_, err := s.svc.Submit(s.ctx, Submission{FirstName: "  ", LastName: "Doe"})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *ServiceSuite) TestSubmitWithoutEmail() {
	sub := s.submission("")
	sum, err := s.svc.Submit(s.ctx, sub)
	s.Require().NoError(err)

	raw, err := s.store.FindByID(s.ctx, sum.ID)
	s.Require().NoError(err)
	s.Empty(raw.EmailIndex)

	// A second email-less submission is not a duplicate.
	_, err = s.svc.Submit(s.ctx, sub)
	s.NoError(err)
}

func (s *ServiceSuite) TestSubmitDuplicateEmailNormalized() {
	s.submit("a@b.com", nil)

	_, err := s.svc.Submit(s.ctx, s.submission("  A@B.COM  "))
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeDuplicate))
}

func (s *ServiceSuite) TestGetDecryptsAndAudits() {
	applicantID := s.submit("jane@example.com", &s.reviewer)

	view, err := s.svc.Get(s.ctx, s.reviewer, applicantID)
	s.Require().NoError(err)
	s.Equal("742 Evergreen Terrace", view.StreetAddress)
	s.Equal("+1 555 0100", view.Phone)
	s.Equal("jane@example.com", view.Email)
	s.Equal(map[string]any{"referral": "friend"}, view.CustomFields)

	var piiViews int
	for _, e := range s.auditEntries() {
		if e.Action == audit.ActionPIIViewed {
			piiViews++
			s.Equal(&s.reviewer.ID, e.ActorID)
			s.Equal(&applicantID, e.ApplicantID)
		}
	}
	s.Equal(1, piiViews)
}

// A reviewer probing ids must get the same answer whether the record
// belongs to someone else or does not exist at all, and no audit entry or
// decryption may happen on the way.
func (s *ServiceSuite) TestReviewerIsolationNoExistenceLeak() {
	other := access.Actor{ID: id.NewStaffID(), Role: id.RoleReviewer, Username: "other"}
	ownedByOther := s.submit("jane@example.com", &other)

	_, errUnowned := s.svc.Get(s.ctx, s.reviewer, ownedByOther)
	_, errMissing := s.svc.Get(s.ctx, s.reviewer, id.NewApplicantID())

	s.Require().Error(errUnowned)
	s.Require().Error(errMissing)
	s.True(dErrors.HasCode(errUnowned, dErrors.CodeForbidden))
	s.True(dErrors.HasCode(errMissing, dErrors.CodeForbidden))
	s.Equal(errMissing.Error(), errUnowned.Error())

	for _, e := range s.auditEntries() {
		s.NotEqual(audit.ActionPIIViewed, e.Action)
	}
}

func (s *ServiceSuite) TestAdminSeesNotFound() {
	_, err := s.svc.Get(s.ctx, s.admin, id.NewApplicantID())
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestListIsolatesReviewers() {
	mine := s.submit("a@x.com", &s.reviewer)
	other := access.Actor{ID: id.NewStaffID(), Role: id.RoleReviewer, Username: "other"}
	s.submit("b@x.com", &other)
	s.submit("c@x.com", nil)

	// The reviewer-supplied filter is overridden, not trusted.
	summaries, err := s.svc.List(s.ctx, s.reviewer, Filter{AssignedTo: &other.ID})
	s.Require().NoError(err)
	s.Require().Len(summaries, 1)
	s.Equal(mine, summaries[0].ID)

	all, err := s.svc.List(s.ctx, s.admin, Filter{})
	s.Require().NoError(err)
	s.Len(all, 3)
}

func (s *ServiceSuite) TestListStatusFilterAndOrder() {
	clock := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	s.svc.now = func() time.Time { clock = clock.Add(time.Minute); return clock }

	first := s.submit("a@x.com", nil)
	second := s.submit("b@x.com", nil)

	pending := StatusPending
	summaries, err := s.svc.List(s.ctx, s.admin, Filter{Status: &pending})
	s.Require().NoError(err)
	s.Require().Len(summaries, 2)
	// Newest first.
	s.Equal(second, summaries[0].ID)
	s.Equal(first, summaries[1].ID)
}

func (s *ServiceSuite) TestSummariesCarryNoCiphertext() {
	s.submit("jane@example.com", nil)
	summaries, err := s.svc.List(s.ctx, s.admin, Filter{})
	s.Require().NoError(err)
	s.Require().Len(summaries, 1)
	s.Equal("Jane", summaries[0].FirstName)
	s.Equal("Springfield", summaries[0].City)
}

func (s *ServiceSuite) TestSearch() {
	mine := s.submit("a@x.com", &s.reviewer)
	other := access.Actor{ID: id.NewStaffID(), Role: id.RoleReviewer, Username: "other"}
	s.submit("b@x.com", &other)

	results, err := s.svc.Search(s.ctx, s.reviewer, "jane")
	s.Require().NoError(err)
	s.Require().Len(results, 1)
	s.Equal(mine, results[0].ID)

	// Admin sees both records matching the shared first name.
	results, err = s.svc.Search(s.ctx, s.admin, "JANE")
	s.Require().NoError(err)
	s.Len(results, 2)

	var searches int
	for _, e := range s.auditEntries() {
		if e.Action == audit.ActionSearchPerformed {
			searches++
		}
	}
	s.Equal(2, searches)
}

func (s *ServiceSuite) TestSearchDoesNotMatchEncryptedFields() {
	s.submit("needle@example.com", nil)

	results, err := s.svc.Search(s.ctx, s.admin, "needle")
	s.Require().NoError(err)
	s.Empty(results)
}

func (s *ServiceSuite) TestUpdateStatusDecision() {
	applicantID := s.submit("a@x.com", &s.reviewer)

	sum, err := s.svc.UpdateStatus(s.ctx, s.reviewer, applicantID, StatusApproved)
	s.Require().NoError(err)
	s.Equal(StatusApproved, sum.Status)
	s.Equal(&s.reviewer.ID, sum.AssignedTo) // decider stays on the record

	entries := s.auditEntries()
	last := entries[len(entries)-1]
	s.Equal(audit.ActionStatusChanged, last.Action)
	s.Equal("ASSIGNED -> APPROVED", last.Details)
}

func (s *ServiceSuite) TestUpdateStatusReleaseClearsAssignee() {
	applicantID := s.submit("a@x.com", &s.reviewer)

	sum, err := s.svc.UpdateStatus(s.ctx, s.reviewer, applicantID, StatusPending)
	s.Require().NoError(err)
	s.Equal(StatusPending, sum.Status)
	s.Nil(sum.AssignedTo)
}

func (s *ServiceSuite) TestUpdateStatusIllegalTransitions() {
	pendingID := s.submit("a@x.com", nil)

	_, err := s.svc.UpdateStatus(s.ctx, s.admin, pendingID, StatusApproved)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

	_, err = s.svc.UpdateStatus(s.ctx, s.admin, pendingID, StatusAssigned)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

	decidedID := s.submit("b@x.com", &s.reviewer)
	_, err = s.svc.UpdateStatus(s.ctx, s.reviewer, decidedID, StatusRejected)
	s.Require().NoError(err)
	_, err = s.svc.UpdateStatus(s.ctx, s.admin, decidedID, StatusPending)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *ServiceSuite) TestUpdateStatusTriggersDecisionHook() {
	hook := &recordingHook{}
	s.svc.SetDecisionHook(hook)

	applicantID := s.submit("a@x.com", &s.reviewer)
	_, err := s.svc.UpdateStatus(s.ctx, s.reviewer, applicantID, StatusApproved)
	s.Require().NoError(err)
	s.Equal(1, hook.calls)

	// Admin decisions do not pull queue work for the admin.
	adminID := s.submit("b@x.com", &s.admin)
	_, err = s.svc.UpdateStatus(s.ctx, s.admin, adminID, StatusRejected)
	s.Require().NoError(err)
	s.Equal(1, hook.calls)
}

type recordingHook struct{ calls int }

func (h *recordingHook) AutoClaimOnDecision(context.Context, access.Actor) { h.calls++ }

func (s *ServiceSuite) TestAddNote() {
	applicantID := s.submit("a@x.com", &s.reviewer)

	_, err := s.svc.AddNote(s.ctx, s.reviewer, applicantID, "called the applicant")
	s.Require().NoError(err)
	_, err = s.svc.AddNote(s.ctx, s.reviewer, applicantID, "left a voicemail")
	s.Require().NoError(err)

	raw, err := s.store.FindByID(s.ctx, applicantID)
	s.Require().NoError(err)
	lines := strings.Split(raw.Notes, "\n")
	s.Require().Len(lines, 2)
	s.Regexp(`^\[\d{4}-\d{2}-\d{2}T[^\]]+\] rev: called the applicant$`, lines[0])
	s.Regexp(`\] rev: left a voicemail$`, lines[1])
}

func (s *ServiceSuite) TestSetCustomFields() {
	applicantID := s.submit("a@x.com", &s.reviewer)

	_, err := s.svc.SetCustomFields(s.ctx, s.reviewer, applicantID, map[string]any{"vetting_round": "second"})
	s.Require().NoError(err)

	view, err := s.svc.Get(s.ctx, s.reviewer, applicantID)
	s.Require().NoError(err)
	s.Equal(map[string]any{"vetting_round": "second"}, view.CustomFields)

	raw, err := s.store.FindByID(s.ctx, applicantID)
	s.Require().NoError(err)
	s.NotContains(string(raw.CustomFieldsCT), "vetting_round")
}

func (s *ServiceSuite) TestPurgeCascadesAuditEntries() {
	applicantID := s.submit("a@x.com", &s.reviewer)
	keepID := s.submit("b@x.com", &s.reviewer)

	_, err := s.svc.Get(s.ctx, s.reviewer, applicantID)
	s.Require().NoError(err)
	_, err = s.svc.Get(s.ctx, s.reviewer, keepID)
	s.Require().NoError(err)

	s.Require().NoError(s.svc.Purge(s.ctx, s.admin, applicantID))

	_, err = s.svc.Get(s.ctx, s.admin, applicantID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	var deleted int
	for _, e := range s.auditEntries() {
		s.Require().False(e.ApplicantID != nil && *e.ApplicantID == applicantID,
			"entry for purged applicant survived: %s", e.Action)
		if e.Action == audit.ActionRecordDeleted {
			deleted++
			s.Nil(e.ApplicantID)
			s.Contains(e.Details, applicantID.String())
		}
	}
	s.Equal(1, deleted)
}

func (s *ServiceSuite) TestPurgeRequiresAdmin() {
	applicantID := s.submit("a@x.com", &s.reviewer)

	err := s.svc.Purge(s.ctx, s.reviewer, applicantID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	_, err = s.store.FindByID(s.ctx, applicantID)
	s.NoError(err)
}

// brokenDeleteStore fails every Delete, simulating a storage fault mid-purge.
type brokenDeleteStore struct {
	*InMemoryStore
}

func (s *brokenDeleteStore) Delete(context.Context, id.ApplicantID) error {
	return errors.New("storage unavailable")
}

func TestPurgeKeepsTrailWhenDeleteFails(t *testing.T) {
	ctx := context.Background()
	store := &brokenDeleteStore{InMemoryStore: NewInMemoryStore()}
	auditlog := audit.NewInMemoryStore()

	k := newTestKeyring(t)
	codec, err := fieldcrypt.New(k)
	if err != nil {
		t.Fatal(err)
	}
	svc := NewService(store, codec, blindindex.New(k), audit.NewRecorder(auditlog))
	admin := access.Actor{ID: id.NewStaffID(), Role: id.RoleAdmin, Username: "root"}

	sum, err := svc.Submit(ctx, Submission{FirstName: "Jane", LastName: "Doe", Email: "jane@example.com"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Get(ctx, admin, sum.ID); err != nil {
		t.Fatal(err)
	}

	err = svc.Purge(ctx, admin, sum.ID)
	if !dErrors.HasCode(err, dErrors.CodeInternal) {
		t.Fatalf("purge with failing delete: got %v, want internal error", err)
	}

	// The record stayed, so its trail must stay with it.
	if _, err := store.FindByID(ctx, sum.ID); err != nil {
		t.Fatalf("record gone after failed purge: %v", err)
	}
	entries, err := auditlog.List(ctx, audit.Query{ApplicantID: &sum.ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) == 0 {
		t.Fatal("audit trail purged although the record delete failed")
	}
}

func TestPurgeRunsInsideTransactor(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	auditlog := audit.NewInMemoryStore()

	k := newTestKeyring(t)
	codec, err := fieldcrypt.New(k)
	if err != nil {
		t.Fatal(err)
	}
	var wrapped int
	svc := NewService(store, codec, blindindex.New(k), audit.NewRecorder(auditlog),
		WithTransactor(func(ctx context.Context, fn func(ctx context.Context) error) error {
			wrapped++
			return fn(ctx)
		}),
	)
	admin := access.Actor{ID: id.NewStaffID(), Role: id.RoleAdmin, Username: "root"}

	sum, err := svc.Submit(ctx, Submission{FirstName: "Jane", LastName: "Doe", Email: "jane@example.com"})
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.Purge(ctx, admin, sum.ID); err != nil {
		t.Fatal(err)
	}
	if wrapped != 1 {
		t.Fatalf("purge cascade ran outside the transactor (%d calls)", wrapped)
	}
}

func TestStatusTransitions(t *testing.T) {
	legal := map[Status][]Status{
		StatusPending:  {StatusAssigned},
		StatusAssigned: {StatusApproved, StatusRejected, StatusPending},
		StatusApproved: {},
		StatusRejected: {},
	}
	all := []Status{StatusPending, StatusAssigned, StatusApproved, StatusRejected}
	for from, allowed := range legal {
		idx := map[Status]bool{}
		for _, s := range allowed {
			idx[s] = true
		}
		for _, to := range all {
			if got := from.CanTransitionTo(to); got != idx[to] {
				t.Errorf("%s -> %s: got %v, want %v", from, to, got, idx[to])
			}
		}
	}
}
