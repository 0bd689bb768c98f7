package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	id "intake/pkg/domain"
)

type RecorderSuite struct {
	suite.Suite
	store    *InMemoryStore
	recorder *Recorder
}

func (s *RecorderSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.recorder = NewRecorder(s.store)
}

func TestRecorderSuite(t *testing.T) {
	suite.Run(t, new(RecorderSuite))
}

func (s *RecorderSuite) TestRecordAssignsIDAndTimestamp() {
	actor := id.NewStaffID()
	target := id.NewApplicantID()

	err := s.recorder.Record(context.Background(), &actor, &target, ActionPIIViewed, "viewed decrypted fields")
	s.Require().NoError(err)

	entries, err := s.store.List(context.Background(), Query{})
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.NotZero(entries[0].ID)
	s.WithinDuration(time.Now().UTC(), entries[0].Timestamp, time.Minute)
	s.Equal(ActionPIIViewed, entries[0].Action)
	s.Equal(actor, *entries[0].ActorID)
	s.Equal(target, *entries[0].ApplicantID)
}

func (s *RecorderSuite) TestRecordRejectsUnknownAction() {
	err := s.recorder.Record(context.Background(), nil, nil, Action("MADE_UP"), "")
	s.Require().Error(err)
}

func (s *RecorderSuite) TestSystemActorIsNil() {
	target := id.NewApplicantID()
	err := s.recorder.Record(context.Background(), nil, &target, ActionAssignmentReclaimed, "stale assignment returned to queue")
	s.Require().NoError(err)

	entries, err := s.store.List(context.Background(), Query{ApplicantID: &target})
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Nil(entries[0].ActorID)
}

func (s *RecorderSuite) TestListFilters() {
	ctx := context.Background()
	actorA := id.NewStaffID()
	actorB := id.NewStaffID()
	target := id.NewApplicantID()

	s.Require().NoError(s.recorder.Record(ctx, &actorA, &target, ActionPIIViewed, ""))
	s.Require().NoError(s.recorder.Record(ctx, &actorB, &target, ActionNoteAdded, ""))
	s.Require().NoError(s.recorder.Record(ctx, &actorA, nil, ActionAccountCreated, ""))

	byActor, err := s.recorder.List(ctx, Query{ActorID: &actorA})
	s.Require().NoError(err)
	s.Len(byActor, 2)

	byTarget, err := s.recorder.List(ctx, Query{ApplicantID: &target})
	s.Require().NoError(err)
	s.Len(byTarget, 2)

	windowed, err := s.recorder.List(ctx, Query{From: time.Now().Add(time.Hour)})
	s.Require().NoError(err)
	s.Empty(windowed)
}

func (s *RecorderSuite) TestPurgeByApplicantLeavesOtherEntries() {
	ctx := context.Background()
	actor := id.NewStaffID()
	purged := id.NewApplicantID()
	kept := id.NewApplicantID()

	s.Require().NoError(s.recorder.Record(ctx, &actor, &purged, ActionPIIViewed, ""))
	s.Require().NoError(s.recorder.Record(ctx, &actor, &purged, ActionStatusChanged, ""))
	s.Require().NoError(s.recorder.Record(ctx, &actor, &kept, ActionPIIViewed, ""))

	n, err := s.recorder.PurgeByApplicant(ctx, purged)
	s.Require().NoError(err)
	s.Equal(2, n)

	remaining, err := s.recorder.List(ctx, Query{})
	s.Require().NoError(err)
	s.Require().Len(remaining, 1)
	s.Equal(kept, *remaining[0].ApplicantID)
}

// failingStore proves the fail-closed contract: if the append fails, the
// triggering operation must fail too.
type failingStore struct{ InMemoryStore }

func (f *failingStore) Append(context.Context, Entry) error {
	return errors.New("disk full")
}

func TestRecordFailsWhenStoreFails(t *testing.T) {
	recorder := NewRecorder(&failingStore{})
	err := recorder.Record(context.Background(), nil, nil, ActionLoginFailed, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "append")
}
