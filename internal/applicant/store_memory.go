package applicant

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"time"

	id "intake/pkg/domain"
	"intake/pkg/platform/sentinel"
)

// InMemoryStore backs unit tests and single-node development runs. A single
// mutex covers every operation, so the conditional primitives are trivially
// atomic here.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[id.ApplicantID]*Applicant
	byIndex map[string]id.ApplicantID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		records: make(map[id.ApplicantID]*Applicant),
		byIndex: make(map[string]id.ApplicantID),
	}
}

func clone(a *Applicant) *Applicant {
	cp := *a
	cp.StreetAddressCT = bytes.Clone(a.StreetAddressCT)
	cp.PhoneCT = bytes.Clone(a.PhoneCT)
	cp.EmailCT = bytes.Clone(a.EmailCT)
	cp.CustomFieldsCT = bytes.Clone(a.CustomFieldsCT)
	if a.AssignedTo != nil {
		owner := *a.AssignedTo
		cp.AssignedTo = &owner
	}
	return &cp
}

func (s *InMemoryStore) Create(_ context.Context, a *Applicant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.EmailIndex != "" {
		if _, ok := s.byIndex[a.EmailIndex]; ok {
			return sentinel.ErrConflict
		}
	}
	s.records[a.ID] = clone(a)
	if a.EmailIndex != "" {
		s.byIndex[a.EmailIndex] = a.ID
	}
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, applicantID id.ApplicantID) (*Applicant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.records[applicantID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(a), nil
}

func (s *InMemoryStore) FindByEmailIndex(_ context.Context, emailIndex string) (*Applicant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if emailIndex == "" {
		return nil, sentinel.ErrNotFound
	}
	applicantID, ok := s.byIndex[emailIndex]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(s.records[applicantID]), nil
}

func (s *InMemoryStore) List(_ context.Context, f Filter) ([]*Applicant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Applicant, 0, len(s.records))
	for _, a := range s.records {
		if f.Status != nil && a.Status != *f.Status {
			continue
		}
		if f.AssignedTo != nil && (a.AssignedTo == nil || *a.AssignedTo != *f.AssignedTo) {
			continue
		}
		out = append(out, clone(a))
	}
	// Newest first, ties by id for a stable order.
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (s *InMemoryStore) Update(_ context.Context, a *Applicant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[a.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.records[a.ID] = clone(a)
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, applicantID id.ApplicantID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.records[applicantID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if a.EmailIndex != "" {
		delete(s.byIndex, a.EmailIndex)
	}
	delete(s.records, applicantID)
	return nil
}

func (s *InMemoryStore) ClaimOldestPending(_ context.Context, reviewer id.StaffID, now time.Time) (*Applicant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var oldest *Applicant
	for _, a := range s.records {
		if a.Status != StatusPending {
			continue
		}
		if oldest == nil || claimBefore(a, oldest) {
			oldest = a
		}
	}
	if oldest == nil {
		return nil, sentinel.ErrNotFound
	}
	oldest.Status = StatusAssigned
	oldest.AssignedTo = &reviewer
	oldest.UpdatedAt = now
	return clone(oldest), nil
}

// claimBefore orders candidates by created_at ascending, ties by id.
func claimBefore(a, b *Applicant) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID.String() < b.ID.String()
}

func (s *InMemoryStore) AssignIfClaimable(_ context.Context, applicantID id.ApplicantID, reviewer id.StaffID, now time.Time) (*Applicant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.records[applicantID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if a.Status.IsTerminal() {
		return nil, sentinel.ErrClaimConflict
	}
	a.Status = StatusAssigned
	a.AssignedTo = &reviewer
	a.UpdatedAt = now
	return clone(a), nil
}

func (s *InMemoryStore) TransitionStatus(_ context.Context, applicantID id.ApplicantID, from, to Status, clearAssignee bool, now time.Time) (*Applicant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.records[applicantID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if a.Status != from {
		return nil, sentinel.ErrClaimConflict
	}
	a.Status = to
	if clearAssignee {
		a.AssignedTo = nil
	}
	a.UpdatedAt = now
	return clone(a), nil
}

func (s *InMemoryStore) ReclaimStale(_ context.Context, cutoff time.Time, now time.Time) ([]*Applicant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var reclaimed []*Applicant
	for _, a := range s.records {
		if a.Status != StatusAssigned || !a.UpdatedAt.Before(cutoff) {
			continue
		}
		a.Status = StatusPending
		a.AssignedTo = nil
		a.UpdatedAt = now
		reclaimed = append(reclaimed, clone(a))
	}
	sort.Slice(reclaimed, func(i, j int) bool { return claimBefore(reclaimed[i], reclaimed[j]) })
	return reclaimed, nil
}
