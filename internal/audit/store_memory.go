package audit

import (
	"context"
	"sort"
	"sync"

	id "intake/pkg/domain"
)

// InMemoryStore keeps entries in process memory. Used by unit tests and
// single-node development runs.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *InMemoryStore) List(_ context.Context, q Query) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Entry
	for _, e := range s.entries {
		if !matches(e, q) {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

func (s *InMemoryStore) PurgeByApplicant(_ context.Context, applicantID id.ApplicantID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.entries[:0]
	removed := 0
	for _, e := range s.entries {
		if e.ApplicantID != nil && *e.ApplicantID == applicantID {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	s.entries = kept
	return removed, nil
}

func matches(e Entry, q Query) bool {
	if q.ActorID != nil {
		if e.ActorID == nil || *e.ActorID != *q.ActorID {
			return false
		}
	}
	if q.ApplicantID != nil {
		if e.ApplicantID == nil || *e.ApplicantID != *q.ApplicantID {
			return false
		}
	}
	if !q.From.IsZero() && e.Timestamp.Before(q.From) {
		return false
	}
	if !q.To.IsZero() && e.Timestamp.After(q.To) {
		return false
	}
	return true
}
