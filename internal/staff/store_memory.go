package staff

import (
	"context"
	"sort"
	"sync"

	id "intake/pkg/domain"
	"intake/pkg/platform/sentinel"
)

// InMemoryStore backs unit tests and single-node development runs.
type InMemoryStore struct {
	mu       sync.RWMutex
	accounts map[id.StaffID]*Account
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{accounts: make(map[id.StaffID]*Account)}
}

func (s *InMemoryStore) Create(_ context.Context, account *Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.accounts {
		if existing.Username == account.Username {
			return sentinel.ErrConflict
		}
	}
	cp := *account
	s.accounts[account.ID] = &cp
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, staffID id.StaffID) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.accounts[staffID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *account
	return &cp, nil
}

func (s *InMemoryStore) FindByUsername(_ context.Context, username string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, account := range s.accounts {
		if account.Username == username {
			cp := *account
			return &cp, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) List(_ context.Context) ([]*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Account, 0, len(s.accounts))
	for _, account := range s.accounts {
		cp := *account
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (s *InMemoryStore) Update(_ context.Context, account *Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[account.ID]; !ok {
		return sentinel.ErrNotFound
	}
	cp := *account
	s.accounts[account.ID] = &cp
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, staffID id.StaffID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[staffID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.accounts, staffID)
	return nil
}

func (s *InMemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.accounts), nil
}
