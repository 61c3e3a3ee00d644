package account

import (
	"context"
	"sync"
	"time"

	"catalog/pkg/domain"
	"catalog/pkg/platform/sentinel"
)

// InMemoryStore keeps the address to account mapping under a RWMutex. IDs are
// dense and monotonically assigned starting at 1.
type InMemoryStore struct {
	mu       sync.RWMutex
	nextID   domain.AccountID
	byID     map[domain.AccountID]*Account
	byAddr   map[domain.Address]domain.AccountID
	issuers  map[domain.Address]bool
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		nextID:  1,
		byID:    make(map[domain.AccountID]*Account),
		byAddr:  make(map[domain.Address]domain.AccountID),
		issuers: make(map[domain.Address]bool),
	}
}

// Create assigns the next account id to the address. Returns ErrConflict if
// the address already resolves to an account.
func (s *InMemoryStore) Create(_ context.Context, addr domain.Address, metadata string, now time.Time) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byAddr[addr]; exists {
		return nil, sentinel.ErrConflict
	}

	acct := &Account{
		ID:        s.nextID,
		Address:   addr,
		Metadata:  metadata,
		CreatedAt: now,
	}
	s.nextID++
	s.byID[acct.ID] = acct
	s.byAddr[addr] = acct.ID

	copied := *acct
	return &copied, nil
}

// Resolve returns the account id bound to the address, or ErrNotFound.
func (s *InMemoryStore) Resolve(_ context.Context, addr domain.Address) (domain.AccountID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byAddr[addr]
	if !ok {
		return 0, sentinel.ErrNotFound
	}
	return id, nil
}

// Transfer rebinds the account currently held by from onto to. Returns
// ErrNotFound if from has no account and ErrConflict if to already has one.
func (s *InMemoryStore) Transfer(_ context.Context, from, to domain.Address) (domain.AccountID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byAddr[from]
	if !ok {
		return 0, sentinel.ErrNotFound
	}
	if _, exists := s.byAddr[to]; exists {
		return 0, sentinel.ErrConflict
	}

	delete(s.byAddr, from)
	s.byAddr[to] = id
	s.byID[id].Address = to
	return id, nil
}

// SetIssuer designates or revokes a trusted account issuer.
func (s *InMemoryStore) SetIssuer(_ context.Context, addr domain.Address, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if enabled {
		s.issuers[addr] = true
	} else {
		delete(s.issuers, addr)
	}
	return nil
}

// IsIssuer reports whether the address is a designated issuer.
func (s *InMemoryStore) IsIssuer(_ context.Context, addr domain.Address) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.issuers[addr], nil
}
