package memberships

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"catalog/pkg/domain"
	"catalog/pkg/platform/sentinel"
)

type rosterState struct {
	record      Memberships
	totalMinted uint64
	tokens      map[domain.TokenID]TokenData
	tokenOwners map[domain.TokenID]domain.Address
	holders     map[domain.Address]domain.TokenID
}

// InMemoryStore holds membership roster state in process memory, one arena
// per instance id.
type InMemoryStore struct {
	mu      sync.RWMutex
	rosters map[uuid.UUID]*rosterState
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{rosters: make(map[uuid.UUID]*rosterState)}
}

func (s *InMemoryStore) Create(_ context.Context, m Memberships) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rosters[m.ID]; ok {
		return sentinel.ErrConflict
	}
	s.rosters[m.ID] = &rosterState{
		record:      m,
		tokens:      make(map[domain.TokenID]TokenData),
		tokenOwners: make(map[domain.TokenID]domain.Address),
		holders:     make(map[domain.Address]domain.TokenID),
	}
	return nil
}

func (s *InMemoryStore) Replace(_ context.Context, m Memberships) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.rosters[m.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	state.record = m
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, id uuid.UUID) (*Memberships, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.rosters[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	record := state.record
	return &record, nil
}

// MintToken assigns the next token id. Token ids are never reused; the
// total-minted counter only ever grows.
func (s *InMemoryStore) MintToken(_ context.Context, id uuid.UUID, to domain.Address, data TokenData) (domain.TokenID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.rosters[id]
	if !ok {
		return 0, sentinel.ErrNotFound
	}
	if _, held := state.holders[to]; held {
		return 0, sentinel.ErrConflict
	}

	state.totalMinted++
	token := domain.TokenID(state.totalMinted)
	state.tokens[token] = data
	state.tokenOwners[token] = to
	state.holders[to] = token
	return token, nil
}

func (s *InMemoryStore) BurnToken(_ context.Context, id uuid.UUID, token domain.TokenID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.rosters[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	owner, ok := state.tokenOwners[token]
	if !ok {
		return sentinel.ErrNotFound
	}
	delete(state.tokens, token)
	delete(state.tokenOwners, token)
	delete(state.holders, owner)
	return nil
}

// SetTokenOwner reassigns a live token. Fails conflict when the new holder
// already has a membership.
func (s *InMemoryStore) SetTokenOwner(_ context.Context, id uuid.UUID, token domain.TokenID, to domain.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.rosters[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	owner, ok := state.tokenOwners[token]
	if !ok {
		return sentinel.ErrNotFound
	}
	if _, held := state.holders[to]; held {
		return sentinel.ErrConflict
	}
	delete(state.holders, owner)
	state.tokenOwners[token] = to
	state.holders[to] = token
	return nil
}

func (s *InMemoryStore) TokenData(_ context.Context, id uuid.UUID, token domain.TokenID) (*TokenData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.rosters[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	data, ok := state.tokens[token]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &data, nil
}

func (s *InMemoryStore) TokenOwner(_ context.Context, id uuid.UUID, token domain.TokenID) (domain.Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.rosters[id]
	if !ok {
		return domain.ZeroAddress, sentinel.ErrNotFound
	}
	owner, ok := state.tokenOwners[token]
	if !ok {
		return domain.ZeroAddress, sentinel.ErrNotFound
	}
	return owner, nil
}

// HolderToken returns the token an address holds, or ErrNotFound.
func (s *InMemoryStore) HolderToken(_ context.Context, id uuid.UUID, addr domain.Address) (domain.TokenID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.rosters[id]
	if !ok {
		return 0, sentinel.ErrNotFound
	}
	token, ok := state.holders[addr]
	if !ok {
		return 0, sentinel.ErrNotFound
	}
	return token, nil
}

func (s *InMemoryStore) TotalSupply(_ context.Context, id uuid.UUID) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.rosters[id]
	if !ok {
		return 0, sentinel.ErrNotFound
	}
	return uint64(len(state.tokens)), nil
}

func (s *InMemoryStore) TotalMinted(_ context.Context, id uuid.UUID) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.rosters[id]
	if !ok {
		return 0, sentinel.ErrNotFound
	}
	return state.totalMinted, nil
}
