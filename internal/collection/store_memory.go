package collection

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"catalog/pkg/domain"
	"catalog/pkg/platform/sentinel"
)

type collectionState struct {
	record      Collection
	sequences   []*Sequence
	nextToken   domain.TokenID
	tokens      map[domain.TokenID]TokenData
	tokenOwners map[domain.TokenID]domain.Address
	balances    map[domain.Address]uint64
}

// InMemoryStore holds collection state in process memory, one arena per
// collection id.
type InMemoryStore struct {
	mu          sync.RWMutex
	collections map[uuid.UUID]*collectionState
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{collections: make(map[uuid.UUID]*collectionState)}
}

func (s *InMemoryStore) Create(_ context.Context, c Collection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[c.ID]; ok {
		return sentinel.ErrConflict
	}
	s.collections[c.ID] = &collectionState{
		record:      c,
		nextToken:   1,
		tokens:      make(map[domain.TokenID]TokenData),
		tokenOwners: make(map[domain.TokenID]domain.Address),
		balances:    make(map[domain.Address]uint64),
	}
	return nil
}

func (s *InMemoryStore) Replace(_ context.Context, c Collection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.collections[c.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	state.record = c
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, id uuid.UUID) (*Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.collections[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	record := state.record
	return &record, nil
}

func (s *InMemoryStore) SetOwner(_ context.Context, id uuid.UUID, owner domain.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.collections[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	state.record.Owner = owner
	return nil
}

// AppendSequence assigns the next sequence id scoped to the collection.
func (s *InMemoryStore) AppendSequence(_ context.Context, id uuid.UUID, seq Sequence) (domain.SequenceID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.collections[id]
	if !ok {
		return 0, sentinel.ErrNotFound
	}
	seq.ID = domain.SequenceID(len(state.sequences) + 1)
	state.sequences = append(state.sequences, &seq)
	return seq.ID, nil
}

// RemoveSequence unwinds the most recently appended sequence. Used only
// when engine validation rejects a configuration already staged.
func (s *InMemoryStore) RemoveSequence(_ context.Context, id uuid.UUID, seqID domain.SequenceID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.collections[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if int(seqID) != len(state.sequences) {
		return sentinel.ErrInvalidState
	}
	state.sequences = state.sequences[:len(state.sequences)-1]
	return nil
}

func (s *InMemoryStore) GetSequence(_ context.Context, id uuid.UUID, seqID domain.SequenceID) (*Sequence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seq, err := s.sequenceLocked(id, seqID)
	if err != nil {
		return nil, err
	}
	copied := *seq
	return &copied, nil
}

// MintToken increments the sequence counter and assigns the next global
// token id in one critical section.
func (s *InMemoryStore) MintToken(_ context.Context, id uuid.UUID, seqID domain.SequenceID, to domain.Address, data TokenData) (domain.TokenID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.collections[id]
	if !ok {
		return 0, sentinel.ErrNotFound
	}
	seq, err := s.sequenceLocked(id, seqID)
	if err != nil {
		return 0, err
	}

	seq.Minted++
	token := state.nextToken
	state.nextToken++

	state.tokens[token] = data
	state.tokenOwners[token] = to
	state.balances[to]++
	return token, nil
}

// BurnToken undoes a mint: removes the token and decrements the sequence
// counter. Used only by settlement compensation.
func (s *InMemoryStore) BurnToken(_ context.Context, id uuid.UUID, token domain.TokenID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.collections[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	data, ok := state.tokens[token]
	if !ok {
		return sentinel.ErrNotFound
	}
	seq, err := s.sequenceLocked(id, data.Sequence)
	if err != nil {
		return err
	}

	seq.Minted--
	owner := state.tokenOwners[token]
	if state.balances[owner] > 0 {
		state.balances[owner]--
	}
	delete(state.tokens, token)
	delete(state.tokenOwners, token)
	if token == state.nextToken-1 {
		state.nextToken--
	}
	return nil
}

func (s *InMemoryStore) TokenData(_ context.Context, id uuid.UUID, token domain.TokenID) (*TokenData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.collections[id]
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

	state, ok := s.collections[id]
	if !ok {
		return domain.ZeroAddress, sentinel.ErrNotFound
	}
	owner, ok := state.tokenOwners[token]
	if !ok {
		return domain.ZeroAddress, sentinel.ErrNotFound
	}
	return owner, nil
}

func (s *InMemoryStore) Balance(_ context.Context, id uuid.UUID, addr domain.Address) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.collections[id]
	if !ok {
		return 0, sentinel.ErrNotFound
	}
	return state.balances[addr], nil
}

func (s *InMemoryStore) TotalSupply(_ context.Context, id uuid.UUID) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.collections[id]
	if !ok {
		return 0, sentinel.ErrNotFound
	}
	return uint64(len(state.tokens)), nil
}

// sequenceLocked requires s.mu held.
func (s *InMemoryStore) sequenceLocked(id uuid.UUID, seqID domain.SequenceID) (*Sequence, error) {
	state, ok := s.collections[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	idx := int(seqID) - 1
	if idx < 0 || idx >= len(state.sequences) {
		return nil, sentinel.ErrNotFound
	}
	return state.sequences[idx], nil
}
