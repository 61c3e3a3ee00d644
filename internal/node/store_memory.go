package node

import (
	"context"
	"sync"
	"time"

	"catalog/pkg/domain"
	"catalog/pkg/platform/sentinel"
)

// InMemoryStore keeps the node forest in process memory. Used in tests and
// as the fallback when no database is configured.
type InMemoryStore struct {
	mu          sync.RWMutex
	nextID      domain.NodeID
	nodes       map[domain.NodeID]*Node
	controllers map[domain.NodeID]map[domain.Address]bool
	pending     map[domain.NodeID]domain.AccountID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		nextID:      1,
		nodes:       make(map[domain.NodeID]*Node),
		controllers: make(map[domain.NodeID]map[domain.Address]bool),
		pending:     make(map[domain.NodeID]domain.AccountID),
	}
}

// Create assigns the next node id and stores the node with its initial
// controller set.
func (s *InMemoryStore) Create(_ context.Context, n Node, controllers []domain.Address, now time.Time) (*Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n.ID = s.nextID
	n.CreatedAt = now
	s.nextID++

	s.nodes[n.ID] = &n
	set := make(map[domain.Address]bool, len(controllers))
	for _, addr := range controllers {
		if !addr.IsZero() {
			set[addr] = true
		}
	}
	s.controllers[n.ID] = set

	stored := n
	return &stored, nil
}

func (s *InMemoryStore) Get(_ context.Context, id domain.NodeID) (*Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.nodes[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *n
	return &copied, nil
}

func (s *InMemoryStore) Exists(_ context.Context, id domain.NodeID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.nodes[id]
	return ok, nil
}

func (s *InMemoryStore) Count(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(len(s.nodes)), nil
}

func (s *InMemoryStore) SetOwner(_ context.Context, id domain.NodeID, owner domain.AccountID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nodes[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	n.Owner = owner
	return nil
}

func (s *InMemoryStore) SetGroup(_ context.Context, id, group domain.NodeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nodes[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	n.Group = group
	return nil
}

func (s *InMemoryStore) SetParent(_ context.Context, id, parent domain.NodeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nodes[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	n.Parent = parent
	return nil
}

// SetPending records the in-flight transfer recipient; zero clears it.
func (s *InMemoryStore) SetPending(_ context.Context, id domain.NodeID, to domain.AccountID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[id]; !ok {
		return sentinel.ErrNotFound
	}
	if to.IsZero() {
		delete(s.pending, id)
		return nil
	}
	s.pending[id] = to
	return nil
}

func (s *InMemoryStore) Pending(_ context.Context, id domain.NodeID) (domain.AccountID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pending[id], nil
}

func (s *InMemoryStore) SetController(_ context.Context, id domain.NodeID, addr domain.Address, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[id]; !ok {
		return sentinel.ErrNotFound
	}
	set := s.controllers[id]
	if set == nil {
		set = make(map[domain.Address]bool)
		s.controllers[id] = set
	}
	if enabled {
		set[addr] = true
	} else {
		delete(set, addr)
	}
	return nil
}

func (s *InMemoryStore) IsController(_ context.Context, id domain.NodeID, addr domain.Address) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.controllers[id][addr], nil
}
