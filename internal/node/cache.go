package node

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"catalog/internal/node/metrics"
	"catalog/pkg/domain"
)

// CachedStore layers an in-process LRU over a Store. Node records are read
// on every authorization check, so the hot set is small and extremely
// read-heavy; writes invalidate the touched entry. Pending transfers and
// controller sets are not cached, they are read once per mutation.
type CachedStore struct {
	Store
	cache   *lru.Cache[domain.NodeID, Node]
	metrics *metrics.Metrics
}

func NewCachedStore(store Store, size int, m *metrics.Metrics) (*CachedStore, error) {
	cache, err := lru.New[domain.NodeID, Node](size)
	if err != nil {
		return nil, err
	}
	return &CachedStore{Store: store, cache: cache, metrics: m}, nil
}

func (s *CachedStore) Get(ctx context.Context, id domain.NodeID) (*Node, error) {
	if n, ok := s.cache.Get(id); ok {
		if s.metrics != nil {
			s.metrics.IncCacheHit()
		}
		copied := n
		return &copied, nil
	}
	if s.metrics != nil {
		s.metrics.IncCacheMiss()
	}

	n, err := s.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.Add(id, *n)
	return n, nil
}

func (s *CachedStore) SetOwner(ctx context.Context, id domain.NodeID, owner domain.AccountID) error {
	if err := s.Store.SetOwner(ctx, id, owner); err != nil {
		return err
	}
	s.cache.Remove(id)
	return nil
}

func (s *CachedStore) SetGroup(ctx context.Context, id, group domain.NodeID) error {
	if err := s.Store.SetGroup(ctx, id, group); err != nil {
		return err
	}
	s.cache.Remove(id)
	return nil
}

func (s *CachedStore) SetParent(ctx context.Context, id, parent domain.NodeID) error {
	if err := s.Store.SetParent(ctx, id, parent); err != nil {
		return err
	}
	s.cache.Remove(id)
	return nil
}
