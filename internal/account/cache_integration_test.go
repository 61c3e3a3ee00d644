//go:build integration

package account_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"catalog/internal/account"
	platformredis "catalog/internal/platform/redis"
	"catalog/pkg/domain"
	"catalog/pkg/platform/sentinel"
	"catalog/pkg/testutil/containers"
)

type CachedStoreSuite struct {
	suite.Suite
	redis  *containers.RedisContainer
	client *platformredis.Client

	backing *account.InMemoryStore
	cached  *account.CachedStore
}

func TestCachedStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(CachedStoreSuite))
}

func (s *CachedStoreSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.client = &platformredis.Client{Client: s.redis.Client}
}

func (s *CachedStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
	s.backing = account.NewInMemoryStore()
	s.cached = account.NewCachedStore(s.backing, s.client, time.Minute, nil)
}

func (s *CachedStoreSuite) register(addr domain.Address) domain.AccountID {
	s.T().Helper()
	acct, err := s.backing.Create(context.Background(), addr, "", time.Now())
	s.Require().NoError(err)
	return acct.ID
}

func (s *CachedStoreSuite) TestReadThrough() {
	ctx := context.Background()
	id := s.register("0xalice")

	resolved, err := s.cached.Resolve(ctx, "0xalice")
	s.Require().NoError(err)
	s.Equal(id, resolved)

	// Rotate the address behind the cache's back. The stale entry keeps
	// serving until it is invalidated or expires.
	_, err = s.backing.Transfer(ctx, "0xalice", "0xalice-rotated")
	s.Require().NoError(err)

	resolved, err = s.cached.Resolve(ctx, "0xalice")
	s.Require().NoError(err)
	s.Equal(id, resolved, "cached entry served without hitting the store")

	s.Require().NoError(s.redis.FlushAll(ctx))
	_, err = s.cached.Resolve(ctx, "0xalice")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *CachedStoreSuite) TestMissesAreNotCached() {
	ctx := context.Background()

	_, err := s.cached.Resolve(ctx, "0xlate")
	s.ErrorIs(err, sentinel.ErrNotFound)

	// A registration right after a miss must be visible immediately.
	id := s.register("0xlate")
	resolved, err := s.cached.Resolve(ctx, "0xlate")
	s.Require().NoError(err)
	s.Equal(id, resolved)
}

func (s *CachedStoreSuite) TestTransferInvalidates() {
	ctx := context.Background()
	id := s.register("0xalice")

	_, err := s.cached.Resolve(ctx, "0xalice")
	s.Require().NoError(err)

	moved, err := s.cached.Transfer(ctx, "0xalice", "0xalice-rotated")
	s.Require().NoError(err)
	s.Equal(id, moved)

	_, err = s.cached.Resolve(ctx, "0xalice")
	s.ErrorIs(err, sentinel.ErrNotFound, "transfer drops the cached entry")

	resolved, err := s.cached.Resolve(ctx, "0xalice-rotated")
	s.Require().NoError(err)
	s.Equal(id, resolved)
}

func (s *CachedStoreSuite) TestEntriesExpire() {
	ctx := context.Background()
	shortLived := account.NewCachedStore(s.backing, s.client, time.Second, nil)

	id := s.register("0xalice")
	_, err := shortLived.Resolve(ctx, "0xalice")
	s.Require().NoError(err)

	_, err = s.backing.Transfer(ctx, "0xalice", "0xalice-rotated")
	s.Require().NoError(err)

	// Still served from cache inside the TTL.
	resolved, err := shortLived.Resolve(ctx, "0xalice")
	s.Require().NoError(err)
	s.Equal(id, resolved)

	time.Sleep(1500 * time.Millisecond)

	_, err = shortLived.Resolve(ctx, "0xalice")
	s.ErrorIs(err, sentinel.ErrNotFound, "expired entry falls through to the store")
}
