//go:build integration

package account_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"catalog/internal/account"
	"catalog/pkg/domain"
	"catalog/pkg/platform/sentinel"
	"catalog/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *account.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = account.NewPostgres(s.postgres.DB)
	s.Require().NoError(s.store.Migrate(context.Background()))
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	err := s.postgres.TruncateTables(ctx, "accounts", "account_issuers")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) TestCreateAndResolve() {
	ctx := context.Background()
	now := time.Now().UTC()

	created, err := s.store.Create(ctx, "0xalice", "alice metadata", now)
	s.Require().NoError(err)
	s.Equal(domain.Address("0xalice"), created.Address)
	s.Equal("alice metadata", created.Metadata)
	s.NotZero(created.ID)

	id, err := s.store.Resolve(ctx, "0xalice")
	s.Require().NoError(err)
	s.Equal(created.ID, id)

	// Ids stay dense and monotonic within a run.
	second, err := s.store.Create(ctx, "0xbob", "", now)
	s.Require().NoError(err)
	s.Equal(created.ID+1, second.ID)

	_, err = s.store.Resolve(ctx, "0xnobody")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestDuplicateAddress() {
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := s.store.Create(ctx, "0xalice", "", now)
	s.Require().NoError(err)

	_, err = s.store.Create(ctx, "0xalice", "again", now)
	s.ErrorIs(err, sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestTransfer() {
	ctx := context.Background()
	now := time.Now().UTC()

	created, err := s.store.Create(ctx, "0xalice", "", now)
	s.Require().NoError(err)

	id, err := s.store.Transfer(ctx, "0xalice", "0xalice-rotated")
	s.Require().NoError(err)
	s.Equal(created.ID, id, "identity survives a key rotation")

	resolved, err := s.store.Resolve(ctx, "0xalice-rotated")
	s.Require().NoError(err)
	s.Equal(created.ID, resolved)

	_, err = s.store.Resolve(ctx, "0xalice")
	s.ErrorIs(err, sentinel.ErrNotFound, "old address no longer resolves")
}

func (s *PostgresStoreSuite) TestTransferCollisions() {
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := s.store.Create(ctx, "0xalice", "", now)
	s.Require().NoError(err)
	_, err = s.store.Create(ctx, "0xbob", "", now)
	s.Require().NoError(err)

	_, err = s.store.Transfer(ctx, "0xalice", "0xbob")
	s.ErrorIs(err, sentinel.ErrConflict, "destination already registered")

	_, err = s.store.Transfer(ctx, "0xnobody", "0xfresh")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestIssuerFlag() {
	ctx := context.Background()

	ok, err := s.store.IsIssuer(ctx, "0xissuer")
	s.Require().NoError(err)
	s.False(ok)

	s.Require().NoError(s.store.SetIssuer(ctx, "0xissuer", true))
	// Enabling twice is idempotent.
	s.Require().NoError(s.store.SetIssuer(ctx, "0xissuer", true))

	ok, err = s.store.IsIssuer(ctx, "0xissuer")
	s.Require().NoError(err)
	s.True(ok)

	s.Require().NoError(s.store.SetIssuer(ctx, "0xissuer", false))
	ok, err = s.store.IsIssuer(ctx, "0xissuer")
	s.Require().NoError(err)
	s.False(ok)
}
