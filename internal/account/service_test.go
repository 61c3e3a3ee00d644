package account

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"catalog/pkg/domain"
	dErrors "catalog/pkg/domain-errors"
	"catalog/pkg/platform/audit"
	auditmem "catalog/pkg/platform/audit/store/memory"
)

const (
	a0 = domain.Address("0xa0")
	a1 = domain.Address("0xa1")
	a2 = domain.Address("0xa2")
)

type AccountServiceSuite struct {
	suite.Suite
	svc    *Service
	events *auditmem.InMemoryStore
	ctx    context.Context
}

func (s *AccountServiceSuite) SetupTest() {
	s.events = auditmem.NewInMemoryStore()
	svc, err := New(NewInMemoryStore(), WithAuditor(s.events))
	s.Require().NoError(err)
	s.svc = svc
	s.ctx = context.Background()
}

func TestAccountServiceSuite(t *testing.T) {
	suite.Run(t, new(AccountServiceSuite))
}

func (s *AccountServiceSuite) TestRegister() {
	s.Run("creates a new account with id 1", func() {
		id, err := s.svc.Register(s.ctx, a0, a0, "")
		s.Require().NoError(err)
		s.Equal(domain.AccountID(1), id)

		resolved, err := s.svc.Resolve(s.ctx, a0)
		s.Require().NoError(err)
		s.Equal(id, resolved)
	})

	s.Run("assigns dense increasing ids", func() {
		id2, err := s.svc.Register(s.ctx, a1, a1, "")
		s.Require().NoError(err)
		s.Equal(domain.AccountID(2), id2)
	})

	s.Run("rejects a second account per address", func() {
		_, err := s.svc.Register(s.ctx, a0, a0, "")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeAccountAlreadyExists))
	})
}

func (s *AccountServiceSuite) TestResolve() {
	s.Run("returns zero for unregistered address", func() {
		id, err := s.svc.Resolve(s.ctx, a2)
		s.Require().NoError(err)
		s.True(id.IsZero())
	})

	s.Run("required variant fails NoAccount", func() {
		_, err := s.svc.ResolveRequired(s.ctx, a2)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNoAccount))
	})
}

func (s *AccountServiceSuite) TestTransfer() {
	s.Run("moves id and vacates source", func() {
		_, err := s.svc.Register(s.ctx, a0, a0, "")
		s.Require().NoError(err)

		id, err := s.svc.Transfer(s.ctx, a0, a1)
		s.Require().NoError(err)
		s.Equal(domain.AccountID(1), id)

		vacated, err := s.svc.Resolve(s.ctx, a0)
		s.Require().NoError(err)
		s.True(vacated.IsZero())

		moved, err := s.svc.Resolve(s.ctx, a1)
		s.Require().NoError(err)
		s.Equal(domain.AccountID(1), moved)
	})

	s.Run("fails NoAccount for unregistered invoker", func() {
		_, err := s.svc.Transfer(s.ctx, a2, a1)
		s.True(dErrors.HasCode(err, dErrors.CodeNoAccount))
	})

	s.Run("fails if destination already registered", func() {
		_, err := s.svc.Register(s.ctx, a2, a2, "")
		s.Require().NoError(err)

		_, err = s.svc.Transfer(s.ctx, a1, a2)
		s.True(dErrors.HasCode(err, dErrors.CodeAccountAlreadyExists))
	})
}

func (s *AccountServiceSuite) TestBroadcast() {
	s.Run("emits an event tagged with the account id", func() {
		_, err := s.svc.Register(s.ctx, a0, a0, "")
		s.Require().NoError(err)

		s.Require().NoError(s.svc.Broadcast(s.ctx, a0, "foo", "bar"))

		events, err := s.events.ListByName(s.ctx, audit.EventAccountBroadcast)
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal(domain.AccountID(1), events[0].Account)
		s.Equal("foo", events[0].Topic)
		s.Equal("bar", events[0].Message)
	})

	s.Run("fails NoAccount without an account", func() {
		err := s.svc.Broadcast(s.ctx, a1, "foo", "bar")
		s.True(dErrors.HasCode(err, dErrors.CodeNoAccount))
	})
}

type TrustedIssuerSuite struct {
	suite.Suite
	svc *Service
	ctx context.Context
}

func (s *TrustedIssuerSuite) SetupTest() {
	svc, err := New(NewInMemoryStore(), WithTrustedIssuerMode(a0))
	s.Require().NoError(err)
	s.svc = svc
	s.ctx = context.Background()
}

func TestTrustedIssuerSuite(t *testing.T) {
	suite.Run(t, new(TrustedIssuerSuite))
}

func (s *TrustedIssuerSuite) TestIssuerGating() {
	s.Run("non-admin cannot designate issuers", func() {
		err := s.svc.SetIssuer(s.ctx, a1, a1, true)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("non-issuer cannot register", func() {
		_, err := s.svc.Register(s.ctx, a1, a2, "")
		s.True(dErrors.HasCode(err, dErrors.CodeNotAuthorizedAccountIssuer))
	})

	s.Run("designated issuer registers on behalf of another address", func() {
		s.Require().NoError(s.svc.SetIssuer(s.ctx, a0, a0, true))

		id, err := s.svc.Register(s.ctx, a0, a1, "")
		s.Require().NoError(err)
		s.Equal(domain.AccountID(1), id)
	})

	s.Run("revoked issuer loses registration rights", func() {
		s.Require().NoError(s.svc.SetIssuer(s.ctx, a0, a0, false))

		_, err := s.svc.Register(s.ctx, a0, a2, "")
		s.True(dErrors.HasCode(err, dErrors.CodeNotAuthorizedAccountIssuer))
	})
}
