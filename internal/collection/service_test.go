package collection_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"catalog/internal/account"
	"catalog/internal/collection"
	"catalog/internal/node"
	"catalog/pkg/domain"
	dErrors "catalog/pkg/domain-errors"
	"catalog/pkg/requestcontext"
)

const (
	a0        = domain.Address("0xa0")
	a1        = domain.Address("0xa1")
	engineKey = domain.Address("0xengine")
)

// stubEngine accepts every configuration unless told otherwise.
type stubEngine struct {
	address    domain.Address
	rejectNext error
	configured []domain.SequenceID
}

func (e *stubEngine) EngineAddress() domain.Address { return e.address }

func (e *stubEngine) ConfigureSequence(_ context.Context, _ domain.Address, _ uuid.UUID, seq collection.Sequence, _ []byte) error {
	if e.rejectNext != nil {
		err := e.rejectNext
		e.rejectNext = nil
		return err
	}
	e.configured = append(e.configured, seq.ID)
	return nil
}

func (e *stubEngine) TokenURI(_ context.Context, _ uuid.UUID, seq collection.Sequence, token domain.TokenID, _ collection.TokenData) (string, error) {
	return fmt.Sprintf("stub://%d/%d", seq.ID, token), nil
}

func (e *stubEngine) RoyaltyInfo(_ context.Context, _ uuid.UUID, _ domain.SequenceID, salePrice domain.Amount) (domain.Address, domain.Amount, error) {
	return e.address, salePrice.BasisPoints(100), nil
}

// blockingEngine parks inside validation until released, then rejects. It
// lets a test hold a configuration attempt open while others run.
type blockingEngine struct {
	address domain.Address
	entered chan struct{}
	release chan struct{}
}

func (e *blockingEngine) EngineAddress() domain.Address { return e.address }

func (e *blockingEngine) ConfigureSequence(context.Context, domain.Address, uuid.UUID, collection.Sequence, []byte) error {
	close(e.entered)
	<-e.release
	return dErrors.New(dErrors.CodeInvalidConfiguration, "validation failed")
}

func (e *blockingEngine) TokenURI(context.Context, uuid.UUID, collection.Sequence, domain.TokenID, collection.TokenData) (string, error) {
	return "", nil
}

func (e *blockingEngine) RoyaltyInfo(context.Context, uuid.UUID, domain.SequenceID, domain.Amount) (domain.Address, domain.Amount, error) {
	return domain.ZeroAddress, 0, nil
}

type CollectionServiceSuite struct {
	suite.Suite
	accounts *account.Service
	nodes    *node.Service
	svc      *collection.Service
	engine   *stubEngine
	ctx      context.Context
}

func (s *CollectionServiceSuite) SetupTest() {
	var err error
	s.accounts, err = account.New(account.NewInMemoryStore())
	s.Require().NoError(err)
	s.nodes, err = node.New(node.NewInMemoryStore(), s.accounts)
	s.Require().NoError(err)
	s.svc, err = collection.New(collection.NewInMemoryStore(), s.nodes)
	s.Require().NoError(err)

	s.engine = &stubEngine{address: engineKey}
	s.svc.RegisterEngine(s.engine)
	s.ctx = context.Background()

	_, err = s.accounts.Register(s.ctx, a0, a0, "")
	s.Require().NoError(err)
	_, err = s.nodes.CreateNode(s.ctx, a0, node.CreateRequest{Type: 1, Owner: 1})
	s.Require().NoError(err)
}

func TestCollectionServiceSuite(t *testing.T) {
	suite.Run(t, new(CollectionServiceSuite))
}

func (s *CollectionServiceSuite) create() uuid.UUID {
	id, err := s.svc.CreateCollection(s.ctx, a0, collection.CreateParams{
		Name: "Works", Symbol: "WRK", Owner: a0, ControlNode: 1,
	})
	s.Require().NoError(err)
	return id
}

func (s *CollectionServiceSuite) configure(id uuid.UUID, cfg collection.SequenceConfig) domain.SequenceID {
	if cfg.Engine.IsZero() {
		cfg.Engine = engineKey
	}
	if cfg.DropNode == 0 {
		cfg.DropNode = 1
	}
	seqID, err := s.svc.ConfigureSequence(s.ctx, a0, id, cfg, nil)
	s.Require().NoError(err)
	return seqID
}

func (s *CollectionServiceSuite) TestCreateCollection() {
	s.Run("creates an initialized instance", func() {
		id := s.create()
		c, err := s.svc.Get(s.ctx, id)
		s.Require().NoError(err)
		s.Equal("Works", c.Name)
		s.Equal(a0, c.Owner)
		s.True(c.Initialized)
	})

	s.Run("requires authorization over the control node", func() {
		_, err := s.svc.CreateCollection(s.ctx, a1, collection.CreateParams{
			Name: "Nope", Symbol: "NO", Owner: a1, ControlNode: 1,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeNotAuthorized))
	})

	s.Run("rejects repeat initialization", func() {
		id := s.create()
		err := s.svc.Init(s.ctx, a0, id, collection.CreateParams{Name: "Again"})
		s.True(dErrors.HasCode(err, dErrors.CodeAlreadyInitialized))
	})

	s.Run("the factory template cannot be initialized", func() {
		err := s.svc.Init(s.ctx, a0, s.svc.TemplateID(), collection.CreateParams{Name: "Template"})
		s.True(dErrors.HasCode(err, dErrors.CodeAlreadyInitialized))
	})

	s.Run("the factory template cannot receive sequences", func() {
		_, err := s.svc.ConfigureSequence(s.ctx, a0, s.svc.TemplateID(),
			collection.SequenceConfig{DropNode: 1, Engine: engineKey}, nil)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidConfiguration))
	})
}

func (s *CollectionServiceSuite) TestSetOwner() {
	id := s.create()

	s.Run("rejects non-owners", func() {
		err := s.svc.SetOwner(s.ctx, a1, id, a1)
		s.True(dErrors.HasCode(err, dErrors.CodeNotAuthorized))
	})

	s.Run("the owner hands over", func() {
		s.Require().NoError(s.svc.SetOwner(s.ctx, a0, id, a1))
		c, err := s.svc.Get(s.ctx, id)
		s.Require().NoError(err)
		s.Equal(a1, c.Owner)

		err = s.svc.SetOwner(s.ctx, a0, id, a0)
		s.True(dErrors.HasCode(err, dErrors.CodeNotAuthorized))
	})
}

func (s *CollectionServiceSuite) TestConfigureSequence() {
	id := s.create()

	s.Run("assigns dense per-collection sequence ids", func() {
		s.Equal(domain.SequenceID(1), s.configure(id, collection.SequenceConfig{}))
		s.Equal(domain.SequenceID(2), s.configure(id, collection.SequenceConfig{MaxSupply: 5}))

		seq, err := s.svc.GetSequence(s.ctx, id, 2)
		s.Require().NoError(err)
		s.Equal(uint64(5), seq.MaxSupply)
		s.Equal(engineKey, seq.Engine)
	})

	s.Run("requires authorization over the drop node", func() {
		_, err := s.svc.ConfigureSequence(s.ctx, a1, id,
			collection.SequenceConfig{DropNode: 1, Engine: engineKey}, nil)
		s.True(dErrors.HasCode(err, dErrors.CodeNotAuthorized))
	})

	s.Run("rejects nonzero submitted minted counts", func() {
		_, err := s.svc.ConfigureSequence(s.ctx, a0, id,
			collection.SequenceConfig{DropNode: 1, Engine: engineKey, Minted: 1}, nil)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidSequenceConfig))
	})

	s.Run("rejects an inverted mint window", func() {
		_, err := s.svc.ConfigureSequence(s.ctx, a0, id,
			collection.SequenceConfig{DropNode: 1, Engine: engineKey, SealedBefore: 200, SealedAfter: 100}, nil)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidSequenceConfig))
	})

	s.Run("rejects a close time in the past", func() {
		now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
		ctx := requestcontext.WithTime(s.ctx, now)
		_, err := s.svc.ConfigureSequence(ctx, a0, id,
			collection.SequenceConfig{DropNode: 1, Engine: engineKey, SealedAfter: now.Unix() - 1}, nil)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidSequenceConfig))
	})

	s.Run("rejects an unknown engine", func() {
		_, err := s.svc.ConfigureSequence(s.ctx, a0, id,
			collection.SequenceConfig{DropNode: 1, Engine: domain.Address("0xnobody")}, nil)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidSequenceConfig))
	})

	s.Run("engine rejection leaves no sequence behind", func() {
		s.engine.rejectNext = dErrors.New(dErrors.CodeInvalidConfiguration, "bad payload")
		_, err := s.svc.ConfigureSequence(s.ctx, a0, id,
			collection.SequenceConfig{DropNode: 1, Engine: engineKey}, nil)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidConfiguration))

		next := s.configure(id, collection.SequenceConfig{})
		_, err = s.svc.GetSequence(s.ctx, id, next+1)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

// A configuration rejected mid-validation must unwind its own staged
// sequence even when another configuration runs concurrently.
func (s *CollectionServiceSuite) TestConfigureSequenceSerialized() {
	id := s.create()

	slow := &blockingEngine{
		address: domain.Address("0xslow"),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	s.svc.RegisterEngine(slow)

	rejected := make(chan error, 1)
	go func() {
		_, err := s.svc.ConfigureSequence(s.ctx, a0, id,
			collection.SequenceConfig{DropNode: 1, Engine: slow.address}, nil)
		rejected <- err
	}()
	<-slow.entered

	type result struct {
		seqID domain.SequenceID
		err   error
	}
	accepted := make(chan result, 1)
	go func() {
		seqID, err := s.svc.ConfigureSequence(s.ctx, a0, id,
			collection.SequenceConfig{DropNode: 1, Engine: engineKey}, nil)
		accepted <- result{seqID, err}
	}()

	close(slow.release)
	s.True(dErrors.HasCode(<-rejected, dErrors.CodeInvalidConfiguration))

	good := <-accepted
	s.Require().NoError(good.err)
	s.Equal(domain.SequenceID(1), good.seqID)

	seq, err := s.svc.GetSequence(s.ctx, id, good.seqID)
	s.Require().NoError(err)
	s.Equal(engineKey, seq.Engine)

	_, err = s.svc.GetSequence(s.ctx, id, good.seqID+1)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *CollectionServiceSuite) TestMintRecord() {
	id := s.create()
	seqID := s.configure(id, collection.SequenceConfig{MaxSupply: 2})

	s.Run("only the bound engine may mint", func() {
		_, err := s.svc.MintRecord(s.ctx, domain.Address("0ximposter"), id, seqID, a0)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidMintRequest))

		_, err = s.svc.MintRecord(s.ctx, domain.ZeroAddress, id, seqID, a0)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidMintRequest))
	})

	s.Run("a missing sequence is an invalid request", func() {
		_, err := s.svc.MintRecord(s.ctx, engineKey, id, 99, a0)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidMintRequest))
	})

	s.Run("mints carry dense editions and a timestamp", func() {
		now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
		ctx := requestcontext.WithTime(s.ctx, now)

		first, err := s.svc.MintRecord(ctx, engineKey, id, seqID, a0)
		s.Require().NoError(err)
		second, err := s.svc.MintRecord(ctx, engineKey, id, seqID, a1)
		s.Require().NoError(err)
		s.Equal(first+1, second)

		data, err := s.svc.GetTokenData(s.ctx, id, second)
		s.Require().NoError(err)
		s.Equal(seqID, data.Sequence)
		s.Equal(uint64(2), data.Edition)
		s.Equal(now, data.MintedAt)
	})

	s.Run("supply cap stops further mints", func() {
		_, err := s.svc.MintRecord(s.ctx, engineKey, id, seqID, a0)
		s.True(dErrors.HasCode(err, dErrors.CodeSequenceSupplyExhausted))
	})

	s.Run("the window gates minting on both sides", func() {
		base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
		ctx := requestcontext.WithTime(s.ctx, base)
		gated, err := s.svc.ConfigureSequence(ctx, a0, id, collection.SequenceConfig{
			DropNode: 1, Engine: engineKey,
			SealedBefore: base.Unix() + 100, SealedAfter: base.Unix() + 200,
		}, nil)
		s.Require().NoError(err)

		_, err = s.svc.MintRecord(ctx, engineKey, id, gated, a0)
		s.True(dErrors.HasCode(err, dErrors.CodeSequenceIsSealed))

		open := requestcontext.WithTime(s.ctx, base.Add(150*time.Second))
		_, err = s.svc.MintRecord(open, engineKey, id, gated, a0)
		s.Require().NoError(err)

		late := requestcontext.WithTime(s.ctx, base.Add(300*time.Second))
		_, err = s.svc.MintRecord(late, engineKey, id, gated, a0)
		s.True(dErrors.HasCode(err, dErrors.CodeSequenceIsSealed))
	})
}

func (s *CollectionServiceSuite) TestRevertMint() {
	id := s.create()
	seqID := s.configure(id, collection.SequenceConfig{})

	token, err := s.svc.MintRecord(s.ctx, engineKey, id, seqID, a0)
	s.Require().NoError(err)

	s.Run("only the bound engine may revert", func() {
		err := s.svc.RevertMint(s.ctx, domain.Address("0ximposter"), id, []domain.TokenID{token})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidMintRequest))
	})

	s.Run("revert restores supply and the minted count", func() {
		s.Require().NoError(s.svc.RevertMint(s.ctx, engineKey, id, []domain.TokenID{token}))

		supply, err := s.svc.TotalSupply(s.ctx, id)
		s.Require().NoError(err)
		s.Zero(supply)

		seq, err := s.svc.GetSequence(s.ctx, id, seqID)
		s.Require().NoError(err)
		s.Zero(seq.Minted)

		_, err = s.svc.OwnerOf(s.ctx, id, token)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *CollectionServiceSuite) TestViews() {
	id := s.create()
	seqID := s.configure(id, collection.SequenceConfig{})
	token, err := s.svc.MintRecord(s.ctx, engineKey, id, seqID, a0)
	s.Require().NoError(err)

	s.Run("token uri delegates to the engine", func() {
		uri, err := s.svc.TokenURI(s.ctx, id, token)
		s.Require().NoError(err)
		s.Equal(fmt.Sprintf("stub://%d/%d", seqID, token), uri)
	})

	s.Run("royalty info delegates to the engine", func() {
		recipient, amount, err := s.svc.RoyaltyInfo(s.ctx, id, token, 10000)
		s.Require().NoError(err)
		s.Equal(engineKey, recipient)
		s.Equal(domain.Amount(100), amount)
	})

	s.Run("ownership views", func() {
		owner, err := s.svc.OwnerOf(s.ctx, id, token)
		s.Require().NoError(err)
		s.Equal(a0, owner)

		balance, err := s.svc.BalanceOf(s.ctx, id, a0)
		s.Require().NoError(err)
		s.Equal(uint64(1), balance)

		supply, err := s.svc.TotalSupply(s.ctx, id)
		s.Require().NoError(err)
		s.Equal(uint64(1), supply)
	})
}

// End-to-end shape of a drop: an account, a node it owns, a free sequence,
// three mints.
func (s *CollectionServiceSuite) TestScenario() {
	id := s.create()
	seqID := s.configure(id, collection.SequenceConfig{MaxSupply: 100})

	for i := 0; i < 3; i++ {
		_, err := s.svc.MintRecord(s.ctx, engineKey, id, seqID, a0)
		s.Require().NoError(err)
	}

	seq, err := s.svc.GetSequence(s.ctx, id, seqID)
	s.Require().NoError(err)
	s.Equal(uint64(3), seq.Minted)

	balance, err := s.svc.BalanceOf(s.ctx, id, a0)
	s.Require().NoError(err)
	s.Equal(uint64(3), balance)
}
