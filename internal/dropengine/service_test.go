package dropengine

import (
	"context"
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"catalog/internal/account"
	"catalog/internal/collection"
	"catalog/internal/node"
	"catalog/internal/payments"
	"catalog/pkg/domain"
	dErrors "catalog/pkg/domain-errors"
	"catalog/pkg/platform/audit"
	auditmem "catalog/pkg/platform/audit/store/memory"
	"catalog/pkg/requestcontext"
)

const (
	a0        = domain.Address("0xa0")
	a1        = domain.Address("0xa1")
	a2        = domain.Address("0xa2")
	engineKey = domain.Address("0xengine")
	admin     = domain.Address("0xadmin")
)

type DropEngineSuite struct {
	suite.Suite
	accounts    *account.Service
	nodes       *node.Service
	collections *collection.Service
	ledger      *payments.Ledger
	engine      *Service
	events      *auditmem.InMemoryStore
	ctx         context.Context
	collectID   uuid.UUID
}

func (s *DropEngineSuite) SetupTest() {
	var err error
	s.accounts, err = account.New(account.NewInMemoryStore())
	s.Require().NoError(err)
	s.nodes, err = node.New(node.NewInMemoryStore(), s.accounts)
	s.Require().NoError(err)
	s.collections, err = collection.New(collection.NewInMemoryStore(), s.nodes)
	s.Require().NoError(err)

	s.ledger = payments.NewLedger()
	s.events = auditmem.NewInMemoryStore()
	s.engine, err = New(engineKey, s.collections, s.ledger,
		WithOwner(admin), WithAuditor(s.events))
	s.Require().NoError(err)
	s.collections.RegisterEngine(s.engine)

	s.ctx = context.Background()

	// Standard setup: account 1 owns node 1 and a collection controlled
	// by it.
	_, err = s.accounts.Register(s.ctx, a0, a0, "")
	s.Require().NoError(err)
	_, err = s.nodes.CreateNode(s.ctx, a0, node.CreateRequest{Type: 1, Owner: 1})
	s.Require().NoError(err)
	s.collectID, err = s.collections.CreateCollection(s.ctx, a0, collection.CreateParams{
		Name: "Test", Symbol: "TEST", Owner: a0, ControlNode: 1,
	})
	s.Require().NoError(err)
}

func TestDropEngineSuite(t *testing.T) {
	suite.Run(t, new(DropEngineSuite))
}

func (s *DropEngineSuite) seqConfig() collection.SequenceConfig {
	return collection.SequenceConfig{DropNode: 1, Engine: engineKey, MaxSupply: 10000}
}

func (s *DropEngineSuite) encode(cfg DropConfig) []byte {
	data, err := json.Marshal(cfg)
	s.Require().NoError(err)
	return data
}

func (s *DropEngineSuite) configure(seqCfg collection.SequenceConfig, dropCfg DropConfig) domain.SequenceID {
	seqID, err := s.collections.ConfigureSequence(s.ctx, a0, s.collectID, seqCfg, s.encode(dropCfg))
	s.Require().NoError(err)
	return seqID
}

func (s *DropEngineSuite) TestConfigureDrop() {
	s.Run("stores the pricing record", func() {
		seqID := s.configure(s.seqConfig(), DropConfig{
			Price: 100, RoyaltyBps: 500, RevenueRecipient: a1, MaxRecordsPerTransaction: 1,
		})

		drop, err := s.engine.GetDrop(s.ctx, s.collectID, seqID)
		s.Require().NoError(err)
		s.Equal(domain.Amount(100), drop.Price)
		s.Equal(uint16(500), drop.RoyaltyBps)
		s.Equal(a1, drop.RevenueRecipient)
	})

	s.Run("rejects royalty bps above 10000", func() {
		_, err := s.collections.ConfigureSequence(s.ctx, a0, s.collectID, s.seqConfig(),
			s.encode(DropConfig{Price: 100, RoyaltyBps: 10001, RevenueRecipient: a1}))
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidRoyaltyBps))
	})

	s.Run("rejects a recipient on a free drop", func() {
		_, err := s.collections.ConfigureSequence(s.ctx, a0, s.collectID, s.seqConfig(),
			s.encode(DropConfig{RoyaltyBps: 500, RevenueRecipient: a0}))
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidPriceOrRecipient))
	})

	s.Run("rejects a priced drop without a recipient", func() {
		_, err := s.collections.ConfigureSequence(s.ctx, a0, s.collectID, s.seqConfig(),
			s.encode(DropConfig{Price: 100, RoyaltyBps: 500}))
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidPriceOrRecipient))
	})

	s.Run("engine rejection leaves no sequence behind", func() {
		_, err := s.collections.ConfigureSequence(s.ctx, a0, s.collectID, s.seqConfig(),
			s.encode(DropConfig{Price: 100, RoyaltyBps: 10001, RevenueRecipient: a1}))
		s.Require().Error(err)

		next := s.configure(s.seqConfig(), DropConfig{MaxRecordsPerTransaction: 1})
		prev := s.configure(s.seqConfig(), DropConfig{MaxRecordsPerTransaction: 1})
		s.Equal(next+1, prev)
	})
}

func (s *DropEngineSuite) TestMint() {
	s.Run("mints at the configured price", func() {
		seqID := s.configure(s.seqConfig(), DropConfig{
			Price: 100, RoyaltyBps: 500, RevenueRecipient: a1, MaxRecordsPerTransaction: 5,
		})
		s.Require().NoError(s.ledger.Deposit(a0, 1000))

		tokens, err := s.engine.Mint(s.ctx, a0, MintRequest{
			Collection: s.collectID, Sequence: seqID, Quantity: 5, Payment: 500,
		})
		s.Require().NoError(err)
		s.Len(tokens, 5)

		s.Equal(domain.Amount(500), s.ledger.Balance(a1))
		s.Equal(domain.Amount(500), s.ledger.Balance(a0))

		balance, err := s.collections.BalanceOf(s.ctx, s.collectID, a0)
		s.Require().NoError(err)
		s.Equal(uint64(5), balance)
	})

	s.Run("royalty info reflects the drop record", func() {
		recipient, amount, err := s.collections.RoyaltyInfo(s.ctx, s.collectID, 1, 10000)
		s.Require().NoError(err)
		s.Equal(a1, recipient)
		s.Equal(domain.Amount(500), amount)
	})

	s.Run("rejects underpayment", func() {
		seqID := s.configure(s.seqConfig(), DropConfig{
			Price: 100, RoyaltyBps: 500, RevenueRecipient: a1, MaxRecordsPerTransaction: 1,
		})
		_, err := s.engine.Mint(s.ctx, a0, MintRequest{
			Collection: s.collectID, Sequence: seqID, Quantity: 1, Payment: 99,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeIncorrectPaymentAmount))
	})

	s.Run("refunds overpayment", func() {
		seqID := s.configure(s.seqConfig(), DropConfig{
			Price: 100, RoyaltyBps: 500, RevenueRecipient: a2, MaxRecordsPerTransaction: 1,
		})
		s.Require().NoError(s.ledger.Deposit(a1, 1000))

		_, err := s.engine.Mint(s.ctx, a1, MintRequest{
			Collection: s.collectID, Sequence: seqID, Quantity: 1, Payment: 1000,
		})
		s.Require().NoError(err)
		s.Equal(domain.Amount(100), s.ledger.Balance(a2))
		s.Equal(domain.Amount(900), s.ledger.Balance(a1))
	})

	s.Run("allows free drops", func() {
		seqID := s.configure(s.seqConfig(), DropConfig{MaxRecordsPerTransaction: 3})
		tokens, err := s.engine.Mint(s.ctx, a2, MintRequest{
			Collection: s.collectID, Sequence: seqID, Quantity: 3,
		})
		s.Require().NoError(err)
		s.Len(tokens, 3)
	})

	s.Run("rejects zero quantity and quantity above the per-call limit", func() {
		seqID := s.configure(s.seqConfig(), DropConfig{MaxRecordsPerTransaction: 3})
		_, err := s.engine.Mint(s.ctx, a0, MintRequest{
			Collection: s.collectID, Sequence: seqID, Quantity: 0,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidMintAmount))

		_, err = s.engine.Mint(s.ctx, a0, MintRequest{
			Collection: s.collectID, Sequence: seqID, Quantity: 5,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidMintAmount))
	})

	s.Run("rejects contract callers unless allowed", func() {
		s.ledger.SetContract(a2, true)
		seqID := s.configure(s.seqConfig(), DropConfig{MaxRecordsPerTransaction: 1})
		_, err := s.engine.Mint(s.ctx, a2, MintRequest{
			Collection: s.collectID, Sequence: seqID, Quantity: 1,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeMinterMustBeEOA))

		open := s.configure(s.seqConfig(), DropConfig{AllowContractMints: true, MaxRecordsPerTransaction: 1})
		_, err = s.engine.Mint(s.ctx, a2, MintRequest{
			Collection: s.collectID, Sequence: open, Quantity: 1,
		})
		s.Require().NoError(err)
	})
}

func (s *DropEngineSuite) TestSettlementRollback() {
	s.Run("rejected revenue forwarding unwinds the mint", func() {
		broken := domain.Address("0xbroken")
		s.ledger.SetRejecting(broken, true)
		seqID := s.configure(s.seqConfig(), DropConfig{
			Price: 100, RoyaltyBps: 500, RevenueRecipient: broken, MaxRecordsPerTransaction: 1,
		})
		s.Require().NoError(s.ledger.Deposit(a0, 100))

		before, err := s.collections.TotalSupply(s.ctx, s.collectID)
		s.Require().NoError(err)

		_, err = s.engine.Mint(s.ctx, a0, MintRequest{
			Collection: s.collectID, Sequence: seqID, Quantity: 1, Payment: 100,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeCouldNotTransferFunds))

		after, err := s.collections.TotalSupply(s.ctx, s.collectID)
		s.Require().NoError(err)
		s.Equal(before, after)
		s.Equal(domain.Amount(100), s.ledger.Balance(a0))

		seq, err := s.collections.GetSequence(s.ctx, s.collectID, seqID)
		s.Require().NoError(err)
		s.Zero(seq.Minted)
	})

	s.Run("rejected refund unwinds the mint", func() {
		s.ledger.SetRejecting(a1, true)
		s.Require().NoError(s.ledger.Deposit(a1, 1000))
		seqID := s.configure(s.seqConfig(), DropConfig{
			Price: 100, RoyaltyBps: 500, RevenueRecipient: a2, MaxRecordsPerTransaction: 1,
		})

		_, err := s.engine.Mint(s.ctx, a1, MintRequest{
			Collection: s.collectID, Sequence: seqID, Quantity: 1, Payment: 200,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeCouldNotTransferFunds))
		s.Equal(domain.Amount(1000), s.ledger.Balance(a1))
		s.Equal(domain.Amount(0), s.ledger.Balance(a2))
	})
}

func (s *DropEngineSuite) TestPrimarySaleFees() {
	s.Run("retains the configured fee on mint", func() {
		s.Require().NoError(s.engine.SetPrimarySaleFeeBps(s.ctx, admin, 1000))
		seqID := s.configure(s.seqConfig(), DropConfig{
			Price: 300, RoyaltyBps: 500, RevenueRecipient: a1,
			PrimarySaleFeeBps: 1000, MaxRecordsPerTransaction: 10,
		})
		s.Require().NoError(s.ledger.Deposit(a0, 900))

		_, err := s.engine.Mint(s.ctx, a0, MintRequest{
			Collection: s.collectID, Sequence: seqID, Quantity: 3, Payment: 900,
		})
		s.Require().NoError(err)
		s.Equal(domain.Amount(90), s.ledger.Balance(engineKey))
		s.Equal(domain.Amount(810), s.ledger.Balance(a1))
	})

	s.Run("rejects non-owner fee changes", func() {
		err := s.engine.SetPrimarySaleFeeBps(s.ctx, a0, 100)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("rejects a fee above 100 percent", func() {
		s.Require().NoError(s.engine.SetPrimarySaleFeeBps(s.ctx, admin, 10000))
		err := s.engine.SetPrimarySaleFeeBps(s.ctx, admin, 10001)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidPrimarySaleFee))
		s.Require().NoError(s.engine.SetPrimarySaleFeeBps(s.ctx, admin, 1000))
	})

	s.Run("rejects a configuration whose fee snapshot mismatches", func() {
		_, err := s.collections.ConfigureSequence(s.ctx, a0, s.collectID, s.seqConfig(),
			s.encode(DropConfig{Price: 300, RoyaltyBps: 500, RevenueRecipient: a1, PrimarySaleFeeBps: 500}))
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidPrimarySaleFee))
	})

	s.Run("keeps the snapshot when the protocol fee changes later", func() {
		seqID := s.configure(s.seqConfig(), DropConfig{
			Price: 300, RoyaltyBps: 500, RevenueRecipient: a1,
			PrimarySaleFeeBps: 1000, MaxRecordsPerTransaction: 10,
		})
		s.Require().NoError(s.engine.SetPrimarySaleFeeBps(s.ctx, admin, 0))
		s.Require().NoError(s.ledger.Deposit(a2, 900))

		engineBefore := s.ledger.Balance(engineKey)
		_, err := s.engine.Mint(s.ctx, a2, MintRequest{
			Collection: s.collectID, Sequence: seqID, Quantity: 3, Payment: 900,
		})
		s.Require().NoError(err)
		s.Equal(domain.Amount(90), s.ledger.Balance(engineKey)-engineBefore)
	})

	s.Run("sweeps retained fees to the owner permissionlessly", func() {
		retained := s.ledger.Balance(engineKey)
		s.Require().NotZero(retained)

		s.Require().NoError(s.engine.TransferFeesToOwner(s.ctx))
		s.Equal(domain.Amount(0), s.ledger.Balance(engineKey))
		s.Equal(retained, s.ledger.Balance(admin))
	})

	s.Run("a rejected sweep reverts and keeps the balance", func() {
		s.Require().NoError(s.engine.SetPrimarySaleFeeBps(s.ctx, admin, 1000))
		seqID := s.configure(s.seqConfig(), DropConfig{
			Price: 100, RoyaltyBps: 0, RevenueRecipient: a1,
			PrimarySaleFeeBps: 1000, MaxRecordsPerTransaction: 1,
		})
		s.Require().NoError(s.ledger.Deposit(a0, 100))
		_, err := s.engine.Mint(s.ctx, a0, MintRequest{
			Collection: s.collectID, Sequence: seqID, Quantity: 1, Payment: 100,
		})
		s.Require().NoError(err)

		s.ledger.SetRejecting(admin, true)
		err = s.engine.TransferFeesToOwner(s.ctx)
		s.True(dErrors.HasCode(err, dErrors.CodeCouldNotTransferFunds))
		s.Equal(domain.Amount(10), s.ledger.Balance(engineKey))
	})
}

func (s *DropEngineSuite) TestTransferOwnership() {
	s.Run("rejects non-owner transfers", func() {
		err := s.engine.TransferOwnership(s.ctx, a0, a1)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("hands the engine to the new owner and records the change", func() {
		s.Require().NoError(s.engine.TransferOwnership(s.ctx, admin, a1))

		err := s.engine.SetPrimarySaleFeeBps(s.ctx, admin, 100)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
		s.Require().NoError(s.engine.SetPrimarySaleFeeBps(s.ctx, a1, 100))

		events, err := s.events.ListByName(s.ctx, audit.EventEngineOwnerChanged)
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal(admin, events[0].Actor)
		s.Equal(a1, events[0].Recipient)
	})
}

func (s *DropEngineSuite) TestPriceDecay() {
	day := int64(86400)
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	at := func(t time.Time) context.Context { return requestcontext.WithTime(s.ctx, t) }

	s.Run("price decreases linearly toward the floor", func() {
		stop := base.Unix() + 100*day
		seqID, err := s.collections.ConfigureSequence(at(base), a0, s.collectID, s.seqConfig(),
			s.encode(DropConfig{
				Price: 1000, RoyaltyBps: 10000, RevenueRecipient: a1,
				DecayStopTimestamp: stop, PriceDecayPerDay: 10, MaxRecordsPerTransaction: 1,
			}))
		s.Require().NoError(err)

		price, err := s.engine.CurrentPrice(at(base), s.collectID, seqID)
		s.Require().NoError(err)
		s.Equal(domain.Amount(2000), price)

		price, err = s.engine.CurrentPrice(at(base.Add(time.Duration(10*day)*time.Second)), s.collectID, seqID)
		s.Require().NoError(err)
		s.Equal(domain.Amount(1900), price)

		price, err = s.engine.CurrentPrice(at(base.Add(time.Duration(90*day)*time.Second)), s.collectID, seqID)
		s.Require().NoError(err)
		s.Equal(domain.Amount(1100), price)
	})

	s.Run("price equals the floor at and after the stop time", func() {
		stopTime := base.Add(time.Duration(100*86400) * time.Second)
		price, err := s.engine.CurrentPrice(at(stopTime), s.collectID, 1)
		s.Require().NoError(err)
		s.Equal(domain.Amount(1000), price)

		price, err = s.engine.CurrentPrice(at(stopTime.Add(24*time.Hour)), s.collectID, 1)
		s.Require().NoError(err)
		s.Equal(domain.Amount(1000), price)
	})

	s.Run("rejects a decay stop in the past", func() {
		_, err := s.collections.ConfigureSequence(at(base), a0, s.collectID, s.seqConfig(),
			s.encode(DropConfig{
				Price: 100, RoyaltyBps: 10000, RevenueRecipient: a1,
				DecayStopTimestamp: base.Unix() - 1000, PriceDecayPerDay: 1,
			}))
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidPriceDecayConfig))
	})

	s.Run("rejects a decay whose starting price overflows", func() {
		_, err := s.collections.ConfigureSequence(at(base), a0, s.collectID, s.seqConfig(),
			s.encode(DropConfig{
				Price: 100, RoyaltyBps: 10000, RevenueRecipient: a1,
				DecayStopTimestamp: base.Unix() + 100*day,
				PriceDecayPerDay:   domain.Amount(math.MaxUint64 / 2),
			}))
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidPriceDecayConfig))

		_, err = s.collections.ConfigureSequence(at(base), a0, s.collectID, s.seqConfig(),
			s.encode(DropConfig{
				Price: domain.Amount(math.MaxUint64 - 10), RoyaltyBps: 10000, RevenueRecipient: a1,
				DecayStopTimestamp: base.Unix() + 100*day, PriceDecayPerDay: 10,
			}))
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidPriceDecayConfig))
	})

	s.Run("rejects half-configured decay", func() {
		_, err := s.collections.ConfigureSequence(at(base), a0, s.collectID, s.seqConfig(),
			s.encode(DropConfig{
				Price: 100, RoyaltyBps: 10000, RevenueRecipient: a1,
				DecayStopTimestamp: base.Unix() + day,
			}))
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidPriceDecayConfig))
	})

	s.Run("a free decaying drop still requires a recipient", func() {
		_, err := s.collections.ConfigureSequence(at(base), a0, s.collectID, s.seqConfig(),
			s.encode(DropConfig{
				RoyaltyBps:         10000,
				DecayStopTimestamp: base.Unix() + day, PriceDecayPerDay: 1,
			}))
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidPriceOrRecipient))

		_, err = s.collections.ConfigureSequence(at(base), a0, s.collectID, s.seqConfig(),
			s.encode(DropConfig{
				RoyaltyBps: 10000, RevenueRecipient: a1,
				DecayStopTimestamp: base.Unix() + day, PriceDecayPerDay: 1,
				MaxRecordsPerTransaction: 1,
			}))
		s.Require().NoError(err)
	})

	s.Run("rejects decay stopping outside the mint window", func() {
		opens := base.Unix() + 2*day
		cfg := s.seqConfig()
		cfg.SealedBefore = opens
		_, err := s.collections.ConfigureSequence(at(base), a0, s.collectID, cfg,
			s.encode(DropConfig{
				Price: 100, RoyaltyBps: 10000, RevenueRecipient: a1,
				DecayStopTimestamp: opens - day, PriceDecayPerDay: 1,
			}))
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidPriceDecayConfig))

		closes := base.Unix() + 10*day
		cfg = s.seqConfig()
		cfg.SealedAfter = closes
		_, err = s.collections.ConfigureSequence(at(base), a0, s.collectID, cfg,
			s.encode(DropConfig{
				Price: 100, RoyaltyBps: 10000, RevenueRecipient: a1,
				DecayStopTimestamp: closes + day, PriceDecayPerDay: 1,
			}))
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidPriceDecayConfig))
	})
}

func (s *DropEngineSuite) TestPermissionedMint() {
	s.Run("public mint is disabled while an authority is set", func() {
		seqID := s.configure(s.seqConfig(), DropConfig{MintAuthority: a0, MaxRecordsPerTransaction: 1})
		_, err := s.engine.Mint(s.ctx, a0, MintRequest{
			Collection: s.collectID, Sequence: seqID, Quantity: 1,
		})
		s.True(dErrors.HasCode(err, dErrors.CodePublicMintNotActive))
	})

	s.Run("the authority mints on behalf of a recipient", func() {
		token, err := s.engine.PermissionedMint(s.ctx, a0, s.collectID, 1, a1)
		s.Require().NoError(err)

		owner, err := s.collections.OwnerOf(s.ctx, s.collectID, token)
		s.Require().NoError(err)
		s.Equal(a1, owner)
	})

	s.Run("rejects non-authority permissioned mints", func() {
		_, err := s.engine.PermissionedMint(s.ctx, a1, s.collectID, 1, a0)
		s.True(dErrors.HasCode(err, dErrors.CodeNotMintAuthority))
	})

	s.Run("rejects non-authority clears", func() {
		err := s.engine.ClearMintAuthority(s.ctx, a1, s.collectID, 1)
		s.True(dErrors.HasCode(err, dErrors.CodeNotMintAuthority))
	})

	s.Run("clearing the authority re-enables public mint", func() {
		s.Require().NoError(s.engine.ClearMintAuthority(s.ctx, a0, s.collectID, 1))
		_, err := s.engine.Mint(s.ctx, a1, MintRequest{
			Collection: s.collectID, Sequence: 1, Quantity: 1,
		})
		s.Require().NoError(err)
	})
}

func (s *DropEngineSuite) TestSupplyAndSeal() {
	s.Run("supply cap yields exactly max successful mints", func() {
		cfg := s.seqConfig()
		cfg.MaxSupply = 2
		seqID, err := s.collections.ConfigureSequence(s.ctx, a0, s.collectID, cfg,
			s.encode(DropConfig{MaxRecordsPerTransaction: 1}))
		s.Require().NoError(err)

		for i := 0; i < 2; i++ {
			_, err := s.engine.Mint(s.ctx, a0, MintRequest{
				Collection: s.collectID, Sequence: seqID, Quantity: 1,
			})
			s.Require().NoError(err)
		}
		_, err = s.engine.Mint(s.ctx, a0, MintRequest{
			Collection: s.collectID, Sequence: seqID, Quantity: 1,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeSequenceSupplyExhausted))
	})

	s.Run("minting after the window closes fails sealed", func() {
		base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
		ctx := requestcontext.WithTime(s.ctx, base)
		cfg := s.seqConfig()
		cfg.SealedAfter = base.Unix() + 60
		seqID, err := s.collections.ConfigureSequence(ctx, a0, s.collectID, cfg,
			s.encode(DropConfig{MaxRecordsPerTransaction: 1}))
		s.Require().NoError(err)

		late := requestcontext.WithTime(s.ctx, base.Add(120*time.Second))
		_, err = s.engine.Mint(late, a0, MintRequest{
			Collection: s.collectID, Sequence: seqID, Quantity: 1,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeSequenceIsSealed))
	})
}
