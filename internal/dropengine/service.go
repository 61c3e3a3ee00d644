// Package dropengine implements the sequence-driven issuance engine:
// configuration-time validation of drop economics, linear price decay,
// payment settlement with protocol fee skim and overpayment refund, and the
// permissioned mint path. All state keyed by (collection, sequence).
package dropengine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"catalog/internal/collection"
	"catalog/internal/dropengine/metrics"
	"catalog/internal/payments"
	"catalog/pkg/domain"
	dErrors "catalog/pkg/domain-errors"
	"catalog/pkg/platform/audit"
	"catalog/pkg/requestcontext"
)

const secondsPerDay = 86400

// Collections is the slice of the collection service the engine mints
// through.
type Collections interface {
	GetSequence(ctx context.Context, id uuid.UUID, seqID domain.SequenceID) (*collection.Sequence, error)
	MintRecord(ctx context.Context, engine domain.Address, id uuid.UUID, seqID domain.SequenceID, to domain.Address) (domain.TokenID, error)
	RevertMint(ctx context.Context, engine domain.Address, id uuid.UUID, tokens []domain.TokenID) error
}

// Service is the issuance engine. One instance serves any number of
// collections; its identity for sequence binding is its engine address.
// The mutex serializes the mint path so a failing settlement always unwinds
// against the state it observed.
type Service struct {
	mu sync.Mutex

	address           domain.Address
	owner             domain.Address
	primarySaleFeeBps uint16
	drops             map[DropKey]*Drop

	collections Collections
	ledger      *payments.Ledger
	logger      *slog.Logger
	auditor     audit.Emitter
	metrics     *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditor(a audit.Emitter) Option {
	return func(s *Service) { s.auditor = a }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithOwner sets the administrative owner allowed to change the protocol
// fee. Without an owner every fee-administration call fails Unauthorized.
func WithOwner(owner domain.Address) Option {
	return func(s *Service) { s.owner = owner }
}

func New(address domain.Address, collections Collections, ledger *payments.Ledger, opts ...Option) (*Service, error) {
	if address.IsZero() {
		return nil, errors.New("engine address is required")
	}
	if collections == nil {
		return nil, errors.New("collection service is required")
	}
	if ledger == nil {
		return nil, errors.New("payments ledger is required")
	}
	svc := &Service{
		address:     address,
		collections: collections,
		ledger:      ledger,
		drops:       make(map[DropKey]*Drop),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// EngineAddress identifies this engine for sequence binding.
func (s *Service) EngineAddress() domain.Address { return s.address }

// ConfigureSequence validates the drop payload and stores the pricing
// record. Rejections are permanent and leave no partial state.
func (s *Service) ConfigureSequence(ctx context.Context, _ domain.Address, collectionID uuid.UUID, seq collection.Sequence, data []byte) error {
	var cfg DropConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInvalidConfiguration, "malformed engine data")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.validateConfig(ctx, cfg, seq); err != nil {
		return err
	}

	key := DropKey{Collection: collectionID, Sequence: seq.ID}
	s.drops[key] = &Drop{
		Price:                    cfg.Price,
		RoyaltyBps:               cfg.RoyaltyBps,
		RevenueRecipient:         cfg.RevenueRecipient,
		URIPrefix:                cfg.URIPrefix,
		DecayStopTimestamp:       cfg.DecayStopTimestamp,
		PriceDecayPerDay:         cfg.PriceDecayPerDay,
		PrimarySaleFeeBps:        cfg.PrimarySaleFeeBps,
		AllowContractMints:       cfg.AllowContractMints,
		MaxRecordsPerTransaction: maxRecords(cfg.MaxRecordsPerTransaction),
		MintAuthority:            cfg.MintAuthority,
	}

	if s.metrics != nil {
		s.metrics.IncDropsConfigured()
	}
	return nil
}

// validateConfig enforces the configuration-time invariants. Callers hold
// s.mu so the fee snapshot check reads a stable protocol fee.
func (s *Service) validateConfig(ctx context.Context, cfg DropConfig, seq collection.Sequence) error {
	if cfg.RoyaltyBps > 10000 {
		return dErrors.New(dErrors.CodeInvalidRoyaltyBps, "royalty bps must not exceed 10000")
	}

	decaying := cfg.DecayStopTimestamp != 0 || !cfg.PriceDecayPerDay.IsZero()
	if cfg.Price.IsZero() && !decaying && !cfg.RevenueRecipient.IsZero() {
		return dErrors.New(dErrors.CodeInvalidPriceOrRecipient, "free drops must not name a revenue recipient")
	}
	if (!cfg.Price.IsZero() || decaying) && cfg.RevenueRecipient.IsZero() {
		return dErrors.New(dErrors.CodeInvalidPriceOrRecipient, "priced drops require a revenue recipient")
	}

	if decaying {
		if cfg.DecayStopTimestamp == 0 || cfg.PriceDecayPerDay.IsZero() {
			return dErrors.New(dErrors.CodeInvalidPriceDecayConfig, "decay stop and decay rate must be set together")
		}
		now := requestcontext.Now(ctx).Unix()
		if cfg.DecayStopTimestamp < now {
			return dErrors.New(dErrors.CodeInvalidPriceDecayConfig, "decay stop is in the past")
		}
		if seq.SealedBefore != 0 && cfg.DecayStopTimestamp < seq.SealedBefore {
			return dErrors.New(dErrors.CodeInvalidPriceDecayConfig, "decay stops before the mint window opens")
		}
		if seq.SealedAfter != 0 && cfg.DecayStopTimestamp > seq.SealedAfter {
			return dErrors.New(dErrors.CodeInvalidPriceDecayConfig, "decay stops after the mint window closes")
		}

		// The elevation is largest right now; if it fits here, every later
		// price computation fits too.
		elevation, err := cfg.PriceDecayPerDay.Mul(uint64(cfg.DecayStopTimestamp - now))
		if err != nil {
			return dErrors.New(dErrors.CodeInvalidPriceDecayConfig, "decay elevation overflows")
		}
		if _, err := cfg.Price.Add(elevation / secondsPerDay); err != nil {
			return dErrors.New(dErrors.CodeInvalidPriceDecayConfig, "starting price overflows")
		}
	}

	if cfg.PrimarySaleFeeBps != s.primarySaleFeeBps {
		return dErrors.Newf(dErrors.CodeInvalidPrimarySaleFee,
			"fee snapshot %d does not match the protocol fee %d", cfg.PrimarySaleFeeBps, s.primarySaleFeeBps)
	}
	return nil
}

// GetDrop returns the pricing record for a sequence.
func (s *Service) GetDrop(_ context.Context, collectionID uuid.UUID, seqID domain.SequenceID) (*Drop, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	drop, ok := s.drops[DropKey{Collection: collectionID, Sequence: seqID}]
	if !ok {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "no drop for sequence %d", seqID)
	}
	copied := *drop
	return &copied, nil
}

// CurrentPrice computes the unit price at the ambient clock: the floor
// price plus the remaining decay, clamped to the floor once the stop time
// passes.
func (s *Service) CurrentPrice(ctx context.Context, collectionID uuid.UUID, seqID domain.SequenceID) (domain.Amount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	drop, ok := s.drops[DropKey{Collection: collectionID, Sequence: seqID}]
	if !ok {
		return 0, dErrors.Newf(dErrors.CodeNotFound, "no drop for sequence %d", seqID)
	}
	return unitPrice(drop, requestcontext.Now(ctx)), nil
}

func unitPrice(drop *Drop, now time.Time) domain.Amount {
	if drop.PriceDecayPerDay.IsZero() {
		return drop.Price
	}
	remaining := drop.DecayStopTimestamp - now.Unix()
	if remaining <= 0 {
		return drop.Price
	}
	elevation, err := drop.PriceDecayPerDay.Mul(uint64(remaining))
	if err != nil {
		return drop.Price
	}
	elevation = elevation / secondsPerDay
	price, err := drop.Price.Add(elevation)
	if err != nil {
		return drop.Price
	}
	return price
}

// MintRequest is one public mint attempt.
type MintRequest struct {
	Collection uuid.UUID
	Sequence   domain.SequenceID
	Quantity   uint64
	Payment    domain.Amount
}

// Mint settles a public purchase: price and payment checks first, then the
// per-unit mints, and the value transfers last so a transfer rejection
// unwinds the whole attempt.
func (s *Service) Mint(ctx context.Context, actor domain.Address, req MintRequest) ([]domain.TokenID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := DropKey{Collection: req.Collection, Sequence: req.Sequence}
	drop, ok := s.drops[key]
	if !ok {
		return nil, s.mintFailure(dErrors.Newf(dErrors.CodeNotFound, "no drop for sequence %d", req.Sequence))
	}

	if s.ledger.IsContract(actor) && !drop.AllowContractMints {
		return nil, s.mintFailure(dErrors.New(dErrors.CodeMinterMustBeEOA, "minting is restricted to direct callers"))
	}
	if req.Quantity == 0 || req.Quantity > uint64(drop.MaxRecordsPerTransaction) {
		return nil, s.mintFailure(dErrors.Newf(dErrors.CodeInvalidMintAmount,
			"quantity must be between 1 and %d", drop.MaxRecordsPerTransaction))
	}
	if !drop.MintAuthority.IsZero() {
		return nil, s.mintFailure(dErrors.New(dErrors.CodePublicMintNotActive, "sequence is in permissioned mode"))
	}

	price := unitPrice(drop, requestcontext.Now(ctx))
	total, err := price.Mul(req.Quantity)
	if err != nil {
		return nil, s.mintFailure(dErrors.Wrap(err, dErrors.CodeInvalidMintAmount, "total price overflow"))
	}
	if req.Payment < total {
		return nil, s.mintFailure(dErrors.Newf(dErrors.CodeIncorrectPaymentAmount,
			"payment %s does not cover %s", req.Payment, total))
	}

	tokens, err := s.mintUnits(ctx, req.Collection, req.Sequence, actor, req.Quantity)
	if err != nil {
		return nil, s.mintFailure(err)
	}

	if err := s.settle(ctx, actor, drop, req.Payment, total); err != nil {
		// Settlement failed after the counters moved; unwind them all.
		if revertErr := s.collections.RevertMint(ctx, s.address, req.Collection, tokens); revertErr != nil && s.logger != nil {
			s.logger.ErrorContext(ctx, "failed to revert mint after settlement failure",
				"collection", req.Collection, "sequence", req.Sequence, "error", revertErr)
		}
		return nil, s.mintFailure(err)
	}

	if s.metrics != nil {
		s.metrics.AddRecordsMinted(len(tokens))
	}
	return tokens, nil
}

func (s *Service) mintUnits(ctx context.Context, collectionID uuid.UUID, seqID domain.SequenceID, to domain.Address, quantity uint64) ([]domain.TokenID, error) {
	tokens := make([]domain.TokenID, 0, quantity)
	for i := uint64(0); i < quantity; i++ {
		token, err := s.collections.MintRecord(ctx, s.address, collectionID, seqID, to)
		if err != nil {
			if len(tokens) > 0 {
				if revertErr := s.collections.RevertMint(ctx, s.address, collectionID, tokens); revertErr != nil && s.logger != nil {
					s.logger.ErrorContext(ctx, "failed to revert partial mint", "error", revertErr)
				}
			}
			return nil, err
		}
		tokens = append(tokens, token)
	}
	return tokens, nil
}

// settle moves all value for one mint atomically: payment in, fee retained
// by the engine, remainder forwarded, excess refunded.
func (s *Service) settle(ctx context.Context, payer domain.Address, drop *Drop, payment, total domain.Amount) error {
	fee := total.BasisPoints(drop.PrimarySaleFeeBps)
	forward, err := total.Sub(fee)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "fee exceeds total")
	}
	refund, err := payment.Sub(total)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "refund underflow")
	}

	err = s.ledger.Transact(ctx, func(tx *payments.Tx) error {
		if err := tx.Transfer(payer, s.address, payment); err != nil {
			return err
		}
		if err := tx.Transfer(s.address, drop.RevenueRecipient, forward); err != nil {
			return err
		}
		return tx.Transfer(s.address, payer, refund)
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeCouldNotTransferFunds, "settlement transfer was rejected")
	}

	if s.metrics != nil {
		s.metrics.AddRevenueSettled(uint64(forward))
		s.metrics.AddFeesRetained(uint64(fee))
	}
	if !forward.IsZero() {
		audit.Emit(ctx, s.logger, s.auditor, audit.Event{
			Name:      audit.EventRevenueForwarded,
			Actor:     payer,
			Amount:    forward,
			Recipient: drop.RevenueRecipient,
		})
	}
	return nil
}

// PermissionedMint is the alternate entry for sequences with a mint
// authority: no payment, no quantity gate, but seal and supply still apply
// through the collection.
func (s *Service) PermissionedMint(ctx context.Context, actor domain.Address, collectionID uuid.UUID, seqID domain.SequenceID, to domain.Address) (domain.TokenID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	drop, ok := s.drops[DropKey{Collection: collectionID, Sequence: seqID}]
	if !ok {
		return 0, dErrors.Newf(dErrors.CodeNotFound, "no drop for sequence %d", seqID)
	}
	if drop.MintAuthority.IsZero() || actor != drop.MintAuthority {
		return 0, dErrors.New(dErrors.CodeNotMintAuthority, "caller is not the mint authority")
	}
	return s.collections.MintRecord(ctx, s.address, collectionID, seqID, to)
}

// ClearMintAuthority re-enables public minting for a permissioned sequence.
func (s *Service) ClearMintAuthority(ctx context.Context, actor domain.Address, collectionID uuid.UUID, seqID domain.SequenceID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	drop, ok := s.drops[DropKey{Collection: collectionID, Sequence: seqID}]
	if !ok {
		return dErrors.Newf(dErrors.CodeNotFound, "no drop for sequence %d", seqID)
	}
	if drop.MintAuthority.IsZero() || actor != drop.MintAuthority {
		return dErrors.New(dErrors.CodeNotMintAuthority, "caller is not the mint authority")
	}
	drop.MintAuthority = domain.ZeroAddress

	audit.Emit(ctx, s.logger, s.auditor, audit.Event{
		Name:       audit.EventMintAuthorityCleared,
		Actor:      actor,
		Collection: collectionID,
		Sequence:   seqID,
	})
	return nil
}

// PrimarySaleFeeBps returns the current protocol fee.
func (s *Service) PrimarySaleFeeBps() uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.primarySaleFeeBps
}

// SetPrimarySaleFeeBps changes the protocol fee for future drops. Existing
// drops keep their snapshot.
func (s *Service) SetPrimarySaleFeeBps(ctx context.Context, actor domain.Address, bps uint16) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.owner.IsZero() || actor != s.owner {
		return dErrors.New(dErrors.CodeUnauthorized, "fee administration restricted to the engine owner")
	}
	if bps > 10000 {
		return dErrors.New(dErrors.CodeInvalidPrimarySaleFee, "fee must not exceed 10000 bps")
	}
	s.primarySaleFeeBps = bps

	audit.Emit(ctx, s.logger, s.auditor, audit.Event{
		Name:    audit.EventPrimarySaleFeeChanged,
		Actor:   actor,
		Message: fmt.Sprintf("%d", bps),
	})
	return nil
}

// TransferOwnership hands the engine's administrative role to a new owner.
func (s *Service) TransferOwnership(ctx context.Context, actor, newOwner domain.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.owner.IsZero() || actor != s.owner {
		return dErrors.New(dErrors.CodeUnauthorized, "ownership transfer restricted to the engine owner")
	}
	s.owner = newOwner

	audit.Emit(ctx, s.logger, s.auditor, audit.Event{
		Name:      audit.EventEngineOwnerChanged,
		Actor:     actor,
		Recipient: newOwner,
	})
	return nil
}

// TransferFeesToOwner sweeps the engine's retained balance to the current
// owner. Permissionless; a rejected transfer reverts fully so the balance
// is never lost and the sweep can be retried.
func (s *Service) TransferFeesToOwner(ctx context.Context) error {
	s.mu.Lock()
	owner := s.owner
	s.mu.Unlock()

	balance := s.ledger.Balance(s.address)
	if balance.IsZero() {
		return nil
	}
	err := s.ledger.Transact(ctx, func(tx *payments.Tx) error {
		return tx.Transfer(s.address, owner, balance)
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeCouldNotTransferFunds, "fee sweep was rejected")
	}

	audit.Emit(ctx, s.logger, s.auditor, audit.Event{
		Name:      audit.EventFeesSwept,
		Amount:    balance,
		Recipient: owner,
	})
	return nil
}

// TokenURI renders the engine's metadata pointer for a token.
func (s *Service) TokenURI(_ context.Context, collectionID uuid.UUID, seq collection.Sequence, token domain.TokenID, data collection.TokenData) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	drop, ok := s.drops[DropKey{Collection: collectionID, Sequence: seq.ID}]
	if !ok {
		return "", dErrors.Newf(dErrors.CodeNotFound, "no drop for sequence %d", seq.ID)
	}
	if drop.URIPrefix != "" {
		return fmt.Sprintf("%s%d", drop.URIPrefix, token), nil
	}
	// Without an external prefix the engine names the record itself.
	return fmt.Sprintf("data:text/plain,Sequence %d, Edition %s",
		seq.ID, EditionLabel(data.Edition, seq.MaxSupply)), nil
}

// RoyaltyInfo reports the royalty recipient and amount for a sale price.
func (s *Service) RoyaltyInfo(_ context.Context, collectionID uuid.UUID, seqID domain.SequenceID, salePrice domain.Amount) (domain.Address, domain.Amount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	drop, ok := s.drops[DropKey{Collection: collectionID, Sequence: seqID}]
	if !ok {
		return domain.ZeroAddress, 0, dErrors.Newf(dErrors.CodeNotFound, "no drop for sequence %d", seqID)
	}
	return drop.RevenueRecipient, salePrice.BasisPoints(drop.RoyaltyBps), nil
}

func (s *Service) mintFailure(err error) error {
	if s.metrics != nil {
		s.metrics.IncMintFailure(string(dErrors.CodeOf(err)))
	}
	return err
}

func maxRecords(configured uint8) uint8 {
	if configured == 0 {
		return 1
	}
	return configured
}
