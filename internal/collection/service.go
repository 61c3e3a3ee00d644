package collection

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"catalog/pkg/domain"
	dErrors "catalog/pkg/domain-errors"
	"catalog/pkg/platform/audit"
	"catalog/pkg/platform/sentinel"
	"catalog/pkg/requestcontext"
)

// Store is the persistence port for collections.
type Store interface {
	Create(ctx context.Context, c Collection) error
	Replace(ctx context.Context, c Collection) error
	Get(ctx context.Context, id uuid.UUID) (*Collection, error)
	SetOwner(ctx context.Context, id uuid.UUID, owner domain.Address) error
	AppendSequence(ctx context.Context, id uuid.UUID, seq Sequence) (domain.SequenceID, error)
	RemoveSequence(ctx context.Context, id uuid.UUID, seqID domain.SequenceID) error
	GetSequence(ctx context.Context, id uuid.UUID, seqID domain.SequenceID) (*Sequence, error)
	MintToken(ctx context.Context, id uuid.UUID, seqID domain.SequenceID, to domain.Address, data TokenData) (domain.TokenID, error)
	BurnToken(ctx context.Context, id uuid.UUID, token domain.TokenID) error
	TokenData(ctx context.Context, id uuid.UUID, token domain.TokenID) (*TokenData, error)
	TokenOwner(ctx context.Context, id uuid.UUID, token domain.TokenID) (domain.Address, error)
	Balance(ctx context.Context, id uuid.UUID, addr domain.Address) (uint64, error)
	TotalSupply(ctx context.Context, id uuid.UUID) (uint64, error)
}

// Nodes is the slice of the node graph collections depend on.
type Nodes interface {
	IsAuthorizedAddressForNode(ctx context.Context, id domain.NodeID, addr domain.Address) (bool, error)
}

// Engine validates sequence configuration and answers pricing queries. The
// concrete issuance engine registers itself at wiring time; a sequence is
// permanently bound to the engine address it was configured with.
type Engine interface {
	EngineAddress() domain.Address
	ConfigureSequence(ctx context.Context, actor domain.Address, collectionID uuid.UUID, seq Sequence, data []byte) error
	TokenURI(ctx context.Context, collectionID uuid.UUID, seq Sequence, token domain.TokenID, data TokenData) (string, error)
	RoyaltyInfo(ctx context.Context, collectionID uuid.UUID, seqID domain.SequenceID, salePrice domain.Amount) (domain.Address, domain.Amount, error)
}

// Service manages collection instances. It doubles as the factory: new
// collections are produced against a control node the caller must be
// authorized over, and the shared template is created pre-initialized so it
// can never be operated.
type Service struct {
	store      Store
	nodes      Nodes
	engines    map[domain.Address]Engine
	templateID uuid.UUID
	logger     *slog.Logger
	auditor    audit.Emitter

	// configMu serializes configure attempts so a rejected configuration
	// always unwinds the sequence it staged, never a neighbour's.
	configMu sync.Mutex
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditor(a audit.Emitter) Option {
	return func(s *Service) { s.auditor = a }
}

func New(store Store, nodes Nodes, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("collection store is required")
	}
	if nodes == nil {
		return nil, errors.New("node graph is required")
	}
	svc := &Service{
		store:      store,
		nodes:      nodes,
		engines:    make(map[domain.Address]Engine),
		templateID: uuid.New(),
	}
	for _, opt := range opts {
		opt(svc)
	}

	// The template is born initialized so direct use fails the same way a
	// double-init does.
	if err := store.Create(context.Background(), Collection{
		ID:          svc.templateID,
		Initialized: true,
	}); err != nil {
		return nil, err
	}
	return svc, nil
}

// RegisterEngine makes an issuance engine available for sequence
// configuration. Called at wiring time, not concurrency-safe afterwards.
func (s *Service) RegisterEngine(e Engine) {
	s.engines[e.EngineAddress()] = e
}

// TemplateID returns the id of the dead template instance.
func (s *Service) TemplateID() uuid.UUID { return s.templateID }

// CreateParams carries the fields for a new collection.
type CreateParams struct {
	Name        string
	Symbol      string
	ContractURI string
	Metadata    string
	Owner       domain.Address
	ControlNode domain.NodeID
}

// CreateCollection produces a new initialized collection bound to a control
// node the actor is authorized over.
func (s *Service) CreateCollection(ctx context.Context, actor domain.Address, params CreateParams) (uuid.UUID, error) {
	ok, err := s.nodes.IsAuthorizedAddressForNode(ctx, params.ControlNode, actor)
	if err != nil {
		return uuid.Nil, err
	}
	if !ok {
		return uuid.Nil, dErrors.New(dErrors.CodeNotAuthorized, "not authorized over control node")
	}

	id := uuid.New()
	if err := s.store.Create(ctx, Collection{ID: id}); err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create collection")
	}
	if err := s.Init(ctx, actor, id, params); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// Init performs the one-time setup of a collection instance. Fails
// AlreadyInitialized on any instance that has been set up, including the
// factory template.
func (s *Service) Init(ctx context.Context, actor domain.Address, id uuid.UUID, params CreateParams) error {
	c, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if c.Initialized {
		return dErrors.New(dErrors.CodeAlreadyInitialized, "collection is already initialized")
	}

	c.Name = params.Name
	c.Symbol = params.Symbol
	c.ContractURI = params.ContractURI
	c.Metadata = params.Metadata
	c.Owner = params.Owner
	c.ControlNode = params.ControlNode
	c.Initialized = true
	c.CreatedAt = requestcontext.Now(ctx)
	if err := s.replace(ctx, *c); err != nil {
		return err
	}

	audit.Emit(ctx, s.logger, s.auditor, audit.Event{
		Name:       audit.EventCollectionCreated,
		Actor:      actor,
		Collection: id,
		Node:       params.ControlNode,
		Recipient:  params.Owner,
	})
	return nil
}

// SetOwner changes the collection's administrative owner.
func (s *Service) SetOwner(ctx context.Context, actor domain.Address, id uuid.UUID, newOwner domain.Address) error {
	c, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if actor != c.Owner {
		return dErrors.New(dErrors.CodeNotAuthorized, "only the current owner may set owner")
	}
	if err := s.store.SetOwner(ctx, id, newOwner); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to set owner")
	}

	audit.Emit(ctx, s.logger, s.auditor, audit.Event{
		Name:       audit.EventCollectionOwnerChanged,
		Actor:      actor,
		Collection: id,
		Recipient:  newOwner,
	})
	return nil
}

// ConfigureSequence validates and stores a new sequence, delegating the
// engine payload to the bound engine before anything persists. Assigns the
// next sequence id scoped to this collection.
func (s *Service) ConfigureSequence(ctx context.Context, actor domain.Address, id uuid.UUID, cfg SequenceConfig, engineData []byte) (domain.SequenceID, error) {
	if id == s.templateID {
		return 0, dErrors.New(dErrors.CodeInvalidConfiguration, "the template instance cannot be operated")
	}
	if _, err := s.get(ctx, id); err != nil {
		return 0, err
	}

	ok, err := s.nodes.IsAuthorizedAddressForNode(ctx, cfg.DropNode, actor)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, dErrors.New(dErrors.CodeNotAuthorized, "not authorized over drop node")
	}

	if cfg.Minted != 0 {
		return 0, dErrors.New(dErrors.CodeInvalidSequenceConfig, "minted must be submitted as zero")
	}
	if cfg.SealedBefore != 0 && cfg.SealedAfter != 0 && cfg.SealedBefore >= cfg.SealedAfter {
		return 0, dErrors.New(dErrors.CodeInvalidSequenceConfig, "sealedBefore must precede sealedAfter")
	}
	now := requestcontext.Now(ctx)
	if cfg.SealedAfter != 0 && cfg.SealedAfter < now.Unix() {
		return 0, dErrors.New(dErrors.CodeInvalidSequenceConfig, "sealedAfter is in the past")
	}
	engine, ok := s.engines[cfg.Engine]
	if !ok {
		return 0, dErrors.Newf(dErrors.CodeInvalidSequenceConfig, "unknown engine %s", cfg.Engine)
	}

	seq := Sequence{
		DropNode:     cfg.DropNode,
		Engine:       cfg.Engine,
		SealedBefore: cfg.SealedBefore,
		SealedAfter:  cfg.SealedAfter,
		MaxSupply:    cfg.MaxSupply,
	}

	s.configMu.Lock()
	defer s.configMu.Unlock()

	seqID, err := s.store.AppendSequence(ctx, id, seq)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store sequence")
	}
	seq.ID = seqID

	// Engine rejection unwinds the sequence so no partial state survives.
	if err := engine.ConfigureSequence(ctx, actor, id, seq, engineData); err != nil {
		if removeErr := s.store.RemoveSequence(ctx, id, seqID); removeErr != nil && s.logger != nil {
			s.logger.ErrorContext(ctx, "failed to unwind rejected sequence",
				"collection", id, "sequence", seqID, "error", removeErr)
		}
		return 0, err
	}

	audit.Emit(ctx, s.logger, s.auditor, audit.Event{
		Name:       audit.EventSequenceConfigured,
		Actor:      actor,
		Collection: id,
		Sequence:   seqID,
		Node:       cfg.DropNode,
	})
	return seqID, nil
}

// MintRecord is the engine-only mint entry point. The caller identifies
// itself by engine address; only the sequence's bound engine is accepted.
func (s *Service) MintRecord(ctx context.Context, engine domain.Address, id uuid.UUID, seqID domain.SequenceID, to domain.Address) (domain.TokenID, error) {
	seq, err := s.store.GetSequence(ctx, id, seqID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return 0, dErrors.Newf(dErrors.CodeInvalidMintRequest, "sequence %d does not exist", seqID)
		}
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load sequence")
	}
	if engine.IsZero() || engine != seq.Engine {
		return 0, dErrors.New(dErrors.CodeInvalidMintRequest, "caller is not the sequence engine")
	}

	now := requestcontext.Now(ctx)
	if seq.SealedBefore != 0 && now.Unix() < seq.SealedBefore {
		return 0, dErrors.New(dErrors.CodeSequenceIsSealed, "mint window has not opened")
	}
	if seq.SealedAfter != 0 && now.Unix() > seq.SealedAfter {
		return 0, dErrors.New(dErrors.CodeSequenceIsSealed, "mint window has closed")
	}
	if seq.MaxSupply != 0 && seq.Minted >= seq.MaxSupply {
		return 0, dErrors.New(dErrors.CodeSequenceSupplyExhausted, "sequence supply exhausted")
	}

	token, err := s.store.MintToken(ctx, id, seqID, to, TokenData{
		Sequence: seqID,
		Edition:  seq.Minted + 1,
		MintedAt: now,
	})
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to mint token")
	}

	audit.Emit(ctx, s.logger, s.auditor, audit.Event{
		Name:       audit.EventRecordMinted,
		Collection: id,
		Sequence:   seqID,
		Token:      token,
		Recipient:  to,
	})
	return token, nil
}

// RevertMint is the engine-only compensation path: it unwinds tokens minted
// earlier in the same logical operation when settlement fails.
func (s *Service) RevertMint(ctx context.Context, engine domain.Address, id uuid.UUID, tokens []domain.TokenID) error {
	for _, token := range tokens {
		data, err := s.store.TokenData(ctx, id, token)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load token for revert")
		}
		seq, err := s.store.GetSequence(ctx, id, data.Sequence)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load sequence for revert")
		}
		if engine.IsZero() || engine != seq.Engine {
			return dErrors.New(dErrors.CodeInvalidMintRequest, "caller is not the sequence engine")
		}
		if err := s.store.BurnToken(ctx, id, token); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revert token")
		}
	}
	return nil
}

// Get returns the collection record.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Collection, error) {
	return s.get(ctx, id)
}

// GetSequence returns one sequence of the collection.
func (s *Service) GetSequence(ctx context.Context, id uuid.UUID, seqID domain.SequenceID) (*Sequence, error) {
	seq, err := s.store.GetSequence(ctx, id, seqID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "sequence %d does not exist", seqID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load sequence")
	}
	return seq, nil
}

// OwnerOf returns the holder of a token.
func (s *Service) OwnerOf(ctx context.Context, id uuid.UUID, token domain.TokenID) (domain.Address, error) {
	owner, err := s.store.TokenOwner(ctx, id, token)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return domain.ZeroAddress, dErrors.Newf(dErrors.CodeNotFound, "token %d does not exist", token)
		}
		return domain.ZeroAddress, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load token owner")
	}
	return owner, nil
}

// BalanceOf returns how many of the collection's tokens an address holds.
func (s *Service) BalanceOf(ctx context.Context, id uuid.UUID, addr domain.Address) (uint64, error) {
	balance, err := s.store.Balance(ctx, id, addr)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load balance")
	}
	return balance, nil
}

// TotalSupply returns the number of live tokens in the collection.
func (s *Service) TotalSupply(ctx context.Context, id uuid.UUID) (uint64, error) {
	supply, err := s.store.TotalSupply(ctx, id)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load total supply")
	}
	return supply, nil
}

// GetTokenData returns a token's provenance record.
func (s *Service) GetTokenData(ctx context.Context, id uuid.UUID, token domain.TokenID) (*TokenData, error) {
	data, err := s.store.TokenData(ctx, id, token)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "token %d does not exist", token)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load token data")
	}
	return data, nil
}

// TokenURI delegates metadata rendering inputs to the sequence's engine.
func (s *Service) TokenURI(ctx context.Context, id uuid.UUID, token domain.TokenID) (string, error) {
	data, err := s.GetTokenData(ctx, id, token)
	if err != nil {
		return "", err
	}
	seq, err := s.GetSequence(ctx, id, data.Sequence)
	if err != nil {
		return "", err
	}
	engine, ok := s.engines[seq.Engine]
	if !ok {
		return "", dErrors.Newf(dErrors.CodeInternal, "engine %s is not registered", seq.Engine)
	}
	return engine.TokenURI(ctx, id, *seq, token, *data)
}

// RoyaltyInfo delegates to the engine-side drop record of the token's
// sequence.
func (s *Service) RoyaltyInfo(ctx context.Context, id uuid.UUID, token domain.TokenID, salePrice domain.Amount) (domain.Address, domain.Amount, error) {
	data, err := s.GetTokenData(ctx, id, token)
	if err != nil {
		return domain.ZeroAddress, 0, err
	}
	seq, err := s.GetSequence(ctx, id, data.Sequence)
	if err != nil {
		return domain.ZeroAddress, 0, err
	}
	engine, ok := s.engines[seq.Engine]
	if !ok {
		return domain.ZeroAddress, 0, dErrors.Newf(dErrors.CodeInternal, "engine %s is not registered", seq.Engine)
	}
	return engine.RoyaltyInfo(ctx, id, seq.ID, salePrice)
}

func (s *Service) get(ctx context.Context, id uuid.UUID) (*Collection, error) {
	c, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "collection %s does not exist", id)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load collection")
	}
	return c, nil
}

func (s *Service) replace(ctx context.Context, c Collection) error {
	if err := s.store.Replace(ctx, c); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update collection")
	}
	return nil
}
