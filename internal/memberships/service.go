// Package memberships implements non-transferable roster badges bound to a
// control node. Admins curate the roster directly or publish a merkle root
// over (address, sequence) pairs so listed members can claim their own badge
// with an inclusion proof.
package memberships

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/transparency-dev/merkle/proof"
	"github.com/transparency-dev/merkle/rfc6962"

	"catalog/pkg/domain"
	dErrors "catalog/pkg/domain-errors"
	"catalog/pkg/platform/audit"
	"catalog/pkg/platform/sentinel"
	"catalog/pkg/requestcontext"
)

// Store persists roster instances and their tokens.
type Store interface {
	Create(ctx context.Context, m Memberships) error
	Replace(ctx context.Context, m Memberships) error
	Get(ctx context.Context, id uuid.UUID) (*Memberships, error)
	MintToken(ctx context.Context, id uuid.UUID, to domain.Address, data TokenData) (domain.TokenID, error)
	BurnToken(ctx context.Context, id uuid.UUID, token domain.TokenID) error
	SetTokenOwner(ctx context.Context, id uuid.UUID, token domain.TokenID, to domain.Address) error
	TokenData(ctx context.Context, id uuid.UUID, token domain.TokenID) (*TokenData, error)
	TokenOwner(ctx context.Context, id uuid.UUID, token domain.TokenID) (domain.Address, error)
	HolderToken(ctx context.Context, id uuid.UUID, addr domain.Address) (domain.TokenID, error)
	TotalSupply(ctx context.Context, id uuid.UUID) (uint64, error)
	TotalMinted(ctx context.Context, id uuid.UUID) (uint64, error)
}

// Nodes is the authorization surface the roster needs from the node graph.
type Nodes interface {
	IsAuthorizedAddressForNode(ctx context.Context, id domain.NodeID, addr domain.Address) (bool, error)
}

// MetadataResolver overrides how a roster renders its metadata pointers.
type MetadataResolver interface {
	ContractURI(m *Memberships) string
	TokenURI(m *Memberships, token domain.TokenID) string
}

// Service coordinates roster instances.
type Service struct {
	store      Store
	nodes      Nodes
	resolvers  map[string]MetadataResolver
	templateID uuid.UUID
	logger     *slog.Logger
	auditor    audit.Emitter
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditor(a audit.Emitter) Option {
	return func(s *Service) { s.auditor = a }
}

func New(store Store, nodes Nodes, opts ...Option) (*Service, error) {
	if store == nil || nodes == nil {
		return nil, errors.New("memberships: store and nodes are required")
	}
	s := &Service{
		store:      store,
		nodes:      nodes,
		resolvers:  make(map[string]MetadataResolver),
		templateID: uuid.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	// The template instance exists only so init attempts against it fail.
	if err := store.Create(context.Background(), Memberships{ID: s.templateID, Initialized: true}); err != nil {
		return nil, err
	}
	return s, nil
}

// RegisterResolver makes a named metadata resolver available. Called at
// wiring time, not concurrency-safe afterwards.
func (s *Service) RegisterResolver(name string, r MetadataResolver) {
	s.resolvers[name] = r
}

// TemplateID returns the id of the dead template instance.
func (s *Service) TemplateID() uuid.UUID { return s.templateID }

// CreateParams carries the fields for a new roster.
type CreateParams struct {
	Name        string
	Symbol      string
	BaseURI     string
	Owner       domain.Address
	ControlNode domain.NodeID
}

// CreateMemberships produces a new initialized roster bound to a control
// node the actor is authorized over.
func (s *Service) CreateMemberships(ctx context.Context, actor domain.Address, params CreateParams) (uuid.UUID, error) {
	if err := s.requireAdmin(ctx, actor, params.ControlNode); err != nil {
		return uuid.Nil, err
	}

	id := uuid.New()
	if err := s.store.Create(ctx, Memberships{ID: id}); err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create roster")
	}
	if err := s.Init(ctx, actor, id, params); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// Init performs the one-time setup of a roster instance. Fails
// AlreadyInitialized on any instance that has been set up, including the
// factory template.
func (s *Service) Init(ctx context.Context, actor domain.Address, id uuid.UUID, params CreateParams) error {
	m, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if m.Initialized {
		return dErrors.New(dErrors.CodeAlreadyInitialized, "roster is already initialized")
	}

	m.Name = params.Name
	m.Symbol = params.Symbol
	m.BaseURI = params.BaseURI
	m.Owner = params.Owner
	m.ControlNode = params.ControlNode
	m.Initialized = true
	m.CreatedAt = requestcontext.Now(ctx)
	if err := s.replace(ctx, *m); err != nil {
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

// SetOwner changes the roster's marketplace owner. Gated on control node
// authorization, not on the current owner.
func (s *Service) SetOwner(ctx context.Context, actor, newOwner domain.Address, id uuid.UUID) error {
	m, err := s.requireInstanceAdmin(ctx, actor, id)
	if err != nil {
		return err
	}
	m.Owner = newOwner
	if err := s.replace(ctx, *m); err != nil {
		return err
	}

	audit.Emit(ctx, s.logger, s.auditor, audit.Event{
		Name:       audit.EventMembershipOwnerChanged,
		Actor:      actor,
		Collection: id,
		Recipient:  newOwner,
	})
	return nil
}

// SetMembershipListRoot publishes a new allow-list root. Size is the leaf
// count the root commits to; proofs verify against both.
func (s *Service) SetMembershipListRoot(ctx context.Context, actor domain.Address, id uuid.UUID, root []byte, size uint64) error {
	m, err := s.requireInstanceAdmin(ctx, actor, id)
	if err != nil {
		return err
	}
	m.ListRoot = root
	m.ListSize = size
	if err := s.replace(ctx, *m); err != nil {
		return err
	}

	audit.Emit(ctx, s.logger, s.auditor, audit.Event{
		Name:       audit.EventMembershipRootChanged,
		Actor:      actor,
		Collection: id,
		Message:    fmt.Sprintf("%x", root),
	})
	return nil
}

// SetMetadataResolver points the roster at a registered resolver. An empty
// name restores the built-in base-URI rendering.
func (s *Service) SetMetadataResolver(ctx context.Context, actor domain.Address, id uuid.UUID, name string) error {
	m, err := s.requireInstanceAdmin(ctx, actor, id)
	if err != nil {
		return err
	}
	if name != "" {
		if _, ok := s.resolvers[name]; !ok {
			return dErrors.Newf(dErrors.CodeInvalidConfiguration, "unknown metadata resolver %q", name)
		}
	}
	m.Resolver = name
	if err := s.replace(ctx, *m); err != nil {
		return err
	}

	audit.Emit(ctx, s.logger, s.auditor, audit.Event{
		Name:       audit.EventMembershipResolverSet,
		Actor:      actor,
		Collection: id,
		Message:    name,
	})
	return nil
}

// BatchMintAndBurn applies an admin roster edit: mints first, then burns.
// Minting to an address that already holds a membership fails InvalidMint.
func (s *Service) BatchMintAndBurn(ctx context.Context, actor domain.Address, id uuid.UUID, mints []Mint, burns []domain.TokenID) error {
	if _, err := s.requireInstanceAdmin(ctx, actor, id); err != nil {
		return err
	}
	for _, mint := range mints {
		if _, err := s.mint(ctx, actor, id, mint.To, mint.Sequence); err != nil {
			return err
		}
	}
	for _, token := range burns {
		if err := s.burn(ctx, actor, id, token); err != nil {
			return err
		}
	}
	return nil
}

// UpdateMemberships swaps the allow-list root and applies a roster edit in
// one call.
func (s *Service) UpdateMemberships(ctx context.Context, actor domain.Address, id uuid.UUID, root []byte, size uint64, mints []Mint, burns []domain.TokenID) error {
	if err := s.SetMembershipListRoot(ctx, actor, id, root, size); err != nil {
		return err
	}
	return s.BatchMintAndBurn(ctx, actor, id, mints, burns)
}

// MintMemberships is the permissionless claim path: anyone may submit
// proofs, but every (to, sequence) leaf must verify against the published
// root and no recipient may already hold a membership.
func (s *Service) MintMemberships(ctx context.Context, actor domain.Address, id uuid.UUID, mints []ProofMint) error {
	m, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if len(m.ListRoot) == 0 {
		return dErrors.New(dErrors.CodeInvalidMint, "no membership list root is set")
	}

	for _, mint := range mints {
		leaf := rfc6962.DefaultHasher.HashLeaf(MembershipLeaf(mint.To, mint.Sequence))
		if err := proof.VerifyInclusion(rfc6962.DefaultHasher, mint.Index, m.ListSize, leaf, mint.Proof, m.ListRoot); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInvalidMint, "membership proof does not verify")
		}
		if _, err := s.mint(ctx, actor, id, mint.To, mint.Sequence); err != nil {
			return err
		}
	}
	return nil
}

// BurnMembership lets a holder destroy their own badge.
func (s *Service) BurnMembership(ctx context.Context, actor domain.Address, id uuid.UUID, token domain.TokenID) error {
	owner, err := s.store.TokenOwner(ctx, id, token)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeInvalidBurn, "caller does not hold this membership")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load membership owner")
	}
	if owner != actor {
		return dErrors.New(dErrors.CodeInvalidBurn, "caller does not hold this membership")
	}
	return s.burn(ctx, actor, id, token)
}

// Transfer always fails: memberships are soulbound. Admins use
// AdminTransferFrom.
func (s *Service) Transfer(context.Context, domain.Address, uuid.UUID, domain.TokenID, domain.Address) error {
	return dErrors.New(dErrors.CodeTransferNotAllowed, "memberships are not transferable")
}

// AdminTransferFrom force-moves a badge between addresses.
func (s *Service) AdminTransferFrom(ctx context.Context, actor domain.Address, id uuid.UUID, from, to domain.Address, token domain.TokenID) error {
	if _, err := s.requireInstanceAdmin(ctx, actor, id); err != nil {
		return err
	}
	if from.IsZero() || to.IsZero() {
		return dErrors.New(dErrors.CodeInvalidTransfer, "transfer endpoints must be nonzero")
	}
	owner, err := s.store.TokenOwner(ctx, id, token)
	if err != nil || owner != from {
		return dErrors.New(dErrors.CodeInvalidTransfer, "from does not hold this membership")
	}
	if err := s.store.SetTokenOwner(ctx, id, token, to); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return dErrors.New(dErrors.CodeInvalidTransfer, "recipient already holds a membership")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to transfer membership")
	}

	audit.Emit(ctx, s.logger, s.auditor, audit.Event{
		Name:       audit.EventMembershipTransferred,
		Actor:      actor,
		Collection: id,
		Token:      token,
		Recipient:  to,
	})
	return nil
}

// Get returns the roster record.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Memberships, error) {
	return s.get(ctx, id)
}

// BalanceOf reports 1 when the address holds a membership, else 0.
func (s *Service) BalanceOf(ctx context.Context, id uuid.UUID, addr domain.Address) (uint64, error) {
	if _, err := s.get(ctx, id); err != nil {
		return 0, err
	}
	if _, err := s.store.HolderToken(ctx, id, addr); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return 0, nil
		}
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load holder")
	}
	return 1, nil
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

// TotalSupply counts live memberships.
func (s *Service) TotalSupply(ctx context.Context, id uuid.UUID) (uint64, error) {
	supply, err := s.store.TotalSupply(ctx, id)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load total supply")
	}
	return supply, nil
}

// TotalMinted counts all memberships ever issued, burned ones included.
func (s *Service) TotalMinted(ctx context.Context, id uuid.UUID) (uint64, error) {
	minted, err := s.store.TotalMinted(ctx, id)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load total minted")
	}
	return minted, nil
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

// TokenURI renders the metadata pointer for a token.
func (s *Service) TokenURI(ctx context.Context, id uuid.UUID, token domain.TokenID) (string, error) {
	m, err := s.get(ctx, id)
	if err != nil {
		return "", err
	}
	if _, err := s.GetTokenData(ctx, id, token); err != nil {
		return "", err
	}
	if r, ok := s.resolvers[m.Resolver]; ok && m.Resolver != "" {
		return r.TokenURI(m, token), nil
	}
	return fmt.Sprintf("%s/%s/%d.json", m.BaseURI, m.ID, token), nil
}

// ContractURI renders the roster-level metadata pointer.
func (s *Service) ContractURI(ctx context.Context, id uuid.UUID) (string, error) {
	m, err := s.get(ctx, id)
	if err != nil {
		return "", err
	}
	if r, ok := s.resolvers[m.Resolver]; ok && m.Resolver != "" {
		return r.ContractURI(m), nil
	}
	return fmt.Sprintf("%s/%s/collection.json", m.BaseURI, m.ID), nil
}

func (s *Service) mint(ctx context.Context, actor domain.Address, id uuid.UUID, to domain.Address, seq domain.SequenceID) (domain.TokenID, error) {
	token, err := s.store.MintToken(ctx, id, to, TokenData{
		Sequence: seq,
		MintedAt: requestcontext.Now(ctx),
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return 0, dErrors.Newf(dErrors.CodeInvalidMint, "%s already holds a membership", to)
		}
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to mint membership")
	}

	audit.Emit(ctx, s.logger, s.auditor, audit.Event{
		Name:       audit.EventMembershipMinted,
		Actor:      actor,
		Collection: id,
		Sequence:   seq,
		Token:      token,
		Recipient:  to,
	})
	return token, nil
}

func (s *Service) burn(ctx context.Context, actor domain.Address, id uuid.UUID, token domain.TokenID) error {
	if err := s.store.BurnToken(ctx, id, token); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Newf(dErrors.CodeInvalidBurn, "token %d does not exist", token)
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to burn membership")
	}

	audit.Emit(ctx, s.logger, s.auditor, audit.Event{
		Name:       audit.EventMembershipBurned,
		Actor:      actor,
		Collection: id,
		Token:      token,
	})
	return nil
}

// requireInstanceAdmin loads the roster and checks the actor against its
// control node. Admin access never operates the template.
func (s *Service) requireInstanceAdmin(ctx context.Context, actor domain.Address, id uuid.UUID) (*Memberships, error) {
	if id == s.templateID {
		return nil, dErrors.New(dErrors.CodeInvalidConfiguration, "the template instance cannot be operated")
	}
	m, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.requireAdmin(ctx, actor, m.ControlNode); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Service) requireAdmin(ctx context.Context, actor domain.Address, node domain.NodeID) error {
	ok, err := s.nodes.IsAuthorizedAddressForNode(ctx, node, actor)
	if err != nil {
		return err
	}
	if !ok {
		return dErrors.New(dErrors.CodeNotAuthorized, "not authorized over control node")
	}
	return nil
}

func (s *Service) get(ctx context.Context, id uuid.UUID) (*Memberships, error) {
	m, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "roster %s does not exist", id)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load roster")
	}
	return m, nil
}

func (s *Service) replace(ctx context.Context, m Memberships) error {
	if err := s.store.Replace(ctx, m); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update roster")
	}
	return nil
}

// MembershipLeaf is the canonical leaf encoding committed by allow-list
// roots: address and sequence joined with a colon. List publishers build
// their trees over the same bytes.
func MembershipLeaf(to domain.Address, seq domain.SequenceID) []byte {
	return []byte(fmt.Sprintf("%s:%d", to, seq))
}
