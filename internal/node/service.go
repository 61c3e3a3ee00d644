package node

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"catalog/internal/node/metrics"
	"catalog/pkg/domain"
	dErrors "catalog/pkg/domain-errors"
	"catalog/pkg/platform/audit"
	"catalog/pkg/platform/sentinel"
	"catalog/pkg/requestcontext"
)

// Store is the persistence port for the node graph.
type Store interface {
	Create(ctx context.Context, n Node, controllers []domain.Address, now time.Time) (*Node, error)
	Get(ctx context.Context, id domain.NodeID) (*Node, error)
	Exists(ctx context.Context, id domain.NodeID) (bool, error)
	Count(ctx context.Context) (uint64, error)
	SetOwner(ctx context.Context, id domain.NodeID, owner domain.AccountID) error
	SetGroup(ctx context.Context, id, group domain.NodeID) error
	SetParent(ctx context.Context, id, parent domain.NodeID) error
	SetPending(ctx context.Context, id domain.NodeID, to domain.AccountID) error
	Pending(ctx context.Context, id domain.NodeID) (domain.AccountID, error)
	SetController(ctx context.Context, id domain.NodeID, addr domain.Address, enabled bool) error
	IsController(ctx context.Context, id domain.NodeID, addr domain.Address) (bool, error)
}

// Accounts is the slice of the identity resolver the node graph depends on.
type Accounts interface {
	Resolve(ctx context.Context, addr domain.Address) (domain.AccountID, error)
	ResolveRequired(ctx context.Context, addr domain.Address) (domain.AccountID, error)
}

// Service maintains the node forest and answers the authorization queries
// every other module builds on. Authorization is a fixed two-hop check:
// node owner, group-node owner, node controllers, group-node controllers.
// Never a recursive walk.
type Service struct {
	store    Store
	accounts Accounts
	logger   *slog.Logger
	auditor  audit.Emitter
	metrics  *metrics.Metrics
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

func New(store Store, accounts Accounts, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("node store is required")
	}
	if accounts == nil {
		return nil, errors.New("account resolver is required")
	}
	svc := &Service{store: store, accounts: accounts}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// CreateRequest carries the fields for a new node. Owner may be zero for an
// ownerless node; Parent and Group must reference existing nodes when set.
type CreateRequest struct {
	Type        domain.NodeType
	Owner       domain.AccountID
	Parent      domain.NodeID
	Group       domain.NodeID
	Controllers []domain.Address
	Metadata    string
}

// CreateNode validates the request against the actor's authority and
// assigns the next node id.
func (s *Service) CreateNode(ctx context.Context, actor domain.Address, req CreateRequest) (domain.NodeID, error) {
	if req.Type == 0 {
		return 0, dErrors.New(dErrors.CodeInvalidNodeCreate, "node type must be non-zero")
	}
	if err := s.requireExists(ctx, req.Parent); err != nil {
		return 0, err
	}
	if err := s.requireExists(ctx, req.Group); err != nil {
		return 0, err
	}

	actorAccount, err := s.accounts.ResolveRequired(ctx, actor)
	if err != nil {
		return 0, err
	}
	if !req.Owner.IsZero() && req.Owner != actorAccount {
		return 0, s.authFailure("cannot create a node owned by another account")
	}
	if !req.Parent.IsZero() {
		if err := s.requireAuthorized(ctx, req.Parent, actor, actorAccount, "not authorized over parent node"); err != nil {
			return 0, err
		}
	}
	if !req.Group.IsZero() {
		if err := s.requireAuthorized(ctx, req.Group, actor, actorAccount, "not authorized over group node"); err != nil {
			return 0, err
		}
	}

	created, err := s.store.Create(ctx, Node{
		Type:     req.Type,
		Owner:    req.Owner,
		Parent:   req.Parent,
		Group:    req.Group,
		Metadata: req.Metadata,
	}, req.Controllers, requestcontext.Now(ctx))
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create node")
	}

	if s.metrics != nil {
		s.metrics.IncNodesCreated()
	}
	audit.Emit(ctx, s.logger, s.auditor, audit.Event{
		Name:    audit.EventNodeCreated,
		Actor:   actor,
		Account: req.Owner,
		Node:    created.ID,
	})
	return created.ID, nil
}

// Get returns a node by id.
func (s *Service) Get(ctx context.Context, id domain.NodeID) (*Node, error) {
	n, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "node %d does not exist", id)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load node")
	}
	return n, nil
}

// TotalNodeCount returns the number of nodes ever created.
func (s *Service) TotalNodeCount(ctx context.Context) (uint64, error) {
	count, err := s.store.Count(ctx)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count nodes")
	}
	return count, nil
}

// StartOwnerTransfer records to as the pending transfer recipient. Passing
// account zero cancels an in-flight transfer. The current owner keeps the
// node until the recipient completes.
func (s *Service) StartOwnerTransfer(ctx context.Context, actor domain.Address, id domain.NodeID, to domain.AccountID) error {
	actorAccount, err := s.accounts.ResolveRequired(ctx, actor)
	if err != nil {
		return err
	}
	if err := s.requireAuthorized(ctx, id, actor, actorAccount, "not authorized to transfer node"); err != nil {
		return err
	}
	if err := s.store.SetPending(ctx, id, to); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to stage owner transfer")
	}

	audit.Emit(ctx, s.logger, s.auditor, audit.Event{
		Name:    audit.EventNodeTransferStarted,
		Actor:   actor,
		Node:    id,
		Account: to,
	})
	return nil
}

// CompleteOwnerTransfer finishes a two-phase transfer. Only the pending
// recipient's resolved account may complete.
func (s *Service) CompleteOwnerTransfer(ctx context.Context, actor domain.Address, id domain.NodeID) error {
	actorAccount, err := s.accounts.ResolveRequired(ctx, actor)
	if err != nil {
		return err
	}
	pending, err := s.store.Pending(ctx, id)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load pending transfer")
	}
	if pending.IsZero() || pending != actorAccount {
		return s.authFailure("caller is not the pending transfer recipient")
	}

	if err := s.store.SetOwner(ctx, id, pending); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to apply owner transfer")
	}
	if err := s.store.SetPending(ctx, id, 0); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to clear pending transfer")
	}

	if s.metrics != nil {
		s.metrics.IncOwnerTransfers()
	}
	audit.Emit(ctx, s.logger, s.auditor, audit.Event{
		Name:    audit.EventNodeTransferCompleted,
		Actor:   actor,
		Node:    id,
		Account: pending,
	})
	return nil
}

// RemoveOwner clears the node's owner. Controllers are unaffected.
func (s *Service) RemoveOwner(ctx context.Context, actor domain.Address, id domain.NodeID) error {
	actorAccount, err := s.accounts.ResolveRequired(ctx, actor)
	if err != nil {
		return err
	}
	if err := s.requireAuthorized(ctx, id, actor, actorAccount, "not authorized to remove node owner"); err != nil {
		return err
	}
	if err := s.store.SetOwner(ctx, id, 0); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to remove node owner")
	}

	audit.Emit(ctx, s.logger, s.auditor, audit.Event{
		Name:  audit.EventNodeOwnerRemoved,
		Actor: actor,
		Node:  id,
	})
	return nil
}

// SetGroupNode reassigns the node's group anchor. The actor must be
// authorized over both the node and the new group.
func (s *Service) SetGroupNode(ctx context.Context, actor domain.Address, id, newGroup domain.NodeID) error {
	actorAccount, err := s.accounts.ResolveRequired(ctx, actor)
	if err != nil {
		return err
	}
	if err := s.requireAuthorized(ctx, id, actor, actorAccount, "not authorized over node"); err != nil {
		return err
	}
	if !newGroup.IsZero() {
		if err := s.requireAuthorized(ctx, newGroup, actor, actorAccount, "not authorized over new group node"); err != nil {
			return err
		}
	}
	if err := s.store.SetGroup(ctx, id, newGroup); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to set group node")
	}

	audit.Emit(ctx, s.logger, s.auditor, audit.Event{
		Name:  audit.EventNodeGroupChanged,
		Actor: actor,
		Node:  id,
	})
	return nil
}

// SetParentNode reassigns the node's parent. The actor must be authorized
// over both the node and the new parent.
func (s *Service) SetParentNode(ctx context.Context, actor domain.Address, id, newParent domain.NodeID) error {
	actorAccount, err := s.accounts.ResolveRequired(ctx, actor)
	if err != nil {
		return err
	}
	if err := s.requireAuthorized(ctx, id, actor, actorAccount, "not authorized over node"); err != nil {
		return err
	}
	if !newParent.IsZero() {
		if err := s.requireAuthorized(ctx, newParent, actor, actorAccount, "not authorized over new parent node"); err != nil {
			return err
		}
	}
	if err := s.store.SetParent(ctx, id, newParent); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to set parent node")
	}

	audit.Emit(ctx, s.logger, s.auditor, audit.Event{
		Name:  audit.EventNodeParentChanged,
		Actor: actor,
		Node:  id,
	})
	return nil
}

// SetController grants or revokes a delegated controller address.
func (s *Service) SetController(ctx context.Context, actor domain.Address, id domain.NodeID, controller domain.Address, enabled bool) error {
	actorAccount, err := s.accounts.ResolveRequired(ctx, actor)
	if err != nil {
		return err
	}
	if err := s.requireAuthorized(ctx, id, actor, actorAccount, "not authorized to manage controllers"); err != nil {
		return err
	}
	if err := s.store.SetController(ctx, id, controller, enabled); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to set controller")
	}

	audit.Emit(ctx, s.logger, s.auditor, audit.Event{
		Name:      audit.EventNodeControllerSet,
		Actor:     actor,
		Node:      id,
		Recipient: controller,
	})
	return nil
}

// Broadcast emits a signaling event for the node. No state changes.
func (s *Service) Broadcast(ctx context.Context, actor domain.Address, id domain.NodeID, topic, message string) error {
	actorAccount, err := s.accounts.ResolveRequired(ctx, actor)
	if err != nil {
		return err
	}
	if err := s.requireAuthorized(ctx, id, actor, actorAccount, "not authorized to broadcast for node"); err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.IncBroadcasts()
	}
	audit.Emit(ctx, s.logger, s.auditor, audit.Event{
		Name:    audit.EventNodeBroadcast,
		Actor:   actor,
		Node:    id,
		Topic:   topic,
		Message: message,
	})
	return nil
}

// IsAuthorizedAccountForNode reports whether the account owns the node or
// its group node. A zero account or zero node never authorizes.
func (s *Service) IsAuthorizedAccountForNode(ctx context.Context, account domain.AccountID, id domain.NodeID) (bool, error) {
	if account.IsZero() || id.IsZero() {
		return false, nil
	}
	n, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load node")
	}
	if !n.Owner.IsZero() && n.Owner == account {
		return true, nil
	}
	if !n.Group.IsZero() {
		group, err := s.store.Get(ctx, n.Group)
		if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load group node")
		}
		if group != nil && !group.Owner.IsZero() && group.Owner == account {
			return true, nil
		}
	}
	return false, nil
}

// IsAuthorizedAddressForNode resolves the address to an account and extends
// the account check with the controller sets of the node and its group.
func (s *Service) IsAuthorizedAddressForNode(ctx context.Context, id domain.NodeID, addr domain.Address) (bool, error) {
	if id.IsZero() || addr.IsZero() {
		return false, nil
	}
	account, err := s.accounts.Resolve(ctx, addr)
	if err != nil {
		return false, err
	}
	return s.isAuthorized(ctx, id, addr, account)
}

// isAuthorized is the fixed two-hop predicate shared by the mutating paths
// and the read-only query.
func (s *Service) isAuthorized(ctx context.Context, id domain.NodeID, addr domain.Address, account domain.AccountID) (bool, error) {
	ok, err := s.IsAuthorizedAccountForNode(ctx, account, id)
	if err != nil || ok {
		return ok, err
	}

	n, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load node")
	}
	if ok, err := s.store.IsController(ctx, id, addr); err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check controllers")
	} else if ok {
		return true, nil
	}
	if !n.Group.IsZero() {
		if ok, err := s.store.IsController(ctx, n.Group, addr); err != nil {
			return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check group controllers")
		} else if ok {
			return true, nil
		}
	}
	return false, nil
}

func (s *Service) requireAuthorized(ctx context.Context, id domain.NodeID, addr domain.Address, account domain.AccountID, msg string) error {
	ok, err := s.isAuthorized(ctx, id, addr, account)
	if err != nil {
		return err
	}
	if !ok {
		return s.authFailure(msg)
	}
	return nil
}

func (s *Service) requireExists(ctx context.Context, id domain.NodeID) error {
	if id.IsZero() {
		return nil
	}
	ok, err := s.store.Exists(ctx, id)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check node existence")
	}
	if !ok {
		return dErrors.Newf(dErrors.CodeInvalidNodeCreate, "node %d does not exist", id)
	}
	return nil
}

func (s *Service) authFailure(msg string) error {
	if s.metrics != nil {
		s.metrics.IncAuthorizationFail()
	}
	return dErrors.New(dErrors.CodeNotAuthorizedForNode, msg)
}
