package account

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"catalog/internal/account/metrics"
	"catalog/pkg/domain"
	dErrors "catalog/pkg/domain-errors"
	"catalog/pkg/platform/audit"
	"catalog/pkg/platform/sentinel"
	"catalog/pkg/requestcontext"
)

// Store is the persistence port for the identity resolver.
type Store interface {
	Create(ctx context.Context, addr domain.Address, metadata string, now time.Time) (*Account, error)
	Resolve(ctx context.Context, addr domain.Address) (domain.AccountID, error)
	Transfer(ctx context.Context, from, to domain.Address) (domain.AccountID, error)
	SetIssuer(ctx context.Context, addr domain.Address, enabled bool) error
	IsIssuer(ctx context.Context, addr domain.Address) (bool, error)
}

// Service resolves external addresses to stable integer account identities.
// In trusted-issuer mode only designated issuers may register accounts; the
// administrative owner designates them.
type Service struct {
	store         Store
	trustedIssuer bool
	admin         domain.Address
	logger        *slog.Logger
	auditor       audit.Emitter
	metrics       *metrics.Metrics
}

// Option configures the Service.
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

// WithTrustedIssuerMode restricts registration to designated issuers. admin
// is the only address allowed to designate them.
func WithTrustedIssuerMode(admin domain.Address) Option {
	return func(s *Service) {
		s.trustedIssuer = true
		s.admin = admin
	}
}

// WithAdmin sets the administrative owner without enabling trusted-issuer
// mode (issuer designation is still admin-gated).
func WithAdmin(admin domain.Address) Option {
	return func(s *Service) { s.admin = admin }
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("account store is required")
	}
	svc := &Service{store: store}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Register creates an account for subject. Anyone may register any address
// unless trusted-issuer mode is on, in which case the actor must be a
// designated issuer.
func (s *Service) Register(ctx context.Context, actor, subject domain.Address, metadata string) (domain.AccountID, error) {
	if subject.IsZero() {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "subject address is required")
	}
	if s.trustedIssuer {
		ok, err := s.store.IsIssuer(ctx, actor)
		if err != nil {
			return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check issuer")
		}
		if !ok {
			return 0, dErrors.New(dErrors.CodeNotAuthorizedAccountIssuer, "registration restricted to designated issuers")
		}
	}

	acct, err := s.store.Create(ctx, subject, metadata, requestcontext.Now(ctx))
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return 0, dErrors.Newf(dErrors.CodeAccountAlreadyExists, "address %s already has an account", subject)
		}
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create account")
	}

	if s.metrics != nil {
		s.metrics.IncAccountsCreated()
	}
	audit.Emit(ctx, s.logger, s.auditor, audit.Event{
		Name:      audit.EventAccountCreated,
		Actor:     actor,
		Account:   acct.ID,
		Recipient: subject,
	})
	return acct.ID, nil
}

// Resolve returns the account id for an address, or zero if unregistered.
// This is the non-failing variant used by presentation paths.
func (s *Service) Resolve(ctx context.Context, addr domain.Address) (domain.AccountID, error) {
	if addr.IsZero() {
		return 0, nil
	}
	id, err := s.store.Resolve(ctx, addr)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return 0, nil
		}
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve account")
	}
	return id, nil
}

// ResolveRequired returns the account id for an address, failing NoAccount
// if unregistered. Authorization-sensitive paths use this variant.
func (s *Service) ResolveRequired(ctx context.Context, addr domain.Address) (domain.AccountID, error) {
	id, err := s.Resolve(ctx, addr)
	if err != nil {
		return 0, err
	}
	if id.IsZero() {
		return 0, dErrors.Newf(dErrors.CodeNoAccount, "address %s has no account", addr)
	}
	return id, nil
}

// Transfer moves the actor's account to a new address, vacating the old one.
func (s *Service) Transfer(ctx context.Context, actor, newAddr domain.Address) (domain.AccountID, error) {
	if newAddr.IsZero() {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "destination address is required")
	}

	id, err := s.store.Transfer(ctx, actor, newAddr)
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return 0, dErrors.Newf(dErrors.CodeNoAccount, "address %s has no account", actor)
		case errors.Is(err, sentinel.ErrConflict):
			return 0, dErrors.Newf(dErrors.CodeAccountAlreadyExists, "address %s already has an account", newAddr)
		default:
			return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to transfer account")
		}
	}

	audit.Emit(ctx, s.logger, s.auditor, audit.Event{
		Name:      audit.EventAccountTransferred,
		Actor:     actor,
		Account:   id,
		Recipient: newAddr,
	})
	return id, nil
}

// SetIssuer designates or revokes a trusted account issuer. Restricted to
// the administrative owner.
func (s *Service) SetIssuer(ctx context.Context, actor, issuer domain.Address, enabled bool) error {
	if s.admin.IsZero() || actor != s.admin {
		return dErrors.New(dErrors.CodeUnauthorized, "issuer designation restricted to admin")
	}
	if err := s.store.SetIssuer(ctx, issuer, enabled); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to set issuer")
	}

	audit.Emit(ctx, s.logger, s.auditor, audit.Event{
		Name:      audit.EventAccountIssuerSet,
		Actor:     actor,
		Recipient: issuer,
		Message:   boolMessage(enabled),
	})
	return nil
}

// Broadcast emits a signaling event tagged with the actor's account id. No
// state changes.
func (s *Service) Broadcast(ctx context.Context, actor domain.Address, topic, message string) error {
	id, err := s.ResolveRequired(ctx, actor)
	if err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.IncBroadcasts()
	}
	audit.Emit(ctx, s.logger, s.auditor, audit.Event{
		Name:    audit.EventAccountBroadcast,
		Actor:   actor,
		Account: id,
		Topic:   topic,
		Message: message,
	})
	return nil
}

func boolMessage(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}
