package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"catalog/pkg/domain"
	"catalog/pkg/platform/sentinel"
)

// PostgresStore persists accounts in PostgreSQL. The accounts table carries a
// unique constraint on address, which backs the one-account-per-address
// invariant without a read-check race.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the account tables. Idempotent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS accounts (
			id         BIGSERIAL PRIMARY KEY,
			address    TEXT NOT NULL UNIQUE,
			metadata   TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS account_issuers (
			address TEXT PRIMARY KEY
		);
	`)
	if err != nil {
		return fmt.Errorf("migrate accounts: %w", err)
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, addr domain.Address, metadata string, now time.Time) (*Account, error) {
	var id uint64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO accounts (address, metadata, created_at) VALUES ($1, $2, $3) RETURNING id`,
		addr.String(), metadata, now,
	).Scan(&id)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return nil, sentinel.ErrConflict
		}
		return nil, fmt.Errorf("create account: %w", err)
	}
	return &Account{
		ID:        domain.AccountID(id),
		Address:   addr,
		Metadata:  metadata,
		CreatedAt: now,
	}, nil
}

func (s *PostgresStore) Resolve(ctx context.Context, addr domain.Address) (domain.AccountID, error) {
	var id uint64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM accounts WHERE address = $1`,
		addr.String(),
	).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, sentinel.ErrNotFound
		}
		return 0, fmt.Errorf("resolve account: %w", err)
	}
	return domain.AccountID(id), nil
}

func (s *PostgresStore) Transfer(ctx context.Context, from, to domain.Address) (domain.AccountID, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM accounts WHERE address = $1)`,
		to.String(),
	).Scan(&exists); err != nil {
		return 0, fmt.Errorf("check destination: %w", err)
	}
	if exists {
		return 0, sentinel.ErrConflict
	}

	var id uint64
	err := s.db.QueryRowContext(ctx,
		`UPDATE accounts SET address = $1 WHERE address = $2 RETURNING id`,
		to.String(), from.String(),
	).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, sentinel.ErrNotFound
		}
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return 0, sentinel.ErrConflict
		}
		return 0, fmt.Errorf("transfer account: %w", err)
	}
	return domain.AccountID(id), nil
}

func (s *PostgresStore) SetIssuer(ctx context.Context, addr domain.Address, enabled bool) error {
	var err error
	if enabled {
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO account_issuers (address) VALUES ($1) ON CONFLICT DO NOTHING`,
			addr.String(),
		)
	} else {
		_, err = s.db.ExecContext(ctx,
			`DELETE FROM account_issuers WHERE address = $1`,
			addr.String(),
		)
	}
	if err != nil {
		return fmt.Errorf("set issuer: %w", err)
	}
	return nil
}

func (s *PostgresStore) IsIssuer(ctx context.Context, addr domain.Address) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM account_issuers WHERE address = $1)`,
		addr.String(),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check issuer: %w", err)
	}
	return exists, nil
}
