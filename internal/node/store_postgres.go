package node

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"catalog/pkg/domain"
	"catalog/pkg/platform/sentinel"
)

// PostgresStore persists the node forest in PostgreSQL. Node ids come from a
// BIGSERIAL so assignment stays dense and monotonic across restarts.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the node tables. Idempotent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS nodes (
			id             BIGSERIAL PRIMARY KEY,
			node_type      SMALLINT NOT NULL,
			owner_account  BIGINT NOT NULL DEFAULT 0,
			parent_node    BIGINT NOT NULL DEFAULT 0,
			group_node     BIGINT NOT NULL DEFAULT 0,
			pending_owner  BIGINT NOT NULL DEFAULT 0,
			metadata       TEXT NOT NULL DEFAULT '',
			created_at     TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS node_controllers (
			node_id BIGINT NOT NULL REFERENCES nodes (id),
			address TEXT NOT NULL,
			PRIMARY KEY (node_id, address)
		);
	`)
	if err != nil {
		return fmt.Errorf("migrate nodes: %w", err)
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, n Node, controllers []domain.Address, now time.Time) (*Node, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin create node: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var id uint64
	err = tx.QueryRowContext(ctx,
		`INSERT INTO nodes (node_type, owner_account, parent_node, group_node, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		n.Type, uint64(n.Owner), uint64(n.Parent), uint64(n.Group), n.Metadata, now,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("create node: %w", err)
	}

	for _, addr := range controllers {
		if addr.IsZero() {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO node_controllers (node_id, address) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			id, addr.String(),
		); err != nil {
			return nil, fmt.Errorf("register controller: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit create node: %w", err)
	}

	n.ID = domain.NodeID(id)
	n.CreatedAt = now
	return &n, nil
}

func (s *PostgresStore) Get(ctx context.Context, id domain.NodeID) (*Node, error) {
	var n Node
	err := s.db.QueryRowContext(ctx,
		`SELECT id, node_type, owner_account, parent_node, group_node, metadata, created_at
		 FROM nodes WHERE id = $1`,
		uint64(id),
	).Scan(&n.ID, &n.Type, &n.Owner, &n.Parent, &n.Group, &n.Metadata, &n.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get node: %w", err)
	}
	return &n, nil
}

func (s *PostgresStore) Exists(ctx context.Context, id domain.NodeID) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM nodes WHERE id = $1)`,
		uint64(id),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check node: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) Count(ctx context.Context) (uint64, error) {
	var count uint64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM nodes`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count nodes: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) SetOwner(ctx context.Context, id domain.NodeID, owner domain.AccountID) error {
	return s.updateColumn(ctx, id, `UPDATE nodes SET owner_account = $1 WHERE id = $2`, uint64(owner))
}

func (s *PostgresStore) SetGroup(ctx context.Context, id, group domain.NodeID) error {
	return s.updateColumn(ctx, id, `UPDATE nodes SET group_node = $1 WHERE id = $2`, uint64(group))
}

func (s *PostgresStore) SetParent(ctx context.Context, id, parent domain.NodeID) error {
	return s.updateColumn(ctx, id, `UPDATE nodes SET parent_node = $1 WHERE id = $2`, uint64(parent))
}

func (s *PostgresStore) SetPending(ctx context.Context, id domain.NodeID, to domain.AccountID) error {
	return s.updateColumn(ctx, id, `UPDATE nodes SET pending_owner = $1 WHERE id = $2`, uint64(to))
}

func (s *PostgresStore) Pending(ctx context.Context, id domain.NodeID) (domain.AccountID, error) {
	var pending uint64
	err := s.db.QueryRowContext(ctx,
		`SELECT pending_owner FROM nodes WHERE id = $1`,
		uint64(id),
	).Scan(&pending)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("get pending transfer: %w", err)
	}
	return domain.AccountID(pending), nil
}

func (s *PostgresStore) SetController(ctx context.Context, id domain.NodeID, addr domain.Address, enabled bool) error {
	var err error
	if enabled {
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO node_controllers (node_id, address) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			uint64(id), addr.String(),
		)
	} else {
		_, err = s.db.ExecContext(ctx,
			`DELETE FROM node_controllers WHERE node_id = $1 AND address = $2`,
			uint64(id), addr.String(),
		)
	}
	if err != nil {
		return fmt.Errorf("set controller: %w", err)
	}
	return nil
}

func (s *PostgresStore) IsController(ctx context.Context, id domain.NodeID, addr domain.Address) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM node_controllers WHERE node_id = $1 AND address = $2)`,
		uint64(id), addr.String(),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check controller: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) updateColumn(ctx context.Context, id domain.NodeID, query string, value uint64) error {
	res, err := s.db.ExecContext(ctx, query, value, uint64(id))
	if err != nil {
		return fmt.Errorf("update node: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update node: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
