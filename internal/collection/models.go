package collection

import (
	"time"

	"github.com/google/uuid"

	"catalog/pkg/domain"
)

// Collection is an issuance container bound permanently to one control node.
// Instances are produced by the factory; the factory's shared template is
// pre-initialized to a dead state so it can never be operated directly.
type Collection struct {
	ID          uuid.UUID      `json:"id"`
	Name        string         `json:"name"`
	Symbol      string         `json:"symbol"`
	ContractURI string         `json:"contract_uri,omitempty"`
	Metadata    string         `json:"metadata,omitempty"`
	Owner       domain.Address `json:"owner"`
	ControlNode domain.NodeID  `json:"control_node"`
	Initialized bool           `json:"initialized"`
	CreatedAt   time.Time      `json:"created_at"`
}

// SequenceConfig is the caller-supplied portion of a sequence. Minted must
// be submitted as zero.
type SequenceConfig struct {
	DropNode     domain.NodeID  `json:"drop_node"`
	Engine       domain.Address `json:"engine"`
	SealedBefore int64          `json:"sealed_before"`
	SealedAfter  int64          `json:"sealed_after"`
	MaxSupply    uint64         `json:"max_supply"`
	Minted       uint64         `json:"minted"`
}

// Sequence is one issuance configuration scoped to a collection. The seal
// bounds are unix seconds; zero means unbounded on that side. MaxSupply
// zero means an open edition. Minted is advanced only by the bound engine's
// mint path.
type Sequence struct {
	ID           domain.SequenceID `json:"id"`
	DropNode     domain.NodeID     `json:"drop_node"`
	Engine       domain.Address    `json:"engine"`
	SealedBefore int64             `json:"sealed_before"`
	SealedAfter  int64             `json:"sealed_after"`
	MaxSupply    uint64            `json:"max_supply"`
	Minted       uint64            `json:"minted"`
}

// TokenData records a token's provenance: which sequence minted it, its
// edition number within that sequence, and when.
type TokenData struct {
	Sequence domain.SequenceID `json:"sequence"`
	Edition  uint64            `json:"edition"`
	MintedAt time.Time         `json:"minted_at"`
}
