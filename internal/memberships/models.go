package memberships

import (
	"time"

	"github.com/google/uuid"

	"catalog/pkg/domain"
)

// Memberships is one roster instance. Tokens in it are non-transferable
// badges; each address holds at most one.
type Memberships struct {
	ID          uuid.UUID      `json:"id"`
	Name        string         `json:"name"`
	Symbol      string         `json:"symbol"`
	BaseURI     string         `json:"base_uri,omitempty"`
	Owner       domain.Address `json:"owner"`
	ControlNode domain.NodeID  `json:"control_node"`
	Initialized bool           `json:"initialized"`
	CreatedAt   time.Time      `json:"created_at"`

	// Allow-list state. ListRoot is an RFC 6962 log root over
	// (address, sequence) leaves; ListSize is the leaf count it commits to.
	ListRoot []byte `json:"list_root,omitempty"`
	ListSize uint64 `json:"list_size,omitempty"`

	// Resolver names a registered metadata resolver. Empty means the
	// built-in base-URI rendering.
	Resolver string `json:"resolver,omitempty"`
}

// TokenData is the provenance record of one membership token.
type TokenData struct {
	Sequence domain.SequenceID `json:"sequence"`
	MintedAt time.Time         `json:"minted_at"`
}

// Mint is one admin-issued membership.
type Mint struct {
	To       domain.Address
	Sequence domain.SequenceID
}

// ProofMint is one allow-listed self-service mint. Index and Proof locate
// the (To, Sequence) leaf in the published membership list.
type ProofMint struct {
	To       domain.Address
	Sequence domain.SequenceID
	Index    uint64
	Proof    [][]byte
}
