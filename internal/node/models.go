package node

import (
	"time"

	"catalog/pkg/domain"
)

// Node is one entry in the ownership forest. Owner is an account id and may
// be zero (ownerless). Parent and Group reference other nodes; zero means
// unset. Controller addresses live beside the node in the store.
type Node struct {
	ID        domain.NodeID    `json:"id"`
	Type      domain.NodeType  `json:"node_type"`
	Owner     domain.AccountID `json:"owner"`
	Parent    domain.NodeID    `json:"parent"`
	Group     domain.NodeID    `json:"group_node"`
	Metadata  string           `json:"metadata,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}
