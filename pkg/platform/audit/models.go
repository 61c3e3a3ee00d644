// Package audit defines the structured events emitted by every mutating
// registry operation. Events carry enough data for an off-chain observer to
// reconstruct the new state (new ids, transferred amounts) and fan out to
// pluggable sinks: an in-memory store for tests and read APIs, and a Kafka
// publisher for downstream indexers.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"catalog/pkg/domain"
)

// EventName labels a mutating operation.
type EventName string

const (
	// Account events.
	EventAccountCreated     EventName = "account_created"
	EventAccountTransferred EventName = "account_transferred"
	EventAccountIssuerSet   EventName = "account_issuer_set"
	EventAccountBroadcast   EventName = "account_broadcast"

	// Node events.
	EventNodeCreated           EventName = "node_created"
	EventNodeTransferStarted   EventName = "node_transfer_started"
	EventNodeTransferCompleted EventName = "node_transfer_completed"
	EventNodeOwnerRemoved      EventName = "node_owner_removed"
	EventNodeGroupChanged      EventName = "node_group_changed"
	EventNodeParentChanged     EventName = "node_parent_changed"
	EventNodeControllerSet     EventName = "node_controller_set"
	EventNodeBroadcast         EventName = "node_broadcast"

	// Collection and issuance events.
	EventCollectionCreated      EventName = "collection_created"
	EventCollectionOwnerChanged EventName = "collection_owner_changed"
	EventSequenceConfigured     EventName = "sequence_configured"
	EventRecordMinted           EventName = "record_minted"
	EventRevenueForwarded       EventName = "revenue_forwarded"
	EventFeesSwept              EventName = "fees_swept"
	EventPrimarySaleFeeChanged  EventName = "primary_sale_fee_changed"
	EventMintAuthorityCleared   EventName = "mint_authority_cleared"
	EventEngineOwnerChanged     EventName = "engine_owner_changed"

	// Membership events.
	EventMembershipMinted       EventName = "membership_minted"
	EventMembershipBurned       EventName = "membership_burned"
	EventMembershipRootChanged  EventName = "membership_root_changed"
	EventMembershipTransferred  EventName = "membership_transferred"
	EventMembershipOwnerChanged EventName = "membership_owner_changed"
	EventMembershipResolverSet  EventName = "membership_resolver_set"
)

// Event is emitted from domain logic to capture a state transition. Keep it
// transport-agnostic so stores and sinks can fan out. Unused fields stay at
// their zero values.
type Event struct {
	Name       EventName         `json:"name"`
	Timestamp  time.Time         `json:"timestamp"`
	Actor      domain.Address    `json:"actor,omitempty"`
	Account    domain.AccountID  `json:"account,omitempty"`
	Node       domain.NodeID     `json:"node,omitempty"`
	Collection uuid.UUID         `json:"collection,omitempty"`
	Sequence   domain.SequenceID `json:"sequence,omitempty"`
	Token      domain.TokenID    `json:"token,omitempty"`
	Amount     domain.Amount     `json:"amount,omitempty"`
	Recipient  domain.Address    `json:"recipient,omitempty"`
	Topic      string            `json:"topic,omitempty"`
	Message    string            `json:"message,omitempty"`
	RequestID  string            `json:"request_id,omitempty"`
}

// Store persists events for later inspection.
type Store interface {
	Append(ctx context.Context, event Event) error
}
