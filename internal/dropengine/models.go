package dropengine

import (
	"fmt"

	"github.com/google/uuid"

	"catalog/pkg/domain"
)

// DropKey identifies a drop across all collections served by one engine.
// Keying by the pair keeps the engine stateless with respect to any single
// collection's layout.
type DropKey struct {
	Collection uuid.UUID
	Sequence   domain.SequenceID
}

// Drop is the engine-side pricing record for one sequence. The primary sale
// fee is snapshotted at configuration time and never re-read, so later
// protocol fee changes cannot alter an existing drop's economics.
type Drop struct {
	Price                    domain.Amount  `json:"price"`
	RoyaltyBps               uint16         `json:"royalty_bps"`
	RevenueRecipient         domain.Address `json:"revenue_recipient,omitempty"`
	URIPrefix                string         `json:"uri_prefix,omitempty"`
	DecayStopTimestamp       int64          `json:"decay_stop_timestamp"`
	PriceDecayPerDay         domain.Amount  `json:"price_decay_per_day"`
	PrimarySaleFeeBps        uint16         `json:"primary_sale_fee_bps"`
	AllowContractMints       bool           `json:"allow_contract_mints"`
	MaxRecordsPerTransaction uint8          `json:"max_records_per_transaction"`
	MintAuthority            domain.Address `json:"mint_authority,omitempty"`
}

// DropConfig is the engine payload callers attach to a sequence
// configuration, decoded from the opaque engine data bytes.
type DropConfig struct {
	Price                    domain.Amount  `json:"price"`
	RoyaltyBps               uint16         `json:"royalty_bps"`
	RevenueRecipient         domain.Address `json:"revenue_recipient,omitempty"`
	URIPrefix                string         `json:"uri_prefix,omitempty"`
	DecayStopTimestamp       int64          `json:"decay_stop_timestamp,omitempty"`
	PriceDecayPerDay         domain.Amount  `json:"price_decay_per_day,omitempty"`
	PrimarySaleFeeBps        uint16         `json:"primary_sale_fee_bps,omitempty"`
	AllowContractMints       bool           `json:"allow_contract_mints,omitempty"`
	MaxRecordsPerTransaction uint8          `json:"max_records_per_transaction,omitempty"`
	MintAuthority            domain.Address `json:"mint_authority,omitempty"`
}

// EditionLabel renders an edition number for presentation: "n/maxSupply"
// for limited editions, bare "n" for open editions.
func EditionLabel(edition, maxSupply uint64) string {
	if maxSupply == 0 {
		return fmt.Sprintf("%d", edition)
	}
	return fmt.Sprintf("%d/%d", edition, maxSupply)
}
