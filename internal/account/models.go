package account

import (
	"time"

	"catalog/pkg/domain"
)

// Account binds a stable integer identity to exactly one address at a time.
// Accounts are never destroyed: a transfer moves the id to a new address and
// vacates the old one.
type Account struct {
	ID        domain.AccountID
	Address   domain.Address
	Metadata  string
	CreatedAt time.Time
}
