// Package payments provides the value ledger the issuance engine settles
// against. The registry treats it as an opaque collaborator: balances are
// held per address, and a group of transfers either applies atomically or
// not at all.
package payments

import (
	"context"
	"sync"

	"catalog/pkg/domain"
	"catalog/pkg/platform/sentinel"
)

// Ledger holds address balances. All mutation goes through Transact so a
// multi-step settlement can never leave value partially moved.
type Ledger struct {
	mu        sync.RWMutex
	balances  map[domain.Address]domain.Amount
	rejecting map[domain.Address]bool
	contracts map[domain.Address]bool
}

func NewLedger() *Ledger {
	return &Ledger{
		balances:  make(map[domain.Address]domain.Amount),
		rejecting: make(map[domain.Address]bool),
		contracts: make(map[domain.Address]bool),
	}
}

// Deposit credits an address outside of any settlement. Used to fund payer
// accounts (deposits bypass the rejecting flag; only transfers are refused).
func (l *Ledger) Deposit(addr domain.Address, amount domain.Amount) error {
	if addr.IsZero() {
		return sentinel.ErrRejected
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	next, err := l.balances[addr].Add(amount)
	if err != nil {
		return err
	}
	l.balances[addr] = next
	return nil
}

// Balance returns the current balance of an address.
func (l *Ledger) Balance(addr domain.Address) domain.Amount {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[addr]
}

// SetRejecting marks an address as refusing incoming transfers. Models
// closed-out payees; settlements targeting such an address fail whole.
func (l *Ledger) SetRejecting(addr domain.Address, rejecting bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rejecting[addr] = rejecting
}

// SetContract marks an address as a forwarding contract rather than an
// externally held key. Engines use this to enforce direct-caller-only mint
// paths.
func (l *Ledger) SetContract(addr domain.Address, isContract bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.contracts[addr] = isContract
}

// IsContract reports whether an address was registered as a contract.
func (l *Ledger) IsContract(addr domain.Address) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.contracts[addr]
}

// Tx stages transfers against a snapshot of the ledger. Nothing is visible
// to other callers until the transaction commits.
type Tx struct {
	ledger *Ledger
	staged map[domain.Address]domain.Amount
}

// Transfer stages a movement of value. It fails with ErrInsufficientFunds if
// the payer's staged balance cannot cover it, or ErrRejected if the payee
// refuses incoming transfers. Zero-amount transfers are no-ops.
func (tx *Tx) Transfer(from, to domain.Address, amount domain.Amount) error {
	if amount.IsZero() {
		return nil
	}
	if to.IsZero() || tx.ledger.rejecting[to] {
		return sentinel.ErrRejected
	}
	fromBal, err := tx.balance(from).Sub(amount)
	if err != nil {
		return sentinel.ErrInsufficientFunds
	}
	toBal, err := tx.balance(to).Add(amount)
	if err != nil {
		return err
	}
	tx.staged[from] = fromBal
	tx.staged[to] = toBal
	return nil
}

func (tx *Tx) balance(addr domain.Address) domain.Amount {
	if bal, ok := tx.staged[addr]; ok {
		return bal
	}
	return tx.ledger.balances[addr]
}

// Transact runs fn against a staged view of the ledger, applying every
// staged transfer atomically if fn returns nil and discarding all of them
// otherwise. Transactions are serialized.
func (l *Ledger) Transact(_ context.Context, fn func(tx *Tx) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx := &Tx{ledger: l, staged: make(map[domain.Address]domain.Amount)}
	if err := fn(tx); err != nil {
		return err
	}
	for addr, bal := range tx.staged {
		l.balances[addr] = bal
	}
	return nil
}
