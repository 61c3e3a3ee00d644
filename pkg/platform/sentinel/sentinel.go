package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores, caches, and the payments
// ledger return these (optionally wrapped) so services can translate them
// into coded domain errors at the boundary.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in store
// - ErrConflict: entity already exists or a uniqueness rule was violated
// - ErrInvalidState: entity in wrong state for requested operation
// - ErrRejected: a payee refused an incoming transfer
// - ErrInsufficientFunds: payer balance cannot cover a transfer
// - ErrUnavailable: backing service temporarily unavailable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors.
var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrInvalidState      = errors.New("invalid state")
	ErrRejected          = errors.New("transfer rejected")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrUnavailable       = errors.New("unavailable")
)
