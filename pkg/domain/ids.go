// Package domain holds the small typed identifiers shared across services.
//
// Registry identifiers are dense positive integers assigned by their owning
// service; the zero value always means "none". Construct from external input
// via the Parse helpers at trust boundaries so the zero/positive invariant is
// enforced in one place.
package domain

import (
	"strconv"

	dErrors "catalog/pkg/domain-errors"
)

// AccountID is a stable integer identity bound to at most one address.
// Zero means "no account".
type AccountID uint64

// NodeID identifies an entry in the ownership forest. Zero means "no node"
// (root parent, or no group node).
type NodeID uint64

// NodeType tags a node with an application-defined kind. Zero is invalid.
type NodeType uint8

// SequenceID identifies an issuance sequence scoped to one collection.
type SequenceID uint16

// TokenID identifies a minted record within one collection.
type TokenID uint64

func (id AccountID) IsZero() bool  { return id == 0 }
func (id NodeID) IsZero() bool     { return id == 0 }
func (id SequenceID) IsZero() bool { return id == 0 }
func (id TokenID) IsZero() bool    { return id == 0 }

func (id AccountID) String() string  { return strconv.FormatUint(uint64(id), 10) }
func (id NodeID) String() string     { return strconv.FormatUint(uint64(id), 10) }
func (id SequenceID) String() string { return strconv.FormatUint(uint64(id), 10) }
func (id TokenID) String() string    { return strconv.FormatUint(uint64(id), 10) }

// ParseAccountID constructs an AccountID from external input. Zero is accepted
// because several operations use it as an explicit "none" (e.g. canceling a
// pending node transfer).
func ParseAccountID(s string) (AccountID, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid account id")
	}
	return AccountID(v), nil
}

// ParseNodeID constructs a NodeID from external input.
func ParseNodeID(s string) (NodeID, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid node id")
	}
	return NodeID(v), nil
}

// ParseSequenceID constructs a SequenceID from external input.
func ParseSequenceID(s string) (SequenceID, error) {
	v, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid sequence id")
	}
	return SequenceID(v), nil
}

// ParseTokenID constructs a TokenID from external input.
func ParseTokenID(s string) (TokenID, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid token id")
	}
	return TokenID(v), nil
}
