// Package domainerrors provides coded, wrappable domain errors.
//
// Services return these so handlers can translate failures into transport
// responses without string matching, and so tests can assert on the exact
// failure with HasCode. Stores return sentinel errors (pkg/platform/sentinel)
// and services wrap them into coded errors at the boundary.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code names a domain failure. Codes are part of the API surface: they are
// surfaced verbatim to callers and asserted on by tests.
type Code string

const (
	// Generic codes.
	CodeInvalidInput Code = "InvalidInput"
	CodeNotFound     Code = "NotFound"
	CodeInternal     Code = "Internal"

	// Identity failures.
	CodeNoAccount                  Code = "NoAccount"
	CodeAccountAlreadyExists       Code = "AccountAlreadyExists"
	CodeNotAuthorizedAccountIssuer Code = "NotAuthorizedAccountIssuer"

	// Authorization failures.
	CodeNotAuthorized        Code = "NotAuthorized"
	CodeNotAuthorizedForNode Code = "NotAuthorizedForNode"
	CodeUnauthorized         Code = "Unauthorized"

	// Structural validation failures.
	CodeInvalidNodeCreate     Code = "InvalidNodeCreate"
	CodeInvalidSequenceConfig Code = "InvalidSequenceConfig"
	CodeInvalidMint           Code = "InvalidMint"
	CodeInvalidTransfer       Code = "InvalidTransfer"
	CodeInvalidBurn           Code = "InvalidBurn"
	CodeInvalidConfiguration  Code = "InvalidConfiguration"
	CodeAlreadyInitialized    Code = "AlreadyInitialized"

	// Issuance economics failures.
	CodeInvalidRoyaltyBps       Code = "InvalidRoyaltyBps"
	CodeInvalidPriceOrRecipient Code = "InvalidPriceOrRecipient"
	CodeInvalidPriceDecayConfig Code = "InvalidPriceDecayConfig"
	CodeInvalidPrimarySaleFee   Code = "InvalidPrimarySaleFee"
	CodeIncorrectPaymentAmount  Code = "IncorrectPaymentAmount"
	CodeInvalidMintAmount       Code = "InvalidMintAmount"

	// Window and supply failures.
	CodeSequenceIsSealed        Code = "SequenceIsSealed"
	CodeSequenceSupplyExhausted Code = "SequenceSupplyExhausted"
	CodeInvalidMintRequest      Code = "InvalidMintRequest"
	CodePublicMintNotActive     Code = "PublicMintNotActive"
	CodeNotMintAuthority        Code = "NotMintAuthority"

	// Transfer mechanics failures.
	CodeCouldNotTransferFunds Code = "CouldNotTransferFunds"
	CodeMinterMustBeEOA       Code = "MinterMustBeEOA"
	CodeTransferNotAllowed    Code = "TransferNotAllowed"
)

// Error is a coded domain error. Cause is optional.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New creates a coded error with no cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) error {
	return &Error{Code: code, Message: message, Cause: err}
}

// HasCode reports whether any error in the chain carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	for errors.As(err, &de) {
		if de.Code == code {
			return true
		}
		err = de.Cause
		de = nil
	}
	return false
}

// CodeOf returns the outermost code in the chain, or CodeInternal if the
// error is not a domain error.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps a code to the HTTP status handlers respond with.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeNotFound, CodeNoAccount:
		return http.StatusNotFound
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeNotAuthorized, CodeNotAuthorizedForNode, CodeNotAuthorizedAccountIssuer,
		CodeInvalidMintRequest, CodePublicMintNotActive, CodeNotMintAuthority,
		CodeMinterMustBeEOA, CodeTransferNotAllowed:
		return http.StatusForbidden
	case CodeAccountAlreadyExists, CodeAlreadyInitialized:
		return http.StatusConflict
	case CodeSequenceIsSealed, CodeSequenceSupplyExhausted:
		return http.StatusConflict
	case CodeIncorrectPaymentAmount, CodeCouldNotTransferFunds:
		return http.StatusPaymentRequired
	case CodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}
