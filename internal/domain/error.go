package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrOperationFailed    = errors.New("operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid execution context")

	ErrNotEligible        = errors.New("not eligible")
	ErrInvalidSignature   = errors.New("invalid payment signature")
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrGatewayTimeout     = errors.New("payment gateway timed out")
	ErrLockNotAcquired    = errors.New("lock not acquired")
)

// Kind classifies an error for the transport layer.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindEligibility
	KindIntegrity
	KindConflict
	KindUnavailable
)

// Reason is a machine readable hint returned next to eligibility failures.
type Reason string

const (
	ReasonRequiresPayment Reason = "requiresPayment"
	ReasonNeedsUpgrade    Reason = "needsUpgrade"

	ReasonPromoInactive      Reason = "promoInactive"
	ReasonPromoExpired       Reason = "promoExpired"
	ReasonPromoExhausted     Reason = "promoExhausted"
	ReasonPromoUserLimit     Reason = "promoUserLimit"
	ReasonPromoNotApplicable Reason = "promoNotApplicable"
	ReasonPromoMinPurchase   Reason = "promoMinPurchase"
)

// Error is a user facing failure. Message is safe to show to clients.
type Error struct {
	Kind      Kind
	Reason    Reason
	Message   string
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg, Err: ErrInvalidArgument}
}

func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg, Err: ErrNotFound}
}

func Eligibility(reason Reason, msg string) *Error {
	return &Error{Kind: KindEligibility, Reason: reason, Message: msg, Err: ErrNotEligible}
}

func Integrity(msg string) *Error {
	return &Error{Kind: KindIntegrity, Message: msg, Err: ErrInvalidSignature}
}

func Conflict(msg string) *Error {
	return &Error{Kind: KindConflict, Message: msg, Err: ErrAlreadyExists}
}

// Unavailable wraps a failing external dependency.
func Unavailable(msg string, err error, retryable bool) *Error {
	if err == nil {
		err = ErrGatewayUnavailable
	}
	return &Error{Kind: KindUnavailable, Message: msg, Err: err, Retryable: retryable}
}

// AsError extracts a *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// RequiresPayment reports whether the client should be routed to checkout.
func (e *Error) RequiresPayment() bool { return e.Reason == ReasonRequiresPayment }

// NeedsUpgrade reports whether the client should be routed to the upgrade flow.
func (e *Error) NeedsUpgrade() bool { return e.Reason == ReasonNeedsUpgrade }
