package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound: no record for the given token.
	ErrNotFound = errors.New("payment link not found")

	// ErrLinkExpired: the operation needs a live pending link but the
	// record is expired (or cancelled).
	ErrLinkExpired = errors.New("payment link expired")

	// ErrAlreadyCompleted: the link has already been paid.
	ErrAlreadyCompleted = errors.New("payment already completed")

	// ErrTokenMismatch: the gateway session's correlation metadata does not
	// match the local token. Security-relevant; never coerced into success.
	ErrTokenMismatch = errors.New("session token mismatch")

	// ErrPaymentNotCompleted: the gateway session exists but is not paid.
	ErrPaymentNotCompleted = errors.New("payment has not been completed")

	// ErrDuplicateActive: an insert collided with the active-order
	// uniqueness constraint; another pending or paid link already exists
	// for the order.
	ErrDuplicateActive = errors.New("active payment link already exists for order")
)

// ValidationError marks malformed caller input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}
