/*
errors.go - Centralized error types for the costing engine

PURPOSE:
  All error types in one place. The handlers return these; the group
  processor converts them into transaction flag mutations and an aborted
  replay, so callers see flags and a per-group report rather than panics.

ERROR CATEGORIES:
  1. Validation errors - malformed inflow fields (quantity, price)
  2. Insufficient balance - outflow exceeds the tolerance-adjusted
     available quantity, or the FIFO queue ran dry mid-consumption
  3. Everything else - storage failures, wrapped as-is

USAGE:
  if errors.Is(err, costing.ErrInsufficientBalance) { ... }

  var ib *costing.InsufficientBalanceError
  if errors.As(err, &ib) { log.Printf("short by %s", ib.Shortfall) }
*/
package costing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInsufficientBalance is returned when an outflow exceeds the
	// available quantity beyond the adjustment tolerance.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrValidation is returned for malformed transaction fields.
	ErrValidation = errors.New("validation failed")

	// ErrGroupNotFound is returned when a group key has no costing history.
	ErrGroupNotFound = errors.New("costing group not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientBalanceError details a balance shortage on an outflow.
type InsufficientBalanceError struct {
	TransactionID int64
	Group         GroupKey
	Requested     decimal.Decimal
	Available     decimal.Decimal
	Shortfall     decimal.Decimal

	// QueueExhausted marks the data-integrity variant: the running balance
	// covered the outflow but the lot queue ran dry mid-consumption. This
	// signals bad lot seeding or a corrupted prior run, not a routine
	// shortage.
	QueueExhausted bool
}

func (e *InsufficientBalanceError) Error() string {
	if e.QueueExhausted {
		return fmt.Sprintf("lot queue exhausted for tx %d (group %s): %s still pending; ledger and balances disagree",
			e.TransactionID, e.Group, e.Shortfall)
	}
	return fmt.Sprintf("insufficient balance for tx %d (group %s): requested %s, available %s, short %s",
		e.TransactionID, e.Group, e.Requested, e.Available, e.Shortfall)
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// ValidationError details a malformed transaction field.
type ValidationError struct {
	TransactionID int64
	Field         string
	Message       string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid transaction %d: %s %s", e.TransactionID, e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// IsClientError reports whether the error is due to invalid input rather
// than an internal failure. Used by the API layer for status codes.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrGroupNotFound)
}
