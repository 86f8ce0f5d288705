/*
errors.go - Error taxonomy for the ledger

ERROR CATEGORIES:
  NotFound:          referenced account/transaction/instrument/payment missing
  Validation:        malformed or out-of-range input (non-positive amount, ...)
  InsufficientFunds: debit would exceed the available balance
  Conflict:          delete refused because the record is still referenced
  Transport:         Gateway unreachable or remote failure

PROPAGATION:
  Ledger components detect NotFound/Validation/InsufficientFunds/Conflict
  before touching any state. Transport errors come from the gateway package,
  which wraps ErrTransport; the ledger never retries them.

USAGE:
  if errors.Is(err, ledger.ErrInsufficientFunds) { ... }

  var nf *ledger.NotFoundError
  if errors.As(err, &nf) { log.Printf("missing %s %d", nf.Kind, nf.ID) }
*/
package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/finance-engine/money"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("validation failed")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrConflict          = errors.New("conflict")

	// ErrTransport is wrapped by gateway failures that are not attributable
	// to the request itself (network, auth, 5xx).
	ErrTransport = errors.New("network or server failure")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// NotFoundError names the missing record.
type NotFoundError struct {
	Kind string // "account", "transaction", "instrument", "payment", "category"
	ID   int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("not found: %s %d", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

func notFound(kind string, id int64) error {
	return &NotFoundError{Kind: kind, ID: id}
}

// ValidationError reports the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// InsufficientFundsError provides details about a balance shortage.
type InsufficientFundsError struct {
	AccountID AccountID
	Available decimal.Decimal
	Requested decimal.Decimal
	Currency  string
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds in account %d: available %s, requested %s",
		e.AccountID, money.Format(e.Available, e.Currency), money.Format(e.Requested, e.Currency))
}

func (e *InsufficientFundsError) Unwrap() error { return ErrInsufficientFunds }

// ConflictError reports why a delete was refused.
type ConflictError struct {
	Kind   string
	ID     int64
	Reason string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict: %s %d %s", e.Kind, e.ID, e.Reason)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// Error classes reported alongside failed results.
const (
	ClassNotFound          = "not_found"
	ClassValidation        = "validation"
	ClassInsufficientFunds = "insufficient_funds"
	ClassConflict          = "conflict"
	ClassTransport         = "transport"
	ClassInternal          = "internal"
)

// Classify maps an error onto one of the Class* constants.
func Classify(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInsufficientFunds):
		return ClassInsufficientFunds
	case errors.Is(err, ErrNotFound):
		return ClassNotFound
	case errors.Is(err, ErrValidation):
		return ClassValidation
	case errors.Is(err, ErrConflict):
		return ClassConflict
	case errors.Is(err, ErrTransport):
		return ClassTransport
	default:
		return ClassInternal
	}
}

// Message returns a human-readable message that names the error class.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var (
		nf *NotFoundError
		ve *ValidationError
		fe *InsufficientFundsError
		ce *ConflictError
	)
	switch {
	case errors.As(err, &fe):
		return fe.Error()
	case errors.As(err, &nf):
		return nf.Error()
	case errors.As(err, &ve):
		return ve.Error()
	case errors.As(err, &ce):
		return ce.Error()
	}
	switch Classify(err) {
	case ClassTransport, ClassInternal:
		if errors.Is(err, ErrTransport) {
			return err.Error()
		}
		return ErrTransport.Error() + ": " + err.Error()
	}
	return err.Error()
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsClientError returns true if the error is due to the request itself.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrNotFound)
}

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool { return errors.Is(err, ErrTransport) }
