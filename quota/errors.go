/*
errors.go - Centralized error types for the quota engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Store implementations and the importer wrap these errors with additional
  context; callers branch with errors.Is().

ERROR CATEGORIES:
  1. Precondition failures - invalid inputs to ledger operations
  2. Lookup misses - referenced rows that do not exist
  3. Fatal batch preconditions - the only fail-fast case in an import

SEE ALSO:
  - ledger/engine.go: Returns these from ledger operations
  - importer/importer.go: ErrNoBuilding aborts a batch before any row
*/
package quota

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNoBuilding is returned when no building exists at all. This is the
	// only fail-fast condition: a statement batch aborts before any row.
	ErrNoBuilding = errors.New("no building configured")

	// ErrMemberNotFound is returned when a referenced member doesn't exist.
	ErrMemberNotFound = errors.New("member not found")

	// ErrPeriodNotFound is returned when a referenced period doesn't exist.
	ErrPeriodNotFound = errors.New("period not found")

	// ErrBalanceNotFound is returned when applying a payment against a
	// (member, period) pair that has no balance row.
	ErrBalanceNotFound = errors.New("period balance not found")

	// ErrAccountNotFound is returned when a member has no account record.
	ErrAccountNotFound = errors.New("member account not found")

	// ErrNonPositiveAmount is returned when a ledger update is attempted
	// with a zero or negative amount. Only confirmed positive fee payments
	// reach the updater.
	ErrNonPositiveAmount = errors.New("payment amount must be positive")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidAmountError reports the offending amount on a rejected payment.
type InvalidAmountError struct {
	MemberID MemberID
	PeriodID PeriodID
	Amount   decimal.Decimal
}

func (e *InvalidAmountError) Error() string {
	return fmt.Sprintf("payment amount must be positive: got %s for member %s period %s",
		e.Amount, e.MemberID, e.PeriodID)
}

func (e *InvalidAmountError) Unwrap() error { return ErrNonPositiveAmount }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing row.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrMemberNotFound) ||
		errors.Is(err, ErrPeriodNotFound) ||
		errors.Is(err, ErrBalanceNotFound) ||
		errors.Is(err, ErrAccountNotFound)
}
