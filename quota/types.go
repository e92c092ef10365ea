/*
Package quota provides the core domain types for the quota ledger.

PURPOSE:
  This package contains the entities and pure policy functions shared by the
  reconciliation engine, the statement importer and the historical backfill:
  fiscal periods, per-member period balances, lifetime account rollups and the
  immutable transaction record.

KEY CONCEPTS IN THIS FILE (types.go):
  - Period: one fiscal year's quota policy for one building
  - PeriodBalance: the ledger row (expected vs. paid quota per member/period)
  - MemberAccount: materialized lifetime rollup per member
  - Transaction: an immutable record of money movement
  - Status: payment status, ALWAYS derived via DeriveStatus

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point errors
  2. Purity: Status is a function of (paid, balance) - never stored state
     that can drift
  3. Type Safety: Strong typing for IDs prevents mixing member/period IDs
  4. Immutability: Transactions are written once and never mutated

SEE ALSO:
  - tier.go: Permilage-to-quota tier resolution
  - period.go: Fiscal year boundaries
  - errors.go: Sentinel errors shared by all implementations
*/
package quota

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type BuildingID string
type MemberID string
type PeriodID string
type BalanceID string
type AccountID string
type TransactionID string
type CategoryID string

// =============================================================================
// PAYMENT STATUS - Always a pure function of (paid, balance)
// =============================================================================

type Status string

const (
	StatusPaid    Status = "paid"
	StatusPartial Status = "partial"
	StatusUnpaid  Status = "unpaid"
)

// DeriveStatus computes the payment status from the post-update fields.
// This is the ONLY place the paid/partial/unpaid rule lives; every write path
// (engine, stores, backfill) recomputes status through it so no code path can
// desynchronize status from balance.
//
//	paid     if balance >= 0 (overpayment is a standing credit, still "paid")
//	partial  if balance < 0 and something was paid
//	unpaid   otherwise
func DeriveStatus(paidTotal, balance decimal.Decimal) Status {
	switch {
	case !balance.IsNegative():
		return StatusPaid
	case paidTotal.IsPositive():
		return StatusPartial
	default:
		return StatusUnpaid
	}
}

// =============================================================================
// BUILDING & MEMBER - Owned by external directories; the engine only reads
// =============================================================================

type Building struct {
	ID   BuildingID
	Name string
}

// Member is a condominium unit owner. The engine reads name (for statement
// matching) and permilage (for quota tiering); lifecycle is owned by
// member management.
type Member struct {
	ID         MemberID
	BuildingID BuildingID
	Name       string
	Fraction   string // unit label, e.g. "A - RC/DTO"
	// Ownership share of the building in thousandths. Also used for
	// governance quorum weight, which is out of scope here.
	Permilage decimal.Decimal
}

// =============================================================================
// PERIOD - One fiscal year for one building
// =============================================================================

// Period is one fiscal year's quota policy and date range for a building.
// At most one Period exists per (building, year); it is created lazily on
// first reference and never deleted.
type Period struct {
	ID         PeriodID
	BuildingID BuildingID
	Year       int
	StartDate  time.Time // year-01-01
	EndDate    time.Time // year-12-31
	// Monthly quota rates in force for the year, one per tier.
	// Recorded at provisioning time as the audit trail of what applied.
	MonthlyQuota150 decimal.Decimal
	MonthlyQuota200 decimal.Decimal
	Closed          bool
}

// =============================================================================
// PERIOD BALANCE - The core ledger row: one per (member, period)
// =============================================================================

// PeriodBalance tracks one member's expected vs. paid quota for one period.
//
// INVARIANTS:
//   - Exactly one row per (member, period); enforced by a unique constraint.
//   - Balance == PaidTotal - ExpectedAnnual at all times.
//   - Status == DeriveStatus(PaidTotal, Balance) at all times.
type PeriodBalance struct {
	ID              BalanceID
	MemberID        MemberID
	PeriodID        PeriodID
	BuildingID      BuildingID
	ExpectedMonthly decimal.Decimal
	ExpectedAnnual  decimal.Decimal // ExpectedMonthly * 12
	PaidTotal       decimal.Decimal
	Balance         decimal.Decimal // PaidTotal - ExpectedAnnual; negative = debt
	Status          Status
	Notes           string
}

// NewPeriodBalance seeds a balance row as fully unpaid: a member who has never
// had a row is assumed to start the period owing the full annual quota.
func NewPeriodBalance(id BalanceID, memberID MemberID, periodID PeriodID, buildingID BuildingID, monthly decimal.Decimal) PeriodBalance {
	annual := AnnualQuota(monthly)
	balance := annual.Neg()
	return PeriodBalance{
		ID:              id,
		MemberID:        memberID,
		PeriodID:        periodID,
		BuildingID:      buildingID,
		ExpectedMonthly: monthly,
		ExpectedAnnual:  annual,
		PaidTotal:       decimal.Zero,
		Balance:         balance,
		Status:          DeriveStatus(decimal.Zero, balance),
	}
}

// =============================================================================
// MEMBER ACCOUNT - Materialized lifetime rollup, one per member
// =============================================================================

// MemberAccount is always recomputable by summing the member's PeriodBalance
// rows. It is recomputed in full after every ledger update - never patched
// incrementally, to avoid drift.
type MemberAccount struct {
	ID                  AccountID
	MemberID            MemberID
	CurrentBalance      decimal.Decimal // sum of PeriodBalance.Balance
	TotalPaidAllTime    decimal.Decimal
	TotalChargedAllTime decimal.Decimal
	HasOverdueDebt      bool            // CurrentBalance < 0
	OverdueAmount       decimal.Decimal // abs(CurrentBalance) if negative, else 0
}

// =============================================================================
// TRANSACTION - Immutable record of money movement
// =============================================================================

type TransactionType string

const (
	TxIncome  TransactionType = "income"
	TxExpense TransactionType = "expense"
)

// Transaction is written once by the statement importer and never mutated.
// Amount is stored as an unsigned magnitude; Type carries the sign meaning.
type Transaction struct {
	ID           TransactionID
	BuildingID   BuildingID
	MemberID     *MemberID // nil when no member was identified
	CategoryID   CategoryID
	Date         time.Time
	Type         TransactionType
	Amount       decimal.Decimal // absolute value of the parsed amount
	Description  string
	Notes        string
	IsFeePayment bool
}

// =============================================================================
// CATEGORY - Cache-or-create dictionary scoped to a building
// =============================================================================

type Category struct {
	ID         CategoryID
	BuildingID BuildingID
	Name       string
	Type       TransactionType
	Parent     string // optional parent category name
}

// =============================================================================
// MONTHLY TRACKING - Month-level rows written by the historical backfill
// =============================================================================

// MonthlyTracking records one member's expected vs. paid quota for a single
// month. One row per (member, period, year, month).
type MonthlyTracking struct {
	MemberID      MemberID
	PeriodID      PeriodID
	BuildingID    BuildingID
	Year          int
	Month         int // 1-12
	QuotaExpected decimal.Decimal
	QuotaPaid     decimal.Decimal
	Balance       decimal.Decimal
	IsPaid        bool
}

// MustDecimal parses a decimal literal, returning zero on malformed input.
// Intended for configuration tables, where a typo should degrade, not panic.
func MustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
