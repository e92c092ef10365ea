/*
store.go - Persistence interface for the quota ledger

PURPOSE:
  Defines the interface between the reconciliation engine and the database.
  Different implementations can use SQLite, PostgreSQL, or in-memory storage.

ATOMIC UPSERT CONTRACT:
  The engine does not assume a single-writer process. Every "ensure" method
  MUST be an atomic insert-if-absent (unique constraint + conflict-handling
  insert, or equivalent transactional check-then-act). A plain "select then
  insert" is a race and must not be used: two imports running concurrently
  for the same building/year or member/period must still produce exactly
  one row.

  ApplyPayment MUST execute as a single atomic statement or transaction per
  balance row, so concurrent payments against the same member/period never
  lose updates.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Production SQLite (same patterns as PostgreSQL)
  - ledger/store/memory.go: In-memory for testing

SEE ALSO:
  - engine.go: The reconciliation engine built on these interfaces
*/
package ledger

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/gestor/quota-engine/quota"
)

// =============================================================================
// STORE - Persistence for periods, balances, accounts and transactions
// =============================================================================

type Store interface {
	// EnsurePeriod atomically inserts the period if no row exists for its
	// (building, year) and returns the surviving row's ID - the existing
	// one on conflict, the new one otherwise.
	EnsurePeriod(ctx context.Context, p quota.Period) (quota.PeriodID, error)

	// PeriodByID returns a period, or ErrPeriodNotFound.
	PeriodByID(ctx context.Context, id quota.PeriodID) (*quota.Period, error)

	// PeriodByYear returns the period for (building, year), or ErrPeriodNotFound.
	PeriodByYear(ctx context.Context, buildingID quota.BuildingID, year int) (*quota.Period, error)

	// PeriodsByBuilding returns all periods for a building, newest year first.
	PeriodsByBuilding(ctx context.Context, buildingID quota.BuildingID) ([]quota.Period, error)

	// EnsureBalance atomically inserts the balance row if none exists for
	// its (member, period). An existing row is left untouched.
	EnsureBalance(ctx context.Context, b quota.PeriodBalance) error

	// UpsertBalance inserts or fully overwrites the paid/balance/status
	// fields, keyed on (member, period). Used by the historical backfill.
	UpsertBalance(ctx context.Context, b quota.PeriodBalance) error

	// ApplyPayment atomically adds amount to the row's paid total and
	// balance and re-derives status via quota.DeriveStatus. Returns
	// ErrBalanceNotFound when no row exists.
	ApplyPayment(ctx context.Context, memberID quota.MemberID, periodID quota.PeriodID, amount decimal.Decimal) error

	// Balance returns the row for (member, period), or ErrBalanceNotFound.
	Balance(ctx context.Context, memberID quota.MemberID, periodID quota.PeriodID) (*quota.PeriodBalance, error)

	// BalancesByMember returns every balance row belonging to the member.
	BalancesByMember(ctx context.Context, memberID quota.MemberID) ([]quota.PeriodBalance, error)

	// BalancesByPeriod returns every balance row in a period.
	BalancesByPeriod(ctx context.Context, periodID quota.PeriodID) ([]quota.PeriodBalance, error)

	// SaveAccount inserts or overwrites the member's account rollup,
	// keyed on member.
	SaveAccount(ctx context.Context, a quota.MemberAccount) error

	// Account returns the member's rollup, or ErrAccountNotFound.
	Account(ctx context.Context, memberID quota.MemberID) (*quota.MemberAccount, error)

	// InsertTransaction persists an immutable transaction record.
	InsertTransaction(ctx context.Context, t quota.Transaction) error

	// TransactionsByBuilding returns the most recent transactions, newest
	// first, capped at limit.
	TransactionsByBuilding(ctx context.Context, buildingID quota.BuildingID, limit int) ([]quota.Transaction, error)

	// EnsureCategory atomically resolves-or-creates a category by
	// (building, name) and returns the surviving row's ID.
	EnsureCategory(ctx context.Context, c quota.Category) (quota.CategoryID, error)

	// UpsertMonthlyTracking inserts or overwrites a month-level tracking
	// row, keyed on (member, period, year, month).
	UpsertMonthlyTracking(ctx context.Context, m quota.MonthlyTracking) error
}

// =============================================================================
// DIRECTORIES - External collaborators the engine only reads
// =============================================================================

// MemberDirectory provides member lookups. Member lifecycle is owned by
// member management; this engine reads name and permilage.
type MemberDirectory interface {
	// Member returns a member by ID, or ErrMemberNotFound.
	Member(ctx context.Context, id quota.MemberID) (*quota.Member, error)

	// MemberByName returns the member registered under the exact name
	// (case-insensitive) in a building, or ErrMemberNotFound.
	MemberByName(ctx context.Context, buildingID quota.BuildingID, name string) (*quota.Member, error)

	// MembersByBuilding returns all members of a building, ordered by name.
	MembersByBuilding(ctx context.Context, buildingID quota.BuildingID) ([]quota.Member, error)
}

// BuildingDirectory provides the active building context.
type BuildingDirectory interface {
	// ActiveBuilding returns the building a batch runs against, or
	// ErrNoBuilding when none exists.
	ActiveBuilding(ctx context.Context) (*quota.Building, error)
}
