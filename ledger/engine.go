/*
Package ledger implements the quota reconciliation engine.

PURPOSE:
  Turns confirmed fee payments into consistent state across three cascading
  aggregates: transaction -> period balance -> lifetime account. The engine
  is idempotent under replay of its provisioning steps and keeps payment
  status a pure function of the balance fields.

COMPONENTS:
  EnsurePeriod:     Period Provisioner - lazily creates the fiscal-year
                    period for (building, year) with canonical dates and the
                    year's tier rates.
  EnsureBalance:    Balance Initializer - seeds the (member, period) ledger
                    row as fully unpaid, resolving the expected quota from
                    the member's permilage.
  ApplyPayment:     Ledger Updater - adds a confirmed payment to the row and
                    re-derives status.
  RecomputeAccount: Account Aggregator - full recompute of the member's
                    lifetime rollup from all period balances.
  RecordPayment:    The chain, invoked once per qualifying transaction.

FULL RECOMPUTE:
  RecomputeAccount always sums every row. This is a deliberate
  simplicity-over-performance choice: a member has one row per fiscal year,
  and incremental patching is exactly the drift risk the rollup exists to
  avoid.

SEE ALSO:
  - store.go: Persistence contract, including the atomic upsert requirements
  - quota/tier.go: Rate resolution used by the Balance Initializer
*/
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gestor/quota-engine/quota"
)

// Engine orchestrates period provisioning, balance seeding, payment
// application and account aggregation over a Store.
type Engine struct {
	store   Store
	members MemberDirectory
	tiers   quota.TierTable
}

func NewEngine(store Store, members MemberDirectory, tiers quota.TierTable) *Engine {
	return &Engine{store: store, members: members, tiers: tiers}
}

// =============================================================================
// PERIOD PROVISIONER
// =============================================================================

// EnsurePeriod returns the period ID for (building, year), creating the
// period with canonical Jan 1 / Dec 31 dates and the year's tier rates if it
// does not exist. Safe to call concurrently for the same key: the store's
// conflict-handling insert guarantees at most one row survives.
func (e *Engine) EnsurePeriod(ctx context.Context, buildingID quota.BuildingID, year int) (quota.PeriodID, error) {
	rates, _ := e.tiers.For(year) // unknown year provisions zero rates
	p := quota.NewPeriod(quota.PeriodID(uuid.NewString()), buildingID, year, rates)

	id, err := e.store.EnsurePeriod(ctx, p)
	if err != nil {
		return "", fmt.Errorf("ensure period %d for building %s: %w", year, buildingID, err)
	}
	return id, nil
}

// =============================================================================
// BALANCE INITIALIZER
// =============================================================================

// EnsureBalance seeds the ledger row for (member, period) if absent:
// expected quota resolved from the member's permilage and the period's year,
// paid total zero, balance at full annual debt, status unpaid. Idempotent -
// an existing row is never touched.
func (e *Engine) EnsureBalance(ctx context.Context, memberID quota.MemberID, periodID quota.PeriodID, buildingID quota.BuildingID) error {
	period, err := e.store.PeriodByID(ctx, periodID)
	if err != nil {
		return fmt.Errorf("ensure balance: %w", err)
	}

	member, err := e.members.Member(ctx, memberID)
	if err != nil {
		return fmt.Errorf("ensure balance: %w", err)
	}

	monthly := e.tiers.MonthlyQuota(member.Permilage, period.Year)
	b := quota.NewPeriodBalance(quota.BalanceID(uuid.NewString()), memberID, periodID, buildingID, monthly)

	if err := e.store.EnsureBalance(ctx, b); err != nil {
		return fmt.Errorf("ensure balance for member %s period %d: %w", memberID, period.Year, err)
	}
	return nil
}

// =============================================================================
// LEDGER UPDATER
// =============================================================================

// ApplyPayment applies a confirmed positive fee payment to the (member,
// period) row. The store performs the update atomically; status is always
// re-derived from the post-update fields, never adjusted incrementally.
// There is no upper clamp: overpayment produces a positive balance that
// carries forward as a standing credit.
func (e *Engine) ApplyPayment(ctx context.Context, memberID quota.MemberID, periodID quota.PeriodID, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return &quota.InvalidAmountError{MemberID: memberID, PeriodID: periodID, Amount: amount}
	}
	if err := e.store.ApplyPayment(ctx, memberID, periodID, amount); err != nil {
		return fmt.Errorf("apply payment of %s to member %s: %w", amount, memberID, err)
	}
	return nil
}

// =============================================================================
// ACCOUNT AGGREGATOR
// =============================================================================

// RecomputeAccount rebuilds the member's lifetime rollup by full aggregation
// over every period balance row belonging to the member.
func (e *Engine) RecomputeAccount(ctx context.Context, memberID quota.MemberID) error {
	balances, err := e.store.BalancesByMember(ctx, memberID)
	if err != nil {
		return fmt.Errorf("recompute account for member %s: %w", memberID, err)
	}

	current := decimal.Zero
	paid := decimal.Zero
	charged := decimal.Zero
	for _, b := range balances {
		current = current.Add(b.Balance)
		paid = paid.Add(b.PaidTotal)
		charged = charged.Add(b.ExpectedAnnual)
	}

	overdue := current.IsNegative()
	overdueAmount := decimal.Zero
	if overdue {
		overdueAmount = current.Abs()
	}

	acct := quota.MemberAccount{
		ID:                  quota.AccountID(uuid.NewString()),
		MemberID:            memberID,
		CurrentBalance:      current,
		TotalPaidAllTime:    paid,
		TotalChargedAllTime: charged,
		HasOverdueDebt:      overdue,
		OverdueAmount:       overdueAmount,
	}

	if err := e.store.SaveAccount(ctx, acct); err != nil {
		return fmt.Errorf("recompute account for member %s: %w", memberID, err)
	}
	return nil
}

// =============================================================================
// PAYMENT CHAIN
// =============================================================================

// RecordPayment runs the full chain for one confirmed fee payment:
// Period Provisioner -> Balance Initializer -> Ledger Updater -> Account
// Aggregator, resolving the fiscal year from the transaction date.
func (e *Engine) RecordPayment(ctx context.Context, buildingID quota.BuildingID, memberID quota.MemberID, date time.Time, amount decimal.Decimal) error {
	periodID, err := e.EnsurePeriod(ctx, buildingID, quota.YearOf(date))
	if err != nil {
		return err
	}
	if err := e.EnsureBalance(ctx, memberID, periodID, buildingID); err != nil {
		return err
	}
	if err := e.ApplyPayment(ctx, memberID, periodID, amount); err != nil {
		return err
	}
	return e.RecomputeAccount(ctx, memberID)
}
