/*
Package backfill seeds historical period balances from a curated plan.

PURPOSE:
  Bootstraps the ledger for years that predate statement imports. The plan is
  the product of a manual reconciliation of old bank statements: which years
  each member settled in full, and for the current tracking year, how many
  months they paid and at which rate. The seeder writes authoritative balance
  rows (UpsertBalance overwrites, unlike the import path's EnsureBalance),
  month-level tracking rows for the tracking year, and recomputes every
  member's lifetime account.

IDEMPOTENCE:
  Re-running the same plan converges to the same state: periods are ensured,
  balances and tracking rows are keyed upserts, accounts are full recomputes.

SEE ALSO:
  - factory/config.go: The production plan (2021-2025 reconciliation)
  - ledger/engine.go: Period provisioning and account aggregation reused here
*/
package backfill

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gestor/quota-engine/ledger"
	"github.com/gestor/quota-engine/quota"
)

// Outcome is one member's reconciled state for the tracking year.
type Outcome struct {
	// PaidMonths counts the months settled, starting from January.
	PaidMonths int
	// PaidPerMonth is the rate actually paid, which may differ from the
	// expected quota when a member keeps paying an outdated rate.
	PaidPerMonth decimal.Decimal
	// Note is carried onto the tracking year's balance row.
	Note string
}

// Plan is the curated reconciliation the seeder materializes.
type Plan struct {
	// SettledYears were paid in full by every planned member.
	SettledYears []int
	// TrackingYear gets month-level rows and per-member outcomes.
	TrackingYear int
	// Outcomes is keyed by registered member name. Members without an
	// entry are skipped untouched.
	Outcomes map[string]Outcome
	// SettledNote annotates the settled years' balance rows.
	SettledNote string
}

// Years returns every year the plan touches, ascending.
func (p Plan) Years() []int {
	years := append([]int(nil), p.SettledYears...)
	if p.TrackingYear != 0 {
		years = append(years, p.TrackingYear)
	}
	sort.Ints(years)
	return years
}

// Result reports what one backfill run wrote.
type Result struct {
	Balances int `json:"balances"`
	Tracking int `json:"tracking"`
	Accounts int `json:"accounts"`
	Skipped  int `json:"skipped"`
}

// Seeder materializes a Plan against the ledger.
type Seeder struct {
	engine    *ledger.Engine
	store     ledger.Store
	members   ledger.MemberDirectory
	buildings ledger.BuildingDirectory
	tiers     quota.TierTable
	logger    *slog.Logger
}

func NewSeeder(
	engine *ledger.Engine,
	store ledger.Store,
	members ledger.MemberDirectory,
	buildings ledger.BuildingDirectory,
	tiers quota.TierTable,
	logger *slog.Logger,
) *Seeder {
	return &Seeder{
		engine:    engine,
		store:     store,
		members:   members,
		buildings: buildings,
		tiers:     tiers,
		logger:    logger,
	}
}

// Run executes the plan. It fails fast when no building is configured or a
// period cannot be provisioned; per-member failures are logged and the run
// continues with the next member.
func (s *Seeder) Run(ctx context.Context, plan Plan) (*Result, error) {
	building, err := s.buildings.ActiveBuilding(ctx)
	if err != nil {
		return nil, fmt.Errorf("backfill aborted: %w", err)
	}

	periods := make(map[int]quota.PeriodID)
	for _, year := range plan.Years() {
		id, err := s.engine.EnsurePeriod(ctx, building.ID, year)
		if err != nil {
			return nil, fmt.Errorf("backfill aborted: %w", err)
		}
		periods[year] = id
	}

	members, err := s.members.MembersByBuilding(ctx, building.ID)
	if err != nil {
		return nil, fmt.Errorf("backfill aborted: %w", err)
	}

	result := &Result{}
	for _, member := range members {
		outcome, planned := plan.Outcomes[member.Name]
		if !planned {
			s.logger.Info("member not in backfill plan, skipping", "member", member.Name)
			result.Skipped++
			continue
		}

		if err := s.seedMember(ctx, building.ID, member, outcome, plan, periods, result); err != nil {
			s.logger.Error("backfill failed for member",
				"member", member.Name, "error", err)
			continue
		}

		if err := s.engine.RecomputeAccount(ctx, member.ID); err != nil {
			s.logger.Error("account recompute failed",
				"member", member.Name, "error", err)
			continue
		}
		result.Accounts++
	}

	s.logger.Info("backfill finished",
		"building", building.ID,
		"balances", result.Balances,
		"tracking", result.Tracking,
		"accounts", result.Accounts,
		"skipped", result.Skipped,
	)
	return result, nil
}

func (s *Seeder) seedMember(
	ctx context.Context,
	buildingID quota.BuildingID,
	member quota.Member,
	outcome Outcome,
	plan Plan,
	periods map[int]quota.PeriodID,
	result *Result,
) error {
	for _, year := range plan.SettledYears {
		monthly := s.tiers.MonthlyQuota(member.Permilage, year)
		annual := quota.AnnualQuota(monthly)

		// Settled in full: paid equals the annual charge, balance zero.
		b := quota.PeriodBalance{
			ID:              quota.BalanceID(uuid.NewString()),
			MemberID:        member.ID,
			PeriodID:        periods[year],
			BuildingID:      buildingID,
			ExpectedMonthly: monthly,
			ExpectedAnnual:  annual,
			PaidTotal:       annual,
			Balance:         decimal.Zero,
			Status:          quota.DeriveStatus(annual, decimal.Zero),
			Notes:           plan.SettledNote,
		}
		if err := s.store.UpsertBalance(ctx, b); err != nil {
			return fmt.Errorf("settled year %d: %w", year, err)
		}
		result.Balances++
	}

	if plan.TrackingYear == 0 {
		return nil
	}
	year := plan.TrackingYear
	monthly := s.tiers.MonthlyQuota(member.Permilage, year)
	annual := quota.AnnualQuota(monthly)

	paid := outcome.PaidPerMonth.Mul(decimal.NewFromInt(int64(outcome.PaidMonths)))
	balance := paid.Sub(annual)

	b := quota.PeriodBalance{
		ID:              quota.BalanceID(uuid.NewString()),
		MemberID:        member.ID,
		PeriodID:        periods[year],
		BuildingID:      buildingID,
		ExpectedMonthly: monthly,
		ExpectedAnnual:  annual,
		PaidTotal:       paid,
		Balance:         balance,
		Status:          quota.DeriveStatus(paid, balance),
		Notes:           outcome.Note,
	}
	if err := s.store.UpsertBalance(ctx, b); err != nil {
		return fmt.Errorf("tracking year %d: %w", year, err)
	}
	result.Balances++

	// Month-level detail: the first PaidMonths months are settled at the
	// rate actually paid, the rest are open at the expected rate.
	for month := 1; month <= 12; month++ {
		isPaid := month <= outcome.PaidMonths
		monthPaid := decimal.Zero
		if isPaid {
			monthPaid = outcome.PaidPerMonth
		}
		t := quota.MonthlyTracking{
			MemberID:      member.ID,
			PeriodID:      periods[year],
			BuildingID:    buildingID,
			Year:          year,
			Month:         month,
			QuotaExpected: monthly,
			QuotaPaid:     monthPaid,
			Balance:       monthPaid.Sub(monthly),
			IsPaid:        isPaid,
		}
		if err := s.store.UpsertMonthlyTracking(ctx, t); err != nil {
			return fmt.Errorf("tracking %d-%02d: %w", year, month, err)
		}
		result.Tracking++
	}

	return nil
}
