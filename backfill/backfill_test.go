package backfill_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gestor/quota-engine/backfill"
	"github.com/gestor/quota-engine/ledger"
	"github.com/gestor/quota-engine/ledger/store"
	"github.com/gestor/quota-engine/quota"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

const (
	testBuilding = quota.BuildingID("bldg-1")
	memberVitor  = quota.MemberID("vitor")
	memberJoao   = quota.MemberID("joao")
)

func testTiers() quota.TierTable {
	old := quota.YearRates{
		Tier150: decimal.RequireFromString("26.13"),
		Tier200: decimal.RequireFromString("34.84"),
	}
	return quota.NewTierTable(map[int]quota.YearRates{
		2023: old,
		2024: old,
		2025: {
			Tier150: decimal.RequireFromString("32.66"),
			Tier200: decimal.RequireFromString("43.54"),
		},
	})
}

func testPlan() backfill.Plan {
	return backfill.Plan{
		SettledYears: []int{2023, 2024},
		TrackingYear: 2025,
		SettledNote:  "Anos históricos fechados",
		Outcomes: map[string]backfill.Outcome{
			"Vítor Manuel Sebastian Rodrigues": {
				PaidMonths:   11,
				PaidPerMonth: decimal.RequireFromString("26.13"),
				Note:         "Paga com a quota antiga",
			},
			"João Manuel Fernandes Longo": {
				PaidMonths:   12,
				PaidPerMonth: decimal.RequireFromString("43.54"),
				Note:         "Em dia",
			},
		},
	}
}

func newTestSeeder(t *testing.T) (*backfill.Seeder, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	ctx := context.Background()

	require.NoError(t, mem.SaveBuilding(ctx, quota.Building{ID: testBuilding, Name: "Test"}))
	require.NoError(t, mem.SaveMember(ctx, quota.Member{
		ID: memberVitor, BuildingID: testBuilding,
		Name: "Vítor Manuel Sebastian Rodrigues", Permilage: decimal.NewFromInt(150),
	}))
	require.NoError(t, mem.SaveMember(ctx, quota.Member{
		ID: memberJoao, BuildingID: testBuilding,
		Name: "João Manuel Fernandes Longo", Permilage: decimal.NewFromInt(200),
	}))

	engine := ledger.NewEngine(mem, mem, testTiers())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return backfill.NewSeeder(engine, mem, mem, mem, testTiers(), logger), mem
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// =============================================================================
// TESTS
// =============================================================================

func TestRun_SettledYearsAreFullyPaid(t *testing.T) {
	seeder, mem := newTestSeeder(t)
	ctx := context.Background()

	result, err := seeder.Run(ctx, testPlan())
	require.NoError(t, err)
	// 2 members x 3 years.
	assert.Equal(t, 6, result.Balances)

	period, err := mem.PeriodByYear(ctx, testBuilding, 2023)
	require.NoError(t, err)
	b, err := mem.Balance(ctx, memberVitor, period.ID)
	require.NoError(t, err)
	assert.True(t, b.ExpectedAnnual.Equal(d("313.56")))
	assert.True(t, b.PaidTotal.Equal(d("313.56")))
	assert.True(t, b.Balance.IsZero())
	assert.Equal(t, quota.StatusPaid, b.Status)
	assert.Equal(t, "Anos históricos fechados", b.Notes)
}

func TestRun_TrackingYearReflectsOutcome(t *testing.T) {
	// GIVEN: Vítor paid 11 months at the outdated 26.13 rate in 2025
	// WHEN: the plan runs
	// THEN: his 2025 row is partial, short by the rate gap plus one month

	seeder, mem := newTestSeeder(t)
	ctx := context.Background()

	_, err := seeder.Run(ctx, testPlan())
	require.NoError(t, err)

	period, err := mem.PeriodByYear(ctx, testBuilding, 2025)
	require.NoError(t, err)

	vitor, err := mem.Balance(ctx, memberVitor, period.ID)
	require.NoError(t, err)
	assert.True(t, vitor.PaidTotal.Equal(d("287.43")), "11 x 26.13, got %s", vitor.PaidTotal)
	assert.True(t, vitor.Balance.Equal(d("-104.49")), "got %s", vitor.Balance)
	assert.Equal(t, quota.StatusPartial, vitor.Status)

	joao, err := mem.Balance(ctx, memberJoao, period.ID)
	require.NoError(t, err)
	assert.True(t, joao.Balance.IsZero())
	assert.Equal(t, quota.StatusPaid, joao.Status)
}

func TestRun_WritesMonthlyTracking(t *testing.T) {
	seeder, mem := newTestSeeder(t)
	ctx := context.Background()

	result, err := seeder.Run(ctx, testPlan())
	require.NoError(t, err)
	assert.Equal(t, 24, result.Tracking)

	rows, err := mem.MonthlyTracking(ctx, memberVitor, 2025)
	require.NoError(t, err)
	require.Len(t, rows, 12)

	// November is the last month paid, December is open.
	nov, dec := rows[10], rows[11]
	assert.True(t, nov.IsPaid)
	assert.True(t, nov.QuotaPaid.Equal(d("26.13")))
	assert.True(t, nov.QuotaExpected.Equal(d("32.66")))
	assert.False(t, dec.IsPaid)
	assert.True(t, dec.QuotaPaid.IsZero())
	assert.True(t, dec.Balance.Equal(d("-32.66")))
}

func TestRun_RecomputesAccounts(t *testing.T) {
	seeder, mem := newTestSeeder(t)
	ctx := context.Background()

	result, err := seeder.Run(ctx, testPlan())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Accounts)

	acct, err := mem.Account(ctx, memberVitor)
	require.NoError(t, err)
	// Settled years net to zero; only the 2025 shortfall remains.
	assert.True(t, acct.CurrentBalance.Equal(d("-104.49")), "got %s", acct.CurrentBalance)
	assert.True(t, acct.HasOverdueDebt)

	joao, err := mem.Account(ctx, memberJoao)
	require.NoError(t, err)
	assert.False(t, joao.HasOverdueDebt)
}

func TestRun_IsIdempotent(t *testing.T) {
	// Re-running the same plan converges: same rows, same totals.
	seeder, mem := newTestSeeder(t)
	ctx := context.Background()

	_, err := seeder.Run(ctx, testPlan())
	require.NoError(t, err)
	_, err = seeder.Run(ctx, testPlan())
	require.NoError(t, err)

	periods, err := mem.PeriodsByBuilding(ctx, testBuilding)
	require.NoError(t, err)
	assert.Len(t, periods, 3)

	balances, err := mem.BalancesByMember(ctx, memberVitor)
	require.NoError(t, err)
	assert.Len(t, balances, 3)

	acct, err := mem.Account(ctx, memberVitor)
	require.NoError(t, err)
	assert.True(t, acct.CurrentBalance.Equal(d("-104.49")))
}

func TestRun_UnplannedMembersAreSkipped(t *testing.T) {
	seeder, mem := newTestSeeder(t)
	ctx := context.Background()
	require.NoError(t, mem.SaveMember(ctx, quota.Member{
		ID: "novo", BuildingID: testBuilding,
		Name: "Novo Proprietário", Permilage: decimal.NewFromInt(150),
	}))

	result, err := seeder.Run(ctx, testPlan())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Skipped)

	balances, err := mem.BalancesByMember(ctx, "novo")
	require.NoError(t, err)
	assert.Empty(t, balances)
}

func TestRun_NoBuildingAborts(t *testing.T) {
	mem := store.NewMemory()
	engine := ledger.NewEngine(mem, mem, testTiers())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	seeder := backfill.NewSeeder(engine, mem, mem, mem, testTiers(), logger)

	_, err := seeder.Run(context.Background(), testPlan())
	assert.ErrorIs(t, err, quota.ErrNoBuilding)
}
