package ledger_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gestor/quota-engine/ledger"
	"github.com/gestor/quota-engine/ledger/store"
	"github.com/gestor/quota-engine/quota"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

const (
	testBuilding = quota.BuildingID("bldg-1")
	testMember   = quota.MemberID("member-1")
)

func testTiers() quota.TierTable {
	return quota.NewTierTable(map[int]quota.YearRates{
		2024: {
			Tier150: decimal.RequireFromString("26.13"),
			Tier200: decimal.RequireFromString("34.84"),
		},
		2025: {
			Tier150: decimal.RequireFromString("32.66"),
			Tier200: decimal.RequireFromString("43.54"),
		},
	})
}

func newTestEngine(t *testing.T) (*ledger.Engine, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	ctx := context.Background()

	require.NoError(t, mem.SaveBuilding(ctx, quota.Building{ID: testBuilding, Name: "Test Building"}))
	require.NoError(t, mem.SaveMember(ctx, quota.Member{
		ID:         testMember,
		BuildingID: testBuilding,
		Name:       "Vítor Manuel Sebastian Rodrigues",
		Fraction:   "A - RC/DTO",
		Permilage:  decimal.NewFromInt(150),
	}))

	return ledger.NewEngine(mem, mem, testTiers()), mem
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// =============================================================================
// PERIOD PROVISIONER
// =============================================================================

func TestEnsurePeriod_CreatesWithYearRates(t *testing.T) {
	engine, mem := newTestEngine(t)
	ctx := context.Background()

	id, err := engine.EnsurePeriod(ctx, testBuilding, 2025)
	require.NoError(t, err)

	period, err := mem.PeriodByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 2025, period.Year)
	assert.True(t, period.MonthlyQuota150.Equal(d("32.66")))
	assert.True(t, period.MonthlyQuota200.Equal(d("43.54")))
}

func TestEnsurePeriod_IsIdempotent(t *testing.T) {
	// GIVEN: a period already provisioned for (building, 2025)
	// WHEN: ensuring the same year again
	// THEN: the same period ID comes back and only one period exists

	engine, mem := newTestEngine(t)
	ctx := context.Background()

	first, err := engine.EnsurePeriod(ctx, testBuilding, 2025)
	require.NoError(t, err)
	second, err := engine.EnsurePeriod(ctx, testBuilding, 2025)
	require.NoError(t, err)

	assert.Equal(t, first, second)

	periods, err := mem.PeriodsByBuilding(ctx, testBuilding)
	require.NoError(t, err)
	assert.Len(t, periods, 1)
}

func TestEnsurePeriod_UnknownYearProvisionsZeroRates(t *testing.T) {
	engine, mem := newTestEngine(t)
	ctx := context.Background()

	id, err := engine.EnsurePeriod(ctx, testBuilding, 1999)
	require.NoError(t, err)

	period, err := mem.PeriodByID(ctx, id)
	require.NoError(t, err)
	assert.True(t, period.MonthlyQuota150.IsZero())
	assert.True(t, period.MonthlyQuota200.IsZero())
}

// =============================================================================
// BALANCE INITIALIZER
// =============================================================================

func TestEnsureBalance_SeedsFullAnnualDebt(t *testing.T) {
	engine, mem := newTestEngine(t)
	ctx := context.Background()

	periodID, err := engine.EnsurePeriod(ctx, testBuilding, 2025)
	require.NoError(t, err)
	require.NoError(t, engine.EnsureBalance(ctx, testMember, periodID, testBuilding))

	b, err := mem.Balance(ctx, testMember, periodID)
	require.NoError(t, err)
	assert.True(t, b.ExpectedMonthly.Equal(d("32.66")))
	assert.True(t, b.ExpectedAnnual.Equal(d("391.92")))
	assert.True(t, b.PaidTotal.IsZero())
	assert.True(t, b.Balance.Equal(d("-391.92")))
	assert.Equal(t, quota.StatusUnpaid, b.Status)
}

func TestEnsureBalance_NeverTouchesExistingRow(t *testing.T) {
	// GIVEN: a balance row that already absorbed a payment
	// WHEN: the initializer runs again for the same (member, period)
	// THEN: the row keeps its paid total

	engine, mem := newTestEngine(t)
	ctx := context.Background()

	periodID, err := engine.EnsurePeriod(ctx, testBuilding, 2025)
	require.NoError(t, err)
	require.NoError(t, engine.EnsureBalance(ctx, testMember, periodID, testBuilding))
	require.NoError(t, engine.ApplyPayment(ctx, testMember, periodID, d("32.66")))

	require.NoError(t, engine.EnsureBalance(ctx, testMember, periodID, testBuilding))

	b, err := mem.Balance(ctx, testMember, periodID)
	require.NoError(t, err)
	assert.True(t, b.PaidTotal.Equal(d("32.66")), "got %s", b.PaidTotal)
}

func TestEnsureBalance_UnknownMemberFails(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	periodID, err := engine.EnsurePeriod(ctx, testBuilding, 2025)
	require.NoError(t, err)

	err = engine.EnsureBalance(ctx, "ghost", periodID, testBuilding)
	assert.ErrorIs(t, err, quota.ErrMemberNotFound)
}

// =============================================================================
// LEDGER UPDATER
// =============================================================================

func TestApplyPayment_MovesBalanceAndStatus(t *testing.T) {
	engine, mem := newTestEngine(t)
	ctx := context.Background()

	periodID, err := engine.EnsurePeriod(ctx, testBuilding, 2025)
	require.NoError(t, err)
	require.NoError(t, engine.EnsureBalance(ctx, testMember, periodID, testBuilding))

	// One monthly payment: partial.
	require.NoError(t, engine.ApplyPayment(ctx, testMember, periodID, d("32.66")))
	b, err := mem.Balance(ctx, testMember, periodID)
	require.NoError(t, err)
	assert.True(t, b.Balance.Equal(d("-359.26")), "got %s", b.Balance)
	assert.Equal(t, quota.StatusPartial, b.Status)

	// The remaining eleven months: paid.
	require.NoError(t, engine.ApplyPayment(ctx, testMember, periodID, d("359.26")))
	b, err = mem.Balance(ctx, testMember, periodID)
	require.NoError(t, err)
	assert.True(t, b.Balance.IsZero())
	assert.Equal(t, quota.StatusPaid, b.Status)
}

func TestApplyPayment_OverpaymentIsStandingCredit(t *testing.T) {
	// GIVEN: an annual expectation of 391.92
	// WHEN: the member pays 400
	// THEN: the balance goes positive and the row is "paid" - no clamping

	engine, mem := newTestEngine(t)
	ctx := context.Background()

	periodID, err := engine.EnsurePeriod(ctx, testBuilding, 2025)
	require.NoError(t, err)
	require.NoError(t, engine.EnsureBalance(ctx, testMember, periodID, testBuilding))

	require.NoError(t, engine.ApplyPayment(ctx, testMember, periodID, d("400")))

	b, err := mem.Balance(ctx, testMember, periodID)
	require.NoError(t, err)
	assert.True(t, b.Balance.Equal(d("8.08")), "got %s", b.Balance)
	assert.Equal(t, quota.StatusPaid, b.Status)
}

func TestApplyPayment_RejectsNonPositiveAmounts(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	periodID, err := engine.EnsurePeriod(ctx, testBuilding, 2025)
	require.NoError(t, err)
	require.NoError(t, engine.EnsureBalance(ctx, testMember, periodID, testBuilding))

	for _, amount := range []decimal.Decimal{decimal.Zero, d("-10")} {
		err := engine.ApplyPayment(ctx, testMember, periodID, amount)
		assert.ErrorIs(t, err, quota.ErrNonPositiveAmount)

		var invalid *quota.InvalidAmountError
		assert.ErrorAs(t, err, &invalid)
	}
}

func TestApplyPayment_MissingRowFails(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	periodID, err := engine.EnsurePeriod(ctx, testBuilding, 2025)
	require.NoError(t, err)

	err = engine.ApplyPayment(ctx, testMember, periodID, d("10"))
	assert.ErrorIs(t, err, quota.ErrBalanceNotFound)
}

// =============================================================================
// ACCOUNT AGGREGATOR
// =============================================================================

func TestRecomputeAccount_SumsAllPeriods(t *testing.T) {
	// GIVEN: 2024 fully paid, 2025 untouched
	// WHEN: recomputing the lifetime account
	// THEN: the rollup reflects both years and flags the 2025 debt

	engine, mem := newTestEngine(t)
	ctx := context.Background()

	p2024, err := engine.EnsurePeriod(ctx, testBuilding, 2024)
	require.NoError(t, err)
	require.NoError(t, engine.EnsureBalance(ctx, testMember, p2024, testBuilding))
	require.NoError(t, engine.ApplyPayment(ctx, testMember, p2024, d("313.56")))

	p2025, err := engine.EnsurePeriod(ctx, testBuilding, 2025)
	require.NoError(t, err)
	require.NoError(t, engine.EnsureBalance(ctx, testMember, p2025, testBuilding))

	require.NoError(t, engine.RecomputeAccount(ctx, testMember))

	acct, err := mem.Account(ctx, testMember)
	require.NoError(t, err)
	assert.True(t, acct.CurrentBalance.Equal(d("-391.92")), "got %s", acct.CurrentBalance)
	assert.True(t, acct.TotalPaidAllTime.Equal(d("313.56")))
	assert.True(t, acct.TotalChargedAllTime.Equal(d("705.48")))
	assert.True(t, acct.HasOverdueDebt)
	assert.True(t, acct.OverdueAmount.Equal(d("391.92")))
}

func TestRecomputeAccount_SettledMemberHasNoOverdue(t *testing.T) {
	engine, mem := newTestEngine(t)
	ctx := context.Background()

	p2025, err := engine.EnsurePeriod(ctx, testBuilding, 2025)
	require.NoError(t, err)
	require.NoError(t, engine.EnsureBalance(ctx, testMember, p2025, testBuilding))
	require.NoError(t, engine.ApplyPayment(ctx, testMember, p2025, d("391.92")))

	require.NoError(t, engine.RecomputeAccount(ctx, testMember))

	acct, err := mem.Account(ctx, testMember)
	require.NoError(t, err)
	assert.True(t, acct.CurrentBalance.IsZero())
	assert.False(t, acct.HasOverdueDebt)
	assert.True(t, acct.OverdueAmount.IsZero())
}

// =============================================================================
// PAYMENT CHAIN
// =============================================================================

func TestRecordPayment_RunsFullChain(t *testing.T) {
	// GIVEN: an empty store (no period, no balance, no account)
	// WHEN: one confirmed payment is recorded
	// THEN: period, balance and account all exist and are consistent

	engine, mem := newTestEngine(t)
	ctx := context.Background()

	date := quota.StartOfYear(2025).AddDate(0, 2, 14)
	require.NoError(t, engine.RecordPayment(ctx, testBuilding, testMember, date, d("32.66")))

	period, err := mem.PeriodByYear(ctx, testBuilding, 2025)
	require.NoError(t, err)

	b, err := mem.Balance(ctx, testMember, period.ID)
	require.NoError(t, err)
	assert.True(t, b.PaidTotal.Equal(d("32.66")))
	assert.Equal(t, quota.StatusPartial, b.Status)

	acct, err := mem.Account(ctx, testMember)
	require.NoError(t, err)
	assert.True(t, acct.CurrentBalance.Equal(d("-359.26")), "got %s", acct.CurrentBalance)
}

func TestRecordPayment_ReplaySameYearAccumulates(t *testing.T) {
	engine, mem := newTestEngine(t)
	ctx := context.Background()

	date := quota.StartOfYear(2025)
	for i := 0; i < 12; i++ {
		require.NoError(t, engine.RecordPayment(ctx, testBuilding, testMember, date.AddDate(0, i, 0), d("32.66")))
	}

	period, err := mem.PeriodByYear(ctx, testBuilding, 2025)
	require.NoError(t, err)
	b, err := mem.Balance(ctx, testMember, period.ID)
	require.NoError(t, err)
	assert.True(t, b.Balance.IsZero(), "got %s", b.Balance)
	assert.Equal(t, quota.StatusPaid, b.Status)

	periods, err := mem.PeriodsByBuilding(ctx, testBuilding)
	require.NoError(t, err)
	assert.Len(t, periods, 1, "replaying the same year must not fork periods")
}
