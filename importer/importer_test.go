package importer_test

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gestor/quota-engine/importer"
	"github.com/gestor/quota-engine/ledger"
	"github.com/gestor/quota-engine/ledger/store"
	"github.com/gestor/quota-engine/quota"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

const csvHeader = `"Cuentas","Transferencias","Descripción","Beneficiario","Categoría","Fecha","Hora","Memoria","Importe","Moneda","Número de cheque","Etiquetas"`

const (
	testBuilding = quota.BuildingID("bldg-1")
	memberVitor  = quota.MemberID("vitor")
)

func testTiers() quota.TierTable {
	return quota.NewTierTable(map[int]quota.YearRates{
		2025: {
			Tier150: decimal.RequireFromString("32.66"),
			Tier200: decimal.RequireFromString("43.54"),
		},
	})
}

func newTestImporter(t *testing.T) (*importer.Importer, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	ctx := context.Background()

	require.NoError(t, mem.SaveBuilding(ctx, quota.Building{ID: testBuilding, Name: "Test"}))
	require.NoError(t, mem.SaveMember(ctx, quota.Member{
		ID:         memberVitor,
		BuildingID: testBuilding,
		Name:       "Vítor Manuel Sebastian Rodrigues",
		Fraction:   "A - RC/DTO",
		Permilage:  decimal.NewFromInt(150),
	}))

	engine := ledger.NewEngine(mem, mem, testTiers())
	identifier := importer.NewIdentifier([]importer.AliasRule{
		{Alias: "VITOR RODRIGUES", Member: "Vítor Manuel Sebastian Rodrigues"},
	})
	categories := importer.CategoryTable{
		"Quota > Fraçao A - RC/DTO": {Name: "Quota Condómino", Type: quota.TxIncome},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return importer.New(engine, mem, mem, mem, identifier, categories, logger), mem
}

func statement(rows ...string) io.Reader {
	return strings.NewReader(csvHeader + "\n" + strings.Join(rows, "\n") + "\n")
}

func row(transfer, beneficiary, category, date, memo, amount string) string {
	return `"Conta","` + transfer + `","` + transfer + `","` + beneficiary + `","` +
		category + `","` + date + `","12:00","` + memo + `","` + amount + `","EUR","",""`
}

// =============================================================================
// TESTS
// =============================================================================

func TestRun_FeePaymentDrivesLedgerChain(t *testing.T) {
	// GIVEN: one quota payment row matching a registered member
	// WHEN: the batch runs
	// THEN: the transaction is stored and the member's period balance and
	// account reflect the payment

	imp, mem := newTestImporter(t)
	ctx := context.Background()

	summary, err := imp.Run(ctx, statement(
		row("TRF VITOR RODRIGUES", "VITOR RODRIGUES", "Quota > Fraçao A - RC/DTO", "15/03/2025", "quota marco", "32,66"),
	))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Imported)
	assert.Zero(t, summary.Failed)

	txs, err := mem.TransactionsByBuilding(ctx, testBuilding, 10)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.True(t, txs[0].IsFeePayment)
	assert.Equal(t, quota.TxIncome, txs[0].Type)
	require.NotNil(t, txs[0].MemberID)
	assert.Equal(t, memberVitor, *txs[0].MemberID)
	assert.True(t, txs[0].Amount.Equal(decimal.RequireFromString("32.66")))

	period, err := mem.PeriodByYear(ctx, testBuilding, 2025)
	require.NoError(t, err)
	b, err := mem.Balance(ctx, memberVitor, period.ID)
	require.NoError(t, err)
	assert.True(t, b.PaidTotal.Equal(decimal.RequireFromString("32.66")))
	assert.Equal(t, quota.StatusPartial, b.Status)

	acct, err := mem.Account(ctx, memberVitor)
	require.NoError(t, err)
	assert.True(t, acct.HasOverdueDebt)
}

func TestRun_ExpenseRowDoesNotTouchLedger(t *testing.T) {
	imp, mem := newTestImporter(t)
	ctx := context.Background()

	summary, err := imp.Run(ctx, statement(
		row("EDP COMERCIAL", "EDP", "Despesas de condomínio > LUZ", "03/02/2025", "fatura", "-45,10"),
	))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Imported)

	txs, err := mem.TransactionsByBuilding(ctx, testBuilding, 10)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, quota.TxExpense, txs[0].Type)
	assert.False(t, txs[0].IsFeePayment)
	assert.Nil(t, txs[0].MemberID)
	// Stored as magnitude; the type carries the sign.
	assert.True(t, txs[0].Amount.Equal(decimal.RequireFromString("45.10")))

	_, err = mem.PeriodByYear(ctx, testBuilding, 2025)
	assert.ErrorIs(t, err, quota.ErrPeriodNotFound)
}

func TestRun_SkipsZeroAndUnparsableAmounts(t *testing.T) {
	imp, _ := newTestImporter(t)

	summary, err := imp.Run(context.Background(), statement(
		row("Saldo", "", "", "01/01/2025", "", "0,00"),
		row("Linha estranha", "", "", "01/01/2025", "", "n/a"),
	))
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 2, summary.Skipped)
	assert.Zero(t, summary.Imported)
}

func TestRun_BadRowDoesNotAbortBatch(t *testing.T) {
	// GIVEN: a row with an unparsable date followed by a valid payment
	// WHEN: the batch runs
	// THEN: the bad row is counted as failed and the good row still lands

	imp, mem := newTestImporter(t)
	ctx := context.Background()

	summary, err := imp.Run(ctx, statement(
		row("TRF VITOR RODRIGUES", "", "Quota > Fraçao A - RC/DTO", "2025-03-15", "", "32,66"),
		row("TRF VITOR RODRIGUES", "", "Quota > Fraçao A - RC/DTO", "15/04/2025", "", "32,66"),
	))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Imported)

	txs, err := mem.TransactionsByBuilding(ctx, testBuilding, 10)
	require.NoError(t, err)
	assert.Len(t, txs, 1)
}

func TestRun_UnidentifiedFeePaymentStaysOffLedger(t *testing.T) {
	// A quota-category row whose payer matches no alias is stored as a
	// transaction but credits nobody.
	imp, mem := newTestImporter(t)
	ctx := context.Background()

	summary, err := imp.Run(ctx, statement(
		row("TRF DESCONHECIDO", "DESCONHECIDO", "Quota > Fraçao A - RC/DTO", "15/03/2025", "", "32,66"),
	))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Imported)

	txs, err := mem.TransactionsByBuilding(ctx, testBuilding, 10)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Nil(t, txs[0].MemberID)
	assert.True(t, txs[0].IsFeePayment)

	_, err = mem.PeriodByYear(ctx, testBuilding, 2025)
	assert.ErrorIs(t, err, quota.ErrPeriodNotFound)
}

func TestRun_NoBuildingAbortsBeforeAnyRow(t *testing.T) {
	mem := store.NewMemory()
	engine := ledger.NewEngine(mem, mem, testTiers())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	imp := importer.New(engine, mem, mem, mem, importer.NewIdentifier(nil), importer.CategoryTable{}, logger)

	_, err := imp.Run(context.Background(), statement(
		row("TRF VITOR RODRIGUES", "", "Quota > Fraçao A - RC/DTO", "15/03/2025", "", "32,66"),
	))
	assert.ErrorIs(t, err, quota.ErrNoBuilding)

	txs, err2 := mem.TransactionsByBuilding(context.Background(), testBuilding, 10)
	require.NoError(t, err2)
	assert.Empty(t, txs)
}
