/*
Package importer ingests bank statement CSV exports into the quota ledger.

PURPOSE:
  Turns a raw bank statement batch into immutable transaction records and,
  for rows that are member quota payments, drives the full reconciliation
  chain (period -> balance -> account) through the ledger engine.

ROW PIPELINE:
  1. Parse:      DD/MM/YYYY dates, comma-decimal amounts
  2. Skip:       zero or unparsable amounts (not data - separators, headers)
  3. Identify:   member via the alias table (longest match wins)
  4. Categorize: raw bank label -> building category (cache-or-create)
  5. Record:     insert the transaction; positive quota-category rows with an
                 identified member also update the ledger

ERROR ISOLATION:
  A failed row is logged with its row number and counted; the batch
  continues. The only fail-fast condition is no building being configured,
  checked before any row is touched. A statement batch is therefore never
  half-aborted by one bad row.

SEE ALSO:
  - identify.go: Alias-table member identification
  - categories.go: Bank category normalization and fee detection
  - ledger/engine.go: The reconciliation chain invoked for fee payments
*/
package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gestor/quota-engine/ledger"
	"github.com/gestor/quota-engine/quota"
)

// Statement CSV column headers, as exported by the bank.
const (
	colDescription = "Descripción"
	colTransfer    = "Transferencias"
	colBeneficiary = "Beneficiario"
	colCategory    = "Categoría"
	colDate        = "Fecha"
	colMemo        = "Memoria"
	colAmount      = "Importe"
)

const statementDateFormat = "02/01/2006"

// Summary reports the outcome of one statement batch.
type Summary struct {
	Total    int `json:"total"`
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// Importer processes bank statement batches against one active building.
type Importer struct {
	engine     *ledger.Engine
	store      ledger.Store
	members    ledger.MemberDirectory
	buildings  ledger.BuildingDirectory
	identifier *Identifier
	categories CategoryTable
	logger     *slog.Logger
}

func New(
	engine *ledger.Engine,
	store ledger.Store,
	members ledger.MemberDirectory,
	buildings ledger.BuildingDirectory,
	identifier *Identifier,
	categories CategoryTable,
	logger *slog.Logger,
) *Importer {
	return &Importer{
		engine:     engine,
		store:      store,
		members:    members,
		buildings:  buildings,
		identifier: identifier,
		categories: categories,
		logger:     logger,
	}
}

// Run imports one statement batch. It fails fast only when no building is
// configured; every other failure is per-row and reflected in the Summary.
func (im *Importer) Run(ctx context.Context, r io.Reader) (*Summary, error) {
	building, err := im.buildings.ActiveBuilding(ctx)
	if err != nil {
		return nil, fmt.Errorf("statement import aborted: %w", err)
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read statement header: %w", err)
	}
	cols := indexColumns(header)

	summary := &Summary{}
	for rowNum := 2; ; rowNum++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			summary.Total++
			summary.Failed++
			im.logger.Error("statement row unreadable", "row", rowNum, "error", err)
			continue
		}

		summary.Total++
		switch outcome := im.processRow(ctx, building, cols, record, rowNum); outcome {
		case rowImported:
			summary.Imported++
		case rowSkipped:
			summary.Skipped++
		case rowFailed:
			summary.Failed++
		}
	}

	im.logger.Info("statement import finished",
		"building", building.ID,
		"total", summary.Total,
		"imported", summary.Imported,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
	)
	return summary, nil
}

type rowOutcome int

const (
	rowImported rowOutcome = iota
	rowSkipped
	rowFailed
)

func (im *Importer) processRow(ctx context.Context, building *quota.Building, cols map[string]int, record []string, rowNum int) rowOutcome {
	field := func(name string) string {
		idx, ok := cols[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	// Comma decimal separator in the export. Zero or unparsable amounts are
	// not transactions (separators, carried headers) and are skipped.
	amountStr := strings.ReplaceAll(field(colAmount), ",", ".")
	amount, err := decimal.NewFromString(amountStr)
	if err != nil || amount.IsZero() {
		return rowSkipped
	}

	date, err := time.Parse(statementDateFormat, field(colDate))
	if err != nil {
		im.logger.Error("statement row has invalid date",
			"row", rowNum, "date", field(colDate), "error", err)
		return rowFailed
	}

	description := field(colDescription)
	if description == "" {
		description = field(colTransfer)
	}
	beneficiary := field(colBeneficiary)
	rawCategory := field(colCategory)

	// Member identification is best effort: an unmatched row is still a
	// valid transaction, just not attributable to a ledger.
	var memberID *quota.MemberID
	if name := im.identifier.Identify(description, beneficiary); name != "" {
		member, err := im.members.MemberByName(ctx, building.ID, name)
		switch {
		case err == nil:
			memberID = &member.ID
		case errors.Is(err, quota.ErrMemberNotFound):
			im.logger.Warn("identified name not registered",
				"row", rowNum, "name", name)
		default:
			im.logger.Error("member lookup failed",
				"row", rowNum, "name", name, "error", err)
			return rowFailed
		}
	}

	spec := im.categories.Resolve(rawCategory)
	categoryID, err := im.store.EnsureCategory(ctx, quota.Category{
		ID:         quota.CategoryID(uuid.NewString()),
		BuildingID: building.ID,
		Name:       spec.Name,
		Type:       spec.Type,
		Parent:     spec.Parent,
	})
	if err != nil {
		im.logger.Error("category resolution failed",
			"row", rowNum, "category", rawCategory, "error", err)
		return rowFailed
	}

	txType := quota.TxExpense
	if amount.IsPositive() {
		txType = quota.TxIncome
	}
	isFee := IsFeePayment(rawCategory)

	tx := quota.Transaction{
		ID:           quota.TransactionID(uuid.NewString()),
		BuildingID:   building.ID,
		MemberID:     memberID,
		CategoryID:   categoryID,
		Date:         date,
		Type:         txType,
		Amount:       amount.Abs(),
		Description:  description,
		Notes:        field(colMemo),
		IsFeePayment: isFee,
	}
	if err := im.store.InsertTransaction(ctx, tx); err != nil {
		im.logger.Error("transaction insert failed", "row", rowNum, "error", err)
		return rowFailed
	}

	// Only confirmed positive quota payments with an identified member reach
	// the reconciliation chain.
	if isFee && memberID != nil && amount.IsPositive() {
		if err := im.engine.RecordPayment(ctx, building.ID, *memberID, date, amount); err != nil {
			im.logger.Error("ledger update failed",
				"row", rowNum, "member", *memberID, "error", err)
			return rowFailed
		}
	}

	return rowImported
}

func indexColumns(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}
	return cols
}
