/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements all persistence interfaces (ledger.Store, ledger.MemberDirectory,
  ledger.BuildingDirectory) using SQLite. In production, the same patterns
  apply to PostgreSQL - only minor SQL dialect differences.

ATOMIC UPSERTS:
  Every "ensure" operation is INSERT ... ON CONFLICT DO NOTHING followed by a
  SELECT of the surviving row - never a select-then-insert in application
  code, which would race under concurrent imports. The unique indexes are the
  invariants:
  - idx_periods_building_year:     at most one period per (building, year)
  - idx_balances_member_period:    exactly one ledger row per (member, period)
  - idx_accounts_member:           one rollup per member
  - idx_categories_building_name:  cache-or-create category dictionary
  - idx_tracking_row:              one row per (member, period, year, month)

PAYMENT ATOMICITY:
  ApplyPayment runs in a single database transaction per balance row: read,
  recompute with decimal arithmetic, write. Amounts are stored as TEXT and
  parsed with shopspring/decimal, so the increment cannot be expressed as an
  in-database addition; the row transaction (plus the store mutex) provides
  the required lost-update protection.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/quota.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := ledger.NewEngine(store, store, tiers)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - ledger/store.go: Interface definitions and the atomicity contract
  - ledger/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/gestor/quota-engine/quota"
)

const dayFormat = "2006-01-02"

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS buildings (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS members (
		id TEXT PRIMARY KEY,
		building_id TEXT NOT NULL,
		name TEXT NOT NULL,
		fraction TEXT,
		permilage TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_members_building_name
		ON members(building_id, name);

	-- Fiscal-year periods
	CREATE TABLE IF NOT EXISTS periods (
		id TEXT PRIMARY KEY,
		building_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		monthly_quota_150 TEXT NOT NULL,
		monthly_quota_200 TEXT NOT NULL,
		is_closed BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- CRITICAL: at most one period per (building, year).
	-- EnsurePeriod's conflict-handling insert leans on this index.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_periods_building_year
		ON periods(building_id, year);

	-- The core ledger: one row per (member, period)
	CREATE TABLE IF NOT EXISTS period_balances (
		id TEXT PRIMARY KEY,
		member_id TEXT NOT NULL,
		period_id TEXT NOT NULL,
		building_id TEXT NOT NULL,
		quota_expected_monthly TEXT NOT NULL,
		quota_expected_annual TEXT NOT NULL,
		quota_paid_total TEXT NOT NULL,
		balance TEXT NOT NULL,
		status TEXT NOT NULL,
		notes TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_balances_member_period
		ON period_balances(member_id, period_id);
	CREATE INDEX IF NOT EXISTS idx_balances_period
		ON period_balances(period_id);
	CREATE INDEX IF NOT EXISTS idx_balances_member
		ON period_balances(member_id);

	-- Materialized lifetime rollup, one per member
	CREATE TABLE IF NOT EXISTS member_accounts (
		id TEXT PRIMARY KEY,
		member_id TEXT NOT NULL,
		current_balance TEXT NOT NULL,
		total_paid_all_time TEXT NOT NULL,
		total_charged_all_time TEXT NOT NULL,
		has_overdue_debt BOOLEAN NOT NULL DEFAULT FALSE,
		overdue_amount TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_accounts_member
		ON member_accounts(member_id);

	-- Immutable money movements (no UPDATE/DELETE path exists)
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		building_id TEXT NOT NULL,
		member_id TEXT,
		category_id TEXT NOT NULL,
		transaction_date TEXT NOT NULL,
		tx_type TEXT NOT NULL,
		amount TEXT NOT NULL,
		description TEXT,
		notes TEXT,
		is_fee_payment BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_building_date
		ON transactions(building_id, transaction_date DESC);
	CREATE INDEX IF NOT EXISTS idx_transactions_member
		ON transactions(member_id) WHERE member_id IS NOT NULL;

	CREATE TABLE IF NOT EXISTS categories (
		id TEXT PRIMARY KEY,
		building_id TEXT NOT NULL,
		name TEXT NOT NULL,
		cat_type TEXT NOT NULL,
		parent TEXT,
		created_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_categories_building_name
		ON categories(building_id, name);

	-- Month-level tracking written by the historical backfill
	CREATE TABLE IF NOT EXISTS monthly_tracking (
		member_id TEXT NOT NULL,
		period_id TEXT NOT NULL,
		building_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		month INTEGER NOT NULL,
		quota_expected TEXT NOT NULL,
		quota_paid TEXT NOT NULL,
		balance TEXT NOT NULL,
		is_paid BOOLEAN NOT NULL DEFAULT FALSE,
		updated_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_tracking_row
		ON monthly_tracking(member_id, period_id, year, month);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// BUILDINGS (ledger.BuildingDirectory)
// =============================================================================

// SaveBuilding inserts or updates a building record.
func (s *Store) SaveBuilding(ctx context.Context, b quota.Building) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO buildings (id, name, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name
	`
	_, err := s.db.ExecContext(ctx, query, b.ID, b.Name, now())
	return err
}

// ActiveBuilding returns the building batches run against. With a single
// managed building this is the oldest record; quota.ErrNoBuilding when none.
func (s *Store) ActiveBuilding(ctx context.Context) (*quota.Building, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var b quota.Building
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name FROM buildings ORDER BY created_at ASC, id ASC LIMIT 1",
	).Scan(&b.ID, &b.Name)

	if err == sql.ErrNoRows {
		return nil, quota.ErrNoBuilding
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load active building: %w", err)
	}
	return &b, nil
}

// =============================================================================
// MEMBERS (ledger.MemberDirectory)
// =============================================================================

// SaveMember inserts or updates a member record (directory seeding).
func (s *Store) SaveMember(ctx context.Context, m quota.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO members (id, building_id, name, fraction, permilage, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			fraction = excluded.fraction,
			permilage = excluded.permilage
	`
	_, err := s.db.ExecContext(ctx, query,
		m.ID, m.BuildingID, m.Name, m.Fraction, m.Permilage.String(), now(),
	)
	return err
}

// Member retrieves a member by ID.
func (s *Store) Member(ctx context.Context, id quota.MemberID) (*quota.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return scanMember(s.db.QueryRowContext(ctx,
		"SELECT id, building_id, name, fraction, permilage FROM members WHERE id = ?", id))
}

// MemberByName retrieves a member by registered name, case-insensitively.
func (s *Store) MemberByName(ctx context.Context, buildingID quota.BuildingID, name string) (*quota.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return scanMember(s.db.QueryRowContext(ctx,
		`SELECT id, building_id, name, fraction, permilage FROM members
		 WHERE building_id = ? AND name = ? COLLATE NOCASE`,
		buildingID, name))
}

// MembersByBuilding returns all members of a building ordered by name.
func (s *Store) MembersByBuilding(ctx context.Context, buildingID quota.BuildingID) ([]quota.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, building_id, name, fraction, permilage FROM members
		 WHERE building_id = ? ORDER BY name ASC`,
		buildingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []quota.Member
	for rows.Next() {
		var m quota.Member
		var fraction sql.NullString
		var permilage string
		if err := rows.Scan(&m.ID, &m.BuildingID, &m.Name, &fraction, &permilage); err != nil {
			return nil, err
		}
		m.Fraction = fraction.String
		m.Permilage = mustDecimal(permilage)
		members = append(members, m)
	}
	return members, rows.Err()
}

func scanMember(row *sql.Row) (*quota.Member, error) {
	var m quota.Member
	var fraction sql.NullString
	var permilage string

	err := row.Scan(&m.ID, &m.BuildingID, &m.Name, &fraction, &permilage)
	if err == sql.ErrNoRows {
		return nil, quota.ErrMemberNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan member: %w", err)
	}

	m.Fraction = fraction.String
	m.Permilage = mustDecimal(permilage)
	return &m, nil
}

// =============================================================================
// PERIODS (ledger.Store)
// =============================================================================

// EnsurePeriod atomically creates the period if absent. The unique index on
// (building_id, year) makes the conflicting insert a no-op; the SELECT then
// returns whichever row survived, so concurrent callers agree on one ID.
func (s *Store) EnsurePeriod(ctx context.Context, p quota.Period) (quota.PeriodID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	insert := `
		INSERT INTO periods
		(id, building_id, year, start_date, end_date,
		 monthly_quota_150, monthly_quota_200, is_closed, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(building_id, year) DO NOTHING
	`
	ts := now()
	_, err := s.db.ExecContext(ctx, insert,
		p.ID, p.BuildingID, p.Year,
		p.StartDate.Format(dayFormat), p.EndDate.Format(dayFormat),
		p.MonthlyQuota150.String(), p.MonthlyQuota200.String(),
		p.Closed, ts, ts,
	)
	if err != nil {
		return "", fmt.Errorf("failed to ensure period: %w", err)
	}

	var id quota.PeriodID
	err = s.db.QueryRowContext(ctx,
		"SELECT id FROM periods WHERE building_id = ? AND year = ?",
		p.BuildingID, p.Year,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to resolve ensured period: %w", err)
	}
	return id, nil
}

// PeriodByID retrieves a period by ID.
func (s *Store) PeriodByID(ctx context.Context, id quota.PeriodID) (*quota.Period, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return scanPeriod(s.db.QueryRowContext(ctx, periodSelect+" WHERE id = ?", id))
}

// PeriodByYear retrieves the period for (building, year).
func (s *Store) PeriodByYear(ctx context.Context, buildingID quota.BuildingID, year int) (*quota.Period, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return scanPeriod(s.db.QueryRowContext(ctx,
		periodSelect+" WHERE building_id = ? AND year = ?", buildingID, year))
}

// PeriodsByBuilding returns all periods for a building, newest year first.
func (s *Store) PeriodsByBuilding(ctx context.Context, buildingID quota.BuildingID) ([]quota.Period, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		periodSelect+" WHERE building_id = ? ORDER BY year DESC", buildingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var periods []quota.Period
	for rows.Next() {
		p, err := scanPeriodRow(rows)
		if err != nil {
			return nil, err
		}
		periods = append(periods, p)
	}
	return periods, rows.Err()
}

const periodSelect = `
	SELECT id, building_id, year, start_date, end_date,
	       monthly_quota_150, monthly_quota_200, is_closed
	FROM periods`

func scanPeriod(row *sql.Row) (*quota.Period, error) {
	var p quota.Period
	var start, end, q150, q200 string

	err := row.Scan(&p.ID, &p.BuildingID, &p.Year, &start, &end, &q150, &q200, &p.Closed)
	if err == sql.ErrNoRows {
		return nil, quota.ErrPeriodNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan period: %w", err)
	}

	p.StartDate, _ = time.Parse(dayFormat, start)
	p.EndDate, _ = time.Parse(dayFormat, end)
	p.MonthlyQuota150 = mustDecimal(q150)
	p.MonthlyQuota200 = mustDecimal(q200)
	return &p, nil
}

func scanPeriodRow(rows *sql.Rows) (quota.Period, error) {
	var p quota.Period
	var start, end, q150, q200 string

	if err := rows.Scan(&p.ID, &p.BuildingID, &p.Year, &start, &end, &q150, &q200, &p.Closed); err != nil {
		return p, fmt.Errorf("failed to scan period: %w", err)
	}

	p.StartDate, _ = time.Parse(dayFormat, start)
	p.EndDate, _ = time.Parse(dayFormat, end)
	p.MonthlyQuota150 = mustDecimal(q150)
	p.MonthlyQuota200 = mustDecimal(q200)
	return p, nil
}

// =============================================================================
// PERIOD BALANCES (ledger.Store)
// =============================================================================

// EnsureBalance atomically seeds the (member, period) ledger row. An existing
// row wins the conflict and is left untouched.
func (s *Store) EnsureBalance(ctx context.Context, b quota.PeriodBalance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO period_balances
		(id, member_id, period_id, building_id,
		 quota_expected_monthly, quota_expected_annual,
		 quota_paid_total, balance, status, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(member_id, period_id) DO NOTHING
	`
	ts := now()
	_, err := s.db.ExecContext(ctx, query,
		b.ID, b.MemberID, b.PeriodID, b.BuildingID,
		b.ExpectedMonthly.String(), b.ExpectedAnnual.String(),
		b.PaidTotal.String(), b.Balance.String(), b.Status,
		nullString(b.Notes), ts, ts,
	)
	if err != nil {
		return fmt.Errorf("failed to ensure balance: %w", err)
	}
	return nil
}

// UpsertBalance inserts or overwrites the balance row, keyed on
// (member, period). Expected quotas are rewritten too: the historical
// backfill is the authority for the rows it seeds.
func (s *Store) UpsertBalance(ctx context.Context, b quota.PeriodBalance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO period_balances
		(id, member_id, period_id, building_id,
		 quota_expected_monthly, quota_expected_annual,
		 quota_paid_total, balance, status, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(member_id, period_id) DO UPDATE SET
			quota_expected_monthly = excluded.quota_expected_monthly,
			quota_expected_annual = excluded.quota_expected_annual,
			quota_paid_total = excluded.quota_paid_total,
			balance = excluded.balance,
			status = excluded.status,
			notes = excluded.notes,
			updated_at = excluded.updated_at
	`
	ts := now()
	_, err := s.db.ExecContext(ctx, query,
		b.ID, b.MemberID, b.PeriodID, b.BuildingID,
		b.ExpectedMonthly.String(), b.ExpectedAnnual.String(),
		b.PaidTotal.String(), b.Balance.String(), b.Status,
		nullString(b.Notes), ts, ts,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert balance: %w", err)
	}
	return nil
}

// ApplyPayment adds amount to the row's paid total and balance and re-derives
// status, all inside one database transaction so concurrent payments against
// the same member/period never lose updates.
func (s *Store) ApplyPayment(ctx context.Context, memberID quota.MemberID, periodID quota.PeriodID, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var paidStr, balanceStr string
	err = tx.QueryRowContext(ctx,
		`SELECT quota_paid_total, balance FROM period_balances
		 WHERE member_id = ? AND period_id = ?`,
		memberID, periodID,
	).Scan(&paidStr, &balanceStr)
	if err == sql.ErrNoRows {
		return quota.ErrBalanceNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load balance: %w", err)
	}

	paid := mustDecimal(paidStr).Add(amount)
	balance := mustDecimal(balanceStr).Add(amount)
	status := quota.DeriveStatus(paid, balance)

	_, err = tx.ExecContext(ctx,
		`UPDATE period_balances
		 SET quota_paid_total = ?, balance = ?, status = ?, updated_at = ?
		 WHERE member_id = ? AND period_id = ?`,
		paid.String(), balance.String(), status, now(), memberID, periodID,
	)
	if err != nil {
		return fmt.Errorf("failed to apply payment: %w", err)
	}

	return tx.Commit()
}

// Balance retrieves the ledger row for (member, period).
func (s *Store) Balance(ctx context.Context, memberID quota.MemberID, periodID quota.PeriodID) (*quota.PeriodBalance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	balances, err := s.queryBalances(ctx,
		balanceSelect+" WHERE member_id = ? AND period_id = ?", memberID, periodID)
	if err != nil {
		return nil, err
	}
	if len(balances) == 0 {
		return nil, quota.ErrBalanceNotFound
	}
	return &balances[0], nil
}

// BalancesByMember returns every balance row belonging to the member.
func (s *Store) BalancesByMember(ctx context.Context, memberID quota.MemberID) ([]quota.PeriodBalance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryBalances(ctx, balanceSelect+" WHERE member_id = ? ORDER BY period_id", memberID)
}

// BalancesByPeriod returns every balance row in a period.
func (s *Store) BalancesByPeriod(ctx context.Context, periodID quota.PeriodID) ([]quota.PeriodBalance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryBalances(ctx, balanceSelect+" WHERE period_id = ? ORDER BY member_id", periodID)
}

const balanceSelect = `
	SELECT id, member_id, period_id, building_id,
	       quota_expected_monthly, quota_expected_annual,
	       quota_paid_total, balance, status, notes
	FROM period_balances`

func (s *Store) queryBalances(ctx context.Context, query string, args ...any) ([]quota.PeriodBalance, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query balances: %w", err)
	}
	defer rows.Close()

	var balances []quota.PeriodBalance
	for rows.Next() {
		var (
			b                              quota.PeriodBalance
			monthly, annual, paid, balance string
			notes                          sql.NullString
		)
		err := rows.Scan(&b.ID, &b.MemberID, &b.PeriodID, &b.BuildingID,
			&monthly, &annual, &paid, &balance, &b.Status, &notes)
		if err != nil {
			return nil, fmt.Errorf("failed to scan balance: %w", err)
		}
		b.ExpectedMonthly = mustDecimal(monthly)
		b.ExpectedAnnual = mustDecimal(annual)
		b.PaidTotal = mustDecimal(paid)
		b.Balance = mustDecimal(balance)
		b.Notes = notes.String
		balances = append(balances, b)
	}
	return balances, rows.Err()
}

// =============================================================================
// MEMBER ACCOUNTS (ledger.Store)
// =============================================================================

// SaveAccount inserts or overwrites the member's rollup, keyed on member.
func (s *Store) SaveAccount(ctx context.Context, a quota.MemberAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO member_accounts
		(id, member_id, current_balance, total_paid_all_time,
		 total_charged_all_time, has_overdue_debt, overdue_amount, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(member_id) DO UPDATE SET
			current_balance = excluded.current_balance,
			total_paid_all_time = excluded.total_paid_all_time,
			total_charged_all_time = excluded.total_charged_all_time,
			has_overdue_debt = excluded.has_overdue_debt,
			overdue_amount = excluded.overdue_amount,
			updated_at = excluded.updated_at
	`
	_, err := s.db.ExecContext(ctx, query,
		a.ID, a.MemberID,
		a.CurrentBalance.String(), a.TotalPaidAllTime.String(),
		a.TotalChargedAllTime.String(), a.HasOverdueDebt,
		a.OverdueAmount.String(), now(),
	)
	if err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}
	return nil
}

// Account retrieves the member's rollup.
func (s *Store) Account(ctx context.Context, memberID quota.MemberID) (*quota.MemberAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		a                               quota.MemberAccount
		current, paid, charged, overdue string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, member_id, current_balance, total_paid_all_time,
		        total_charged_all_time, has_overdue_debt, overdue_amount
		 FROM member_accounts WHERE member_id = ?`,
		memberID,
	).Scan(&a.ID, &a.MemberID, &current, &paid, &charged, &a.HasOverdueDebt, &overdue)

	if err == sql.ErrNoRows {
		return nil, quota.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}

	a.CurrentBalance = mustDecimal(current)
	a.TotalPaidAllTime = mustDecimal(paid)
	a.TotalChargedAllTime = mustDecimal(charged)
	a.OverdueAmount = mustDecimal(overdue)
	return &a, nil
}

// =============================================================================
// TRANSACTIONS (ledger.Store)
// =============================================================================

// InsertTransaction persists an immutable transaction record. There is no
// update or delete path for transactions.
func (s *Store) InsertTransaction(ctx context.Context, t quota.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO transactions
		(id, building_id, member_id, category_id, transaction_date,
		 tx_type, amount, description, notes, is_fee_payment, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	var memberID any
	if t.MemberID != nil {
		memberID = string(*t.MemberID)
	}

	_, err := s.db.ExecContext(ctx, query,
		t.ID, t.BuildingID, memberID, t.CategoryID,
		t.Date.Format(dayFormat), t.Type, t.Amount.String(),
		nullString(t.Description), nullString(t.Notes), t.IsFeePayment, now(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

// TransactionsByBuilding returns the most recent transactions, newest first.
func (s *Store) TransactionsByBuilding(ctx context.Context, buildingID quota.BuildingID, limit int) ([]quota.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, building_id, member_id, category_id, transaction_date,
		        tx_type, amount, description, notes, is_fee_payment
		 FROM transactions
		 WHERE building_id = ?
		 ORDER BY transaction_date DESC, created_at DESC
		 LIMIT ?`,
		buildingID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var txs []quota.Transaction
	for rows.Next() {
		var (
			t                  quota.Transaction
			memberID           sql.NullString
			date, amount       string
			description, notes sql.NullString
		)
		if err := rows.Scan(&t.ID, &t.BuildingID, &memberID, &t.CategoryID,
			&date, &t.Type, &amount, &description, &notes, &t.IsFeePayment); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		if memberID.Valid {
			id := quota.MemberID(memberID.String)
			t.MemberID = &id
		}
		t.Date, _ = time.Parse(dayFormat, date)
		t.Amount = mustDecimal(amount)
		t.Description = description.String
		t.Notes = notes.String
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

// =============================================================================
// CATEGORIES (ledger.Store)
// =============================================================================

// EnsureCategory atomically resolves-or-creates the category by
// (building, name) and returns the surviving row's ID.
func (s *Store) EnsureCategory(ctx context.Context, c quota.Category) (quota.CategoryID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	insert := `
		INSERT INTO categories (id, building_id, name, cat_type, parent, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(building_id, name) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, insert,
		c.ID, c.BuildingID, c.Name, c.Type, nullString(c.Parent), now())
	if err != nil {
		return "", fmt.Errorf("failed to ensure category: %w", err)
	}

	var id quota.CategoryID
	err = s.db.QueryRowContext(ctx,
		"SELECT id FROM categories WHERE building_id = ? AND name = ?",
		c.BuildingID, c.Name,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to resolve ensured category: %w", err)
	}
	return id, nil
}

// =============================================================================
// MONTHLY TRACKING (ledger.Store)
// =============================================================================

// UpsertMonthlyTracking inserts or overwrites a month-level tracking row,
// keyed on (member, period, year, month).
func (s *Store) UpsertMonthlyTracking(ctx context.Context, m quota.MonthlyTracking) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO monthly_tracking
		(member_id, period_id, building_id, year, month,
		 quota_expected, quota_paid, balance, is_paid, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(member_id, period_id, year, month) DO UPDATE SET
			quota_expected = excluded.quota_expected,
			quota_paid = excluded.quota_paid,
			balance = excluded.balance,
			is_paid = excluded.is_paid,
			updated_at = excluded.updated_at
	`
	_, err := s.db.ExecContext(ctx, query,
		m.MemberID, m.PeriodID, m.BuildingID, m.Year, m.Month,
		m.QuotaExpected.String(), m.QuotaPaid.String(), m.Balance.String(),
		m.IsPaid, now(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert monthly tracking: %w", err)
	}
	return nil
}

// MonthlyTracking returns the member's tracking rows for a year, by month.
func (s *Store) MonthlyTracking(ctx context.Context, memberID quota.MemberID, year int) ([]quota.MonthlyTracking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT member_id, period_id, building_id, year, month,
		        quota_expected, quota_paid, balance, is_paid
		 FROM monthly_tracking
		 WHERE member_id = ? AND year = ?
		 ORDER BY month ASC`,
		memberID, year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tracking []quota.MonthlyTracking
	for rows.Next() {
		var (
			t                       quota.MonthlyTracking
			expected, paid, balance string
		)
		if err := rows.Scan(&t.MemberID, &t.PeriodID, &t.BuildingID, &t.Year,
			&t.Month, &expected, &paid, &balance, &t.IsPaid); err != nil {
			return nil, fmt.Errorf("failed to scan monthly tracking: %w", err)
		}
		t.QuotaExpected = mustDecimal(expected)
		t.QuotaPaid = mustDecimal(paid)
		t.Balance = mustDecimal(balance)
		tracking = append(tracking, t)
	}
	return tracking, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{
		"monthly_tracking", "transactions", "member_accounts",
		"period_balances", "categories", "periods", "members", "buildings",
	}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}
