// Package store provides Store implementations.
package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/gestor/quota-engine/ledger"
	"github.com/gestor/quota-engine/quota"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory holds everything behind one mutex, so the same atomicity guarantees
// the SQL store gets from unique constraints and row transactions hold here:
// ensure operations are check-and-insert under the lock, ApplyPayment mutates
// the row under the lock.
type Memory struct {
	mu sync.RWMutex

	buildings map[quota.BuildingID]quota.Building
	members   map[quota.MemberID]quota.Member

	periods  map[quota.PeriodID]quota.Period
	balances map[balanceKey]quota.PeriodBalance
	accounts map[quota.MemberID]quota.MemberAccount

	transactions []quota.Transaction
	categories   map[categoryKey]quota.Category
	tracking     map[trackingKey]quota.MonthlyTracking
}

type balanceKey struct {
	MemberID quota.MemberID
	PeriodID quota.PeriodID
}

type categoryKey struct {
	BuildingID quota.BuildingID
	Name       string
}

type trackingKey struct {
	MemberID quota.MemberID
	PeriodID quota.PeriodID
	Year     int
	Month    int
}

var _ ledger.Store = (*Memory)(nil)
var _ ledger.MemberDirectory = (*Memory)(nil)
var _ ledger.BuildingDirectory = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		buildings:  make(map[quota.BuildingID]quota.Building),
		members:    make(map[quota.MemberID]quota.Member),
		periods:    make(map[quota.PeriodID]quota.Period),
		balances:   make(map[balanceKey]quota.PeriodBalance),
		accounts:   make(map[quota.MemberID]quota.MemberAccount),
		categories: make(map[categoryKey]quota.Category),
		tracking:   make(map[trackingKey]quota.MonthlyTracking),
	}
}

// =============================================================================
// BUILDINGS & MEMBERS (directory interfaces)
// =============================================================================

// SaveBuilding registers a building (test/dev seeding).
func (m *Memory) SaveBuilding(_ context.Context, b quota.Building) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buildings[b.ID] = b
	return nil
}

// SaveMember registers a member (test/dev seeding).
func (m *Memory) SaveMember(_ context.Context, mem quota.Member) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.members[mem.ID] = mem
	return nil
}

func (m *Memory) ActiveBuilding(_ context.Context) (*quota.Building, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Deterministic pick: lowest ID wins when more than one exists.
	var ids []string
	for id := range m.buildings {
		ids = append(ids, string(id))
	}
	if len(ids) == 0 {
		return nil, quota.ErrNoBuilding
	}
	sort.Strings(ids)
	b := m.buildings[quota.BuildingID(ids[0])]
	return &b, nil
}

func (m *Memory) Member(_ context.Context, id quota.MemberID) (*quota.Member, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	mem, ok := m.members[id]
	if !ok {
		return nil, quota.ErrMemberNotFound
	}
	return &mem, nil
}

func (m *Memory) MemberByName(_ context.Context, buildingID quota.BuildingID, name string) (*quota.Member, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, mem := range m.members {
		if mem.BuildingID == buildingID && strings.EqualFold(mem.Name, name) {
			found := mem
			return &found, nil
		}
	}
	return nil, quota.ErrMemberNotFound
}

func (m *Memory) MembersByBuilding(_ context.Context, buildingID quota.BuildingID) ([]quota.Member, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var members []quota.Member
	for _, mem := range m.members {
		if mem.BuildingID == buildingID {
			members = append(members, mem)
		}
	}
	sort.Slice(members, func(i, j int) bool { return members[i].Name < members[j].Name })
	return members, nil
}

// =============================================================================
// PERIODS
// =============================================================================

func (m *Memory) EnsurePeriod(_ context.Context, p quota.Period) (quota.PeriodID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.periods {
		if existing.BuildingID == p.BuildingID && existing.Year == p.Year {
			return existing.ID, nil
		}
	}
	m.periods[p.ID] = p
	return p.ID, nil
}

func (m *Memory) PeriodByID(_ context.Context, id quota.PeriodID) (*quota.Period, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.periods[id]
	if !ok {
		return nil, quota.ErrPeriodNotFound
	}
	return &p, nil
}

func (m *Memory) PeriodByYear(_ context.Context, buildingID quota.BuildingID, year int) (*quota.Period, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, p := range m.periods {
		if p.BuildingID == buildingID && p.Year == year {
			found := p
			return &found, nil
		}
	}
	return nil, quota.ErrPeriodNotFound
}

func (m *Memory) PeriodsByBuilding(_ context.Context, buildingID quota.BuildingID) ([]quota.Period, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var periods []quota.Period
	for _, p := range m.periods {
		if p.BuildingID == buildingID {
			periods = append(periods, p)
		}
	}
	sort.Slice(periods, func(i, j int) bool { return periods[i].Year > periods[j].Year })
	return periods, nil
}

// =============================================================================
// PERIOD BALANCES
// =============================================================================

func (m *Memory) EnsureBalance(_ context.Context, b quota.PeriodBalance) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := balanceKey{MemberID: b.MemberID, PeriodID: b.PeriodID}
	if _, exists := m.balances[k]; exists {
		return nil
	}
	m.balances[k] = b
	return nil
}

func (m *Memory) UpsertBalance(_ context.Context, b quota.PeriodBalance) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := balanceKey{MemberID: b.MemberID, PeriodID: b.PeriodID}
	if existing, exists := m.balances[k]; exists {
		// Key and identity survive; paid/balance/status/notes are overwritten.
		b.ID = existing.ID
	}
	m.balances[k] = b
	return nil
}

func (m *Memory) ApplyPayment(_ context.Context, memberID quota.MemberID, periodID quota.PeriodID, amount decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := balanceKey{MemberID: memberID, PeriodID: periodID}
	b, ok := m.balances[k]
	if !ok {
		return quota.ErrBalanceNotFound
	}

	b.PaidTotal = b.PaidTotal.Add(amount)
	b.Balance = b.Balance.Add(amount)
	b.Status = quota.DeriveStatus(b.PaidTotal, b.Balance)
	m.balances[k] = b
	return nil
}

func (m *Memory) Balance(_ context.Context, memberID quota.MemberID, periodID quota.PeriodID) (*quota.PeriodBalance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.balances[balanceKey{MemberID: memberID, PeriodID: periodID}]
	if !ok {
		return nil, quota.ErrBalanceNotFound
	}
	return &b, nil
}

func (m *Memory) BalancesByMember(_ context.Context, memberID quota.MemberID) ([]quota.PeriodBalance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var balances []quota.PeriodBalance
	for k, b := range m.balances {
		if k.MemberID == memberID {
			balances = append(balances, b)
		}
	}
	sort.Slice(balances, func(i, j int) bool { return balances[i].PeriodID < balances[j].PeriodID })
	return balances, nil
}

func (m *Memory) BalancesByPeriod(_ context.Context, periodID quota.PeriodID) ([]quota.PeriodBalance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var balances []quota.PeriodBalance
	for k, b := range m.balances {
		if k.PeriodID == periodID {
			balances = append(balances, b)
		}
	}
	sort.Slice(balances, func(i, j int) bool { return balances[i].MemberID < balances[j].MemberID })
	return balances, nil
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func (m *Memory) SaveAccount(_ context.Context, a quota.MemberAccount) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.accounts[a.MemberID]; ok {
		a.ID = existing.ID
	}
	m.accounts[a.MemberID] = a
	return nil
}

func (m *Memory) Account(_ context.Context, memberID quota.MemberID) (*quota.MemberAccount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.accounts[memberID]
	if !ok {
		return nil, quota.ErrAccountNotFound
	}
	return &a, nil
}

// =============================================================================
// TRANSACTIONS & CATEGORIES
// =============================================================================

func (m *Memory) InsertTransaction(_ context.Context, t quota.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.transactions = append(m.transactions, t)
	return nil
}

func (m *Memory) TransactionsByBuilding(_ context.Context, buildingID quota.BuildingID, limit int) ([]quota.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var txs []quota.Transaction
	for i := len(m.transactions) - 1; i >= 0; i-- {
		if m.transactions[i].BuildingID != buildingID {
			continue
		}
		txs = append(txs, m.transactions[i])
		if limit > 0 && len(txs) >= limit {
			break
		}
	}
	return txs, nil
}

func (m *Memory) EnsureCategory(_ context.Context, c quota.Category) (quota.CategoryID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := categoryKey{BuildingID: c.BuildingID, Name: c.Name}
	if existing, ok := m.categories[k]; ok {
		return existing.ID, nil
	}
	m.categories[k] = c
	return c.ID, nil
}

// =============================================================================
// MONTHLY TRACKING
// =============================================================================

func (m *Memory) UpsertMonthlyTracking(_ context.Context, t quota.MonthlyTracking) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := trackingKey{MemberID: t.MemberID, PeriodID: t.PeriodID, Year: t.Year, Month: t.Month}
	m.tracking[k] = t
	return nil
}

// MonthlyTracking returns all tracking rows for a member in a year, ordered
// by month. Read helper for tests and the API.
func (m *Memory) MonthlyTracking(_ context.Context, memberID quota.MemberID, year int) ([]quota.MonthlyTracking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var rows []quota.MonthlyTracking
	for k, t := range m.tracking {
		if k.MemberID == memberID && k.Year == year {
			rows = append(rows, t)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Month < rows[j].Month })
	return rows, nil
}
