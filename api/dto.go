/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Response: Complex response wrappers

MONEY:
  Amounts cross the wire as decimal strings ("32.66"), never floats. The
  frontend renders them verbatim; arithmetic stays server-side.

SEE ALSO:
  - handlers.go: Uses these types
  - quota/types.go: The domain entities these project
*/
package api

import (
	"github.com/gestor/quota-engine/quota"
)

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// PeriodDTO represents a fiscal-year period.
type PeriodDTO struct {
	ID              string `json:"id"`
	Year            int    `json:"year"`
	StartDate       string `json:"start_date"`
	EndDate         string `json:"end_date"`
	MonthlyQuota150 string `json:"monthly_quota_150"`
	MonthlyQuota200 string `json:"monthly_quota_200"`
	IsClosed        bool   `json:"is_closed"`
}

// BalanceDTO represents one member's ledger row in a period.
type BalanceDTO struct {
	MemberID        string `json:"member_id"`
	MemberName      string `json:"member_name,omitempty"`
	Fraction        string `json:"fraction,omitempty"`
	Permilage       string `json:"permilage,omitempty"`
	ExpectedMonthly string `json:"quota_expected_monthly"`
	ExpectedAnnual  string `json:"quota_expected_annual"`
	PaidTotal       string `json:"quota_paid_total"`
	Balance         string `json:"balance"`
	Status          string `json:"status"`
	Notes           string `json:"notes,omitempty"`
}

// PeriodTotalsDTO aggregates one period's balances.
type PeriodTotalsDTO struct {
	ExpectedTotal string `json:"expected_total"`
	PaidTotal     string `json:"paid_total"`
	BalanceTotal  string `json:"balance_total"`
	MembersCount  int    `json:"members_count"`
	PaidCount     int    `json:"paid_count"`
	PartialCount  int    `json:"partial_count"`
	UnpaidCount   int    `json:"unpaid_count"`
}

// YearSummaryResponse is the full picture of one fiscal year.
type YearSummaryResponse struct {
	Period   PeriodDTO       `json:"period"`
	Balances []BalanceDTO    `json:"balances"`
	Totals   PeriodTotalsDTO `json:"totals"`
}

// HistoryEntryDTO is one year of a member's payment history.
type HistoryEntryDTO struct {
	Year           int    `json:"year"`
	ExpectedAnnual string `json:"quota_expected_annual"`
	PaidTotal      string `json:"quota_paid_total"`
	Balance        string `json:"balance"`
	Status         string `json:"status"`
	Notes          string `json:"notes,omitempty"`
}

// AccountDTO represents a member's lifetime rollup.
type AccountDTO struct {
	CurrentBalance      string `json:"current_balance"`
	TotalChargedAllTime string `json:"total_charged_all_time"`
	TotalPaidAllTime    string `json:"total_paid_all_time"`
	HasOverdueDebt      bool   `json:"has_overdue_debt"`
	OverdueAmount       string `json:"overdue_amount"`
}

// MemberHistoryResponse combines per-year history with the lifetime account.
type MemberHistoryResponse struct {
	History []HistoryEntryDTO `json:"history"`
	Account *AccountDTO       `json:"account"`
}

// DashboardMemberDTO is one member's line on the dashboard.
type DashboardMemberDTO struct {
	MemberID       string `json:"member_id"`
	MemberName     string `json:"member_name"`
	Fraction       string `json:"fraction"`
	Permilage      string `json:"permilage"`
	CurrentBalance string `json:"current_balance"`
	TotalCharged   string `json:"total_charged"`
	TotalPaid      string `json:"total_paid"`
	Status         string `json:"financial_status"` // "debtor" or "settled"
}

// DashboardStatsDTO aggregates the building's financial state.
type DashboardStatsDTO struct {
	TotalDebt     string `json:"total_debt"`
	TotalCharged  string `json:"total_charged"`
	TotalPaid     string `json:"total_paid"`
	MembersCount  int    `json:"members_count"`
	DebtorsCount  int    `json:"debtors_count"`
	SettledCount  int    `json:"settled_count"`
}

// DashboardResponse is the dashboard payload.
type DashboardResponse struct {
	Members []DashboardMemberDTO `json:"members"`
	Stats   DashboardStatsDTO    `json:"stats"`
}

// TransactionDTO represents an imported transaction.
type TransactionDTO struct {
	ID           string `json:"id"`
	MemberID     string `json:"member_id,omitempty"`
	Date         string `json:"date"`
	Type         string `json:"type"`
	Amount       string `json:"amount"`
	Description  string `json:"description,omitempty"`
	Notes        string `json:"notes,omitempty"`
	IsFeePayment bool   `json:"is_fee_payment"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toPeriodDTO(p quota.Period) PeriodDTO {
	return PeriodDTO{
		ID:              string(p.ID),
		Year:            p.Year,
		StartDate:       p.StartDate.Format("2006-01-02"),
		EndDate:         p.EndDate.Format("2006-01-02"),
		MonthlyQuota150: p.MonthlyQuota150.String(),
		MonthlyQuota200: p.MonthlyQuota200.String(),
		IsClosed:        p.Closed,
	}
}

func toBalanceDTO(b quota.PeriodBalance, member *quota.Member) BalanceDTO {
	dto := BalanceDTO{
		MemberID:        string(b.MemberID),
		ExpectedMonthly: b.ExpectedMonthly.String(),
		ExpectedAnnual:  b.ExpectedAnnual.String(),
		PaidTotal:       b.PaidTotal.String(),
		Balance:         b.Balance.String(),
		Status:          string(b.Status),
		Notes:           b.Notes,
	}
	if member != nil {
		dto.MemberName = member.Name
		dto.Fraction = member.Fraction
		dto.Permilage = member.Permilage.String()
	}
	return dto
}

func toAccountDTO(a *quota.MemberAccount) *AccountDTO {
	if a == nil {
		return nil
	}
	return &AccountDTO{
		CurrentBalance:      a.CurrentBalance.String(),
		TotalChargedAllTime: a.TotalChargedAllTime.String(),
		TotalPaidAllTime:    a.TotalPaidAllTime.String(),
		HasOverdueDebt:      a.HasOverdueDebt,
		OverdueAmount:       a.OverdueAmount.String(),
	}
}

func toTransactionDTO(t quota.Transaction) TransactionDTO {
	dto := TransactionDTO{
		ID:           string(t.ID),
		Date:         t.Date.Format("2006-01-02"),
		Type:         string(t.Type),
		Amount:       t.Amount.String(),
		Description:  t.Description,
		Notes:        t.Notes,
		IsFeePayment: t.IsFeePayment,
	}
	if t.MemberID != nil {
		dto.MemberID = string(*t.MemberID)
	}
	return dto
}
