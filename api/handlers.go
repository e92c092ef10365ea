/*
handlers.go - HTTP API handlers for the quota ledger

PURPOSE:
  Exposes the reconciliation engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Periods:
    GET  /api/periods                   List fiscal-year periods
    GET  /api/periods/{year}/summary    Period + all member balances + totals

  Members:
    GET  /api/members                   List members of the active building
    GET  /api/members/{id}/history      Per-year history + lifetime account

  Dashboard:
    GET  /api/dashboard                 Building-wide debtor summary

  Transactions:
    GET  /api/transactions              Recent imported transactions

  Batches:
    POST /api/import                    Import a bank statement CSV (body)
    POST /api/backfill                  Run the historical backfill plan

  Admin:
    POST /api/admin/seed                Seed the default building directory

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 500: Internal errors

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/gestor/quota-engine/backfill"
	"github.com/gestor/quota-engine/factory"
	"github.com/gestor/quota-engine/importer"
	"github.com/gestor/quota-engine/ledger"
	"github.com/gestor/quota-engine/quota"
)

// DirectoryWriter seeds the building and member directories. Implemented by
// both stores; the API only uses it for the admin seed endpoint.
type DirectoryWriter interface {
	SaveBuilding(ctx context.Context, b quota.Building) error
	SaveMember(ctx context.Context, m quota.Member) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     ledger.Store
	Members   ledger.MemberDirectory
	Buildings ledger.BuildingDirectory
	Directory DirectoryWriter
	Engine    *ledger.Engine
	Importer  *importer.Importer
	Seeder    *backfill.Seeder
	Profile   *factory.Profile
	Logger    *slog.Logger
}

// =============================================================================
// PERIODS
// =============================================================================

// ListPeriods returns all fiscal-year periods of the active building,
// newest first.
func (h *Handler) ListPeriods(w http.ResponseWriter, r *http.Request) {
	building, ok := h.activeBuilding(w, r)
	if !ok {
		return
	}

	periods, err := h.Store.PeriodsByBuilding(r.Context(), building.ID)
	if err != nil {
		h.internalError(w, "list periods", err)
		return
	}

	dtos := make([]PeriodDTO, len(periods))
	for i, p := range periods {
		dtos[i] = toPeriodDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetYearSummary returns the period, every member's balance row and the
// aggregated totals for one fiscal year.
func (h *Handler) GetYearSummary(w http.ResponseWriter, r *http.Request) {
	building, ok := h.activeBuilding(w, r)
	if !ok {
		return
	}

	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid year", "invalid_year")
		return
	}

	period, err := h.Store.PeriodByYear(r.Context(), building.ID, year)
	if errors.Is(err, quota.ErrPeriodNotFound) {
		writeError(w, http.StatusNotFound, "period not found", "period_not_found")
		return
	}
	if err != nil {
		h.internalError(w, "load period", err)
		return
	}

	balances, err := h.Store.BalancesByPeriod(r.Context(), period.ID)
	if err != nil {
		h.internalError(w, "load balances", err)
		return
	}

	resp := YearSummaryResponse{Period: toPeriodDTO(*period)}
	expected, paid, balanceTotal := decimal.Zero, decimal.Zero, decimal.Zero
	for _, b := range balances {
		member, err := h.Members.Member(r.Context(), b.MemberID)
		if err != nil && !errors.Is(err, quota.ErrMemberNotFound) {
			h.internalError(w, "load member", err)
			return
		}
		resp.Balances = append(resp.Balances, toBalanceDTO(b, member))

		expected = expected.Add(b.ExpectedAnnual)
		paid = paid.Add(b.PaidTotal)
		balanceTotal = balanceTotal.Add(b.Balance)
		switch b.Status {
		case quota.StatusPaid:
			resp.Totals.PaidCount++
		case quota.StatusPartial:
			resp.Totals.PartialCount++
		case quota.StatusUnpaid:
			resp.Totals.UnpaidCount++
		}
	}
	resp.Totals.MembersCount = len(balances)
	resp.Totals.ExpectedTotal = expected.String()
	resp.Totals.PaidTotal = paid.String()
	resp.Totals.BalanceTotal = balanceTotal.String()

	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// MEMBERS
// =============================================================================

// ListMembers returns the active building's member directory.
func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	building, ok := h.activeBuilding(w, r)
	if !ok {
		return
	}

	members, err := h.Members.MembersByBuilding(r.Context(), building.ID)
	if err != nil {
		h.internalError(w, "list members", err)
		return
	}

	type memberDTO struct {
		ID        string `json:"id"`
		Name      string `json:"name"`
		Fraction  string `json:"fraction"`
		Permilage string `json:"permilage"`
	}
	dtos := make([]memberDTO, len(members))
	for i, m := range members {
		dtos[i] = memberDTO{
			ID:        string(m.ID),
			Name:      m.Name,
			Fraction:  m.Fraction,
			Permilage: m.Permilage.String(),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetMemberHistory returns a member's per-year balances (newest first) and
// their lifetime account rollup.
func (h *Handler) GetMemberHistory(w http.ResponseWriter, r *http.Request) {
	memberID := quota.MemberID(chi.URLParam(r, "id"))

	if _, err := h.Members.Member(r.Context(), memberID); err != nil {
		if errors.Is(err, quota.ErrMemberNotFound) {
			writeError(w, http.StatusNotFound, "member not found", "member_not_found")
			return
		}
		h.internalError(w, "load member", err)
		return
	}

	balances, err := h.Store.BalancesByMember(r.Context(), memberID)
	if err != nil {
		h.internalError(w, "load balances", err)
		return
	}

	resp := MemberHistoryResponse{}
	for _, b := range balances {
		period, err := h.Store.PeriodByID(r.Context(), b.PeriodID)
		if err != nil {
			h.internalError(w, "load period", err)
			return
		}
		resp.History = append(resp.History, HistoryEntryDTO{
			Year:           period.Year,
			ExpectedAnnual: b.ExpectedAnnual.String(),
			PaidTotal:      b.PaidTotal.String(),
			Balance:        b.Balance.String(),
			Status:         string(b.Status),
			Notes:          b.Notes,
		})
	}
	// Newest first.
	for i, j := 0, len(resp.History)-1; i < j; i, j = i+1, j-1 {
		resp.History[i], resp.History[j] = resp.History[j], resp.History[i]
	}

	account, err := h.Store.Account(r.Context(), memberID)
	if err != nil && !errors.Is(err, quota.ErrAccountNotFound) {
		h.internalError(w, "load account", err)
		return
	}
	resp.Account = toAccountDTO(account)

	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// DASHBOARD
// =============================================================================

// GetDashboard returns every member's lifetime position plus building-wide
// debtor statistics, worst balances first.
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	building, ok := h.activeBuilding(w, r)
	if !ok {
		return
	}

	members, err := h.Members.MembersByBuilding(r.Context(), building.ID)
	if err != nil {
		h.internalError(w, "list members", err)
		return
	}

	resp := DashboardResponse{}
	totalDebt, totalCharged, totalPaid := decimal.Zero, decimal.Zero, decimal.Zero
	for _, m := range members {
		account, err := h.Store.Account(r.Context(), m.ID)
		if errors.Is(err, quota.ErrAccountNotFound) {
			// No ledger activity yet: report a flat zero position.
			account = &quota.MemberAccount{MemberID: m.ID}
		} else if err != nil {
			h.internalError(w, "load account", err)
			return
		}

		status := "settled"
		if account.HasOverdueDebt {
			status = "debtor"
			resp.Stats.DebtorsCount++
			totalDebt = totalDebt.Add(account.OverdueAmount)
		} else {
			resp.Stats.SettledCount++
		}
		totalCharged = totalCharged.Add(account.TotalChargedAllTime)
		totalPaid = totalPaid.Add(account.TotalPaidAllTime)

		resp.Members = append(resp.Members, DashboardMemberDTO{
			MemberID:       string(m.ID),
			MemberName:     m.Name,
			Fraction:       m.Fraction,
			Permilage:      m.Permilage.String(),
			CurrentBalance: account.CurrentBalance.String(),
			TotalCharged:   account.TotalChargedAllTime.String(),
			TotalPaid:      account.TotalPaidAllTime.String(),
			Status:         status,
		})
	}

	// Worst balance first.
	sort.Slice(resp.Members, func(i, j int) bool {
		return quota.MustDecimal(resp.Members[i].CurrentBalance).
			LessThan(quota.MustDecimal(resp.Members[j].CurrentBalance))
	})

	resp.Stats.MembersCount = len(members)
	resp.Stats.TotalDebt = totalDebt.String()
	resp.Stats.TotalCharged = totalCharged.String()
	resp.Stats.TotalPaid = totalPaid.String()

	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// ListTransactions returns the most recent imported transactions.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	building, ok := h.activeBuilding(w, r)
	if !ok {
		return
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit", "invalid_limit")
			return
		}
		limit = n
	}

	txs, err := h.Store.TransactionsByBuilding(r.Context(), building.ID, limit)
	if err != nil {
		h.internalError(w, "list transactions", err)
		return
	}

	dtos := make([]TransactionDTO, len(txs))
	for i, t := range txs {
		dtos[i] = toTransactionDTO(t)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// BATCHES
// =============================================================================

// ImportStatement ingests a bank statement CSV posted as the request body
// and returns the batch summary.
func (h *Handler) ImportStatement(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Importer.Run(r.Context(), r.Body)
	if err != nil {
		if errors.Is(err, quota.ErrNoBuilding) {
			writeError(w, http.StatusBadRequest, "no building configured", "no_building")
			return
		}
		h.internalError(w, "import statement", err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// RunBackfill executes the configured historical backfill plan.
func (h *Handler) RunBackfill(w http.ResponseWriter, r *http.Request) {
	result, err := h.Seeder.Run(r.Context(), h.Profile.Backfill)
	if err != nil {
		if errors.Is(err, quota.ErrNoBuilding) {
			writeError(w, http.StatusBadRequest, "no building configured", "no_building")
			return
		}
		h.internalError(w, "run backfill", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// =============================================================================
// ADMIN
// =============================================================================

// SeedDirectory writes the default building and member directory. Idempotent:
// IDs are stable slugs, so repeated seeding upserts the same rows.
func (h *Handler) SeedDirectory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.Directory.SaveBuilding(ctx, factory.DefaultBuilding()); err != nil {
		h.internalError(w, "seed building", err)
		return
	}
	members := factory.DefaultMembers()
	for _, m := range members {
		if err := h.Directory.SaveMember(ctx, m); err != nil {
			h.internalError(w, "seed member", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"building": factory.DefaultBuilding().ID,
		"members":  len(members),
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) activeBuilding(w http.ResponseWriter, r *http.Request) (*quota.Building, bool) {
	building, err := h.Buildings.ActiveBuilding(r.Context())
	if errors.Is(err, quota.ErrNoBuilding) {
		writeError(w, http.StatusNotFound, "no building configured", "no_building")
		return nil, false
	}
	if err != nil {
		h.internalError(w, "load building", err)
		return nil, false
	}
	return building, true
}

func (h *Handler) internalError(w http.ResponseWriter, op string, err error) {
	h.Logger.Error("request failed", "op", op, "error", err)
	writeError(w, http.StatusInternalServerError, "internal error", "internal")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg, code string) {
	writeJSON(w, status, ErrorResponse{Error: msg, Code: code})
}
