/*
tier.go - Tier policy resolution (permilage -> monthly quota)

PURPOSE:
  Maps a member's ownership share (permilage, thousandths) to one of a small
  closed set of monthly quota tiers for a given fiscal year. The rate tables
  are injected configuration, keyed by year - never derived and never global
  mutable state, so they can be swapped per building/jurisdiction in tests.

DEGRADED RESULT:
  A permilage that falls in no known band resolves to a monthly quota of 0.
  Historical data occasionally has untiered members; this is a defined
  outcome, not an error.

TOLERANCE:
  Each band absorbs a small permilage drift (default 5 thousandths) to cover
  rounding in source records: a member recorded at 151 still lands in the
  150-permilage tier.

SEE ALSO:
  - types.go: Period carries the two rates recorded at provisioning time
  - ledger/engine.go: Balance Initializer resolves quotas through this table
*/
package quota

import "github.com/shopspring/decimal"

// =============================================================================
// TIER TABLE - Per-year rate configuration
// =============================================================================

// Tier anchor points. The building's quota schedule defines one rate for the
// ~150-permilage fractions and one for the ~200-permilage fractions.
var (
	tierAnchor150 = decimal.NewFromInt(150)
	tierAnchor200 = decimal.NewFromInt(200)
)

// DefaultTierTolerance is the permilage drift absorbed by each band.
var DefaultTierTolerance = decimal.NewFromInt(5)

// YearRates holds the two monthly quota tiers in force for one fiscal year.
type YearRates struct {
	Tier150 decimal.Decimal
	Tier200 decimal.Decimal
}

// IsZero reports whether no rate is configured for the year.
func (r YearRates) IsZero() bool {
	return r.Tier150.IsZero() && r.Tier200.IsZero()
}

// TierTable resolves monthly quotas from permilage and fiscal year.
// Rates is keyed by year; years without an entry resolve to zero quotas.
type TierTable struct {
	Rates     map[int]YearRates
	Tolerance decimal.Decimal // zero means DefaultTierTolerance
}

// NewTierTable builds a table with the default band tolerance.
func NewTierTable(rates map[int]YearRates) TierTable {
	return TierTable{Rates: rates, Tolerance: DefaultTierTolerance}
}

func (t TierTable) tolerance() decimal.Decimal {
	if t.Tolerance.IsZero() {
		return DefaultTierTolerance
	}
	return t.Tolerance
}

// For returns the configured rates for a year.
func (t TierTable) For(year int) (YearRates, bool) {
	r, ok := t.Rates[year]
	return r, ok
}

// MonthlyQuota returns the monthly quota rate for the member's permilage in
// the given year. Unknown years and unmatched permilages yield zero.
func (t TierTable) MonthlyQuota(permilage decimal.Decimal, year int) decimal.Decimal {
	rates, ok := t.Rates[year]
	if !ok {
		return decimal.Zero
	}

	tol := t.tolerance()
	switch {
	case withinBand(permilage, tierAnchor150, tol):
		return rates.Tier150
	case withinBand(permilage, tierAnchor200, tol):
		return rates.Tier200
	default:
		return decimal.Zero
	}
}

func withinBand(permilage, anchor, tol decimal.Decimal) bool {
	diff := permilage.Sub(anchor).Abs()
	return diff.LessThanOrEqual(tol)
}

// AnnualQuota converts a monthly rate to the annual expectation.
func AnnualQuota(monthly decimal.Decimal) decimal.Decimal {
	return monthly.Mul(decimal.NewFromInt(12))
}
