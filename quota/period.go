package quota

import "time"

// =============================================================================
// FISCAL YEAR BOUNDS - Periods are always calendar years
// =============================================================================

// StartOfYear returns Jan 1 of the year, UTC midnight.
func StartOfYear(year int) time.Time {
	return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
}

// EndOfYear returns Dec 31 of the year, UTC midnight.
func EndOfYear(year int) time.Time {
	return time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)
}

// YearOf returns the fiscal year a transaction date falls into.
func YearOf(date time.Time) int {
	return date.Year()
}

// NewPeriod builds the canonical period record for a building/year with the
// rates in force for that year. Callers assign the ID.
func NewPeriod(id PeriodID, buildingID BuildingID, year int, rates YearRates) Period {
	return Period{
		ID:              id,
		BuildingID:      buildingID,
		Year:            year,
		StartDate:       StartOfYear(year),
		EndDate:         EndOfYear(year),
		MonthlyQuota150: rates.Tier150,
		MonthlyQuota200: rates.Tier200,
		Closed:          false,
	}
}
