/*
Package factory provides JSON to Go building-profile conversion.

PURPOSE:
  Converts JSON profile definitions into the configuration objects the
  engine, importer and backfill consume: tier rate tables, statement alias
  rules, bank category mappings and the historical reconciliation plan.
  This enables per-building configuration without code changes - an
  administrator can define the profile in JSON.

JSON SCHEMA:
  {
    "rates": {
      "2025": {"tier_150": "32.66", "tier_200": "43.54"}
    },
    "aliases": [
      {"alias": "VITOR RODRIGUES", "member": "Vítor Manuel Sebastian Rodrigues"},
      {"alias": "ALEXANDRE MARTINS DA SILVA",
       "member": "Cristina Maria Bertolo Gouveia",
       "pays_for": "Cristina Maria Bertolo Gouveia"}
    ],
    "categories": {
      "Limpeza": {"name": "Limpeza", "type": "expense", "parent": "Despesas Condomínio"}
    },
    "backfill": {
      "settled_years": [2021, 2022, 2023, 2024],
      "tracking_year": 2025,
      "settled_note": "Anos históricos fechados",
      "outcomes": {
        "João Manuel Fernandes Longo":
          {"paid_months": 12, "paid_per_month": "43.54", "note": "Em dia"}
      }
    }
  }

USAGE:
  profile, err := factory.ParseProfile(jsonString)

  // Or the built-in production preset (recommended for the demo setup):
  profile := factory.DefaultProfile()

  engine := ledger.NewEngine(store, store, profile.Tiers)

SEE ALSO:
  - quota/tier.go: TierTable consumed by the engine
  - importer/identify.go: AliasRule matching semantics
  - backfill/backfill.go: Plan execution
*/
package factory

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/gestor/quota-engine/backfill"
	"github.com/gestor/quota-engine/importer"
	"github.com/gestor/quota-engine/quota"
)

// =============================================================================
// PROFILE
// =============================================================================

// Profile bundles every injected configuration for one building.
type Profile struct {
	Tiers      quota.TierTable
	Aliases    []importer.AliasRule
	Categories importer.CategoryTable
	Backfill   backfill.Plan
}

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

type profileJSON struct {
	Rates      map[string]ratesJSON    `json:"rates"`
	Aliases    []aliasJSON             `json:"aliases"`
	Categories map[string]categoryJSON `json:"categories"`
	Backfill   *backfillJSON           `json:"backfill"`
}

type ratesJSON struct {
	Tier150 string `json:"tier_150"`
	Tier200 string `json:"tier_200"`
}

type aliasJSON struct {
	Alias   string `json:"alias"`
	Member  string `json:"member"`
	PaysFor string `json:"pays_for"`
}

type categoryJSON struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Parent string `json:"parent"`
}

type backfillJSON struct {
	SettledYears []int                  `json:"settled_years"`
	TrackingYear int                    `json:"tracking_year"`
	SettledNote  string                 `json:"settled_note"`
	Outcomes     map[string]outcomeJSON `json:"outcomes"`
}

type outcomeJSON struct {
	PaidMonths   int    `json:"paid_months"`
	PaidPerMonth string `json:"paid_per_month"`
	Note         string `json:"note"`
}

// =============================================================================
// PARSING
// =============================================================================

// ParseProfile converts a JSON profile definition into a Profile.
func ParseProfile(jsonStr string) (*Profile, error) {
	var pj profileJSON
	if err := json.Unmarshal([]byte(jsonStr), &pj); err != nil {
		return nil, fmt.Errorf("invalid profile JSON: %w", err)
	}

	rates := make(map[int]quota.YearRates, len(pj.Rates))
	for yearStr, r := range pj.Rates {
		year, err := strconv.Atoi(yearStr)
		if err != nil {
			return nil, fmt.Errorf("invalid rate year %q: %w", yearStr, err)
		}
		t150, err := parseRate(r.Tier150)
		if err != nil {
			return nil, fmt.Errorf("year %d tier_150: %w", year, err)
		}
		t200, err := parseRate(r.Tier200)
		if err != nil {
			return nil, fmt.Errorf("year %d tier_200: %w", year, err)
		}
		rates[year] = quota.YearRates{Tier150: t150, Tier200: t200}
	}

	aliases := make([]importer.AliasRule, 0, len(pj.Aliases))
	for _, a := range pj.Aliases {
		if a.Alias == "" || a.Member == "" {
			return nil, fmt.Errorf("alias rule needs both alias and member: %+v", a)
		}
		aliases = append(aliases, importer.AliasRule{
			Alias:   a.Alias,
			Member:  a.Member,
			PaysFor: a.PaysFor,
		})
	}

	categories := make(importer.CategoryTable, len(pj.Categories))
	for raw, c := range pj.Categories {
		txType, err := parseTxType(c.Type)
		if err != nil {
			return nil, fmt.Errorf("category %q: %w", raw, err)
		}
		categories[raw] = importer.CategorySpec{Name: c.Name, Type: txType, Parent: c.Parent}
	}

	profile := &Profile{
		Tiers:      quota.NewTierTable(rates),
		Aliases:    aliases,
		Categories: categories,
	}

	if pj.Backfill != nil {
		outcomes := make(map[string]backfill.Outcome, len(pj.Backfill.Outcomes))
		for member, o := range pj.Backfill.Outcomes {
			perMonth, err := parseRate(o.PaidPerMonth)
			if err != nil {
				return nil, fmt.Errorf("outcome for %q: %w", member, err)
			}
			outcomes[member] = backfill.Outcome{
				PaidMonths:   o.PaidMonths,
				PaidPerMonth: perMonth,
				Note:         o.Note,
			}
		}
		profile.Backfill = backfill.Plan{
			SettledYears: pj.Backfill.SettledYears,
			TrackingYear: pj.Backfill.TrackingYear,
			SettledNote:  pj.Backfill.SettledNote,
			Outcomes:     outcomes,
		}
	}

	return profile, nil
}

func parseRate(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal %q", s)
	}
	return d, nil
}

func parseTxType(s string) (quota.TransactionType, error) {
	switch s {
	case "income":
		return quota.TxIncome, nil
	case "expense":
		return quota.TxExpense, nil
	default:
		return "", fmt.Errorf("unknown transaction type %q", s)
	}
}
