package factory_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gestor/quota-engine/factory"
	"github.com/gestor/quota-engine/quota"
)

func TestParseProfile(t *testing.T) {
	jsonStr := `{
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
			"settled_years": [2023, 2024],
			"tracking_year": 2025,
			"settled_note": "fechado",
			"outcomes": {
				"Vítor Manuel Sebastian Rodrigues":
					{"paid_months": 11, "paid_per_month": "26.13", "note": "atrasado"}
			}
		}
	}`

	profile, err := factory.ParseProfile(jsonStr)
	require.NoError(t, err)

	q := profile.Tiers.MonthlyQuota(decimal.NewFromInt(150), 2025)
	assert.True(t, q.Equal(decimal.RequireFromString("32.66")))

	require.Len(t, profile.Aliases, 2)
	assert.Equal(t, "Cristina Maria Bertolo Gouveia", profile.Aliases[1].PaysFor)

	spec := profile.Categories.Resolve("Limpeza")
	assert.Equal(t, quota.TxExpense, spec.Type)
	assert.Equal(t, "Despesas Condomínio", spec.Parent)

	assert.Equal(t, []int{2023, 2024}, profile.Backfill.SettledYears)
	assert.Equal(t, 2025, profile.Backfill.TrackingYear)
	outcome := profile.Backfill.Outcomes["Vítor Manuel Sebastian Rodrigues"]
	assert.Equal(t, 11, outcome.PaidMonths)
	assert.True(t, outcome.PaidPerMonth.Equal(decimal.RequireFromString("26.13")))
}

func TestParseProfile_RejectsBadInput(t *testing.T) {
	cases := []struct {
		name string
		json string
	}{
		{"not json", "nope"},
		{"bad year", `{"rates": {"twenty": {"tier_150": "1"}}}`},
		{"bad decimal", `{"rates": {"2025": {"tier_150": "abc"}}}`},
		{"alias missing member", `{"aliases": [{"alias": "X"}]}`},
		{"bad category type", `{"categories": {"X": {"name": "X", "type": "transfer"}}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := factory.ParseProfile(tc.json)
			assert.Error(t, err)
		})
	}
}

func TestDefaultProfile(t *testing.T) {
	profile := factory.DefaultProfile()

	// Rates cover every planned year.
	for _, year := range []int{2021, 2022, 2023, 2024, 2025} {
		rates, ok := profile.Tiers.For(year)
		assert.True(t, ok, "year %d", year)
		assert.False(t, rates.IsZero(), "year %d", year)
	}

	// Every backfill outcome names a registered member.
	names := make(map[string]bool)
	for _, m := range factory.DefaultMembers() {
		names[m.Name] = true
	}
	for name := range profile.Backfill.Outcomes {
		assert.True(t, names[name], "outcome for unregistered member %q", name)
	}

	// Every alias resolves to a registered member.
	for _, rule := range profile.Aliases {
		assert.True(t, names[rule.Member], "alias %q maps to unregistered %q", rule.Alias, rule.Member)
	}

	// All six fractions have a quota category label.
	quotaLabels := 0
	for raw := range profile.Categories {
		if len(raw) >= 7 && raw[:7] == "Quota >" {
			quotaLabels++
		}
	}
	assert.Equal(t, 6, quotaLabels)
}
