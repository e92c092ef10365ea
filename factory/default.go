/*
default.go - Built-in production profile

PURPOSE:
  The profile for the managed building, transcribed from the 2021-2025 bank
  statement reconciliation: tier rates per year, the alias table covering
  every spelling and on-behalf-of payer seen in statements, the bank category
  dictionary, and the historical backfill plan.

SEE ALSO:
  - config.go: The JSON path for non-default profiles
*/
package factory

import (
	"github.com/shopspring/decimal"

	"github.com/gestor/quota-engine/backfill"
	"github.com/gestor/quota-engine/importer"
	"github.com/gestor/quota-engine/quota"
)

// Registered member names for the managed building.
const (
	MemberVitor    = "Vítor Manuel Sebastian Rodrigues"
	MemberMaria    = "Maria Albina Correia Sequeira"
	MemberAntonio  = "António Manuel Caroça Beirão"
	MemberCristina = "Cristina Maria Bertolo Gouveia"
	MemberJoao     = "João Manuel Fernandes Longo"
	MemberJose     = "José Manuel Costa Ricardo"
)

// DefaultProfile returns the production configuration for the managed
// building.
func DefaultProfile() *Profile {
	return &Profile{
		Tiers:      defaultTiers(),
		Aliases:    defaultAliases(),
		Categories: defaultCategories(),
		Backfill:   defaultBackfill(),
	}
}

func defaultTiers() quota.TierTable {
	// 2021-2024 rates held steady; the 2025 assembly raised both tiers.
	old := quota.YearRates{
		Tier150: decimal.RequireFromString("26.13"),
		Tier200: decimal.RequireFromString("34.84"),
	}
	return quota.NewTierTable(map[int]quota.YearRates{
		2021: old,
		2022: old,
		2023: old,
		2024: old,
		2025: {
			Tier150: decimal.RequireFromString("32.66"),
			Tier200: decimal.RequireFromString("43.54"),
		},
	})
}

func defaultAliases() []importer.AliasRule {
	return []importer.AliasRule{
		{Alias: "VITOR MANUEL SEBASTIAN RODRIGUES", Member: MemberVitor},
		{Alias: "VITOR RODRIGUES", Member: MemberVitor},
		{Alias: "JOAO MANUEL FERNANDES LONGO", Member: MemberJoao},
		{Alias: "Joao Longo", Member: MemberJoao},
		{Alias: "ANTONIO MANUEL CARACA BAIAO", Member: MemberAntonio},
		{Alias: "Antonio Beirao", Member: MemberAntonio},
		{Alias: "MARIA ALDINA SEQUEIRA", Member: MemberMaria},
		{Alias: "Aldina Sequeira", Member: MemberMaria},
		{Alias: "CRISTINA MARIA BERTOLO GOUVEIA", Member: MemberCristina},
		{Alias: "Cristina Gouveia", Member: MemberCristina},
		{Alias: "JOSE MANUEL COSTA RICARDO", Member: MemberJose},
		{Alias: "Jose Ricardo", Member: MemberJose},
		// On-behalf-of payers: statements carry the payer's name, the
		// member's ledger receives the credit.
		{Alias: "ALEXANDRE MARTINS DA SILVA", Member: MemberCristina, PaysFor: MemberCristina},
		{Alias: "CARLOTA LOPES BERTOLO GOUVEIA", Member: MemberCristina, PaysFor: MemberCristina},
	}
}

func defaultCategories() importer.CategoryTable {
	quotaIncome := importer.CategorySpec{Name: "Quota Condómino", Type: quota.TxIncome}
	return importer.CategoryTable{
		// Income - quotas, one bank label per fraction
		"Quota > Fraçao A - RC/DTO": quotaIncome,
		"Quota > Fraçao B - RC/ESQ": quotaIncome,
		"Quota > Fraçao C - 1º DTO": quotaIncome,
		"Quota > Fraçao D - 1º ESQ": quotaIncome,
		"Quota > Fraçao E - 2º DTO": quotaIncome,
		"Quota > Fraçao F - 2º ESQ": quotaIncome,

		// Income - other
		"Prestamos > Socios":      {Name: "Prestamos de Sócios", Type: quota.TxIncome},
		"Reembolsos Anulaciones":  {Name: "Reembolsos", Type: quota.TxIncome},
		"SEGUROS":                 {Name: "Reembolso Seguros", Type: quota.TxIncome},
		"INICIO":                  {Name: "Saldo Inicial", Type: quota.TxIncome},

		// Expenses - services
		"Despesas de condomínio > LUZ":               {Name: "Eletricidade", Type: quota.TxExpense, Parent: "Despesas Condomínio"},
		"Despesas de condomínio > BANCO":             {Name: "Despesas Bancárias", Type: quota.TxExpense, Parent: "Despesas Condomínio"},
		"Despesas de condomínio > SEGUROS":           {Name: "Seguros", Type: quota.TxExpense, Parent: "Despesas Condomínio"},
		"GASTOS FINANCIEROS > BANCOS > Tarifa banco": {Name: "Despesas Bancárias", Type: quota.TxExpense, Parent: "Despesas Condomínio"},

		// Expenses - services and maintenance
		"Limpeza":       {Name: "Limpeza", Type: quota.TxExpense, Parent: "Despesas Condomínio"},
		"Administração": {Name: "Administração", Type: quota.TxExpense, Parent: "Despesas Condomínio"},
		"Manutenção":    {Name: "Manutenção e Conservação", Type: quota.TxExpense, Parent: "Despesas Condomínio"},
	}
}

func defaultBackfill() backfill.Plan {
	return backfill.Plan{
		SettledYears: []int{2021, 2022, 2023, 2024},
		TrackingYear: 2025,
		SettledNote:  "Anos históricos fechados",
		Outcomes: map[string]backfill.Outcome{
			MemberVitor: {
				PaidMonths:   11,
				PaidPerMonth: decimal.RequireFromString("26.13"),
				Note:         "Paga com a quota antiga, deve regularizar",
			},
			MemberJoao: {
				PaidMonths:   12,
				PaidPerMonth: decimal.RequireFromString("43.54"),
				Note:         "Em dia, quota correta",
			},
			MemberAntonio: {
				Note: "Todo o 2025 pendente de pagamento",
			},
			MemberMaria: {
				Note: "Todo o 2025 pendente de pagamento",
			},
			MemberCristina: {
				Note: "Todo o 2025 pendente de pagamento",
			},
			MemberJose: {
				Note: "Todo o 2025 pendente de pagamento",
			},
		},
	}
}

// DefaultBuilding and DefaultMembers seed the directories for the managed
// building. IDs are stable slugs so re-seeding is an upsert, not a fork.
func DefaultBuilding() quota.Building {
	return quota.Building{ID: "edificio-principal", Name: "Edifício Principal"}
}

func DefaultMembers() []quota.Member {
	buildingID := DefaultBuilding().ID
	p150 := decimal.NewFromInt(150)
	p200 := decimal.NewFromInt(200)
	return []quota.Member{
		{ID: "vitor-rodrigues", BuildingID: buildingID, Name: MemberVitor, Fraction: "A - RC/DTO", Permilage: p150},
		{ID: "maria-sequeira", BuildingID: buildingID, Name: MemberMaria, Fraction: "B - RC/ESQ", Permilage: p150},
		{ID: "antonio-beirao", BuildingID: buildingID, Name: MemberAntonio, Fraction: "C - 1º DTO", Permilage: p200},
		{ID: "cristina-gouveia", BuildingID: buildingID, Name: MemberCristina, Fraction: "D - 1º ESQ", Permilage: p150},
		{ID: "joao-longo", BuildingID: buildingID, Name: MemberJoao, Fraction: "E - 2º DTO", Permilage: p200},
		{ID: "jose-ricardo", BuildingID: buildingID, Name: MemberJose, Fraction: "F - 2º ESQ", Permilage: p150},
	}
}
