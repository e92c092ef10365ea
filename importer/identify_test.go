package importer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gestor/quota-engine/importer"
)

func testRules() []importer.AliasRule {
	return []importer.AliasRule{
		{Alias: "VITOR MANUEL SEBASTIAN RODRIGUES", Member: "Vítor Manuel Sebastian Rodrigues"},
		{Alias: "VITOR RODRIGUES", Member: "Vítor Manuel Sebastian Rodrigues"},
		{Alias: "Cristina Gouveia", Member: "Cristina Maria Bertolo Gouveia"},
		{Alias: "ALEXANDRE MARTINS DA SILVA", Member: "Cristina Maria Bertolo Gouveia",
			PaysFor: "Cristina Maria Bertolo Gouveia"},
	}
}

func TestIdentify_MatchesSubstringCaseInsensitively(t *testing.T) {
	id := importer.NewIdentifier(testRules())

	got := id.Identify("TRF vitor rodrigues quota marco", "")

	assert.Equal(t, "Vítor Manuel Sebastian Rodrigues", got)
}

func TestIdentify_SearchesAllProvidedFields(t *testing.T) {
	id := importer.NewIdentifier(testRules())

	got := id.Identify("TRF recebida", "CRISTINA GOUVEIA")

	assert.Equal(t, "Cristina Maria Bertolo Gouveia", got)
}

func TestIdentify_LongestAliasWins(t *testing.T) {
	// GIVEN: both "VITOR RODRIGUES" and the full name match the row
	// WHEN: identifying
	// THEN: the longer alias decides (same member here, but the rule is
	// what keeps on-behalf-of payers from being shadowed by short aliases)

	id := importer.NewIdentifier(testRules())

	got := id.Identify("VITOR MANUEL SEBASTIAN RODRIGUES", "")

	assert.Equal(t, "Vítor Manuel Sebastian Rodrigues", got)
}

func TestIdentify_PaysForCreditsTheMappedMember(t *testing.T) {
	id := importer.NewIdentifier(testRules())

	got := id.Identify("TRF ALEXANDRE MARTINS DA SILVA", "")

	assert.Equal(t, "Cristina Maria Bertolo Gouveia", got)
}

func TestIdentify_NoMatchReturnsEmpty(t *testing.T) {
	id := importer.NewIdentifier(testRules())

	got := id.Identify("EDP COMERCIAL fatura luz", "EDP")

	assert.Empty(t, got)
}

func TestIdentify_DeterministicOnEqualLengths(t *testing.T) {
	// Two equal-length aliases both matching: the lexicographically smaller
	// one wins regardless of rule order.
	rules := []importer.AliasRule{
		{Alias: "BBBB", Member: "Second"},
		{Alias: "AAAA", Member: "First"},
	}

	forward := importer.NewIdentifier(rules).Identify("AAAA BBBB")
	reversed := importer.NewIdentifier([]importer.AliasRule{rules[1], rules[0]}).Identify("AAAA BBBB")

	assert.Equal(t, "First", forward)
	assert.Equal(t, forward, reversed)
}

func TestResolve_CategoryFallbacks(t *testing.T) {
	table := importer.CategoryTable{
		"Limpeza": {Name: "Limpeza", Type: "expense", Parent: "Despesas Condomínio"},
	}

	// Mapped label.
	assert.Equal(t, "Limpeza", table.Resolve("Limpeza").Name)

	// Unknown label passes through as an expense under its own name.
	unknown := table.Resolve("Obras no telhado")
	assert.Equal(t, "Obras no telhado", unknown.Name)
	assert.Equal(t, "expense", string(unknown.Type))

	// Empty label lands in the catch-all.
	assert.Equal(t, importer.FallbackCategoryName, table.Resolve("").Name)
}

func TestIsFeePayment(t *testing.T) {
	assert.True(t, importer.IsFeePayment("Quota > Fraçao A - RC/DTO"))
	assert.False(t, importer.IsFeePayment("Limpeza"))
	assert.False(t, importer.IsFeePayment(""))
}
