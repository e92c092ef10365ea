/*
categories.go - Bank category normalization

PURPOSE:
  Maps the bank's raw category labels onto the building's own category
  dictionary and decides whether a row is a quota fee payment. The mapping is
  injected configuration; unmapped labels degrade to an expense category
  under the raw name rather than failing the row.

SEE ALSO:
  - importer.go: Resolves every row's category through this table
  - factory/config.go: The production category table
*/
package importer

import (
	"strings"

	"github.com/gestor/quota-engine/quota"
)

// FeeCategoryPrefix marks the raw bank categories whose income counts toward
// member quota ledgers. The bank labels them "Quota > <fraction>".
const FeeCategoryPrefix = "Quota >"

// FallbackCategoryName absorbs rows whose bank category is empty.
const FallbackCategoryName = "Outras"

// CategorySpec is the normalized category a raw bank label maps to.
type CategorySpec struct {
	Name   string
	Type   quota.TransactionType
	Parent string
}

// CategoryTable maps raw bank category labels to normalized categories.
type CategoryTable map[string]CategorySpec

// Resolve returns the normalized category for a raw bank label. Unknown
// labels pass through as expense categories under their own name; empty
// labels land in the catch-all.
func (t CategoryTable) Resolve(raw string) CategorySpec {
	raw = strings.TrimSpace(raw)
	if spec, ok := t[raw]; ok {
		return spec
	}
	if raw == "" {
		raw = FallbackCategoryName
	}
	return CategorySpec{Name: raw, Type: quota.TxExpense}
}

// IsFeePayment reports whether a raw bank category marks a member quota
// payment, the only kind of income that reaches the ledger chain.
func IsFeePayment(rawCategory string) bool {
	return strings.HasPrefix(rawCategory, FeeCategoryPrefix)
}
