/*
identify.go - Member identification from statement text

PURPOSE:
  Maps the free-text fields of a bank statement row (beneficiary, memo) to a
  registered member via an explicit alias table. Bank statements spell the
  same person many ways - initials, maiden names, a spouse or relative paying
  on the member's behalf - so identification is a configured mapping, never
  string similarity.

MATCHING RULE:
  Case-insensitive substring containment against the row text. When several
  aliases match, the longest alias wins; equal lengths tie-break
  lexicographically, so a run is deterministic regardless of rule order.

PAYS-FOR:
  A rule may credit a different member than the name on the statement
  (e.g. a relative paying the owner's quota). The rule names both the alias
  and the member whose ledger receives the payment.

SEE ALSO:
  - importer.go: Calls Identify once per statement row
  - factory/config.go: The production alias table
*/
package importer

import "strings"

// AliasRule maps one statement alias to the member credited for it.
type AliasRule struct {
	// Alias is the text fragment looked for in the statement row.
	Alias string
	// Member is the registered name whose ledger receives the payment.
	// This may differ from the alias when someone pays on the member's
	// behalf.
	Member string
	// PaysFor documents the on-behalf-of relationship for audit purposes.
	// Empty when the alias is simply a spelling variant of Member.
	PaysFor string
}

// Identifier resolves statement text to registered member names.
type Identifier struct {
	rules []AliasRule
}

func NewIdentifier(rules []AliasRule) *Identifier {
	return &Identifier{rules: rules}
}

// Identify returns the registered member name credited for the row text, or
// "" when no alias matches. Matching is case-insensitive containment; the
// longest matching alias wins, ties broken lexicographically.
func (i *Identifier) Identify(texts ...string) string {
	haystack := strings.ToUpper(strings.Join(texts, " "))

	var best *AliasRule
	for idx := range i.rules {
		rule := &i.rules[idx]
		alias := strings.ToUpper(rule.Alias)
		if alias == "" || !strings.Contains(haystack, alias) {
			continue
		}
		if best == nil || betterMatch(rule.Alias, best.Alias) {
			best = rule
		}
	}

	if best == nil {
		return ""
	}
	return best.Member
}

// betterMatch reports whether candidate should replace current: longer alias
// first, then lexicographically smaller.
func betterMatch(candidate, current string) bool {
	if len(candidate) != len(current) {
		return len(candidate) > len(current)
	}
	return candidate < current
}
