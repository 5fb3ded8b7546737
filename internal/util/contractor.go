package util

import (
	"regexp"
	"strings"
)

// EstimateContractor is the canonical contractor identity of the
// Engineer's Estimate row.
const EstimateContractor = "ENGINEERS ESTIMATE"

// UnknownContractor is the canonical identity for an empty or unreadable
// contractor cell.
const UnknownContractor = "UNKNOWN"

var rePunct = regexp.MustCompile(`[^A-Z0-9&\s]`)

// suffixAliases folds corporate-suffix spellings to one token. Every value
// must map to itself so canonicalization stays idempotent.
var suffixAliases = map[string]string{
	"INC":          "INC",
	"INCORPORATED": "INC",
	"LLC":          "LLC",
	"CORP":         "CORP",
	"CORPORATION":  "CORP",
	"CO":           "CO",
	"COMPANY":      "CO",
	"LTD":          "LTD",
	"LIMITED":      "LTD",
	"CONST":        "CONSTRUCTION",
	"CONSTRUCTION": "CONSTRUCTION",
	"IND":          "INDUSTRIES",
	"INDUSTRIES":   "INDUSTRIES",
}

// CanonicalContractor maps a raw contractor cell to exactly one canonical
// identity. It is total and deterministic: every input string, including
// empty, maps to one output, and reapplying it is a no-op. Spelling variants
// of the same bidder ("Acme, Inc." / "ACME INC") collapse to one string.
func CanonicalContractor(name string) string {
	s := strings.ToUpper(name)
	s = strings.ReplaceAll(s, " ", " ")
	s = rePunct.ReplaceAllString(s, " ")
	s = NormalizeSpaces(s)
	if s == "" {
		return UnknownContractor
	}
	if isEstimateTokens(s) {
		return EstimateContractor
	}

	tokens := strings.Split(s, " ")
	for i, tok := range tokens {
		if alias, ok := suffixAliases[tok]; ok {
			tokens[i] = alias
		}
	}
	return strings.Join(tokens, " ")
}

// IsEstimateLabel reports whether a contractor cell names the Engineer's
// Estimate row, ignoring case, whitespace, and punctuation.
func IsEstimateLabel(name string) bool {
	s := strings.ToUpper(name)
	s = rePunct.ReplaceAllString(s, " ")
	return isEstimateTokens(NormalizeSpaces(s))
}

func isEstimateTokens(s string) bool {
	return strings.Contains(s, "ENGINEER") && strings.Contains(s, "ESTIMATE")
}
