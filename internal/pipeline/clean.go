package pipeline

import (
	"strings"

	"bidtab/internal"
	"bidtab/internal/util"
)

// unitAliases folds the unit spellings observed across source documents to
// one canonical code.
var unitAliases = map[string]string{
	"LF":           "LNFT",
	"L.F.":         "LNFT",
	"LIN FT":       "LNFT",
	"LINEAR FT":    "LNFT",
	"LINEAR FOOT":  "LNFT",
	"LNTF":         "LNFT",
	"SY":           "SQYD",
	"SQ YD":        "SQYD",
	"SQ. YD.":      "SQYD",
	"SQUARE YARD":  "SQYD",
	"SQUARE YARDS": "SQYD",
	"CY":           "CUYD",
	"CU YD":        "CUYD",
	"CU. YD.":      "CUYD",
	"CUBIC YARD":   "CUYD",
	"CUBIC YARDS":  "CUYD",
	"EA":           "EACH",
	"EACH":         "EACH",
	"SF":           "SQFT",
	"SQ FT":        "SQFT",
	"SQUARE FOOT":  "SQFT",
	"TON":          "TON",
	"GAL":          "GAL",
	"LPSM":         "LPSM",
	"LS":           "LPSM",
	"LUMP SUM":     "LPSM",
	"CTSM":         "LPSM",
}

// CleanUnit maps a raw unit cell to its canonical code. Unknown units pass
// through upper-cased rather than being dropped.
func CleanUnit(u string) string {
	s := strings.ToUpper(util.NormalizeSpaces(u))
	s = strings.ReplaceAll(s, "-", " ")
	s = strings.ReplaceAll(s, "/", " ")
	s = util.NormalizeSpaces(s)
	if canon, ok := unitAliases[s]; ok {
		return canon
	}
	// Periods only matter for alias lookup ("L.F."); strip for the
	// fallthrough so "E.A." still lands on EACH.
	stripped := strings.ReplaceAll(s, ".", "")
	if canon, ok := unitAliases[stripped]; ok {
		return canon
	}
	return stripped
}

// Clean canonicalizes types, units, and free-text fields over the merged
// table. It is a pure function of its input: no source PDF is reopened.
func Clean(res MergeResult) MergeResult {
	out := MergeResult{
		LineItems:    make([]internal.LineItemRecord, len(res.LineItems)),
		BidSummaries: make([]internal.BidSummaryRecord, len(res.BidSummaries)),
		Conflicts:    res.Conflicts,
	}

	for i, r := range res.LineItems {
		r.ProjectName = cleanText(r.ProjectName)
		r.Schedule = cleanText(r.Schedule)
		r.Option = cleanText(r.Option)
		r.LineItemNo = cleanText(r.LineItemNo)
		r.PayItemNo = cleanText(r.PayItemNo)
		r.Description = cleanText(r.Description)
		if r.Unit != nil {
			r.Unit = util.StringPtr(CleanUnit(*r.Unit))
		}
		if r.Quantity != nil && *r.Quantity < 0 {
			r.Quantity = nil
			r.Warning = true
		}
		if r.UnitPrice != nil && *r.UnitPrice < 0 {
			r.UnitPrice = nil
			r.Warning = true
		}
		out.LineItems[i] = r
	}

	for i, s := range res.BidSummaries {
		s.ProjectName = cleanText(s.ProjectName)
		s.Schedule = cleanText(s.Schedule)
		s.Option = cleanText(s.Option)
		out.BidSummaries[i] = s
	}

	return out
}

func cleanText(s string) string {
	return strings.Trim(util.NormalizeSpaces(s), " ,")
}
