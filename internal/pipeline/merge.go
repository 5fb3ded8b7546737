package pipeline

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"bidtab/internal"
	"bidtab/internal/util"
)

// MergeResult is the combined output of every document plus the conflicts
// the operator must resolve. Conflicted keys are excluded from LineItems.
type MergeResult struct {
	LineItems    []internal.LineItemRecord
	BidSummaries []internal.BidSummaryRecord
	Conflicts    []internal.MergeConflict
}

// Merge combines the normalized row sets of all documents into one
// canonical table. It is the pipeline's single barrier: every document's
// output must be present before keys are resolved.
//
// Contractor names are canonicalized before key comparison so spelling
// variants collapse to one identity. On key collision the row with more
// non-null fields wins and fills its nulls from the loser; two non-null
// values that disagree are recorded as a MergeConflict and the key is
// dropped from the accepted table, never silently resolved. The result is
// independent of document order.
func Merge(docs []internal.DocumentRows) MergeResult {
	index := map[internal.LineItemKey]internal.LineItemRecord{}
	conflicted := map[internal.LineItemKey][]internal.MergeConflict{}
	summaries := []internal.BidSummaryRecord{}

	for _, doc := range docs {
		for _, raw := range doc.Rows {
			rec := toLineItem(doc, raw)
			key := rec.Key()

			existing, ok := index[key]
			if !ok {
				index[key] = rec
				continue
			}
			merged, conflicts := combine(existing, rec)
			index[key] = merged
			conflicted[key] = append(conflicted[key], conflicts...)
		}

		for _, s := range doc.Summaries {
			s.Contractor = util.CanonicalContractor(s.Contractor)
			s.ReportDate = doc.ReportDate
			summaries = append(summaries, s)
		}
	}

	res := MergeResult{}
	for key, rec := range index {
		if len(conflicted[key]) > 0 {
			res.Conflicts = append(res.Conflicts, conflicted[key]...)
			continue
		}
		res.LineItems = append(res.LineItems, rec)
	}

	sort.Slice(res.LineItems, func(i, j int) bool {
		return res.LineItems[i].Key().String() < res.LineItems[j].Key().String()
	})
	sort.Slice(res.Conflicts, func(i, j int) bool {
		a, b := res.Conflicts[i], res.Conflicts[j]
		if a.Key != b.Key {
			return a.Key.String() < b.Key.String()
		}
		return a.Field < b.Field
	})

	res.BidSummaries = AssignRanks(dedupeSummaries(summaries))
	sort.Slice(res.BidSummaries, func(i, j int) bool {
		a, b := res.BidSummaries[i], res.BidSummaries[j]
		ak := strings.Join([]string{a.ProjectName, util.DerefString(a.ReportDate), a.Schedule, a.Option, a.Contractor}, "|")
		bk := strings.Join([]string{b.ProjectName, util.DerefString(b.ReportDate), b.Schedule, b.Option, b.Contractor}, "|")
		return ak < bk
	})

	return res
}

func toLineItem(doc internal.DocumentRows, raw internal.RawRow) internal.LineItemRecord {
	return internal.LineItemRecord{
		ProjectName:         doc.ProjectName,
		ReportDate:          doc.ReportDate,
		Schedule:            raw.Schedule,
		Option:              raw.Option,
		LineItemNo:          raw.LineItemNo,
		PayItemNo:           raw.PayItemNo,
		Description:         raw.Description,
		Quantity:            raw.Quantity,
		Unit:                raw.Unit,
		UnitPrice:           raw.UnitPrice,
		Amount:              raw.Amount,
		Contractor:          util.CanonicalContractor(raw.Contractor),
		IsEngineersEstimate: raw.Kind == internal.KindEngineersEstimate,
		Warning:             raw.Warning,
		SourceDoc:           raw.SourceDoc,
		Page:                raw.Page,
	}
}

// combine merges two records sharing a canonical key. Insensitive to
// argument order: the inputs are ordered deterministically before the
// richer one is picked.
func combine(a, b internal.LineItemRecord) (internal.LineItemRecord, []internal.MergeConflict) {
	if recordLess(b, a) {
		a, b = b, a
	}

	winner, loser := a, b
	if fieldCount(b) > fieldCount(a) {
		winner, loser = b, a
	}

	conflicts := fieldConflicts(winner, loser)
	if len(conflicts) > 0 {
		return winner, conflicts
	}

	if winner.PayItemNo == "" {
		winner.PayItemNo = loser.PayItemNo
	}
	if winner.Description == "" {
		winner.Description = loser.Description
	}
	if winner.Quantity == nil {
		winner.Quantity = loser.Quantity
	}
	if winner.Unit == nil {
		winner.Unit = loser.Unit
	}
	if winner.UnitPrice == nil {
		winner.UnitPrice = loser.UnitPrice
	}
	if winner.Amount == nil {
		winner.Amount = loser.Amount
	}
	winner.Warning = winner.Warning || loser.Warning
	return winner, nil
}

// fieldConflicts lists every field where both records carry a non-null
// value and the values disagree.
func fieldConflicts(a, b internal.LineItemRecord) []internal.MergeConflict {
	out := []internal.MergeConflict{}
	add := func(field, left, right string) {
		out = append(out, internal.MergeConflict{
			Key: a.Key(), Field: field,
			Left: left, Right: right,
			LeftDoc: a.SourceDoc, RightDoc: b.SourceDoc,
		})
	}

	if a.PayItemNo != "" && b.PayItemNo != "" && a.PayItemNo != b.PayItemNo {
		add("pay_item_no", a.PayItemNo, b.PayItemNo)
	}
	if a.Description != "" && b.Description != "" && a.Description != b.Description {
		add("description", a.Description, b.Description)
	}
	if u := util.DerefString(a.Unit); a.Unit != nil && b.Unit != nil && u != *b.Unit {
		add("unit", u, *b.Unit)
	}
	if floatsConflict(a.Quantity, b.Quantity) {
		add("quantity", renderFloat(a.Quantity), renderFloat(b.Quantity))
	}
	if floatsConflict(a.UnitPrice, b.UnitPrice) {
		add("unit_price", renderFloat(a.UnitPrice), renderFloat(b.UnitPrice))
	}
	if floatsConflict(a.Amount, b.Amount) {
		add("amount", renderFloat(a.Amount), renderFloat(b.Amount))
	}
	return out
}

func floatsConflict(a, b *float64) bool {
	if a == nil || b == nil {
		return false
	}
	return math.Abs(*a-*b) > 1e-9
}

func renderFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func fieldCount(r internal.LineItemRecord) int {
	n := 0
	for _, s := range []string{r.ProjectName, r.Schedule, r.Option, r.LineItemNo, r.PayItemNo, r.Description} {
		if s != "" {
			n++
		}
	}
	for _, f := range []*float64{r.Quantity, r.UnitPrice, r.Amount} {
		if f != nil {
			n++
		}
	}
	if r.Unit != nil {
		n++
	}
	if r.ReportDate != nil {
		n++
	}
	return n
}

// recordLess is an arbitrary but total order used to make combine
// symmetric in its arguments.
func recordLess(a, b internal.LineItemRecord) bool {
	return fingerprint(a) < fingerprint(b)
}

func fingerprint(r internal.LineItemRecord) string {
	return fmt.Sprintf("%s|%d|%s|%s|%s|%s|%s|%s",
		r.SourceDoc, r.Page, r.PayItemNo, r.Description,
		renderFloat(r.Quantity), util.DerefString(r.Unit),
		renderFloat(r.UnitPrice), renderFloat(r.Amount))
}
