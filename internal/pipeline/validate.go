package pipeline

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"bidtab/internal"
	"bidtab/internal/config"
	"bidtab/internal/util"
)

// Finding codes emitted by the validator.
const (
	CodeRequiredField      = "REQUIRED_FIELD"
	CodeDuplicateKey       = "DUPLICATE_KEY"
	CodeMergeConflict      = "MERGE_CONFLICT"
	CodeAmountMismatch     = "AMOUNT_MISMATCH"
	CodeEstimateCount      = "ESTIMATE_COUNT"
	CodeSummaryMismatch    = "SUMMARY_MISMATCH"
	CodeContractorUnlisted = "CONTRACTOR_UNLISTED"
)

// Validate runs the structural checks over the cleaned dataset and returns
// a report of findings; it never mutates its input. Hard findings
// (missing required fields, duplicate canonical keys, unresolved merge
// conflicts) block acceptance; the rest are advisory.
//
// rosters maps project name to the contractor set recovered from raw PDF
// text, used to detect mis-merged or mis-spelled names.
func Validate(res MergeResult, rosters map[string][]string, cfg config.Config) []internal.Finding {
	findings := []internal.Finding{}
	findings = append(findings, checkConflicts(res.Conflicts)...)
	findings = append(findings, checkRequired(res.LineItems)...)
	findings = append(findings, checkUniqueness(res.LineItems)...)
	findings = append(findings, checkAmounts(res.LineItems, cfg.AmountTolerance)...)
	findings = append(findings, checkEstimateRows(res.LineItems)...)
	findings = append(findings, checkSummaryTotals(res.LineItems, res.BidSummaries, cfg.SummaryTolerance)...)
	findings = append(findings, checkContractorRoster(res.LineItems, res.BidSummaries, rosters)...)
	return findings
}

func checkConflicts(conflicts []internal.MergeConflict) []internal.Finding {
	out := []internal.Finding{}
	for _, c := range conflicts {
		out = append(out, internal.Finding{
			Severity: internal.SeverityHard,
			Code:     CodeMergeConflict,
			Keys:     []string{c.Key.String()},
			Message: fmt.Sprintf("sources disagree on %s: %q (%s) vs %q (%s)",
				c.Field, c.Left, c.LeftDoc, c.Right, c.RightDoc),
		})
	}
	return out
}

func checkRequired(items []internal.LineItemRecord) []internal.Finding {
	out := []internal.Finding{}
	for _, r := range items {
		missing := []string{}
		if r.ProjectName == "" {
			missing = append(missing, "project_name")
		}
		if r.LineItemNo == "" {
			missing = append(missing, "line_item_no")
		}
		if r.PayItemNo == "" {
			missing = append(missing, "pay_item_no")
		}
		if r.Contractor == "" || r.Contractor == util.UnknownContractor {
			missing = append(missing, "contractor")
		}
		if r.Amount == nil && r.UnitPrice == nil {
			missing = append(missing, "unit_price/amount")
		}
		if len(missing) == 0 {
			continue
		}
		out = append(out, internal.Finding{
			Severity: internal.SeverityHard,
			Code:     CodeRequiredField,
			Keys:     []string{r.Key().String()},
			Message:  fmt.Sprintf("missing required fields: %s", strings.Join(missing, ", ")),
		})
	}
	return out
}

func checkUniqueness(items []internal.LineItemRecord) []internal.Finding {
	counts := map[internal.LineItemKey]int{}
	for _, r := range items {
		counts[r.Key()]++
	}

	out := []internal.Finding{}
	for key, n := range counts {
		if n > 1 {
			out = append(out, internal.Finding{
				Severity: internal.SeverityHard,
				Code:     CodeDuplicateKey,
				Keys:     []string{key.String()},
				Message:  fmt.Sprintf("canonical key appears %d times", n),
			})
		}
	}
	sortFindings(out)
	return out
}

func checkAmounts(items []internal.LineItemRecord, tolerance float64) []internal.Finding {
	out := []internal.Finding{}
	for _, r := range items {
		if r.Quantity == nil || r.UnitPrice == nil || r.Amount == nil {
			continue
		}
		calc := *r.Quantity * *r.UnitPrice
		if withinTolerance(*r.Amount, calc, tolerance) {
			continue
		}
		out = append(out, internal.Finding{
			Severity: internal.SeverityWarning,
			Code:     CodeAmountMismatch,
			Keys:     []string{r.Key().String()},
			Message:  fmt.Sprintf("amount %.2f differs from quantity*unit_price %.2f", *r.Amount, calc),
		})
	}
	return out
}

// checkEstimateRows verifies each line item has exactly one Engineer's
// Estimate row per project/report.
func checkEstimateRows(items []internal.LineItemRecord) []internal.Finding {
	type itemKey struct {
		project, date, schedule, option, lineItemNo string
	}
	estimates := map[itemKey]int{}
	all := map[itemKey]struct{}{}
	for _, r := range items {
		k := itemKey{r.ProjectName, util.DerefString(r.ReportDate), r.Schedule, r.Option, r.LineItemNo}
		all[k] = struct{}{}
		if r.IsEngineersEstimate {
			estimates[k]++
		}
	}

	out := []internal.Finding{}
	for k := range all {
		n := estimates[k]
		if n == 1 {
			continue
		}
		out = append(out, internal.Finding{
			Severity: internal.SeverityWarning,
			Code:     CodeEstimateCount,
			Keys:     []string{strings.Join([]string{k.project, k.date, k.schedule, k.option, k.lineItemNo}, "|")},
			Message:  fmt.Sprintf("line item has %d engineer's estimate rows, want 1", n),
		})
	}
	sortFindings(out)
	return out
}

// checkSummaryTotals cross-checks each contractor's summed line-item
// amounts against its bid-summary total.
func checkSummaryTotals(items []internal.LineItemRecord, sums []internal.BidSummaryRecord, tolerance float64) []internal.Finding {
	type sumKey struct {
		project, date, schedule, option, contractor string
	}
	totals := map[sumKey]float64{}
	for _, r := range items {
		if r.Amount == nil {
			continue
		}
		k := sumKey{r.ProjectName, util.DerefString(r.ReportDate), r.Schedule, r.Option, r.Contractor}
		totals[k] += *r.Amount
	}

	out := []internal.Finding{}
	for _, s := range sums {
		if s.TotalBidAmount == nil {
			continue
		}
		k := sumKey{s.ProjectName, util.DerefString(s.ReportDate), s.Schedule, s.Option, s.Contractor}
		summed, ok := totals[k]
		if !ok {
			continue
		}
		if withinTolerance(summed, *s.TotalBidAmount, tolerance) {
			continue
		}
		out = append(out, internal.Finding{
			Severity: internal.SeverityWarning,
			Code:     CodeSummaryMismatch,
			Keys:     []string{strings.Join([]string{k.project, k.date, k.schedule, k.option, k.contractor}, "|")},
			Message:  fmt.Sprintf("summed line-item amount %.2f differs from total bid %.2f", summed, *s.TotalBidAmount),
		})
	}
	return out
}

// checkContractorRoster flags line-item contractors that appear neither in
// the bid summaries nor in the roster recovered from raw PDF text; these
// are usually mis-merged or mis-spelled names.
func checkContractorRoster(items []internal.LineItemRecord, sums []internal.BidSummaryRecord, rosters map[string][]string) []internal.Finding {
	known := map[string]map[string]struct{}{}
	addKnown := func(project, contractor string) {
		if known[project] == nil {
			known[project] = map[string]struct{}{}
		}
		known[project][util.CanonicalContractor(contractor)] = struct{}{}
	}
	for _, s := range sums {
		addKnown(s.ProjectName, s.Contractor)
	}
	for project, names := range rosters {
		for _, n := range names {
			addKnown(project, n)
		}
	}

	seen := map[string]struct{}{}
	out := []internal.Finding{}
	for _, r := range items {
		if r.IsEngineersEstimate || r.Contractor == util.UnknownContractor {
			continue
		}
		roster, ok := known[r.ProjectName]
		if !ok {
			continue
		}
		if _, listed := roster[r.Contractor]; listed {
			continue
		}
		dedupe := r.ProjectName + "|" + r.Contractor
		if _, dup := seen[dedupe]; dup {
			continue
		}
		seen[dedupe] = struct{}{}
		out = append(out, internal.Finding{
			Severity: internal.SeverityWarning,
			Code:     CodeContractorUnlisted,
			Keys:     []string{dedupe},
			Message:  fmt.Sprintf("contractor %q not found in bid summaries or raw text for project %q", r.Contractor, r.ProjectName),
		})
	}
	sortFindings(out)
	return out
}

func withinTolerance(actual, expected, tolerance float64) bool {
	if expected == 0 {
		return math.Abs(actual) <= tolerance
	}
	return math.Abs(actual-expected)/math.Abs(expected) <= tolerance
}

func sortFindings(findings []internal.Finding) {
	sort.Slice(findings, func(i, j int) bool {
		if findings[i].Code != findings[j].Code {
			return findings[i].Code < findings[j].Code
		}
		return strings.Join(findings[i].Keys, ",") < strings.Join(findings[j].Keys, ",")
	})
}
