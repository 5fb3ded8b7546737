package pipeline

import (
	"regexp"
	"sort"
	"strings"

	"bidtab/internal"
	"bidtab/internal/util"
)

var (
	nameAmountPattern = regexp.MustCompile(`^(.*?)(\$\s*[0-9][0-9,]*\.[0-9]{2})`)
	amountOnlyPattern = regexp.MustCompile(`^\$\s*[0-9][0-9,]*\.[0-9]{2}$`)
)

// ExtractSummaries parses the bid-summary pages (one total per contractor
// per schedule/option) from page text. Pages carrying line-item tables are
// skipped so item rows are never double-counted as totals.
func ExtractSummaries(doc string, pages []string, meta docMeta) []internal.BidSummaryRecord {
	out := []internal.BidSummaryRecord{}
	schedule, option := "", ""

	for pageno, page := range pages {
		schedule, option = pageContext(page, schedule, option)

		if strings.Contains(page, "Line Item") || strings.Contains(page, "Pay Item No.") {
			continue
		}
		isSummary := strings.Contains(page, "Contractor Responsive?") ||
			strings.Contains(page, "Total Base Schedule") ||
			optionPattern.MatchString(page)
		if !isSummary {
			continue
		}

		lines := splitLines(page)
		for idx := 0; idx < len(lines); idx++ {
			ln := lines[idx]
			candidate := ""

			if strings.Contains(ln, "$") {
				candidate = ln
			} else if idx+1 < len(lines) && amountOnlyPattern.MatchString(lines[idx+1]) {
				// Name on its own line, amount on the next; a suffix may
				// trail on a third.
				candidate = ln + " " + lines[idx+1]
				if idx+2 < len(lines) && looksLikeSuffix(lines[idx+2]) && !strings.Contains(lines[idx+2], "$") {
					candidate += " " + lines[idx+2]
				}
			}
			if candidate == "" {
				continue
			}

			m := nameAmountPattern.FindStringSubmatch(candidate)
			if m == nil {
				continue
			}
			name := strings.Trim(m[1], " ,")
			amt := util.ParseMoney(m[2])
			if amt == nil || len(name) < 3 {
				continue
			}
			isEstimate := util.IsEstimateLabel(name)
			if !isEstimate && strings.Contains(name, "Estimate") {
				continue
			}
			if isEstimate {
				name = "Engineer's Estimate"
			}
			// Suffix that landed after the amount ("... $587,750.00 Inc.").
			if rest := candidate[len(m[0]):]; !isEstimate && looksLikeSuffix(rest) {
				name = strings.Trim(name+" "+util.NormalizeSpaces(rest), " ,")
			}

			out = append(out, internal.BidSummaryRecord{
				ProjectName:         meta.ProjectName,
				ReportDate:          meta.ReportDate,
				Schedule:            schedule,
				Option:              option,
				Contractor:          name,
				TotalBidAmount:      amt,
				IsEngineersEstimate: isEstimate,
				SourceDoc:           doc,
				Page:                pageno + 1,
			})
		}
	}

	return dedupeSummaries(out)
}

// Repeated headers make some pages re-state the same totals.
func dedupeSummaries(in []internal.BidSummaryRecord) []internal.BidSummaryRecord {
	type sumKey struct {
		project, schedule, option, contractor string
		total                                 float64
	}
	seen := map[sumKey]struct{}{}
	out := make([]internal.BidSummaryRecord, 0, len(in))
	for _, r := range in {
		total := 0.0
		if r.TotalBidAmount != nil {
			total = *r.TotalBidAmount
		}
		k := sumKey{r.ProjectName, r.Schedule, r.Option, util.CanonicalContractor(r.Contractor), total}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out
}

// AssignRanks orders each project/report/schedule/option group by total bid
// ascending and numbers the non-estimate rows from 1. The estimate row is
// not a bid and keeps rank 0.
func AssignRanks(records []internal.BidSummaryRecord) []internal.BidSummaryRecord {
	out := make([]internal.BidSummaryRecord, len(records))
	copy(out, records)

	type rankKey struct {
		project, date, schedule, option string
	}
	groups := map[rankKey][]int{}
	for i, r := range out {
		out[i].Rank = 0
		if r.IsEngineersEstimate || r.TotalBidAmount == nil {
			continue
		}
		k := rankKey{r.ProjectName, util.DerefString(r.ReportDate), r.Schedule, r.Option}
		groups[k] = append(groups[k], i)
	}

	for _, idxs := range groups {
		sort.SliceStable(idxs, func(a, b int) bool {
			return *out[idxs[a]].TotalBidAmount < *out[idxs[b]].TotalBidAmount
		})
		for rank, i := range idxs {
			out[i].Rank = rank + 1
		}
	}

	return out
}
