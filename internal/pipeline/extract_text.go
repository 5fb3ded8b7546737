package pipeline

import (
	"fmt"
	"path/filepath"
	"strings"

	"bidtab/internal"
	"bidtab/internal/util"
)

// TextExtractor handles format B: no ruling, items rendered as a header line
//
//	A0200 15101-0000 MOBILIZATION
//
// followed by one line per contractor,
//
//	Central Southern Construction Corp. Lump Sum $100,000.00
//	Engineer's Estimate 500 CUYD $100.00 $50,000.00
//
// Quantity and unit live on the Engineer's Estimate line; bidder lines only
// carry them when the document embeds them explicitly. Contractor names may
// wrap, with corporate suffixes landing on their own line.
type TextExtractor struct{}

func (e *TextExtractor) Format() Format { return FormatText }

func (e *TextExtractor) Extract(path string) (internal.DocumentRows, error) {
	pages, err := readPlainPages(path)
	if err != nil {
		return internal.DocumentRows{}, fmt.Errorf("open %s: %w", path, err)
	}

	contractors := scanContractors(strings.Join(pages, "\n"))
	rows := parseTextPages(filepath.Base(path), pages, contractors)
	if len(rows) == 0 {
		return internal.DocumentRows{}, fmt.Errorf("%s: format b: %w", path, ErrUnrecognizedLayout)
	}

	return buildDocument(path, FormatText, pages, rows), nil
}

// parseTextPages walks every page's plain-text lines and decodes item
// blocks. Exposed separately from the PDF plumbing so fixtures can be plain
// strings.
func parseTextPages(doc string, pages []string, contractors []string) []internal.RawRow {
	frags := contractorFragments(contractors)
	out := []internal.RawRow{}
	rowIndex := 0
	schedule, option := "", ""

	for pageno, page := range pages {
		schedule, option = pageContext(page, schedule, option)
		lines := splitLines(page)

		idx := 0
		for idx < len(lines) {
			lineItemNo, payItemNo, desc, ok := detectItemStart(lines[idx])
			if !ok {
				idx++
				continue
			}

			block := []string{}
			idx++
			for idx < len(lines) {
				if _, _, _, next := detectItemStart(lines[idx]); next {
					break
				}
				block = append(block, lines[idx])
				idx++
			}

			itemRows := parseItemBlock(blockContext{
				doc:        doc,
				page:       pageno + 1,
				schedule:   scheduleFromLineItem(schedule, lineItemNo),
				option:     option,
				lineItemNo: lineItemNo,
				payItemNo:  payItemNo,
				desc:       desc,
				frags:      frags,
			}, block, &rowIndex)
			out = append(out, itemRows...)
		}
	}

	return out
}

type blockContext struct {
	doc        string
	page       int
	schedule   string
	option     string
	lineItemNo string
	payItemNo  string
	desc       string
	frags      []string
}

// parseItemBlock decodes the contractor lines of one line-item block.
func parseItemBlock(ctx blockContext, block []string, rowIndex *int) []internal.RawRow {
	out := []internal.RawRow{}

	emit := func(contractor string, qty *float64, unit *string, unitPrice, amount *float64, warn bool) {
		*rowIndex++
		out = append(out, internal.RawRow{
			SourceDoc:   ctx.doc,
			Page:        ctx.page,
			RowIndex:    *rowIndex,
			Kind:        kindFor(contractor),
			Schedule:    ctx.schedule,
			Option:      ctx.option,
			LineItemNo:  ctx.lineItemNo,
			PayItemNo:   ctx.payItemNo,
			Description: ctx.desc,
			Contractor:  contractor,
			Quantity:    qty,
			Unit:        unit,
			UnitPrice:   unitPrice,
			Amount:      amount,
			Warning:     warn,
		})
	}

	nameParts := []string{}
	j := 0
	for j < len(block) {
		line := block[j]

		if util.IsEstimateLabel(line) {
			qty, unit := parseQtyUnit(line)
			unitPrice, amount, warn := moneyColumns(line)
			// A bare label line (wrapped column heading) carries nothing
			// worth a row.
			if qty != nil || unit != nil || unitPrice != nil || amount != nil || warn {
				emit("Engineer's Estimate", qty, unit, unitPrice, amount, warn)
			}
			nameParts = nil
			j++
			continue
		}

		if strings.Contains(line, "$") {
			prefix := strings.Trim(strings.SplitN(line, "$", 2)[0], " ,")
			prefix = stripQtyUnit(prefix)
			// A wrapped name's leading words sit in nameParts; the tail may
			// still ride on the money line.
			name := strings.Trim(strings.Join(append(nameParts, prefix), " "), " ,")

			// Corporate suffix wrapped onto the next line.
			if j+1 < len(block) && !strings.Contains(block[j+1], "$") && looksLikeSuffix(block[j+1]) {
				name = strings.Trim(name+" "+block[j+1], " ,")
				j++
			}

			qty, unit := parseQtyUnit(line)
			unitPrice, amount, warn := moneyColumns(line)
			if name != "" {
				emit(name, qty, unit, unitPrice, amount, warn)
			}
			nameParts = nil
			j++
			continue
		}

		// No money on the line: buffer it as a wrapped name fragment only
		// when it matches the recovered contractor roster or a suffix.
		lower := strings.ToLower(line)
		if line != "" && !strings.HasPrefix(lower, "schedule:") && !strings.HasPrefix(lower, "line item") && !strings.HasPrefix(lower, "pay item") {
			if matchesFragment(line, ctx.frags) || looksLikeSuffix(line) {
				nameParts = append(nameParts, line)
			}
		}
		j++
	}

	return out
}

// detectItemStart recognizes an item header line: a line-item number and a
// pay-item number on the same line, description trailing.
func detectItemStart(line string) (lineItemNo, payItemNo, desc string, ok bool) {
	li := lineItemPattern.FindStringSubmatch(line)
	pi := payItemPattern.FindStringSubmatch(line)
	if li == nil || pi == nil {
		return "", "", "", false
	}
	lineItemNo = li[1]
	payItemNo = pi[1]
	if idx := strings.Index(line, payItemNo); idx >= 0 {
		desc = util.NormalizeSpaces(line[idx+len(payItemNo):])
	}
	return lineItemNo, payItemNo, desc, true
}

// parseQtyUnit finds the first "<quantity> <unit>" token pair on a line.
func parseQtyUnit(line string) (*float64, *string) {
	tokens := strings.Fields(line)
	for i := 0; i+1 < len(tokens); i++ {
		if _, ok := unitSet[tokens[i+1]]; !ok {
			continue
		}
		if qty := util.ParseQuantity(tokens[i]); qty != nil {
			return qty, util.StringPtr(tokens[i+1])
		}
	}
	return nil, nil
}

// stripQtyUnit removes an embedded "<quantity> <unit>" pair from a name
// prefix so qty columns do not leak into contractor names.
func stripQtyUnit(prefix string) string {
	tokens := strings.Fields(prefix)
	for i := 0; i+1 < len(tokens); i++ {
		if _, ok := unitSet[tokens[i+1]]; !ok {
			continue
		}
		if util.ParseQuantity(tokens[i]) != nil {
			return util.NormalizeSpaces(strings.Join(tokens[:i], " "))
		}
	}
	// "Lump Sum" items carry the phrase instead of a numeric pair.
	if n := len(tokens); n >= 2 && strings.EqualFold(tokens[n-2], "Lump") && strings.EqualFold(tokens[n-1], "Sum") {
		return util.NormalizeSpaces(strings.Join(tokens[:n-2], " "))
	}
	return util.NormalizeSpaces(prefix)
}

// moneyColumns interprets the money tokens of a row: the last two are unit
// price and amount; a single one is the amount. A row that mentions money
// but parses none is flagged.
func moneyColumns(line string) (unitPrice, amount *float64, warn bool) {
	monies := util.FindMoney(line)
	switch len(monies) {
	case 0:
		return nil, nil, strings.Contains(line, "$")
	case 1:
		return nil, util.FloatPtr(monies[0]), false
	default:
		return util.FloatPtr(monies[len(monies)-2]), util.FloatPtr(monies[len(monies)-1]), false
	}
}

var suffixTokens = []string{"Inc.", "LLC", "Corp.", "Corporation", "Co.,", "Company", "Industries", "Const."}

func looksLikeSuffix(line string) bool {
	for _, tok := range suffixTokens {
		if strings.Contains(line, tok) {
			return true
		}
	}
	return false
}

// contractorFragments expands roster names into 2-3 word phrases so wrapped
// name lines can be recognized even when only part of the name is present.
func contractorFragments(names []string) []string {
	seen := map[string]struct{}{}
	frags := []string{}
	add := func(f string) {
		f = strings.Trim(f, " ,")
		if len(f) < 6 {
			return
		}
		if _, ok := seen[f]; ok {
			return
		}
		seen[f] = struct{}{}
		frags = append(frags, f)
	}

	for _, name := range names {
		add(name)
		parts := strings.Fields(name)
		for _, size := range []int{2, 3} {
			for i := 0; i+size <= len(parts); i++ {
				add(strings.Join(parts[i:i+size], " "))
			}
		}
	}
	return frags
}

func matchesFragment(line string, frags []string) bool {
	for _, f := range frags {
		if strings.Contains(line, f) {
			return true
		}
	}
	return false
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	parts := strings.Split(text, "\n")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = util.NormalizeSpaces(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
