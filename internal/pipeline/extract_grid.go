package pipeline

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	pdf "github.com/ledongthuc/pdf"

	"bidtab/internal"
	"bidtab/internal/util"
)

// GridExtractor handles format A: a ruled table with eight columns
// (Line Item, Pay Item, Description, Contractor, Quantity, Unit, Unit
// Price, Amount), one bidder per physical row. Wrapped rows leave the
// leading columns empty and are carried forward from the row above.
type GridExtractor struct{}

func (e *GridExtractor) Format() Format { return FormatGrid }

func (e *GridExtractor) Extract(path string) (internal.DocumentRows, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return internal.DocumentRows{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	state := newGridState(filepath.Base(path))
	pages := make([]string, 0, r.NumPage())

	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			text = ""
		}
		pages = append(pages, text)
		state.schedule, state.option = pageContext(text, state.schedule, state.option)

		rows, err := p.GetTextByRow()
		if err != nil {
			continue
		}
		for _, row := range rows {
			state.consume(i, assembleCells(row.Content))
		}
	}

	if !state.anchored {
		return internal.DocumentRows{}, fmt.Errorf("%s: format a: %w", path, ErrUnrecognizedLayout)
	}

	return buildDocument(path, FormatGrid, pages, state.rows), nil
}

// gridCell is one table cell reassembled from positioned text fragments.
type gridCell struct {
	X    float64
	Text string
}

const (
	columnGap = 6.0
	wordGap   = 1.5
	gridCols  = 8
)

// assembleCells merges the positioned fragments of one text row into cells.
// The pdf library reports one fragment per text-show operation, often a
// single glyph, so fragments are joined until a horizontal gap wider than
// columnGap marks the next column.
func assembleCells(frags []pdf.Text) []gridCell {
	cells := []gridCell{}
	var cur *gridCell
	end := 0.0

	for _, t := range frags {
		if t.S == "" {
			continue
		}
		gap := t.X - end
		switch {
		case cur == nil || gap > columnGap:
			cells = append(cells, gridCell{X: t.X, Text: t.S})
			cur = &cells[len(cells)-1]
		case gap > wordGap:
			cur.Text += " " + t.S
		default:
			cur.Text += t.S
		}
		end = t.X + t.W
		if t.W == 0 {
			end = t.X
		}
	}

	for i := range cells {
		cells[i].Text = util.NormalizeSpaces(cells[i].Text)
	}
	return cells
}

var footerNoisePatterns = []*regexp.Regexp{
	regexp.MustCompile(`Report Generated on .*? Page \d+ of \d+`),
	regexp.MustCompile(`Generated by\s*:\s*.*`),
	regexp.MustCompile(`\[Timezone:.*?\]`),
}

func cleanCell(s string) string {
	for _, pat := range footerNoisePatterns {
		s = pat.ReplaceAllString(s, "")
	}
	return util.NormalizeSpaces(s)
}

type gridState struct {
	doc      string
	anchored bool
	bounds   []float64

	schedule string
	option   string

	curLineItem string
	curPayItem  string
	curDesc     string

	rowIndex int
	rows     []internal.RawRow
}

func newGridState(doc string) *gridState {
	return &gridState{doc: doc}
}

// consume advances the parser by one physical table row.
func (s *gridState) consume(page int, cells []gridCell) {
	if len(cells) == 0 {
		return
	}

	joined := strings.Builder{}
	for _, c := range cells {
		joined.WriteString(c.Text)
		joined.WriteString(" ")
	}
	rowText := joined.String()

	if strings.Contains(rowText, "Line Item") && strings.Contains(rowText, "Pay Item") {
		if len(cells) >= gridCols {
			s.bounds = make([]float64, gridCols)
			for i := 0; i < gridCols; i++ {
				s.bounds[i] = cells[i].X
			}
			s.anchored = true
		}
		return
	}
	if s.bounds == nil {
		return
	}

	cols := s.assignColumns(cells)

	lineItemNo := firstNonEmpty(cols[0], s.curLineItem)
	payItemNo := firstNonEmpty(cols[1], s.curPayItem)
	desc := firstNonEmpty(cols[2], s.curDesc)
	contractor := cols[3]

	if lineItemNo == "" || payItemNo == "" || contractor == "" {
		// Wrapped or continuation row: remember whatever identifying
		// columns it does carry, emit nothing.
		if cols[0] != "" {
			s.curLineItem = cols[0]
		}
		if cols[1] != "" {
			s.curPayItem = cols[1]
		}
		if cols[2] != "" {
			s.curDesc = cols[2]
		}
		return
	}

	warn := false
	qty := parseCell(cols[4], util.ParseQuantity, &warn)
	unitPrice := parseCell(cols[6], util.ParseMoney, &warn)
	amount := parseCell(cols[7], util.ParseMoney, &warn)
	var unit *string
	if cols[5] != "" {
		unit = util.StringPtr(cols[5])
	}

	if unitPrice == nil && amount == nil && cols[6] == "" && cols[7] == "" {
		return
	}

	s.rowIndex++
	s.rows = append(s.rows, internal.RawRow{
		SourceDoc:   s.doc,
		Page:        page,
		RowIndex:    s.rowIndex,
		Kind:        kindFor(contractor),
		Schedule:    scheduleFromLineItem(s.schedule, lineItemNo),
		Option:      s.option,
		LineItemNo:  lineItemNo,
		PayItemNo:   payItemNo,
		Description: desc,
		Contractor:  contractor,
		Quantity:    qty,
		Unit:        unit,
		UnitPrice:   unitPrice,
		Amount:      amount,
		Warning:     warn,
	})

	s.curLineItem = lineItemNo
	s.curPayItem = payItemNo
	s.curDesc = desc
}

// assignColumns maps reassembled cells onto the eight anchored columns.
// A cell belongs to the rightmost column whose left edge is at or before
// the cell's own left edge (small tolerance for ragged alignment).
func (s *gridState) assignColumns(cells []gridCell) [gridCols]string {
	var cols [gridCols]string
	for _, c := range cells {
		text := cleanCell(c.Text)
		if text == "" {
			continue
		}
		col := 0
		for j := range s.bounds {
			if s.bounds[j] <= c.X+2.0 {
				col = j
			}
		}
		if cols[col] == "" {
			cols[col] = text
		} else {
			cols[col] += " " + text
		}
	}
	return cols
}

// parseCell parses a numeric cell, flagging the row instead of failing the
// document when a non-empty cell will not parse.
func parseCell(cell string, parse func(string) *float64, warn *bool) *float64 {
	if cell == "" {
		return nil
	}
	v := parse(cell)
	if v == nil {
		*warn = true
	}
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
