package pipeline

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/xuri/excelize/v2"

	"bidtab/internal"
	"bidtab/internal/util"
)

// lineItemColumns is the canonical column order of the line-item table.
// Absent fields are written as empty cells; columns are never dropped.
var lineItemColumns = []string{
	"project_name", "report_date", "schedule", "option",
	"line_item_no", "pay_item_no", "description", "quantity", "unit",
	"unit_price", "amount", "contractor", "is_engineers_estimate",
	"extraction_warning", "source_doc", "pdf_page",
}

var bidSummaryColumns = []string{
	"project_name", "report_date", "schedule", "option",
	"contractor", "total_bid_amount", "rank", "is_engineers_estimate",
	"source_doc", "pdf_page",
}

var findingColumns = []string{"severity", "code", "affected_keys", "message"}

func WriteLineItemsCSV(path string, items []internal.LineItemRecord) error {
	return writeCSV(path, lineItemColumns, len(items), func(i int) []string {
		return lineItemRow(items[i])
	})
}

func WriteBidSummaryCSV(path string, sums []internal.BidSummaryRecord) error {
	return writeCSV(path, bidSummaryColumns, len(sums), func(i int) []string {
		s := sums[i]
		return []string{
			s.ProjectName, util.DerefString(s.ReportDate), s.Schedule, s.Option,
			s.Contractor, formatFloat(s.TotalBidAmount), strconv.Itoa(s.Rank),
			formatBool(s.IsEngineersEstimate), s.SourceDoc, strconv.Itoa(s.Page),
		}
	})
}

func WriteFindingsCSV(path string, findings []internal.Finding) error {
	return writeCSV(path, findingColumns, len(findings), func(i int) []string {
		f := findings[i]
		keys := ""
		for j, k := range f.Keys {
			if j > 0 {
				keys += ";"
			}
			keys += k
		}
		return []string{string(f.Severity), f.Code, keys, f.Message}
	})
}

func lineItemRow(r internal.LineItemRecord) []string {
	return []string{
		r.ProjectName, util.DerefString(r.ReportDate), r.Schedule, r.Option,
		r.LineItemNo, r.PayItemNo, r.Description,
		formatFloat(r.Quantity), util.DerefString(r.Unit),
		formatFloat(r.UnitPrice), formatFloat(r.Amount),
		r.Contractor, formatBool(r.IsEngineersEstimate),
		formatBool(r.Warning), r.SourceDoc, strconv.Itoa(r.Page),
	}
}

// ReadLineItemsCSV reads a canonical line-item table back, value for value
// including nulls.
func ReadLineItemsCSV(path string) ([]internal.LineItemRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: empty table", path)
	}
	if len(rows[0]) != len(lineItemColumns) {
		return nil, fmt.Errorf("%s: want %d columns, got %d", path, len(lineItemColumns), len(rows[0]))
	}

	out := make([]internal.LineItemRecord, 0, len(rows)-1)
	for i, row := range rows[1:] {
		page, err := strconv.Atoi(row[15])
		if err != nil {
			return nil, fmt.Errorf("%s: row %d: bad pdf_page %q", path, i+2, row[15])
		}
		rec := internal.LineItemRecord{
			ProjectName:         row[0],
			Schedule:            row[2],
			Option:              row[3],
			LineItemNo:          row[4],
			PayItemNo:           row[5],
			Description:         row[6],
			Contractor:          row[11],
			IsEngineersEstimate: row[12] == "1",
			Warning:             row[13] == "1",
			SourceDoc:           row[14],
			Page:                page,
		}
		if row[1] != "" {
			rec.ReportDate = util.StringPtr(row[1])
		}
		if row[8] != "" {
			rec.Unit = util.StringPtr(row[8])
		}
		rec.Quantity = parseFloatCell(row[7])
		rec.UnitPrice = parseFloatCell(row[9])
		rec.Amount = parseFloatCell(row[10])
		out = append(out, rec)
	}
	return out, nil
}

// ExportDatasetXLSX writes the dataset as one workbook: line items, bid
// summaries, and validation findings on separate sheets.
func ExportDatasetXLSX(ds *internal.Dataset, outputPath string) error {
	f := excelize.NewFile()
	items := f.GetSheetName(0)
	if err := f.SetSheetName(items, "line_items"); err != nil {
		return err
	}

	writeSheet(f, "line_items", lineItemColumns, len(ds.LineItems), func(i int) []string {
		return lineItemRow(ds.LineItems[i])
	})

	if _, err := f.NewSheet("bid_summary"); err != nil {
		return err
	}
	writeSheet(f, "bid_summary", bidSummaryColumns, len(ds.BidSummaries), func(i int) []string {
		s := ds.BidSummaries[i]
		return []string{
			s.ProjectName, util.DerefString(s.ReportDate), s.Schedule, s.Option,
			s.Contractor, formatFloat(s.TotalBidAmount), strconv.Itoa(s.Rank),
			formatBool(s.IsEngineersEstimate), s.SourceDoc, strconv.Itoa(s.Page),
		}
	})

	if _, err := f.NewSheet("findings"); err != nil {
		return err
	}
	writeSheet(f, "findings", findingColumns, len(ds.Findings), func(i int) []string {
		fd := ds.Findings[i]
		keys := ""
		for j, k := range fd.Keys {
			if j > 0 {
				keys += ";"
			}
			keys += k
		}
		return []string{string(fd.Severity), fd.Code, keys, fd.Message}
	})

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

func writeSheet(f *excelize.File, sheet string, headers []string, n int, row func(int) []string) {
	for c, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(c+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
	for i := 0; i < n; i++ {
		for c, v := range row(i) {
			cell, _ := excelize.CoordinatesToCellName(c+1, i+2)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}
}

func writeCSV(path string, headers []string, n int, row func(int) []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(headers); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if err := w.Write(row(i)); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatBool(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

func parseFloatCell(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return util.FloatPtr(v)
}
