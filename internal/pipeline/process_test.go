package pipeline

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"bidtab/internal"
	"bidtab/internal/util"
)

func TestAssembleDataset(t *testing.T) {
	est := internal.RawRow{
		SourceDoc: "tab.pdf", Page: 3, Kind: internal.KindEngineersEstimate,
		Schedule: "A", LineItemNo: "A0200", PayItemNo: "15101-0000",
		Description: "MOBILIZATION", Contractor: "Engineer's Estimate",
		Quantity: util.FloatPtr(1), Unit: util.StringPtr("LPSM"),
		UnitPrice: util.FloatPtr(100000), Amount: util.FloatPtr(100000),
	}
	bid := internal.RawRow{
		SourceDoc: "tab.pdf", Page: 3, Kind: internal.KindBidder,
		Schedule: "A", LineItemNo: "A0200", PayItemNo: "15101-0000",
		Description: "MOBILIZATION", Contractor: "Acme Construction, Inc.",
		UnitPrice: util.FloatPtr(95000), Amount: util.FloatPtr(95000),
	}
	doc := internal.DocumentRows{
		SourceDoc:   "tab.pdf",
		Format:      "b",
		ProjectName: "RUNWAY 5-23 REHABILITATION",
		ReportDate:  util.StringPtr("2019-06-12"),
		Contractors: []string{"Acme Construction, Inc."},
		Rows:        FillDown([]internal.RawRow{est, bid}),
		Summaries: []internal.BidSummaryRecord{
			{ProjectName: "RUNWAY 5-23 REHABILITATION", Schedule: "A", Contractor: "Acme Construction, Inc.", TotalBidAmount: util.FloatPtr(95000), SourceDoc: "tab.pdf", Page: 9},
		},
	}

	cfg := testConfig()
	ds := AssembleDataset([]internal.DocumentRows{doc}, cfg)

	if len(ds.LineItems) != 2 {
		t.Fatalf("items=%d", len(ds.LineItems))
	}
	for _, r := range ds.LineItems {
		if r.Contractor == util.EstimateContractor {
			continue
		}
		if r.Contractor != "ACME CONSTRUCTION INC" {
			t.Fatalf("contractor=%q", r.Contractor)
		}
		if r.Quantity == nil || *r.Quantity != 1 {
			t.Fatalf("fill-down not applied: %v", r.Quantity)
		}
	}

	if len(ds.BidSummaries) != 1 {
		t.Fatalf("summaries=%d", len(ds.BidSummaries))
	}
	if ds.BidSummaries[0].Rank != 1 {
		t.Fatalf("rank=%d", ds.BidSummaries[0].Rank)
	}

	if len(ds.Documents) != 1 || ds.Documents[0].Rows != 2 {
		t.Fatalf("provenance=%+v", ds.Documents)
	}

	if !ds.Accepted() {
		t.Fatalf("findings=%+v", ds.Findings)
	}
}

func TestExportDocumentCSVUsesResolvedDate(t *testing.T) {
	tmp := t.TempDir()
	doc := internal.DocumentRows{
		SourceDoc:   "tab.pdf",
		Format:      "b",
		ProjectName: "RUNWAY 5-23 REHABILITATION",
		ReportDate:  util.StringPtr("2019-06-12"),
		Rows: []internal.RawRow{
			{
				SourceDoc: "tab.pdf", Page: 3, Kind: internal.KindBidder,
				Schedule: "A", LineItemNo: "A0200", PayItemNo: "15101-0000",
				Contractor: "Acme Construction, Inc.",
				Amount:     util.FloatPtr(95000),
			},
		},
		Summaries: []internal.BidSummaryRecord{
			// Raw spelling from the summary page, no date at all.
			{ProjectName: "RUNWAY 5-23 REHABILITATION", Schedule: "A", Contractor: "Acme Construction, Inc.", TotalBidAmount: util.FloatPtr(95000), SourceDoc: "tab.pdf", Page: 9},
		},
	}

	paths, err := ExportDocumentCSV(doc, tmp)
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 2 {
		t.Fatalf("paths=%v", paths)
	}

	f, err := os.Open(filepath.Join(tmp, "tab_bids_summary.csv"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows=%d", len(rows))
	}
	if rows[1][1] != "2019-06-12" {
		t.Fatalf("summary report_date=%q", rows[1][1])
	}

	items, err := ReadLineItemsCSV(paths[0])
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || util.DerefString(items[0].ReportDate) != "2019-06-12" {
		t.Fatalf("items=%+v", items)
	}
}

func TestAssembleDatasetRecordsFindings(t *testing.T) {
	bid := internal.RawRow{
		SourceDoc: "tab.pdf", Page: 3, Kind: internal.KindBidder,
		Schedule: "A", LineItemNo: "A0200",
		Contractor: "Acme Construction, Inc.",
	}
	doc := internal.DocumentRows{
		SourceDoc: "tab.pdf", Format: "b", ProjectName: "P",
		Rows: []internal.RawRow{bid},
	}

	ds := AssembleDataset([]internal.DocumentRows{doc}, testConfig())
	if ds.Accepted() {
		t.Fatal("missing pay item and prices must block acceptance")
	}
}
