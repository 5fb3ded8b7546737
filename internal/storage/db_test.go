package storage

import (
	"path/filepath"
	"reflect"
	"testing"

	"bidtab/internal"
	"bidtab/internal/util"
)

func testDataset() *internal.Dataset {
	return &internal.Dataset{
		LineItems: []internal.LineItemRecord{
			{
				ProjectName: "P", ReportDate: util.StringPtr("2019-06-12"),
				Schedule: "A", LineItemNo: "A0200", PayItemNo: "15101-0000",
				Description: "MOBILIZATION", Contractor: "ACME INC",
				Quantity: util.FloatPtr(1), Unit: util.StringPtr("LPSM"),
				UnitPrice: util.FloatPtr(95000), Amount: util.FloatPtr(95000),
				SourceDoc: "tab.pdf", Page: 3,
			},
			{
				ProjectName: "P", Schedule: "A", LineItemNo: "A0300",
				PayItemNo: "15201-1000", Contractor: "BETA LLC",
				Warning:   true,
				SourceDoc: "tab.pdf", Page: 4,
			},
		},
		BidSummaries: []internal.BidSummaryRecord{
			{ProjectName: "P", Schedule: "A", Contractor: "ACME INC", TotalBidAmount: util.FloatPtr(95000), Rank: 1, SourceDoc: "tab.pdf", Page: 9},
		},
		Conflicts: []internal.MergeConflict{
			{
				Key: internal.LineItemKey{
					ProjectName: "P", ReportDate: "2019-06-12", Schedule: "A",
					LineItemNo: "A0200", Contractor: "ACME INC",
				},
				Field: "unit_price", Left: "95000", Right: "97000",
				LeftDoc: "tab.pdf", RightDoc: "tab2.pdf",
			},
		},
		Findings: []internal.Finding{
			{Severity: internal.SeverityWarning, Code: "ESTIMATE_COUNT", Keys: []string{"P||A||A0200"}, Message: "line item has 0 engineer's estimate rows, want 1"},
		},
		Documents: []internal.DocumentProvenance{
			{SourceDoc: "tab.pdf", Format: "a", ProjectName: "P", ReportDate: util.StringPtr("2019-06-12"), Rows: 2, Warnings: []string{"date_ambiguous"}},
		},
	}
}

func TestReplaceDatasetRoundTrip(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "bidtab.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	ds := testDataset()
	if err := db.ReplaceDataset(ds); err != nil {
		t.Fatal(err)
	}

	items, err := db.ListLineItems()
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Fatalf("items=%d", len(items))
	}
	byNo := map[string]internal.LineItemRecord{}
	for _, r := range items {
		byNo[r.LineItemNo] = r
	}
	first := byNo["A0200"]
	if first.Contractor != "ACME INC" {
		t.Fatalf("first=%+v", first)
	}
	if first.Quantity == nil || *first.Quantity != 1 {
		t.Fatalf("quantity=%v", first.Quantity)
	}
	second := byNo["A0300"]
	if second.Quantity != nil || second.Unit != nil || second.Amount != nil {
		t.Fatalf("nulls lost: %+v", second)
	}
	if !second.Warning {
		t.Fatal("warning flag lost")
	}

	sums, err := db.ListBidSummaries()
	if err != nil {
		t.Fatal(err)
	}
	if len(sums) != 1 || sums[0].Rank != 1 {
		t.Fatalf("sums=%+v", sums)
	}

	conflicts, err := db.ListConflicts()
	if err != nil {
		t.Fatal(err)
	}
	if len(conflicts) != 1 {
		t.Fatalf("conflicts=%d", len(conflicts))
	}
	if !reflect.DeepEqual(conflicts[0], ds.Conflicts[0]) {
		t.Fatalf("conflict round trip mismatch:\ngot  %+v\nwant %+v", conflicts[0], ds.Conflicts[0])
	}

	findings, err := db.ListFindings()
	if err != nil {
		t.Fatal(err)
	}
	if len(findings) != 1 || findings[0].Code != "ESTIMATE_COUNT" {
		t.Fatalf("findings=%+v", findings)
	}
	if len(findings[0].Keys) != 1 {
		t.Fatalf("keys=%v", findings[0].Keys)
	}

	doc, err := db.GetDocument("tab.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if doc == nil || doc.Rows != 2 || len(doc.Warnings) != 1 {
		t.Fatalf("doc=%+v", doc)
	}
}

func TestReplaceDatasetIsIdempotent(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "bidtab.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	ds := testDataset()
	if err := db.ReplaceDataset(ds); err != nil {
		t.Fatal(err)
	}
	if err := db.ReplaceDataset(ds); err != nil {
		t.Fatal(err)
	}

	items, err := db.ListLineItems()
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Fatalf("rebuild duplicated rows: items=%d", len(items))
	}
}

func TestInsertRun(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "bidtab.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	if err := db.InsertRun(testDataset()); err != nil {
		t.Fatal(err)
	}
}
