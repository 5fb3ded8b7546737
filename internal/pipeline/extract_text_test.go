package pipeline

import (
	"testing"

	"bidtab/internal"
)

const textPage = `Project Name: RUNWAY 5-23 REHABILITATION
Report Date: 6/12/2019
Schedule: A
A0200 15101-0000 MOBILIZATION
Engineer's Estimate 1 LPSM $100,000.00 $100,000.00
Acme Construction Inc. Lump Sum $95,000.00
Central Southern
Construction Corp. $100,000.00
`

func TestParseTextPages(t *testing.T) {
	rows := parseTextPages("tab.pdf", []string{textPage}, []string{"Central Southern Construction Corp."})
	if len(rows) != 3 {
		t.Fatalf("rows=%d: %+v", len(rows), rows)
	}

	est := rows[0]
	if est.Kind != internal.KindEngineersEstimate {
		t.Fatalf("kind=%s", est.Kind)
	}
	if est.Quantity == nil || *est.Quantity != 1 {
		t.Fatalf("qty=%v", est.Quantity)
	}
	if est.Unit == nil || *est.Unit != "LPSM" {
		t.Fatalf("unit=%v", est.Unit)
	}
	if est.UnitPrice == nil || *est.UnitPrice != 100000 {
		t.Fatalf("unitPrice=%v", est.UnitPrice)
	}
	if est.LineItemNo != "A0200" || est.PayItemNo != "15101-0000" || est.Description != "MOBILIZATION" {
		t.Fatalf("item header not applied: %+v", est)
	}

	acme := rows[1]
	if acme.Contractor != "Acme Construction Inc." {
		t.Fatalf("contractor=%q", acme.Contractor)
	}
	if acme.Amount == nil || *acme.Amount != 95000 {
		t.Fatalf("amount=%v", acme.Amount)
	}
	if acme.Quantity != nil {
		t.Fatalf("bidder row should not carry quantity before fill-down: %v", acme.Quantity)
	}

	wrapped := rows[2]
	if wrapped.Contractor != "Central Southern Construction Corp." {
		t.Fatalf("wrapped name=%q", wrapped.Contractor)
	}
	if wrapped.Amount == nil || *wrapped.Amount != 100000 {
		t.Fatalf("amount=%v", wrapped.Amount)
	}
}

func TestDetectItemStart(t *testing.T) {
	li, pi, desc, ok := detectItemStart("A0300 15201-1000 UNCLASSIFIED EXCAVATION")
	if !ok {
		t.Fatal("not detected")
	}
	if li != "A0300" || pi != "15201-1000" || desc != "UNCLASSIFIED EXCAVATION" {
		t.Fatalf("li=%q pi=%q desc=%q", li, pi, desc)
	}

	if _, _, _, ok := detectItemStart("Acme Construction Inc. $95,000.00"); ok {
		t.Fatal("contractor line detected as item start")
	}
}

func TestStripQtyUnit(t *testing.T) {
	if got := stripQtyUnit("Acme Construction Inc. 500 CUYD"); got != "Acme Construction Inc." {
		t.Fatalf("got %q", got)
	}
	if got := stripQtyUnit("Acme Construction Inc. Lump Sum"); got != "Acme Construction Inc." {
		t.Fatalf("got %q", got)
	}
	if got := stripQtyUnit("Acme Construction Inc."); got != "Acme Construction Inc." {
		t.Fatalf("got %q", got)
	}
}

func TestMoneyColumns(t *testing.T) {
	up, amt, warn := moneyColumns("Engineer's Estimate 500 CUYD $100.00 $50,000.00")
	if warn {
		t.Fatal("unexpected warn")
	}
	if up == nil || *up != 100 || amt == nil || *amt != 50000 {
		t.Fatalf("up=%v amt=%v", up, amt)
	}

	up, amt, warn = moneyColumns("Acme Construction Inc. $95,000.00")
	if up != nil || amt == nil || *amt != 95000 || warn {
		t.Fatalf("up=%v amt=%v warn=%v", up, amt, warn)
	}

	_, _, warn = moneyColumns("Acme Construction Inc. $garbage")
	if !warn {
		t.Fatal("money mention without parseable value should warn")
	}
}
