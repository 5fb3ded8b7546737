package pipeline

import (
	"math"
	"reflect"
	"testing"

	"bidtab/internal"
	"bidtab/internal/util"
)

func TestFillDown(t *testing.T) {
	rows := []internal.RawRow{
		{
			Kind: internal.KindEngineersEstimate, Schedule: "A", LineItemNo: "A0300",
			Contractor: "Engineer's Estimate",
			Quantity:   util.FloatPtr(100), Unit: util.StringPtr("LF"),
			UnitPrice: util.FloatPtr(10), Amount: util.FloatPtr(1000),
		},
		{
			Kind: internal.KindBidder, Schedule: "A", LineItemNo: "A0300",
			Contractor: "Acme Construction Inc.",
			Amount:     util.FloatPtr(1200),
		},
		{
			Kind: internal.KindBidder, Schedule: "A", LineItemNo: "A0300",
			Contractor: "Beta Builders LLC",
			Quantity:   util.FloatPtr(90), Unit: util.StringPtr("LNFT"),
			Amount: util.FloatPtr(900),
		},
		{
			Kind: internal.KindBidder, Schedule: "B", LineItemNo: "B0100",
			Contractor: "Acme Construction Inc.",
			Amount:     util.FloatPtr(500),
		},
	}

	out := FillDown(rows)

	acme := out[1]
	if acme.Quantity == nil || *acme.Quantity != 100 {
		t.Fatalf("quantity not filled: %v", acme.Quantity)
	}
	if acme.Unit == nil || *acme.Unit != "LF" {
		t.Fatalf("unit not filled: %v", acme.Unit)
	}

	// A bidder row's own values are never overwritten.
	beta := out[2]
	if *beta.Quantity != 90 || *beta.Unit != "LNFT" {
		t.Fatalf("own values overwritten: %+v", beta)
	}

	// No estimate row in the group: untouched.
	if out[3].Quantity != nil || out[3].Unit != nil {
		t.Fatalf("filled without an estimate row: %+v", out[3])
	}

	// Estimate row itself is untouched.
	if !reflect.DeepEqual(out[0], rows[0]) {
		t.Fatalf("estimate row mutated: %+v", out[0])
	}
}

func TestFillDownDerivesAmount(t *testing.T) {
	rows := []internal.RawRow{
		{
			Kind: internal.KindEngineersEstimate, Schedule: "1", Option: "0", LineItemNo: "5",
			Contractor: "Engineer's Estimate",
			Quantity:   util.FloatPtr(100), Unit: util.StringPtr("LF"),
		},
		{
			Kind: internal.KindBidder, Schedule: "1", Option: "0", LineItemNo: "5",
			Contractor: "Acme",
			UnitPrice:  util.FloatPtr(2.50),
		},
	}

	out := FillDown(rows)

	acme := out[1]
	if acme.Quantity == nil || *acme.Quantity != 100 {
		t.Fatalf("quantity=%v", acme.Quantity)
	}
	if acme.Unit == nil || *acme.Unit != "LF" {
		t.Fatalf("unit=%v", acme.Unit)
	}
	if acme.Amount == nil {
		t.Fatal("amount not derived from quantity*unit_price")
	}
	if math.Abs(*acme.Amount-250.00) > 0.01 {
		t.Fatalf("amount=%v", *acme.Amount)
	}
}

func TestFillDownKeepsStatedAmount(t *testing.T) {
	rows := []internal.RawRow{
		{
			Kind: internal.KindBidder, Schedule: "A", LineItemNo: "A0300",
			Contractor: "Acme Construction Inc.",
			Quantity:   util.FloatPtr(10), UnitPrice: util.FloatPtr(5),
			Amount: util.FloatPtr(47),
		},
	}
	out := FillDown(rows)
	if *out[0].Amount != 47 {
		t.Fatalf("stated amount overwritten: %v", *out[0].Amount)
	}
}

func TestFillDownIdempotent(t *testing.T) {
	rows := []internal.RawRow{
		{
			Kind: internal.KindEngineersEstimate, Schedule: "A", LineItemNo: "A0300",
			Contractor: "Engineer's Estimate",
			Quantity:   util.FloatPtr(100), Unit: util.StringPtr("LF"),
		},
		{
			Kind: internal.KindBidder, Schedule: "A", LineItemNo: "A0300",
			Contractor: "Acme Construction Inc.",
			Amount:     util.FloatPtr(1200),
		},
	}

	once := FillDown(rows)
	twice := FillDown(once)
	if !reflect.DeepEqual(once, twice) {
		t.Fatal("fill-down is not idempotent")
	}
}
