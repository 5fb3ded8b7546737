package util

import "testing"

func TestCanonicalContractor(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{name: "suffix period", input: "Acme, Inc.", want: "ACME INC"},
		{name: "suffix spelled out", input: "Acme Incorporated", want: "ACME INC"},
		{name: "already canonical", input: "ACME INC", want: "ACME INC"},
		{name: "corp variant", input: "Central Southern Construction Corp.", want: "CENTRAL SOUTHERN CONSTRUCTION CORP"},
		{name: "const abbrev", input: "Blue Ridge Const. Co.", want: "BLUE RIDGE CONSTRUCTION CO"},
		{name: "estimate", input: "Engineer's Estimate", want: EstimateContractor},
		{name: "estimate spacing", input: "  engineers   ESTIMATE ", want: EstimateContractor},
		{name: "empty", input: "", want: UnknownContractor},
		{name: "punctuation only", input: " ,. ", want: UnknownContractor},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := CanonicalContractor(tc.input)
			if got != tc.want {
				t.Fatalf("got %q want %q", got, tc.want)
			}
		})
	}
}

func TestCanonicalContractorIdempotent(t *testing.T) {
	inputs := []string{
		"Acme, Inc.", "Central Southern Construction Corp.", "Engineer's Estimate",
		"", "W. C. English Incorporated", "Branch Civil, LLC", "weird ~!@# name",
	}
	for _, in := range inputs {
		once := CanonicalContractor(in)
		twice := CanonicalContractor(once)
		if once != twice {
			t.Fatalf("not idempotent for %q: %q != %q", in, once, twice)
		}
	}
}

func TestIsEstimateLabel(t *testing.T) {
	if !IsEstimateLabel("Engineer's  Estimate") {
		t.Fatal("expected estimate label match")
	}
	if !IsEstimateLabel("ENGINEERS ESTIMATE") {
		t.Fatal("expected estimate label match")
	}
	if IsEstimateLabel("Acme, Inc.") {
		t.Fatal("unexpected estimate label match")
	}
}
