package pipeline

import "testing"

func TestFindReportDateLabeled(t *testing.T) {
	date, ambiguous := findReportDate("Report Date: 6/12/2019\nsome other text 1/1/2015\n")
	if date == nil || *date != "2019-06-12" {
		t.Fatalf("date=%v", date)
	}
	if ambiguous {
		t.Fatal("single labeled date reported ambiguous")
	}
}

func TestFindReportDateGenericFallback(t *testing.T) {
	date, ambiguous := findReportDate("Bid opening held 6/12/2019 at the county office\n")
	if date == nil || *date != "2019-06-12" {
		t.Fatalf("date=%v", date)
	}
	if ambiguous {
		t.Fatal("ambiguous")
	}
}

func TestFindReportDateAmbiguousPicksEarliest(t *testing.T) {
	date, ambiguous := findReportDate("Printed 7/01/2019\nOpened 6/12/2019\n")
	if date == nil || *date != "2019-06-12" {
		t.Fatalf("date=%v", date)
	}
	if !ambiguous {
		t.Fatal("distinct dates not flagged ambiguous")
	}
}

func TestFindReportDateNone(t *testing.T) {
	date, ambiguous := findReportDate("no dates here\n")
	if date != nil || ambiguous {
		t.Fatalf("date=%v ambiguous=%v", date, ambiguous)
	}
}

func TestCanonicalDate(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"6/12/2019", "2019-06-12"},
		{"2019-06-12", "2019-06-12"},
		{"June 12, 2019", "2019-06-12"},
	}
	for _, c := range cases {
		got := CanonicalDate(c.in)
		if got == nil || *got != c.want {
			t.Fatalf("CanonicalDate(%q)=%v want %q", c.in, got, c.want)
		}
	}
	if CanonicalDate("not a date") != nil {
		t.Fatal("junk parsed as date")
	}
}
