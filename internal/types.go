package internal

import "strings"

type RowKind string

const (
	KindEngineersEstimate RowKind = "ENGINEERS_ESTIMATE"
	KindBidder            RowKind = "BIDDER"
)

type Severity string

const (
	SeverityHard    Severity = "hard"
	SeverityWarning Severity = "warning"
)

// RawRow is one physical table row pulled out of one PDF page, before
// fill-down and merging. String fields hold whatever the extractor saw;
// numeric fields are nil when the cell was absent or unparseable.
type RawRow struct {
	SourceDoc   string
	Page        int
	RowIndex    int
	Kind        RowKind
	Schedule    string
	Option      string
	LineItemNo  string
	PayItemNo   string
	Description string
	Contractor  string
	Quantity    *float64
	Unit        *string
	UnitPrice   *float64
	Amount      *float64
	Warning     bool
}

// DocumentRows is everything one extractor run recovered from one PDF.
type DocumentRows struct {
	SourceDoc   string
	Format      string
	ProjectName string
	ReportDate  *string
	Contractors []string
	Rows        []RawRow
	Summaries   []BidSummaryRecord
	Warnings    []string
}

// LineItemRecord is one bidder's (or the engineer's) price for one pay item
// on one project/report.
type LineItemRecord struct {
	ProjectName         string
	ReportDate          *string
	Schedule            string
	Option              string
	LineItemNo          string
	PayItemNo           string
	Description         string
	Quantity            *float64
	Unit                *string
	UnitPrice           *float64
	Amount              *float64
	Contractor          string
	IsEngineersEstimate bool
	Warning             bool
	SourceDoc           string
	Page                int
}

// LineItemKey is the canonical identity of a line-item record; contractor
// names must be canonicalized before keys are compared.
type LineItemKey struct {
	ProjectName         string
	ReportDate          string
	Schedule            string
	Option              string
	LineItemNo          string
	Contractor          string
	IsEngineersEstimate bool
}

func (r LineItemRecord) Key() LineItemKey {
	date := ""
	if r.ReportDate != nil {
		date = *r.ReportDate
	}
	return LineItemKey{
		ProjectName:         r.ProjectName,
		ReportDate:          date,
		Schedule:            r.Schedule,
		Option:              r.Option,
		LineItemNo:          r.LineItemNo,
		Contractor:          r.Contractor,
		IsEngineersEstimate: r.IsEngineersEstimate,
	}
}

func (k LineItemKey) String() string {
	est := "0"
	if k.IsEngineersEstimate {
		est = "1"
	}
	return strings.Join([]string{k.ProjectName, k.ReportDate, k.Schedule, k.Option, k.LineItemNo, k.Contractor, est}, "|")
}

// BidSummaryRecord is one contractor's total bid for a project/report.
// Rank is 1 for the lowest non-estimate total; the estimate row carries 0.
type BidSummaryRecord struct {
	ProjectName         string
	ReportDate          *string
	Schedule            string
	Option              string
	Contractor          string
	TotalBidAmount      *float64
	Rank                int
	IsEngineersEstimate bool
	SourceDoc           string
	Page                int
}

// MergeConflict records two sources disagreeing on a non-null field for the
// same canonical key. Conflicted keys are excluded from the accepted table
// until the operator resolves them.
type MergeConflict struct {
	Key      LineItemKey
	Field    string
	Left     string
	Right    string
	LeftDoc  string
	RightDoc string
}

type Finding struct {
	Severity Severity
	Code     string
	Keys     []string
	Message  string
}

// DocumentProvenance records what happened to one source PDF during a run.
type DocumentProvenance struct {
	SourceDoc   string
	Format      string
	ProjectName string
	ReportDate  *string
	Rows        int
	Warnings    []string
	Err         string
}

// Dataset is the output of one full pipeline run. It is rebuilt from raw
// inputs every run; there is no incremental update path.
type Dataset struct {
	LineItems    []LineItemRecord
	BidSummaries []BidSummaryRecord
	Conflicts    []MergeConflict
	Documents    []DocumentProvenance
	Findings     []Finding
}

// Accepted reports whether the dataset passed every hard validation gate.
func (d *Dataset) Accepted() bool {
	for _, f := range d.Findings {
		if f.Severity == SeverityHard {
			return false
		}
	}
	return true
}
