package pipeline

import (
	"regexp"
	"sort"
	"time"

	"github.com/araddon/dateparse"

	"bidtab/internal"
	"bidtab/internal/util"
)

const canonicalDateLayout = "2006-01-02"

// DateAmbiguous is the provenance warning attached when more than one
// distinct date was found and the earliest had to be chosen.
const DateAmbiguous = "date_ambiguous"

var genericDatePattern = regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{4}\b`)

// ResolveReportDate recovers a report date for a document whose header
// metadata carried none, by re-scanning the first pages of the source PDF
// at path. The labeled patterns win when present; otherwise any date token
// in the header area counts. The earliest distinct date is adopted for
// every row of the document; finding several distinct dates is an
// ambiguity warning, not an error.
func ResolveReportDate(doc *internal.DocumentRows, path string, scanPages int) {
	if doc.ReportDate != nil {
		if norm := CanonicalDate(*doc.ReportDate); norm != nil {
			doc.ReportDate = norm
		}
		return
	}

	pages, err := readPlainPages(path)
	if err != nil {
		return
	}
	if len(pages) > scanPages {
		pages = pages[:scanPages]
	}

	text := ""
	for _, p := range pages {
		text += p + "\n"
	}

	date, ambiguous := findReportDate(text)
	if date != nil {
		doc.ReportDate = date
	}
	if ambiguous {
		doc.Warnings = append(doc.Warnings, DateAmbiguous)
	}
}

// findReportDate scans header text for date candidates and returns the
// earliest, canonicalized, plus whether distinct dates disagreed.
func findReportDate(text string) (*string, bool) {
	candidates := []string{}
	for _, m := range reportDatePattern.FindAllStringSubmatch(text, -1) {
		candidates = append(candidates, m[1])
	}
	for _, m := range reportGeneratedPattern.FindAllStringSubmatch(text, -1) {
		candidates = append(candidates, m[1])
	}
	if len(candidates) == 0 {
		candidates = genericDatePattern.FindAllString(text, -1)
	}

	distinct := map[string]time.Time{}
	for _, c := range candidates {
		t, err := dateparse.ParseAny(c)
		if err != nil {
			continue
		}
		distinct[t.Format(canonicalDateLayout)] = t
	}
	if len(distinct) == 0 {
		return nil, false
	}

	keys := make([]string, 0, len(distinct))
	for k := range distinct {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return util.StringPtr(keys[0]), len(keys) > 1
}

// CanonicalDate normalizes any parseable date spelling to YYYY-MM-DD.
// Returns nil when the text is not a date.
func CanonicalDate(s string) *string {
	t, err := dateparse.ParseAny(s)
	if err != nil {
		return nil
	}
	return util.StringPtr(t.Format(canonicalDateLayout))
}
