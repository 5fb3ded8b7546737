package pipeline

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	pdf "github.com/ledongthuc/pdf"

	"bidtab/internal"
	"bidtab/internal/util"
)

// ErrUnrecognizedLayout means the expected header anchors were never found:
// either the wrong extractor was chosen for the document or the PDF is
// corrupt. Partial output is never emitted in that case.
var ErrUnrecognizedLayout = errors.New("unrecognized table layout")

type Format string

const (
	// FormatGrid is the ruled eight-column layout, one bidder per row.
	FormatGrid Format = "a"
	// FormatText is the text-block layout: an item header line followed by
	// one line per contractor.
	FormatText Format = "b"
)

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "a", "grid":
		return FormatGrid, nil
	case "b", "text":
		return FormatText, nil
	}
	return "", fmt.Errorf("unknown format %q (want a|b)", s)
}

// TableExtractor decodes the bid tables of one PDF document into raw rows.
// The variant is chosen by operator classification, never auto-detected:
// running the wrong variant fails with ErrUnrecognizedLayout instead of
// guessing.
type TableExtractor interface {
	Format() Format
	Extract(path string) (internal.DocumentRows, error)
}

func ForFormat(f Format) (TableExtractor, error) {
	switch f {
	case FormatGrid:
		return &GridExtractor{}, nil
	case FormatText:
		return &TextExtractor{}, nil
	}
	return nil, fmt.Errorf("unsupported format: %q", f)
}

var (
	lineItemPattern = regexp.MustCompile(`\b([A-Z]\d{3,4})\b`)
	payItemPattern  = regexp.MustCompile(`\b(\d{5}-\d{4})\b`)
	schedulePattern = regexp.MustCompile(`Schedule:\s*([A-Z])\b`)
	optionPattern   = regexp.MustCompile(`Option:\s*([A-Z]+)\b`)

	reportDatePattern      = regexp.MustCompile(`(?i)Report Date:\s*([0-9/]+)`)
	reportGeneratedPattern = regexp.MustCompile(`(?i)Report Generated on\s*([0-9/]+)`)

	projectNamePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Project Name:\s*(.+?)\n(?:Contractor|Division|Schedule|Report|Project No)`),
		regexp.MustCompile(`(?i)Project Name:\s*(.+?)\s+Contractor Responsive\?`),
		regexp.MustCompile(`(?i)Project Name:\s*(.+)`),
	}
)

// unitSet is the unit vocabulary observed in the source documents, raw
// spellings included; canonical mapping happens in the cleaning stage.
var unitSet = map[string]struct{}{
	"LNFT": {}, "SQYD": {}, "CUYD": {}, "TON": {}, "EACH": {}, "LPSM": {},
	"LF": {}, "SY": {}, "CY": {}, "EA": {}, "LS": {},
	"SQFT": {}, "GAL": {},
}

func readPlainPages(path string) ([]string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	pages := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			pages = append(pages, "")
			continue
		}
		pages = append(pages, text)
	}
	return pages, nil
}

type docMeta struct {
	ProjectName string
	ReportDate  *string
}

func scanMetadata(allText string) docMeta {
	meta := docMeta{}

	for _, pat := range projectNamePatterns {
		if m := pat.FindStringSubmatch(allText); m != nil {
			meta.ProjectName = util.NormalizeSpaces(m[1])
			break
		}
	}

	if m := reportDatePattern.FindStringSubmatch(allText); m != nil && !strings.Contains(m[1], "#") {
		meta.ReportDate = util.StringPtr(util.NormalizeSpaces(m[1]))
	} else if m := reportGeneratedPattern.FindStringSubmatch(allText); m != nil {
		meta.ReportDate = util.StringPtr(util.NormalizeSpaces(m[1]))
	}

	return meta
}

var (
	contractorSuffixes = []string{"Inc.", "LLC", "Corp.", "Corporation", "Co.,", "Company", "Const.", "Construction"}
	addressPattern     = regexp.MustCompile(`\b(Street|Road|Suite|P\.?O\.? Box|VA|NC|OH|FL|Virginia|North Carolina|Ohio|Florida)\b`)
)

// scanContractors recovers the contractor roster from raw page text. Only
// high-confidence lines count: a corporate suffix must be present, address
// lines and the estimate label are excluded. The roster drives wrapped-name
// recovery in the text extractor and the validator's name cross-check.
func scanContractors(allText string) []string {
	seen := map[string]struct{}{}
	out := []string{}

	add := func(name string) {
		name = strings.Trim(util.NormalizeSpaces(name), " ,")
		if len(name) < 3 || util.IsEstimateLabel(name) || strings.Contains(name, "Estimate") {
			return
		}
		lower := strings.ToLower(name)
		if strings.HasPrefix(lower, "engineer") || strings.HasPrefix(lower, "contract") || strings.HasPrefix(lower, "report") {
			return
		}
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}

	for _, raw := range strings.Split(allText, "\n") {
		ln := util.NormalizeSpaces(raw)
		if ln == "" {
			continue
		}
		hasSuffix := false
		for _, s := range contractorSuffixes {
			if strings.Contains(ln, s) {
				hasSuffix = true
				break
			}
		}
		if !hasSuffix {
			continue
		}

		if idx := strings.Index(ln, "$"); idx >= 0 {
			add(ln[:idx])
			continue
		}
		if addressPattern.MatchString(ln) {
			continue
		}
		add(ln)
	}

	return out
}

func kindFor(contractor string) internal.RowKind {
	if util.IsEstimateLabel(contractor) {
		return internal.KindEngineersEstimate
	}
	return internal.KindBidder
}

// pageContext pulls the schedule/option markers from one page's text,
// keeping the previous values when the page carries none.
func pageContext(pageText, schedule, option string) (string, string) {
	if m := schedulePattern.FindStringSubmatch(pageText); m != nil {
		schedule = m[1]
	} else if strings.Contains(pageText, "Base Schedule A") {
		schedule = "A"
	}
	if m := optionPattern.FindStringSubmatch(pageText); m != nil {
		option = m[1]
	}
	return schedule, option
}

// scheduleFromLineItem falls back to the line-item prefix ("A0200" -> "A")
// when no schedule marker was seen yet.
func scheduleFromLineItem(schedule, lineItemNo string) string {
	if schedule != "" {
		return schedule
	}
	if len(lineItemNo) >= 2 && lineItemNo[0] >= 'A' && lineItemNo[0] <= 'Z' && lineItemNo[1] >= '0' && lineItemNo[1] <= '9' {
		return lineItemNo[:1]
	}
	return schedule
}

func buildDocument(path string, format Format, pages []string, rows []internal.RawRow) internal.DocumentRows {
	allText := strings.Join(pages, "\n")
	meta := scanMetadata(allText)

	doc := internal.DocumentRows{
		SourceDoc:   filepath.Base(path),
		Format:      string(format),
		ProjectName: meta.ProjectName,
		ReportDate:  meta.ReportDate,
		Contractors: scanContractors(allText),
		Rows:        rows,
	}
	doc.Summaries = ExtractSummaries(doc.SourceDoc, pages, meta)
	return doc
}
