package pipeline

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"bidtab/internal"
	"bidtab/internal/config"
	"bidtab/internal/storage"
)

type ProcessingService struct {
	db  *storage.DB
	cfg config.Config
}

func NewProcessingService(db *storage.DB, cfg config.Config) *ProcessingService {
	return &ProcessingService{db: db, cfg: cfg}
}

// DocumentJob names one PDF to parse and which table layout to expect.
type DocumentJob struct {
	Path   string
	Format Format
}

type documentResult struct {
	doc internal.DocumentRows
	job DocumentJob
	err error
}

// BuildResult summarizes one dataset rebuild.
type BuildResult struct {
	Dataset   *internal.Dataset
	Parsed    int
	Failed    int
	Conflicts int
}

// ParseDocument extracts a single PDF without touching the dataset. Used by
// the per-document command and by Build's workers.
func (s *ProcessingService) ParseDocument(job DocumentJob) (internal.DocumentRows, error) {
	ex, err := ForFormat(job.Format)
	if err != nil {
		return internal.DocumentRows{}, err
	}
	doc, err := ex.Extract(job.Path)
	if err != nil {
		return internal.DocumentRows{}, fmt.Errorf("%s: %w", filepath.Base(job.Path), err)
	}
	doc.Rows = FillDown(doc.Rows)
	ResolveReportDate(&doc, job.Path, s.cfg.DateScanPages)
	return doc, nil
}

// Build runs the full rebuild: parse every document concurrently, then merge,
// clean, and validate behind the barrier. A document that fails to parse is
// recorded in provenance and skipped; it never aborts the run.
func (s *ProcessingService) Build(jobs []DocumentJob) (BuildResult, error) {
	var wg sync.WaitGroup
	jobCh := make(chan DocumentJob, len(jobs))
	resultCh := make(chan documentResult, len(jobs))

	for w := 0; w < s.cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobCh {
				doc, err := s.ParseDocument(job)
				resultCh <- documentResult{doc: doc, job: job, err: err}
			}
		}()
	}

	for _, job := range jobs {
		jobCh <- job
	}
	close(jobCh)
	wg.Wait()
	close(resultCh)

	var docs []internal.DocumentRows
	var failures []internal.DocumentProvenance
	for res := range resultCh {
		if res.err != nil {
			failures = append(failures, internal.DocumentProvenance{
				SourceDoc: filepath.Base(res.job.Path),
				Format:    string(res.job.Format),
				Err:       res.err.Error(),
			})
			continue
		}
		docs = append(docs, res.doc)
	}

	ds := AssembleDataset(docs, s.cfg)
	ds.Documents = append(ds.Documents, failures...)
	sortProvenance(ds.Documents)

	if s.db != nil {
		if err := s.db.ReplaceDataset(ds); err != nil {
			return BuildResult{}, err
		}
		if err := s.db.InsertRun(ds); err != nil {
			return BuildResult{}, err
		}
	}

	return BuildResult{
		Dataset:   ds,
		Parsed:    len(docs),
		Failed:    len(failures),
		Conflicts: len(ds.Conflicts),
	}, nil
}

// AssembleDataset merges already-extracted documents into the canonical
// dataset. Split out from Build so the merge semantics are testable without
// PDFs or a database.
func AssembleDataset(docs []internal.DocumentRows, cfg config.Config) *internal.Dataset {
	res := Merge(docs)
	res = Clean(res)

	rosters := make(map[string][]string)
	for _, doc := range docs {
		rosters[doc.ProjectName] = append(rosters[doc.ProjectName], doc.Contractors...)
	}
	findings := Validate(res, rosters, cfg)

	ds := &internal.Dataset{
		LineItems:    res.LineItems,
		BidSummaries: res.BidSummaries,
		Conflicts:    res.Conflicts,
		Findings:     findings,
	}
	for _, doc := range docs {
		ds.Documents = append(ds.Documents, internal.DocumentProvenance{
			SourceDoc:   doc.SourceDoc,
			Format:      doc.Format,
			ProjectName: doc.ProjectName,
			ReportDate:  doc.ReportDate,
			Rows:        len(doc.Rows),
			Warnings:    doc.Warnings,
		})
	}
	sortProvenance(ds.Documents)
	return ds
}

// ExportDocumentCSV writes one parsed document's rows next to outDir as
// <stem>_line_items.csv and <stem>_bids_summary.csv.
func ExportDocumentCSV(doc internal.DocumentRows, outDir string) ([]string, error) {
	stem := strings.TrimSuffix(doc.SourceDoc, filepath.Ext(doc.SourceDoc))

	var items []internal.LineItemRecord
	for _, row := range doc.Rows {
		items = append(items, toLineItem(doc, row))
	}

	itemsPath := filepath.Join(outDir, stem+"_line_items.csv")
	if err := WriteLineItemsCSV(itemsPath, items); err != nil {
		return nil, err
	}

	sums := make([]internal.BidSummaryRecord, len(doc.Summaries))
	copy(sums, doc.Summaries)
	for i := range sums {
		// Same resolved date the line items carry, not the raw spelling
		// the summary page happened to use.
		sums[i].ReportDate = doc.ReportDate
	}
	sums = AssignRanks(sums)
	sumsPath := filepath.Join(outDir, stem+"_bids_summary.csv")
	if err := WriteBidSummaryCSV(sumsPath, sums); err != nil {
		return nil, err
	}

	return []string{itemsPath, sumsPath}, nil
}

func sortProvenance(docs []internal.DocumentProvenance) {
	sort.Slice(docs, func(i, j int) bool {
		return docs[i].SourceDoc < docs[j].SourceDoc
	})
}
