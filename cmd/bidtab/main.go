package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"bidtab/internal"
	"bidtab/internal/config"
	"bidtab/internal/pipeline"
	"bidtab/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	switch cmd {
	case "docs:parse":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		pdfPath := fs.String("pdf", "", "path to one bid tabulation PDF")
		dir := fs.String("dir", "", "directory of PDFs")
		format := fs.String("format", "", "table layout: a|b")
		manifest := fs.String("manifest", "", "CSV manifest: file,format")
		out := fs.String("out", cfg.OutputDir, "output directory")
		_ = fs.Parse(os.Args[2:])

		jobs, err := collectJobs(*pdfPath, *dir, *format, *manifest)
		must(err)

		db, err := storage.Open(cfg.DBPath)
		must(err)
		defer db.Close()

		svc := pipeline.NewProcessingService(db, cfg)
		failed := 0
		for _, job := range jobs {
			doc, err := svc.ParseDocument(job)
			if err != nil {
				fmt.Fprintf(os.Stderr, "parse failed: %v\n", err)
				_ = db.UpsertDocument(internal.DocumentProvenance{
					SourceDoc: filepath.Base(job.Path),
					Format:    string(job.Format),
					Err:       err.Error(),
				})
				failed++
				continue
			}
			paths, err := pipeline.ExportDocumentCSV(doc, *out)
			must(err)
			must(db.UpsertDocument(internal.DocumentProvenance{
				SourceDoc:   doc.SourceDoc,
				Format:      doc.Format,
				ProjectName: doc.ProjectName,
				ReportDate:  doc.ReportDate,
				Rows:        len(doc.Rows),
				Warnings:    doc.Warnings,
			}))
			fmt.Printf("parsed %s format=%s rows=%d warnings=%d\n", doc.SourceDoc, doc.Format, len(doc.Rows), len(doc.Warnings))
			for _, p := range paths {
				fmt.Printf("  wrote %s\n", p)
			}
		}
		if failed > 0 {
			os.Exit(1)
		}
	case "dataset:build":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		dir := fs.String("dir", "", "directory of PDFs")
		format := fs.String("format", "", "table layout for --dir: a|b")
		manifest := fs.String("manifest", "", "CSV manifest: file,format")
		out := fs.String("out", cfg.OutputDir, "output directory")
		_ = fs.Parse(os.Args[2:])

		jobs, err := collectJobs("", *dir, *format, *manifest)
		must(err)

		db, err := storage.Open(cfg.DBPath)
		must(err)
		defer db.Close()

		svc := pipeline.NewProcessingService(db, cfg)
		res, err := svc.Build(jobs)
		must(err)

		must(writeDatasetCSV(res.Dataset, *out))
		fmt.Printf("build done docs=%d failed=%d items=%d summaries=%d conflicts=%d findings=%d accepted=%v\n",
			res.Parsed, res.Failed, len(res.Dataset.LineItems), len(res.Dataset.BidSummaries),
			res.Conflicts, len(res.Dataset.Findings), res.Dataset.Accepted())
		if res.Failed > 0 || !res.Dataset.Accepted() {
			os.Exit(1)
		}
	case "dataset:export":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		out := fs.String("out", cfg.OutputDir, "output directory")
		xlsx := fs.String("xlsx", "", "also write an XLSX workbook at this path")
		_ = fs.Parse(os.Args[2:])

		db, err := storage.Open(cfg.DBPath)
		must(err)
		defer db.Close()

		ds, err := loadDataset(db)
		must(err)

		must(writeDatasetCSV(ds, *out))
		fmt.Printf("exported items=%d summaries=%d findings=%d to %s\n",
			len(ds.LineItems), len(ds.BidSummaries), len(ds.Findings), *out)
		if *xlsx != "" {
			must(pipeline.ExportDatasetXLSX(ds, *xlsx))
			fmt.Printf("wrote %s\n", *xlsx)
		}
	case "dataset:validate":
		db, err := storage.Open(cfg.DBPath)
		must(err)
		defer db.Close()

		ds, err := loadDataset(db)
		must(err)

		// Stored conflicts flow back into validation so an unresolved
		// conflict keeps blocking acceptance across re-runs.
		findings := pipeline.Validate(pipeline.MergeResult{
			LineItems:    ds.LineItems,
			BidSummaries: ds.BidSummaries,
			Conflicts:    ds.Conflicts,
		}, nil, cfg)
		ds.Findings = findings

		for _, f := range findings {
			fmt.Printf("%s %s: %s\n", f.Severity, f.Code, f.Message)
		}
		fmt.Printf("validate done findings=%d accepted=%v\n", len(findings), ds.Accepted())
		if !ds.Accepted() {
			os.Exit(1)
		}
	default:
		usage()
		os.Exit(1)
	}
}

func collectJobs(pdfPath, dir, format, manifest string) ([]pipeline.DocumentJob, error) {
	if manifest != "" {
		return readManifest(manifest)
	}

	f, err := pipeline.ParseFormat(format)
	if err != nil {
		return nil, err
	}

	if pdfPath != "" {
		return []pipeline.DocumentJob{{Path: pdfPath, Format: f}}, nil
	}
	if dir == "" {
		return nil, fmt.Errorf("one of --pdf, --dir, --manifest is required")
	}

	matches, err := filepath.Glob(filepath.Join(dir, "*.pdf"))
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no PDFs in %s", dir)
	}
	sort.Strings(matches)

	jobs := make([]pipeline.DocumentJob, 0, len(matches))
	for _, m := range matches {
		jobs = append(jobs, pipeline.DocumentJob{Path: m, Format: f})
	}
	return jobs, nil
}

// readManifest reads a two-column CSV of file,format rows. A header row
// starting with "file" is skipped.
func readManifest(path string) ([]pipeline.DocumentJob, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, err
	}

	base := filepath.Dir(path)
	var jobs []pipeline.DocumentJob
	for i, row := range rows {
		if len(row) < 2 {
			return nil, fmt.Errorf("%s: row %d: want file,format", path, i+1)
		}
		name := strings.TrimSpace(row[0])
		if i == 0 && strings.EqualFold(name, "file") {
			continue
		}
		format, err := pipeline.ParseFormat(strings.TrimSpace(row[1]))
		if err != nil {
			return nil, fmt.Errorf("%s: row %d: %w", path, i+1, err)
		}
		if !filepath.IsAbs(name) {
			name = filepath.Join(base, name)
		}
		jobs = append(jobs, pipeline.DocumentJob{Path: name, Format: format})
	}
	if len(jobs) == 0 {
		return nil, fmt.Errorf("%s: no documents listed", path)
	}
	return jobs, nil
}

func loadDataset(db *storage.DB) (*internal.Dataset, error) {
	items, err := db.ListLineItems()
	if err != nil {
		return nil, err
	}
	sums, err := db.ListBidSummaries()
	if err != nil {
		return nil, err
	}
	conflicts, err := db.ListConflicts()
	if err != nil {
		return nil, err
	}
	findings, err := db.ListFindings()
	if err != nil {
		return nil, err
	}
	return &internal.Dataset{LineItems: items, BidSummaries: sums, Conflicts: conflicts, Findings: findings}, nil
}

func writeDatasetCSV(ds *internal.Dataset, outDir string) error {
	if err := pipeline.WriteLineItemsCSV(filepath.Join(outDir, "line_items.csv"), ds.LineItems); err != nil {
		return err
	}
	if err := pipeline.WriteBidSummaryCSV(filepath.Join(outDir, "bid_summary.csv"), ds.BidSummaries); err != nil {
		return err
	}
	return pipeline.WriteFindingsCSV(filepath.Join(outDir, "findings.csv"), ds.Findings)
}

func usage() {
	fmt.Println("usage: bidtab <command>")
	fmt.Println("commands:")
	fmt.Println("  docs:parse --pdf=doc.pdf --format=a|b [--out=./out]")
	fmt.Println("  docs:parse --dir=./pdfs --format=a|b | --manifest=docs.csv")
	fmt.Println("  dataset:build --dir=./pdfs --format=a|b | --manifest=docs.csv [--out=./out]")
	fmt.Println("  dataset:export [--out=./out] [--xlsx=./out/dataset.xlsx]")
	fmt.Println("  dataset:validate")
}

func must(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
