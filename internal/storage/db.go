package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"bidtab/internal"
	"bidtab/internal/util"
)

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS documents (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  sourceDoc TEXT NOT NULL UNIQUE,
  format TEXT NOT NULL,
  projectName TEXT,
  reportDate TEXT,
  rowCount INTEGER NOT NULL DEFAULT 0,
  warningsJson TEXT NOT NULL DEFAULT '[]',
  error TEXT,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS line_items (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  projectName TEXT NOT NULL,
  reportDate TEXT,
  schedule TEXT,
  option TEXT,
  lineItemNo TEXT NOT NULL,
  payItemNo TEXT,
  description TEXT,
  quantity REAL,
  unit TEXT,
  unitPrice REAL,
  amount REAL,
  contractor TEXT NOT NULL,
  isEngineersEstimate INTEGER NOT NULL DEFAULT 0,
  extractionWarning INTEGER NOT NULL DEFAULT 0,
  sourceDoc TEXT NOT NULL,
  pdfPage INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_line_items_key
  ON line_items(projectName, reportDate, schedule, option, lineItemNo, contractor);

CREATE TABLE IF NOT EXISTS bid_summaries (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  projectName TEXT NOT NULL,
  reportDate TEXT,
  schedule TEXT,
  option TEXT,
  contractor TEXT NOT NULL,
  totalBidAmount REAL,
  rank INTEGER NOT NULL DEFAULT 0,
  isEngineersEstimate INTEGER NOT NULL DEFAULT 0,
  sourceDoc TEXT NOT NULL,
  pdfPage INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_bid_summaries_project
  ON bid_summaries(projectName, reportDate);

CREATE TABLE IF NOT EXISTS merge_conflicts (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  projectName TEXT NOT NULL,
  reportDate TEXT NOT NULL DEFAULT '',
  schedule TEXT NOT NULL DEFAULT '',
  option TEXT NOT NULL DEFAULT '',
  lineItemNo TEXT NOT NULL,
  contractor TEXT NOT NULL,
  isEngineersEstimate INTEGER NOT NULL DEFAULT 0,
  field TEXT NOT NULL,
  leftValue TEXT NOT NULL,
  rightValue TEXT NOT NULL,
  leftDoc TEXT NOT NULL,
  rightDoc TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS findings (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  severity TEXT NOT NULL,
  code TEXT NOT NULL,
  affectedKeys TEXT NOT NULL DEFAULT '',
  message TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  documents INTEGER NOT NULL,
  lineItems INTEGER NOT NULL,
  bidSummaries INTEGER NOT NULL,
  hardFindings INTEGER NOT NULL,
  warningFindings INTEGER NOT NULL,
  accepted INTEGER NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

// ReplaceDataset rebuilds the dataset tables from the given in-memory
// dataset. Rebuilds are idempotent: the same input yields the same rows.
func (d *DB) ReplaceDataset(ds *internal.Dataset) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"line_items", "bid_summaries", "merge_conflicts", "findings"} {
		if _, err := tx.Exec(`DELETE FROM ` + table); err != nil {
			return err
		}
	}

	itemStmt, err := tx.Prepare(`
INSERT INTO line_items (
  projectName, reportDate, schedule, option, lineItemNo, payItemNo, description,
  quantity, unit, unitPrice, amount, contractor,
  isEngineersEstimate, extractionWarning, sourceDoc, pdfPage
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`)
	if err != nil {
		return err
	}
	defer itemStmt.Close()

	for _, r := range ds.LineItems {
		if _, err := itemStmt.Exec(
			r.ProjectName, r.ReportDate, r.Schedule, r.Option, r.LineItemNo, r.PayItemNo, r.Description,
			r.Quantity, r.Unit, r.UnitPrice, r.Amount, r.Contractor,
			boolInt(r.IsEngineersEstimate), boolInt(r.Warning), r.SourceDoc, r.Page,
		); err != nil {
			return err
		}
	}

	sumStmt, err := tx.Prepare(`
INSERT INTO bid_summaries (
  projectName, reportDate, schedule, option, contractor,
  totalBidAmount, rank, isEngineersEstimate, sourceDoc, pdfPage
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`)
	if err != nil {
		return err
	}
	defer sumStmt.Close()

	for _, s := range ds.BidSummaries {
		if _, err := sumStmt.Exec(
			s.ProjectName, s.ReportDate, s.Schedule, s.Option, s.Contractor,
			s.TotalBidAmount, s.Rank, boolInt(s.IsEngineersEstimate), s.SourceDoc, s.Page,
		); err != nil {
			return err
		}
	}

	for _, c := range ds.Conflicts {
		if _, err := tx.Exec(`
INSERT INTO merge_conflicts (
  projectName, reportDate, schedule, option, lineItemNo, contractor, isEngineersEstimate,
  field, leftValue, rightValue, leftDoc, rightDoc
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, c.Key.ProjectName, c.Key.ReportDate, c.Key.Schedule, c.Key.Option, c.Key.LineItemNo,
			c.Key.Contractor, boolInt(c.Key.IsEngineersEstimate),
			c.Field, c.Left, c.Right, c.LeftDoc, c.RightDoc); err != nil {
			return err
		}
	}

	for _, f := range ds.Findings {
		if _, err := tx.Exec(`
INSERT INTO findings (severity, code, affectedKeys, message) VALUES (?, ?, ?, ?)
`, string(f.Severity), f.Code, strings.Join(f.Keys, ";"), f.Message); err != nil {
			return err
		}
	}

	for _, doc := range ds.Documents {
		if err := upsertDocumentTx(tx, doc); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (d *DB) UpsertDocument(doc internal.DocumentProvenance) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := upsertDocumentTx(tx, doc); err != nil {
		return err
	}
	return tx.Commit()
}

func upsertDocumentTx(tx *sql.Tx, doc internal.DocumentProvenance) error {
	warningsJSON, _ := json.Marshal(doc.Warnings)
	if doc.Warnings == nil {
		warningsJSON = []byte("[]")
	}
	_, err := tx.Exec(`
INSERT INTO documents (sourceDoc, format, projectName, reportDate, rowCount, warningsJson, error)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(sourceDoc) DO UPDATE SET
  format=excluded.format,
  projectName=excluded.projectName,
  reportDate=excluded.reportDate,
  rowCount=excluded.rowCount,
  warningsJson=excluded.warningsJson,
  error=excluded.error,
  updatedAt=CURRENT_TIMESTAMP
`, doc.SourceDoc, doc.Format, doc.ProjectName, doc.ReportDate, doc.Rows, string(warningsJSON), doc.Err)
	return err
}

func (d *DB) InsertRun(ds *internal.Dataset) error {
	hard, warn := 0, 0
	for _, f := range ds.Findings {
		if f.Severity == internal.SeverityHard {
			hard++
		} else {
			warn++
		}
	}
	_, err := d.conn.Exec(`
INSERT INTO runs (documents, lineItems, bidSummaries, hardFindings, warningFindings, accepted)
VALUES (?, ?, ?, ?, ?, ?)
`, len(ds.Documents), len(ds.LineItems), len(ds.BidSummaries), hard, warn, boolInt(ds.Accepted()))
	return err
}

func (d *DB) ListLineItems() ([]internal.LineItemRecord, error) {
	rows, err := d.conn.Query(`
SELECT projectName, reportDate, schedule, option, lineItemNo, payItemNo, description,
       quantity, unit, unitPrice, amount, contractor,
       isEngineersEstimate, extractionWarning, sourceDoc, pdfPage
FROM line_items
ORDER BY projectName, reportDate, schedule, option, lineItemNo, contractor
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.LineItemRecord
	for rows.Next() {
		var r internal.LineItemRecord
		var est, warning int
		if err := rows.Scan(
			&r.ProjectName, &r.ReportDate, &r.Schedule, &r.Option, &r.LineItemNo, &r.PayItemNo, &r.Description,
			&r.Quantity, &r.Unit, &r.UnitPrice, &r.Amount, &r.Contractor,
			&est, &warning, &r.SourceDoc, &r.Page,
		); err != nil {
			return nil, err
		}
		r.IsEngineersEstimate = est == 1
		r.Warning = warning == 1
		out = append(out, r)
	}
	return out, rows.Err()
}

func (d *DB) ListBidSummaries() ([]internal.BidSummaryRecord, error) {
	rows, err := d.conn.Query(`
SELECT projectName, reportDate, schedule, option, contractor,
       totalBidAmount, rank, isEngineersEstimate, sourceDoc, pdfPage
FROM bid_summaries
ORDER BY projectName, reportDate, schedule, option, rank, contractor
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.BidSummaryRecord
	for rows.Next() {
		var s internal.BidSummaryRecord
		var est int
		if err := rows.Scan(
			&s.ProjectName, &s.ReportDate, &s.Schedule, &s.Option, &s.Contractor,
			&s.TotalBidAmount, &s.Rank, &est, &s.SourceDoc, &s.Page,
		); err != nil {
			return nil, err
		}
		s.IsEngineersEstimate = est == 1
		out = append(out, s)
	}
	return out, rows.Err()
}

func (d *DB) ListConflicts() ([]internal.MergeConflict, error) {
	rows, err := d.conn.Query(`
SELECT projectName, reportDate, schedule, option, lineItemNo, contractor, isEngineersEstimate,
       field, leftValue, rightValue, leftDoc, rightDoc
FROM merge_conflicts
ORDER BY projectName, reportDate, schedule, option, lineItemNo, contractor, field
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.MergeConflict
	for rows.Next() {
		var c internal.MergeConflict
		var est int
		if err := rows.Scan(
			&c.Key.ProjectName, &c.Key.ReportDate, &c.Key.Schedule, &c.Key.Option,
			&c.Key.LineItemNo, &c.Key.Contractor, &est,
			&c.Field, &c.Left, &c.Right, &c.LeftDoc, &c.RightDoc,
		); err != nil {
			return nil, err
		}
		c.Key.IsEngineersEstimate = est == 1
		out = append(out, c)
	}
	return out, rows.Err()
}

func (d *DB) ListFindings() ([]internal.Finding, error) {
	rows, err := d.conn.Query(`SELECT severity, code, affectedKeys, message FROM findings ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.Finding
	for rows.Next() {
		var f internal.Finding
		var severity, keys string
		if err := rows.Scan(&severity, &f.Code, &keys, &f.Message); err != nil {
			return nil, err
		}
		f.Severity = internal.Severity(severity)
		if keys != "" {
			f.Keys = strings.Split(keys, ";")
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (d *DB) GetDocument(sourceDoc string) (*internal.DocumentProvenance, error) {
	var doc internal.DocumentProvenance
	var warningsJSON string
	var errText *string
	err := d.conn.QueryRow(`
SELECT sourceDoc, format, projectName, reportDate, rowCount, warningsJson, error
FROM documents WHERE sourceDoc = ?
`, sourceDoc).Scan(&doc.SourceDoc, &doc.Format, &doc.ProjectName, &doc.ReportDate, &doc.Rows, &warningsJSON, &errText)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	_ = json.Unmarshal([]byte(warningsJSON), &doc.Warnings)
	doc.Err = util.DerefString(errText)
	return &doc, nil
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
