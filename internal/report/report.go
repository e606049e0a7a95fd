// Package report accumulates per-file reconciliation outcomes and renders
// them as summary counts and a CSV audit trail.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
)

// Kind classifies the outcome of reconciling one file.
type Kind string

const (
	Skipped       Kind = "Skipped"
	Updated       Kind = "Updated"
	LoadedLinked  Kind = "Loaded-Linked"
	NotFound      Kind = "NotFound"
	InvalidFormat Kind = "InvalidFormat"
	Failed        Kind = "Error"
)

// Row is one audit entry. Exactly one row is produced per processed file, in
// listing order.
type Row struct {
	FileName    string
	RecordName  string
	MigrationID string
	RecordID    string
	Result      Kind
	// Detail carries the verbatim failure message for Error rows.
	Detail string
}

// ResultText renders the result column. Error rows keep their message.
func (r Row) ResultText() string {
	if r.Result == Failed && r.Detail != "" {
		return fmt.Sprintf("Error: %s", r.Detail)
	}
	return string(r.Result)
}

// Summary holds outcome counts for one run.
type Summary struct {
	Skipped       int
	Updated       int
	LoadedLinked  int
	NotFound      int
	InvalidFormat int
	Errors        int
}

// Total returns the number of rows counted.
func (s Summary) Total() int {
	return s.Skipped + s.Updated + s.LoadedLinked + s.NotFound + s.InvalidFormat + s.Errors
}

// Audit collects rows in processing order.
type Audit struct {
	rows    []Row
	summary Summary
}

// NewAudit creates an empty audit trail.
func NewAudit() *Audit {
	return &Audit{}
}

// Record appends a row and updates the running summary.
func (a *Audit) Record(row Row) {
	a.rows = append(a.rows, row)
	switch row.Result {
	case Skipped:
		a.summary.Skipped++
	case Updated:
		a.summary.Updated++
	case LoadedLinked:
		a.summary.LoadedLinked++
	case NotFound:
		a.summary.NotFound++
	case InvalidFormat:
		a.summary.InvalidFormat++
	default:
		a.summary.Errors++
	}
}

// Rows returns the recorded rows in processing order.
func (a *Audit) Rows() []Row {
	return a.rows
}

// Summary returns the outcome counts.
func (a *Audit) Summary() Summary {
	return a.summary
}

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// stripANSI removes terminal color codes so the persisted trail stays plain
// text even if a decorated result string slips through.
func stripANSI(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}

// ExportCSV writes the audit trail with a header row. A run that recorded
// nothing still produces one synthetic row so the file is never header-only.
func (a *Audit) ExportCSV(w io.Writer) error {
	writer := csv.NewWriter(w)

	if err := writer.Write([]string{"file_name", "record_name", "migration_id", "record_id", "result"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	if len(a.rows) == 0 {
		if err := writer.Write([]string{"", "", "", "", "no files processed"}); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
		writer.Flush()
		return writer.Error()
	}

	for _, row := range a.rows {
		record := []string{
			row.FileName,
			row.RecordName,
			row.MigrationID,
			row.RecordID,
			stripANSI(row.ResultText()),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}
