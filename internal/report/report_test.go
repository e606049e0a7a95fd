package report

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
)

func TestSummaryCounts(t *testing.T) {
	audit := NewAudit()
	rows := []Row{
		{FileName: "photo1.jpg", Result: Skipped},
		{FileName: "photo2.jpg", Result: Updated},
		{FileName: "photo3.jpg", Result: LoadedLinked},
		{FileName: "photo4.jpg", Result: LoadedLinked},
		{FileName: "photo5.jpg", Result: NotFound},
		{FileName: "photo6.jpg", Result: InvalidFormat},
		{FileName: "photo7.jpg", Result: Failed, Detail: "boom"},
	}
	for _, row := range rows {
		audit.Record(row)
	}

	summary := audit.Summary()
	if summary.Skipped != 1 || summary.Updated != 1 || summary.LoadedLinked != 2 ||
		summary.NotFound != 1 || summary.InvalidFormat != 1 || summary.Errors != 1 {
		t.Errorf("summary = %+v", summary)
	}
	if summary.Total() != len(rows) {
		t.Errorf("Total() = %d, want %d", summary.Total(), len(rows))
	}
}

func TestRowsPreserveProcessingOrder(t *testing.T) {
	audit := NewAudit()
	names := []string{"photo3.jpg", "photo1.jpg", "photo2.jpg"}
	for _, name := range names {
		audit.Record(Row{FileName: name, Result: Skipped})
	}

	got := audit.Rows()
	for i, name := range names {
		if got[i].FileName != name {
			t.Errorf("row %d = %q, want %q", i, got[i].FileName, name)
		}
	}
}

func TestExportCSV(t *testing.T) {
	audit := NewAudit()
	audit.Record(Row{
		FileName:    "photo5.jpg",
		RecordName:  "St. Mary Parish",
		MigrationID: "Parishes_5",
		RecordID:    "001xx0000001",
		Result:      LoadedLinked,
	})
	audit.Record(Row{
		FileName: "photo9.jpg",
		Result:   Failed,
		Detail:   "download timed out",
	})

	var buf bytes.Buffer
	if err := audit.ExportCSV(&buf); err != nil {
		t.Fatalf("ExportCSV failed: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("failed to parse exported CSV: %v", err)
	}

	if len(records) != 3 {
		t.Fatalf("got %d CSV rows, want header + 2", len(records))
	}

	wantHeader := []string{"file_name", "record_name", "migration_id", "record_id", "result"}
	for i, col := range wantHeader {
		if records[0][i] != col {
			t.Errorf("header column %d = %q, want %q", i, records[0][i], col)
		}
	}

	first := records[1]
	if first[0] != "photo5.jpg" || first[1] != "St. Mary Parish" ||
		first[2] != "Parishes_5" || first[3] != "001xx0000001" || first[4] != "Loaded-Linked" {
		t.Errorf("first data row = %v", first)
	}

	// Error rows keep their message verbatim.
	if records[2][4] != "Error: download timed out" {
		t.Errorf("error row result = %q", records[2][4])
	}
}

func TestExportCSVStripsANSI(t *testing.T) {
	audit := NewAudit()
	audit.Record(Row{
		FileName: "photo1.jpg",
		Result:   Failed,
		Detail:   "\x1b[31mred failure\x1b[0m",
	})

	var buf bytes.Buffer
	if err := audit.ExportCSV(&buf); err != nil {
		t.Fatalf("ExportCSV failed: %v", err)
	}

	out := buf.String()
	if strings.Contains(out, "\x1b[") {
		t.Errorf("export contains ANSI escapes: %q", out)
	}
	if !strings.Contains(out, "red failure") {
		t.Errorf("export lost the message text: %q", out)
	}
}

func TestExportCSVSyntheticRow(t *testing.T) {
	var buf bytes.Buffer
	if err := NewAudit().ExportCSV(&buf); err != nil {
		t.Fatalf("ExportCSV failed: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("failed to parse exported CSV: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("empty audit should export header + synthetic row, got %d rows", len(records))
	}
	if records[1][4] != "no files processed" {
		t.Errorf("synthetic row result = %q", records[1][4])
	}
}

func TestResultText(t *testing.T) {
	plain := Row{Result: Skipped}
	if plain.ResultText() != "Skipped" {
		t.Errorf("ResultText = %q", plain.ResultText())
	}

	withDetail := Row{Result: Failed, Detail: "record vanished"}
	if withDetail.ResultText() != "Error: record vanished" {
		t.Errorf("ResultText = %q", withDetail.ResultText())
	}

	bare := Row{Result: Failed}
	if bare.ResultText() != "Error" {
		t.Errorf("ResultText = %q", bare.ResultText())
	}
}
