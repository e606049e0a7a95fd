// Package progress renders the per-file outcome stream on the terminal. The
// engine only sees the Reporter interface, so rendering can be swapped out or
// disabled without touching the core.
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/jdavila/drive-to-crm/internal/report"
)

// Reporter consumes the outcome stream.
type Reporter interface {
	// Start announces the beginning of a record type's run.
	Start(objectName, folderName string)

	// FileProcessed reports one reconciled file.
	FileProcessed(row report.Row)

	// Finish renders the end-of-run summary.
	Finish(summary report.Summary)
}

var (
	skippedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	updatedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	loadedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	missingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("5"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	headerStyle  = lipgloss.NewStyle().Bold(true)
)

// terminalReporter prints one line per file plus a summary block.
type terminalReporter struct {
	mu        sync.Mutex
	out       io.Writer
	processed int
}

// NewTerminalReporter creates a reporter writing to stdout.
func NewTerminalReporter() Reporter {
	return &terminalReporter{out: os.Stdout}
}

// NewWriterReporter creates a reporter writing to w, mainly for tests.
func NewWriterReporter(w io.Writer) Reporter {
	return &terminalReporter{out: w}
}

func (r *terminalReporter) Start(objectName, folderName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.processed = 0
	fmt.Fprintln(r.out, headerStyle.Render(fmt.Sprintf("Processing %s photos from %s", objectName, folderName)))
}

func (r *terminalReporter) FileProcessed(row report.Row) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.processed++

	label := row.ResultText()
	switch row.Result {
	case report.Skipped:
		label = skippedStyle.Render(label)
	case report.Updated:
		label = updatedStyle.Render(label)
	case report.LoadedLinked:
		label = loadedStyle.Render(label)
	case report.NotFound, report.InvalidFormat:
		label = missingStyle.Render(label)
	default:
		label = errorStyle.Render(label)
	}

	name := row.RecordName
	if name == "" {
		name = "-"
	}
	fmt.Fprintf(r.out, "[%4d] %-40s %-30s %s\n", r.processed, row.FileName, name, label)
}

func (r *terminalReporter) Finish(summary report.Summary) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fmt.Fprintln(r.out, headerStyle.Render("Summary"))
	fmt.Fprintf(r.out, "  Total:          %d\n", summary.Total())
	fmt.Fprintf(r.out, "  Loaded-Linked:  %d\n", summary.LoadedLinked)
	fmt.Fprintf(r.out, "  Updated:        %d\n", summary.Updated)
	fmt.Fprintf(r.out, "  Skipped:        %d\n", summary.Skipped)
	fmt.Fprintf(r.out, "  Not found:      %d\n", summary.NotFound)
	fmt.Fprintf(r.out, "  Invalid format: %d\n", summary.InvalidFormat)
	fmt.Fprintf(r.out, "  Errors:         %d\n", summary.Errors)
}

// nopReporter drops everything, for --no-progress runs.
type nopReporter struct{}

// NewNopReporter creates a reporter that discards all output.
func NewNopReporter() Reporter {
	return nopReporter{}
}

func (nopReporter) Start(string, string)     {}
func (nopReporter) FileProcessed(report.Row) {}
func (nopReporter) Finish(report.Summary)    {}
