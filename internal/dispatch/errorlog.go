package dispatch

import (
	"fmt"
	"os"
	"sync"
	"time"
)

// ErrorLog is an append-only failure log for one record type. The underlying
// file opens lazily on the first append so clean runs leave no empty log
// behind. The caller owns the lifecycle and must Close it.
type ErrorLog struct {
	path string

	mu   sync.Mutex
	file *os.File
	err  error
}

// NewErrorLog creates a log that will write to path when first appended to.
func NewErrorLog(path string) *ErrorLog {
	return &ErrorLog{path: path}
}

// Append records one failed record with its cause.
func (l *ErrorLog) Append(recordID, cause string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		if l.err != nil {
			return l.err
		}
		file, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			l.err = fmt.Errorf("failed to open error log %s: %w", l.path, err)
			return l.err
		}
		l.file = file
	}

	line := fmt.Sprintf("%s %s: %s\n", time.Now().Format(time.RFC3339), recordID, cause)
	if _, err := l.file.WriteString(line); err != nil {
		return fmt.Errorf("failed to write error log: %w", err)
	}
	return nil
}

// Close closes the underlying file if it was ever opened.
func (l *ErrorLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}
