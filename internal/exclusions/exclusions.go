// Package exclusions manages an optional skip-list of file names that the
// run should never process.
package exclusions

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// List defines the interface for exclusion list operations.
type List interface {
	IsExcluded(fileName string) bool
	Names() []string
	Reload() error
	Close() error
}

// Config holds configuration for the exclusion list.
type Config struct {
	FilePath  string // path to the exclusions file (empty disables exclusion)
	WatchFile bool   // reload the list when the file changes
}

type listImpl struct {
	config    Config
	names     map[string]bool
	ordered   []string
	mutex     sync.RWMutex
	watcher   *fsnotify.Watcher
	stopWatch chan struct{}
}

// NewList creates an exclusion list. With an empty file path nothing is
// excluded. A configured file that cannot be read is an error rather than a
// silently empty list.
func NewList(config Config) (List, error) {
	list := &listImpl{
		config:    config,
		names:     make(map[string]bool),
		stopWatch: make(chan struct{}),
	}

	if config.FilePath == "" {
		return list, nil
	}

	if err := list.load(); err != nil {
		return nil, fmt.Errorf("failed to load exclusions file: %w", err)
	}

	if config.WatchFile {
		if err := list.setupWatcher(); err != nil {
			return nil, fmt.Errorf("failed to watch exclusions file: %w", err)
		}
	}

	return list, nil
}

// IsExcluded reports whether the file name is on the skip list. Comparison is
// case-insensitive to match how file names are matched elsewhere.
func (l *listImpl) IsExcluded(fileName string) bool {
	if l.config.FilePath == "" {
		return false
	}

	l.mutex.RLock()
	defer l.mutex.RUnlock()
	return l.names[strings.ToLower(fileName)]
}

// Names returns a copy of the excluded file names in file order.
func (l *listImpl) Names() []string {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	result := make([]string, len(l.ordered))
	copy(result, l.ordered)
	return result
}

// Reload re-reads the exclusions file.
func (l *listImpl) Reload() error {
	if l.config.FilePath == "" {
		return nil
	}
	return l.load()
}

// Close stops the file watcher if one is running.
func (l *listImpl) Close() error {
	if l.config.WatchFile && l.watcher != nil {
		close(l.stopWatch)
		return l.watcher.Close()
	}
	return nil
}

func (l *listImpl) load() error {
	file, err := os.Open(l.config.FilePath)
	if err != nil {
		return fmt.Errorf("failed to open exclusions file: %w", err)
	}
	defer file.Close()

	newNames := make(map[string]bool)
	newOrdered := make([]string, 0)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		name := strings.ToLower(line)
		if !newNames[name] {
			newNames[name] = true
			newOrdered = append(newOrdered, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading exclusions file: %w", err)
	}

	l.mutex.Lock()
	l.names = newNames
	l.ordered = newOrdered
	l.mutex.Unlock()

	return nil
}

func (l *listImpl) setupWatcher() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	if err := watcher.Add(l.config.FilePath); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch file: %w", err)
	}

	l.watcher = watcher
	go l.watchChanges()
	return nil
}

func (l *listImpl) watchChanges() {
	for {
		select {
		case event, ok := <-l.watcher.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create {
				// Small delay so the writer finishes before we read.
				time.Sleep(10 * time.Millisecond)
				if err := l.load(); err != nil {
					continue
				}
			}
		case _, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
		case <-l.stopWatch:
			return
		}
	}
}
