package exclusions

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeList(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "exclusions.txt")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write exclusions file: %v", err)
	}
	return path
}

func TestEmptyPathExcludesNothing(t *testing.T) {
	list, err := NewList(Config{})
	if err != nil {
		t.Fatalf("NewList failed: %v", err)
	}
	defer list.Close()

	if list.IsExcluded("photo1.jpg") {
		t.Error("no file configured, nothing should be excluded")
	}
}

func TestLoadSkipsCommentsAndBlanks(t *testing.T) {
	path := writeList(t, `
# corrupted scans, do not upload
photo101.jpg

photo205.jpg
# duplicate entry below is collapsed
photo101.jpg
`)

	list, err := NewList(Config{FilePath: path})
	if err != nil {
		t.Fatalf("NewList failed: %v", err)
	}
	defer list.Close()

	if !list.IsExcluded("photo101.jpg") || !list.IsExcluded("photo205.jpg") {
		t.Error("listed files should be excluded")
	}
	if list.IsExcluded("photo102.jpg") {
		t.Error("unlisted file should not be excluded")
	}
	if got := list.Names(); len(got) != 2 {
		t.Errorf("Names() = %v, want 2 unique entries", got)
	}
}

func TestIsExcludedIgnoresCase(t *testing.T) {
	path := writeList(t, "Photo101.JPG\n")

	list, err := NewList(Config{FilePath: path})
	if err != nil {
		t.Fatalf("NewList failed: %v", err)
	}
	defer list.Close()

	if !list.IsExcluded("photo101.jpg") {
		t.Error("comparison should be case-insensitive")
	}
}

func TestMissingConfiguredFileIsError(t *testing.T) {
	if _, err := NewList(Config{FilePath: filepath.Join(t.TempDir(), "absent.txt")}); err == nil {
		t.Error("a configured file that cannot be read must be an error")
	}
}

func TestReload(t *testing.T) {
	path := writeList(t, "photo101.jpg\n")

	list, err := NewList(Config{FilePath: path})
	if err != nil {
		t.Fatalf("NewList failed: %v", err)
	}
	defer list.Close()

	if err := os.WriteFile(path, []byte("photo202.jpg\n"), 0644); err != nil {
		t.Fatalf("failed to rewrite file: %v", err)
	}
	if err := list.Reload(); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}

	if list.IsExcluded("photo101.jpg") {
		t.Error("old entry should be gone after reload")
	}
	if !list.IsExcluded("photo202.jpg") {
		t.Error("new entry should be present after reload")
	}
}

func TestWatchReloadsOnChange(t *testing.T) {
	path := writeList(t, "photo101.jpg\n")

	list, err := NewList(Config{FilePath: path, WatchFile: true})
	if err != nil {
		t.Fatalf("NewList failed: %v", err)
	}
	defer list.Close()

	if err := os.WriteFile(path, []byte("photo303.jpg\n"), 0644); err != nil {
		t.Fatalf("failed to rewrite file: %v", err)
	}

	// The watcher reloads asynchronously; poll briefly.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if list.IsExcluded("photo303.jpg") && !list.IsExcluded("photo101.jpg") {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Error("watched file change was not picked up")
}
