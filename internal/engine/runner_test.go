package engine

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/jdavila/drive-to-crm/internal/drive"
	"github.com/jdavila/drive-to-crm/internal/progress"
	"github.com/jdavila/drive-to-crm/internal/report"
)

// fakeDrive serves a paginated listing plus downloads.
type fakeDrive struct {
	fakeStorage
	pages        []*drive.FileList
	subfolderID  string
	subfolderErr error
	access       bool
	accessErr    error
	listCalls    int
	listedTokens []string
}

func (f *fakeDrive) ListImagesPage(ctx context.Context, folderID, pageToken string) (*drive.FileList, error) {
	f.listCalls++
	f.listedTokens = append(f.listedTokens, pageToken)
	if f.listCalls > len(f.pages) {
		return &drive.FileList{}, nil
	}
	return f.pages[f.listCalls-1], nil
}

func (f *fakeDrive) FindOrCreateSubfolder(ctx context.Context, parentID, name string) (string, error) {
	if f.subfolderErr != nil {
		return "", f.subfolderErr
	}
	return f.subfolderID, nil
}

func (f *fakeDrive) CheckAccess(ctx context.Context, folderID string) (bool, error) {
	return f.access, f.accessErr
}

// staticExclusions is a fixed skip list for tests.
type staticExclusions struct {
	names map[string]bool
}

func (s *staticExclusions) IsExcluded(name string) bool { return s.names[strings.ToLower(name)] }
func (s *staticExclusions) Names() []string             { return nil }
func (s *staticExclusions) Reload() error               { return nil }
func (s *staticExclusions) Close() error                { return nil }

func newTestRunner(t *testing.T, storage *fakeDrive, crm *fakeCRM, limit int) (*Runner, *report.Audit) {
	t.Helper()
	records, attachments := buildIndexes(t, crm)
	spec := contactSpec(t)
	reconciler := NewReconciler(&storage.fakeStorage, crm, records, attachments, spec, testDomain, false, nopLogger{})
	audit := report.NewAudit()
	runner := NewRunner(storage, reconciler, spec, audit, progress.NewNopReporter(), nil, limit, nopLogger{})
	return runner, audit
}

func TestRunWalksAllPagesInOrder(t *testing.T) {
	crm := newFakeCRM()
	crm.addRecord("003A", "Ada", "1", "")
	crm.addRecord("003B", "Ben", "2", "")
	crm.addRecord("003C", "Cal", "3", "")

	storage := &fakeDrive{
		fakeStorage: fakeStorage{files: map[string][]byte{
			"f1": []byte("a"), "f2": []byte("b"), "f3": []byte("c"),
		}},
		subfolderID: "sub1",
		access:      true,
		pages: []*drive.FileList{
			{
				NextPageToken: "page2",
				Files: []drive.File{
					{ID: "f1", Name: "photo1.jpg"},
					{ID: "f2", Name: "photo2.jpg"},
				},
			},
			{
				Files: []drive.File{{ID: "f3", Name: "photo3.jpg"}},
			},
		},
	}

	runner, audit := newTestRunner(t, storage, crm, 0)
	mutations, err := runner.Run(context.Background(), "parent")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(mutations) != 3 {
		t.Errorf("mutations = %d, want 3", len(mutations))
	}
	if storage.listCalls != 2 {
		t.Errorf("list calls = %d, want 2", storage.listCalls)
	}
	if storage.listedTokens[0] != "" || storage.listedTokens[1] != "page2" {
		t.Errorf("page tokens = %v", storage.listedTokens)
	}

	// Audit rows follow listing order across pages.
	rows := audit.Rows()
	wantOrder := []string{"photo1.jpg", "photo2.jpg", "photo3.jpg"}
	if len(rows) != len(wantOrder) {
		t.Fatalf("rows = %d, want %d", len(rows), len(wantOrder))
	}
	for i, want := range wantOrder {
		if rows[i].FileName != want {
			t.Errorf("row %d = %q, want %q", i, rows[i].FileName, want)
		}
	}
}

func TestRunRespectsLimit(t *testing.T) {
	crm := newFakeCRM()
	for i := 1; i <= 5; i++ {
		crm.addRecord(fmt.Sprintf("003%d", i), fmt.Sprintf("R%d", i), fmt.Sprintf("%d", i), "")
	}

	files := make([]drive.File, 0, 5)
	contents := make(map[string][]byte)
	for i := 1; i <= 5; i++ {
		id := fmt.Sprintf("f%d", i)
		files = append(files, drive.File{ID: id, Name: fmt.Sprintf("photo%d.jpg", i)})
		contents[id] = []byte("x")
	}

	storage := &fakeDrive{
		fakeStorage: fakeStorage{files: contents},
		subfolderID: "sub1",
		access:      true,
		pages:       []*drive.FileList{{Files: files}},
	}

	runner, audit := newTestRunner(t, storage, crm, 2)
	mutations, err := runner.Run(context.Background(), "parent")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(mutations) != 2 || len(audit.Rows()) != 2 {
		t.Errorf("mutations = %d, rows = %d, want 2 each", len(mutations), len(audit.Rows()))
	}
}

func TestRunSkipsExcludedFiles(t *testing.T) {
	crm := newFakeCRM()
	crm.addRecord("003A", "Ada", "1", "")
	crm.addRecord("003B", "Ben", "2", "")

	storage := &fakeDrive{
		fakeStorage: fakeStorage{files: map[string][]byte{"f1": []byte("a"), "f2": []byte("b")}},
		subfolderID: "sub1",
		access:      true,
		pages: []*drive.FileList{{
			Files: []drive.File{
				{ID: "f1", Name: "photo1.jpg"},
				{ID: "f2", Name: "photo2.jpg"},
			},
		}},
	}

	records, attachments := buildIndexes(t, crm)
	spec := contactSpec(t)
	reconciler := NewReconciler(&storage.fakeStorage, crm, records, attachments, spec, testDomain, false, nopLogger{})
	audit := report.NewAudit()
	excluded := &staticExclusions{names: map[string]bool{"photo1.jpg": true}}
	runner := NewRunner(storage, reconciler, spec, audit, progress.NewNopReporter(), excluded, 0, nopLogger{})

	mutations, err := runner.Run(context.Background(), "parent")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// Excluded files are not processed at all: no audit row, no mutation.
	if len(mutations) != 1 {
		t.Errorf("mutations = %d, want 1", len(mutations))
	}
	rows := audit.Rows()
	if len(rows) != 1 || rows[0].FileName != "photo2.jpg" {
		t.Errorf("rows = %+v, want only photo2.jpg", rows)
	}
}

func TestRunAbortsWithoutAccess(t *testing.T) {
	crm := newFakeCRM()
	storage := &fakeDrive{subfolderID: "sub1", access: false}

	runner, audit := newTestRunner(t, storage, crm, 0)
	if _, err := runner.Run(context.Background(), "parent"); err == nil {
		t.Fatal("missing folder access should abort the run")
	}
	if storage.listCalls != 0 {
		t.Error("no listing may happen without access")
	}
	if len(audit.Rows()) != 0 {
		t.Error("aborted run must not record rows")
	}
}

func TestRunAbortsOnSubfolderFailure(t *testing.T) {
	crm := newFakeCRM()
	storage := &fakeDrive{subfolderErr: fmt.Errorf("drive unavailable")}

	runner, _ := newTestRunner(t, storage, crm, 0)
	if _, err := runner.Run(context.Background(), "parent"); err == nil {
		t.Fatal("subfolder failure should abort the run")
	}
}

func TestRunWithEmptyFolder(t *testing.T) {
	crm := newFakeCRM()
	storage := &fakeDrive{
		subfolderID: "sub1",
		access:      true,
		pages:       []*drive.FileList{{}},
	}

	runner, audit := newTestRunner(t, storage, crm, 0)
	mutations, err := runner.Run(context.Background(), "parent")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(mutations) != 0 || len(audit.Rows()) != 0 {
		t.Errorf("empty folder produced mutations or rows")
	}
}

func TestRunContinuesPastPerFileErrors(t *testing.T) {
	crm := newFakeCRM()
	crm.addRecord("003A", "Ada", "1", "")
	crm.addRecord("003B", "Ben", "2", "")

	// Only f2 is downloadable; f1's download fails.
	storage := &fakeDrive{
		fakeStorage: fakeStorage{files: map[string][]byte{"f2": []byte("b")}},
		subfolderID: "sub1",
		access:      true,
		pages: []*drive.FileList{{
			Files: []drive.File{
				{ID: "f1", Name: "photo1.jpg"},
				{ID: "f2", Name: "photo2.jpg"},
			},
		}},
	}

	runner, audit := newTestRunner(t, storage, crm, 0)
	mutations, err := runner.Run(context.Background(), "parent")
	if err != nil {
		t.Fatalf("per-file failures must not abort the run: %v", err)
	}

	rows := audit.Rows()
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0].Result != report.Failed {
		t.Errorf("first row = %v, want Error", rows[0].Result)
	}
	if rows[1].Result != report.LoadedLinked {
		t.Errorf("second row = %v (detail %q), want Loaded-Linked", rows[1].Result, rows[1].Detail)
	}
	if len(mutations) != 1 {
		t.Errorf("mutations = %d, want 1", len(mutations))
	}
}
