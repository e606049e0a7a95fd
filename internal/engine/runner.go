package engine

import (
	"context"
	"fmt"

	"github.com/jdavila/drive-to-crm/internal/dispatch"
	"github.com/jdavila/drive-to-crm/internal/drive"
	"github.com/jdavila/drive-to-crm/internal/exclusions"
	"github.com/jdavila/drive-to-crm/internal/logging"
	"github.com/jdavila/drive-to-crm/internal/objects"
	"github.com/jdavila/drive-to-crm/internal/progress"
	"github.com/jdavila/drive-to-crm/internal/report"
)

// Lister is the storage surface the runner needs beyond downloading.
type Lister interface {
	ListImagesPage(ctx context.Context, folderID, pageToken string) (*drive.FileList, error)
	FindOrCreateSubfolder(ctx context.Context, parentID, name string) (string, error)
	CheckAccess(ctx context.Context, folderID string) (bool, error)
}

// Runner walks one record type's folder listing and reconciles every file,
// in listing order, one page in flight at a time.
type Runner struct {
	storage    Lister
	reconciler *Reconciler
	spec       objects.Spec
	audit      *report.Audit
	reporter   progress.Reporter
	excluded   exclusions.List
	limit      int
	logger     logging.Logger
}

// NewRunner creates a runner. excluded may be nil when no skip list is
// configured; limit <= 0 means no limit.
func NewRunner(storage Lister, reconciler *Reconciler, spec objects.Spec,
	audit *report.Audit, reporter progress.Reporter, excluded exclusions.List,
	limit int, logger logging.Logger) *Runner {
	return &Runner{
		storage:    storage,
		reconciler: reconciler,
		spec:       spec,
		audit:      audit,
		reporter:   reporter,
		excluded:   excluded,
		limit:      limit,
		logger:     logger,
	}
}

// Run reconciles every image under the record type's subfolder of the parent
// folder and returns the staged mutations. A subfolder or access failure
// aborts this record type only; the audit trail still gets its synthetic row
// via the empty export.
func (r *Runner) Run(ctx context.Context, parentFolderID string) ([]dispatch.Mutation, error) {
	folderID, err := r.storage.FindOrCreateSubfolder(ctx, parentFolderID, r.spec.Subfolder)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s subfolder: %w", r.spec.Subfolder, err)
	}

	ok, err := r.storage.CheckAccess(ctx, folderID)
	if err != nil {
		return nil, fmt.Errorf("failed to check access to %s folder: %w", r.spec.Subfolder, err)
	}
	if !ok {
		return nil, fmt.Errorf("no access to %s folder %s", r.spec.Subfolder, folderID)
	}

	r.reporter.Start(r.spec.APIName, r.spec.Subfolder)

	var mutations []dispatch.Mutation
	processed := 0
	skippedByExclusion := 0
	pageToken := ""

	for {
		page, err := r.storage.ListImagesPage(ctx, folderID, pageToken)
		if err != nil {
			return mutations, fmt.Errorf("failed to list %s folder: %w", r.spec.Subfolder, err)
		}

		for _, file := range page.Files {
			if r.limit > 0 && processed >= r.limit {
				r.logger.Info("Reached limit of %d files, stopping", r.limit)
				r.reporter.Finish(r.audit.Summary())
				return mutations, nil
			}

			if r.excluded != nil && r.excluded.IsExcluded(file.Name) {
				skippedByExclusion++
				r.logger.Info("Excluding %s per exclusions list", file.Name)
				continue
			}

			mutation, row := r.reconciler.ReconcileFile(ctx, file)
			r.audit.Record(row)
			r.reporter.FileProcessed(row)
			if mutation != nil {
				mutations = append(mutations, *mutation)
			}
			processed++
		}

		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}

	if skippedByExclusion > 0 {
		r.logger.Info("Excluded %d files from %s", skippedByExclusion, r.spec.Subfolder)
	}
	if processed == 0 {
		r.logger.Warn("No image files found in %s folder", r.spec.Subfolder)
	}

	r.reporter.Finish(r.audit.Summary())
	return mutations, nil
}
